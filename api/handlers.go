/*
handlers.go - HTTP API handlers for the leave workflow

PURPOSE:
  Exposes leave.Service via REST. Handles HTTP request/response, JSON
  serialization and input validation, and delegates everything else to
  the service. No handler touches the store directly.

ENDPOINTS:
  Requests:
    POST   /api/requests                     Submit a leave request
    GET    /api/requests                     Caller's own requests
    GET    /api/requests/{id}                Single request
    POST   /api/requests/{id}/transitions    Apply an action
    GET    /api/requests/{id}/audit          Audit trail

  Manager queues:
    GET    /api/manager/pending-approvals
    GET    /api/manager/pending-cancellations

  Employees:
    PUT    /api/employees/{id}               Create or update a profile (admin)
    GET    /api/employees/{id}/balances      Balances (current period created lazily)
    GET    /api/employees/{id}/working-days  Working-day preview
    PUT    /api/employees/{id}/manager       Assign manager (admin)

  Admin:
    GET    /api/admin/queue                  Requests waiting on an administrator
    PUT    /api/leave-types/{id}             Create or update a leave type
    PUT    /api/balances                     Manual single-row set
    PUT    /api/balances/override            Manual override
    POST   /api/balances/bulk                Bulk set
    POST   /api/work-schedules               Save a work schedule

  Holidays:
    GET    /api/holidays?from&to
    POST   /api/holidays
    PUT    /api/holidays/{id}/lock
    DELETE /api/holidays/{id}

REQUEST FLOW:
  1. Read the caller from context (see identity.go)
  2. Decode and validate the body (validator/v10 tags in dto.go)
  3. Call the service
  4. Serialize the response, or map the error kind onto a status

ERROR HANDLING:
  - 400: Validation errors, invalid input
  - 403: Caller may not perform the action
  - 404: Resource not found
  - 409: Request is not in a valid state (body carries currentStatus)
  - 422: No working days, insufficient balance (body carries remaining/required)
  - 500: Internal and configuration errors

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *leave.Service

	validate *validator.Validate
	logger   *zap.Logger
}

func NewHandler(svc *leave.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service:  svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.Named("api"),
	}
}

// decode reads a JSON body into dst and runs the struct validator.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// SubmitRequest files a leave request for the caller.
// POST /api/requests
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body SubmitRequestBody
	if !h.decode(w, r, &body) {
		return
	}
	start, err := generic.ParseDate(body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid startDate", err)
		return
	}
	end, err := generic.ParseDate(body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid endDate", err)
		return
	}

	req, err := h.Service.SubmitRequest(r.Context(), callerFrom(r.Context()), generic.LeaveTypeID(body.LeaveTypeID), start, end)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(*req))
}

// ListMyRequests returns the caller's requests.
// GET /api/requests
func (h *Handler) ListMyRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Service.MyRequests(r.Context(), callerFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// GetRequest returns a single request.
// GET /api/requests/{id}
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := generic.RequestID(chi.URLParam(r, "id"))
	req, err := h.Service.GetRequest(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// Transition applies an action to a request.
// POST /api/requests/{id}/transitions
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	var body TransitionBody
	if !h.decode(w, r, &body) {
		return
	}
	id := generic.RequestID(chi.URLParam(r, "id"))

	req, err := h.Service.Transition(r.Context(), callerFrom(r.Context()), id, generic.Action(body.Action), body.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// GetAudit returns the audit trail of a request.
// GET /api/requests/{id}/audit
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	id := generic.RequestID(chi.URLParam(r, "id"))
	entries, err := h.Service.AuditTrail(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AuditEntryDTO{
			ID:             e.ID,
			Action:         string(e.Action),
			PreviousStatus: string(e.PreviousStatus),
			NewStatus:      string(e.NewStatus),
			ActorID:        string(e.ActorID),
			Reason:         e.Reason,
			At:             e.At,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PendingApprovals lists PENDING_MANAGER requests of the caller's reports.
// GET /api/manager/pending-approvals
func (h *Handler) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Service.PendingApprovals(r.Context(), callerFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// PendingCancellations lists cancellation requests awaiting the caller.
// GET /api/manager/pending-cancellations
func (h *Handler) PendingCancellations(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Service.PendingCancellations(r.Context(), callerFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// AdminQueue lists requests waiting on an administrator.
// GET /api/admin/queue
func (h *Handler) AdminQueue(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Service.AdminQueue(r.Context(), callerFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// SaveEmployee creates or updates a profile.
// PUT /api/employees/{id}
func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var body EmployeeBody
	if !h.decode(w, r, &body) {
		return
	}
	emp := generic.EmployeeProfile{
		ID:             generic.EmployeeID(chi.URLParam(r, "id")),
		Name:           body.Name,
		Position:       body.Position,
		ManagerID:      generic.EmployeeID(body.ManagerID),
		WorkScheduleID: generic.ScheduleID(body.WorkScheduleID),
		TeamID:         body.TeamID,
	}
	if body.StartDate != "" {
		start, err := generic.ParseDate(body.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid startDate", err)
			return
		}
		emp.StartDate = start
	}

	saved, err := h.Service.SaveEmployee(r.Context(), callerFrom(r.Context()), emp)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*saved))
}

// GetBalances returns the employee's balances.
// GET /api/employees/{id}/balances
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	employeeID := generic.EmployeeID(chi.URLParam(r, "id"))
	balances, err := h.Service.BalancesFor(r.Context(), callerFrom(r.Context()), employeeID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PreviewWorkingDays lists the working dates of a range for an employee.
// GET /api/employees/{id}/working-days?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *Handler) PreviewWorkingDays(w http.ResponseWriter, r *http.Request) {
	employeeID := generic.EmployeeID(chi.URLParam(r, "id"))
	start, err := generic.ParseDate(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start", err)
		return
	}
	end, err := generic.ParseDate(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end", err)
		return
	}

	dates, err := h.Service.PreviewWorkingDays(r.Context(), callerFrom(r.Context()), employeeID, start, end)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dto := WorkingDaysDTO{
		EmployeeID: string(employeeID),
		Start:      start.String(),
		End:        end.String(),
		Count:      len(dates),
		Dates:      make([]string, len(dates)),
	}
	for i, d := range dates {
		dto.Dates[i] = d.String()
	}
	writeJSON(w, http.StatusOK, dto)
}

// AssignManager sets or clears the employee's manager.
// PUT /api/employees/{id}/manager
func (h *Handler) AssignManager(w http.ResponseWriter, r *http.Request) {
	var body AssignManagerBody
	if !h.decode(w, r, &body) {
		return
	}
	employeeID := generic.EmployeeID(chi.URLParam(r, "id"))

	emp, err := h.Service.AssignManager(r.Context(), callerFrom(r.Context()), employeeID, generic.EmployeeID(body.ManagerID))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// SaveLeaveType creates or updates a leave type.
// PUT /api/leave-types/{id}
func (h *Handler) SaveLeaveType(w http.ResponseWriter, r *http.Request) {
	var body LeaveTypeBody
	if !h.decode(w, r, &body) {
		return
	}
	allowance, err := decimal.NewFromString(body.DefaultAllowance)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid defaultAllowance", err)
		return
	}

	lt, err := h.Service.SaveLeaveType(r.Context(), callerFrom(r.Context()), generic.LeaveType{
		ID:               generic.LeaveTypeID(chi.URLParam(r, "id")),
		Name:             body.Name,
		DefaultAllowance: allowance,
		Cadence:          generic.Cadence(body.Cadence),
		Unit:             generic.UnitDays,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LeaveTypeDTO{
		ID:               string(lt.ID),
		Name:             lt.Name,
		DefaultAllowance: lt.DefaultAllowance.String(),
		Cadence:          string(lt.Cadence),
		Unit:             string(lt.Unit),
	})
}

// SetBalance is the manual single-row update.
// PUT /api/balances
func (h *Handler) SetBalance(w http.ResponseWriter, r *http.Request) {
	h.writeBalance(w, r, h.Service.SetBalance)
}

// OverrideBalance sets a row and flags it as a manual override.
// PUT /api/balances/override
func (h *Handler) OverrideBalance(w http.ResponseWriter, r *http.Request) {
	h.writeBalance(w, r, h.Service.OverrideBalance)
}

type balanceSetter func(ctx context.Context, caller generic.Caller, employeeID generic.EmployeeID, leaveTypeID generic.LeaveTypeID, period generic.BalancePeriod, total decimal.Decimal) (*generic.LeaveBalance, error)

func (h *Handler) writeBalance(w http.ResponseWriter, r *http.Request, set balanceSetter) {
	var body SetBalanceBody
	if !h.decode(w, r, &body) {
		return
	}
	total, err := decimal.NewFromString(body.Total)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total", err)
		return
	}
	period := generic.BalancePeriod{Year: body.Year, Month: time.Month(body.Month)}

	bal, err := set(r.Context(), callerFrom(r.Context()),
		generic.EmployeeID(body.EmployeeID), generic.LeaveTypeID(body.LeaveTypeID), period, total)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(*bal))
}

// BulkSetBalance sets every row of a leave type and year.
// POST /api/balances/bulk
func (h *Handler) BulkSetBalance(w http.ResponseWriter, r *http.Request) {
	var body BulkBalanceBody
	if !h.decode(w, r, &body) {
		return
	}
	total, err := decimal.NewFromString(body.Total)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total", err)
		return
	}

	n, err := h.Service.BulkSetBalance(r.Context(), callerFrom(r.Context()),
		generic.LeaveTypeID(body.LeaveTypeID), body.Year, total, body.ApplyToAll)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BulkResultDTO{Updated: n})
}

// SaveWorkSchedule creates or updates a work schedule.
// POST /api/work-schedules
func (h *Handler) SaveWorkSchedule(w http.ResponseWriter, r *http.Request) {
	var body WorkScheduleBody
	if !h.decode(w, r, &body) {
		return
	}

	ws, err := h.Service.SaveWorkSchedule(r.Context(), callerFrom(r.Context()), generic.WorkSchedule{
		ID:        generic.ScheduleID(body.ID),
		Name:      body.Name,
		IsDefault: body.IsDefault,
		Monday:    body.Monday,
		Tuesday:   body.Tuesday,
		Wednesday: body.Wednesday,
		Thursday:  body.Thursday,
		Friday:    body.Friday,
		Saturday:  body.Saturday,
		Sunday:    body.Sunday,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WorkScheduleDTO{
		ID:        string(ws.ID),
		Name:      ws.Name,
		IsDefault: ws.IsDefault,
		Monday:    ws.Monday,
		Tuesday:   ws.Tuesday,
		Wednesday: ws.Wednesday,
		Thursday:  ws.Thursday,
		Friday:    ws.Friday,
		Saturday:  ws.Saturday,
		Sunday:    ws.Sunday,
	})
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns holidays in [from, to]; both bounds are optional.
// GET /api/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	var from, to generic.TimePoint
	if raw := r.URL.Query().Get("from"); raw != "" {
		d, err := generic.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from", err)
			return
		}
		from = d
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		d, err := generic.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to", err)
			return
		}
		to = d
	}

	holidays, err := h.Service.ListHolidays(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = toHolidayDTO(hol)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveHoliday creates or updates a holiday.
// POST /api/holidays
func (h *Handler) SaveHoliday(w http.ResponseWriter, r *http.Request) {
	var body HolidayBody
	if !h.decode(w, r, &body) {
		return
	}
	date, err := generic.ParseDate(body.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	saved, err := h.Service.SaveHoliday(r.Context(), callerFrom(r.Context()), generic.Holiday{
		ID:           generic.HolidayID(body.ID),
		Date:         date,
		Name:         body.Name,
		Scope:        generic.HolidayScope(body.Scope),
		TeamID:       body.TeamID,
		EmployeeID:   generic.EmployeeID(body.EmployeeID),
		RepeatWeekly: body.RepeatWeekly,
		Locked:       body.Locked,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(*saved))
}

// LockHoliday locks or unlocks a holiday.
// PUT /api/holidays/{id}/lock
func (h *Handler) LockHoliday(w http.ResponseWriter, r *http.Request) {
	var body HolidayLockBody
	if !h.decode(w, r, &body) {
		return
	}
	id := generic.HolidayID(chi.URLParam(r, "id"))

	saved, err := h.Service.SetHolidayLock(r.Context(), callerFrom(r.Context()), id, body.Locked)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHolidayDTO(*saved))
}

// DeleteHoliday removes an unlocked holiday.
// DELETE /api/holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	id := generic.HolidayID(chi.URLParam(r, "id"))
	if err := h.Service.DeleteHoliday(r.Context(), callerFrom(r.Context()), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Healthz reports liveness; the pinger, if any, checks the database.
func (h *Handler) Healthz(ping func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r); err != nil {
				h.logger.Error("health check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": fmt.Sprint(err)})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
