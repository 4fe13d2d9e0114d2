/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO:  Response types returned to clients
  - *Body: Request body types from clients

VALIDATION:
  Request bodies carry validator/v10 struct tags. Handlers run the
  validator before calling the service; the service still validates
  everything it depends on.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// REQUEST BODIES
// =============================================================================

type SubmitRequestBody struct {
	LeaveTypeID string `json:"leaveTypeId" validate:"required"`
	StartDate   string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"endDate" validate:"required,datetime=2006-01-02"`
}

type TransitionBody struct {
	Action string `json:"action" validate:"required,oneof=APPROVE_MANAGER APPROVE_ADMIN DENY CANCEL REQUEST_CANCELLATION APPROVE_CANCELLATION REJECT_CANCELLATION"`
	Reason string `json:"reason" validate:"max=1000"`
}

// SetBalanceBody addresses one balance row. Month is zero for annual
// leave types.
type SetBalanceBody struct {
	EmployeeID  string `json:"employeeId" validate:"required"`
	LeaveTypeID string `json:"leaveTypeId" validate:"required"`
	Year        int    `json:"year" validate:"required,gte=1970,lte=9999"`
	Month       int    `json:"month" validate:"gte=0,lte=12"`
	Total       string `json:"total" validate:"required,numeric"`
}

type BulkBalanceBody struct {
	LeaveTypeID string `json:"leaveTypeId" validate:"required"`
	Year        int    `json:"year" validate:"required,gte=1970,lte=9999"`
	Total       string `json:"total" validate:"required,numeric"`
	ApplyToAll  bool   `json:"applyToAll"`
}

type AssignManagerBody struct {
	// Empty clears the manager.
	ManagerID string `json:"managerId"`
}

type EmployeeBody struct {
	Name           string `json:"name" validate:"required"`
	Position       string `json:"position"`
	StartDate      string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	ManagerID      string `json:"managerId"`
	WorkScheduleID string `json:"workScheduleId"`
	TeamID         string `json:"teamId"`
}

type LeaveTypeBody struct {
	Name             string `json:"name" validate:"required"`
	DefaultAllowance string `json:"defaultAllowance" validate:"required,numeric"`
	Cadence          string `json:"cadence" validate:"required,oneof=ANNUAL MONTHLY"`
}

type HolidayBody struct {
	ID           string `json:"id"`
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	Name         string `json:"name" validate:"required,max=200"`
	Scope        string `json:"scope" validate:"required,oneof=ORGANIZATION TEAM EMPLOYEE"`
	TeamID       string `json:"teamId" validate:"required_if=Scope TEAM"`
	EmployeeID   string `json:"employeeId" validate:"required_if=Scope EMPLOYEE"`
	RepeatWeekly bool   `json:"repeatWeekly"`
	Locked       bool   `json:"locked"`
}

type HolidayLockBody struct {
	Locked bool `json:"locked"`
}

type WorkScheduleBody struct {
	ID        string `json:"id"`
	Name      string `json:"name" validate:"required"`
	IsDefault bool   `json:"isDefault"`
	Monday    bool   `json:"monday"`
	Tuesday   bool   `json:"tuesday"`
	Wednesday bool   `json:"wednesday"`
	Thursday  bool   `json:"thursday"`
	Friday    bool   `json:"friday"`
	Saturday  bool   `json:"saturday"`
	Sunday    bool   `json:"sunday"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type RequestDTO struct {
	ID                       string     `json:"id"`
	EmployeeID               string     `json:"employeeId"`
	LeaveTypeID              string     `json:"leaveTypeId"`
	StartDate                string     `json:"startDate"`
	EndDate                  string     `json:"endDate"`
	Status                   string     `json:"status"`
	DenialReason             string     `json:"denialReason,omitempty"`
	SkipReason               string     `json:"skipReason,omitempty"`
	CancellationReason       string     `json:"cancellationReason,omitempty"`
	StatusBeforeCancellation string     `json:"statusBeforeCancellation,omitempty"`
	ManagerApprovedBy        string     `json:"managerApprovedBy,omitempty"`
	ManagerApprovedAt        *time.Time `json:"managerApprovedAt,omitempty"`
	AdminApprovedBy          string     `json:"adminApprovedBy,omitempty"`
	AdminApprovedAt          *time.Time `json:"adminApprovedAt,omitempty"`
	DeniedBy                 string     `json:"deniedBy,omitempty"`
	DeniedAt                 *time.Time `json:"deniedAt,omitempty"`
	CancelledBy              string     `json:"cancelledBy,omitempty"`
	CancelledAt              *time.Time `json:"cancelledAt,omitempty"`
	RequestedDays            int        `json:"requestedDays"`
	DeductedDays             string     `json:"deductedDays"`
	Version                  int        `json:"version"`
	CreatedAt                time.Time  `json:"createdAt"`
	UpdatedAt                time.Time  `json:"updatedAt"`
}

func toRequestDTO(r generic.LeaveRequest) RequestDTO {
	return RequestDTO{
		ID:                       string(r.ID),
		EmployeeID:               string(r.EmployeeID),
		LeaveTypeID:              string(r.LeaveTypeID),
		StartDate:                r.StartDate.String(),
		EndDate:                  r.EndDate.String(),
		Status:                   string(r.Status),
		DenialReason:             r.DenialReason,
		SkipReason:               r.SkipReason,
		CancellationReason:       r.CancellationReason,
		StatusBeforeCancellation: string(r.StatusBeforeCancellation),
		ManagerApprovedBy:        string(r.ManagerApprovedBy),
		ManagerApprovedAt:        r.ManagerApprovedAt,
		AdminApprovedBy:          string(r.AdminApprovedBy),
		AdminApprovedAt:          r.AdminApprovedAt,
		DeniedBy:                 string(r.DeniedBy),
		DeniedAt:                 r.DeniedAt,
		CancelledBy:              string(r.CancelledBy),
		CancelledAt:              r.CancelledAt,
		RequestedDays:            r.RequestedDays,
		DeductedDays:             r.DeductedDays.String(),
		Version:                  r.Version,
		CreatedAt:                r.CreatedAt,
		UpdatedAt:                r.UpdatedAt,
	}
}

func toRequestDTOs(rs []generic.LeaveRequest) []RequestDTO {
	dtos := make([]RequestDTO, len(rs))
	for i, r := range rs {
		dtos[i] = toRequestDTO(r)
	}
	return dtos
}

type AuditEntryDTO struct {
	ID             string    `json:"id"`
	Action         string    `json:"action"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	NewStatus      string    `json:"newStatus"`
	ActorID        string    `json:"actorId"`
	Reason         string    `json:"reason,omitempty"`
	At             time.Time `json:"at"`
}

type BalanceDTO struct {
	ID               string `json:"id"`
	EmployeeID       string `json:"employeeId"`
	LeaveTypeID      string `json:"leaveTypeId"`
	Period           string `json:"period"`
	Year             int    `json:"year"`
	Month            int    `json:"month,omitempty"`
	Total            string `json:"total"`
	Remaining        string `json:"remaining"`
	Used             string `json:"used"`
	IsManualOverride bool   `json:"isManualOverride"`
	Version          int    `json:"version"`
}

func toBalanceDTO(b generic.LeaveBalance) BalanceDTO {
	return BalanceDTO{
		ID:               string(b.ID),
		EmployeeID:       string(b.EmployeeID),
		LeaveTypeID:      string(b.LeaveTypeID),
		Period:           b.Period.String(),
		Year:             b.Period.Year,
		Month:            int(b.Period.Month),
		Total:            b.Total.String(),
		Remaining:        b.Remaining.String(),
		Used:             b.Used().String(),
		IsManualOverride: b.IsManualOverride,
		Version:          b.Version,
	}
}

type BulkResultDTO struct {
	Updated int `json:"updated"`
}

type EmployeeDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Position       string `json:"position,omitempty"`
	StartDate      string `json:"startDate,omitempty"`
	ManagerID      string `json:"managerId,omitempty"`
	WorkScheduleID string `json:"workScheduleId,omitempty"`
	TeamID         string `json:"teamId,omitempty"`
}

func toEmployeeDTO(e generic.EmployeeProfile) EmployeeDTO {
	dto := EmployeeDTO{
		ID:             string(e.ID),
		Name:           e.Name,
		Position:       e.Position,
		ManagerID:      string(e.ManagerID),
		WorkScheduleID: string(e.WorkScheduleID),
		TeamID:         e.TeamID,
	}
	if !e.StartDate.IsZero() {
		dto.StartDate = e.StartDate.String()
	}
	return dto
}

type LeaveTypeDTO struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	DefaultAllowance string `json:"defaultAllowance"`
	Cadence          string `json:"cadence"`
	Unit             string `json:"unit"`
}

type HolidayDTO struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	Name         string `json:"name"`
	Scope        string `json:"scope"`
	TeamID       string `json:"teamId,omitempty"`
	EmployeeID   string `json:"employeeId,omitempty"`
	RepeatWeekly bool   `json:"repeatWeekly"`
	Locked       bool   `json:"locked"`
	CreatedBy    string `json:"createdBy,omitempty"`
}

func toHolidayDTO(h generic.Holiday) HolidayDTO {
	return HolidayDTO{
		ID:           string(h.ID),
		Date:         h.Date.String(),
		Name:         h.Name,
		Scope:        string(h.Scope),
		TeamID:       h.TeamID,
		EmployeeID:   string(h.EmployeeID),
		RepeatWeekly: h.RepeatWeekly,
		Locked:       h.Locked,
		CreatedBy:    string(h.CreatedBy),
	}
}

type WorkScheduleDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`
	Monday    bool   `json:"monday"`
	Tuesday   bool   `json:"tuesday"`
	Wednesday bool   `json:"wednesday"`
	Thursday  bool   `json:"thursday"`
	Friday    bool   `json:"friday"`
	Saturday  bool   `json:"saturday"`
	Sunday    bool   `json:"sunday"`
}

type WorkingDaysDTO struct {
	EmployeeID string   `json:"employeeId"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Count      int      `json:"count"`
	Dates      []string `json:"dates"`
}
