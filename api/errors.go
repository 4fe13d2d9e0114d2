package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/warp/leave-engine/generic"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`

	// Insufficient balance
	Remaining string `json:"remaining,omitempty"`
	Required  string `json:"required,omitempty"`

	// State conflict: the status the request is in now
	Current string `json:"currentStatus,omitempty"`
}

// errorStatus maps an engine error kind onto an HTTP status.
func errorStatus(kind generic.Kind) int {
	switch kind {
	case generic.KindValidation:
		return http.StatusBadRequest
	case generic.KindAuthorization:
		return http.StatusForbidden
	case generic.KindNotFound:
		return http.StatusNotFound
	case generic.KindNoWorkingDays, generic.KindInsufficientBalance:
		return http.StatusUnprocessableEntity
	case generic.KindStateConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders an error returned by the leave service.
// Internal and configuration errors are logged by the service; their
// text is not echoed to clients.
func writeServiceError(w http.ResponseWriter, err error) {
	kind := generic.KindOf(err)
	resp := ErrorResponse{Error: err.Error(), Kind: string(kind)}

	var (
		ve  *generic.ValidationError
		ibe *generic.InsufficientBalanceError
		sce *generic.StateConflictError
	)
	switch {
	case errors.As(err, &ve):
		resp.Field = ve.Field
	case errors.As(err, &ibe):
		resp.Remaining = ibe.Remaining.String()
		resp.Required = ibe.Required.String()
	case errors.As(err, &sce):
		resp.Current = string(sce.Current)
	}
	if kind == generic.KindInternal || kind == generic.KindConfiguration {
		resp.Error = "internal error"
	}
	writeJSON(w, errorStatus(kind), resp)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message, Kind: string(generic.KindValidation)}
	if err != nil {
		resp.Details = err.Error()
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		resp.Field = verrs[0].Field()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
