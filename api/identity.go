package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/warp/leave-engine/generic"
)

const (
	HeaderEmployeeID = "X-Employee-ID"
	HeaderRole       = "X-Role"
)

type callerKey struct{}

// Identify reads the caller from the session headers set by the gateway.
// A missing role means EMPLOYEE; an unknown role is refused. A missing
// employee id is left to the service, which refuses anonymous actions.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := generic.Caller{
			ID:   generic.EmployeeID(strings.TrimSpace(r.Header.Get(HeaderEmployeeID))),
			Role: generic.RoleEmployee,
		}
		if raw := strings.TrimSpace(r.Header.Get(HeaderRole)); raw != "" {
			role := generic.Role(strings.ToUpper(raw))
			switch role {
			case generic.RoleEmployee, generic.RoleManager, generic.RoleAdmin, generic.RoleSuperAdmin:
				caller.Role = role
			default:
				writeError(w, http.StatusBadRequest, "Unknown role", nil)
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

func callerFrom(ctx context.Context) generic.Caller {
	caller, _ := ctx.Value(callerKey{}).(generic.Caller)
	return caller
}
