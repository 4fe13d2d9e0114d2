package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	c, err := NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	return c
}

func TestCollector_Transitions(t *testing.T) {
	c := newTestCollector(t)

	c.TransitionSucceeded(generic.ActionSubmit, "", generic.StatusPendingManager)
	c.TransitionSucceeded(generic.ActionApproveManager, generic.StatusPendingManager, generic.StatusApprovedByManager)
	c.TransitionSucceeded(generic.ActionApproveManager, generic.StatusPendingManager, generic.StatusApprovedByManager)
	c.TransitionFailed(generic.ActionApproveAdmin, generic.KindInsufficientBalance)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.transitions.WithLabelValues("SUBMIT", "NONE", "PENDING_MANAGER")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.transitions.WithLabelValues("APPROVE_MANAGER", "PENDING_MANAGER", "APPROVED_BY_MANAGER")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failures.WithLabelValues("APPROVE_ADMIN", "insufficient_balance")))
}

func TestCollector_BalanceAdjusted(t *testing.T) {
	c := newTestCollector(t)

	c.BalanceAdjusted("reserve", decimal.NewFromInt(5))
	c.BalanceAdjusted("restore", decimal.RequireFromString("2.5"))
	c.BalanceAdjusted("override", decimal.NewFromInt(30))

	assert.Equal(t, 5.0, testutil.ToFloat64(c.balanceUnits.WithLabelValues("reserve")))
	assert.Equal(t, 2.5, testutil.ToFloat64(c.balanceUnits.WithLabelValues("restore")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.balanceChanges.WithLabelValues("override")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.balanceUnits), "override moves no units")
}

func TestCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg)
	require.NoError(t, err)

	_, err = NewCollector(reg)
	assert.Error(t, err)
}

func TestCollector_MiddlewareUsesRoutePattern(t *testing.T) {
	c := newTestCollector(t)

	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/api/requests/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Method(http.MethodGet, "/metrics", c.Handler())

	for _, id := range []string{"r-1", "r-2", "r-3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/requests/"+id, nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/api/requests/{id}", "404")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "leave_http_request_duration_seconds"))
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
