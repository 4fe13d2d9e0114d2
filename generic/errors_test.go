package generic_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/leave-engine/generic"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		kind generic.Kind
	}{
		{&generic.ValidationError{Field: "x", Message: "bad"}, generic.KindValidation},
		{&generic.AuthorizationError{ActorID: "emp-1", Action: "APPROVE_ADMIN"}, generic.KindAuthorization},
		{&generic.NotFoundError{Resource: "leave request", ID: "r-1"}, generic.KindNotFound},
		{&generic.NoWorkingDaysError{}, generic.KindNoWorkingDays},
		{&generic.InsufficientBalanceError{Remaining: decimal.NewFromInt(3), Required: decimal.NewFromInt(4)}, generic.KindInsufficientBalance},
		{&generic.ConfigurationError{Message: "no default work schedule found"}, generic.KindConfiguration},
		{&generic.StateConflictError{Current: generic.StatusDenied}, generic.KindStateConflict},
		{fmt.Errorf("update: %w", generic.ErrConcurrentModification), generic.KindStateConflict},
		{errors.New("disk on fire"), generic.KindInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.kind, generic.KindOf(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, generic.IsRetryable(generic.ErrConcurrentModification))
	assert.False(t, generic.IsRetryable(&generic.ValidationError{}))
	assert.True(t, generic.IsClientError(&generic.NoWorkingDaysError{}))
	assert.False(t, generic.IsClientError(&generic.ConfigurationError{}))
	assert.True(t, generic.IsNotFound(&generic.NotFoundError{}))
}

func TestInsufficientBalanceError_Message(t *testing.T) {
	err := &generic.InsufficientBalanceError{Remaining: decimal.NewFromInt(3), Required: decimal.NewFromInt(4)}

	assert.Equal(t, "insufficient leave balance: remaining 3, requested working days 4", err.Error())
}
