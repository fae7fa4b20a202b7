package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, CodeUnknown},
		{"auth failed", ErrAuthFailed, CodeAuthFailed},
		{"nonce mismatch beats auth failed", ErrNonceMismatch, CodeNonceMismatch},
		{"forbidden", ErrForbidden, CodeForbidden},
		{"invalid context", ErrInvalidContext, CodeInvalidContext},
		{"no relationship", ErrNoRelationship, CodeNoRelationship},
		{"principal not found", ErrPrincipalNotFound, CodeNotFound},
		{"wrapped with fmt", fmt.Errorf("turn: %w", ErrServiceFailure), CodeServiceFailure},
		{"unknown", fmt.Errorf("boom"), CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeOf(tt.err))
		})
	}
}

func TestErrorCodeOf_DomainError(t *testing.T) {
	err := NewDomainError("Dispatcher.Handle", ErrForbidden, "listCustomers")
	assert.Equal(t, CodeForbidden, ErrorCodeOf(err))
}

func TestDomainError_Format(t *testing.T) {
	err := NewDomainError("Registry.Build", ErrDuplicate, "listCustomers")
	assert.Equal(t, "Registry.Build: listCustomers: duplicate", err.Error())
	assert.ErrorIs(t, err, ErrDuplicate)

	bare := NewDomainError("Registry.Build", ErrDuplicate, "")
	assert.Equal(t, "Registry.Build: duplicate", bare.Error())
}

func TestNonceMismatch_IsAuthFailure(t *testing.T) {
	// Callers testing for the broad category still match.
	assert.ErrorIs(t, ErrNonceMismatch, ErrAuthFailed)
}

func TestWrapOp(t *testing.T) {
	assert.NoError(t, WrapOp("op", nil))
	err := WrapOp("classify", ErrServiceFailure)
	assert.ErrorIs(t, err, ErrServiceFailure)
	assert.Contains(t, err.Error(), "classify")
}
