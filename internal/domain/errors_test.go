package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorIsMatchesByCode(t *testing.T) {
	err := PlanError(ErrCodeDivisionByZero, "boom", nil)
	assert.True(t, errors.Is(err, &DomainError{Code: ErrCodeDivisionByZero}))
	assert.False(t, errors.Is(err, &DomainError{Code: ErrCodeNotFound}))
}

func TestDomainErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := InterfaceError(ErrCodeAdapterUnavailable, "adapter down", cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestInvariantViolatedCategory(t *testing.T) {
	err := InvariantViolated("should never happen")
	assert.Equal(t, CategoryInvariant, err.Category)
}
