package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrappedSentinel(t *testing.T) {
	errGone := NotFound("order not found")
	wrapped := fmt.Errorf("load order: %w", errGone)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, errGone))
	assert.Equal(t, "order not found", Message(wrapped))
}

func TestKindOfPlainError(t *testing.T) {
	err := errors.New("connection reset")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "", Message(err))
}

func TestValidationFormatsMessage(t *testing.T) {
	err := Validation("quantity must be >= 1, got %d", 0)

	assert.Equal(t, KindValidation, err.Kind)
	assert.Equal(t, "quantity must be >= 1, got 0", err.Error())
	assert.Equal(t, "validation", err.Kind.String())
}
