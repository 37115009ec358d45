package lowcoder

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLowcoderErrorFormatting(t *testing.T) {
	err := NewValidationError("name", ErrCodeNameTooShort, "must be at least 3 characters")
	assert.Equal(t, "[validation:NAME_TOO_SHORT] field 'name': must be at least 3 characters", err.Error())

	nf := NewNotFoundError("table", 42)
	assert.Equal(t, "[not_found:ENTITY_NOT_FOUND] table 42 not found", nf.Error())
	assert.Equal(t, map[string]any{"entity": "table", "id": int64(42)}, nf.Details)
}

func TestLowcoderErrorCause(t *testing.T) {
	cause := errors.New("exit status 1")
	err := NewGenerationError(ErrCodeTemplateExpansion, "expand", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[generation:TEMPLATE_EXPANSION_FAILED] generation failed at expand: exit status 1", err.Error())
	assert.Equal(t, "expand", err.Details["stage"])
}

func TestErrorTypePredicates(t *testing.T) {
	wrapped := fmt.Errorf("delete table: %w", NewNotFoundError("table", 7))

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.True(t, IsInvariant(NewInvariantError(ErrCodeDuplicateIndex, "index 2 used twice")))
	assert.True(t, IsValidation(NewLowcoderError(ErrorTypeValidation, ErrCodeValidationFailed, "bad").WithField("x")))
	assert.False(t, IsGeneration(errors.New("plain")))
}

func TestLowcoderErrorBuilders(t *testing.T) {
	err := NewLowcoderError(ErrorTypeConflict, ErrCodeDuplicateMainEntity, "second main entity").
		WithDetail("schema", int64(3)).
		WithField("isMainEntity")

	assert.Equal(t, "isMainEntity", err.Field)
	assert.Equal(t, int64(3), err.Details["schema"])
	assert.Nil(t, err.Unwrap())
}
