package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelMatching(t *testing.T) {
	err := fmt.Errorf("create ticket: %w", NewValidationError("title required", nil))

	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrAuthRequired)
	assert.ErrorIs(t, NewAuthRequired(), ErrAuthRequired)
	assert.ErrorIs(t, NewInvalidTransition("closed", "open"), ErrInvalidTransition)
}

func TestPersistenceErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewPersistenceError("insert ticket", cause)

	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "insert ticket failed: connection reset", err.Error())
}

func TestToDomainError(t *testing.T) {
	plain := ToDomainError(errors.New("boom"))
	require.NotNil(t, plain)
	assert.Equal(t, CodeInternal, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.HTTPStatus)

	notFound := ToDomainError(NewNotFound("ticket", map[string]any{"ticket_id": "t1"}))
	assert.Equal(t, CodeNotFound, notFound.Code)
	assert.Equal(t, http.StatusNotFound, notFound.HTTPStatus)
	assert.Equal(t, "t1", notFound.Details["ticket_id"])

	assert.Nil(t, ToDomainError(nil))
	assert.NoError(t, MapError(nil))
}

func TestWrapPersistence(t *testing.T) {
	assert.NoError(t, WrapPersistence("noop", nil))

	forbidden := NewForbidden("nope")
	assert.Same(t, forbidden, WrapPersistence("assign ticket", forbidden))

	cause := errors.New("connection refused")
	wrapped := WrapPersistence("assign ticket", cause)
	assert.ErrorIs(t, wrapped, ErrPersistence)
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "assign ticket failed: connection refused", wrapped.Error())
}
