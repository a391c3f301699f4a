package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, ToDomainError(nil))
		assert.NoError(t, MapError(nil))
	})

	t.Run("domain error passes through", func(t *testing.T) {
		err := fmt.Errorf("wrapped: %w", NewConflict("dup", nil))
		de := ToDomainError(err)
		assert.Equal(t, "CONFLICT", de.Code)
		assert.Equal(t, http.StatusConflict, de.HTTPStatus)
	})

	t.Run("no rows becomes not found", func(t *testing.T) {
		de := ToDomainError(fmt.Errorf("load ticket: %w", pgx.ErrNoRows))
		assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
		assert.True(t, IsNotFound(pgx.ErrNoRows))
	})

	t.Run("malformed uuid becomes not found", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}
		de := ToDomainError(fmt.Errorf("load ticket: %w", pgErr))
		assert.Equal(t, "NOT_FOUND", de.Code)
		assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
		assert.True(t, IsNotFound(pgErr))
	})

	t.Run("unique violation becomes conflict", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
		de := ToDomainError(pgErr)
		assert.Equal(t, "CONFLICT", de.Code)
		assert.Equal(t, "users_email_key", de.Details["constraint"])
		assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", pgErr)))
	})

	t.Run("anything else is opaque", func(t *testing.T) {
		de := ToDomainError(errors.New("connection reset by peer"))
		assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
		assert.Equal(t, "internal server error", de.Message)
		assert.ErrorContains(t, de, "connection reset by peer")
	})
}

func TestIsNotFound_DomainError(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFound("ticket", nil)))
	assert.False(t, IsNotFound(NewForbidden("nope")))
}
