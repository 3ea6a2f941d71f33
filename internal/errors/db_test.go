package errors

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapDBError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{"deadline exceeded", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeCanceled},
		{"no rows", pgx.ErrNoRows, ErrCodeNotFound},
		{
			"unique violation",
			&pgconn.PgError{Code: pgerrcode.UniqueViolation, ColumnName: "sid"},
			ErrCodeConflict,
		},
		{
			"not null violation",
			&pgconn.PgError{Code: pgerrcode.NotNullViolation, ColumnName: "access_token"},
			ErrCodeValidation,
		},
		{
			"check violation",
			&pgconn.PgError{Code: pgerrcode.CheckViolation},
			ErrCodeValidation,
		},
		{
			"other pg error",
			&pgconn.PgError{Code: pgerrcode.SerializationFailure},
			ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapDBError(tt.err)
			assert.Equal(t, tt.wantCode, GetCode(mapped))
		})
	}
}

func TestMapDBError_Passthrough(t *testing.T) {
	require.NoError(t, MapDBError(nil))

	plain := stderrors.New("driver hiccup")
	assert.Equal(t, plain, MapDBError(plain))
}

func TestMapDBError_PreservesCause(t *testing.T) {
	pgErr := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ColumnName: "sid"}
	mapped := MapDBError(pgErr)

	var out *pgconn.PgError
	require.True(t, stderrors.As(mapped, &out))
	assert.Equal(t, "sid", GetField(mapped))
}
