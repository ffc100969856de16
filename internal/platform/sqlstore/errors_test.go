package sqlstore_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/phrazzld/genjobs/internal/platform/sqlstore"
	"github.com/phrazzld/genjobs/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	other := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"pg unique", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, store.ErrDuplicate},
		{"pg check", &pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "status_check"}, store.ErrInvalidEntity},
		{"pg not null", &pgconn.PgError{Code: pgerrcode.NotNullViolation, ColumnName: "event_name"}, store.ErrInvalidEntity},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, store.ErrDuplicate},
		{"sqlite check", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintCheck}, store.ErrInvalidEntity},
		{"wrapped pg unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation}), store.ErrDuplicate},
		{"unmapped", other, other},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := sqlstore.MapError(tc.err)
			if tc.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tc.want)
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, sqlstore.IsUniqueViolation(&pgconn.PgError{Code: pgerrcode.UniqueViolation}))
	assert.True(t, sqlstore.IsUniqueViolation(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}))
	assert.False(t, sqlstore.IsUniqueViolation(&pgconn.PgError{Code: pgerrcode.CheckViolation}))
	assert.False(t, sqlstore.IsUniqueViolation(errors.New("nope")))
	assert.True(t, sqlstore.IsConnectionError(&pgconn.PgError{Code: pgerrcode.ConnectionFailure}))
}
