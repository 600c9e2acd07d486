package tenants

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestClassifyUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			"membership unique violation",
			&pgconn.PgError{Code: "23505", ConstraintName: "members_user_id_key"},
			ErrDuplicateMembership,
		},
		{
			"slug unique violation",
			&pgconn.PgError{Code: "23505", ConstraintName: "organizations_slug_key"},
			ErrDuplicateSlug,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, classifyUniqueViolation(tt.err), tt.want)
		})
	}
}

func TestClassifyUniqueViolation_OtherErrorsPassThrough(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unrelated unique constraint", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}},
		{"foreign key violation", &pgconn.PgError{Code: "23503", ConstraintName: "members_organization_id_fkey"}},
		{"plain error", errors.New("connection reset")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyUniqueViolation(tt.err)
			require.Error(t, got)
			require.NotErrorIs(t, got, ErrDuplicateMembership)
			require.NotErrorIs(t, got, ErrDuplicateSlug)
			require.ErrorIs(t, got, tt.err)
		})
	}
}
