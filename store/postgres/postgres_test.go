package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	feedbackAuth "github.com/MrEthical07/feedbackAuth"
	"github.com/MrEthical07/feedbackAuth/permission"
)

type testDependencies struct {
	store   *Store
	mock    sqlmock.Sqlmock
	cleanup func()
}

func setupTest(t *testing.T) *testDependencies {
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Error mocking DB")

	return &testDependencies{
		store: New(db),
		mock:  mock,
		cleanup: func() {
			assert.NoError(t, mock.ExpectationsWereMet(), "Expectations were not met")
			db.Close()
		},
	}
}

var columns = []string{
	"id", "email", "username", "first_name", "last_name", "role", "is_active", "is_email_verified",
	"email_notifications", "bio", "phone_number", "company", "job_title", "password_hash",
	"last_login", "created_at", "updated_at",
}

func sampleUser() *feedbackAuth.UserRecord {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &feedbackAuth.UserRecord{
		ID:                 "3f1c2d4e-0000-4000-8000-000000000001",
		Email:              "alice@example.com",
		Username:           "alice",
		FirstName:          "Alice",
		LastName:           "Smith",
		Role:               permission.RoleContributor,
		IsActive:           true,
		EmailNotifications: true,
		PasswordHash:       "$argon2id$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		CreatedAt:          created,
		UpdatedAt:          created,
	}
}

func userRow(mock sqlmock.Sqlmock, u *feedbackAuth.UserRecord) *sqlmock.Rows {
	var lastLogin any
	if u.LastLogin != nil {
		lastLogin = *u.LastLogin
	}
	return mock.NewRows(columns).AddRow(
		u.ID, u.Email, u.Username, u.FirstName, u.LastName, string(u.Role), u.IsActive,
		u.IsEmailVerified, u.EmailNotifications, u.Bio, u.PhoneNumber, u.Company, u.JobTitle,
		u.PasswordHash, lastLogin, u.CreatedAt, u.UpdatedAt,
	)
}

func TestCreate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		execErr       error
		expectedError error
	}{
		{name: "Success"},
		{name: "Unique violation", execErr: &pq.Error{Code: "23505"}, expectedError: feedbackAuth.ErrAlreadyRegistered},
		{name: "Database error", execErr: errors.New("db error"), expectedError: feedbackAuth.ErrStoreUnavailable},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			deps := setupTest(t)
			defer deps.cleanup()

			u := sampleUser()
			u.Email = "Alice@Example.com"
			exp := deps.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (")).
				WithArgs(u.ID, "alice@example.com", u.Username, u.FirstName, u.LastName, "contributor",
					true, false, true, "", "", "", "", u.PasswordHash, sqlmock.AnyArg(), u.CreatedAt, u.UpdatedAt)
			if tc.execErr != nil {
				exp.WillReturnError(tc.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err := deps.store.Create(context.Background(), u)
			if tc.expectedError == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.expectedError)
		})
	}
}

func TestGetByEmail(t *testing.T) {
	t.Parallel()

	t.Run("Found", func(t *testing.T) {
		t.Parallel()
		deps := setupTest(t)
		defer deps.cleanup()

		want := sampleUser()
		login := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
		want.LastLogin = &login

		deps.mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
			WithArgs("alice@example.com").
			WillReturnRows(userRow(deps.mock, want))

		got, err := deps.store.GetByEmail(context.Background(), "ALICE@example.com")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("Not found", func(t *testing.T) {
		t.Parallel()
		deps := setupTest(t)
		defer deps.cleanup()

		deps.mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
			WithArgs("nobody@example.com").
			WillReturnError(sql.ErrNoRows)

		_, err := deps.store.GetByEmail(context.Background(), "nobody@example.com")
		assert.ErrorIs(t, err, feedbackAuth.ErrUserNotFound)
	})
}

func TestUpdateMissingRow(t *testing.T) {
	t.Parallel()
	deps := setupTest(t)
	defer deps.cleanup()

	u := sampleUser()
	deps.mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET email = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, deps.store.Update(context.Background(), u), feedbackAuth.ErrUserNotFound)
}

func TestTouchLastLogin(t *testing.T) {
	t.Parallel()
	deps := setupTest(t)
	defer deps.cleanup()

	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	deps.mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET last_login = $2 WHERE id = $1")).
		WithArgs("id-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, deps.store.TouchLastLogin(context.Background(), "id-1", at))
}

func TestListQuery(t *testing.T) {
	t.Parallel()

	query, args := listQuery(feedbackAuth.UserFilter{
		ActiveOnly: true,
		Roles:      []permission.Role{permission.RoleContributor},
		Search:     "50%_off",
		Ordering:   "-last_login",
		Limit:      10,
		Offset:     20,
	})

	assert.Contains(t, query, "WHERE is_active = TRUE AND role = ANY($1) AND (email ILIKE $2 OR")
	assert.Contains(t, query, "ORDER BY last_login DESC, id ASC LIMIT $3 OFFSET $4")
	require.Len(t, args, 4)
	assert.Equal(t, `%50\%\_off%`, args[1])
	assert.Equal(t, 10, args[2])
	assert.Equal(t, 20, args[3])

	query, args = listQuery(feedbackAuth.UserFilter{Ordering: "password_hash"})
	assert.NotContains(t, query, "WHERE")
	assert.Contains(t, query, "ORDER BY created_at DESC, id ASC")
	assert.Empty(t, args)
}

func TestList(t *testing.T) {
	t.Parallel()
	deps := setupTest(t)
	defer deps.cleanup()

	u := sampleUser()
	deps.mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE is_active = TRUE ORDER BY created_at DESC")).
		WillReturnRows(userRow(deps.mock, u))

	users, err := deps.store.List(context.Background(), feedbackAuth.UserFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, u.Email, users[0].Email)
}

func TestCounts(t *testing.T) {
	t.Parallel()
	deps := setupTest(t)
	defer deps.cleanup()

	deps.mock.ExpectQuery(regexp.QuoteMeta("COUNT(*) FILTER (WHERE is_active)")).
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e", "f", "g", "h"}).
			AddRow(10, 8, 2, 6, 4, 1, 2, 5))

	c, err := deps.store.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, feedbackAuth.UserCounts{
		Total: 10, Active: 8, Inactive: 2, Verified: 6, Unverified: 4,
		Admins: 1, Moderators: 2, Contributors: 5,
	}, c)
}
