// Package postgres is a feedbackAuth.UserStore on PostgreSQL via lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	feedbackAuth "github.com/MrEthical07/feedbackAuth"
	"github.com/MrEthical07/feedbackAuth/permission"
)

// Schema creates the users table. Migrations are left to the operator;
// Store.Migrate only runs this idempotent statement.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id                  UUID PRIMARY KEY,
    email               VARCHAR(254) NOT NULL UNIQUE,
    username            VARCHAR(150) NOT NULL UNIQUE,
    first_name          VARCHAR(150) NOT NULL,
    last_name           VARCHAR(150) NOT NULL,
    role                VARCHAR(20)  NOT NULL DEFAULT 'contributor',
    is_active           BOOLEAN      NOT NULL DEFAULT TRUE,
    is_email_verified   BOOLEAN      NOT NULL DEFAULT FALSE,
    email_notifications BOOLEAN      NOT NULL DEFAULT TRUE,
    bio                 VARCHAR(500) NOT NULL DEFAULT '',
    phone_number        VARCHAR(17)  NOT NULL DEFAULT '',
    company             VARCHAR(255) NOT NULL DEFAULT '',
    job_title           VARCHAR(255) NOT NULL DEFAULT '',
    password_hash       TEXT         NOT NULL,
    last_login          TIMESTAMPTZ,
    created_at          TIMESTAMPTZ  NOT NULL,
    updated_at          TIMESTAMPTZ  NOT NULL
)`

const uniqueViolation = "23505"

const userColumns = `id, email, username, first_name, last_name, role, is_active, is_email_verified,
email_notifications, bio, phone_number, company, job_title, password_hash, last_login, created_at, updated_at`

var orderColumns = map[string]string{
	"created_at": "created_at",
	"email":      "email",
	"first_name": "first_name",
	"last_name":  "last_name",
	"last_login": "last_login",
}

type Store struct {
	db *sql.DB
}

var _ feedbackAuth.UserStore = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", feedbackAuth.ErrStoreUnavailable, err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", feedbackAuth.ErrStoreUnavailable, err)
	}
	return New(db), nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return wrap(err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, u *feedbackAuth.UserRecord) error {
	query := `INSERT INTO users (` + userColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := s.db.ExecContext(ctx, query,
		u.ID, strings.ToLower(u.Email), u.Username, u.FirstName, u.LastName, string(u.Role),
		u.IsActive, u.IsEmailVerified, u.EmailNotifications, u.Bio, u.PhoneNumber, u.Company,
		u.JobTitle, u.PasswordHash, nullTime(u.LastLogin), u.CreatedAt, u.UpdatedAt,
	)
	return wrap(err)
}

func (s *Store) GetByID(ctx context.Context, id string) (*feedbackAuth.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*feedbackAuth.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email))
	return scanUser(row)
}

func (s *Store) Update(ctx context.Context, u *feedbackAuth.UserRecord) error {
	query := `UPDATE users SET email = $2, username = $3, first_name = $4, last_name = $5, role = $6,
is_active = $7, is_email_verified = $8, email_notifications = $9, bio = $10, phone_number = $11,
company = $12, job_title = $13, password_hash = $14, updated_at = $15 WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query,
		u.ID, strings.ToLower(u.Email), u.Username, u.FirstName, u.LastName, string(u.Role),
		u.IsActive, u.IsEmailVerified, u.EmailNotifications, u.Bio, u.PhoneNumber, u.Company,
		u.JobTitle, u.PasswordHash, u.UpdatedAt,
	)
	if err != nil {
		return wrap(err)
	}
	return requireRow(res)
}

func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at.UTC())
	if err != nil {
		return wrap(err)
	}
	return requireRow(res)
}

func (s *Store) List(ctx context.Context, filter feedbackAuth.UserFilter) ([]*feedbackAuth.UserRecord, error) {
	query, args := listQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	users := make([]*feedbackAuth.UserRecord, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err)
	}
	return users, nil
}

func listQuery(filter feedbackAuth.UserFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.ActiveOnly {
		where = append(where, "is_active = TRUE")
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, 0, len(filter.Roles))
		for _, r := range filter.Roles {
			roles = append(roles, string(r))
		}
		args = append(args, pq.Array(roles))
		where = append(where, fmt.Sprintf("role = ANY($%d)", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(email ILIKE $%[1]d OR username ILIKE $%[1]d OR first_name ILIKE $%[1]d OR last_name ILIKE $%[1]d OR company ILIKE $%[1]d)", n))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(userColumns)
	b.WriteString(" FROM users")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(orderClause(filter.Ordering))
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}

func orderClause(ordering string) string {
	if ordering == "" {
		ordering = feedbackAuth.DefaultOrdering
	}
	dir := "ASC"
	if strings.HasPrefix(ordering, "-") {
		dir = "DESC"
		ordering = ordering[1:]
	}
	col, ok := orderColumns[ordering]
	if !ok {
		col, dir = "created_at", "DESC"
	}
	return col + " " + dir + ", id ASC"
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

const countsQuery = `SELECT
    COUNT(*),
    COUNT(*) FILTER (WHERE is_active),
    COUNT(*) FILTER (WHERE NOT is_active),
    COUNT(*) FILTER (WHERE is_email_verified),
    COUNT(*) FILTER (WHERE NOT is_email_verified),
    COUNT(*) FILTER (WHERE is_active AND role = 'admin'),
    COUNT(*) FILTER (WHERE is_active AND role = 'moderator'),
    COUNT(*) FILTER (WHERE is_active AND role = 'contributor')
FROM users`

func (s *Store) Counts(ctx context.Context) (feedbackAuth.UserCounts, error) {
	var c feedbackAuth.UserCounts
	err := s.db.QueryRowContext(ctx, countsQuery).Scan(
		&c.Total, &c.Active, &c.Inactive, &c.Verified, &c.Unverified,
		&c.Admins, &c.Moderators, &c.Contributors,
	)
	if err != nil {
		return feedbackAuth.UserCounts{}, wrap(err)
	}
	return c, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return wrap(s.db.PingContext(ctx))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*feedbackAuth.UserRecord, error) {
	var (
		u         feedbackAuth.UserRecord
		role      string
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &role,
		&u.IsActive, &u.IsEmailVerified, &u.EmailNotifications, &u.Bio, &u.PhoneNumber,
		&u.Company, &u.JobTitle, &u.PasswordHash, &lastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, wrap(err)
	}
	u.Role = permission.Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(err)
	}
	if n == 0 {
		return feedbackAuth.ErrUserNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// wrap maps driver errors onto the feedbackAuth sentinels.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return feedbackAuth.ErrUserNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return feedbackAuth.ErrAlreadyRegistered
	}
	return fmt.Errorf("%w: %v", feedbackAuth.ErrStoreUnavailable, err)
}
