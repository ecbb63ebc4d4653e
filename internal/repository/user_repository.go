package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/digkill/productgenius/internal/models"
)

const mysqlDuplicateEntry = 1062

const userColumns = `id, email, business_name, password_hash, credits, package_code, expires_at, payment_pending, requested_package, version, created_at, updated_at`

// UserRepository is the MySQL-backed entitlement store.
type UserRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

// columnPrecision matches the DATETIME(3) columns.
const columnPrecision = time.Millisecond

func (r *UserRepository) stamp() time.Time {
	return r.now().UTC().Truncate(columnPrecision)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u         models.User
		pkg       string
		expires   sql.NullTime
		pending   int
		requested sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &u.BusinessName, &u.PasswordHash, &u.Credits, &pkg, &expires, &pending, &requested, &u.Version, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Package = models.PackageCode(pkg)
	if expires.Valid {
		t := expires.Time.UTC()
		u.ExpiresAt = &t
	}
	u.PaymentPending = pending != 0
	if requested.Valid && requested.String != "" {
		p := models.PackageCode(requested.String)
		u.RequestedPackage = &p
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user list: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	taken, err := r.exists(ctx, `SELECT 1 FROM users WHERE id = ?`, user.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrAlreadyExists
	}
	taken, err = r.exists(ctx, `SELECT 1 FROM users WHERE LOWER(email) = LOWER(?)`, user.Email)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicateEmail
	}

	user.ExpiresAt = storedTime(user.ExpiresAt)
	now := r.stamp()
	const query = `
INSERT INTO users (` + userColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.BusinessName, user.PasswordHash, user.Credits, string(user.Package),
		nullTime(user.ExpiresAt), boolInt(user.PaymentPending), nullPackage(user.RequestedPackage), now, now); err != nil {
		if dup := duplicateKeyError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("insert user: %w", err)
	}
	user.Version = 1
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *UserRepository) Put(ctx context.Context, user *models.User) error {
	user.ExpiresAt = storedTime(user.ExpiresAt)
	now := r.stamp()
	const query = `
UPDATE users
SET email = ?, business_name = ?, password_hash = ?, credits = ?, package_code = ?, expires_at = ?,
    payment_pending = ?, requested_package = ?, version = version + 1, updated_at = ?
WHERE id = ? AND version = ?`
	res, err := r.db.ExecContext(ctx, query, user.Email, user.BusinessName, user.PasswordHash, user.Credits, string(user.Package),
		nullTime(user.ExpiresAt), boolInt(user.PaymentPending), nullPackage(user.RequestedPackage), now, user.ID, user.Version)
	if err != nil {
		if dup := duplicateKeyError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("user rows affected: %w", err)
	}
	if affected == 0 {
		found, err := r.exists(ctx, `SELECT 1 FROM users WHERE id = ?`, user.ID)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	user.Version++
	user.UpdatedAt = now
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) exists(ctx context.Context, query string, arg any) (bool, error) {
	var dummy int
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&dummy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check user: %w", err)
	}
	return true, nil
}

func duplicateKeyError(err error) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) || myErr.Number != mysqlDuplicateEntry {
		return nil
	}
	if strings.Contains(strings.ToLower(myErr.Message), "email") {
		return ErrDuplicateEmail
	}
	return ErrAlreadyExists
}

// storedTime returns t as it reads back from the database.
func storedTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC().Truncate(columnPrecision)
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC().Truncate(columnPrecision), Valid: true}
}

func nullPackage(p *models.PackageCode) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*p), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
