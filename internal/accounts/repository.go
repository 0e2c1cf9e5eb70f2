package accounts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/marketplace/internal/domain"
)

// ErrDuplicate is returned when a username or email is already taken.
var ErrDuplicate = errors.New("username or email already registered")

const uniqueViolation = "23505"

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	user.ID = uuid.New().String()
	user.JoinedAt = time.Now().UTC()
	user.IsActive = true

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, fullname, address,
			avatar_url, is_superuser, is_staff, is_vendor, is_active, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, user.ID, user.Username, user.Email, user.PasswordHash, user.Fullname, user.Address,
		user.AvatarURL, user.IsSuperuser, user.IsStaff, user.IsVendor, user.IsActive, user.JoinedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return err
	}

	return nil
}

const userColumns = `
	id, username, email, password_hash, fullname, address, avatar_url,
	is_superuser, is_staff, is_vendor, is_active, joined_at
`

func (r *UserRepository) scanUser(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Fullname, &user.Address, &user.AvatarURL, &user.IsSuperuser,
		&user.IsStaff, &user.IsVendor, &user.IsActive, &user.JoinedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// UserByID satisfies auth.UserSource.
func (r *UserRepository) UserByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) UserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (r *UserRepository) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id, fullname, email, address, avatarURL string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET fullname = $1, email = $2, address = $3, avatar_url = $4
		WHERE id = $5
	`, fullname, email, address, avatarURL, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return err
	}
	return requireRow(result)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (r *UserRepository) SetVendorFlag(ctx context.Context, id string, isVendor bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_vendor = $1 WHERE id = $2`, isVendor, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
