package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/procurehub/marketplace-api/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user with an already-hashed password and returns its ID.
// Email is lowercase-normalized before persistence.
func (r *UserRepo) Create(ctx context.Context, u model.User) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, name, company, role, password_hash) VALUES (?,?,?,?,?)",
		email, u.Name, u.Company, string(u.Role), u.PasswordHash)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

const userCols = "id,email,name,company,role,password_hash,created_at,updated_at"

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id))
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var u model.User
	var updated sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Company, &u.Role, &u.PasswordHash, &u.CreatedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	if updated.Valid {
		t := updated.Time
		u.UpdatedAt = &t
	}
	return u, nil
}
