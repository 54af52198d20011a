package repositories

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"antigravity/internal/platform/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *models.User) error {
	if user.ID == "" {
		user.ID = "user_" + uuid.New().String()
	}
	user.CreatedAt = time.Now().Unix()
	user.UpdatedAt = user.CreatedAt
	if user.Role == "" {
		user.Role = "member"
	}

	query := `
		INSERT INTO users (id, tenant_id, email, password_hash, full_name, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, user.ID, user.TenantID, user.Email, user.PasswordHash, user.FullName, user.Role, user.CreatedAt, user.UpdatedAt)
	return err
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	query := `SELECT id, tenant_id, email, password_hash, full_name, role, last_login_at, created_at, updated_at FROM users WHERE email = ?`
	row := r.db.QueryRow(query, email)

	var u models.User
	var lastLoginAt sql.NullInt64

	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &lastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if lastLoginAt.Valid {
		u.LastLoginAt = new(int64)
		*u.LastLoginAt = lastLoginAt.Int64
	}

	return &u, nil
}

func (r *UserRepository) UpdateLastLogin(id string) error {
	_, err := r.db.Exec(`UPDATE users SET last_login_at = ? WHERE id = ?`, time.Now().Unix(), id)
	return err
}
