package repositories

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"antigravity/internal/platform/models"
)

type TenantRepository struct {
	db *sql.DB
}

func NewTenantRepository(db *sql.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) Create(tenant *models.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = "ten_" + uuid.New().String()
	}
	tenant.CreatedAt = time.Now().Unix()
	tenant.UpdatedAt = tenant.CreatedAt
	if tenant.PlanTier == "" {
		tenant.PlanTier = "free"
	}

	query := `
		INSERT INTO tenants (id, slug, name, plan_tier, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, tenant.ID, tenant.Slug, tenant.Name, tenant.PlanTier, tenant.CreatedAt, tenant.UpdatedAt)
	return err
}

func (r *TenantRepository) GetByID(id string) (*models.Tenant, error) {
	query := `SELECT id, slug, name, plan_tier, created_at, updated_at FROM tenants WHERE id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, id))
}

func (r *TenantRepository) GetBySlug(slug string) (*models.Tenant, error) {
	query := `SELECT id, slug, name, plan_tier, created_at, updated_at FROM tenants WHERE slug = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, slug))
}

func (r *TenantRepository) scanOne(row *sql.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.PlanTier, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
