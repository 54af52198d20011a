package repositories

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"antigravity/internal/platform/models"
)

type EndpointRepository struct {
	db *sql.DB
}

func NewEndpointRepository(db *sql.DB) *EndpointRepository {
	return &EndpointRepository{db: db}
}

func (r *EndpointRepository) Create(endpoint *models.InboundEndpoint) error {
	if endpoint.ID == "" {
		endpoint.ID = "ep_" + uuid.New().String()
	}
	endpoint.CreatedAt = time.Now().Unix()
	if endpoint.AuthType == "" {
		endpoint.AuthType = models.AuthTypeNone
	}
	if endpoint.MappingConfig == "" {
		endpoint.MappingConfig = "{}"
	}

	query := `
		INSERT INTO inbound_endpoints (id, tenant_id, name, endpoint_key, auth_type, secret, mapping_config, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, endpoint.ID, endpoint.TenantID, endpoint.Name, endpoint.EndpointKey, endpoint.AuthType, endpoint.Secret, endpoint.MappingConfig, endpoint.IsActive, endpoint.CreatedAt)
	return err
}

// GetActiveByKey resolves an inbound call's address: (tenant slug, endpoint
// key) with is_active set. A miss returns (nil, nil).
func (r *EndpointRepository) GetActiveByKey(tenantSlug, endpointKey string) (*models.InboundEndpoint, error) {
	query := `
		SELECT e.id, e.tenant_id, e.name, e.endpoint_key, e.auth_type, e.secret, e.mapping_config, e.is_active, e.created_at
		FROM inbound_endpoints e
		JOIN tenants t ON t.id = e.tenant_id
		WHERE t.slug = ? AND e.endpoint_key = ? AND e.is_active = 1 AND t.deleted_at IS NULL
	`
	return scanEndpoint(r.db.QueryRow(query, tenantSlug, endpointKey))
}

func (r *EndpointRepository) GetByID(tenantID, id string) (*models.InboundEndpoint, error) {
	query := `
		SELECT id, tenant_id, name, endpoint_key, auth_type, secret, mapping_config, is_active, created_at
		FROM inbound_endpoints WHERE tenant_id = ? AND id = ?
	`
	return scanEndpoint(r.db.QueryRow(query, tenantID, id))
}

func (r *EndpointRepository) ListByTenant(tenantID string) ([]*models.InboundEndpoint, error) {
	query := `
		SELECT id, tenant_id, name, endpoint_key, auth_type, secret, mapping_config, is_active, created_at
		FROM inbound_endpoints WHERE tenant_id = ? ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []*models.InboundEndpoint
	for rows.Next() {
		var e models.InboundEndpoint
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Name, &e.EndpointKey, &e.AuthType, &e.Secret, &e.MappingConfig, &e.IsActive, &e.CreatedAt); err != nil {
			return nil, err
		}
		endpoints = append(endpoints, &e)
	}
	return endpoints, rows.Err()
}

// RotateSecret swaps in a new signing secret and forces HMAC auth. Rotation is
// immediate: signatures computed with the old secret fail from this point on.
func (r *EndpointRepository) RotateSecret(tenantID, id, secret string) error {
	query := `UPDATE inbound_endpoints SET secret = ?, auth_type = ? WHERE tenant_id = ? AND id = ?`
	res, err := r.db.Exec(query, secret, models.AuthTypeHMAC, tenantID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *EndpointRepository) SetActive(tenantID, id string, active bool) error {
	res, err := r.db.Exec(`UPDATE inbound_endpoints SET is_active = ? WHERE tenant_id = ? AND id = ?`, active, tenantID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanEndpoint(row *sql.Row) (*models.InboundEndpoint, error) {
	var e models.InboundEndpoint
	err := row.Scan(&e.ID, &e.TenantID, &e.Name, &e.EndpointKey, &e.AuthType, &e.Secret, &e.MappingConfig, &e.IsActive, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
