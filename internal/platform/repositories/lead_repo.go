package repositories

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"antigravity/internal/platform/models"
)

type LeadRepository struct {
	db *sql.DB
}

func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

func (r *LeadRepository) Create(lead *models.Lead) error {
	if lead.ID == "" {
		lead.ID = "lead_" + uuid.New().String()
	}
	lead.CreatedAt = time.Now().Unix()
	lead.UpdatedAt = lead.CreatedAt
	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}

	query := `
		INSERT INTO leads (id, tenant_id, email, name, company, source, status, description, created_by_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, lead.ID, lead.TenantID, lead.Email, lead.Name, lead.Company, lead.Source, lead.Status, lead.Description, lead.CreatedByID, lead.CreatedAt, lead.UpdatedAt)
	return err
}

// Upsert inserts a lead or, when (tenant_id, email) already exists, refreshes
// the display name on the existing row. The unique constraint makes the dedup
// decision atomic when two inbound calls race on the same new email. The row
// actually stored (existing or new) is returned.
func (r *LeadRepository) Upsert(lead *models.Lead) (*models.Lead, bool, error) {
	if lead.ID == "" {
		lead.ID = "lead_" + uuid.New().String()
	}
	now := time.Now().Unix()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}

	query := `
		INSERT INTO leads (id, tenant_id, email, name, company, source, status, description, created_by_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, email) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE leads.name END,
			updated_at = excluded.updated_at
	`
	_, err := r.db.Exec(query, lead.ID, lead.TenantID, lead.Email, lead.Name, lead.Company, lead.Source, lead.Status, lead.Description, lead.CreatedByID, lead.CreatedAt, lead.UpdatedAt)
	if err != nil {
		return nil, false, err
	}

	stored, err := r.GetByEmail(lead.TenantID, lead.Email)
	if err != nil {
		return nil, false, err
	}
	created := stored != nil && stored.ID == lead.ID
	return stored, created, nil
}

func (r *LeadRepository) GetByID(tenantID, id string) (*models.Lead, error) {
	query := `SELECT id, tenant_id, email, name, company, source, status, description, created_by_id, created_at, updated_at FROM leads WHERE tenant_id = ? AND id = ?`
	return scanLead(r.db.QueryRow(query, tenantID, id))
}

func (r *LeadRepository) GetByEmail(tenantID, email string) (*models.Lead, error) {
	query := `SELECT id, tenant_id, email, name, company, source, status, description, created_by_id, created_at, updated_at FROM leads WHERE tenant_id = ? AND email = ?`
	return scanLead(r.db.QueryRow(query, tenantID, email))
}

func (r *LeadRepository) List(tenantID string, limit, offset int) ([]*models.Lead, error) {
	query := `SELECT id, tenant_id, email, name, company, source, status, description, created_by_id, created_at, updated_at FROM leads WHERE tenant_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.Query(query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		lead, err := scanLeadRows(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func (r *LeadRepository) Update(lead *models.Lead) error {
	lead.UpdatedAt = time.Now().Unix()
	query := `
		UPDATE leads
		SET name = ?, company = ?, status = ?, description = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`
	_, err := r.db.Exec(query, lead.Name, lead.Company, lead.Status, lead.Description, lead.UpdatedAt, lead.TenantID, lead.ID)
	return err
}

// UpdateFromInbound applies the inbound merge policy to an existing lead:
// a freshly supplied name replaces the old one, and any inbound message is
// appended to the description, never overwriting it.
func (r *LeadRepository) UpdateFromInbound(tenantID, id, name, message string) error {
	query := `
		UPDATE leads
		SET name = CASE WHEN ? != '' THEN ? ELSE name END,
		    description = CASE WHEN ? != '' THEN description || char(10) || char(10) || 'New Message: ' || ? ELSE description END,
		    updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`
	_, err := r.db.Exec(query, name, name, message, message, time.Now().Unix(), tenantID, id)
	return err
}

func (r *LeadRepository) UpdateStatus(tenantID, id, status string) error {
	_, err := r.db.Exec(`UPDATE leads SET status = ?, updated_at = ? WHERE tenant_id = ? AND id = ?`, status, time.Now().Unix(), tenantID, id)
	return err
}

func scanLead(row *sql.Row) (*models.Lead, error) {
	var l models.Lead
	err := row.Scan(&l.ID, &l.TenantID, &l.Email, &l.Name, &l.Company, &l.Source, &l.Status, &l.Description, &l.CreatedByID, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func scanLeadRows(rows *sql.Rows) (*models.Lead, error) {
	var l models.Lead
	err := rows.Scan(&l.ID, &l.TenantID, &l.Email, &l.Name, &l.Company, &l.Source, &l.Status, &l.Description, &l.CreatedByID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
