package repositories

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"antigravity/internal/platform/models"
)

type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) Create(contact *models.Contact) error {
	if contact.ID == "" {
		contact.ID = "cont_" + uuid.New().String()
	}
	contact.CreatedAt = time.Now().Unix()
	contact.UpdatedAt = contact.CreatedAt

	query := `
		INSERT INTO contacts (id, tenant_id, email, name, company, phone, created_by_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, contact.ID, contact.TenantID, contact.Email, contact.Name, contact.Company, contact.Phone, contact.CreatedByID, contact.CreatedAt, contact.UpdatedAt)
	return err
}

func (r *ContactRepository) GetByID(tenantID, id string) (*models.Contact, error) {
	query := `SELECT id, tenant_id, email, name, company, phone, created_by_id, created_at, updated_at FROM contacts WHERE tenant_id = ? AND id = ?`
	return scanContact(r.db.QueryRow(query, tenantID, id))
}

func (r *ContactRepository) GetByEmail(tenantID, email string) (*models.Contact, error) {
	query := `SELECT id, tenant_id, email, name, company, phone, created_by_id, created_at, updated_at FROM contacts WHERE tenant_id = ? AND email = ?`
	return scanContact(r.db.QueryRow(query, tenantID, email))
}

func (r *ContactRepository) List(tenantID string, limit, offset int) ([]*models.Contact, error) {
	query := `SELECT id, tenant_id, email, name, company, phone, created_by_id, created_at, updated_at FROM contacts WHERE tenant_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.Query(query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []*models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Email, &c.Name, &c.Company, &c.Phone, &c.CreatedByID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, &c)
	}
	return contacts, rows.Err()
}

func scanContact(row *sql.Row) (*models.Contact, error) {
	var c models.Contact
	err := row.Scan(&c.ID, &c.TenantID, &c.Email, &c.Name, &c.Company, &c.Phone, &c.CreatedByID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
