package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"antigravity/internal/platform/models"
)

type SubscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(sub *models.OutboundSubscription) error {
	if sub.ID == "" {
		sub.ID = "sub_" + uuid.New().String()
	}
	sub.CreatedAt = time.Now().Unix()

	eventsJSON, err := json.Marshal(sub.EventTypes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO outbound_subscriptions (id, tenant_id, name, url, event_types, secret, enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query, sub.ID, sub.TenantID, sub.Name, sub.URL, string(eventsJSON), sub.Secret, sub.Enabled, sub.CreatedAt)
	return err
}

func (r *SubscriptionRepository) GetByID(tenantID, id string) (*models.OutboundSubscription, error) {
	query := `SELECT id, tenant_id, name, url, event_types, secret, enabled, created_at FROM outbound_subscriptions WHERE tenant_id = ? AND id = ?`
	row := r.db.QueryRow(query, tenantID, id)

	var s models.OutboundSubscription
	var eventsStr string
	err := row.Scan(&s.ID, &s.TenantID, &s.Name, &s.URL, &eventsStr, &s.Secret, &s.Enabled, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(eventsStr), &s.EventTypes)
	return &s, nil
}

func (r *SubscriptionRepository) ListByTenant(tenantID string) ([]*models.OutboundSubscription, error) {
	query := `SELECT id, tenant_id, name, url, event_types, secret, enabled, created_at FROM outbound_subscriptions WHERE tenant_id = ? ORDER BY created_at DESC`
	return r.list(query, tenantID)
}

// ListEnabledByTenant backs event-type matching. The contains-or-wildcard
// filter happens in memory over this result set; at larger subscription
// counts this belongs in an indexed query instead.
func (r *SubscriptionRepository) ListEnabledByTenant(tenantID string) ([]*models.OutboundSubscription, error) {
	query := `SELECT id, tenant_id, name, url, event_types, secret, enabled, created_at FROM outbound_subscriptions WHERE tenant_id = ? AND enabled = 1`
	return r.list(query, tenantID)
}

func (r *SubscriptionRepository) Delete(tenantID, id string) error {
	res, err := r.db.Exec(`DELETE FROM outbound_subscriptions WHERE tenant_id = ? AND id = ?`, tenantID, id)
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

func (r *SubscriptionRepository) list(query string, args ...interface{}) ([]*models.OutboundSubscription, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.OutboundSubscription
	for rows.Next() {
		var s models.OutboundSubscription
		var eventsStr string
		if err := rows.Scan(&s.ID, &s.TenantID, &s.Name, &s.URL, &eventsStr, &s.Secret, &s.Enabled, &s.CreatedAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(eventsStr), &s.EventTypes)
		subs = append(subs, &s)
	}
	return subs, rows.Err()
}
