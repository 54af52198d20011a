package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"antigravity/internal/platform/models"
)

type DeliveryRepository struct {
	db *sql.DB
}

func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

func (r *DeliveryRepository) Create(delivery *models.OutboundDelivery) error {
	if delivery.ID == "" {
		delivery.ID = "del_" + uuid.New().String()
	}
	delivery.CreatedAt = time.Now().Unix()
	if delivery.Status == "" {
		delivery.Status = models.DeliveryStatusPending
	}

	query := `
		INSERT INTO outbound_deliveries (id, tenant_id, subscription_id, event_type, payload, status, attempt_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`
	_, err := r.db.Exec(query, delivery.ID, delivery.TenantID, delivery.SubscriptionID, delivery.EventType, delivery.Payload, delivery.Status, delivery.CreatedAt)
	return err
}

// RecordAttempt stores the outcome of one delivery attempt. attempt_count
// only increments, and a row already marked sent keeps that status: sent is
// terminal even if a stale in-flight attempt reports later.
func (r *DeliveryRepository) RecordAttempt(id, status string, responseCode int, lastError string) error {
	query := `
		UPDATE outbound_deliveries
		SET status = CASE WHEN status = 'sent' THEN 'sent' ELSE ? END,
		    last_response_code = ?,
		    last_error = ?,
		    attempt_count = attempt_count + 1,
		    last_attempt_at = ?
		WHERE id = ?
	`
	_, err := r.db.Exec(query, status, responseCode, lastError, time.Now().Unix(), id)
	return err
}

func (r *DeliveryRepository) GetByID(id string) (*models.OutboundDelivery, error) {
	query := `
		SELECT id, tenant_id, subscription_id, event_type, payload, status, last_response_code, last_error, attempt_count, last_attempt_at, created_at
		FROM outbound_deliveries WHERE id = ?
	`
	row := r.db.QueryRow(query, id)

	d, err := scanDelivery(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DeliveryRepository) ListBySubscription(tenantID, subscriptionID string, limit int) ([]*models.OutboundDelivery, error) {
	query := `
		SELECT id, tenant_id, subscription_id, event_type, payload, status, last_response_code, last_error, attempt_count, last_attempt_at, created_at
		FROM outbound_deliveries
		WHERE tenant_id = ? AND subscription_id = ?
		ORDER BY created_at DESC LIMIT ?
	`
	rows, err := r.db.Query(query, tenantID, subscriptionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []*models.OutboundDelivery
	for rows.Next() {
		d, err := scanDelivery(rows.Scan)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

// ListRetryable selects deliveries eligible for another attempt: not yet sent,
// under the attempt cap, and created inside the retry window. Ordered oldest
// first and capped at batchSize so one run stays bounded.
func (r *DeliveryRepository) ListRetryable(maxAttempts int, window time.Duration, batchSize int) ([]*models.OutboundDelivery, error) {
	cutoff := time.Now().Add(-window).Unix()
	query := `
		SELECT d.id, d.tenant_id, d.subscription_id, d.event_type, d.payload, d.status, d.last_response_code, d.last_error, d.attempt_count, d.last_attempt_at, d.created_at,
		       s.id, s.tenant_id, s.name, s.url, s.event_types, s.secret, s.enabled, s.created_at
		FROM outbound_deliveries d
		JOIN outbound_subscriptions s ON s.id = d.subscription_id
		WHERE d.status != 'sent' AND d.attempt_count < ? AND d.created_at >= ?
		ORDER BY d.created_at ASC
		LIMIT ?
	`
	rows, err := r.db.Query(query, maxAttempts, cutoff, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []*models.OutboundDelivery
	for rows.Next() {
		var d models.OutboundDelivery
		var s models.OutboundSubscription
		var lastCode sql.NullInt64
		var lastErr sql.NullString
		var lastAttemptAt sql.NullInt64
		var eventsStr string

		err := rows.Scan(
			&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.Payload, &d.Status, &lastCode, &lastErr, &d.AttemptCount, &lastAttemptAt, &d.CreatedAt,
			&s.ID, &s.TenantID, &s.Name, &s.URL, &eventsStr, &s.Secret, &s.Enabled, &s.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		applyNullables(&d, lastCode, lastErr, lastAttemptAt)
		json.Unmarshal([]byte(eventsStr), &s.EventTypes)
		d.Subscription = &s
		deliveries = append(deliveries, &d)
	}
	return deliveries, rows.Err()
}

func scanDelivery(scan func(dest ...interface{}) error) (*models.OutboundDelivery, error) {
	var d models.OutboundDelivery
	var lastCode sql.NullInt64
	var lastErr sql.NullString
	var lastAttemptAt sql.NullInt64

	err := scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.Payload, &d.Status, &lastCode, &lastErr, &d.AttemptCount, &lastAttemptAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}

	applyNullables(&d, lastCode, lastErr, lastAttemptAt)
	return &d, nil
}

func applyNullables(d *models.OutboundDelivery, lastCode sql.NullInt64, lastErr sql.NullString, lastAttemptAt sql.NullInt64) {
	if lastCode.Valid {
		d.LastResponseCode = int(lastCode.Int64)
	}
	if lastErr.Valid {
		d.LastError = lastErr.String
	}
	if lastAttemptAt.Valid {
		d.LastAttemptAt = new(int64)
		*d.LastAttemptAt = lastAttemptAt.Int64
	}
}
