package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"antigravity/internal/platform/models"
)

type InboundEventRepository struct {
	db *sql.DB
}

func NewInboundEventRepository(db *sql.DB) *InboundEventRepository {
	return &InboundEventRepository{db: db}
}

// Create appends one audit row. The table is append-only: there are no update
// or delete queries against it anywhere in the codebase.
func (r *InboundEventRepository) Create(event *models.InboundEvent) error {
	if event.ID == "" {
		event.ID = "inev_" + uuid.New().String()
	}
	event.ProcessedAt = time.Now().Unix()

	headersJSON, err := json.Marshal(event.Headers)
	if err != nil {
		return err
	}

	var refJSON []byte
	if event.CreatedEntityRef != nil {
		refJSON, err = json.Marshal(event.CreatedEntityRef)
		if err != nil {
			return err
		}
	}

	query := `
		INSERT INTO inbound_events (id, tenant_id, inbound_endpoint_id, payload, status, error, source_ip, headers, created_entity_ref, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query, event.ID, event.TenantID, event.InboundEndpointID, event.Payload, event.Status, event.Error, event.SourceIP, string(headersJSON), nullableString(refJSON), event.ProcessedAt)
	return err
}

func (r *InboundEventRepository) ListByEndpoint(tenantID, endpointID string, limit int) ([]*models.InboundEvent, error) {
	query := `
		SELECT id, tenant_id, inbound_endpoint_id, payload, status, error, source_ip, headers, created_entity_ref, processed_at
		FROM inbound_events
		WHERE tenant_id = ? AND inbound_endpoint_id = ?
		ORDER BY processed_at DESC LIMIT ?
	`
	rows, err := r.db.Query(query, tenantID, endpointID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.InboundEvent
	for rows.Next() {
		var e models.InboundEvent
		var headersStr string
		var refStr sql.NullString
		if err := rows.Scan(&e.ID, &e.TenantID, &e.InboundEndpointID, &e.Payload, &e.Status, &e.Error, &e.SourceIP, &headersStr, &refStr, &e.ProcessedAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(headersStr), &e.Headers)
		if refStr.Valid && refStr.String != "" {
			var ref models.EntityRef
			if json.Unmarshal([]byte(refStr.String), &ref) == nil {
				e.CreatedEntityRef = &ref
			}
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *InboundEventRepository) CountByEndpoint(tenantID, endpointID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM inbound_events WHERE tenant_id = ? AND inbound_endpoint_id = ?`, tenantID, endpointID).Scan(&count)
	return count, err
}

func nullableString(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
