package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"antigravity/internal/platform/models"
)

type ActivityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Create(entry *models.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = "act_" + uuid.New().String()
	}
	entry.CreatedAt = time.Now().Unix()

	metaJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO activity_logs (id, tenant_id, user_id, action, entity_type, entity_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query, entry.ID, entry.TenantID, entry.UserID, entry.Action, entry.EntityType, entry.EntityID, string(metaJSON), entry.CreatedAt)
	return err
}

func (r *ActivityRepository) ListByEntity(tenantID, entityType, entityID string, limit int) ([]*models.ActivityLog, error) {
	query := `
		SELECT id, tenant_id, user_id, action, entity_type, entity_id, metadata, created_at
		FROM activity_logs
		WHERE tenant_id = ? AND entity_type = ? AND entity_id = ?
		ORDER BY created_at DESC LIMIT ?
	`
	rows, err := r.db.Query(query, tenantID, entityType, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.ActivityLog
	for rows.Next() {
		var e models.ActivityLog
		var metaStr string
		if err := rows.Scan(&e.ID, &e.TenantID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID, &metaStr, &e.CreatedAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(metaStr), &e.Metadata)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
