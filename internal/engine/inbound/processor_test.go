package inbound

import (
	"database/sql"
	"net/http"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"antigravity/internal/engine/webhooks"
	"antigravity/internal/platform/models"
	"antigravity/internal/platform/repositories"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	query := `
	CREATE TABLE leads (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		email TEXT NOT NULL,
		name TEXT NOT NULL,
		company TEXT DEFAULT '',
		source TEXT DEFAULT '',
		status TEXT NOT NULL DEFAULT 'NEW',
		description TEXT DEFAULT '',
		created_by_id TEXT DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(tenant_id, email)
	);
	CREATE TABLE contacts (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		email TEXT NOT NULL,
		name TEXT NOT NULL,
		company TEXT DEFAULT '',
		phone TEXT DEFAULT '',
		created_by_id TEXT DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(tenant_id, email)
	);
	CREATE TABLE activity_logs (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT DEFAULT '',
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		metadata TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE inbound_events (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		inbound_endpoint_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT DEFAULT '',
		source_ip TEXT DEFAULT 'unknown',
		headers TEXT,
		created_entity_ref TEXT,
		processed_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(query); err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}
	return db
}

func newTestProcessor(db *sql.DB) *Processor {
	return NewProcessor(
		repositories.NewContactRepository(db),
		repositories.NewLeadRepository(db),
		repositories.NewActivityRepository(db),
		repositories.NewInboundEventRepository(db),
		nil,
	)
}

func testEndpoint(authType, secret string) *models.InboundEndpoint {
	return &models.InboundEndpoint{
		ID:          "ep_1",
		TenantID:    "ten_1",
		Name:        "crm intake",
		EndpointKey: "k1",
		AuthType:    authType,
		Secret:      secret,
		IsActive:    true,
	}
}

func newRequest(endpoint *models.InboundEndpoint, body, signature string) *Request {
	return &Request{
		Endpoint:  endpoint,
		Body:      []byte(body),
		Signature: signature,
		Headers:   map[string]string{"content-type": "application/json"},
		SourceIP:  "203.0.113.9",
	}
}

func countEvents(t *testing.T, db *sql.DB, status string) int {
	t.Helper()
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM inbound_events WHERE status = ?`, status).Scan(&count); err != nil {
		t.Fatal(err)
	}
	return count
}

func TestProcess_NewLead(t *testing.T) {
	db := setupTestDB(t)
	p := newTestProcessor(db)

	result := p.Process(newRequest(testEndpoint(models.AuthTypeNone, ""), `{"email":"a@x.com","name":"A"}`, ""))

	if result.HTTPStatus != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", result.HTTPStatus, result.ErrMessage)
	}
	if result.EntityType != "Lead (Created)" {
		t.Errorf("expected Lead (Created), got %s", result.EntityType)
	}

	lead, err := repositories.NewLeadRepository(db).GetByEmail("ten_1", "a@x.com")
	if err != nil || lead == nil {
		t.Fatalf("expected lead to exist: %v", err)
	}
	if lead.Name != "A" {
		t.Errorf("expected name A, got %s", lead.Name)
	}
	if lead.Status != models.LeadStatusNew {
		t.Errorf("expected status NEW, got %s", lead.Status)
	}
	if lead.Source != InboundSource {
		t.Errorf("expected source %q, got %q", InboundSource, lead.Source)
	}
	if lead.ID != result.EntityID {
		t.Errorf("result should reference the created lead")
	}

	if got := countEvents(t, db, models.InboundStatusProcessed); got != 1 {
		t.Errorf("expected 1 processed event, got %d", got)
	}
}

func TestProcess_ReplayDoesNotDuplicateLead(t *testing.T) {
	db := setupTestDB(t)
	p := newTestProcessor(db)
	endpoint := testEndpoint(models.AuthTypeNone, "")
	body := `{"email":"a@x.com","name":"A"}`

	first := p.Process(newRequest(endpoint, body, ""))
	second := p.Process(newRequest(endpoint, body, ""))

	if first.HTTPStatus != http.StatusOK || second.HTTPStatus != http.StatusOK {
		t.Fatalf("both calls should succeed: %d, %d", first.HTTPStatus, second.HTTPStatus)
	}
	if second.EntityType != "Lead (Updated)" {
		t.Errorf("replay should hit the existing-lead branch, got %s", second.EntityType)
	}
	if first.EntityID != second.EntityID {
		t.Errorf("both calls should reference the same lead")
	}

	var leadCount int
	db.QueryRow(`SELECT COUNT(*) FROM leads`).Scan(&leadCount)
	if leadCount != 1 {
		t.Errorf("expected exactly one lead, got %d", leadCount)
	}

	// Each attempt is independently logged.
	if got := countEvents(t, db, models.InboundStatusProcessed); got != 2 {
		t.Errorf("expected 2 audit rows, got %d", got)
	}
}

func TestProcess_ExistingLeadMerge(t *testing.T) {
	db := setupTestDB(t)
	leads := repositories.NewLeadRepository(db)
	leads.Create(&models.Lead{
		TenantID:    "ten_1",
		Email:       "a@x.com",
		Name:        "Old Name",
		Description: "original notes",
	})

	p := newTestProcessor(db)
	result := p.Process(newRequest(testEndpoint(models.AuthTypeNone, ""), `{"email":"a@x.com","name":"New Name","message":"please call"}`, ""))

	if result.HTTPStatus != http.StatusOK {
		t.Fatalf("expected 200, got %d", result.HTTPStatus)
	}
	if result.EntityType != "Lead (Updated)" {
		t.Errorf("expected Lead (Updated), got %s", result.EntityType)
	}

	lead, _ := leads.GetByEmail("ten_1", "a@x.com")
	if lead.Name != "New Name" {
		t.Errorf("expected name refreshed, got %s", lead.Name)
	}
	if !strings.Contains(lead.Description, "original notes") {
		t.Error("existing description must not be overwritten")
	}
	if !strings.Contains(lead.Description, "please call") {
		t.Error("inbound message should be appended to description")
	}
}

func TestProcess_ExistingContactOnlyLogsActivity(t *testing.T) {
	db := setupTestDB(t)
	contacts := repositories.NewContactRepository(db)
	contacts.Create(&models.Contact{
		TenantID: "ten_1",
		Email:    "c@x.com",
		Name:     "Curated Name",
		Company:  "Curated Co",
	})

	p := newTestProcessor(db)
	result := p.Process(newRequest(testEndpoint(models.AuthTypeNone, ""), `{"email":"c@x.com","name":"Spoofed","company":"Spoofed Co"}`, ""))

	if result.HTTPStatus != http.StatusOK {
		t.Fatalf("expected 200, got %d", result.HTTPStatus)
	}
	if result.EntityType != "Contact (Updated)" {
		t.Errorf("expected Contact (Updated), got %s", result.EntityType)
	}

	contact, _ := contacts.GetByEmail("ten_1", "c@x.com")
	if contact.Name != "Curated Name" || contact.Company != "Curated Co" {
		t.Errorf("contact fields must not be mutated by inbound payloads: %+v", contact)
	}

	entries, err := repositories.NewActivityRepository(db).ListByEntity("ten_1", "Contact", contact.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one activity entry, got %d", len(entries))
	}
	if entries[0].Action != "inbound.webhook_received" {
		t.Errorf("unexpected activity action %s", entries[0].Action)
	}

	var leadCount int
	db.QueryRow(`SELECT COUNT(*) FROM leads`).Scan(&leadCount)
	if leadCount != 0 {
		t.Error("a contact match must not create a lead")
	}
}

func TestProcess_MissingEmail(t *testing.T) {
	db := setupTestDB(t)
	p := newTestProcessor(db)

	result := p.Process(newRequest(testEndpoint(models.AuthTypeNone, ""), `{"name":"No Email"}`, ""))

	if result.HTTPStatus != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", result.HTTPStatus)
	}
	if got := countEvents(t, db, models.InboundStatusRejected); got != 1 {
		t.Errorf("expected 1 rejected audit row, got %d", got)
	}
}

func TestProcess_InvalidJSON(t *testing.T) {
	db := setupTestDB(t)
	p := newTestProcessor(db)

	result := p.Process(newRequest(testEndpoint(models.AuthTypeNone, ""), `{not json`, ""))

	if result.HTTPStatus != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", result.HTTPStatus)
	}
	if got := countEvents(t, db, models.InboundStatusRejected); got != 1 {
		t.Errorf("expected 1 rejected audit row, got %d", got)
	}
}

func TestProcess_HMAC(t *testing.T) {
	db := setupTestDB(t)
	p := newTestProcessor(db)
	secret := "topsecret"
	endpoint := testEndpoint(models.AuthTypeHMAC, secret)
	body := `{"email":"h@x.com","name":"H"}`

	t.Run("Missing Signature", func(t *testing.T) {
		result := p.Process(newRequest(endpoint, body, ""))
		if result.HTTPStatus != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", result.HTTPStatus)
		}
	})

	t.Run("Invalid Signature", func(t *testing.T) {
		result := p.Process(newRequest(endpoint, body, webhooks.Sign("wrong-secret", []byte(body))))
		if result.HTTPStatus != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", result.HTTPStatus)
		}
	})

	t.Run("Valid Signature", func(t *testing.T) {
		result := p.Process(newRequest(endpoint, body, webhooks.Sign(secret, []byte(body))))
		if result.HTTPStatus != http.StatusOK {
			t.Errorf("expected 200, got %d (%s)", result.HTTPStatus, result.ErrMessage)
		}
	})

	// The two rejected attempts are on the audit trail, the accepted one too.
	if got := countEvents(t, db, models.InboundStatusFailed); got != 2 {
		t.Errorf("expected 2 failed audit rows, got %d", got)
	}
	if got := countEvents(t, db, models.InboundStatusProcessed); got != 1 {
		t.Errorf("expected 1 processed audit row, got %d", got)
	}
}

func TestProcess_DescriptionSeededFromRawPayload(t *testing.T) {
	db := setupTestDB(t)
	p := newTestProcessor(db)
	body := `{"email":"raw@x.com"}`

	result := p.Process(newRequest(testEndpoint(models.AuthTypeNone, ""), body, ""))
	if result.HTTPStatus != http.StatusOK {
		t.Fatalf("expected 200, got %d", result.HTTPStatus)
	}

	lead, _ := repositories.NewLeadRepository(db).GetByEmail("ten_1", "raw@x.com")
	if lead.Description != body {
		t.Errorf("description should fall back to the raw payload, got %q", lead.Description)
	}
	if lead.Name != "Unknown Inbound" {
		t.Errorf("expected default name, got %q", lead.Name)
	}
}
