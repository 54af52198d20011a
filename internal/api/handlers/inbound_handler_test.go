package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	_ "github.com/mattn/go-sqlite3"

	apiContext "antigravity/internal/api/context"
	"antigravity/internal/engine/inbound"
	"antigravity/internal/engine/webhooks"
	"antigravity/internal/platform/models"
	"antigravity/internal/platform/repositories"
)

func setupInboundTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	query := `
	CREATE TABLE tenants (
		id TEXT PRIMARY KEY,
		slug TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		plan_tier TEXT DEFAULT 'free',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		deleted_at INTEGER
	);
	CREATE TABLE inbound_endpoints (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		endpoint_key TEXT NOT NULL,
		auth_type TEXT NOT NULL DEFAULT 'NONE',
		secret TEXT DEFAULT '',
		mapping_config TEXT DEFAULT '{}',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		UNIQUE(tenant_id, endpoint_key)
	);
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

func newInboundHandler(db *sql.DB) *InboundHandler {
	processor := inbound.NewProcessor(
		repositories.NewContactRepository(db),
		repositories.NewLeadRepository(db),
		repositories.NewActivityRepository(db),
		repositories.NewInboundEventRepository(db),
		nil,
	)
	return NewInboundHandler(repositories.NewEndpointRepository(db), processor)
}

func seedEndpoint(t *testing.T, db *sql.DB, authType, secret string) *models.InboundEndpoint {
	t.Helper()

	tenantRepo := repositories.NewTenantRepository(db)
	tenant := &models.Tenant{Slug: "acme", Name: "Acme Inc"}
	if err := tenantRepo.Create(tenant); err != nil {
		t.Fatalf("Failed to create tenant: %v", err)
	}

	endpoint := &models.InboundEndpoint{
		TenantID:    tenant.ID,
		Name:        "crm intake",
		EndpointKey: "k1",
		AuthType:    authType,
		Secret:      secret,
		IsActive:    true,
	}
	if err := repositories.NewEndpointRepository(db).Create(endpoint); err != nil {
		t.Fatalf("Failed to create endpoint: %v", err)
	}
	return endpoint
}

func postInbound(handler *InboundHandler, tenantSlug, endpointKey, body string, headers map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", "/inbound/"+tenantSlug+"/"+endpointKey, bytes.NewBufferString(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	params := httprouter.Params{
		{Key: "tenant_slug", Value: tenantSlug},
		{Key: "endpoint_key", Value: endpointKey},
	}
	req = req.WithContext(context.WithValue(req.Context(), apiContext.Params, params))

	rr := httptest.NewRecorder()
	handler.Receive(rr, req)
	return rr
}

func TestInboundHandler_EndToEnd(t *testing.T) {
	db := setupInboundTestDB(t)
	seedEndpoint(t, db, models.AuthTypeNone, "")
	handler := newInboundHandler(db)
	body := `{"email":"a@x.com","name":"A"}`

	// First post creates a lead.
	rr := postInbound(handler, "acme", "k1", body, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
		Type    string `json:"type"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unparseable response: %v", err)
	}
	if !resp.Success || resp.ID == "" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Type != "Lead (Created)" {
		t.Errorf("expected Lead (Created), got %s", resp.Type)
	}

	var leadCount int
	db.QueryRow(`SELECT COUNT(*) FROM leads WHERE email = 'a@x.com' AND status = 'NEW' AND name = 'A'`).Scan(&leadCount)
	if leadCount != 1 {
		t.Fatalf("expected one NEW lead for a@x.com, got %d", leadCount)
	}

	// Replaying the identical body hits the existing-lead branch.
	rr = postInbound(handler, "acme", "k1", body, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", rr.Code)
	}

	db.QueryRow(`SELECT COUNT(*) FROM leads`).Scan(&leadCount)
	if leadCount != 1 {
		t.Errorf("replay must not create a second lead, got %d", leadCount)
	}

	var eventCount int
	db.QueryRow(`SELECT COUNT(*) FROM inbound_events WHERE status = 'processed'`).Scan(&eventCount)
	if eventCount != 2 {
		t.Errorf("each attempt is independently logged: expected 2 audit rows, got %d", eventCount)
	}
}

func TestInboundHandler_UnknownEndpoint(t *testing.T) {
	db := setupInboundTestDB(t)
	seedEndpoint(t, db, models.AuthTypeNone, "")
	handler := newInboundHandler(db)

	cases := []struct {
		name string
		slug string
		key  string
	}{
		{"Unknown Tenant", "nobody", "k1"},
		{"Unknown Key", "acme", "wrong"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := postInbound(handler, tc.slug, tc.key, `{"email":"a@x.com"}`, nil)
			if rr.Code != http.StatusNotFound {
				t.Errorf("expected 404, got %d", rr.Code)
			}
		})
	}

	// Nothing to attribute the calls to, so no audit rows.
	var eventCount int
	db.QueryRow(`SELECT COUNT(*) FROM inbound_events`).Scan(&eventCount)
	if eventCount != 0 {
		t.Errorf("unknown endpoint must not write audit rows, got %d", eventCount)
	}
}

func TestInboundHandler_InactiveEndpoint(t *testing.T) {
	db := setupInboundTestDB(t)
	endpoint := seedEndpoint(t, db, models.AuthTypeNone, "")
	repositories.NewEndpointRepository(db).SetActive(endpoint.TenantID, endpoint.ID, false)
	handler := newInboundHandler(db)

	rr := postInbound(handler, "acme", "k1", `{"email":"a@x.com"}`, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("deactivated endpoint should 404, got %d", rr.Code)
	}
}

func TestInboundHandler_HMAC(t *testing.T) {
	db := setupInboundTestDB(t)
	secret := "ep-secret"
	seedEndpoint(t, db, models.AuthTypeHMAC, secret)
	handler := newInboundHandler(db)
	body := `{"email":"h@x.com","name":"H"}`

	t.Run("Rejects Bad Signature", func(t *testing.T) {
		rr := postInbound(handler, "acme", "k1", body, map[string]string{
			"x-webhook-signature": webhooks.Sign("not-the-secret", []byte(body)),
		})
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("Accepts Correct Signature", func(t *testing.T) {
		rr := postInbound(handler, "acme", "k1", body, map[string]string{
			"x-webhook-signature": webhooks.Sign(secret, []byte(body)),
		})
		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	var failedCount int
	db.QueryRow(`SELECT COUNT(*) FROM inbound_events WHERE status = 'failed'`).Scan(&failedCount)
	if failedCount != 1 {
		t.Errorf("rejected attempt should be on the audit trail, got %d failed rows", failedCount)
	}
}

func TestInboundHandler_SourceIPCapture(t *testing.T) {
	db := setupInboundTestDB(t)
	seedEndpoint(t, db, models.AuthTypeNone, "")
	handler := newInboundHandler(db)

	postInbound(handler, "acme", "k1", `{"email":"ip@x.com"}`, map[string]string{
		"X-Forwarded-For": "198.51.100.7",
	})
	postInbound(handler, "acme", "k1", `{"email":"ip2@x.com"}`, nil)

	var ip string
	db.QueryRow(`SELECT source_ip FROM inbound_events WHERE payload LIKE '%ip@x.com%'`).Scan(&ip)
	if ip != "198.51.100.7" {
		t.Errorf("expected forwarded IP recorded, got %q", ip)
	}
	db.QueryRow(`SELECT source_ip FROM inbound_events WHERE payload LIKE '%ip2@x.com%'`).Scan(&ip)
	if ip != "unknown" {
		t.Errorf("expected fallback 'unknown', got %q", ip)
	}
}

func TestInboundHandler_MissingEmail(t *testing.T) {
	db := setupInboundTestDB(t)
	seedEndpoint(t, db, models.AuthTypeNone, "")
	handler := newInboundHandler(db)

	rr := postInbound(handler, "acme", "k1", `{"name":"No Email"}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unparseable error body: %v", err)
	}
	if body.Error == "" {
		t.Error("expected {error} body on rejection")
	}
}
