package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	apiContext "antigravity/internal/api/context"
	"antigravity/internal/platform/auth"
	"antigravity/internal/platform/repositories"
)

func TestTenantMiddleware(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	tenantRepo := repositories.NewTenantRepository(db)
	middleware := NewTenantMiddleware(tenantRepo)

	t.Run("Valid Tenant", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)

		claims := &auth.Claims{TenantID: "ten_123"}
		ctx := context.WithValue(req.Context(), apiContext.Claims, claims)
		req = req.WithContext(ctx)

		rows := sqlmock.NewRows([]string{"id", "slug", "name", "plan_tier", "created_at", "updated_at"}).
			AddRow("ten_123", "acme", "Acme Inc", "pro", 1234567890, 1234567890)

		mock.ExpectQuery("SELECT (.+) FROM tenants WHERE id = ?").
			WithArgs("ten_123").
			WillReturnRows(rows)

		rr := httptest.NewRecorder()
		handler := middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			tenant := r.Context().Value(apiContext.Tenant).(*TenantContext)
			if tenant.TenantID != "ten_123" {
				t.Errorf("Expected TenantID ten_123, got %s", tenant.TenantID)
			}
			if tenant.TenantSlug != "acme" {
				t.Errorf("Expected slug acme, got %s", tenant.TenantSlug)
			}
			w.WriteHeader(http.StatusOK)
		})

		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
		}
	})

	t.Run("Unknown Tenant", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)

		claims := &auth.Claims{TenantID: "ten_999"}
		ctx := context.WithValue(req.Context(), apiContext.Claims, claims)
		req = req.WithContext(ctx)

		mock.ExpectQuery("SELECT (.+) FROM tenants WHERE id = ?").
			WithArgs("ten_999").
			WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "name", "plan_tier", "created_at", "updated_at"}))

		rr := httptest.NewRecorder()
		handler := middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("Handler should not be called")
		})

		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusForbidden {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusForbidden)
		}
	})

	t.Run("Missing Claims", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)

		rr := httptest.NewRecorder()
		handler := middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("Handler should not be called")
		})

		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusUnauthorized)
		}
	})
}
