package middleware

import (
	"context"
	"net/http"

	apiContext "antigravity/internal/api/context"
	"antigravity/internal/pkg/errors"
	"antigravity/internal/platform/auth"
	"antigravity/internal/platform/repositories"
)

// TenantContext scopes a request to exactly one tenant. Every repository call
// made downstream takes the tenant ID from here; handlers never accept one
// from the request body.
type TenantContext struct {
	TenantID   string
	TenantSlug string
}

type TenantMiddleware struct {
	tenantRepo *repositories.TenantRepository
}

func NewTenantMiddleware(tenantRepo *repositories.TenantRepository) *TenantMiddleware {
	return &TenantMiddleware{tenantRepo: tenantRepo}
}

func (m *TenantMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
			return
		}

		tenant, err := m.tenantRepo.GetByID(claims.TenantID)
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load tenant", nil)
			return
		}
		if tenant == nil {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Tenant not found", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Tenant, &TenantContext{
			TenantID:   tenant.ID,
			TenantSlug: tenant.Slug,
		})

		next(w, r.WithContext(ctx))
	}
}
