package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "antigravity/internal/api/context"
	"antigravity/internal/api/handlers"
	"antigravity/internal/api/middleware"
	"antigravity/internal/pkg/errors"
	"antigravity/internal/platform/auth"
)

type Dependencies struct {
	AuthHandler         *handlers.AuthHandler
	InboundHandler      *handlers.InboundHandler
	EndpointHandler     *handlers.EndpointHandler
	SubscriptionHandler *handlers.SubscriptionHandler
	LeadHandler         *handlers.LeadHandler
	ContactHandler      *handlers.ContactHandler
	HealthHandler       *handlers.HealthHandler
	AuthMiddleware      *middleware.AuthMiddleware
	TenantMiddleware    *middleware.TenantMiddleware
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	router.GET("/healthz", wrap(deps.HealthHandler.Check))

	// Public ingestion endpoint. The endpoint key in the path is the
	// credential; no session auth applies here.
	router.POST("/inbound/:tenant_slug/:endpoint_key", wrap(deps.InboundHandler.Receive))

	// Authentication
	router.POST("/api/v1/auth/login", wrap(deps.AuthHandler.Login))

	authMid := deps.AuthMiddleware
	tenantMid := deps.TenantMiddleware

	// Lead management
	router.POST("/api/v1/leads",
		chain(deps.LeadHandler.Create, authMid.Handle, tenantMid.Handle))
	router.GET("/api/v1/leads",
		chain(deps.LeadHandler.List, authMid.Handle, tenantMid.Handle))
	router.GET("/api/v1/leads/:lead_id",
		chain(deps.LeadHandler.Get, authMid.Handle, tenantMid.Handle))
	router.PATCH("/api/v1/leads/:lead_id",
		chain(deps.LeadHandler.Update, authMid.Handle, tenantMid.Handle))
	router.POST("/api/v1/leads/:lead_id/convert",
		chain(deps.LeadHandler.Convert, authMid.Handle, tenantMid.Handle))

	// Contact management
	router.POST("/api/v1/contacts",
		chain(deps.ContactHandler.Create, authMid.Handle, tenantMid.Handle))
	router.GET("/api/v1/contacts",
		chain(deps.ContactHandler.List, authMid.Handle, tenantMid.Handle))
	router.GET("/api/v1/contacts/:contact_id",
		chain(deps.ContactHandler.Get, authMid.Handle, tenantMid.Handle))
	router.GET("/api/v1/contacts/:contact_id/timeline",
		chain(deps.ContactHandler.Timeline, authMid.Handle, tenantMid.Handle))

	// Inbound automation config
	router.POST("/api/v1/automation/endpoints",
		chain(deps.EndpointHandler.Create, authMid.Handle, tenantMid.Handle, requireRole("admin", "owner")))
	router.GET("/api/v1/automation/endpoints",
		chain(deps.EndpointHandler.List, authMid.Handle, tenantMid.Handle))
	router.POST("/api/v1/automation/endpoints/:endpoint_id/rotate",
		chain(deps.EndpointHandler.RotateSecret, authMid.Handle, tenantMid.Handle, requireRole("admin", "owner")))
	router.PATCH("/api/v1/automation/endpoints/:endpoint_id",
		chain(deps.EndpointHandler.Toggle, authMid.Handle, tenantMid.Handle, requireRole("admin", "owner")))
	router.GET("/api/v1/automation/endpoints/:endpoint_id/events",
		chain(deps.EndpointHandler.ListEvents, authMid.Handle, tenantMid.Handle))

	// Outbound automation config
	router.POST("/api/v1/automation/subscriptions",
		chain(deps.SubscriptionHandler.Create, authMid.Handle, tenantMid.Handle, requireRole("admin", "owner")))
	router.GET("/api/v1/automation/subscriptions",
		chain(deps.SubscriptionHandler.List, authMid.Handle, tenantMid.Handle))
	router.DELETE("/api/v1/automation/subscriptions/:subscription_id",
		chain(deps.SubscriptionHandler.Delete, authMid.Handle, tenantMid.Handle, requireRole("admin", "owner")))
	router.GET("/api/v1/automation/subscriptions/:subscription_id/deliveries",
		chain(deps.SubscriptionHandler.ListDeliveries, authMid.Handle, tenantMid.Handle))
	router.POST("/api/v1/automation/subscriptions/test",
		chain(deps.SubscriptionHandler.TriggerTest, authMid.Handle, tenantMid.Handle))

	// Manual retry trigger
	router.POST("/api/v1/automation/retries",
		chain(deps.SubscriptionHandler.TriggerRetries, authMid.Handle, tenantMid.Handle, requireRole("admin", "owner")))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

func requireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

			allowed := false
			for _, role := range roles {
				if claims.Role == role {
					allowed = true
					break
				}
			}

			if !allowed {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions", nil)
				return
			}

			next(w, r)
		}
	}
}
