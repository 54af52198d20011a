package main

import (
	"fmt"
	"log"
	"net/http"

	"antigravity/internal/api"
	"antigravity/internal/api/handlers"
	"antigravity/internal/api/middleware"
	"antigravity/internal/engine/inbound"
	"antigravity/internal/engine/webhooks"
	"antigravity/internal/pkg/logger"
	"antigravity/internal/platform/auth"
	"antigravity/internal/platform/config"
	"antigravity/internal/platform/database"
	"antigravity/internal/platform/repositories"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Repositories
	tenantRepo := repositories.NewTenantRepository(db)
	userRepo := repositories.NewUserRepository(db)
	leadRepo := repositories.NewLeadRepository(db)
	contactRepo := repositories.NewContactRepository(db)
	activityRepo := repositories.NewActivityRepository(db)
	endpointRepo := repositories.NewEndpointRepository(db)
	eventRepo := repositories.NewInboundEventRepository(db)
	subRepo := repositories.NewSubscriptionRepository(db)
	deliveryRepo := repositories.NewDeliveryRepository(db)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	transport := webhooks.NewTransport(cfg.Webhooks.DeliveryTimeout)
	publisher := webhooks.NewPublisher(subRepo, deliveryRepo, transport)
	processor := inbound.NewProcessor(contactRepo, leadRepo, activityRepo, eventRepo, publisher)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, tokenSvc)
	inboundHandler := handlers.NewInboundHandler(endpointRepo, processor)
	endpointHandler := handlers.NewEndpointHandler(endpointRepo, eventRepo)
	subscriptionHandler := handlers.NewSubscriptionHandler(subRepo, deliveryRepo, publisher)
	leadHandler := handlers.NewLeadHandler(leadRepo, contactRepo, publisher)
	contactHandler := handlers.NewContactHandler(contactRepo, activityRepo, publisher)
	healthHandler := handlers.NewHealthHandler(db)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc)
	tenantMiddleware := middleware.NewTenantMiddleware(tenantRepo)

	deps := &api.Dependencies{
		AuthHandler:         authHandler,
		InboundHandler:      inboundHandler,
		EndpointHandler:     endpointHandler,
		SubscriptionHandler: subscriptionHandler,
		LeadHandler:         leadHandler,
		ContactHandler:      contactHandler,
		HealthHandler:       healthHandler,
		AuthMiddleware:      authMiddleware,
		TenantMiddleware:    tenantMiddleware,
	}
	router := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Server starting on %s", addr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
