package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"antigravity/internal/engine/webhooks"
	"antigravity/internal/pkg/logger"
	"antigravity/internal/platform/config"
	"antigravity/internal/platform/database"
	"antigravity/internal/platform/repositories"
	"antigravity/internal/workers"
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

	subRepo := repositories.NewSubscriptionRepository(db)
	deliveryRepo := repositories.NewDeliveryRepository(db)
	transport := webhooks.NewTransport(cfg.Webhooks.DeliveryTimeout)
	publisher := webhooks.NewPublisher(subRepo, deliveryRepo, transport)

	retryWorker := workers.NewRetryWorker(publisher)

	c := cron.New()
	if _, err := c.AddFunc(cfg.Webhooks.RetrySchedule, retryWorker.Run); err != nil {
		log.Fatalf("Invalid retry schedule %q: %v", cfg.Webhooks.RetrySchedule, err)
	}

	log.Printf("Starting background workers (retry schedule: %s)", cfg.Webhooks.RetrySchedule)
	c.Start()

	// One sweep immediately so a restart doesn't wait out the first interval.
	retryWorker.Run()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down workers...")
	<-c.Stop().Done()
}
