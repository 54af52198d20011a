package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/bcrypt"

	"antigravity/internal/pkg/secrets"
	"antigravity/internal/platform/config"
	"antigravity/internal/platform/database"
	"antigravity/internal/platform/models"
	"antigravity/internal/platform/repositories"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	dir := flag.String("dir", "migrations", "Path to migration directory")
	seed := flag.Bool("seed", false, "Seed a demo tenant after migrating")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := runMigrations(db, *dir); err != nil {
		log.Fatal(err)
	}

	if *seed {
		if err := seedDemoTenant(db); err != nil {
			log.Fatalf("Failed to seed demo tenant: %v", err)
		}
	}

	fmt.Println("Migration completed successfully")
}

func runMigrations(db *sql.DB, dir string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migration directory: %w", err)
	}

	for _, file := range files {
		if filepath.Ext(file.Name()) != ".sql" {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file.Name(), err)
		}

		log.Printf("Applying migration: %s", file.Name())
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", file.Name(), err)
		}
	}
	return nil
}

// seedDemoTenant provisions a tenant, an owner login and an open inbound
// endpoint so a fresh checkout can receive webhooks immediately.
func seedDemoTenant(db *sql.DB) error {
	tenantRepo := repositories.NewTenantRepository(db)

	existing, err := tenantRepo.GetBySlug("acme")
	if err != nil {
		return err
	}
	if existing != nil {
		log.Println("Demo tenant already seeded, skipping")
		return nil
	}

	tenant := &models.Tenant{Slug: "acme", Name: "Acme Inc"}
	if err := tenantRepo.Create(tenant); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user := &models.User{
		TenantID:     tenant.ID,
		Email:        "owner@acme.test",
		FullName:     "Acme Owner",
		PasswordHash: string(hash),
		Role:         "owner",
	}
	if err := repositories.NewUserRepository(db).Create(user); err != nil {
		return err
	}

	key, err := secrets.NewEndpointKey()
	if err != nil {
		return err
	}
	endpoint := &models.InboundEndpoint{
		TenantID:    tenant.ID,
		Name:        "Website contact form",
		EndpointKey: key,
		AuthType:    models.AuthTypeNone,
		IsActive:    true,
	}
	if err := repositories.NewEndpointRepository(db).Create(endpoint); err != nil {
		return err
	}

	log.Printf("Seeded tenant %s (created %s)", tenant.Slug, time.Now().Format(time.RFC3339))
	fmt.Printf("  login:    owner@acme.test / changeme\n")
	fmt.Printf("  inbound:  POST /inbound/%s/%s\n", tenant.Slug, endpoint.EndpointKey)
	return nil
}
