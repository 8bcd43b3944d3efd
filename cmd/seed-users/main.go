package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/dlsarena/backend/internal/auth"
	"github.com/dlsarena/backend/internal/config"
	"github.com/dlsarena/backend/internal/database"
	"github.com/dlsarena/backend/internal/models"
	"github.com/dlsarena/backend/internal/store"
)

type seedUser struct {
	email string
	name  string
	dlsID string
}

var seedUsers = []seedUser{
	{"alice@dlsarena.local", "Alice", "alice001"},
	{"bob@dlsarena.local", "Bob", "bob00002"},
}

func main() {
	// Initialize configuration (loads .env if present)
	cfg := config.Load()
	if cfg.Environment == "production" {
		log.Fatalf("Refusing to seed users in production")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "password123"
		log.Printf("WARNING: Using default seed password. Set SEED_PASSWORD to override")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	ctx := context.Background()
	st := store.New(db)
	for i, su := range seedUsers {
		u, err := st.GetUserByEmail(ctx, su.email)
		if errors.Is(err, store.ErrNotFound) {
			u = &models.User{Email: su.email, Name: su.name, PasswordHash: hash}
			err = st.CreateUser(ctx, u)
		}
		if err != nil {
			log.Fatalf("Failed to create %s: %v", su.email, err)
		}

		// sandbox credentials; any non-empty pair is accepted when the exchange is not configured
		if err := st.LinkExchange(ctx, u.ID, fmt.Sprintf("sandbox-key-%d", i+1), "sandbox-secret"); err != nil {
			log.Fatalf("Failed to link exchange for %s: %v", su.email, err)
		}
		if err := st.SetDLSID(ctx, u.ID, su.dlsID); err != nil && !errors.Is(err, store.ErrDuplicateDLSID) {
			log.Fatalf("Failed to set DLS ID for %s: %v", su.email, err)
		}
		log.Printf("✓ Seeded %s (id=%s, dls_id=%s)", su.email, u.ID, su.dlsID)
	}
	log.Printf("Login with any seeded email and password %q", password)
}
