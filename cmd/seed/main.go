package main

import (
	"database/sql"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/sessionkit/identity-service/config"
	"github.com/sessionkit/identity-service/pkg/helpers"
)

// Seeds a demo account for local development. Safe to run repeatedly:
// the upsert keys on email.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("refusing to seed: %v", err)
	}

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	hash, err := helpers.HashPassword("password123")
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	const q = `
		INSERT INTO users (name, email, password_hash, role, method)
		VALUES ($1, $2, $3, 'ADMIN', 'CREDENTIALS')
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name, password_hash = EXCLUDED.password_hash, updated_at = now()`

	if _, err := db.Exec(q, "Demo Admin", "admin@example.com", hash); err != nil {
		log.Fatalf("failed to seed demo user: %v", err)
	}
	log.Println("seeded demo user admin@example.com")
}
