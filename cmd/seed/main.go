package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

const seedPassword = "Test@1234"

var (
	adminID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	ownerID = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	userID  = uuid.MustParse("00000000-0000-0000-0000-000000000003")
)

func main() {
	env := getEnv("GRIHA_ENV", "dev")
	if env != "dev" && env != "test" {
		log.Fatalf("refusing to seed: GRIHA_ENV must be 'dev' or 'test' (got '%s')", env)
	}

	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	db := getEnv("POSTGRES_DB", "grihahomes")
	user := getEnv("POSTGRES_USER", "griha")
	password := getEnv("POSTGRES_PASSWORD", "griha")
	sslmode := getEnv("POSTGRES_SSLMODE", "disable")

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, db, sslmode)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	fmt.Println("Seeding database...")

	if err := seedUsers(ctx, pool); err != nil {
		log.Fatalf("seed users: %v", err)
	}
	fmt.Println("✓ Users seeded")

	if err := seedProperties(ctx, pool); err != nil {
		log.Fatalf("seed properties: %v", err)
	}
	fmt.Println("✓ Properties seeded")

	if os.Getenv("SEED_TESTDATA") == "1" {
		if err := seedTestData(ctx, pool); err != nil {
			log.Fatalf("seed test data: %v", err)
		}
		fmt.Println("✓ Test data seeded")
	}

	fmt.Println("\n=== Seed Complete ===")
	fmt.Println("\nDemo Credentials (password for all: " + seedPassword + "):")
	fmt.Println("  Admin: +919999999999")
	fmt.Println("  Owner: +916900000000")
	fmt.Println("  User:  +918888888888")
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func upsertUser(ctx context.Context, pool *pgxpool.Pool, id uuid.UUID, phone, name, role, status, passwordHash string) error {
	now := time.Now()
	_, err := pool.Exec(ctx, `
		INSERT INTO users (id, phone, password_hash, name, role, status, failed_login_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $7)
		ON CONFLICT (phone) DO UPDATE
		SET password_hash = EXCLUDED.password_hash,
		    role = EXCLUDED.role,
		    status = EXCLUDED.status,
		    failed_login_attempts = 0,
		    locked_until = NULL,
		    deleted_at = NULL,
		    updated_at = EXCLUDED.updated_at
	`, id, phone, passwordHash, name, role, status, now)
	return err
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) error {
	hash, err := hashPassword(seedPassword)
	if err != nil {
		return err
	}

	seeds := []struct {
		id    uuid.UUID
		phone string
		name  string
		role  string
	}{
		{adminID, "+919999999999", "Admin", "admin"},
		{ownerID, "+916900000000", "Demo Owner", "owner"},
		{userID, "+918888888888", "Demo User", "user"},
	}

	for _, s := range seeds {
		if err := upsertUser(ctx, pool, s.id, s.phone, s.name, s.role, "active", hash); err != nil {
			return err
		}
	}
	return nil
}

func seedProperties(ctx context.Context, pool *pgxpool.Pool) error {
	properties := []struct {
		id           uuid.UUID
		propertyType string
		propertyFor  string
		title        string
		rooms        int
		bathrooms    int
		sizeSqft     int
		price        string
		city         string
		state        string
		pincode      string
		lat          float64
		lng          float64
	}{
		{
			uuid.MustParse("00000000-0000-0000-0000-000000000101"),
			"apartment", "rent", "2BHK apartment near Koramangala metro",
			2, 2, 950, "32000", "Bengaluru", "Karnataka", "560034", 12.9352, 77.6245,
		},
		{
			uuid.MustParse("00000000-0000-0000-0000-000000000102"),
			"house", "sale", "Independent house with garden in Indiranagar",
			3, 3, 1800, "18500000", "Bengaluru", "Karnataka", "560038", 12.9719, 77.6412,
		},
	}

	now := time.Now()
	expires := now.Add(90 * 24 * time.Hour)

	for _, p := range properties {
		_, err := pool.Exec(ctx, `
			INSERT INTO properties (
				id, owner_id, property_type, property_for, title,
				rooms, bathrooms, size_sqft, price, amenities,
				address, city, state, pincode, latitude, longitude,
				status, expires_at, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
				$11, $12, $13, $14, $15, $16, 'active', $17, $18, $18
			)
			ON CONFLICT (id) DO UPDATE
			SET title = EXCLUDED.title,
			    price = EXCLUDED.price,
			    status = EXCLUDED.status,
			    expires_at = EXCLUDED.expires_at,
			    deleted_at = NULL,
			    updated_at = EXCLUDED.updated_at
		`, p.id, ownerID, p.propertyType, p.propertyFor, p.title,
			p.rooms, p.bathrooms, p.sizeSqft, p.price, []string{"parking", "lift"},
			fmt.Sprintf("%s, %s", p.city, p.state), p.city, p.state, p.pincode, p.lat, p.lng,
			expires, now)
		if err != nil {
			return err
		}
	}
	return nil
}
