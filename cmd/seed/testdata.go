package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// seedTestData adds rows covering the negative auth paths: a locked
// account, an inactive one, and a soft-deleted listing.
func seedTestData(ctx context.Context, pool *pgxpool.Pool) error {
	lockedID := uuid.MustParse("00000000-0000-0000-0000-000000000004")
	inactiveID := uuid.MustParse("00000000-0000-0000-0000-000000000005")

	hash, err := hashPassword(seedPassword)
	if err != nil {
		return err
	}

	if err := upsertUser(ctx, pool, lockedID, "+917777777777", "Locked User", "user", "active", hash); err != nil {
		return err
	}
	lockedUntil := time.Now().Add(30 * time.Minute)
	_, err = pool.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = 5, locked_until = $2
		WHERE id = $1
	`, lockedID, lockedUntil)
	if err != nil {
		return err
	}

	if err := upsertUser(ctx, pool, inactiveID, "+916666666666", "Inactive User", "user", "inactive", hash); err != nil {
		return err
	}

	deletedPropertyID := uuid.MustParse("00000000-0000-0000-0000-000000000103")
	now := time.Now()
	_, err = pool.Exec(ctx, `
		INSERT INTO properties (
			id, owner_id, property_type, property_for, title,
			rooms, bathrooms, size_sqft, price, address, city, state, pincode,
			latitude, longitude, status, expires_at, deleted_at, created_at, updated_at
		) VALUES (
			$1, $2, 'apartment', 'rent', 'Delisted studio for lifecycle tests',
			1, 1, 400, '15000', 'HSR Layout, Bengaluru', 'Bengaluru', 'Karnataka', '560102',
			12.9121, 77.6446, 'inactive', $3, $4, $4, $4
		)
		ON CONFLICT (id) DO UPDATE SET deleted_at = EXCLUDED.deleted_at
	`, deletedPropertyID, ownerID, now.Add(90*24*time.Hour), now)
	return err
}
