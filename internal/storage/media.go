package storage

import (
	"context"

	"github.com/google/uuid"
)

const mediaColumns = `id, property_id, public_id, type, position, created_at`

func scanMedia(row interface{ Scan(...any) error }) (*PropertyMedia, error) {
	var m PropertyMedia
	err := row.Scan(&m.ID, &m.PropertyID, &m.PublicID, &m.Type, &m.Position, &m.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (s *Store) ListMediaByProperty(ctx context.Context, propertyID uuid.UUID) ([]PropertyMedia, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+mediaColumns+`
		FROM property_media
		WHERE property_id = $1
		ORDER BY position ASC
	`, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PropertyMedia
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *m)
	}
	return items, rows.Err()
}

func (s *Store) CountMediaByProperty(ctx context.Context, propertyID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM property_media WHERE property_id = $1
	`, propertyID).Scan(&count)
	return count, err
}

func (s *Store) CreateMedia(ctx context.Context, propertyID uuid.UUID, publicID, mediaType string, position int) (*PropertyMedia, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO property_media (id, property_id, public_id, type, position, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING `+mediaColumns,
		uuid.New(), propertyID, publicID, mediaType, position)
	return scanMedia(row)
}

func (s *Store) GetMedia(ctx context.Context, mediaID uuid.UUID) (*PropertyMedia, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+mediaColumns+`
		FROM property_media
		WHERE id = $1
	`, mediaID)
	return scanMedia(row)
}

func (s *Store) DeleteMedia(ctx context.Context, mediaID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM property_media WHERE id = $1
	`, mediaID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReorderMedia rewrites positions to match the given order inside one
// transaction so a failed reorder cannot leave a half-applied sequence.
func (s *Store) ReorderMedia(ctx context.Context, propertyID uuid.UUID, mediaIDs []uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for position, mediaID := range mediaIDs {
		tag, err := tx.Exec(ctx, `
			UPDATE property_media
			SET position = $3
			WHERE id = $1 AND property_id = $2
		`, mediaID, propertyID, position)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
	}

	return tx.Commit(ctx)
}
