package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const inquiryColumns = `id, user_id, property_id, message, status, admin_notes, contacted_at, created_at`

func scanInquiry(row interface{ Scan(...any) error }) (*Inquiry, error) {
	var i Inquiry
	err := row.Scan(&i.ID, &i.UserID, &i.PropertyID, &i.Message, &i.Status, &i.AdminNotes, &i.ContactedAt, &i.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &i, nil
}

// HasRecentInquiry reports whether the user already inquired about this
// property since the given instant.
func (s *Store) HasRecentInquiry(ctx context.Context, userID, propertyID uuid.UUID, since time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM inquiries
			WHERE user_id = $1 AND property_id = $2 AND created_at >= $3
		)
	`, userID, propertyID, since).Scan(&exists)
	return exists, err
}

func (s *Store) CountInquiriesSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM inquiries
		WHERE user_id = $1 AND created_at >= $2
	`, userID, since).Scan(&count)
	return count, err
}

func (s *Store) CreateInquiry(ctx context.Context, userID, propertyID uuid.UUID, message string) (*Inquiry, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO inquiries (id, user_id, property_id, message, status, created_at)
		VALUES ($1, $2, $3, $4, 'pending', now())
		RETURNING `+inquiryColumns,
		uuid.New(), userID, propertyID, message)
	return scanInquiry(row)
}

func (s *Store) GetInquiry(ctx context.Context, inquiryID uuid.UUID) (*Inquiry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+inquiryColumns+`
		FROM inquiries
		WHERE id = $1
	`, inquiryID)
	return scanInquiry(row)
}

func (s *Store) ListInquiries(ctx context.Context, page, limit int, status string) ([]Inquiry, int, error) {
	limit, offset := pageBounds(page, limit)

	where := "TRUE"
	var args []any
	if status != "" {
		args = append(args, status)
		where = "status = $1"
	}

	query := fmt.Sprintf(`
		SELECT %s FROM inquiries
		WHERE %s
		ORDER BY created_at DESC
		LIMIT %d OFFSET %d
	`, inquiryColumns, where, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Inquiry
	for rows.Next() {
		i, err := scanInquiry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *i)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM inquiries WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (s *Store) ListInquiriesByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]Inquiry, int, error) {
	limit, offset := pageBounds(page, limit)

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM inquiries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT %d OFFSET %d
	`, inquiryColumns, limit, offset), userID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Inquiry
	for rows.Next() {
		i, err := scanInquiry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *i)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	err = s.pool.QueryRow(ctx, `
		SELECT count(*) FROM inquiries WHERE user_id = $1
	`, userID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// UpdateInquiry sets status and admin notes; moving to contacted stamps
// contacted_at once.
func (s *Store) UpdateInquiry(ctx context.Context, inquiryID uuid.UUID, status string, adminNotes *string) (*Inquiry, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE inquiries
		SET status = $2,
		    admin_notes = COALESCE($3, admin_notes),
		    contacted_at = CASE WHEN $2 = 'contacted' AND contacted_at IS NULL THEN now() ELSE contacted_at END
		WHERE id = $1
		RETURNING `+inquiryColumns, inquiryID, status, adminNotes)
	return scanInquiry(row)
}
