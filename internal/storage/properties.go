package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const propertyColumns = `
	id, owner_id, property_type, property_for, title, description,
	rooms, bathrooms, size_sqft, floor, price::text, deposit::text, maintenance::text,
	furnishing, parking, amenities, address, city, state, pincode,
	latitude, longitude, available_from, status, expires_at, deleted_at,
	created_at, updated_at
`

// Listings stay visible for 90 days before they lapse.
const listingLifetime = 90 * 24 * time.Hour

func scanProperty(row interface{ Scan(...any) error }, withDistance bool) (*Property, error) {
	var (
		p                    Property
		price                string
		deposit, maintenance *string
		distance             float64
	)

	dest := []any{
		&p.ID, &p.OwnerID, &p.PropertyType, &p.PropertyFor, &p.Title, &p.Description,
		&p.Rooms, &p.Bathrooms, &p.SizeSqft, &p.Floor, &price, &deposit, &maintenance,
		&p.Furnishing, &p.Parking, &p.Amenities, &p.Address, &p.City, &p.State, &p.Pincode,
		&p.Latitude, &p.Longitude, &p.AvailableFrom, &p.Status, &p.ExpiresAt, &p.DeletedAt,
		&p.CreatedAt, &p.UpdatedAt,
	}
	if withDistance {
		dest = append(dest, &distance)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, mapErr(err)
	}

	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	if deposit != nil {
		d, err := decimal.NewFromString(*deposit)
		if err != nil {
			return nil, fmt.Errorf("parse deposit: %w", err)
		}
		p.Deposit = &d
	}
	if maintenance != nil {
		m, err := decimal.NewFromString(*maintenance)
		if err != nil {
			return nil, fmt.Errorf("parse maintenance: %w", err)
		}
		p.Maintenance = &m
	}
	if withDistance {
		p.DistanceMeters = &distance
	}
	return &p, nil
}

type CreatePropertyParams struct {
	OwnerID       uuid.UUID
	PropertyType  string
	PropertyFor   string
	Title         string
	Description   *string
	Rooms         int
	Bathrooms     int
	SizeSqft      int
	Floor         *int
	Price         decimal.Decimal
	Deposit       *decimal.Decimal
	Maintenance   *decimal.Decimal
	Furnishing    *string
	Parking       *string
	Amenities     []string
	Address       string
	City          string
	State         string
	Pincode       string
	Latitude      float64
	Longitude     float64
	AvailableFrom *time.Time
}

func (s *Store) CountPropertiesByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM properties
		WHERE owner_id = $1 AND deleted_at IS NULL
	`, ownerID).Scan(&count)
	return count, err
}

func (s *Store) CreateProperty(ctx context.Context, params CreatePropertyParams) (*Property, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO properties (
			id, owner_id, property_type, property_for, title, description,
			rooms, bathrooms, size_sqft, floor, price, deposit, maintenance,
			furnishing, parking, amenities, address, city, state, pincode,
			latitude, longitude, available_from, status, expires_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, 'active', $24, now(), now()
		)
		RETURNING `+propertyColumns,
		uuid.New(), params.OwnerID, params.PropertyType, params.PropertyFor, params.Title, params.Description,
		params.Rooms, params.Bathrooms, params.SizeSqft, params.Floor,
		params.Price, decimalPtr(params.Deposit), decimalPtr(params.Maintenance),
		params.Furnishing, params.Parking, params.Amenities, params.Address, params.City, params.State, params.Pincode,
		params.Latitude, params.Longitude, params.AvailableFrom, time.Now().Add(listingLifetime),
	)
	return scanProperty(row, false)
}

func decimalPtr(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}

func (s *Store) GetProperty(ctx context.Context, propertyID uuid.UUID) (*Property, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+propertyColumns+`
		FROM properties
		WHERE id = $1
	`, propertyID)
	return scanProperty(row, false)
}

type PropertyFilters struct {
	PropertyType string
	PropertyFor  string
	City         string
	State        string
	Furnishing   string
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	MinRooms     *int
	MaxRooms     *int
	Amenities    []string

	Latitude  *float64
	Longitude *float64
	RadiusKm  *float64

	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

func (f PropertyFilters) geoSearch() bool {
	return f.Latitude != nil && f.Longitude != nil && f.RadiusKm != nil
}

// ListProperties returns active, unexpired, non-deleted listings matching
// the filters. With lat/lng/radius set it switches to the PostGIS radius
// search ordered by distance.
func (s *Store) ListProperties(ctx context.Context, f PropertyFilters) ([]Property, int, error) {
	if f.geoSearch() {
		return s.listByLocation(ctx, f)
	}

	where := "deleted_at IS NULL AND status = 'active' AND expires_at > now()"
	var args []any
	add := func(clause string, val any) {
		args = append(args, val)
		where += fmt.Sprintf(" AND "+clause, len(args))
	}

	if f.PropertyType != "" {
		add("property_type = $%d", f.PropertyType)
	}
	if f.PropertyFor != "" {
		add("property_for = $%d", f.PropertyFor)
	}
	if f.City != "" {
		add("city ILIKE '%%' || $%d || '%%'", f.City)
	}
	if f.State != "" {
		add("state ILIKE '%%' || $%d || '%%'", f.State)
	}
	if f.Furnishing != "" {
		add("furnishing = $%d", f.Furnishing)
	}
	if f.MinPrice != nil {
		add("price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("price <= $%d", *f.MaxPrice)
	}
	if f.MinRooms != nil {
		add("rooms >= $%d", *f.MinRooms)
	}
	if f.MaxRooms != nil {
		add("rooms <= $%d", *f.MaxRooms)
	}
	if len(f.Amenities) > 0 {
		add("amenities @> $%d", f.Amenities)
	}

	orderBy := "created_at DESC"
	if f.SortBy == "price" {
		orderBy = "price ASC"
		if strings.EqualFold(f.SortOrder, "desc") {
			orderBy = "price DESC"
		}
	}

	limit, offset := pageBounds(f.Page, f.Limit)
	query := fmt.Sprintf(`
		SELECT %s FROM properties
		WHERE %s
		ORDER BY %s
		LIMIT %d OFFSET %d
	`, propertyColumns, where, orderBy, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Property
	for rows.Next() {
		p, err := scanProperty(rows, false)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := "SELECT count(*) FROM properties WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (s *Store) listByLocation(ctx context.Context, f PropertyFilters) ([]Property, int, error) {
	radiusMeters := *f.RadiusKm * 1000
	limit, offset := pageBounds(f.Page, f.Limit)

	query := fmt.Sprintf(`
		SELECT %s,
			ST_Distance(
				ST_SetSRID(ST_MakePoint(longitude, latitude), 4326)::geography,
				ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
			) AS distance
		FROM properties
		WHERE deleted_at IS NULL
			AND status = 'active'
			AND expires_at > now()
			AND ST_DWithin(
				ST_SetSRID(ST_MakePoint(longitude, latitude), 4326)::geography,
				ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
				$3
			)
		ORDER BY distance ASC
		LIMIT %d OFFSET %d
	`, propertyColumns, limit, offset)

	rows, err := s.pool.Query(ctx, query, *f.Longitude, *f.Latitude, radiusMeters)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Property
	for rows.Next() {
		p, err := scanProperty(rows, true)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	err = s.pool.QueryRow(ctx, `
		SELECT count(*) FROM properties
		WHERE deleted_at IS NULL
			AND status = 'active'
			AND expires_at > now()
			AND ST_DWithin(
				ST_SetSRID(ST_MakePoint(longitude, latitude), 4326)::geography,
				ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
				$3
			)
	`, *f.Longitude, *f.Latitude, radiusMeters).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

type UpdatePropertyParams struct {
	PropertyType  *string
	PropertyFor   *string
	Title         *string
	Description   *string
	Rooms         *int
	Bathrooms     *int
	SizeSqft      *int
	Floor         *int
	Price         *decimal.Decimal
	Deposit       *decimal.Decimal
	Maintenance   *decimal.Decimal
	Furnishing    *string
	Parking       *string
	Amenities     []string
	Address       *string
	City          *string
	State         *string
	Pincode       *string
	Latitude      *float64
	Longitude     *float64
	AvailableFrom *time.Time
}

func (s *Store) UpdateProperty(ctx context.Context, propertyID uuid.UUID, params UpdatePropertyParams) (*Property, error) {
	set := "updated_at = now()"
	args := []any{propertyID}
	add := func(col string, val any) {
		args = append(args, val)
		set += fmt.Sprintf(", %s = $%d", col, len(args))
	}

	if params.PropertyType != nil {
		add("property_type", *params.PropertyType)
	}
	if params.PropertyFor != nil {
		add("property_for", *params.PropertyFor)
	}
	if params.Title != nil {
		add("title", *params.Title)
	}
	if params.Description != nil {
		add("description", *params.Description)
	}
	if params.Rooms != nil {
		add("rooms", *params.Rooms)
	}
	if params.Bathrooms != nil {
		add("bathrooms", *params.Bathrooms)
	}
	if params.SizeSqft != nil {
		add("size_sqft", *params.SizeSqft)
	}
	if params.Floor != nil {
		add("floor", *params.Floor)
	}
	if params.Price != nil {
		add("price", *params.Price)
	}
	if params.Deposit != nil {
		add("deposit", *params.Deposit)
	}
	if params.Maintenance != nil {
		add("maintenance", *params.Maintenance)
	}
	if params.Furnishing != nil {
		add("furnishing", *params.Furnishing)
	}
	if params.Parking != nil {
		add("parking", *params.Parking)
	}
	if params.Amenities != nil {
		add("amenities", params.Amenities)
	}
	if params.Address != nil {
		add("address", *params.Address)
	}
	if params.City != nil {
		add("city", *params.City)
	}
	if params.State != nil {
		add("state", *params.State)
	}
	if params.Pincode != nil {
		add("pincode", *params.Pincode)
	}
	if params.Latitude != nil {
		add("latitude", *params.Latitude)
	}
	if params.Longitude != nil {
		add("longitude", *params.Longitude)
	}
	if params.AvailableFrom != nil {
		add("available_from", *params.AvailableFrom)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE properties SET `+set+`
		WHERE id = $1
		RETURNING `+propertyColumns, args...)
	return scanProperty(row, false)
}

func (s *Store) UpdatePropertyStatus(ctx context.Context, propertyID uuid.UUID, status string) (*Property, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE properties
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+propertyColumns, propertyID, status)
	return scanProperty(row, false)
}

func (s *Store) SoftDeleteProperty(ctx context.Context, propertyID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE properties
		SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, propertyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListPropertiesByOwner(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]Property, int, error) {
	limit, offset := pageBounds(page, limit)

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM properties
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT %d OFFSET %d
	`, propertyColumns, limit, offset), ownerID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Property
	for rows.Next() {
		p, err := scanProperty(rows, false)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	err = s.pool.QueryRow(ctx, `
		SELECT count(*) FROM properties
		WHERE owner_id = $1 AND deleted_at IS NULL
	`, ownerID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func pageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}
	return limit, (page - 1) * limit
}
