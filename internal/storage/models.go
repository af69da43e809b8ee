package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	RoleUser  = "user"
	RoleOwner = "owner"
	RoleAdmin = "admin"

	StatusActive   = "active"
	StatusInactive = "inactive"

	PropertyStatusActive   = "active"
	PropertyStatusInactive = "inactive"
	PropertyStatusRented   = "rented"
	PropertyStatusSold     = "sold"

	InquiryStatusPending   = "pending"
	InquiryStatusContacted = "contacted"
	InquiryStatusClosed    = "closed"
)

type User struct {
	ID                  uuid.UUID
	Phone               string
	PasswordHash        *string
	Name                string
	Email               *string
	Photo               *string
	Role                string
	Status              string
	FailedLoginAttempts int
	LockedUntil         *time.Time
	DeletedAt           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Deleted reports whether the row is soft-deleted. Soft-deleted users are
// invisible to every auth and lookup path.
func (u *User) Deleted() bool { return u.DeletedAt != nil }

type Property struct {
	ID            uuid.UUID
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
	Status        string
	ExpiresAt     time.Time
	DeletedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// DistanceMeters is populated only by geo-radius searches.
	DistanceMeters *float64
}

func (p *Property) Deleted() bool { return p.DeletedAt != nil }

type PropertyMedia struct {
	ID         uuid.UUID
	PropertyID uuid.UUID
	PublicID   string
	Type       string
	Position   int
	CreatedAt  time.Time
}

type Inquiry struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	PropertyID  uuid.UUID
	Message     string
	Status      string
	AdminNotes  *string
	ContactedAt *time.Time
	CreatedAt   time.Time
}
