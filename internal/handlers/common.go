package handlers

import (
	"time"

	"github.com/google/uuid"
	"github.com/ravikovind/griha-homes/internal/storage"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type pageMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type pagedResponse struct {
	Data any      `json:"data"`
	Meta pageMeta `json:"meta"`
}

func newPageMeta(page, limit, total int) pageMeta {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}
	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return pageMeta{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

// userView is the public projection of a user row. Password hash and
// lockout counters never leave the server.
type userView struct {
	ID        uuid.UUID `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Email     *string   `json:"email,omitempty"`
	Photo     *string   `json:"photo,omitempty"`
	Role      string    `json:"role"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func viewUser(u *storage.User) userView {
	return userView{
		ID:        u.ID,
		Phone:     u.Phone,
		Name:      u.Name,
		Email:     u.Email,
		Photo:     u.Photo,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func viewUserAdmin(u *storage.User) userView {
	v := viewUser(u)
	v.Status = u.Status
	return v
}
