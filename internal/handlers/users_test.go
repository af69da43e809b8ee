package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ravikovind/griha-homes/internal/storage"
)

func (s *catalogStore) ListUsers(_ context.Context, _, _ int) ([]storage.User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []storage.User
	for _, u := range s.users {
		if !u.Deleted() {
			items = append(items, *u)
		}
	}
	return items, len(items), nil
}

func (s *catalogStore) UpdateUser(_ context.Context, userID uuid.UUID, params storage.UpdateUserParams) (*storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.Deleted() {
		return nil, storage.ErrNotFound
	}
	if params.Name != nil {
		u.Name = *params.Name
	}
	if params.Email != nil {
		u.Email = params.Email
	}
	if params.Photo != nil {
		u.Photo = params.Photo
	}
	if params.Role != nil {
		u.Role = *params.Role
	}
	if params.Status != nil {
		u.Status = *params.Status
	}
	copied := *u
	return &copied, nil
}

func (s *catalogStore) SoftDeleteUser(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.Deleted() {
		return storage.ErrNotFound
	}
	now := time.Now()
	u.DeletedAt = &now
	return nil
}

func TestUserMeAndUpdate(t *testing.T) {
	env := setupCatalog(t)
	user := env.store.addCatalogUser(storage.RoleUser)
	headers := map[string]string{"Authorization": "Bearer " + env.tokenFor(t, user)}

	resp := performRequest(env.router, http.MethodGet, "/users/me", nil, headers)
	if resp.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	name := "Updated Name"
	email := "updated@example.com"
	resp = performRequest(env.router, http.MethodPatch, "/users/me",
		updateMeRequest{Name: &name, Email: &email}, headers)
	if resp.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var out userView
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Name != name || out.Email == nil || *out.Email != email {
		t.Fatalf("unexpected user %+v", out)
	}
}

func TestUpdateMeCannotChangeRole(t *testing.T) {
	env := setupCatalog(t)
	user := env.store.addCatalogUser(storage.RoleUser)
	headers := map[string]string{"Authorization": "Bearer " + env.tokenFor(t, user)}

	// Unknown fields in the payload are simply dropped by the binding.
	resp := performRequest(env.router, http.MethodPatch, "/users/me",
		map[string]string{"role": "admin"}, headers)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	if env.store.users[user.ID].Role != storage.RoleUser {
		t.Fatalf("expected role unchanged, got %q", env.store.users[user.ID].Role)
	}
}

func TestAdminUserListRequiresAdmin(t *testing.T) {
	env := setupCatalog(t)
	user := env.store.addCatalogUser(storage.RoleUser)

	resp := performRequest(env.router, http.MethodGet, "/users", nil,
		map[string]string{"Authorization": "Bearer " + env.tokenFor(t, user)})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAdminPromotesOwner(t *testing.T) {
	env := setupCatalog(t)
	admin := env.store.addCatalogUser(storage.RoleAdmin)
	user := env.store.addCatalogUser(storage.RoleUser)

	role := storage.RoleOwner
	resp := performRequest(env.router, http.MethodPatch, "/users/"+user.ID.String(),
		adminUpdateUserRequest{Role: &role},
		map[string]string{"Authorization": "Bearer " + env.tokenFor(t, admin)})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	if env.store.users[user.ID].Role != storage.RoleOwner {
		t.Fatalf("expected owner role, got %q", env.store.users[user.ID].Role)
	}
}

func TestAdminCannotModifyOtherAdmin(t *testing.T) {
	env := setupCatalog(t)
	admin := env.store.addCatalogUser(storage.RoleAdmin)
	otherAdmin := env.store.addCatalogUser(storage.RoleAdmin)
	headers := map[string]string{"Authorization": "Bearer " + env.tokenFor(t, admin)}

	status := storage.StatusInactive
	resp := performRequest(env.router, http.MethodPatch, "/users/"+otherAdmin.ID.String(),
		adminUpdateUserRequest{Status: &status}, headers)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("update: expected 403, got %d", resp.Code)
	}

	resp = performRequest(env.router, http.MethodDelete, "/users/"+otherAdmin.ID.String(), nil, headers)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("delete: expected 403, got %d", resp.Code)
	}
}

func TestAdminDeletesUser(t *testing.T) {
	env := setupCatalog(t)
	admin := env.store.addCatalogUser(storage.RoleAdmin)
	user := env.store.addCatalogUser(storage.RoleUser)

	resp := performRequest(env.router, http.MethodDelete, "/users/"+user.ID.String(), nil,
		map[string]string{"Authorization": "Bearer " + env.tokenFor(t, admin)})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	if env.store.users[user.ID].DeletedAt == nil {
		t.Fatal("expected user soft-deleted")
	}

	// The deleted user's still-valid token no longer authenticates.
	resp = performRequest(env.router, http.MethodGet, "/users/me", nil,
		map[string]string{"Authorization": "Bearer " + env.tokenFor(t, user)})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after delete, got %d", resp.Code)
	}
}
