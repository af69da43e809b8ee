package auth

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ravikovind/griha-homes/internal/security"
	"github.com/ravikovind/griha-homes/internal/storage"
)

type fakeUsers struct {
	users map[uuid.UUID]*storage.User
}

func (f fakeUsers) GetUserByID(_ context.Context, userID uuid.UUID) (*storage.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

func setupGuard(t *testing.T, users map[uuid.UUID]*storage.User) (*gin.Engine, *security.TokenIssuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	tokens := security.NewTokenIssuer("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	guard := NewGuard(tokens, fakeUsers{users: users}, logger)

	router := gin.New()
	router.GET("/protected", guard.RequireAuth(), func(c *gin.Context) {
		ident, _ := IdentityFromContext(c)
		c.JSON(http.StatusOK, gin.H{"role": ident.Role})
	})
	router.GET("/admin", guard.RequireAuth(), RequireRoles(storage.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router, tokens
}

func get(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func testUser(role string) *storage.User {
	return &storage.User{
		ID:     uuid.New(),
		Phone:  "+919876543210",
		Name:   "Test",
		Role:   role,
		Status: storage.StatusActive,
	}
}

func TestRequireAuthMissingToken(t *testing.T) {
	router, _ := setupGuard(t, nil)
	if resp := get(router, "/protected", ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestRequireAuthBadToken(t *testing.T) {
	router, _ := setupGuard(t, nil)
	if resp := get(router, "/protected", "not-a-jwt"); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestRequireAuthResolvesUser(t *testing.T) {
	user := testUser(storage.RoleUser)
	router, tokens := setupGuard(t, map[uuid.UUID]*storage.User{user.ID: user})

	pair, err := tokens.IssuePair(user.ID.String(), user.Phone, time.Now())
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	if resp := get(router, "/protected", pair.AccessToken); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRequireAuthRejectsRefreshToken(t *testing.T) {
	user := testUser(storage.RoleUser)
	router, tokens := setupGuard(t, map[uuid.UUID]*storage.User{user.ID: user})

	pair, err := tokens.IssuePair(user.ID.String(), user.Phone, time.Now())
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	if resp := get(router, "/protected", pair.RefreshToken); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for refresh token, got %d", resp.Code)
	}
}

func TestRequireAuthRejectsDeletedAndInactive(t *testing.T) {
	deleted := testUser(storage.RoleUser)
	now := time.Now()
	deleted.DeletedAt = &now

	inactive := testUser(storage.RoleUser)
	inactive.Status = storage.StatusInactive

	router, tokens := setupGuard(t, map[uuid.UUID]*storage.User{
		deleted.ID:  deleted,
		inactive.ID: inactive,
	})

	for _, user := range []*storage.User{deleted, inactive} {
		pair, err := tokens.IssuePair(user.ID.String(), user.Phone, time.Now())
		if err != nil {
			t.Fatalf("issue pair: %v", err)
		}
		if resp := get(router, "/protected", pair.AccessToken); resp.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.Code)
		}
	}
}

func TestRequireRoles(t *testing.T) {
	admin := testUser(storage.RoleAdmin)
	regular := testUser(storage.RoleUser)
	router, tokens := setupGuard(t, map[uuid.UUID]*storage.User{
		admin.ID:   admin,
		regular.ID: regular,
	})

	adminPair, _ := tokens.IssuePair(admin.ID.String(), admin.Phone, time.Now())
	userPair, _ := tokens.IssuePair(regular.ID.String(), regular.Phone, time.Now())

	if resp := get(router, "/admin", adminPair.AccessToken); resp.Code != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d", resp.Code)
	}
	if resp := get(router, "/admin", userPair.AccessToken); resp.Code != http.StatusForbidden {
		t.Fatalf("user: expected 403, got %d", resp.Code)
	}
}

func TestExtractBearer(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
	}
	for _, tc := range cases {
		if got := ExtractBearer(tc.header); got != tc.want {
			t.Fatalf("header %q: expected %q, got %q", tc.header, tc.want, got)
		}
	}
}
