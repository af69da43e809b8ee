package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ravikovind/griha-homes/internal/auth"
	"github.com/ravikovind/griha-homes/internal/events"
	"github.com/ravikovind/griha-homes/internal/identity"
	"github.com/ravikovind/griha-homes/internal/security"
	"github.com/ravikovind/griha-homes/internal/storage"
	"github.com/ravikovind/griha-homes/internal/testutil"
)

// Requires the seeded dev database from cmd/seed.
func setupIntegrationRouter(t *testing.T) (*gin.Engine, func()) {
	t.Helper()

	pool, err := testutil.SetupTestDB()
	if err != nil {
		t.Skipf("db connection failed: %v", err)
	}

	gin.SetMode(gin.TestMode)
	store := storage.New(pool)
	logger := testLogger()
	tokens := security.NewTokenIssuer("test-access-secret", "test-refresh-secret", 15*time.Minute, 7*24*time.Hour)
	emitter := events.NewEmitter(nil, "griha", logger)

	h := NewAuthHandler(store, identity.Disabled{}, tokens, emitter, logger, testBcryptCost)
	guard := auth.NewGuard(tokens, store, logger)

	router := gin.New()
	h.RegisterRoutes(router, guard)

	cleanup := func() {
		testutil.CleanupTestData(context.Background(), pool)
		pool.Close()
	}
	return router, cleanup
}

func TestLoginIntegration(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION") == "" {
		t.Skip("set RUN_DB_INTEGRATION=1 to run")
	}

	router, cleanup := setupIntegrationRouter(t)
	defer cleanup()

	t.Run("success with seeded credentials", func(t *testing.T) {
		resp := testutil.MakeAPIRequest(router, http.MethodPost, "/auth/login", loginRequest{
			Phone:    testutil.SeededAdminPhone,
			Password: testutil.SeededPassword,
		})
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
		}

		var out authResponse
		if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if out.AccessToken == "" || out.RefreshToken == "" {
			t.Fatal("expected token pair")
		}
		if out.User.Role != storage.RoleAdmin {
			t.Fatalf("expected admin role, got %q", out.User.Role)
		}
	})

	t.Run("unknown phone steers to otp", func(t *testing.T) {
		resp := testutil.MakeAPIRequest(router, http.MethodPost, "/auth/login", loginRequest{
			Phone:    "+915550001111",
			Password: "whatever1",
		})
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
		}

		var out otpSteeringResponse
		if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if !out.RequiresOtp || !out.IsNewUser {
			t.Fatalf("expected otp steering, got %+v", out)
		}
	})

	t.Run("invalid password", func(t *testing.T) {
		resp := testutil.MakeAPIRequest(router, http.MethodPost, "/auth/login", loginRequest{
			Phone:    testutil.SeededUserPhone,
			Password: "wrongpassword",
		})

		testutil.AssertErrorCode(t, resp, testutil.ErrorCodeUnauthorized)
		testutil.AssertErrorMessage(t, resp, "Invalid credentials")
	})

	t.Run("locked account rejected before password check", func(t *testing.T) {
		resp := testutil.MakeAPIRequest(router, http.MethodPost, "/auth/login", loginRequest{
			Phone:    "+917777777777",
			Password: testutil.SeededPassword,
		})

		testutil.AssertErrorCode(t, resp, testutil.ErrorCodeUnauthorized)
		testutil.AssertErrorMessage(t, resp, "Account is locked. Try again later.")
	})

	t.Run("missing password on known phone", func(t *testing.T) {
		resp := testutil.MakeAPIRequest(router, http.MethodPost, "/auth/login", map[string]string{
			"phone": testutil.SeededUserPhone,
		})

		testutil.AssertErrorCode(t, resp, testutil.ErrorCodeInvalidRequest)
	})

	t.Run("malformed phone", func(t *testing.T) {
		resp := testutil.MakeAPIRequest(router, http.MethodPost, "/auth/login", map[string]string{
			"phone":    "not-a-phone",
			"password": "Test@1234",
		})

		testutil.AssertErrorCode(t, resp, testutil.ErrorCodeInvalidRequest)
	})
}

func TestRefreshIntegration(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION") == "" {
		t.Skip("set RUN_DB_INTEGRATION=1 to run")
	}

	router, cleanup := setupIntegrationRouter(t)
	defer cleanup()

	loginResp := testutil.MakeAPIRequest(router, http.MethodPost, "/auth/login", loginRequest{
		Phone:    testutil.SeededUserPhone,
		Password: testutil.SeededPassword,
	})
	if loginResp.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", loginResp.Code, loginResp.Body.String())
	}
	var loginOut authResponse
	if err := json.Unmarshal(loginResp.Body.Bytes(), &loginOut); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	t.Run("success with valid refresh token", func(t *testing.T) {
		resp := testutil.MakeAPIRequest(router, http.MethodPost, "/auth/refresh", refreshRequest{
			RefreshToken: loginOut.RefreshToken,
		})
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
		}

		var out security.TokenPair
		if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if out.AccessToken == "" || out.RefreshToken == "" {
			t.Fatal("expected token pair")
		}
	})

	t.Run("access token rejected as refresh token", func(t *testing.T) {
		resp := testutil.MakeAPIRequest(router, http.MethodPost, "/auth/refresh", refreshRequest{
			RefreshToken: loginOut.AccessToken,
		})

		testutil.AssertErrorCode(t, resp, testutil.ErrorCodeUnauthorized)
		testutil.AssertErrorMessage(t, resp, "Invalid refresh token")
	})

	t.Run("garbage token", func(t *testing.T) {
		resp := testutil.MakeAPIRequest(router, http.MethodPost, "/auth/refresh", refreshRequest{
			RefreshToken: "not-a-jwt",
		})

		testutil.AssertErrorCode(t, resp, testutil.ErrorCodeUnauthorized)
	})

	t.Run("me with fresh access token", func(t *testing.T) {
		resp := testutil.MakeAuthRequest(router, http.MethodGet, "/auth/me", nil, loginOut.AccessToken)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
		}

		var out userView
		if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if out.Phone != testutil.SeededUserPhone {
			t.Fatalf("expected seeded user, got %+v", out)
		}
	})
}
