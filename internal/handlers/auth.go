package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ravikovind/griha-homes/internal/auth"
	"github.com/ravikovind/griha-homes/internal/events"
	"github.com/ravikovind/griha-homes/internal/identity"
	"github.com/ravikovind/griha-homes/internal/security"
	"github.com/ravikovind/griha-homes/internal/storage"
)

const (
	maxFailedLogins = 5
	lockoutDuration = 30 * time.Minute
)

type AuthStore interface {
	CreateUser(ctx context.Context, phone, passwordHash, name string, email *string) (*storage.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*storage.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*storage.User, error)
	RecordFailedLogin(ctx context.Context, userID uuid.UUID, lockedUntil *time.Time) error
	ResetLoginState(ctx context.Context, userID uuid.UUID) error
	SetPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

type TokenIssuer interface {
	IssuePair(userID, phone string, now time.Time) (security.TokenPair, error)
	VerifyRefresh(token string) (*security.Claims, error)
}

type AuthHandler struct {
	Store      AuthStore
	Verifier   identity.Verifier
	Tokens     TokenIssuer
	Events     *events.Emitter
	Logger     *slog.Logger
	BcryptCost int
	Clock      Clock
}

func NewAuthHandler(store AuthStore, verifier identity.Verifier, tokens TokenIssuer, emitter *events.Emitter, logger *slog.Logger, bcryptCost int) *AuthHandler {
	return &AuthHandler{
		Store:      store,
		Verifier:   verifier,
		Tokens:     tokens,
		Events:     emitter,
		Logger:     logger,
		BcryptCost: bcryptCost,
		Clock:      systemClock{},
	}
}

func (h *AuthHandler) RegisterRoutes(r gin.IRouter, guard *auth.Guard) {
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/login-otp", h.LoginWithOtp)
	r.POST("/auth/reset-password", h.ResetPassword)
	r.POST("/auth/refresh", h.Refresh)
	r.GET("/auth/me", guard.RequireAuth(), h.Me)
}

type registerRequest struct {
	Phone    string  `json:"phone" binding:"required,e164"`
	IDToken  string  `json:"idToken" binding:"required"`
	Password string  `json:"password" binding:"required,min=8"`
	Name     string  `json:"name" binding:"required,min=2"`
	Email    *string `json:"email" binding:"omitempty,email"`
}

type loginRequest struct {
	Phone    string `json:"phone" binding:"required,e164"`
	Password string `json:"password" binding:"omitempty,min=8"`
}

type loginOtpRequest struct {
	Phone   string `json:"phone" binding:"required,e164"`
	IDToken string `json:"idToken" binding:"required"`
}

type resetPasswordRequest struct {
	Phone       string `json:"phone" binding:"required,e164"`
	IDToken     string `json:"idToken" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type authResponse struct {
	User         userView `json:"user"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
}

type otpSteeringResponse struct {
	RequiresOtp bool   `json:"requiresOtp"`
	IsNewUser   bool   `json:"isNewUser"`
	Message     string `json:"message"`
}

// verifyIdentity resolves an ID token to a verified phone number. An
// unconfigured verifier is a loud, distinct failure rather than a bypass.
func (h *AuthHandler) verifyIdentity(c *gin.Context, idToken, expectedPhone string) bool {
	verifiedPhone, err := h.Verifier.VerifyIDToken(c.Request.Context(), idToken)
	if err != nil {
		if errors.Is(err, identity.ErrNotConfigured) {
			c.JSON(http.StatusBadRequest, errorResponse{Code: "OTP_UNAVAILABLE", Message: "OTP verification unavailable"})
			return false
		}
		if !errors.Is(err, identity.ErrInvalidToken) {
			h.Logger.Error("identity verification failed", "error", err)
		}
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "Invalid or expired OTP token"})
		return false
	}

	if verifiedPhone != expectedPhone {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "PHONE_MISMATCH", Message: "Phone number mismatch"})
		return false
	}
	return true
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	if !h.verifyIdentity(c, req.IDToken, req.Phone) {
		return
	}

	existing, err := h.Store.GetUserByPhone(c.Request.Context(), req.Phone)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.Logger.Error("register lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, errorResponse{Code: "CONFLICT", Message: "User already exists with this phone number"})
		return
	}

	hash, err := security.HashPassword(req.Password, h.BcryptCost)
	if err != nil {
		h.Logger.Error("password hash failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	user, err := h.Store.CreateUser(c.Request.Context(), req.Phone, hash, req.Name, req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			c.JSON(http.StatusConflict, errorResponse{Code: "CONFLICT", Message: "User already exists with this phone number"})
			return
		}
		h.Logger.Error("create user failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	pair, err := h.Tokens.IssuePair(user.ID.String(), user.Phone, h.Clock.Now())
	if err != nil {
		h.Logger.Error("token issue failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	h.Events.Emit(c.Request.Context(), events.TypeUserRegistered, user.ID.String(), gin.H{"user_id": user.ID, "phone": user.Phone})

	c.JSON(http.StatusOK, authResponse{User: viewUser(user), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	user, err := h.Store.GetUserByPhone(c.Request.Context(), req.Phone)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.Logger.Error("login lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	// Unknown phone is not an error: steer the caller into OTP
	// registration instead.
	if user == nil || user.Deleted() {
		c.JSON(http.StatusOK, otpSteeringResponse{
			RequiresOtp: true,
			IsNewUser:   true,
			Message:     "Phone not registered. Please verify with OTP to register.",
		})
		return
	}

	if req.Password == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "Password is required"})
		return
	}

	now := h.Clock.Now()
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "Account is locked. Try again later."})
		return
	}

	if user.PasswordHash == nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "Password not set. Please reset your password."})
		return
	}

	if !security.VerifyPassword(req.Password, *user.PasswordHash) {
		// The lock is set only on the attempt that crosses the
		// threshold; it is not extended by later failures.
		var lockedUntil *time.Time
		if user.FailedLoginAttempts >= maxFailedLogins-1 {
			t := now.Add(lockoutDuration)
			lockedUntil = &t
		}
		if err := h.Store.RecordFailedLogin(c.Request.Context(), user.ID, lockedUntil); err != nil {
			h.Logger.Error("record failed login", "error", err)
		}
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "Invalid credentials"})
		return
	}

	if err := h.Store.ResetLoginState(c.Request.Context(), user.ID); err != nil {
		h.Logger.Error("reset login state", "error", err)
	}

	pair, err := h.Tokens.IssuePair(user.ID.String(), user.Phone, now)
	if err != nil {
		h.Logger.Error("token issue failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, authResponse{User: viewUser(user), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *AuthHandler) LoginWithOtp(c *gin.Context) {
	var req loginOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	if !h.verifyIdentity(c, req.IDToken, req.Phone) {
		return
	}

	user, err := h.Store.GetUserByPhone(c.Request.Context(), req.Phone)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.Logger.Error("otp login lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	if user == nil || user.Deleted() {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "User not found. Please register first."})
		return
	}
	if user.Status != storage.StatusActive {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "Account is inactive"})
		return
	}

	// A verified OTP is a stronger factor than the password, so it also
	// clears any password lockout.
	if err := h.Store.ResetLoginState(c.Request.Context(), user.ID); err != nil {
		h.Logger.Error("reset login state", "error", err)
	}

	pair, err := h.Tokens.IssuePair(user.ID.String(), user.Phone, h.Clock.Now())
	if err != nil {
		h.Logger.Error("token issue failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, authResponse{User: viewUser(user), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	if !h.verifyIdentity(c, req.IDToken, req.Phone) {
		return
	}

	user, err := h.Store.GetUserByPhone(c.Request.Context(), req.Phone)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.Logger.Error("reset password lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	if user == nil || user.Deleted() {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "User not found"})
		return
	}

	hash, err := security.HashPassword(req.NewPassword, h.BcryptCost)
	if err != nil {
		h.Logger.Error("password hash failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	if err := h.Store.SetPassword(c.Request.Context(), user.ID, hash); err != nil {
		h.Logger.Error("set password failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset successful"})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	// All refresh failures collapse into the same 401: the caller never
	// learns whether the signature, expiry, or payload was at fault.
	claims, err := h.Tokens.VerifyRefresh(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "Invalid refresh token"})
		return
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "Invalid refresh token"})
		return
	}

	user, err := h.Store.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			h.Logger.Error("refresh lookup failed", "error", err)
		}
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "User not found or inactive"})
		return
	}
	if user.Deleted() || user.Status != storage.StatusActive {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "User not found or inactive"})
		return
	}

	pair, err := h.Tokens.IssuePair(user.ID.String(), user.Phone, h.Clock.Now())
	if err != nil {
		h.Logger.Error("token issue failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) Me(c *gin.Context) {
	ident, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "missing identity"})
		return
	}

	user, err := h.Store.GetUserByID(c.Request.Context(), ident.UserID)
	if err != nil || user.Deleted() {
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			h.Logger.Error("me lookup failed", "error", err)
		}
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "User not found"})
		return
	}

	c.JSON(http.StatusOK, viewUser(user))
}
