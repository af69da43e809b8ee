package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ravikovind/griha-homes/internal/auth"
	"github.com/ravikovind/griha-homes/internal/storage"
)

type UserStore interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (*storage.User, error)
	ListUsers(ctx context.Context, page, limit int) ([]storage.User, int, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, params storage.UpdateUserParams) (*storage.User, error)
	SoftDeleteUser(ctx context.Context, userID uuid.UUID) error
}

type UserHandler struct {
	Store  UserStore
	Logger *slog.Logger
}

func NewUserHandler(store UserStore, logger *slog.Logger) *UserHandler {
	return &UserHandler{Store: store, Logger: logger}
}

func (h *UserHandler) RegisterRoutes(r gin.IRouter, guard *auth.Guard) {
	users := r.Group("/users", guard.RequireAuth())
	users.GET("/me", h.Me)
	users.PATCH("/me", h.UpdateMe)

	admin := users.Group("", auth.RequireRoles(storage.RoleAdmin))
	admin.GET("", h.List)
	admin.GET("/:user_id", h.Get)
	admin.PATCH("/:user_id", h.AdminUpdate)
	admin.DELETE("/:user_id", h.Delete)
}

func (h *UserHandler) Me(c *gin.Context) {
	ident, _ := auth.IdentityFromContext(c)

	user, err := h.Store.GetUserByID(c.Request.Context(), ident.UserID)
	if err != nil || user.Deleted() {
		c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "User not found"})
		return
	}

	c.JSON(http.StatusOK, viewUser(user))
}

type updateMeRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=2"`
	Email *string `json:"email" binding:"omitempty,email"`
	Photo *string `json:"photo"`
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	ident, _ := auth.IdentityFromContext(c)

	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	user, err := h.Store.UpdateUser(c.Request.Context(), ident.UserID, storage.UpdateUserParams{
		Name:  req.Name,
		Email: req.Email,
		Photo: req.Photo,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "User not found"})
			return
		}
		h.Logger.Error("update user failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, viewUser(user))
}

func (h *UserHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	limit := parseIntQuery(c, "limit", 20)

	users, total, err := h.Store.ListUsers(c.Request.Context(), page, limit)
	if err != nil {
		h.Logger.Error("list users failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	views := make([]userView, 0, len(users))
	for i := range users {
		views = append(views, viewUserAdmin(&users[i]))
	}

	c.JSON(http.StatusOK, pagedResponse{Data: views, Meta: newPageMeta(page, limit, total)})
}

func (h *UserHandler) Get(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid user id"})
		return
	}

	user, err := h.Store.GetUserByID(c.Request.Context(), userID)
	if err != nil || user.Deleted() {
		c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "User not found"})
		return
	}

	c.JSON(http.StatusOK, viewUserAdmin(user))
}

type adminUpdateUserRequest struct {
	Name   *string `json:"name" binding:"omitempty,min=2"`
	Email  *string `json:"email" binding:"omitempty,email"`
	Photo  *string `json:"photo"`
	Role   *string `json:"role" binding:"omitempty,oneof=user owner admin"`
	Status *string `json:"status" binding:"omitempty,oneof=active inactive"`
}

func (h *UserHandler) AdminUpdate(c *gin.Context) {
	ident, _ := auth.IdentityFromContext(c)

	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid user id"})
		return
	}

	var req adminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	target, err := h.Store.GetUserByID(c.Request.Context(), userID)
	if err != nil || target.Deleted() {
		c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "User not found"})
		return
	}

	// Admin accounts can only be changed by themselves.
	if target.Role == storage.RoleAdmin && target.ID != ident.UserID {
		c.JSON(http.StatusForbidden, errorResponse{Code: "FORBIDDEN", Message: "Cannot modify admin user"})
		return
	}

	user, err := h.Store.UpdateUser(c.Request.Context(), userID, storage.UpdateUserParams{
		Name:   req.Name,
		Email:  req.Email,
		Photo:  req.Photo,
		Role:   req.Role,
		Status: req.Status,
	})
	if err != nil {
		h.Logger.Error("admin update user failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, viewUserAdmin(user))
}

func (h *UserHandler) Delete(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid user id"})
		return
	}

	target, err := h.Store.GetUserByID(c.Request.Context(), userID)
	if err != nil || target.Deleted() {
		c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "User not found"})
		return
	}
	if target.Role == storage.RoleAdmin {
		c.JSON(http.StatusForbidden, errorResponse{Code: "FORBIDDEN", Message: "Cannot delete admin user"})
		return
	}

	if err := h.Store.SoftDeleteUser(c.Request.Context(), userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "User not found"})
			return
		}
		h.Logger.Error("delete user failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

func parseIntQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 1 {
		return def
	}
	return val
}
