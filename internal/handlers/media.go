package handlers

import (
	"context"
	"errors"
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ravikovind/griha-homes/internal/auth"
	"github.com/ravikovind/griha-homes/internal/media"
	"github.com/ravikovind/griha-homes/internal/storage"
)

const maxMediaPerProperty = 10

type MediaStore interface {
	GetProperty(ctx context.Context, propertyID uuid.UUID) (*storage.Property, error)
	ListMediaByProperty(ctx context.Context, propertyID uuid.UUID) ([]storage.PropertyMedia, error)
	CountMediaByProperty(ctx context.Context, propertyID uuid.UUID) (int, error)
	CreateMedia(ctx context.Context, propertyID uuid.UUID, publicID, mediaType string, position int) (*storage.PropertyMedia, error)
	GetMedia(ctx context.Context, mediaID uuid.UUID) (*storage.PropertyMedia, error)
	DeleteMedia(ctx context.Context, mediaID uuid.UUID) error
	ReorderMedia(ctx context.Context, propertyID uuid.UUID, mediaIDs []uuid.UUID) error
}

// Uploader signs client-side uploads and destroys remote assets.
type Uploader interface {
	SignUpload(propertyID uuid.UUID) media.UploadSignature
	Delete(ctx context.Context, publicID string) error
}

type MediaHandler struct {
	Store    MediaStore
	Uploader Uploader
	Logger   *slog.Logger
}

func NewMediaHandler(store MediaStore, uploader Uploader, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{Store: store, Uploader: uploader, Logger: logger}
}

func (h *MediaHandler) RegisterRoutes(r gin.IRouter, guard *auth.Guard) {
	owners := r.Group("/properties/:property_id/media", guard.RequireAuth(), auth.RequireRoles(storage.RoleOwner, storage.RoleAdmin))
	owners.POST("/signature", h.Signature)
	owners.POST("", h.Add)
	owners.PATCH("/reorder", h.Reorder)
	owners.DELETE("/:media_id", h.Delete)
}

// loadProperty resolves the property in the path and enforces ownership.
// Admins may act on any property.
func (h *MediaHandler) loadProperty(c *gin.Context) (*storage.Property, bool) {
	ident, _ := auth.IdentityFromContext(c)

	propertyID, err := uuid.Parse(c.Param("property_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid property id"})
		return nil, false
	}

	property, err := h.Store.GetProperty(c.Request.Context(), propertyID)
	if err != nil || property.Deleted() {
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			h.Logger.Error("get property failed", "error", err)
			c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
			return nil, false
		}
		c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "Property not found"})
		return nil, false
	}

	if property.OwnerID != ident.UserID && ident.Role != storage.RoleAdmin {
		c.JSON(http.StatusForbidden, errorResponse{Code: "FORBIDDEN", Message: "Not authorized to modify this property"})
		return nil, false
	}

	return property, true
}

func (h *MediaHandler) Signature(c *gin.Context) {
	property, ok := h.loadProperty(c)
	if !ok {
		return
	}

	if h.Uploader == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Code: "INTERNAL_ERROR", Message: "Media uploads are not configured"})
		return
	}

	count, err := h.Store.CountMediaByProperty(c.Request.Context(), property.ID)
	if err != nil {
		h.Logger.Error("count property media failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	if count >= maxMediaPerProperty {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "Maximum 10 media items allowed per property"})
		return
	}

	c.JSON(http.StatusOK, h.Uploader.SignUpload(property.ID))
}

type addMediaRequest struct {
	PublicID string `json:"publicId" binding:"required"`
	Type     string `json:"type" binding:"required,oneof=image video"`
	Position *int   `json:"position" binding:"omitempty,min=0"`
}

func (h *MediaHandler) Add(c *gin.Context) {
	property, ok := h.loadProperty(c)
	if !ok {
		return
	}

	var req addMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	count, err := h.Store.CountMediaByProperty(c.Request.Context(), property.ID)
	if err != nil {
		h.Logger.Error("count property media failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	if count >= maxMediaPerProperty {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "Maximum 10 media items allowed per property"})
		return
	}

	position := count
	if req.Position != nil {
		position = *req.Position
	}

	item, err := h.Store.CreateMedia(c.Request.Context(), property.ID, req.PublicID, req.Type, position)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			c.JSON(http.StatusConflict, errorResponse{Code: "CONFLICT", Message: "Media already attached to this property"})
			return
		}
		h.Logger.Error("create media failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, mediaView{ID: item.ID, PublicID: item.PublicID, Type: item.Type, Position: item.Position})
}

type reorderMediaRequest struct {
	MediaIDs []uuid.UUID `json:"mediaIds" binding:"required,min=1"`
}

func (h *MediaHandler) Reorder(c *gin.Context) {
	property, ok := h.loadProperty(c)
	if !ok {
		return
	}

	var req reorderMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	seen := make(map[uuid.UUID]struct{}, len(req.MediaIDs))
	for _, id := range req.MediaIDs {
		if _, dup := seen[id]; dup {
			c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "duplicate media id in order"})
			return
		}
		seen[id] = struct{}{}
	}

	if err := h.Store.ReorderMedia(c.Request.Context(), property.ID, req.MediaIDs); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "media id does not belong to this property"})
			return
		}
		h.Logger.Error("reorder media failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	items, err := h.Store.ListMediaByProperty(c.Request.Context(), property.ID)
	if err != nil {
		h.Logger.Error("list property media failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"media": viewMedia(items)})
}

func (h *MediaHandler) Delete(c *gin.Context) {
	property, ok := h.loadProperty(c)
	if !ok {
		return
	}

	mediaID, err := uuid.Parse(c.Param("media_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid media id"})
		return
	}

	item, err := h.Store.GetMedia(c.Request.Context(), mediaID)
	if err != nil || item.PropertyID != property.ID {
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			h.Logger.Error("get media failed", "error", err)
			c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
			return
		}
		c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "Media not found"})
		return
	}

	if err := h.Store.DeleteMedia(c.Request.Context(), mediaID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "Media not found"})
			return
		}
		h.Logger.Error("delete media failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	// Remote cleanup is best-effort. The DB row is already gone and the
	// asset can be re-deleted from the Cloudinary console if this fails.
	if h.Uploader != nil {
		if err := h.Uploader.Delete(c.Request.Context(), item.PublicID); err != nil {
			h.Logger.Error("cloudinary delete failed", "public_id", item.PublicID, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Media deleted successfully"})
}
