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
	"github.com/ravikovind/griha-homes/internal/storage"
)

const (
	maxInquiriesPerDay     = 10
	inquiryDuplicateWindow = 24 * time.Hour
)

type InquiryStore interface {
	GetProperty(ctx context.Context, propertyID uuid.UUID) (*storage.Property, error)
	HasRecentInquiry(ctx context.Context, userID, propertyID uuid.UUID, since time.Time) (bool, error)
	CountInquiriesSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	CreateInquiry(ctx context.Context, userID, propertyID uuid.UUID, message string) (*storage.Inquiry, error)
	GetInquiry(ctx context.Context, inquiryID uuid.UUID) (*storage.Inquiry, error)
	ListInquiries(ctx context.Context, page, limit int, status string) ([]storage.Inquiry, int, error)
	ListInquiriesByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]storage.Inquiry, int, error)
	UpdateInquiry(ctx context.Context, inquiryID uuid.UUID, status string, adminNotes *string) (*storage.Inquiry, error)
}

type InquiryHandler struct {
	Store  InquiryStore
	Events *events.Emitter
	Logger *slog.Logger
	Clock  Clock
}

func NewInquiryHandler(store InquiryStore, emitter *events.Emitter, logger *slog.Logger) *InquiryHandler {
	return &InquiryHandler{Store: store, Events: emitter, Logger: logger, Clock: systemClock{}}
}

func (h *InquiryHandler) RegisterRoutes(r gin.IRouter, guard *auth.Guard) {
	inquiries := r.Group("/inquiries", guard.RequireAuth())
	inquiries.POST("", h.Create)
	inquiries.GET("/me", h.ListMine)

	admin := inquiries.Group("", auth.RequireRoles(storage.RoleAdmin))
	admin.GET("", h.List)
	admin.GET("/:inquiry_id", h.Get)
	admin.PATCH("/:inquiry_id", h.Update)
}

type inquiryView struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"userId"`
	PropertyID  uuid.UUID  `json:"propertyId"`
	Message     string     `json:"message"`
	Status      string     `json:"status"`
	AdminNotes  *string    `json:"adminNotes,omitempty"`
	ContactedAt *time.Time `json:"contactedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func viewInquiry(i *storage.Inquiry) inquiryView {
	return inquiryView{
		ID:          i.ID,
		UserID:      i.UserID,
		PropertyID:  i.PropertyID,
		Message:     i.Message,
		Status:      i.Status,
		AdminNotes:  i.AdminNotes,
		ContactedAt: i.ContactedAt,
		CreatedAt:   i.CreatedAt,
	}
}

type createInquiryRequest struct {
	PropertyID uuid.UUID `json:"propertyId" binding:"required"`
	Message    string    `json:"message" binding:"required,min=10,max=1000"`
}

func (h *InquiryHandler) Create(c *gin.Context) {
	ident, _ := auth.IdentityFromContext(c)

	var req createInquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	property, err := h.Store.GetProperty(c.Request.Context(), req.PropertyID)
	if err != nil || property.Deleted() {
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			h.Logger.Error("get property failed", "error", err)
			c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
			return
		}
		c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "Property not found"})
		return
	}
	if property.Status != storage.PropertyStatusActive {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "Property is not accepting inquiries"})
		return
	}
	if property.OwnerID == ident.UserID {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "Cannot inquire about your own property"})
		return
	}

	now := h.Clock.Now()

	duplicate, err := h.Store.HasRecentInquiry(c.Request.Context(), ident.UserID, req.PropertyID, now.Add(-inquiryDuplicateWindow))
	if err != nil {
		h.Logger.Error("duplicate inquiry check failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	if duplicate {
		c.JSON(http.StatusConflict, errorResponse{Code: "CONFLICT", Message: "You already inquired about this property in the last 24 hours"})
		return
	}

	// The daily cap resets at local midnight, not on a rolling window.
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	count, err := h.Store.CountInquiriesSince(c.Request.Context(), ident.UserID, dayStart)
	if err != nil {
		h.Logger.Error("daily inquiry count failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	if count >= maxInquiriesPerDay {
		c.JSON(http.StatusTooManyRequests, errorResponse{Code: "RATE_LIMITED", Message: "Daily inquiry limit reached"})
		return
	}

	inquiry, err := h.Store.CreateInquiry(c.Request.Context(), ident.UserID, req.PropertyID, req.Message)
	if err != nil {
		h.Logger.Error("create inquiry failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	h.Events.Emit(c.Request.Context(), events.TypeInquiryCreated, inquiry.ID.String(), gin.H{
		"inquiry_id":  inquiry.ID,
		"user_id":     inquiry.UserID,
		"property_id": inquiry.PropertyID,
	})

	c.JSON(http.StatusOK, viewInquiry(inquiry))
}

func (h *InquiryHandler) ListMine(c *gin.Context) {
	ident, _ := auth.IdentityFromContext(c)

	page := parseIntQuery(c, "page", 1)
	limit := parseIntQuery(c, "limit", 20)

	inquiries, total, err := h.Store.ListInquiriesByUser(c.Request.Context(), ident.UserID, page, limit)
	if err != nil {
		h.Logger.Error("list user inquiries failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	views := make([]inquiryView, 0, len(inquiries))
	for i := range inquiries {
		views = append(views, viewInquiry(&inquiries[i]))
	}

	c.JSON(http.StatusOK, pagedResponse{Data: views, Meta: newPageMeta(page, limit, total)})
}

func (h *InquiryHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	limit := parseIntQuery(c, "limit", 20)

	status := c.Query("status")
	switch status {
	case "", storage.InquiryStatusPending, storage.InquiryStatusContacted, storage.InquiryStatusClosed:
	default:
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid status filter"})
		return
	}

	inquiries, total, err := h.Store.ListInquiries(c.Request.Context(), page, limit, status)
	if err != nil {
		h.Logger.Error("list inquiries failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	views := make([]inquiryView, 0, len(inquiries))
	for i := range inquiries {
		views = append(views, viewInquiry(&inquiries[i]))
	}

	c.JSON(http.StatusOK, pagedResponse{Data: views, Meta: newPageMeta(page, limit, total)})
}

func (h *InquiryHandler) Get(c *gin.Context) {
	inquiryID, err := uuid.Parse(c.Param("inquiry_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid inquiry id"})
		return
	}

	inquiry, err := h.Store.GetInquiry(c.Request.Context(), inquiryID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "Inquiry not found"})
			return
		}
		h.Logger.Error("get inquiry failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, viewInquiry(inquiry))
}

type updateInquiryRequest struct {
	Status     string  `json:"status" binding:"required,oneof=pending contacted closed"`
	AdminNotes *string `json:"adminNotes" binding:"omitempty,max=1000"`
}

func (h *InquiryHandler) Update(c *gin.Context) {
	inquiryID, err := uuid.Parse(c.Param("inquiry_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid inquiry id"})
		return
	}

	var req updateInquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	inquiry, err := h.Store.UpdateInquiry(c.Request.Context(), inquiryID, req.Status, req.AdminNotes)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "Inquiry not found"})
			return
		}
		h.Logger.Error("update inquiry failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, viewInquiry(inquiry))
}
