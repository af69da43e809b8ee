package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ravikovind/griha-homes/internal/auth"
	"github.com/ravikovind/griha-homes/internal/events"
	"github.com/ravikovind/griha-homes/internal/storage"
	"github.com/shopspring/decimal"
)

const maxPropertiesPerOwner = 10

type PropertyStore interface {
	CountPropertiesByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)
	CreateProperty(ctx context.Context, params storage.CreatePropertyParams) (*storage.Property, error)
	GetProperty(ctx context.Context, propertyID uuid.UUID) (*storage.Property, error)
	ListProperties(ctx context.Context, filters storage.PropertyFilters) ([]storage.Property, int, error)
	UpdateProperty(ctx context.Context, propertyID uuid.UUID, params storage.UpdatePropertyParams) (*storage.Property, error)
	UpdatePropertyStatus(ctx context.Context, propertyID uuid.UUID, status string) (*storage.Property, error)
	SoftDeleteProperty(ctx context.Context, propertyID uuid.UUID) error
	ListPropertiesByOwner(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]storage.Property, int, error)
	ListMediaByProperty(ctx context.Context, propertyID uuid.UUID) ([]storage.PropertyMedia, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*storage.User, error)
}

type PropertyHandler struct {
	Store  PropertyStore
	Events *events.Emitter
	Logger *slog.Logger
}

func NewPropertyHandler(store PropertyStore, emitter *events.Emitter, logger *slog.Logger) *PropertyHandler {
	return &PropertyHandler{Store: store, Events: emitter, Logger: logger}
}

func (h *PropertyHandler) RegisterRoutes(r gin.IRouter, guard *auth.Guard) {
	r.GET("/properties", h.List)
	r.GET("/properties/:property_id", h.Get)

	owners := r.Group("/properties", guard.RequireAuth(), auth.RequireRoles(storage.RoleOwner, storage.RoleAdmin))
	owners.POST("", h.Create)
	owners.PATCH("/:property_id", h.Update)
	owners.PATCH("/:property_id/status", h.UpdateStatus)
	owners.DELETE("/:property_id", h.Delete)
	owners.GET("/owner/me", h.ListMine)
}

type ownerView struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone string    `json:"phone,omitempty"`
}

type mediaView struct {
	ID       uuid.UUID `json:"id"`
	PublicID string    `json:"publicId"`
	Type     string    `json:"type"`
	Position int       `json:"position"`
}

type propertyView struct {
	ID             uuid.UUID        `json:"id"`
	OwnerID        uuid.UUID        `json:"ownerId"`
	PropertyType   string           `json:"propertyType"`
	PropertyFor    string           `json:"propertyFor"`
	Title          string           `json:"title"`
	Description    *string          `json:"description,omitempty"`
	Rooms          int              `json:"rooms"`
	Bathrooms      int              `json:"bathrooms"`
	SizeSqft       int              `json:"sizeSqft"`
	Floor          *int             `json:"floor,omitempty"`
	Price          decimal.Decimal  `json:"price"`
	Deposit        *decimal.Decimal `json:"deposit,omitempty"`
	Maintenance    *decimal.Decimal `json:"maintenance,omitempty"`
	Furnishing     *string          `json:"furnishing,omitempty"`
	Parking        *string          `json:"parking,omitempty"`
	Amenities      []string         `json:"amenities,omitempty"`
	Address        string           `json:"address"`
	City           string           `json:"city"`
	State          string           `json:"state"`
	Pincode        string           `json:"pincode"`
	Latitude       float64          `json:"latitude"`
	Longitude      float64          `json:"longitude"`
	AvailableFrom  *time.Time       `json:"availableFrom,omitempty"`
	Status         string           `json:"status"`
	ExpiresAt      time.Time        `json:"expiresAt"`
	CreatedAt      time.Time        `json:"createdAt"`
	DistanceMeters *float64         `json:"distance,omitempty"`
	Owner          *ownerView       `json:"owner,omitempty"`
	Media          []mediaView      `json:"media,omitempty"`
}

func viewProperty(p *storage.Property) propertyView {
	return propertyView{
		ID:             p.ID,
		OwnerID:        p.OwnerID,
		PropertyType:   p.PropertyType,
		PropertyFor:    p.PropertyFor,
		Title:          p.Title,
		Description:    p.Description,
		Rooms:          p.Rooms,
		Bathrooms:      p.Bathrooms,
		SizeSqft:       p.SizeSqft,
		Floor:          p.Floor,
		Price:          p.Price,
		Deposit:        p.Deposit,
		Maintenance:    p.Maintenance,
		Furnishing:     p.Furnishing,
		Parking:        p.Parking,
		Amenities:      p.Amenities,
		Address:        p.Address,
		City:           p.City,
		State:          p.State,
		Pincode:        p.Pincode,
		Latitude:       p.Latitude,
		Longitude:      p.Longitude,
		AvailableFrom:  p.AvailableFrom,
		Status:         p.Status,
		ExpiresAt:      p.ExpiresAt,
		CreatedAt:      p.CreatedAt,
		DistanceMeters: p.DistanceMeters,
	}
}

func viewMedia(items []storage.PropertyMedia) []mediaView {
	views := make([]mediaView, 0, len(items))
	for _, m := range items {
		views = append(views, mediaView{ID: m.ID, PublicID: m.PublicID, Type: m.Type, Position: m.Position})
	}
	return views
}

func (h *PropertyHandler) List(c *gin.Context) {
	filters, ok := h.parseFilters(c)
	if !ok {
		return
	}

	properties, total, err := h.Store.ListProperties(c.Request.Context(), filters)
	if err != nil {
		h.Logger.Error("list properties failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	views := make([]propertyView, 0, len(properties))
	for i := range properties {
		views = append(views, viewProperty(&properties[i]))
	}

	c.JSON(http.StatusOK, pagedResponse{Data: views, Meta: newPageMeta(filters.Page, filters.Limit, total)})
}

func (h *PropertyHandler) parseFilters(c *gin.Context) (storage.PropertyFilters, bool) {
	f := storage.PropertyFilters{
		PropertyType: c.Query("propertyType"),
		PropertyFor:  c.Query("propertyFor"),
		City:         c.Query("city"),
		State:        c.Query("state"),
		Furnishing:   c.Query("furnishing"),
		Page:         parseIntQuery(c, "page", 1),
		Limit:        parseIntQuery(c, "limit", 20),
		SortBy:       c.Query("sortBy"),
		SortOrder:    c.Query("sortOrder"),
	}

	if raw := c.Query("amenities"); raw != "" {
		f.Amenities = strings.Split(raw, ",")
	}

	bad := func(msg string) (storage.PropertyFilters, bool) {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: msg})
		return storage.PropertyFilters{}, false
	}

	if raw := c.Query("minPrice"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			return bad("invalid minPrice")
		}
		f.MinPrice = &d
	}
	if raw := c.Query("maxPrice"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			return bad("invalid maxPrice")
		}
		f.MaxPrice = &d
	}
	if v, ok := parseOptionalInt(c, "minRooms"); ok {
		f.MinRooms = v
	} else {
		return bad("invalid minRooms")
	}
	if v, ok := parseOptionalInt(c, "maxRooms"); ok {
		f.MaxRooms = v
	} else {
		return bad("invalid maxRooms")
	}

	lat, latOK := parseOptionalFloat(c, "latitude")
	lng, lngOK := parseOptionalFloat(c, "longitude")
	radius, radiusOK := parseOptionalFloat(c, "radiusKm")
	if !latOK || !lngOK || !radiusOK {
		return bad("invalid location filter")
	}
	if lat != nil || lng != nil || radius != nil {
		if lat == nil || lng == nil || radius == nil {
			return bad("latitude, longitude and radiusKm must be supplied together")
		}
		if *lat < -90 || *lat > 90 || *lng < -180 || *lng > 180 || *radius < 1 || *radius > 100 {
			return bad("location filter out of range")
		}
		f.Latitude, f.Longitude, f.RadiusKm = lat, lng, radius
	}

	return f, true
}

func (h *PropertyHandler) Get(c *gin.Context) {
	propertyID, err := uuid.Parse(c.Param("property_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid property id"})
		return
	}

	property, err := h.Store.GetProperty(c.Request.Context(), propertyID)
	if err != nil || property.Deleted() {
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			h.Logger.Error("get property failed", "error", err)
			c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
			return
		}
		c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "Property not found"})
		return
	}

	view := viewProperty(property)

	if media, err := h.Store.ListMediaByProperty(c.Request.Context(), propertyID); err == nil {
		view.Media = viewMedia(media)
	} else {
		h.Logger.Error("list property media failed", "error", err)
	}

	if owner, err := h.Store.GetUserByID(c.Request.Context(), property.OwnerID); err == nil {
		view.Owner = &ownerView{ID: owner.ID, Name: owner.Name, Phone: owner.Phone}
	} else {
		h.Logger.Error("property owner lookup failed", "error", err)
	}

	c.JSON(http.StatusOK, view)
}

type createPropertyRequest struct {
	PropertyType  string           `json:"propertyType" binding:"required,oneof=apartment house villa plot commercial"`
	PropertyFor   string           `json:"propertyFor" binding:"required,oneof=rent sale"`
	Title         string           `json:"title" binding:"required,min=10,max=100"`
	Description   *string          `json:"description" binding:"omitempty,max=2000"`
	Rooms         int              `json:"rooms" binding:"required,min=1,max=20"`
	Bathrooms     int              `json:"bathrooms" binding:"required,min=1,max=10"`
	SizeSqft      int              `json:"sizeSqft" binding:"required,min=100"`
	Floor         *int             `json:"floor" binding:"omitempty,min=0,max=100"`
	Price         decimal.Decimal  `json:"price" binding:"required"`
	Deposit       *decimal.Decimal `json:"deposit"`
	Maintenance   *decimal.Decimal `json:"maintenance"`
	Furnishing    *string          `json:"furnishing" binding:"omitempty,oneof=unfurnished semifurnished furnished"`
	Parking       *string          `json:"parking" binding:"omitempty,oneof=none open covered"`
	Amenities     []string         `json:"amenities"`
	Address       string           `json:"address" binding:"required,min=5"`
	City          string           `json:"city" binding:"required"`
	State         string           `json:"state" binding:"required"`
	Pincode       string           `json:"pincode" binding:"required"`
	Latitude      float64          `json:"latitude" binding:"min=-90,max=90"`
	Longitude     float64          `json:"longitude" binding:"min=-180,max=180"`
	AvailableFrom *time.Time       `json:"availableFrom"`
}

func (h *PropertyHandler) Create(c *gin.Context) {
	ident, _ := auth.IdentityFromContext(c)

	var req createPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}
	if req.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "price must not be negative"})
		return
	}

	count, err := h.Store.CountPropertiesByOwner(c.Request.Context(), ident.UserID)
	if err != nil {
		h.Logger.Error("count owner properties failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	if count >= maxPropertiesPerOwner {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "Maximum 10 properties allowed per owner"})
		return
	}

	property, err := h.Store.CreateProperty(c.Request.Context(), storage.CreatePropertyParams{
		OwnerID:       ident.UserID,
		PropertyType:  req.PropertyType,
		PropertyFor:   req.PropertyFor,
		Title:         req.Title,
		Description:   req.Description,
		Rooms:         req.Rooms,
		Bathrooms:     req.Bathrooms,
		SizeSqft:      req.SizeSqft,
		Floor:         req.Floor,
		Price:         req.Price,
		Deposit:       req.Deposit,
		Maintenance:   req.Maintenance,
		Furnishing:    req.Furnishing,
		Parking:       req.Parking,
		Amenities:     req.Amenities,
		Address:       req.Address,
		City:          req.City,
		State:         req.State,
		Pincode:       req.Pincode,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		AvailableFrom: req.AvailableFrom,
	})
	if err != nil {
		h.Logger.Error("create property failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	h.Events.Emit(c.Request.Context(), events.TypePropertyCreated, property.ID.String(), gin.H{
		"property_id": property.ID,
		"owner_id":    property.OwnerID,
		"city":        property.City,
	})

	c.JSON(http.StatusOK, viewProperty(property))
}

// loadOwned fetches a property and enforces ownership. Admins pass the
// ownership check only when adminOverride is set.
func (h *PropertyHandler) loadOwned(c *gin.Context, adminOverride bool) (*storage.Property, bool) {
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

	isAdmin := adminOverride && ident.Role == storage.RoleAdmin
	if property.OwnerID != ident.UserID && !isAdmin {
		c.JSON(http.StatusForbidden, errorResponse{Code: "FORBIDDEN", Message: "Not authorized to modify this property"})
		return nil, false
	}

	return property, true
}

type updatePropertyRequest struct {
	PropertyType  *string          `json:"propertyType" binding:"omitempty,oneof=apartment house villa plot commercial"`
	PropertyFor   *string          `json:"propertyFor" binding:"omitempty,oneof=rent sale"`
	Title         *string          `json:"title" binding:"omitempty,min=10,max=100"`
	Description   *string          `json:"description" binding:"omitempty,max=2000"`
	Rooms         *int             `json:"rooms" binding:"omitempty,min=1,max=20"`
	Bathrooms     *int             `json:"bathrooms" binding:"omitempty,min=1,max=10"`
	SizeSqft      *int             `json:"sizeSqft" binding:"omitempty,min=100"`
	Floor         *int             `json:"floor" binding:"omitempty,min=0,max=100"`
	Price         *decimal.Decimal `json:"price"`
	Deposit       *decimal.Decimal `json:"deposit"`
	Maintenance   *decimal.Decimal `json:"maintenance"`
	Furnishing    *string          `json:"furnishing" binding:"omitempty,oneof=unfurnished semifurnished furnished"`
	Parking       *string          `json:"parking" binding:"omitempty,oneof=none open covered"`
	Amenities     []string         `json:"amenities"`
	Address       *string          `json:"address" binding:"omitempty,min=5"`
	City          *string          `json:"city"`
	State         *string          `json:"state"`
	Pincode       *string          `json:"pincode"`
	Latitude      *float64         `json:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude     *float64         `json:"longitude" binding:"omitempty,min=-180,max=180"`
	AvailableFrom *time.Time       `json:"availableFrom"`
}

func (h *PropertyHandler) Update(c *gin.Context) {
	property, ok := h.loadOwned(c, false)
	if !ok {
		return
	}

	var req updatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}
	if req.Price != nil && req.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "price must not be negative"})
		return
	}

	updated, err := h.Store.UpdateProperty(c.Request.Context(), property.ID, storage.UpdatePropertyParams{
		PropertyType:  req.PropertyType,
		PropertyFor:   req.PropertyFor,
		Title:         req.Title,
		Description:   req.Description,
		Rooms:         req.Rooms,
		Bathrooms:     req.Bathrooms,
		SizeSqft:      req.SizeSqft,
		Floor:         req.Floor,
		Price:         req.Price,
		Deposit:       req.Deposit,
		Maintenance:   req.Maintenance,
		Furnishing:    req.Furnishing,
		Parking:       req.Parking,
		Amenities:     req.Amenities,
		Address:       req.Address,
		City:          req.City,
		State:         req.State,
		Pincode:       req.Pincode,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		AvailableFrom: req.AvailableFrom,
	})
	if err != nil {
		h.Logger.Error("update property failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, viewProperty(updated))
}

type updatePropertyStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active inactive rented sold"`
}

func (h *PropertyHandler) UpdateStatus(c *gin.Context) {
	property, ok := h.loadOwned(c, true)
	if !ok {
		return
	}

	var req updatePropertyStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	updated, err := h.Store.UpdatePropertyStatus(c.Request.Context(), property.ID, req.Status)
	if err != nil {
		h.Logger.Error("update property status failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, viewProperty(updated))
}

func (h *PropertyHandler) Delete(c *gin.Context) {
	property, ok := h.loadOwned(c, true)
	if !ok {
		return
	}

	if err := h.Store.SoftDeleteProperty(c.Request.Context(), property.ID); err != nil {
		h.Logger.Error("delete property failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	h.Events.Emit(c.Request.Context(), events.TypePropertyDeleted, property.ID.String(), gin.H{
		"property_id": property.ID,
		"owner_id":    property.OwnerID,
	})

	c.JSON(http.StatusOK, gin.H{"message": "Property deleted successfully"})
}

func (h *PropertyHandler) ListMine(c *gin.Context) {
	ident, _ := auth.IdentityFromContext(c)

	page := parseIntQuery(c, "page", 1)
	limit := parseIntQuery(c, "limit", 20)

	properties, total, err := h.Store.ListPropertiesByOwner(c.Request.Context(), ident.UserID, page, limit)
	if err != nil {
		h.Logger.Error("list owner properties failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	views := make([]propertyView, 0, len(properties))
	for i := range properties {
		views = append(views, viewProperty(&properties[i]))
	}

	c.JSON(http.StatusOK, pagedResponse{Data: views, Meta: newPageMeta(page, limit, total)})
}

func parseOptionalInt(c *gin.Context, name string) (*int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, false
	}
	return &val, true
}

func parseOptionalFloat(c *gin.Context, name string) (*float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, false
	}
	return &val, true
}
