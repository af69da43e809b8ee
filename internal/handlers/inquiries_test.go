package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ravikovind/griha-homes/internal/auth"
	"github.com/ravikovind/griha-homes/internal/events"
	"github.com/ravikovind/griha-homes/internal/storage"
)

const inquiryMessage = "Is this property still available? I would like to visit."

func TestCreateInquiry(t *testing.T) {
	env := setupCatalog(t)
	owner := env.store.addCatalogUser(storage.RoleOwner)
	user := env.store.addCatalogUser(storage.RoleUser)
	property := env.store.addProperty(owner.ID)

	resp := performRequest(env.router, http.MethodPost, "/inquiries",
		createInquiryRequest{PropertyID: property.ID, Message: inquiryMessage},
		map[string]string{"Authorization": "Bearer " + env.tokenFor(t, user)})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var out inquiryView
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Status != storage.InquiryStatusPending || out.UserID != user.ID {
		t.Fatalf("unexpected inquiry %+v", out)
	}
}

func TestCreateInquiryOwnProperty(t *testing.T) {
	env := setupCatalog(t)
	owner := env.store.addCatalogUser(storage.RoleOwner)
	property := env.store.addProperty(owner.ID)

	resp := performRequest(env.router, http.MethodPost, "/inquiries",
		createInquiryRequest{PropertyID: property.ID, Message: inquiryMessage},
		map[string]string{"Authorization": "Bearer " + env.tokenFor(t, owner)})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCreateInquiryInactiveProperty(t *testing.T) {
	env := setupCatalog(t)
	owner := env.store.addCatalogUser(storage.RoleOwner)
	user := env.store.addCatalogUser(storage.RoleUser)
	property := env.store.addProperty(owner.ID)
	property.Status = storage.PropertyStatusRented

	resp := performRequest(env.router, http.MethodPost, "/inquiries",
		createInquiryRequest{PropertyID: property.ID, Message: inquiryMessage},
		map[string]string{"Authorization": "Bearer " + env.tokenFor(t, user)})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCreateInquiryDuplicateWithin24h(t *testing.T) {
	env := setupCatalog(t)
	owner := env.store.addCatalogUser(storage.RoleOwner)
	user := env.store.addCatalogUser(storage.RoleUser)
	property := env.store.addProperty(owner.ID)
	headers := map[string]string{"Authorization": "Bearer " + env.tokenFor(t, user)}

	resp := performRequest(env.router, http.MethodPost, "/inquiries",
		createInquiryRequest{PropertyID: property.ID, Message: inquiryMessage}, headers)
	if resp.Code != http.StatusOK {
		t.Fatalf("first: expected 200, got %d", resp.Code)
	}

	resp = performRequest(env.router, http.MethodPost, "/inquiries",
		createInquiryRequest{PropertyID: property.ID, Message: inquiryMessage}, headers)
	if resp.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", resp.Code)
	}
}

func TestCreateInquiryDailyCap(t *testing.T) {
	env := setupCatalog(t)
	owner := env.store.addCatalogUser(storage.RoleOwner)
	user := env.store.addCatalogUser(storage.RoleUser)
	target := env.store.addProperty(owner.ID)

	// Ten inquiries about other properties today exhaust the daily quota.
	for i := 0; i < maxInquiriesPerDay; i++ {
		other := env.store.addProperty(owner.ID)
		if _, err := env.store.CreateInquiry(context.Background(), user.ID, other.ID, inquiryMessage); err != nil {
			t.Fatalf("seed inquiry: %v", err)
		}
	}

	resp := performRequest(env.router, http.MethodPost, "/inquiries",
		createInquiryRequest{PropertyID: target.ID, Message: inquiryMessage},
		map[string]string{"Authorization": "Bearer " + env.tokenFor(t, user)})
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestDailyCapResetsAtMidnight(t *testing.T) {
	env := setupCatalog(t)
	owner := env.store.addCatalogUser(storage.RoleOwner)
	user := env.store.addCatalogUser(storage.RoleUser)
	target := env.store.addProperty(owner.ID)

	lastNight := time.Date(2026, 8, 30, 23, 0, 0, 0, time.UTC)
	morning := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

	// Quota exhausted late yesterday.
	for i := 0; i < maxInquiriesPerDay; i++ {
		other := env.store.addProperty(owner.ID)
		inq, err := env.store.CreateInquiry(context.Background(), user.ID, other.ID, inquiryMessage)
		if err != nil {
			t.Fatalf("seed inquiry: %v", err)
		}
		env.store.inquiries[inq.ID].CreatedAt = lastNight
	}

	logger := testLogger()
	h := NewInquiryHandler(env.store, events.NewEmitter(nil, "griha", logger), logger)
	h.Clock = fakeClock{now: morning}
	router := gin.New()
	h.RegisterRoutes(router, auth.NewGuard(env.tokens, env.store, logger))

	resp := performRequest(router, http.MethodPost, "/inquiries",
		createInquiryRequest{PropertyID: target.ID, Message: inquiryMessage},
		map[string]string{"Authorization": "Bearer " + env.tokenFor(t, user)})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 the next morning, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestListMyInquiries(t *testing.T) {
	env := setupCatalog(t)
	owner := env.store.addCatalogUser(storage.RoleOwner)
	user := env.store.addCatalogUser(storage.RoleUser)
	other := env.store.addCatalogUser(storage.RoleUser)
	property := env.store.addProperty(owner.ID)

	_, _ = env.store.CreateInquiry(context.Background(), user.ID, property.ID, inquiryMessage)
	_, _ = env.store.CreateInquiry(context.Background(), other.ID, property.ID, inquiryMessage)

	resp := performRequest(env.router, http.MethodGet, "/inquiries/me", nil,
		map[string]string{"Authorization": "Bearer " + env.tokenFor(t, user)})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var out struct {
		Data []inquiryView `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Data) != 1 || out.Data[0].UserID != user.ID {
		t.Fatalf("expected only own inquiries, got %+v", out.Data)
	}
}

func TestAdminInquiryListRequiresAdmin(t *testing.T) {
	env := setupCatalog(t)
	user := env.store.addCatalogUser(storage.RoleUser)

	resp := performRequest(env.router, http.MethodGet, "/inquiries", nil,
		map[string]string{"Authorization": "Bearer " + env.tokenFor(t, user)})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAdminUpdateInquiryStampsContactedAt(t *testing.T) {
	env := setupCatalog(t)
	owner := env.store.addCatalogUser(storage.RoleOwner)
	user := env.store.addCatalogUser(storage.RoleUser)
	admin := env.store.addCatalogUser(storage.RoleAdmin)
	property := env.store.addProperty(owner.ID)
	headers := map[string]string{"Authorization": "Bearer " + env.tokenFor(t, admin)}

	inquiry, _ := env.store.CreateInquiry(context.Background(), user.ID, property.ID, inquiryMessage)

	notes := "Called the tenant, site visit on Saturday"
	resp := performRequest(env.router, http.MethodPatch, "/inquiries/"+inquiry.ID.String(),
		updateInquiryRequest{Status: storage.InquiryStatusContacted, AdminNotes: &notes}, headers)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var out inquiryView
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Status != storage.InquiryStatusContacted || out.ContactedAt == nil {
		t.Fatalf("expected contacted with timestamp, got %+v", out)
	}
	if out.AdminNotes == nil || *out.AdminNotes != notes {
		t.Fatalf("expected admin notes, got %+v", out.AdminNotes)
	}

	// Closing later keeps the original contact timestamp.
	firstContact := *out.ContactedAt
	time.Sleep(time.Millisecond)
	resp = performRequest(env.router, http.MethodPatch, "/inquiries/"+inquiry.ID.String(),
		updateInquiryRequest{Status: storage.InquiryStatusClosed}, headers)
	if resp.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d", resp.Code)
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &out)
	if out.ContactedAt == nil || !out.ContactedAt.Equal(firstContact) {
		t.Fatalf("expected contactedAt unchanged, got %v", out.ContactedAt)
	}
}

func TestAdminGetInquiryNotFound(t *testing.T) {
	env := setupCatalog(t)
	admin := env.store.addCatalogUser(storage.RoleAdmin)

	resp := performRequest(env.router, http.MethodGet, "/inquiries/"+uuid.NewString(), nil,
		map[string]string{"Authorization": "Bearer " + env.tokenFor(t, admin)})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
