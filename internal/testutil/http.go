package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
)

// Credentials created by cmd/seed, shared by the integration tests.
const (
	SeededAdminPhone = "+919999999999"
	SeededOwnerPhone = "+916900000000"
	SeededUserPhone  = "+918888888888"
	SeededPassword   = "Test@1234"
)

// MakeAPIRequest sends a JSON request through the router without
// credentials. A nil body sends an empty request, not the literal "null".
func MakeAPIRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	return MakeAuthRequest(router, method, path, body, "")
}

// MakeAuthRequest is MakeAPIRequest with a bearer access token attached.
func MakeAuthRequest(router *gin.Engine, method, path string, body any, token string) *httptest.ResponseRecorder {
	var payload io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		payload = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
