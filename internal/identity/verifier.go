// Package identity verifies phone-identity tokens minted by the external
// OTP provider. The provider proves control of a phone number; the backend
// only ever sees the resulting short-lived ID token.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrNotConfigured is returned when the verifier was never wired with
	// provider credentials. Flows must surface this, never bypass it.
	ErrNotConfigured = errors.New("identity verifier not configured")

	// ErrInvalidToken covers rejected, expired, and phone-less tokens.
	ErrInvalidToken = errors.New("invalid or expired identity token")
)

type Verifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (string, error)
}

// Disabled is the verifier used when no provider credentials are present.
// Every call fails loudly instead of letting OTP flows through unchecked.
type Disabled struct{}

func (Disabled) VerifyIDToken(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

const defaultLookupEndpoint = "https://identitytoolkit.googleapis.com/v1/accounts:lookup"

// FirebaseVerifier resolves ID tokens through the Identity Toolkit lookup
// endpoint and extracts the verified phone number claim.
type FirebaseVerifier struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewFirebaseVerifier(apiKey string, client *http.Client) (*FirebaseVerifier, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &FirebaseVerifier{
		apiKey:   apiKey,
		endpoint: defaultLookupEndpoint,
		client:   client,
	}, nil
}

type lookupRequest struct {
	IDToken string `json:"idToken"`
}

type lookupResponse struct {
	Users []struct {
		PhoneNumber string `json:"phoneNumber"`
	} `json:"users"`
}

func (v *FirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (string, error) {
	if idToken == "" {
		return "", ErrInvalidToken
	}

	body, err := json.Marshal(lookupRequest{IDToken: idToken})
	if err != nil {
		return "", fmt.Errorf("marshal lookup request: %w", err)
	}

	endpoint := v.endpoint + "?key=" + url.QueryEscape(v.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ErrInvalidToken
	}

	var out lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode lookup response: %w", err)
	}

	if len(out.Users) == 0 || out.Users[0].PhoneNumber == "" {
		return "", ErrInvalidToken
	}
	return out.Users[0].PhoneNumber, nil
}
