// Package media talks to Cloudinary, the image storage and transformation
// collaborator. Uploads happen directly from the client against a
// server-signed parameter set; the backend only signs, builds URLs, and
// deletes assets.
package media

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotConfigured = errors.New("cloudinary not configured")

const uploadFolderRoot = "grihahomes"

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type Cloudinary struct {
	CloudName string
	APIKey    string
	APISecret string
	Client    *http.Client
	Clock     Clock
}

func NewCloudinary(cloudName, apiKey, apiSecret string) (*Cloudinary, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, ErrNotConfigured
	}
	return &Cloudinary{
		CloudName: cloudName,
		APIKey:    apiKey,
		APISecret: apiSecret,
		Client:    &http.Client{Timeout: 15 * time.Second},
		Clock:     systemClock{},
	}, nil
}

// UploadSignature is handed to the client so it can upload straight to
// Cloudinary without the backend proxying image bytes.
type UploadSignature struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	PublicID  string `json:"publicId"`
	Folder    string `json:"folder"`
	CloudName string `json:"cloudName"`
	APIKey    string `json:"apiKey"`
}

func (c *Cloudinary) SignUpload(propertyID uuid.UUID) UploadSignature {
	timestamp := c.Clock.Now().Unix()
	folder := fmt.Sprintf("%s/properties/%s", uploadFolderRoot, propertyID)
	publicID := fmt.Sprintf("%s/%s", folder, uuid.NewString())

	params := map[string]string{
		"timestamp": fmt.Sprintf("%d", timestamp),
		"public_id": publicID,
		"folder":    folder,
	}

	return UploadSignature{
		Signature: c.sign(params),
		Timestamp: timestamp,
		PublicID:  publicID,
		Folder:    folder,
		CloudName: c.CloudName,
		APIKey:    c.APIKey,
	}
}

// Delete destroys an uploaded asset via the signed destroy endpoint.
func (c *Cloudinary) Delete(ctx context.Context, publicID string) error {
	timestamp := c.Clock.Now().Unix()
	params := map[string]string{
		"public_id": publicID,
		"timestamp": fmt.Sprintf("%d", timestamp),
	}

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("api_key", c.APIKey)
	form.Set("signature", c.sign(params))

	endpoint := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/image/destroy", c.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build destroy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cloudinary destroy: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Cloudinary) URL(publicID string) string {
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/%s", c.CloudName, publicID)
}

func (c *Cloudinary) ThumbnailURL(publicID string) string {
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/w_400,h_300,c_fill/%s", c.CloudName, publicID)
}

// sign builds the Cloudinary request signature: params sorted by key,
// joined as key=value with '&', secret appended, SHA-1 hex digest.
func (c *Cloudinary) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.APISecret))
	return hex.EncodeToString(sum[:])
}
