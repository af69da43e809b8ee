package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time { return f.now }

func TestNewCloudinaryRequiresCredentials(t *testing.T) {
	if _, err := NewCloudinary("", "key", "secret"); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := NewCloudinary("cloud", "", "secret"); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSignKnownVector(t *testing.T) {
	c := &Cloudinary{CloudName: "demo", APIKey: "key", APISecret: "shhh"}

	propertyID := "11111111-2222-3333-4444-555555555555"
	got := c.sign(map[string]string{
		"timestamp": "1700000000",
		"public_id": "grihahomes/properties/" + propertyID + "/photo-1",
		"folder":    "grihahomes/properties/" + propertyID,
	})
	want := "04ecaea72f7b2574bd3dfe05091cbae495330b99"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestSignUpload(t *testing.T) {
	c, err := NewCloudinary("demo", "key", "secret")
	if err != nil {
		t.Fatalf("new cloudinary: %v", err)
	}
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	c.Clock = fixedClock{now: now}

	propertyID := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	sig := c.SignUpload(propertyID)

	wantFolder := "grihahomes/properties/" + propertyID.String()
	if sig.Folder != wantFolder {
		t.Fatalf("expected folder %q, got %q", wantFolder, sig.Folder)
	}
	if !strings.HasPrefix(sig.PublicID, wantFolder+"/") {
		t.Fatalf("expected public id under folder, got %q", sig.PublicID)
	}
	if sig.Timestamp != now.Unix() {
		t.Fatalf("expected timestamp %d, got %d", now.Unix(), sig.Timestamp)
	}
	if sig.CloudName != "demo" || sig.APIKey != "key" {
		t.Fatalf("unexpected credentials in signature: %+v", sig)
	}
	if len(sig.Signature) != 40 {
		t.Fatalf("expected sha1 hex signature, got %q", sig.Signature)
	}

	// The signature must cover exactly the params the client will send.
	want := c.sign(map[string]string{
		"timestamp": "1785578400",
		"public_id": sig.PublicID,
		"folder":    sig.Folder,
	})
	if sig.Signature != want {
		t.Fatalf("signature does not match signed params")
	}
}

func TestDeleteSendsSignedRequest(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
	defer srv.Close()

	c, err := NewCloudinary("demo", "key", "secret")
	if err != nil {
		t.Fatalf("new cloudinary: %v", err)
	}
	c.Client = srv.Client()

	// Point the destroy call at the test server via a rewriting transport.
	c.Client.Transport = rewriteHost(srv, c.Client.Transport)

	if err := c.Delete(context.Background(), "grihahomes/properties/x/photo-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if gotForm["public_id"] != "grihahomes/properties/x/photo-1" {
		t.Fatalf("expected public_id in form, got %v", gotForm)
	}
	if gotForm["api_key"] != "key" || gotForm["signature"] == "" || gotForm["timestamp"] == "" {
		t.Fatalf("expected signed form, got %v", gotForm)
	}
}

func TestURLHelpers(t *testing.T) {
	c := &Cloudinary{CloudName: "demo"}
	if got := c.URL("p/1"); got != "https://res.cloudinary.com/demo/image/upload/p/1" {
		t.Fatalf("unexpected url %q", got)
	}
	if got := c.ThumbnailURL("p/1"); !strings.Contains(got, "w_400,h_300,c_fill") {
		t.Fatalf("expected transformation in thumbnail url, got %q", got)
	}
}

type hostRewriter struct {
	target string
	next   http.RoundTripper
}

func (h hostRewriter) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = h.target
	return h.next.RoundTrip(req)
}

func rewriteHost(srv *httptest.Server, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return hostRewriter{target: strings.TrimPrefix(srv.URL, "http://"), next: next}
}
