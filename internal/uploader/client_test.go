package uploader

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, uploadURL string) *HTTPClient {
	t.Helper()
	return NewHTTPClient(uploadURL, "imgbb-key", 5*time.Second)
}

func TestUploadBytes_Success(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0} // jpeg magic

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if got := r.PostFormValue("key"); got != "imgbb-key" {
			t.Errorf("unexpected api key: %s", got)
		}
		decoded, err := base64.StdEncoding.DecodeString(r.PostFormValue("image"))
		if err != nil {
			t.Fatalf("decoding image field: %v", err)
		}
		if string(decoded) != string(payload) {
			t.Errorf("payload mangled in transit")
		}

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"url": "https://i.host/abc.jpg"},
		})
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	hostedURL, err := c.UploadBytes(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hostedURL != "https://i.host/abc.jpg" {
		t.Errorf("unexpected hosted url: %s", hostedURL)
	}
}

func TestUploadBytes_EmptyPayload(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, err := c.UploadBytes(context.Background(), nil)
	if !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
	if called {
		t.Error("no request must be made for an empty payload")
	}
}

func TestUploadBytes_ProviderRejection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   map[string]string{"message": "image too large"},
		})
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, err := c.UploadBytes(context.Background(), []byte("data"))
	if !errors.Is(err, ErrUploadRejected) {
		t.Fatalf("expected ErrUploadRejected, got %v", err)
	}
	if !strings.Contains(err.Error(), "image too large") {
		t.Errorf("expected provider message in error, got %q", err)
	}
}

func TestUploadBytes_SuccessFlagWithoutURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, err := c.UploadBytes(context.Background(), []byte("data"))
	if !errors.Is(err, ErrUploadRejected) {
		t.Fatalf("expected ErrUploadRejected, got %v", err)
	}
}

func TestUploadBytes_TransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	c := newTestClient(t, ts.URL)
	_, err := c.UploadBytes(context.Background(), []byte("data"))
	if !errors.Is(err, ErrUploadUnreachable) {
		t.Fatalf("expected ErrUploadUnreachable, got %v", err)
	}
}

func TestUploadFromURL_FetchesAndReuploads(t *testing.T) {
	artifact := []byte("rendered-output-image")

	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(artifact)
	}))
	defer source.Close()

	var uploaded []byte
	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		uploaded, _ = base64.StdEncoding.DecodeString(r.PostFormValue("image"))
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"url": "https://i.host/rehosted.png"},
		})
	}))
	defer host.Close()

	c := newTestClient(t, host.URL)
	hostedURL, err := c.UploadFromURL(context.Background(), source.URL+"/out.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hostedURL != "https://i.host/rehosted.png" {
		t.Errorf("unexpected hosted url: %s", hostedURL)
	}
	if string(uploaded) != string(artifact) {
		t.Errorf("re-uploaded bytes differ from source artifact")
	}
}

func TestUploadFromURL_SourceNon200(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer source.Close()

	c := newTestClient(t, "http://unused.invalid")
	_, err := c.UploadFromURL(context.Background(), source.URL+"/out.png")
	if !errors.Is(err, ErrUploadRejected) {
		t.Fatalf("expected ErrUploadRejected for a bad source, got %v", err)
	}
}

func TestUploadFromURL_EmptySourceBody(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 with no body
	}))
	defer source.Close()

	c := newTestClient(t, "http://unused.invalid")
	_, err := c.UploadFromURL(context.Background(), source.URL)
	if !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
}
