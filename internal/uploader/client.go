package uploader

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sentinel errors for image-host failures.
var (
	ErrEmptyPayload      = errors.New("upload payload is empty")
	ErrUploadRejected    = errors.New("image host rejected upload")
	ErrUploadUnreachable = errors.New("image host unreachable")
	ErrUploadTimeout     = errors.New("image host timeout")
)

// Client is the interface for uploading image bytes to a hosting provider
// in exchange for a stable, publicly retrievable URL. Retries, if any, are
// the caller's responsibility.
type Client interface {
	UploadBytes(ctx context.Context, data []byte) (string, error)
	UploadFromURL(ctx context.Context, srcURL string) (string, error)
}

// HTTPClient implements Client against the image host's form API.
type HTTPClient struct {
	uploadURL string
	apiKey    string
	client    *http.Client
}

// NewHTTPClient creates a new image host client.
func NewHTTPClient(uploadURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		uploadURL: uploadURL,
		apiKey:    apiKey,
		client:    &http.Client{Timeout: timeout},
	}
}

// UploadBytes uploads raw image bytes and returns the hosted URL.
func (c *HTTPClient) UploadBytes(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyPayload
	}

	form := url.Values{
		"key":   {c.apiKey},
		"image": {base64.StdEncoding.EncodeToString(data)},
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: status %d: decoding response: %v", ErrUploadRejected, resp.StatusCode, err)
	}

	if !result.Success || result.Data.URL == "" {
		msg := result.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("%w: %s", ErrUploadRejected, msg)
	}

	return result.Data.URL, nil
}

// UploadFromURL fetches an image from a remote URL and re-uploads it,
// returning a hosted URL independent of the source.
func (c *HTTPClient) UploadFromURL(ctx context.Context, srcURL string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return "", fmt.Errorf("building fetch request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: fetching %s: status %d", ErrUploadRejected, srcURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading source image: %w", err)
	}

	return c.UploadBytes(ctx, data)
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrUploadTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUploadTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUploadUnreachable, err)
}

// --- image host response types ---

type uploadResponse struct {
	Success bool `json:"success"`
	Data    struct {
		URL string `json:"url"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
