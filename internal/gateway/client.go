package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/clothai/clothai/pkg/models"
)

// Sentinel errors for provider failures. A still-running execution is a
// successful fetch, not an error.
var (
	ErrTriggerFailed       = errors.New("flow trigger failed")
	ErrStatusFetch         = errors.New("execution status fetch failed")
	ErrProviderUnreachable = errors.New("flow provider unreachable")
	ErrProviderTimeout     = errors.New("flow provider timeout")
)

// Client is the interface for the garment-swap flow provider.
type Client interface {
	Trigger(ctx context.Context, req TriggerRequest) (*models.Execution, error)
	GetExecution(ctx context.Context, executionID string) (*models.Execution, error)
	ListExecutions(ctx context.Context) ([]models.Execution, error)
}

// TriggerRequest holds the hosted image URLs for one swap request.
type TriggerRequest struct {
	PersonURL    string
	ClothURL     string
	ClothingType string
}

// HTTPClient implements Client against the provider's flow HTTP API.
type HTTPClient struct {
	baseURL    string
	flowID     string
	apiKey     string
	webhookURL string
	client     *http.Client
}

// NewHTTPClient creates a new flow provider client.
func NewHTTPClient(baseURL, flowID, apiKey, webhookURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		flowID:     flowID,
		apiKey:     apiKey,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
	}
}

// Trigger submits a new execution. It is never retried: a failed trigger is
// terminal for the request.
func (c *HTTPClient) Trigger(ctx context.Context, req TriggerRequest) (*models.Execution, error) {
	body := triggerPayload{
		Parameters: triggerParameters{
			Person:       req.PersonURL,
			Cloth:        req.ClothURL,
			ClothingType: req.ClothingType,
		},
		WebhookURL: c.webhookURL,
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding trigger payload: %w", err)
	}

	u := fmt.Sprintf("%s/%s/trigger", c.baseURL, c.flowID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrTriggerFailed, resp.StatusCode, readBody(resp.Body))
	}

	var ack triggerResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, fmt.Errorf("decoding trigger response: %w", err)
	}

	id := ack.ExecutionID
	if id == "" {
		id = ack.TriggerID
	}

	return &models.Execution{
		ID:     id,
		Status: models.ParseStatus(ack.Status),
	}, nil
}

// GetExecution fetches a fresh status snapshot. It does not fail merely
// because the execution is still running.
func (c *HTTPClient) GetExecution(ctx context.Context, executionID string) (*models.Execution, error) {
	u := fmt.Sprintf("%s/%s/executions/%s", c.baseURL, c.flowID, url.PathEscape(executionID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrStatusFetch, resp.StatusCode, readBody(resp.Body))
	}

	var detail executionDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, fmt.Errorf("decoding execution detail: %w", err)
	}

	exec := detail.toExecution()
	exec.ID = executionID
	return exec, nil
}

// ListExecutions returns all executions for the flow. Administrative use,
// not on the request critical path.
func (c *HTTPClient) ListExecutions(ctx context.Context) ([]models.Execution, error) {
	u := fmt.Sprintf("%s/%s/executions", c.baseURL, c.flowID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrStatusFetch, resp.StatusCode, readBody(resp.Body))
	}

	var details []executionDetail
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("decoding executions list: %w", err)
	}

	execs := make([]models.Execution, 0, len(details))
	for _, d := range details {
		execs = append(execs, *d.toExecution())
	}
	return execs, nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("X-API-KEY", c.apiKey)
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrProviderTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrProviderTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
}

// readBody returns a short diagnostic excerpt of an error response body.
func readBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return string(bytes.TrimSpace(b))
}

// --- provider wire types ---

type triggerPayload struct {
	Parameters triggerParameters `json:"parameters"`
	WebhookURL string            `json:"webhook_url"`
}

type triggerParameters struct {
	Person       string `json:"Person"`
	Cloth        string `json:"Cloth"`
	ClothingType string `json:"clothing_type"`
}

type triggerResponse struct {
	ExecutionID string `json:"execution_id"`
	TriggerID   string `json:"trigger_id"`
	Status      string `json:"status"`
}

type executionDetail struct {
	ID      string         `json:"id"`
	Status  string         `json:"status"`
	Output  string         `json:"output"`
	Error   string         `json:"error"`
	Results map[string]any `json:"results"`
}

// toExecution normalizes the provider's status token once, at the gateway
// boundary, so downstream code only sees canonical tokens.
func (d executionDetail) toExecution() *models.Execution {
	return &models.Execution{
		ID:          d.ID,
		Status:      models.ParseStatus(d.Status),
		Output:      d.Output,
		ErrorDetail: d.Error,
		Details:     d.Results,
	}
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
