package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clothai/clothai/internal/api/response"
	"github.com/clothai/clothai/internal/gateway"
	"github.com/clothai/clothai/internal/service"
)

// StatusReader defines the interface the handler depends on.
type StatusReader interface {
	ExecutionStatus(ctx context.Context, executionID string) (*service.StatusResult, error)
}

// NewStatusHandler returns an http.HandlerFunc for GET /status/{execution_id}.
func NewStatusHandler(svc StatusReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		executionID := chi.URLParam(r, "execution_id")
		if executionID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "execution_id is required", nil)
			return
		}

		result, err := svc.ExecutionStatus(r.Context(), executionID)
		if err != nil {
			writeStatusFetchError(w, err)
			return
		}

		response.JSON(w, statusResponse{
			ExecutionID: result.ExecutionID,
			Status:      string(result.Status),
			Details:     result.Details,
			ErrorDetail: result.ErrorDetail,
			OutputURL:   result.OutputURL,
			UploadError: result.UploadError,
		})
	}
}

// writeStatusFetchError maps a failed status query to a response, shared by
// the status, executions, and synchronous change-cloth paths.
func writeStatusFetchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gateway.ErrProviderTimeout):
		response.Error(w, http.StatusGatewayTimeout, "PROVIDER_TIMEOUT",
			"The synthesis provider took too long to respond", nil)
	case errors.Is(err, gateway.ErrStatusFetch),
		errors.Is(err, gateway.ErrProviderUnreachable):
		response.Error(w, http.StatusBadGateway, "STATUS_FETCH_FAILED", err.Error(), nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}

type statusResponse struct {
	ExecutionID string         `json:"execution_id"`
	Status      string         `json:"status"`
	Details     map[string]any `json:"details,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
	OutputURL   string         `json:"output_url,omitempty"`
	UploadError string         `json:"upload_error,omitempty"`
}
