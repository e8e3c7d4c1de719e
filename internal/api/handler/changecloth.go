package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/clothai/clothai/internal/api/response"
	"github.com/clothai/clothai/internal/gateway"
	"github.com/clothai/clothai/internal/poller"
	"github.com/clothai/clothai/internal/service"
	"github.com/clothai/clothai/internal/uploader"
	"github.com/clothai/clothai/pkg/models"
)

// maxUploadBytes caps one multipart request (two images plus form fields).
const maxUploadBytes = 32 << 20

// ClothChanger defines the interface the handler depends on.
type ClothChanger interface {
	ChangeCloth(ctx context.Context, params service.ChangeParams) (*service.TriggerAck, error)
	Await(ctx context.Context, executionID string) (*models.Execution, error)
	ExecutionStatus(ctx context.Context, executionID string) (*service.StatusResult, error)
}

// NewChangeClothHandler returns an http.HandlerFunc for POST /change-cloth.
// Expects multipart fields "person" and "cloth", optional "clothing_type"
// and "device_id". With "wait" set the handler blocks until the execution
// reaches a terminal state and returns the final result instead of an ack.
func NewChangeClothHandler(svc ClothChanger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Request must be multipart form data with person and cloth images", nil)
			return
		}

		person, err := readImageField(r, "person")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}
		cloth, err := readImageField(r, "cloth")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		wait := waitRequested(r)
		ack, err := svc.ChangeCloth(r.Context(), service.ChangeParams{
			Person:       person,
			Cloth:        cloth,
			ClothingType: r.FormValue("clothing_type"),
			DeviceID:     r.FormValue("device_id"),
			Wait:         wait,
		})
		if err != nil {
			writeChangeClothError(w, err)
			return
		}

		if !wait {
			response.Accepted(w, changeClothResponse{
				ExecutionID: ack.ExecutionID,
				Status:      string(ack.Status),
			})
			return
		}

		if ack.ExecutionID == "" {
			response.Error(w, http.StatusBadGateway, "TRIGGER_FAILED",
				"Provider did not return an execution id", nil)
			return
		}

		if _, err := svc.Await(r.Context(), ack.ExecutionID); err != nil {
			switch {
			case errors.Is(err, poller.ErrExecutionFailed):
				response.Error(w, http.StatusBadGateway, "EXECUTION_FAILED", err.Error(), nil)
			case errors.Is(err, poller.ErrWaitTimeout):
				response.Error(w, http.StatusGatewayTimeout, "POLL_TIMEOUT",
					"The execution did not finish within the polling budget", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		result, err := svc.ExecutionStatus(r.Context(), ack.ExecutionID)
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

func waitRequested(r *http.Request) bool {
	switch r.FormValue("wait") {
	case "1", "true", "yes":
		return true
	}
	return false
}

func readImageField(r *http.Request, field string) (service.ImageInput, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return service.ImageInput{}, errors.New(field + " file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return service.ImageInput{}, errors.New("reading " + field + " file failed")
	}

	return service.ImageInput{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
	}, nil
}

func writeChangeClothError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotImage):
		response.Error(w, http.StatusBadRequest, "NOT_AN_IMAGE", err.Error(), nil)
	case errors.Is(err, service.ErrQuotaExhausted):
		response.Error(w, http.StatusForbidden, "QUOTA_EXHAUSTED",
			"No attempts left for this device", nil)
	case errors.Is(err, uploader.ErrUploadTimeout):
		response.Error(w, http.StatusGatewayTimeout, "UPLOAD_TIMEOUT",
			"Uploading an image to the host took too long", nil)
	case errors.Is(err, uploader.ErrUploadRejected),
		errors.Is(err, uploader.ErrUploadUnreachable),
		errors.Is(err, uploader.ErrEmptyPayload):
		response.Error(w, http.StatusBadGateway, "UPLOAD_FAILED", err.Error(), nil)
	case errors.Is(err, gateway.ErrProviderTimeout):
		response.Error(w, http.StatusGatewayTimeout, "PROVIDER_TIMEOUT",
			"The synthesis provider took too long to respond", nil)
	case errors.Is(err, gateway.ErrTriggerFailed),
		errors.Is(err, gateway.ErrProviderUnreachable):
		response.Error(w, http.StatusBadGateway, "TRIGGER_FAILED", err.Error(), nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}

type changeClothResponse struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
}
