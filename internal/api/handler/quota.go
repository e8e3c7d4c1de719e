package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clothai/clothai/internal/api/response"
	"github.com/clothai/clothai/internal/store"
	"github.com/clothai/clothai/pkg/models"
)

// QuotaStore defines the interface the quota handlers depend on.
type QuotaStore interface {
	GetTryCount(ctx context.Context, deviceID string) (*models.DeviceTryCount, error)
	UpsertTryCount(ctx context.Context, deviceID string, tryCount int) (*models.DeviceTryCount, error)
	ListTryCounts(ctx context.Context) ([]models.DeviceTryCount, error)
}

// NewGetTryCountHandler returns an http.HandlerFunc for GET /try-count/{device_id}.
// An unregistered device is a valid lookup and answers with a null try count
// rather than 404.
func NewGetTryCountHandler(st QuotaStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := chi.URLParam(r, "device_id")
		if deviceID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "device_id is required", nil)
			return
		}

		record, err := st.GetTryCount(r.Context(), deviceID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			response.JSON(w, tryCountResponse{DeviceID: deviceID, TryCount: nil})
		case err != nil:
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
		default:
			count := record.TryCountLeft
			response.JSON(w, tryCountResponse{
				DeviceID:    record.DeviceID,
				TryCount:    &count,
				LastUpdated: record.LastUpdated.UTC().Format(time.RFC3339),
			})
		}
	}
}

// NewSetTryCountHandler returns an http.HandlerFunc for POST /try-count.
// The write is a plain overwrite; the store applies no range checks of its
// own, so negative counts are rejected here.
func NewSetTryCountHandler(st QuotaStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DeviceID string `json:"device_id"`
			TryCount *int   `json:"try_count"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.DeviceID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "device_id is required", nil)
			return
		}
		if req.TryCount == nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "try_count is required", nil)
			return
		}
		if *req.TryCount < 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "try_count must not be negative", nil)
			return
		}

		record, err := st.UpsertTryCount(r.Context(), req.DeviceID, *req.TryCount)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		count := record.TryCountLeft
		response.JSON(w, tryCountResponse{
			DeviceID:    record.DeviceID,
			TryCount:    &count,
			LastUpdated: record.LastUpdated.UTC().Format(time.RFC3339),
		})
	}
}

// NewListDevicesHandler returns an http.HandlerFunc for GET /devices.
func NewListDevicesHandler(st QuotaStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := st.ListTryCounts(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		items := make([]tryCountResponse, 0, len(records))
		for _, rec := range records {
			count := rec.TryCountLeft
			items = append(items, tryCountResponse{
				DeviceID:    rec.DeviceID,
				TryCount:    &count,
				LastUpdated: rec.LastUpdated.UTC().Format(time.RFC3339),
			})
		}

		response.JSON(w, items)
	}
}

type tryCountResponse struct {
	DeviceID    string `json:"device_id"`
	TryCount    *int   `json:"try_count"`
	LastUpdated string `json:"last_updated,omitempty"`
}
