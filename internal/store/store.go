package store

import (
	"context"
	"errors"

	"github.com/clothai/clothai/pkg/models"
)

// ErrNotFound means the device has never been registered. It is a valid
// "no record" result, not a failure.
var ErrNotFound = errors.New("resource not found")

// Store is the data access interface for per-device quota records.
// Concurrent upserts to the same device race at row granularity; the last
// writer wins, matching a best-effort, non-transactional quota model.
type Store interface {
	Ping(ctx context.Context) error

	GetTryCount(ctx context.Context, deviceID string) (*models.DeviceTryCount, error)
	UpsertTryCount(ctx context.Context, deviceID string, tryCount int) (*models.DeviceTryCount, error)
	ListTryCounts(ctx context.Context) ([]models.DeviceTryCount, error)
}
