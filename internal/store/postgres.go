package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clothai/clothai/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) GetTryCount(ctx context.Context, deviceID string) (*models.DeviceTryCount, error) {
	var d models.DeviceTryCount
	err := s.pool.QueryRow(ctx,
		`SELECT id, device_id, try_count_left, last_updated
		 FROM device_try_counts WHERE device_id = $1`, deviceID,
	).Scan(&d.ID, &d.DeviceID, &d.TryCountLeft, &d.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get try count: %w", err)
	}
	return &d, nil
}

// UpsertTryCount sets the remaining attempts for a device, creating the row
// on first use. The count always overwrites (no accumulation) and
// last_updated is refreshed on every write. No bounds checking here: range
// validation, if desired, belongs to the caller.
func (s *PostgresStore) UpsertTryCount(ctx context.Context, deviceID string, tryCount int) (*models.DeviceTryCount, error) {
	var d models.DeviceTryCount
	err := s.pool.QueryRow(ctx,
		`INSERT INTO device_try_counts (device_id, try_count_left, last_updated)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (device_id) DO UPDATE SET
		   try_count_left = EXCLUDED.try_count_left,
		   last_updated = NOW()
		 RETURNING id, device_id, try_count_left, last_updated`,
		deviceID, tryCount,
	).Scan(&d.ID, &d.DeviceID, &d.TryCountLeft, &d.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("upsert try count: %w", err)
	}
	return &d, nil
}

func (s *PostgresStore) ListTryCounts(ctx context.Context) ([]models.DeviceTryCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, device_id, try_count_left, last_updated
		 FROM device_try_counts ORDER BY last_updated DESC`)
	if err != nil {
		return nil, fmt.Errorf("list try counts: %w", err)
	}
	defer rows.Close()

	var devices []models.DeviceTryCount
	for rows.Next() {
		var d models.DeviceTryCount
		if err := rows.Scan(&d.ID, &d.DeviceID, &d.TryCountLeft, &d.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan try count: %w", err)
		}
		devices = append(devices, d)
	}
	if devices == nil {
		devices = []models.DeviceTryCount{}
	}
	return devices, rows.Err()
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
