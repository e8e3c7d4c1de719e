package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clothai/clothai/internal/cache"
	"github.com/clothai/clothai/internal/gateway"
	"github.com/clothai/clothai/internal/poller"
	"github.com/clothai/clothai/internal/store"
	"github.com/clothai/clothai/internal/uploader"
	"github.com/clothai/clothai/pkg/models"
)

var (
	// ErrNotImage means an uploaded file is not usable image input. No
	// external calls are made once validation fails.
	ErrNotImage = errors.New("file must be an image")
	// ErrQuotaExhausted means the device is registered and has no
	// attempts left.
	ErrQuotaExhausted = errors.New("no attempts left for device")
)

// Cached terminal results outlive the polling budget by a wide margin so a
// client polling /status after the watcher finished still gets a hit.
const resultTTL = 30 * time.Minute

// ImageInput is one caller-supplied image file.
type ImageInput struct {
	Data        []byte
	ContentType string
	Filename    string
}

// ChangeParams holds validated-on-entry inputs for one swap request. Wait
// signals that the caller will block on Await itself, so no background
// watcher is spawned for the execution.
type ChangeParams struct {
	Person       ImageInput
	Cloth        ImageInput
	ClothingType string
	DeviceID     string
	Wait         bool
}

// TriggerAck is returned to the caller as soon as the provider accepts the
// job; the result is produced asynchronously.
type TriggerAck struct {
	ExecutionID string
	Status      models.Status
}

// StatusResult is the response shape for a status query. UploadError is set
// when the output artifact could not be re-hosted; the snapshot itself is
// still returned.
type StatusResult struct {
	ExecutionID string
	Status      models.Status
	Details     map[string]any
	ErrorDetail string
	OutputURL   string
	UploadError string
}

// Service composes the uploader, gateway, poller, quota store, and cache
// into the end-to-end swap pipeline.
type Service struct {
	gateway  gateway.Client
	uploader uploader.Client
	store    store.Store
	cache    cache.Cache
	poller   *poller.Poller
}

// New creates a Service.
func New(gw gateway.Client, up uploader.Client, st store.Store, ca cache.Cache, p *poller.Poller) *Service {
	return &Service{
		gateway:  gw,
		uploader: up,
		store:    st,
		cache:    ca,
		poller:   p,
	}
}

// ChangeCloth runs the submit pipeline: validate, quota admission, upload
// both images, trigger the execution, and return the acknowledgment
// immediately. Unless the caller waits on the result itself, a background
// watcher polls the execution to a terminal state and caches the outcome.
func (s *Service) ChangeCloth(ctx context.Context, params ChangeParams) (*TriggerAck, error) {
	requestID := uuid.New().String()

	if err := validateImage("person", params.Person); err != nil {
		return nil, err
	}
	if err := validateImage("cloth", params.Cloth); err != nil {
		return nil, err
	}

	if params.DeviceID != "" {
		if err := s.admitDevice(ctx, params.DeviceID); err != nil {
			return nil, err
		}
	}

	slog.Info("uploading person image",
		"request_id", requestID, "filename", params.Person.Filename, "bytes", len(params.Person.Data))
	personURL, err := s.uploader.UploadBytes(ctx, params.Person.Data)
	if err != nil {
		return nil, fmt.Errorf("uploading person image: %w", err)
	}

	slog.Info("uploading cloth image",
		"request_id", requestID, "filename", params.Cloth.Filename, "bytes", len(params.Cloth.Data))
	clothURL, err := s.uploader.UploadBytes(ctx, params.Cloth.Data)
	if err != nil {
		return nil, fmt.Errorf("uploading cloth image: %w", err)
	}

	exec, err := s.gateway.Trigger(ctx, gateway.TriggerRequest{
		PersonURL:    personURL,
		ClothURL:     clothURL,
		ClothingType: params.ClothingType,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("execution triggered",
		"request_id", requestID, "execution_id", exec.ID, "status", exec.Status)

	// A waiting caller polls the execution itself and re-hosts the output
	// through ExecutionStatus; spawning the watcher as well would have two
	// pollers on the same execution and upload the artifact twice.
	if exec.ID != "" && !params.Wait {
		go s.watchExecution(exec.ID)
	}

	return &TriggerAck{ExecutionID: exec.ID, Status: exec.Status}, nil
}

// admitDevice refuses a registered device with no attempts left. An
// unregistered device is admitted: no record is a valid state, not an
// error. The counter is never decremented here; updates only happen through
// the explicit try-count endpoint.
func (s *Service) admitDevice(ctx context.Context, deviceID string) error {
	rec, err := s.store.GetTryCount(ctx, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		// Quota is best-effort; an unavailable store must not take the
		// whole pipeline down.
		slog.Warn("quota lookup failed, admitting request", "device_id", deviceID, "error", err)
		return nil
	}
	if rec.TryCountLeft <= 0 {
		return fmt.Errorf("%w: %s", ErrQuotaExhausted, deviceID)
	}
	return nil
}

// watchExecution polls a triggered execution to a terminal state and caches
// the outcome, re-hosting the output artifact on success. It runs detached
// from the originating request under a deadline derived from the polling
// budget so an abandoned job cannot leak the goroutine.
func (s *Service) watchExecution(executionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.poller.Budget()+time.Minute)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in execution watcher", "execution_id", executionID, "error", r)
		}
	}()

	exec, err := s.poller.Wait(ctx, executionID)
	if err != nil {
		if errors.Is(err, poller.ErrWaitTimeout) {
			// Not cached: the provider may still finish, and a later
			// status query must be able to see that.
			slog.Warn("gave up waiting for execution", "execution_id", executionID, "error", err)
			return
		}
		if errors.Is(err, poller.ErrExecutionFailed) {
			s.cacheResult(ctx, executionID, cache.ExecutionResult{
				Execution: models.Execution{
					ID:          executionID,
					Status:      models.StatusFailed,
					ErrorDetail: err.Error(),
				},
			})
		}
		return
	}

	result := cache.ExecutionResult{Execution: *exec}
	if exec.Output != "" {
		hostedURL, upErr := s.uploader.UploadFromURL(ctx, exec.Output)
		if upErr != nil {
			slog.Error("re-hosting output failed",
				"execution_id", executionID, "output", exec.Output, "error", upErr)
		} else {
			result.OutputURL = hostedURL
		}
	}
	s.cacheResult(ctx, executionID, result)
}

func (s *Service) cacheResult(ctx context.Context, executionID string, result cache.ExecutionResult) {
	if err := s.cache.SetExecutionResult(ctx, executionID, result, resultTTL); err != nil {
		slog.Warn("caching execution result failed", "execution_id", executionID, "error", err)
	}
}

// ExecutionStatus returns the current snapshot for an execution. A cached
// terminal result is served directly. Otherwise the provider is queried;
// when the execution succeeded, its output artifact is re-uploaded so the
// caller receives a provider-independent durable URL. A re-upload failure
// does not fail the request: the snapshot is returned with UploadError set.
func (s *Service) ExecutionStatus(ctx context.Context, executionID string) (*StatusResult, error) {
	if cached, found, err := s.cache.GetExecutionResult(ctx, executionID); err == nil && found && cached.Execution.Status.IsTerminal() {
		return &StatusResult{
			ExecutionID: executionID,
			Status:      cached.Execution.Status,
			Details:     cached.Execution.Details,
			ErrorDetail: cached.Execution.ErrorDetail,
			OutputURL:   cached.OutputURL,
		}, nil
	}

	snap, err := s.gateway.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{
		ExecutionID: executionID,
		Status:      snap.Status,
		Details:     snap.Details,
		ErrorDetail: snap.ErrorDetail,
	}

	if snap.Status == models.StatusSucceeded && snap.Output != "" {
		hostedURL, upErr := s.uploader.UploadFromURL(ctx, snap.Output)
		if upErr != nil {
			slog.Error("re-hosting output failed",
				"execution_id", executionID, "output", snap.Output, "error", upErr)
			result.UploadError = upErr.Error()
		} else {
			result.OutputURL = hostedURL
			s.cacheResult(ctx, executionID, cache.ExecutionResult{
				Execution: *snap,
				OutputURL: hostedURL,
			})
		}
	} else if snap.Status.IsFailure() {
		s.cacheResult(ctx, executionID, cache.ExecutionResult{Execution: *snap})
	}

	return result, nil
}

// Await blocks until the execution reaches a terminal state or the polling
// budget is exhausted. Cancellation propagates through ctx.
func (s *Service) Await(ctx context.Context, executionID string) (*models.Execution, error) {
	return s.poller.Wait(ctx, executionID)
}

// ListExecutions is an administrative pass-through to the provider.
func (s *Service) ListExecutions(ctx context.Context) ([]models.Execution, error) {
	return s.gateway.ListExecutions(ctx)
}

func validateImage(field string, in ImageInput) error {
	if len(in.Data) == 0 {
		return fmt.Errorf("%w: %s file is empty", ErrNotImage, field)
	}
	if !strings.HasPrefix(in.ContentType, "image/") {
		return fmt.Errorf("%w: %s file has content type %q", ErrNotImage, field, in.ContentType)
	}
	return nil
}
