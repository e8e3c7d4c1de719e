package poller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clothai/clothai/internal/gateway"
	"github.com/clothai/clothai/pkg/models"
)

// stubGateway returns scripted snapshots (or errors) in sequence; the last
// entry repeats once the script runs out.
type stubGateway struct {
	mu    sync.Mutex
	ticks []tick
	calls int
}

type tick struct {
	exec *models.Execution
	err  error
}

func (s *stubGateway) GetExecution(_ context.Context, id string) (*models.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.ticks) {
		i = len(s.ticks) - 1
	}
	s.calls++
	t := s.ticks[i]
	return t.exec, t.err
}

func (s *stubGateway) Trigger(_ context.Context, _ gateway.TriggerRequest) (*models.Execution, error) {
	return nil, errors.New("not used")
}

func (s *stubGateway) ListExecutions(_ context.Context) ([]models.Execution, error) {
	return nil, errors.New("not used")
}

func (s *stubGateway) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func snap(status models.Status) *models.Execution {
	return &models.Execution{ID: "exec-1", Status: status}
}

func newFastPoller(gw gateway.Client, maxRetries int) *Poller {
	return New(gw, maxRetries, time.Millisecond)
}

func TestWait_ImmediateSuccess(t *testing.T) {
	succeeded := snap(models.StatusSucceeded)
	succeeded.Output = "https://provider/out.png"
	gw := &stubGateway{ticks: []tick{{exec: succeeded}}}

	p := newFastPoller(gw, 5)
	got, err := p.Wait(context.Background(), "exec-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Output != "https://provider/out.png" {
		t.Errorf("snapshot must be returned unchanged, got %+v", got)
	}
	if gw.callCount() != 1 {
		t.Errorf("expected 1 fetch, got %d", gw.callCount())
	}
}

func TestWait_RunningThenSucceeded(t *testing.T) {
	gw := &stubGateway{ticks: []tick{
		{exec: snap(models.StatusRunning)},
		{exec: snap(models.StatusRunning)},
		{exec: snap(models.StatusSucceeded)},
	}}

	p := newFastPoller(gw, 10)
	got, err := p.Wait(context.Background(), "exec-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.StatusSucceeded {
		t.Errorf("unexpected status: %q", got.Status)
	}
	if gw.callCount() != 3 {
		t.Errorf("expected 3 fetches, got %d", gw.callCount())
	}
}

func TestWait_ProviderFailure(t *testing.T) {
	for _, status := range []models.Status{models.StatusFailed, models.StatusError} {
		failed := snap(status)
		failed.ErrorDetail = "model exploded"
		gw := &stubGateway{ticks: []tick{{exec: failed}}}

		p := newFastPoller(gw, 5)
		_, err := p.Wait(context.Background(), "exec-1")
		if !errors.Is(err, ErrExecutionFailed) {
			t.Fatalf("status %q: expected ErrExecutionFailed, got %v", status, err)
		}
		if !strings.Contains(err.Error(), "model exploded") {
			t.Errorf("provider detail must survive, got %q", err)
		}
		if errors.Is(err, ErrWaitTimeout) {
			t.Error("a provider failure must not classify as a timeout")
		}
	}
}

func TestWait_TransportErrorIsTransient(t *testing.T) {
	gw := &stubGateway{ticks: []tick{
		{err: gateway.ErrStatusFetch},
		{err: gateway.ErrProviderUnreachable},
		{exec: snap(models.StatusSucceeded)},
	}}

	p := newFastPoller(gw, 10)
	got, err := p.Wait(context.Background(), "exec-1")
	if err != nil {
		t.Fatalf("transport errors must be retried, got %v", err)
	}
	if got.Status != models.StatusSucceeded {
		t.Errorf("unexpected status: %q", got.Status)
	}
}

func TestWait_ExhaustionAfterExactBudget(t *testing.T) {
	gw := &stubGateway{ticks: []tick{{err: gateway.ErrProviderUnreachable}}}

	p := newFastPoller(gw, 4)
	start := time.Now()
	_, err := p.Wait(context.Background(), "exec-1")
	elapsed := time.Since(start)

	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected ErrWaitTimeout, got %v", err)
	}
	if errors.Is(err, ErrExecutionFailed) {
		t.Error("budget exhaustion must not classify as a provider failure")
	}
	if gw.callCount() != 4 {
		t.Errorf("expected exactly 4 fetch attempts, got %d", gw.callCount())
	}
	// 4 attempts at 1ms each; generous scheduling tolerance.
	if elapsed < 4*time.Millisecond {
		t.Errorf("expected at least the full backoff wait, got %s", elapsed)
	}
}

func TestWait_UnrecognizedTokenStaysInFlight(t *testing.T) {
	gw := &stubGateway{ticks: []tick{
		{exec: snap(models.Status("starting"))},
		{exec: snap(models.StatusUnknown)},
		{exec: snap(models.StatusSucceeded)},
	}}

	p := newFastPoller(gw, 10)
	if _, err := p.Wait(context.Background(), "exec-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gw.callCount() != 3 {
		t.Errorf("expected 3 fetches, got %d", gw.callCount())
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	gw := &stubGateway{ticks: []tick{{exec: snap(models.StatusRunning)}}}

	ctx, cancel := context.WithCancel(context.Background())
	p := New(gw, 1000, 50*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := p.Wait(ctx, "exec-1")
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not observe cancellation")
	}
}

func TestBudget(t *testing.T) {
	p := New(&stubGateway{ticks: []tick{{}}}, 30, 5*time.Second)
	if got := p.Budget(); got != 150*time.Second {
		t.Errorf("unexpected budget: %s", got)
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New(&stubGateway{ticks: []tick{{}}}, 0, 0)
	if p.maxRetries != DefaultMaxRetries {
		t.Errorf("unexpected default retries: %d", p.maxRetries)
	}
	if p.interval != DefaultInterval {
		t.Errorf("unexpected default interval: %s", p.interval)
	}
}
