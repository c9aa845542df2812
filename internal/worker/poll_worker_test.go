package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/installer-orchestrator/internal/domain"
	"github.com/spec-kit/installer-orchestrator/internal/repository"
	"github.com/spec-kit/installer-orchestrator/internal/service"
	apperrors "github.com/spec-kit/installer-orchestrator/pkg/util/errorutil"
)

// scriptedPoller reports Running until a request has been polled doneAfter times.
type scriptedPoller struct {
	mu        sync.Mutex
	calls     map[string]int
	doneAfter int
}

func (p *scriptedPoller) PollOnce(ctx context.Context, id string) (*service.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id == "gone" {
		return nil, apperrors.NewNotFound("installation request", nil)
	}
	p.calls[id]++
	state := domain.StateRunning
	if p.calls[id] >= p.doneAfter {
		state = domain.StateFeedbackPending
	}
	return &service.Result{Request: &domain.InstallationRequest{ID: id, State: state}}, nil
}

func (p *scriptedPoller) count(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestPollWorkerResumesRunningRequests(t *testing.T) {
	repo := repository.NewMemoryRequestRepository()
	running := domain.NewInstallationRequest("r-running", "zoom", "5.0", "alice", time.Now())
	running.State = domain.StateRunning
	idle := domain.NewInstallationRequest("r-pending", "vlc", "", "bob", time.Now())
	idle.State = domain.StatePendingApproval
	for _, r := range []*domain.InstallationRequest{running, idle} {
		if err := repo.Create(context.Background(), r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	poller := &scriptedPoller{calls: map[string]int{}, doneAfter: 3}
	w := NewPollWorker(repo, zap.NewNop(), time.Millisecond, 0, 1)
	if err := w.Start(context.Background(), poller); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	waitFor(t, func() bool { return poller.count("r-running") == 3 && w.Active() == 0 })
	if poller.count("r-pending") != 0 {
		t.Fatalf("non-running request polled")
	}
}

func TestPollWorkerScheduleBeforeStartAndDedup(t *testing.T) {
	repo := repository.NewMemoryRequestRepository()
	poller := &scriptedPoller{calls: map[string]int{}, doneAfter: 2}
	w := NewPollWorker(repo, zap.NewNop(), time.Millisecond, 1000, 10)

	w.Schedule("early")
	if err := w.Start(context.Background(), poller); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()
	w.Schedule("early")
	w.Schedule("gone")

	waitFor(t, func() bool { return poller.count("early") >= 2 && w.Active() == 0 })
}

func TestPollWorkerStopEndsLoops(t *testing.T) {
	repo := repository.NewMemoryRequestRepository()
	poller := &scriptedPoller{calls: map[string]int{}, doneAfter: 1 << 30}
	w := NewPollWorker(repo, zap.NewNop(), time.Millisecond, 0, 1)
	if err := w.Start(context.Background(), poller); err != nil {
		t.Fatalf("start: %v", err)
	}
	w.Schedule("forever")
	waitFor(t, func() bool { return poller.count("forever") > 0 })

	w.Stop()
	if w.Active() != 0 {
		t.Fatalf("loops still active after stop")
	}
	w.Schedule("late")
	if w.Active() != 0 {
		t.Fatalf("schedule after stop must not start a loop")
	}
}
