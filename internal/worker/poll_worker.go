package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/installer-orchestrator/internal/domain"
	"github.com/spec-kit/installer-orchestrator/internal/observability"
	"github.com/spec-kit/installer-orchestrator/internal/repository"
	"github.com/spec-kit/installer-orchestrator/internal/service"
	apperrors "github.com/spec-kit/installer-orchestrator/pkg/util/errorutil"
)

const resumePageSize = 100

// Poller advances a Running request by one executor poll.
type Poller interface {
	PollOnce(ctx context.Context, requestID string) (*service.Result, error)
}

// PollWorker runs one poll loop per Running request.
type PollWorker struct {
	requests repository.InstallationRequestRepository
	logger   *zap.Logger
	interval time.Duration
	limiter  *rate.Limiter

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	poller  Poller
	active  map[string]struct{}
	pending []string
	wg      sync.WaitGroup
}

// NewPollWorker builds a worker. ratePerSecond caps executor polls across all loops.
func NewPollWorker(requests repository.InstallationRequestRepository, logger *zap.Logger, interval time.Duration, ratePerSecond float64, burst int) *PollWorker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &PollWorker{
		requests: requests,
		logger:   logger,
		interval: interval,
		limiter:  rate.NewLimiter(limit, burst),
		active:   make(map[string]struct{}),
	}
}

// Start resumes polling for every Running request and launches loops scheduled before start.
func (w *PollWorker) Start(ctx context.Context, poller Poller) error {
	w.mu.Lock()
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.poller = poller
	pending := w.pending
	w.pending = nil
	w.mu.Unlock()

	for _, id := range pending {
		w.Schedule(id)
	}

	resumed := 0
	for offset := 0; ; offset += resumePageSize {
		running, err := w.requests.ListByState(ctx, domain.StateRunning, resumePageSize, offset)
		if err != nil {
			return err
		}
		for _, req := range running {
			w.Schedule(req.ID)
			resumed++
		}
		if len(running) < resumePageSize {
			break
		}
	}
	w.logger.Info("poll worker started", zap.Int("resumed", resumed), zap.Duration("interval", w.interval))
	return nil
}

// Schedule starts a poll loop for the request unless one is already active.
func (w *PollWorker) Schedule(requestID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx == nil {
		w.pending = append(w.pending, requestID)
		return
	}
	if w.ctx.Err() != nil {
		return
	}
	if _, ok := w.active[requestID]; ok {
		return
	}
	w.active[requestID] = struct{}{}
	observability.ActivePollers.Inc()
	w.wg.Add(1)
	go w.loop(w.ctx, w.poller, requestID)
}

// Stop cancels every loop and waits for them to exit.
func (w *PollWorker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

// Active reports the number of running poll loops.
func (w *PollWorker) Active() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.active)
}

func (w *PollWorker) loop(ctx context.Context, poller Poller, requestID string) {
	defer w.wg.Done()
	defer func() {
		w.mu.Lock()
		delete(w.active, requestID)
		w.mu.Unlock()
		observability.ActivePollers.Dec()
	}()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}

		res, err := poller.PollOnce(ctx, requestID)
		if err != nil {
			if apperrors.HasCode(err, apperrors.CodeInvalidState) || apperrors.HasCode(err, apperrors.CodeNotFound) {
				w.logger.Info("poll loop finished", zap.String("request_id", requestID), zap.Error(err))
				return
			}
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("poll iteration failed", zap.String("request_id", requestID), zap.Error(err))
			continue
		}
		if res.Request.State != domain.StateRunning {
			w.logger.Info("poll loop finished",
				zap.String("request_id", requestID),
				zap.String("state", string(res.Request.State)),
				zap.String("outcome", string(res.Request.Outcome)))
			return
		}
	}
}
