package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/installer-orchestrator/internal/config"
	"github.com/spec-kit/installer-orchestrator/internal/domain"
	"github.com/spec-kit/installer-orchestrator/internal/events"
	"github.com/spec-kit/installer-orchestrator/internal/jobexec"
	"github.com/spec-kit/installer-orchestrator/internal/lock"
	"github.com/spec-kit/installer-orchestrator/internal/observability"
	"github.com/spec-kit/installer-orchestrator/internal/repository"
	"github.com/spec-kit/installer-orchestrator/internal/ticketing"
	apperrors "github.com/spec-kit/installer-orchestrator/pkg/util/errorutil"
)

const (
	defaultRequester      = "Guest"
	defaultTicketCategory = "Software"
	maxRequestIDLength    = 128
	systemActor           = "system"
)

// Human readable statuses recorded alongside audit entries.
const (
	statusSubmitted        = "User initiated the request for the Software Installation"
	statusTicketCreated    = "Ticket created, waiting for admin approval"
	statusTicketFailed     = "Ticket creation failed"
	statusApproved         = "Admin approved the software installation request"
	statusRejected         = "Admin rejected the request of Software Installation"
	statusTriggered        = "Rundeck job triggered"
	statusTriggerFailed    = "Rundeck job trigger failed"
	statusJobSucceeded     = "Rundeck job succeeded, software installed"
	statusJobFailed        = "Rundeck job failed/aborted"
	statusPollTimedOut     = "Rundeck job did not finish before the poll ceiling"
	statusExecutionUnknown = "Rundeck no longer knows the job execution"
	statusFeedbackPending  = "Waiting for user feedback"
	statusFeedbackReceived = "User submitted feedback"
	statusFeedbackSkipped  = "User skipped feedback"
)

// TicketingClient is the subset of the ticketing system the orchestrator drives.
type TicketingClient interface {
	CreateTicket(ctx context.Context, summary, description, category, caller string) (string, error)
	SetTicketState(ctx context.Context, ticketRef string, state ticketing.TicketState) error
}

// JobClient is the subset of the job executor the orchestrator drives.
type JobClient interface {
	TriggerJob(ctx context.Context, softwareName, version string) (string, error)
	PollStatus(ctx context.Context, executionRef string) (jobexec.JobStatus, error)
}

// PollScheduler starts background polling for a Running request.
type PollScheduler interface {
	Schedule(requestID string)
}

// Result is what every lifecycle operation hands back to the conversation layer.
type Result struct {
	Request       *domain.InstallationRequest
	Notifications []domain.Notification
}

// SubmitInput describes a new installation request.
type SubmitInput struct {
	RequestID    string
	SoftwareName string
	Version      string
	Requester    string
}

// Orchestrator drives installation requests through their lifecycle.
type Orchestrator struct {
	requests   repository.InstallationRequestRepository
	audit      repository.AuditRepository
	tickets    TicketingClient
	jobs       JobClient
	locker     lock.Locker
	dispatcher events.Dispatcher
	scheduler  PollScheduler
	logger     *zap.Logger
	cfg        config.OrchestratorConfig
	category   string
	now        func() time.Time
}

// Dependencies bundles collaborators for the orchestrator.
type Dependencies struct {
	RequestRepo    repository.InstallationRequestRepository
	AuditRepo      repository.AuditRepository
	Ticketing      TicketingClient
	Jobs           JobClient
	Locker         lock.Locker
	Dispatcher     events.Dispatcher
	Scheduler      PollScheduler
	Logger         *zap.Logger
	Config         config.OrchestratorConfig
	TicketCategory string
	Clock          func() time.Time
}

// NewOrchestrator constructs the orchestrator.
func NewOrchestrator(deps Dependencies) *Orchestrator {
	o := &Orchestrator{
		requests:   deps.RequestRepo,
		audit:      deps.AuditRepo,
		tickets:    deps.Ticketing,
		jobs:       deps.Jobs,
		locker:     deps.Locker,
		dispatcher: deps.Dispatcher,
		scheduler:  deps.Scheduler,
		logger:     deps.Logger,
		cfg:        deps.Config,
		category:   strings.TrimSpace(deps.TicketCategory),
		now:        deps.Clock,
	}
	if o.locker == nil {
		o.locker = lock.NewKeyedMutex()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	if o.category == "" {
		o.category = defaultTicketCategory
	}
	return o
}

// SetScheduler wires the poll scheduler once it exists; the worker needs the orchestrator first.
func (o *Orchestrator) SetScheduler(s PollScheduler) {
	o.scheduler = s
}

// Submit creates a request and opens its ticket.
func (o *Orchestrator) Submit(ctx context.Context, input SubmitInput) (*Result, error) {
	name := strings.TrimSpace(input.SoftwareName)
	if name == "" {
		return nil, apperrors.NewValidationError("software name is required", map[string]any{"field": "software_name"})
	}
	requestID := strings.TrimSpace(input.RequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if len(requestID) > maxRequestIDLength {
		return nil, apperrors.NewValidationError("request id too long", map[string]any{"field": "request_id", "max": maxRequestIDLength})
	}
	requester := strings.TrimSpace(input.Requester)
	if requester == "" {
		requester = defaultRequester
	}

	unlock, err := o.lock(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	req := domain.NewInstallationRequest(requestID, name, strings.TrimSpace(input.Version), requester, o.now())
	if err := o.requests.Create(ctx, req); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("request already submitted", map[string]any{"request_id": requestID})
		}
		return nil, err
	}
	// The request exists now; it must reach PendingApproval or TicketCreationFailed
	// even if the caller gives up.
	ctx = context.WithoutCancel(ctx)
	o.appendAudit(ctx, req.ID, domain.EventSubmitted, "", domain.StateCreated, requester, map[string]any{
		"status":   statusSubmitted,
		"software": name,
		"version":  req.SoftwareVersion,
	})
	o.logger.Info("installation request submitted",
		zap.String("request_id", req.ID),
		zap.String("software", name),
		zap.String("version", req.SoftwareVersion),
		zap.String("requester", requester))

	res := &Result{Request: req}

	callCtx, cancel := o.callContext(ctx)
	ticketRef, createErr := o.tickets.CreateTicket(callCtx, ticketSummary(req), ticketDescription(req), o.category, requester)
	cancel()
	if createErr != nil {
		if err := o.transition(ctx, req, domain.StateTicketCreationFailed, domain.EventTicketCreateFailed, systemActor, map[string]any{
			"status": statusTicketFailed,
			"error":  createErr.Error(),
		}); err != nil {
			return nil, err
		}
		res.Notifications = append(res.Notifications, o.notify(req, domain.NotifyTicketCreationFailed, domain.AudienceRequester,
			fmt.Sprintf("Could not create a ticket for %s. Please try again later.", displayName(req))))
		return o.finish(ctx, res), nil
	}

	req.TicketRef = &ticketRef
	if err := o.transition(ctx, req, domain.StatePendingApproval, domain.EventTicketCreated, systemActor, map[string]any{
		"status":     statusTicketCreated,
		"ticket_ref": ticketRef,
	}); err != nil {
		return nil, err
	}
	res.Notifications = append(res.Notifications,
		o.notify(req, domain.NotifyAwaitingApproval, domain.AudienceRequester,
			fmt.Sprintf("Ticket %s created for %s. Waiting for admin approval.", ticketRef, displayName(req))),
		o.notify(req, domain.NotifyAwaitingApproval, domain.AudienceAdmin,
			fmt.Sprintf("%s requested %s (ticket %s).", requester, displayName(req), ticketRef),
			domain.ActionAdminApprove, domain.ActionAdminReject),
	)
	return o.finish(ctx, res), nil
}

// Approve approves a pending request and triggers the installation job in the same operation.
func (o *Orchestrator) Approve(ctx context.Context, requestID, actor, comment string) (*Result, error) {
	unlock, err := o.lock(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, err := o.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.State != domain.StatePendingApproval {
		return nil, apperrors.NewInvalidState("approve", string(req.State), map[string]any{"request_id": requestID})
	}

	res := &Result{Request: req}
	if comment = strings.TrimSpace(comment); comment != "" {
		req.AdminComment = &comment
	}
	if err := o.transition(ctx, req, domain.StateApproved, domain.EventApproved, actor, map[string]any{
		"status":  statusApproved,
		"comment": comment,
	}); err != nil {
		return nil, err
	}
	// Approved is saved; the trigger outcome must be recorded even if the caller gives up.
	ctx = context.WithoutCancel(ctx)
	o.mirrorTicket(ctx, req, ticketing.TicketInProgress, res)
	res.Notifications = append(res.Notifications, o.notify(req, domain.NotifyApproved, domain.AudienceRequester,
		fmt.Sprintf("Your request for %s was approved.", displayName(req))))

	callCtx, cancel := o.callContext(ctx)
	executionRef, triggerErr := o.jobs.TriggerJob(callCtx, req.SoftwareName, req.SoftwareVersion)
	cancel()
	if triggerErr != nil {
		if err := o.transition(ctx, req, domain.StateTriggerFailed, domain.EventTriggerFailed, systemActor, map[string]any{
			"status": statusTriggerFailed,
			"error":  triggerErr.Error(),
		}); err != nil {
			return nil, err
		}
		o.mirrorTicket(ctx, req, ticketing.TicketCancelled, res)
		res.Notifications = append(res.Notifications,
			o.notify(req, domain.NotifyTriggerFailed, domain.AudienceRequester,
				fmt.Sprintf("The installation of %s could not be started.", displayName(req))),
			o.notify(req, domain.NotifyTriggerFailed, domain.AudienceAdmin,
				fmt.Sprintf("Triggering the installation job for %s failed: %v", displayName(req), triggerErr)),
		)
		return o.finish(ctx, res), nil
	}

	req.ExecutionRef = &executionRef
	if err := o.transition(ctx, req, domain.StateRunning, domain.EventJobTriggered, systemActor, map[string]any{
		"status":        statusTriggered,
		"execution_ref": executionRef,
	}); err != nil {
		return nil, err
	}
	if o.scheduler != nil {
		o.scheduler.Schedule(req.ID)
	}
	res.Notifications = append(res.Notifications, o.notify(req, domain.NotifyInstallationStarted, domain.AudienceRequester,
		fmt.Sprintf("Installation of %s started (execution %s).", displayName(req), executionRef)))
	return o.finish(ctx, res), nil
}

// Reject rejects a pending request. Rejected requests have no feedback stage.
func (o *Orchestrator) Reject(ctx context.Context, requestID, actor, reason string) (*Result, error) {
	unlock, err := o.lock(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, err := o.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.State != domain.StatePendingApproval {
		return nil, apperrors.NewInvalidState("reject", string(req.State), map[string]any{"request_id": requestID})
	}

	res := &Result{Request: req}
	reason = strings.TrimSpace(reason)
	req.RejectionReason = &reason
	if err := o.transition(ctx, req, domain.StateRejected, domain.EventRejected, actor, map[string]any{
		"status": statusRejected,
		"reason": reason,
	}); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)
	o.mirrorTicket(ctx, req, ticketing.TicketCancelled, res)
	msg := fmt.Sprintf("Your request for %s was rejected.", displayName(req))
	if reason != "" {
		msg = fmt.Sprintf("Your request for %s was rejected: %s", displayName(req), reason)
	}
	res.Notifications = append(res.Notifications, o.notify(req, domain.NotifyRejected, domain.AudienceRequester, msg))
	return o.finish(ctx, res), nil
}

// PollOnce queries the executor once for a Running request. Every call counts toward
// the poll ceiling; reaching it without a terminal status fails the request as indeterminate.
func (o *Orchestrator) PollOnce(ctx context.Context, requestID string) (*Result, error) {
	unlock, err := o.lock(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, err := o.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.State != domain.StateRunning {
		return nil, apperrors.NewInvalidState("poll", string(req.State), map[string]any{"request_id": requestID})
	}

	req.PollCount++
	res := &Result{Request: req}
	status, pollErr := o.pollStatus(ctx, req)

	switch {
	case pollErr == nil && status == jobexec.JobSucceeded:
		observability.Polls.WithLabelValues(string(status)).Inc()
		return o.complete(ctx, req, res, domain.StateSucceeded, domain.OutcomeSuccess, domain.EventJobSucceeded, map[string]any{
			"status":     statusJobSucceeded,
			"job_status": string(status),
		})
	case pollErr == nil && status.IsTerminal():
		observability.Polls.WithLabelValues(string(status)).Inc()
		return o.complete(ctx, req, res, domain.StateFailed, domain.OutcomeFailure, domain.EventJobFailed, map[string]any{
			"status":     statusJobFailed,
			"job_status": string(status),
		})
	case apperrors.HasCode(pollErr, apperrors.CodeNotFound):
		// An unknown execution stays unknown; waiting for the ceiling cannot help.
		observability.Polls.WithLabelValues("not_found").Inc()
		o.logger.Warn("job execution not found",
			zap.String("request_id", req.ID),
			zap.String("execution_ref", req.ExecutionRefValue()),
			zap.Error(pollErr))
		res.Notifications = append(res.Notifications, o.notify(req, domain.NotifyInstallationFailed, domain.AudienceAdmin,
			fmt.Sprintf("Execution %s for %s is unknown to the job executor.", req.ExecutionRefValue(), displayName(req))))
		return o.complete(ctx, req, res, domain.StateFailed, domain.OutcomeIndeterminate, domain.EventJobFailed, map[string]any{
			"status":     statusExecutionUnknown,
			"poll_count": req.PollCount,
			"last_error": pollErr.Error(),
		})
	}

	if pollErr != nil {
		observability.Polls.WithLabelValues("error").Inc()
		o.logger.Warn("job status poll failed",
			zap.String("request_id", req.ID),
			zap.String("execution_ref", req.ExecutionRefValue()),
			zap.Int("poll_count", req.PollCount),
			zap.Error(pollErr))
	} else {
		observability.Polls.WithLabelValues(string(status)).Inc()
	}

	if ceiling := o.cfg.PollMaxAttempts; ceiling > 0 && req.PollCount >= ceiling {
		payload := map[string]any{
			"status":     statusPollTimedOut,
			"poll_count": req.PollCount,
		}
		if pollErr != nil {
			payload["last_error"] = pollErr.Error()
		}
		return o.complete(ctx, req, res, domain.StateFailed, domain.OutcomeIndeterminate, domain.EventPollTimedOut, payload)
	}

	// Still running: only the poll counter moves, which is not a transition.
	if err := o.requests.Update(ctx, req); err != nil {
		return nil, err
	}
	return res, nil
}

// SubmitFeedback records the requester's rating and closes the request.
func (o *Orchestrator) SubmitFeedback(ctx context.Context, requestID, actor string, rating int, comments string) (*Result, error) {
	if rating < 1 || rating > 5 {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"field": "rating", "value": rating})
	}
	unlock, err := o.lock(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, err := o.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.State != domain.StateFeedbackPending {
		return nil, apperrors.NewInvalidState("submit feedback", string(req.State), map[string]any{"request_id": requestID})
	}

	now := o.now()
	req.Feedback = &domain.Feedback{
		Rating:             rating,
		Comments:           strings.TrimSpace(comments),
		InstallationStatus: installationStatus(req.Outcome),
		SubmittedAt:        now,
	}
	req.ArchivedAt = &now
	if err := o.transition(ctx, req, domain.StateClosed, domain.EventFeedbackSubmitted, actor, map[string]any{
		"status":   statusFeedbackReceived,
		"rating":   rating,
		"comments": req.Feedback.Comments,
	}); err != nil {
		return nil, err
	}
	res := &Result{Request: req}
	res.Notifications = append(res.Notifications, o.notify(req, domain.NotifyFeedbackRecorded, domain.AudienceRequester,
		"Thank you for your feedback."))
	return o.finish(ctx, res), nil
}

// SkipFeedback closes the request without feedback.
func (o *Orchestrator) SkipFeedback(ctx context.Context, requestID, actor string) (*Result, error) {
	unlock, err := o.lock(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, err := o.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.State != domain.StateFeedbackPending {
		return nil, apperrors.NewInvalidState("skip feedback", string(req.State), map[string]any{"request_id": requestID})
	}

	now := o.now()
	req.FeedbackSkipped = true
	req.ArchivedAt = &now
	if err := o.transition(ctx, req, domain.StateClosed, domain.EventFeedbackSkipped, actor, map[string]any{
		"status": statusFeedbackSkipped,
	}); err != nil {
		return nil, err
	}
	res := &Result{Request: req}
	res.Notifications = append(res.Notifications, o.notify(req, domain.NotifyFeedbackSkipped, domain.AudienceRequester,
		"Feedback skipped. Your request is closed."))
	return o.finish(ctx, res), nil
}

// Get returns a request snapshot.
func (o *Orchestrator) Get(ctx context.Context, requestID string) (*domain.InstallationRequest, error) {
	return o.load(ctx, requestID)
}

// AuditTrail returns the audit records of a request in append order.
func (o *Orchestrator) AuditTrail(ctx context.Context, requestID string) ([]domain.AuditRecord, error) {
	if _, err := o.load(ctx, requestID); err != nil {
		return nil, err
	}
	return o.audit.ListByRequest(ctx, requestID)
}

// complete performs the terminal job transition, mirrors the ticket and opens the feedback stage.
func (o *Orchestrator) complete(ctx context.Context, req *domain.InstallationRequest, res *Result, next domain.RequestState, outcome domain.Outcome, event domain.AuditEvent, payload map[string]any) (*Result, error) {
	req.Outcome = outcome
	payload["outcome"] = string(outcome)
	if err := o.transition(ctx, req, next, event, systemActor, payload); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	if next == domain.StateSucceeded {
		o.mirrorTicket(ctx, req, ticketing.TicketClosed, res)
		res.Notifications = append(res.Notifications, o.notify(req, domain.NotifyInstallationSucceeded, domain.AudienceRequester,
			fmt.Sprintf("%s was installed successfully.", displayName(req))))
	} else {
		o.mirrorTicket(ctx, req, ticketing.TicketCancelled, res)
		msg := fmt.Sprintf("The installation of %s failed.", displayName(req))
		if outcome == domain.OutcomeIndeterminate {
			msg = fmt.Sprintf("The installation of %s did not report a result in time and is treated as failed.", displayName(req))
		}
		res.Notifications = append(res.Notifications, o.notify(req, domain.NotifyInstallationFailed, domain.AudienceRequester, msg))
	}

	if err := o.transition(ctx, req, domain.StateFeedbackPending, domain.EventFeedbackRequested, systemActor, map[string]any{
		"status":  statusFeedbackPending,
		"outcome": string(outcome),
	}); err != nil {
		return nil, err
	}
	res.Notifications = append(res.Notifications, o.notify(req, domain.NotifyFeedbackRequested, domain.AudienceRequester,
		fmt.Sprintf("How did the installation of %s go? Please rate it from 1 to 5.", displayName(req)),
		domain.ActionSubmitFeedback, domain.ActionSkipFeedback))
	return o.finish(ctx, res), nil
}

// transition audits, then persists a single edge of the lifecycle graph.
func (o *Orchestrator) transition(ctx context.Context, req *domain.InstallationRequest, next domain.RequestState, event domain.AuditEvent, actor string, payload map[string]any) error {
	prior := req.State
	if !domain.IsValidTransition(prior, next) {
		return apperrors.NewInvalidState(string(event), string(prior), map[string]any{"request_id": req.ID, "target": string(next)})
	}
	o.appendAudit(ctx, req.ID, event, prior, next, actor, payload)

	req.State = next
	if err := o.requests.Update(ctx, req); err != nil {
		req.State = prior
		return err
	}
	observability.StateTransitions.WithLabelValues(string(prior), string(next)).Inc()
	o.logger.Info("installation request transitioned",
		zap.String("request_id", req.ID),
		zap.String("from", string(prior)),
		zap.String("to", string(next)),
		zap.String("event", string(event)),
		zap.String("ticket_ref", req.TicketRefValue()),
		zap.String("execution_ref", req.ExecutionRefValue()))
	o.publishEvent(ctx, events.Event{
		Type:      events.EventRequestStateChanged,
		RequestID: req.ID,
		Actor:     actor,
		Payload: events.StateChangedPayload{
			OldState: prior,
			NewState: next,
			Cause:    event,
		},
	})
	return nil
}

// appendAudit never fails the caller; write errors go to the log and a counter.
func (o *Orchestrator) appendAudit(ctx context.Context, requestID string, event domain.AuditEvent, prior, next domain.RequestState, actor string, payload map[string]any) {
	if o.audit == nil {
		return
	}
	record := &domain.AuditRecord{
		RequestID:  requestID,
		Event:      event,
		PriorState: prior,
		NewState:   next,
		Actor:      actor,
		Payload:    payload,
		CreatedAt:  o.now(),
	}
	if err := o.audit.Append(ctx, record); err != nil {
		observability.AuditWriteFailures.Inc()
		o.logger.Error("audit append failed",
			zap.String("request_id", requestID),
			zap.String("event", string(event)),
			zap.Error(apperrors.NewAuditWriteFailure(requestID, err)))
	}
}

// mirrorTicket pushes the ticket state with bounded retries. Failure only adds a warning.
func (o *Orchestrator) mirrorTicket(ctx context.Context, req *domain.InstallationRequest, state ticketing.TicketState, res *Result) {
	ref := req.TicketRefValue()
	if ref == "" {
		return
	}
	err := retry(ctx, o.retryPolicy(o.cfg.MirrorRetryAttempts), isTransient, func(ctx context.Context) error {
		callCtx, cancel := o.callContext(ctx)
		defer cancel()
		return o.tickets.SetTicketState(callCtx, ref, state)
	})
	if err == nil {
		return
	}
	o.logger.Warn("ticket mirror update failed",
		zap.String("request_id", req.ID),
		zap.String("ticket_ref", ref),
		zap.String("ticket_state", string(state)),
		zap.Error(err))
	res.Notifications = append(res.Notifications, o.notify(req, domain.NotifyTicketMirrorFailed, domain.AudienceAdmin,
		fmt.Sprintf("Failed to update ticket %s to %s.", ref, state)))
}

func (o *Orchestrator) pollStatus(ctx context.Context, req *domain.InstallationRequest) (jobexec.JobStatus, error) {
	var status jobexec.JobStatus
	err := retry(ctx, o.retryPolicy(o.cfg.PollRetryAttempts), isTransient, func(ctx context.Context) error {
		callCtx, cancel := o.callContext(ctx)
		defer cancel()
		st, err := o.jobs.PollStatus(callCtx, req.ExecutionRefValue())
		if err != nil {
			return err
		}
		status = st
		return nil
	})
	return status, err
}

func (o *Orchestrator) retryPolicy(attempts int) retryPolicy {
	return retryPolicy{attempts: attempts, baseDelay: o.cfg.RetryBaseDelay}
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.cfg.CallTimeout)
}

func (o *Orchestrator) lock(ctx context.Context, requestID string) (func(), error) {
	if strings.TrimSpace(requestID) == "" {
		return nil, apperrors.NewValidationError("request id is required", map[string]any{"field": "request_id"})
	}
	unlock, err := o.locker.Lock(ctx, requestID)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("lock request %s: %w", requestID, err))
	}
	return unlock, nil
}

func (o *Orchestrator) load(ctx context.Context, requestID string) (*domain.InstallationRequest, error) {
	req, err := o.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("installation request", map[string]any{"request_id": requestID})
		}
		return nil, err
	}
	return req, nil
}

func (o *Orchestrator) notify(req *domain.InstallationRequest, kind domain.NotificationKind, audience domain.Audience, message string, actions ...string) domain.Notification {
	return domain.Notification{
		Kind:         kind,
		Audience:     audience,
		RequestID:    req.ID,
		State:        req.State,
		Message:      message,
		SoftwareName: req.SoftwareName,
		Version:      req.SoftwareVersion,
		TicketRef:    req.TicketRefValue(),
		ExecutionRef: req.ExecutionRefValue(),
		Actions:      actions,
		CreatedAt:    o.now(),
	}
}

// finish publishes the notifications of a completed operation.
func (o *Orchestrator) finish(ctx context.Context, res *Result) *Result {
	for _, n := range res.Notifications {
		o.publishEvent(ctx, events.Event{
			Type:      events.EventRequestNotification,
			RequestID: n.RequestID,
			Timestamp: n.CreatedAt,
			Payload:   events.NewNotificationPayload(n),
		})
	}
	return res
}

func (o *Orchestrator) publishEvent(ctx context.Context, event events.Event) {
	if o.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = o.now()
	}
	if err := o.dispatcher.Publish(ctx, event); err != nil {
		o.logger.Warn("event publish failed",
			zap.String("request_id", event.RequestID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

// isTransient reports whether a retry could help; unknown tickets or executions will stay unknown.
func isTransient(err error) bool {
	return !apperrors.HasCode(err, apperrors.CodeNotFound) && !apperrors.HasCode(err, apperrors.CodeValidation)
}

func ticketSummary(req *domain.InstallationRequest) string {
	return "Installation of " + displayName(req)
}

func ticketDescription(req *domain.InstallationRequest) string {
	return fmt.Sprintf("%s requested installation of %s. Request id: %s", req.Requester, displayName(req), req.ID)
}

func displayName(req *domain.InstallationRequest) string {
	if req.SoftwareVersion == "" {
		return req.SoftwareName
	}
	return fmt.Sprintf("%s v%s", req.SoftwareName, req.SoftwareVersion)
}

func installationStatus(outcome domain.Outcome) string {
	switch outcome {
	case domain.OutcomeSuccess:
		return "success"
	case domain.OutcomeIndeterminate:
		return "indeterminate"
	default:
		return "failure"
	}
}
