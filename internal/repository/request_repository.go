package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/installer-orchestrator/internal/domain"
)

// ErrDuplicate is returned when a request id is already taken.
var ErrDuplicate = errors.New("duplicate request id")

const uniqueViolation = "23505"

// InstallationRequestRepository encapsulates request persistence.
type InstallationRequestRepository interface {
	Create(ctx context.Context, req *domain.InstallationRequest) error
	Update(ctx context.Context, req *domain.InstallationRequest) error
	GetByID(ctx context.Context, id string) (*domain.InstallationRequest, error)
	ListByState(ctx context.Context, state domain.RequestState, limit, offset int) ([]domain.InstallationRequest, error)
}

type installationRequestRepository struct {
	pool *pgxpool.Pool
}

// NewInstallationRequestRepository instantiates repository.
func NewInstallationRequestRepository(pool *pgxpool.Pool) InstallationRequestRepository {
	return &installationRequestRepository{pool: pool}
}

const requestColumns = `id, software_name, software_version, requester, ticket_ref, execution_ref, state,
               rejection_reason, admin_comment, outcome, feedback_rating, feedback_comments,
               feedback_status, feedback_at, feedback_skipped, poll_count, created_at, updated_at, archived_at`

func (r *installationRequestRepository) Create(ctx context.Context, req *domain.InstallationRequest) error {
	const query = `
        INSERT INTO installation_requests (id, software_name, software_version, requester, state, outcome)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		req.ID,
		req.SoftwareName,
		req.SoftwareVersion,
		req.Requester,
		req.State,
		req.Outcome,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func (r *installationRequestRepository) Update(ctx context.Context, req *domain.InstallationRequest) error {
	const query = `
        UPDATE installation_requests SET ticket_ref=$1, execution_ref=$2, state=$3, rejection_reason=$4,
            admin_comment=$5, outcome=$6, feedback_rating=$7, feedback_comments=$8, feedback_status=$9,
            feedback_at=$10, feedback_skipped=$11, poll_count=$12, archived_at=$13, updated_at=NOW()
        WHERE id=$14
        RETURNING updated_at`
	var (
		rating   *int
		comments *string
		status   *string
		at       *time.Time
	)
	if req.Feedback != nil {
		rating = &req.Feedback.Rating
		comments = &req.Feedback.Comments
		status = &req.Feedback.InstallationStatus
		at = &req.Feedback.SubmittedAt
	}
	return r.pool.QueryRow(ctx, query,
		req.TicketRef,
		req.ExecutionRef,
		req.State,
		req.RejectionReason,
		req.AdminComment,
		req.Outcome,
		rating,
		comments,
		status,
		at,
		req.FeedbackSkipped,
		req.PollCount,
		req.ArchivedAt,
		req.ID,
	).Scan(&req.UpdatedAt)
}

func (r *installationRequestRepository) GetByID(ctx context.Context, id string) (*domain.InstallationRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM installation_requests WHERE id=$1`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result, err := scanRequests(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &result[0], nil
}

func (r *installationRequestRepository) ListByState(ctx context.Context, state domain.RequestState, limit, offset int) ([]domain.InstallationRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + requestColumns + ` FROM installation_requests
             WHERE state=$1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, state, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func scanRequests(rows pgx.Rows) ([]domain.InstallationRequest, error) {
	var result []domain.InstallationRequest
	for rows.Next() {
		var (
			req      domain.InstallationRequest
			rating   *int
			comments *string
			status   *string
			at       *time.Time
		)
		if err := rows.Scan(
			&req.ID,
			&req.SoftwareName,
			&req.SoftwareVersion,
			&req.Requester,
			&req.TicketRef,
			&req.ExecutionRef,
			&req.State,
			&req.RejectionReason,
			&req.AdminComment,
			&req.Outcome,
			&rating,
			&comments,
			&status,
			&at,
			&req.FeedbackSkipped,
			&req.PollCount,
			&req.CreatedAt,
			&req.UpdatedAt,
			&req.ArchivedAt,
		); err != nil {
			return nil, err
		}
		if rating != nil {
			fb := domain.Feedback{Rating: *rating}
			if comments != nil {
				fb.Comments = *comments
			}
			if status != nil {
				fb.InstallationStatus = *status
			}
			if at != nil {
				fb.SubmittedAt = *at
			}
			req.Feedback = &fb
		}
		result = append(result, req)
	}
	return result, rows.Err()
}
