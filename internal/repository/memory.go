package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/installer-orchestrator/internal/domain"
)

// MemoryRequestRepository keeps requests in process memory. It serves when no
// Postgres DSN is configured and in tests.
type MemoryRequestRepository struct {
	mu       sync.RWMutex
	requests map[string]*domain.InstallationRequest
}

// NewMemoryRequestRepository builds an empty store.
func NewMemoryRequestRepository() *MemoryRequestRepository {
	return &MemoryRequestRepository{requests: make(map[string]*domain.InstallationRequest)}
}

func (r *MemoryRequestRepository) Create(ctx context.Context, req *domain.InstallationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.requests[req.ID]; exists {
		return ErrDuplicate
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	r.requests[req.ID] = req.Clone()
	return nil
}

func (r *MemoryRequestRepository) Update(ctx context.Context, req *domain.InstallationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.requests[req.ID]; !exists {
		return pgx.ErrNoRows
	}
	req.UpdatedAt = time.Now().UTC()
	r.requests[req.ID] = req.Clone()
	return nil
}

func (r *MemoryRequestRepository) GetByID(ctx context.Context, id string) (*domain.InstallationRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return req.Clone(), nil
}

func (r *MemoryRequestRepository) ListByState(ctx context.Context, state domain.RequestState, limit, offset int) ([]domain.InstallationRequest, error) {
	r.mu.RLock()
	matched := make([]domain.InstallationRequest, 0)
	for _, req := range r.requests {
		if req.State == state {
			matched = append(matched, *req.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 || offset >= len(matched) {
		return []domain.InstallationRequest{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

// MemoryAuditRepository is an append-only in-process audit log.
type MemoryAuditRepository struct {
	mu      sync.RWMutex
	records map[string][]domain.AuditRecord
}

// NewMemoryAuditRepository builds an empty audit log.
func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{records: make(map[string][]domain.AuditRecord)}
}

func (r *MemoryAuditRepository) Append(ctx context.Context, record *domain.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	entry := *record
	entry.Payload = copyPayload(record.Payload)
	r.records[record.RequestID] = append(r.records[record.RequestID], entry)
	return nil
}

func (r *MemoryAuditRepository) ListByRequest(ctx context.Context, requestID string) ([]domain.AuditRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.AuditRecord, len(r.records[requestID]))
	copy(out, r.records[requestID])
	return out, nil
}

func copyPayload(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
