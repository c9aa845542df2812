package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/installer-orchestrator/internal/domain"
)

func TestMemoryRequestRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRequestRepository()
	req := domain.NewInstallationRequest("r1", "zoom", "5.0", "alice", time.Now())

	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, req); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	got, err := repo.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	ref := "INC1"
	got.TicketRef = &ref
	got.State = domain.StatePendingApproval

	stored, _ := repo.GetByID(ctx, "r1")
	if stored.TicketRef != nil {
		t.Fatalf("mutating a fetched copy must not change the store")
	}

	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	stored, _ = repo.GetByID(ctx, "r1")
	if stored.State != domain.StatePendingApproval || stored.TicketRefValue() != "INC1" {
		t.Fatalf("update not persisted: %#v", stored)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
	if err := repo.Update(ctx, domain.NewInstallationRequest("missing", "a", "b", "c", time.Now())); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected ErrNoRows on update of unknown id, got %v", err)
	}
}

func TestMemoryListByState(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRequestRepository()
	for _, id := range []string{"a", "b", "c"} {
		req := domain.NewInstallationRequest(id, "zoom", "5.0", "alice", time.Now())
		if err := repo.Create(ctx, req); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
		if id != "b" {
			req.State = domain.StateRunning
			if err := repo.Update(ctx, req); err != nil {
				t.Fatalf("update %s: %v", id, err)
			}
		}
	}
	running, err := repo.ListByState(ctx, domain.StateRunning, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(running) != 2 {
		t.Fatalf("running = %d, want 2", len(running))
	}
	page, _ := repo.ListByState(ctx, domain.StateRunning, 1, 1)
	if len(page) != 1 {
		t.Fatalf("page size = %d, want 1", len(page))
	}
	empty, _ := repo.ListByState(ctx, domain.StateRunning, 10, 5)
	if len(empty) != 0 {
		t.Fatalf("offset past end should be empty")
	}
}

func TestMemoryAuditRepositoryIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAuditRepository()
	payload := map[string]any{"status": "User initiated the request"}
	first := &domain.AuditRecord{RequestID: "r1", Event: domain.EventSubmitted, NewState: domain.StateCreated, Payload: payload}
	if err := repo.Append(ctx, first); err != nil {
		t.Fatalf("append: %v", err)
	}
	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Fatalf("append should assign id and timestamp")
	}
	payload["status"] = "mutated"
	_ = repo.Append(ctx, &domain.AuditRecord{RequestID: "r1", Event: domain.EventTicketCreated, PriorState: domain.StateCreated, NewState: domain.StatePendingApproval})
	_ = repo.Append(ctx, &domain.AuditRecord{RequestID: "r2", Event: domain.EventSubmitted, NewState: domain.StateCreated})

	records, err := repo.ListByRequest(ctx, "r1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Event != domain.EventSubmitted || records[1].Event != domain.EventTicketCreated {
		t.Fatalf("records out of order: %v, %v", records[0].Event, records[1].Event)
	}
	if records[0].Payload["status"] != "User initiated the request" {
		t.Fatalf("stored payload must not alias the caller's map")
	}
}
