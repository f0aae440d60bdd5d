package program

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence operations for programs, including the
// atomic slot-reservation primitives.
//
// ReserveClassRepSlot must be a single conditional update against the store,
// not a read-then-write: manual admin edits and legacy data can touch the
// counter outside any lock this service holds, so the capacity invariant has
// to be enforced at the storage layer.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Program, error)

	// ReserveClassRepSlot atomically increments the class-rep counter if it
	// is below the limit (or absent). Returns the updated counter, or a
	// class_rep_slots_full error when no slot is available.
	ReserveClassRepSlot(ctx context.Context, id uuid.UUID) (int, error)

	// ReleaseClassRepSlot atomically decrements the counter, flooring at 0.
	// Never validated against the limit.
	ReleaseClassRepSlot(ctx context.Context, id uuid.UUID) error

	// Save persists a program (seeds and tests).
	Save(ctx context.Context, p *Program) error
}
