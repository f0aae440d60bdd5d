package purchase

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for Purchase aggregates.
type Repository interface {
	// FindByID retrieves a purchase by its unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Purchase, error)

	// FindBySessionID retrieves a purchase by its external checkout session
	// id. Used for legacy webhook events lacking purchase-id metadata.
	FindBySessionID(ctx context.Context, sessionID string) (*Purchase, error)

	// FindPendingByUserAndProgram returns the user's pending purchase for a
	// program, or a not-found error.
	FindPendingByUserAndProgram(ctx context.Context, userID, programID uuid.UUID) (*Purchase, error)

	// HasCompleted reports whether the user already holds a completed
	// purchase for the program.
	HasCompleted(ctx context.Context, userID, programID uuid.UUID) (bool, error)

	// ListByUser returns all of a user's purchases, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Purchase, error)

	// ListAll retrieves all purchases with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Purchase, int64, error)

	// GetRevenueStats returns revenue and per-status counts (admin).
	GetRevenueStats(ctx context.Context) (totalRevenueCents int64, countByStatus map[string]int64, err error)

	// Save persists a new purchase aggregate.
	Save(ctx context.Context, p *Purchase) error

	// Update persists changes to an existing purchase with optimistic locking.
	Update(ctx context.Context, p *Purchase) error

	// Delete removes a purchase. Only pending purchases may be deleted.
	Delete(ctx context.Context, id uuid.UUID) error
}
