package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ministry-platform/service-enrollment/internal/domain"
	"github.com/ministry-platform/service-enrollment/internal/domain/program"
)

// ProgramModel is the GORM persistence model for the programs table. The
// table is owned by the events service; this service reads pricing fields
// and mutates only the class-rep counter.
type ProgramModel struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Title             string     `gorm:"type:varchar(255);not null"`
	PriceCents        int64      `gorm:"not null;default:0"`
	ClassRepLimit     int        `gorm:"not null;default:0"`
	ClassRepCount     *int       `gorm:""`
	ClassRepDiscount  int64      `gorm:"not null;default:0"`
	EarlyBirdDiscount int64      `gorm:"not null;default:0"`
	EarlyBirdDeadline *time.Time `gorm:"type:timestamptz"`
	CreatedAt         time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt         time.Time  `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName specifies the table name for GORM.
func (ProgramModel) TableName() string {
	return "programs"
}

// ProgramRepositoryImpl is the GORM-based implementation of
// program.Repository.
type ProgramRepositoryImpl struct {
	db *gorm.DB
}

// NewProgramRepository creates a new GORM-based program repository.
func NewProgramRepository(db *gorm.DB) *ProgramRepositoryImpl {
	return &ProgramRepositoryImpl{db: db}
}

// FindByID retrieves a program by its unique ID.
func (r *ProgramRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*program.Program, error) {
	var model ProgramModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Program", id.String())
		}
		return nil, err
	}
	return programToDomain(&model), nil
}

// ReserveClassRepSlot atomically claims one class-rep slot. The guard runs
// inside the UPDATE itself: a NULL counter counts as 0, and the row only
// changes while the counter is below the limit, so concurrent reservations
// and out-of-band counter edits can never push it past capacity.
func (r *ProgramRepositoryImpl) ReserveClassRepSlot(ctx context.Context, id uuid.UUID) (int, error) {
	var updated []int
	err := r.db.WithContext(ctx).Raw(`
		UPDATE programs
		SET class_rep_count = COALESCE(class_rep_count, 0) + 1,
		    updated_at = now()
		WHERE id = ?
		  AND class_rep_limit > 0
		  AND COALESCE(class_rep_count, 0) < class_rep_limit
		RETURNING class_rep_count`, id).
		Scan(&updated).Error
	if err != nil {
		return 0, err
	}
	if len(updated) == 0 {
		return 0, domain.NewClassRepSlotsFullError(id.String())
	}
	return updated[0], nil
}

// ReleaseClassRepSlot atomically returns one class-rep slot, flooring at 0.
func (r *ProgramRepositoryImpl) ReleaseClassRepSlot(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE programs
		SET class_rep_count = GREATEST(COALESCE(class_rep_count, 0) - 1, 0),
		    updated_at = now()
		WHERE id = ?`, id).Error
}

// Save persists a program record (seeds and tests).
func (r *ProgramRepositoryImpl) Save(ctx context.Context, p *program.Program) error {
	return r.db.WithContext(ctx).Create(programToModel(p)).Error
}

// programToDomain maps a ProgramModel to the domain Program.
func programToDomain(model *ProgramModel) *program.Program {
	return program.Reconstitute(
		model.ID,
		model.Title,
		model.PriceCents,
		model.ClassRepLimit,
		model.ClassRepCount,
		model.ClassRepDiscount,
		model.EarlyBirdDiscount,
		model.EarlyBirdDeadline,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

// programToModel maps a domain Program to a ProgramModel.
func programToModel(p *program.Program) *ProgramModel {
	count := p.ClassRepCount()
	return &ProgramModel{
		ID:                p.ID(),
		Title:             p.Title(),
		PriceCents:        p.PriceCents(),
		ClassRepLimit:     p.ClassRepLimit(),
		ClassRepCount:     &count,
		ClassRepDiscount:  p.ClassRepDiscount(),
		EarlyBirdDiscount: p.EarlyBirdDiscount(),
		EarlyBirdDeadline: p.EarlyBirdDeadline(),
		CreatedAt:         p.CreatedAt(),
		UpdatedAt:         p.UpdatedAt(),
	}
}
