package program

import (
	"time"

	"github.com/google/uuid"
)

// Program is the collaborator record owning the class-rep capacity counter.
// This service owns classRepCount mutations; the rest of the record belongs
// to the events service.
type Program struct {
	id                  uuid.UUID
	title               string
	priceCents          int64
	classRepLimit       int
	classRepCount       *int
	classRepDiscount    int64
	earlyBirdDiscount   int64
	earlyBirdDeadline   *time.Time
	createdAt           time.Time
	updatedAt           time.Time
}

// New creates a Program. Used by seeds and tests; production records are
// created by the events service.
func New(title string, priceCents int64, classRepLimit int, classRepDiscount, earlyBirdDiscount int64, earlyBirdDeadline *time.Time) *Program {
	now := time.Now().UTC()
	return &Program{
		id:                uuid.New(),
		title:             title,
		priceCents:        priceCents,
		classRepLimit:     classRepLimit,
		classRepDiscount:  classRepDiscount,
		earlyBirdDiscount: earlyBirdDiscount,
		earlyBirdDeadline: earlyBirdDeadline,
		createdAt:         now,
		updatedAt:         now,
	}
}

// Reconstitute rebuilds a Program from persisted data.
func Reconstitute(id uuid.UUID, title string, priceCents int64, classRepLimit int, classRepCount *int, classRepDiscount, earlyBirdDiscount int64, earlyBirdDeadline *time.Time, createdAt, updatedAt time.Time) *Program {
	return &Program{
		id:                id,
		title:             title,
		priceCents:        priceCents,
		classRepLimit:     classRepLimit,
		classRepCount:     classRepCount,
		classRepDiscount:  classRepDiscount,
		earlyBirdDiscount: earlyBirdDiscount,
		earlyBirdDeadline: earlyBirdDeadline,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

func (p *Program) ID() uuid.UUID                { return p.id }
func (p *Program) Title() string                { return p.title }
func (p *Program) PriceCents() int64            { return p.priceCents }
func (p *Program) ClassRepLimit() int           { return p.classRepLimit }
func (p *Program) ClassRepDiscount() int64      { return p.classRepDiscount }
func (p *Program) EarlyBirdDiscount() int64     { return p.earlyBirdDiscount }
func (p *Program) EarlyBirdDeadline() *time.Time { return p.earlyBirdDeadline }
func (p *Program) CreatedAt() time.Time         { return p.createdAt }
func (p *Program) UpdatedAt() time.Time         { return p.updatedAt }

// ClassRepCount treats an absent counter (legacy records) as 0.
func (p *Program) ClassRepCount() int {
	if p.classRepCount == nil {
		return 0
	}
	return *p.classRepCount
}

// IsFree reports whether the program requires no payment at all.
func (p *Program) IsFree() bool { return p.priceCents <= 0 }

// HasBoundedClassRepCapacity reports whether class-rep slots are limited.
// A zero or absent limit means the option is uncapped.
func (p *Program) HasBoundedClassRepCapacity() bool { return p.classRepLimit > 0 }
