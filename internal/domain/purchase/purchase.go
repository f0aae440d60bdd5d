package purchase

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/ministry-platform/service-enrollment/internal/domain"
)

// Status represents the state of a purchase.
type Status string

const (
	StatusPending          Status = "pending"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusRefundProcessing Status = "refund_processing"
	StatusRefunded         Status = "refunded"
	StatusRefundFailed     Status = "refund_failed"
)

// transitions is the single definition of the purchase state machine. Every
// handler path (checkout, webhook completion, payment failure, refund
// success/failure/cancellation) goes through CanTransition, so an illegal
// transition is rejected centrally instead of being permitted by omission.
var transitions = map[Status][]Status{
	StatusPending:          {StatusCompleted, StatusFailed},
	StatusCompleted:        {StatusRefundProcessing},
	StatusRefundProcessing: {StatusRefunded, StatusRefundFailed, StatusCompleted},
	StatusRefundFailed:     {StatusRefundProcessing},
	StatusRefunded:         {},
	StatusFailed:           {},
}

// CanTransition reports whether from -> to is a legal purchase transition.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// BillingSnapshot captures the payer's details at the time of payment.
type BillingSnapshot struct {
	Name       string
	Email      string
	Address    string
	City       string
	Country    string
	PostalCode string
}

// BundleCode holds the metadata of a bundle promo code issued on completion.
type BundleCode struct {
	Code          string
	DiscountCents int64
	ExpiresAt     time.Time
}

// Purchase is the aggregate root for one enrollment attempt.
type Purchase struct {
	id                   uuid.UUID
	userID               uuid.UUID
	programID            uuid.UUID
	orderNumber          string
	fullPriceCents       int64
	classRepDiscount     int64
	earlyBirdDiscount    int64
	promoCode            string
	promoDiscountCents   int64
	promoDiscountPercent float64
	finalPriceCents      int64
	isClassRep           bool
	isEarlyBird          bool
	sessionID            string
	paymentIntentID      string
	refundID             string
	status               Status
	billing              *BillingSnapshot
	paymentMethodSummary string
	purchaseDate         *time.Time
	refundInitiatedAt    *time.Time
	refundedAt           *time.Time
	refundFailureReason  string
	bundleCode           *BundleCode
	version              int64
	createdAt            time.Time
	updatedAt            time.Time
}

// Pricing carries the price breakdown used to create a purchase.
type Pricing struct {
	FullPriceCents       int64
	ClassRepDiscount     int64
	EarlyBirdDiscount    int64
	PromoCode            string
	PromoDiscountCents   int64
	PromoDiscountPercent float64
	FinalPriceCents      int64
}

// New creates a pending purchase under a pre-generated id. The id is chosen
// by the caller before any record exists so the checkout flow and the webhook
// handler can serialize on the same lock key.
func New(id, userID, programID uuid.UUID, pricing Pricing, isClassRep, isEarlyBird bool) *Purchase {
	now := time.Now().UTC()
	return &Purchase{
		id:                   id,
		userID:               userID,
		programID:            programID,
		orderNumber:          NewOrderNumber(now),
		fullPriceCents:       pricing.FullPriceCents,
		classRepDiscount:     pricing.ClassRepDiscount,
		earlyBirdDiscount:    pricing.EarlyBirdDiscount,
		promoCode:            pricing.PromoCode,
		promoDiscountCents:   pricing.PromoDiscountCents,
		promoDiscountPercent: pricing.PromoDiscountPercent,
		finalPriceCents:      pricing.FinalPriceCents,
		isClassRep:           isClassRep,
		isEarlyBird:          isEarlyBird,
		status:               StatusPending,
		version:              1,
		createdAt:            now,
		updatedAt:            now,
	}
}

// NewCompleted creates a zero-cost purchase directly in the completed state.
// No checkout session is ever attached on this path.
func NewCompleted(id, userID, programID uuid.UUID, pricing Pricing, isClassRep, isEarlyBird bool) *Purchase {
	p := New(id, userID, programID, pricing, isClassRep, isEarlyBird)
	now := time.Now().UTC()
	p.status = StatusCompleted
	p.purchaseDate = &now
	return p
}

// NewOrderNumber generates a human-readable unique order number.
func NewOrderNumber(now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		n = big.NewInt(now.UnixNano() % 1_000_000)
	}
	return fmt.Sprintf("ENR-%s-%06d", now.Format("20060102"), n.Int64())
}

// --- Getters ---

func (p *Purchase) ID() uuid.UUID                 { return p.id }
func (p *Purchase) UserID() uuid.UUID             { return p.userID }
func (p *Purchase) ProgramID() uuid.UUID          { return p.programID }
func (p *Purchase) OrderNumber() string           { return p.orderNumber }
func (p *Purchase) FullPriceCents() int64         { return p.fullPriceCents }
func (p *Purchase) ClassRepDiscount() int64       { return p.classRepDiscount }
func (p *Purchase) EarlyBirdDiscount() int64      { return p.earlyBirdDiscount }
func (p *Purchase) PromoCode() string             { return p.promoCode }
func (p *Purchase) PromoDiscountCents() int64     { return p.promoDiscountCents }
func (p *Purchase) PromoDiscountPercent() float64 { return p.promoDiscountPercent }
func (p *Purchase) FinalPriceCents() int64        { return p.finalPriceCents }
func (p *Purchase) IsClassRep() bool              { return p.isClassRep }
func (p *Purchase) IsEarlyBird() bool             { return p.isEarlyBird }
func (p *Purchase) SessionID() string             { return p.sessionID }
func (p *Purchase) PaymentIntentID() string       { return p.paymentIntentID }
func (p *Purchase) RefundID() string              { return p.refundID }
func (p *Purchase) Status() Status                { return p.status }
func (p *Purchase) Billing() *BillingSnapshot     { return p.billing }
func (p *Purchase) PaymentMethodSummary() string  { return p.paymentMethodSummary }
func (p *Purchase) PurchaseDate() *time.Time      { return p.purchaseDate }
func (p *Purchase) RefundInitiatedAt() *time.Time { return p.refundInitiatedAt }
func (p *Purchase) RefundedAt() *time.Time        { return p.refundedAt }
func (p *Purchase) RefundFailureReason() string   { return p.refundFailureReason }
func (p *Purchase) Bundle() *BundleCode           { return p.bundleCode }
func (p *Purchase) Version() int64                { return p.version }
func (p *Purchase) CreatedAt() time.Time          { return p.createdAt }
func (p *Purchase) UpdatedAt() time.Time          { return p.updatedAt }

// --- Behavior / state transitions ---

func (p *Purchase) transition(to Status) error {
	if !CanTransition(p.status, to) {
		return domain.NewInvalidStateError(string(p.status), string(to))
	}
	p.status = to
	p.updatedAt = time.Now().UTC()
	return nil
}

// AttachSession stores the external checkout session id on a pending
// purchase.
func (p *Purchase) AttachSession(sessionID string) error {
	if p.status != StatusPending {
		return domain.NewInvalidStateError(string(p.status), string(StatusPending))
	}
	p.sessionID = sessionID
	p.updatedAt = time.Now().UTC()
	return nil
}

// Complete transitions pending -> completed after payment capture, recording
// the billing snapshot and payment-method summary. Billing details become
// immutable afterwards except through refund transitions.
func (p *Purchase) Complete(billing BillingSnapshot, paymentIntentID, methodSummary string) error {
	if err := p.transition(StatusCompleted); err != nil {
		return err
	}
	now := time.Now().UTC()
	p.billing = &billing
	p.paymentIntentID = paymentIntentID
	p.paymentMethodSummary = methodSummary
	p.purchaseDate = &now
	return nil
}

// MarkFailed transitions pending -> failed on a payment-failure event.
func (p *Purchase) MarkFailed() error {
	return p.transition(StatusFailed)
}

// BeginRefund transitions completed -> refund_processing (or retries from
// refund_failed) and records the external refund id.
func (p *Purchase) BeginRefund(refundID string) error {
	if err := p.transition(StatusRefundProcessing); err != nil {
		return err
	}
	now := time.Now().UTC()
	p.refundID = refundID
	p.refundInitiatedAt = &now
	p.refundFailureReason = ""
	return nil
}

// CompleteRefund transitions refund_processing -> refunded.
func (p *Purchase) CompleteRefund() error {
	if err := p.transition(StatusRefunded); err != nil {
		return err
	}
	now := time.Now().UTC()
	p.refundedAt = &now
	return nil
}

// FailRefund transitions refund_processing -> refund_failed and keeps the
// processor's failure reason.
func (p *Purchase) FailRefund(reason string) error {
	if err := p.transition(StatusRefundFailed); err != nil {
		return err
	}
	p.refundFailureReason = reason
	return nil
}

// CancelRefund reverts refund_processing -> completed. The processor rarely
// emits this; callers alert administrators when it happens.
func (p *Purchase) CancelRefund() error {
	if p.status != StatusRefundProcessing {
		return domain.NewInvalidStateError(string(p.status), string(StatusCompleted))
	}
	if err := p.transition(StatusCompleted); err != nil {
		return err
	}
	p.refundID = ""
	p.refundInitiatedAt = nil
	return nil
}

// EligibleForRefund reports whether a completed purchase is still inside the
// refund window. The boundary is inclusive: a purchase made exactly window
// ago is still eligible.
func (p *Purchase) EligibleForRefund(now time.Time, window time.Duration) bool {
	if p.status != StatusCompleted && p.status != StatusRefundFailed {
		return false
	}
	if p.purchaseDate == nil {
		return false
	}
	return now.Sub(*p.purchaseDate) <= window
}

// AttachBundleCode records the bundle promo code generated on completion.
func (p *Purchase) AttachBundleCode(code string, discountCents int64, expiresAt time.Time) {
	p.bundleCode = &BundleCode{Code: code, DiscountCents: discountCents, ExpiresAt: expiresAt}
	p.updatedAt = time.Now().UTC()
}

// ClearBundleCode removes the bundle metadata after the code is deleted.
func (p *Purchase) ClearBundleCode() {
	p.bundleCode = nil
	p.updatedAt = time.Now().UTC()
}

// IncrementVersion bumps the version for optimistic locking.
func (p *Purchase) IncrementVersion() {
	p.version++
	p.updatedAt = time.Now().UTC()
}

// Reconstitute rebuilds a Purchase from persisted data.
func Reconstitute(
	id, userID, programID uuid.UUID,
	orderNumber string,
	pricing Pricing,
	isClassRep, isEarlyBird bool,
	sessionID, paymentIntentID, refundID string,
	status Status,
	billing *BillingSnapshot,
	paymentMethodSummary string,
	purchaseDate, refundInitiatedAt, refundedAt *time.Time,
	refundFailureReason string,
	bundleCode *BundleCode,
	version int64,
	createdAt, updatedAt time.Time,
) *Purchase {
	return &Purchase{
		id:                   id,
		userID:               userID,
		programID:            programID,
		orderNumber:          orderNumber,
		fullPriceCents:       pricing.FullPriceCents,
		classRepDiscount:     pricing.ClassRepDiscount,
		earlyBirdDiscount:    pricing.EarlyBirdDiscount,
		promoCode:            pricing.PromoCode,
		promoDiscountCents:   pricing.PromoDiscountCents,
		promoDiscountPercent: pricing.PromoDiscountPercent,
		finalPriceCents:      pricing.FinalPriceCents,
		isClassRep:           isClassRep,
		isEarlyBird:          isEarlyBird,
		sessionID:            sessionID,
		paymentIntentID:      paymentIntentID,
		refundID:             refundID,
		status:               status,
		billing:              billing,
		paymentMethodSummary: paymentMethodSummary,
		purchaseDate:         purchaseDate,
		refundInitiatedAt:    refundInitiatedAt,
		refundedAt:           refundedAt,
		refundFailureReason:  refundFailureReason,
		bundleCode:           bundleCode,
		version:              version,
		createdAt:            createdAt,
		updatedAt:            updatedAt,
	}
}
