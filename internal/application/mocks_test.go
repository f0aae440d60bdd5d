package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ministry-platform/service-enrollment/internal/adapter"
	"github.com/ministry-platform/service-enrollment/internal/domain"
	"github.com/ministry-platform/service-enrollment/internal/domain/program"
	"github.com/ministry-platform/service-enrollment/internal/domain/promocode"
	"github.com/ministry-platform/service-enrollment/internal/domain/purchase"
	"github.com/ministry-platform/service-enrollment/internal/events"
)

// --- purchase repository fake ---

type fakePurchaseRepo struct {
	mu        sync.Mutex
	purchases map[uuid.UUID]*purchase.Purchase
	saveErr   error
	updateErr error
	deleted   []uuid.UUID
}

func newFakePurchaseRepo() *fakePurchaseRepo {
	return &fakePurchaseRepo{purchases: make(map[uuid.UUID]*purchase.Purchase)}
}

func (r *fakePurchaseRepo) FindByID(ctx context.Context, id uuid.UUID) (*purchase.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[id]
	if !ok {
		return nil, domain.NewNotFoundError("Purchase", id.String())
	}
	return p, nil
}

func (r *fakePurchaseRepo) FindBySessionID(ctx context.Context, sessionID string) (*purchase.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.purchases {
		if p.SessionID() == sessionID {
			return p, nil
		}
	}
	return nil, domain.NewNotFoundError("Purchase", sessionID)
}

func (r *fakePurchaseRepo) FindPendingByUserAndProgram(ctx context.Context, userID, programID uuid.UUID) (*purchase.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.purchases {
		if p.UserID() == userID && p.ProgramID() == programID && p.Status() == purchase.StatusPending {
			return p, nil
		}
	}
	return nil, domain.NewNotFoundError("Purchase", userID.String())
}

func (r *fakePurchaseRepo) HasCompleted(ctx context.Context, userID, programID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.purchases {
		if p.UserID() == userID && p.ProgramID() == programID && p.Status() == purchase.StatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakePurchaseRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*purchase.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*purchase.Purchase
	for _, p := range r.purchases {
		if p.UserID() == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePurchaseRepo) ListAll(ctx context.Context, page, limit int) ([]*purchase.Purchase, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*purchase.Purchase
	for _, p := range r.purchases {
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (r *fakePurchaseRepo) GetRevenueStats(ctx context.Context) (int64, map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var revenue int64
	counts := make(map[string]int64)
	for _, p := range r.purchases {
		counts[string(p.Status())]++
		if p.Status() == purchase.StatusCompleted {
			revenue += p.FinalPriceCents()
		}
	}
	return revenue, counts, nil
}

func (r *fakePurchaseRepo) Save(ctx context.Context, p *purchase.Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.purchases[p.ID()] = p
	return nil
}

func (r *fakePurchaseRepo) Update(ctx context.Context, p *purchase.Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.purchases[p.ID()]; !ok {
		return domain.NewNotFoundError("Purchase", p.ID().String())
	}
	r.purchases[p.ID()] = p
	return nil
}

func (r *fakePurchaseRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.purchases[id]; !ok {
		return domain.NewNotFoundError("Purchase", id.String())
	}
	delete(r.purchases, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakePurchaseRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.purchases)
}

// --- program repository fake ---

type fakeProgramRepo struct {
	mu       sync.Mutex
	programs map[uuid.UUID]*program.Program
	counts   map[uuid.UUID]int
	reserved []uuid.UUID
	released []uuid.UUID
}

func newFakeProgramRepo(progs ...*program.Program) *fakeProgramRepo {
	r := &fakeProgramRepo{
		programs: make(map[uuid.UUID]*program.Program),
		counts:   make(map[uuid.UUID]int),
	}
	for _, p := range progs {
		r.programs[p.ID()] = p
		r.counts[p.ID()] = p.ClassRepCount()
	}
	return r
}

func (r *fakeProgramRepo) FindByID(ctx context.Context, id uuid.UUID) (*program.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.programs[id]
	if !ok {
		return nil, domain.NewNotFoundError("Program", id.String())
	}
	return p, nil
}

func (r *fakeProgramRepo) ReserveClassRepSlot(ctx context.Context, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.programs[id]
	if !ok {
		return 0, domain.NewNotFoundError("Program", id.String())
	}
	if p.ClassRepLimit() <= 0 || r.counts[id] >= p.ClassRepLimit() {
		return 0, domain.NewClassRepSlotsFullError(id.String())
	}
	r.counts[id]++
	r.reserved = append(r.reserved, id)
	return r.counts[id], nil
}

func (r *fakeProgramRepo) ReleaseClassRepSlot(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts[id] > 0 {
		r.counts[id]--
	}
	r.released = append(r.released, id)
	return nil
}

func (r *fakeProgramRepo) Save(ctx context.Context, p *program.Program) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[p.ID()] = p
	return nil
}

func (r *fakeProgramRepo) slotCount(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[id]
}

// --- promo code repository fake ---

type fakePromoRepo struct {
	mu    sync.Mutex
	codes map[uuid.UUID]*promocode.PromoCode
}

func newFakePromoRepo(codes ...*promocode.PromoCode) *fakePromoRepo {
	r := &fakePromoRepo{codes: make(map[uuid.UUID]*promocode.PromoCode)}
	for _, c := range codes {
		r.codes[c.ID()] = c
	}
	return r
}

func (r *fakePromoRepo) Save(ctx context.Context, p *promocode.PromoCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[p.ID()] = p
	return nil
}

func (r *fakePromoRepo) Update(ctx context.Context, p *promocode.PromoCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codes[p.ID()]; !ok {
		return domain.NewNotFoundError("PromoCode", p.ID().String())
	}
	r.codes[p.ID()] = p
	return nil
}

func (r *fakePromoRepo) FindByCode(ctx context.Context, code string) (*promocode.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if c.Code() == code {
			return c, nil
		}
	}
	return nil, domain.NewInvalidPromoCodeError("promo code not found")
}

func (r *fakePromoRepo) FindByID(ctx context.Context, id uuid.UUID) (*promocode.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[id]
	if !ok {
		return nil, domain.NewNotFoundError("PromoCode", id.String())
	}
	return c, nil
}

func (r *fakePromoRepo) FindBySourcePurchase(ctx context.Context, purchaseID uuid.UUID) (*promocode.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if c.SourcePurchaseID() != nil && *c.SourcePurchaseID() == purchaseID {
			return c, nil
		}
	}
	return nil, domain.NewNotFoundError("PromoCode", purchaseID.String())
}

func (r *fakePromoRepo) ListActive(ctx context.Context) ([]*promocode.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*promocode.PromoCode
	for _, c := range r.codes {
		if c.IsActive() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakePromoRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codes[id]; !ok {
		return domain.NewNotFoundError("PromoCode", id.String())
	}
	delete(r.codes, id)
	return nil
}

func (r *fakePromoRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes)
}

// --- payment processor fake ---

type issuedRefund struct {
	PaymentIntentID string
	AmountCents     int64
	Metadata        map[string]string
}

type fakeProcessor struct {
	mu            sync.Mutex
	sessionSeq    int
	sessions      []adapter.CheckoutSessionInput
	expired       []string
	refunds       []issuedRefund
	sessionErr    error
	refundErr     error
	intentSummary string
	intentErr     error
}

func (f *fakeProcessor) CreateCheckoutSession(ctx context.Context, in adapter.CheckoutSessionInput) (*adapter.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	f.sessionSeq++
	f.sessions = append(f.sessions, in)
	id := fmt.Sprintf("cs_test_%d", f.sessionSeq)
	return &adapter.CheckoutSession{ID: id, URL: "https://checkout.example.com/" + id}, nil
}

func (f *fakeProcessor) RetrievePaymentIntent(ctx context.Context, id string) (*adapter.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.intentErr != nil {
		return nil, f.intentErr
	}
	return &adapter.PaymentIntent{ID: id, MethodSummary: f.intentSummary}, nil
}

func (f *fakeProcessor) ConstructWebhookEvent(payload []byte, signature string) (*adapter.Event, error) {
	return nil, fmt.Errorf("not supported in unit tests")
}

func (f *fakeProcessor) IssueRefund(ctx context.Context, paymentIntentID string, amountCents int64, metadata map[string]string) (*adapter.Refund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	f.refunds = append(f.refunds, issuedRefund{PaymentIntentID: paymentIntentID, AmountCents: amountCents, Metadata: metadata})
	return &adapter.Refund{ID: fmt.Sprintf("re_test_%d", len(f.refunds))}, nil
}

func (f *fakeProcessor) ExpireSession(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, id)
	return nil
}

// --- event publisher fake ---

type publishedEvent struct {
	Topic string
	Event events.CloudEvent
}

type capturingPublisher struct {
	mu        sync.Mutex
	published []publishedEvent
}

func (c *capturingPublisher) PublishEvent(ctx context.Context, topic string, ce events.CloudEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, publishedEvent{Topic: topic, Event: ce})
	return nil
}

func (c *capturingPublisher) countOfType(eventType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.published {
		if e.Event.Type == eventType {
			n++
		}
	}
	return n
}

func (c *capturingPublisher) ofType(eventType string) []publishedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []publishedEvent
	for _, e := range c.published {
		if e.Event.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
