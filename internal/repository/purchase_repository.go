// Package repository holds the GORM persistence layer: one model, mapper,
// and repository implementation per aggregate.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ministry-platform/service-enrollment/internal/domain"
	"github.com/ministry-platform/service-enrollment/internal/domain/purchase"
)

// PurchaseModel is the GORM persistence model for the purchases table.
type PurchaseModel struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID               uuid.UUID  `gorm:"type:uuid;not null;index:idx_purchases_user_program"`
	ProgramID            uuid.UUID  `gorm:"type:uuid;not null;index:idx_purchases_user_program"`
	OrderNumber          string     `gorm:"type:varchar(32);uniqueIndex;not null"`
	FullPriceCents       int64      `gorm:"not null"`
	ClassRepDiscount     int64      `gorm:"not null;default:0"`
	EarlyBirdDiscount    int64      `gorm:"not null;default:0"`
	PromoCode            string     `gorm:"type:varchar(64)"`
	PromoDiscountCents   int64      `gorm:"not null;default:0"`
	PromoDiscountPercent float64    `gorm:"not null;default:0"`
	FinalPriceCents      int64      `gorm:"not null"`
	IsClassRep           bool       `gorm:"not null;default:false"`
	IsEarlyBird          bool       `gorm:"not null;default:false"`
	SessionID            string     `gorm:"type:varchar(255);index"`
	PaymentIntentID      string     `gorm:"type:varchar(255)"`
	RefundID             string     `gorm:"type:varchar(255)"`
	Status               string     `gorm:"type:varchar(20);not null;default:'pending';index"`
	BillingName          string     `gorm:"type:varchar(255)"`
	BillingEmail         string     `gorm:"type:varchar(255)"`
	BillingAddress       string     `gorm:"type:varchar(255)"`
	BillingCity          string     `gorm:"type:varchar(128)"`
	BillingCountry       string     `gorm:"type:varchar(2)"`
	BillingPostalCode    string     `gorm:"type:varchar(32)"`
	PaymentMethodSummary string     `gorm:"type:varchar(64)"`
	PurchaseDate         *time.Time `gorm:"type:timestamptz"`
	RefundInitiatedAt    *time.Time `gorm:"type:timestamptz"`
	RefundedAt           *time.Time `gorm:"type:timestamptz"`
	RefundFailureReason  string     `gorm:"type:text"`
	BundleCode           string     `gorm:"type:varchar(32)"`
	BundleDiscountCents  int64      `gorm:"not null;default:0"`
	BundleExpiresAt      *time.Time `gorm:"type:timestamptz"`
	Version              int64      `gorm:"not null;default:1"`
	CreatedAt            time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt            time.Time  `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName specifies the table name for GORM.
func (PurchaseModel) TableName() string {
	return "purchases"
}

// PurchaseRepositoryImpl is the GORM-based implementation of
// purchase.Repository.
type PurchaseRepositoryImpl struct {
	db *gorm.DB
}

// NewPurchaseRepository creates a new GORM-based purchase repository.
func NewPurchaseRepository(db *gorm.DB) *PurchaseRepositoryImpl {
	return &PurchaseRepositoryImpl{db: db}
}

// FindByID retrieves a purchase by its unique ID.
func (r *PurchaseRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*purchase.Purchase, error) {
	var model PurchaseModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Purchase", id.String())
		}
		return nil, err
	}
	return purchaseToDomain(&model), nil
}

// FindBySessionID retrieves a purchase by its checkout session id.
func (r *PurchaseRepositoryImpl) FindBySessionID(ctx context.Context, sessionID string) (*purchase.Purchase, error) {
	var model PurchaseModel
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Purchase", sessionID)
		}
		return nil, err
	}
	return purchaseToDomain(&model), nil
}

// FindPendingByUserAndProgram returns the user's pending purchase for a
// program.
func (r *PurchaseRepositoryImpl) FindPendingByUserAndProgram(ctx context.Context, userID, programID uuid.UUID) (*purchase.Purchase, error) {
	var model PurchaseModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND program_id = ? AND status = ?", userID, programID, string(purchase.StatusPending)).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Purchase", userID.String())
		}
		return nil, err
	}
	return purchaseToDomain(&model), nil
}

// HasCompleted reports whether the user already completed a purchase for the
// program.
func (r *PurchaseRepositoryImpl) HasCompleted(ctx context.Context, userID, programID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&PurchaseModel{}).
		Where("user_id = ? AND program_id = ? AND status = ?", userID, programID, string(purchase.StatusCompleted)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByUser returns all of a user's purchases, newest first.
func (r *PurchaseRepositoryImpl) ListByUser(ctx context.Context, userID uuid.UUID) ([]*purchase.Purchase, error) {
	var models []PurchaseModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	purchases := make([]*purchase.Purchase, len(models))
	for i := range models {
		purchases[i] = purchaseToDomain(&models[i])
	}
	return purchases, nil
}

// Save persists a new purchase aggregate.
func (r *PurchaseRepositoryImpl) Save(ctx context.Context, p *purchase.Purchase) error {
	model := purchaseToModel(p)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists changes to an existing purchase with optimistic locking.
func (r *PurchaseRepositoryImpl) Update(ctx context.Context, p *purchase.Purchase) error {
	model := purchaseToModel(p)
	previousVersion := p.Version() - 1

	result := r.db.WithContext(ctx).
		Model(&PurchaseModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("purchase was modified by another transaction")
	}
	return nil
}

// Delete removes a purchase record. Restricted to pending rows so completed
// history can never be dropped by a stray call.
func (r *PurchaseRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, string(purchase.StatusPending)).
		Delete(&PurchaseModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Purchase", id.String())
	}
	return nil
}

// ListAll retrieves all purchases with pagination (admin).
func (r *PurchaseRepositoryImpl) ListAll(ctx context.Context, page, limit int) ([]*purchase.Purchase, int64, error) {
	var total int64
	r.db.WithContext(ctx).Model(&PurchaseModel{}).Count(&total)

	var models []PurchaseModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}

	purchases := make([]*purchase.Purchase, len(models))
	for i := range models {
		purchases[i] = purchaseToDomain(&models[i])
	}
	return purchases, total, nil
}

// GetRevenueStats returns revenue and per-status counts (admin).
func (r *PurchaseRepositoryImpl) GetRevenueStats(ctx context.Context) (int64, map[string]int64, error) {
	var totalRevenue int64
	r.db.WithContext(ctx).Model(&PurchaseModel{}).
		Where("status = ?", string(purchase.StatusCompleted)).
		Select("COALESCE(SUM(final_price_cents), 0)").
		Scan(&totalRevenue)

	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&PurchaseModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return 0, nil, err
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return totalRevenue, counts, nil
}

// purchaseToDomain maps a PurchaseModel to the domain Purchase aggregate.
func purchaseToDomain(model *PurchaseModel) *purchase.Purchase {
	var billing *purchase.BillingSnapshot
	if model.BillingEmail != "" || model.BillingName != "" {
		billing = &purchase.BillingSnapshot{
			Name:       model.BillingName,
			Email:      model.BillingEmail,
			Address:    model.BillingAddress,
			City:       model.BillingCity,
			Country:    model.BillingCountry,
			PostalCode: model.BillingPostalCode,
		}
	}

	var bundle *purchase.BundleCode
	if model.BundleCode != "" && model.BundleExpiresAt != nil {
		bundle = &purchase.BundleCode{
			Code:          model.BundleCode,
			DiscountCents: model.BundleDiscountCents,
			ExpiresAt:     *model.BundleExpiresAt,
		}
	}

	return purchase.Reconstitute(
		model.ID,
		model.UserID,
		model.ProgramID,
		model.OrderNumber,
		purchase.Pricing{
			FullPriceCents:       model.FullPriceCents,
			ClassRepDiscount:     model.ClassRepDiscount,
			EarlyBirdDiscount:    model.EarlyBirdDiscount,
			PromoCode:            model.PromoCode,
			PromoDiscountCents:   model.PromoDiscountCents,
			PromoDiscountPercent: model.PromoDiscountPercent,
			FinalPriceCents:      model.FinalPriceCents,
		},
		model.IsClassRep,
		model.IsEarlyBird,
		model.SessionID,
		model.PaymentIntentID,
		model.RefundID,
		purchase.Status(model.Status),
		billing,
		model.PaymentMethodSummary,
		model.PurchaseDate,
		model.RefundInitiatedAt,
		model.RefundedAt,
		model.RefundFailureReason,
		bundle,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

// purchaseToModel maps a domain Purchase aggregate to a PurchaseModel.
func purchaseToModel(p *purchase.Purchase) *PurchaseModel {
	model := &PurchaseModel{
		ID:                   p.ID(),
		UserID:               p.UserID(),
		ProgramID:            p.ProgramID(),
		OrderNumber:          p.OrderNumber(),
		FullPriceCents:       p.FullPriceCents(),
		ClassRepDiscount:     p.ClassRepDiscount(),
		EarlyBirdDiscount:    p.EarlyBirdDiscount(),
		PromoCode:            p.PromoCode(),
		PromoDiscountCents:   p.PromoDiscountCents(),
		PromoDiscountPercent: p.PromoDiscountPercent(),
		FinalPriceCents:      p.FinalPriceCents(),
		IsClassRep:           p.IsClassRep(),
		IsEarlyBird:          p.IsEarlyBird(),
		SessionID:            p.SessionID(),
		PaymentIntentID:      p.PaymentIntentID(),
		RefundID:             p.RefundID(),
		Status:               string(p.Status()),
		PaymentMethodSummary: p.PaymentMethodSummary(),
		PurchaseDate:         p.PurchaseDate(),
		RefundInitiatedAt:    p.RefundInitiatedAt(),
		RefundedAt:           p.RefundedAt(),
		RefundFailureReason:  p.RefundFailureReason(),
		Version:              p.Version(),
		CreatedAt:            p.CreatedAt(),
		UpdatedAt:            p.UpdatedAt(),
	}

	if billing := p.Billing(); billing != nil {
		model.BillingName = billing.Name
		model.BillingEmail = billing.Email
		model.BillingAddress = billing.Address
		model.BillingCity = billing.City
		model.BillingCountry = billing.Country
		model.BillingPostalCode = billing.PostalCode
	}

	if bundle := p.Bundle(); bundle != nil {
		expires := bundle.ExpiresAt
		model.BundleCode = bundle.Code
		model.BundleDiscountCents = bundle.DiscountCents
		model.BundleExpiresAt = &expires
	}

	return model
}
