package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ministry-platform/service-enrollment/internal/domain"
	"github.com/ministry-platform/service-enrollment/internal/domain/promocode"
)

// PromoCodeModel is the GORM persistence model for the promo_codes table.
type PromoCodeModel struct {
	ID                uuid.UUID   `gorm:"type:uuid;primaryKey"`
	Code              string      `gorm:"type:varchar(64);uniqueIndex;not null"`
	Type              string      `gorm:"type:varchar(20);not null"`
	DiscountCents     int64       `gorm:"not null;default:0"`
	DiscountPercent   float64     `gorm:"not null;default:0"`
	IsGeneral         bool        `gorm:"not null;default:false"`
	OwnerID           *uuid.UUID  `gorm:"type:uuid;index"`
	IsUsed            bool        `gorm:"not null;default:false"`
	IsActive          bool        `gorm:"not null;default:true"`
	UsedAt            *time.Time  `gorm:"type:timestamptz"`
	UsedForProgramID  *uuid.UUID  `gorm:"type:uuid"`
	UsedByUserID      *uuid.UUID  `gorm:"type:uuid"`
	UsedByName        string      `gorm:"type:varchar(255)"`
	UsedByEmail       string      `gorm:"type:varchar(255)"`
	AllowedProgramIDs []uuid.UUID `gorm:"type:jsonb;serializer:json"`
	ExcludedProgramID *uuid.UUID  `gorm:"type:uuid"`
	SourcePurchaseID  *uuid.UUID  `gorm:"type:uuid;index"`
	ExpiresAt         *time.Time  `gorm:"type:timestamptz"`
	CreatedAt         time.Time   `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt         time.Time   `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName specifies the table name for GORM.
func (PromoCodeModel) TableName() string {
	return "promo_codes"
}

// PromoCodeRepositoryImpl is the GORM-based implementation of
// promocode.Repository.
type PromoCodeRepositoryImpl struct {
	db *gorm.DB
}

// NewPromoCodeRepository creates a new GORM-based promo code repository.
func NewPromoCodeRepository(db *gorm.DB) *PromoCodeRepositoryImpl {
	return &PromoCodeRepositoryImpl{db: db}
}

// Save persists a new promo code.
func (r *PromoCodeRepositoryImpl) Save(ctx context.Context, p *promocode.PromoCode) error {
	return r.db.WithContext(ctx).Create(promoToModel(p)).Error
}

// Update persists changes to an existing promo code.
func (r *PromoCodeRepositoryImpl) Update(ctx context.Context, p *promocode.PromoCode) error {
	model := promoToModel(p)
	result := r.db.WithContext(ctx).
		Model(&PromoCodeModel{}).
		Where("id = ?", model.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("PromoCode", model.ID.String())
	}
	return nil
}

// FindByCode retrieves a promo code by its (case-insensitive) code.
func (r *PromoCodeRepositoryImpl) FindByCode(ctx context.Context, code string) (*promocode.PromoCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var model PromoCodeModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewInvalidPromoCodeError("promo code not found")
		}
		return nil, err
	}
	return promoToDomain(&model), nil
}

// FindByID retrieves a promo code by id.
func (r *PromoCodeRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*promocode.PromoCode, error) {
	var model PromoCodeModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("PromoCode", id.String())
		}
		return nil, err
	}
	return promoToDomain(&model), nil
}

// FindBySourcePurchase returns the bundle code spawned from a purchase.
func (r *PromoCodeRepositoryImpl) FindBySourcePurchase(ctx context.Context, purchaseID uuid.UUID) (*promocode.PromoCode, error) {
	var model PromoCodeModel
	if err := r.db.WithContext(ctx).Where("source_purchase_id = ?", purchaseID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("PromoCode", purchaseID.String())
		}
		return nil, err
	}
	return promoToDomain(&model), nil
}

// ListActive returns all currently redeemable codes (admin).
func (r *PromoCodeRepositoryImpl) ListActive(ctx context.Context) ([]*promocode.PromoCode, error) {
	var models []PromoCodeModel
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	codes := make([]*promocode.PromoCode, len(models))
	for i := range models {
		codes[i] = promoToDomain(&models[i])
	}
	return codes, nil
}

// Delete removes a promo code outright.
func (r *PromoCodeRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&PromoCodeModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("PromoCode", id.String())
	}
	return nil
}

// promoToDomain maps a PromoCodeModel to the domain aggregate.
func promoToDomain(model *PromoCodeModel) *promocode.PromoCode {
	var usedBy *promocode.UsedBy
	if model.UsedByUserID != nil {
		usedBy = &promocode.UsedBy{
			UserID: *model.UsedByUserID,
			Name:   model.UsedByName,
			Email:  model.UsedByEmail,
		}
	}

	return promocode.Reconstitute(
		model.ID,
		model.Code,
		promocode.Type(model.Type),
		model.DiscountCents,
		model.DiscountPercent,
		model.IsGeneral,
		model.OwnerID,
		model.IsUsed,
		model.IsActive,
		model.UsedAt,
		model.UsedForProgramID,
		usedBy,
		model.AllowedProgramIDs,
		model.ExcludedProgramID,
		model.SourcePurchaseID,
		model.ExpiresAt,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

// promoToModel maps the domain aggregate to a PromoCodeModel.
func promoToModel(p *promocode.PromoCode) *PromoCodeModel {
	model := &PromoCodeModel{
		ID:                p.ID(),
		Code:              p.Code(),
		Type:              string(p.Type()),
		DiscountCents:     p.DiscountCents(),
		DiscountPercent:   p.DiscountPercent(),
		IsGeneral:         p.IsGeneral(),
		OwnerID:           p.OwnerID(),
		IsUsed:            p.IsUsed(),
		IsActive:          p.IsActive(),
		UsedAt:            p.UsedAt(),
		UsedForProgramID:  p.UsedForProgramID(),
		AllowedProgramIDs: p.AllowedProgramIDs(),
		ExcludedProgramID: p.ExcludedProgramID(),
		SourcePurchaseID:  p.SourcePurchaseID(),
		ExpiresAt:         p.ExpiresAt(),
		CreatedAt:         p.CreatedAt(),
		UpdatedAt:         p.UpdatedAt(),
	}

	if usedBy := p.UsedBy(); usedBy != nil {
		userID := usedBy.UserID
		model.UsedByUserID = &userID
		model.UsedByName = usedBy.Name
		model.UsedByEmail = usedBy.Email
	}

	return model
}
