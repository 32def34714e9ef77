package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"m3roodi/internal/models"
)

type CouponService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCouponService(db *gorm.DB) *CouponService {
	return &CouponService{db: db, now: time.Now}
}

// CouponResult is the outcome of a successful validation
type CouponResult struct {
	Coupon         models.Coupon `json:"coupon"`
	Amount         float64       `json:"amount"`
	DiscountAmount float64       `json:"discount_amount"`
	FinalAmount    float64       `json:"final_amount"`
}

// NormalizeCode trims and upper-cases a coupon code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks a coupon against amount without redeeming it
func (s *CouponService) Validate(ctx context.Context, code string, amount float64) (*CouponResult, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrCouponNotFound
	}

	var coupon models.Coupon
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}

	if !coupon.InWindow(s.now()) {
		return nil, ErrCouponExpired
	}
	if !coupon.IsActive {
		return nil, ErrCouponInactive
	}

	discount := coupon.Discount(amount)
	return &CouponResult{
		Coupon:         coupon,
		Amount:         amount,
		DiscountAmount: discount,
		FinalAmount:    amount - discount,
	}, nil
}

func (s *CouponService) List(ctx context.Context) ([]models.Coupon, error) {
	var coupons []models.Coupon
	err := s.db.WithContext(ctx).Order("created_at desc").Find(&coupons).Error
	return coupons, err
}

func (s *CouponService) Get(ctx context.Context, id uint) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := s.db.WithContext(ctx).First(&coupon, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}
	return &coupon, nil
}

// CouponInput carries the admin-editable coupon fields
type CouponInput struct {
	Code          string              `json:"code" validate:"required,max=50"`
	Description   string              `json:"description"`
	DiscountType  models.DiscountType `json:"discount_type" validate:"required,oneof=PERCENTAGE FIXED_AMOUNT"`
	DiscountValue float64             `json:"discount_value" validate:"gt=0"`
	IsActive      bool                `json:"is_active"`
	ValidFrom     time.Time           `json:"valid_from" validate:"required"`
	ValidUntil    time.Time           `json:"valid_until" validate:"required,gtfield=ValidFrom"`
}

func (in CouponInput) validate() error {
	if err := ValidateStruct(in); err != nil {
		return err
	}
	if in.DiscountType == models.DiscountTypePercentage && in.DiscountValue > 100 {
		return newValidationError("discount_value", "percentage cannot exceed 100")
	}
	return nil
}

func (in CouponInput) apply(c *models.Coupon) {
	c.Code = NormalizeCode(in.Code)
	c.Description = in.Description
	c.DiscountType = in.DiscountType
	c.DiscountValue = in.DiscountValue
	c.IsActive = in.IsActive
	c.ValidFrom = in.ValidFrom
	c.ValidUntil = in.ValidUntil
}

func (s *CouponService) Create(ctx context.Context, in CouponInput) (*models.Coupon, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var coupon models.Coupon
	in.apply(&coupon)
	if err := s.db.WithContext(ctx).Create(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (s *CouponService) Update(ctx context.Context, id uint, in CouponInput) (*models.Coupon, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	coupon, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(coupon)
	if err := s.db.WithContext(ctx).Save(coupon).Error; err != nil {
		return nil, err
	}
	return coupon, nil
}

func (s *CouponService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Unscoped().Delete(&models.Coupon{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCouponNotFound
	}
	return nil
}
