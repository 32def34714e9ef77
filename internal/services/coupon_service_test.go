package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"m3roodi/internal/models"
)

func seedCoupon(t *testing.T, svc *CouponService, c models.Coupon) models.Coupon {
	t.Helper()
	if err := svc.db.Create(&c).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	return c
}

func TestCouponValidate(t *testing.T) {
	db := newTestDB(t)
	svc := NewCouponService(db)
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	window := func(c models.Coupon) models.Coupon {
		c.ValidFrom = now.AddDate(0, -1, 0)
		c.ValidUntil = now.AddDate(0, 1, 0)
		return c
	}

	seedCoupon(t, svc, window(models.Coupon{Code: "WELCOME20", DiscountType: models.DiscountTypePercentage, DiscountValue: 20, IsActive: true}))
	seedCoupon(t, svc, window(models.Coupon{Code: "FLAT50", DiscountType: models.DiscountTypeFixedAmount, DiscountValue: 50, IsActive: true}))
	seedCoupon(t, svc, window(models.Coupon{Code: "BIG500", DiscountType: models.DiscountTypeFixedAmount, DiscountValue: 500, IsActive: true}))
	seedCoupon(t, svc, window(models.Coupon{Code: "PAUSED", DiscountType: models.DiscountTypePercentage, DiscountValue: 10, IsActive: false}))
	seedCoupon(t, svc, models.Coupon{Code: "OLD", DiscountType: models.DiscountTypePercentage, DiscountValue: 10, IsActive: true,
		ValidFrom: now.AddDate(-1, 0, 0), ValidUntil: now.AddDate(0, 0, -1)})
	seedCoupon(t, svc, models.Coupon{Code: "SOON", DiscountType: models.DiscountTypePercentage, DiscountValue: 10, IsActive: true,
		ValidFrom: now.AddDate(0, 0, 1), ValidUntil: now.AddDate(0, 1, 0)})
	seedCoupon(t, svc, models.Coupon{Code: "OLDPAUSED", DiscountType: models.DiscountTypePercentage, DiscountValue: 10, IsActive: false,
		ValidFrom: now.AddDate(-1, 0, 0), ValidUntil: now.AddDate(0, 0, -1)})

	tests := []struct {
		name         string
		code         string
		amount       float64
		wantErr      error
		wantDiscount float64
		wantFinal    float64
	}{
		{name: "percentage coupon", code: "WELCOME20", amount: 150, wantDiscount: 30, wantFinal: 120},
		{name: "code is case insensitive", code: " welcome20 ", amount: 150, wantDiscount: 30, wantFinal: 120},
		{name: "fixed amount coupon", code: "FLAT50", amount: 150, wantDiscount: 50, wantFinal: 100},
		{name: "fixed amount clamped to order", code: "BIG500", amount: 150, wantDiscount: 150, wantFinal: 0},
		{name: "unknown code", code: "NOPE", amount: 150, wantErr: ErrCouponNotFound},
		{name: "empty code", code: "  ", amount: 150, wantErr: ErrCouponNotFound},
		{name: "inactive coupon", code: "PAUSED", amount: 150, wantErr: ErrCouponInactive},
		{name: "expired coupon", code: "OLD", amount: 150, wantErr: ErrCouponExpired},
		{name: "not yet valid coupon", code: "SOON", amount: 150, wantErr: ErrCouponExpired},
		{name: "expired and inactive reports expiry", code: "OLDPAUSED", amount: 150, wantErr: ErrCouponExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Validate(context.Background(), tt.code, tt.amount)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Validate(%q) error = %v; want %v", tt.code, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate(%q) unexpected error: %v", tt.code, err)
			}
			if res.DiscountAmount != tt.wantDiscount || res.FinalAmount != tt.wantFinal {
				t.Errorf("Validate(%q) = discount %v final %v; want %v / %v",
					tt.code, res.DiscountAmount, res.FinalAmount, tt.wantDiscount, tt.wantFinal)
			}
		})
	}
}

func TestCouponValidateIsRepeatable(t *testing.T) {
	db := newTestDB(t)
	svc := NewCouponService(db)
	now := time.Now()
	seedCoupon(t, svc, models.Coupon{Code: "WELCOME20", DiscountType: models.DiscountTypePercentage, DiscountValue: 20, IsActive: true,
		ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour)})

	for i := 0; i < 3; i++ {
		res, err := svc.Validate(context.Background(), "WELCOME20", 150)
		if err != nil || res.DiscountAmount != 30 {
			t.Fatalf("attempt %d: got %+v, %v", i, res, err)
		}
	}
}

func TestCouponCRUD(t *testing.T) {
	db := newTestDB(t)
	svc := NewCouponService(db)
	ctx := context.Background()
	now := time.Now()

	in := CouponInput{
		Code:          "ramadan",
		DiscountType:  models.DiscountTypePercentage,
		DiscountValue: 15,
		IsActive:      true,
		ValidFrom:     now,
		ValidUntil:    now.AddDate(0, 1, 0),
	}

	created, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Code != "RAMADAN" {
		t.Errorf("code stored as %q; want upper-case", created.Code)
	}

	in.DiscountValue = 120
	if _, err := svc.Update(ctx, created.ID, in); err == nil {
		t.Fatal("Update accepted a percentage above 100")
	}

	in.DiscountValue = 25
	in.IsActive = false
	updated, err := svc.Update(ctx, created.ID, in)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.DiscountValue != 25 || updated.IsActive {
		t.Errorf("Update did not persist fields: %+v", updated)
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, created.ID); !errors.Is(err, ErrCouponNotFound) {
		t.Errorf("second Delete error = %v; want ErrCouponNotFound", err)
	}

	if _, err := svc.Create(ctx, in); err != nil {
		t.Errorf("re-creating a deleted code failed: %v", err)
	}
}
