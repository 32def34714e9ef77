package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCheckoutStoreRoundTrip(t *testing.T) {
	store := NewCheckoutStore(newTestCache(t))
	ctx := context.Background()

	missing, err := store.Load(ctx, "RF1")
	if err != nil || missing != nil {
		t.Fatalf("Load on empty store = %+v, %v; want nil, nil", missing, err)
	}

	snap := CheckoutSnapshot{OrderNumber: "RF42", RequestID: 42, Name: "سارة", Purpose: "طلب علاج", Price: 150, FinalPrice: 120, CouponCode: "WELCOME20"}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, "RF42")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || got.FinalPrice != 120 || got.CouponCode != "WELCOME20" || got.CreatedAt.IsZero() {
		t.Fatalf("Load = %+v", got)
	}

	if err := store.Delete(ctx, "RF42"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := store.Load(ctx, "RF42"); got != nil {
		t.Fatal("snapshot still present after Delete")
	}
}

func TestRedisCacheMiss(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	var dest CheckoutSnapshot
	if err := cache.Get(ctx, checkoutKey("RF404"), &dest); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get missing key error = %v; want ErrCacheMiss", err)
	}

	if err := cache.Set(ctx, checkoutKey("RF3"), CheckoutSnapshot{OrderNumber: "RF3"}, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := cache.Delete(ctx, checkoutKey("RF3")); err != nil {
		t.Fatal(err)
	}
	if err := cache.Get(ctx, checkoutKey("RF3"), &dest); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get deleted key error = %v; want ErrCacheMiss", err)
	}
}
