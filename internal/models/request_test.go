package models

import "testing"

func TestParseOrderNumber(t *testing.T) {
	tests := []struct {
		input   string
		want    uint
		wantErr bool
	}{
		{input: "RF42", want: 42},
		{input: "rf42", want: 42},
		{input: "RF42-3", want: 42},
		{input: " RF7 ", want: 7},
		{input: "42", wantErr: true},
		{input: "RF", wantErr: true},
		{input: "RF0", wantErr: true},
		{input: "RFabc", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOrderNumber(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseOrderNumber(%q) = %d; want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOrderNumber(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseOrderNumber(%q) = %d; want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestOrderNumberRoundTrip(t *testing.T) {
	r := Request{ID: 42}
	if r.OrderNumber() != "RF42" {
		t.Fatalf("OrderNumber() = %q; want RF42", r.OrderNumber())
	}
	id, err := ParseOrderNumber(r.OrderNumber())
	if err != nil || id != 42 {
		t.Fatalf("ParseOrderNumber(RF42) = %d, %v", id, err)
	}
}

func TestRequestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to RequestStatus
		allowed  bool
	}{
		{RequestStatusPending, RequestStatusInProgress, true},
		{RequestStatusPending, RequestStatusCancelled, true},
		{RequestStatusPending, RequestStatusCompleted, false},
		{RequestStatusInProgress, RequestStatusCompleted, true},
		{RequestStatusInProgress, RequestStatusCancelled, true},
		{RequestStatusInProgress, RequestStatusPending, false},
		{RequestStatusCompleted, RequestStatusPending, false},
		{RequestStatusCompleted, RequestStatusCancelled, false},
		{RequestStatusCancelled, RequestStatusInProgress, false},
		{RequestStatusCompleted, RequestStatusCompleted, true},
		{RequestStatus("DONE"), RequestStatus("DONE"), false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Errorf("%s -> %s allowed = %v; want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestPayable(t *testing.T) {
	code := "WELCOME20"
	empty := ""

	tests := []struct {
		name string
		req  Request
		want float64
	}{
		{name: "no coupon", req: Request{Price: 150, FinalPrice: 150}, want: 150},
		{name: "coupon applied", req: Request{Price: 150, FinalPrice: 120, CouponCode: &code}, want: 120},
		{name: "empty coupon code", req: Request{Price: 150, FinalPrice: 120, CouponCode: &empty}, want: 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.Payable(); got != tt.want {
				t.Errorf("Payable() = %v; want %v", got, tt.want)
			}
		})
	}
}
