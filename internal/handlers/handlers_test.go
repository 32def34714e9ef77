package handlers

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"m3roodi/internal/models"
	"m3roodi/internal/reconcile"
	"m3roodi/internal/services"
)

func notification(orderID, status, grossAmount string) []byte {
	sum := sha512.Sum512([]byte(orderID + "200" + grossAmount + testServerKey))
	body, _ := json.Marshal(services.MidtransNotification{
		OrderID:           orderID,
		TransactionStatus: status,
		StatusCode:        "200",
		GrossAmount:       grossAmount,
		SignatureKey:      hex.EncodeToString(sum[:]),
	})
	return body
}

func TestPricing(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: http.MethodGet, path: "/api/pricing?purpose=" + url.QueryEscape("طلب علاج")})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out pricingResponse
	envelope(t, rec, &out)
	if out.Price == nil || *out.Price != 150 || out.Currency != "SAR" || len(out.Purposes) == 0 {
		t.Errorf("pricing = %+v", out)
	}
}

func TestSubmitRequest(t *testing.T) {
	s := newTestServer(t)

	out := s.submit(t)
	if out.OrderNumber != models.OrderNumberFor(out.RequestID) || out.Price != 150 || out.Status != "PENDING" {
		t.Errorf("submit = %+v", out)
	}

	bad := submission()
	bad["email"] = "not-an-email"
	bad["description"] = ""
	rec := s.do(t, call{method: http.MethodPost, path: "/api/requests", body: bad})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid submit = %d", rec.Code)
	}
	env := envelope(t, rec, nil)
	if env["success"] != false || env["code"] != "validation" {
		t.Errorf("envelope = %v", env)
	}
	if _, ok := env["errors"].(map[string]interface{})["email"]; !ok {
		t.Errorf("missing email error: %v", env["errors"])
	}
}

func TestSubmitRequestLinksSessionUser(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, call{method: http.MethodPost, path: "/api/requests", body: submission(), cookie: customerCookie})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit = %d", rec.Code)
	}
	var out submitResponse
	envelope(t, rec, &out)

	req, err := s.requests.Get(context.Background(), out.RequestID)
	if err != nil {
		t.Fatal(err)
	}
	if req.UserID == nil || req.User == nil || req.User.Email != "customer@example.com" {
		t.Errorf("request not linked to session user: %+v", req.UserID)
	}
}

func TestValidateCoupon(t *testing.T) {
	s := newTestServer(t)
	now := time.Now()
	_, err := s.coupons.Create(context.Background(), services.CouponInput{
		Code: "welcome20", DiscountType: models.DiscountTypePercentage, DiscountValue: 20, IsActive: true,
		ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		body       map[string]interface{}
		wantStatus int
		wantFinal  float64
	}{
		{name: "scenario B", body: map[string]interface{}{"code": " Welcome20 ", "amount": 150}, wantStatus: http.StatusOK, wantFinal: 120},
		{name: "priced by purpose", body: map[string]interface{}{"code": "WELCOME20", "purpose": "طلب علاج"}, wantStatus: http.StatusOK, wantFinal: 120},
		{name: "unknown code", body: map[string]interface{}{"code": "NOPE", "amount": 150}, wantStatus: http.StatusNotFound},
		{name: "missing code", body: map[string]interface{}{"amount": 150}, wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, call{method: http.MethodPost, path: "/api/coupons/validate", body: tt.body})
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d; want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var out services.CouponResult
			envelope(t, rec, &out)
			if out.FinalAmount != tt.wantFinal || out.DiscountAmount != 30 {
				t.Errorf("result = %+v", out)
			}
		})
	}
}

func TestPaymentFlowThroughWebhook(t *testing.T) {
	s := newTestServer(t)
	sub := s.submit(t)

	rec := s.do(t, call{method: http.MethodPost, path: "/api/payments/create", body: map[string]interface{}{"request_id": sub.RequestID, "email": "customer@example.com"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("create payment = %d %s", rec.Code, rec.Body.String())
	}
	var created services.CreatePaymentResult
	envelope(t, rec, &created)
	if created.RedirectURL == "" || created.Amount != 150 || created.OrderNumber != sub.OrderNumber {
		t.Errorf("created = %+v", created)
	}

	forged := notification(sub.OrderNumber, "settlement", "150.00")
	forged = []byte(strings.Replace(string(forged), `"signature_key":"`, `"signature_key":"00`, 1))
	if rec := s.do(t, call{method: http.MethodPost, path: "/api/payments/webhook", raw: forged}); rec.Code != http.StatusForbidden {
		t.Errorf("forged webhook = %d", rec.Code)
	}

	rec = s.do(t, call{method: http.MethodPost, path: "/api/payments/webhook", raw: notification(sub.OrderNumber, "settlement", "150.00")})
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook = %d %s", rec.Code, rec.Body.String())
	}
	var result services.NotificationResult
	envelope(t, rec, &result)
	if !result.Applied || result.Status != services.GatewayStatusCaptured {
		t.Errorf("webhook result = %+v", result)
	}

	req, _ := s.requests.Get(context.Background(), sub.RequestID)
	if !req.IsPaid() || req.Status != models.RequestStatusInProgress || req.TotalPaid != 150 {
		t.Errorf("request after webhook = %s %s %v", req.PaymentStatus, req.Status, req.TotalPaid)
	}

	rec = s.do(t, call{method: http.MethodPost, path: "/api/payments/create", body: map[string]interface{}{"request_id": sub.RequestID, "email": "customer@example.com"}})
	if rec.Code != http.StatusConflict {
		t.Errorf("pay twice = %d", rec.Code)
	}
}

func TestCreatePaymentNeedsOrderEmail(t *testing.T) {
	s := newTestServer(t)
	sub := s.submit(t)

	for _, tt := range []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{"missing email", map[string]interface{}{"request_id": sub.RequestID, "coupon_code": "WELCOME20"}, http.StatusBadRequest},
		{"malformed email", map[string]interface{}{"request_id": sub.RequestID, "email": "nope"}, http.StatusBadRequest},
		{"someone else's email", map[string]interface{}{"request_id": sub.RequestID, "email": "stranger@example.com"}, http.StatusNotFound},
	} {
		if rec := s.do(t, call{method: http.MethodPost, path: "/api/payments/create", body: tt.body}); rec.Code != tt.want {
			t.Errorf("%s = %d; want %d", tt.name, rec.Code, tt.want)
		}
	}

	req, _ := s.requests.Get(context.Background(), sub.RequestID)
	if req.PaymentMethod != "" || req.CouponCode != nil {
		t.Errorf("rejected checkout changed the request: %+v", req)
	}
	var sessions int64
	s.db.Model(&models.PaymentSession{}).Where("request_id = ?", sub.RequestID).Count(&sessions)
	if sessions != 0 {
		t.Errorf("payment sessions = %d; want 0", sessions)
	}
}

func TestActiveSession(t *testing.T) {
	s := newTestServer(t)
	sub := s.submit(t)
	base := fmt.Sprintf("/api/requests/%d/payment-session", sub.RequestID)
	path := base + "?email=customer@example.com"

	if rec := s.do(t, call{method: http.MethodGet, path: base}); rec.Code != http.StatusBadRequest {
		t.Errorf("without email = %d; want 400", rec.Code)
	}

	var before map[string]interface{}
	envelope(t, s.do(t, call{method: http.MethodGet, path: path}), &before)
	if before["active"] != false {
		t.Errorf("before checkout = %v", before)
	}

	s.do(t, call{method: http.MethodPost, path: "/api/payments/create", body: map[string]interface{}{"request_id": sub.RequestID, "email": "customer@example.com"}})

	var after map[string]interface{}
	envelope(t, s.do(t, call{method: http.MethodGet, path: path}), &after)
	if after["active"] != true || after["order_id"] != sub.OrderNumber || after["redirect_url"] == "" {
		t.Errorf("after checkout = %v", after)
	}

	rec := s.do(t, call{method: http.MethodGet, path: base + "?email=stranger@example.com"})
	if rec.Code != http.StatusNotFound || strings.Contains(rec.Body.String(), "redirect_url") {
		t.Errorf("wrong email = %d %s", rec.Code, rec.Body.String())
	}

	if rec := s.do(t, call{method: http.MethodGet, path: "/api/requests/abc/payment-session"}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d", rec.Code)
	}
}

func TestVerifyIsReadOnly(t *testing.T) {
	s := newTestServer(t)
	sub := s.submit(t)
	s.do(t, call{method: http.MethodPost, path: "/api/payments/create", body: map[string]interface{}{"request_id": sub.RequestID, "email": "customer@example.com"}})
	s.gateway.set(sub.OrderNumber, services.GatewayStatusCaptured)

	rec := s.do(t, call{method: http.MethodGet, path: "/api/payments/verify?orderNumber=" + sub.OrderNumber + "&email=customer@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify = %d %s", rec.Code, rec.Body.String())
	}
	var out services.VerifyResult
	envelope(t, rec, &out)
	if out.Status != services.VerifyStatusCompleted {
		t.Errorf("verify status = %s", out.Status)
	}

	req, _ := s.requests.Get(context.Background(), sub.RequestID)
	if req.IsPaid() {
		t.Error("verify changed the payment status")
	}

	if rec := s.do(t, call{method: http.MethodGet, path: "/api/payments/verify?orderNumber=" + sub.OrderNumber + "&email=other@example.com"}); rec.Code != http.StatusNotFound {
		t.Errorf("verify with wrong email = %d", rec.Code)
	}
	if rec := s.do(t, call{method: http.MethodGet, path: "/api/payments/verify"}); rec.Code != http.StatusBadRequest {
		t.Errorf("verify without order = %d", rec.Code)
	}
}

func redirectTarget(t *testing.T, s *testServer, path string, cookies ...*http.Cookie) *url.URL {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("%s = %d; want 303", path, rec.Code)
	}
	u, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestPaymentRedirect(t *testing.T) {
	t.Run("no order number", func(t *testing.T) {
		s := newTestServer(t)
		u := redirectTarget(t, s, "/payment-redirect")
		if u.Path != reconcile.FailedPath || u.Query().Get("reason") != reconcile.ReasonOrderNotFound {
			t.Errorf("location = %s", u)
		}
		if s.gateway.checkCount() != 0 {
			t.Errorf("gateway checked %d times", s.gateway.checkCount())
		}
	})

	t.Run("gateway reports failure", func(t *testing.T) {
		s := newTestServer(t)
		sub := s.submit(t)
		u := redirectTarget(t, s, "/payment-redirect?order_id="+sub.OrderNumber+"&transaction_status=deny")
		if u.Path != reconcile.FailedPath || u.Query().Get("orderNumber") != sub.OrderNumber {
			t.Errorf("location = %s", u)
		}
	})

	t.Run("captured at gateway", func(t *testing.T) {
		s := newTestServer(t)
		sub := s.submit(t)
		s.do(t, call{method: http.MethodPost, path: "/api/payments/create", body: map[string]interface{}{"request_id": sub.RequestID, "email": "customer@example.com"}})
		s.gateway.set(sub.OrderNumber, services.GatewayStatusCaptured)

		u := redirectTarget(t, s, "/payment-redirect?order_id="+sub.OrderNumber+"&transaction_status=settlement")
		if u.Path != reconcile.SuccessPath || u.Query().Get("orderNumber") != sub.OrderNumber {
			t.Fatalf("location = %s", u)
		}
		if u.Query().Get("finalPrice") != "150" || u.Query().Get("purpose") != "طلب علاج" {
			t.Errorf("summary missing from %s", u)
		}
		if s.gateway.checkCount() != 1 {
			t.Errorf("gateway checked %d times; want 1", s.gateway.checkCount())
		}
	})

	t.Run("pending cookie after offline payment", func(t *testing.T) {
		s := newTestServer(t)
		sub := s.submit(t)
		if _, err := s.requests.MarkAsPaid(context.Background(), sub.RequestID, "test"); err != nil {
			t.Fatal(err)
		}
		cookie := &http.Cookie{
			Name:  reconcile.PendingRequestCookie,
			Value: reconcile.PendingRequest{RequestID: sub.RequestID, Timestamp: time.Now().UnixMilli()}.Encode(),
		}
		u := redirectTarget(t, s, "/payment-redirect", cookie)
		if u.Path != reconcile.SuccessPath || u.Query().Get("orderNumber") != sub.OrderNumber {
			t.Errorf("location = %s", u)
		}
		if u.Query().Get("name") != "" {
			t.Errorf("expected bare success url without a checkout snapshot, got %s", u)
		}
	})

	t.Run("never confirmed", func(t *testing.T) {
		s := newTestServer(t)
		sub := s.submit(t)
		s.do(t, call{method: http.MethodPost, path: "/api/payments/create", body: map[string]interface{}{"request_id": sub.RequestID, "email": "customer@example.com"}})
		s.gateway.set(sub.OrderNumber, services.GatewayStatusPending)

		u := redirectTarget(t, s, "/payment-redirect?orderNumber="+sub.OrderNumber)
		if u.Path != reconcile.FailedPath || u.Query().Get("reason") != reconcile.ReasonTimeout {
			t.Errorf("location = %s", u)
		}
		if s.gateway.checkCount() != reconcile.DefaultMaxAttempts {
			t.Errorf("gateway checked %d times; want %d", s.gateway.checkCount(), reconcile.DefaultMaxAttempts)
		}
	})
}

func TestResultPages(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: http.MethodGet, path: reconcile.SuccessURL("RF42", &reconcile.Summary{Name: "سارة", FinalPrice: 120})})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "RF42") || !strings.Contains(rec.Body.String(), "120") {
		t.Errorf("success page = %d", rec.Code)
	}

	rec = s.do(t, call{method: http.MethodGet, path: reconcile.FailureURL("RF42", reconcile.ReasonTimeout)})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), reconcile.ReasonTimeout) {
		t.Errorf("failed page = %d", rec.Code)
	}
}

func TestBankTransfer(t *testing.T) {
	s := newTestServer(t)
	sub := s.submit(t)

	rec := s.do(t, call{method: http.MethodPost, path: fmt.Sprintf("/api/requests/%d/bank-transfer", sub.RequestID)})
	if rec.Code != http.StatusOK {
		t.Fatalf("bank transfer = %d %s", rec.Code, rec.Body.String())
	}
	if len(s.mailer.sent) != 1 || !strings.Contains(s.mailer.sent[0].HTML, "SA0380000000608010167519") {
		t.Errorf("bank transfer email not sent: %+v", s.mailer.sent)
	}

	s.mailer.fail = true
	if rec := s.do(t, call{method: http.MethodPost, path: fmt.Sprintf("/api/requests/%d/bank-transfer", sub.RequestID)}); rec.Code != http.StatusBadGateway {
		t.Errorf("failed send = %d", rec.Code)
	}
	if rec := s.do(t, call{method: http.MethodPost, path: "/api/requests/9999/bank-transfer"}); rec.Code != http.StatusNotFound {
		t.Errorf("unknown request = %d", rec.Code)
	}
}
