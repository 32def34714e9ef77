package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"m3roodi/internal/middleware"
	"m3roodi/internal/models"
	"m3roodi/internal/services"
)

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		cookie string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"bogus", http.StatusUnauthorized},
		{customerCookie, http.StatusForbidden},
		{adminCookie, http.StatusOK},
	}
	for _, tt := range tests {
		rec := s.do(t, call{method: http.MethodGet, path: "/api/admin/requests", cookie: tt.cookie})
		if rec.Code != tt.want {
			t.Errorf("cookie %q: status = %d; want %d", tt.cookie, rec.Code, tt.want)
		}
	}
}

func TestAdminRequestConsole(t *testing.T) {
	s := newTestServer(t)
	sub := s.submit(t)
	path := fmt.Sprintf("/api/admin/requests/%d", sub.RequestID)

	rec := s.do(t, call{method: http.MethodGet, path: "/api/admin/requests?status=pending&q=" + "customer", cookie: adminCookie})
	var page services.RequestPage
	envelope(t, rec, &page)
	if rec.Code != http.StatusOK || page.Total != 1 || page.PageSize != services.AdminPageSize {
		t.Fatalf("list = %d %+v", rec.Code, page)
	}
	if rec := s.do(t, call{method: http.MethodGet, path: "/api/admin/requests?status=shipped", cookie: adminCookie}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status filter = %d", rec.Code)
	}

	rec = s.do(t, call{method: http.MethodPut, path: path, cookie: adminCookie, body: map[string]interface{}{"recipient": "وزارة الموارد البشرية", "price": 200}})
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d %s", rec.Code, rec.Body.String())
	}
	var updated models.Request
	envelope(t, rec, &updated)
	if updated.Recipient != "وزارة الموارد البشرية" || updated.FinalPrice != 200 {
		t.Errorf("updated = %+v", updated)
	}

	// PENDING -> COMPLETED skips IN_PROGRESS
	rec = s.do(t, call{method: http.MethodPatch, path: path + "/status", cookie: adminCookie, body: map[string]string{"status": "COMPLETED"}})
	if rec.Code != http.StatusConflict {
		t.Errorf("illegal transition = %d", rec.Code)
	}

	rec = s.do(t, call{method: http.MethodPost, path: path + "/mark-paid", cookie: adminCookie, body: map[string]string{"reference": "TRX-7781"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("mark paid = %d %s", rec.Code, rec.Body.String())
	}
	var paid struct {
		Request models.Request `json:"request"`
		Applied bool           `json:"applied"`
	}
	envelope(t, rec, &paid)
	if !paid.Applied || !paid.Request.IsPaid() || paid.Request.Status != models.RequestStatusInProgress ||
		paid.Request.PaymentMethod != models.PaymentMethodBankTransfer || paid.Request.TotalPaid != 200 {
		t.Errorf("after mark paid = %+v", paid)
	}

	rec = s.do(t, call{method: http.MethodPost, path: path + "/mark-paid", cookie: adminCookie})
	envelope(t, rec, &paid)
	if rec.Code != http.StatusOK || paid.Applied {
		t.Errorf("second mark paid = %d applied=%v", rec.Code, paid.Applied)
	}

	rec = s.do(t, call{method: http.MethodPatch, path: path + "/status", cookie: adminCookie, body: map[string]string{"status": "completed"}})
	if rec.Code != http.StatusOK {
		t.Errorf("complete = %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, call{method: http.MethodGet, path: path, cookie: adminCookie})
	var detail struct {
		Status      models.RequestStatus  `json:"status"`
		OrderNumber string                `json:"order_number"`
		Events      []models.PaymentEvent `json:"payment_events"`
	}
	envelope(t, rec, &detail)
	if detail.Status != models.RequestStatusCompleted || detail.OrderNumber != sub.OrderNumber || len(detail.Events) != 2 {
		t.Errorf("detail = %+v", detail)
	}

	if rec := s.do(t, call{method: http.MethodDelete, path: path, cookie: adminCookie}); rec.Code != http.StatusOK {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := s.do(t, call{method: http.MethodGet, path: path, cookie: adminCookie}); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", rec.Code)
	}
}

func TestAdminCoupons(t *testing.T) {
	s := newTestServer(t)
	now := time.Now().UTC()
	body := map[string]interface{}{
		"code":           "ramadan50",
		"discount_type":  "FIXED_AMOUNT",
		"discount_value": 50,
		"is_active":      true,
		"valid_from":     now.Add(-time.Hour),
		"valid_until":    now.Add(48 * time.Hour),
	}

	rec := s.do(t, call{method: http.MethodPost, path: "/api/admin/coupons", cookie: adminCookie, body: body})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	var coupon models.Coupon
	envelope(t, rec, &coupon)
	if coupon.Code != "RAMADAN50" {
		t.Errorf("code = %q", coupon.Code)
	}

	body["discount_type"] = "PERCENTAGE"
	body["discount_value"] = 150
	rec = s.do(t, call{method: http.MethodPut, path: fmt.Sprintf("/api/admin/coupons/%d", coupon.ID), cookie: adminCookie, body: body})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("percentage over 100 = %d", rec.Code)
	}

	rec = s.do(t, call{method: http.MethodGet, path: "/api/admin/coupons", cookie: adminCookie})
	var list []models.Coupon
	envelope(t, rec, &list)
	if len(list) != 1 {
		t.Errorf("coupons = %d", len(list))
	}

	if rec := s.do(t, call{method: http.MethodDelete, path: fmt.Sprintf("/api/admin/coupons/%d", coupon.ID), cookie: adminCookie}); rec.Code != http.StatusOK {
		t.Errorf("delete = %d", rec.Code)
	}
	if _, err := s.coupons.Validate(context.Background(), "RAMADAN50", 150); !errors.Is(err, services.ErrCouponNotFound) {
		t.Errorf("validate after delete = %v", err)
	}
}

func TestAdminReminders(t *testing.T) {
	s := newTestServer(t)
	sub := s.submit(t)

	rec := s.do(t, call{method: http.MethodPost, path: "/api/admin/reminders", cookie: adminCookie, body: map[string]interface{}{
		"email":      "customer@example.com",
		"name":       "سارة",
		"request_id": sub.RequestID,
		"message":    "مرحباً {name}، طلبك {orderNumber} بانتظار الدفع",
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("send = %d %s", rec.Code, rec.Body.String())
	}
	var reminder models.ManualReminder
	envelope(t, rec, &reminder)
	if reminder.Status != models.ReminderStatusSent || len(s.mailer.sent) != 1 {
		t.Errorf("reminder = %+v, sent %d", reminder, len(s.mailer.sent))
	}

	s.mailer.fail = true
	rec = s.do(t, call{method: http.MethodPost, path: "/api/admin/reminders", cookie: adminCookie, body: map[string]interface{}{
		"email": "other@example.com", "name": "خالد",
	}})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("failed send = %d", rec.Code)
	}
	envelope(t, rec, &reminder)
	if reminder.Status != models.ReminderStatusFailed || reminder.ID == 0 {
		t.Errorf("failed reminder = %+v", reminder)
	}
	s.mailer.fail = false

	rec = s.do(t, call{method: http.MethodPost, path: "/api/admin/reminders/batch", cookie: adminCookie, body: map[string]interface{}{
		"emails":  []string{"a@example.com", "A@example.com ", "b@example.com"},
		"message": "تذكير",
	}})
	var batch services.BatchResult
	envelope(t, rec, &batch)
	if rec.Code != http.StatusOK || batch.Total != 2 || batch.Sent != 2 || batch.BatchID == "" {
		t.Errorf("batch = %d %+v", rec.Code, batch)
	}

	rec = s.do(t, call{method: http.MethodGet, path: "/api/admin/reminders?status=failed", cookie: adminCookie})
	var page services.ReminderPage
	envelope(t, rec, &page)
	if page.Total != 1 {
		t.Errorf("failed reminders = %d", page.Total)
	}
}

func TestAdminUsers(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: http.MethodPost, path: "/api/admin/users", cookie: adminCookie, body: map[string]string{
		"name": "خالد", "email": "Khalid@Example.com", "user_type": "Member",
	}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	var user models.User
	envelope(t, rec, &user)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/admin/users", cookie: adminCookie, body: map[string]string{
		"name": "نسخة", "email": "khalid@example.com",
	}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate email = %d", rec.Code)
	}

	path := fmt.Sprintf("/api/admin/users/%d", user.ID)
	rec = s.do(t, call{method: http.MethodPut, path: path, cookie: adminCookie, body: map[string]string{
		"name": "خالد العتيبي", "email": "khalid@example.com", "user_type": "Admin",
	}})
	envelope(t, rec, &user)
	if rec.Code != http.StatusOK || user.UserType != models.UserTypeAdmin {
		t.Errorf("update = %d %+v", rec.Code, user)
	}

	if rec := s.do(t, call{method: http.MethodDelete, path: path, cookie: adminCookie}); rec.Code != http.StatusOK {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := s.do(t, call{method: http.MethodGet, path: path, cookie: adminCookie}); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", rec.Code)
	}
}

func TestAuthSession(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: http.MethodGet, path: "/api/auth/session"})
	var sess sessionResponse
	envelope(t, rec, &sess)
	if sess.Authenticated {
		t.Error("anonymous session reported as authenticated")
	}

	rec = s.do(t, call{method: http.MethodPost, path: "/auth/login"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("login without token = %d", rec.Code)
	}

	r := httptestLogin(t, s, "good-token")
	if r.Code != http.StatusOK {
		t.Fatalf("login = %d %s", r.Code, r.Body.String())
	}
	if got := r.Header().Get("Set-Cookie"); !strings.Contains(got, middleware.SessionCookieName+"="+customerCookie) || !strings.Contains(got, "HttpOnly") {
		t.Errorf("session cookie = %q", got)
	}
	var users int64
	s.db.Model(&models.User{}).Where("email = ?", "customer@example.com").Count(&users)
	if users != 1 {
		t.Errorf("user records after login = %d", users)
	}

	rec = s.do(t, call{method: http.MethodGet, path: "/api/auth/session", cookie: adminCookie})
	envelope(t, rec, &sess)
	if !sess.Authenticated || !sess.Admin || sess.User.Email != testAdminEmail {
		t.Errorf("admin session = %+v", sess)
	}

	if r := httptestLogin(t, s, "bad-token"); r.Code != http.StatusUnauthorized {
		t.Errorf("bad token = %d", r.Code)
	}
}

func httptestLogin(t *testing.T, s *testServer, idToken string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set("Authorization", "Bearer "+idToken)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}
