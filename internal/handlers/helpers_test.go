package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"m3roodi/internal/emails"
	"m3roodi/internal/logger"
	"m3roodi/internal/middleware"
	"m3roodi/internal/reconcile"
	"m3roodi/internal/services"
	"m3roodi/internal/testutil"
)

const (
	testServerKey   = "SB-Mid-server-handlers"
	adminCookie     = "admin-session"
	customerCookie  = "customer-session"
	testAdminEmail  = "admin@m3roodi.com"
	testSupportMail = "support@m3roodi.com"
)

type stubGateway struct {
	mu       sync.Mutex
	created  []*snap.Request
	statuses map[string]services.GatewayStatus
	checks   int
}

func (g *stubGateway) CreateTransaction(ctx context.Context, req *snap.Request) (*snap.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	id := req.TransactionDetails.OrderID
	return &snap.Response{Token: "tok-" + id, RedirectURL: "https://app.sandbox.midtrans.com/snap/v4/redirection/" + id}, nil
}

func (g *stubGateway) CheckTransaction(ctx context.Context, orderID string) (*services.GatewayTransaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks++
	status, ok := g.statuses[orderID]
	if !ok {
		return nil, errors.New("transaction not found")
	}
	return &services.GatewayTransaction{OrderID: orderID, Status: status}, nil
}

func (g *stubGateway) CancelTransaction(ctx context.Context, orderID string) error { return nil }

func (g *stubGateway) set(orderID string, status services.GatewayStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[orderID] = status
}

func (g *stubGateway) checkCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checks
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []services.Email
	fail bool
}

func (m *recordingMailer) Send(ctx context.Context, email services.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, email)
	return nil
}

type stubAuth struct{}

func (stubAuth) VerifyIDToken(ctx context.Context, idToken string) (*services.SessionClaims, error) {
	if idToken == "good-token" {
		return &services.SessionClaims{UID: "u-1", Email: "customer@example.com", Name: "سارة"}, nil
	}
	return nil, errors.New("invalid id token")
}

func (stubAuth) SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error) {
	return customerCookie, nil
}

func (stubAuth) VerifySessionCookie(ctx context.Context, cookie string) (*services.SessionClaims, error) {
	switch cookie {
	case adminCookie:
		return &services.SessionClaims{UID: "u-admin", Email: testAdminEmail, Admin: true}, nil
	case customerCookie:
		return &services.SessionClaims{UID: "u-1", Email: "customer@example.com", Name: "سارة"}, nil
	}
	return nil, errors.New("invalid session")
}

type testServer struct {
	e        *echo.Echo
	db       *gorm.DB
	gateway  *stubGateway
	mailer   *recordingMailer
	requests *services.RequestService
	coupons  *services.CouponService
	payments *services.PaymentService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.Discard()
	db := testutil.NewDB(t, services.Models()...)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	checkout := services.NewCheckoutStore(services.NewRedisCacheFromClient(client))

	gateway := &stubGateway{statuses: make(map[string]services.GatewayStatus)}
	mailer := &recordingMailer{}
	support := emails.Support{Email: testSupportMail}

	requests := services.NewRequestService(db, log)
	coupons := services.NewCouponService(db)
	payments := services.NewPaymentService(db, gateway, requests, coupons, checkout, log, "https://m3roodi.com", testServerKey)
	transfers := services.NewBankTransferService(requests, mailer, log, services.BankAccount{
		Name: "مصرف الراجحي", IBAN: "SA0380000000608010167519", Beneficiary: "معروضي",
	}, support)
	reminders := services.NewReminderService(db, mailer, log, "https://m3roodi.com", support)
	users := services.NewUserService(db)
	authn := stubAuth{}

	instant := func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}

	router := &Router{
		Public:   NewPublicHandler(requests, coupons, payments, transfers, users, authn, log),
		Redirect: NewRedirectHandler(payments, log, testSupportMail, reconcile.WithAfter(instant)),
		Auth:     NewAuthHandler(authn, users, log, false),
		Requests: NewAdminRequestHandler(requests),
		Coupons:  NewCouponHandler(coupons),
		Reminder: NewReminderHandler(reminders),
		Users:    NewUserHandler(users),
		Authn:    authn,
		Admins:   users,
	}

	e := echo.New()
	e.HTTPErrorHandler = middleware.CustomErrorHandler
	router.Register(e)

	return &testServer{e: e, db: db, gateway: gateway, mailer: mailer, requests: requests, coupons: coupons, payments: payments}
}

type call struct {
	method string
	path   string
	body   interface{}
	raw    []byte
	cookie string
}

func (s *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body []byte
	switch {
	case c.raw != nil:
		body = c.raw
	case c.body != nil:
		var err error
		if body, err = json.Marshal(c.body); err != nil {
			t.Fatalf("marshal: %v", err)
		}
	}
	req := httptest.NewRequest(c.method, c.path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if c.cookie != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: c.cookie})
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

// envelope decodes the response and unmarshals data into dst when given
func envelope(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) map[string]interface{} {
	t.Helper()
	var raw struct {
		Success bool              `json:"success"`
		Message string            `json:"message"`
		Code    string            `json:"code"`
		Errors  map[string]string `json:"errors"`
		Data    json.RawMessage   `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	if dst != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, dst); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	errs := make(map[string]interface{}, len(raw.Errors))
	for k, v := range raw.Errors {
		errs[k] = v
	}
	return map[string]interface{}{"success": raw.Success, "message": raw.Message, "code": raw.Code, "errors": errs}
}

func submission() map[string]interface{} {
	return map[string]interface{}{
		"applicant_name": "سارة محمد",
		"phone":          "0551234567",
		"email":          "customer@example.com",
		"recipient":      "وزارة الصحة",
		"purpose":        "طلب علاج",
		"description":    "أرغب في كتابة معروض لطلب علاج في الخارج",
	}
}

func (s *testServer) submit(t *testing.T) submitResponse {
	t.Helper()
	rec := s.do(t, call{method: http.MethodPost, path: "/api/requests", body: submission()})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit = %d %s", rec.Code, rec.Body.String())
	}
	var out submitResponse
	envelope(t, rec, &out)
	return out
}
