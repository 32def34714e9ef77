package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"m3roodi/internal/logger"
	"m3roodi/internal/models"
	"m3roodi/internal/testutil"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.NewDB(t, Models()...)
}

func newTestCache(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCacheFromClient(client)
}

func seedRequest(t *testing.T, db *gorm.DB, r models.Request) models.Request {
	t.Helper()
	if r.ApplicantName == "" {
		r.ApplicantName = "محمد أحمد"
	}
	if r.Phone == "" {
		r.Phone = "0500000000"
	}
	if r.Email == "" {
		r.Email = "customer@example.com"
	}
	if r.Recipient == "" {
		r.Recipient = "وزارة الصحة"
	}
	if r.Purpose == "" {
		r.Purpose = "طلب علاج"
	}
	if r.Price == 0 {
		r.Price = 150
	}
	if r.FinalPrice == 0 {
		r.FinalPrice = r.Price
	}
	if r.Status == "" {
		r.Status = models.RequestStatusPending
	}
	if r.PaymentStatus == "" {
		r.PaymentStatus = models.PaymentStatusUnpaid
	}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("seed request: %v", err)
	}
	return r
}

// fakeGateway implements Gateway for tests
type fakeGateway struct {
	mu        sync.Mutex
	created   []*snap.Request
	cancelled []string
	statuses  map[string]*GatewayTransaction
	createErr error
	checkErr  error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: make(map[string]*GatewayTransaction)}
}

func (g *fakeGateway) CreateTransaction(ctx context.Context, req *snap.Request) (*snap.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, req)
	return &snap.Response{
		Token:       "token-" + req.TransactionDetails.OrderID,
		RedirectURL: "https://app.sandbox.midtrans.com/snap/v4/redirection/" + req.TransactionDetails.OrderID,
	}, nil
}

func (g *fakeGateway) CheckTransaction(ctx context.Context, orderID string) (*GatewayTransaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.checkErr != nil {
		return nil, g.checkErr
	}
	tx, ok := g.statuses[orderID]
	if !ok {
		return nil, errors.New("transaction not found")
	}
	return tx, nil
}

func (g *fakeGateway) CancelTransaction(ctx context.Context, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, orderID)
	return nil
}

func (g *fakeGateway) setStatus(orderID string, status GatewayStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[orderID] = &GatewayTransaction{OrderID: orderID, Status: status, RawStatus: string(status)}
}

// fakeMailer records deliveries and fails for configured recipients
type fakeMailer struct {
	mu     sync.Mutex
	sent   []Email
	failTo map[string]bool
}

func (m *fakeMailer) Send(ctx context.Context, email Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTo[email.To] {
		return errors.New("smtp: 550 mailbox unavailable")
	}
	m.sent = append(m.sent, email)
	return nil
}

var testLog = logger.Discard()
