package services

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

// GatewayStatus is the normalized view of a gateway transaction
type GatewayStatus string

const (
	GatewayStatusCaptured GatewayStatus = "CAPTURED"
	GatewayStatusPending  GatewayStatus = "PENDING"
	GatewayStatusFailed   GatewayStatus = "FAILED"
)

// GatewayTransaction is what the gateway currently knows about an order id
type GatewayTransaction struct {
	OrderID     string        `json:"order_id"`
	Status      GatewayStatus `json:"status"`
	RawStatus   string        `json:"raw_status"`
	PaymentType string        `json:"payment_type"`
	GrossAmount string        `json:"gross_amount"`
}

// Gateway is the hosted-checkout provider used by PaymentService
type Gateway interface {
	CreateTransaction(ctx context.Context, req *snap.Request) (*snap.Response, error)
	CheckTransaction(ctx context.Context, orderID string) (*GatewayTransaction, error)
	CancelTransaction(ctx context.Context, orderID string) error
}

// NormalizeMidtransStatus maps Midtrans transaction and fraud statuses to GatewayStatus
func NormalizeMidtransStatus(transactionStatus, fraudStatus string) GatewayStatus {
	switch transactionStatus {
	case "settlement":
		return GatewayStatusCaptured
	case "capture":
		if fraudStatus == "" || fraudStatus == "accept" {
			return GatewayStatusCaptured
		}
		return GatewayStatusPending
	case "deny", "cancel", "expire", "failure":
		return GatewayStatusFailed
	default:
		return GatewayStatusPending
	}
}

type MidtransService struct {
	SnapClient snap.Client
	CoreClient coreapi.Client
	serverKey  string
}

func NewMidtransService(serverKey, clientKey string, production bool) *MidtransService {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}

	var s snap.Client
	s.New(serverKey, env)

	var c coreapi.Client
	c.New(serverKey, env)

	midtrans.ServerKey = serverKey
	midtrans.ClientKey = clientKey
	midtrans.Environment = env

	return &MidtransService{
		SnapClient: s,
		CoreClient: c,
		serverKey:  serverKey,
	}
}

// CreateTransaction creates a Snap transaction and returns the redirect URL and token
func (s *MidtransService) CreateTransaction(ctx context.Context, req *snap.Request) (*snap.Response, error) {
	resp, mErr := s.SnapClient.CreateTransaction(req)
	if mErr != nil {
		return nil, classifyMidtransError(mErr)
	}
	return resp, nil
}

// CheckTransaction asks the Core API for the current status of orderID
func (s *MidtransService) CheckTransaction(ctx context.Context, orderID string) (*GatewayTransaction, error) {
	resp, mErr := s.CoreClient.CheckTransaction(orderID)
	if mErr != nil {
		return nil, classifyMidtransError(mErr)
	}
	return &GatewayTransaction{
		OrderID:     resp.OrderID,
		Status:      NormalizeMidtransStatus(resp.TransactionStatus, resp.FraudStatus),
		RawStatus:   resp.TransactionStatus,
		PaymentType: resp.PaymentType,
		GrossAmount: resp.GrossAmount,
	}, nil
}

func (s *MidtransService) CancelTransaction(ctx context.Context, orderID string) error {
	if _, mErr := s.CoreClient.CancelTransaction(orderID); mErr != nil {
		return classifyMidtransError(mErr)
	}
	return nil
}

// VerifySignature checks a notification signature:
// SHA512(order_id + status_code + gross_amount + server key).
func (s *MidtransService) VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool {
	return VerifyMidtransSignature(s.serverKey, orderID, statusCode, grossAmount, signatureKey)
}

func VerifyMidtransSignature(serverKey, orderID, statusCode, grossAmount, signatureKey string) bool {
	if serverKey == "" || signatureKey == "" {
		return false
	}
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signatureKey)) == 1
}

// classifyMidtransError turns a Midtrans error into a GatewayError
func classifyMidtransError(mErr *midtrans.Error) error {
	kind := GatewayErrorTechnical
	var netErr net.Error
	if mErr.RawError != nil && errors.As(mErr.RawError, &netErr) {
		kind = GatewayErrorNetwork
	} else if mErr.StatusCode == 0 || mErr.StatusCode >= 500 {
		kind = GatewayErrorNetwork
	}
	return &GatewayError{Kind: kind, Err: errors.New(mErr.Error())}
}
