package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"m3roodi/internal/emails"
	"m3roodi/internal/models"
)

// BankAccount is where customers paying by transfer send money
type BankAccount struct {
	Name        string
	IBAN        string
	Beneficiary string
}

type BankTransferService struct {
	requests *RequestService
	mailer   Mailer
	log      *logrus.Logger
	account  BankAccount
	support  emails.Support
}

func NewBankTransferService(requests *RequestService, mailer Mailer, log *logrus.Logger, account BankAccount, support emails.Support) *BankTransferService {
	return &BankTransferService{requests: requests, mailer: mailer, log: log, account: account, support: support}
}

// SendInstructions emails transfer details for a request and switches it to
// bank transfer. The request stays unpaid until an admin marks it paid.
func (s *BankTransferService) SendInstructions(ctx context.Context, requestID uint) (*models.Request, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.IsPaid() {
		return nil, ErrAlreadyPaid
	}
	if req.Status == models.RequestStatusCancelled {
		return nil, ErrRequestCancelled
	}
	if s.account.IBAN == "" {
		return nil, newValidationError("iban", "bank account is not configured")
	}

	props := emails.BankTransferProps{
		Name:        req.ApplicantName,
		OrderNumber: req.OrderNumber(),
		Purpose:     req.Purpose,
		Amount:      req.Payable(),
		BankName:    s.account.Name,
		IBAN:        s.account.IBAN,
		Beneficiary: s.account.Beneficiary,
		Support:     s.support,
	}
	html, err := emails.Render(ctx, emails.BankTransfer(props))
	if err != nil {
		return nil, err
	}

	email := Email{
		To:      req.Email,
		Subject: emails.BankTransferSubject(req.OrderNumber()),
		HTML:    html,
		Text:    emails.BankTransferText(props),
	}
	if err := s.mailer.Send(ctx, email); err != nil {
		s.log.WithError(err).WithField("request_id", req.ID).Warn("bank transfer email failed")
		return nil, &EmailError{To: req.Email, Err: err}
	}

	if err := s.requests.SetPaymentMethod(ctx, req.ID, models.PaymentMethodBankTransfer); err != nil {
		return nil, err
	}
	req.PaymentMethod = models.PaymentMethodBankTransfer

	s.log.WithField("request_id", req.ID).Info("bank transfer instructions sent")
	return req, nil
}
