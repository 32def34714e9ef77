package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"m3roodi/internal/middleware"
	"m3roodi/internal/pricing"
	"m3roodi/internal/services"
)

// PublicHandler serves the customer ordering flow
type PublicHandler struct {
	requests  *services.RequestService
	coupons   *services.CouponService
	payments  *services.PaymentService
	transfers *services.BankTransferService
	users     *services.UserService
	authn     services.Authenticator
	log       *logrus.Logger
}

func NewPublicHandler(requests *services.RequestService, coupons *services.CouponService, payments *services.PaymentService, transfers *services.BankTransferService, users *services.UserService, authn services.Authenticator, log *logrus.Logger) *PublicHandler {
	return &PublicHandler{
		requests:  requests,
		coupons:   coupons,
		payments:  payments,
		transfers: transfers,
		users:     users,
		authn:     authn,
		log:       log,
	}
}

type pricingResponse struct {
	Currency  string            `json:"currency"`
	Purposes  []pricing.Purpose `json:"purposes"`
	Price     *int              `json:"price,omitempty"`
	Purpose   string            `json:"purpose,omitempty"`
	Catalogue bool              `json:"in_catalogue,omitempty"`
}

// Pricing lists the catalogue, or prices a single purpose with ?purpose=
func (h *PublicHandler) Pricing(c echo.Context) error {
	resp := pricingResponse{Currency: pricing.Currency, Purposes: pricing.Purposes()}
	if purpose := strings.TrimSpace(c.QueryParam("purpose")); purpose != "" {
		price := pricing.Lookup(purpose)
		resp.Price = &price
		resp.Purpose = pricing.Label(purpose)
		resp.Catalogue = pricing.Known(purpose)
	}
	return respond(c, http.StatusOK, "", resp)
}

type submitResponse struct {
	RequestID   uint    `json:"requestId"`
	OrderNumber string  `json:"orderNumber"`
	Price       float64 `json:"price"`
	Status      string  `json:"status"`
}

// SubmitRequest stores a new order. A logged-in customer gets it linked to their account.
func (h *PublicHandler) SubmitRequest(c echo.Context) error {
	var in services.SubmitRequestInput
	if err := c.Bind(&in); err != nil {
		return &services.ValidationError{Fields: map[string]string{"body": "صيغة الطلب غير صحيحة / malformed request body"}}
	}
	in.UserID = h.optionalUserID(c)

	req, err := h.requests.Submit(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "تم استلام طلبك / Request received", submitResponse{
		RequestID:   req.ID,
		OrderNumber: req.OrderNumber(),
		Price:       req.Price,
		Status:      string(req.Status),
	})
}

// optionalUserID links the request to a session user when one is present; failures are ignored
func (h *PublicHandler) optionalUserID(c echo.Context) *uint {
	if h.authn == nil || h.users == nil {
		return nil
	}
	cookie, err := c.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	ctx := c.Request().Context()
	claims, err := h.authn.VerifySessionCookie(ctx, cookie.Value)
	if err != nil {
		return nil
	}
	user, err := h.users.EnsureFromClaims(ctx, claims)
	if err != nil {
		h.log.WithError(err).Warn("could not link request to user")
		return nil
	}
	return &user.ID
}

type validateCouponInput struct {
	Code    string  `json:"code" validate:"required"`
	Amount  float64 `json:"amount" validate:"gte=0"`
	Purpose string  `json:"purpose"`
}

// ValidateCoupon previews a discount without redeeming the coupon
func (h *PublicHandler) ValidateCoupon(c echo.Context) error {
	var in validateCouponInput
	if err := bind(c, &in); err != nil {
		return err
	}
	amount := in.Amount
	if amount == 0 && in.Purpose != "" {
		amount = float64(pricing.Lookup(in.Purpose))
	}

	result, err := h.coupons.Validate(c.Request().Context(), in.Code, amount)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", result)
}

func (h *PublicHandler) CreatePayment(c echo.Context) error {
	var in services.CreatePaymentInput
	if err := bind(c, &in); err != nil {
		return err
	}
	result, err := h.payments.CreatePayment(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", result)
}

// ActiveSession reports whether the request already has an open checkout.
// The caller must pass the request's email as ?email=.
func (h *PublicHandler) ActiveSession(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	session, err := h.payments.ActiveSession(c.Request().Context(), id, c.QueryParam("email"))
	if err != nil {
		return err
	}
	data := map[string]interface{}{"active": session != nil}
	if session != nil {
		data["redirect_url"] = session.RedirectURL
		data["order_id"] = session.OrderID
	}
	return respond(c, http.StatusOK, "", data)
}

// Webhook receives Midtrans HTTP notifications
func (h *PublicHandler) Webhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, 64<<10))
	if err != nil {
		return &services.ValidationError{Fields: map[string]string{"body": "unreadable body"}}
	}
	result, err := h.payments.HandleNotification(c.Request().Context(), payload)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", result)
}

// Verify is read-only: it reports the payment state without persisting it
func (h *PublicHandler) Verify(c echo.Context) error {
	orderNumber := strings.TrimSpace(c.QueryParam("orderNumber"))
	if orderNumber == "" {
		orderNumber = strings.TrimSpace(c.QueryParam("order_id"))
	}
	if orderNumber == "" {
		return &services.ValidationError{Fields: map[string]string{"orderNumber": "required"}}
	}
	result, err := h.payments.VerifyPayment(c.Request().Context(), orderNumber, c.QueryParam("email"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", result)
}

// BankTransfer emails bank details for paying outside the gateway
func (h *PublicHandler) BankTransfer(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	req, err := h.transfers.SendInstructions(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "تم إرسال بيانات التحويل إلى بريدك / Bank transfer details sent", map[string]interface{}{
		"orderNumber":    req.OrderNumber(),
		"payment_method": req.PaymentMethod,
	})
}
