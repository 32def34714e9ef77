package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"m3roodi/internal/models"
	"m3roodi/internal/pages"
	"m3roodi/internal/reconcile"
	"m3roodi/internal/services"
)

// RedirectHandler drives reconciliation when the customer comes back from the gateway
type RedirectHandler struct {
	payments     *services.PaymentService
	log          *logrus.Logger
	supportEmail string
	pollerOpts   []reconcile.Option
}

func NewRedirectHandler(payments *services.PaymentService, log *logrus.Logger, supportEmail string, opts ...reconcile.Option) *RedirectHandler {
	return &RedirectHandler{payments: payments, log: log, supportEmail: supportEmail, pollerOpts: opts}
}

// canonicalOrderNumber maps a gateway attempt id like RF42-2 back to RF42
func canonicalOrderNumber(orderNumber string) string {
	id, err := models.ParseOrderNumber(orderNumber)
	if err != nil {
		return orderNumber
	}
	return models.OrderNumberFor(id)
}

func (h *RedirectHandler) check(ctx context.Context, orderNumber string) (bool, error) {
	result, err := h.payments.VerifyPayment(ctx, orderNumber, "")
	if err != nil {
		h.log.WithError(err).WithField("order_number", orderNumber).Debug("verify attempt failed")
		return false, err
	}
	return result.Status == services.VerifyStatusCompleted, nil
}

// PaymentRedirect polls verification until the payment is confirmed or the
// attempts run out, then redirects to the success or failure page.
func (h *RedirectHandler) PaymentRedirect(c echo.Context) error {
	query := c.QueryParams()
	var pending string
	if cookie, err := c.Cookie(reconcile.PendingRequestCookie); err == nil {
		pending = cookie.Value
	}

	orderNumber := reconcile.ResolveOrderNumber(query, pending, timeNow(), models.OrderNumberPrefix)
	if orderNumber != "" {
		orderNumber = canonicalOrderNumber(orderNumber)
	}
	entry := h.log.WithField("order_number", orderNumber)

	if orderNumber != "" && reconcile.RedirectFailed(query) {
		entry.Info("gateway reported a failed payment on redirect")
		return c.Redirect(http.StatusSeeOther, reconcile.FailureURL(orderNumber, reconcile.ReasonGatewayFailure))
	}

	out := reconcile.NewPoller(h.check, h.pollerOpts...).Run(c.Request().Context(), orderNumber)
	if out.State != reconcile.StateSuccess {
		entry.WithFields(logrus.Fields{"reason": out.Reason, "attempts": out.Attempts}).Warn("payment not confirmed")
		return c.Redirect(http.StatusSeeOther, reconcile.FailureURL(orderNumber, out.Reason))
	}

	clearPendingCookie(c)
	entry.WithField("attempts", out.Attempts).Info("payment confirmed on redirect")
	return c.Redirect(http.StatusSeeOther, reconcile.SuccessURL(orderNumber, h.summary(c.Request().Context(), orderNumber)))
}

func (h *RedirectHandler) summary(ctx context.Context, orderNumber string) *reconcile.Summary {
	snap, err := h.payments.CheckoutSnapshot(ctx, orderNumber)
	if err != nil {
		h.log.WithError(err).Warn("checkout snapshot unavailable")
		return nil
	}
	if snap == nil {
		return nil
	}
	return &reconcile.Summary{
		Name:           snap.Name,
		Purpose:        snap.Purpose,
		Recipient:      snap.Recipient,
		Price:          snap.Price,
		DiscountAmount: snap.DiscountAmount,
		FinalPrice:     snap.FinalPrice,
		CouponCode:     snap.CouponCode,
	}
}

func clearPendingCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{Name: reconcile.PendingRequestCookie, Value: "", MaxAge: -1, Path: "/"})
}

func (h *RedirectHandler) Success(c echo.Context) error {
	props := pages.PaymentSuccessProps{
		OrderNumber:  c.QueryParam("orderNumber"),
		Summary:      reconcile.SummaryFromQuery(c.QueryParams()),
		SupportEmail: h.supportEmail,
	}
	return renderPage(c, http.StatusOK, pages.PaymentSuccess(props))
}

func (h *RedirectHandler) Failed(c echo.Context) error {
	reason := c.QueryParam("reason")
	if reason == "" {
		reason = reconcile.ReasonGatewayFailure
	}
	props := pages.PaymentFailedProps{
		OrderNumber:  c.QueryParam("orderNumber"),
		Reason:       reason,
		SupportEmail: h.supportEmail,
	}
	return renderPage(c, http.StatusOK, pages.PaymentFailed(props))
}
