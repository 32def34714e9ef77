package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"m3roodi/internal/pages"
	"m3roodi/internal/services"
)

// ErrorBody is the JSON envelope of every failed API call
type ErrorBody struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// StatusFor maps an error returned by a handler to an HTTP status and envelope
func StatusFor(err error) (int, ErrorBody) {
	body := ErrorBody{Success: false}

	var (
		he   *echo.HTTPError
		verr *services.ValidationError
		gerr *services.GatewayError
		eerr *services.EmailError
	)
	switch {
	case errors.As(err, &he):
		body.Message = http.StatusText(he.Code)
		if msg, ok := he.Message.(string); ok && msg != "" {
			body.Message = msg
		}
		return he.Code, body
	case errors.As(err, &verr):
		body.Message = "بيانات غير صالحة / Invalid input"
		body.Code = "validation"
		body.Errors = verr.Fields
		return http.StatusBadRequest, body
	case errors.As(err, &gerr):
		body.Message = gerr.Message()
		body.Code = string(gerr.Kind)
		if gerr.Kind == services.GatewayErrorBadAmount || gerr.Kind == services.GatewayErrorIncompleteCustomer {
			return http.StatusBadRequest, body
		}
		return http.StatusBadGateway, body
	case errors.As(err, &eerr):
		body.Message = "تعذر إرسال البريد الإلكتروني / Failed to send email"
		body.Code = "email"
		return http.StatusBadGateway, body
	}

	for _, m := range sentinelStatuses {
		if errors.Is(err, m.err) {
			body.Message = m.message
			body.Code = m.code
			return m.status, body
		}
	}

	body.Message = "حدث خطأ غير متوقع / Something went wrong, please try again later"
	return http.StatusInternalServerError, body
}

var sentinelStatuses = []struct {
	err     error
	status  int
	code    string
	message string
}{
	{services.ErrRequestNotFound, http.StatusNotFound, "request_not_found", "الطلب غير موجود / Request not found"},
	{services.ErrUserNotFound, http.StatusNotFound, "user_not_found", "المستخدم غير موجود / User not found"},
	{services.ErrCouponNotFound, http.StatusNotFound, "coupon_not_found", "كود الخصم غير صحيح / Coupon not found"},
	{services.ErrCouponExpired, http.StatusBadRequest, "coupon_expired", "كود الخصم منتهي الصلاحية / Coupon expired"},
	{services.ErrCouponInactive, http.StatusBadRequest, "coupon_inactive", "كود الخصم غير مفعل / Coupon inactive"},
	{services.ErrInvalidTransition, http.StatusConflict, "invalid_transition", "لا يمكن تغيير حالة الطلب بهذا الشكل / Invalid status transition"},
	{services.ErrAlreadyPaid, http.StatusConflict, "already_paid", "تم دفع هذا الطلب مسبقاً / Payment already completed"},
	{services.ErrRequestCancelled, http.StatusConflict, "request_cancelled", "الطلب ملغي / Request cancelled"},
	{services.ErrInvalidSignature, http.StatusForbidden, "invalid_signature", "توقيع غير صالح / Invalid signature"},
	{services.ErrAuthNotConfigured, http.StatusServiceUnavailable, "auth_not_configured", "authentication is not configured"},
	{services.ErrSMTPNotConfigured, http.StatusServiceUnavailable, "email_not_configured", "email delivery is not configured"},
}

// CustomErrorHandler answers /api routes with the JSON envelope and renders an
// HTML error page everywhere else
func CustomErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, body := StatusFor(err)
	if code >= http.StatusInternalServerError {
		c.Logger().Error(err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else if strings.HasPrefix(c.Request().URL.Path, "/api/") || strings.HasPrefix(c.Request().URL.Path, "/auth/") {
		err = c.JSON(code, body)
	} else {
		c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
		c.Response().WriteHeader(code)
		props := pages.ErrorPageProps{Code: code, Title: http.StatusText(code), Message: body.Message}
		err = pages.ErrorPage(props).Render(c.Request().Context(), c.Response())
	}
	if err != nil {
		c.Logger().Error(err)
	}
}
