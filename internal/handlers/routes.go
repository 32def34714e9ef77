package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"m3roodi/internal/middleware"
	"m3roodi/internal/services"
)

// Router bundles everything the HTTP routes need
type Router struct {
	Public   *PublicHandler
	Redirect *RedirectHandler
	Auth     *AuthHandler
	Requests *AdminRequestHandler
	Coupons  *CouponHandler
	Reminder *ReminderHandler
	Users    *UserHandler

	Authn   services.Authenticator
	Admins  middleware.AdminChecker
	Limiter *middleware.RateLimiter
}

// Register mounts every route on e
func (r *Router) Register(e *echo.Echo) {
	e.Validator = &CustomValidator{}

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, Response{Success: true, Message: "معروضي / M3roodi"})
	})
	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	// Customer pages
	e.GET("/payment-redirect", r.Redirect.PaymentRedirect)
	e.GET("/payment/success", r.Redirect.Success)
	e.GET("/payment/failed", r.Redirect.Failed)

	// Auth
	e.POST("/auth/login", r.Auth.HandleLogin)
	e.POST("/auth/logout", r.Auth.HandleLogout)

	api := e.Group("/api")
	api.GET("/auth/session", r.Auth.Session)
	api.GET("/pricing", r.Public.Pricing)
	api.GET("/payments/verify", r.Public.Verify)
	api.POST("/payments/webhook", r.Public.Webhook)
	api.GET("/requests/:id/payment-session", r.Public.ActiveSession)

	// Endpoints that create records or send mail are throttled per IP
	var limit []echo.MiddlewareFunc
	if r.Limiter != nil {
		limit = append(limit, r.Limiter.Middleware())
	}
	api.POST("/requests", r.Public.SubmitRequest, limit...)
	api.POST("/coupons/validate", r.Public.ValidateCoupon, limit...)
	api.POST("/payments/create", r.Public.CreatePayment, limit...)
	api.POST("/requests/:id/bank-transfer", r.Public.BankTransfer, limit...)

	admin := api.Group("/admin", middleware.RequireAuth(r.Authn), middleware.RequireAdmin(r.Admins))

	admin.GET("/requests", r.Requests.ListRequests)
	admin.GET("/requests/:id", r.Requests.GetRequest)
	admin.PUT("/requests/:id", r.Requests.UpdateRequest)
	admin.DELETE("/requests/:id", r.Requests.DeleteRequest)
	admin.PATCH("/requests/:id/status", r.Requests.UpdateStatus)
	admin.POST("/requests/:id/mark-paid", r.Requests.MarkPaid)

	admin.GET("/coupons", r.Coupons.ListCoupons)
	admin.POST("/coupons", r.Coupons.StoreCoupon)
	admin.PUT("/coupons/:id", r.Coupons.UpdateCoupon)
	admin.DELETE("/coupons/:id", r.Coupons.DeleteCoupon)

	admin.GET("/reminders", r.Reminder.ListReminders)
	admin.POST("/reminders", r.Reminder.SendReminder)
	admin.POST("/reminders/batch", r.Reminder.SendBatch)

	admin.GET("/users", r.Users.ListUsers)
	admin.GET("/users/:id", r.Users.GetUser)
	admin.POST("/users", r.Users.StoreUser)
	admin.PUT("/users/:id", r.Users.UpdateUser)
	admin.DELETE("/users/:id", r.Users.DeleteUser)
}
