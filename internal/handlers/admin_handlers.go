package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"m3roodi/internal/models"
	"m3roodi/internal/services"
)

type CouponHandler struct {
	coupons *services.CouponService
}

func NewCouponHandler(coupons *services.CouponService) *CouponHandler {
	return &CouponHandler{coupons: coupons}
}

func (h *CouponHandler) ListCoupons(c echo.Context) error {
	coupons, err := h.coupons.List(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", coupons)
}

func (h *CouponHandler) StoreCoupon(c echo.Context) error {
	var in services.CouponInput
	if err := c.Bind(&in); err != nil {
		return &services.ValidationError{Fields: map[string]string{"body": "malformed request body"}}
	}
	coupon, err := h.coupons.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "تم إنشاء الكوبون / Coupon created", coupon)
}

func (h *CouponHandler) UpdateCoupon(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in services.CouponInput
	if err := c.Bind(&in); err != nil {
		return &services.ValidationError{Fields: map[string]string{"body": "malformed request body"}}
	}
	coupon, err := h.coupons.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "تم تحديث الكوبون / Coupon updated", coupon)
}

func (h *CouponHandler) DeleteCoupon(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.coupons.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "تم حذف الكوبون / Coupon deleted", nil)
}

type ReminderHandler struct {
	reminders *services.ReminderService
}

func NewReminderHandler(reminders *services.ReminderService) *ReminderHandler {
	return &ReminderHandler{reminders: reminders}
}

func (h *ReminderHandler) ListReminders(c echo.Context) error {
	filter := services.ReminderFilter{
		Status: models.ReminderStatus(strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))),
		Page:   queryInt(c, "page", 1),
	}
	if rid := queryInt(c, "request_id", 0); rid > 0 {
		id := uint(rid)
		filter.RequestID = &id
	}
	page, err := h.reminders.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", page)
}

// SendReminder sends one reminder. A failed delivery still returns the audit row.
func (h *ReminderHandler) SendReminder(c echo.Context) error {
	var in services.ManualReminderInput
	if err := c.Bind(&in); err != nil {
		return &services.ValidationError{Fields: map[string]string{"body": "malformed request body"}}
	}
	reminder, err := h.reminders.SendManual(c.Request().Context(), in)
	if err != nil {
		if reminder == nil {
			return err
		}
		return c.JSON(http.StatusBadGateway, Response{
			Success: false,
			Message: "تعذر إرسال التذكير / Reminder could not be sent",
			Data:    reminder,
		})
	}
	return respond(c, http.StatusOK, "تم إرسال التذكير / Reminder sent", reminder)
}

func (h *ReminderHandler) SendBatch(c echo.Context) error {
	var in services.BatchReminderInput
	if err := c.Bind(&in); err != nil {
		return &services.ValidationError{Fields: map[string]string{"body": "malformed request body"}}
	}
	result, err := h.reminders.SendBatch(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, result.Summary(), result)
}
