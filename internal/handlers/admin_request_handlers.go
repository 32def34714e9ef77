package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"m3roodi/internal/models"
	"m3roodi/internal/services"
)

// AdminRequestHandler backs the admin order console
type AdminRequestHandler struct {
	requests *services.RequestService
}

func NewAdminRequestHandler(requests *services.RequestService) *AdminRequestHandler {
	return &AdminRequestHandler{requests: requests}
}

// ListRequests filters by status, purpose and a free-text q; 20 per page
func (h *AdminRequestHandler) ListRequests(c echo.Context) error {
	status := models.RequestStatus(strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))))
	if status != "" && !status.Valid() {
		return &services.ValidationError{Fields: map[string]string{"status": "unknown status"}}
	}
	page, err := h.requests.List(c.Request().Context(), services.RequestFilter{
		Status:  status,
		Purpose: strings.TrimSpace(c.QueryParam("purpose")),
		Query:   strings.TrimSpace(c.QueryParam("q")),
		Page:    queryInt(c, "page", 1),
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", page)
}

type requestDetail struct {
	*models.Request
	OrderNumber string                `json:"order_number"`
	Events      []models.PaymentEvent `json:"payment_events"`
}

func (h *AdminRequestHandler) GetRequest(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	req, err := h.requests.Get(ctx, id)
	if err != nil {
		return err
	}
	events, err := h.requests.PaymentEvents(ctx, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", requestDetail{Request: req, OrderNumber: req.OrderNumber(), Events: events})
}

func (h *AdminRequestHandler) UpdateRequest(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in services.RequestUpdateInput
	if err := bind(c, &in); err != nil {
		return err
	}
	req, err := h.requests.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "تم تحديث الطلب / Request updated", req)
}

type statusInput struct {
	Status models.RequestStatus `json:"status" validate:"required"`
}

func (h *AdminRequestHandler) UpdateStatus(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in statusInput
	if err := bind(c, &in); err != nil {
		return err
	}
	req, err := h.requests.UpdateStatus(c.Request().Context(), id, models.RequestStatus(strings.ToUpper(string(in.Status))))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "تم تحديث الحالة / Status updated", req)
}

type markPaidInput struct {
	Reference string `json:"reference" validate:"max=255"`
}

// MarkPaid records an offline payment confirmed by an admin
func (h *AdminRequestHandler) MarkPaid(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in markPaidInput
	if c.Request().ContentLength > 0 {
		if err := bind(c, &in); err != nil {
			return err
		}
	}
	ref := in.Reference
	if ref == "" {
		ref = getStringFromContext(c, "userEmail")
	}

	result, err := h.requests.MarkAsPaid(c.Request().Context(), id, ref)
	if err != nil {
		return err
	}
	message := "تم تأكيد الدفع / Payment recorded"
	if !result.Applied {
		message = "الطلب مدفوع مسبقاً / Request was already paid"
	}
	return respond(c, http.StatusOK, message, map[string]interface{}{
		"request": result.Request,
		"applied": result.Applied,
	})
}

func (h *AdminRequestHandler) DeleteRequest(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requests.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "تم حذف الطلب / Request deleted", nil)
}
