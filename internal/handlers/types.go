package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"m3roodi/internal/services"
)

// Response is the JSON envelope of every successful API call
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func respond(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Response{Success: true, Message: message, Data: data})
}

// CustomValidator plugs the shared struct validation into c.Validate
type CustomValidator struct{}

func (cv *CustomValidator) Validate(i interface{}) error {
	return services.ValidateStruct(i)
}

// bind decodes the body into dst and validates it
func bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return &services.ValidationError{Fields: map[string]string{"body": "صيغة الطلب غير صحيحة / malformed request body"}}
	}
	return c.Validate(dst)
}

func paramID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}

func queryInt(c echo.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return fallback
	}
	return v
}

func getStringFromContext(c echo.Context, key string) string {
	val, _ := c.Get(key).(string)
	return val
}

var timeNow = time.Now

func renderPage(c echo.Context, status int, page templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(status)
	return page.Render(c.Request().Context(), c.Response())
}
