package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"m3roodi/internal/services"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// ListUsers supports ?q= on name and email
func (h *UserHandler) ListUsers(c echo.Context) error {
	users, err := h.users.List(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", users)
}

// GetUser returns the user with their requests
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.users.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", user)
}

func (h *UserHandler) StoreUser(c echo.Context) error {
	var in services.UserInput
	if err := bind(c, &in); err != nil {
		return err
	}
	user, err := h.users.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "تم إنشاء المستخدم / User created", user)
}

func (h *UserHandler) UpdateUser(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in services.UserInput
	if err := bind(c, &in); err != nil {
		return err
	}
	user, err := h.users.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "تم تحديث المستخدم / User updated", user)
}

// DeleteUser keeps the user's requests and unlinks them
func (h *UserHandler) DeleteUser(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.users.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "تم حذف المستخدم / User deleted", nil)
}
