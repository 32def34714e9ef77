package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"m3roodi/internal/middleware"
	"m3roodi/internal/services"
)

// SessionDuration is how long a login stays valid
const SessionDuration = 5 * 24 * time.Hour

// AuthHandler exchanges Firebase ID tokens for session cookies
type AuthHandler struct {
	authn        services.Authenticator
	users        *services.UserService
	log          *logrus.Logger
	secureCookie bool
}

func NewAuthHandler(authn services.Authenticator, users *services.UserService, log *logrus.Logger, secureCookie bool) *AuthHandler {
	return &AuthHandler{authn: authn, users: users, log: log, secureCookie: secureCookie}
}

// HandleLogin verifies the bearer ID token and sets the session cookie
func (h *AuthHandler) HandleLogin(c echo.Context) error {
	if h.authn == nil {
		return services.ErrAuthNotConfigured
	}

	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	idToken := strings.TrimPrefix(authHeader, "Bearer ")
	if idToken == authHeader {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}

	ctx := c.Request().Context()
	claims, err := h.authn.VerifyIDToken(ctx, idToken)
	if err != nil {
		h.log.WithError(err).Warn("id token rejected")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	cookieValue, err := h.authn.SessionCookie(ctx, idToken, SessionDuration)
	if err != nil {
		h.log.WithError(err).Error("failed to create session cookie")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create session")
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    cookieValue,
		MaxAge:   int(SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})

	user, err := h.users.EnsureFromClaims(ctx, claims)
	if err != nil {
		h.log.WithError(err).WithField("uid", claims.UID).Warn("could not sync user record")
	}
	return respond(c, http.StatusOK, "تم تسجيل الدخول / Logged in", map[string]interface{}{"user": user})
}

func (h *AuthHandler) HandleLogout(c echo.Context) error {
	middleware.ClearSessionCookie(c)
	return respond(c, http.StatusOK, "تم تسجيل الخروج / Logged out", nil)
}

type sessionResponse struct {
	Authenticated bool                    `json:"authenticated"`
	Admin         bool                    `json:"admin"`
	User          *services.SessionClaims `json:"user,omitempty"`
}

// Session reports who is logged in. It never fails on a missing or bad cookie.
func (h *AuthHandler) Session(c echo.Context) error {
	cookie, err := c.Cookie(middleware.SessionCookieName)
	if h.authn == nil || err != nil || cookie.Value == "" {
		return respond(c, http.StatusOK, "", sessionResponse{})
	}
	ctx := c.Request().Context()
	claims, err := h.authn.VerifySessionCookie(ctx, cookie.Value)
	if err != nil {
		middleware.ClearSessionCookie(c)
		return respond(c, http.StatusOK, "", sessionResponse{})
	}
	admin, err := h.users.IsAdmin(ctx, claims)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", sessionResponse{Authenticated: true, Admin: admin, User: claims})
}
