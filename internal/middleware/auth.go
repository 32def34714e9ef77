package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"m3roodi/internal/services"
)

// SessionCookieName is the cookie holding the Firebase session
const SessionCookieName = "session"

const claimsKey = "claims"

// Claims returns the identity RequireAuth stored on the context, or nil
func Claims(c echo.Context) *services.SessionClaims {
	claims, _ := c.Get(claimsKey).(*services.SessionClaims)
	return claims
}

func ClearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Path:     "/",
	})
}

// RequireAuth verifies the session cookie, or a bearer ID token for API clients
func RequireAuth(authn services.Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if authn == nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "authentication is not configured")
			}

			ctx := c.Request().Context()
			var (
				claims *services.SessionClaims
				err    error
			)
			if cookie, cerr := c.Cookie(SessionCookieName); cerr == nil && cookie.Value != "" {
				claims, err = authn.VerifySessionCookie(ctx, cookie.Value)
				if err != nil {
					ClearSessionCookie(c)
				}
			} else if token := bearerToken(c.Request()); token != "" {
				claims, err = authn.VerifyIDToken(ctx, token)
			} else {
				return echo.NewHTTPError(http.StatusUnauthorized, "login required")
			}
			if err != nil {
				c.Logger().Warnf("session verification failed: %v", err)
				return echo.NewHTTPError(http.StatusUnauthorized, "session expired, please log in again")
			}

			c.Set(claimsKey, claims)
			c.Set("userUID", claims.UID)
			c.Set("userEmail", claims.Email)
			return next(c)
		}
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		return ""
	}
	return strings.TrimSpace(token)
}

// AdminChecker decides whether a verified identity may use the admin console
type AdminChecker interface {
	IsAdmin(ctx context.Context, claims *services.SessionClaims) (bool, error)
}

// RequireAdmin must run after RequireAuth
func RequireAdmin(admins AdminChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := Claims(c)
			if claims == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "login required")
			}
			ok, err := admins.IsAdmin(c.Request().Context(), claims)
			if err != nil {
				return err
			}
			if !ok {
				return echo.NewHTTPError(http.StatusForbidden, "admin access required")
			}
			return next(c)
		}
	}
}
