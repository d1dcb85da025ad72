package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/enginex/gate/cache"
	"github.com/enginex/gate/domain"
	gateerrors "github.com/enginex/gate/errors"
)

// SessionCookieName is the browser-held session identifier cookie.
const SessionCookieName = "gate_sid"

const sessionContextKey = "gate_session"

// Session loads the visitor's session from the store, creating a fresh one
// (and setting the cookie) when none exists. Handlers retrieve it with
// SessionFromContext and persist changes through the store themselves.
func Session(store cache.SessionStore, ttl time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			var session *domain.Session
			if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				if found, err := store.Get(ctx, cookie.Value); err == nil {
					session = found
				}
			}

			if session == nil {
				session = &domain.Session{
					ID:        uuid.NewString(),
					Stage:     domain.FlowStageStart,
					CreatedAt: time.Now(),
				}
				if err := store.Set(ctx, session); err != nil {
					return c.JSON(http.StatusInternalServerError, gateerrors.NewServerError("failed to create session"))
				}

				c.SetCookie(&http.Cookie{
					Name:     SessionCookieName,
					Value:    session.ID,
					Path:     "/",
					MaxAge:   int(ttl.Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			c.Set(sessionContextKey, session)

			return next(c)
		}
	}
}

// SessionFromContext returns the session loaded by the Session middleware, or
// nil when the middleware did not run.
func SessionFromContext(c echo.Context) *domain.Session {
	session, _ := c.Get(sessionContextKey).(*domain.Session)
	return session
}

// RequireBoundSession guards the process stage: a session with neither a
// credential nor an allow-listed key bound is rejected with an access-denied
// response. The login and redirect routes are not guarded by this.
func RequireBoundSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session := SessionFromContext(c)
			if session == nil || !session.Bound() {
				return c.JSON(http.StatusForbidden, gateerrors.NewSessionInvalid("Access denied: Invalid session."))
			}

			return next(c)
		}
	}
}
