package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/enginex/gate/services"
)

const trustScoreContextKey = "gate_trust_score"

// TrustGate runs the trust evaluator before every gated stage. A denied
// visitor is redirected to the fallback destination and never reaches the
// stage's own logic.
func TrustGate(trust *services.TrustService, fallbackURL string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			decision := trust.Evaluate(req.Context(), &services.TrustRequest{
				Path:      req.URL.Path,
				Method:    req.Method,
				ClientIP:  ClientIP(req),
				UserAgent: req.UserAgent(),
				Header:    req.Header,
			})

			if !decision.Allowed {
				return c.Redirect(http.StatusFound, fallbackURL)
			}

			c.Set(trustScoreContextKey, decision.Score)

			return next(c)
		}
	}
}

// TrustScoreFromContext returns the score recorded by TrustGate, or -1 when
// the middleware did not run.
func TrustScoreFromContext(c echo.Context) int {
	if score, ok := c.Get(trustScoreContextKey).(int); ok {
		return score
	}
	return -1
}
