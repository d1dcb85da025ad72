package echo

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	gateapi "github.com/enginex/gate/api"
	"github.com/enginex/gate/cache"
	gateerrors "github.com/enginex/gate/errors"
	"github.com/enginex/gate/middleware"
	"github.com/enginex/gate/services"
)

// GateAPI struct to hold dependencies.
type GateAPI struct {
	gate       *services.GateService
	trust      *services.TrustService
	sessions   cache.SessionStore
	sessionTTL time.Duration
}

// NewGateAPI initializes the gate HTTP API.
func NewGateAPI(gate *services.GateService, trust *services.TrustService, sessions cache.SessionStore, sessionTTL time.Duration) *GateAPI {
	return &GateAPI{
		gate:       gate,
		trust:      trust,
		sessions:   sessions,
		sessionTTL: sessionTTL,
	}
}

// RegisterRoutes registers the gate routes. Every gated stage runs the
// session loader and the trust gate; the process stage additionally requires
// a bound session.
func (ga *GateAPI) RegisterRoutes(e *echo.Echo) {
	session := middleware.Session(ga.sessions, ga.sessionTTL)
	trustGate := middleware.TrustGate(ga.trust, ga.gate.FallbackURL())

	e.POST("/generate", ga.GenerateHandler)
	e.GET("/r/:token", ga.RedirectHandler, session, trustGate)
	e.GET("/r/:token/:id", ga.RedirectHandler, session, trustGate)
	e.GET("/login", ga.LoginHandler, session, trustGate)
	e.GET("/process", ga.ProcessHandler, session, trustGate, middleware.RequireBoundSession())
}

// GenerateHandler issues a fresh credential for a destination URL.
func (ga *GateAPI) GenerateHandler(c echo.Context) error {
	var req gateapi.GenerateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, gateerrors.NewInvalidRequest("Invalid request body"))
	}

	token, redirectPath, err := ga.gate.Generate(
		c.Request().Context(),
		req.URL,
		time.Duration(req.ExpiresIn)*time.Millisecond,
	)
	if err != nil {
		if gateErr, ok := err.(*gateerrors.GateError); ok && gateErr.Code == gateerrors.InvalidRequest {
			return c.JSON(http.StatusBadRequest, gateErr)
		}
		log.Error().Err(err).Msg("Failed to issue credential")

		return c.JSON(http.StatusInternalServerError, gateerrors.NewServerError("Failed to issue credential"))
	}

	return c.JSON(http.StatusOK, gateapi.GenerateResponse{
		Token:       token,
		RedirectURL: redirectPath,
	})
}

// LoginHandler accepts a key or token identifier, converging on the process stage.
func (ga *GateAPI) LoginHandler(c echo.Context) error {
	id := c.QueryParam("id")

	session := middleware.SessionFromContext(c)

	redirect, err := ga.gate.Login(c.Request().Context(), session, id)
	if err != nil {
		if gateErr, ok := err.(*gateerrors.GateError); ok && gateErr.Code == gateerrors.MissingCredential {
			return c.JSON(http.StatusBadRequest, gateErr)
		}
		log.Error().Err(err).Msg("Login failed")

		return c.JSON(http.StatusInternalServerError, gateerrors.NewServerError("Login failed"))
	}

	return c.Redirect(http.StatusFound, redirect)
}

// RedirectHandler handles /r links: a pre-issued credential reference with an
// optional attached identifier.
func (ga *GateAPI) RedirectHandler(c echo.Context) error {
	token := c.Param("token")
	id := c.Param("id")

	session := middleware.SessionFromContext(c)

	redirect, err := ga.gate.Redirect(c.Request().Context(), session, token, id)
	if err != nil {
		log.Error().Err(err).Msg("Redirect entry failed")

		return c.JSON(http.StatusInternalServerError, gateerrors.NewServerError("Redirect failed"))
	}

	return c.Redirect(http.StatusFound, redirect)
}

// ProcessHandler is the terminal stage: notification, payload lookup,
// destination resolution, final redirect. The bound-session guard has already
// run by the time this executes.
func (ga *GateAPI) ProcessHandler(c echo.Context) error {
	session := middleware.SessionFromContext(c)
	req := c.Request()

	redirect := ga.gate.Process(
		req.Context(),
		session,
		c.QueryParam("token"),
		c.QueryParam("id"),
		middleware.ClientIP(req),
		req.UserAgent(),
	)

	return c.Redirect(http.StatusFound, redirect)
}
