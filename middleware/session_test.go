package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enginex/gate/cache"
	"github.com/enginex/gate/domain"
)

func newSessionTestStore(t *testing.T) cache.SessionStore {
	t.Helper()
	store := cache.NewMemorySessionStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSession_CreatesFreshSession(t *testing.T) {
	store := newSessionTestStore(t)
	e := echo.New()

	var seen *domain.Session
	handler := Session(store, time.Hour)(func(c echo.Context) error {
		seen = SessionFromContext(c)
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/login", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))

	require.NotNil(t, seen)
	assert.Equal(t, domain.FlowStageStart, seen.Stage)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.Equal(t, seen.ID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestSession_ReusesExistingSession(t *testing.T) {
	store := newSessionTestStore(t)
	e := echo.New()

	existing := &domain.Session{
		ID:           "sid-1",
		CredentialID: "tok-1",
		Stage:        domain.FlowStageAwaitingProcess,
	}
	require.NoError(t, store.Set(httptest.NewRequest("GET", "/", nil).Context(), existing))

	var seen *domain.Session
	handler := Session(store, time.Hour)(func(c echo.Context) error {
		seen = SessionFromContext(c)
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/process", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sid-1"})
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))

	require.NotNil(t, seen)
	assert.Equal(t, "tok-1", seen.CredentialID)
	assert.Empty(t, rec.Result().Cookies(), "no new cookie for an existing session")
}

func TestRequireBoundSession_RejectsUnbound(t *testing.T) {
	e := echo.New()

	handler := RequireBoundSession()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/process", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(sessionContextKey, &domain.Session{ID: "sid-1"})

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireBoundSession_AllowsBound(t *testing.T) {
	e := echo.New()

	handler := RequireBoundSession()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/process", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(sessionContextKey, &domain.Session{ID: "sid-1", AllowKeyID: "KEY1"})

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireBoundSession_RejectsMissingSession(t *testing.T) {
	e := echo.New()

	handler := RequireBoundSession()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/process", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, handler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
