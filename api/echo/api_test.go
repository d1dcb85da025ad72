package echo_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gateapi "github.com/enginex/gate/api"
	echoapi "github.com/enginex/gate/api/echo"
	"github.com/enginex/gate/cache"
	"github.com/enginex/gate/config"
	"github.com/enginex/gate/internal/payload"
	"github.com/enginex/gate/log"
	"github.com/enginex/gate/services"
)

const (
	testFallbackURL = "https://fallback.example.com"
	testWindowsURL  = "https://win.example.com"
)

// mapPayloadResolver resolves identifiers from a fixed map.
type mapPayloadResolver map[string]string

func (m mapPayloadResolver) Resolve(_ context.Context, identifier string) (string, error) {
	if value, ok := m[identifier]; ok {
		return value, nil
	}
	return "", payload.ErrNotFound
}

type apiFixture struct {
	server *echo.Echo
}

// newAPIFixture wires the full gate API in Token mode with test mode enabled
// so the trust gate passes without a reputation collaborator.
func newAPIFixture(t *testing.T, mutate func(*services.GateServiceOptions)) *apiFixture {
	t.Helper()

	logger := log.NewZerologAdapter(zerolog.Disabled, false)

	credStore := cache.NewMemoryCredentialStore()
	t.Cleanup(func() { _ = credStore.Close() })

	sessions := cache.NewMemorySessionStore(time.Hour)
	t.Cleanup(func() { _ = sessions.Close() })

	rateWindows := cache.NewRateWindowStore(time.Minute, 5*time.Minute)
	t.Cleanup(func() { _ = rateWindows.Close() })

	trust := services.NewTrustService(services.TrustServiceOptions{
		TestMode:      true,
		ScoreOverride: true,
		RateWindows:   rateWindows,
		CallTimeout:   time.Second,
		Logger:        logger,
	})

	opts := services.GateServiceOptions{
		AuthMethod:  config.AuthMethodToken,
		FallbackURL: testFallbackURL,
		Credentials: services.NewCredentialService(credStore, false),
		Sessions:    sessions,
		Payloads:    mapPayloadResolver{"ABC": "payload-for-abc"},
		Destinations: services.NewDestinationResolver(services.OSURLs{
			Windows: testWindowsURL,
			Others:  "https://others.example.com",
		}, true),
		NotifyTimeout: time.Second,
		Logger:        logger,
	}
	if mutate != nil {
		mutate(&opts)
	}

	gate := services.NewGateService(opts)

	e := echo.New()
	echoapi.NewGateAPI(gate, trust, sessions, time.Hour).RegisterRoutes(e)

	return &apiFixture{server: e}
}

func TestGenerateHandler(t *testing.T) {
	fx := newAPIFixture(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/generate",
		strings.NewReader(`{"url":"https://dest.example.com"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	fx.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp gateapi.GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Token, 32)
	assert.Equal(t, "/r/"+resp.Token, resp.RedirectURL)
}

func TestGenerateHandler_MissingURL(t *testing.T) {
	fx := newAPIFixture(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	fx.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginHandler_MissingID(t *testing.T) {
	fx := newAPIFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	rec := httptest.NewRecorder()
	fx.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessHandler_WithoutSessionIsDenied(t *testing.T) {
	fx := newAPIFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/process?token=x&id=ABC", nil)
	rec := httptest.NewRecorder()
	fx.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoginProcessFlow_TokenMode(t *testing.T) {
	fx := newAPIFixture(t, nil)

	// /login issues a token, binds the session, and redirects to /process
	// with the token attached.
	loginReq := httptest.NewRequest(http.MethodGet, "/login?id=ABC", nil)
	loginRec := httptest.NewRecorder()
	fx.server.ServeHTTP(loginRec, loginReq)

	require.Equal(t, http.StatusFound, loginRec.Code)

	location, err := url.Parse(loginRec.Header().Get(echo.HeaderLocation))
	require.NoError(t, err)
	assert.Equal(t, "/process", location.Path)
	assert.Equal(t, "ABC", location.Query().Get("id"))
	token := location.Query().Get("token")
	require.Len(t, token, 32)

	cookies := loginRec.Result().Cookies()
	require.NotEmpty(t, cookies)

	// Process stage: payload lookup for ABC, OS-specific base URL, payload
	// appended with a single slash.
	processReq := httptest.NewRequest(http.MethodGet, location.String(), nil)
	processReq.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	for _, cookie := range cookies {
		processReq.AddCookie(cookie)
	}
	processRec := httptest.NewRecorder()
	fx.server.ServeHTTP(processRec, processReq)

	require.Equal(t, http.StatusFound, processRec.Code)
	assert.Equal(t, testWindowsURL+"/payload-for-abc", processRec.Header().Get(echo.HeaderLocation))
}

func TestLoginFlow_KeynotesMode(t *testing.T) {
	fx := newAPIFixture(t, func(opts *services.GateServiceOptions) {
		opts.AuthMethod = config.AuthMethodKeynotes
		opts.AllowKeys = []string{"KEY1"}
	})

	// Known key advances to process.
	req := httptest.NewRequest(http.MethodGet, "/login?id=KEY1", nil)
	rec := httptest.NewRecorder()
	fx.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/process?id=KEY1", rec.Header().Get(echo.HeaderLocation))

	// Unknown key is a policy denial: fallback redirect, never an error page.
	req = httptest.NewRequest(http.MethodGet, "/login?id=NOPE", nil)
	rec = httptest.NewRecorder()
	fx.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, testFallbackURL, rec.Header().Get(echo.HeaderLocation))
}

func TestRedirectHandler_WithID(t *testing.T) {
	fx := newAPIFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/r/sometoken/ABC", nil)
	rec := httptest.NewRecorder()
	fx.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/process?token=sometoken&id=ABC", rec.Header().Get(echo.HeaderLocation))
}

func TestRedirectHandler_WithoutID(t *testing.T) {
	fx := newAPIFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/r/sometoken", nil)
	rec := httptest.NewRecorder()
	fx.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/confirm?token=sometoken", rec.Header().Get(echo.HeaderLocation))
}

func TestProcessHandler_LookupFailureFallsBack(t *testing.T) {
	fx := newAPIFixture(t, nil)

	loginReq := httptest.NewRequest(http.MethodGet, "/login?id=UNKNOWN", nil)
	loginRec := httptest.NewRecorder()
	fx.server.ServeHTTP(loginRec, loginReq)
	require.Equal(t, http.StatusFound, loginRec.Code)

	location := loginRec.Header().Get(echo.HeaderLocation)
	processReq := httptest.NewRequest(http.MethodGet, location, nil)
	for _, cookie := range loginRec.Result().Cookies() {
		processReq.AddCookie(cookie)
	}
	processRec := httptest.NewRecorder()
	fx.server.ServeHTTP(processRec, processReq)

	require.Equal(t, http.StatusFound, processRec.Code)
	assert.Equal(t, testFallbackURL, processRec.Header().Get(echo.HeaderLocation))
}

func TestPassiveModeForcesFallback(t *testing.T) {
	logger := log.NewZerologAdapter(zerolog.Disabled, false)

	rateWindows := cache.NewRateWindowStore(time.Minute, 5*time.Minute)
	t.Cleanup(func() { _ = rateWindows.Close() })

	sessions := cache.NewMemorySessionStore(time.Hour)
	t.Cleanup(func() { _ = sessions.Close() })

	credStore := cache.NewMemoryCredentialStore()
	t.Cleanup(func() { _ = credStore.Close() })

	trust := services.NewTrustService(services.TrustServiceOptions{
		PassiveMode:   true,
		ScoreOverride: true,
		RateWindows:   rateWindows,
		CallTimeout:   time.Second,
		Logger:        logger,
	})
	gate := services.NewGateService(services.GateServiceOptions{
		AuthMethod:   config.AuthMethodToken,
		FallbackURL:  testFallbackURL,
		PassiveMode:  true,
		Credentials:  services.NewCredentialService(credStore, false),
		Sessions:     sessions,
		Payloads:     mapPayloadResolver{},
		Destinations: services.NewDestinationResolver(services.OSURLs{}, false),
		Logger:       logger,
	})

	e := echo.New()
	echoapi.NewGateAPI(gate, trust, sessions, time.Hour).RegisterRoutes(e)

	// Every gated request goes to the fallback destination, regardless of
	// headers or identifiers.
	for _, target := range []string{"/login?id=ABC", "/r/tok/ABC", "/r/tok"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0)")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusFound, rec.Code, target)
		assert.Equal(t, testFallbackURL, rec.Header().Get(echo.HeaderLocation), target)
	}
}
