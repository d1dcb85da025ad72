package services

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/enginex/gate/cache"
	"github.com/enginex/gate/config"
	"github.com/enginex/gate/domain"
	gateerrors "github.com/enginex/gate/errors"
	"github.com/enginex/gate/internal/notify"
	"github.com/enginex/gate/log"
)

// PayloadResolver resolves a token or key to its opaque payload value.
type PayloadResolver interface {
	Resolve(ctx context.Context, identifier string) (string, error)
}

// GateService is the request-level state machine binding session, credential,
// and trust decision together across the login → process flow. All
// collaborator failures are converted here; none reach the visitor.
type GateService struct {
	authMethod    string
	allowKeys     map[string]struct{}
	fallbackURL   string
	passiveMode   bool
	credentials   *CredentialService
	sessions      cache.SessionStore
	payloads      PayloadResolver
	destinations  *DestinationResolver
	notifier      notify.Notifier
	geo           notify.GeoLookup
	notifyTimeout time.Duration
	logger        log.Logger

	// notifyWG lets tests wait for in-flight fire-and-forget notifications.
	notifyWG sync.WaitGroup
}

// GateServiceOptions configures a GateService.
type GateServiceOptions struct {
	AuthMethod    string
	AllowKeys     []string
	FallbackURL   string
	PassiveMode   bool
	Credentials   *CredentialService
	Sessions      cache.SessionStore
	Payloads      PayloadResolver
	Destinations  *DestinationResolver
	Notifier      notify.Notifier
	Geo           notify.GeoLookup
	NotifyTimeout time.Duration
	Logger        log.Logger
}

// NewGateService creates the orchestrator.
func NewGateService(opts GateServiceOptions) *GateService {
	allowKeys := make(map[string]struct{}, len(opts.AllowKeys))
	for _, key := range opts.AllowKeys {
		allowKeys[key] = struct{}{}
	}

	return &GateService{
		authMethod:    opts.AuthMethod,
		allowKeys:     allowKeys,
		fallbackURL:   opts.FallbackURL,
		passiveMode:   opts.PassiveMode,
		credentials:   opts.Credentials,
		sessions:      opts.Sessions,
		payloads:      opts.Payloads,
		destinations:  opts.Destinations,
		notifier:      opts.Notifier,
		geo:           opts.Geo,
		notifyTimeout: opts.NotifyTimeout,
		logger:        opts.Logger,
	}
}

// Generate issues a credential for the given destination URL and returns the
// token together with its redirect entry path.
func (g *GateService) Generate(ctx context.Context, destination string, expiresIn time.Duration) (token, redirectPath string, err error) {
	if destination == "" {
		return "", "", gateerrors.NewInvalidRequest("Invalid URL")
	}

	cred, err := g.credentials.Issue(ctx, destination, expiresIn)
	if err != nil {
		return "", "", gateerrors.NewServerError("failed to issue credential")
	}

	return cred.ID, "/r/" + cred.ID, nil
}

// Login handles the /login entry point. In Keynotes mode the identifier must be an
// allow-listed key; an unknown key is a policy denial and redirects to the
// fallback destination. In Token mode a fresh credential is issued bound to
// the identifier. Either way the session advances to AwaitingProcess.
func (g *GateService) Login(ctx context.Context, session *domain.Session, id string) (string, error) {
	if id == "" {
		return "", gateerrors.NewMissingCredential("Missing key or token ID.")
	}

	if g.authMethod == config.AuthMethodKeynotes {
		if _, ok := g.allowKeys[id]; !ok {
			g.logger.Warn(ctx, "unknown allow-listed key", map[string]interface{}{
				"key": id,
			})
			return g.fallbackURL, nil
		}

		session.AllowKeyID = id
		session.CredentialID = ""
		session.BoundValue = id
		session.Stage = domain.FlowStageAwaitingProcess
		if err := g.sessions.Set(ctx, session); err != nil {
			return "", gateerrors.NewServerError("failed to persist session")
		}

		return "/process?id=" + url.QueryEscape(id), nil
	}

	cred, err := g.credentials.Issue(ctx, id, 0)
	if err != nil {
		return "", gateerrors.NewServerError("failed to issue credential")
	}

	session.CredentialID = cred.ID
	session.AllowKeyID = ""
	session.BoundValue = id
	session.Stage = domain.FlowStageAwaitingProcess
	if err := g.sessions.Set(ctx, session); err != nil {
		return "", gateerrors.NewServerError("failed to persist session")
	}

	return fmt.Sprintf("/process?token=%s&id=%s", cred.ID, url.QueryEscape(id)), nil
}

// Redirect handles the /r entry point: a visitor arriving via a pre-issued credential
// reference. The session is bound directly to the presented credential; no
// freshness check happens here beyond normal credential validity downstream.
func (g *GateService) Redirect(ctx context.Context, session *domain.Session, token, id string) (string, error) {
	session.CredentialID = token
	session.AllowKeyID = ""
	session.BoundValue = id
	session.Stage = domain.FlowStageAwaitingProcess
	if err := g.sessions.Set(ctx, session); err != nil {
		return "", gateerrors.NewServerError("failed to persist session")
	}

	if id != "" {
		return fmt.Sprintf("/process?token=%s&id=%s", token, url.QueryEscape(id)), nil
	}

	return "/confirm?token=" + token, nil
}

// Process is the terminal stage of the flow: it emits the visitor
// notification, resolves the payload for the bound identifier, and composes
// the final destination. A failed lookup falls back to the denial redirect
// with the real cause logged server-side only.
func (g *GateService) Process(ctx context.Context, session *domain.Session, token, id, clientIP, userAgent string) string {
	if g.passiveMode {
		return g.fallbackURL
	}

	reference := token
	if reference == "" {
		reference = id
	}
	g.notifyVisit(clientIP, reference)

	lookupKey := id
	if lookupKey == "" {
		lookupKey = session.BoundValue
	}

	value, err := g.payloads.Resolve(ctx, lookupKey)
	if err != nil {
		g.logger.Error(ctx, "payload lookup failed", gateerrors.NewLookupFailed(err.Error()), map[string]interface{}{
			"identifier": lookupKey,
			"ip":         clientIP,
		})
		return g.fallbackURL
	}

	if token != "" {
		g.credentials.Consume(ctx, token)
	}

	return g.destinations.Resolve(userAgent, value)
}

// FallbackURL is the destination shown to visitors denied by policy.
func (g *GateService) FallbackURL() string {
	return g.fallbackURL
}

// notifyVisit sends the visitor notification without blocking the redirect.
// Errors are surfaced to the operational log and swallowed.
func (g *GateService) notifyVisit(clientIP, reference string) {
	if g.notifier == nil {
		return
	}
	if reference == "" {
		reference = "Unknown"
	}

	g.notifyWG.Add(1)
	go func() {
		defer g.notifyWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), g.notifyTimeout)
		defer cancel()

		info := notify.GeoInfo{Country: "Unknown"}
		if g.geo != nil {
			info = g.geo.Lookup(ctx, clientIP)
		}

		message := fmt.Sprintf(
			"New Visit Notification from %s %s\nIP: %s\nComment: Visitor with token/key `%s` has reached /process.",
			info.Flag, info.Country, clientIP, reference,
		)

		if err := g.notifier.Send(ctx, message); err != nil {
			g.logger.Error(ctx, "visit notification failed", err, map[string]interface{}{
				"ip":         clientIP,
				"error_code": gateerrors.NotificationFailed,
			})
		}
	}()
}

// WaitNotifications blocks until in-flight notifications finish. Used by
// tests and graceful shutdown.
func (g *GateService) WaitNotifications() {
	g.notifyWG.Wait()
}
