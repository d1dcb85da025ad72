package services

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/enginex/gate/cache"
	"github.com/enginex/gate/domain"
	gateerrors "github.com/enginex/gate/errors"
	"github.com/enginex/gate/internal/reputation"
	"github.com/enginex/gate/log"
)

// suspiciousAgentPatterns flag automation tooling in the user agent.
var suspiciousAgentPatterns = []string{
	"bot", "crawler", "spider", "lighthouse",
	"headless", "preview", "postman", "http",
	"python", "curl", "wget", "node", "axios",
	"puppeteer", "playwright", "selenium",
}

// requiredHeaders are expected from any real browser; each missing one costs
// score.
var requiredHeaders = []string{
	"User-Agent",
	"Accept",
	"Accept-Language",
	"Accept-Encoding",
	"Connection",
}

// blockedPaths are sensitive paths no legitimate visitor requests.
var blockedPaths = []string{
	"/admin", "/config", "/.git", "/.env", "/logs",
	"/backup", "/uploads", "/node_modules", "/favicon.ico", "/favico.ico",
}

const (
	fullTrustScore       = 100
	allowThreshold       = 70
	rateWindowLimit      = 10
	missingAgentPenalty  = 40
	missingHeaderPenalty = 10
	ratePressurePenalty  = 30
)

// TrustRequest carries the visitor attributes the evaluator inspects.
type TrustRequest struct {
	Path      string
	Method    string
	ClientIP  string
	UserAgent string
	Header    http.Header
}

// TrustService computes a pass/fail decision for a visitor from header
// heuristics, request-rate tracking, and the external reputation verdict.
type TrustService struct {
	passiveMode   bool
	testMode      bool
	scoreOverride bool
	reputation    reputation.Checker
	rateWindows   *cache.RateWindowStore
	callTimeout   time.Duration
	logger        log.Logger
}

// TrustServiceOptions configures a TrustService.
type TrustServiceOptions struct {
	PassiveMode bool
	TestMode    bool
	// ScoreOverride keeps the "always trust once the hard gates pass" policy:
	// the heuristic score is still computed, then overwritten to the full
	// score before the threshold check.
	ScoreOverride bool
	Reputation    reputation.Checker
	RateWindows   *cache.RateWindowStore
	CallTimeout   time.Duration
	Logger        log.Logger
}

// NewTrustService creates a trust evaluator.
func NewTrustService(opts TrustServiceOptions) *TrustService {
	return &TrustService{
		passiveMode:   opts.PassiveMode,
		testMode:      opts.TestMode,
		scoreOverride: opts.ScoreOverride,
		reputation:    opts.Reputation,
		rateWindows:   opts.RateWindows,
		callTimeout:   opts.CallTimeout,
		logger:        opts.Logger,
	}
}

// Evaluate decides whether the visitor may proceed. Order matters: passive
// mode denies everything, test mode trusts everything, the path denylist is
// checked before the reputation service is ever contacted, and only then is
// the heuristic score computed. Rate window bookkeeping is a side effect of
// the full evaluation path.
func (s *TrustService) Evaluate(ctx context.Context, req *TrustRequest) domain.TrustDecision {
	if s.passiveMode {
		return domain.TrustDecision{Score: 0, Allowed: false, Reason: "passive mode"}
	}

	if s.testMode {
		return domain.TrustDecision{Score: fullTrustScore, Allowed: true, Reason: "test mode"}
	}

	if isBlockedPath(req.Path) {
		s.logBlocked(ctx, req, 0, "access to restricted path")
		return domain.TrustDecision{Score: 0, Allowed: false, Reason: "restricted path"}
	}

	repCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	verdict, err := s.reputation.Check(repCtx, req.ClientIP, req.UserAgent)
	cancel()
	if err != nil {
		// A reputation failure is terminal for the request; there is one
		// deterministic fallback path, the denial redirect.
		s.logger.Error(ctx, "reputation check failed", err, map[string]interface{}{
			"ip":   req.ClientIP,
			"path": req.Path,
		})
		return domain.TrustDecision{Score: 0, Allowed: false, Reason: "reputation check failed"}
	}
	if verdict.Status.IsBot {
		s.logBlocked(ctx, req, 0, "identified as bot by reputation service")
		return domain.TrustDecision{Score: 0, Allowed: false, Reason: "reputation flagged"}
	}

	window := s.rateWindows.Observe(req.ClientIP)
	score := s.heuristicScore(req, window)
	if s.scoreOverride {
		score = fullTrustScore
	}

	allowed := score >= allowThreshold
	if !allowed {
		s.logBlocked(ctx, req, score, "trust score below threshold")
	}

	return domain.TrustDecision{Score: score, Allowed: allowed}
}

// heuristicScore starts from full trust and deducts for automation signals,
// missing browser headers, and request pressure, clamped to [0, 100].
func (s *TrustService) heuristicScore(req *TrustRequest, window domain.RateWindow) int {
	score := fullTrustScore

	if req.UserAgent == "" || isSuspiciousAgent(req.UserAgent) {
		score -= missingAgentPenalty
	}

	for _, header := range requiredHeaders {
		if req.Header.Get(header) == "" {
			score -= missingHeaderPenalty
		}
	}

	if window.Count > rateWindowLimit {
		score -= ratePressurePenalty
	}

	if score < 0 {
		score = 0
	}
	if score > fullTrustScore {
		score = fullTrustScore
	}

	return score
}

func (s *TrustService) logBlocked(ctx context.Context, req *TrustRequest, score int, reason string) {
	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = "Unknown"
	}
	s.logger.Warn(ctx, "request blocked", map[string]interface{}{
		"ip":          req.ClientIP,
		"user_agent":  userAgent,
		"path":        req.Path,
		"method":      req.Method,
		"trust_score": score,
		"reason":      reason,
		"error_code":  gateerrors.DeniedByPolicy,
	})
}

func isSuspiciousAgent(userAgent string) bool {
	lowered := strings.ToLower(userAgent)
	for _, pattern := range suspiciousAgentPatterns {
		if strings.Contains(lowered, pattern) {
			return true
		}
	}
	return false
}

func isBlockedPath(path string) bool {
	for _, blocked := range blockedPaths {
		if path == blocked {
			return true
		}
	}
	return false
}
