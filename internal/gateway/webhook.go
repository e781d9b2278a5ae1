package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/taskmaster/internal/cron"
)

// HeaderWebhookSignature carries "sha256=<hex HMAC of the body>".
const HeaderWebhookSignature = "X-Signature-256"

const maxWebhookBody = 64 << 10

// WebhookHandler processes a validated webhook payload.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, source string, body []byte) (any, error)
}

type webhookEntry struct {
	handler WebhookHandler
	secret  string
}

// WebhookDispatcher routes incoming webhooks to registered handlers with HMAC validation.
type WebhookDispatcher struct {
	mu       sync.RWMutex
	handlers map[string]webhookEntry
	logger   *slog.Logger
}

// NewWebhookDispatcher creates a ready-to-use dispatcher.
func NewWebhookDispatcher(logger *slog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{
		handlers: make(map[string]webhookEntry),
		logger:   logger,
	}
}

// Register adds a handler for the given source with an optional HMAC secret.
func (d *WebhookDispatcher) Register(source string, h WebhookHandler, secret string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[source] = webhookEntry{handler: h, secret: secret}
}

// ServeHTTP implements http.Handler. It extracts the source from the chi URL param,
// validates HMAC if configured, and dispatches to the registered handler.
func (d *WebhookDispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	d.mu.RLock()
	entry, ok := d.handlers[source]
	d.mu.RUnlock()

	if !ok {
		d.logger.Warn("gateway: webhook for unregistered source", "source", source)
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown webhook source"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read body"})
		return
	}

	if entry.secret != "" && !validateHMAC(body, r.Header.Get(HeaderWebhookSignature), entry.secret) {
		d.logger.Warn("gateway: webhook signature mismatch", "source", source)
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid signature"})
		return
	}

	out, err := entry.handler.HandleWebhook(r.Context(), source, body)
	if err != nil {
		d.logger.Warn("gateway: webhook handler failed", "source", source, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, out)
}

// SignWebhook returns the signature header value for body.
func SignWebhook(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// validateHMAC checks HMAC-SHA256 signature in constant time.
func validateHMAC(body []byte, signature, secret string) bool {
	expected := SignWebhook(secret, body)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// runTrigger starts the job named in a webhook payload {"job": "<name>"}.
type runTrigger struct {
	svc     Service
	allowed []string
}

type webhookRunRequest struct {
	Job string `json:"job"`
}

func (t *runTrigger) HandleWebhook(ctx context.Context, source string, body []byte) (any, error) {
	var req webhookRunRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Job == "" {
		return nil, fmt.Errorf("%w: webhook payload must be {\"job\": \"<name>\"}", errBadRequest)
	}
	if len(t.allowed) > 0 && !slices.Contains(t.allowed, req.Job) {
		return nil, fmt.Errorf("%w: %q not allowed for source %q", cron.ErrJobNotFound, req.Job, source)
	}

	run, err := t.svc.RunManually(ctx, req.Job)
	if err != nil {
		return nil, err
	}
	return runResponse{Message: "Job " + req.Job + " started", Run: run}, nil
}

var _ WebhookHandler = (*runTrigger)(nil)
