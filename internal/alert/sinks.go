package alert

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	tele "gopkg.in/telebot.v4"
)

// LogSink writes each event as a warning log line.
type LogSink struct {
	Logger *slog.Logger
}

var _ Sink = (*LogSink)(nil)

// Deliver implements Sink.
func (s *LogSink) Deliver(_ context.Context, ev Event) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("ALERT", "type", ev.Type, "message", ev.Message, "job", ev.Job, "timestamp", ev.Timestamp)
	return nil
}

// Webhook headers.
const (
	HeaderSignature = "X-Taskmaster-Signature"
	HeaderAlertType = "X-Taskmaster-Alert"
)

// WebhookSink posts events as JSON, signed with HMAC-SHA256 when a secret is set.
type WebhookSink struct {
	url    string
	secret string
	client *http.Client
}

var _ Sink = (*WebhookSink)(nil)

// NewWebhookSink creates a webhook sink. A zero timeout defaults to 10s.
func NewWebhookSink(url, secret string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
	}
}

// Deliver implements Sink.
func (s *WebhookSink) Deliver(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w: marshal: %w", ErrDelivery, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %w", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderAlertType, ev.Type)
	if s.secret != "" {
		req.Header.Set(HeaderSignature, Sign(s.secret, body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: send: %w", ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: webhook returned HTTP %d", ErrDelivery, resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body keyed with secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches body under secret.
func VerifySignature(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}

// RedisSink publishes events as JSON on a Redis pub/sub channel.
type RedisSink struct {
	client  redis.UniversalClient
	channel string
}

var _ Sink = (*RedisSink)(nil)

// NewRedisSink creates a sink publishing on channel.
func NewRedisSink(client redis.UniversalClient, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

// Deliver implements Sink.
func (s *RedisSink) Deliver(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w: marshal: %w", ErrDelivery, err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("%w: redis publish: %w", ErrDelivery, err)
	}
	return nil
}

// TelegramSender is the subset of *tele.Bot used by TelegramSink.
type TelegramSender interface {
	Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error)
}

// TelegramSink sends events as chat messages.
type TelegramSink struct {
	bot  TelegramSender
	chat tele.Recipient
}

var _ Sink = (*TelegramSink)(nil)

// NewTelegramSink creates a sink backed by an offline bot (no polling).
func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	bot, err := tele.NewBot(tele.Settings{Token: token, Offline: true})
	if err != nil {
		return nil, fmt.Errorf("alert: creating telegram bot: %w", err)
	}
	return NewTelegramSinkWith(bot, chatID), nil
}

// NewTelegramSinkWith creates a sink using an existing sender.
func NewTelegramSinkWith(bot TelegramSender, chatID int64) *TelegramSink {
	return &TelegramSink{bot: bot, chat: &tele.Chat{ID: chatID}}
}

// Deliver implements Sink.
func (s *TelegramSink) Deliver(_ context.Context, ev Event) error {
	if _, err := s.bot.Send(s.chat, FormatText(ev)); err != nil {
		return fmt.Errorf("%w: telegram send: %w", ErrDelivery, err)
	}
	return nil
}

// FormatText renders an event as a short plain-text message.
func FormatText(ev Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", ev.Type, ev.Message)
	if ev.Job != "" {
		fmt.Fprintf(&b, "\njob: %s", ev.Job)
	}
	if !ev.Timestamp.IsZero() {
		fmt.Fprintf(&b, "\nat: %s", ev.Timestamp.UTC().Format(time.RFC3339))
	}
	return b.String()
}
