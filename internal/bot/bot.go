// Package bot turns inbound chat messages into detection runs and replies.
// It consumes the inbound message stream, applies the same per-user throttle
// as the HTTP transport, and answers in plain text.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/textra-ai/textra/internal/detection"
	"github.com/textra-ai/textra/internal/metrics"
	inats "github.com/textra-ai/textra/internal/nats"
	"github.com/textra-ai/textra/internal/quota"
	"github.com/textra-ai/textra/internal/ratelimit"
	"github.com/textra-ai/textra/internal/users"
	ixmpp "github.com/textra-ai/textra/internal/xmpp"
)

// Detector runs text and URL detections. Implemented by detection.Service.
type Detector interface {
	DetectText(ctx context.Context, userID uuid.UUID, text string) (*detection.Detection, error)
	DetectURL(ctx context.Context, userID uuid.UUID, rawURL string) (*detection.Detection, error)
}

// UserResolver maps a bare JID to an account. Implemented by users.Service.
type UserResolver interface {
	GetOrCreateByJID(ctx context.Context, jid string) (*users.User, error)
}

// Throttle is the per-user fixed-window limiter. Implemented by
// ratelimit.Limiter.
type Throttle interface {
	CheckAndIncrement(ctx context.Context, userID uuid.UUID) (ratelimit.Status, error)
}

// Publisher sends replies and analytics events. Implemented by
// inats.Publisher.
type Publisher interface {
	PublishOutboundMessage(ctx context.Context, msg inats.OutboundMessage) error
	PublishDetectionEvent(ctx context.Context, event inats.DetectionEvent) error
}

// Bot consumes inbound chat messages and publishes detection replies.
type Bot struct {
	publisher   Publisher
	consumerMgr *inats.ConsumerManager
	users       UserResolver
	throttle    Throttle
	detector    Detector
}

func New(publisher Publisher, consumerMgr *inats.ConsumerManager,
	userResolver UserResolver, throttle Throttle, detector Detector) *Bot {
	return &Bot{
		publisher:   publisher,
		consumerMgr: consumerMgr,
		users:       userResolver,
		throttle:    throttle,
		detector:    detector,
	}
}

// Start begins the bot event loop. It blocks until the context is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	consumer, err := b.consumerMgr.EnsureConsumer(ctx, inats.StreamMessages, "detection-bot", inats.SubjectInboundMessage)
	if err != nil {
		return err
	}

	slog.Info("detection bot started", "consumer", "detection-bot")

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("fetching inbound messages", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			b.processMessage(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (b *Bot) processMessage(ctx context.Context, msg jetstream.Msg) {
	var inbound inats.InboundMessage
	if err := json.Unmarshal(msg.Data(), &inbound); err != nil {
		slog.Error("unmarshaling inbound message", "error", err)
		_ = msg.Nak()
		return
	}

	slog.Debug("bot processing message", "id", inbound.ID, "from", inbound.FromJID)

	reply, event, outcome := b.respond(ctx, inbound)
	metrics.BotMessagesTotal.WithLabelValues(outcome).Inc()

	outbound := inats.OutboundMessage{
		ID:        uuid.New().String(),
		ToJID:     inbound.FromJID,
		FromJID:   inbound.ToJID,
		Body:      reply,
		InReplyTo: inbound.ID,
	}
	if err := b.publisher.PublishOutboundMessage(ctx, outbound); err != nil {
		slog.Error("publishing bot reply", "error", err, "to", inbound.FromJID)
		_ = msg.Nak()
		return
	}

	if event != nil {
		if err := b.publisher.PublishDetectionEvent(ctx, *event); err != nil {
			slog.Error("publishing detection event", "error", err)
		}
	}

	_ = msg.Ack()
}

// respond runs the full pipeline for one message and returns the reply body,
// the analytics event if a detection completed, and the metrics outcome label.
func (b *Bot) respond(ctx context.Context, inbound inats.InboundMessage) (string, *inats.DetectionEvent, string) {
	body := strings.TrimSpace(inbound.Body)
	if isHelpRequest(body) {
		return helpText, nil, "help"
	}

	bareJID := ixmpp.BareJID(inbound.FromJID)
	user, err := b.users.GetOrCreateByJID(ctx, bareJID)
	if err != nil {
		slog.Error("resolving bot user", "error", err, "jid", inbound.FromJID)
		return errorReply, nil, "error"
	}

	if _, err := b.throttle.CheckAndIncrement(ctx, user.ID); err != nil {
		var exceeded *ratelimit.ExceededError
		if errors.As(err, &exceeded) {
			return formatRateLimited(exceeded), nil, "rate_limited"
		}
		slog.Error("bot throttle check failed", "error", err, "user_id", user.ID)
		return errorReply, nil, "error"
	}

	var det *detection.Detection
	if isURLRequest(body) {
		det, err = b.detector.DetectURL(ctx, user.ID, strings.Fields(body)[0])
	} else {
		det, err = b.detector.DetectText(ctx, user.ID, body)
	}
	if err != nil {
		return classifyFailure(err)
	}

	event := &inats.DetectionEvent{
		DetectionID: det.ID,
		UserID:      user.ID,
		FromJID:     bareJID,
		Source:      string(det.Source),
		Result:      string(det.Result),
		Confidence:  det.Confidence,
		Timestamp:   time.Now().UTC(),
	}
	return formatDetection(det), event, "ok"
}

// classifyFailure maps the detection error taxonomy onto chat replies.
func classifyFailure(err error) (string, *inats.DetectionEvent, string) {
	var vErr *detection.ValidationError
	if errors.As(err, &vErr) {
		return formatInvalid(vErr), nil, "invalid"
	}

	var qErr *quota.ExceededError
	if errors.As(err, &qErr) {
		return formatQuotaExceeded(qErr), nil, "quota_exceeded"
	}

	var uErr *detection.UpstreamError
	if errors.As(err, &uErr) {
		slog.Warn("bot detection upstream failure", "service", uErr.Service, "error", uErr.Err)
		return outageReply, nil, "upstream_error"
	}

	slog.Error("bot detection failed", "error", err)
	return errorReply, nil, "error"
}

func isHelpRequest(body string) bool {
	switch strings.ToLower(body) {
	case "", "help", "/help", "start", "/start":
		return true
	}
	return false
}

// isURLRequest treats a message opening with a link as a page-detection
// request; the first token is the URL.
func isURLRequest(body string) bool {
	return strings.HasPrefix(body, "http://") || strings.HasPrefix(body, "https://")
}
