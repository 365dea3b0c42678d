package nats

import (
	"time"

	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamMessages = "TEXTRA_MESSAGES"
	StreamEvents   = "TEXTRA_EVENTS"
)

// Subject constants.
const (
	SubjectInboundMessage  = "textra.messages.inbound"
	SubjectOutboundMessage = "textra.messages.outbound"
	SubjectDetectionEvent  = "textra.events.detection"
)

// InboundMessage is published when an XMPP message arrives at the component.
type InboundMessage struct {
	ID         string    `json:"id"`
	FromJID    string    `json:"from_jid"`
	ToJID      string    `json:"to_jid"`
	Body       string    `json:"body"`
	StanzaType string    `json:"stanza_type"`
	ReceivedAt time.Time `json:"received_at"`
}

// OutboundMessage is published to send a message back via XMPP.
type OutboundMessage struct {
	ID        string `json:"id"`
	ToJID     string `json:"to_jid"`
	FromJID   string `json:"from_jid"`
	Body      string `json:"body"`
	InReplyTo string `json:"in_reply_to,omitempty"`
}

// DetectionEvent is published after each completed bot detection for
// downstream analytics.
type DetectionEvent struct {
	DetectionID uuid.UUID `json:"detection_id"`
	UserID      uuid.UUID `json:"user_id"`
	FromJID     string    `json:"from_jid"`
	Source      string    `json:"source"`
	Result      string    `json:"result"`
	Confidence  float64   `json:"confidence"`
	Timestamp   time.Time `json:"timestamp"`
}
