package users

import (
	"time"

	"github.com/google/uuid"
)

// User is an account row. XMPPJID is set only for accounts created through
// the chat bot (or later linked to one).
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	XMPPJID      *string   `json:"xmpp_jid,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
