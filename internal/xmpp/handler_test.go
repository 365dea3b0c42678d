package xmpp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBareJID(t *testing.T) {
	tests := []struct {
		name string
		jid  string
		want string
	}{
		{
			name: "bare JID unchanged",
			jid:  "alice@textra.local",
			want: "alice@textra.local",
		},
		{
			name: "resource stripped",
			jid:  "alice@textra.local/mobile",
			want: "alice@textra.local",
		},
		{
			name: "resource with slashes",
			jid:  "alice@textra.local/home/desk",
			want: "alice@textra.local",
		},
		{
			name: "empty",
			jid:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BareJID(tt.jid))
		})
	}
}
