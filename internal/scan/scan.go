// Package scan implements the message-triage pipeline: URL extraction,
// allowlisting, provider classification, permission-gated moderation, and
// the reviewer-driven Telegram reputation workflow.
package scan

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/phishclaw/internal/matrix"
)

// telegramDomain is the messaging-link domain with its own human-triage
// workflow instead of provider classification.
const telegramDomain = "t.me"

// Profile is the bot's own identity, fetched once at startup and passed
// into every pipeline invocation.
type Profile struct {
	UserID      string
	Localpart   string
	DisplayName string
}

// Homeserver is the subset of the chat transport the pipeline drives.
// *matrix.Client satisfies it; tests substitute a recording fake.
type Homeserver interface {
	SendMessage(ctx context.Context, roomID string, content matrix.MessageContent) (string, error)
	SendReaction(ctx context.Context, roomID, eventID, key string) (string, error)
	RedactEvent(ctx context.Context, roomID, eventID, reason string) error
	KickUser(ctx context.Context, roomID, userID, reason string) error
	SetTyping(ctx context.Context, roomID string, typing bool) error
	SendReadReceipt(ctx context.Context, roomID, eventID string) error
	GetEvent(ctx context.Context, roomID, eventID string) (*matrix.RawEvent, error)
	JoinedRooms(ctx context.Context) ([]string, error)
	CanRedact(ctx context.Context, roomID, userID string) (bool, error)
	CanKick(ctx context.Context, roomID, userID string) (bool, error)
	CanSendMessage(ctx context.Context, roomID, userID string) (bool, error)
}

// nonCritical logs and swallows the error of a best-effort side action.
// Reaction attaches, typing toggles and similar cosmetic calls must never
// abort the pipeline.
func nonCritical(what string, err error, attrs ...any) {
	if err != nil {
		slog.Warn(what+" failed", append(attrs, "error", err)...)
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
