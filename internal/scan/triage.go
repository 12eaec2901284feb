package scan

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/phishclaw/internal/matrix"
	"github.com/nextlevelbuilder/phishclaw/internal/store"
)

// Triage reaction keys attached to new-Telegram-link messages. Handlers
// match on the emoji alone so reviewers can also react with bare emoji.
const (
	triageKeySafe      = "✅ Mark Safe"
	triageKeyMalicious = "🐟 Mark Scam"
	triageKeyReset     = "🔄 Reset"
)

// Triage turns reviewer reactions in the Telegram log room into reputation
// store updates.
type Triage struct {
	hs         Homeserver
	reputation store.ReputationStore
	botUserID  string
	logRoom    string
	isReviewer func(userID string) bool
}

// NewTriage creates the reaction triage handler for the given log room.
func NewTriage(hs Homeserver, reputation store.ReputationStore, botUserID, logRoom string, isReviewer func(string) bool) *Triage {
	return &Triage{
		hs:         hs,
		reputation: reputation,
		botUserID:  botUserID,
		logRoom:    logRoom,
		isReviewer: isReviewer,
	}
}

// HandleAnnotation processes one reaction event. Anything that doesn't
// resolve to a triage decision on a t.me link is silently ignored.
func (t *Triage) HandleAnnotation(ctx context.Context, ann matrix.Annotation) {
	if t.logRoom == "" || ann.RoomID != t.logRoom {
		return
	}
	if ann.Sender == t.botUserID || !t.isReviewer(ann.Sender) {
		return
	}

	var apply func(context.Context, string) error
	var decision string
	switch {
	case strings.Contains(ann.Key, "✅"):
		apply, decision = t.reputation.MarkSafe, "safe"
	case strings.Contains(ann.Key, "🐟"):
		apply, decision = t.reputation.MarkMalicious, "malicious"
	case strings.Contains(ann.Key, "🔄"):
		apply, decision = t.reputation.Reset, "reset"
	default:
		return
	}

	id := t.resolveTelegramID(ctx, ann)
	if id == "" {
		return
	}

	if err := apply(ctx, id); err != nil {
		slog.Error("triage update failed", "telegram_id", id, "decision", decision, "error", err)
		return
	}
	slog.Info("telegram link triaged", "telegram_id", id, "decision", decision, "reviewer", ann.Sender)
}

// resolveTelegramID fetches the reacted-to message and extracts the
// Telegram identifier from its last URL candidate. The triage message
// always places the flagged link last, after the quoted original text.
func (t *Triage) resolveTelegramID(ctx context.Context, ann matrix.Annotation) string {
	raw, err := t.hs.GetEvent(ctx, ann.RoomID, ann.TargetID)
	if err != nil {
		slog.Warn("could not resolve annotated event", "event_id", ann.TargetID, "error", err)
		return ""
	}
	msg, ok := matrix.ParseTextMessage(ann.RoomID, *raw)
	if !ok {
		return ""
	}

	candidates := ExtractURLs(StripMarkdown(msg.Body))
	if len(candidates) == 0 {
		return ""
	}
	last := candidates[len(candidates)-1]
	if !strings.EqualFold(last.Domain, telegramDomain) || len(last.Path) < 2 {
		return ""
	}
	return last.Path[1:]
}
