package scan

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/phishclaw/internal/matrix"
	"github.com/nextlevelbuilder/phishclaw/internal/store"
)

// Pipeline is the end-to-end message triage orchestrator. One invocation
// handles one inbound text message.
type Pipeline struct {
	hs              Homeserver
	agg             *Aggregator
	mod             *Moderator
	reputation      store.ReputationStore
	profile         Profile
	telegramLogRoom string
	ignoredRoom     func(roomID string) bool
}

// NewPipeline wires the triage pipeline together. ignoredRoom may be nil.
func NewPipeline(hs Homeserver, agg *Aggregator, mod *Moderator, reputation store.ReputationStore,
	profile Profile, telegramLogRoom string, ignoredRoom func(string) bool) *Pipeline {
	if ignoredRoom == nil {
		ignoredRoom = func(string) bool { return false }
	}
	return &Pipeline{
		hs:              hs,
		agg:             agg,
		mod:             mod,
		reputation:      reputation,
		profile:         profile,
		telegramLogRoom: telegramLogRoom,
		ignoredRoom:     ignoredRoom,
	}
}

// HandleMessage scans one inbound message. Candidates are processed in
// left-to-right order; the first positive verdict triggers enforcement and
// ends the scan. Returns true when a moderation action was taken (callers
// skip command handling in that case, since the message is gone or tagged).
func (p *Pipeline) HandleMessage(ctx context.Context, msg matrix.TextMessage) bool {
	if msg.Sender == p.profile.UserID || msg.Redacted || msg.MsgType != matrix.MsgText {
		return false
	}
	if p.ignoredRoom(msg.RoomID) {
		return false
	}

	candidates := ExtractURLs(StripMarkdown(msg.Body))
	if len(candidates) == 0 {
		return false
	}

	// Receipt goes out as soon as anything URL-shaped is found, regardless
	// of how the scan ends.
	nonCritical("read receipt", p.hs.SendReadReceipt(ctx, msg.RoomID, msg.EventID),
		"event_id", msg.EventID)

	for _, cand := range candidates {
		if cand.Domain == "" {
			continue
		}

		if strings.EqualFold(cand.Domain, telegramDomain) {
			p.handleTelegramLink(ctx, msg, cand)
			continue
		}

		if Allowlisted(cand.Domain) {
			continue
		}

		scanID := uuid.NewString()
		slog.Info("url found, scanning", "domain", cand.Domain, "scan_id", scanID)

		if verdict := p.agg.Scan(ctx, cand.Domain, scanID); verdict != nil {
			p.mod.Enforce(ctx, msg, cand.Domain, *verdict)
			return true
		}
	}
	return false
}

// handleTelegramLink routes a t.me candidate through the reputation store.
// Untriaged links are reported to the Telegram log room for human review;
// classification providers are never consulted for this domain.
func (p *Pipeline) handleTelegramLink(ctx context.Context, msg matrix.TextMessage, cand Candidate) {
	if len(cand.Path) < 2 {
		return
	}
	id := cand.Path[1:]

	classification, err := p.reputation.Lookup(ctx, id)
	if err != nil {
		slog.Error("reputation lookup failed", "telegram_id", id, "error", err)
		return
	}
	if classification != store.Unknown {
		return
	}

	if p.telegramLogRoom == "" {
		return
	}
	joined, err := p.hs.JoinedRooms(ctx)
	if err != nil || !contains(joined, p.telegramLogRoom) {
		return
	}

	slog.Info("new telegram url", "link", cand.Raw, "telegram_id", id)
	nonCritical("typing on", p.hs.SetTyping(ctx, p.telegramLogRoom, true), "room_id", p.telegramLogRoom)
	defer func() {
		nonCritical("typing off", p.hs.SetTyping(ctx, p.telegramLogRoom, false), "room_id", p.telegramLogRoom)
	}()

	permalink := matrix.EventPermalink(msg.RoomID, msg.EventID)
	body := fmt.Sprintf("**New Telegram URL Found**\n\nRoom: [%s](%s)\nSent By: %s\nMessage: %s\nLink: `%s`",
		msg.RoomID, permalink, msg.Sender, msg.Body, cand.Raw)
	formatted := fmt.Sprintf("<b>New Telegram URL Found</b><br>"+
		"<table><tr><th>Room</th><th>Sent By</th><th>Message</th><th>Link</th></tr>"+
		"<tr><td><a href=%q>%s</a></td><td>%s</td><td><code>%s</code></td><td><code>%s</code></td></tr></table>",
		permalink, html.EscapeString(msg.RoomID), html.EscapeString(msg.Sender),
		html.EscapeString(msg.Body), html.EscapeString(cand.Raw))

	reportID, err := p.hs.SendMessage(ctx, p.telegramLogRoom, matrix.MessageContent{
		MsgType:       matrix.MsgNotice,
		Body:          body,
		Format:        matrix.FormatHTML,
		FormattedBody: formatted,
	})
	if err != nil {
		slog.Warn("telegram report failed", "room_id", p.telegramLogRoom, "error", err)
		return
	}

	// Triage affordances for reviewers.
	for _, key := range []string{triageKeySafe, triageKeyMalicious, triageKeyReset} {
		nonCritical("triage reaction",
			firstErr(p.hs.SendReaction(ctx, p.telegramLogRoom, reportID, key)),
			"event_id", reportID, "key", key)
	}
}
