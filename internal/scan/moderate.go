package scan

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/phishclaw/internal/matrix"
)

// Moderation action names, in the order they are attempted.
const (
	ActionDelete = "Delete"
	ActionKick   = "Kick"
	ActionWarn   = "Warn"
)

// Outcome summarizes what Enforce did for a positive verdict.
type Outcome struct {
	Actions      []string
	AuditEventID string
}

// Label rewrites a raw provider category into the display label used in
// warnings and audit messages.
func Label(category string) string {
	switch category {
	case "phish":
		return "Phishing"
	case "likely_phish":
		return "Likely Phishing"
	case "mortgage":
		return "Scam"
	case "hacked_website":
		return "Hacked"
	case "drug_spam":
		return "Drug"
	case "streaming":
		return "Illegal"
	}
	lower := strings.ToLower(category)
	if lower == "" {
		return ""
	}
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// Moderator executes the consequences of a positive verdict, within
// whatever permissions the bot holds in the room.
type Moderator struct {
	hs        Homeserver
	profile   Profile
	auditRoom string
	prefix    string
}

// NewModerator creates a moderator. auditRoom may be empty, which disables
// audit delivery (logged instead).
func NewModerator(hs Homeserver, profile Profile, auditRoom, prefix string) *Moderator {
	return &Moderator{hs: hs, profile: profile, auditRoom: auditRoom, prefix: prefix}
}

// Enforce applies the moderation state machine to the offending message:
// redact when permitted, kick when permitted, warn when redaction was not
// possible, then deliver the audit message. Permission denials are normal
// branches, not errors; side-action failures never abort the run.
func (m *Moderator) Enforce(ctx context.Context, msg matrix.TextMessage, matchedURL string, verdict Verdict) Outcome {
	label := Label(verdict.Category)

	nonCritical("typing on", m.hs.SetTyping(ctx, msg.RoomID, true), "room_id", msg.RoomID)
	defer func() {
		nonCritical("typing off", m.hs.SetTyping(ctx, msg.RoomID, false), "room_id", msg.RoomID)
	}()

	slog.Info("malicious link detected, enforcing",
		"label", label, "room_id", msg.RoomID, "sender", msg.Sender, "scan_id", verdict.ScanID)

	canRedact, err := m.hs.CanRedact(ctx, msg.RoomID, m.profile.UserID)
	if err != nil {
		slog.Error("could not query redact permission", "room_id", msg.RoomID, "error", err)
	}
	canKick, err := m.hs.CanKick(ctx, msg.RoomID, m.profile.UserID)
	if err != nil {
		slog.Error("could not query kick permission", "room_id", msg.RoomID, "error", err)
	}

	reason := fmt.Sprintf("User sent a %s Link", label)
	var actions []string

	if canRedact {
		nonCritical("redact", m.hs.RedactEvent(ctx, msg.RoomID, msg.EventID, reason),
			"event_id", msg.EventID)
		actions = append(actions, ActionDelete)
	}

	if canKick {
		// Kicks can fail when the sender already left; non-fatal.
		nonCritical("kick", m.hs.KickUser(ctx, msg.RoomID, msg.Sender, reason),
			"sender", msg.Sender)
		actions = append(actions, ActionKick)
	}

	if !canRedact {
		m.warn(ctx, msg, label)
		actions = append(actions, ActionWarn)
	}

	auditID := m.audit(ctx, msg, matchedURL, label, verdict, actions)
	slog.Info("enforcement complete", "actions", strings.Join(actions, ","), "scan_id", verdict.ScanID)
	return Outcome{Actions: actions, AuditEventID: auditID}
}

// warn tags the offending message with a category annotation and posts a
// visible warning: a thread reply when the message was in a thread, a
// direct reply otherwise. All best-effort.
func (m *Moderator) warn(ctx context.Context, msg matrix.TextMessage, label string) {
	nonCritical("annotation reaction",
		firstErr(m.hs.SendReaction(ctx, msg.RoomID, msg.EventID, "🚨 "+label+" 🚨")),
		"event_id", msg.EventID)

	canSend, err := m.hs.CanSendMessage(ctx, msg.RoomID, m.profile.UserID)
	if err != nil {
		slog.Error("could not query send permission", "room_id", msg.RoomID, "error", err)
	}
	if !canSend {
		return
	}

	body := fmt.Sprintf("🚨 %s LINK DETECTED 🚨\n\n"+
		"A message has been detected to contain a problematic link. We recommend not pressing any links within the message.\n\n"+
		"If this is a false positive, please let us know with the command %s support",
		strings.ToUpper(label), m.prefix)
	formatted := fmt.Sprintf("<h4>🚨 %s Link Detected 🚨</h4>"+
		"<h5>A message has been detected to contain a problematic link. We recommend not pressing any links within the message.</h5>"+
		"<h6>If this is a false positive, please let us know with the command <code>%s support</code></h6>",
		html.EscapeString(label), html.EscapeString(m.prefix))

	content := matrix.MessageContent{
		MsgType:       matrix.MsgNotice,
		Body:          body,
		Format:        matrix.FormatHTML,
		FormattedBody: formatted,
	}
	if msg.InThread() {
		content.RelatesTo = &matrix.RelatesTo{RelType: matrix.RelThread, EventID: msg.ThreadRoot}
	} else {
		content.RelatesTo = &matrix.RelatesTo{InReplyTo: &matrix.InReplyTo{EventID: msg.EventID}}
	}

	warnID, err := m.hs.SendMessage(ctx, msg.RoomID, content)
	if err != nil {
		slog.Warn("warning message failed", "room_id", msg.RoomID, "error", err)
		return
	}

	// Reviewer feedback affordances on the warning itself.
	nonCritical("feedback reaction", firstErr(m.hs.SendReaction(ctx, msg.RoomID, warnID, "👍")), "event_id", warnID)
	nonCritical("feedback reaction", firstErr(m.hs.SendReaction(ctx, msg.RoomID, warnID, "👎")), "event_id", warnID)
}

// audit posts the structured audit message to the audit room, provided the
// bot is joined there. Returns the audit event ID, or "" when undelivered.
func (m *Moderator) audit(ctx context.Context, msg matrix.TextMessage, matchedURL, label string, verdict Verdict, actions []string) string {
	if m.auditRoom == "" {
		slog.Warn("no audit room configured, detection not reported", "scan_id", verdict.ScanID)
		return ""
	}
	joined, err := m.hs.JoinedRooms(ctx)
	if err != nil || !contains(joined, m.auditRoom) {
		slog.Warn("detection not sent to audit room",
			"audit_room", m.auditRoom, "scan_id", verdict.ScanID, "error", err)
		return ""
	}

	nonCritical("typing on", m.hs.SetTyping(ctx, m.auditRoom, true), "room_id", m.auditRoom)
	defer func() {
		nonCritical("typing off", m.hs.SetTyping(ctx, m.auditRoom, false), "room_id", m.auditRoom)
	}()

	actionList := strings.Join(actions, ", ")
	permalink := matrix.EventPermalink(msg.RoomID, msg.EventID)

	body := fmt.Sprintf("**%s Link Detected**\n\nRoom: [%s](%s)\nSent By: %s\nAction: %s\nDetection Method: %s\nMessage: %s\nLink: `%s`",
		label, msg.RoomID, permalink, msg.Sender, actionList, verdict.Provider, msg.Body, matchedURL)
	formatted := fmt.Sprintf("<b>%s Link Detected</b><br>"+
		"<table><tr><th>Room</th><th>Sent By</th><th>Action</th><th>Link</th><th>Detection Method</th><th>Message</th></tr>"+
		"<tr><td><a href=%q>%s</a></td><td>%s</td><td>%s</td><td><code>%s</code></td><td>%s</td><td><code>%s</code></td></tr></table>",
		label, permalink, html.EscapeString(msg.RoomID), html.EscapeString(msg.Sender), actionList,
		html.EscapeString(matchedURL), verdict.Provider, html.EscapeString(msg.Body))

	auditID, err := m.hs.SendMessage(ctx, m.auditRoom, matrix.MessageContent{
		MsgType:       matrix.MsgNotice,
		Body:          body,
		Format:        matrix.FormatHTML,
		FormattedBody: formatted,
	})
	if err != nil {
		slog.Warn("audit message failed", "audit_room", m.auditRoom, "error", err)
		return ""
	}
	return auditID
}

// firstErr discards the event ID from send-style calls so they fit the
// nonCritical helper.
func firstErr(_ string, err error) error { return err }
