// Package commands implements the user-facing chat commands: ping, help,
// space/support and join. Command failures produce a generic error notice,
// the only user-visible error the bot ever sends.
package commands

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/phishclaw/internal/matrix"
)

// Client is the transport surface the command handlers need.
type Client interface {
	SendMessage(ctx context.Context, roomID string, content matrix.MessageContent) (string, error)
	SendHTMLNotice(ctx context.Context, roomID, html, body string) (string, error)
	SetTyping(ctx context.Context, roomID string, typing bool) error
	ResolveRoomAlias(ctx context.Context, alias string) (string, error)
	JoinRoom(ctx context.Context, roomIDOrAlias string, via []string) (string, error)
	CanSendMessage(ctx context.Context, roomID, userID string) (bool, error)
}

// Handler dispatches prefixed commands. The bot responds to the configured
// prefix as well as to being addressed by localpart, display name or user ID.
type Handler struct {
	client       Client
	prefix       string
	userID       string
	localpart    string
	displayName  string
	commandsRoom string
	supportRoom  string
}

// NewHandler creates the command dispatcher.
func NewHandler(client Client, prefix, userID, localpart, displayName, commandsRoom, supportRoom string) *Handler {
	return &Handler{
		client:       client,
		prefix:       prefix,
		userID:       userID,
		localpart:    localpart,
		displayName:  displayName,
		commandsRoom: commandsRoom,
		supportRoom:  supportRoom,
	}
}

// MatchPrefix returns the command arguments when the message addresses the
// bot, and false otherwise.
func (h *Handler) MatchPrefix(body string) ([]string, bool) {
	prefixes := []string{h.prefix, h.localpart + ":", h.displayName + ":", h.userID + ":"}
	for _, p := range prefixes {
		if p != "" && p != ":" && strings.HasPrefix(body, p) {
			args := strings.Fields(strings.TrimSpace(body[len(p):]))
			return args, true
		}
	}
	return nil, false
}

// Handle runs the command in the message, if any. Unknown commands are
// ignored, matching how lurkers often type the prefix by accident.
func (h *Handler) Handle(ctx context.Context, msg matrix.TextMessage) {
	if msg.Sender == h.userID || msg.Redacted || msg.MsgType != matrix.MsgText {
		return
	}
	args, ok := h.MatchPrefix(msg.Body)
	if !ok || len(args) == 0 {
		return
	}

	canSend, err := h.client.CanSendMessage(ctx, msg.RoomID, h.userID)
	if err != nil || !canSend {
		return
	}

	var cmdErr error
	switch args[0] {
	case "ping":
		cmdErr = h.runPing(ctx, msg)
	case "help":
		cmdErr = h.runHelp(ctx, msg)
	case "space", "support", "room":
		cmdErr = h.runSpace(ctx, msg)
	case "join":
		cmdErr = h.runJoin(ctx, msg, args)
	default:
		return
	}

	if cmdErr != nil {
		slog.Error("command failed", "command", args[0], "room_id", msg.RoomID, "error", cmdErr)
		h.reply(ctx, msg, "There was an error processing your command")
	}
}

func (h *Handler) runPing(ctx context.Context, msg matrix.TextMessage) error {
	return h.reply(ctx, msg, "Pong!")
}

func (h *Handler) runHelp(ctx context.Context, msg matrix.TextMessage) error {
	text := fmt.Sprintf("Available commands:\n"+
		"%[1]s ping — check that the bot is alive\n"+
		"%[1]s support — get the support room\n"+
		"%[1]s join <room> — ask the bot to join a room (commands room only)\n"+
		"%[1]s help — this message", h.prefix)
	return h.reply(ctx, msg, text)
}

func (h *Handler) runSpace(ctx context.Context, msg matrix.TextMessage) error {
	text := fmt.Sprintf("Questions or concerns? Join %s and let us know!", h.supportRoom)
	return h.reply(ctx, msg, text)
}

// runJoin joins the bot to a room named by the second argument. To prevent
// abuse it only works from the designated commands room.
func (h *Handler) runJoin(ctx context.Context, msg matrix.TextMessage, args []string) error {
	nonFatal(h.client.SetTyping(ctx, msg.RoomID, true))
	defer func() { nonFatal(h.client.SetTyping(ctx, msg.RoomID, false)) }()

	if h.commandsRoom == "" || msg.RoomID != h.commandsRoom {
		return h.reply(ctx, msg,
			fmt.Sprintf("In order to prevent abuse, you may only use this command in %s", h.commandsRoom))
	}
	if len(args) < 2 {
		return h.reply(ctx, msg, "Please specify a room to join.")
	}

	target, err := h.client.ResolveRoomAlias(ctx, args[1])
	if err != nil {
		slog.Warn("could not resolve room", "room", args[1], "error", err)
		return h.reply(ctx, msg, "Unable to find that room!")
	}

	via := []string{
		"matrix.org",
		matrix.ServerName(target),
		matrix.ServerName(msg.Sender),
		matrix.ServerName(h.userID),
	}
	if _, err := h.client.JoinRoom(ctx, target, via); err != nil {
		slog.Warn("could not join room", "room", target, "error", err)
		return h.reply(ctx, msg, "Unable to join that room!")
	}

	return h.reply(ctx, msg, fmt.Sprintf("Joined %s!", target))
}

// reply posts a notice threaded or in-reply-to, matching the shape of the
// triggering message.
func (h *Handler) reply(ctx context.Context, msg matrix.TextMessage, text string) error {
	content := matrix.MessageContent{
		MsgType:       matrix.MsgNotice,
		Body:          text,
		Format:        matrix.FormatHTML,
		FormattedBody: "<p>" + html.EscapeString(text) + "</p>",
	}
	if msg.InThread() {
		content.RelatesTo = &matrix.RelatesTo{RelType: matrix.RelThread, EventID: msg.ThreadRoot}
	} else {
		content.RelatesTo = &matrix.RelatesTo{InReplyTo: &matrix.InReplyTo{EventID: msg.EventID}}
	}
	_, err := h.client.SendMessage(ctx, msg.RoomID, content)
	return err
}

// Greet sends the introduction notice after the bot joins a room, when it
// is allowed to speak there.
func (h *Handler) Greet(ctx context.Context, roomID string) {
	canSend, err := h.client.CanSendMessage(ctx, roomID, h.userID)
	if err != nil || !canSend {
		return
	}

	body := fmt.Sprintf("Hello! 🐟 I detect phishing and malicious links sent in your chat rooms and notify users about them.\n\n"+
		"Feel free to join %[1]s for questions or concerns. Please kick me if you would not like me here.\n\n"+
		"If you would like me to automatically delete phishing messages or kick users who send phishing links, please give me those permissions.",
		h.supportRoom)
	formatted := fmt.Sprintf("<h1>Hello! 🐟</h1>"+
		"<b>I detect phishing and malicious links sent in your chat rooms and notify users about them.</b><br>"+
		"Feel free to join %[1]s for questions or concerns. Please kick me if you would not like me here.<br><br>"+
		"If you would like me to automatically delete phishing messages or kick users who send phishing links, please give me those permissions.",
		html.EscapeString(h.supportRoom))

	if _, err := h.client.SendHTMLNotice(ctx, roomID, formatted, body); err != nil {
		slog.Warn("greeting failed", "room_id", roomID, "error", err)
	}
}

func nonFatal(err error) {
	if err != nil {
		slog.Debug("best-effort call failed", "error", err)
	}
}
