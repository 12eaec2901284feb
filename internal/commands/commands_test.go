package commands

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/phishclaw/internal/matrix"
)

type fakeClient struct {
	canSend    bool
	resolveErr error
	joinErr    error

	sent     []sentNotice
	joined   []string
	joinVia  []string
	resolved []string
}

type sentNotice struct {
	roomID  string
	body    string
	relates *matrix.RelatesTo
}

func (f *fakeClient) SendMessage(ctx context.Context, roomID string, content matrix.MessageContent) (string, error) {
	f.sent = append(f.sent, sentNotice{roomID: roomID, body: content.Body, relates: content.RelatesTo})
	return fmt.Sprintf("$sent%d", len(f.sent)), nil
}

func (f *fakeClient) SendHTMLNotice(ctx context.Context, roomID, html, body string) (string, error) {
	return f.SendMessage(ctx, roomID, matrix.MessageContent{MsgType: matrix.MsgNotice, Body: body})
}

func (f *fakeClient) SetTyping(ctx context.Context, roomID string, typing bool) error { return nil }

func (f *fakeClient) ResolveRoomAlias(ctx context.Context, alias string) (string, error) {
	f.resolved = append(f.resolved, alias)
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	if strings.HasPrefix(alias, "#") {
		return "!resolved:example.org", nil
	}
	return alias, nil
}

func (f *fakeClient) JoinRoom(ctx context.Context, roomIDOrAlias string, via []string) (string, error) {
	if f.joinErr != nil {
		return "", f.joinErr
	}
	f.joined = append(f.joined, roomIDOrAlias)
	f.joinVia = via
	return roomIDOrAlias, nil
}

func (f *fakeClient) CanSendMessage(ctx context.Context, roomID, userID string) (bool, error) {
	return f.canSend, nil
}

const (
	cmdRoom     = "!commands:example.org"
	supportRoom = "#support:example.org"
)

func newTestHandler(client *fakeClient) *Handler {
	return NewHandler(client, "!phish", "@bot:example.org", "phishclaw", "PhishClaw", cmdRoom, supportRoom)
}

func command(body string) matrix.TextMessage {
	return matrix.TextMessage{
		RoomID:  "!room:example.org",
		EventID: "$cmd",
		Sender:  "@user:example.org",
		MsgType: matrix.MsgText,
		Body:    body,
	}
}

func TestMatchPrefix(t *testing.T) {
	h := newTestHandler(&fakeClient{})

	tests := []struct {
		body  string
		args  []string
		match bool
	}{
		{"!phish ping", []string{"ping"}, true},
		{"phishclaw: help", []string{"help"}, true},
		{"PhishClaw: ping", []string{"ping"}, true},
		{"@bot:example.org: join #room:example.org", []string{"join", "#room:example.org"}, true},
		{"!phish", nil, true},
		{"hello there", nil, false},
		{"phish ping", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			args, match := h.MatchPrefix(tt.body)
			if match != tt.match {
				t.Fatalf("match = %v, want %v", match, tt.match)
			}
			if match && len(args)+len(tt.args) > 0 && !reflect.DeepEqual(args, tt.args) {
				t.Errorf("args = %v, want %v", args, tt.args)
			}
		})
	}
}

func TestPing(t *testing.T) {
	client := &fakeClient{canSend: true}
	h := newTestHandler(client)

	h.Handle(context.Background(), command("!phish ping"))

	if len(client.sent) != 1 || client.sent[0].body != "Pong!" {
		t.Errorf("sent = %+v, want Pong!", client.sent)
	}
	rel := client.sent[0].relates
	if rel == nil || rel.InReplyTo == nil || rel.InReplyTo.EventID != "$cmd" {
		t.Errorf("reply relation = %+v", rel)
	}
}

func TestHelpListsCommands(t *testing.T) {
	client := &fakeClient{canSend: true}
	h := newTestHandler(client)

	h.Handle(context.Background(), command("!phish help"))

	if len(client.sent) != 1 {
		t.Fatalf("sent = %d messages", len(client.sent))
	}
	body := client.sent[0].body
	for _, cmd := range []string{"ping", "support", "join", "help"} {
		if !strings.Contains(body, cmd) {
			t.Errorf("help missing %q: %q", cmd, body)
		}
	}
}

func TestSupportAliases(t *testing.T) {
	for _, alias := range []string{"space", "support", "room"} {
		t.Run(alias, func(t *testing.T) {
			client := &fakeClient{canSend: true}
			h := newTestHandler(client)

			h.Handle(context.Background(), command("!phish "+alias))

			if len(client.sent) != 1 || !strings.Contains(client.sent[0].body, supportRoom) {
				t.Errorf("sent = %+v, want support room pointer", client.sent)
			}
		})
	}
}

func TestJoinFromCommandsRoom(t *testing.T) {
	client := &fakeClient{canSend: true}
	h := newTestHandler(client)

	msg := command("!phish join #target:other.example")
	msg.RoomID = cmdRoom
	h.Handle(context.Background(), msg)

	if len(client.joined) != 1 || client.joined[0] != "!resolved:example.org" {
		t.Errorf("joined = %v", client.joined)
	}
	// Routing candidates include the sender's and target's servers.
	via := strings.Join(client.joinVia, ",")
	if !strings.Contains(via, "example.org") {
		t.Errorf("via = %v", client.joinVia)
	}
	if len(client.sent) != 1 || !strings.HasPrefix(client.sent[0].body, "Joined") {
		t.Errorf("sent = %+v", client.sent)
	}
}

func TestJoinRejectedOutsideCommandsRoom(t *testing.T) {
	client := &fakeClient{canSend: true}
	h := newTestHandler(client)

	h.Handle(context.Background(), command("!phish join #target:other.example"))

	if len(client.joined) != 0 {
		t.Errorf("joined = %v, want none", client.joined)
	}
	if len(client.sent) != 1 || !strings.Contains(client.sent[0].body, "prevent abuse") {
		t.Errorf("sent = %+v", client.sent)
	}
}

func TestJoinWithoutArgument(t *testing.T) {
	client := &fakeClient{canSend: true}
	h := newTestHandler(client)

	msg := command("!phish join")
	msg.RoomID = cmdRoom
	h.Handle(context.Background(), msg)

	if len(client.sent) != 1 || !strings.Contains(client.sent[0].body, "specify a room") {
		t.Errorf("sent = %+v", client.sent)
	}
}

func TestJoinUnresolvableRoom(t *testing.T) {
	client := &fakeClient{canSend: true, resolveErr: errors.New("not found")}
	h := newTestHandler(client)

	msg := command("!phish join #ghost:example.org")
	msg.RoomID = cmdRoom
	h.Handle(context.Background(), msg)

	if len(client.sent) != 1 || !strings.Contains(client.sent[0].body, "Unable to find") {
		t.Errorf("sent = %+v", client.sent)
	}
}

func TestHandleIgnores(t *testing.T) {
	own := command("!phish ping")
	own.Sender = "@bot:example.org"

	notice := command("!phish ping")
	notice.MsgType = matrix.MsgNotice

	unknown := command("!phish dance")

	noCommand := command("!phish")

	tests := []struct {
		name string
		msg  matrix.TextMessage
	}{
		{"own message", own},
		{"notice", notice},
		{"unknown command", unknown},
		{"bare prefix", noCommand},
		{"unaddressed", command("hello world")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{canSend: true}
			h := newTestHandler(client)

			h.Handle(context.Background(), tt.msg)

			if len(client.sent) != 0 {
				t.Errorf("sent = %+v, want none", client.sent)
			}
		})
	}
}

func TestHandleMutedWithoutSendPermission(t *testing.T) {
	client := &fakeClient{canSend: false}
	h := newTestHandler(client)

	h.Handle(context.Background(), command("!phish ping"))

	if len(client.sent) != 0 {
		t.Errorf("sent = %+v, want silence", client.sent)
	}
}

func TestGreet(t *testing.T) {
	t.Run("allowed", func(t *testing.T) {
		client := &fakeClient{canSend: true}
		h := newTestHandler(client)

		h.Greet(context.Background(), "!new:example.org")

		if len(client.sent) != 1 || !strings.Contains(client.sent[0].body, supportRoom) {
			t.Errorf("sent = %+v", client.sent)
		}
	})

	t.Run("muted", func(t *testing.T) {
		client := &fakeClient{canSend: false}
		h := newTestHandler(client)

		h.Greet(context.Background(), "!new:example.org")

		if len(client.sent) != 0 {
			t.Errorf("sent = %+v, want silence", client.sent)
		}
	})
}
