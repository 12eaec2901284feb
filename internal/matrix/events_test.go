package matrix

import (
	"encoding/json"
	"testing"
)

func rawEvent(t *testing.T, eventType, eventID, sender string, content any) RawEvent {
	t.Helper()
	data, err := json.Marshal(content)
	if err != nil {
		t.Fatal(err)
	}
	return RawEvent{Type: eventType, EventID: eventID, Sender: sender, Content: data}
}

func TestParseTextMessage(t *testing.T) {
	ev := rawEvent(t, "m.room.message", "$msg", "@user:example.org", MessageContent{
		MsgType: MsgText, Body: "hello",
	})

	msg, ok := ParseTextMessage("!room:example.org", ev)
	if !ok {
		t.Fatal("message not parsed")
	}
	if msg.RoomID != "!room:example.org" || msg.EventID != "$msg" || msg.Sender != "@user:example.org" {
		t.Errorf("identity fields wrong: %+v", msg)
	}
	if msg.MsgType != MsgText || msg.Body != "hello" {
		t.Errorf("content fields wrong: %+v", msg)
	}
	if msg.Redacted || msg.InThread() {
		t.Errorf("flags wrong: %+v", msg)
	}
}

func TestParseTextMessageThread(t *testing.T) {
	ev := rawEvent(t, "m.room.message", "$msg", "@user:example.org", MessageContent{
		MsgType:   MsgText,
		Body:      "reply",
		RelatesTo: &RelatesTo{RelType: RelThread, EventID: "$root"},
	})

	msg, ok := ParseTextMessage("!room:example.org", ev)
	if !ok {
		t.Fatal("message not parsed")
	}
	if !msg.InThread() || msg.ThreadRoot != "$root" {
		t.Errorf("thread root = %q", msg.ThreadRoot)
	}
}

func TestParseTextMessageRedacted(t *testing.T) {
	t.Run("empty content", func(t *testing.T) {
		ev := RawEvent{Type: "m.room.message", EventID: "$msg", Content: json.RawMessage(`{}`)}
		msg, ok := ParseTextMessage("!room:example.org", ev)
		if !ok {
			t.Fatal("message not parsed")
		}
		if !msg.Redacted {
			t.Error("empty content not recognized as redacted")
		}
	})

	t.Run("redacted_because", func(t *testing.T) {
		ev := rawEvent(t, "m.room.message", "$msg", "@user:example.org", MessageContent{
			MsgType: MsgText, Body: "gone",
		})
		ev.Unsigned = &Unsigned{RedactedBecause: json.RawMessage(`{"type":"m.room.redaction"}`)}
		msg, ok := ParseTextMessage("!room:example.org", ev)
		if !ok {
			t.Fatal("message not parsed")
		}
		if !msg.Redacted {
			t.Error("redacted_because not recognized")
		}
	})
}

func TestParseTextMessageWrongType(t *testing.T) {
	ev := rawEvent(t, "m.reaction", "$r", "@user:example.org", ReactionContent{})
	if _, ok := ParseTextMessage("!room:example.org", ev); ok {
		t.Error("reaction parsed as message")
	}
}

func TestParseAnnotation(t *testing.T) {
	ev := rawEvent(t, "m.reaction", "$r", "@mod:example.org", ReactionContent{
		RelatesTo: RelatesTo{RelType: RelAnnotation, EventID: "$target", Key: "✅"},
	})

	ann, ok := ParseAnnotation("!room:example.org", ev)
	if !ok {
		t.Fatal("annotation not parsed")
	}
	if ann.TargetID != "$target" || ann.Key != "✅" || ann.Sender != "@mod:example.org" {
		t.Errorf("annotation fields wrong: %+v", ann)
	}
}

func TestParseAnnotationRejects(t *testing.T) {
	tests := []struct {
		name string
		ev   RawEvent
	}{
		{"wrong type", rawEvent(t, "m.room.message", "$m", "@u:example.org", MessageContent{MsgType: MsgText, Body: "x"})},
		{"thread relation", rawEvent(t, "m.reaction", "$r", "@u:example.org", ReactionContent{
			RelatesTo: RelatesTo{RelType: RelThread, EventID: "$target", Key: "✅"},
		})},
		{"missing target", rawEvent(t, "m.reaction", "$r", "@u:example.org", ReactionContent{
			RelatesTo: RelatesTo{RelType: RelAnnotation, Key: "✅"},
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := ParseAnnotation("!room:example.org", tt.ev); ok {
				t.Error("annotation accepted")
			}
		})
	}
}

func TestParseSelfJoin(t *testing.T) {
	key := "@bot:example.org"
	join := rawEvent(t, "m.room.member", "$j", key, map[string]string{"membership": "join"})
	join.StateKey = &key

	if !parseSelfJoin("@bot:example.org", join) {
		t.Error("own join not recognized")
	}
	if parseSelfJoin("@other:example.org", join) {
		t.Error("someone else's join recognized as own")
	}

	leave := rawEvent(t, "m.room.member", "$l", key, map[string]string{"membership": "leave"})
	leave.StateKey = &key
	if parseSelfJoin("@bot:example.org", leave) {
		t.Error("leave recognized as join")
	}
}
