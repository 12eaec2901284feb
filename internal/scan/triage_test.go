package scan

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nextlevelbuilder/phishclaw/internal/matrix"
	"github.com/nextlevelbuilder/phishclaw/internal/store"
)

const triageLogRoom = "!tglog:example.org"

func triageReport(eventID, body string) *matrix.RawEvent {
	content, _ := json.Marshal(matrix.MessageContent{MsgType: matrix.MsgNotice, Body: body})
	return &matrix.RawEvent{
		Type:    "m.room.message",
		EventID: eventID,
		Sender:  testProfile.UserID,
		Content: content,
	}
}

func triageAnnotation(sender, targetID, key string) matrix.Annotation {
	return matrix.Annotation{
		RoomID:   triageLogRoom,
		EventID:  "$reaction",
		Sender:   sender,
		TargetID: targetID,
		Key:      key,
	}
}

func newTestTriage(hs *fakeHomeserver, rep store.ReputationStore) *Triage {
	isReviewer := func(userID string) bool { return userID == "@mod:example.org" }
	return NewTriage(hs, rep, testProfile.UserID, triageLogRoom, isReviewer)
}

func TestTriageMarkSafe(t *testing.T) {
	hs := newFakeHomeserver()
	hs.events["$report"] = triageReport("$report",
		"**New Telegram URL Found**\n\nRoom: !r:example.org\nSent By: @u:example.org\nMessage: join now\nLink: `https://t.me/scamgroup`")
	rep := store.NewMemoryStore()
	tr := newTestTriage(hs, rep)

	tr.HandleAnnotation(context.Background(), triageAnnotation("@mod:example.org", "$report", triageKeySafe))

	got, err := rep.Lookup(context.Background(), "scamgroup")
	if err != nil {
		t.Fatal(err)
	}
	if got != store.Safe {
		t.Errorf("classification = %v, want safe", got)
	}
}

func TestTriageMarkMalicious(t *testing.T) {
	hs := newFakeHomeserver()
	hs.events["$report"] = triageReport("$report", "Link: `t.me/badgroup`")
	rep := store.NewMemoryStore()
	tr := newTestTriage(hs, rep)

	tr.HandleAnnotation(context.Background(), triageAnnotation("@mod:example.org", "$report", triageKeyMalicious))

	if got, _ := rep.Lookup(context.Background(), "badgroup"); got != store.Malicious {
		t.Errorf("classification = %v, want malicious", got)
	}
}

func TestTriageReset(t *testing.T) {
	hs := newFakeHomeserver()
	hs.events["$report"] = triageReport("$report", "Link: `t.me/badgroup`")
	rep := store.NewMemoryStore()
	if err := rep.MarkMalicious(context.Background(), "badgroup"); err != nil {
		t.Fatal(err)
	}
	tr := newTestTriage(hs, rep)

	tr.HandleAnnotation(context.Background(), triageAnnotation("@mod:example.org", "$report", triageKeyReset))

	if got, _ := rep.Lookup(context.Background(), "badgroup"); got != store.Unknown {
		t.Errorf("classification = %v, want unknown after reset", got)
	}
}

func TestTriageBareEmojiAccepted(t *testing.T) {
	hs := newFakeHomeserver()
	hs.events["$report"] = triageReport("$report", "Link: `t.me/newgroup`")
	rep := store.NewMemoryStore()
	tr := newTestTriage(hs, rep)

	tr.HandleAnnotation(context.Background(), triageAnnotation("@mod:example.org", "$report", "✅"))

	if got, _ := rep.Lookup(context.Background(), "newgroup"); got != store.Safe {
		t.Errorf("classification = %v, want safe for bare emoji", got)
	}
}

func TestTriageIgnores(t *testing.T) {
	tests := []struct {
		name string
		ann  matrix.Annotation
	}{
		{"wrong room", matrix.Annotation{RoomID: "!other:example.org", Sender: "@mod:example.org", TargetID: "$report", Key: triageKeySafe}},
		{"non-reviewer", triageAnnotation("@rando:example.org", "$report", triageKeySafe)},
		{"own reaction", triageAnnotation(testProfile.UserID, "$report", triageKeySafe)},
		{"unrelated emoji", triageAnnotation("@mod:example.org", "$report", "🎉")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := newFakeHomeserver()
			hs.events["$report"] = triageReport("$report", "Link: `t.me/somegroup`")
			rep := store.NewMemoryStore()
			tr := newTestTriage(hs, rep)

			tr.HandleAnnotation(context.Background(), tt.ann)

			if got, _ := rep.Lookup(context.Background(), "somegroup"); got != store.Unknown {
				t.Errorf("classification = %v, want untouched", got)
			}
		})
	}
}

func TestTriageNonTelegramTargetIgnored(t *testing.T) {
	hs := newFakeHomeserver()
	hs.events["$report"] = triageReport("$report", "Link: `https://example.org/page`")
	rep := store.NewMemoryStore()
	tr := newTestTriage(hs, rep)

	tr.HandleAnnotation(context.Background(), triageAnnotation("@mod:example.org", "$report", triageKeySafe))

	if got, _ := rep.Lookup(context.Background(), "page"); got != store.Unknown {
		t.Errorf("non-t.me link must not be triaged, got %v", got)
	}
}

func TestTriageUsesLastLink(t *testing.T) {
	// Report bodies quote the original message; the flagged link is
	// always appended last.
	hs := newFakeHomeserver()
	hs.events["$report"] = triageReport("$report",
		"Message: also see matrix.org and t.me/first\nLink: `t.me/flagged`")
	rep := store.NewMemoryStore()
	tr := newTestTriage(hs, rep)

	tr.HandleAnnotation(context.Background(), triageAnnotation("@mod:example.org", "$report", triageKeyMalicious))

	if got, _ := rep.Lookup(context.Background(), "flagged"); got != store.Malicious {
		t.Errorf("last link not used, flagged = %v", got)
	}
	if got, _ := rep.Lookup(context.Background(), "first"); got != store.Unknown {
		t.Errorf("earlier link wrongly triaged: %v", got)
	}
}

func TestTriageMissingTargetEvent(t *testing.T) {
	hs := newFakeHomeserver()
	rep := store.NewMemoryStore()
	tr := newTestTriage(hs, rep)

	// GetEvent fails; the reaction is dropped without store changes.
	tr.HandleAnnotation(context.Background(), triageAnnotation("@mod:example.org", "$gone", triageKeySafe))
}
