package matrix

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"
)

func TestSync(t *testing.T) {
	var gotSince, gotTimeout string
	client, srv := testClient(func(w http.ResponseWriter, r *http.Request) {
		gotSince = r.URL.Query().Get("since")
		gotTimeout = r.URL.Query().Get("timeout")
		json.NewEncoder(w).Encode(map[string]any{
			"next_batch": "s2",
			"rooms": map[string]any{
				"join": map[string]any{
					"!room:example.org": map[string]any{
						"timeline": map[string]any{
							"events": []any{
								map[string]any{
									"type":     "m.room.message",
									"event_id": "$m",
									"sender":   "@u:example.org",
									"content":  map[string]any{"msgtype": "m.text", "body": "hi"},
								},
							},
						},
					},
				},
			},
		})
	})
	defer srv.Close()

	resp, err := client.Sync(context.Background(), "s1", 30*time.Second)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if gotSince != "s1" || gotTimeout != "30000" {
		t.Errorf("query since=%q timeout=%q", gotSince, gotTimeout)
	}
	if resp.NextBatch != "s2" {
		t.Errorf("next_batch = %q", resp.NextBatch)
	}
	events := resp.Rooms.Join["!room:example.org"].Timeline.Events
	if len(events) != 1 || events[0].EventID != "$m" {
		t.Errorf("events = %+v", events)
	}
}

func TestSyncerDispatch(t *testing.T) {
	resp := &SyncResponse{}
	resp.Rooms.Join = map[string]JoinedRoom{}

	msgContent, _ := json.Marshal(MessageContent{MsgType: MsgText, Body: "hello"})
	annContent, _ := json.Marshal(ReactionContent{
		RelatesTo: RelatesTo{RelType: RelAnnotation, EventID: "$target", Key: "✅"},
	})
	stateKey := "@bot:example.org"
	joinContent, _ := json.Marshal(map[string]string{"membership": "join"})

	room := JoinedRoom{}
	room.Timeline.Events = []RawEvent{
		{Type: "m.room.message", EventID: "$m", Sender: "@u:example.org", Content: msgContent},
		{Type: "m.reaction", EventID: "$a", Sender: "@mod:example.org", Content: annContent},
		{Type: "m.room.member", EventID: "$j", Sender: stateKey, StateKey: &stateKey, Content: joinContent},
	}
	resp.Rooms.Join["!room:example.org"] = room

	var wg sync.WaitGroup
	wg.Add(3)

	var mu sync.Mutex
	var gotMsg *TextMessage
	var gotAnn *Annotation
	var gotJoin *RoomJoin

	s := NewSyncer(nil, "@bot:example.org", false)
	s.OnMessage = func(msg TextMessage) {
		mu.Lock()
		gotMsg = &msg
		mu.Unlock()
		wg.Done()
	}
	s.OnAnnotation = func(ann Annotation) {
		mu.Lock()
		gotAnn = &ann
		mu.Unlock()
		wg.Done()
	}
	s.OnRoomJoin = func(join RoomJoin) {
		mu.Lock()
		gotJoin = &join
		mu.Unlock()
		wg.Done()
	}

	s.dispatch(context.Background(), resp)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if gotMsg == nil || gotMsg.Body != "hello" || gotMsg.RoomID != "!room:example.org" {
		t.Errorf("message = %+v", gotMsg)
	}
	if gotAnn == nil || gotAnn.TargetID != "$target" || gotAnn.Key != "✅" {
		t.Errorf("annotation = %+v", gotAnn)
	}
	if gotJoin == nil || gotJoin.RoomID != "!room:example.org" {
		t.Errorf("join = %+v", gotJoin)
	}
}
