package matrix

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	syncTimeout    = 30 * time.Second
	syncRetryDelay = 5 * time.Second
)

// SyncResponse is the subset of the /sync payload the bot consumes.
type SyncResponse struct {
	NextBatch string `json:"next_batch"`
	Rooms     struct {
		Join   map[string]JoinedRoom `json:"join"`
		Invite map[string]struct{}   `json:"invite"`
	} `json:"rooms"`
}

// JoinedRoom carries the timeline events of one joined room.
type JoinedRoom struct {
	Timeline struct {
		Events []RawEvent `json:"events"`
	} `json:"timeline"`
}

// Sync performs one /sync long-poll. since may be empty for the initial sync.
func (c *Client) Sync(ctx context.Context, since string, timeout time.Duration) (*SyncResponse, error) {
	query := url.Values{}
	query.Set("timeout", strconv.FormatInt(timeout.Milliseconds(), 10))
	if since != "" {
		query.Set("since", since)
	}

	// The long poll must outlive the default per-request timeout.
	reqCtx, cancel := context.WithTimeout(ctx, timeout+defaultRequestTimeout)
	defer cancel()

	var resp SyncResponse
	if err := c.do(reqCtx, http.MethodGet, "/sync", query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Syncer runs the /sync loop and fans events out to the handler callbacks.
// Each event is dispatched on its own goroutine so one slow scan cannot
// stall delivery from other rooms.
type Syncer struct {
	client   *Client
	userID   string
	autoJoin bool

	OnMessage    func(msg TextMessage)
	OnAnnotation func(ann Annotation)
	OnRoomJoin   func(join RoomJoin)
}

// NewSyncer creates a syncer for the given client. userID is the bot's own
// user ID, used to recognize its membership events.
func NewSyncer(client *Client, userID string, autoJoin bool) *Syncer {
	return &Syncer{client: client, userID: userID, autoJoin: autoJoin}
}

// Run blocks, long-polling /sync until the context is cancelled. The first
// sync establishes the batch token without processing backlog, so the bot
// never re-moderates history after a restart.
func (s *Syncer) Run(ctx context.Context) error {
	initial, err := s.client.Sync(ctx, "", 0)
	if err != nil {
		return err
	}
	since := initial.NextBatch
	slog.Info("sync loop started", "user_id", s.userID)

	for {
		resp, err := s.client.Sync(ctx, since, syncTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("sync failed, retrying", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(syncRetryDelay):
			}
			continue
		}
		since = resp.NextBatch
		s.dispatch(ctx, resp)
	}
}

func (s *Syncer) dispatch(ctx context.Context, resp *SyncResponse) {
	for roomID := range resp.Rooms.Invite {
		if !s.autoJoin {
			continue
		}
		go func(roomID string) {
			if _, err := s.client.JoinRoom(ctx, roomID, nil); err != nil {
				slog.Warn("could not accept invite", "room_id", roomID, "error", err)
			}
		}(roomID)
	}

	for roomID, room := range resp.Rooms.Join {
		for _, ev := range room.Timeline.Events {
			s.dispatchEvent(roomID, ev)
		}
	}
}

func (s *Syncer) dispatchEvent(roomID string, ev RawEvent) {
	if msg, ok := ParseTextMessage(roomID, ev); ok {
		if s.OnMessage != nil {
			go s.OnMessage(msg)
		}
		return
	}
	if ann, ok := ParseAnnotation(roomID, ev); ok {
		if s.OnAnnotation != nil {
			go s.OnAnnotation(ann)
		}
		return
	}
	if parseSelfJoin(s.userID, ev) {
		if s.OnRoomJoin != nil {
			go s.OnRoomJoin(RoomJoin{RoomID: roomID})
		}
	}
}
