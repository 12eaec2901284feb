// Package matrix implements the slice of the Matrix client-server API that
// PhishClaw needs: sending messages, notices and reactions, redactions,
// kicks, typing and read-receipt signalling, power-level queries, and the
// /sync long-poll loop. It is intentionally not a full SDK.
package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultRequestTimeout = 60 * time.Second

// Client talks to a single homeserver with a fixed access token.
type Client struct {
	homeserverURL string
	accessToken   string
	userAgent     string
	userID        string // cached after the first WhoAmI
	client        *http.Client
}

// NewClient creates a client for the given homeserver. The homeserver URL
// must include the scheme (e.g. "https://matrix.org").
func NewClient(homeserverURL, accessToken string) *Client {
	return &Client{
		homeserverURL: strings.TrimRight(homeserverURL, "/"),
		accessToken:   accessToken,
		userAgent:     "PhishClaw",
		client:        &http.Client{Timeout: defaultRequestTimeout},
	}
}

// SetUserAgent overrides the User-Agent header sent with every request.
func (c *Client) SetUserAgent(ua string) { c.userAgent = ua }

// apiError is the standard Matrix error body.
type apiError struct {
	Errcode string `json:"errcode"`
	Err     string `json:"error"`
}

// do performs a JSON request against the client-server API. body may be nil.
// out may be nil when the response payload is not needed.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := c.homeserverURL + "/_matrix/client/v3" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Errcode != "" {
			return fmt.Errorf("%s %s: %s (%s)", method, path, apiErr.Errcode, apiErr.Err)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// WhoAmI returns the user ID the access token belongs to.
func (c *Client) WhoAmI(ctx context.Context) (string, error) {
	if c.userID != "" {
		return c.userID, nil
	}
	var out struct {
		UserID string `json:"user_id"`
	}
	if err := c.do(ctx, http.MethodGet, "/account/whoami", nil, nil, &out); err != nil {
		return "", err
	}
	c.userID = out.UserID
	return out.UserID, nil
}

// DisplayName returns the display name for a user, or "" if none is set.
func (c *Client) DisplayName(ctx context.Context, userID string) (string, error) {
	var out struct {
		DisplayName string `json:"displayname"`
	}
	path := "/profile/" + url.PathEscape(userID) + "/displayname"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return "", err
	}
	return out.DisplayName, nil
}

// SendMessage sends an m.room.message event and returns the new event ID.
func (c *Client) SendMessage(ctx context.Context, roomID string, content MessageContent) (string, error) {
	return c.sendEvent(ctx, roomID, "m.room.message", content)
}

// SendNotice sends a plain m.notice message.
func (c *Client) SendNotice(ctx context.Context, roomID, body string) (string, error) {
	return c.SendMessage(ctx, roomID, MessageContent{MsgType: MsgNotice, Body: body})
}

// SendHTMLNotice sends an m.notice message with an HTML rendering.
func (c *Client) SendHTMLNotice(ctx context.Context, roomID, html, body string) (string, error) {
	return c.SendMessage(ctx, roomID, MessageContent{
		MsgType:       MsgNotice,
		Body:          body,
		Format:        FormatHTML,
		FormattedBody: html,
	})
}

// SendReaction attaches an m.annotation reaction to an event.
func (c *Client) SendReaction(ctx context.Context, roomID, eventID, key string) (string, error) {
	content := ReactionContent{RelatesTo: RelatesTo{
		RelType: RelAnnotation,
		EventID: eventID,
		Key:     key,
	}}
	return c.sendEvent(ctx, roomID, "m.reaction", content)
}

func (c *Client) sendEvent(ctx context.Context, roomID, eventType string, content interface{}) (string, error) {
	var out struct {
		EventID string `json:"event_id"`
	}
	path := "/rooms/" + url.PathEscape(roomID) + "/send/" + url.PathEscape(eventType) + "/" + uuid.NewString()
	if err := c.do(ctx, http.MethodPut, path, nil, content, &out); err != nil {
		return "", err
	}
	return out.EventID, nil
}

// RedactEvent removes an event with a human-readable reason.
func (c *Client) RedactEvent(ctx context.Context, roomID, eventID, reason string) error {
	path := "/rooms/" + url.PathEscape(roomID) + "/redact/" + url.PathEscape(eventID) + "/" + uuid.NewString()
	body := map[string]string{"reason": reason}
	return c.do(ctx, http.MethodPut, path, nil, body, nil)
}

// KickUser removes a user from a room.
func (c *Client) KickUser(ctx context.Context, roomID, userID, reason string) error {
	path := "/rooms/" + url.PathEscape(roomID) + "/kick"
	body := map[string]string{"user_id": userID, "reason": reason}
	return c.do(ctx, http.MethodPost, path, nil, body, nil)
}

// SetTyping toggles the typing indicator in a room.
func (c *Client) SetTyping(ctx context.Context, roomID string, typing bool) error {
	userID, err := c.WhoAmI(ctx)
	if err != nil {
		return err
	}
	path := "/rooms/" + url.PathEscape(roomID) + "/typing/" + url.PathEscape(userID)
	body := map[string]interface{}{"typing": typing}
	if typing {
		body["timeout"] = 30000
	}
	return c.do(ctx, http.MethodPut, path, nil, body, nil)
}

// SendReadReceipt marks an event as read.
func (c *Client) SendReadReceipt(ctx context.Context, roomID, eventID string) error {
	path := "/rooms/" + url.PathEscape(roomID) + "/receipt/m.read/" + url.PathEscape(eventID)
	return c.do(ctx, http.MethodPost, path, nil, struct{}{}, nil)
}

// GetEvent fetches a single event by ID.
func (c *Client) GetEvent(ctx context.Context, roomID, eventID string) (*RawEvent, error) {
	var ev RawEvent
	path := "/rooms/" + url.PathEscape(roomID) + "/event/" + url.PathEscape(eventID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// JoinedRooms lists the room IDs the user is currently joined to.
func (c *Client) JoinedRooms(ctx context.Context) ([]string, error) {
	var out struct {
		JoinedRooms []string `json:"joined_rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/joined_rooms", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.JoinedRooms, nil
}

// ResolveRoomAlias resolves a #alias:server to its room ID.
func (c *Client) ResolveRoomAlias(ctx context.Context, alias string) (string, error) {
	if !strings.HasPrefix(alias, "#") {
		// Already a room ID.
		return alias, nil
	}
	var out struct {
		RoomID string `json:"room_id"`
	}
	path := "/directory/room/" + url.PathEscape(alias)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return "", err
	}
	return out.RoomID, nil
}

// JoinRoom joins a room by ID or alias, optionally routing through via servers.
func (c *Client) JoinRoom(ctx context.Context, roomIDOrAlias string, via []string) (string, error) {
	query := url.Values{}
	for _, server := range via {
		if server != "" {
			query.Add("server_name", server)
		}
	}
	var out struct {
		RoomID string `json:"room_id"`
	}
	path := "/join/" + url.PathEscape(roomIDOrAlias)
	if err := c.do(ctx, http.MethodPost, path, query, struct{}{}, &out); err != nil {
		return "", err
	}
	return out.RoomID, nil
}

// Localpart extracts the local part of a Matrix user ID
// ("@phishclaw:matrix.org" -> "phishclaw").
func Localpart(userID string) string {
	local := strings.TrimPrefix(userID, "@")
	if idx := strings.IndexByte(local, ':'); idx >= 0 {
		local = local[:idx]
	}
	return local
}

// ServerName extracts the server part of a Matrix identifier
// ("@user:matrix.org" -> "matrix.org"). Empty when there is no server part.
func ServerName(id string) string {
	if idx := strings.IndexByte(id, ':'); idx >= 0 {
		return id[idx+1:]
	}
	return ""
}

// EventPermalink builds a matrix.to permalink for an event.
func EventPermalink(roomID, eventID string) string {
	return "https://matrix.to/#/" + roomID + "/" + eventID
}
