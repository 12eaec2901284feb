package matrix

import "encoding/json"

// Message types and relation constants from the client-server spec.
const (
	MsgText   = "m.text"
	MsgNotice = "m.notice"

	FormatHTML = "org.matrix.custom.html"

	RelAnnotation = "m.annotation"
	RelThread     = "m.thread"
)

// RawEvent is an event as delivered by /sync or /rooms/{id}/event.
type RawEvent struct {
	Type           string          `json:"type"`
	EventID        string          `json:"event_id"`
	Sender         string          `json:"sender"`
	StateKey       *string         `json:"state_key,omitempty"`
	OriginServerTS int64           `json:"origin_server_ts"`
	Content        json.RawMessage `json:"content"`
	Unsigned       *Unsigned       `json:"unsigned,omitempty"`
}

// Unsigned carries server-added metadata. RedactedBecause is set on events
// that have been redacted.
type Unsigned struct {
	RedactedBecause json.RawMessage `json:"redacted_because,omitempty"`
}

// InReplyTo marks a message as a rich reply to another event.
type InReplyTo struct {
	EventID string `json:"event_id"`
}

// RelatesTo is the m.relates_to relation block shared by reactions,
// threads and replies.
type RelatesTo struct {
	RelType       string     `json:"rel_type,omitempty"`
	EventID       string     `json:"event_id,omitempty"`
	Key           string     `json:"key,omitempty"`
	IsFallingBack bool       `json:"is_falling_back,omitempty"`
	InReplyTo     *InReplyTo `json:"m.in_reply_to,omitempty"`
}

// MessageContent is the content of an m.room.message event.
type MessageContent struct {
	MsgType       string     `json:"msgtype"`
	Body          string     `json:"body"`
	Format        string     `json:"format,omitempty"`
	FormattedBody string     `json:"formatted_body,omitempty"`
	RelatesTo     *RelatesTo `json:"m.relates_to,omitempty"`
}

// ReactionContent is the content of an m.reaction event.
type ReactionContent struct {
	RelatesTo RelatesTo `json:"m.relates_to"`
}

// memberContent is the content of an m.room.member state event.
type memberContent struct {
	Membership string `json:"membership"`
}

// TextMessage is a room message event in a form the scan pipeline consumes.
type TextMessage struct {
	RoomID     string
	EventID    string
	Sender     string
	MsgType    string
	Body       string
	Redacted   bool
	ThreadRoot string // thread root event ID when the message is a thread reply
}

// InThread reports whether the message was sent inside a reply thread.
func (m TextMessage) InThread() bool { return m.ThreadRoot != "" }

// Annotation is an emoji reaction event.
type Annotation struct {
	RoomID    string
	EventID   string
	Sender    string
	TargetID  string // the event the reaction is attached to
	Key       string // the emoji key
}

// RoomJoin signals that the bot itself joined a room.
type RoomJoin struct {
	RoomID string
}

// ParseTextMessage interprets a raw event as a room message.
// Returns false for any other event type.
func ParseTextMessage(roomID string, ev RawEvent) (TextMessage, bool) {
	if ev.Type != "m.room.message" {
		return TextMessage{}, false
	}
	var content MessageContent
	if err := json.Unmarshal(ev.Content, &content); err != nil {
		return TextMessage{}, false
	}
	msg := TextMessage{
		RoomID:   roomID,
		EventID:  ev.EventID,
		Sender:   ev.Sender,
		MsgType:  content.MsgType,
		Body:     content.Body,
		Redacted: len(ev.Content) <= 2 || (ev.Unsigned != nil && len(ev.Unsigned.RedactedBecause) > 0),
	}
	if content.RelatesTo != nil && content.RelatesTo.RelType == RelThread {
		msg.ThreadRoot = content.RelatesTo.EventID
	}
	return msg, true
}

// ParseAnnotation interprets a raw event as an emoji annotation.
// Returns false for any other event type or relation.
func ParseAnnotation(roomID string, ev RawEvent) (Annotation, bool) {
	if ev.Type != "m.reaction" {
		return Annotation{}, false
	}
	var content ReactionContent
	if err := json.Unmarshal(ev.Content, &content); err != nil {
		return Annotation{}, false
	}
	if content.RelatesTo.RelType != RelAnnotation || content.RelatesTo.EventID == "" {
		return Annotation{}, false
	}
	return Annotation{
		RoomID:   roomID,
		EventID:  ev.EventID,
		Sender:   ev.Sender,
		TargetID: content.RelatesTo.EventID,
		Key:      content.RelatesTo.Key,
	}, true
}

// parseSelfJoin reports whether the event is the given user joining the room.
func parseSelfJoin(userID string, ev RawEvent) bool {
	if ev.Type != "m.room.member" || ev.StateKey == nil || *ev.StateKey != userID {
		return false
	}
	var content memberContent
	if err := json.Unmarshal(ev.Content, &content); err != nil {
		return false
	}
	return content.Membership == "join"
}
