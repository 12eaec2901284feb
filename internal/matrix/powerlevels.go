package matrix

import (
	"context"
	"net/http"
	"net/url"
)

// PowerLevels is the m.room.power_levels state content, with the defaults
// the spec assigns when fields are absent.
type PowerLevels struct {
	UsersDefault  *int           `json:"users_default,omitempty"`
	EventsDefault *int           `json:"events_default,omitempty"`
	Redact        *int           `json:"redact,omitempty"`
	Kick          *int           `json:"kick,omitempty"`
	Users         map[string]int `json:"users,omitempty"`
	Events        map[string]int `json:"events,omitempty"`
}

func orDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// UserLevel returns the effective power level of a user.
func (p PowerLevels) UserLevel(userID string) int {
	if level, ok := p.Users[userID]; ok {
		return level
	}
	return orDefault(p.UsersDefault, 0)
}

// CanRedact reports whether the user may redact other users' events.
func (p PowerLevels) CanRedact(userID string) bool {
	return p.UserLevel(userID) >= orDefault(p.Redact, 50)
}

// CanKick reports whether the user may kick room members.
func (p PowerLevels) CanKick(userID string) bool {
	return p.UserLevel(userID) >= orDefault(p.Kick, 50)
}

// CanSend reports whether the user may send the given event type.
func (p PowerLevels) CanSend(userID, eventType string) bool {
	required, ok := p.Events[eventType]
	if !ok {
		required = orDefault(p.EventsDefault, 0)
	}
	return p.UserLevel(userID) >= required
}

// powerLevels fetches the current power-level state of a room.
// A missing state event yields the spec defaults.
func (c *Client) powerLevels(ctx context.Context, roomID string) (PowerLevels, error) {
	var levels PowerLevels
	path := "/rooms/" + url.PathEscape(roomID) + "/state/m.room.power_levels/"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &levels); err != nil {
		return PowerLevels{}, err
	}
	return levels, nil
}

// CanRedact reports whether the user may redact events in the room.
func (c *Client) CanRedact(ctx context.Context, roomID, userID string) (bool, error) {
	levels, err := c.powerLevels(ctx, roomID)
	if err != nil {
		return false, err
	}
	return levels.CanRedact(userID), nil
}

// CanKick reports whether the user may kick members of the room.
func (c *Client) CanKick(ctx context.Context, roomID, userID string) (bool, error) {
	levels, err := c.powerLevels(ctx, roomID)
	if err != nil {
		return false, err
	}
	return levels.CanKick(userID), nil
}

// CanSendMessage reports whether the user may send m.room.message events.
func (c *Client) CanSendMessage(ctx context.Context, roomID, userID string) (bool, error) {
	levels, err := c.powerLevels(ctx, roomID)
	if err != nil {
		return false, err
	}
	return levels.CanSend(userID, "m.room.message"), nil
}
