package domain

import "encoding/json"

type EventName string

const (
	EventReceiveMessage    EventName = "receive_message"
	EventJoinAnnouncement  EventName = "join_room_announcement"
	EventLeaveAnnouncement EventName = "leave_room_announcement"
)

// Event is an outbound wire frame pushed to a live session.
type Event struct {
	Name EventName       `json:"event"`
	Data json.RawMessage `json:"data"`
}

// MessagePayload is the broadcast body of a chat message. CreatedAt is
// a display string frozen at send time, not regenerated per receiver.
type MessagePayload struct {
	Room      int64  `json:"room"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// PresencePayload announces a session joining or leaving a room.
type PresencePayload struct {
	Room     int64  `json:"room"`
	Username string `json:"username"`
}

// NewEvent marshals the payload eagerly so a broadcast serializes the
// body exactly once for every receiver.
func NewEvent(name EventName, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Data: data}, nil
}
