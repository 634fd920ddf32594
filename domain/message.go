package domain

import "time"

// DisplayTimeLayout is the human-facing timestamp format pushed to
// clients. It is rendered once at send time so the broadcast and the
// stored record agree to the minute.
const DisplayTimeLayout = "02 Jan 2006, 15:04"

// Message represents an immutable chat event. Messages within a room
// are totally ordered by CreatedAt ascending, ties broken by ID
// ascending (insertion order).
type Message struct {
	ID        int64
	RoomID    RoomID
	Sender    string
	Text      string
	CreatedAt time.Time
}

// DisplayTime renders CreatedAt with the client-facing layout.
func (m Message) DisplayTime() string {
	return m.CreatedAt.Format(DisplayTimeLayout)
}
