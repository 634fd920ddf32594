package domain

import "time"

type RoomID int64

// Room is a named container for a set of members and an ordered
// message history. Names are not unique; the identifier is.
type Room struct {
	ID        RoomID
	Name      string
	CreatedBy string
	CreatedAt time.Time
}

// Membership is the durable record that a user belongs to a room.
// The (RoomID, UserID) pair is unique. The admin flag is only set
// at insert time and never updated afterwards.
type Membership struct {
	RoomID    RoomID
	UserID    UserID
	Username  string
	RoomName  string
	IsAdmin   bool
	AddedBy   string
	CreatedAt time.Time
}
