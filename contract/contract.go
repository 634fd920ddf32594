//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"roomchat/domain"

	"github.com/google/uuid"
)

// EventSink receives outbound events destined for one live session.
// Implementations must not block the caller indefinitely; a saturated
// sink drops the event and reports it instead of stalling a broadcast.
type EventSink interface {
	Consume(e domain.Event) error
}

// Session is the ephemeral handle of one connected user. It has no
// durable counterpart and dies with the connection.
type Session struct {
	ID       uuid.UUID
	Username string
	Sink     EventSink
}

func NewSession(username string, sink EventSink) *Session {
	return &Session{ID: uuid.New(), Username: username, Sink: sink}
}

// IRegistry tracks which sessions are live in which rooms right now.
// It owns presence state only, never durable membership.
type IRegistry interface {
	Join(roomID domain.RoomID, s *Session)
	Leave(roomID domain.RoomID, s *Session)
	LeaveAll(s *Session) []domain.RoomID
	Broadcast(roomID domain.RoomID, e domain.Event)
	EvictUser(roomID domain.RoomID, username string) int
}
