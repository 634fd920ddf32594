package services

import (
	"log/slog"
	"time"

	"roomchat/contract"
	"roomchat/domain"
	"roomchat/repositories"
)

// IMessageService persists messages and fans them out to live
// sessions. Membership authorization is deliberately NOT enforced
// here; the Session Gateway checks it before calling in. Keeping the
// check at the edge leaves these operations reusable by any caller
// that has already established the sender's rights.
type IMessageService interface {
	Send(roomID domain.RoomID, sender, text string) bool
	History(roomID domain.RoomID, page int) ([]domain.Message, error)
}

type MessageService struct {
	messages repositories.IMessageRepository
	registry contract.IRegistry
	log      *slog.Logger
}

func NewMessageService(messages repositories.IMessageRepository, registry contract.IRegistry,
	log *slog.Logger) *MessageService {
	return &MessageService{messages: messages, registry: registry, log: log}
}

// Send persists the message and then broadcasts it to every session
// live in the room. Persistence errors are converted to a boolean
// failure, never propagated as a crash. The display timestamp is
// rendered once here so every receiver and the stored row agree.
func (s *MessageService) Send(roomID domain.RoomID, sender, text string) bool {
	at := time.Now().UTC()

	message, err := s.messages.SaveMessage(roomID, sender, text, at)
	if err != nil {
		s.log.Error("message persistence failed", "room_id", roomID, "sender", sender, "error", err)
		return false
	}

	event, err := domain.NewEvent(domain.EventReceiveMessage, domain.MessagePayload{
		Room:      int64(roomID),
		Sender:    sender,
		Text:      text,
		CreatedAt: message.DisplayTime(),
	})
	if err != nil {
		s.log.Error("broadcast payload encoding failed", "room_id", roomID, "error", err)
		return true // the message is durable, only the live push is lost
	}
	s.registry.Broadcast(roomID, event)
	return true
}

// History is a pure persistence read with the backward-from-newest
// page semantics of the repository; it never touches the registry.
func (s *MessageService) History(roomID domain.RoomID, page int) ([]domain.Message, error) {
	return s.messages.FetchMessages(roomID, page)
}
