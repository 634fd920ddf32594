// Package sink decouples broadcast fan-out from socket writes. Each
// live session owns one buffered sink; the write pump drains it at the
// connection's own pace.
package sink

import (
	"log/slog"
	"time"

	"roomchat/domain"
	"roomchat/errors"
)

type SessionSink struct {
	log             *slog.Logger
	deliveryTimeout time.Duration

	// Events is drained by the session's write pump.
	Events chan domain.Event
}

func NewSessionSink(log *slog.Logger, bufferSize int, deliveryTimeout time.Duration) *SessionSink {
	return &SessionSink{
		log:             log,
		deliveryTimeout: deliveryTimeout,
		Events:          make(chan domain.Event, bufferSize),
	}
}

// Consume hands an event to the session's buffer. A full buffer gets a
// short grace period; after that the event is dropped so one stalled
// connection cannot starve the rest of the room.
func (s *SessionSink) Consume(e domain.Event) error {
	select {
	case s.Events <- e:
		return nil
	default:
	}

	timer := time.NewTimer(s.deliveryTimeout)
	defer timer.Stop()
	select {
	case s.Events <- e:
		return nil
	case <-timer.C:
		return errors.ErrSinkSaturated
	}
}
