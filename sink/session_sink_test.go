package sink

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"roomchat/domain"
	"roomchat/errors"
)

func Test_Consume_BuffersUpToCapacity(t *testing.T) {
	req := require.New(t)
	s := NewSessionSink(slog.Default(), 2, 10*time.Millisecond)

	e := domain.Event{Name: domain.EventReceiveMessage}
	req.NoError(s.Consume(e))
	req.NoError(s.Consume(e))

	// Third event finds a full buffer and nobody draining.
	err := s.Consume(e)
	req.ErrorIs(err, errors.ErrSinkSaturated)
	req.Len(s.Events, 2)
}

func Test_Consume_WaitsForDrainWithinGracePeriod(t *testing.T) {
	req := require.New(t)
	s := NewSessionSink(slog.Default(), 1, 200*time.Millisecond)

	e := domain.Event{Name: domain.EventReceiveMessage}
	req.NoError(s.Consume(e))

	go func() {
		time.Sleep(20 * time.Millisecond)
		<-s.Events
	}()

	req.NoError(s.Consume(e))
}
