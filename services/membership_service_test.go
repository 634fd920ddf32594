package services

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"roomchat/contract"
	"roomchat/domain"
	"roomchat/errors"
	"roomchat/registry"
	"roomchat/repositories"
	"roomchat/sink"
)

type fixture struct {
	membership *MembershipService
	messages   *MessageService
	registry   *registry.Registry
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	users, err := repositories.NewUserRepository(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = users.Close() })
	rooms, err := repositories.NewRoomRepository(db, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rooms.Close() })
	messages, err := repositories.NewMessageRepository(db, log, 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = messages.Close() })

	liveRegistry := registry.NewRegistry(log)
	f := fixture{
		membership: NewMembershipService(users, rooms, liveRegistry, log),
		messages:   NewMessageService(messages, liveRegistry, log),
		registry:   liveRegistry,
	}

	for _, u := range []struct{ name, email string }{
		{"alice", "alice@example.com"},
		{"bob", "bob@example.com"},
		{"carol", "carol@example.com"},
	} {
		_, err := users.CreateUser(u.name, u.email, "h")
		require.NoError(t, err)
	}
	return f
}

func liveSession(t *testing.T, username string) (*contract.Session, *sink.SessionSink) {
	t.Helper()
	s := sink.NewSessionSink(slog.Default(), 16, 50*time.Millisecond)
	return contract.NewSession(username, s), s
}

func TestMembershipService_AddMembers_SkipsUnknownAndExisting(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	roomID, err := f.membership.CreateRoom("Team", "alice")
	req.NoError(err)

	added, err := f.membership.AddMembers(roomID, []string{"bob", "carol", "unknown_user"}, "alice")
	req.NoError(err)
	req.Len(added, 2)
	req.Equal("bob", added[0].Username)
	req.Equal("carol", added[1].Username)

	t.Run("re-adding never duplicates memberships", func(t *testing.T) {
		again, err := f.membership.AddMembers(roomID, []string{"bob", "carol"}, "alice")
		require.NoError(t, err)
		require.Empty(t, again)

		members, err := f.membership.Members(roomID)
		require.NoError(t, err)
		require.Len(t, members, 3)
	})

	t.Run("absent room yields an empty result, not an error", func(t *testing.T) {
		added, err := f.membership.AddMembers(domain.RoomID(999), []string{"bob"}, "alice")
		require.NoError(t, err)
		require.Empty(t, added)
	})
}

func TestMembershipService_RemoveMembers_ProtectsAdmin(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	roomID, err := f.membership.CreateRoom("Team", "alice")
	req.NoError(err)
	_, err = f.membership.AddMembers(roomID, []string{"bob"}, "alice")
	req.NoError(err)

	// The creator is silently skipped, whatever the call order.
	req.NoError(f.membership.RemoveMembers(roomID, []string{"alice", "bob", "ghost"}))

	members, err := f.membership.Members(roomID)
	req.NoError(err)
	req.Len(members, 1)
	req.Equal("alice", members[0].Username)

	admin, err := f.membership.IsAdmin(roomID, "alice")
	req.NoError(err)
	req.True(admin)
}

func TestMembershipService_IsAdmin_RecognizesOnlyTheCreator(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	roomID, err := f.membership.CreateRoom("Team", "alice")
	req.NoError(err)
	_, err = f.membership.AddMembers(roomID, []string{"bob"}, "alice")
	req.NoError(err)

	admin, err := f.membership.IsAdmin(roomID, "bob")
	req.NoError(err)
	req.False(admin)

	admin, err = f.membership.IsAdmin(domain.RoomID(999), "alice")
	req.NoError(err)
	req.False(admin)
}

func TestMembershipService_AdminGates(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	roomID, err := f.membership.CreateRoom("Team", "alice")
	req.NoError(err)

	_, err = f.membership.RenameRoom(roomID, "bob", "Hijacked")
	req.ErrorIs(err, errors.ErrUnauthorized)

	_, err = f.membership.DeleteRoom(roomID, "bob")
	req.ErrorIs(err, errors.ErrUnauthorized)

	renamed, err := f.membership.RenameRoom(roomID, "alice", "Crew")
	req.NoError(err)
	req.True(renamed)

	deleted, err := f.membership.DeleteRoom(roomID, "alice")
	req.NoError(err)
	req.True(deleted)
}

// Mirrors the canonical flow: alice creates a room, invites bob and
// carol, messages arrive in order, and removing bob cuts him off from
// live broadcasts immediately.
func TestMembershipService_RemovalEvictsLiveSessions(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	roomID, err := f.membership.CreateRoom("Team", "alice")
	req.NoError(err)
	req.Equal(domain.RoomID(1), roomID)

	added, err := f.membership.AddMembers(roomID, []string{"bob", "carol", "unknown_user"}, "alice")
	req.NoError(err)
	req.Len(added, 2)

	bobSession, bobSink := liveSession(t, "bob")
	carolSession, carolSink := liveSession(t, "carol")
	f.registry.Join(roomID, bobSession)
	f.registry.Join(roomID, carolSession)

	req.True(f.messages.Send(roomID, "bob", "hi"))
	req.True(f.messages.Send(roomID, "carol", "yo"))

	history, err := f.messages.History(roomID, 0)
	req.NoError(err)
	req.Len(history, 2)
	req.Equal("bob", history[0].Sender)
	req.Equal("hi", history[0].Text)
	req.Equal("carol", history[1].Sender)
	req.Equal("yo", history[1].Text)

	// Both were live, both received both messages.
	req.Len(drainEvents(bobSink), 2)
	req.Len(drainEvents(carolSink), 2)

	req.NoError(f.membership.RemoveMembers(roomID, []string{"bob"}))

	req.True(f.messages.Send(roomID, "carol", "still here?"))
	req.Empty(drainEvents(bobSink))
	req.Len(drainEvents(carolSink), 1)
}

func drainEvents(s *sink.SessionSink) []domain.Event {
	var events []domain.Event
	for {
		select {
		case e := <-s.Events:
			events = append(events, e)
		default:
			return events
		}
	}
}
