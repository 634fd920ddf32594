package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"roomchat/domain"
	"roomchat/errors"
)

type testRepos struct {
	users    *UserRepository
	rooms    *RoomRepository
	messages *MessageRepository
}

func newTestRepos(t *testing.T, pageSize int) testRepos {
	t.Helper()
	db := openTestDB(t)

	users, err := NewUserRepository(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = users.Close() })

	rooms, err := NewRoomRepository(db, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rooms.Close() })

	messages, err := NewMessageRepository(db, slog.Default(), pageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = messages.Close() })

	return testRepos{users: users, rooms: rooms, messages: messages}
}

func Test_CreateRoom_CreatorIsSoleAdminMember(t *testing.T) {
	req := require.New(t)
	repos := newTestRepos(t, 20)

	_, err := repos.users.CreateUser("alice", "alice@example.com", "h")
	req.NoError(err)

	roomID, err := repos.rooms.CreateRoom("Team", "alice")
	req.NoError(err)
	req.Equal(domain.RoomID(1), roomID)

	members, err := repos.rooms.ListMembers(roomID)
	req.NoError(err)
	req.Len(members, 1)
	req.Equal("alice", members[0].Username)
	req.True(members[0].IsAdmin)
	req.Equal("alice", members[0].AddedBy)
}

func Test_CreateRoom_UnknownCreator_RollsBack(t *testing.T) {
	req := require.New(t)
	repos := newTestRepos(t, 20)

	roomID, err := repos.rooms.CreateRoom("Team", "ghost")
	req.ErrorIs(err, errors.ErrUserNotFound)
	req.Zero(roomID)
}

func Test_AddMembership_DuplicateIsNoOp(t *testing.T) {
	req := require.New(t)
	repos := newTestRepos(t, 20)

	_, err := repos.users.CreateUser("alice", "alice@example.com", "h")
	req.NoError(err)
	bobID, err := repos.users.CreateUser("bob", "bob@example.com", "h")
	req.NoError(err)

	roomID, err := repos.rooms.CreateRoom("Team", "alice")
	req.NoError(err)
	room, err := repos.rooms.GetRoom(roomID)
	req.NoError(err)
	bob, err := repos.users.GetUserByUsername("bob")
	req.NoError(err)

	added, err := repos.rooms.AddMembership(room, bob, "alice", false)
	req.NoError(err)
	req.True(added)

	added, err = repos.rooms.AddMembership(room, bob, "alice", false)
	req.NoError(err)
	req.False(added)

	members, err := repos.rooms.ListMembers(roomID)
	req.NoError(err)
	req.Len(members, 2)

	has, err := repos.rooms.HasMembership(roomID, bobID)
	req.NoError(err)
	req.True(has)
}

func Test_RemoveMembership(t *testing.T) {
	req := require.New(t)
	repos := newTestRepos(t, 20)

	_, err := repos.users.CreateUser("alice", "alice@example.com", "h")
	req.NoError(err)
	bobID, err := repos.users.CreateUser("bob", "bob@example.com", "h")
	req.NoError(err)

	roomID, err := repos.rooms.CreateRoom("Team", "alice")
	req.NoError(err)
	room, _ := repos.rooms.GetRoom(roomID)
	bob, _ := repos.users.GetUserByUsername("bob")
	_, err = repos.rooms.AddMembership(room, bob, "alice", false)
	req.NoError(err)

	removed, err := repos.rooms.RemoveMembership(roomID, bobID)
	req.NoError(err)
	req.True(removed)

	t.Run("removing an absent membership reports false", func(t *testing.T) {
		removed, err := repos.rooms.RemoveMembership(roomID, bobID)
		require.NoError(t, err)
		require.False(t, removed)
	})

	rooms, err := repos.rooms.RoomsForUser(bobID)
	req.NoError(err)
	req.Empty(rooms)
}

func Test_RenameRoom(t *testing.T) {
	req := require.New(t)
	repos := newTestRepos(t, 20)

	_, err := repos.users.CreateUser("alice", "alice@example.com", "h")
	req.NoError(err)
	roomID, err := repos.rooms.CreateRoom("Team", "alice")
	req.NoError(err)

	renamed, err := repos.rooms.RenameRoom(roomID, "Crew")
	req.NoError(err)
	req.True(renamed)

	room, err := repos.rooms.GetRoom(roomID)
	req.NoError(err)
	req.Equal("Crew", room.Name)

	renamed, err = repos.rooms.RenameRoom(domain.RoomID(999), "Nope")
	req.NoError(err)
	req.False(renamed)
}

func Test_DeleteRoom_CascadesAtomically(t *testing.T) {
	req := require.New(t)
	repos := newTestRepos(t, 20)

	_, err := repos.users.CreateUser("alice", "alice@example.com", "h")
	req.NoError(err)
	bobID, err := repos.users.CreateUser("bob", "bob@example.com", "h")
	req.NoError(err)

	roomID, err := repos.rooms.CreateRoom("Team", "alice")
	req.NoError(err)
	room, _ := repos.rooms.GetRoom(roomID)
	bob, _ := repos.users.GetUserByUsername("bob")
	_, err = repos.rooms.AddMembership(room, bob, "alice", false)
	req.NoError(err)

	for i := 0; i < 5; i++ {
		_, err = repos.messages.SaveMessage(roomID, "bob", "hi", time.Now().UTC())
		req.NoError(err)
	}

	deleted, err := repos.rooms.DeleteRoom(roomID)
	req.NoError(err)
	req.True(deleted)

	_, err = repos.rooms.GetRoom(roomID)
	req.ErrorIs(err, errors.ErrRoomNotFound)

	members, err := repos.rooms.ListMembers(roomID)
	req.NoError(err)
	req.Empty(members)

	messages, err := repos.messages.FetchMessages(roomID, 0)
	req.NoError(err)
	req.Empty(messages)

	rooms, err := repos.rooms.RoomsForUser(bobID)
	req.NoError(err)
	req.Empty(rooms)

	t.Run("deleting an absent room reports false", func(t *testing.T) {
		deleted, err := repos.rooms.DeleteRoom(roomID)
		require.NoError(t, err)
		require.False(t, deleted)
	})
}

func Test_RoomsForUser(t *testing.T) {
	req := require.New(t)
	repos := newTestRepos(t, 20)

	aliceID, err := repos.users.CreateUser("alice", "alice@example.com", "h")
	req.NoError(err)

	first, err := repos.rooms.CreateRoom("Team", "alice")
	req.NoError(err)
	second, err := repos.rooms.CreateRoom("Crew", "alice")
	req.NoError(err)

	rooms, err := repos.rooms.RoomsForUser(aliceID)
	req.NoError(err)
	req.Len(rooms, 2)

	ids := []domain.RoomID{rooms[0].ID, rooms[1].ID}
	req.ElementsMatch([]domain.RoomID{first, second}, ids)
}
