package services

import (
	"log/slog"

	"roomchat/contract"
	"roomchat/domain"
	"roomchat/errors"
	"roomchat/repositories"
)

// IMembershipService owns the business rules for rooms and their
// durable membership rows. Unknown usernames and already-present
// members are skipped silently: partial success is the normal outcome
// of a bulk add, not an error.
type IMembershipService interface {
	CreateRoom(name, creator string) (domain.RoomID, error)
	AddMembers(roomID domain.RoomID, usernames []string, addedBy string) ([]domain.Membership, error)
	RemoveMembers(roomID domain.RoomID, usernames []string) error
	IsAdmin(roomID domain.RoomID, username string) (bool, error)
	IsMember(roomID domain.RoomID, username string) (bool, error)
	Members(roomID domain.RoomID) ([]domain.Membership, error)
	RoomsForUser(username string) ([]domain.Room, error)
	RenameRoom(roomID domain.RoomID, actor, newName string) (bool, error)
	DeleteRoom(roomID domain.RoomID, actor string) (bool, error)
}

type MembershipService struct {
	users    repositories.IUserRepository
	rooms    repositories.IRoomRepository
	registry contract.IRegistry
	log      *slog.Logger
}

func NewMembershipService(users repositories.IUserRepository, rooms repositories.IRoomRepository,
	registry contract.IRegistry, log *slog.Logger) *MembershipService {
	return &MembershipService{users: users, rooms: rooms, registry: registry, log: log}
}

// CreateRoom creates the room with its creator as sole initial admin
// member. The repository guarantees the two writes are atomic; a zero
// RoomID means nothing was created.
func (s *MembershipService) CreateRoom(name, creator string) (domain.RoomID, error) {
	roomID, err := s.rooms.CreateRoom(name, creator)
	if err != nil {
		s.log.Error("room creation failed", "name", name, "creator", creator, "error", err)
		return 0, err
	}
	s.log.Info("room created", "room_id", roomID, "name", name, "creator", creator)
	return roomID, nil
}

// AddMembers resolves each username and inserts a membership row for
// it. Unknown usernames and existing members are skipped without
// error; only the successfully added subset is returned.
func (s *MembershipService) AddMembers(roomID domain.RoomID, usernames []string, addedBy string) ([]domain.Membership, error) {
	room, err := s.rooms.GetRoom(roomID)
	if err == errors.ErrRoomNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var added []domain.Membership
	for _, username := range usernames {
		user, err := s.users.GetUserByUsername(username)
		if err == errors.ErrUserNotFound {
			continue
		}
		if err != nil {
			return added, err
		}

		ok, err := s.rooms.AddMembership(room, user, addedBy, false)
		if err != nil {
			return added, err
		}
		if !ok {
			continue
		}
		added = append(added, domain.Membership{
			RoomID:   roomID,
			UserID:   user.ID,
			Username: user.Username,
			RoomName: room.Name,
			AddedBy:  addedBy,
		})
	}
	return added, nil
}

// RemoveMembers deletes the membership row of each resolvable,
// non-admin username. Admins are silently skipped: the room creator
// cannot be removed this way. A removed user's live sessions are
// evicted from the registry so broadcasts stop reaching them at once.
func (s *MembershipService) RemoveMembers(roomID domain.RoomID, usernames []string) error {
	if _, err := s.rooms.GetRoom(roomID); err != nil {
		if err == errors.ErrRoomNotFound {
			return nil
		}
		return err
	}

	for _, username := range usernames {
		user, err := s.users.GetUserByUsername(username)
		if err == errors.ErrUserNotFound {
			continue
		}
		if err != nil {
			return err
		}

		admin, err := s.IsAdmin(roomID, username)
		if err != nil {
			return err
		}
		if admin {
			s.log.Debug("skipping admin removal", "room_id", roomID, "username", username)
			continue
		}

		removed, err := s.rooms.RemoveMembership(roomID, user.ID)
		if err != nil {
			return err
		}
		if removed {
			evicted := s.registry.EvictUser(roomID, username)
			s.log.Info("member removed", "room_id", roomID, "username", username,
				"evicted_sessions", evicted)
		}
	}
	return nil
}

// IsAdmin reports whether the username equals the room's creator.
// Membership rows carry their own admin flag but this check
// deliberately ignores it: only the creator is recognized as admin.
// Unifying the two representations would be a behavior change.
func (s *MembershipService) IsAdmin(roomID domain.RoomID, username string) (bool, error) {
	room, err := s.rooms.GetRoom(roomID)
	if err == errors.ErrRoomNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return room.CreatedBy == username, nil
}

func (s *MembershipService) IsMember(roomID domain.RoomID, username string) (bool, error) {
	user, err := s.users.GetUserByUsername(username)
	if err == errors.ErrUserNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.rooms.HasMembership(roomID, user.ID)
}

func (s *MembershipService) Members(roomID domain.RoomID) ([]domain.Membership, error) {
	return s.rooms.ListMembers(roomID)
}

func (s *MembershipService) RoomsForUser(username string) ([]domain.Room, error) {
	user, err := s.users.GetUserByUsername(username)
	if err == errors.ErrUserNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.rooms.RoomsForUser(user.ID)
}

// RenameRoom is a thin pass-through gated on admin rights.
func (s *MembershipService) RenameRoom(roomID domain.RoomID, actor, newName string) (bool, error) {
	admin, err := s.IsAdmin(roomID, actor)
	if err != nil {
		return false, err
	}
	if !admin {
		return false, errors.ErrUnauthorized
	}
	return s.rooms.RenameRoom(roomID, newName)
}

// DeleteRoom cascades the room, its memberships and its messages in
// one transaction, gated on admin rights.
func (s *MembershipService) DeleteRoom(roomID domain.RoomID, actor string) (bool, error) {
	admin, err := s.IsAdmin(roomID, actor)
	if err != nil {
		return false, err
	}
	if !admin {
		return false, errors.ErrUnauthorized
	}
	deleted, err := s.rooms.DeleteRoom(roomID)
	if err != nil {
		return false, err
	}
	if deleted {
		s.log.Info("room deleted", "room_id", roomID, "actor", actor)
	}
	return deleted, nil
}
