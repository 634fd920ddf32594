//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"roomchat/domain"
	"roomchat/errors"
)

type IRoomRepository interface {
	CreateRoom(name, createdBy string) (domain.RoomID, error)
	GetRoom(roomID domain.RoomID) (domain.Room, error)
	RenameRoom(roomID domain.RoomID, newName string) (bool, error)
	DeleteRoom(roomID domain.RoomID) (bool, error)
	AddMembership(room domain.Room, user domain.User, addedBy string, isAdmin bool) (bool, error)
	RemoveMembership(roomID domain.RoomID, userID domain.UserID) (bool, error)
	ListMembers(roomID domain.RoomID) ([]domain.Membership, error)
	RoomsForUser(userID domain.UserID) ([]domain.Room, error)
	HasMembership(roomID domain.RoomID, userID domain.UserID) (bool, error)
}

type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
	seq *badger.Sequence
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) (*RoomRepository, error) {
	seq, err := db.GetSequence([]byte("seq:room"), 64)
	if err != nil {
		return nil, err
	}
	return &RoomRepository{db: db, log: log, seq: seq}, nil
}

func (r *RoomRepository) Close() error {
	return r.seq.Release()
}

// CreateRoom writes the room record and the creator's admin membership
// in a single transaction. If either write fails the whole creation is
// rolled back and the zero RoomID signals failure to the caller.
func (r *RoomRepository) CreateRoom(name, createdBy string) (domain.RoomID, error) {
	n, err := r.seq.Next()
	if err != nil {
		return 0, err
	}
	id := int64(n) + 1
	now := time.Now().UTC().UnixNano()

	roomData, err := encode(roomRecord{ID: id, Name: name, CreatedBy: createdBy, CreatedAt: now})
	if err != nil {
		return 0, err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(createdBy))
		if err != nil {
			return errors.ErrUserNotFound
		}
		var creator userRecord
		if err := item.Value(func(val []byte) error { return decode(val, &creator) }); err != nil {
			return err
		}

		memberData, err := encode(memberRecord{
			RoomID:    id,
			UserID:    creator.ID,
			Username:  creator.Username,
			RoomName:  name,
			IsAdmin:   true,
			AddedBy:   createdBy,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}

		if err := txn.Set(roomKey(domain.RoomID(id)), roomData); err != nil {
			return err
		}
		if err := txn.Set(memberKey(domain.RoomID(id), domain.UserID(creator.ID)), memberData); err != nil {
			return err
		}
		return txn.Set(memberOfKey(domain.UserID(creator.ID), domain.RoomID(id)), nil)
	})
	if err != nil {
		return 0, err
	}
	return domain.RoomID(id), nil
}

func (r *RoomRepository) GetRoom(roomID domain.RoomID) (domain.Room, error) {
	var record roomRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(roomID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return decode(val, &record) })
	})
	if err == badger.ErrKeyNotFound {
		return domain.Room{}, errors.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, err
	}
	return toRoom(record), nil
}

// RenameRoom returns false when the room does not exist. Membership
// rows keep the name they were inserted with, matching the historical
// behavior of the room_name column.
func (r *RoomRepository) RenameRoom(roomID domain.RoomID, newName string) (bool, error) {
	found := false
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(roomID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var record roomRecord
		if err := item.Value(func(val []byte) error { return decode(val, &record) }); err != nil {
			return err
		}
		record.Name = newName
		data, err := encode(record)
		if err != nil {
			return err
		}
		found = true
		return txn.Set(roomKey(roomID), data)
	})
	return found, err
}

// DeleteRoom cascades over the room record, every membership row (both
// directions of the index) and every message, all inside one
// transaction. A failure rolls the whole deletion back.
func (r *RoomRepository) DeleteRoom(roomID domain.RoomID) (bool, error) {
	found := false
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(roomID)); err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		found = true

		var doomed [][]byte
		doomed = append(doomed, roomKey(roomID))

		options := badger.DefaultIteratorOptions
		options.PrefetchValues = true
		it := txn.NewIterator(options)
		for it.Seek(memberPrefix(roomID)); it.ValidForPrefix(memberPrefix(roomID)); it.Next() {
			var record memberRecord
			if err := it.Item().Value(func(val []byte) error { return decode(val, &record) }); err != nil {
				it.Close()
				return err
			}
			doomed = append(doomed, it.Item().KeyCopy(nil))
			doomed = append(doomed, memberOfKey(domain.UserID(record.UserID), roomID))
		}
		it.Close()

		msgOptions := badger.DefaultIteratorOptions
		msgOptions.PrefetchValues = false
		mit := txn.NewIterator(msgOptions)
		for mit.Seek(messagePrefix(roomID)); mit.ValidForPrefix(messagePrefix(roomID)); mit.Next() {
			doomed = append(doomed, mit.Item().KeyCopy(nil))
		}
		mit.Close()

		for _, key := range doomed {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// AddMembership inserts a (room, user) row unless one already exists.
// The duplicate case is an idempotent no-op reported as false, not an
// error.
func (r *RoomRepository) AddMembership(room domain.Room, user domain.User, addedBy string, isAdmin bool) (bool, error) {
	data, err := encode(memberRecord{
		RoomID:    int64(room.ID),
		UserID:    int64(user.ID),
		Username:  user.Username,
		RoomName:  room.Name,
		IsAdmin:   isAdmin,
		AddedBy:   addedBy,
		CreatedAt: time.Now().UTC().UnixNano(),
	})
	if err != nil {
		return false, err
	}

	added := false
	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(memberKey(room.ID, user.ID)); err == nil {
			return nil
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Set(memberKey(room.ID, user.ID), data); err != nil {
			return err
		}
		if err := txn.Set(memberOfKey(user.ID, room.ID), nil); err != nil {
			return err
		}
		added = true
		return nil
	})
	return added, err
}

// RemoveMembership returns false when no such membership exists.
func (r *RoomRepository) RemoveMembership(roomID domain.RoomID, userID domain.UserID) (bool, error) {
	removed := false
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(memberKey(roomID, userID)); err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		if err := txn.Delete(memberKey(roomID, userID)); err != nil {
			return err
		}
		if err := txn.Delete(memberOfKey(userID, roomID)); err != nil {
			return err
		}
		removed = true
		return nil
	})
	return removed, err
}

func (r *RoomRepository) ListMembers(roomID domain.RoomID) ([]domain.Membership, error) {
	var members []domain.Membership
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(memberPrefix(roomID)); it.ValidForPrefix(memberPrefix(roomID)); it.Next() {
			var record memberRecord
			if err := it.Item().Value(func(val []byte) error { return decode(val, &record) }); err != nil {
				return err
			}
			members = append(members, toMembership(record))
		}
		return nil
	})
	return members, err
}

// RoomsForUser resolves the reverse membership index into room records.
func (r *RoomRepository) RoomsForUser(userID domain.UserID) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := memberOfPrefix(userID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rawID := string(it.Item().Key()[len(prefix):])
			roomID, err := strconv.ParseInt(rawID, 10, 64)
			if err != nil {
				return err
			}
			item, err := txn.Get(roomKey(domain.RoomID(roomID)))
			if err == badger.ErrKeyNotFound {
				r.log.Warn("dangling membership index", "room_id", roomID, "user_id", userID)
				continue
			}
			if err != nil {
				return err
			}
			var record roomRecord
			if err := item.Value(func(val []byte) error { return decode(val, &record) }); err != nil {
				return err
			}
			rooms = append(rooms, toRoom(record))
		}
		return nil
	})
	return rooms, err
}

func (r *RoomRepository) HasMembership(roomID domain.RoomID, userID domain.UserID) (bool, error) {
	exists := false
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(memberKey(roomID, userID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}
