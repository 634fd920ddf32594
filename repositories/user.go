//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"time"

	"github.com/dgraph-io/badger/v4"

	"roomchat/domain"
	"roomchat/errors"
)

type IUserRepository interface {
	CreateUser(username, email, hashedPassword string) (domain.UserID, error)
	GetUserByUsername(username string) (domain.User, error)
}

type UserRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewUserRepository(db *badger.DB) (*UserRepository, error) {
	seq, err := db.GetSequence([]byte("seq:user"), 64)
	if err != nil {
		return nil, err
	}
	return &UserRepository{db: db, seq: seq}, nil
}

func (u *UserRepository) Close() error {
	return u.seq.Release()
}

// CreateUser persists a new user, enforcing username and email
// uniqueness inside one transaction. The caller provides an already
// hashed password; plain passwords never reach this layer.
func (u *UserRepository) CreateUser(username, email, hashedPassword string) (domain.UserID, error) {
	n, err := u.seq.Next()
	if err != nil {
		return 0, err
	}
	// Sequences start at zero; identifiers are 1-based.
	id := int64(n) + 1

	record := userRecord{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC().UnixNano(),
	}
	data, err := encode(record)
	if err != nil {
		return 0, err
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(username)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if _, err := txn.Get(emailKey(email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(userKey(username), data); err != nil {
			return err
		}
		return txn.Set(emailKey(email), []byte(username))
	})
	if err != nil {
		return 0, err
	}
	return domain.UserID(id), nil
}

func (u *UserRepository) GetUserByUsername(username string) (domain.User, error) {
	var record userRecord
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return decode(val, &record)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return toUser(record), nil
}
