package repositories

import (
	"time"

	"github.com/fxamacker/cbor/v2"

	"roomchat/domain"
)

// On-disk shapes, encoded with CBOR. Timestamps are stored as Unix
// nanoseconds to stay codec-neutral.

type userRecord struct {
	ID           int64  `cbor:"id"`
	Username     string `cbor:"username"`
	Email        string `cbor:"email"`
	PasswordHash string `cbor:"password_hash"`
	CreatedAt    int64  `cbor:"created_at"`
}

type roomRecord struct {
	ID        int64  `cbor:"id"`
	Name      string `cbor:"name"`
	CreatedBy string `cbor:"created_by"`
	CreatedAt int64  `cbor:"created_at"`
}

type memberRecord struct {
	RoomID    int64  `cbor:"room_id"`
	UserID    int64  `cbor:"user_id"`
	Username  string `cbor:"username"`
	RoomName  string `cbor:"room_name"`
	IsAdmin   bool   `cbor:"is_admin"`
	AddedBy   string `cbor:"added_by"`
	CreatedAt int64  `cbor:"created_at"`
}

type messageRecord struct {
	ID        int64  `cbor:"id"`
	RoomID    int64  `cbor:"room_id"`
	Sender    string `cbor:"sender"`
	Text      string `cbor:"text"`
	CreatedAt int64  `cbor:"created_at"`
}

func encode(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func decode(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

func toUser(r userRecord) domain.User {
	return domain.User{
		ID:           domain.UserID(r.ID),
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    time.Unix(0, r.CreatedAt).UTC(),
	}
}

func toRoom(r roomRecord) domain.Room {
	return domain.Room{
		ID:        domain.RoomID(r.ID),
		Name:      r.Name,
		CreatedBy: r.CreatedBy,
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
	}
}

func toMembership(r memberRecord) domain.Membership {
	return domain.Membership{
		RoomID:    domain.RoomID(r.RoomID),
		UserID:    domain.UserID(r.UserID),
		Username:  r.Username,
		RoomName:  r.RoomName,
		IsAdmin:   r.IsAdmin,
		AddedBy:   r.AddedBy,
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
	}
}

func toMessage(r messageRecord) domain.Message {
	return domain.Message{
		ID:        r.ID,
		RoomID:    domain.RoomID(r.RoomID),
		Sender:    r.Sender,
		Text:      r.Text,
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
	}
}
