//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"roomchat/domain"
)

type IMessageRepository interface {
	SaveMessage(roomID domain.RoomID, sender, text string, at time.Time) (domain.Message, error)
	FetchMessages(roomID domain.RoomID, page int) ([]domain.Message, error)
}

type MessageRepository struct {
	db       *badger.DB
	log      *slog.Logger
	seq      *badger.Sequence
	pageSize int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, pageSize int) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:message"), 128)
	if err != nil {
		return nil, err
	}
	return &MessageRepository{db: db, log: log, seq: seq, pageSize: pageSize}, nil
}

func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// SaveMessage persists one immutable message row. The key embeds the
// zero padded timestamp and id so rows sort chronologically with
// insertion order as the tie break, no secondary index needed.
func (m *MessageRepository) SaveMessage(roomID domain.RoomID, sender, text string, at time.Time) (domain.Message, error) {
	n, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, err
	}
	id := int64(n) + 1

	record := messageRecord{
		ID:        id,
		RoomID:    int64(roomID),
		Sender:    sender,
		Text:      text,
		CreatedAt: at.UTC().UnixNano(),
	}
	data, err := encode(record)
	if err != nil {
		return domain.Message{}, err
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(roomID, record.CreatedAt, id), data)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return toMessage(record), nil
}

// FetchMessages returns one history page in chronological order.
// Page 0 is the most recent pageSize messages, page 1 the pageSize
// before that, and so on: the iterator walks backward from the newest
// key, skips page*pageSize rows, takes pageSize, then the slice is
// reversed so each page reads oldest first.
func (m *MessageRepository) FetchMessages(roomID domain.RoomID, page int) ([]domain.Message, error) {
	if page < 0 {
		page = 0
	}
	skip := page * m.pageSize

	var records []messageRecord
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := messagePrefix(roomID)
		// Seek past the newest possible key for this room, then walk back.
		seekKey := append(append([]byte{}, prefix...), 0xff)

		skipped := 0
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if skipped < skip {
				skipped++
				continue
			}
			if len(records) == m.pageSize {
				break
			}
			var record messageRecord
			if err := it.Item().Value(func(val []byte) error { return decode(val, &record) }); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Newest-first on the wire from the iterator, chronological for the caller.
	messages := make([]domain.Message, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		messages = append(messages, toMessage(records[i]))
	}
	return messages, nil
}
