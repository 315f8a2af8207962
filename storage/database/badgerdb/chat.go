package badgerdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/chat"
)

// messageRepository persists chat messages in BadgerDB. Keys are formatted as
// "msg:{group_id}:{timestamp_padded}:{id}" so a forward prefix scan yields
// messages in chronological order; the 19-digit zero padding keeps the
// lexicographic and chronological orders aligned, and the message ID breaks
// ties between messages landing on the same nanosecond.
type messageRepository struct {
	db *badger.DB
}

var _ chat.MessageRepository = (*messageRepository)(nil)

func NewMessageRepository(db *badger.DB) *messageRepository {
	return &messageRepository{db: db}
}

func Open(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "opening badger db")
	}
	return db, nil
}

type messageRecord struct {
	ID         string    `json:"id"`
	GroupID    string    `json:"group_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

func messageKey(groupID string, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", groupID, at.UnixNano(), id))
}

func groupPrefix(groupID string) []byte {
	return []byte(fmt.Sprintf("msg:%s:", groupID))
}

func (repo messageRepository) CreateMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	rec := messageRecord{
		ID:         msg.ID,
		GroupID:    msg.GroupID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Body:       msg.Body,
		CreatedAt:  msg.CreatedAt.UTC(),
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "encoding message")
	}
	err = repo.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(msg.GroupID, msg.CreatedAt, msg.ID), val)
	})
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "creating message")
	}
	return msg, nil
}

func (repo messageRepository) QueryGroupMessages(ctx context.Context, groupID string, ordering ...core.DBOrdering) ([]chat.Message, error) {
	var msgs []chat.Message
	err := repo.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := groupPrefix(groupID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec messageRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return errors.Wrap(err, "decoding message")
				}
				msgs = append(msgs, chat.Message{
					ID:         rec.ID,
					GroupID:    rec.GroupID,
					SenderID:   rec.SenderID,
					SenderName: rec.SenderName,
					Body:       rec.Body,
					CreatedAt:  rec.CreatedAt,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying group messages")
	}

	if len(ordering) > 0 && !ordering[0].Ascending {
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}
	}
	return msgs, nil
}
