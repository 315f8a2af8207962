package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/chat"
)

type chatRepository struct {
	db *DB
}

var (
	_ chat.GroupRepository   = (*chatRepository)(nil)
	_ chat.MessageRepository = (*chatRepository)(nil)
)

func NewChatRepository(db *DB) *chatRepository {
	return &chatRepository{db: db}
}

func (repo *chatRepository) CreateGroup(_ context.Context, grp chat.Group) (chat.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if grp.ID == "" {
		grp.ID = uuid.New().String()
	}
	repo.db.groups[grp.ID] = &grp
	return grp, nil
}

func (repo *chatRepository) GetGroupByID(_ context.Context, id string) (chat.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if grp, ok := repo.db.groups[id]; ok {
		return *grp, nil
	}
	return chat.Group{}, chat.ErrGroupNotFound
}

func (repo *chatRepository) QueryGroupsByCreator(_ context.Context, creatorID string) ([]chat.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	groups := make([]chat.Group, 0)
	for _, grp := range repo.db.groups {
		if grp.CreatorID == creatorID {
			groups = append(groups, *grp)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].CreatedAt.Before(groups[j].CreatedAt) })
	return groups, nil
}

func (repo *chatRepository) CreateMessage(_ context.Context, msg chat.Message) (chat.Message, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.groups[msg.GroupID]; !ok {
		return chat.Message{}, chat.ErrGroupNotFound
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	repo.db.messages = append(repo.db.messages, &msg)
	return msg, nil
}

func (repo *chatRepository) QueryGroupMessages(_ context.Context, groupID string, ordering ...core.DBOrdering) ([]chat.Message, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	// insertion order == creation order
	msgs := make([]chat.Message, 0)
	for _, msg := range repo.db.messages {
		if msg.GroupID == groupID {
			msgs = append(msgs, *msg)
		}
	}
	if len(ordering) > 0 && !ordering[0].Ascending {
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}
	}
	return msgs, nil
}
