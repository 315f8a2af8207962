package chat

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrGroupNotFound = errors.New("group not found")
)

type (
	GroupRepository interface {
		CreateGroup(ctx context.Context, grp Group) (Group, error)
		// GetGroupByID returns the group with its member roster populated.
		GetGroupByID(ctx context.Context, id string) (Group, error)
		QueryGroupsByCreator(ctx context.Context, creatorID string) ([]Group, error)
	}

	// MessageRepository is the durable, append-only message store.
	MessageRepository interface {
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		// QueryGroupMessages returns a group's messages ordered by creation
		// time ascending unless an explicit ordering is given.
		QueryGroupMessages(ctx context.Context, groupID string, ordering ...core.DBOrdering) ([]Message, error)
	}

	ServiceInterface interface {
		CreateGroup(ctx context.Context, creator user.User, ng NewGroup) (Group, error)
		GetGroup(ctx context.Context, id string) (Group, error)
		QueryGroupsByCreator(ctx context.Context, creatorID string) ([]Group, error)
		CanJoin(ctx context.Context, usr user.User, groupID string) bool
		AppendMessage(ctx context.Context, groupID string, sender user.User, body string) (Message, error)
		GroupHistory(ctx context.Context, groupID string) ([]MessageView, error)
		ListGroupMessages(ctx context.Context, groupID string, ordering ...core.DBOrdering) ([]Message, error)
	}

	service struct {
		groupRepo GroupRepository
		msgRepo   MessageRepository
		schoolSvc school.ServiceInterface
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(groupRepo GroupRepository, msgRepo MessageRepository, schoolSvc school.ServiceInterface) *service {
	return &service{groupRepo: groupRepo, msgRepo: msgRepo, schoolSvc: schoolSvc}
}

// CreateGroup creates a class chat room; membership is seeded from the class
// student roster plus the creator.
func (svc *service) CreateGroup(ctx context.Context, creator user.User, ng NewGroup) (Group, error) {
	cls, err := svc.schoolSvc.GetByID(ctx, ng.ClassID)
	if err != nil {
		if err == school.ErrClassNotFound {
			return Group{}, core.NewValidationError(err, core.FieldError{Field: "class_id", Error: err.Error()})
		}
		return Group{}, err
	}

	now := time.Now().UTC()
	grp := Group{
		Name:      ng.Name,
		ClassID:   cls.ID,
		CreatorID: creator.ID,
		Members:   append(cls.Students, creator),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.groupRepo.CreateGroup(ctx, grp)
}

func (svc *service) GetGroup(ctx context.Context, id string) (Group, error) {
	return svc.groupRepo.GetGroupByID(ctx, id)
}

func (svc *service) QueryGroupsByCreator(ctx context.Context, creatorID string) ([]Group, error) {
	return svc.groupRepo.QueryGroupsByCreator(ctx, creatorID)
}

// CanJoin reports whether usr may join the group's live channel: the group's
// creator or a listed member. It fails closed on a missing group or an
// anonymous user, and is re-derived from persisted state on every call since
// membership can change between connection attempts.
func (svc *service) CanJoin(ctx context.Context, usr user.User, groupID string) bool {
	if usr.ID == "" {
		return false
	}
	grp, err := svc.groupRepo.GetGroupByID(ctx, groupID)
	if err != nil {
		return false
	}
	if grp.CreatorID == usr.ID {
		return true
	}
	return grp.HasMember(usr.ID)
}

// AppendMessage durably persists one message; ErrGroupNotFound if the group
// vanished between authorization and append.
func (svc *service) AppendMessage(ctx context.Context, groupID string, sender user.User, body string) (Message, error) {
	grp, err := svc.groupRepo.GetGroupByID(ctx, groupID)
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		GroupID:    grp.ID,
		SenderID:   sender.ID,
		SenderName: sender.Username,
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}
	return svc.msgRepo.CreateMessage(ctx, msg)
}

// GroupHistory returns the group's stored messages in creation order, shaped
// for replay to a newly established connection.
func (svc *service) GroupHistory(ctx context.Context, groupID string) ([]MessageView, error) {
	msgs, err := svc.msgRepo.QueryGroupMessages(ctx, groupID)
	if err != nil {
		return nil, err
	}
	views := make([]MessageView, 0, len(msgs))
	for _, msg := range msgs {
		views = append(views, msg.View())
	}
	return views, nil
}

// ListGroupMessages is the administrative listing; newest first by default.
func (svc *service) ListGroupMessages(ctx context.Context, groupID string, ordering ...core.DBOrdering) ([]Message, error) {
	if _, err := svc.groupRepo.GetGroupByID(ctx, groupID); err != nil {
		return nil, err
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}
	return svc.msgRepo.QueryGroupMessages(ctx, groupID, ordering...)
}
