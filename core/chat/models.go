package chat

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// Group is a class-scoped chat room. The creator is always implicitly
// authorized even when not listed in Members. Membership is seeded from the
// class roster at creation time and may only grow; removal is unsupported.
type Group struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	ClassID   string      `json:"class_id"`
	CreatorID string      `json:"creator_id"`
	Members   []user.User `json:"members,omitempty"`
	CreatedAt time.Time   `json:"created_at"` // UTC
	UpdatedAt time.Time   `json:"updated_at"` // UTC
}

func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// Message is an immutable, append-only chat record.
type Message struct {
	ID         string    `json:"id"`
	GroupID    string    `json:"group_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

func (m Message) View() MessageView {
	return MessageView{
		ID:        m.ID,
		Sender:    m.SenderName,
		Message:   m.Body,
		CreatedAt: m.CreatedAt,
	}
}

// MessageView is the peer-visible shape of a Message.
type MessageView struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// NewGroup contains information needed to create a new Group.
type NewGroup struct {
	Name    string `json:"name" validate:"required"`
	ClassID string `json:"class_id" validate:"required,uuid4"`
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	ng.ClassID = core.CleanString(ng.ClassID, true /* lower */)
	return validate.Struct(ng)
}
