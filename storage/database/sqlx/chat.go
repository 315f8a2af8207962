package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/chat"
	"github.com/trezcool/shule/core/user"
)

type groupRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	ClassID   string    `db:"class_id"`
	CreatorID string    `db:"creator_id"`
	CreatedAt null.Time `db:"created_at"`
	UpdatedAt null.Time `db:"updated_at"`
}

func (r groupRow) toGroup() chat.Group {
	return chat.Group{
		ID:        r.ID,
		Name:      r.Name,
		ClassID:   r.ClassID,
		CreatorID: r.CreatorID,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
}

type messageRow struct {
	ID         string    `db:"id"`
	GroupID    string    `db:"group_id"`
	SenderID   string    `db:"sender_id"`
	SenderName string    `db:"sender_name"`
	Body       string    `db:"body"`
	CreatedAt  null.Time `db:"created_at"`
}

func (r messageRow) toMessage() chat.Message {
	return chat.Message{
		ID:         r.ID,
		GroupID:    r.GroupID,
		SenderID:   r.SenderID,
		SenderName: r.SenderName,
		Body:       r.Body,
		CreatedAt:  r.CreatedAt.Time,
	}
}

type chatRepository struct {
	db *sqlx.DB
}

var (
	// interface compliance checks
	_ chat.GroupRepository   = (*chatRepository)(nil)
	_ chat.MessageRepository = (*chatRepository)(nil)
)

func NewChatRepository(db *sqlx.DB) *chatRepository {
	return &chatRepository{db: db}
}

func (repo chatRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return chat.ErrGroupNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo chatRepository) CreateGroup(ctx context.Context, grp chat.Group) (chat.Group, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return chat.Group{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO chat_group (name, class_id, creator_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err = tx.QueryRowxContext(ctx, query, grp.Name, grp.ClassID, grp.CreatorID, grp.CreatedAt.UTC(), grp.UpdatedAt.UTC()).Scan(&grp.ID); err != nil {
		return chat.Group{}, errors.Wrap(err, "creating group")
	}

	for _, m := range grp.Members {
		if _, err = tx.ExecContext(
			ctx,
			`INSERT INTO chat_group_member (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			grp.ID, m.ID,
		); err != nil {
			return chat.Group{}, errors.Wrap(err, "adding group member")
		}
	}

	if err = tx.Commit(); err != nil {
		return chat.Group{}, errors.Wrap(err, "committing tx")
	}
	return repo.GetGroupByID(ctx, grp.ID)
}

func (repo chatRepository) GetGroupByID(ctx context.Context, id string) (chat.Group, error) {
	var row groupRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM chat_group WHERE id = $1`, id); err != nil {
		return chat.Group{}, repo.trapNoRowsErr(err, "finding group by ID")
	}
	grp := row.toGroup()

	var members []userRow
	query := `
		SELECT u.* FROM "user" u
		JOIN chat_group_member gm ON gm.user_id = u.id
		WHERE gm.group_id = $1
		ORDER BY u.username`
	if err := repo.db.SelectContext(ctx, &members, query, id); err != nil {
		return chat.Group{}, errors.Wrap(err, "querying group members")
	}
	grp.Members = make([]user.User, 0, len(members))
	for _, m := range members {
		grp.Members = append(grp.Members, m.toUser())
	}
	return grp, nil
}

func (repo chatRepository) QueryGroupsByCreator(ctx context.Context, creatorID string) ([]chat.Group, error) {
	var rows []groupRow
	query := `SELECT * FROM chat_group WHERE creator_id = $1 ORDER BY created_at`
	if err := repo.db.SelectContext(ctx, &rows, query, creatorID); err != nil {
		return nil, errors.Wrap(err, "querying groups by creator")
	}
	groups := make([]chat.Group, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, r.toGroup())
	}
	return groups, nil
}

func (repo chatRepository) CreateMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	query := `
		INSERT INTO chat_message (group_id, sender_id, body, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := repo.db.QueryRowxContext(ctx, query, msg.GroupID, msg.SenderID, msg.Body, msg.CreatedAt.UTC()).Scan(&msg.ID); err != nil {
		return chat.Message{}, errors.Wrap(err, "creating message")
	}
	return msg, nil
}

func (repo chatRepository) QueryGroupMessages(ctx context.Context, groupID string, ordering ...core.DBOrdering) ([]chat.Message, error) {
	// created_at is the only orderable field; creation order is the replay contract
	direction := "ASC"
	if len(ordering) > 0 && !ordering[0].Ascending {
		direction = "DESC"
	}

	var rows []messageRow
	query := `
		SELECT m.id, m.group_id, m.sender_id, u.username AS sender_name, m.body, m.created_at
		FROM chat_message m
		JOIN "user" u ON u.id = m.sender_id
		WHERE m.group_id = $1
		ORDER BY m.created_at ` + direction + `, m.id ` + direction
	if err := repo.db.SelectContext(ctx, &rows, query, groupID); err != nil {
		return nil, errors.Wrap(err, "querying group messages")
	}
	msgs := make([]chat.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.toMessage())
	}
	return msgs, nil
}
