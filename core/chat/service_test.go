package chat_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/chat"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	"github.com/trezcool/shule/tests"
)

type chatFixture struct {
	svc        chat.ServiceInterface
	usrRepo    user.Repository
	schoolRepo school.Repository
	groupRepo  chat.GroupRepository
}

func setup(t *testing.T) *chatFixture {
	t.Helper()

	db, err := inmemdb.Open()
	require.NoError(t, err)
	chatRepo := inmemdb.NewChatRepository(db)
	schoolRepo := inmemdb.NewSchoolRepository(db)
	return &chatFixture{
		svc:        chat.NewService(chatRepo, chatRepo, school.NewService(schoolRepo)),
		usrRepo:    inmemdb.NewUserRepository(db),
		schoolRepo: schoolRepo,
		groupRepo:  chatRepo,
	}
}

func Test_service_CreateGroup(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, f.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	std1 := testutil.CreateUser(t, f.usrRepo, "Std One", "stdone", "std1@test.cd", "", user.RoleStudent, true)
	std2 := testutil.CreateUser(t, f.usrRepo, "Std Two", "stdtwo", "std2@test.cd", "", user.RoleStudent, true)
	cls := testutil.CreateClass(t, f.schoolRepo, "Math 101", "2025-2026", []user.User{teacher}, []user.User{std1, std2})

	t.Run("unknown class fails validation", func(t *testing.T) {
		_, err := f.svc.CreateGroup(ctx, teacher, chat.NewGroup{Name: "Lost", ClassID: "deadbeef"})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "class_id", vErr.Fields[0].Field)
	})

	t.Run("members seeded from class roster plus creator", func(t *testing.T) {
		grp, err := f.svc.CreateGroup(ctx, teacher, chat.NewGroup{Name: "Math Chat", ClassID: cls.ID})
		require.NoError(t, err)

		assert.NotEmpty(t, grp.ID)
		assert.Equal(t, teacher.ID, grp.CreatorID)
		assert.Equal(t, cls.ID, grp.ClassID)

		ids := make([]string, 0, len(grp.Members))
		for _, m := range grp.Members {
			ids = append(ids, m.ID)
		}
		assert.ElementsMatch(t, []string{std1.ID, std2.ID, teacher.ID}, ids)
	})
}

func Test_service_CanJoin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, f.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	member := testutil.CreateUser(t, f.usrRepo, "Member", "member", "member@test.cd", "", user.RoleStudent, true)
	stranger := testutil.CreateUser(t, f.usrRepo, "Stranger", "stranger", "stranger@test.cd", "", user.RoleStudent, true)
	cls := testutil.CreateClass(t, f.schoolRepo, "Bio", "2025-2026", []user.User{teacher}, []user.User{member})
	grp := testutil.CreateGroup(t, f.groupRepo, "Bio Chat", cls.ID, teacher, member)

	tests := []struct {
		name    string
		usr     user.User
		groupID string
		want    bool
	}{
		{name: "creator", usr: teacher, groupID: grp.ID, want: true},
		{name: "member", usr: member, groupID: grp.ID, want: true},
		{name: "non-member", usr: stranger, groupID: grp.ID, want: false},
		{name: "anonymous", usr: user.User{}, groupID: grp.ID, want: false},
		{name: "unknown group fails closed", usr: teacher, groupID: "deadbeef", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.svc.CanJoin(ctx, tt.usr, tt.groupID))
		})
	}
}

func Test_service_AppendMessage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, f.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	cls := testutil.CreateClass(t, f.schoolRepo, "Chem", "2025-2026", []user.User{teacher}, nil)
	grp := testutil.CreateGroup(t, f.groupRepo, "Chem Chat", cls.ID, teacher)

	t.Run("unknown group", func(t *testing.T) {
		_, err := f.svc.AppendMessage(ctx, "deadbeef", teacher, "hello?")
		assert.Equal(t, chat.ErrGroupNotFound, err)
	})

	t.Run("message persisted with sender name", func(t *testing.T) {
		msg, err := f.svc.AppendMessage(ctx, grp.ID, teacher, "hello class")
		require.NoError(t, err)
		assert.NotEmpty(t, msg.ID)
		assert.Equal(t, grp.ID, msg.GroupID)
		assert.Equal(t, teacher.ID, msg.SenderID)
		assert.Equal(t, teacher.Username, msg.SenderName)
		assert.Equal(t, "hello class", msg.Body)
		assert.False(t, msg.CreatedAt.IsZero())
	})
}

func Test_service_GroupHistory(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, f.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	cls := testutil.CreateClass(t, f.schoolRepo, "Hist", "2025-2026", []user.User{teacher}, nil)
	grp := testutil.CreateGroup(t, f.groupRepo, "Hist Chat", cls.ID, teacher)

	t.Run("empty history", func(t *testing.T) {
		views, err := f.svc.GroupHistory(ctx, grp.ID)
		require.NoError(t, err)
		assert.Empty(t, views)
	})

	bodies := []string{"first", "second", "third"}
	for _, b := range bodies {
		_, err := f.svc.AppendMessage(ctx, grp.ID, teacher, b)
		require.NoError(t, err)
	}

	t.Run("replay is in append order", func(t *testing.T) {
		views, err := f.svc.GroupHistory(ctx, grp.ID)
		require.NoError(t, err)
		require.Len(t, views, 3)
		for i, b := range bodies {
			assert.Equal(t, b, views[i].Message)
			assert.Equal(t, teacher.Username, views[i].Sender)
		}
	})

	t.Run("admin listing defaults to newest first", func(t *testing.T) {
		msgs, err := f.svc.ListGroupMessages(ctx, grp.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, "third", msgs[0].Body)
		assert.Equal(t, "first", msgs[2].Body)
	})

	t.Run("admin listing for unknown group", func(t *testing.T) {
		_, err := f.svc.ListGroupMessages(ctx, "deadbeef")
		assert.Equal(t, chat.ErrGroupNotFound, err)
	})
}
