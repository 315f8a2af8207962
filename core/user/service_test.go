package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
)

func setup(t *testing.T) (user.ServiceInterface, user.Repository) {
	t.Helper()

	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := inmemdb.NewUserRepository(db)
	conf := core.NewTestConfig()
	return user.NewService(repo, emailsvc.NewConsoleServiceMock(conf), conf), repo
}

func Test_service_Create(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	t.Run("unknown role", func(t *testing.T) {
		_, err := svc.Create(ctx, user.NewUser{Name: "W", Username: "wizard", Role: "Wizard", Password: "pwd"})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "role", vErr.Fields[0].Field)
	})

	t.Run("created active with hashed password", func(t *testing.T) {
		usr, err := svc.Create(ctx, user.NewUser{
			Name:     "Teacher",
			Username: "teacher",
			Email:    "teacher@test.cd",
			Role:     "Teacher",
			Password: "LordOfTheRings",
		})
		require.NoError(t, err)

		assert.NotEmpty(t, usr.ID)
		assert.Equal(t, user.RoleTeacher, usr.Role)
		assert.True(t, usr.Active())
		assert.NoError(t, usr.CheckPassword("LordOfTheRings"))
		assert.Error(t, usr.CheckPassword("lol"))
		assert.False(t, usr.CreatedAt.IsZero())
	})
}

func Test_service_CheckUniqueness(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, user.NewUser{Name: "T", Username: "teacher", Email: "teacher@test.cd", Role: "Teacher", Password: "pwd"})
	require.NoError(t, err)

	tests := []struct {
		name      string
		uname     string
		email     string
		wantField string
	}{
		{name: "available", uname: "newuser", email: "new@test.cd"},
		{name: "username taken", uname: "teacher", email: "new@test.cd", wantField: "username"},
		{name: "email taken", uname: "newuser", email: "teacher@test.cd", wantField: "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CheckUniqueness(tt.uname, tt.email)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *core.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
		})
	}
}

func Test_service_SetLastLogin(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	usr, err := svc.Create(ctx, user.NewUser{Name: "T", Username: "teacher", Role: "Teacher", Password: "pwd"})
	require.NoError(t, err)
	require.True(t, usr.LastLogin.IsZero())

	usr, err = svc.SetLastLogin(ctx, usr)
	require.NoError(t, err)
	assert.False(t, usr.LastLogin.IsZero())

	stored, err := repo.GetUserByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, usr.LastLogin, stored.LastLogin)
}

func TestParseRole(t *testing.T) {
	for _, role := range user.AllRoles {
		parsed, err := user.ParseRole(role.String())
		require.NoError(t, err)
		assert.Equal(t, role, parsed)
	}

	_, err := user.ParseRole("Wizard")
	assert.Equal(t, user.ErrUnknownRole, err)
	_, err = user.ParseRole("")
	assert.Equal(t, user.ErrUnknownRole, err)
}
