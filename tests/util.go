package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/shule/core/chat"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	role user.Role,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateClass(
	t *testing.T,
	repo school.Repository,
	name, year string,
	teachers, students []user.User,
) school.Class {
	t.Helper()

	cls := school.Class{
		Name:         name,
		AcademicYear: year,
		Teachers:     teachers,
		Students:     students,
		CreatedAt:    time.Now().UTC(),
	}
	cls, err := repo.CreateClass(context.Background(), cls)
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return cls
}

func CreateGroup(
	t *testing.T,
	repo chat.GroupRepository,
	name, classID string,
	creator user.User,
	members ...user.User,
) chat.Group {
	t.Helper()

	now := time.Now().UTC()
	grp := chat.Group{
		Name:      name,
		ClassID:   classID,
		CreatorID: creator.ID,
		Members:   append(members, creator),
		CreatedAt: now,
		UpdatedAt: now,
	}
	grp, err := repo.CreateGroup(context.Background(), grp)
	if err != nil {
		t.Fatalf("CreateGroup() failed: %v", err)
	}
	return grp
}
