package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db}
}

// resolveRoster swaps roster placeholders for the stored users when known.
func (repo *schoolRepository) resolveRoster(roster []user.User) []user.User {
	resolved := make([]user.User, 0, len(roster))
	for _, u := range roster {
		if stored, ok := repo.db.users[u.ID]; ok {
			resolved = append(resolved, *stored)
		} else {
			resolved = append(resolved, u)
		}
	}
	return resolved
}

func (repo *schoolRepository) CreateClass(_ context.Context, cls school.Class) (school.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if cls.ID == "" {
		cls.ID = uuid.New().String()
	}
	cls.Teachers = repo.resolveRoster(cls.Teachers)
	cls.Students = repo.resolveRoster(cls.Students)
	repo.db.classes[cls.ID] = &cls
	return cls, nil
}

func (repo *schoolRepository) GetClassByID(_ context.Context, id string) (school.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cls, ok := repo.db.classes[id]; ok {
		out := *cls
		out.Teachers = repo.resolveRoster(out.Teachers)
		out.Students = repo.resolveRoster(out.Students)
		return out, nil
	}
	return school.Class{}, school.ErrClassNotFound
}

func (repo *schoolRepository) QueryAllClasses(_ context.Context) ([]school.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	classes := make([]school.Class, 0, len(repo.db.classes))
	for _, cls := range repo.db.classes {
		classes = append(classes, *cls)
	}
	return classes, nil
}
