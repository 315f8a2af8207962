package school

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/shule/core/user"
)

var ErrClassNotFound = errors.New("class not found")

type (
	Repository interface {
		CreateClass(ctx context.Context, cls Class) (Class, error)
		// GetClassByID returns the class with its subject and user rosters populated.
		GetClassByID(ctx context.Context, id string) (Class, error)
		QueryAllClasses(ctx context.Context) ([]Class, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, nc NewClass) (Class, error)
		GetByID(ctx context.Context, id string) (Class, error)
		QueryAll(ctx context.Context) ([]Class, error)
	}

	service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, nc NewClass) (Class, error) {
	cls := Class{
		Name:         nc.Name,
		AcademicYear: nc.AcademicYear,
		Schedule:     nc.Schedule,
		CreatedAt:    time.Now().UTC(),
	}
	for _, id := range nc.SubjectIDs {
		cls.Subjects = append(cls.Subjects, Subject{ID: id})
	}
	for _, id := range nc.TeacherIDs {
		cls.Teachers = append(cls.Teachers, userRef(id))
	}
	for _, id := range nc.StudentIDs {
		cls.Students = append(cls.Students, userRef(id))
	}
	return svc.repo.CreateClass(ctx, cls)
}

func (svc *service) GetByID(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClassByID(ctx, id)
}

func (svc *service) QueryAll(ctx context.Context) ([]Class, error) {
	return svc.repo.QueryAllClasses(ctx)
}

// userRef builds a roster placeholder carrying only the user ID;
// repositories resolve the full user on read.
func userRef(id string) user.User {
	return user.User{ID: id}
}
