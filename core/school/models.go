package school

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// Class groups students under teachers for an academic year.
// Rosters (Teachers, Students) are loaded with the class.
type Class struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	AcademicYear string      `json:"academic_year"` // e.g. "2024-2025"
	Schedule     string      `json:"schedule"`      // e.g. "Mon/Wed 10:00-11:00"
	Subjects     []Subject   `json:"subjects"`
	Teachers     []user.User `json:"teachers"`
	Students     []user.User `json:"students"`
	CreatedAt    time.Time   `json:"created_at"` // UTC
}

// NewClass contains information needed to create a new Class.
type NewClass struct {
	Name         string   `json:"name" validate:"required"`
	AcademicYear string   `json:"academic_year" validate:"required,academic_year"`
	Schedule     string   `json:"schedule"`
	SubjectIDs   []string `json:"subject_ids" validate:"omitempty,dive,uuid4"`
	TeacherIDs   []string `json:"teacher_ids" validate:"omitempty,dive,uuid4"`
	StudentIDs   []string `json:"student_ids" validate:"omitempty,dive,uuid4"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.AcademicYear = core.CleanString(nc.AcademicYear)
	nc.Schedule = core.CleanString(nc.Schedule)
	return validate.Struct(nc)
}
