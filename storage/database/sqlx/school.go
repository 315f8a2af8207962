package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type classRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	AcademicYear string    `db:"academic_year"`
	Schedule     string    `db:"schedule"`
	CreatedAt    null.Time `db:"created_at"`
}

func (r classRow) toClass() school.Class {
	return school.Class{
		ID:           r.ID,
		Name:         r.Name,
		AcademicYear: r.AcademicYear,
		Schedule:     r.Schedule,
		CreatedAt:    r.CreatedAt.Time,
	}
}

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo schoolRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return school.ErrClassNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo schoolRepository) CreateClass(ctx context.Context, cls school.Class) (school.Class, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return school.Class{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO class (name, academic_year, schedule, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err = tx.QueryRowxContext(ctx, query, cls.Name, cls.AcademicYear, cls.Schedule, cls.CreatedAt.UTC()).Scan(&cls.ID); err != nil {
		return school.Class{}, errors.Wrap(err, "creating class")
	}

	for _, sub := range cls.Subjects {
		if _, err = tx.ExecContext(ctx, `INSERT INTO class_subject (class_id, subject_id) VALUES ($1, $2)`, cls.ID, sub.ID); err != nil {
			return school.Class{}, errors.Wrap(err, "adding class subject")
		}
	}
	for _, t := range cls.Teachers {
		if _, err = tx.ExecContext(ctx, `INSERT INTO class_teacher (class_id, user_id) VALUES ($1, $2)`, cls.ID, t.ID); err != nil {
			return school.Class{}, errors.Wrap(err, "adding class teacher")
		}
	}
	for _, s := range cls.Students {
		if _, err = tx.ExecContext(ctx, `INSERT INTO class_student (class_id, user_id) VALUES ($1, $2)`, cls.ID, s.ID); err != nil {
			return school.Class{}, errors.Wrap(err, "adding class student")
		}
	}

	if err = tx.Commit(); err != nil {
		return school.Class{}, errors.Wrap(err, "committing tx")
	}
	return repo.GetClassByID(ctx, cls.ID)
}

func (repo schoolRepository) queryRoster(ctx context.Context, joinTable, classID string) ([]user.User, error) {
	var rows []userRow
	query := `
		SELECT u.* FROM "user" u
		JOIN ` + joinTable + ` j ON j.user_id = u.id
		WHERE j.class_id = $1
		ORDER BY u.username`
	if err := repo.db.SelectContext(ctx, &rows, query, classID); err != nil {
		return nil, errors.Wrap(err, "querying class roster")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo schoolRepository) GetClassByID(ctx context.Context, id string) (school.Class, error) {
	var row classRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM class WHERE id = $1`, id); err != nil {
		return school.Class{}, repo.trapNoRowsErr(err, "finding class by ID")
	}
	cls := row.toClass()

	var subs []school.Subject
	query := `
		SELECT s.id, s.name, s.code FROM subject s
		JOIN class_subject cs ON cs.subject_id = s.id
		WHERE cs.class_id = $1
		ORDER BY s.code`
	if err := repo.db.SelectContext(ctx, &subs, query, id); err != nil {
		return school.Class{}, errors.Wrap(err, "querying class subjects")
	}
	cls.Subjects = subs

	var err error
	if cls.Teachers, err = repo.queryRoster(ctx, "class_teacher", id); err != nil {
		return school.Class{}, err
	}
	if cls.Students, err = repo.queryRoster(ctx, "class_student", id); err != nil {
		return school.Class{}, err
	}
	return cls, nil
}

func (repo schoolRepository) QueryAllClasses(ctx context.Context) ([]school.Class, error) {
	var rows []classRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM class ORDER BY created_at DESC`); err != nil {
		return nil, errors.Wrap(err, "querying all classes")
	}
	// rosters are not populated on listings
	classes := make([]school.Class, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, r.toClass())
	}
	return classes, nil
}
