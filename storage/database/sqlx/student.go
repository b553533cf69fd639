package sqlxrepos

import (
	"context"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/nidhamu/core/student"
)

type docRow struct {
	ID  string `db:"id"`
	Doc []byte `db:"doc"`
}

func (row docRow) student() (student.Student, error) {
	var s student.Student
	if err := json.Unmarshal(row.Doc, &s); err != nil {
		return student.Student{}, errors.Wrap(err, "decoding student")
	}
	s.ID = row.ID
	return s, nil
}

func (row docRow) parent() (student.Parent, error) {
	var p student.Parent
	if err := json.Unmarshal(row.Doc, &p); err != nil {
		return student.Parent{}, errors.Wrap(err, "decoding parent")
	}
	p.ID = row.ID
	return p, nil
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Directory = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) student.Directory {
	return &studentRepository{db: db}
}

func (repo *studentRepository) getStudent(ctx context.Context, q queryer, where sq.Sqlizer, suffix string) (student.Student, error) {
	var row docRow
	b := psql.Select("id", "doc").From("students").Where(where)
	if suffix != "" {
		b = b.Suffix(suffix)
	}
	if err := get(ctx, q, &row, b); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student")
	}
	return row.student()
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id string) (student.Student, error) {
	return repo.getStudent(ctx, repo.db, sq.Eq{"id": id}, "")
}

func (repo *studentRepository) GetStudentByRollNumber(ctx context.Context, rollNumber string) (student.Student, error) {
	return repo.getStudent(ctx, repo.db, sq.Expr("LOWER(roll_number) = LOWER(?)", rollNumber), "")
}

func (repo *studentRepository) saveStudent(ctx context.Context, tx *sqlx.Tx, s student.Student) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "encoding student")
	}
	q := psql.Insert("students").
		Columns("id", "roll_number", "doc").
		Values(s.ID, s.RollNumber, jsonb(doc)).
		Suffix("ON CONFLICT (id) DO UPDATE SET roll_number = EXCLUDED.roll_number, doc = EXCLUDED.doc")
	if _, err = exec(ctx, tx, q); err != nil {
		if hasCode(err, uniqueViolation) {
			return student.ErrRollNumberExists
		}
		return errors.Wrap(err, "saving student")
	}
	return nil
}

func (repo *studentRepository) SaveStudent(ctx context.Context, s student.Student) (student.Student, error) {
	s = s.Copy()
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		s.DisciplinaryActions = nil
		if s.ID == "" {
			s.ID = uuid.New().String()
		} else {
			orig, err := repo.getStudent(ctx, tx, sq.Eq{"id": s.ID}, "FOR UPDATE")
			switch {
			case err == nil:
				s.DisciplinaryActions = orig.DisciplinaryActions
			case errors.Cause(err) != student.ErrNotFound:
				return err
			}
		}
		return repo.saveStudent(ctx, tx, s)
	})
	if err != nil {
		return student.Student{}, err
	}
	return s, nil
}

// updateStudent applies fn to the locked student record and saves it.
func (repo *studentRepository) updateStudent(ctx context.Context, id string, fn func(*student.Student) error) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		s, err := repo.getStudent(ctx, tx, sq.Eq{"id": id}, "FOR UPDATE")
		if err != nil {
			return err
		}
		if err = fn(&s); err != nil {
			return err
		}
		return repo.saveStudent(ctx, tx, s)
	})
}

func (repo *studentRepository) AppendDisciplinaryAction(ctx context.Context, studentID string, action student.DisciplinaryAction) (student.DisciplinaryAction, error) {
	var saved student.DisciplinaryAction
	err := repo.updateStudent(ctx, studentID, func(s *student.Student) error {
		for _, a := range s.DisciplinaryActions {
			if a.FormID == action.FormID {
				saved = a
				return errUnchanged
			}
		}
		action.ID = uuid.New().String()
		s.DisciplinaryActions = append(s.DisciplinaryActions, action)
		saved = action
		return nil
	})
	if err != nil && err != errUnchanged {
		return student.DisciplinaryAction{}, err
	}
	return saved, nil
}

func (repo *studentRepository) UpdateDisciplinaryAction(ctx context.Context, studentID, actionID string, fn func(*student.DisciplinaryAction) error) (student.DisciplinaryAction, error) {
	var saved student.DisciplinaryAction
	err := repo.updateStudent(ctx, studentID, func(s *student.Student) error {
		for i, a := range s.DisciplinaryActions {
			if a.ID != actionID {
				continue
			}
			if err := fn(&a); err != nil {
				return err
			}
			a.ID = actionID
			s.DisciplinaryActions[i] = a
			saved = a
			return nil
		}
		return student.ErrActionNotFound
	})
	if err != nil {
		return student.DisciplinaryAction{}, err
	}
	return saved, nil
}

// errUnchanged rolls back an update that has nothing to write.
var errUnchanged = errors.New("unchanged")

type parentRepository struct {
	db *sqlx.DB
}

var _ student.ParentDirectory = (*parentRepository)(nil) // interface compliance check

func NewParentRepository(db *sqlx.DB) student.ParentDirectory {
	return &parentRepository{db: db}
}

func (repo *parentRepository) GetParentByID(ctx context.Context, id string) (student.Parent, error) {
	var row docRow
	if err := get(ctx, repo.db, &row, psql.Select("id", "doc").From("parents").Where(sq.Eq{"id": id})); err != nil {
		return student.Parent{}, trapNoRowsErr(err, student.ErrParentNotFound, "finding parent")
	}
	return row.parent()
}

func (repo *parentRepository) SaveParent(ctx context.Context, p student.Parent) (student.Parent, error) {
	p = p.Copy()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	doc, err := json.Marshal(p)
	if err != nil {
		return student.Parent{}, errors.Wrap(err, "encoding parent")
	}

	q := psql.Insert("parents").
		Columns("id", "doc").
		Values(p.ID, jsonb(doc)).
		Suffix("ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc")
	if _, err = exec(ctx, repo.db, q); err != nil {
		return student.Parent{}, errors.Wrap(err, "saving parent")
	}
	return p, nil
}
