package sqlxrepos

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/nidhamu/core/student"
)

const (
	lockStudentQuery   = `SELECT id, doc FROM students WHERE id = \$1 FOR UPDATE`
	upsertStudentQuery = `INSERT INTO students \(id,roll_number,doc\) VALUES \(\$1,\$2,\$3::jsonb\) ON CONFLICT \(id\) DO UPDATE`
)

func studentRows(t *testing.T, s student.Student) *sqlmock.Rows {
	doc, err := json.Marshal(s)
	require.NoError(t, err)
	return sqlmock.NewRows([]string{"id", "doc"}).AddRow(s.ID, doc)
}

func kim(actions ...student.DisciplinaryAction) student.Student {
	return student.Student{
		ID:                  "stu-1",
		RollNumber:          "S100",
		Name:                "Kim",
		Grade:               "7",
		Section:             "B",
		DisciplinaryActions: actions,
	}
}

func TestStudentRepository_GetStudentByRollNumber(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStudentRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, doc FROM students WHERE LOWER\(roll_number\) = LOWER\(\$1\)`).
		WithArgs("s100").
		WillReturnRows(studentRows(t, kim()))
	mock.ExpectQuery(`SELECT id, doc FROM students WHERE id = \$1`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "doc"}))

	got, err := repo.GetStudentByRollNumber(ctx, "s100")
	require.NoError(t, err)
	assert.Equal(t, "stu-1", got.ID)
	assert.Equal(t, "S100", got.RollNumber)

	_, err = repo.GetStudentByID(ctx, "nope")
	assert.Equal(t, student.ErrNotFound, errors.Cause(err))
	expectationsMet(t, mock)
}

func TestStudentRepository_SaveStudent(t *testing.T) {
	ctx := context.Background()

	t.Run("new", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewStudentRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(upsertStudentQuery).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		s := kim(student.DisciplinaryAction{ID: "forged"})
		s.ID = ""
		got, err := repo.SaveStudent(ctx, s)
		require.NoError(t, err)
		assert.NotEmpty(t, got.ID)
		assert.Empty(t, got.DisciplinaryActions)
		expectationsMet(t, mock)
	})

	t.Run("existing keeps history", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewStudentRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(lockStudentQuery).WithArgs("stu-1").
			WillReturnRows(studentRows(t, kim(student.DisciplinaryAction{ID: "act-1", FormID: "form-1"})))
		mock.ExpectExec(upsertStudentQuery).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		s := kim()
		s.Name = "Kim Lee"
		got, err := repo.SaveStudent(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, "Kim Lee", got.Name)
		require.Len(t, got.DisciplinaryActions, 1)
		assert.Equal(t, "act-1", got.DisciplinaryActions[0].ID)
		expectationsMet(t, mock)
	})

	t.Run("roll number taken", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewStudentRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(upsertStudentQuery).WillReturnError(&pq.Error{Code: uniqueViolation})
		mock.ExpectRollback()

		s := kim()
		s.ID = ""
		_, err := repo.SaveStudent(ctx, s)
		assert.Equal(t, student.ErrRollNumberExists, errors.Cause(err))
		expectationsMet(t, mock)
	})
}

func TestStudentRepository_AppendDisciplinaryAction(t *testing.T) {
	ctx := context.Background()
	existing := student.DisciplinaryAction{ID: "act-1", FormID: "form-1", Status: student.ActionPending}

	t.Run("new", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewStudentRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(lockStudentQuery).WithArgs("stu-1").WillReturnRows(studentRows(t, kim(existing)))
		mock.ExpectExec(upsertStudentQuery).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		got, err := repo.AppendDisciplinaryAction(ctx, "stu-1", student.DisciplinaryAction{FormID: "form-2"})
		require.NoError(t, err)
		assert.NotEmpty(t, got.ID)
		assert.NotEqual(t, existing.ID, got.ID)
		expectationsMet(t, mock)
	})

	t.Run("same form", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewStudentRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(lockStudentQuery).WithArgs("stu-1").WillReturnRows(studentRows(t, kim(existing)))
		mock.ExpectRollback()

		got, err := repo.AppendDisciplinaryAction(ctx, "stu-1", student.DisciplinaryAction{FormID: "form-1"})
		require.NoError(t, err)
		assert.Equal(t, existing, got)
		expectationsMet(t, mock)
	})
}

func TestStudentRepository_UpdateDisciplinaryAction(t *testing.T) {
	ctx := context.Background()
	existing := student.DisciplinaryAction{ID: "act-1", FormID: "form-1", Status: student.ActionPending}

	t.Run("ok", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewStudentRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(lockStudentQuery).WithArgs("stu-1").WillReturnRows(studentRows(t, kim(existing)))
		mock.ExpectExec(upsertStudentQuery).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		got, err := repo.UpdateDisciplinaryAction(ctx, "stu-1", "act-1", func(a *student.DisciplinaryAction) error {
			a.Status = student.ActionAcknowledged
			a.StudentResponse = "sorry"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, student.ActionAcknowledged, got.Status)
		assert.Equal(t, "sorry", got.StudentResponse)
		expectationsMet(t, mock)
	})

	t.Run("missing action", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewStudentRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(lockStudentQuery).WithArgs("stu-1").WillReturnRows(studentRows(t, kim(existing)))
		mock.ExpectRollback()

		_, err := repo.UpdateDisciplinaryAction(ctx, "stu-1", "nope", func(*student.DisciplinaryAction) error { return nil })
		assert.Equal(t, student.ErrActionNotFound, errors.Cause(err))
		expectationsMet(t, mock)
	})
}

func TestParentRepository(t *testing.T) {
	db, mock := newMock(t)
	repo := NewParentRepository(db)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO parents \(id,doc\) VALUES \(\$1,\$2::jsonb\) ON CONFLICT \(id\) DO UPDATE SET doc = EXCLUDED.doc`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p, err := repo.SaveParent(ctx, student.Parent{Name: "Kim's mum", Children: []string{"stu-1"}})
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)

	doc, err := json.Marshal(p)
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT id, doc FROM parents WHERE id = \$1`).
		WithArgs(p.ID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "doc"}).AddRow(p.ID, doc))
	mock.ExpectQuery(`SELECT id, doc FROM parents WHERE id = \$1`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "doc"}))

	got, err := repo.GetParentByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"stu-1"}, got.Children)

	_, err = repo.GetParentByID(ctx, "nope")
	assert.Equal(t, student.ErrParentNotFound, errors.Cause(err))
	expectationsMet(t, mock)
}
