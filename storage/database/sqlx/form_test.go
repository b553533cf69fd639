package sqlxrepos

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/nidhamu/core"
	"github.com/trezcool/nidhamu/core/form"
	"github.com/trezcool/nidhamu/core/template"
)

func newForm(id string, status form.Status) form.Form {
	return form.Form{
		ID:            id,
		TemplateID:    "tmpl-1",
		StudentID:     "stu-1",
		StudentName:   "Kim",
		RollNumber:    "S100",
		Grade:         "7",
		Section:       "B",
		WarningNumber: 1,
		CreatedBy:     "teacher-1",
		IncidentDate:  time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Description:   "Late again",
		SelectedMisconductTypes: []form.SelectedMisconduct{
			{Key: "late_arrival_tardiness", Label: "Late arrival / tardiness", Severity: template.SeverityLow, Selected: true},
		},
		Status:    status,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
}

func formRows(t *testing.T, forms ...form.Form) *sqlmock.Rows {
	rows := sqlmock.NewRows(formColumns)
	for _, f := range forms {
		doc, err := json.Marshal(formDocument(f))
		require.NoError(t, err)
		rows.AddRow(f.ID, doc)
	}
	return rows
}

func TestFormRepository_CreateForm(t *testing.T) {
	const insertQuery = `INSERT INTO forms \(id,template_id,student_id,roll_number,grade,section,status,created_by,warning_number,incident_date,doc,created_at,updated_at\) VALUES \(\$1,\$2,\$3,\$4,\$5,\$6,\$7,\$8,\$9,\$10,\$11::jsonb,\$12,\$13\)`

	t.Run("ok", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewFormRepository(db)
		mock.ExpectExec(insertQuery).WillReturnResult(sqlmock.NewResult(0, 1))

		got, err := repo.CreateForm(context.Background(), newForm("", form.StatusDraft))
		require.NoError(t, err)
		assert.NotEmpty(t, got.ID)
		expectationsMet(t, mock)
	})

	t.Run("missing template", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewFormRepository(db)
		mock.ExpectExec(insertQuery).WillReturnError(&pq.Error{Code: foreignKeyViolation})

		_, err := repo.CreateForm(context.Background(), newForm("", form.StatusDraft))
		assert.Equal(t, template.ErrNotFound, errors.Cause(err))
		expectationsMet(t, mock)
	})
}

func TestFormRepository_GetForm(t *testing.T) {
	db, mock := newMock(t)
	repo := NewFormRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, doc FROM forms WHERE id = \$1$`).
		WithArgs("form-1").
		WillReturnRows(formRows(t, newForm("form-1", form.StatusSubmitted)))
	mock.ExpectQuery(`SELECT id, doc FROM forms WHERE id = \$1$`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(formColumns))

	got, err := repo.GetForm(ctx, "form-1")
	require.NoError(t, err)
	assert.Equal(t, "form-1", got.ID)
	assert.Equal(t, form.StatusSubmitted, got.Status)
	assert.Equal(t, []string{"Late arrival / tardiness"}, got.MisconductLabels())

	_, err = repo.GetForm(ctx, "nope")
	assert.Equal(t, form.ErrNotFound, errors.Cause(err))
	expectationsMet(t, mock)
}

func TestFormRepository_QueryForms(t *testing.T) {
	tests := []struct {
		name   string
		filter form.QueryFilter
		query  string
		args   []interface{}
	}{
		{
			name:  "no filter",
			query: `SELECT id, doc FROM forms WHERE \(1=1\) ORDER BY created_at DESC`,
		},
		{
			name:   "student projection",
			filter: form.QueryFilter{RollNumbers: []string{"S100", "s200"}, ExcludeDrafts: true},
			query:  `SELECT id, doc FROM forms WHERE \(LOWER\(roll_number\) = ANY\(\$1\) AND status <> \$2\) ORDER BY created_at DESC`,
			args:   []interface{}{pq.Array([]string{"s100", "s200"}), "draft"},
		},
		{
			name: "admin projection",
			filter: form.QueryFilter{
				Statuses: []form.Status{form.StatusCompleted},
				Grade:    "7",
				Section:  "b",
				Ordering: []core.DBOrdering{{Field: "incident_date", Ascending: true}},
			},
			query: `SELECT id, doc FROM forms WHERE \(status = ANY\(\$1\) AND LOWER\(grade\) = LOWER\(\$2\) AND LOWER\(section\) = LOWER\(\$3\)\) ORDER BY incident_date ASC`,
			args:  []interface{}{pq.Array([]string{"completed"}), "7", "b"},
		},
		{
			name:   "teacher projection",
			filter: form.QueryFilter{CreatedBy: "teacher-1", Statuses: []form.Status{form.StatusDraft}},
			query:  `SELECT id, doc FROM forms WHERE \(created_by = \$1 AND status = ANY\(\$2\)\) ORDER BY created_at DESC`,
			args:   []interface{}{"teacher-1", pq.Array([]string{"draft"})},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewFormRepository(db)

			exp := mock.ExpectQuery(tt.query)
			if tt.args != nil {
				args := make([]driver.Value, 0, len(tt.args))
				for _, a := range tt.args {
					args = append(args, valueArg{a})
				}
				exp.WithArgs(args...)
			}
			exp.WillReturnRows(formRows(t, newForm("form-2", form.StatusCompleted), newForm("form-1", form.StatusCompleted)))

			got, err := repo.QueryForms(context.Background(), tt.filter)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "form-2", got[0].ID)
			expectationsMet(t, mock)
		})
	}
}

func TestFormRepository_CountFormsByStatus(t *testing.T) {
	db, mock := newMock(t)
	repo := NewFormRepository(db)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) AS count FROM forms WHERE \(template_id = \$1 AND created_at >= \$2\) GROUP BY status`).
		WithArgs("tmpl-1", testNow).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("draft", 2).AddRow("completed", 3))

	got, err := repo.CountFormsByStatus(context.Background(), "tmpl-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"draft": 2, "completed": 3}, got)
	expectationsMet(t, mock)
}

func TestFormRepository_CountForms(t *testing.T) {
	db, mock := newMock(t)
	repo := NewFormRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM forms WHERE \(student_id = \$1\)`).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := repo.CountForms(context.Background(), form.QueryFilter{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	expectationsMet(t, mock)
}

func TestFormRepository_UpdateForm(t *testing.T) {
	ctx := context.Background()
	const lockQuery = `SELECT id, doc FROM forms WHERE id = \$1 FOR UPDATE`

	t.Run("ok", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewFormRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).WithArgs("form-1").WillReturnRows(formRows(t, newForm("form-1", form.StatusSubmitted)))
		mock.ExpectExec(`UPDATE forms SET status = \$1, incident_date = \$2, doc = \$3::jsonb, updated_at = \$4 WHERE id = \$5`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		got, err := repo.UpdateForm(ctx, "form-1", func(f *form.Form) error {
			f.StudentAcknowledgment.Acknowledged = true
			f.Status = form.StatusAwaitingParentAck
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, form.StatusAwaitingParentAck, got.Status)
		assert.True(t, got.StudentAcknowledgment.Acknowledged)
		expectationsMet(t, mock)
	})

	t.Run("rejected change rolls back", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewFormRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).WithArgs("form-1").WillReturnRows(formRows(t, newForm("form-1", form.StatusDraft)))
		mock.ExpectRollback()

		_, err := repo.UpdateForm(ctx, "form-1", func(*form.Form) error { return form.ErrNotSubmitted })
		assert.Equal(t, form.ErrNotSubmitted, errors.Cause(err))
		expectationsMet(t, mock)
	})
}

func TestFormRepository_DeleteForm(t *testing.T) {
	db, mock := newMock(t)
	repo := NewFormRepository(db)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM forms WHERE id = \$1`).WithArgs("form-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM forms WHERE id = \$1`).WithArgs("nope").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeleteForm(ctx, "form-1"))
	assert.Equal(t, form.ErrNotFound, errors.Cause(repo.DeleteForm(ctx, "nope")))
	expectationsMet(t, mock)
}

// valueArg matches a query argument by its driver value.
type valueArg struct {
	want interface{}
}

func (a valueArg) Match(v driver.Value) bool {
	want := a.want
	if valuer, ok := want.(driver.Valuer); ok {
		var err error
		if want, err = valuer.Value(); err != nil {
			return false
		}
	}
	return reflect.DeepEqual(want, v)
}
