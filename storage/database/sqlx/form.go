package sqlxrepos

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/nidhamu/core/form"
	"github.com/trezcool/nidhamu/core/template"
)

var formColumns = []string{"id", "doc"}

// formDocument is stored as is: without the legacy bags form.Form adds when marshalled.
type formDocument form.Form

type formRow struct {
	ID  string `db:"id"`
	Doc []byte `db:"doc"`
}

func (row formRow) form() (form.Form, error) {
	var doc formDocument
	if err := json.Unmarshal(row.Doc, &doc); err != nil {
		return form.Form{}, errors.Wrap(err, "decoding form")
	}
	f := form.Form(doc)
	f.ID = row.ID
	return f, nil
}

func encodeForm(f form.Form) (sq.Sqlizer, error) {
	doc, err := json.Marshal(formDocument(f))
	if err != nil {
		return nil, errors.Wrap(err, "encoding form")
	}
	return jsonb(doc), nil
}

type formRepository struct {
	db *sqlx.DB
}

var _ form.Repository = (*formRepository)(nil) // interface compliance check

func NewFormRepository(db *sqlx.DB) form.Repository {
	return &formRepository{db: db}
}

func (repo *formRepository) CreateForm(ctx context.Context, f form.Form) (form.Form, error) {
	f.ID = uuid.New().String()
	doc, err := encodeForm(f)
	if err != nil {
		return form.Form{}, err
	}

	q := psql.Insert("forms").
		Columns(
			"id", "template_id", "student_id", "roll_number", "grade", "section", "status", "created_by",
			"warning_number", "incident_date", "doc", "created_at", "updated_at",
		).
		Values(
			f.ID, f.TemplateID, f.StudentID, f.RollNumber, f.Grade, f.Section, string(f.Status), f.CreatedBy,
			f.WarningNumber, f.IncidentDate.UTC(), doc, f.CreatedAt.UTC(), f.UpdatedAt.UTC(),
		)
	if _, err = exec(ctx, repo.db, q); err != nil {
		if hasCode(err, foreignKeyViolation) {
			return form.Form{}, template.ErrNotFound
		}
		return form.Form{}, errors.Wrap(err, "inserting form")
	}
	return f, nil
}

func (repo *formRepository) getForm(ctx context.Context, q queryer, id string, suffix string) (form.Form, error) {
	var row formRow
	b := psql.Select(formColumns...).From("forms").Where(sq.Eq{"id": id})
	if suffix != "" {
		b = b.Suffix(suffix)
	}
	if err := get(ctx, q, &row, b); err != nil {
		return form.Form{}, trapNoRowsErr(err, form.ErrNotFound, "finding form")
	}
	return row.form()
}

func (repo *formRepository) GetForm(ctx context.Context, id string) (form.Form, error) {
	return repo.getForm(ctx, repo.db, id, "")
}

func lowered(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

// where translates filter into conditions on the indexed columns.
func where(filter form.QueryFilter) sq.And {
	conds := sq.And{}
	if filter.TemplateID != "" {
		conds = append(conds, sq.Eq{"template_id": filter.TemplateID})
	}
	if filter.CreatedBy != "" {
		conds = append(conds, sq.Eq{"created_by": filter.CreatedBy})
	}
	if filter.StudentID != "" {
		conds = append(conds, sq.Eq{"student_id": filter.StudentID})
	}
	if len(filter.RollNumbers) > 0 {
		conds = append(conds, sq.Expr("LOWER(roll_number) = ANY(?)", pq.Array(lowered(filter.RollNumbers))))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		conds = append(conds, sq.Expr("status = ANY(?)", pq.Array(statuses)))
	}
	if filter.ExcludeDrafts {
		conds = append(conds, sq.NotEq{"status": string(form.StatusDraft)})
	}
	if filter.Grade != "" {
		conds = append(conds, sq.Expr("LOWER(grade) = LOWER(?)", filter.Grade))
	}
	if filter.Section != "" {
		conds = append(conds, sq.Expr("LOWER(section) = LOWER(?)", filter.Section))
	}
	if !filter.From.IsZero() {
		conds = append(conds, sq.GtOrEq{"incident_date": filter.From.UTC()})
	}
	if !filter.To.IsZero() {
		conds = append(conds, sq.LtOrEq{"incident_date": filter.To.UTC()})
	}
	if !filter.CreatedFrom.IsZero() {
		conds = append(conds, sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
	}
	return conds
}

func (repo *formRepository) QueryForms(ctx context.Context, filter form.QueryFilter) ([]form.Form, error) {
	b := psql.Select(formColumns...).From("forms").Where(where(filter))
	if len(filter.Ordering) == 0 {
		b = b.OrderBy("created_at DESC")
	}
	for _, ord := range filter.Ordering {
		b = b.OrderBy(ord.String())
	}

	var rows []formRow
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying forms")
	}
	forms := make([]form.Form, 0, len(rows))
	for _, row := range rows {
		f, err := row.form()
		if err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}
	return forms, nil
}

func (repo *formRepository) CountForms(ctx context.Context, filter form.QueryFilter) (int, error) {
	var n int
	if err := get(ctx, repo.db, &n, psql.Select("COUNT(*)").From("forms").Where(where(filter))); err != nil {
		return 0, errors.Wrap(err, "counting forms")
	}
	return n, nil
}

func (repo *formRepository) CountFormsByStatus(ctx context.Context, templateID string, since time.Time) (map[string]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	b := psql.Select("status", "COUNT(*) AS count").
		From("forms").
		Where(where(form.QueryFilter{TemplateID: templateID, CreatedFrom: since})).
		GroupBy("status")
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "counting forms by status")
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (repo *formRepository) UpdateForm(ctx context.Context, id string, fn func(*form.Form) error) (form.Form, error) {
	var f form.Form
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var err error
		if f, err = repo.getForm(ctx, tx, id, "FOR UPDATE"); err != nil {
			return err
		}
		if err = fn(&f); err != nil {
			return err
		}
		f.ID = id

		doc, err := encodeForm(f)
		if err != nil {
			return err
		}
		q := psql.Update("forms").
			Set("status", string(f.Status)).
			Set("incident_date", f.IncidentDate.UTC()).
			Set("doc", doc).
			Set("updated_at", f.UpdatedAt.UTC()).
			Where(sq.Eq{"id": id})
		if _, err = exec(ctx, tx, q); err != nil {
			return errors.Wrap(err, "updating form")
		}
		return nil
	})
	if err != nil {
		return form.Form{}, err
	}
	return f, nil
}

func (repo *formRepository) DeleteForm(ctx context.Context, id string) error {
	n, err := exec(ctx, repo.db, psql.Delete("forms").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting form")
	}
	if n == 0 {
		return form.ErrNotFound
	}
	return nil
}
