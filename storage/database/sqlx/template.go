package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/nidhamu/core/template"
)

const templatesDefaultConstraint = "templates_single_default"

var templateColumns = []string{
	"id", "template_name", "is_default", "is_active", "forms_created", "last_used", "doc", "created_at", "updated_at",
}

// templateRow keeps the queried & counted fields in columns; the rest lives in doc.
type templateRow struct {
	ID           string    `db:"id"`
	TemplateName string    `db:"template_name"`
	IsDefault    bool      `db:"is_default"`
	IsActive     bool      `db:"is_active"`
	FormsCreated int       `db:"forms_created"`
	LastUsed     null.Time `db:"last_used"`
	Doc          []byte    `db:"doc"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (row templateRow) template() (template.Template, error) {
	var tmpl template.Template
	if err := json.Unmarshal(row.Doc, &tmpl); err != nil {
		return template.Template{}, errors.Wrap(err, "decoding template")
	}
	tmpl.ID = row.ID
	tmpl.TemplateName = row.TemplateName
	tmpl.IsDefault = row.IsDefault
	tmpl.IsActive = row.IsActive
	tmpl.FormsCreated = row.FormsCreated
	tmpl.LastUsed = row.LastUsed.Ptr()
	tmpl.CreatedAt = row.CreatedAt.UTC()
	tmpl.UpdatedAt = row.UpdatedAt.UTC()
	return tmpl, nil
}

type templateRepository struct {
	db *sqlx.DB
}

var _ template.Repository = (*templateRepository)(nil) // interface compliance check

func NewTemplateRepository(db *sqlx.DB) template.Repository {
	return &templateRepository{db: db}
}

// trapDefaultErr maps the default-template constraints to their domain errors.
func trapDefaultErr(err error, msg string) error {
	if pqErr, ok := pqError(err); ok {
		switch {
		case string(pqErr.Code) == uniqueViolation && pqErr.Constraint == templatesDefaultConstraint:
			return template.ErrDefaultExists
		case string(pqErr.Code) == checkViolation:
			return template.ErrInactiveDefault
		}
	}
	return errors.Wrap(err, msg)
}

func (repo *templateRepository) CreateTemplate(ctx context.Context, tmpl template.Template) (template.Template, error) {
	tmpl.ID = uuid.New().String()
	doc, err := json.Marshal(tmpl)
	if err != nil {
		return template.Template{}, errors.Wrap(err, "encoding template")
	}

	q := psql.Insert("templates").Columns(templateColumns...).Values(
		tmpl.ID, tmpl.TemplateName, tmpl.IsDefault, tmpl.IsActive, tmpl.FormsCreated, null.TimeFromPtr(tmpl.LastUsed),
		jsonb(doc), tmpl.CreatedAt.UTC(), tmpl.UpdatedAt.UTC(),
	)
	if _, err = exec(ctx, repo.db, q); err != nil {
		return template.Template{}, trapDefaultErr(err, "inserting template")
	}
	return tmpl, nil
}

func (repo *templateRepository) getTemplate(ctx context.Context, q queryer, where sq.Sqlizer, suffix string) (template.Template, error) {
	var row templateRow
	b := psql.Select(templateColumns...).From("templates").Where(where)
	if suffix != "" {
		b = b.Suffix(suffix)
	}
	if err := get(ctx, q, &row, b); err != nil {
		return template.Template{}, trapNoRowsErr(err, template.ErrNotFound, "finding template")
	}
	return row.template()
}

func (repo *templateRepository) GetTemplate(ctx context.Context, id string) (template.Template, error) {
	return repo.getTemplate(ctx, repo.db, sq.Eq{"id": id}, "")
}

func (repo *templateRepository) GetDefaultTemplate(ctx context.Context) (template.Template, error) {
	return repo.getTemplate(ctx, repo.db, sq.Eq{"is_default": true}, "")
}

func (repo *templateRepository) QueryTemplates(ctx context.Context, filter template.QueryFilter) ([]template.Template, error) {
	b := psql.Select(templateColumns...).From("templates").OrderBy("created_at DESC")
	if filter.Search != "" {
		b = b.Where(sq.Expr("template_name ILIKE ?", "%"+filter.Search+"%"))
	}
	if filter.IsActive != nil {
		b = b.Where(sq.Eq{"is_active": *filter.IsActive})
	}

	var rows []templateRow
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying templates")
	}
	tmpls := make([]template.Template, 0, len(rows))
	for _, row := range rows {
		tmpl, err := row.template()
		if err != nil {
			return nil, err
		}
		tmpls = append(tmpls, tmpl)
	}
	return tmpls, nil
}

func (repo *templateRepository) UpdateTemplate(ctx context.Context, id string, fn func(*template.Template) error) (template.Template, error) {
	var tmpl template.Template
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		orig, err := repo.getTemplate(ctx, tx, sq.Eq{"id": id}, "FOR UPDATE")
		if err != nil {
			return err
		}
		tmpl = orig.Copy()
		if err = fn(&tmpl); err != nil {
			return err
		}
		tmpl.ID = id

		if tmpl.IsDefault && !orig.IsDefault {
			clearDefault := psql.Update("templates").Set("is_default", false).Where(sq.Eq{"is_default": true}).Where(sq.NotEq{"id": id})
			if _, err = exec(ctx, tx, clearDefault); err != nil {
				return errors.Wrap(err, "clearing default template")
			}
		}

		doc, err := json.Marshal(tmpl)
		if err != nil {
			return errors.Wrap(err, "encoding template")
		}
		q := psql.Update("templates").
			Set("template_name", tmpl.TemplateName).
			Set("is_default", tmpl.IsDefault).
			Set("is_active", tmpl.IsActive).
			Set("doc", jsonb(doc)).
			Set("updated_at", tmpl.UpdatedAt.UTC()).
			Where(sq.Eq{"id": id})
		if _, err = exec(ctx, tx, q); err != nil {
			return trapDefaultErr(err, "updating template")
		}
		return nil
	})
	if err != nil {
		return template.Template{}, err
	}
	return tmpl, nil
}

func (repo *templateRepository) RecordTemplateUsage(ctx context.Context, id string, at time.Time) error {
	q := psql.Update("templates").
		Set("forms_created", sq.Expr("forms_created + 1")).
		Set("last_used", at.UTC()).
		Where(sq.Eq{"id": id})
	n, err := exec(ctx, repo.db, q)
	if err != nil {
		return errors.Wrap(err, "recording template usage")
	}
	if n == 0 {
		return template.ErrNotFound
	}
	return nil
}

func (repo *templateRepository) DeleteTemplate(ctx context.Context, id string) error {
	q := psql.Delete("templates").Where(sq.Eq{"id": id, "is_default": false})
	n, err := exec(ctx, repo.db, q)
	if err != nil {
		if hasCode(err, foreignKeyViolation) {
			return template.ErrInUse
		}
		return errors.Wrap(err, "deleting template")
	}
	if n > 0 {
		return nil
	}

	// nothing deleted: either missing or the default one
	if _, err = repo.GetTemplate(ctx, id); err != nil {
		return err
	}
	return template.ErrDeleteDefault
}
