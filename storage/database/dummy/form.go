package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/nidhamu/core"
	"github.com/trezcool/nidhamu/core/form"
	"github.com/trezcool/nidhamu/core/template"
)

type formRepository struct {
	db        *formTable
	templates *templateTable
}

var _ form.Repository = (*formRepository)(nil) // interface compliance check

func NewFormRepository(db *DB) form.Repository {
	return &formRepository{db: db.forms, templates: db.templates}
}

func (repo *formRepository) CreateForm(_ context.Context, f form.Form) (form.Form, error) {
	repo.templates.RLock()
	defer repo.templates.RUnlock()
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.templates.table[f.TemplateID]; !ok {
		return form.Form{}, template.ErrNotFound
	}
	f = f.Copy()
	f.ID = uuid.New().String()
	repo.db.table[f.ID] = &f
	return f.Copy(), nil
}

func (repo *formRepository) GetForm(_ context.Context, id string) (form.Form, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if f, ok := repo.db.table[id]; ok {
		return f.Copy(), nil
	}
	return form.Form{}, form.ErrNotFound
}

func (repo *formRepository) filter(filter form.QueryFilter) []form.Form {
	forms := make([]form.Form, 0)
	for _, f := range repo.db.table {
		if matches(*f, filter) {
			forms = append(forms, f.Copy())
		}
	}
	return forms
}

func (repo *formRepository) QueryForms(_ context.Context, filter form.QueryFilter) ([]form.Form, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	forms := repo.filter(filter)
	sortForms(forms, filter.Ordering)
	return forms, nil
}

func (repo *formRepository) CountForms(_ context.Context, filter form.QueryFilter) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.filter(filter)), nil
}

func (repo *formRepository) CountFormsByStatus(ctx context.Context, templateID string, since time.Time) (map[string]int, error) {
	return form.CountFormsByStatus(ctx, repo, templateID, since)
}

func (repo *formRepository) UpdateForm(_ context.Context, id string, fn func(*form.Form) error) (form.Form, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[id]
	if !ok {
		return form.Form{}, form.ErrNotFound
	}
	f := orig.Copy()
	if err := fn(&f); err != nil {
		return form.Form{}, err
	}
	f.ID = id
	repo.db.table[id] = &f
	return f.Copy(), nil
}

func (repo *formRepository) DeleteForm(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return form.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

func matches(f form.Form, filter form.QueryFilter) bool {
	if filter.TemplateID != "" && f.TemplateID != filter.TemplateID {
		return false
	}
	if filter.CreatedBy != "" && f.CreatedBy != filter.CreatedBy {
		return false
	}
	if filter.StudentID != "" && f.StudentID != filter.StudentID {
		return false
	}
	if len(filter.RollNumbers) > 0 && !containsFold(filter.RollNumbers, f.RollNumber) {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, s := range filter.Statuses {
			if f.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.ExcludeDrafts && f.Status == form.StatusDraft {
		return false
	}
	if filter.Grade != "" && !strings.EqualFold(f.Grade, filter.Grade) {
		return false
	}
	if filter.Section != "" && !strings.EqualFold(f.Section, filter.Section) {
		return false
	}
	if !filter.From.IsZero() && f.IncidentDate.Before(filter.From.UTC()) {
		return false
	}
	if !filter.To.IsZero() && f.IncidentDate.After(filter.To.UTC()) {
		return false
	}
	if !filter.CreatedFrom.IsZero() && f.CreatedAt.Before(filter.CreatedFrom.UTC()) {
		return false
	}
	return true
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// compare returns -1, 0 or 1 comparing a and b on field.
func compare(a, b form.Form, field string) int {
	switch field {
	case "incident_date":
		return compareTimes(a.IncidentDate, b.IncidentDate)
	case "warning_number":
		return a.WarningNumber - b.WarningNumber
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "roll_number":
		return strings.Compare(a.RollNumber, b.RollNumber)
	default:
		return compareTimes(a.CreatedAt, b.CreatedAt)
	}
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

func sortForms(forms []form.Form, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(forms, func(i, j int) bool {
		for _, ord := range ordering {
			c := compare(forms[i], forms[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}
