package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/nidhamu/core/template"
)

type templateRepository struct {
	db    *templateTable
	forms *formTable
}

var _ template.Repository = (*templateRepository)(nil) // interface compliance check

func NewTemplateRepository(db *DB) template.Repository {
	return &templateRepository{db: db.templates, forms: db.forms}
}

func (repo *templateRepository) query() []template.Template {
	tmpls := make([]template.Template, 0, len(repo.db.table))
	for _, t := range repo.db.table {
		tmpls = append(tmpls, t.Copy())
	}
	sort.Slice(tmpls, func(i, j int) bool { return tmpls[i].CreatedAt.After(tmpls[j].CreatedAt) })
	return tmpls
}

func (repo *templateRepository) defaultID() string {
	for id, t := range repo.db.table {
		if t.IsDefault {
			return id
		}
	}
	return ""
}

func (repo *templateRepository) CreateTemplate(_ context.Context, tmpl template.Template) (template.Template, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if tmpl.IsDefault && repo.defaultID() != "" {
		return template.Template{}, template.ErrDefaultExists
	}
	tmpl = tmpl.Copy()
	tmpl.ID = uuid.New().String()
	repo.db.table[tmpl.ID] = &tmpl
	return tmpl.Copy(), nil
}

func (repo *templateRepository) GetTemplate(_ context.Context, id string) (template.Template, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.table[id]; ok {
		return t.Copy(), nil
	}
	return template.Template{}, template.ErrNotFound
}

func (repo *templateRepository) GetDefaultTemplate(_ context.Context) (template.Template, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if id := repo.defaultID(); id != "" {
		return repo.db.table[id].Copy(), nil
	}
	return template.Template{}, template.ErrNotFound
}

func (repo *templateRepository) QueryTemplates(_ context.Context, filter template.QueryFilter) ([]template.Template, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(filter.Search)
	tmpls := make([]template.Template, 0)
	for _, t := range repo.query() {
		if search != "" && !strings.Contains(strings.ToLower(t.TemplateName), search) {
			continue
		}
		if filter.IsActive != nil && t.IsActive != *filter.IsActive {
			continue
		}
		tmpls = append(tmpls, t)
	}
	return tmpls, nil
}

func (repo *templateRepository) UpdateTemplate(_ context.Context, id string, fn func(*template.Template) error) (template.Template, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[id]
	if !ok {
		return template.Template{}, template.ErrNotFound
	}
	tmpl := orig.Copy()
	if err := fn(&tmpl); err != nil {
		return template.Template{}, err
	}
	tmpl.ID = id

	if tmpl.IsDefault && !orig.IsDefault {
		for _, t := range repo.db.table {
			t.IsDefault = false
		}
	}
	repo.db.table[id] = &tmpl
	return tmpl.Copy(), nil
}

func (repo *templateRepository) RecordTemplateUsage(_ context.Context, id string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	t, ok := repo.db.table[id]
	if !ok {
		return template.ErrNotFound
	}
	t.FormsCreated++
	t.LastUsed = &at
	return nil
}

func (repo *templateRepository) DeleteTemplate(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.forms.RLock()
	defer repo.forms.RUnlock()

	t, ok := repo.db.table[id]
	if !ok {
		return template.ErrNotFound
	}
	if t.IsDefault {
		return template.ErrDeleteDefault
	}
	for _, f := range repo.forms.table {
		if f.TemplateID == id {
			return template.ErrInUse
		}
	}
	delete(repo.db.table, id)
	return nil
}
