package template_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/nidhamu/core"
	"github.com/trezcool/nidhamu/core/form"
	"github.com/trezcool/nidhamu/core/template"
	"github.com/trezcool/nidhamu/core/user"
	"github.com/trezcool/nidhamu/storage/database/dummy"
	"github.com/trezcool/nidhamu/tests"
)

type env struct {
	svc   *template.Service
	repo  template.Repository
	forms form.Repository
}

func setup(t *testing.T) *env {
	db, err := dummydb.Open()
	require.NoError(t, err)

	repo := dummydb.NewTemplateRepository(db)
	forms := dummydb.NewFormRepository(db)
	conf := &core.Config{School: core.SchoolConfig{Name: "Lycée Test"}}
	return &env{
		svc:   template.NewService(repo, forms, testutil.NewValidator(), &testutil.Logger{}, conf),
		repo:  repo,
		forms: forms,
	}
}

func newTemplate(name string) template.NewTemplate {
	return template.NewTemplate{
		TemplateName: name,
		MisconductTypes: []template.MisconductType{
			{Label: "Running in corridors", Severity: template.SeverityLow, Enabled: true},
			{Label: "Phone use", Severity: template.SeverityMedium, Enabled: false},
		},
		ActionTypes: []template.ActionType{
			{Label: "Warning", Severity: template.ActionLight, Enabled: true},
			{Label: "Detention", RequiresDetails: true, DetailsLabel: "Sessions", Severity: template.ActionModerate, Enabled: true},
		},
		SchoolInfo: template.SchoolInfo{SchoolName: "Lycée Test", Email: "office@lycee.test"},
	}
}

func (e *env) create(t *testing.T, name string) template.Template {
	tmpl, err := e.svc.Create(context.Background(), newTemplate(name), testutil.Admin)
	require.NoError(t, err)
	return tmpl
}

func (e *env) defaults(t *testing.T) []string {
	tmpls, err := e.repo.QueryTemplates(context.Background(), template.QueryFilter{})
	require.NoError(t, err)
	var ids []string
	for _, tmpl := range tmpls {
		if tmpl.IsDefault {
			ids = append(ids, tmpl.ID)
		}
	}
	return ids
}

func TestService_GetDefault(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	got := make([]template.Template, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tmpl, err := e.svc.GetDefault(ctx)
			assert.NoError(t, err)
			got[i] = tmpl
		}(i)
	}
	wg.Wait()

	for _, tmpl := range got {
		assert.Equal(t, got[0].ID, tmpl.ID)
	}
	def := got[0]
	assert.Equal(t, template.BaselineName, def.TemplateName)
	assert.Equal(t, "Lycée Test", def.SchoolInfo.SchoolName)
	assert.True(t, def.IsDefault)
	assert.True(t, def.IsActive)
	assert.Equal(t, user.SystemActor().ID, def.CreatedBy)
	assert.Len(t, e.defaults(t), 1)
}

func TestService_Create(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	tmpl := e.create(t, "  Primary  ")
	assert.NotEmpty(t, tmpl.ID)
	assert.Equal(t, "Primary", tmpl.TemplateName)
	assert.True(t, tmpl.IsActive)
	assert.False(t, tmpl.IsDefault)
	assert.Equal(t, "running_in_corridors", tmpl.MisconductTypes[0].Key)
	assert.Equal(t, "phone_use", tmpl.MisconductTypes[1].Key)
	assert.Equal(t, testutil.Admin.ID, tmpl.CreatedBy)
	assert.Len(t, tmpl.EnabledMisconductTypes(), 1)

	duplicate := newTemplate("Dup")
	duplicate.MisconductTypes[1].Label = "Running in corridors"
	noDetailsLabel := newTemplate("No details label")
	noDetailsLabel.ActionTypes[1].DetailsLabel = ""
	badSeverity := newTemplate("Bad severity")
	badSeverity.MisconductTypes[0].Severity = "extreme"
	noSchool := newTemplate("No school")
	noSchool.SchoolInfo.SchoolName = " "

	tests := []struct {
		name     string
		nt       template.NewTemplate
		actor    user.Actor
		wantKind core.ErrorKind
	}{
		{name: "teacher", nt: newTemplate("T"), actor: testutil.Teacher, wantKind: core.KindForbidden},
		{name: "blank name", nt: newTemplate("   "), actor: testutil.Admin, wantKind: core.KindValidation},
		{name: "duplicate keys", nt: duplicate, actor: testutil.Admin, wantKind: core.KindValidation},
		{name: "details label missing", nt: noDetailsLabel, actor: testutil.Admin, wantKind: core.KindValidation},
		{name: "bad severity", nt: badSeverity, actor: testutil.Admin, wantKind: core.KindValidation},
		{name: "no school name", nt: noSchool, actor: testutil.Admin, wantKind: core.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Create(ctx, tt.nt, tt.actor)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, core.KindOf(err))
		})
	}
}

func TestService_Query(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	primary := e.create(t, "Primary school")
	secondary := e.create(t, "Secondary school")
	_, err := e.svc.ToggleActive(ctx, secondary.ID, testutil.Admin)
	require.NoError(t, err)

	tmpls, err := e.svc.Query(ctx, template.QueryFilter{Search: "SCHOOL"}, testutil.Admin)
	require.NoError(t, err)
	assert.Len(t, tmpls, 2)

	tmpls, err = e.svc.Query(ctx, template.QueryFilter{Search: "school"}, testutil.Teacher)
	require.NoError(t, err)
	require.Len(t, tmpls, 1)
	assert.Equal(t, primary.ID, tmpls[0].ID)

	inactive := false
	tmpls, err = e.svc.Query(ctx, template.QueryFilter{IsActive: &inactive}, testutil.Staff)
	require.NoError(t, err)
	require.Len(t, tmpls, 1)
	assert.Equal(t, secondary.ID, tmpls[0].ID)
}

func TestService_Update(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	def, err := e.svc.GetDefault(ctx)
	require.NoError(t, err)
	tmpl := e.create(t, "Primary")

	name := "Primary (2024)"
	updated, err := e.svc.Update(ctx, tmpl.ID, template.UpdateTemplate{
		TemplateName: &name,
		FormConfig:   &template.FormConfig{AllowFollowUp: true},
	}, testutil.Staff)
	require.NoError(t, err)
	assert.Equal(t, name, updated.TemplateName)
	assert.True(t, updated.FormConfig.AllowFollowUp)
	assert.Equal(t, testutil.Staff.ID, updated.LastModifiedBy)
	assert.Len(t, updated.MisconductTypes, 2)

	// becoming the default through an update clears the previous one
	yes := true
	updated, err = e.svc.Update(ctx, tmpl.ID, template.UpdateTemplate{IsDefault: &yes}, testutil.Admin)
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)
	assert.Equal(t, []string{tmpl.ID}, e.defaults(t))
	def, err = e.svc.Get(ctx, def.ID)
	require.NoError(t, err)
	assert.False(t, def.IsDefault)

	no := false
	_, err = e.svc.Update(ctx, tmpl.ID, template.UpdateTemplate{IsActive: &no}, testutil.Admin)
	assert.Equal(t, template.ErrDeactivateDefault, errors.Cause(err))

	_, err = e.svc.Update(ctx, def.ID, template.UpdateTemplate{IsActive: &no, IsDefault: &yes}, testutil.Admin)
	assert.Equal(t, template.ErrInactiveDefault, errors.Cause(err))
	assert.Equal(t, []string{tmpl.ID}, e.defaults(t))

	_, err = e.svc.Update(ctx, "nope", template.UpdateTemplate{TemplateName: &name}, testutil.Admin)
	assert.Equal(t, template.ErrNotFound, errors.Cause(err))
	_, err = e.svc.Update(ctx, tmpl.ID, template.UpdateTemplate{TemplateName: &name}, testutil.Teacher)
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))
}

func TestService_SetAsDefault(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	def, err := e.svc.GetDefault(ctx)
	require.NoError(t, err)

	tmpl := e.create(t, "Primary")
	tmpl, err = e.svc.SetAsDefault(ctx, tmpl.ID, testutil.Admin)
	require.NoError(t, err)
	assert.True(t, tmpl.IsDefault)
	assert.Equal(t, []string{tmpl.ID}, e.defaults(t))

	got, err := e.svc.GetDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, tmpl.ID, got.ID)

	// an inactive template cannot become the default, and nothing changes
	_, err = e.svc.ToggleActive(ctx, def.ID, testutil.Admin)
	require.NoError(t, err)
	_, err = e.svc.SetAsDefault(ctx, def.ID, testutil.Admin)
	assert.Equal(t, template.ErrInactiveDefault, errors.Cause(err))
	def, err = e.svc.Get(ctx, def.ID)
	require.NoError(t, err)
	assert.False(t, def.IsDefault)
	assert.Equal(t, []string{tmpl.ID}, e.defaults(t))

	_, err = e.svc.SetAsDefault(ctx, def.ID, testutil.Teacher)
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))
}

func TestService_ToggleActive(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	def, err := e.svc.GetDefault(ctx)
	require.NoError(t, err)

	_, err = e.svc.ToggleActive(ctx, def.ID, testutil.Admin)
	assert.Equal(t, template.ErrDeactivateDefault, errors.Cause(err))

	tmpl := e.create(t, "Primary")
	tmpl, err = e.svc.ToggleActive(ctx, tmpl.ID, testutil.Admin)
	require.NoError(t, err)
	assert.False(t, tmpl.IsActive)
	_, err = e.svc.GetActive(ctx, tmpl.ID)
	assert.Equal(t, template.ErrInactive, errors.Cause(err))

	tmpl, err = e.svc.ToggleActive(ctx, tmpl.ID, testutil.Admin)
	require.NoError(t, err)
	assert.True(t, tmpl.IsActive)
}

func TestService_Clone(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	def, err := e.svc.GetDefault(ctx)
	require.NoError(t, err)
	require.NoError(t, e.svc.RecordUsage(ctx, def.ID))

	clone, err := e.svc.Clone(ctx, def.ID, testutil.Staff)
	require.NoError(t, err)
	assert.NotEqual(t, def.ID, clone.ID)
	assert.Equal(t, template.BaselineName+" (Copy)", clone.TemplateName)
	assert.False(t, clone.IsDefault)
	assert.True(t, clone.IsActive)
	assert.Zero(t, clone.FormsCreated)
	assert.Nil(t, clone.LastUsed)
	assert.Equal(t, def.MisconductTypes, clone.MisconductTypes)
	assert.Equal(t, testutil.Staff.ID, clone.CreatedBy)

	def, err = e.svc.Get(ctx, def.ID)
	require.NoError(t, err)
	assert.True(t, def.IsDefault)
	assert.Equal(t, 1, def.FormsCreated)
	assert.NotNil(t, def.LastUsed)
}

func saveForm(t *testing.T, forms form.Repository, templateID string, status form.Status, createdAt time.Time) {
	_, err := forms.CreateForm(context.Background(), form.Form{
		TemplateID: templateID,
		RollNumber: "S100",
		Status:     status,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	})
	require.NoError(t, err)
}

func TestService_Delete(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	def, err := e.svc.GetDefault(ctx)
	require.NoError(t, err)

	err = e.svc.Delete(ctx, def.ID, testutil.Admin)
	assert.Equal(t, template.ErrDeleteDefault, errors.Cause(err))

	used := e.create(t, "Used")
	saveForm(t, e.forms, used.ID, form.StatusDraft, core.Now())
	saveForm(t, e.forms, used.ID, form.StatusSubmitted, core.Now())
	err = e.svc.Delete(ctx, used.ID, testutil.Admin)
	require.Error(t, err)
	assert.Equal(t, core.KindConflict, core.KindOf(err))
	assert.True(t, strings.Contains(err.Error(), "2 form(s)"), err.Error())

	unused := e.create(t, "Unused")
	assert.Equal(t, core.ErrForbidden, errors.Cause(e.svc.Delete(ctx, unused.ID, testutil.Teacher)))
	require.NoError(t, e.svc.Delete(ctx, unused.ID, testutil.Admin))
	_, err = e.svc.Get(ctx, unused.ID)
	assert.Equal(t, template.ErrNotFound, errors.Cause(err))
	assert.Equal(t, template.ErrNotFound, errors.Cause(e.svc.Delete(ctx, unused.ID, testutil.Admin)))
}

func TestService_Stats(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tmpl := e.create(t, "Primary")

	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	core.Now = func() time.Time { return now }
	defer func() { core.Now = func() time.Time { return time.Now().UTC() } }()

	saveForm(t, e.forms, tmpl.ID, form.StatusDraft, now.AddDate(0, -1, 0))
	saveForm(t, e.forms, tmpl.ID, form.StatusCompleted, now.AddDate(0, -2, 0))
	saveForm(t, e.forms, tmpl.ID, form.StatusDraft, now.AddDate(0, 0, -3))
	saveForm(t, e.forms, tmpl.ID, form.StatusSubmitted, now)

	stats, err := e.svc.Stats(ctx, tmpl.ID, testutil.Admin)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, map[string]int{"draft": 2, "completed": 1, "submitted": 1}, stats.TotalByStatus)
	assert.Equal(t, 2, stats.ThisMonth)
	assert.Equal(t, map[string]int{"draft": 1, "submitted": 1}, stats.ThisMonthByStatus)

	_, err = e.svc.Stats(ctx, "nope", testutil.Admin)
	assert.Equal(t, template.ErrNotFound, errors.Cause(err))
	_, err = e.svc.Stats(ctx, tmpl.ID, testutil.Teacher)
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))
}

func TestService_defaultUniqueness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	// each op either creates a template (negative values) or makes template op%n the default
	properties.Property("at most one template is the default", prop.ForAll(
		func(ops []int) bool {
			e := setup(t)
			ctx := context.Background()
			if _, err := e.svc.GetDefault(ctx); err != nil {
				return false
			}

			var ids []string
			for _, op := range ops {
				if op < 0 || len(ids) == 0 {
					tmpl, err := e.svc.Create(ctx, newTemplate("T"), testutil.Admin)
					if err != nil {
						return false
					}
					ids = append(ids, tmpl.ID)
				} else if _, err := e.svc.SetAsDefault(ctx, ids[op%len(ids)], testutil.Admin); err != nil {
					return false
				}
				if len(e.defaults(t)) != 1 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-3, 10)),
	))

	properties.TestingRun(t)
}
