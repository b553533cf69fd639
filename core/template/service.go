package template

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/trezcool/nidhamu/core"
	"github.com/trezcool/nidhamu/core/user"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("template not found")
	ErrInactive          = core.NewConflictError("template is not active")
	ErrInactiveDefault   = core.NewConflictError("an inactive template cannot be the default template")
	ErrDeactivateDefault = core.NewConflictError("the default template cannot be deactivated")
	ErrDeleteDefault     = core.NewConflictError("the default template cannot be deleted")
	ErrDefaultExists     = core.NewConflictError("another template is already the default template")
	ErrInUse             = core.NewConflictError("template is referenced by existing forms")
)

type (
	Repository interface {
		// CreateTemplate assigns an ID to tmpl and saves it.
		// It fails with ErrDefaultExists when tmpl.IsDefault is set and another default exists.
		CreateTemplate(ctx context.Context, tmpl Template) (Template, error)
		GetTemplate(ctx context.Context, id string) (Template, error)
		GetDefaultTemplate(ctx context.Context) (Template, error)
		// QueryTemplates applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Template.TemplateName.
		QueryTemplates(ctx context.Context, filter QueryFilter) ([]Template, error)
		// UpdateTemplate atomically applies fn to the stored template and saves the result.
		// When fn makes the template the default, every other template loses the flag in the same operation.
		UpdateTemplate(ctx context.Context, id string, fn func(*Template) error) (Template, error)
		// RecordTemplateUsage atomically increments FormsCreated and sets LastUsed.
		RecordTemplateUsage(ctx context.Context, id string, at time.Time) error
		// DeleteTemplate fails with ErrDeleteDefault or ErrInUse instead of deleting a default or referenced template.
		DeleteTemplate(ctx context.Context, id string) error
	}

	// FormCounter counts the forms created from a template, grouped by form status.
	FormCounter interface {
		CountFormsByStatus(ctx context.Context, templateID string, since time.Time) (map[string]int, error)
	}

	Service struct {
		repo       Repository
		forms      FormCounter
		validate   *validator.Validate
		logger     core.Logger
		schoolName string
		group      singleflight.Group
	}
)

func NewService(repo Repository, forms FormCounter, validate *validator.Validate, logger core.Logger, conf *core.Config) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(forms, "forms"),
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &Service{
		repo:       repo,
		forms:      forms,
		validate:   validate,
		logger:     logger,
		schoolName: conf.School.Name,
	}
}

func checkAdmin(actor user.Actor) error {
	if !actor.IsPrivileged() {
		return core.ErrForbidden
	}
	return nil
}

// GetDefault returns the default template, creating the baseline one the first time.
// Concurrent first calls share a single creation.
func (svc *Service) GetDefault(ctx context.Context) (Template, error) {
	tmpl, err := svc.repo.GetDefaultTemplate(ctx)
	if err == nil {
		return tmpl, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Template{}, errors.Wrap(err, "finding default template")
	}

	v, err, _ := svc.group.Do("default", func() (interface{}, error) {
		return svc.ensureDefault(ctx)
	})
	if err != nil {
		return Template{}, err
	}
	return v.(Template), nil
}

func (svc *Service) ensureDefault(ctx context.Context) (Template, error) {
	base, err := Baseline(svc.schoolName)
	if err != nil {
		return Template{}, err
	}
	now := core.Now()
	base.IsDefault = true
	base.CreatedBy = user.SystemActor().ID
	base.LastModifiedBy = base.CreatedBy
	base.CreatedAt = now
	base.UpdatedAt = now

	tmpl, err := svc.repo.CreateTemplate(ctx, base)
	if err != nil {
		// lost the race against another process
		if errors.Cause(err) == ErrDefaultExists {
			return svc.repo.GetDefaultTemplate(ctx)
		}
		return Template{}, errors.Wrap(err, "creating baseline template")
	}
	svc.logger.Info(fmt.Sprintf("created baseline default template %s", tmpl.ID))
	return tmpl, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Template, error) {
	return svc.repo.GetTemplate(ctx, id)
}

// GetActive returns the template only when it can be used for new forms.
func (svc *Service) GetActive(ctx context.Context, id string) (Template, error) {
	tmpl, err := svc.repo.GetTemplate(ctx, id)
	if err != nil {
		return Template{}, err
	}
	if !tmpl.IsActive {
		return Template{}, ErrInactive
	}
	return tmpl, nil
}

// Query lists templates; non-privileged actors only see active ones.
func (svc *Service) Query(ctx context.Context, filter QueryFilter, actor user.Actor) ([]Template, error) {
	filter.Clean()
	if !actor.IsPrivileged() {
		active := true
		filter.IsActive = &active
	}
	return svc.repo.QueryTemplates(ctx, filter)
}

func (svc *Service) Create(ctx context.Context, nt NewTemplate, actor user.Actor) (Template, error) {
	if err := checkAdmin(actor); err != nil {
		return Template{}, err
	}
	if err := nt.Validate(svc.validate); err != nil {
		return Template{}, err
	}

	now := core.Now()
	tmpl := Template{
		TemplateName:    nt.TemplateName,
		Description:     nt.Description,
		IsActive:        true,
		MisconductTypes: nt.MisconductTypes,
		ActionTypes:     nt.ActionTypes,
		FormConfig:      nt.FormConfig,
		SchoolInfo:      nt.SchoolInfo,
		Instructions:    nt.Instructions,
		Styling:         nt.Styling,
		CreatedBy:       actor.ID,
		LastModifiedBy:  actor.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return svc.repo.CreateTemplate(ctx, tmpl)
}

func (svc *Service) Update(ctx context.Context, id string, ut UpdateTemplate, actor user.Actor) (Template, error) {
	if err := checkAdmin(actor); err != nil {
		return Template{}, err
	}
	if err := ut.Validate(svc.validate); err != nil {
		return Template{}, err
	}

	return svc.repo.UpdateTemplate(ctx, id, func(tmpl *Template) error {
		wasDefault := tmpl.IsDefault
		ut.apply(tmpl)
		if wasDefault && tmpl.IsDefault && !tmpl.IsActive {
			return ErrDeactivateDefault
		}
		if err := tmpl.checkDefault(); err != nil {
			return err
		}
		tmpl.LastModifiedBy = actor.ID
		tmpl.UpdatedAt = core.Now()
		return nil
	})
}

// SetAsDefault makes the template the only default one.
func (svc *Service) SetAsDefault(ctx context.Context, id string, actor user.Actor) (Template, error) {
	if err := checkAdmin(actor); err != nil {
		return Template{}, err
	}
	return svc.repo.UpdateTemplate(ctx, id, func(tmpl *Template) error {
		if !tmpl.IsActive {
			return ErrInactiveDefault
		}
		tmpl.IsDefault = true
		tmpl.LastModifiedBy = actor.ID
		tmpl.UpdatedAt = core.Now()
		return nil
	})
}

// ToggleActive flips IsActive. The default template cannot be deactivated.
func (svc *Service) ToggleActive(ctx context.Context, id string, actor user.Actor) (Template, error) {
	if err := checkAdmin(actor); err != nil {
		return Template{}, err
	}
	return svc.repo.UpdateTemplate(ctx, id, func(tmpl *Template) error {
		if tmpl.IsDefault && tmpl.IsActive {
			return ErrDeactivateDefault
		}
		tmpl.IsActive = !tmpl.IsActive
		tmpl.LastModifiedBy = actor.ID
		tmpl.UpdatedAt = core.Now()
		return nil
	})
}

// Clone copies a template into a new active, non-default one with fresh usage stats.
func (svc *Service) Clone(ctx context.Context, id string, actor user.Actor) (Template, error) {
	if err := checkAdmin(actor); err != nil {
		return Template{}, err
	}
	orig, err := svc.repo.GetTemplate(ctx, id)
	if err != nil {
		return Template{}, err
	}

	now := core.Now()
	tmpl := orig.Copy()
	tmpl.ID = ""
	tmpl.TemplateName = orig.TemplateName + " (Copy)"
	tmpl.IsDefault = false
	tmpl.IsActive = true
	tmpl.FormsCreated = 0
	tmpl.LastUsed = nil
	tmpl.CreatedBy = actor.ID
	tmpl.LastModifiedBy = actor.ID
	tmpl.CreatedAt = now
	tmpl.UpdatedAt = now
	return svc.repo.CreateTemplate(ctx, tmpl)
}

func (svc *Service) Delete(ctx context.Context, id string, actor user.Actor) error {
	if err := checkAdmin(actor); err != nil {
		return err
	}
	tmpl, err := svc.repo.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	if tmpl.IsDefault {
		return ErrDeleteDefault
	}

	counts, err := svc.forms.CountFormsByStatus(ctx, id, time.Time{})
	if err != nil {
		return errors.Wrap(err, "counting template forms")
	}
	if n := sum(counts); n > 0 {
		return core.Conflictf("template is referenced by %d form(s) and cannot be deleted", n)
	}
	return svc.repo.DeleteTemplate(ctx, id)
}

// Stats returns the total and current-month form counts of a template, grouped by status.
func (svc *Service) Stats(ctx context.Context, id string, actor user.Actor) (Stats, error) {
	if err := checkAdmin(actor); err != nil {
		return Stats{}, err
	}
	if _, err := svc.repo.GetTemplate(ctx, id); err != nil {
		return Stats{}, err
	}

	total, err := svc.forms.CountFormsByStatus(ctx, id, time.Time{})
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting template forms")
	}
	month, err := svc.forms.CountFormsByStatus(ctx, id, core.StartOfMonth(core.Now()))
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting template forms this month")
	}
	return Stats{
		TemplateID:        id,
		Total:             sum(total),
		TotalByStatus:     total,
		ThisMonth:         sum(month),
		ThisMonthByStatus: month,
	}, nil
}

// RecordUsage is called once per form created from the template.
func (svc *Service) RecordUsage(ctx context.Context, id string) error {
	return svc.repo.RecordTemplateUsage(ctx, id, core.Now())
}

func sum(counts map[string]int) int {
	var n int
	for _, c := range counts {
		n += c
	}
	return n
}
