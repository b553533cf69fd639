package form

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/nidhamu/core"
	"github.com/trezcool/nidhamu/core/student"
	"github.com/trezcool/nidhamu/core/template"
	"github.com/trezcool/nidhamu/core/user"
)

var (
	// errors
	ErrNotFound            = core.NewNotFoundError("form not found")
	ErrNotDraft            = core.NewConflictError("form has been submitted and can no longer be edited")
	ErrNotSubmitted        = core.NewConflictError("form has not been submitted yet")
	ErrAlreadyApproved     = core.NewConflictError("form has already been approved")
	ErrApprovalNotRequired = core.NewConflictError("form template does not require admin approval")
	ErrFollowUpNotAllowed  = core.NewConflictError("form template does not allow follow-ups")
	ErrDocumentsDisabled   = errors.New("no document generator is configured")
)

type (
	Repository interface {
		// CreateForm assigns an ID to f and saves it.
		// It fails with template.ErrNotFound when f.TemplateID does not exist.
		CreateForm(ctx context.Context, f Form) (Form, error)
		GetForm(ctx context.Context, id string) (Form, error)
		QueryForms(ctx context.Context, filter QueryFilter) ([]Form, error)
		CountForms(ctx context.Context, filter QueryFilter) (int, error)
		// UpdateForm atomically applies fn to the stored form and saves the result.
		// Concurrent calls on the same form are serialized; fn always sees the latest stored state.
		UpdateForm(ctx context.Context, id string, fn func(*Form) error) (Form, error)
		DeleteForm(ctx context.Context, id string) error
		template.FormCounter
	}

	// Templates gives access to the templates forms are created from.
	Templates interface {
		GetDefault(ctx context.Context) (template.Template, error)
		GetActive(ctx context.Context, id string) (template.Template, error)
		RecordUsage(ctx context.Context, id string) error
	}

	// Recorder mirrors submitted forms on student records.
	Recorder interface {
		Append(ctx context.Context, e student.Entry) (student.DisciplinaryAction, error)
	}

	// DocumentGenerator renders forms to PDF documents kept by an external service.
	// A generator returning a Document without Handle does not keep documents.
	DocumentGenerator interface {
		Generate(ctx context.Context, f Form) (Document, error)
		Remove(ctx context.Context, doc Document) error
	}

	Service struct {
		repo      Repository
		templates Templates
		students  student.Directory
		links     student.ParentChildLinks
		mirror    Recorder
		docs      DocumentGenerator
		validate  *validator.Validate
		logger    core.Logger
	}
)

func NewService(
	repo Repository,
	templates Templates,
	students student.Directory,
	links student.ParentChildLinks,
	mirror Recorder,
	docs DocumentGenerator,
	validate *validator.Validate,
	logger core.Logger,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(templates, "templates"),
		vala.IsNotNil(students, "students"),
		vala.IsNotNil(links, "links"),
		vala.IsNotNil(mirror, "mirror"),
		vala.IsNotNil(docs, "docs"),
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{
		repo:      repo,
		templates: templates,
		students:  students,
		links:     links,
		mirror:    mirror,
		docs:      docs,
		validate:  validate,
		logger:    logger,
	}
}

func creatorRole(actor user.Actor) string {
	switch {
	case actor.IsAdmin():
		return "admin"
	case actor.IsStaff():
		return "staff"
	default:
		return "teacher"
	}
}

// Create saves a draft form for the student with nf.RollNumber, from the given template or the default one.
func (svc *Service) Create(ctx context.Context, nf NewForm, actor user.Actor) (Form, error) {
	if !CanCreate(actor) {
		return Form{}, core.ErrForbidden
	}
	if err := nf.Validate(svc.validate); err != nil {
		return Form{}, err
	}

	s, err := svc.students.GetStudentByRollNumber(ctx, nf.RollNumber)
	if err != nil {
		return Form{}, err
	}

	var tmpl template.Template
	if nf.TemplateID != "" {
		tmpl, err = svc.templates.GetActive(ctx, nf.TemplateID)
	} else {
		tmpl, err = svc.templates.GetDefault(ctx)
	}
	if err != nil {
		return Form{}, err
	}

	misconduct, actions := nf.Misconduct, nf.Actions
	if len(misconduct) == 0 && nf.TypeOfMisconduct != nil {
		if misconduct, err = nf.TypeOfMisconduct.Selections(); err != nil {
			return Form{}, err
		}
	}
	if len(actions) == 0 && nf.ActionTaken != nil {
		if actions, err = nf.ActionTaken.Selections(); err != nil {
			return Form{}, err
		}
	}
	selectedMisconduct, err := selectMisconduct(misconductSnapshot(tmpl.EnabledMisconductTypes()), misconduct)
	if err != nil {
		return Form{}, err
	}
	selectedActions, err := selectActions(actionSnapshot(tmpl.EnabledActionTypes()), actions)
	if err != nil {
		return Form{}, err
	}

	previous, err := svc.repo.CountForms(ctx, QueryFilter{StudentID: s.ID})
	if err != nil {
		return Form{}, errors.Wrap(err, "counting student forms")
	}

	parentContact := nf.ParentContact
	if parentContact == "" {
		parentContact = s.ParentContact
	}

	now := core.Now()
	f := Form{
		TemplateID:              tmpl.ID,
		SchoolName:              tmpl.SchoolInfo.SchoolName,
		WarningNumber:           previous + 1,
		CreatedBy:               actor.ID,
		CreatedByName:           actor.Name,
		CreatedByRole:           creatorRole(actor),
		StudentID:               s.ID,
		StudentName:             s.Name,
		Grade:                   s.Grade,
		Section:                 s.Section,
		RollNumber:              s.RollNumber,
		ParentContact:           parentContact,
		IncidentDate:            nf.IncidentDate.UTC(),
		IncidentTime:            nf.IncidentTime,
		Location:                nf.Location,
		Description:             nf.Description,
		SelectedMisconductTypes: selectedMisconduct,
		SelectedActionTypes:     selectedActions,
		FormConfig:              tmpl.FormConfig,
		Status:                  StatusDraft,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err = checkRequired(f); err != nil {
		return Form{}, err
	}

	if f, err = svc.repo.CreateForm(ctx, f); err != nil {
		return Form{}, err
	}
	if err = svc.templates.RecordUsage(ctx, tmpl.ID); err != nil {
		svc.logger.Error("recording template usage", err, actor, map[string]interface{}{"template_id": tmpl.ID})
	}
	return svc.attachDocument(ctx, f, actor), nil
}

// attachDocument generates the PDF of f. Failures are logged and leave f without document.
func (svc *Service) attachDocument(ctx context.Context, f Form, actor user.Actor) Form {
	doc, err := svc.docs.Generate(ctx, f)
	if err != nil {
		svc.logger.Warn("generating form document", err, actor, map[string]interface{}{"form_id": f.ID})
		return f
	}
	if doc.Handle == "" {
		return f
	}
	doc.GeneratedAt = core.Now()
	doc.GeneratedBy = actor.ID

	updated, err := svc.repo.UpdateForm(ctx, f.ID, func(stored *Form) error {
		stored.Document = &doc
		return nil
	})
	if err != nil {
		svc.logger.Warn("saving form document", err, actor, map[string]interface{}{"form_id": f.ID})
		return f
	}
	return updated
}

// Update modifies a draft form. Taxonomy selections are made against the form's own snapshot.
func (svc *Service) Update(ctx context.Context, id string, uf UpdateForm, actor user.Actor) (Form, error) {
	if err := uf.Validate(svc.validate); err != nil {
		return Form{}, err
	}

	return svc.repo.UpdateForm(ctx, id, func(f *Form) error {
		if !CanWrite(actor, *f) {
			return core.ErrForbidden
		}
		if f.IsSubmitted() {
			return ErrNotDraft
		}

		if uf.IncidentDate != nil {
			f.IncidentDate = uf.IncidentDate.UTC()
		}
		if uf.IncidentTime != nil {
			f.IncidentTime = *uf.IncidentTime
		}
		if uf.Location != nil {
			f.Location = *uf.Location
		}
		if uf.Description != nil {
			f.Description = *uf.Description
		}
		if uf.ParentContact != nil {
			f.ParentContact = *uf.ParentContact
		}
		if uf.Misconduct != nil {
			selected, err := selectMisconduct(f.SelectedMisconductTypes, uf.Misconduct)
			if err != nil {
				return err
			}
			f.SelectedMisconductTypes = selected
		}
		if uf.Actions != nil {
			selected, err := selectActions(f.SelectedActionTypes, uf.Actions)
			if err != nil {
				return err
			}
			f.SelectedActionTypes = selected
		}
		if err := checkRequired(*f); err != nil {
			return err
		}
		f.UpdatedAt = core.Now()
		return nil
	})
}

// Submit moves a draft form to submitted and mirrors it on the student record.
// The record is only written once the submission is saved; when it cannot be written
// the form goes back to draft.
func (svc *Service) Submit(ctx context.Context, id string, actor user.Actor) (Form, error) {
	f, err := svc.repo.UpdateForm(ctx, id, func(f *Form) error {
		if !CanWrite(actor, *f) {
			return core.ErrForbidden
		}
		if f.IsSubmitted() {
			return ErrNotDraft
		}

		now := core.Now()
		studentNotified, parentNotified := now, now
		f.Status = StatusSubmitted
		f.SubmittedAt = &now
		f.StudentNotifiedAt = &studentNotified
		f.ParentNotifiedAt = &parentNotified
		f.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Form{}, err
	}

	if _, err = svc.mirror.Append(ctx, mirrorEntry(f)); err != nil {
		err = errors.Wrap(err, "recording disciplinary action")
		if _, rerr := svc.repo.UpdateForm(ctx, id, revertSubmission); rerr != nil {
			svc.logger.Error("reverting form submission", rerr, actor, map[string]interface{}{"form_id": id})
		}
		return Form{}, err
	}
	return f, nil
}

func revertSubmission(f *Form) error {
	if f.Status != StatusSubmitted {
		return ErrNotDraft
	}
	f.Status = StatusDraft
	f.SubmittedAt = nil
	f.StudentNotifiedAt = nil
	f.ParentNotifiedAt = nil
	f.UpdatedAt = core.Now()
	return nil
}

func mirrorEntry(f Form) student.Entry {
	return student.Entry{
		StudentID:      f.StudentID,
		FormID:         f.ID,
		Date:           f.IncidentDate,
		IncidentLabels: f.MisconductLabels(),
		ActionLabels:   f.ActionLabels(),
		CreatedBy:      f.CreatedBy,
		CreatedByName:  f.CreatedByName,
	}
}

// Delete removes a form and, best effort, its document. Admins only.
func (svc *Service) Delete(ctx context.Context, id string, actor user.Actor) error {
	if !actor.IsAdmin() {
		return core.ErrForbidden
	}
	f, err := svc.repo.GetForm(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteForm(ctx, id); err != nil {
		return err
	}
	if f.Document != nil {
		if err = svc.docs.Remove(ctx, *f.Document); err != nil {
			svc.logger.Warn("removing form document", err, actor, map[string]interface{}{"form_id": id})
		}
	}
	return nil
}

func (svc *Service) childRollNumbers(ctx context.Context, actor user.Actor) ([]string, error) {
	if !actor.IsParent() {
		return nil, nil
	}
	rolls, err := svc.links.ChildRollNumbers(ctx, actor.ID)
	if err != nil {
		return nil, errors.Wrap(err, "resolving parent links")
	}
	return rolls, nil
}

func (svc *Service) GetByID(ctx context.Context, id string, actor user.Actor) (Form, error) {
	f, err := svc.repo.GetForm(ctx, id)
	if err != nil {
		return Form{}, err
	}
	rolls, err := svc.childRollNumbers(ctx, actor)
	if err != nil {
		return Form{}, err
	}
	if !CanRead(actor, f, rolls) {
		return Form{}, core.ErrForbidden
	}
	return f, nil
}

var newestFirst = []core.DBOrdering{{Field: "created_at"}}

// ListForTeacher returns the forms created by actor, optionally with the given status.
func (svc *Service) ListForTeacher(ctx context.Context, status Status, actor user.Actor) ([]Form, error) {
	if !CanCreate(actor) {
		return nil, core.ErrForbidden
	}
	filter := QueryFilter{CreatedBy: actor.ID, Ordering: newestFirst}
	if status != "" {
		filter.Statuses = []Status{status}
	}
	return svc.repo.QueryForms(ctx, filter)
}

// ListForStudent returns the submitted forms about the acting student.
func (svc *Service) ListForStudent(ctx context.Context, actor user.Actor) ([]Form, error) {
	if !actor.IsStudent() {
		return nil, core.ErrForbidden
	}
	filter := QueryFilter{ExcludeDrafts: true, Ordering: newestFirst}
	if actor.RollNumber != "" {
		filter.RollNumbers = []string{actor.RollNumber}
	} else {
		filter.StudentID = actor.ID
	}
	return svc.repo.QueryForms(ctx, filter)
}

// ListForParent returns the submitted forms about the acting parent's linked children.
func (svc *Service) ListForParent(ctx context.Context, actor user.Actor) ([]Form, error) {
	if !actor.IsParent() {
		return nil, core.ErrForbidden
	}
	rolls, err := svc.childRollNumbers(ctx, actor)
	if err != nil {
		return nil, err
	}
	if len(rolls) == 0 {
		return []Form{}, nil
	}
	return svc.repo.QueryForms(ctx, QueryFilter{RollNumbers: rolls, ExcludeDrafts: true, Ordering: newestFirst})
}

// ListForAdmin returns every form matching af.
func (svc *Service) ListForAdmin(ctx context.Context, af AdminFilter, ordering []core.DBOrdering, actor user.Actor) ([]Form, error) {
	if !actor.IsPrivileged() {
		return nil, core.ErrForbidden
	}
	af.Clean()
	if err := svc.validate.Struct(af); err != nil {
		return nil, err
	}

	filter := QueryFilter{
		Grade:    af.Grade,
		Section:  af.Section,
		From:     af.From,
		To:       af.To,
		Ordering: core.CleanOrderings(ordering, OrderingFields...),
	}
	if af.Status != "" {
		filter.Statuses = []Status{af.Status}
	}
	if len(filter.Ordering) == 0 {
		filter.Ordering = newestFirst
	}
	return svc.repo.QueryForms(ctx, filter)
}

// ListForClass returns the forms of one class. Teachers only see their own classes,
// and drafts only when they wrote them.
func (svc *Service) ListForClass(ctx context.Context, grade, section string, actor user.Actor) ([]Form, error) {
	grade, section = core.CleanString(grade), core.CleanString(section)
	if grade == "" {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "grade", Error: "this field is required"})
	}
	if !actor.IsPrivileged() && !(actor.IsTeacher() && actor.HasClass(grade, section)) {
		return nil, core.ErrForbidden
	}

	forms, err := svc.repo.QueryForms(ctx, QueryFilter{Grade: grade, Section: section, Ordering: newestFirst})
	if err != nil {
		return nil, err
	}
	visible := forms[:0]
	for _, f := range forms {
		if f.IsSubmitted() || f.CreatedBy == actor.ID {
			visible = append(visible, f)
		}
	}
	return visible, nil
}

// Stats summarizes the forms created within the period: every form for admins and staff,
// their own forms for teachers.
func (svc *Service) Stats(ctx context.Context, period Period, actor user.Actor) (Stats, error) {
	if !CanCreate(actor) {
		return Stats{}, core.ErrForbidden
	}
	if period == "" {
		period = PeriodMonth
	}
	since, err := period.Since(core.Now())
	if err != nil {
		return Stats{}, err
	}

	filter := QueryFilter{CreatedFrom: since}
	if !actor.IsPrivileged() {
		filter.CreatedBy = actor.ID
	}
	forms, err := svc.repo.QueryForms(ctx, filter)
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying forms")
	}

	stats := Stats{
		Period:       period,
		Since:        since,
		Total:        len(forms),
		ByStatus:     make(map[Status]int, len(Statuses)),
		ByMisconduct: make(map[string]int),
	}
	for _, status := range Statuses {
		stats.ByStatus[status] = 0
	}
	for _, f := range forms {
		stats.ByStatus[f.Status]++
		for _, m := range f.SelectedMisconductTypes {
			if m.Selected {
				stats.ByMisconduct[m.Key]++
			}
		}
	}
	return stats, nil
}

// StudentAcknowledge records the acting student's acknowledgment of a form about them.
func (svc *Service) StudentAcknowledge(ctx context.Context, id string, ack Acknowledgment, actor user.Actor) (Form, error) {
	if !actor.IsStudent() {
		return Form{}, core.ErrForbidden
	}
	if err := ack.Validate(svc.validate); err != nil {
		return Form{}, err
	}

	return svc.repo.UpdateForm(ctx, id, func(f *Form) error {
		if !isSubject(actor, *f) {
			return core.ErrForbidden
		}
		return ApplyStudentAcknowledgment(f, ack, core.Now())
	})
}

// ParentAcknowledge records the acknowledgment of a parent linked to the form's student.
func (svc *Service) ParentAcknowledge(ctx context.Context, id string, ack ParentAcknowledgmentInput, actor user.Actor) (Form, error) {
	if !actor.IsParent() {
		return Form{}, core.ErrForbidden
	}
	if err := ack.Validate(svc.validate); err != nil {
		return Form{}, err
	}
	rolls, err := svc.childRollNumbers(ctx, actor)
	if err != nil {
		return Form{}, err
	}

	return svc.repo.UpdateForm(ctx, id, func(f *Form) error {
		if !containsFold(rolls, f.RollNumber) {
			return core.ErrForbidden
		}
		return ApplyParentAcknowledgment(f, ack, core.Now())
	})
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// AdminApprove approves a submitted form whose template requires it. Admins only.
func (svc *Service) AdminApprove(ctx context.Context, id string, appr Approval, actor user.Actor) (Form, error) {
	if !actor.IsAdmin() {
		return Form{}, core.ErrForbidden
	}
	if err := svc.validate.Struct(appr); err != nil {
		return Form{}, err
	}

	return svc.repo.UpdateForm(ctx, id, func(f *Form) error {
		if !f.FormConfig.RequireAdminApproval {
			return ErrApprovalNotRequired
		}
		if !f.IsSubmitted() {
			return ErrNotSubmitted
		}
		if f.AdminApproval != nil && f.AdminApproval.Approved {
			return ErrAlreadyApproved
		}
		now := core.Now()
		f.AdminApproval = &AdminApproval{
			Approved:   true,
			ApprovedBy: actor.ID,
			ApprovedAt: &now,
			Comments:   core.CleanString(appr.Comments),
		}
		f.UpdatedAt = now
		return nil
	})
}

// AddFollowUp schedules a follow-up on a form whose template allows it.
func (svc *Service) AddFollowUp(ctx context.Context, id string, fu FollowUp, actor user.Actor) (Form, error) {
	if err := fu.Validate(svc.validate); err != nil {
		return Form{}, err
	}

	return svc.repo.UpdateForm(ctx, id, func(f *Form) error {
		if !CanWrite(actor, *f) {
			return core.ErrForbidden
		}
		if !f.FormConfig.AllowFollowUp {
			return ErrFollowUpNotAllowed
		}
		date := fu.Date.UTC()
		f.FollowUpRequired = true
		f.FollowUpDate = &date
		f.FollowUpNotes = fu.Notes
		f.UpdatedAt = core.Now()
		return nil
	})
}

// RegenerateDocument replaces the PDF of a form.
func (svc *Service) RegenerateDocument(ctx context.Context, id string, actor user.Actor) (Form, error) {
	f, err := svc.repo.GetForm(ctx, id)
	if err != nil {
		return Form{}, err
	}
	if !CanWrite(actor, f) {
		return Form{}, core.ErrForbidden
	}

	doc, err := svc.docs.Generate(ctx, f)
	if err != nil {
		return Form{}, core.NewDocumentError(err)
	}
	if doc.Handle == "" {
		return Form{}, core.NewDocumentError(ErrDocumentsDisabled)
	}
	doc.GeneratedAt = core.Now()
	doc.GeneratedBy = actor.ID

	var previous *Document
	f, err = svc.repo.UpdateForm(ctx, id, func(stored *Form) error {
		previous = stored.Document
		stored.Document = &doc
		return nil
	})
	if err != nil {
		return Form{}, err
	}
	if previous != nil && previous.Handle != doc.Handle {
		if err = svc.docs.Remove(ctx, *previous); err != nil {
			svc.logger.Warn("removing previous form document", err, actor, map[string]interface{}{"form_id": id})
		}
	}
	return f, nil
}

// CountFormsByStatus implements template.FormCounter on top of any Repository.
func CountFormsByStatus(ctx context.Context, repo Repository, templateID string, since time.Time) (map[string]int, error) {
	forms, err := repo.QueryForms(ctx, QueryFilter{TemplateID: templateID, CreatedFrom: since})
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, f := range forms {
		counts[string(f.Status)]++
	}
	return counts, nil
}
