package form

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/nidhamu/core"
	"github.com/trezcool/nidhamu/core/template"
)

type (
	// SelectedMisconduct is a form's copy of a template misconduct type.
	SelectedMisconduct struct {
		Key         string `json:"key"`
		Label       string `json:"label"`
		Description string `json:"description"`
		Severity    string `json:"severity"`
		Selected    bool   `json:"selected"`
		Details     string `json:"details,omitempty"`
	}

	// SelectedAction is a form's copy of a template action type.
	SelectedAction struct {
		Key             string `json:"key"`
		Label           string `json:"label"`
		Description     string `json:"description"`
		RequiresDetails bool   `json:"requires_details"`
		DetailsLabel    string `json:"details_label,omitempty"`
		Severity        string `json:"severity"`
		Selected        bool   `json:"selected"`
		Details         string `json:"details,omitempty"`
	}

	StudentAcknowledgment struct {
		Acknowledged bool       `json:"acknowledged"`
		Signature    string     `json:"signature,omitempty"`
		Date         *time.Time `json:"date,omitempty"` // UTC
		Comments     string     `json:"comments,omitempty"`
	}

	ParentAcknowledgment struct {
		Acknowledged bool       `json:"acknowledged"`
		Signature    string     `json:"signature,omitempty"`
		Date         *time.Time `json:"date,omitempty"` // UTC
		Comments     string     `json:"comments,omitempty"`
		ParentName   string     `json:"parent_name,omitempty"`
	}

	AdminApproval struct {
		Approved   bool       `json:"approved"`
		ApprovedBy string     `json:"approved_by,omitempty"`
		ApprovedAt *time.Time `json:"approved_at,omitempty"` // UTC
		Comments   string     `json:"comments,omitempty"`
	}

	// Document points to the PDF rendition of a form kept by the document generator.
	Document struct {
		Filename    string    `json:"filename"`
		Size        int64     `json:"size"`
		Handle      string    `json:"handle"`
		GeneratedAt time.Time `json:"generated_at"` // UTC
		GeneratedBy string    `json:"generated_by"`
	}

	Form struct {
		ID         string `json:"id"`
		TemplateID string `json:"template_id"`

		// header
		SchoolName    string `json:"school_name"`
		WarningNumber int    `json:"warning_number"`
		CreatedBy     string `json:"created_by"`
		CreatedByName string `json:"created_by_name"`
		CreatedByRole string `json:"created_by_role"`

		// subject
		StudentID     string `json:"student_id"`
		StudentName   string `json:"student_name"`
		Grade         string `json:"grade"`
		Section       string `json:"section"`
		RollNumber    string `json:"roll_number"`
		ParentContact string `json:"parent_contact"`

		// incident
		IncidentDate time.Time `json:"incident_date"` // UTC
		IncidentTime string    `json:"incident_time"`
		Location     string    `json:"location"`
		Description  string    `json:"description"`

		SelectedMisconductTypes []SelectedMisconduct `json:"selected_misconduct_types"`
		SelectedActionTypes     []SelectedAction     `json:"selected_action_types"`
		FormConfig              template.FormConfig  `json:"form_config"`

		StudentAcknowledgment StudentAcknowledgment `json:"student_acknowledgment"`
		ParentAcknowledgment  ParentAcknowledgment  `json:"parent_acknowledgment"`
		AdminApproval         *AdminApproval        `json:"admin_approval,omitempty"`

		FollowUpRequired bool       `json:"follow_up_required"`
		FollowUpDate     *time.Time `json:"follow_up_date,omitempty"` // UTC
		FollowUpNotes    string     `json:"follow_up_notes,omitempty"`

		Document *Document `json:"document,omitempty"`

		Status            Status     `json:"status"`
		SubmittedAt       *time.Time `json:"submitted_at,omitempty"`        // UTC
		StudentNotifiedAt *time.Time `json:"student_notified_at,omitempty"` // UTC
		ParentNotifiedAt  *time.Time `json:"parent_notified_at,omitempty"`  // UTC
		CompletedAt       *time.Time `json:"completed_at,omitempty"`        // UTC
		CreatedAt         time.Time  `json:"created_at"`                    // UTC
		UpdatedAt         time.Time  `json:"updated_at"`                    // UTC
	}
)

// MarshalJSON adds the legacy boolean bags to the canonical representation.
func (f Form) MarshalJSON() ([]byte, error) {
	type canonical Form
	return json.Marshal(struct {
		canonical
		TypeOfMisconduct LegacyMisconduct `json:"type_of_misconduct"`
		ActionTaken      LegacyActions    `json:"action_taken"`
	}{
		canonical:        canonical(f),
		TypeOfMisconduct: f.LegacyMisconduct(),
		ActionTaken:      f.LegacyActions(),
	})
}

// Copy returns a deep copy of f.
func (f Form) Copy() Form {
	cp := f
	if f.SelectedMisconductTypes != nil {
		cp.SelectedMisconductTypes = make([]SelectedMisconduct, len(f.SelectedMisconductTypes))
		copy(cp.SelectedMisconductTypes, f.SelectedMisconductTypes)
	}
	if f.SelectedActionTypes != nil {
		cp.SelectedActionTypes = make([]SelectedAction, len(f.SelectedActionTypes))
		copy(cp.SelectedActionTypes, f.SelectedActionTypes)
	}
	if f.AdminApproval != nil {
		aa := *f.AdminApproval
		cp.AdminApproval = &aa
	}
	if f.Document != nil {
		doc := *f.Document
		cp.Document = &doc
	}
	return cp
}

// MisconductLabels returns the labels of the selected misconduct types.
func (f Form) MisconductLabels() []string {
	var labels []string
	for _, m := range f.SelectedMisconductTypes {
		if m.Selected {
			labels = append(labels, m.Label)
		}
	}
	return labels
}

// ActionLabels returns the labels of the selected action types.
func (f Form) ActionLabels() []string {
	var labels []string
	for _, a := range f.SelectedActionTypes {
		if a.Selected {
			labels = append(labels, a.Label)
		}
	}
	return labels
}

// Selection picks a taxonomy entry by key, with optional free-text details.
type Selection struct {
	Key     string `json:"key" validate:"required,notblank"`
	Details string `json:"details" validate:"max=500"`
}

// NewForm contains information needed to create a new Form.
// Misconduct & Actions may be given as legacy boolean bags instead.
type NewForm struct {
	TemplateID       string            `json:"template_id"`
	RollNumber       string            `json:"roll_number" validate:"required,notblank"`
	IncidentDate     time.Time         `json:"incident_date" validate:"required"`
	IncidentTime     string            `json:"incident_time" validate:"max=20"`
	Location         string            `json:"location" validate:"max=200"`
	Description      string            `json:"description" validate:"required,notblank,max=5000"`
	ParentContact    string            `json:"parent_contact" validate:"max=200"`
	Misconduct       []Selection       `json:"misconduct" validate:"dive"`
	Actions          []Selection       `json:"actions" validate:"dive"`
	TypeOfMisconduct *LegacyMisconduct `json:"type_of_misconduct"`
	ActionTaken      *LegacyActions    `json:"action_taken"`
}

func (nf *NewForm) Validate(validate *validator.Validate) error {
	nf.TemplateID = core.CleanString(nf.TemplateID)
	nf.RollNumber = core.CleanString(nf.RollNumber)
	nf.IncidentTime = core.CleanString(nf.IncidentTime)
	nf.Location = core.CleanString(nf.Location)
	nf.Description = core.CleanString(nf.Description)
	nf.ParentContact = core.CleanString(nf.ParentContact)
	cleanSelections(nf.Misconduct)
	cleanSelections(nf.Actions)
	return validate.Struct(nf)
}

// UpdateForm defines what information may be provided to modify a draft Form.
// Nil fields are left unchanged.
type UpdateForm struct {
	IncidentDate  *time.Time  `json:"incident_date"`
	IncidentTime  *string     `json:"incident_time" validate:"omitempty,max=20"`
	Location      *string     `json:"location" validate:"omitempty,max=200"`
	Description   *string     `json:"description" validate:"omitempty,max=5000"`
	ParentContact *string     `json:"parent_contact" validate:"omitempty,max=200"`
	Misconduct    []Selection `json:"misconduct" validate:"omitempty,dive"`
	Actions       []Selection `json:"actions" validate:"omitempty,dive"`
}

func (uf *UpdateForm) Validate(validate *validator.Validate) error {
	cleanPtr := func(s *string) *string {
		if s == nil {
			return nil
		}
		c := core.CleanString(*s)
		return &c
	}
	uf.IncidentTime = cleanPtr(uf.IncidentTime)
	uf.Location = cleanPtr(uf.Location)
	uf.Description = cleanPtr(uf.Description)
	uf.ParentContact = cleanPtr(uf.ParentContact)
	cleanSelections(uf.Misconduct)
	cleanSelections(uf.Actions)
	if uf.Description != nil && *uf.Description == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "description", Error: "this field cannot be blank"})
	}
	return validate.Struct(uf)
}

func cleanSelections(sels []Selection) {
	for i := range sels {
		sels[i].Key = core.CleanString(sels[i].Key, true /* lower */)
		sels[i].Details = core.CleanString(sels[i].Details)
	}
}

type Acknowledgment struct {
	Signature string `json:"signature" validate:"required,notblank,max=200"`
	Comments  string `json:"comments" validate:"max=2000"`
}

func (a *Acknowledgment) Validate(validate *validator.Validate) error {
	a.Signature = core.CleanString(a.Signature)
	a.Comments = core.CleanString(a.Comments)
	return validate.Struct(a)
}

type ParentAcknowledgmentInput struct {
	Signature  string `json:"signature" validate:"required,notblank,max=200"`
	Comments   string `json:"comments" validate:"max=2000"`
	ParentName string `json:"parent_name" validate:"required,notblank,max=200"`
}

func (a *ParentAcknowledgmentInput) Validate(validate *validator.Validate) error {
	a.Signature = core.CleanString(a.Signature)
	a.Comments = core.CleanString(a.Comments)
	a.ParentName = core.CleanString(a.ParentName)
	return validate.Struct(a)
}

type Approval struct {
	Comments string `json:"comments" validate:"max=2000"`
}

type FollowUp struct {
	Date  time.Time `json:"date" validate:"required"`
	Notes string    `json:"notes" validate:"max=2000"`
}

func (fu *FollowUp) Validate(validate *validator.Validate) error {
	fu.Notes = core.CleanString(fu.Notes)
	return validate.Struct(fu)
}

// QueryFilter applies AND operation on its set fields.
type QueryFilter struct {
	TemplateID    string
	CreatedBy     string
	StudentID     string
	RollNumbers   []string
	Statuses      []Status
	ExcludeDrafts bool
	Grade         string
	Section       string
	From          time.Time // incident date, inclusive
	To            time.Time // incident date, inclusive
	CreatedFrom   time.Time
	Ordering      []core.DBOrdering
}

// OrderingFields are the fields forms can be ordered by.
var OrderingFields = []string{"created_at", "incident_date", "warning_number", "status", "roll_number"}

// AdminFilter is the query of the admin listing.
type AdminFilter struct {
	Status  Status    `query:"status" validate:"omitempty,oneof=draft submitted awaitingStudentAck awaitingParentAck completed"`
	Grade   string    `query:"grade"`
	Section string    `query:"section"`
	From    time.Time `query:"from"`
	To      time.Time `query:"to"`
}

func (af *AdminFilter) Clean() {
	af.Grade = core.CleanString(af.Grade)
	af.Section = core.CleanString(af.Section)
}

// Period is a rolling statistics window.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Since returns the start of the window ending at now.
func (p Period) Since(now time.Time) (time.Time, error) {
	switch p {
	case PeriodWeek:
		return now.AddDate(0, 0, -7), nil
	case PeriodMonth, "":
		return now.AddDate(0, -1, 0), nil
	case PeriodYear:
		return now.AddDate(-1, 0, 0), nil
	default:
		return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: "period", Error: "must be one of: week, month, year"})
	}
}

type Stats struct {
	Period       Period         `json:"period"`
	Since        time.Time      `json:"since"`
	Total        int            `json:"total"`
	ByStatus     map[Status]int `json:"by_status"`
	ByMisconduct map[string]int `json:"by_misconduct"`
}
