package template

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/nidhamu/core"
)

// Misconduct severities
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Action severities
const (
	ActionLight    = "light"
	ActionModerate = "moderate"
	ActionSevere   = "severe"
)

var keyRegex = regexp.MustCompile(`[^a-z0-9]+`)

type (
	MisconductType struct {
		Key         string `json:"key" yaml:"key" validate:"omitempty,max=64"`
		Label       string `json:"label" yaml:"label" validate:"required,notblank,max=120"`
		Description string `json:"description" yaml:"description"`
		Severity    string `json:"severity" yaml:"severity" validate:"required,oneof=low medium high"`
		Enabled     bool   `json:"enabled" yaml:"enabled"`
	}

	ActionType struct {
		Key             string `json:"key" yaml:"key" validate:"omitempty,max=64"`
		Label           string `json:"label" yaml:"label" validate:"required,notblank,max=120"`
		Description     string `json:"description" yaml:"description"`
		RequiresDetails bool   `json:"requires_details" yaml:"requires_details"`
		DetailsLabel    string `json:"details_label" yaml:"details_label"`
		Severity        string `json:"severity" yaml:"severity" validate:"required,oneof=light moderate severe"`
		Enabled         bool   `json:"enabled" yaml:"enabled"`
	}

	// FormConfig switches the optional parts of the form workflow.
	FormConfig struct {
		RequireParentContact         bool `json:"require_parent_contact" yaml:"require_parent_contact"`
		RequireGradeSection          bool `json:"require_grade_section" yaml:"require_grade_section"`
		RequireRollNumber            bool `json:"require_roll_number" yaml:"require_roll_number"`
		RequireLocation              bool `json:"require_location" yaml:"require_location"`
		RequireTime                  bool `json:"require_time" yaml:"require_time"`
		RequireReportingStaff        bool `json:"require_reporting_staff" yaml:"require_reporting_staff"`
		RequireStudentAcknowledgment bool `json:"require_student_acknowledgment" yaml:"require_student_acknowledgment"`
		RequireParentAcknowledgment  bool `json:"require_parent_acknowledgment" yaml:"require_parent_acknowledgment"`
		RequireAdminApproval         bool `json:"require_admin_approval" yaml:"require_admin_approval"`
		AllowFollowUp                bool `json:"allow_follow_up" yaml:"allow_follow_up"`
	}

	SchoolInfo struct {
		SchoolName string `json:"school_name" yaml:"school_name" validate:"required,notblank"`
		Address    string `json:"address" yaml:"address"`
		Phone      string `json:"phone" yaml:"phone"`
		Email      string `json:"email" yaml:"email" validate:"omitempty,email"`
		LogoURL    string `json:"logo_url" yaml:"logo_url" validate:"omitempty,url"`
	}

	// Template defines the taxonomy and workflow switches of disciplinary forms.
	Template struct {
		ID              string            `json:"id" yaml:"-"`
		TemplateName    string            `json:"template_name" yaml:"template_name"`
		Description     string            `json:"description" yaml:"description"`
		IsDefault       bool              `json:"is_default" yaml:"-"`
		IsActive        bool              `json:"is_active" yaml:"-"`
		MisconductTypes []MisconductType  `json:"misconduct_types" yaml:"misconduct_types"`
		ActionTypes     []ActionType      `json:"action_types" yaml:"action_types"`
		FormConfig      FormConfig        `json:"form_config" yaml:"form_config"`
		SchoolInfo      SchoolInfo        `json:"school_info" yaml:"school_info"`
		Instructions    string            `json:"instructions" yaml:"instructions"`
		Styling         map[string]string `json:"styling" yaml:"styling"`
		FormsCreated    int               `json:"forms_created" yaml:"-"`
		LastUsed        *time.Time        `json:"last_used,omitempty" yaml:"-"` // UTC
		CreatedBy       string            `json:"created_by" yaml:"-"`
		LastModifiedBy  string            `json:"last_modified_by" yaml:"-"`
		CreatedAt       time.Time         `json:"created_at" yaml:"-"` // UTC
		UpdatedAt       time.Time         `json:"updated_at" yaml:"-"` // UTC
	}
)

// Copy returns a deep copy of t.
func (t Template) Copy() Template {
	cp := t
	if t.MisconductTypes != nil {
		cp.MisconductTypes = make([]MisconductType, len(t.MisconductTypes))
		copy(cp.MisconductTypes, t.MisconductTypes)
	}
	if t.ActionTypes != nil {
		cp.ActionTypes = make([]ActionType, len(t.ActionTypes))
		copy(cp.ActionTypes, t.ActionTypes)
	}
	if t.Styling != nil {
		cp.Styling = make(map[string]string, len(t.Styling))
		for k, v := range t.Styling {
			cp.Styling[k] = v
		}
	}
	if t.LastUsed != nil {
		lu := *t.LastUsed
		cp.LastUsed = &lu
	}
	return cp
}

// EnabledMisconductTypes returns the misconduct types offered on new forms.
func (t Template) EnabledMisconductTypes() []MisconductType {
	var types []MisconductType
	for _, mt := range t.MisconductTypes {
		if mt.Enabled {
			types = append(types, mt)
		}
	}
	return types
}

// EnabledActionTypes returns the action types offered on new forms.
func (t Template) EnabledActionTypes() []ActionType {
	var types []ActionType
	for _, at := range t.ActionTypes {
		if at.Enabled {
			types = append(types, at)
		}
	}
	return types
}

// checkDefault enforces "the default template is always active".
func (t Template) checkDefault() error {
	if t.IsDefault && !t.IsActive {
		return ErrInactiveDefault
	}
	return nil
}

// NewTemplate contains information needed to create a new Template.
type NewTemplate struct {
	TemplateName    string            `json:"template_name" validate:"required,notblank,max=200"`
	Description     string            `json:"description"`
	MisconductTypes []MisconductType  `json:"misconduct_types" validate:"dive"`
	ActionTypes     []ActionType      `json:"action_types" validate:"dive"`
	FormConfig      FormConfig        `json:"form_config"`
	SchoolInfo      SchoolInfo        `json:"school_info"`
	Instructions    string            `json:"instructions"`
	Styling         map[string]string `json:"styling"`
}

func (nt *NewTemplate) Validate(validate *validator.Validate) error {
	nt.TemplateName = core.CleanString(nt.TemplateName)
	nt.SchoolInfo.SchoolName = core.CleanString(nt.SchoolInfo.SchoolName)
	cleanMisconductTypes(nt.MisconductTypes)
	cleanActionTypes(nt.ActionTypes)

	if err := validate.Struct(nt); err != nil {
		return err
	}
	return checkTaxonomy(nt.MisconductTypes, nt.ActionTypes)
}

// UpdateTemplate defines what information may be provided to modify an existing Template.
// Nil fields are left unchanged.
type UpdateTemplate struct {
	TemplateName    *string           `json:"template_name" validate:"omitempty,notblank,max=200"`
	Description     *string           `json:"description"`
	MisconductTypes []MisconductType  `json:"misconduct_types" validate:"omitempty,dive"`
	ActionTypes     []ActionType      `json:"action_types" validate:"omitempty,dive"`
	FormConfig      *FormConfig       `json:"form_config"`
	SchoolInfo      *SchoolInfo       `json:"school_info"`
	Instructions    *string           `json:"instructions"`
	Styling         map[string]string `json:"styling"`
	IsActive        *bool             `json:"is_active"`
	IsDefault       *bool             `json:"is_default"`
}

func (ut *UpdateTemplate) Validate(validate *validator.Validate) error {
	if ut.TemplateName != nil {
		name := core.CleanString(*ut.TemplateName)
		ut.TemplateName = &name
	}
	cleanMisconductTypes(ut.MisconductTypes)
	cleanActionTypes(ut.ActionTypes)

	if err := validate.Struct(ut); err != nil {
		return err
	}
	return checkTaxonomy(ut.MisconductTypes, ut.ActionTypes)
}

func (ut UpdateTemplate) apply(t *Template) {
	if ut.TemplateName != nil {
		t.TemplateName = *ut.TemplateName
	}
	if ut.Description != nil {
		t.Description = *ut.Description
	}
	if ut.MisconductTypes != nil {
		t.MisconductTypes = ut.MisconductTypes
	}
	if ut.ActionTypes != nil {
		t.ActionTypes = ut.ActionTypes
	}
	if ut.FormConfig != nil {
		t.FormConfig = *ut.FormConfig
	}
	if ut.SchoolInfo != nil {
		t.SchoolInfo = *ut.SchoolInfo
	}
	if ut.Instructions != nil {
		t.Instructions = *ut.Instructions
	}
	if ut.Styling != nil {
		t.Styling = ut.Styling
	}
	if ut.IsActive != nil {
		t.IsActive = *ut.IsActive
	}
	if ut.IsDefault != nil {
		t.IsDefault = *ut.IsDefault
	}
}

type QueryFilter struct {
	Search   string `query:"search"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// Stats are the usage counts of a template grouped by form status.
type Stats struct {
	TemplateID        string         `json:"template_id"`
	Total             int            `json:"total"`
	TotalByStatus     map[string]int `json:"total_by_status"`
	ThisMonth         int            `json:"this_month"`
	ThisMonthByStatus map[string]int `json:"this_month_by_status"`
}

// KeyFromLabel derives a taxonomy key, e.g. "Late arrival / tardiness" -> "late_arrival_tardiness".
func KeyFromLabel(label string) string {
	return strings.Trim(keyRegex.ReplaceAllString(strings.ToLower(label), "_"), "_")
}

func cleanMisconductTypes(types []MisconductType) {
	for i := range types {
		types[i].Label = core.CleanString(types[i].Label)
		types[i].Severity = core.CleanString(types[i].Severity, true /* lower */)
		types[i].Key = core.CleanString(types[i].Key, true /* lower */)
		if types[i].Key == "" {
			types[i].Key = KeyFromLabel(types[i].Label)
		}
	}
}

func cleanActionTypes(types []ActionType) {
	for i := range types {
		types[i].Label = core.CleanString(types[i].Label)
		types[i].Severity = core.CleanString(types[i].Severity, true /* lower */)
		types[i].DetailsLabel = core.CleanString(types[i].DetailsLabel)
		types[i].Key = core.CleanString(types[i].Key, true /* lower */)
		if types[i].Key == "" {
			types[i].Key = KeyFromLabel(types[i].Label)
		}
	}
}

// checkTaxonomy rejects duplicate keys and detail-less actions that require details.
func checkTaxonomy(misconducts []MisconductType, actions []ActionType) error {
	var flds []core.FieldError

	seen := make(map[string]bool, len(misconducts))
	for _, mt := range misconducts {
		if seen[mt.Key] {
			flds = append(flds, core.FieldError{Field: "misconduct_types", Error: "duplicate key " + mt.Key})
		}
		seen[mt.Key] = true
	}

	seen = make(map[string]bool, len(actions))
	for _, at := range actions {
		if seen[at.Key] {
			flds = append(flds, core.FieldError{Field: "action_types", Error: "duplicate key " + at.Key})
		}
		seen[at.Key] = true
		if at.RequiresDetails && at.DetailsLabel == "" {
			flds = append(flds, core.FieldError{Field: "action_types", Error: at.Key + ": details_label is required when details are required"})
		}
	}

	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}
