package student

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/nidhamu/core"
)

// Disciplinary action statuses
const (
	ActionPending      = "pending"
	ActionAcknowledged = "acknowledged"
)

// Mirror label fallbacks
const (
	DefaultIncident    = "General misconduct"
	DefaultActionTaken = "Warning issued"
)

type (
	Student struct {
		ID                  string               `json:"id"`
		RollNumber          string               `json:"roll_number"`
		Name                string               `json:"name"`
		Grade               string               `json:"grade"`
		Section             string               `json:"section"`
		ParentContact       string               `json:"parent_contact"`
		DisciplinaryActions []DisciplinaryAction `json:"disciplinary_actions"`
	}

	Parent struct {
		ID               string   `json:"id"`
		Name             string   `json:"name"`
		Email            string   `json:"email"`
		Phone            string   `json:"phone"`
		Children         []string `json:"children"`           // student IDs
		ChildRollNumbers []string `json:"child_roll_numbers"` // denormalized
	}

	// DisciplinaryAction is the summary of a submitted form kept on the student record.
	DisciplinaryAction struct {
		ID              string     `json:"id"`
		FormID          string     `json:"form_id"`
		Date            time.Time  `json:"date"` // UTC
		Incident        string     `json:"incident"`
		ActionTaken     string     `json:"action_taken"`
		Status          string     `json:"status"`
		CreatedBy       string     `json:"created_by"`
		CreatedByName   string     `json:"created_by_name"`
		StudentResponse string     `json:"student_response,omitempty"`
		ParentResponse  string     `json:"parent_response,omitempty"`
		ParentNotified  bool       `json:"parent_notified"`
		RespondedAt     *time.Time `json:"responded_at,omitempty"` // UTC
	}
)

// Copy returns a deep copy of s.
func (s Student) Copy() Student {
	cp := s
	if s.DisciplinaryActions != nil {
		cp.DisciplinaryActions = make([]DisciplinaryAction, len(s.DisciplinaryActions))
		copy(cp.DisciplinaryActions, s.DisciplinaryActions)
	}
	return cp
}

// Copy returns a deep copy of p.
func (p Parent) Copy() Parent {
	cp := p
	cp.Children = append([]string(nil), p.Children...)
	cp.ChildRollNumbers = append([]string(nil), p.ChildRollNumbers...)
	return cp
}

// Entry is what the mirror records for a submitted form.
type Entry struct {
	StudentID      string
	FormID         string
	Date           time.Time
	IncidentLabels []string
	ActionLabels   []string
	CreatedBy      string
	CreatedByName  string
}

// IncidentLabel joins misconduct labels for display on the student record.
func IncidentLabel(labels []string) string {
	return joinLabels(labels, DefaultIncident)
}

// ActionLabel joins action labels for display on the student record.
func ActionLabel(labels []string) string {
	return joinLabels(labels, DefaultActionTaken)
}

func joinLabels(labels []string, fallback string) string {
	cleaned := make([]string, 0, len(labels))
	for _, l := range labels {
		if l = core.CleanString(l); l != "" {
			cleaned = append(cleaned, l)
		}
	}
	if len(cleaned) == 0 {
		return fallback
	}
	return strings.Join(cleaned, ", ")
}

// Response is a student's or parent's answer to a disciplinary action.
type Response struct {
	Response string `json:"response" validate:"required,notblank,max=2000"`
}

func (r *Response) Validate(validate *validator.Validate) error {
	r.Response = core.CleanString(r.Response)
	return validate.Struct(r)
}
