package form

import (
	"github.com/trezcool/nidhamu/core"
	"github.com/trezcool/nidhamu/core/template"
)

func misconductSnapshot(types []template.MisconductType) []SelectedMisconduct {
	snap := make([]SelectedMisconduct, 0, len(types))
	for _, mt := range types {
		snap = append(snap, SelectedMisconduct{
			Key:         mt.Key,
			Label:       mt.Label,
			Description: mt.Description,
			Severity:    mt.Severity,
		})
	}
	return snap
}

func actionSnapshot(types []template.ActionType) []SelectedAction {
	snap := make([]SelectedAction, 0, len(types))
	for _, at := range types {
		snap = append(snap, SelectedAction{
			Key:             at.Key,
			Label:           at.Label,
			Description:     at.Description,
			RequiresDetails: at.RequiresDetails,
			DetailsLabel:    at.DetailsLabel,
			Severity:        at.Severity,
		})
	}
	return snap
}

func indexSelections(sels []Selection) map[string]Selection {
	idx := make(map[string]Selection, len(sels))
	for _, s := range sels {
		idx[s.Key] = s
	}
	return idx
}

// selectMisconduct marks the entries picked by sels; every other entry is unselected.
func selectMisconduct(entries []SelectedMisconduct, sels []Selection) ([]SelectedMisconduct, error) {
	idx := indexSelections(sels)
	selected := make([]SelectedMisconduct, len(entries))
	for i, e := range entries {
		s, ok := idx[e.Key]
		e.Selected = ok
		e.Details = s.Details
		selected[i] = e
		delete(idx, e.Key)
	}
	if len(idx) > 0 {
		return nil, unknownKeys("misconduct", idx)
	}
	return selected, nil
}

// selectActions marks the entries picked by sels; every other entry is unselected.
// Actions requiring details must be given some.
func selectActions(entries []SelectedAction, sels []Selection) ([]SelectedAction, error) {
	idx := indexSelections(sels)
	selected := make([]SelectedAction, len(entries))
	var flds []core.FieldError
	for i, e := range entries {
		s, ok := idx[e.Key]
		e.Selected = ok
		e.Details = s.Details
		if ok && e.RequiresDetails && e.Details == "" {
			flds = append(flds, core.FieldError{Field: "actions", Error: e.Label + ": " + e.DetailsLabel + " is required"})
		}
		selected[i] = e
		delete(idx, e.Key)
	}
	if len(idx) > 0 {
		return nil, unknownKeys("actions", idx)
	}
	if len(flds) > 0 {
		return nil, core.NewValidationError(nil, flds...)
	}
	return selected, nil
}

func unknownKeys(field string, idx map[string]Selection) error {
	flds := make([]core.FieldError, 0, len(idx))
	for key := range idx {
		flds = append(flds, core.FieldError{Field: field, Error: "unknown or disabled type " + key})
	}
	return core.NewValidationError(nil, flds...)
}

// checkRequired enforces the required-field switches of the form's template.
func checkRequired(f Form) error {
	cfg := f.FormConfig
	var flds []core.FieldError
	missing := func(field string) {
		flds = append(flds, core.FieldError{Field: field, Error: "this field is required"})
	}

	if cfg.RequireParentContact && f.ParentContact == "" {
		missing("parent_contact")
	}
	if cfg.RequireGradeSection {
		if f.Grade == "" {
			missing("grade")
		}
		if f.Section == "" {
			missing("section")
		}
	}
	if cfg.RequireRollNumber && f.RollNumber == "" {
		missing("roll_number")
	}
	if cfg.RequireLocation && f.Location == "" {
		missing("location")
	}
	if cfg.RequireTime && f.IncidentTime == "" {
		missing("incident_time")
	}
	if cfg.RequireReportingStaff && f.CreatedByName == "" {
		missing("created_by_name")
	}

	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}
