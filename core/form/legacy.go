package form

import (
	"strconv"
	"strings"

	"github.com/trezcool/nidhamu/core"
	"github.com/trezcool/nidhamu/core/template"
)

type (
	// LegacyMisconduct is the boolean bag older consumers read instead of SelectedMisconductTypes.
	// Entries outside the built-in taxonomy are reported under Other.
	LegacyMisconduct struct {
		LateArrival  bool   `json:"late_arrival"`
		Uniform      bool   `json:"uniform"`
		Disrespect   bool   `json:"disrespect"`
		Disruption   bool   `json:"disruption"`
		Cheating     bool   `json:"cheating"`
		Bullying     bool   `json:"bullying"`
		Fighting     bool   `json:"fighting"`
		Vandalism    bool   `json:"vandalism"`
		Other        bool   `json:"other"`
		OtherDetails string `json:"other_details,omitempty"`
	}

	LegacySuspension struct {
		Selected     bool `json:"selected"`
		NumberOfDays int  `json:"number_of_days"`
	}

	// LegacyActions is the boolean bag older consumers read instead of SelectedActionTypes.
	LegacyActions struct {
		VerbalWarning    bool             `json:"verbal_warning"`
		WrittenWarning   bool             `json:"written_warning"`
		Counseling       bool             `json:"counseling"`
		ParentConference bool             `json:"parent_conference"`
		Detention        bool             `json:"detention"`
		Suspension       LegacySuspension `json:"suspension"`
		Other            bool             `json:"other"`
		OtherDetails     string           `json:"other_details,omitempty"`
	}
)

// legacy keys
const (
	keyLateArrival      = "late_arrival"
	keyUniform          = "uniform"
	keyDisrespect       = "disrespect"
	keyDisruption       = "disruption"
	keyCheating         = "cheating"
	keyBullying         = "bullying"
	keyFighting         = "fighting"
	keyVandalism        = "vandalism"
	keyVerbalWarning    = "verbal_warning"
	keyWrittenWarning   = "written_warning"
	keyCounseling       = "counseling"
	keyParentConference = "parent_conference"
	keyDetention        = "detention"
	keySuspension       = "suspension"
)

var daysReplacer = strings.NewReplacer("days", "", "day", "")

// LegacyMisconduct derives the boolean bag from the selected misconduct types.
func (f Form) LegacyMisconduct() LegacyMisconduct {
	var bag LegacyMisconduct
	var other []string
	for _, m := range f.SelectedMisconductTypes {
		if !m.Selected {
			continue
		}
		switch m.Key {
		case keyLateArrival:
			bag.LateArrival = true
		case keyUniform:
			bag.Uniform = true
		case keyDisrespect:
			bag.Disrespect = true
		case keyDisruption:
			bag.Disruption = true
		case keyCheating:
			bag.Cheating = true
		case keyBullying:
			bag.Bullying = true
		case keyFighting:
			bag.Fighting = true
		case keyVandalism:
			bag.Vandalism = true
		default:
			bag.Other = true
			other = append(other, m.Label)
		}
	}
	bag.OtherDetails = strings.Join(other, ", ")
	return bag
}

// LegacyActions derives the boolean bag from the selected action types.
func (f Form) LegacyActions() LegacyActions {
	var bag LegacyActions
	var other []string
	for _, a := range f.SelectedActionTypes {
		if !a.Selected {
			continue
		}
		switch a.Key {
		case keyVerbalWarning:
			bag.VerbalWarning = true
		case keyWrittenWarning:
			bag.WrittenWarning = true
		case keyCounseling:
			bag.Counseling = true
		case keyParentConference:
			bag.ParentConference = true
		case keyDetention:
			bag.Detention = true
		case keySuspension:
			bag.Suspension = LegacySuspension{Selected: true, NumberOfDays: parseDays(a.Details)}
		default:
			bag.Other = true
			other = append(other, a.Label)
		}
	}
	bag.OtherDetails = strings.Join(other, ", ")
	return bag
}

// Selections converts the bag back to taxonomy selections.
// Other entries are matched by label against the template taxonomy.
func (bag LegacyMisconduct) Selections() ([]Selection, error) {
	var sels []Selection
	add := func(set bool, key string) {
		if set {
			sels = append(sels, Selection{Key: key})
		}
	}
	add(bag.LateArrival, keyLateArrival)
	add(bag.Uniform, keyUniform)
	add(bag.Disrespect, keyDisrespect)
	add(bag.Disruption, keyDisruption)
	add(bag.Cheating, keyCheating)
	add(bag.Bullying, keyBullying)
	add(bag.Fighting, keyFighting)
	add(bag.Vandalism, keyVandalism)
	if bag.Other {
		other, err := otherSelections("type_of_misconduct", bag.OtherDetails)
		if err != nil {
			return nil, err
		}
		sels = append(sels, other...)
	}
	return sels, nil
}

// Selections converts the bag back to taxonomy selections.
// Other entries are matched by label against the template taxonomy.
func (bag LegacyActions) Selections() ([]Selection, error) {
	var sels []Selection
	add := func(set bool, key, details string) {
		if set {
			sels = append(sels, Selection{Key: key, Details: details})
		}
	}
	add(bag.VerbalWarning, keyVerbalWarning, "")
	add(bag.WrittenWarning, keyWrittenWarning, "")
	add(bag.Counseling, keyCounseling, "")
	add(bag.ParentConference, keyParentConference, "")
	add(bag.Detention, keyDetention, "")
	if bag.Suspension.Selected {
		var days string
		if bag.Suspension.NumberOfDays > 0 {
			days = strconv.Itoa(bag.Suspension.NumberOfDays)
		}
		add(true, keySuspension, days)
	}
	if bag.Other {
		other, err := otherSelections("action_taken", bag.OtherDetails)
		if err != nil {
			return nil, err
		}
		sels = append(sels, other...)
	}
	return sels, nil
}

// otherSelections reads the comma separated labels of an "other" entry.
func otherSelections(field, details string) ([]Selection, error) {
	var sels []Selection
	for _, label := range strings.Split(details, ",") {
		if key := template.KeyFromLabel(core.CleanString(label)); key != "" {
			sels = append(sels, Selection{Key: key})
		}
	}
	if len(sels) == 0 {
		return nil, core.NewValidationError(nil, core.FieldError{Field: field, Error: "other_details is required when other is selected"})
	}
	return sels, nil
}

// parseDays reads "3", "3 days" or "1 day"; anything else is 0.
func parseDays(details string) int {
	n, err := strconv.Atoi(strings.TrimSpace(daysReplacer.Replace(strings.ToLower(details))))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
