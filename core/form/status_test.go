package form

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name       string
		prev       Status
		studentAck bool
		parentAck  bool
		want       Status
	}{
		{name: "draft stays draft", prev: StatusDraft, studentAck: true, parentAck: true, want: StatusDraft},
		{name: "no acks", prev: StatusSubmitted, want: StatusSubmitted},
		{name: "student only", prev: StatusSubmitted, studentAck: true, want: StatusAwaitingParentAck},
		{name: "parent only", prev: StatusSubmitted, parentAck: true, want: StatusAwaitingStudentAck},
		{name: "both", prev: StatusAwaitingParentAck, studentAck: true, parentAck: true, want: StatusCompleted},
		{name: "completed stays completed", prev: StatusCompleted, studentAck: true, parentAck: true, want: StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.prev, tt.studentAck, tt.parentAck))
		})
	}
}

func submittedForm() Form {
	at := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	return Form{ID: "f1", Status: StatusSubmitted, SubmittedAt: &at}
}

func TestApplyAcknowledgment_draft(t *testing.T) {
	f := Form{ID: "f1", Status: StatusDraft}
	now := time.Now().UTC()

	err := ApplyStudentAcknowledgment(&f, Acknowledgment{Signature: "S"}, now)
	assert.Equal(t, ErrNotSubmitted, err)
	err = ApplyParentAcknowledgment(&f, ParentAcknowledgmentInput{Signature: "P", ParentName: "P"}, now)
	assert.Equal(t, ErrNotSubmitted, err)

	assert.Equal(t, StatusDraft, f.Status)
	assert.False(t, f.StudentAcknowledgment.Acknowledged)
	assert.False(t, f.ParentAcknowledgment.Acknowledged)
}

func TestApplyStudentAcknowledgment_idempotent(t *testing.T) {
	f := submittedForm()
	first := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	require.NoError(t, ApplyStudentAcknowledgment(&f, Acknowledgment{Signature: "Kim", Comments: "sorry"}, first))
	require.Equal(t, StatusAwaitingParentAck, f.Status)

	require.NoError(t, ApplyStudentAcknowledgment(&f, Acknowledgment{Signature: "Kim", Comments: "really sorry"}, second))
	assert.Equal(t, StatusAwaitingParentAck, f.Status)
	assert.Equal(t, "really sorry", f.StudentAcknowledgment.Comments)
	assert.Equal(t, second, *f.StudentAcknowledgment.Date)
	assert.Nil(t, f.CompletedAt)
}

func TestApplyAcknowledgment_completedAtStampedOnce(t *testing.T) {
	f := submittedForm()
	first := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)

	require.NoError(t, ApplyParentAcknowledgment(&f, ParentAcknowledgmentInput{Signature: "P", ParentName: "Pat"}, first))
	require.NoError(t, ApplyStudentAcknowledgment(&f, Acknowledgment{Signature: "S"}, first))
	require.Equal(t, StatusCompleted, f.Status)
	require.NotNil(t, f.CompletedAt)

	require.NoError(t, ApplyStudentAcknowledgment(&f, Acknowledgment{Signature: "S"}, first.Add(time.Hour)))
	assert.Equal(t, first, *f.CompletedAt)
}

// Acknowledgments are encoded as booleans: true for the student, false for the parent.
func applyAll(sequence []bool) Form {
	f := submittedForm()
	at := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
	for i, isStudent := range sequence {
		at = at.Add(time.Duration(i) * time.Minute)
		if isStudent {
			_ = ApplyStudentAcknowledgment(&f, Acknowledgment{Signature: "S"}, at)
		} else {
			_ = ApplyParentAcknowledgment(&f, ParentAcknowledgmentInput{Signature: "P", ParentName: "Pat"}, at)
		}
	}
	return f
}

func TestAcknowledgmentConvergence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("status only depends on which parties acknowledged", prop.ForAll(
		func(sequence []bool) bool {
			var student, parent bool
			for _, isStudent := range sequence {
				student = student || isStudent
				parent = parent || !isStudent
			}

			f := applyAll(sequence)
			if f.Status != DeriveStatus(StatusSubmitted, student, parent) {
				return false
			}
			return (f.Status == StatusCompleted) == (f.CompletedAt != nil)
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("reversing the acknowledgment order gives the same status", prop.ForAll(
		func(sequence []bool) bool {
			reversed := make([]bool, len(sequence))
			for i, v := range sequence {
				reversed[len(sequence)-1-i] = v
			}
			return applyAll(sequence).Status == applyAll(reversed).Status
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
