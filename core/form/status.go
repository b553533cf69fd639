package form

import "time"

type Status string

const (
	StatusDraft              Status = "draft"
	StatusSubmitted          Status = "submitted"
	StatusAwaitingStudentAck Status = "awaitingStudentAck"
	StatusAwaitingParentAck  Status = "awaitingParentAck"
	StatusCompleted          Status = "completed"
)

var Statuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusAwaitingStudentAck,
	StatusAwaitingParentAck,
	StatusCompleted,
}

// DeriveStatus returns the status of a form from its acknowledgment flags.
// A draft stays a draft; acknowledgments only apply to submitted forms.
func DeriveStatus(prev Status, studentAck, parentAck bool) Status {
	if prev == StatusDraft {
		return StatusDraft
	}
	switch {
	case studentAck && parentAck:
		return StatusCompleted
	case studentAck:
		return StatusAwaitingParentAck
	case parentAck:
		return StatusAwaitingStudentAck
	default:
		return StatusSubmitted
	}
}

// IsSubmitted reports whether the form has left the draft state.
func (f Form) IsSubmitted() bool {
	return f.Status != StatusDraft
}

func (f *Form) refreshStatus(at time.Time) {
	f.Status = DeriveStatus(f.Status, f.StudentAcknowledgment.Acknowledged, f.ParentAcknowledgment.Acknowledged)
	if f.Status == StatusCompleted && f.CompletedAt == nil {
		f.CompletedAt = &at
	}
}

// ApplyStudentAcknowledgment records the student acknowledgment on a submitted form and
// recomputes its status from the stored parent acknowledgment.
// Repositories call it inside their atomic update.
func ApplyStudentAcknowledgment(f *Form, ack Acknowledgment, at time.Time) error {
	if !f.IsSubmitted() {
		return ErrNotSubmitted
	}
	f.StudentAcknowledgment = StudentAcknowledgment{
		Acknowledged: true,
		Signature:    ack.Signature,
		Date:         &at,
		Comments:     ack.Comments,
	}
	f.refreshStatus(at)
	f.UpdatedAt = at
	return nil
}

// ApplyParentAcknowledgment records the parent acknowledgment on a submitted form and
// recomputes its status from the stored student acknowledgment.
func ApplyParentAcknowledgment(f *Form, ack ParentAcknowledgmentInput, at time.Time) error {
	if !f.IsSubmitted() {
		return ErrNotSubmitted
	}
	f.ParentAcknowledgment = ParentAcknowledgment{
		Acknowledged: true,
		Signature:    ack.Signature,
		Date:         &at,
		Comments:     ack.Comments,
		ParentName:   ack.ParentName,
	}
	f.refreshStatus(at)
	f.UpdatedAt = at
	return nil
}
