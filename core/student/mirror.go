package student

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/nidhamu/core"
	"github.com/trezcool/nidhamu/core/user"
)

// Mirror keeps the disciplinary history embedded in student records.
type Mirror struct {
	students Directory
	links    ParentChildLinks
	validate *validator.Validate
}

func NewMirror(students Directory, links ParentChildLinks, validate *validator.Validate) *Mirror {
	vala.BeginValidation().Validate(
		vala.IsNotNil(students, "students"),
		vala.IsNotNil(links, "links"),
		vala.IsNotNil(validate, "validate"),
	).CheckAndPanic()

	return &Mirror{students: students, links: links, validate: validate}
}

// Append records a submitted form on the student record. Appending the same form twice is a no-op.
func (m *Mirror) Append(ctx context.Context, e Entry) (DisciplinaryAction, error) {
	action := DisciplinaryAction{
		FormID:        e.FormID,
		Date:          e.Date,
		Incident:      IncidentLabel(e.IncidentLabels),
		ActionTaken:   ActionLabel(e.ActionLabels),
		Status:        ActionPending,
		CreatedBy:     e.CreatedBy,
		CreatedByName: e.CreatedByName,
	}
	return m.students.AppendDisciplinaryAction(ctx, e.StudentID, action)
}

func isSelf(actor user.Actor, s Student) bool {
	if !actor.IsStudent() {
		return false
	}
	return actor.ID == s.ID || (actor.RollNumber != "" && strings.EqualFold(actor.RollNumber, s.RollNumber))
}

func (m *Mirror) isLinkedParent(ctx context.Context, actor user.Actor, s Student) (bool, error) {
	if !actor.IsParent() {
		return false, nil
	}
	return IsLinked(ctx, m.links, actor.ID, s.RollNumber)
}

// RespondAsStudent records the student's own response to one of their disciplinary actions.
func (m *Mirror) RespondAsStudent(ctx context.Context, studentID, actionID string, resp Response, actor user.Actor) (DisciplinaryAction, error) {
	s, err := m.students.GetStudentByID(ctx, studentID)
	if err != nil {
		return DisciplinaryAction{}, err
	}
	if !isSelf(actor, s) {
		return DisciplinaryAction{}, core.ErrForbidden
	}
	if err = resp.Validate(m.validate); err != nil {
		return DisciplinaryAction{}, err
	}

	return m.students.UpdateDisciplinaryAction(ctx, studentID, actionID, func(a *DisciplinaryAction) error {
		now := core.Now()
		a.StudentResponse = resp.Response
		a.Status = ActionAcknowledged
		a.RespondedAt = &now
		return nil
	})
}

// RespondAsParent records a linked parent's response to one of their child's disciplinary actions.
func (m *Mirror) RespondAsParent(ctx context.Context, studentID, actionID string, resp Response, actor user.Actor) (DisciplinaryAction, error) {
	s, err := m.students.GetStudentByID(ctx, studentID)
	if err != nil {
		return DisciplinaryAction{}, err
	}
	linked, err := m.isLinkedParent(ctx, actor, s)
	if err != nil {
		return DisciplinaryAction{}, err
	}
	if !linked {
		return DisciplinaryAction{}, core.ErrForbidden
	}
	if err = resp.Validate(m.validate); err != nil {
		return DisciplinaryAction{}, err
	}

	return m.students.UpdateDisciplinaryAction(ctx, studentID, actionID, func(a *DisciplinaryAction) error {
		now := core.Now()
		a.ParentResponse = resp.Response
		a.ParentNotified = true
		a.Status = ActionAcknowledged
		a.RespondedAt = &now
		return nil
	})
}

// History returns the disciplinary actions of a student, visible to the student,
// their linked parents and school staff.
func (m *Mirror) History(ctx context.Context, studentID string, actor user.Actor) ([]DisciplinaryAction, error) {
	s, err := m.students.GetStudentByID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	allowed := actor.IsPrivileged() || actor.IsTeacher() || isSelf(actor, s)
	if !allowed {
		if allowed, err = m.isLinkedParent(ctx, actor, s); err != nil {
			return nil, errors.Wrap(err, "checking parent link")
		}
	}
	if !allowed {
		return nil, core.ErrForbidden
	}

	if s.DisciplinaryActions == nil {
		return []DisciplinaryAction{}, nil
	}
	return s.DisciplinaryActions, nil
}
