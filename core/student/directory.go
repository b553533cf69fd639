package student

import (
	"context"

	"github.com/trezcool/nidhamu/core"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("student not found")
	ErrParentNotFound   = core.NewNotFoundError("parent not found")
	ErrActionNotFound   = core.NewNotFoundError("disciplinary action not found")
	ErrRollNumberExists = core.NewConflictError("a student with this roll number already exists")
)

type (
	// Directory is the student record store.
	Directory interface {
		GetStudentByID(ctx context.Context, id string) (Student, error)
		GetStudentByRollNumber(ctx context.Context, rollNumber string) (Student, error)
		// SaveStudent creates or replaces a student, assigning an ID to new ones.
		// The stored DisciplinaryActions of an existing student are kept.
		SaveStudent(ctx context.Context, s Student) (Student, error)
		// AppendDisciplinaryAction adds action to the student record, assigning it an ID.
		// When an action for the same FormID already exists, that one is returned unchanged.
		AppendDisciplinaryAction(ctx context.Context, studentID string, action DisciplinaryAction) (DisciplinaryAction, error)
		// UpdateDisciplinaryAction atomically applies fn to the stored action and saves the result.
		UpdateDisciplinaryAction(ctx context.Context, studentID, actionID string, fn func(*DisciplinaryAction) error) (DisciplinaryAction, error)
	}

	ParentDirectory interface {
		GetParentByID(ctx context.Context, id string) (Parent, error)
		// SaveParent creates or replaces a parent, assigning an ID to new ones.
		SaveParent(ctx context.Context, p Parent) (Parent, error)
	}
)
