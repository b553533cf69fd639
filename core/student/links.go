package student

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// ParentChildLinks resolves the students a parent is linked to.
type ParentChildLinks interface {
	ChildRollNumbers(ctx context.Context, parentID string) ([]string, error)
}

// IDLinks links parents to children through Parent.Children (student IDs).
type IDLinks struct {
	Parents  ParentDirectory
	Students Directory
}

func (l IDLinks) ChildRollNumbers(ctx context.Context, parentID string) ([]string, error) {
	p, err := l.Parents.GetParentByID(ctx, parentID)
	if err != nil {
		if errors.Cause(err) == ErrParentNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "finding parent")
	}

	rolls := make([]string, 0, len(p.Children))
	for _, id := range p.Children {
		s, err := l.Students.GetStudentByID(ctx, id)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				continue
			}
			return nil, errors.Wrap(err, "finding child")
		}
		rolls = append(rolls, s.RollNumber)
	}
	return rolls, nil
}

// RollNumberLinks links parents to children through the denormalized Parent.ChildRollNumbers.
type RollNumberLinks struct {
	Parents ParentDirectory
}

func (l RollNumberLinks) ChildRollNumbers(ctx context.Context, parentID string) ([]string, error) {
	p, err := l.Parents.GetParentByID(ctx, parentID)
	if err != nil {
		if errors.Cause(err) == ErrParentNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "finding parent")
	}
	return p.ChildRollNumbers, nil
}

// AnyLinks is the union of several ParentChildLinks.
type AnyLinks []ParentChildLinks

func (links AnyLinks) ChildRollNumbers(ctx context.Context, parentID string) ([]string, error) {
	seen := make(map[string]bool)
	var rolls []string
	for _, l := range links {
		found, err := l.ChildRollNumbers(ctx, parentID)
		if err != nil {
			return nil, err
		}
		for _, roll := range found {
			if !seen[roll] {
				seen[roll] = true
				rolls = append(rolls, roll)
			}
		}
	}
	return rolls, nil
}

// NewParentChildLinks links parents to children by child ID or by roll number.
func NewParentChildLinks(parents ParentDirectory, students Directory) ParentChildLinks {
	return AnyLinks{
		IDLinks{Parents: parents, Students: students},
		RollNumberLinks{Parents: parents},
	}
}

// IsLinked reports whether the parent is linked to the student with rollNumber.
func IsLinked(ctx context.Context, links ParentChildLinks, parentID, rollNumber string) (bool, error) {
	if parentID == "" || rollNumber == "" {
		return false, nil
	}
	rolls, err := links.ChildRollNumbers(ctx, parentID)
	if err != nil {
		return false, errors.Wrap(err, "resolving parent links")
	}
	for _, roll := range rolls {
		if strings.EqualFold(roll, rollNumber) {
			return true, nil
		}
	}
	return false, nil
}
