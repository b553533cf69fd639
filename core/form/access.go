package form

import (
	"strings"

	"github.com/trezcool/nidhamu/core/user"
)

// CanRead reports whether actor may read f.
// childRollNumbers are the roll numbers linked to a parent actor; ignored for other roles.
func CanRead(actor user.Actor, f Form, childRollNumbers []string) bool {
	switch {
	case actor.IsPrivileged():
		return true
	case actor.IsTeacher() && f.CreatedBy == actor.ID:
		return true
	case actor.IsStudent() && f.IsSubmitted() && isSubject(actor, f):
		return true
	case actor.IsParent() && f.IsSubmitted():
		for _, roll := range childRollNumbers {
			if strings.EqualFold(roll, f.RollNumber) {
				return true
			}
		}
	}
	return false
}

// CanWrite reports whether actor may edit f (header, incident, taxonomy, follow-up, document).
func CanWrite(actor user.Actor, f Form) bool {
	return actor.IsPrivileged() || (actor.IsTeacher() && f.CreatedBy == actor.ID)
}

// CanCreate reports whether actor may create forms.
func CanCreate(actor user.Actor) bool {
	return actor.IsPrivileged() || actor.IsTeacher()
}

func isSubject(actor user.Actor, f Form) bool {
	if actor.RollNumber != "" && strings.EqualFold(actor.RollNumber, f.RollNumber) {
		return true
	}
	return actor.ID != "" && actor.ID == f.StudentID
}
