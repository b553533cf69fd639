package user

import "strings"

// Roles
const (
	// Admin
	RoleAdmin          = "admin:"
	RoleAdminOwner     = "admin:owner"
	RoleAdminPrincipal = "admin:principal"

	// Staff (counsellors, deans, ...): privileged like admins on forms
	RoleStaff = "staff:"

	// Teacher
	RoleTeacher = "teacher:"

	// Student
	RoleStudent = "student:"

	// Parent / guardian
	RoleParent = "parent:"
)

var (
	AdminRoles   = []string{RoleAdmin, RoleAdminOwner, RoleAdminPrincipal}
	StaffRoles   = []string{RoleStaff}
	TeacherRoles = []string{RoleTeacher}
	StudentRoles = []string{RoleStudent}
	ParentRoles  = []string{RoleParent}
	AllRoles     = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 40 - 31
		RoleAdminOwner:     40,
		RoleAdminPrincipal: 39,
		RoleAdmin:          31,

		// Staff: 30 - 21
		RoleStaff: 21,

		// Teachers: 20 - 11
		RoleTeacher: 11,

		// Students & parents: 10 - 1
		RoleParent:  2,
		RoleStudent: 1,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Parent", Value: RoleParent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Staff", Value: RoleStaff},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Admin Principal", Value: RoleAdminPrincipal},
		{Name: "Admin Owner", Value: RoleAdminOwner},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 7)
	all = append(all, AdminRoles...)
	all = append(all, StaffRoles...)
	all = append(all, TeacherRoles...)
	all = append(all, StudentRoles...)
	all = append(all, ParentRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Actor is the authenticated caller of an operation.
// Users themselves live in the identity provider; only what the token carries is known here.
type Actor struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Roles      []string `json:"roles"`
	RollNumber string   `json:"roll_number,omitempty"` // students only
	Grade      string   `json:"grade,omitempty"`       // teachers: assigned class
	Section    string   `json:"section,omitempty"`     // teachers: assigned class
}

// SystemActor is used by background jobs and the admin CLI.
func SystemActor() Actor {
	return Actor{ID: "system", Name: "System", Roles: []string{RoleAdmin}}
}

func (a Actor) RoleStartsWith(prefix string) bool {
	for _, role := range a.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (a Actor) IsAdmin() bool {
	return a.RoleStartsWith(RoleAdmin)
}

func (a Actor) IsStaff() bool {
	return a.RoleStartsWith(RoleStaff)
}

// IsPrivileged reports whether the actor has unrestricted access to forms.
func (a Actor) IsPrivileged() bool {
	return a.IsAdmin() || a.IsStaff()
}

func (a Actor) IsTeacher() bool {
	return a.RoleStartsWith(RoleTeacher)
}

func (a Actor) IsStudent() bool {
	return a.RoleStartsWith(RoleStudent)
}

func (a Actor) IsParent() bool {
	return a.RoleStartsWith(RoleParent)
}

// HasClass reports whether a teacher is assigned to grade & section.
func (a Actor) HasClass(grade, section string) bool {
	return a.Grade != "" && strings.EqualFold(a.Grade, grade) && strings.EqualFold(a.Section, section)
}
