package testutil

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/nidhamu/core"
	"github.com/trezcool/nidhamu/core/form"
	"github.com/trezcool/nidhamu/core/student"
	"github.com/trezcool/nidhamu/core/user"
)

var (
	Admin   = user.Actor{ID: "admin-1", Name: "Ada Admin", Roles: []string{user.RoleAdminPrincipal}}
	Staff   = user.Actor{ID: "staff-1", Name: "Sam Counsellor", Roles: []string{user.RoleStaff}}
	Teacher = user.Actor{ID: "teacher-1", Name: "Tina Teacher", Roles: []string{user.RoleTeacher}, Grade: "7", Section: "B"}
	Other   = user.Actor{ID: "teacher-2", Name: "Omar Teacher", Roles: []string{user.RoleTeacher}, Grade: "8", Section: "A"}
)

// StudentActor returns the actor of a student.
func StudentActor(s student.Student) user.Actor {
	return user.Actor{ID: s.ID, Name: s.Name, Roles: []string{user.RoleStudent}, RollNumber: s.RollNumber}
}

// ParentActor returns the actor of a parent.
func ParentActor(p student.Parent) user.Actor {
	return user.Actor{ID: p.ID, Name: p.Name, Roles: []string{user.RoleParent}}
}

func NewValidator() *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	return validate
}

// Logger discards every log entry.
type Logger struct{}

var _ core.Logger = (*Logger)(nil)

func (*Logger) Debug(string, ...interface{}) {}
func (*Logger) Info(string, ...interface{})  {}
func (*Logger) Warn(string, ...interface{})  {}
func (*Logger) Error(string, ...interface{}) {}
func (*Logger) Fatal(string, ...interface{}) {}

// NoDocuments is a form.DocumentGenerator that keeps no documents.
type NoDocuments struct{}

var _ form.DocumentGenerator = (*NoDocuments)(nil)

func (*NoDocuments) Generate(context.Context, form.Form) (form.Document, error) {
	return form.Document{}, nil
}

func (*NoDocuments) Remove(context.Context, form.Document) error {
	return nil
}

func CreateStudent(t *testing.T, repo student.Directory, roll, name, grade, section string) student.Student {
	s, err := repo.SaveStudent(context.Background(), student.Student{
		RollNumber:    roll,
		Name:          name,
		Grade:         grade,
		Section:       section,
		ParentContact: "+243 810 000 000",
	})
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return s
}

// CreateParent saves a parent linked to children by ID.
func CreateParent(t *testing.T, repo student.ParentDirectory, name string, children ...student.Student) student.Parent {
	p := student.Parent{Name: name, Email: "parent@test.cd"}
	for _, c := range children {
		p.Children = append(p.Children, c.ID)
	}
	p, err := repo.SaveParent(context.Background(), p)
	if err != nil {
		t.Fatalf("createParent() failed: %v", err)
	}
	return p
}
