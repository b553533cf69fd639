package dummydb

import (
	"sync"

	"github.com/trezcool/nidhamu/core/form"
	"github.com/trezcool/nidhamu/core/student"
	"github.com/trezcool/nidhamu/core/template"
)

// DB keeps every table in memory. Tables that are locked together are always locked
// in this order: templates, forms, students, parents.
type (
	DB struct {
		templates *templateTable
		forms     *formTable
		students  *studentTable
		parents   *parentTable
	}

	templateTable struct {
		sync.RWMutex
		table map[string]*template.Template
	}

	formTable struct {
		sync.RWMutex
		table map[string]*form.Form
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*student.Student
	}

	parentTable struct {
		sync.RWMutex
		table map[string]*student.Parent
	}
)

func Open() (*DB, error) {
	db := &DB{
		templates: &templateTable{table: make(map[string]*template.Template)},
		forms:     &formTable{table: make(map[string]*form.Form)},
		students:  &studentTable{table: make(map[string]*student.Student)},
		parents:   &parentTable{table: make(map[string]*student.Parent)},
	}
	return db, nil
}

// Close is a no-op kept for parity with the SQL storage.
func (db *DB) Close() error {
	return nil
}
