package dummydb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/nidhamu/core/student"
)

type studentRepository struct {
	db *studentTable
}

var _ student.Directory = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Directory {
	return &studentRepository{db: db.students}
}

func (repo *studentRepository) GetStudentByID(_ context.Context, id string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.table[id]; ok {
		return s.Copy(), nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) byRollNumber(rollNumber string) *student.Student {
	for _, s := range repo.db.table {
		if strings.EqualFold(s.RollNumber, rollNumber) {
			return s
		}
	}
	return nil
}

func (repo *studentRepository) GetStudentByRollNumber(_ context.Context, rollNumber string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s := repo.byRollNumber(rollNumber); s != nil {
		return s.Copy(), nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) SaveStudent(_ context.Context, s student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if other := repo.byRollNumber(s.RollNumber); other != nil && other.ID != s.ID {
		return student.Student{}, student.ErrRollNumberExists
	}
	s = s.Copy()
	if s.ID == "" {
		s.ID = uuid.New().String()
		s.DisciplinaryActions = nil
	} else if orig, ok := repo.db.table[s.ID]; ok {
		s.DisciplinaryActions = orig.Copy().DisciplinaryActions
	} else {
		s.DisciplinaryActions = nil
	}
	repo.db.table[s.ID] = &s
	return s.Copy(), nil
}

func (repo *studentRepository) AppendDisciplinaryAction(_ context.Context, studentID string, action student.DisciplinaryAction) (student.DisciplinaryAction, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, ok := repo.db.table[studentID]
	if !ok {
		return student.DisciplinaryAction{}, student.ErrNotFound
	}
	for _, a := range s.DisciplinaryActions {
		if a.FormID == action.FormID {
			return a, nil
		}
	}
	action.ID = uuid.New().String()
	s.DisciplinaryActions = append(s.DisciplinaryActions, action)
	return action, nil
}

func (repo *studentRepository) UpdateDisciplinaryAction(_ context.Context, studentID, actionID string, fn func(*student.DisciplinaryAction) error) (student.DisciplinaryAction, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, ok := repo.db.table[studentID]
	if !ok {
		return student.DisciplinaryAction{}, student.ErrNotFound
	}
	for i, a := range s.DisciplinaryActions {
		if a.ID != actionID {
			continue
		}
		if err := fn(&a); err != nil {
			return student.DisciplinaryAction{}, err
		}
		a.ID = actionID
		s.DisciplinaryActions[i] = a
		return a, nil
	}
	return student.DisciplinaryAction{}, student.ErrActionNotFound
}

type parentRepository struct {
	db *parentTable
}

var _ student.ParentDirectory = (*parentRepository)(nil) // interface compliance check

func NewParentRepository(db *DB) student.ParentDirectory {
	return &parentRepository{db: db.parents}
}

func (repo *parentRepository) GetParentByID(_ context.Context, id string) (student.Parent, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.table[id]; ok {
		return p.Copy(), nil
	}
	return student.Parent{}, student.ErrParentNotFound
}

func (repo *parentRepository) SaveParent(_ context.Context, p student.Parent) (student.Parent, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	p = p.Copy()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	repo.db.table[p.ID] = &p
	return p.Copy(), nil
}
