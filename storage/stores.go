package storage

import (
	"github.com/pkg/errors"

	"github.com/trezcool/nidhamu/core"
	"github.com/trezcool/nidhamu/core/form"
	"github.com/trezcool/nidhamu/core/student"
	"github.com/trezcool/nidhamu/core/template"
	"github.com/trezcool/nidhamu/storage/database"
	"github.com/trezcool/nidhamu/storage/database/dummy"
	"github.com/trezcool/nidhamu/storage/database/sqlx"
)

// Stores holds the repositories of the configured storage engine.
type Stores struct {
	Templates template.Repository
	Forms     form.Repository
	Students  student.Directory
	Parents   student.ParentDirectory

	close func() error
}

func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open sets up the storage engine selected by conf.Storage.
// The postgres engine creates the database if needed and runs pending migrations.
func Open(conf *core.Config) (*Stores, error) {
	switch conf.Storage {
	case core.StorageMemory:
		return openMemory()
	case core.StoragePostgres:
		return openPostgres(conf)
	default:
		return nil, errors.Errorf("unknown storage engine %q", conf.Storage)
	}
}

func openMemory() (*Stores, error) {
	db, err := dummydb.Open()
	if err != nil {
		return nil, errors.Wrap(err, "opening in-memory database")
	}
	return &Stores{
		Templates: dummydb.NewTemplateRepository(db),
		Forms:     dummydb.NewFormRepository(db),
		Students:  dummydb.NewStudentRepository(db),
		Parents:   dummydb.NewParentRepository(db),
		close:     db.Close,
	}, nil
}

func openPostgres(conf *core.Config) (*Stores, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Stores{
		Templates: sqlxrepos.NewTemplateRepository(db),
		Forms:     sqlxrepos.NewFormRepository(db),
		Students:  sqlxrepos.NewStudentRepository(db),
		Parents:   sqlxrepos.NewParentRepository(db),
		close:     db.Close,
	}, nil
}
