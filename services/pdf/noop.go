package pdfsvc

import (
	"context"
	"fmt"

	"github.com/trezcool/nidhamu/core"
	"github.com/trezcool/nidhamu/core/form"
)

// noopGenerator is used when no document service is configured: forms are kept without documents.
type noopGenerator struct {
	logger core.Logger
}

var _ form.DocumentGenerator = (*noopGenerator)(nil)

func NewNoopGenerator(logger core.Logger) form.DocumentGenerator {
	return &noopGenerator{logger: logger}
}

func (gen noopGenerator) Generate(_ context.Context, f form.Form) (form.Document, error) {
	gen.logger.Debug(fmt.Sprintf("document generation disabled: skipping %s", Filename(f)))
	return form.Document{}, nil
}

func (gen noopGenerator) Remove(context.Context, form.Document) error {
	return nil
}

// NewGenerator returns the HTTP generator when a document service is configured, the no-op one otherwise.
func NewGenerator(conf *core.Config, logger core.Logger) form.DocumentGenerator {
	if conf.PDF.ServiceURL == "" {
		return NewNoopGenerator(logger)
	}
	return NewHTTPGenerator(conf, logger)
}
