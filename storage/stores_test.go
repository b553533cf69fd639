package storage

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/nidhamu/core"
	"github.com/trezcool/nidhamu/core/template"
)

func TestOpen(t *testing.T) {
	_, err := Open(&core.Config{Storage: "mongo"})
	assert.Error(t, err)

	stores, err := Open(&core.Config{Storage: core.StorageMemory})
	require.NoError(t, err)
	defer func() { _ = stores.Close() }()

	_, err = stores.Templates.GetDefaultTemplate(context.Background())
	assert.Equal(t, template.ErrNotFound, errors.Cause(err))
}
