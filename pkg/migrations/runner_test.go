package migrations

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersions(t *testing.T) {
	files := fstest.MapFS{
		"000002_events.up.sql":   {Data: []byte("SELECT 2;")},
		"000002_events.down.sql": {Data: []byte("SELECT -2;")},
		"000001_init.up.sql":     {Data: []byte("SELECT 1;")},
		"000001_init.down.sql":   {Data: []byte("SELECT -1;")},
		"README.md":              {Data: []byte("docs")},
	}

	versions, err := Versions(files)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001", "000002"}, versions)

	up, err := Read(files, "000002", "up")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 2;", up)

	_, err = Read(files, "000003", "up")
	assert.Error(t, err)
}

func TestBundledMigrations(t *testing.T) {
	sub, err := fs.Sub(Files, "sql")
	require.NoError(t, err)

	versions, err := Versions(sub)
	require.NoError(t, err)
	require.NotEmpty(t, versions)

	for _, v := range versions {
		up, err := Read(sub, v, "up")
		require.NoError(t, err)
		assert.NotEmpty(t, up)

		_, err = Read(sub, v, "down")
		assert.NoError(t, err, "version %s has no down migration", v)
	}
}
