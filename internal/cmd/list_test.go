package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/quantmind-br/qpm/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListCmd(t *testing.T) {
	f := newFixture(t)
	f.installDirect(manifestFor("foo", "1.0"))
	f.installDirect(manifestFor("foo", "1.10"))
	f.installDirect(manifestFor("barbaz", "0.1"))

	stdout, _, err := f.run("list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "foo")
	assert.Contains(t, stdout, "1.10")
	assert.Contains(t, stdout, "barbaz")
	assert.Contains(t, stdout, "foo package")
}

func TestListCmdJSON(t *testing.T) {
	f := newFixture(t)
	f.installDirect(manifestFor("foo", "1.10"))
	f.installDirect(manifestFor("foo", "1.2"))
	f.installDirect(manifestFor("bar", "0.1"))

	stdout, _, err := f.run("list", "--json")
	require.NoError(t, err)

	var records []core.PackageRecord
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 3)
	assert.Equal(t, "bar", records[0].Name)
	assert.Equal(t, "1.2", records[1].Version)
	assert.Equal(t, "1.10", records[2].Version)
	assert.Equal(t, f.versionDir("foo", "1.2"), records[1].Path)
}

func TestListCmdFilter(t *testing.T) {
	f := newFixture(t)
	f.installDirect(manifestFor("image-tools", "1.0"))
	f.installDirect(manifestFor("net", "1.0"))

	stdout, _, err := f.run("list", "--json", "--filter", "imgtl")
	require.NoError(t, err)

	var records []core.PackageRecord
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "image-tools", records[0].Name)

	_, stderr, err := f.run("list", "--filter", "zzz")
	require.NoError(t, err)
	assert.Contains(t, stderr, `No packages match "zzz"`)
}

func TestListCmdEmptyAndWarnings(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := f.run("list", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", stdout)

	broken := f.versionDir("broken", "1.0")
	require.NoError(t, os.MkdirAll(broken, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(broken, core.ManifestFileName), []byte("{"), 0644))

	stdout, stderr, err := f.run("list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No packages installed")
	assert.Contains(t, stderr, broken)
}
