package cmd

import (
	"encoding/json"
	"testing"

	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoCmd(t *testing.T) {
	f := newFixture(t)
	f.installDirect(manifestFor("foo", "1.0"))
	f.installDirect(manifestFor("foo", "2.0"))

	stdout, _, err := f.run("info", "foo")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1.0")
	assert.Contains(t, stdout, "2.0 (latest)")
	assert.Contains(t, stdout, "https://example.test/foo.tar")
	assert.Contains(t, stdout, f.versionDir("foo", "2.0"))
}

func TestInfoCmdJSON(t *testing.T) {
	f := newFixture(t)
	f.installDirect(manifestFor("foo", "1.0"))

	stdout, _, err := f.run("info", "foo", "--json")
	require.NoError(t, err)

	var records []core.PackageRecord
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 1)
	assert.Equal(t, manifestFor("foo", "1.0").Checksum, records[0].Checksum)
}

func TestInfoCmdNotInstalled(t *testing.T) {
	f := newFixture(t)

	_, stderr, err := f.run("info", "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrPackageNotFound)
	assert.Equal(t, core.ExitGeneral, ExitCode(err))
	assert.Contains(t, stderr, "package not installed: nope")
}
