package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorCmdHealthy(t *testing.T) {
	f := newFixture(t)
	f.installDirect(manifestFor("foo", "1.0"))

	stdout, _, err := f.run("doctor")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 package(s), 1 version(s) installed")
	assert.Contains(t, stdout, "Algorithm: sha256")
	assert.Contains(t, stdout, "All critical checks passed")
	assert.DirExists(t, f.deps.Paths.TempDir())
}

func TestDoctorCmdMissingInterpreterIsWarning(t *testing.T) {
	f := newFixture(t)
	f.deps.Commands = &helpers.MockCommandRunner{CommandExistsFunc: func(name string) bool { return name != "python3" }}

	stdout, stderr, err := f.run("doctor")
	require.NoError(t, err)
	assert.Contains(t, stderr, "python3 not found")
	assert.Contains(t, stdout, "All critical checks passed")
}

func TestDoctorCmdUnusableStore(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "packages"), []byte("not a dir"), 0644))

	_, _, err := f.run("doctor")
	require.Error(t, err)
	assert.Equal(t, core.ExitGeneral, ExitCode(err))
	assert.Contains(t, err.Error(), "1 issue(s) found")
}

func TestDoctorCmdUnsupportedAlgorithm(t *testing.T) {
	f := newFixture(t)
	f.deps.Config.Install.ChecksumAlgorithm = "crc32"

	_, stderr, err := f.run("doctor")
	require.Error(t, err)
	assert.Contains(t, stderr, "unsupported checksum algorithm")
	assert.Contains(t, err.Error(), "1 issue(s) found")
}
