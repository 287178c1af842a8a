package cmd

import (
	"testing"

	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/updater"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateCmdReports(t *testing.T) {
	f := newFixture(t)
	foo := manifestFor("foo", "1.0")
	f.installDirect(foo)
	f.publish(foo.SourceURL, manifestFor("foo", "1.2"))

	bar := manifestFor("bar", "3.0")
	f.installDirect(bar)
	f.publish(bar.SourceURL, bar)

	lone := manifestFor("lone", "0.1")
	lone.SourceURL = ""
	f.installDirect(lone)

	stdout, _, err := f.run("update")
	require.NoError(t, err)
	assert.Contains(t, stdout, string(updater.StatusUpdateAvailable))
	assert.Contains(t, stdout, string(updater.StatusUpToDate))
	assert.Contains(t, stdout, string(updater.ReasonNoSourceURL))
	assert.Contains(t, stdout, "1 update(s) available")

	assert.False(t, exists(f.versionDir("foo", "1.2")), "check must not install")
}

func TestUpdateCmdApply(t *testing.T) {
	f := newFixture(t)
	foo := manifestFor("foo", "1.0")
	f.installDirect(foo)
	f.publish(foo.SourceURL, manifestFor("foo", "1.2"))

	stdout, _, err := f.run("update", "foo", "--apply")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Installed foo@1.2")
	assert.True(t, exists(f.versionDir("foo", "1.2")))
	assert.True(t, exists(f.versionDir("foo", "1.0")))
	// one fetch for the check, one for the install
	assert.Equal(t, 2, f.fetcher.calls[foo.SourceURL])

	stdout, _, err = f.run("update", "foo")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Everything is up to date")
}

func TestUpdateCmdNotInstalled(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.run("update", "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, updater.ErrPackageNotInstalled)
	assert.Equal(t, core.ExitGeneral, ExitCode(err))
}

func TestUpdateCmdNothingInstalled(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := f.run("update")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No packages installed")
}
