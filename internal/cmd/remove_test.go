package cmd

import (
	"testing"

	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/store"
	"github.com/quantmind-br/qpm/internal/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func installVersions(f *fixture, name string, versions ...string) {
	for _, v := range versions {
		f.installDirect(manifestFor(name, v))
	}
}

func TestRemoveCmdSingleVersionWithYes(t *testing.T) {
	f := newFixture(t)
	installVersions(f, "foo", "1.0")

	stdout, _, err := f.run("remove", "foo", "--yes")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Removed foo 1.0")
	assert.False(t, exists(f.versionDir("foo", "1.0")))
	assert.False(t, exists(f.deps.store().PackageDir("foo")))
	assert.Empty(t, f.prompter.Asked)
}

func TestRemoveCmdPromptsForVersion(t *testing.T) {
	f := newFixture(t)
	installVersions(f, "foo", "1.0", "2.0")
	f.prompter.Selections = []int{1}
	f.prompter.Confirms = []bool{true}

	_, _, err := f.run("remove", "foo")
	require.NoError(t, err)
	assert.True(t, exists(f.versionDir("foo", "1.0")))
	assert.False(t, exists(f.versionDir("foo", "2.0")))
	assert.Len(t, f.prompter.Asked, 2)
}

func TestRemoveCmdAllVersions(t *testing.T) {
	f := newFixture(t)
	installVersions(f, "foo", "1.0", "2.0")
	f.prompter.Selections = []int{2}

	_, _, err := f.run("remove", "foo", "--yes")
	require.NoError(t, err)
	assert.False(t, exists(f.deps.store().PackageDir("foo")))
	assert.Len(t, f.prompter.Asked, 1)
}

func TestRemoveCmdCancelled(t *testing.T) {
	tests := []struct {
		name     string
		prompter *ui.ScriptedPrompter
		args     []string
	}{
		{"cancel choice", &ui.ScriptedPrompter{Selections: []int{3}}, []string{"remove", "foo"}},
		{"aborted selection", &ui.ScriptedPrompter{}, []string{"remove", "foo"}},
		{"declined confirmation", &ui.ScriptedPrompter{Confirms: []bool{false}}, []string{"remove", "foo", "--version", "1.0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			installVersions(f, "foo", "1.0", "2.0")
			f.deps.Prompter = tt.prompter

			_, stderr, err := f.run(tt.args...)
			require.NoError(t, err)
			assert.Contains(t, stderr, "Removal cancelled")
			assert.True(t, exists(f.versionDir("foo", "1.0")))
			assert.True(t, exists(f.versionDir("foo", "2.0")))
		})
	}
}

func TestRemoveCmdErrors(t *testing.T) {
	f := newFixture(t)
	installVersions(f, "foo", "1.0")

	_, _, err := f.run("remove", "ghost", "--yes")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrPackageNotFound)
	assert.Equal(t, core.ExitRemoveFailed, ExitCode(err))

	_, _, err = f.run("remove", "foo", "--version", "9.9", "--yes")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrVersionNotFound)
	assert.Equal(t, core.ExitRemoveFailed, ExitCode(err))
	assert.True(t, exists(f.versionDir("foo", "1.0")))
}

func TestRemoveCmdRejectsUnsafeNames(t *testing.T) {
	f := newFixture(t)
	installVersions(f, "foo", "1.0")
	f.prompter.Selections = []int{0, 0, 0}

	for _, name := range []string{"..", ".locks", "a/b"} {
		_, _, err := f.run("remove", name, "--version", "packages", "--yes")
		require.Error(t, err, name)
		assert.ErrorIs(t, err, store.ErrPackageNotFound)
		assert.Equal(t, core.ExitRemoveFailed, ExitCode(err))

		_, _, err = f.run("remove", name, "--yes")
		require.Error(t, err, name)
		assert.ErrorIs(t, err, store.ErrPackageNotFound)
	}

	assert.True(t, exists(f.versionDir("foo", "1.0")))
	assert.True(t, exists(f.deps.Paths.ExecutablePath()))
	assert.Empty(t, f.prompter.Asked)
}

func TestChooseVersions(t *testing.T) {
	versions := []string{"1.0", "1.2", "2.0"}

	got, err := chooseVersions(&ui.ScriptedPrompter{}, "foo", "1.2", versions)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.2"}, got)

	got, err = chooseVersions(&ui.ScriptedPrompter{}, "foo", "", []string{"1.0"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0"}, got)

	got, err = chooseVersions(&ui.ScriptedPrompter{Selections: []int{3}}, "foo", "", versions)
	require.NoError(t, err)
	assert.Equal(t, versions, got)

	_, err = chooseVersions(&ui.ScriptedPrompter{Selections: []int{4}}, "foo", "", versions)
	assert.ErrorIs(t, err, ui.ErrCancelled)
}
