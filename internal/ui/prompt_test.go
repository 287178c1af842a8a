package ui

import (
	"errors"
	"testing"

	"github.com/manifoldco/promptui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuzzySearcher(t *testing.T) {
	items := []string{"1.0.0", "1.2.0", "all versions", "cancel"}
	search := FuzzySearcher(items)

	assert.True(t, search("", 0))
	assert.True(t, search("12", 1))
	assert.True(t, search("ALL", 2))
	assert.False(t, search("xyz", 3))
	assert.False(t, search("1", 10))
	assert.False(t, search("1", -1))
}

func TestMapPromptErr(t *testing.T) {
	assert.ErrorIs(t, mapPromptErr(promptui.ErrInterrupt), ErrCancelled)
	assert.ErrorIs(t, mapPromptErr(promptui.ErrEOF), ErrCancelled)

	other := errors.New("tty closed")
	assert.Equal(t, other, mapPromptErr(other))
}

func TestScriptedPrompter(t *testing.T) {
	p := &ScriptedPrompter{Selections: []int{1, 5}, Confirms: []bool{true}}

	idx, err := p.Select("Version", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = p.Select("Version", []string{"a", "b"})
	assert.ErrorIs(t, err, ErrCancelled)

	_, err = p.Select("Version", []string{"a"})
	assert.ErrorIs(t, err, ErrCancelled)

	ok, err := p.Confirm("Remove?")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Confirm("Remove again?")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []string{"Version", "Version", "Version", "Remove?", "Remove again?"}, p.Asked)
}
