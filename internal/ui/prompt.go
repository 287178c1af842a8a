package ui

import (
	"errors"
	"io"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/manifoldco/promptui"
)

// ErrCancelled is returned when the user aborts a prompt
var ErrCancelled = errors.New("cancelled by user")

// Prompter asks the user questions. Commands depend on this interface so
// tests can script the answers.
type Prompter interface {
	// Select returns the index of the chosen item
	Select(label string, items []string) (int, error)
	// Confirm asks a yes/no question
	Confirm(label string) (bool, error)
}

// TerminalPrompter implements Prompter with promptui
type TerminalPrompter struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
}

// Select presents items with fuzzy search
func (t TerminalPrompter) Select(label string, items []string) (int, error) {
	prompt := promptui.Select{
		Label:    label,
		Items:    items,
		Size:     min(10, len(items)),
		Stdin:    t.Stdin,
		Stdout:   t.Stdout,
		Searcher: FuzzySearcher(items),
	}

	index, _, err := prompt.Run()
	if err != nil {
		return -1, mapPromptErr(err)
	}
	return index, nil
}

// Confirm asks a yes/no question; anything but y is a no
func (t TerminalPrompter) Confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdin:     t.Stdin,
		Stdout:    t.Stdout,
	}

	result, err := prompt.Run()
	if err != nil {
		// promptui reports a "no" answer as ErrAbort
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, mapPromptErr(err)
	}
	return strings.EqualFold(result, "y"), nil
}

// FuzzySearcher matches search input against items, ignoring case and accents
func FuzzySearcher(items []string) func(input string, index int) bool {
	return func(input string, index int) bool {
		if index < 0 || index >= len(items) {
			return false
		}
		input = strings.TrimSpace(input)
		if input == "" {
			return true
		}
		return fuzzy.MatchNormalizedFold(input, items[index])
	}
}

func mapPromptErr(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrAbort) {
		return ErrCancelled
	}
	return err
}

// ScriptedPrompter answers prompts from fixed lists, in order
type ScriptedPrompter struct {
	Selections []int
	Confirms   []bool
	// Asked records every label shown
	Asked []string
}

// Select returns the next scripted selection, or ErrCancelled when exhausted
func (s *ScriptedPrompter) Select(label string, items []string) (int, error) {
	s.Asked = append(s.Asked, label)
	if len(s.Selections) == 0 {
		return -1, ErrCancelled
	}
	idx := s.Selections[0]
	s.Selections = s.Selections[1:]
	if idx < 0 || idx >= len(items) {
		return -1, ErrCancelled
	}
	return idx, nil
}

// Confirm returns the next scripted answer, or false when exhausted
func (s *ScriptedPrompter) Confirm(label string) (bool, error) {
	s.Asked = append(s.Asked, label)
	if len(s.Confirms) == 0 {
		return false, nil
	}
	ok := s.Confirms[0]
	s.Confirms = s.Confirms[1:]
	return ok, nil
}
