package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/quantmind-br/qpm/internal/core"
	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	fetchErr := core.Errorf(core.KindFetch, "foo", "connection refused")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, core.ExitSuccess},
		{"plain", errors.New("boom"), core.ExitGeneral},
		{"explicit", withExit(core.ExitRemoveFailed, errors.New("boom")), core.ExitRemoveFailed},
		{"wrapped explicit", fmt.Errorf("ctx: %w", withExit(core.ExitDatabase, errors.New("locked"))), core.ExitDatabase},
		{"fetch", fetchErr, core.ExitNetwork},
		{"other kind", core.Errorf(core.KindArchive, "foo", "bad"), core.ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}

	assert.NoError(t, withExit(core.ExitGeneral, nil))
}

func TestInstallExitCode(t *testing.T) {
	fetchErr := core.Errorf(core.KindFetch, "foo", "timeout")
	sumErr := core.Errorf(core.KindChecksumMismatch, "bar", "mismatch")

	assert.Equal(t, core.ExitNetwork, installExitCode([]error{fetchErr}))
	assert.Equal(t, core.ExitNetwork, installExitCode([]error{fetchErr, fetchErr}))
	assert.Equal(t, core.ExitInstallFailed, installExitCode([]error{fetchErr, sumErr}))
	assert.Equal(t, core.ExitInstallFailed, installExitCode([]error{sumErr}))
}
