package manifest

import (
	"errors"
	"testing"

	"github.com/quantmind-br/qpm/internal/core"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValid(t *testing.T) {
	data := []byte(`{
		"name": "test-package-one",
		"version": "1.2.0",
		"checksum": "abc123",
		"source_url": "https://example.com/pkg.zip",
		"dependencies": ["base-lib"],
		"install_script": "scripts/setup.sh",
		"description": "A test package"
	}`)

	m, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "test-package-one", m.Name)
	assert.Equal(t, "1.2.0", m.Version)
	assert.Equal(t, "abc123", m.Checksum)
	assert.Equal(t, []string{"base-lib"}, m.Dependencies)
	assert.Equal(t, "scripts/setup.sh", m.InstallScript)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"name": `},
		{"missing name", `{"version": "1.0.0", "checksum": "ab"}`},
		{"missing version", `{"name": "foo", "checksum": "ab"}`},
		{"missing checksum", `{"name": "foo", "version": "1.0.0"}`},
		{"empty name", `{"name": "", "version": "1.0.0", "checksum": "ab"}`},
		{"non hex checksum", `{"name": "foo", "version": "1.0.0", "checksum": "xyz"}`},
		{"wrong type", `{"name": "foo", "version": 1, "checksum": "ab"}`},
		{"dependencies not strings", `{"name": "foo", "version": "1.0.0", "checksum": "ab", "dependencies": [1]}`},
		{"traversal name", `{"name": "../foo", "version": "1.0.0", "checksum": "ab"}`},
		{"traversal version", `{"name": "foo", "version": "../1", "checksum": "ab"}`},
		{"escaping script", `{"name": "foo", "version": "1.0.0", "checksum": "ab", "install_script": "../../x.sh"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrInvalidManifest), "got %v", err)
		})
	}
}

func TestValidateReportsIssues(t *testing.T) {
	issues, err := Validate([]byte(`{"name": "foo"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, issues)
}

func TestDecodeLenient(t *testing.T) {
	m, err := Decode([]byte(`{"name": "foo", "version": "1.0.0"}`))
	require.NoError(t, err)
	assert.Equal(t, "foo", m.Name)
	assert.Empty(t, m.Checksum)

	_, err = Decode([]byte(`not json`))
	assert.True(t, errors.Is(err, core.ErrInvalidManifest))
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/pkg/"+core.ManifestFileName,
		[]byte(`{"name": "foo", "version": "1.0.0", "checksum": "ab"}`), 0644))

	m, err := Load(fs, "/pkg", core.ManifestFileName)
	require.NoError(t, err)
	assert.Equal(t, "foo", m.Name)

	_, err = Load(fs, "/missing", core.ManifestFileName)
	assert.True(t, errors.Is(err, core.ErrManifestNotFound))
}
