package archive

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackageRoot(t *testing.T) {
	const marker = "qvoid_package.json"

	tests := []struct {
		name  string
		files []string
		want  string
	}{
		{"manifest at root", []string{"/x/qvoid_package.json", "/x/sub/a.txt"}, "/x"},
		{"single directory", []string{"/x/pkg/qvoid_package.json"}, "/x/pkg"},
		{"single directory beside files", []string{"/x/pkg/qvoid_package.json", "/x/README"}, "/x/pkg"},
		{"macos resource fork ignored", []string{"/x/pkg/qvoid_package.json", "/x/__MACOSX/pkg/._a"}, "/x/pkg"},
		{"two directories", []string{"/x/a/qvoid_package.json", "/x/b/qvoid_package.json"}, "/x"},
		{"no manifest", []string{"/x/README"}, "/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			for _, f := range tt.files {
				require.NoError(t, afero.WriteFile(fs, f, []byte("{}"), 0644))
			}

			got, err := PackageRoot(fs, "/x", marker)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPackageRootMissingDir(t *testing.T) {
	_, err := PackageRoot(afero.NewMemMapFs(), "/nope", "m.json")
	assert.Error(t, err)
}
