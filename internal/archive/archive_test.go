package archive

import (
	"archive/tar"
	"path/filepath"
	"testing"

	"github.com/quantmind-br/qpm/internal/archive/archivetest"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = archivetest.Files{
	"pkg/":                   "",
	"pkg/qvoid_package.json": `{"name":"foo"}`,
	"pkg/bin/run.sh":         "#!/bin/sh\necho hi\n",
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		format Format
	}{
		{"zip", archivetest.Zip(t, sample), FormatZip},
		{"tar", archivetest.Tar(t, sample), FormatTar},
		{"tar.gz", archivetest.TarGz(t, sample), FormatTarGz},
		{"tar.xz", archivetest.TarXz(t, sample), FormatTarXz},
		{"bzip2 header", []byte("BZh91AY&SY"), FormatTarBz2},
		{"garbage", []byte("not an archive"), FormatUnknown},
		{"empty", nil, FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.format, DetectFormat(tt.data))
		})
	}
}

func TestUnpackFormats(t *testing.T) {
	builders := map[string]func(testing.TB, archivetest.Files) []byte{
		"zip":    archivetest.Zip,
		"tar":    archivetest.Tar,
		"tar.gz": archivetest.TarGz,
		"tar.xz": archivetest.TarXz,
	}

	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			logger := zerolog.Nop()
			require.NoError(t, afero.WriteFile(fs, "/work/package.archive", build(t, sample), 0644))

			e := NewExtractor(fs, &logger)
			require.NoError(t, e.Unpack("/work/package.archive", "/work/extracted"))

			data, err := afero.ReadFile(fs, "/work/extracted/pkg/qvoid_package.json")
			require.NoError(t, err)
			assert.Equal(t, `{"name":"foo"}`, string(data))

			script, err := afero.ReadFile(fs, "/work/extracted/pkg/bin/run.sh")
			require.NoError(t, err)
			assert.Contains(t, string(script), "echo hi")
		})
	}
}

func TestUnpackPreservesExecutableBit(t *testing.T) {
	dir := t.TempDir()
	fs := afero.NewOsFs()
	archivePath := filepath.Join(dir, "package.archive")
	require.NoError(t, afero.WriteFile(fs, archivePath, archivetest.TarGz(t, sample), 0644))

	dest := filepath.Join(dir, "out")
	require.NoError(t, NewExtractor(fs, nil).Unpack(archivePath, dest))

	info, err := fs.Stat(filepath.Join(dest, "pkg", "bin", "run.sh"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0100)
}

func TestUnpackRejectsUnknownFormat(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a", []byte("plain text"), 0644))

	err := NewExtractor(fs, nil).Unpack("/a", "/out")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestUnpackMissingArchive(t *testing.T) {
	err := NewExtractor(afero.NewMemMapFs(), nil).Unpack("/missing", "/out")
	assert.Error(t, err)
}

func TestUnpackRejectsTraversal(t *testing.T) {
	data := archivetest.TarWithHeaders(t, []*tar.Header{
		{Name: "../evil.txt", Typeflag: tar.TypeReg, Mode: 0644},
	}, []string{"pwned"})

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/a.tar", data, 0644))

	err := NewExtractor(fs, nil).Unpack("/work/a.tar", "/work/out")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid path")

	_, statErr := fs.Stat("/work/evil.txt")
	assert.Error(t, statErr)
}

func TestUnpackRejectsEscapingSymlink(t *testing.T) {
	dir := t.TempDir()
	data := archivetest.TarWithHeaders(t, []*tar.Header{
		{Name: "pkg/link", Typeflag: tar.TypeSymlink, Linkname: "../../etc/passwd"},
	}, nil)

	fs := afero.NewOsFs()
	archivePath := filepath.Join(dir, "a.tar")
	require.NoError(t, afero.WriteFile(fs, archivePath, data, 0644))

	err := NewExtractor(fs, nil).Unpack(archivePath, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid symlink")
}

func TestUnpackSymlinkAndHardLink(t *testing.T) {
	dir := t.TempDir()
	data := archivetest.TarWithHeaders(t, []*tar.Header{
		{Name: "pkg/real.txt", Typeflag: tar.TypeReg, Mode: 0644},
		{Name: "pkg/soft", Typeflag: tar.TypeSymlink, Linkname: "real.txt"},
		{Name: "pkg/hard", Typeflag: tar.TypeLink, Linkname: "pkg/real.txt"},
	}, []string{"content"})

	fs := afero.NewOsFs()
	archivePath := filepath.Join(dir, "a.tar")
	require.NoError(t, afero.WriteFile(fs, archivePath, data, 0644))

	out := filepath.Join(dir, "out")
	require.NoError(t, NewExtractor(fs, nil).Unpack(archivePath, out))

	soft, err := afero.ReadFile(fs, filepath.Join(out, "pkg", "soft"))
	require.NoError(t, err)
	assert.Equal(t, "content", string(soft))

	hard, err := afero.ReadFile(fs, filepath.Join(out, "pkg", "hard"))
	require.NoError(t, err)
	assert.Equal(t, "content", string(hard))
}

func TestUnpackEmptyZip(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.zip", archivetest.Zip(t, archivetest.Files{}), 0644))

	require.NoError(t, NewExtractor(fs, nil).Unpack("/a.zip", "/out"))
	entries, err := afero.ReadDir(fs, "/out")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
