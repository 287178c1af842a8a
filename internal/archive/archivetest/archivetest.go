// Package archivetest builds in-memory archives for tests.
package archivetest

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"sort"
	"testing"

	"github.com/ulikunitz/xz"
)

// Files maps slash-separated entry names to contents.
// Names ending in "/" are directories.
type Files map[string]string

func (f Files) names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Zip returns a zip archive holding files
func Zip(t testing.TB, files Files) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range files.names() {
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
		switch {
		case isDir(name):
			hdr.Method = zip.Store
			hdr.SetMode(os.ModeDir | 0755)
		case isScript(name):
			hdr.SetMode(0755)
		default:
			hdr.SetMode(0644)
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("zip header %s: %v", name, err)
		}
		if isDir(name) {
			continue
		}
		if _, err := io.WriteString(w, files[name]); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// Tar returns an uncompressed tar archive holding files
func Tar(t testing.TB, files Files) []byte {
	t.Helper()

	var buf bytes.Buffer
	writeTar(t, &buf, files)
	return buf.Bytes()
}

// TarGz returns a gzip-compressed tar archive holding files
func TarGz(t testing.TB, files Files) []byte {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	writeTar(t, gw, files)
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

// TarXz returns an xz-compressed tar archive holding files
func TarXz(t testing.TB, files Files) []byte {
	t.Helper()

	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("xz writer: %v", err)
	}
	writeTar(t, xw, files)
	if err := xw.Close(); err != nil {
		t.Fatalf("xz close: %v", err)
	}
	return buf.Bytes()
}

// TarWithHeaders returns a tar archive built from raw headers, for entries
// Files cannot express such as symlinks and traversal names
func TarWithHeaders(t testing.TB, headers []*tar.Header, bodies []string) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for i, hdr := range headers {
		body := ""
		if i < len(bodies) {
			body = bodies[i]
		}
		if hdr.Typeflag == tar.TypeReg {
			hdr.Size = int64(len(body))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header %s: %v", hdr.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := io.WriteString(tw, body); err != nil {
				t.Fatalf("tar write %s: %v", hdr.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	return buf.Bytes()
}

func writeTar(t testing.TB, w io.Writer, files Files) {
	t.Helper()

	tw := tar.NewWriter(w)
	for _, name := range files.names() {
		hdr := &tar.Header{Name: name, Format: tar.FormatPAX}
		if isDir(name) {
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0755
		} else {
			hdr.Typeflag = tar.TypeReg
			hdr.Mode = 0644
			if isScript(name) {
				hdr.Mode = 0755
			}
			hdr.Size = int64(len(files[name]))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header %s: %v", name, err)
		}
		if !isDir(name) {
			if _, err := io.WriteString(tw, files[name]); err != nil {
				t.Fatalf("tar write %s: %v", name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
}

func isDir(name string) bool {
	return len(name) > 0 && name[len(name)-1] == '/'
}

func isScript(name string) bool {
	n := len(name)
	return (n > 3 && name[n-3:] == ".sh") || (n > 3 && name[n-3:] == ".py")
}
