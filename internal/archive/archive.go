// Package archive unpacks package archives into a directory tree.
//
// The format is detected from the leading magic bytes, never from the file
// name, so a package URL does not need a meaningful extension.
package archive

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/quantmind-br/qpm/internal/security"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"
)

// Format identifies an archive container
type Format string

const (
	FormatUnknown Format = ""
	FormatZip     Format = "zip"
	FormatTar     Format = "tar"
	FormatTarGz   Format = "tar.gz"
	FormatTarXz   Format = "tar.xz"
	FormatTarBz2  Format = "tar.bz2"
)

// ErrUnsupportedFormat is returned when the magic bytes match no known format
var ErrUnsupportedFormat = errors.New("unsupported archive format")

var (
	magicZip      = []byte("PK\x03\x04")
	magicZipEmpty = []byte("PK\x05\x06")
	magicGzip     = []byte{0x1f, 0x8b}
	magicXz       = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	magicBzip2    = []byte("BZh")
	magicTar      = []byte("ustar")
)

const tarMagicOffset = 257

// Unpacker extracts an archive file into a destination directory
type Unpacker interface {
	Unpack(archivePath, destDir string) error
}

// Extractor is the Unpacker backed by an afero filesystem
type Extractor struct {
	fs     afero.Fs
	logger *zerolog.Logger
}

// NewExtractor creates an Extractor
func NewExtractor(fs afero.Fs, logger *zerolog.Logger) *Extractor {
	return &Extractor{fs: fs, logger: logger}
}

// DetectFormat classifies an archive by its first bytes
func DetectFormat(header []byte) Format {
	switch {
	case bytes.HasPrefix(header, magicZip), bytes.HasPrefix(header, magicZipEmpty):
		return FormatZip
	case bytes.HasPrefix(header, magicGzip):
		return FormatTarGz
	case bytes.HasPrefix(header, magicXz):
		return FormatTarXz
	case bytes.HasPrefix(header, magicBzip2):
		return FormatTarBz2
	case len(header) >= tarMagicOffset+len(magicTar) &&
		bytes.Equal(header[tarMagicOffset:tarMagicOffset+len(magicTar)], magicTar):
		return FormatTar
	default:
		return FormatUnknown
	}
}

// Unpack extracts archivePath into destDir, creating destDir if needed.
// Entries escaping destDir abort the extraction.
func (e *Extractor) Unpack(archivePath, destDir string) error {
	f, err := e.fs.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	header := make([]byte, tarMagicOffset+len(magicTar))
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read archive header: %w", err)
	}
	format := DetectFormat(header[:n])
	if format == FormatUnknown {
		return fmt.Errorf("%s: %w", archivePath, ErrUnsupportedFormat)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind archive: %w", err)
	}

	if err := e.fs.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if e.logger != nil {
		e.logger.Debug().
			Str("archive", archivePath).
			Str("format", string(format)).
			Str("dest", destDir).
			Msg("unpacking archive")
	}

	switch format {
	case FormatZip:
		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat archive: %w", err)
		}
		return e.extractZip(f, info.Size(), destDir)
	case FormatTarGz:
		gzr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("create gzip reader: %w", err)
		}
		defer gzr.Close()
		return e.extractTar(gzr, destDir)
	case FormatTarXz:
		xzr, err := xz.NewReader(bufio.NewReader(f))
		if err != nil {
			return fmt.Errorf("create xz reader: %w", err)
		}
		return e.extractTar(xzr, destDir)
	case FormatTarBz2:
		return e.extractTar(bzip2.NewReader(f), destDir)
	default:
		return e.extractTar(f, destDir)
	}
}

func (e *Extractor) extractTar(r io.Reader, destDir string) error {
	tr := tar.NewReader(r)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tar read error: %w", err)
		}

		if err := security.ValidateExtractPath(destDir, header.Name); err != nil {
			return fmt.Errorf("invalid path in archive: %w", err)
		}
		target := filepath.Join(destDir, filepath.FromSlash(header.Name))

		switch header.Typeflag {
		case tar.TypeDir:
			if err := e.fs.MkdirAll(target, dirMode(os.FileMode(header.Mode))); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

		case tar.TypeReg:
			if err := e.writeFile(tr, target, os.FileMode(header.Mode)); err != nil {
				return fmt.Errorf("extract file %s: %w", header.Name, err)
			}

		case tar.TypeSymlink:
			if err := security.ValidateSymlink(destDir, target, header.Linkname); err != nil {
				return fmt.Errorf("invalid symlink: %w", err)
			}
			if err := e.symlink(header.Linkname, target); err != nil {
				return err
			}

		case tar.TypeLink:
			if err := security.ValidateExtractPath(destDir, header.Linkname); err != nil {
				return fmt.Errorf("invalid hard link target: %w", err)
			}
			src := filepath.Join(destDir, filepath.FromSlash(header.Linkname))
			if err := e.copyLinked(src, target); err != nil {
				return fmt.Errorf("extract hard link %s: %w", header.Name, err)
			}

		default:
			if e.logger != nil {
				e.logger.Debug().Str("entry", header.Name).Msg("skipping unsupported tar entry type")
			}
		}
	}
}

func (e *Extractor) extractZip(r io.ReaderAt, size int64, destDir string) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}

	for _, f := range zr.File {
		if err := security.ValidateExtractPath(destDir, f.Name); err != nil {
			return fmt.Errorf("invalid path in zip: %w", err)
		}
		target := filepath.Join(destDir, filepath.FromSlash(f.Name))

		if f.FileInfo().IsDir() {
			if err := e.fs.MkdirAll(target, dirMode(f.Mode())); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}
			continue
		}

		if err := e.extractZipFile(f, target); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func (e *Extractor) extractZipFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open zip entry: %w", err)
	}
	defer rc.Close()

	mode := f.Mode()
	if mode&os.ModeSymlink != 0 {
		return fmt.Errorf("symlink entries are not supported in zip archives")
	}
	return e.writeFile(rc, target, mode)
}

func (e *Extractor) writeFile(r io.Reader, target string, mode os.FileMode) error {
	if err := e.fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	perm := mode.Perm()
	if perm == 0 {
		perm = 0644
	}
	out, err := e.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func (e *Extractor) symlink(linkTarget, target string) error {
	linker, ok := e.fs.(afero.Linker)
	if !ok {
		if e.logger != nil {
			e.logger.Warn().Str("link", target).Msg("filesystem does not support symlinks, skipping")
		}
		return nil
	}
	if err := e.fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	if err := linker.SymlinkIfPossible(linkTarget, target); err != nil {
		return fmt.Errorf("create symlink: %w", err)
	}
	return nil
}

// copyLinked materializes a hard link as a copy of an already extracted file
func (e *Extractor) copyLinked(src, target string) error {
	info, err := e.fs.Stat(src)
	if err != nil {
		return fmt.Errorf("hard link source: %w", err)
	}
	in, err := e.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return e.writeFile(in, target, info.Mode())
}

func dirMode(mode os.FileMode) os.FileMode {
	return mode.Perm() | 0700
}
