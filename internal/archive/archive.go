package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hbomb79/synthmocap/pkg/logger"
)

var log = logger.Get("Extract")

const (
	ZipExt     = ".zip"
	TarBz2Ext  = ".tar.bz2"
	bz2Ext     = ".bz2"
	defaultDir = 0o755
)

var (
	ErrUnknownFormat = errors.New("unknown archive format")
	ErrIllegalPath   = errors.New("archive entry escapes the destination directory")
)

// DefaultDestination returns the directory an archive is extracted in
// to when no explicit destination is given: a sibling of the archive
// named after it, without its extension.
func DefaultDestination(path string) (string, error) {
	name := filepath.Base(path)
	switch {
	case strings.HasSuffix(name, ZipExt):
		return filepath.Join(filepath.Dir(path), strings.TrimSuffix(name, ZipExt)), nil
	case strings.HasSuffix(name, bz2Ext):
		return filepath.Join(filepath.Dir(path), strings.TrimSuffix(strings.TrimSuffix(name, TarBz2Ext), bz2Ext)), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Ext(name))
	}
}

// Extract unpacks the zip or bzip2-compressed tar archive at the path
// provided in to dest. An empty dest uses DefaultDestination. Existing
// files are overwritten, so re-running an interrupted extraction is safe.
func Extract(path string, dest string) (string, error) {
	if dest == "" {
		d, err := DefaultDestination(path)
		if err != nil {
			return "", err
		}
		dest = d
	}

	log.Emit(logger.NEW, "Extracting %s to %s\n", filepath.Base(path), dest)
	var err error
	switch {
	case strings.HasSuffix(path, ZipExt):
		err = extractZip(path, dest)
	case strings.HasSuffix(path, bz2Ext):
		err = extractTarBz2(path, dest)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Ext(path))
	}

	if err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", path, err)
	}

	return dest, nil
}

func extractZip(path string, dest string) error {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	for _, f := range reader.File {
		target, err := entryPath(dest, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, defaultDir); err != nil {
				return err
			}
			continue
		}

		if err := writeZipEntry(f, target); err != nil {
			return err
		}
	}

	return nil
}

func writeZipEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	return writeFile(target, rc, f.Mode().Perm())
}

func extractTarBz2(path string, dest string) error {
	handle, err := os.Open(path)
	if err != nil {
		return err
	}
	defer handle.Close()

	reader := tar.NewReader(bzip2.NewReader(handle))
	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}

		target, err := entryPath(dest, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, defaultDir); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, reader, header.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		default:
			log.Emit(logger.DEBUG, "Skipping unsupported tar entry %s (type %c)\n", header.Name, header.Typeflag)
		}
	}
}

// entryPath joins an archive entry name to the destination, rejecting
// names which would place the file outside of it.
func entryPath(dest string, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrIllegalPath, name)
	}

	return target, nil
}

func writeFile(target string, content io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), defaultDir); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o644
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, content); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
