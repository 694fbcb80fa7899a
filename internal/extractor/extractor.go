package extractor

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned for archive entries that would land outside the
// destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Extractor unpacks recipe snapshot tarballs.
type Extractor struct{}

// NewExtractor creates a new extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract unpacks the .tar.gz at tarballPath into destDir and returns the
// path of the archive's top-level directory.
func (e *Extractor) Extract(tarballPath, destDir string) (string, error) {
	file, err := os.Open(tarballPath)
	if err != nil {
		return "", fmt.Errorf("opening tarball: %w", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return "", fmt.Errorf("decompressing tarball: %w", err)
	}
	defer gzReader.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("creating destination: %w", err)
	}

	tarReader := tar.NewReader(gzReader)
	var rootDir string

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading tarball: %w", err)
		}

		// pax global headers carry no file
		if header.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return "", err
		}

		if rootDir == "" {
			rootDir = strings.SplitN(strings.TrimPrefix(header.Name, "./"), "/", 2)[0]
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return "", err
			}
		case tar.TypeReg:
			if err := writeFile(target, tarReader, os.FileMode(header.Mode)); err != nil {
				return "", err
			}
		case tar.TypeSymlink:
			if _, err := safeJoin(filepath.Dir(target), header.Linkname); err != nil || filepath.IsAbs(header.Linkname) {
				return "", fmt.Errorf("%w: %s -> %s", ErrUnsafePath, header.Name, header.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return "", err
			}
			os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return "", err
			}
		}
	}

	if rootDir == "" {
		return "", fmt.Errorf("empty tarball %s", tarballPath)
	}
	return filepath.Join(destDir, rootDir), nil
}

func safeJoin(dir, name string) (string, error) {
	target := filepath.Join(dir, name)
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
