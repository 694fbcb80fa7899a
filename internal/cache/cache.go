// Package cache inspects and prunes pmt's on-disk caches.
package cache

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// File is a cached file considered for removal.
type File struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StaleArtifacts returns built packages in each build directory below dir
// beyond the keep most recent ones. A missing dir has no stale files.
func StaleArtifacts(dir string, keep int) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading build cache: %w", err)
	}

	var stale []File
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		files, err := artifacts(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if len(files) <= keep {
			continue
		}
		sort.Slice(files, func(i, j int) bool { return files[i].ModTime.After(files[j].ModTime) })
		stale = append(stale, files[keep:]...)
	}
	return stale, nil
}

func artifacts(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var files []File
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.Contains(e.Name(), ".pkg.tar") || strings.HasSuffix(e.Name(), ".sig") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, File{Path: filepath.Join(dir, e.Name()), Size: info.Size(), ModTime: info.ModTime()})
	}
	return files, nil
}

// Remove deletes files and returns the bytes freed.
func Remove(files []File) (int64, error) {
	var freed int64
	for _, f := range files {
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			return freed, fmt.Errorf("removing %s: %w", f.Path, err)
		}
		freed += f.Size
	}
	return freed, nil
}

// Size returns the total size of regular files below path.
func Size(path string) (int64, error) {
	var total int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total, err
}

// Logs returns the build logs in dir.
func Logs(dir string) ([]File, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "pmt-build-*.log"))
	if err != nil {
		return nil, err
	}
	files := make([]File, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		files = append(files, File{Path: m, Size: info.Size(), ModTime: info.ModTime()})
	}
	return files, nil
}

// FormatSize renders n bytes for humans.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
