package extractor

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type entry struct {
	name    string
	content string
	dir     bool
}

func createTestTarball(t *testing.T, entries []entry) string {
	t.Helper()

	tmpDir := t.TempDir()
	tarballPath := filepath.Join(tmpDir, "test.tar.gz")

	f, err := os.Create(tarballPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	defer gw.Close()

	tw := tar.NewWriter(gw)
	defer tw.Close()

	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.name,
			Mode:     0644,
			Size:     int64(len(e.content)),
			Typeflag: tar.TypeReg,
		}
		if e.dir {
			hdr.Mode = 0755
			hdr.Size = 0
			hdr.Typeflag = tar.TypeDir
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if !e.dir {
			if _, err := tw.Write([]byte(e.content)); err != nil {
				t.Fatal(err)
			}
		}
	}

	return tarballPath
}

func TestExtractor_Extract_Snapshot(t *testing.T) {
	// Arrange
	pkgbuild := "pkgname=yay\npkgver=12.4.2\npkgrel=1\n"
	tarballPath := createTestTarball(t, []entry{
		{name: "yay/", dir: true},
		{name: "yay/PKGBUILD", content: pkgbuild},
		{name: "yay/.SRCINFO", content: "pkgbase = yay\n"},
	})
	dest := t.TempDir()

	// Act
	root, err := NewExtractor().Extract(tarballPath, dest)

	// Assert
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if want := filepath.Join(dest, "yay"); root != want {
		t.Errorf("root = %q, want %q", root, want)
	}
	data, err := os.ReadFile(filepath.Join(root, "PKGBUILD"))
	if err != nil {
		t.Fatalf("reading PKGBUILD: %v", err)
	}
	if string(data) != pkgbuild {
		t.Errorf("PKGBUILD = %q, want %q", data, pkgbuild)
	}
}

func TestExtractor_Extract_OverwritesExisting(t *testing.T) {
	dest := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dest, "foo"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dest, "foo", "PKGBUILD"), []byte("old recipe that is longer"), 0644); err != nil {
		t.Fatal(err)
	}

	tarballPath := createTestTarball(t, []entry{{name: "foo/PKGBUILD", content: "new"}})

	root, err := NewExtractor().Extract(tarballPath, dest)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(root, "PKGBUILD"))
	if string(data) != "new" {
		t.Errorf("PKGBUILD = %q, want new", data)
	}
}

func TestExtractor_Extract_RejectsTraversal(t *testing.T) {
	tarballPath := createTestTarball(t, []entry{
		{name: "foo/PKGBUILD", content: "ok"},
		{name: "foo/../../evil", content: "bad"},
	})
	dest := t.TempDir()

	_, err := NewExtractor().Extract(tarballPath, dest)

	if !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("Extract() error = %v, want ErrUnsafePath", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dest), "evil")); !os.IsNotExist(err) {
		t.Error("traversal entry was written outside destination")
	}
}

func TestExtractor_Extract_NotGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tar.gz")
	if err := os.WriteFile(path, []byte("not a tarball"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewExtractor().Extract(path, t.TempDir()); err == nil {
		t.Error("Extract() should fail on invalid gzip data")
	}
}

func TestExtractor_Extract_Missing(t *testing.T) {
	if _, err := NewExtractor().Extract(filepath.Join(t.TempDir(), "missing.tar.gz"), t.TempDir()); err == nil {
		t.Error("Extract() should fail for a missing tarball")
	}
}
