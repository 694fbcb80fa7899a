package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/frederic-klein/pmt/internal/resolver"
)

// useConfig points the command line at a config file using aurURL and
// temporary directories, and returns the metrics file path.
func useConfig(t *testing.T, aurURL string) string {
	t.Helper()
	dir := t.TempDir()
	metricsFile := filepath.Join(dir, "pmt.prom")
	cfg := fmt.Sprintf("aur_url: %s\ncache_dir: %s\nstate_dir: %s\nlog_dir: %s\nmetrics_file: %s\n",
		aurURL, filepath.Join(dir, "aur"), filepath.Join(dir, "state"), filepath.Join(dir, "logs"), metricsFile)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	old := configPath
	configPath = path
	t.Cleanup(func() { configPath = old })
	return metricsFile
}

func TestRunResolve_FailureWritesMetrics(t *testing.T) {
	// Arrange
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"version":5,"type":"multiinfo","resultcount":0,"results":[]}`)
	}))
	defer server.Close()
	metricsFile := useConfig(t, server.URL)

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	// Act
	err := runResolve(cmd, []string{"no-such-package"})

	// Assert
	if !errors.Is(err, resolver.ErrPackageNotFound) {
		t.Fatalf("runResolve() error = %v, want ErrPackageNotFound", err)
	}
	data, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	if want := `pmt_resolutions_total{result="failure"} 1`; !strings.Contains(string(data), want) {
		t.Errorf("metrics file missing %q:\n%s", want, data)
	}
}
