package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SUDO_USER", "")
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "xdg"))
	return home
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	home := setHome(t)

	cfg := Default()

	assert.Equal(t, DefaultAURURL, cfg.AURURL)
	assert.Equal(t, filepath.Join(home, ".cache", "pmt", "aur"), cfg.CacheDir)
	assert.Equal(t, filepath.Join(home, ".cache", "pmt", "reviewed"), cfg.ReviewDir())
	assert.Equal(t, "git", cfg.FetchMethod)
	assert.Equal(t, 2*time.Minute, cfg.ProbeTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingDefaultFile(t *testing.T) {
	setHome(t)

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	setHome(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.Error(t, err)
}

func TestLoad_DefaultPath(t *testing.T) {
	home := setHome(t)
	path := filepath.Join(home, "xdg", "pmt", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("rpc_workers: 2\n"), 0644))

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, path, DefaultPath())
	assert.Equal(t, 2, cfg.RPCWorkers)
}

func TestLoad_Overrides(t *testing.T) {
	// Arrange
	home := setHome(t)
	path := writeConfig(t, `
aur_url: https://aur.example.org/
cache_dir: ~/build
fetch_method: snapshot
use_pty: true
probe_timeout: 45s
make_jobs: 8
metrics_file: /var/lib/node_exporter/pmt.prom
`)

	// Act
	cfg, err := Load(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "https://aur.example.org", cfg.AURURL)
	assert.Equal(t, filepath.Join(home, "build"), cfg.CacheDir)
	assert.Equal(t, "snapshot", cfg.FetchMethod)
	assert.True(t, cfg.UsePTY)
	assert.Equal(t, 45*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 8, cfg.MakeJobs)
	assert.Equal(t, "/var/lib/node_exporter/pmt.prom", cfg.MetricsFile)
	// untouched keys keep their defaults
	assert.Equal(t, "pacman", cfg.PacmanBin)
	assert.Equal(t, 4, cfg.RPCWorkers)
}

func TestLoad_EmptyFile(t *testing.T) {
	setHome(t)

	cfg, err := Load(writeConfig(t, ""))

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Invalid(t *testing.T) {
	setHome(t)
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "cache_dri: /tmp\n", "field cache_dri not found"},
		{"bad fetch method", "fetch_method: rsync\n", `fetch_method: failed "oneof"`},
		{"bad url", "aur_url: not a url\n", `aur_url: failed "http_url"`},
		{"too many workers", "rpc_workers: 100\n", `rpc_workers: failed "lte"`},
		{"bad duration", "probe_timeout: soon\n", "parsing"},
		{"empty binary", "pacman_bin: \"\"\n", `pacman_bin: failed "required"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHomeDir_SudoUser(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("SUDO_USER is only honoured as root")
	}
	t.Setenv("HOME", "/root")
	t.Setenv("SUDO_USER", "root")

	assert.Equal(t, "/root", HomeDir())
}

func TestExpandHome(t *testing.T) {
	home := setHome(t)

	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, filepath.Join(home, "x", "y"), ExpandHome("~/x/y"))
	assert.Equal(t, "/abs", ExpandHome("/abs"))
	assert.Equal(t, "~user/x", ExpandHome("~user/x"))
}
