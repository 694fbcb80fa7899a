// Package config loads pmt's configuration file and resolves default paths.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultAURURL is the public AUR.
const DefaultAURURL = "https://aur.archlinux.org"

// Config holds every setting. Zero values are replaced by Default.
type Config struct {
	AURURL          string        `yaml:"aur_url" validate:"required,http_url"`
	CacheDir        string        `yaml:"cache_dir" validate:"required"`
	StateDir        string        `yaml:"state_dir" validate:"required"`
	LogDir          string        `yaml:"log_dir" validate:"required"`
	FetchMethod     string        `yaml:"fetch_method" validate:"oneof=git snapshot"`
	UsePTY          bool          `yaml:"use_pty"`
	RPCRate         float64       `yaml:"rpc_rate" validate:"gte=0"`
	RPCWorkers      int           `yaml:"rpc_workers" validate:"gte=1,lte=16"`
	DownloadWorkers int           `yaml:"download_workers" validate:"gte=1,lte=32"`
	ProbeTimeout    time.Duration `yaml:"probe_timeout" validate:"gt=0"`
	MakeJobs        int           `yaml:"make_jobs" validate:"gte=0"`
	MetricsFile     string        `yaml:"metrics_file"`
	PacmanBin       string        `yaml:"pacman_bin" validate:"required"`
	MakepkgBin      string        `yaml:"makepkg_bin" validate:"required"`
	GitBin          string        `yaml:"git_bin" validate:"required"`
	SudoBin         string        `yaml:"sudo_bin"`
}

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their key in the file
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
	})
	return v
}()

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	home := HomeDir()
	return &Config{
		AURURL:          DefaultAURURL,
		CacheDir:        filepath.Join(home, ".cache", "pmt", "aur"),
		StateDir:        filepath.Join(home, ".cache", "pmt"),
		LogDir:          os.TempDir(),
		FetchMethod:     "git",
		RPCRate:         10,
		RPCWorkers:      4,
		DownloadWorkers: 4,
		ProbeTimeout:    2 * time.Minute,
		PacmanBin:       "pacman",
		MakepkgBin:      "makepkg",
		GitBin:          "git",
		SudoBin:         "sudo",
	}
}

// Load reads path over the defaults. An empty path loads DefaultPath and
// tolerates its absence; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// an empty file decodes to io.EOF
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expand()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints. Call it again after applying flag
// overrides.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed %q", fe.Field(), fe.Tag())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
		}
		return err
	}
	return nil
}

// ReviewDir is where accepted recipes are stored.
func (c *Config) ReviewDir() string {
	return filepath.Join(c.StateDir, "reviewed")
}

// SnapshotDir is where downloaded recipe snapshots are cached.
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.StateDir, "downloads")
}

func (c *Config) expand() {
	for _, p := range []*string{&c.CacheDir, &c.StateDir, &c.LogDir, &c.MetricsFile} {
		*p = ExpandHome(*p)
	}
	c.AURURL = strings.TrimSuffix(c.AURURL, "/")
}

// DefaultPath returns $XDG_CONFIG_HOME/pmt/config.yaml, falling back to
// ~/.config.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "pmt", "config.yaml")
	}
	return filepath.Join(HomeDir(), ".config", "pmt", "config.yaml")
}

// HomeDir returns the home directory of the invoking user. Under sudo that
// is $SUDO_USER's home, not root's.
func HomeDir() string {
	if os.Geteuid() == 0 {
		if name := os.Getenv("SUDO_USER"); name != "" {
			if u, err := user.Lookup(name); err == nil && u.HomeDir != "" {
				return u.HomeDir
			}
		}
	}
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	return os.TempDir()
}

// ExpandHome replaces a leading ~/ with HomeDir.
func ExpandHome(p string) string {
	if p == "~" {
		return HomeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(HomeDir(), p[2:])
	}
	return p
}
