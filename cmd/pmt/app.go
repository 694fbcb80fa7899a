package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/frederic-klein/pmt/internal/aur"
	"github.com/frederic-klein/pmt/internal/config"
	"github.com/frederic-klein/pmt/internal/makepkg"
	"github.com/frederic-klein/pmt/internal/metrics"
	"github.com/frederic-klein/pmt/internal/orchestrator"
	"github.com/frederic-klein/pmt/internal/pacman"
	"github.com/frederic-klein/pmt/internal/resolver"
	"github.com/frederic-klein/pmt/internal/review"
	"github.com/frederic-klein/pmt/internal/runner"
	"github.com/frederic-klein/pmt/internal/ui"
)

// app is the wired set of components shared by the subcommands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	aur      *aur.Client
	pacman   *pacman.Client
	builder  *makepkg.Builder
	resolver *resolver.Resolver
	gate     ui.Gate
	metrics  *metrics.Metrics

	store *review.Store // opened by withStore
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if aurURL != "" {
		cfg.AURURL = aurURL
	}
	if cacheDir != "" {
		cfg.CacheDir = config.ExpandHome(cacheDir)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp wires the components. With build set, it refuses to run as root
// without a sudo caller to build as.
func newApp(build bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger()

	buildUser, err := runner.BuildUser()
	if err != nil && build {
		return nil, err
	}
	sudo := runner.SudoBin(cfg.SudoBin)

	a := &app{
		cfg:    cfg,
		logger: logger,
		aur: aur.NewClient(cfg.AURURL,
			aur.WithRateLimit(cfg.RPCRate, cfg.RPCWorkers),
			aur.WithWorkers(cfg.RPCWorkers),
		),
		pacman: pacman.New(pacman.Config{
			PacmanBin: cfg.PacmanBin,
			SudoBin:   sudo,
		}, &runner.Exec{SudoBin: sudo, Logger: logger}, logger),
		builder: makepkg.New(makepkg.Config{
			CacheDir:     cfg.CacheDir,
			AURURL:       cfg.AURURL,
			FetchMethod:  makepkg.FetchMethod(cfg.FetchMethod),
			ProbeTimeout: cfg.ProbeTimeout,
			MakepkgBin:   cfg.MakepkgBin,
			GitBin:       cfg.GitBin,
			Jobs:         cfg.MakeJobs,
			Owner:        buildUser,
		}, &runner.Exec{User: buildUser, SudoBin: sudo, UsePTY: cfg.UsePTY, Logger: logger}, logger),
		gate:    ui.New(noConfirm, logger),
		metrics: metrics.New(),
	}
	a.resolver = resolver.New(a.aur, a.pacman)
	return a, nil
}

// withStore opens the review store.
func (a *app) withStore() error {
	cfg := review.DefaultConfig(a.cfg.ReviewDir())
	cfg.Logger = a.logger
	store, err := review.Open(cfg)
	if err != nil {
		return fmt.Errorf("opening review store: %w", err)
	}
	a.store = store
	return nil
}

func (a *app) orchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(
		orchestrator.Config{LogDir: a.cfg.LogDir},
		a.builder, a.pacman, a.gate, a.store,
		orchestrator.WithLogger(a.logger),
		orchestrator.WithRecorder(a.metrics),
	)
}

// close releases the store and writes the metrics textfile when configured.
func (a *app) close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.cfg.MetricsFile != "" {
		errs = append(errs, a.metrics.WriteTextfile(a.cfg.MetricsFile))
	}
	return errors.Join(errs...)
}

func (a *app) logEvents(events []resolver.Event) {
	for _, e := range events {
		a.logger.Debug(e.String(), "kind", e.Kind)
	}
}
