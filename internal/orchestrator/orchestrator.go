// Package orchestrator drives a resolved build plan through confirmation,
// repo dependency installation and a review, build, install loop for every
// source package.
//
// A run is fail-fast and not transactional: the first failing stage stops
// the run and nothing already installed is undone.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/frederic-klein/pmt/internal/pkg"
	"github.com/frederic-klein/pmt/internal/resolver"
	"github.com/frederic-klein/pmt/internal/tail"
)

// Builder fetches recipes and builds packages.
type Builder interface {
	FetchRecipe(ctx context.Context, p *pkg.Package) (string, error)
	Build(ctx context.Context, p *pkg.Package, log io.Writer) ([]string, error)
}

// Installer changes the local package database.
type Installer interface {
	InstallBatch(ctx context.Context, names []string, asDeps bool, log io.Writer) error
	InstallArtifacts(ctx context.Context, paths []string, overwrite bool, log io.Writer) error
	Reload(ctx context.Context) error
}

// Gate asks the operator and shows progress. All methods block.
type Gate interface {
	Confirm(title string, lines []string) bool
	// ReviewRecipe shows newText, as a diff when oldText is not empty.
	ReviewRecipe(name, newText, oldText string) bool
	ShowProgress(title string, lines []string, finished bool, elapsed time.Duration)
}

// ReviewStore keeps the last accepted recipe per build unit.
type ReviewStore interface {
	Get(base string) (string, bool, error)
	Put(base, text string) error
}

// Recorder observes stage outcomes.
type Recorder interface {
	StageDone(stage string, d time.Duration, err error)
}

// Config configures an Orchestrator.
type Config struct {
	LogDir       string        // build logs are written here
	PollInterval time.Duration // log tail interval; defaults to 100ms
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.rec = r }
}

// Orchestrator executes build plans. A single Orchestrator runs one plan at
// a time.
type Orchestrator struct {
	cfg     Config
	builder Builder
	inst    Installer
	gate    Gate
	store   ReviewStore
	logger  *slog.Logger
	rec     Recorder
}

// New creates an Orchestrator.
func New(cfg Config, b Builder, inst Installer, gate Gate, store ReviewStore, opts ...Option) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.LogDir == "" {
		cfg.LogDir = os.TempDir()
	}
	o := &Orchestrator{
		cfg:     cfg,
		builder: b,
		inst:    inst,
		gate:    gate,
		store:   store,
		logger:  slog.New(slog.DiscardHandler),
		rec:     nopRecorder{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Request is one pipeline run.
type Request struct {
	Result *resolver.Result
	// Summary names what is being installed in the completion message.
	Summary string
	// Title and Lines override the confirmation dialog.
	Title string
	Lines []string
}

// run is the per-call working set.
type run struct {
	st     *State
	log    *os.File
	follow *tail.Follower
}

// Run executes the plan in req. The returned State is valid even when err
// is not nil.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*State, error) {
	res, summary := req.Result, req.Summary
	st := &State{Total: len(res.BuildOrder)}
	if st.Total == 0 {
		st.Stage = StageComplete
		return st, nil
	}

	title, lines := req.Title, req.Lines
	if title == "" {
		title = "Install AUR Package"
	}
	if len(lines) == 0 {
		lines = ConfirmLines(res)
	}

	st.Stage = StageConfirming
	if !o.gate.Confirm(title, lines) {
		st.Stage = StageCancelled
		return st, &StageError{Stage: StageConfirming, Kind: ErrCancelled}
	}

	r, err := o.open(st)
	if err != nil {
		st.Stage = StageFailed
		return st, err
	}
	defer r.close()

	st.Started = time.Now()

	if len(res.RepoDeps) > 0 {
		if err := o.installRepoDeps(ctx, r, res.RepoDeps); err != nil {
			return st, o.fail(r, "Installing dependencies", err)
		}
	}

	for i, p := range res.BuildOrder {
		st.Index, st.Current = i, p

		if err := o.review(ctx, r, p); err != nil {
			if errors.Is(err, ErrReviewRejected) {
				st.Stage = StageRejected
				return st, err
			}
			return st, o.fail(r, st.title("Building"), err)
		}
		if err := o.buildAndInstall(ctx, r, p); err != nil {
			return st, o.fail(r, st.title("Building"), err)
		}
		st.Built = append(st.Built, p.Name)
	}

	st.Stage = StageComplete
	msg := "Successfully built and installed " + summary
	if st.Total > 1 {
		msg += fmt.Sprintf(" (%d AUR packages)", st.Total)
	}
	r.note("", "=== Build complete ===", msg)
	o.show(r, "Build complete: "+summary, true)
	o.logger.Info("build complete", "packages", st.Built, "elapsed", st.Elapsed().Round(time.Second))
	return st, nil
}

func (o *Orchestrator) open(st *State) (*run, error) {
	if err := os.MkdirAll(o.cfg.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	st.LogPath = filepath.Join(o.cfg.LogDir, "pmt-build-"+uuid.NewString()+".log")
	f, err := os.OpenFile(st.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating build log: %w", err)
	}
	fl, err := tail.Open(st.LogPath)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &run{st: st, log: f, follow: fl}, nil
}

func (r *run) close() {
	r.follow.Close()
	r.log.Close()
}

// note appends lines to the build log. Only called while no worker runs.
func (r *run) note(lines ...string) {
	for _, l := range lines {
		fmt.Fprintln(r.log, l)
	}
	r.drain()
}

func (r *run) drain() {
	lines, _ := r.follow.Flush()
	r.st.LogLines = append(r.st.LogLines, lines...)
}

func (o *Orchestrator) installRepoDeps(ctx context.Context, r *run, deps []string) error {
	r.st.Stage = StageInstallingRepoDeps
	r.note("=== Installing repo dependencies ===")

	start := time.Now()
	err := o.tailed(ctx, r, "Installing dependencies", func(w io.Writer) error {
		return o.inst.InstallBatch(ctx, deps, true, w)
	})
	o.rec.StageDone("repo_deps", time.Since(start), err)
	if err != nil {
		r.note("FAILED to install repo dependencies")
		return &StageError{Stage: StageInstallingRepoDeps, Kind: ErrRepoDepsFailed, Err: err}
	}
	return nil
}

func (o *Orchestrator) review(ctx context.Context, r *run, p *pkg.Package) error {
	r.st.Stage = StageReviewing
	base := p.BaseName()
	start := time.Now()

	text, err := o.builder.FetchRecipe(ctx, p)
	if err == nil && text == "" {
		err = errors.New("empty recipe")
	}
	if err != nil {
		o.rec.StageDone("review", time.Since(start), err)
		return &StageError{Stage: StageReviewing, Package: p.Name, Kind: ErrRecipeFetchFailed, Err: err}
	}

	old, _, err := o.store.Get(base)
	if err != nil {
		o.logger.Warn("reading reviewed recipe", "base", base, "error", err)
	}
	// an unchanged recipe is shown in full rather than as an empty diff
	if old == text {
		old = ""
	}

	if !o.gate.ReviewRecipe(p.Name, text, old) {
		err := &StageError{Stage: StageReviewing, Package: p.Name, Kind: ErrReviewRejected}
		o.rec.StageDone("review", time.Since(start), err)
		return err
	}
	o.rec.StageDone("review", time.Since(start), nil)

	if err := o.store.Put(base, text); err != nil {
		o.logger.Warn("saving reviewed recipe", "base", base, "error", err)
	}
	return nil
}

func (o *Orchestrator) buildAndInstall(ctx context.Context, r *run, p *pkg.Package) error {
	st := r.st
	title := st.title("Building")

	st.Stage = StageBuilding
	r.note("", "=== Building "+p.Name+" ===")

	var artifacts []string
	start := time.Now()
	err := o.tailed(ctx, r, title, func(w io.Writer) error {
		var err error
		artifacts, err = o.builder.Build(ctx, p, w)
		if err == nil && len(artifacts) == 0 {
			err = errors.New("no package produced")
		}
		return err
	})
	o.rec.StageDone("build", time.Since(start), err)
	if err != nil {
		r.note("", "BUILD FAILED for "+p.Name)
		return &StageError{Stage: StageBuilding, Package: p.Name, Kind: ErrBuildFailed, Err: err}
	}
	o.logger.Debug("built", "package", p.Name, "artifacts", artifacts)

	st.Stage = StageInstalling
	r.note("", "=== Installing "+p.Name+" ===")

	start = time.Now()
	err = o.tailed(ctx, r, title+" (installing)", func(w io.Writer) error {
		return o.inst.InstallArtifacts(ctx, artifacts, true, w)
	})
	if err == nil {
		if rerr := o.inst.Reload(ctx); rerr != nil {
			err = fmt.Errorf("reloading package database: %w", rerr)
		}
	}
	o.rec.StageDone("install", time.Since(start), err)
	if err != nil {
		r.note("INSTALL FAILED for " + p.Name)
		return &StageError{Stage: StageInstalling, Package: p.Name, Kind: ErrInstallFailed, Err: err}
	}
	return nil
}

// tailed runs fn on a worker goroutine writing to the build log while the
// caller's goroutine follows the log and reports progress. The final bytes
// are read only after the worker has returned.
func (o *Orchestrator) tailed(ctx context.Context, r *run, title string, fn func(io.Writer) error) error {
	return r.follow.Follow(ctx, o.cfg.PollInterval, func() error {
		return fn(r.log)
	}, func(lines []string) {
		r.st.LogLines = append(r.st.LogLines, lines...)
		o.show(r, title, false)
	})
}

func (o *Orchestrator) fail(r *run, title string, err error) error {
	r.st.Stage = StageFailed
	o.show(r, title+" - FAILED", true)
	var se *StageError
	if errors.As(err, &se) {
		o.logger.Error("pipeline stopped", "stage", se.Stage, "package", se.Package, "log", r.st.LogPath, "error", se.Err)
	}
	return err
}

func (o *Orchestrator) show(r *run, title string, finished bool) {
	o.gate.ShowProgress(title, r.st.LogLines, finished, r.st.Elapsed())
}

// ConfirmLines summarises a plan for the confirmation dialog.
func ConfirmLines(res *resolver.Result) []string {
	var lines []string
	if n := len(res.BuildOrder); n > 1 {
		lines = append(lines, fmt.Sprintf("AUR packages to build (%d):", n))
		for _, p := range res.BuildOrder {
			lines = append(lines, "  "+p.Name+" "+p.Version)
		}
	} else if n == 1 {
		p := res.BuildOrder[0]
		lines = append(lines, "Package: aur/"+p.Name+" "+p.Version)
	}
	if n := len(res.RepoDeps); n > 0 {
		lines = append(lines, fmt.Sprintf("Repo dependencies: %d (%s)", n, strings.Join(res.RepoDeps, " ")))
	}
	if n := len(res.SatisfiedDeps); n > 0 {
		lines = append(lines, fmt.Sprintf("Already installed: %d", n))
	}
	return lines
}

type nopRecorder struct{}

func (nopRecorder) StageDone(string, time.Duration, error) {}
