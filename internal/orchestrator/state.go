package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/frederic-klein/pmt/internal/pkg"
)

// Stage is a step of the build pipeline.
type Stage int

const (
	StageIdle Stage = iota
	StageConfirming
	StageCancelled
	StageInstallingRepoDeps
	StageReviewing
	StageRejected
	StageBuilding
	StageInstalling
	StageFailed
	StageComplete
)

var stageNames = [...]string{
	StageIdle:               "idle",
	StageConfirming:         "confirming",
	StageCancelled:          "cancelled",
	StageInstallingRepoDeps: "installing repo dependencies",
	StageReviewing:          "reviewing",
	StageRejected:           "rejected",
	StageBuilding:           "building",
	StageInstalling:         "installing",
	StageFailed:             "failed",
	StageComplete:           "complete",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

var (
	ErrCancelled         = errors.New("cancelled by operator")
	ErrRepoDepsFailed    = errors.New("repo dependency install failed")
	ErrRecipeFetchFailed = errors.New("recipe fetch failed")
	ErrReviewRejected    = errors.New("recipe rejected")
	ErrBuildFailed       = errors.New("build failed")
	ErrInstallFailed     = errors.New("install failed")
)

// StageError reports the stage and package at which a run stopped. Kind is
// one of the Err* sentinels; Err is the underlying cause, if any.
type StageError struct {
	Stage   Stage
	Package string
	Kind    error
	Err     error
}

func (e *StageError) Error() string {
	msg := e.Kind.Error()
	if e.Package != "" {
		msg += " for " + e.Package
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// State is the working state of one pipeline run.
type State struct {
	Stage    Stage
	Index    int // zero-based position in the build list
	Total    int
	Current  *pkg.Package
	Built    []string // names built and installed so far
	LogLines []string
	LogPath  string
	Started  time.Time
}

// Elapsed returns the time since the run started.
func (s *State) Elapsed() time.Duration {
	if s.Started.IsZero() {
		return 0
	}
	return time.Since(s.Started)
}

func (s *State) title(verb string) string {
	t := verb + " " + s.Current.Name
	if s.Total > 1 {
		t += fmt.Sprintf(" [%d/%d]", s.Index+1, s.Total)
	}
	return t
}
