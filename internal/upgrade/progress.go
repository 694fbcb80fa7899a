package upgrade

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/frederic-klein/pmt/internal/tail"
)

const probePollInterval = 100 * time.Millisecond

// Progress displays the probe log while VCS packages are checked.
type Progress interface {
	ShowProgress(title string, lines []string, finished bool, elapsed time.Duration)
}

// WithProgress shows probe output through p. The output is tailed from a
// temporary file in logDir that is removed when the scan ends.
func WithProgress(p Progress, logDir string) Option {
	return func(s *Scanner) {
		s.progress = p
		s.logDir = logDir
	}
}

// probeView follows the probe log of one scan.
type probeView struct {
	progress Progress
	log      *os.File
	follow   *tail.Follower
	lines    []string
	started  time.Time
}

func openProbeView(p Progress, dir string) (*probeView, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "pmt-probe-*.log")
	if err != nil {
		return nil, fmt.Errorf("creating probe log: %w", err)
	}
	fl, err := tail.Open(f.Name())
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &probeView{progress: p, log: f, follow: fl, started: time.Now()}, nil
}

// run calls fn with a writer into the probe log and shows the log under
// title until fn returns.
func (v *probeView) run(ctx context.Context, title string, extra io.Writer, fn func(io.Writer)) {
	w := io.MultiWriter(v.log, extra)
	// work never fails; probe errors are read from fn's results
	_ = v.follow.Follow(ctx, probePollInterval, func() error {
		fn(w)
		return nil
	}, func(lines []string) {
		v.lines = append(v.lines, lines...)
		v.progress.ShowProgress(title, v.lines, false, time.Since(v.started))
	})
}

func (v *probeView) finish(title string) {
	v.progress.ShowProgress(title, v.lines, true, time.Since(v.started))
}

func (v *probeView) close() {
	v.follow.Close()
	v.log.Close()
	os.Remove(v.log.Name())
}
