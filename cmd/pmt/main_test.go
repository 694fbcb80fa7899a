package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/frederic-klein/pmt/internal/orchestrator"
	"github.com/frederic-klein/pmt/internal/pkg"
)

func TestSearchLine(t *testing.T) {
	p := &pkg.Package{Name: "yay", Version: "12.4.2-1", Votes: 2000, Description: "AUR helper"}

	tests := []struct {
		name  string
		local *pkg.Package
		want  string
	}{
		{"not installed", nil, "aur/yay 12.4.2-1 (+2000)\n    AUR helper\n"},
		{"installed", &pkg.Package{Version: "12.4.2-1"}, "aur/yay 12.4.2-1 (+2000) [installed]\n    AUR helper\n"},
		{"older installed", &pkg.Package{Version: "12.3.0-1"}, "aur/yay 12.4.2-1 (+2000) [installed: 12.3.0-1]\n    AUR helper\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := searchLine(p, tt.local); got != tt.want {
				t.Errorf("searchLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	p := &pkg.Package{
		Name:    "python-foo",
		Base:    "foo",
		Version: "1.0-1",
		Depends: []string{"python", "glibc>=2.38"},
		Votes:   7,
	}

	md := describe(p, "https://aur.archlinux.org/")

	for _, want := range []string{
		"# python-foo 1.0-1\n",
		"- **Package base:** foo\n",
		"- **AUR page:** https://aur.archlinux.org/packages/python-foo\n",
		"- **Depends on:** python, glibc>=2.38\n",
		"- **Maintainer:** orphan\n",
		"- **Votes:** 7\n",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("describe() missing %q in:\n%s", want, md)
		}
	}
	if strings.Contains(md, "Make deps") {
		t.Error("describe() should omit empty fields")
	}
}

func TestReport(t *testing.T) {
	st := &orchestrator.State{Stage: orchestrator.StageCancelled}
	cancelled := &orchestrator.StageError{Stage: orchestrator.StageConfirming, Kind: orchestrator.ErrCancelled}

	if err := report(st, cancelled); err != nil {
		t.Errorf("report(cancelled) = %v, want nil", err)
	}
	if err := report(st, nil); err != nil {
		t.Errorf("report(nil) = %v", err)
	}

	failed := &orchestrator.StageError{Stage: orchestrator.StageBuilding, Package: "a", Kind: orchestrator.ErrBuildFailed, Err: errors.New("exit status 4")}
	if err := report(&orchestrator.State{Stage: orchestrator.StageFailed}, failed); !errors.Is(err, orchestrator.ErrBuildFailed) {
		t.Errorf("report(build failure) = %v, want ErrBuildFailed", err)
	}
}
