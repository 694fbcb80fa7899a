package pacman

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frederic-klein/pmt/internal/runner"
)

type exitErr int

func (e exitErr) Error() string { return fmt.Sprintf("exit status %d", int(e)) }
func (e exitErr) ExitCode() int { return int(e) }

// fakePacman answers from fixed tables and records every invocation.
type fakePacman struct {
	installed map[string]bool // dependency strings pacman -T accepts
	repo      map[string]string
	query     map[string]string // flag -> output
	fail      map[string]error  // first argument -> error
	calls     []string
}

func (f *fakePacman) Run(_ context.Context, c runner.Command) error {
	f.calls = append(f.calls, c.String())

	args := c.Args
	if c.Name == "sudo" {
		args = args[1:]
	}
	if err := f.fail[args[0]]; err != nil {
		return err
	}

	switch args[0] {
	case "-T":
		if f.installed[args[1]] {
			return nil
		}
		return exitErr(exitUnsatisfied)
	case "-Sp":
		name, ok := f.repo[args[len(args)-1]]
		if !ok {
			return exitErr(1)
		}
		fmt.Fprintln(c.Stdout, name)
		return nil
	case "-Q", "-Qm":
		out := f.query[args[0]]
		if out == "" {
			return exitErr(1)
		}
		fmt.Fprint(c.Stdout, out)
		return nil
	}
	return nil
}

func (f *fakePacman) count(prefix string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func TestClient_IsSatisfied(t *testing.T) {
	fake := &fakePacman{installed: map[string]bool{"glibc": true, "git>=2.0": true}}
	c := New(Config{}, fake, nil)
	ctx := context.Background()

	tests := []struct {
		dep  string
		want bool
	}{
		{"glibc", true},
		{"git>=2.0", true},
		{"libfoo", false},
	}
	for _, tt := range tests {
		t.Run(tt.dep, func(t *testing.T) {
			got, err := c.IsSatisfied(ctx, tt.dep)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_IsSatisfied_Memoised(t *testing.T) {
	fake := &fakePacman{installed: map[string]bool{}}
	c := New(Config{}, fake, nil)
	ctx := context.Background()

	for range 3 {
		ok, err := c.IsSatisfied(ctx, "libfoo")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 1, fake.count("pacman -T"))

	// an install flips the answer once the view is reloaded
	fake.installed["libfoo"] = true
	require.NoError(t, c.Reload(ctx))

	ok, err := c.IsSatisfied(ctx, "libfoo")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, fake.count("pacman -T"))
}

func TestClient_IsSatisfied_Error(t *testing.T) {
	fake := &fakePacman{fail: map[string]error{"-T": errors.New("exec: pacman not found")}}
	c := New(Config{}, fake, nil)

	_, err := c.IsSatisfied(context.Background(), "glibc")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "glibc")
}

func TestClient_InRepos(t *testing.T) {
	fake := &fakePacman{repo: map[string]string{"cmake": "cmake", "pkgconfig>=1.0": "pkgconf"}}
	c := New(Config{}, fake, nil)
	ctx := context.Background()

	ok, err := c.InRepos(ctx, "pkgconfig>=1.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.InRepos(ctx, "libfoo")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _ = c.InRepos(ctx, "libfoo")
	assert.Equal(t, 2, fake.count("pacman -Sp"), "negative answers are memoised too")
}

func TestClient_InstallBatch(t *testing.T) {
	fake := &fakePacman{}
	c := New(Config{SudoBin: "sudo"}, fake, nil)

	err := c.InstallBatch(context.Background(), []string{"cmake", "pkgconfig>=1.0"}, true, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"sudo pacman -S --needed --noconfirm --asdeps cmake pkgconfig>=1.0"}, fake.calls)
}

func TestClient_InstallBatch_Empty(t *testing.T) {
	fake := &fakePacman{}
	c := New(Config{}, fake, nil)

	require.NoError(t, c.InstallBatch(context.Background(), nil, true, nil))
	assert.Empty(t, fake.calls)
}

func TestClient_InstallArtifacts(t *testing.T) {
	fake := &fakePacman{}
	c := New(Config{}, fake, nil)

	err := c.InstallArtifacts(context.Background(), []string{"/c/foo-bin-1.0-1-x86_64.pkg.tar.zst"}, true, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"pacman -U --noconfirm --overwrite * /c/foo-bin-1.0-1-x86_64.pkg.tar.zst"}, fake.calls)
}

func TestClient_InstallArtifacts_Failure(t *testing.T) {
	fake := &fakePacman{fail: map[string]error{"-U": exitErr(1)}}
	c := New(Config{}, fake, nil)

	err := c.InstallArtifacts(context.Background(), []string{"/c/x.pkg.tar.zst"}, false, nil)

	require.Error(t, err)
	assert.Equal(t, 1, runner.ExitCode(err))
}

func TestClient_ListForeign(t *testing.T) {
	fake := &fakePacman{query: map[string]string{
		"-Qm": "yay 12.4.2-1\nfoo-bin 1.0-1\nwarning: database file for 'extra' does not exist\n",
	}}
	c := New(Config{}, fake, nil)

	pkgs, err := c.ListForeign(context.Background())

	require.NoError(t, err)
	require.Len(t, pkgs, 2)
	assert.Equal(t, "yay", pkgs[0].Name)
	assert.Equal(t, "12.4.2-1", pkgs[0].Version)
	assert.Equal(t, "foo-bin", pkgs[1].Name)
}

func TestClient_ListForeign_None(t *testing.T) {
	c := New(Config{}, &fakePacman{}, nil)

	pkgs, err := c.ListForeign(context.Background())

	require.NoError(t, err)
	assert.Empty(t, pkgs)
}

func TestClient_Installed(t *testing.T) {
	fake := &fakePacman{query: map[string]string{"-Q": "glibc 2.40-1\nyay 12.4.2-1\n"}}
	c := New(Config{}, fake, nil)

	installed, err := c.Installed(context.Background())

	require.NoError(t, err)
	assert.Len(t, installed, 2)
	assert.Equal(t, "2.40-1", installed["glibc"].Version)
}

func TestClient_CompareVersions(t *testing.T) {
	c := New(Config{}, &fakePacman{}, nil)
	assert.Equal(t, -1, c.CompareVersions("1.0-1", "1.0-2"))
	assert.Equal(t, 1, c.CompareVersions("1:0.1", "9.9"))
	assert.Equal(t, 0, c.CompareVersions("2.0", "2.0"))
}
