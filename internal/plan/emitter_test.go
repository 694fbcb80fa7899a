package plan

import (
	"bytes"
	"errors"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/frederic-klein/pmt/internal/pkg"
	"github.com/frederic-klein/pmt/internal/resolver"
)

func TestEmitter_Emit(t *testing.T) {
	tests := []struct {
		name  string
		roots []string
		res   *resolver.Result
		want  string
	}{
		{
			name:  "nothing to do",
			roots: []string{"foo"},
			res:   &resolver.Result{},
			want:  "# pmt build plan: version 1\nROOTS foo\nBUILD\n",
		},
		{
			name:  "classification example",
			roots: []string{"myapp"},
			res: &resolver.Result{
				BuildOrder: []*pkg.Package{
					{Name: "libfoo", Version: "1.0-1"},
					{
						Name:        "myapp",
						Version:     "2.0-1",
						Depends:     []string{"libfoo", "pkgconfig>=1.0"},
						MakeDepends: []string{"cmake"},
					},
				},
				RepoDeps: []string{"pkgconfig>=1.0", "cmake"},
			},
			want: `# pmt build plan: version 1
ROOTS myapp
BUILD
  1. libfoo 1.0-1
  2. myapp 2.0-1
    depends:
      libfoo
      pkgconfig>=1.0
    makedepends:
      cmake
REPO
  pkgconfig>=1.0
  cmake
`,
		},
		{
			name:  "split package",
			roots: []string{"foo-bin", "bar"},
			res: &resolver.Result{
				BuildOrder:    []*pkg.Package{{Name: "foo-bin", Version: "1-1", Base: "foo"}},
				SatisfiedDeps: []string{"glibc"},
			},
			want: `# pmt build plan: version 1
ROOTS foo-bin bar
BUILD
  1. foo-bin 1-1
    base: foo
SATISFIED
  glibc
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewEmitter(&buf, FormatText).Emit(tt.roots, tt.res); err != nil {
				t.Fatalf("Emit() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Emit() =\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestEmitter_EmitYAML(t *testing.T) {
	res := &resolver.Result{
		BuildOrder: []*pkg.Package{
			{Name: "libfoo", Version: "1.0-1", Base: "libfoo"},
			{Name: "foo-bin", Version: "2-1", Base: "foo", Depends: []string{"libfoo"}},
		},
		RepoDeps: []string{"cmake"},
	}

	var buf bytes.Buffer
	if err := NewEmitter(&buf, FormatYAML).Emit([]string{"foo-bin"}, res); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	want := `roots:
  - foo-bin
build:
  - name: libfoo
    version: 1.0-1
  - name: foo-bin
    version: 2-1
    base: foo
    depends:
      - libfoo
repo_deps:
  - cmake
`
	if got := buf.String(); got != want {
		t.Errorf("Emit() =\n%s\nwant:\n%s", got, want)
	}

	var doc Document
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if len(doc.Build) != 2 || doc.Build[1].Base != "foo" {
		t.Errorf("decoded build = %+v", doc.Build)
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestEmitter_WriteError(t *testing.T) {
	res := &resolver.Result{BuildOrder: []*pkg.Package{{Name: "a"}}}
	if err := NewEmitter(failWriter{}, FormatText).Emit([]string{"a"}, res); err == nil {
		t.Error("Emit() should report write errors")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"YAML", FormatYAML, false},
		{"json", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
