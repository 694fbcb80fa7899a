package aur

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

var fixtures = map[string]rpcPackage{
	"yay": {
		Name: "yay", Version: "12.4.2-1", PackageBase: "yay",
		Depends: []string{"pacman>6.1", "git"}, MakeDepends: []string{"go>=1.21"},
	},
	"foo-bin": {Name: "foo-bin", Version: "1.0-1", PackageBase: "foo"},
	"foo-doc": {Name: "foo-doc", Version: "1.0-1", PackageBase: "foo"},
	"provider-y": {
		Name: "provider-y", Version: "2.0-1", Provides: []string{"virtual-y=2.0"},
	},
}

func newTestServer(t *testing.T, requests *[]string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		if requests != nil {
			*requests = append(*requests, r.URL.String())
		}
		mu.Unlock()

		resp := rpcResponse{Version: 5, Type: "multiinfo"}
		switch {
		case r.URL.Path == "/rpc/v5/info":
			for _, name := range r.URL.Query()["arg[]"] {
				if p, ok := fixtures[name]; ok {
					resp.Results = append(resp.Results, p)
				}
			}
		case strings.HasPrefix(r.URL.Path, "/rpc/v5/search/"):
			resp.Type = "search"
			query := strings.TrimPrefix(r.URL.Path, "/rpc/v5/search/")
			if query == "broken" {
				resp = rpcResponse{Type: "error", Error: "Too many package results."}
				break
			}
			for _, p := range fixtures {
				if r.URL.Query().Get("by") == string(ByProvides) {
					for _, prov := range p.Provides {
						if strings.HasPrefix(prov, query) {
							resp.Results = append(resp.Results, p)
						}
					}
				} else if strings.Contains(p.Name, query) {
					resp.Results = append(resp.Results, p)
				}
			}
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		resp.ResultCount = len(resp.Results)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestClient_Info(t *testing.T) {
	server := newTestServer(t, nil)
	defer server.Close()

	c := NewClient(server.URL)

	tests := []struct {
		name      string
		pkg       string
		wantFound bool
		wantBase  string
	}{
		{"found", "yay", true, "yay"},
		{"split package", "foo-doc", true, "foo"},
		{"not found", "does-not-exist", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			p, err := c.Info(context.Background(), tt.pkg)

			// Assert
			if err != nil {
				t.Fatalf("Info() error = %v", err)
			}
			if (p != nil) != tt.wantFound {
				t.Fatalf("Info(%q) found = %v, want %v", tt.pkg, p != nil, tt.wantFound)
			}
			if p != nil && p.BaseName() != tt.wantBase {
				t.Errorf("BaseName() = %q, want %q", p.BaseName(), tt.wantBase)
			}
		})
	}
}

func TestClient_Info_Fields(t *testing.T) {
	server := newTestServer(t, nil)
	defer server.Close()

	p, err := NewClient(server.URL).Info(context.Background(), "yay")
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if p.Version != "12.4.2-1" {
		t.Errorf("Version = %q, want 12.4.2-1", p.Version)
	}
	if len(p.Depends) != 2 || p.Depends[0] != "pacman>6.1" {
		t.Errorf("Depends = %v", p.Depends)
	}
	if len(p.MakeDepends) != 1 || p.MakeDepends[0] != "go>=1.21" {
		t.Errorf("MakeDepends = %v", p.MakeDepends)
	}
	if p.Source != "aur" {
		t.Errorf("Source = %q, want aur", p.Source)
	}
}

func TestClient_InfoBatch_OmitsUnknown(t *testing.T) {
	var requests []string
	server := newTestServer(t, &requests)
	defer server.Close()

	c := NewClient(server.URL)
	pkgs, err := c.InfoBatch(context.Background(), []string{"yay", "virtual-y", "foo-bin"})
	if err != nil {
		t.Fatalf("InfoBatch() error = %v", err)
	}

	if len(pkgs) != 2 {
		t.Fatalf("got %d packages, want 2", len(pkgs))
	}
	if len(requests) != 1 {
		t.Errorf("server saw %d requests, want 1", len(requests))
	}
}

func TestClient_InfoBatch_Empty(t *testing.T) {
	c := NewClient("http://127.0.0.1:0")
	pkgs, err := c.InfoBatch(context.Background(), nil)
	if err != nil || pkgs != nil {
		t.Errorf("InfoBatch(nil) = %v, %v; want nil, nil", pkgs, err)
	}
}

func TestClient_InfoBatch_SplitsLongRequests(t *testing.T) {
	var requests []string
	server := newTestServer(t, &requests)
	defer server.Close()

	names := []string{"yay"}
	for i := 0; i < 400; i++ {
		names = append(names, fmt.Sprintf("some-long-package-name-%03d", i))
	}
	names = append(names, "foo-doc")

	pkgs, err := NewClient(server.URL, WithWorkers(2)).InfoBatch(context.Background(), names)
	if err != nil {
		t.Fatalf("InfoBatch() error = %v", err)
	}

	if len(requests) < 2 {
		t.Errorf("server saw %d requests, want the batch split", len(requests))
	}
	for _, r := range requests {
		if len(r) > maxURLLen {
			t.Errorf("request URL length %d exceeds %d", len(r), maxURLLen)
		}
	}
	if len(pkgs) != 2 || pkgs[0].Name != "yay" || pkgs[1].Name != "foo-doc" {
		t.Errorf("InfoBatch() = %v, want [yay foo-doc] in request order", pkgs)
	}
}

func TestChunkInfoPaths_CountsBaseURL(t *testing.T) {
	// Arrange
	baseURL := "https://mirror.example.org/" + strings.Repeat("aur/", 250)
	var names []string
	for i := 0; i < 200; i++ {
		names = append(names, fmt.Sprintf("some-long-package-name-%03d", i))
	}

	// Act
	paths := chunkInfoPaths(baseURL, names)

	// Assert
	if len(paths) < 2 {
		t.Fatalf("chunkInfoPaths() = %d paths, want the batch split", len(paths))
	}
	count := 0
	for _, p := range paths {
		if n := len(baseURL + p); n > maxURLLen {
			t.Errorf("request URL length %d exceeds %d", n, maxURLLen)
		}
		count += strings.Count(p, "arg[]=")
	}
	if count != len(names) {
		t.Errorf("chunks carry %d names, want %d", count, len(names))
	}
}

func TestClient_SearchByProvides(t *testing.T) {
	server := newTestServer(t, nil)
	defer server.Close()

	pkgs, err := NewClient(server.URL).SearchByProvides(context.Background(), "virtual-y")
	if err != nil {
		t.Fatalf("SearchByProvides() error = %v", err)
	}
	if len(pkgs) != 1 || pkgs[0].Name != "provider-y" {
		t.Errorf("SearchByProvides() = %v, want [provider-y]", pkgs)
	}
}

func TestClient_Search_RPCError(t *testing.T) {
	server := newTestServer(t, nil)
	defer server.Close()

	_, err := NewClient(server.URL).Search(context.Background(), "broken", ByName)
	if err == nil || !strings.Contains(err.Error(), "Too many package results") {
		t.Errorf("Search() error = %v, want RPC error", err)
	}
}

func TestClient_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Info(context.Background(), "yay")
	if err == nil {
		t.Error("Info() should return error for HTTP 503")
	}
}

func TestClient_BaseURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://aur.archlinux.org", "https://aur.archlinux.org"},
		{"https://aur.archlinux.org/", "https://aur.archlinux.org"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NewClient(tt.input).BaseURL(); got != tt.want {
				t.Errorf("BaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
