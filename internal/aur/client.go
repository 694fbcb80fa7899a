package aur

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/frederic-klein/pmt/internal/pkg"
)

const (
	DefaultURL = "https://aur.archlinux.org"

	// maxURLLen keeps batched info requests under the server's URI limit.
	maxURLLen = 4000
)

// SearchBy selects the field a search query is matched against.
type SearchBy string

const (
	ByName     SearchBy = "name"
	ByNameDesc SearchBy = "name-desc"
	ByProvides SearchBy = "provides"
	ByDepends  SearchBy = "depends"
)

// Client queries the AUR RPC interface.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	workers int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithRateLimit limits outgoing requests to rps per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithWorkers sets how many batch chunks are fetched concurrently.
func WithWorkers(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.workers = n
		}
	}
}

// NewClient creates a client for the AUR at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Inf, 1),
		workers: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured AUR URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Info looks up a single package by exact name. It returns nil without an
// error when the package does not exist.
func (c *Client) Info(ctx context.Context, name string) (*pkg.Package, error) {
	results, err := c.get(ctx, "/rpc/v5/info?arg[]="+url.QueryEscape(name))
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", name, err)
	}
	for _, p := range results {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, nil
}

// InfoBatch looks up many packages at once. Unknown names are silently
// omitted. Results follow the order of the request chunks.
func (c *Client) InfoBatch(ctx context.Context, names []string) ([]*pkg.Package, error) {
	if len(names) == 0 {
		return nil, nil
	}

	chunks := chunkInfoPaths(c.baseURL, names)
	results := make([][]*pkg.Package, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, path := range chunks {
		g.Go(func() error {
			pkgs, err := c.get(ctx, path)
			if err != nil {
				return fmt.Errorf("batch lookup: %w", err)
			}
			results[i] = pkgs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*pkg.Package
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// SearchByProvides returns packages whose provides field matches name.
func (c *Client) SearchByProvides(ctx context.Context, name string) ([]*pkg.Package, error) {
	return c.Search(ctx, name, ByProvides)
}

// Search runs an RPC search on the given field.
func (c *Client) Search(ctx context.Context, query string, by SearchBy) ([]*pkg.Package, error) {
	path := "/rpc/v5/search/" + url.PathEscape(query)
	if by != "" {
		path += "?by=" + url.QueryEscape(string(by))
	}
	results, err := c.get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("searching %s by %s: %w", query, by, err)
	}
	return results, nil
}

// chunkInfoPaths splits names into info request paths whose full URL,
// baseURL included, stays within maxURLLen. A single name that does not fit
// still gets a request of its own.
func chunkInfoPaths(baseURL string, names []string) []string {
	const base = "/rpc/v5/info?"
	budget := maxURLLen - len(baseURL)

	var paths []string
	var b strings.Builder
	b.WriteString(base)
	first := true

	for _, name := range names {
		param := "arg[]=" + url.QueryEscape(name)
		if !first {
			param = "&" + param
		}
		if !first && b.Len()+len(param) > budget {
			paths = append(paths, b.String())
			b.Reset()
			b.WriteString(base)
			param = strings.TrimPrefix(param, "&")
		}
		b.WriteString(param)
		first = false
	}
	return append(paths, b.String())
}

func (c *Client) get(ctx context.Context, path string) ([]*pkg.Package, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "pmt/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying AUR: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("AUR RPC error: HTTP %d", resp.StatusCode)
	}

	var body rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if body.Type == "error" {
		return nil, fmt.Errorf("AUR RPC error: %s", body.Error)
	}

	pkgs := make([]*pkg.Package, 0, len(body.Results))
	for _, r := range body.Results {
		pkgs = append(pkgs, r.toPackage())
	}
	return pkgs, nil
}
