// Package resolver turns a package name into an ordered build plan: every
// source-built dependency precedes the packages that need it.
package resolver

import (
	"context"
	"fmt"

	"github.com/frederic-klein/pmt/internal/pkg"
)

// Directory is the remote source directory.
type Directory interface {
	Info(ctx context.Context, name string) (*pkg.Package, error)
	InfoBatch(ctx context.Context, names []string) ([]*pkg.Package, error)
	SearchByProvides(ctx context.Context, name string) ([]*pkg.Package, error)
}

// LocalDB answers dependency queries against the local installation and the
// binary repositories. Dependency strings may carry a version constraint.
type LocalDB interface {
	IsSatisfied(ctx context.Context, dep string) (bool, error)
	InRepos(ctx context.Context, dep string) (bool, error)
}

// Result is the outcome of a successful resolution.
type Result struct {
	// BuildOrder lists packages to build, dependencies first, one entry per
	// build unit.
	BuildOrder []*pkg.Package
	// RepoDeps are dependency strings to install from binary repositories.
	RepoDeps []string
	// SatisfiedDeps are dependency strings the installation already meets.
	SatisfiedDeps []string
	// Events records the traversal for logging.
	Events []Event
}

// Empty reports whether there is nothing to build or install.
func (r *Result) Empty() bool {
	return len(r.BuildOrder) == 0 && len(r.RepoDeps) == 0
}

// Resolver resolves dependency graphs. It holds no per-call state and may be
// shared between goroutines.
type Resolver struct {
	dir   Directory
	local LocalDB
}

// New creates a Resolver.
func New(dir Directory, local LocalDB) *Resolver {
	return &Resolver{dir: dir, local: local}
}

// Resolve computes the build plan for root. On failure the returned Result
// carries only the events recorded up to the failure.
func (r *Resolver) Resolve(ctx context.Context, root string) (*Result, error) {
	return r.resolve(ctx, root, false)
}

// Rebuild is Resolve for a root that must be built even though its
// published version is installed, such as a VCS package whose recipe now
// yields a newer version. Dependencies are resolved as usual.
func (r *Resolver) Rebuild(ctx context.Context, root string) (*Result, error) {
	return r.resolve(ctx, root, true)
}

func (r *Resolver) resolve(ctx context.Context, root string, rebuild bool) (*Result, error) {
	rc := newResolutionContext()
	rc.emit(Event{Kind: EventResolving, Name: root})

	if err := r.run(ctx, rc, root, rebuild); err != nil {
		return &Result{Events: rc.events}, err
	}
	return rc.result(), nil
}

// run is a post-order depth-first traversal driven by an explicit stack.
func (r *Resolver) run(ctx context.Context, rc *resolutionContext, root string, rebuild bool) error {
	p, err := r.lookup(ctx, rc, root)
	if err != nil {
		return err
	}
	if rebuild {
		rc.push(p)
	} else if err := r.enter(ctx, rc, p); err != nil {
		return err
	}

	for len(rc.stack) > 0 {
		f := rc.stack[len(rc.stack)-1]

		if !f.prefetched {
			f.prefetched = true
			if err := r.prefetch(ctx, rc, f); err != nil {
				return err
			}
		}

		if f.next == len(f.deps) {
			rc.pop()
			continue
		}

		dep := f.deps[f.next]
		f.next++

		next, err := r.step(ctx, rc, f, dep)
		if err != nil {
			return err
		}
		if next != nil {
			if err := r.enter(ctx, rc, next); err != nil {
				return err
			}
		}
	}
	return nil
}

// enter starts resolving p unless it is done already or installed at
// exactly the published version.
func (r *Resolver) enter(ctx context.Context, rc *resolutionContext, p *pkg.Package) error {
	if rc.visited[p.Name] {
		return nil
	}
	if rc.inProgress[p.Name] {
		return rc.cycle(p.Name)
	}

	if p.Version != "" {
		installed, err := r.local.IsSatisfied(ctx, p.Name+"="+p.Version)
		if err != nil {
			return fmt.Errorf("checking %s: %w", p.Name, err)
		}
		if installed {
			rc.visited[p.Name] = true
			rc.emit(Event{Kind: EventInstalled, Name: p.Name, Detail: p.Version})
			return nil
		}
	}

	rc.push(p)
	return nil
}

// step handles one dependency of the frame f and returns the package to
// descend into, if any.
func (r *Resolver) step(ctx context.Context, rc *resolutionContext, f *frame, dep string) (*pkg.Package, error) {
	name := pkg.StripVersion(dep)
	if rc.visited[name] {
		return nil, nil
	}

	c, err := r.classify(ctx, rc, dep)
	if err != nil {
		return nil, err
	}
	switch c {
	case classSatisfied:
		rc.addSatisfied(dep)
		return nil, nil
	case classRepo:
		rc.addRepo(dep)
		return nil, nil
	}

	if rc.inProgress[name] {
		return nil, rc.cycle(name)
	}
	if p, ok := rc.descriptors[name]; ok {
		return p, nil
	}

	provider, err := r.provider(ctx, rc, name)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, &DependencyNotFoundError{Dependency: dep, RequiredBy: f.pkg.Name}
	}
	return provider, nil
}

// prefetch fetches, in one batched lookup, every dependency of f that will
// need a descriptor and is not known yet.
func (r *Resolver) prefetch(ctx context.Context, rc *resolutionContext, f *frame) error {
	var unknown []string
	queued := make(map[string]bool)

	for _, dep := range f.deps {
		name := pkg.StripVersion(dep)
		if rc.visited[name] || rc.inProgress[name] || queued[name] {
			continue
		}
		c, err := r.classify(ctx, rc, dep)
		if err != nil {
			return err
		}
		if c != classRemote {
			continue
		}
		if _, ok := rc.descriptors[name]; ok {
			continue
		}
		if _, ok := rc.providers[name]; ok || rc.absent[name] {
			continue
		}
		queued[name] = true
		unknown = append(unknown, name)
	}

	if len(unknown) == 0 {
		return nil
	}

	rc.emit(Event{Kind: EventBatchFetch, Name: f.pkg.Name, Names: unknown})
	pkgs, err := r.dir.InfoBatch(ctx, unknown)
	if err != nil {
		return fmt.Errorf("fetching dependencies of %s: %w", f.pkg.Name, err)
	}
	for _, p := range pkgs {
		if _, ok := rc.descriptors[p.Name]; !ok {
			rc.descriptors[p.Name] = p
		}
	}
	// names the directory did not return are capability names
	for _, name := range unknown {
		if _, ok := rc.descriptors[name]; !ok {
			rc.absent[name] = true
		}
	}
	return nil
}

func (r *Resolver) classify(ctx context.Context, rc *resolutionContext, dep string) (class, error) {
	if c, ok := rc.classes[dep]; ok {
		return c, nil
	}

	c := classRemote
	satisfied, err := r.local.IsSatisfied(ctx, dep)
	if err != nil {
		return 0, fmt.Errorf("checking %s: %w", dep, err)
	}
	if satisfied {
		c = classSatisfied
	} else {
		inRepos, err := r.local.InRepos(ctx, dep)
		if err != nil {
			return 0, fmt.Errorf("checking %s in repos: %w", dep, err)
		}
		if inRepos {
			c = classRepo
		}
	}

	rc.classes[dep] = c
	return c, nil
}

// lookup returns the descriptor of name from the memo or the directory.
func (r *Resolver) lookup(ctx context.Context, rc *resolutionContext, name string) (*pkg.Package, error) {
	if p, ok := rc.descriptors[name]; ok {
		return p, nil
	}

	rc.emit(Event{Kind: EventFetch, Name: name})
	p, err := r.dir.Info(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", name, err)
	}
	if p == nil {
		return nil, &PackageNotFoundError{Name: name}
	}
	rc.descriptors[name] = p
	return p, nil
}

// provider finds a package providing the capability name. Results, including
// the absence of a provider, are memoised.
func (r *Resolver) provider(ctx context.Context, rc *resolutionContext, name string) (*pkg.Package, error) {
	if providerName, ok := rc.providers[name]; ok {
		if providerName == "" {
			return nil, nil
		}
		return rc.descriptors[providerName], nil
	}

	rc.emit(Event{Kind: EventProviderSearch, Name: name})
	candidates, err := r.dir.SearchByProvides(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("searching provider of %s: %w", name, err)
	}

	for _, c := range candidates {
		if !provides(c, name) {
			continue
		}
		p, ok := rc.descriptors[c.Name]
		if !ok {
			// search results omit dependency lists
			if p, err = r.dir.Info(ctx, c.Name); err != nil {
				return nil, fmt.Errorf("looking up %s: %w", c.Name, err)
			}
			if p == nil {
				p = c
			}
			rc.descriptors[c.Name] = p
		}
		rc.providers[name] = p.Name
		rc.emit(Event{Kind: EventProviderFound, Name: name, Detail: p.Name})
		return p, nil
	}

	rc.providers[name] = ""
	return nil, nil
}

func provides(p *pkg.Package, name string) bool {
	for _, prov := range p.Provides {
		if pkg.StripVersion(prov) == name {
			return true
		}
	}
	return false
}
