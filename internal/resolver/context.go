package resolver

import "github.com/frederic-klein/pmt/internal/pkg"

// class is how a dependency string is satisfied.
type class int

const (
	classRemote    class = iota // must be built from the remote directory
	classSatisfied              // an installed package satisfies it
	classRepo                   // a binary repository provides it
)

// frame is one package on the traversal path together with the position of
// the next dependency to visit.
type frame struct {
	pkg        *pkg.Package
	deps       []string
	next       int
	prefetched bool
}

// resolutionContext is the scratch state of a single Resolve call.
// A name is never in both visited and inProgress; inProgress holds exactly
// the names of the frames on the stack.
type resolutionContext struct {
	visited     map[string]bool
	inProgress  map[string]bool
	descriptors map[string]*pkg.Package
	absent      map[string]bool   // names a batch lookup did not return
	providers   map[string]string // capability -> provider name, "" when none
	classes     map[string]class  // dependency string -> classification

	stack []*frame
	order []*pkg.Package

	satisfied     []string
	satisfiedSeen map[string]bool
	repo          []string
	repoSeen      map[string]bool

	events []Event
}

func newResolutionContext() *resolutionContext {
	return &resolutionContext{
		visited:       make(map[string]bool),
		inProgress:    make(map[string]bool),
		descriptors:   make(map[string]*pkg.Package),
		absent:        make(map[string]bool),
		providers:     make(map[string]string),
		classes:       make(map[string]class),
		satisfiedSeen: make(map[string]bool),
		repoSeen:      make(map[string]bool),
	}
}

func (rc *resolutionContext) emit(e Event) {
	rc.events = append(rc.events, e)
}

func (rc *resolutionContext) push(p *pkg.Package) {
	rc.inProgress[p.Name] = true
	rc.stack = append(rc.stack, &frame{pkg: p, deps: p.AllDepends()})
}

// pop completes the top frame: all its dependencies are resolved, so the
// package goes to the build order after them.
func (rc *resolutionContext) pop() {
	f := rc.stack[len(rc.stack)-1]
	rc.stack = rc.stack[:len(rc.stack)-1]

	delete(rc.inProgress, f.pkg.Name)
	rc.visited[f.pkg.Name] = true
	rc.order = append(rc.order, f.pkg)
	rc.emit(Event{Kind: EventResolved, Name: f.pkg.Name})
}

func (rc *resolutionContext) addSatisfied(dep string) {
	if rc.satisfiedSeen[dep] {
		return
	}
	rc.satisfiedSeen[dep] = true
	rc.satisfied = append(rc.satisfied, dep)
	rc.emit(Event{Kind: EventSatisfied, Name: dep})
}

func (rc *resolutionContext) addRepo(dep string) {
	if rc.repoSeen[dep] {
		return
	}
	rc.repoSeen[dep] = true
	rc.repo = append(rc.repo, dep)
	rc.emit(Event{Kind: EventRepo, Name: dep})
}

// cycle builds the error for re-entering name, with the path from its first
// occurrence on the stack.
func (rc *resolutionContext) cycle(name string) error {
	var path []string
	for i, f := range rc.stack {
		if f.pkg.Name == name {
			for _, g := range rc.stack[i:] {
				path = append(path, g.pkg.Name)
			}
			break
		}
	}
	return &CircularDependencyError{Name: name, Path: append(path, name)}
}

// result deduplicates the build order by build unit, keeping the first
// package of each unit.
func (rc *resolutionContext) result() *Result {
	res := &Result{
		RepoDeps:      rc.repo,
		SatisfiedDeps: rc.satisfied,
	}
	seen := make(map[string]bool, len(rc.order))
	for _, p := range rc.order {
		base := p.BaseName()
		if seen[base] {
			rc.emit(Event{Kind: EventSplitSkipped, Name: p.Name, Detail: base})
			continue
		}
		seen[base] = true
		res.BuildOrder = append(res.BuildOrder, p)
	}
	res.Events = rc.events
	return res
}
