package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrPackageNotFound    = errors.New("package not found")
	ErrCircularDependency = errors.New("circular dependency")
	ErrDependencyNotFound = errors.New("dependency not found")
)

// PackageNotFoundError reports a name absent from the remote directory.
type PackageNotFoundError struct {
	Name string
}

func (e *PackageNotFoundError) Error() string {
	return "package not found in AUR: " + e.Name
}

func (e *PackageNotFoundError) Is(target error) bool {
	return target == ErrPackageNotFound
}

// CircularDependencyError reports a name re-entered while still being
// resolved. Path is the traversal path ending with the repeated name.
type CircularDependencyError struct {
	Name string
	Path []string
}

func (e *CircularDependencyError) Error() string {
	if len(e.Path) == 0 {
		return "circular dependency detected: " + e.Name
	}
	return fmt.Sprintf("circular dependency detected: %s (%s)", e.Name, strings.Join(e.Path, " -> "))
}

func (e *CircularDependencyError) Is(target error) bool {
	return target == ErrCircularDependency
}

// DependencyNotFoundError reports a dependency nothing can provide: not the
// local installation, the binary repositories or the remote directory.
type DependencyNotFoundError struct {
	Dependency string
	RequiredBy string
}

func (e *DependencyNotFoundError) Error() string {
	return fmt.Sprintf("dependency not found anywhere: %s (required by %s)", e.Dependency, e.RequiredBy)
}

func (e *DependencyNotFoundError) Is(target error) bool {
	return target == ErrDependencyNotFound
}
