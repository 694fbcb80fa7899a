package resolver

import (
	"fmt"
	"strings"
)

// EventKind classifies a resolution event.
type EventKind string

const (
	EventResolving      EventKind = "resolving"
	EventFetch          EventKind = "fetch"
	EventBatchFetch     EventKind = "batch_fetch"
	EventInstalled      EventKind = "installed"
	EventSatisfied      EventKind = "satisfied"
	EventRepo           EventKind = "repo"
	EventProviderSearch EventKind = "provider_search"
	EventProviderFound  EventKind = "provider_found"
	EventResolved       EventKind = "resolved"
	EventSplitSkipped   EventKind = "split_skipped"
)

// Event is one step of a resolution, recorded in traversal order.
type Event struct {
	Kind   EventKind
	Name   string   // package or dependency the event is about
	Detail string   // version, provider or build unit depending on Kind
	Names  []string // batch members for EventBatchFetch
}

func (e Event) String() string {
	switch e.Kind {
	case EventResolving:
		return "Resolving dependencies for " + e.Name
	case EventFetch:
		return "Fetching AUR info for " + e.Name
	case EventBatchFetch:
		return fmt.Sprintf("Batch-fetching %d AUR dependencies: %s", len(e.Names), strings.Join(e.Names, " "))
	case EventInstalled:
		return fmt.Sprintf("Skipping %s (%s already installed)", e.Name, e.Detail)
	case EventSatisfied:
		return e.Name + " is already satisfied"
	case EventRepo:
		return e.Name + " will be installed from the repositories"
	case EventProviderSearch:
		return "Searching AUR for provider of " + e.Name
	case EventProviderFound:
		return fmt.Sprintf("Found: %s provides %s", e.Detail, e.Name)
	case EventResolved:
		return "Resolved: " + e.Name
	case EventSplitSkipped:
		return fmt.Sprintf("Skipping %s (split package, already building %s)", e.Name, e.Detail)
	default:
		return string(e.Kind) + " " + e.Name
	}
}
