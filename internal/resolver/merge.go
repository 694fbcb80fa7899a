package resolver

// Merge combines independently resolved results into one plan. Build orders
// are concatenated and deduplicated by build unit, keeping the first
// occurrence; dependency sets are unioned in first-seen order.
func Merge(results ...*Result) *Result {
	merged := &Result{}
	bases := make(map[string]bool)
	repo := make(map[string]bool)
	satisfied := make(map[string]bool)

	for _, r := range results {
		if r == nil {
			continue
		}
		merged.Events = append(merged.Events, r.Events...)

		for _, p := range r.BuildOrder {
			base := p.BaseName()
			if bases[base] {
				merged.Events = append(merged.Events, Event{Kind: EventSplitSkipped, Name: p.Name, Detail: base})
				continue
			}
			bases[base] = true
			merged.BuildOrder = append(merged.BuildOrder, p)
		}
		for _, dep := range r.RepoDeps {
			if !repo[dep] {
				repo[dep] = true
				merged.RepoDeps = append(merged.RepoDeps, dep)
			}
		}
		for _, dep := range r.SatisfiedDeps {
			if !satisfied[dep] {
				satisfied[dep] = true
				merged.SatisfiedDeps = append(merged.SatisfiedDeps, dep)
			}
		}
	}
	return merged
}
