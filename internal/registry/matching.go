package registry

import (
	"math/rand"
	"sort"
	"strings"
)

// Candidate is one matching definition with its priority and identity.
type Candidate struct {
	Priority   int
	Name       string
	Definition Definition
}

// Selector picks one index out of n equally valid tie candidates.
// The default draws uniformly from the process-wide random source.
type Selector interface {
	Pick(n int) int
}

type randomSelector struct{}

func newRandomSelector() Selector { return randomSelector{} }

func (randomSelector) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	return rand.Intn(n)
}

// MatchBest resolves a trigger to at most one definition. A definition
// matches when the trigger equals any keyword exactly, or, with fuzzy
// enabled, when any keyword is a substring of the trigger. The highest
// priority wins; equal-priority ties are broken uniformly at random.
func (r *Registry) MatchBest(trigger string) (Definition, bool) {
	candidates := r.MatchAll(trigger)
	if len(candidates) == 0 {
		return Definition{}, false
	}

	maxPriority := candidates[0].Priority
	tied := 0
	for _, c := range candidates {
		if c.Priority == maxPriority {
			tied++
		}
	}
	pick := r.selector.Pick(tied)
	return candidates[pick].Definition, true
}

// MatchAll returns every matching definition as (priority, name, definition)
// candidates, sorted by priority descending and stably by name within a
// priority band.
func (r *Registry) MatchAll(trigger string) []Candidate {
	if trigger == "" {
		return nil
	}

	r.mu.RLock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)

	var candidates []Candidate
	for _, name := range names {
		raw := r.defs[name]
		if !matchesRaw(raw, trigger) {
			continue
		}
		def := raw.normalize(r.defaultType)
		if len(def.Keywords) == 0 {
			def.Keywords = []string{name}
		}
		candidates = append(candidates, Candidate{
			Priority:   raw.Priority,
			Name:       name,
			Definition: def,
		})
	}
	r.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})
	return candidates
}

// matchesRaw applies the exact-then-fuzzy rule against one stored entry.
// Fuzzy matching is raw, case-sensitive substring containment.
func matchesRaw(raw rawDefinition, trigger string) bool {
	for _, k := range raw.Keyword {
		if k != "" && k == trigger {
			return true
		}
	}
	if !raw.Fuzzy {
		return false
	}
	for _, k := range raw.Keyword {
		if k != "" && strings.Contains(trigger, k) {
			return true
		}
	}
	return false
}
