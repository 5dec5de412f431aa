package policy

import (
	"fmt"
	"sync"
)

// Match is the outcome of resolving a method.
type Match struct {
	Group  string
	Policy Policy
}

// Resolver resolves full method names to the best-matching group. Results
// are memoized per method. It is safe for concurrent use.
type Resolver struct {
	groups []*GroupBuilder
	seen   sync.Map // fullMethod -> resolution
}

type resolution struct {
	m  Match
	ok bool
}

// NewResolver creates a Resolver from the given groups. It fails if a group
// has an invalid regex or no name.
func NewResolver(groups ...*GroupBuilder) (*Resolver, error) {
	for i, g := range groups {
		if g.name == "" {
			return nil, fmt.Errorf("policy: group %d has no name", i)
		}
		if g.err != nil {
			return nil, fmt.Errorf("policy: group %q: %w", g.name, g.err)
		}
	}
	return &Resolver{groups: groups}, nil
}

// Resolve finds the group for fullMethod.
//
// Exact matches beat prefix matches, which beat regex matches. Among matches
// of the same kind the longer match wins, and among equal ones the group
// registered first. ok is false when no group matches.
func (res *Resolver) Resolve(fullMethod string) (Match, bool) {
	if v, ok := res.seen.Load(fullMethod); ok {
		r := v.(resolution)
		return r.m, r.ok
	}

	var best resolution
	bestKind, bestLen := matchKind(-1), -1
	for _, g := range res.groups {
		for _, r := range g.rules {
			matched, n := r.match(fullMethod)
			if !matched {
				continue
			}
			if bestKind < 0 || r.kind < bestKind || (r.kind == bestKind && n > bestLen) {
				bestKind, bestLen = r.kind, n
				best = resolution{m: Match{Group: g.name, Policy: g.policy}, ok: true}
			}
		}
	}
	res.seen.Store(fullMethod, best)
	return best.m, best.ok
}
