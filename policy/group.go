// Package policy maps full gRPC method names onto named method groups, each
// carrying the settings that pipeline layers apply to its calls.
package policy

import (
	"regexp"
	"time"
)

// RateLimitRule allows Rate calls per Window for a group.
type RateLimitRule struct {
	Rate   int
	Window time.Duration
}

// Policy holds the settings of a method group. Zero fields mean "not set".
type Policy struct {
	RateLimit *RateLimitRule
	Timeout   time.Duration
}

// matchKind orders the matching strategies; lower values win.
type matchKind int

const (
	kindExact matchKind = iota
	kindPrefix
	kindRegex
)

type rule struct {
	kind    matchKind
	pattern string
	re      *regexp.Regexp
}

// GroupBuilder collects the matching rules and the policy of a group.
type GroupBuilder struct {
	name   string
	rules  []rule
	policy Policy
	err    error
}

// Group starts building a new method group with the given name.
func Group(name string) *GroupBuilder {
	return &GroupBuilder{name: name}
}

// Exact matches fullMethod == pattern.
func (g *GroupBuilder) Exact(pattern string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindExact, pattern: pattern})
	return g
}

// Prefix matches methods starting with pattern, e.g. "/pkg.Service/".
func (g *GroupBuilder) Prefix(pattern string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindPrefix, pattern: pattern})
	return g
}

// Regex matches methods containing a match of pattern. An invalid pattern is
// reported by NewResolver.
func (g *GroupBuilder) Regex(pattern string) *GroupBuilder {
	re, err := regexp.Compile(pattern)
	if err != nil {
		if g.err == nil {
			g.err = err
		}
		return g
	}
	g.rules = append(g.rules, rule{kind: kindRegex, pattern: pattern, re: re})
	return g
}

// Policy sets the group's policy.
func (g *GroupBuilder) Policy(p Policy) *GroupBuilder {
	g.policy = p
	return g
}
