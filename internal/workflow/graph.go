// Package workflow validates and applies status transitions for the records
// whose status is workflow-driven (leads, candidates, offers, employees).
package workflow

import (
	"fmt"
	"sort"

	"opsdesk/internal/apperr"
	"opsdesk/internal/models"
)

// Graph is a checked, indexed form of a workflow definition.
type Graph struct {
	initial  string
	next     map[string]map[string]string // from -> to -> transition name
	statuses map[string]struct{}
}

// Build indexes wf and rejects definitions that cannot be used: an empty
// initial status, blank or self-loop transitions, duplicate pairs, and
// statuses that are unreachable from the initial status. Cycles between
// distinct statuses are allowed (active -> on_leave -> active).
func Build(wf *models.Workflow) (*Graph, error) {
	if wf.InitialStatus == "" {
		return nil, apperr.Invalid("initial_status", "must not be empty")
	}
	g := &Graph{
		initial:  wf.InitialStatus,
		next:     make(map[string]map[string]string),
		statuses: map[string]struct{}{wf.InitialStatus: {}},
	}

	for i, t := range wf.Transitions {
		field := fmt.Sprintf("transitions[%d]", i)
		if t.FromStatus == "" || t.ToStatus == "" {
			return nil, apperr.Invalid(field, "from and to are required")
		}
		if t.FromStatus == t.ToStatus {
			return nil, apperr.Invalid(field, "self transition on %q", t.FromStatus)
		}
		edges, ok := g.next[t.FromStatus]
		if !ok {
			edges = make(map[string]string)
			g.next[t.FromStatus] = edges
		}
		if _, dup := edges[t.ToStatus]; dup {
			return nil, apperr.Invalid(field, "duplicate transition %s -> %s", t.FromStatus, t.ToStatus)
		}
		edges[t.ToStatus] = t.Name
		g.statuses[t.FromStatus] = struct{}{}
		g.statuses[t.ToStatus] = struct{}{}
	}

	reachable := g.reach(g.initial)
	reachable[g.initial] = struct{}{}
	var unreachable []string
	for s := range g.statuses {
		if _, ok := reachable[s]; !ok {
			unreachable = append(unreachable, s)
		}
	}
	if len(unreachable) > 0 {
		sort.Strings(unreachable)
		return nil, apperr.Invalid("transitions", "statuses unreachable from %q: %v", g.initial, unreachable)
	}
	return g, nil
}

// Initial is the status new records start in.
func (g *Graph) Initial() string { return g.initial }

// Validate reports whether from -> to is a declared transition. A workflow
// with no transitions allows nothing.
func (g *Graph) Validate(from, to string) error {
	if _, ok := g.next[from][to]; ok {
		return nil
	}
	if _, known := g.statuses[to]; !known {
		return fmt.Errorf("%w: unknown status %q", apperr.ErrInvalidTransition, to)
	}
	return fmt.Errorf("%w: %s -> %s is not allowed", apperr.ErrInvalidTransition, from, to)
}

// Next lists the statuses directly reachable from from, sorted.
func (g *Graph) Next(from string) []string {
	out := make([]string, 0, len(g.next[from]))
	for to := range g.next[from] {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}

// Reachable lists every status reachable from from in one or more steps,
// sorted. from itself is included only if a cycle leads back to it.
func (g *Graph) Reachable(from string) []string {
	return sortedKeys(g.reach(from))
}

func (g *Graph) reach(from string) map[string]struct{} {
	seen := make(map[string]struct{})
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for to := range g.next[cur] {
			if _, ok := seen[to]; ok {
				continue
			}
			seen[to] = struct{}{}
			queue = append(queue, to)
		}
	}
	return seen
}

// Terminal lists statuses with no outgoing transition, sorted.
func (g *Graph) Terminal() []string {
	var out []string
	for s := range g.statuses {
		if len(g.next[s]) == 0 {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Statuses lists every status the workflow mentions, sorted.
func (g *Graph) Statuses() []string {
	return sortedKeys(g.statuses)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
