package constraint

import (
	"fmt"
	"sort"
	"strings"
)

// CycleError is returned when a formula would create a circular
// dependency between parameters. The previous constraint state is
// left unchanged.
type CycleError struct {
	Node Ref
	Path []Ref
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("constraint on %s would create a dependency cycle", e.Node)
	}
	parts := make([]string, len(e.Path))
	for i, r := range e.Path {
		parts[i] = r.String()
	}
	return fmt.Sprintf("constraint on %s would create a dependency cycle: %s",
		e.Node, strings.Join(parts, " -> "))
}

func (e *CycleError) Is(target error) bool {
	_, ok := target.(*CycleError)
	return ok
}

// InvalidReferenceError is returned when a fit is requested while
// formula parameters reference peaks that no longer exist.
type InvalidReferenceError struct {
	Refs []Ref
}

func (e *InvalidReferenceError) Error() string {
	parts := make([]string, len(e.Refs))
	for i, r := range e.Refs {
		parts[i] = r.String()
	}
	return fmt.Sprintf("invalidated constraints need correction: %s", strings.Join(parts, ", "))
}

func (e *InvalidReferenceError) Is(target error) bool {
	_, ok := target.(*InvalidReferenceError)
	return ok
}

// Graph tracks formula dependencies between parameters. Nodes are
// (peak label, kind) refs that hold a formula constraint; edges point
// from a formula node to each parameter it references. The graph
// holds only refs, never the parameters themselves.
type Graph struct {
	deps    map[Ref][]Ref
	invalid map[Ref]bool
}

// NewGraph creates an empty constraint graph.
func NewGraph() *Graph {
	return &Graph{
		deps:    make(map[Ref][]Ref),
		invalid: make(map[Ref]bool),
	}
}

// AddOrReplace installs the dependency edges for a formula node.
// If the edges would close a cycle the graph is left unchanged and a
// CycleError is returned. On success any prior edge set for the node
// is replaced and a prior invalid mark is cleared.
func (g *Graph) AddOrReplace(node Ref, refs []Ref) error {
	// A cycle exists iff the node is reachable from one of its new
	// dependencies. The check runs against the committed graph, so a
	// failed add preserves the previous valid state.
	for _, ref := range refs {
		if ref == node {
			return &CycleError{Node: node, Path: []Ref{node, node}}
		}
		if path := g.pathTo(ref, node); path != nil {
			return &CycleError{Node: node, Path: append([]Ref{node}, path...)}
		}
	}

	g.deps[node] = append([]Ref(nil), refs...)
	delete(g.invalid, node)
	return nil
}

// pathTo returns a path from start to target following dependency
// edges, or nil if target is unreachable.
func (g *Graph) pathTo(start, target Ref) []Ref {
	if start == target {
		return []Ref{start}
	}
	seen := map[Ref]bool{start: true}
	var walk func(from Ref) []Ref
	walk = func(from Ref) []Ref {
		for _, next := range g.deps[from] {
			if next == target {
				return []Ref{next}
			}
			if seen[next] {
				continue
			}
			seen[next] = true
			if rest := walk(next); rest != nil {
				return append([]Ref{next}, rest...)
			}
		}
		return nil
	}
	if rest := walk(start); rest != nil {
		return append([]Ref{start}, rest...)
	}
	return nil
}

// Remove drops a formula node, for example when its parameter is
// re-constrained to a non-formula state.
func (g *Graph) Remove(node Ref) {
	delete(g.deps, node)
	delete(g.invalid, node)
}

// RemovePeak drops every node belonging to the peak and removes
// edges pointing at the peak from other formulas. Formula nodes that
// referenced the peak are marked invalid and returned so the caller
// can surface them; they are not silently coerced to free.
func (g *Graph) RemovePeak(label string) []Ref {
	for node := range g.deps {
		if node.Peak == label {
			delete(g.deps, node)
			delete(g.invalid, node)
		}
	}

	var invalidated []Ref
	for node, refs := range g.deps {
		kept := refs[:0]
		hit := false
		for _, ref := range refs {
			if ref.Peak == label {
				hit = true
				continue
			}
			kept = append(kept, ref)
		}
		if hit {
			g.deps[node] = kept
			if !g.invalid[node] {
				g.invalid[node] = true
				invalidated = append(invalidated, node)
			}
		}
	}
	sortRefs(invalidated)
	return invalidated
}

// RenamePeak rewrites every node and edge from one peak label to
// another, preserving dependency meaning across a relabel.
func (g *Graph) RenamePeak(from, to string) {
	renamed := make(map[Ref][]Ref, len(g.deps))
	for node, refs := range g.deps {
		if node.Peak == from {
			node.Peak = to
		}
		for i, ref := range refs {
			if ref.Peak == from {
				refs[i].Peak = to
			}
		}
		renamed[node] = refs
	}
	g.deps = renamed

	invalid := make(map[Ref]bool, len(g.invalid))
	for node, v := range g.invalid {
		if node.Peak == from {
			node.Peak = to
		}
		invalid[node] = v
	}
	g.invalid = invalid
}

// MarkInvalid records a formula node whose references no longer
// resolve. Used when restoring a saved project that carries a broken
// formula; the node's edges are left as stored so the text can be
// corrected later.
func (g *Graph) MarkInvalid(node Ref) {
	g.invalid[node] = true
}

// Invalidated returns the formula nodes currently marked invalid, in
// stable order.
func (g *Graph) Invalidated() []Ref {
	refs := make([]Ref, 0, len(g.invalid))
	for node := range g.invalid {
		refs = append(refs, node)
	}
	sortRefs(refs)
	return refs
}

// IsInvalid reports whether the node is marked invalid.
func (g *Graph) IsInvalid(node Ref) bool { return g.invalid[node] }

// Dependents returns the formula nodes that reference the target.
func (g *Graph) Dependents(target Ref) []Ref {
	var nodes []Ref
	for node, refs := range g.deps {
		for _, ref := range refs {
			if ref == target {
				nodes = append(nodes, node)
				break
			}
		}
	}
	sortRefs(nodes)
	return nodes
}

// TopologicalOrder returns the formula nodes so that every node
// appears after all formula nodes it depends on. The add-time cycle
// check should make a cycle unreachable here, but the order is
// re-validated before each fit run.
func (g *Graph) TopologicalOrder() ([]Ref, error) {
	// Kahn's algorithm over formula nodes only; edges to plain
	// parameters do not order anything.
	indegree := make(map[Ref]int, len(g.deps))
	for node := range g.deps {
		indegree[node] = 0
	}
	for node, refs := range g.deps {
		seen := make(map[Ref]bool, len(refs))
		for _, ref := range refs {
			if seen[ref] {
				continue
			}
			seen[ref] = true
			if _, isFormula := g.deps[ref]; isFormula {
				indegree[node]++
			}
		}
	}

	var queue []Ref
	for node, deg := range indegree {
		if deg == 0 {
			queue = append(queue, node)
		}
	}
	sortRefs(queue)

	order := make([]Ref, 0, len(g.deps))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)
		for _, dependent := range g.Dependents(node) {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(g.deps) {
		for node := range g.deps {
			if indegree[node] > 0 {
				return nil, &CycleError{Node: node}
			}
		}
	}
	return order, nil
}

func sortRefs(refs []Ref) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Peak != refs[j].Peak {
			return refs[i].Peak < refs[j].Peak
		}
		return refs[i].Kind < refs[j].Kind
	})
}
