// Package stage runs named pipeline steps in dependency order. A Graph is
// validated once on construction and is immutable afterwards.
package stage

import (
	"container/heap"
	"context"
)

// Step is one unit of pipeline work.
type Step struct {
	Name      string
	DependsOn []string
	Run       func(ctx context.Context) error
}

// Graph is a validated, acyclic set of steps.
type Graph struct {
	steps    []Step
	index    map[string]int
	outgoing [][]int
	indeg    []int
	depth    []int
}

// NewGraph validates steps and builds the graph. It rejects empty or
// duplicate names, unknown or repeated dependencies, self-loops, missing run
// functions and cycles. Declaration order breaks ties wherever order matters.
func NewGraph(steps []Step) (*Graph, error) {
	if len(steps) == 0 {
		return nil, invalidf("no steps")
	}

	g := &Graph{
		steps:    steps,
		index:    make(map[string]int, len(steps)),
		outgoing: make([][]int, len(steps)),
		indeg:    make([]int, len(steps)),
		depth:    make([]int, len(steps)),
	}

	for i, s := range steps {
		if s.Name == "" {
			return nil, invalidf("step %d has no name", i)
		}
		if s.Run == nil {
			return nil, invalidf("step %q has no run function", s.Name)
		}
		if _, dup := g.index[s.Name]; dup {
			return nil, invalidf("duplicate step name %q", s.Name)
		}
		g.index[s.Name] = i
	}

	for i, s := range steps {
		seen := make(map[string]bool, len(s.DependsOn))
		for _, dep := range s.DependsOn {
			if dep == s.Name {
				return nil, invalidf("step %q depends on itself", s.Name)
			}
			if seen[dep] {
				return nil, invalidf("step %q lists dependency %q twice", s.Name, dep)
			}
			seen[dep] = true

			j, ok := g.index[dep]
			if !ok {
				return nil, invalidf("step %q depends on unknown step %q", s.Name, dep)
			}
			g.outgoing[j] = append(g.outgoing[j], i)
			g.indeg[i]++
		}
	}

	order := g.topoOrder()
	if len(order) != len(steps) {
		return nil, cycleError(g.findCycle())
	}

	for _, n := range order {
		for _, m := range g.outgoing[n] {
			g.depth[m] = max(g.depth[m], g.depth[n]+1)
		}
	}
	return g, nil
}

// Order returns step names in a deterministic topological order.
func (g *Graph) Order() []string {
	order := g.topoOrder()
	names := make([]string, len(order))
	for i, n := range order {
		names[i] = g.steps[n].Name
	}
	return names
}

// Levels groups step names by topological depth. Steps in the same level
// have no dependency on each other.
func (g *Graph) Levels() [][]string {
	var levels [][]string
	for _, n := range g.topoOrder() {
		d := g.depth[n]
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], g.steps[n].Name)
	}
	return levels
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoOrder runs Kahn's algorithm with a min-heap on declaration index so the
// order is stable. A result shorter than the step count means a cycle.
func (g *Graph) topoOrder() []int {
	indeg := make([]int, len(g.indeg))
	copy(indeg, g.indeg)

	ready := &intMinHeap{}
	for i, d := range indeg {
		if d == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(indeg))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range g.outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

// findCycle returns one cycle as a closed path of step names.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		gray
		black
	)

	color := make([]int, len(g.steps))
	parent := make([]int, len(g.steps))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range g.outgoing[u] {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				// back edge u -> v closes v -> ... -> u -> v
				cycle = append(cycle, v)
				for cur := u; cur != v; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := range g.steps {
		if color[i] == white && dfs(i) {
			break
		}
	}

	names := make([]string, len(cycle))
	for i, idx := range cycle {
		names[len(cycle)-1-i] = g.steps[idx].Name
	}
	return names
}
