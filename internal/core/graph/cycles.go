package graph

import (
	"context"
	"sort"
	"strings"

	"github.com/agenthands/taxgraph/internal/core/model"
)

// EnumerateCycles lists simple directed cycles over the given node ids
// (which must be sorted). Each cycle is reported once, starting at its
// smallest id. Parallel invoices between two consecutive nodes are folded
// into one hop.
func EnumerateCycles(ctx context.Context, ids []string, edges []Edge, opts CycleOptions) (CycleSet, error) {
	if len(ids) == 0 {
		return CycleSet{Outcome: model.Skipped("graph has no nodes")}, nil
	}
	if opts.MinLength < 2 {
		opts.MinLength = 2
	}

	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	hops := make(map[[2]int][]Edge)
	succ := make([][]int, len(ids))
	for _, e := range edges {
		from, ok := index[e.From]
		if !ok {
			continue
		}
		to, ok := index[e.To]
		if !ok {
			continue
		}
		key := [2]int{from, to}
		if _, seen := hops[key]; !seen {
			succ[from] = append(succ[from], to)
		}
		hops[key] = append(hops[key], e)
	}
	for i := range succ {
		sort.Ints(succ[i])
	}

	w := &cycleWalker{
		ids:    ids,
		succ:   succ,
		hops:   hops,
		opts:   opts,
		onPath: make([]bool, len(ids)),
	}

	for start := range ids {
		if err := ctx.Err(); err != nil {
			return CycleSet{}, err
		}
		w.start = start
		w.path = append(w.path[:0], start)
		w.onPath[start] = true
		w.walk(start)
		w.onPath[start] = false
		if w.stopped {
			break
		}
	}

	set := CycleSet{
		Cycles:   w.found,
		Examined: len(w.found),
		Outcome:  model.Computed(),
	}
	set.Outcome.Truncated = w.stopped
	return set, nil
}

type cycleWalker struct {
	ids    []string
	succ   [][]int
	hops   map[[2]int][]Edge
	opts   CycleOptions
	start  int
	path   []int
	onPath []bool
	steps  int
	found  []Cycle

	stopped bool
}

func (w *cycleWalker) walk(v int) {
	for _, next := range w.succ[v] {
		if w.stopped {
			return
		}
		if next < w.start {
			continue
		}
		w.steps++
		if w.opts.MaxSteps > 0 && w.steps > w.opts.MaxSteps {
			w.stopped = true
			return
		}
		if next == w.start {
			if len(w.path) >= w.opts.MinLength {
				w.record()
				if w.opts.ExamineLimit > 0 && len(w.found) >= w.opts.ExamineLimit {
					w.stopped = true
					return
				}
			}
			continue
		}
		if w.onPath[next] {
			continue
		}
		if w.opts.MaxLength > 0 && len(w.path) >= w.opts.MaxLength {
			continue
		}
		w.path = append(w.path, next)
		w.onPath[next] = true
		w.walk(next)
		w.onPath[next] = false
		w.path = w.path[:len(w.path)-1]
	}
}

func (w *cycleWalker) record() {
	c := Cycle{
		Nodes: make([]string, len(w.path)),
		Hops:  make([]Hop, 0, len(w.path)),
	}
	for i, v := range w.path {
		c.Nodes[i] = w.ids[v]
		to := w.path[(i+1)%len(w.path)]
		invoices := w.hops[[2]int{v, to}]
		hop := Hop{
			From:     w.ids[v],
			To:       w.ids[to],
			Invoices: append([]Edge(nil), invoices...),
		}
		for _, e := range invoices {
			hop.Value += e.Value
		}
		c.Value += hop.Value
		c.Hops = append(c.Hops, hop)
	}
	w.found = append(w.found, c)
}

// CyclesFromChains turns node chains found elsewhere (a graph query, say)
// into a CycleSet. Chains that repeat a node, are shorter than MinLength or
// miss a hop in edges are dropped; rotations of one cycle are reported once.
func CyclesFromChains(chains [][]string, edges []Edge, opts CycleOptions) CycleSet {
	if opts.MinLength < 2 {
		opts.MinLength = 2
	}
	hops := make(map[[2]string][]Edge)
	for _, e := range edges {
		key := [2]string{e.From, e.To}
		hops[key] = append(hops[key], e)
	}

	seen := make(map[string]bool)
	set := CycleSet{Outcome: model.Computed()}
	for _, chain := range chains {
		chain = trimClosing(chain)
		if len(chain) < opts.MinLength || (opts.MaxLength > 0 && len(chain) > opts.MaxLength) || !distinct(chain) {
			continue
		}
		chain = rotateToMin(chain)
		key := strings.Join(chain, "\x00")
		if seen[key] {
			continue
		}

		c := Cycle{Nodes: chain}
		ok := true
		for i, from := range chain {
			to := chain[(i+1)%len(chain)]
			invoices := hops[[2]string{from, to}]
			if len(invoices) == 0 {
				ok = false
				break
			}
			hop := Hop{From: from, To: to, Invoices: append([]Edge(nil), invoices...)}
			for _, e := range invoices {
				hop.Value += e.Value
			}
			c.Value += hop.Value
			c.Hops = append(c.Hops, hop)
		}
		if !ok {
			continue
		}
		seen[key] = true
		set.Cycles = append(set.Cycles, c)
		if opts.ExamineLimit > 0 && len(set.Cycles) >= opts.ExamineLimit {
			set.Outcome.Truncated = true
			break
		}
	}
	set.Examined = len(set.Cycles)
	return set
}

// trimClosing drops a trailing repeat of the first node, as path queries
// return closed walks.
func trimClosing(chain []string) []string {
	if len(chain) > 1 && chain[0] == chain[len(chain)-1] {
		return chain[:len(chain)-1]
	}
	return chain
}

func distinct(chain []string) bool {
	seen := make(map[string]bool, len(chain))
	for _, id := range chain {
		if seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}

func rotateToMin(chain []string) []string {
	lo := 0
	for i, id := range chain {
		if id < chain[lo] {
			lo = i
		}
	}
	out := make([]string, 0, len(chain))
	out = append(out, chain[lo:]...)
	return append(out, chain[:lo]...)
}
