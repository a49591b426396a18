package graph

import (
	"math"

	"github.com/agenthands/taxgraph/internal/core/model"
)

// PageRank computes importance scores by power iteration. Parallel edges add
// weight to a link; dangling nodes spread their mass uniformly. When the
// iteration budget runs out the last iterate is returned with Truncated set.
func PageRank(nodes []string, edges []Edge, opts ImportanceOptions) Importance {
	n := len(nodes)
	if n == 0 {
		return Importance{Scores: map[string]float64{}, Outcome: model.Skipped("graph has no nodes")}
	}
	if opts.Damping <= 0 || opts.Damping >= 1 {
		opts.Damping = 0.85
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 100
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 1e-6
	}

	index := make(map[string]int, n)
	for i, id := range nodes {
		index[id] = i
	}

	type link struct {
		to     int
		weight float64
	}
	links := make([][]link, n)
	outWeight := make([]float64, n)
	weights := make(map[[2]int]float64)
	for _, e := range edges {
		from, ok := index[e.From]
		if !ok {
			continue
		}
		to, ok := index[e.To]
		if !ok {
			continue
		}
		weights[[2]int{from, to}]++
		outWeight[from]++
	}
	// deterministic accumulation order
	for _, e := range edges {
		from, to := index[e.From], index[e.To]
		key := [2]int{from, to}
		if w, ok := weights[key]; ok {
			links[from] = append(links[from], link{to: to, weight: w})
			delete(weights, key)
		}
	}

	uniform := 1.0 / float64(n)
	x := make([]float64, n)
	for i := range x {
		x[i] = uniform
	}

	res := Importance{Scores: make(map[string]float64, n)}
	next := make([]float64, n)
	for iter := 1; iter <= opts.MaxIterations; iter++ {
		dangling := 0.0
		for i := range x {
			if outWeight[i] == 0 {
				dangling += x[i]
			}
		}
		base := opts.Damping*dangling*uniform + (1-opts.Damping)*uniform
		for i := range next {
			next[i] = base
		}
		for from, ls := range links {
			share := opts.Damping * x[from] / outWeight[from]
			for _, l := range ls {
				next[l.to] += share * l.weight
			}
		}

		diff := 0.0
		for i := range x {
			diff += math.Abs(next[i] - x[i])
		}
		x, next = next, x
		res.Iterations = iter
		if diff < float64(n)*opts.Tolerance {
			res.Converged = true
			break
		}
	}

	for i, id := range nodes {
		res.Scores[id] = x[i]
	}
	res.Outcome = model.Computed()
	res.Outcome.Truncated = !res.Converged
	return res
}
