package graph

import (
	"context"
	"errors"

	"github.com/agenthands/taxgraph/internal/core/model"
)

var ErrInvalidEdge = errors.New("edge endpoint missing")

// Node is a taxpayer in the transaction graph. Registered is false for
// identifiers that only appeared as invoice endpoints.
type Node struct {
	ID         string       `json:"id"`
	Entity     model.Entity `json:"entity"`
	Registered bool         `json:"registered"`
}

// Edge is one declared outward invoice, From = supplier, To = receiver.
type Edge struct {
	InvoiceID string  `json:"invoice_id"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Value     float64 `json:"value"`
	TaxAmount float64 `json:"tax_amount"`
}

// Graph is a directed multigraph of taxpayers and invoices. Implementations
// may be in memory or backed by a remote graph store. Once built a Graph is
// only read.
type Graph interface {
	// AddNode inserts a node. A registered node replaces an unregistered
	// placeholder with the same id; otherwise the first insert wins.
	AddNode(ctx context.Context, n Node) error
	// AddEdge inserts an edge, creating placeholder endpoints when needed.
	// Parallel edges are kept.
	AddEdge(ctx context.Context, e Edge) error

	Nodes(ctx context.Context) ([]Node, error)
	Edges(ctx context.Context) ([]Edge, error)
	OutEdges(ctx context.Context, id string) ([]Edge, error)
	InEdges(ctx context.Context, id string) ([]Edge, error)
	HasNode(ctx context.Context, id string) (bool, error)

	Importance(ctx context.Context, opts ImportanceOptions) (Importance, error)
	SimpleCycles(ctx context.Context, opts CycleOptions) (CycleSet, error)
}

// ImportanceOptions controls the PageRank-style importance computation.
type ImportanceOptions struct {
	Damping       float64 `toml:"damping"`
	MaxIterations int     `toml:"max_iterations"`
	Tolerance     float64 `toml:"tolerance"`
}

func DefaultImportanceOptions() ImportanceOptions {
	return ImportanceOptions{
		Damping:       0.85,
		MaxIterations: 100,
		Tolerance:     1e-6,
	}
}

// Importance holds per-node scores for one graph build.
type Importance struct {
	Scores     map[string]float64 `json:"scores"`
	Iterations int                `json:"iterations"`
	Converged  bool               `json:"converged"`
	Outcome    model.Outcome      `json:"outcome"`
}

// Score returns 0 for unknown ids.
func (i Importance) Score(id string) float64 {
	return i.Scores[id]
}

// CycleOptions bounds simple-cycle enumeration, which is exponential in the
// worst case. Zero MaxLength means unbounded length.
type CycleOptions struct {
	MinLength    int `toml:"min_length"`
	MaxLength    int `toml:"max_length"`
	ExamineLimit int `toml:"examine_limit"`
	MaxSteps     int `toml:"max_steps"`
}

func DefaultCycleOptions() CycleOptions {
	return CycleOptions{
		MinLength:    3,
		MaxLength:    0,
		ExamineLimit: 5000,
		MaxSteps:     2_000_000,
	}
}

// Hop is one step of a cycle: every invoice from From to To.
type Hop struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Invoices []Edge  `json:"invoices"`
	Value    float64 `json:"value"`
}

// Cycle is a simple directed cycle, rotated to start at its smallest id.
type Cycle struct {
	Nodes []string `json:"chain"`
	Hops  []Hop    `json:"hops"`
	Value float64  `json:"value"`
}

// InvoiceIDs lists the invoices along the cycle in hop order.
func (c Cycle) InvoiceIDs() []string {
	var ids []string
	for _, h := range c.Hops {
		for _, e := range h.Invoices {
			ids = append(ids, e.InvoiceID)
		}
	}
	return ids
}

// CycleSet is the result of a bounded enumeration.
type CycleSet struct {
	Cycles   []Cycle       `json:"cycles"`
	Examined int           `json:"examined"`
	Outcome  model.Outcome `json:"outcome"`
}
