package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agenthands/taxgraph/internal/core/model"
)

// Memory is an in-memory adjacency-list multigraph. Node order is insertion
// order. It is safe for concurrent readers once building has finished.
type Memory struct {
	order []string
	nodes map[string]*Node
	edges []Edge
	out   map[string][]int
	in    map[string][]int
}

func NewMemory() *Memory {
	return &Memory{
		nodes: make(map[string]*Node),
		out:   make(map[string][]int),
		in:    make(map[string][]int),
	}
}

func (m *Memory) AddNode(_ context.Context, n Node) error {
	n.ID = strings.TrimSpace(n.ID)
	if n.ID == "" {
		return fmt.Errorf("add node: %w", ErrInvalidEdge)
	}
	if n.Entity.ID == "" {
		n.Entity.ID = n.ID
	}
	if existing, ok := m.nodes[n.ID]; ok {
		if !existing.Registered && n.Registered {
			*existing = n
		}
		return nil
	}
	m.order = append(m.order, n.ID)
	m.nodes[n.ID] = &n
	return nil
}

func (m *Memory) ensureNode(id string) {
	if _, ok := m.nodes[id]; ok {
		return
	}
	m.order = append(m.order, id)
	m.nodes[id] = &Node{ID: id, Entity: model.DefaultEntity(id)}
}

func (m *Memory) AddEdge(_ context.Context, e Edge) error {
	e.From = strings.TrimSpace(e.From)
	e.To = strings.TrimSpace(e.To)
	if e.From == "" || e.To == "" {
		return fmt.Errorf("add edge %s: %w", e.InvoiceID, ErrInvalidEdge)
	}
	m.ensureNode(e.From)
	m.ensureNode(e.To)

	idx := len(m.edges)
	m.edges = append(m.edges, e)
	m.out[e.From] = append(m.out[e.From], idx)
	m.in[e.To] = append(m.in[e.To], idx)
	return nil
}

func (m *Memory) Nodes(_ context.Context) ([]Node, error) {
	out := make([]Node, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.nodes[id])
	}
	return out, nil
}

func (m *Memory) Edges(_ context.Context) ([]Edge, error) {
	out := make([]Edge, len(m.edges))
	copy(out, m.edges)
	return out, nil
}

func (m *Memory) OutEdges(_ context.Context, id string) ([]Edge, error) {
	return m.collect(m.out[id]), nil
}

func (m *Memory) InEdges(_ context.Context, id string) ([]Edge, error) {
	return m.collect(m.in[id]), nil
}

func (m *Memory) collect(idxs []int) []Edge {
	out := make([]Edge, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, m.edges[i])
	}
	return out
}

func (m *Memory) HasNode(_ context.Context, id string) (bool, error) {
	_, ok := m.nodes[id]
	return ok, nil
}

func (m *Memory) NodeCount() int { return len(m.order) }

func (m *Memory) EdgeCount() int { return len(m.edges) }

func (m *Memory) Importance(ctx context.Context, opts ImportanceOptions) (Importance, error) {
	if err := ctx.Err(); err != nil {
		return Importance{}, err
	}
	return PageRank(m.order, m.edges, opts), nil
}

func (m *Memory) SimpleCycles(ctx context.Context, opts CycleOptions) (CycleSet, error) {
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	sort.Strings(ids)
	return EnumerateCycles(ctx, ids, m.edges, opts)
}
