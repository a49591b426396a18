package core

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agenthands/taxgraph/internal/core/graph"
	"github.com/agenthands/taxgraph/internal/core/model"
)

type MockLLM struct {
	Response string
	Err      error
	Prompts  []string
}

func (m *MockLLM) Generate(_ context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// MockStore hands out memory graphs and records releases.
type MockStore struct {
	Created  []graph.Graph
	Released []graph.Graph
	Err      error
}

func (m *MockStore) NewGraph(context.Context) (graph.Graph, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	g := graph.NewMemory()
	m.Created = append(m.Created, g)
	return g, nil
}

func (m *MockStore) Release(_ context.Context, g graph.Graph) error {
	m.Released = append(m.Released, g)
	return nil
}

// GatedStore hands out graphs whose first cycle search parks until Gate is
// closed. A released graph reads as empty afterwards, as a deleted remote
// snapshot would.
type GatedStore struct {
	Entered chan struct{}
	Gate    chan struct{}

	mu       sync.Mutex
	released []graph.Graph
	parked   atomic.Bool
}

func NewGatedStore() *GatedStore {
	return &GatedStore{Entered: make(chan struct{}), Gate: make(chan struct{})}
}

func (s *GatedStore) NewGraph(context.Context) (graph.Graph, error) {
	return &gatedGraph{Memory: graph.NewMemory(), store: s}, nil
}

func (s *GatedStore) Release(_ context.Context, g graph.Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.(*gatedGraph).gone.Store(true)
	s.released = append(s.released, g)
	return nil
}

func (s *GatedStore) Released() []graph.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]graph.Graph(nil), s.released...)
}

type gatedGraph struct {
	*graph.Memory
	store *GatedStore
	gone  atomic.Bool
}

func (g *gatedGraph) SimpleCycles(ctx context.Context, opts graph.CycleOptions) (graph.CycleSet, error) {
	if g.store.parked.CompareAndSwap(false, true) {
		g.store.Entered <- struct{}{}
		<-g.store.Gate
	}
	if g.gone.Load() {
		return graph.CycleSet{Outcome: model.Computed()}, nil
	}
	return g.Memory.SimpleCycles(ctx, opts)
}

func (g *gatedGraph) Edges(ctx context.Context) ([]graph.Edge, error) {
	if g.gone.Load() {
		return nil, nil
	}
	return g.Memory.Edges(ctx)
}

type MockObserver struct {
	mu         sync.Mutex
	Ops        []string
	Findings   map[string]int
	Nodes      int
	Edges      int
	Truncation []string
}

func (m *MockObserver) ObserveDuration(op string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Ops = append(m.Ops, op)
}

func (m *MockObserver) ObserveFindings(pattern string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Findings == nil {
		m.Findings = map[string]int{}
	}
	m.Findings[pattern] = n
}

func (m *MockObserver) ObserveGraph(nodes, edges int) { m.Nodes, m.Edges = nodes, edges }

func (m *MockObserver) ObserveTruncation(check string) {
	m.Truncation = append(m.Truncation, check)
}

// MockCache round-trips values through JSON like the redis cache does.
type MockCache struct {
	Data map[string][]byte
	Gets int
}

func (m *MockCache) Get(_ context.Context, key string, dst any) (bool, error) {
	m.Gets++
	raw, ok := m.Data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (m *MockCache) Set(_ context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if m.Data == nil {
		m.Data = map[string][]byte{}
	}
	m.Data[key] = raw
	return nil
}
