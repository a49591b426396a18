package core

import (
	"context"
	"time"

	"github.com/agenthands/taxgraph/internal/core/graph"
)

// GraphStore hands out an empty graph for each rebuild and frees the graph a
// rebuild replaced.
type GraphStore interface {
	NewGraph(ctx context.Context) (graph.Graph, error)
	Release(ctx context.Context, g graph.Graph) error
}

// MemoryStore keeps every graph in process.
type MemoryStore struct{}

func (MemoryStore) NewGraph(context.Context) (graph.Graph, error) { return graph.NewMemory(), nil }

func (MemoryStore) Release(context.Context, graph.Graph) error { return nil }

// Observer receives analysis measurements. The metrics package implements it.
type Observer interface {
	ObserveDuration(op string, d time.Duration)
	ObserveFindings(pattern string, n int)
	ObserveGraph(nodes, edges int)
	ObserveTruncation(check string)
}

// ReportCache stores computed reports across processes. Keys already carry
// the dataset fingerprint and an options digest.
type ReportCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
}

type nopObserver struct{}

func (nopObserver) ObserveDuration(string, time.Duration) {}
func (nopObserver) ObserveFindings(string, int)           {}
func (nopObserver) ObserveGraph(int, int)                 {}
func (nopObserver) ObserveTruncation(string)              {}

type nopCache struct{}

func (nopCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (nopCache) Set(context.Context, string, any) error         { return nil }
