//go:build integration

package integration

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/taxgraph/internal/core/graph"
	"github.com/agenthands/taxgraph/internal/core/model"
	"github.com/agenthands/taxgraph/internal/driver"
)

// A Neo4j-backed graph must agree with the in-memory one on the same filings.
func TestBulkLoadMatchesMemory(t *testing.T) {
	d, _, log := connect(t)
	ctx := context.Background()

	var entities []model.Entity
	var invoices []model.OutwardInvoice
	for i := 0; i < 60; i++ {
		entities = append(entities, model.Entity{ID: gstin(100 + i), Name: fmt.Sprintf("Entity %d", i), Status: model.StatusActive, TrustScore: 0.5})
	}
	for i := 0; i < 600; i++ {
		from, to := 100+i%60, 100+(i*7+3)%60
		if from == to {
			continue
		}
		invoices = append(invoices, model.OutwardInvoice{
			InvoiceID:  fmt.Sprintf("BULK-%04d", i),
			SupplierID: gstin(from),
			ReceiverID: gstin(to),
			Value:      float64(100_000 + i*1_000),
		})
	}
	// an endpoint missing from the registry
	invoices = append(invoices, model.OutwardInvoice{InvoiceID: "BULK-X", SupplierID: gstin(100), ReceiverID: gstin(999), Value: 1})

	store := driver.NewSnapshotStore(d, log)
	remote, err := store.NewGraph(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Release(context.Background(), remote) })

	remoteStats, err := graph.Build(ctx, remote, entities, invoices)
	require.NoError(t, err)
	mem, memStats, err := graph.BuildMemory(ctx, entities, invoices)
	require.NoError(t, err)
	assert.Equal(t, memStats, remoteStats)

	nodes, err := remote.Nodes(ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, 61)
	ok, err := remote.HasNode(ctx, gstin(999))
	require.NoError(t, err)
	assert.True(t, ok)

	opts := graph.DefaultImportanceOptions()
	want, err := mem.Importance(ctx, opts)
	require.NoError(t, err)
	got, err := remote.Importance(ctx, opts)
	require.NoError(t, err)
	for id, score := range want.Scores {
		assert.InDelta(t, score, got.Scores[id], 1e-9, id)
	}

	cycleOpts := graph.DefaultCycleOptions()
	cycleOpts.MaxLength = 3
	cycleOpts.ExamineLimit = 100_000
	memCycles, err := mem.SimpleCycles(ctx, cycleOpts)
	require.NoError(t, err)
	remoteCycles, err := remote.SimpleCycles(ctx, cycleOpts)
	require.NoError(t, err)
	assert.Equal(t, len(memCycles.Cycles), len(remoteCycles.Cycles))
}
