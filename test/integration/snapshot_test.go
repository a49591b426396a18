//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/taxgraph/internal/core"
	"github.com/agenthands/taxgraph/internal/driver"
)

const countSnapshotQuery = `MATCH (t:Taxpayer {snapshot: $snapshot}) RETURN count(t) AS cnt`

func countNodes(t *testing.T, d driver.GraphDriver, snapshot string) int64 {
	t.Helper()
	res, err := d.ExecuteQuery(context.Background(), countSnapshotQuery, map[string]any{"snapshot": snapshot})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	cnt, _ := res.Records[0].Get("cnt")
	return cnt.(int64)
}

// Reloading publishes the new snapshot and then deletes the old one.
func TestReloadReplacesSnapshot(t *testing.T) {
	d, cfg, log := connect(t)
	ctx := context.Background()
	a := core.NewAnalyzer(driver.NewSnapshotStore(d, log), nil, cfg, log)

	first, err := a.Load(ctx, ringDataset())
	require.NoError(t, err)
	assert.Equal(t, int64(3), countNodes(t, d, first.Snapshot))

	ds := ringDataset()
	ds.Outward = ds.Outward[:2]
	second, err := a.Load(ctx, ds)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = d.ExecuteQuery(context.Background(), driver.DeleteSnapshotQuery, map[string]any{"snapshot": second.Snapshot})
	})

	assert.Zero(t, countNodes(t, d, first.Snapshot))
	assert.Equal(t, int64(3), countNodes(t, d, second.Snapshot))

	report, err := a.DetectPatterns(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Circular.Items)
}
