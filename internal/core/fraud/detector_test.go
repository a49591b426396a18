package fraud

import (
	"context"
	"errors"
	"testing"

	"github.com/agenthands/taxgraph/internal/core/graph"
	"github.com/agenthands/taxgraph/internal/core/model"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inv(id, from, to string, value float64) model.OutwardInvoice {
	return model.OutwardInvoice{InvoiceID: id, SupplierID: from, ReceiverID: to, Value: value}
}

func newDetector(t *testing.T, invoices ...model.OutwardInvoice) (*Detector, graph.Graph) {
	t.Helper()
	g, _, err := graph.BuildMemory(context.Background(), nil, invoices)
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	return NewDetector(g, DefaultOptions(), logger), g
}

func importance(t *testing.T, g graph.Graph) graph.Importance {
	t.Helper()
	imp, err := g.Importance(context.Background(), graph.DefaultImportanceOptions())
	require.NoError(t, err)
	return imp
}

func TestCircularTrading_Triangle(t *testing.T) {
	d, g := newDetector(t,
		inv("I1", "A", "B", 3_000_000),
		inv("I2", "B", "C", 3_000_000),
		inv("I3", "C", "A", 3_000_000),
	)

	res := d.CircularTrading(context.Background(), nil)
	require.True(t, res.Outcome.Ran())
	require.Len(t, res.Items, 1)

	c := res.Items[0]
	assert.Equal(t, []string{"A", "B", "C"}, c.Chain)
	assert.Equal(t, 3, c.ChainLength)
	assert.Equal(t, 9_000_000.0, c.CircularValue)
	assert.Equal(t, "₹9,000,000.00", c.FormattedValue)
	assert.Equal(t, model.SeverityCritical, c.Severity)

	edges, _ := g.Edges(context.Background())
	present := map[string]bool{}
	for _, e := range edges {
		present[e.InvoiceID] = true
	}
	for _, id := range c.InvoiceIDs {
		assert.True(t, present[id], id)
	}
}

func TestCircularTrading_LabelFilterAndOrdering(t *testing.T) {
	d, _ := newDetector(t,
		inv("I1", "A", "B", 100),
		inv("I2", "B", "C", 100),
		inv("I3", "C", "A", 100),
		inv("I4", "X", "Y", 5_000),
		inv("I5", "Y", "Z", 5_000),
		inv("I6", "Z", "X", 5_000),
	)
	ctx := context.Background()

	res := d.CircularTrading(ctx, nil)
	require.Len(t, res.Items, 2)
	assert.Equal(t, []string{"X", "Y", "Z"}, res.Items[0].Chain)

	// an empty label set behaves like no labels
	res = d.CircularTrading(ctx, map[string]bool{})
	assert.Len(t, res.Items, 2)

	res = d.CircularTrading(ctx, map[string]bool{"B": true})
	require.Len(t, res.Items, 1)
	assert.Equal(t, []string{"A", "B", "C"}, res.Items[0].Chain)

	res = d.CircularTrading(ctx, map[string]bool{"Q": true})
	assert.Empty(t, res.Items)
	assert.True(t, res.Outcome.Ran())
}

func TestCircularTrading_ResultLimit(t *testing.T) {
	ids := []string{"A", "B", "C", "D", "E"}
	var invoices []model.OutwardInvoice
	for _, a := range ids {
		for _, b := range ids {
			if a != b {
				invoices = append(invoices, inv(a+b, a, b, 10))
			}
		}
	}
	d, _ := newDetector(t, invoices...)
	d.opts.CycleLimit = 5

	res := d.CircularTrading(context.Background(), nil)
	assert.Len(t, res.Items, 5)
	assert.Greater(t, res.Total, 5)
	assert.True(t, res.Outcome.Truncated)
	for i := 1; i < len(res.Items); i++ {
		assert.GreaterOrEqual(t, res.Items[i-1].CircularValue, res.Items[i].CircularValue)
	}
}

func TestShellCompanies(t *testing.T) {
	invoices := []model.OutwardInvoice{
		inv("S1", "SHELL", "HUB", 8_000_000),
		inv("S2", "SHELL", "HUB", 4_000_000),
		inv("S3", "SMALL", "HUB", 20_000_000),
	}
	// many filler nodes pull the uniform share below the threshold
	for i := 0; i < 200; i++ {
		id := string(rune('a'+i%26)) + string(rune('a'+i/26))
		invoices = append(invoices, inv("F"+id, id, "HUB", 1))
	}
	d, g := newDetector(t, invoices...)
	imp := importance(t, g)

	res := d.ShellCompanies(context.Background(), imp)
	require.True(t, res.Outcome.Ran())
	require.Len(t, res.Items, 2)
	assert.Equal(t, "SMALL", res.Items[0].EntityID)
	assert.Equal(t, "SHELL", res.Items[1].EntityID)
	assert.Equal(t, 12_000_000.0, res.Items[1].TotalVolume)
	assert.Equal(t, 2, res.Items[1].InvoiceCount)
	assert.Equal(t, model.SeverityCritical, res.Items[1].Severity)
}

func TestShellCompanies_SkippedWithoutImportance(t *testing.T) {
	d, _ := newDetector(t, inv("I1", "A", "B", 1))
	res := d.ShellCompanies(context.Background(), graph.Importance{Outcome: model.Skipped("not computed")})
	assert.False(t, res.Outcome.Ran())
	assert.Contains(t, res.Outcome.Reason, "not computed")
	assert.Empty(t, res.Items)
}

func TestReciprocalTrading_CanonicalPairs(t *testing.T) {
	d, _ := newDetector(t,
		inv("I1", "B", "A", 100),
		inv("I2", "A", "B", 50),
		inv("I3", "A", "B", 25),
		inv("I4", "C", "D", 1_000),
		inv("I5", "D", "C", 1_000),
		inv("I6", "E", "F", 9_999),
	)

	res := d.ReciprocalTrading(context.Background())
	require.Len(t, res.Items, 2)

	assert.Equal(t, "C", res.Items[0].PartyA)
	assert.Equal(t, "D", res.Items[0].PartyB)
	assert.Equal(t, 2_000.0, res.Items[0].CombinedValue)

	ab := res.Items[1]
	assert.Equal(t, "A", ab.PartyA)
	assert.Equal(t, "B", ab.PartyB)
	assert.Equal(t, 75.0, ab.AToBValue)
	assert.Equal(t, 100.0, ab.BToAValue)
	assert.Equal(t, []string{"I2", "I3"}, ab.AToBInvoices)
	assert.Equal(t, []string{"I1"}, ab.BToAInvoices)
	assert.Equal(t, model.SeverityWarning, ab.Severity)

	seen := map[[2]string]bool{}
	for _, p := range res.Items {
		key := [2]string{p.PartyA, p.PartyB}
		assert.False(t, seen[key])
		seen[key] = true
	}
}

func TestRepeatedInvoices(t *testing.T) {
	var invoices []model.OutwardInvoice
	for i := 0; i < 5; i++ {
		invoices = append(invoices, inv("X"+string(rune('0'+i)), "X", "Y", 600_000))
	}
	invoices = append(invoices,
		// three distinct amounts: not repeated billing
		inv("P1", "P", "Q", 600_000),
		inv("P2", "P", "Q", 700_000),
		inv("P3", "P", "Q", 800_000),
		// not round or too small
		inv("R1", "R", "S", 600_001),
		inv("R2", "R", "S", 500_000),
		inv("R3", "R", "S", 600_000),
	)
	d, _ := newDetector(t, invoices...)

	res := d.RepeatedInvoices(context.Background())
	require.Len(t, res.Items, 1)
	f := res.Items[0]
	assert.Equal(t, "X", f.SupplierID)
	assert.Equal(t, "Y", f.ReceiverID)
	assert.Equal(t, 5, f.RepeatedCount)
	assert.Equal(t, 600_000.0, f.RepeatedAmount)
	assert.Equal(t, 3_000_000.0, f.TotalValue)
	assert.Equal(t, 1, f.DistinctAmounts)
	assert.Equal(t, model.SeverityWarning, f.Severity)
}

func TestDetectAll_CombinedReport(t *testing.T) {
	d, g := newDetector(t,
		inv("I1", "A", "B", 3_000_000),
		inv("I2", "B", "C", 3_000_000),
		inv("I3", "C", "A", 3_000_000),
		inv("I4", "B", "A", 10),
		inv("I5", "X", "Y", 600_000),
		inv("I6", "X", "Y", 600_000),
		inv("I7", "X", "Y", 600_000),
	)

	r := d.DetectAll(context.Background(), Input{Importance: importance(t, g)})

	assert.Equal(t, 1, r.Summary.CircularCount)
	assert.Equal(t, 1, r.Summary.ReciprocalCount)
	assert.Equal(t, 1, r.Summary.RepeatedCount)
	assert.Equal(t, 0, r.Summary.ShellCount)
	assert.Equal(t, 5, r.Summary.UniqueEntitiesFlagged)
	assert.ElementsMatch(t, []string{"A", "B", "C", "X", "Y"}, r.FlaggedEntities())

	require.Len(t, r.Clusters, 2)
	assert.Equal(t, []string{"A", "B", "C"}, r.Clusters[0].Members)
	assert.Equal(t, []string{"X", "Y"}, r.Clusters[1].Members)
}

type failingGraph struct{ graph.Graph }

func (failingGraph) Edges(context.Context) ([]graph.Edge, error) {
	return nil, errors.New("backend down")
}

func (failingGraph) Nodes(context.Context) ([]graph.Node, error) {
	return nil, errors.New("backend down")
}

func (failingGraph) SimpleCycles(context.Context, graph.CycleOptions) (graph.CycleSet, error) {
	return graph.CycleSet{}, errors.New("backend down")
}

func TestDetectAll_BackendErrorsDegradeToSkipped(t *testing.T) {
	logger, hook := test.NewNullLogger()
	d := NewDetector(failingGraph{}, DefaultOptions(), logger)

	r := d.DetectAll(context.Background(), Input{Importance: graph.Importance{Outcome: model.Computed()}})

	assert.False(t, r.Circular.Outcome.Ran())
	assert.False(t, r.Shell.Outcome.Ran())
	assert.False(t, r.Reciprocal.Outcome.Ran())
	assert.False(t, r.Repeated.Outcome.Ran())
	assert.Equal(t, "backend down", r.Reciprocal.Outcome.Reason)
	assert.Zero(t, r.Summary.UniqueEntitiesFlagged)
	assert.NotEmpty(t, hook.AllEntries())
}
