package risk

import (
	"context"
	"testing"

	"github.com/agenthands/taxgraph/internal/core/graph"
	"github.com/agenthands/taxgraph/internal/core/model"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_Rules(t *testing.T) {
	o := DefaultOptions()

	tests := []struct {
		name  string
		f     Features
		score float64
		level Level
	}{
		{"clean", Features{Importance: 0.1}, 0, LevelLow},
		{"high ratio", Features{Importance: 0.1, CreditToSales: 0.95}, 0.25, LevelLow},
		{"mid ratio", Features{Importance: 0.1, CreditToSales: 0.6}, 0.10, LevelLow},
		{"one zero cash period", Features{Importance: 0.1, ZeroCashPeriods: 1}, 0.10, LevelLow},
		{"many zero cash periods", Features{Importance: 0.1, ZeroCashPeriods: 3}, 0.20, LevelLow},
		{"shell signature", Features{Importance: 0.001, OutwardValue: 6_000_000}, 0.25, LevelLow},
		{"high degree", Features{Importance: 0.1, InDegree: 15, OutDegree: 6}, 0.05, LevelLow},
		{"large invoices", Features{Importance: 0.1, InvoicesIssued: 2, OutwardValue: 2_500_000}, 0.10, LevelLow},
		{
			"everything",
			Features{
				Importance:      0.001,
				CreditToSales:   0.99,
				ZeroCashPeriods: 6,
				OutwardValue:    9_000_000,
				InvoicesIssued:  3,
				InDegree:        30,
			},
			0.85, LevelHigh,
		},
		{"medium", Features{Importance: 0.1, CreditToSales: 0.95, ZeroCashPeriods: 3}, 0.45, LevelMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := o.Score(tt.f)
			assert.InDelta(t, tt.score, res.Score, 1e-9)
			assert.Equal(t, tt.level, res.Level)
			assert.Equal(t, res, o.Score(tt.f), "scoring is deterministic")
		})
	}
}

func TestScore_KnownFraudDominates(t *testing.T) {
	o := DefaultOptions()
	res := o.Score(Features{KnownFraud: true, FraudType: "circular_trading"})
	assert.Equal(t, 0.95, res.Score)
	assert.Equal(t, LevelCritical, res.Level)
	assert.Equal(t, []string{"Known fraud label: circular_trading"}, res.Factors)

	res = o.Score(Features{KnownFraud: true, CreditToSales: 5, ZeroCashPeriods: 12, Importance: 0})
	assert.GreaterOrEqual(t, res.Score, 0.95)
}

func TestLevelThresholds(t *testing.T) {
	o := DefaultOptions()
	assert.Equal(t, LevelCritical, o.Level(0.86))
	assert.Equal(t, LevelHigh, o.Level(0.85))
	assert.Equal(t, LevelHigh, o.Level(0.66))
	assert.Equal(t, LevelMedium, o.Level(0.65))
	assert.Equal(t, LevelMedium, o.Level(0.36))
	assert.Equal(t, LevelLow, o.Level(0.35))
}

func newEngine(t *testing.T, ds *model.Dataset) *Engine {
	t.Helper()
	ctx := context.Background()
	g, _, err := graph.BuildMemory(ctx, ds.Entities, ds.Outward)
	require.NoError(t, err)
	imp, err := g.Importance(ctx, graph.DefaultImportanceOptions())
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	e, err := NewEngine(ctx, g, ds, imp, DefaultOptions(), logger)
	require.NoError(t, err)
	return e
}

func sampleDataset() *model.Dataset {
	return &model.Dataset{
		Entities: []model.Entity{{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"}},
		Outward: []model.OutwardInvoice{
			{InvoiceID: "I1", SupplierID: "A", ReceiverID: "B", Value: 2_000_000},
			{InvoiceID: "I2", SupplierID: "A", ReceiverID: "C", Value: 1_000_000},
			{InvoiceID: "I3", SupplierID: "B", ReceiverID: "C", Value: 100},
		},
		Summaries: []model.PeriodSummary{
			{EntityID: "B", Period: "01", SalesTotal: 100, CreditClaimed: 95, CashTaxPaid: 0},
			{EntityID: "B", Period: "02", SalesTotal: 100, CreditClaimed: 95, CashTaxPaid: 0},
			{EntityID: "B", Period: "03", SalesTotal: 0, CreditClaimed: 0, CashTaxPaid: 0},
			{EntityID: "C", Period: "01", SalesTotal: 0, CreditClaimed: 50, CashTaxPaid: 10},
		},
		Labels: []model.FraudLabel{
			{EntityID: "D", IsFraud: true, FraudType: "shell"},
			{EntityID: "D", IsFraud: false, FraudType: "ignored"},
		},
	}
}

func TestFeatures(t *testing.T) {
	e := newEngine(t, sampleDataset())

	a, err := e.Features("A")
	require.NoError(t, err)
	assert.Equal(t, 2, a.OutDegree)
	assert.Equal(t, 0, a.InDegree)
	assert.Equal(t, 2, a.InvoicesIssued)
	assert.Equal(t, 3_000_000.0, a.OutwardValue)
	assert.Equal(t, 1_500_000.0, a.AvgIssuedValue)
	assert.Equal(t, 0, a.FilingCount)
	assert.Equal(t, "None", a.FraudType)
	assert.Greater(t, a.Importance, 0.0)

	b, err := e.Features("B")
	require.NoError(t, err)
	assert.Equal(t, 1, b.InDegree)
	assert.Equal(t, 1, b.OutDegree)
	assert.Equal(t, 3, b.FilingCount)
	assert.Equal(t, 3, b.ZeroCashPeriods)
	assert.Equal(t, 0.95, b.CreditToSales)

	c, err := e.Features("C")
	require.NoError(t, err)
	assert.Equal(t, 50.0, c.CreditToSales, "sales floor of one")

	d, err := e.Features("D")
	require.NoError(t, err)
	assert.True(t, d.KnownFraud)
	assert.Equal(t, "shell", d.FraudType)

	_, err = e.Features("NOPE")
	assert.ErrorIs(t, err, model.ErrUnknownEntity)
}

func TestLeaderboard(t *testing.T) {
	e := newEngine(t, sampleDataset())

	all := e.Leaderboard(0)
	require.Len(t, all, 4)
	assert.Equal(t, "D", all[0].EntityID)
	assert.Equal(t, "B", all[1].EntityID)
	assert.Equal(t, 0.45, all[1].Score)
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].Score, all[i].Score)
	}

	top := e.Leaderboard(2)
	assert.Equal(t, all[:2], top)
}

func TestLeaderboard_StableUnderRemovalOutsideTopN(t *testing.T) {
	ds := sampleDataset()
	top := newEngine(t, ds).Leaderboard(2)

	// drop A, the lowest scorer, with every invoice it issued
	ds.Entities = ds.Entities[1:]
	ds.Outward = ds.Outward[2:]
	trimmed := newEngine(t, ds).Leaderboard(2)

	ids := func(rs []Result) []string {
		var out []string
		for _, r := range rs {
			out = append(out, r.EntityID)
		}
		return out
	}
	assert.Equal(t, ids(top), ids(trimmed))
}
