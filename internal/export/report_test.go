package export

import (
	"bytes"
	"testing"

	"github.com/agenthands/taxgraph/internal/core/fraud"
	"github.com/agenthands/taxgraph/internal/core/model"
	"github.com/agenthands/taxgraph/internal/core/reconcile"
	"github.com/agenthands/taxgraph/internal/core/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleInput() Input {
	return Input{
		Mismatches: []reconcile.Record{{
			InvoiceID: "INV-1", SupplierID: "A", ReceiverID: "B",
			Status: reconcile.StatusMissingInChannelB, Severity: model.SeverityCritical,
			OutwardValue: 3_000_000, ValueDifference: 3_000_000,
		}},
		Patterns: fraud.Report{
			Circular: fraud.Check[fraud.CircularTrade]{Items: []fraud.CircularTrade{{
				Chain: []string{"A", "B", "C"}, ChainLength: 3, CircularValue: 9_000_000,
				InvoiceIDs: []string{"INV-1", "INV-2", "INV-3"}, Severity: model.SeverityCritical,
			}}},
			Repeated: fraud.Check[fraud.RepeatedInvoices]{Items: []fraud.RepeatedInvoices{{
				SupplierID: "X", ReceiverID: "Y", RepeatedCount: 5, RepeatedAmount: 600_000,
			}}},
		},
		Leaderboard: []risk.Result{
			{EntityID: "D", Score: 0.95, Level: risk.LevelCritical, Factors: []string{"Known fraud"}},
			{EntityID: "B", Score: 0.45, Level: risk.LevelMedium},
		},
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleInput()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetMismatches, SheetCircular, SheetShell, SheetReciprocal, SheetRepeated, SheetLeaderboard}, f.GetSheetList())

	rows, err := f.GetRows(SheetMismatches)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Invoice", rows[0][0])
	assert.Equal(t, "MISSING_IN_CHANNEL_B", rows[1][3])

	rows, err = f.GetRows(SheetCircular)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A -> B -> C", rows[1][0])
	assert.Equal(t, "INV-1, INV-2, INV-3", rows[1][3])

	rows, err = f.GetRows(SheetLeaderboard)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "D", rows[1][1])
	assert.Equal(t, "CRITICAL", rows[1][3])

	rows, err = f.GetRows(SheetShell)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
