package alerts

import (
	"fmt"
	"testing"
	"time"

	"github.com/agenthands/taxgraph/internal/core/fraud"
	"github.com/agenthands/taxgraph/internal/core/model"
	"github.com/agenthands/taxgraph/internal/core/reconcile"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedGenerator() *Generator {
	n := 0
	return &Generator{
		Now: func() time.Time { return time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC) },
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	}
}

func TestGenerate(t *testing.T) {
	mismatches := []reconcile.Record{
		{InvoiceID: "I1", SupplierID: "S1", Status: reconcile.StatusMissingInChannelB, Severity: model.SeverityCritical},
		{InvoiceID: "I2", SupplierID: "S2", Status: reconcile.StatusValueMismatch, Severity: model.SeverityInfo, ValueDifference: 12.5},
	}
	report := fraud.Report{
		Circular: fraud.Check[fraud.CircularTrade]{Items: []fraud.CircularTrade{
			{Chain: []string{"A", "B", "C", "D", "E"}, FormattedValue: "₹1.00"},
		}},
		Shell:      fraud.Check[fraud.ShellCompany]{Items: []fraud.ShellCompany{{EntityID: "SH", FormattedVolume: "₹2.00"}}},
		Reciprocal: fraud.Check[fraud.ReciprocalTrade]{Items: []fraud.ReciprocalTrade{{PartyA: "P", PartyB: "Q", CombinedValue: 10}}},
		Repeated:   fraud.Check[fraud.RepeatedInvoices]{Items: []fraud.RepeatedInvoices{{SupplierID: "X", ReceiverID: "Y", RepeatedCount: 5, FormattedAmount: "₹600,000.00"}}},
	}

	got := fixedGenerator().Generate(mismatches, report)
	require.Len(t, got, 6)

	var sev []model.Severity
	for _, a := range got {
		sev = append(sev, a.Severity)
		assert.False(t, a.Resolved)
		assert.Equal(t, 2024, a.CreatedAt.Year())
	}
	assert.Equal(t, []model.Severity{
		model.SeverityCritical, model.SeverityCritical, model.SeverityCritical,
		model.SeverityWarning, model.SeverityWarning, model.SeverityInfo,
	}, sev)

	assert.Equal(t, "id-1", got[0].ID)
	assert.Equal(t, "Missing In Channel B", got[0].Title)
	assert.Equal(t, "I1", got[0].RelatedInvoice)

	assert.Equal(t, "Circular Trading Detected", got[1].Title)
	assert.Equal(t, "Circular trading ring: A → B → C → D (Value: ₹1.00)", got[1].Message)
	assert.Equal(t, "A", got[1].RelatedEntity)

	assert.Equal(t, "SH", got[2].RelatedEntity)
	assert.Equal(t, TypeFraud, got[3].Type)
	assert.Contains(t, got[4].Message, "5 invoices of ₹600,000.00")
	assert.Equal(t, "Value mismatch of ₹12.50 for invoice I2", got[5].Message)
	assert.Equal(t, TypeMismatch, got[5].Type)
}

func TestGenerate_DefaultIDsAreUUIDs(t *testing.T) {
	got := NewGenerator().Generate([]reconcile.Record{{InvoiceID: "I", Status: reconcile.StatusTaxMismatch, Severity: model.SeverityInfo}}, fraud.Report{})
	require.Len(t, got, 1)
	_, err := uuid.Parse(got[0].ID)
	assert.NoError(t, err)
}

func TestFilter(t *testing.T) {
	in := []Alert{
		{Type: TypeFraud, Severity: model.SeverityCritical},
		{Type: TypeMismatch, Severity: model.SeverityCritical},
		{Type: TypeMismatch, Severity: model.SeverityInfo},
	}
	assert.Len(t, Filter(in, model.SeverityCritical, "", 0), 2)
	assert.Len(t, Filter(in, "", TypeMismatch, 0), 2)
	assert.Len(t, Filter(in, "", "", 1), 1)
	assert.Empty(t, Filter(in, model.SeverityWarning, TypeFraud, 0))
}
