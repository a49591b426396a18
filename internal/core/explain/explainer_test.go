package explain

import (
	"context"
	"errors"
	"testing"

	"github.com/agenthands/taxgraph/internal/config"
	"github.com/agenthands/taxgraph/internal/core/fraud"
	"github.com/agenthands/taxgraph/internal/core/model"
	"github.com/agenthands/taxgraph/internal/core/reconcile"
	"github.com/agenthands/taxgraph/internal/core/risk"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExplainer(client *MockLLMClient) *Explainer {
	logger, _ := test.NewNullLogger()
	if client == nil {
		return NewExplainer(nil, config.ExplainPrompts{}, logger)
	}
	return NewExplainer(client, config.ExplainPrompts{System: "SYS", Enhance: "finding=%s context=%s"}, logger)
}

func TestMismatch_TemplateOnly(t *testing.T) {
	ex := newExplainer(nil).Mismatch(context.Background(), reconcile.Record{
		InvoiceID:    "INV-1",
		SupplierID:   "S",
		ReceiverID:   "R",
		Status:       reconcile.StatusMissingInChannelB,
		Severity:     model.SeverityCritical,
		OutwardValue: 1_250_000,
	})

	assert.Equal(t, "INV-1", ex.Subject)
	assert.Contains(t, ex.Summary, "₹1,250,000.00")
	assert.Contains(t, ex.Summary, "(R)")
	assert.Equal(t, ex.Summary, ex.Detailed)
	assert.False(t, ex.Enhanced)
	assert.Len(t, ex.Actions, 3)
	assert.Equal(t, model.SeverityCritical, ex.Severity)
}

func TestMismatch_LLMEnhanced(t *testing.T) {
	mock := &MockLLMClient{Response: "```json\n{\"summary\": \"Seller never reported the sale.\"}\n```"}
	ex := newExplainer(mock).Mismatch(context.Background(), reconcile.Record{
		InvoiceID: "INV-2",
		Status:    reconcile.StatusValueMismatch,
		Severity:  model.SeverityWarning,
	})

	assert.True(t, ex.Enhanced)
	assert.Equal(t, "Seller never reported the sale.", ex.Detailed)
	require.Len(t, mock.Prompts, 1)
	assert.Contains(t, mock.Prompts[0], "SYS\n\nfinding=Invoice INV-2")
	assert.Contains(t, mock.Prompts[0], "context=Mismatch type: VALUE_MISMATCH, Severity: WARNING")
}

func TestMismatch_PlainTextResponse(t *testing.T) {
	mock := &MockLLMClient{Response: "  Plain answer.  "}
	ex := newExplainer(mock).Mismatch(context.Background(), reconcile.Record{Status: reconcile.StatusTaxMismatch})
	assert.True(t, ex.Enhanced)
	assert.Equal(t, "Plain answer.", ex.Detailed)
}

func TestMismatch_LLMErrorFallsBack(t *testing.T) {
	mock := &MockLLMClient{Err: errors.New("rate limited")}
	ex := newExplainer(mock).Mismatch(context.Background(), reconcile.Record{InvoiceID: "X", Status: reconcile.StatusMissingInChannelA})
	assert.False(t, ex.Enhanced)
	assert.Equal(t, ex.Summary, ex.Detailed)
}

func TestRisk(t *testing.T) {
	e := newExplainer(nil)
	ex := e.Risk(context.Background(), risk.Result{
		EntityID: "E1",
		Score:    0.45,
		Level:    risk.LevelMedium,
		Factors:  []string{"High ITC-to-sales ratio: 0.95", "3 periods with zero cash tax paid"},
	})
	assert.Contains(t, ex.Summary, "risk score of 0.45 (MEDIUM)")
	assert.Contains(t, ex.Summary, "0.95; 3 periods")
	assert.Equal(t, "RISK_MEDIUM", ex.Kind)

	ex = e.Risk(context.Background(), risk.Result{EntityID: "E2", Level: risk.LevelLow})
	assert.Contains(t, ex.Summary, "No specific risk factors identified.")
}

func TestPatterns(t *testing.T) {
	e := newExplainer(nil)
	ex := e.Circular(context.Background(), fraud.CircularTrade{
		Chain:          []string{"A", "B", "C"},
		ChainLength:    3,
		FormattedValue: "₹9,000,000.00",
		Severity:       model.SeverityCritical,
	})
	assert.Contains(t, ex.Summary, "A → B → C")
	assert.Contains(t, ex.Summary, "₹9,000,000.00")

	ex = e.Shell(context.Background(), fraud.ShellCompany{EntityID: "S", Importance: 0.001, FormattedVolume: "₹12,000,000.00"})
	assert.Contains(t, ex.Summary, "PageRank: 0.001000")
	assert.Equal(t, "SHELL_COMPANY", ex.Kind)
}
