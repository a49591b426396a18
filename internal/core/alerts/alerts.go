package alerts

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agenthands/taxgraph/internal/core/fraud"
	"github.com/agenthands/taxgraph/internal/core/model"
	"github.com/agenthands/taxgraph/internal/core/reconcile"
	"github.com/google/uuid"
)

type Type string

const (
	TypeMismatch Type = "MISMATCH"
	TypeFraud    Type = "FRAUD"
)

type Alert struct {
	ID             string         `json:"id"`
	Type           Type           `json:"type"`
	Severity       model.Severity `json:"severity"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	RelatedEntity  string         `json:"related_gstin"`
	RelatedInvoice string         `json:"related_invoice,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	Resolved       bool           `json:"resolved"`
}

// Generator turns findings into alerts. Now and NewID are replaceable for
// tests.
type Generator struct {
	Now   func() time.Time
	NewID func() string
}

func NewGenerator() *Generator {
	return &Generator{
		Now:   func() time.Time { return time.Now().UTC() },
		NewID: uuid.NewString,
	}
}

// Generate emits one alert per mismatch and per fraud finding, most severe
// first. Alerts of equal severity keep generation order.
func (g *Generator) Generate(mismatches []reconcile.Record, report fraud.Report) []Alert {
	now := g.Now()
	out := make([]Alert, 0, len(mismatches))
	add := func(a Alert) {
		a.ID = g.NewID()
		a.CreatedAt = now
		out = append(out, a)
	}

	for _, m := range mismatches {
		add(Alert{
			Type:           TypeMismatch,
			Severity:       m.Severity,
			Title:          m.Status.Title(),
			Message:        mismatchMessage(m),
			RelatedEntity:  m.SupplierID,
			RelatedInvoice: m.InvoiceID,
		})
	}

	for _, c := range report.Circular.Items {
		chain := c.Chain
		if len(chain) > 4 {
			chain = chain[:4]
		}
		add(Alert{
			Type:          TypeFraud,
			Severity:      model.SeverityCritical,
			Title:         "Circular Trading Detected",
			Message:       fmt.Sprintf("Circular trading ring: %s (Value: %s)", strings.Join(chain, " → "), c.FormattedValue),
			RelatedEntity: first(c.Chain),
		})
	}
	for _, s := range report.Shell.Items {
		add(Alert{
			Type:          TypeFraud,
			Severity:      model.SeverityCritical,
			Title:         "Suspected Shell Company",
			Message:       fmt.Sprintf("Entity %s has low importance but %s volume", s.EntityID, s.FormattedVolume),
			RelatedEntity: s.EntityID,
		})
	}
	for _, p := range report.Reciprocal.Items {
		add(Alert{
			Type:          TypeFraud,
			Severity:      model.SeverityWarning,
			Title:         "Reciprocal Trading Detected",
			Message:       fmt.Sprintf("Round-tripping: %s ↔ %s (%s combined)", p.PartyA, p.PartyB, model.FormatCurrency(p.CombinedValue)),
			RelatedEntity: p.PartyA,
		})
	}
	for _, f := range report.Repeated.Items {
		add(Alert{
			Type:          TypeFraud,
			Severity:      model.SeverityWarning,
			Title:         "Repeated Round-Amount Invoices",
			Message:       fmt.Sprintf("%d invoices of %s from %s to %s", f.RepeatedCount, f.FormattedAmount, f.SupplierID, f.ReceiverID),
			RelatedEntity: f.SupplierID,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() < out[j].Severity.Rank()
	})
	return out
}

func mismatchMessage(m reconcile.Record) string {
	switch m.Status {
	case reconcile.StatusMissingInChannelA:
		return fmt.Sprintf("Invoice %s in buyer's inward return but missing from seller's outward return", m.InvoiceID)
	case reconcile.StatusMissingInChannelB:
		return fmt.Sprintf("Invoice %s in seller's outward return but missing from buyer's inward return", m.InvoiceID)
	case reconcile.StatusValueMismatch:
		return fmt.Sprintf("Value mismatch of %s for invoice %s", model.FormatCurrency(m.ValueDifference), m.InvoiceID)
	case reconcile.StatusTaxMismatch:
		return fmt.Sprintf("Tax amount discrepancy detected for invoice %s", m.InvoiceID)
	}
	return fmt.Sprintf("Mismatch: %s for %s", m.Status, m.InvoiceID)
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// Filter keeps alerts matching severity and type; empty values match all.
func Filter(in []Alert, severity model.Severity, typ Type, limit int) []Alert {
	out := make([]Alert, 0)
	for _, a := range in {
		if severity != "" && a.Severity != severity {
			continue
		}
		if typ != "" && a.Type != typ {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
