package model

import "strings"

// Dataset is one complete, already validated snapshot of filings.
type Dataset struct {
	Entities  []Entity         `json:"taxpayers"`
	Outward   []OutwardInvoice `json:"gstr1"`
	Inward    []InwardRecord   `json:"gstr2b"`
	Summaries []PeriodSummary  `json:"gstr3b"`
	// Labels is nil when no ground truth was supplied at all.
	Labels []FraudLabel `json:"fraud_labels,omitempty"`
}

// Empty reports whether the dataset carries neither entities nor invoices.
func (d *Dataset) Empty() bool {
	return d == nil || (len(d.Entities) == 0 && len(d.Outward) == 0 && len(d.Inward) == 0)
}

// LabelIndex returns the first label per entity id.
func (d *Dataset) LabelIndex() map[string]FraudLabel {
	idx := make(map[string]FraudLabel, len(d.Labels))
	for _, l := range d.Labels {
		if _, ok := idx[l.EntityID]; !ok {
			idx[l.EntityID] = l
		}
	}
	return idx
}

// CircularEntities returns the ids labelled with a circular fraud type.
func (d *Dataset) CircularEntities() map[string]bool {
	out := make(map[string]bool)
	for _, l := range d.Labels {
		if l.EntityID != "" && strings.Contains(strings.ToLower(l.FraudType), "circular") {
			out[l.EntityID] = true
		}
	}
	return out
}

// SummaryTotals is a PeriodSummary summed across periods.
type SummaryTotals struct {
	SalesTotal      float64
	CreditClaimed   float64
	CashTaxPaid     float64
	Filings         int
	ZeroCashPeriods int
}

// AggregateSummaries sums period summaries per entity.
func AggregateSummaries(rows []PeriodSummary) map[string]SummaryTotals {
	out := make(map[string]SummaryTotals)
	for _, r := range rows {
		t := out[r.EntityID]
		t.SalesTotal += r.SalesTotal
		t.CreditClaimed += r.CreditClaimed
		t.CashTaxPaid += r.CashTaxPaid
		t.Filings++
		if r.CashTaxPaid == 0 {
			t.ZeroCashPeriods++
		}
		out[r.EntityID] = t
	}
	return out
}
