package reconcile

import (
	"math"
	"sort"
	"strings"

	"github.com/agenthands/taxgraph/internal/core/model"
	"github.com/sirupsen/logrus"
)

// Status is the cross-channel classification of one invoice.
type Status string

const (
	// StatusMissingInChannelB: declared by the supplier, absent from the
	// buyer's inward channel.
	StatusMissingInChannelB Status = "MISSING_IN_CHANNEL_B"
	// StatusMissingInChannelA: claimed by the buyer, never declared by the
	// supplier (phantom claim).
	StatusMissingInChannelA Status = "MISSING_IN_CHANNEL_A"
	StatusValueMismatch     Status = "VALUE_MISMATCH"
	StatusTaxMismatch       Status = "TAX_MISMATCH"
	StatusFullyReconciled   Status = "FULLY_RECONCILED"
)

// Missing reports whether the invoice exists in one channel only.
func (s Status) Missing() bool {
	return s == StatusMissingInChannelA || s == StatusMissingInChannelB
}

// Title renders the status for people, e.g. "Value Mismatch".
func (s Status) Title() string {
	words := strings.Split(strings.ToLower(string(s)), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// Record is the reconciliation of a single invoice id.
type Record struct {
	InvoiceID       string         `json:"invoice_id"`
	SupplierID      string         `json:"supplier_gstin"`
	ReceiverID      string         `json:"receiver_gstin"`
	Status          Status         `json:"status"`
	Severity        model.Severity `json:"severity"`
	OutwardValue    float64        `json:"gstr1_value"`
	InwardValue     float64        `json:"gstr2b_value"`
	ValueDifference float64        `json:"value_difference"`
	TaxDifference   float64        `json:"tax_difference"`
	CreditOverclaim bool           `json:"itc_overclaimed"`
}

// Summary counts records per status.
type Summary struct {
	TotalInvoices        int `json:"total_invoices"`
	FullyReconciled      int `json:"fully_reconciled"`
	MissingInChannelA    int `json:"missing_in_gstr1"`
	MissingInChannelB    int `json:"missing_in_gstr2b"`
	ValueMismatch        int `json:"value_mismatch"`
	TaxMismatch          int `json:"tax_mismatch"`
	CreditOverclaimCount int `json:"itc_overclaimed_count"`
	// Rate is the fully reconciled share in percent, one decimal.
	Rate float64 `json:"reconciliation_rate"`
}

// Result holds every record plus the mismatches, most severe first.
type Result struct {
	Records    []Record      `json:"records"`
	Mismatches []Record      `json:"mismatches"`
	Summary    Summary       `json:"summary"`
	Outcome    model.Outcome `json:"outcome"`
}

type Options struct {
	// Tolerance absorbs rounding noise on value and tax comparisons.
	Tolerance float64 `toml:"tolerance"`
	// OverclaimFactor is the multiple of available credit above which a
	// claim is an overclaim.
	OverclaimFactor    float64 `toml:"overclaim_factor"`
	CriticalDifference float64 `toml:"critical_difference"`
	WarningDifference  float64 `toml:"warning_difference"`
}

func DefaultOptions() Options {
	return Options{
		Tolerance:          1.0,
		OverclaimFactor:    1.05,
		CriticalDifference: 100_000,
		WarningDifference:  10_000,
	}
}

type Engine struct {
	opts Options
	log  logrus.FieldLogger
}

func NewEngine(opts Options, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{opts: opts, log: log.WithField("component", "reconcile")}
}

// Reconcile full-outer-joins the outward and inward channels on invoice id,
// classifies each invoice and flags receivers whose summary credit claims
// exceed what the inward channel makes available. Empty input yields an
// empty, computed result.
func (e *Engine) Reconcile(outward []model.OutwardInvoice, inward []model.InwardRecord, summaries []model.PeriodSummary) Result {
	res := Result{Records: []Record{}, Mismatches: []Record{}, Outcome: model.Computed()}
	if len(outward) == 0 && len(inward) == 0 {
		e.log.Debug("nothing to reconcile")
		return res
	}

	inwardByID := make(map[string]int, len(inward))
	availableCredit := make(map[string]float64)
	for i, r := range inward {
		if _, dup := inwardByID[r.InvoiceID]; !dup {
			inwardByID[r.InvoiceID] = i
		}
		availableCredit[r.ReceiverID] += r.CreditAmount
	}
	totals := model.AggregateSummaries(summaries)

	seen := make(map[string]bool, len(outward))
	for _, o := range outward {
		if seen[o.InvoiceID] {
			continue
		}
		seen[o.InvoiceID] = true

		rec := Record{
			InvoiceID:    o.InvoiceID,
			SupplierID:   o.SupplierID,
			ReceiverID:   o.ReceiverID,
			OutwardValue: o.Value,
		}
		if i, ok := inwardByID[o.InvoiceID]; ok {
			in := inward[i]
			rec.InwardValue = in.Value
			rec.TaxDifference = math.Abs(o.TaxAmount - in.CreditAmount)
			rec.Status = e.classify(o.Value, in.Value, rec.TaxDifference)
		} else {
			rec.TaxDifference = math.Abs(o.TaxAmount)
			rec.Status = StatusMissingInChannelB
		}
		res.Records = append(res.Records, e.finish(rec, totals, availableCredit))
	}

	for _, in := range inward {
		if seen[in.InvoiceID] {
			continue
		}
		seen[in.InvoiceID] = true
		rec := Record{
			InvoiceID:     in.InvoiceID,
			SupplierID:    in.SupplierID,
			ReceiverID:    in.ReceiverID,
			InwardValue:   in.Value,
			TaxDifference: math.Abs(in.CreditAmount),
			Status:        StatusMissingInChannelA,
		}
		res.Records = append(res.Records, e.finish(rec, totals, availableCredit))
	}

	for _, r := range res.Records {
		res.Summary.add(r)
		if r.Status != StatusFullyReconciled {
			res.Mismatches = append(res.Mismatches, r)
		}
	}
	res.Summary.TotalInvoices = len(res.Records)
	res.Summary.Rate = model.Round(float64(res.Summary.FullyReconciled)/float64(res.Summary.TotalInvoices)*100, 1)

	sort.SliceStable(res.Mismatches, func(i, j int) bool {
		return res.Mismatches[i].Severity.Rank() < res.Mismatches[j].Severity.Rank()
	})

	e.log.WithFields(logrus.Fields{
		"invoices":   res.Summary.TotalInvoices,
		"mismatches": len(res.Mismatches),
		"rate":       res.Summary.Rate,
	}).Info("reconciliation complete")
	return res
}

func (e *Engine) classify(outValue, inValue, taxDiff float64) Status {
	if math.Abs(outValue-inValue) > e.opts.Tolerance {
		return StatusValueMismatch
	}
	if taxDiff > e.opts.Tolerance {
		return StatusTaxMismatch
	}
	return StatusFullyReconciled
}

func (e *Engine) finish(rec Record, totals map[string]model.SummaryTotals, available map[string]float64) Record {
	rec.ValueDifference = model.Round(math.Abs(rec.OutwardValue-rec.InwardValue), 2)
	rec.TaxDifference = model.Round(rec.TaxDifference, 2)
	rec.OutwardValue = model.Round(rec.OutwardValue, 2)
	rec.InwardValue = model.Round(rec.InwardValue, 2)
	rec.Severity = e.severity(rec)
	if t, ok := totals[rec.ReceiverID]; ok {
		rec.CreditOverclaim = t.CreditClaimed > available[rec.ReceiverID]*e.opts.OverclaimFactor
	}
	return rec
}

func (e *Engine) severity(rec Record) model.Severity {
	switch {
	case rec.Status.Missing():
		return model.SeverityCritical
	case rec.ValueDifference > e.opts.CriticalDifference:
		return model.SeverityCritical
	case rec.ValueDifference > e.opts.WarningDifference:
		return model.SeverityWarning
	}
	return model.SeverityInfo
}

func (s *Summary) add(r Record) {
	switch r.Status {
	case StatusFullyReconciled:
		s.FullyReconciled++
	case StatusMissingInChannelA:
		s.MissingInChannelA++
	case StatusMissingInChannelB:
		s.MissingInChannelB++
	case StatusValueMismatch:
		s.ValueMismatch++
	case StatusTaxMismatch:
		s.TaxMismatch++
	}
	if r.CreditOverclaim {
		s.CreditOverclaimCount++
	}
}

// Filter returns the mismatches matching the given status and severity;
// empty arguments match everything.
func (r Result) Filter(status Status, severity model.Severity, limit int) []Record {
	out := make([]Record, 0)
	for _, m := range r.Mismatches {
		if status != "" && m.Status != status {
			continue
		}
		if severity != "" && m.Severity != severity {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Find returns the record for an invoice id.
func (r Result) Find(invoiceID string) (Record, bool) {
	for _, rec := range r.Records {
		if rec.InvoiceID == invoiceID {
			return rec, true
		}
	}
	return Record{}, false
}
