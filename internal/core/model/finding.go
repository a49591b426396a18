package model

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Severity of a finding.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

// Rank orders severities for reporting, most severe first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	}
	return 3
}

// OutcomeStatus tells whether a check ran.
type OutcomeStatus string

const (
	OutcomeComputed OutcomeStatus = "computed"
	OutcomeSkipped  OutcomeStatus = "skipped"
)

// Outcome separates "computed, nothing found" from "not computed". Truncated
// is set when a cost cap cut the computation short.
type Outcome struct {
	Status    OutcomeStatus `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	Truncated bool          `json:"truncated,omitempty"`
}

func Computed() Outcome { return Outcome{Status: OutcomeComputed} }

func Skipped(reason string) Outcome {
	return Outcome{Status: OutcomeSkipped, Reason: reason}
}

func (o Outcome) Ran() bool { return o.Status == OutcomeComputed }

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// FormatCurrency renders a rupee amount with thousands separators, e.g. ₹9,000,000.00.
func FormatCurrency(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "₹" + b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}
