package anomaly

import (
	"fmt"
	"math"
	"sort"

	"github.com/agenthands/taxgraph/internal/core/model"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

type Options struct {
	InvoiceZ       float64 `toml:"invoice_z"`
	RatioZ         float64 `toml:"ratio_z"`
	MinSamples     int     `toml:"min_samples"`
	IQRMultiplier  float64 `toml:"iqr_multiplier"`
	ReportLimit    int     `toml:"report_limit"`
	RatioCritical  float64 `toml:"ratio_critical"`
	RatioWarning   float64 `toml:"ratio_warning"`
	ZCritical      float64 `toml:"z_critical"`
	ZWarning       float64 `toml:"z_warning"`
	ConfidenceZ    float64 `toml:"confidence_z"`
	ConfidenceIQRs float64 `toml:"confidence_iqrs"`
}

func DefaultOptions() Options {
	return Options{
		InvoiceZ:       2.5,
		RatioZ:         2.0,
		MinSamples:     5,
		IQRMultiplier:  1.5,
		ReportLimit:    50,
		RatioCritical:  0.95,
		RatioWarning:   0.7,
		ZCritical:      4,
		ZWarning:       3,
		ConfidenceZ:    5,
		ConfidenceIQRs: 3,
	}
}

type InvoiceAnomaly struct {
	InvoiceID  string         `json:"invoice_id"`
	SupplierID string         `json:"supplier_gstin"`
	ReceiverID string         `json:"receiver_gstin"`
	Value      float64        `json:"total_value"`
	ZScore     float64        `json:"z_score"`
	Direction  string         `json:"anomaly_direction"`
	Confidence float64        `json:"confidence"`
	Severity   model.Severity `json:"severity"`
}

type SupplierAnomaly struct {
	EntityID     string         `json:"gstin"`
	Metric       string         `json:"metric"`
	Value        float64        `json:"value"`
	Formatted    string         `json:"formatted_value"`
	UpperFence   float64        `json:"upper_fence"`
	LowerFence   float64        `json:"lower_fence"`
	Direction    string         `json:"direction"`
	Deviation    float64        `json:"iqr_deviation"`
	Confidence   float64        `json:"confidence"`
	InvoiceCount int            `json:"invoice_count"`
	Severity     model.Severity `json:"severity"`
}

type RatioAnomaly struct {
	EntityID      string         `json:"gstin"`
	Ratio         float64        `json:"itc_ratio"`
	CreditClaimed float64        `json:"total_itc"`
	SalesTotal    float64        `json:"total_sales"`
	ZScore        float64        `json:"z_score"`
	Confidence    float64        `json:"confidence"`
	Severity      model.Severity `json:"severity"`
	Reason        string         `json:"reason"`
}

type Summary struct {
	InvoiceCount          int `json:"invoice_anomaly_count"`
	SupplierCount         int `json:"vendor_anomaly_count"`
	RatioCount            int `json:"itc_anomaly_count"`
	Total                 int `json:"total_anomalies"`
	UniqueEntitiesFlagged int `json:"unique_entities_flagged"`
}

// Report lists are cut to the report limit; Summary counts everything.
type Report struct {
	Invoices  []InvoiceAnomaly  `json:"invoice_anomalies"`
	Suppliers []SupplierAnomaly `json:"vendor_anomalies"`
	Ratios    []RatioAnomaly    `json:"itc_anomalies"`
	Summary   Summary           `json:"summary"`
}

// Detector finds statistical outliers in the filings.
type Detector struct {
	opts Options
	log  logrus.FieldLogger
}

func NewDetector(opts Options, log logrus.FieldLogger) *Detector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Detector{opts: opts, log: log.WithField("component", "anomaly")}
}

// InvoiceValues flags invoices whose value is far from the mean in sample
// standard deviations.
func (d *Detector) InvoiceValues(invoices []model.OutwardInvoice) []InvoiceAnomaly {
	out := []InvoiceAnomaly{}
	if len(invoices) < d.opts.MinSamples {
		return out
	}
	values := make([]float64, len(invoices))
	for i, inv := range invoices {
		values[i] = inv.Value
	}
	mean, std := stat.MeanStdDev(values, nil)
	if std == 0 || math.IsNaN(std) {
		return out
	}

	for _, inv := range invoices {
		z := (inv.Value - mean) / std
		if math.Abs(z) <= d.opts.InvoiceZ {
			continue
		}
		dir := "UNUSUALLY_HIGH"
		if z < 0 {
			dir = "UNUSUALLY_LOW"
		}
		out = append(out, InvoiceAnomaly{
			InvoiceID:  inv.InvoiceID,
			SupplierID: inv.SupplierID,
			ReceiverID: inv.ReceiverID,
			Value:      model.Round(inv.Value, 2),
			ZScore:     model.Round(z, 3),
			Direction:  dir,
			Confidence: model.Round(math.Min(math.Abs(z)/d.opts.ConfidenceZ, 1), 3),
			Severity:   d.zSeverity(math.Abs(z)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].ZScore) > math.Abs(out[j].ZScore)
	})
	return out
}

func (d *Detector) zSeverity(absZ float64) model.Severity {
	switch {
	case absZ > d.opts.ZCritical:
		return model.SeverityCritical
	case absZ > d.opts.ZWarning:
		return model.SeverityWarning
	}
	return model.SeverityInfo
}

type supplierStats struct {
	id     string
	volume float64
	count  int
}

func (s supplierStats) metric(name string) float64 {
	if name == "avg_invoice" {
		return s.volume / float64(s.count)
	}
	return s.volume
}

// Suppliers flags suppliers outside the interquartile fences on total volume
// or average invoice value.
func (d *Detector) Suppliers(invoices []model.OutwardInvoice) []SupplierAnomaly {
	out := []SupplierAnomaly{}
	idx := make(map[string]int)
	var suppliers []supplierStats
	for _, inv := range invoices {
		i, ok := idx[inv.SupplierID]
		if !ok {
			i = len(suppliers)
			idx[inv.SupplierID] = i
			suppliers = append(suppliers, supplierStats{id: inv.SupplierID})
		}
		suppliers[i].volume += inv.Value
		suppliers[i].count++
	}
	if len(suppliers) < d.opts.MinSamples {
		return out
	}

	for _, metric := range []string{"total_volume", "avg_invoice"} {
		values := make([]float64, len(suppliers))
		for i, s := range suppliers {
			values[i] = s.metric(metric)
		}
		sort.Float64s(values)
		q1 := stat.Quantile(0.25, stat.LinInterp, values, nil)
		q3 := stat.Quantile(0.75, stat.LinInterp, values, nil)
		iqr := q3 - q1
		if iqr == 0 {
			continue
		}
		upper := q3 + d.opts.IQRMultiplier*iqr
		lower := q1 - d.opts.IQRMultiplier*iqr

		for _, s := range suppliers {
			v := s.metric(metric)
			var dev float64
			var dir string
			switch {
			case v > upper:
				dev, dir = (v-upper)/iqr, "ABOVE_UPPER_FENCE"
			case v < lower:
				dev, dir = (lower-v)/iqr, "BELOW_LOWER_FENCE"
			default:
				continue
			}
			conf := model.Round(math.Min(dev/d.opts.ConfidenceIQRs, 1), 3)
			out = append(out, SupplierAnomaly{
				EntityID:     s.id,
				Metric:       metric,
				Value:        model.Round(v, 2),
				Formatted:    model.FormatCurrency(v),
				UpperFence:   model.Round(upper, 2),
				LowerFence:   model.Round(lower, 2),
				Direction:    dir,
				Deviation:    model.Round(dev, 3),
				Confidence:   conf,
				InvoiceCount: s.count,
				Severity:     confidenceSeverity(conf),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

func confidenceSeverity(c float64) model.Severity {
	switch {
	case c > 0.8:
		return model.SeverityCritical
	case c > 0.5:
		return model.SeverityWarning
	}
	return model.SeverityInfo
}

// CreditRatios flags entities whose claimed-credit to declared-sales ratio is
// far from the population mean.
func (d *Detector) CreditRatios(summaries []model.PeriodSummary) []RatioAnomaly {
	out := []RatioAnomaly{}
	totals := model.AggregateSummaries(summaries)
	if len(totals) < d.opts.MinSamples {
		return out
	}

	ids := make([]string, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	ratios := make([]float64, len(ids))
	for i, id := range ids {
		t := totals[id]
		ratios[i] = t.CreditClaimed / math.Max(t.SalesTotal, 1)
	}
	mean, std := stat.MeanStdDev(ratios, nil)
	if std == 0 || math.IsNaN(std) {
		return out
	}

	for i, id := range ids {
		r := ratios[i]
		z := (r - mean) / std
		if math.Abs(z) < d.opts.RatioZ {
			continue
		}
		sev := model.SeverityInfo
		switch {
		case r > d.opts.RatioCritical:
			sev = model.SeverityCritical
		case r > d.opts.RatioWarning:
			sev = model.SeverityWarning
		}
		t := totals[id]
		out = append(out, RatioAnomaly{
			EntityID:      id,
			Ratio:         model.Round(r, 4),
			CreditClaimed: model.Round(t.CreditClaimed, 2),
			SalesTotal:    model.Round(t.SalesTotal, 2),
			ZScore:        model.Round(z, 3),
			Confidence:    model.Round(math.Min(math.Abs(z)/d.opts.ConfidenceZ, 1), 3),
			Severity:      sev,
			Reason: fmt.Sprintf("ITC/Sales ratio of %.2f%% is %.1fσ from mean (%.2f%%)",
				r*100, math.Abs(z), mean*100),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// Report runs every detector.
func (d *Detector) Report(ds *model.Dataset) Report {
	if ds == nil {
		ds = &model.Dataset{}
	}
	inv := d.InvoiceValues(ds.Outward)
	sup := d.Suppliers(ds.Outward)
	rat := d.CreditRatios(ds.Summaries)

	flagged := make(map[string]bool)
	for _, a := range inv {
		flagged[a.SupplierID] = true
	}
	for _, a := range sup {
		flagged[a.EntityID] = true
	}
	for _, a := range rat {
		flagged[a.EntityID] = true
	}

	r := Report{
		Invoices:  truncate(inv, d.opts.ReportLimit),
		Suppliers: truncate(sup, d.opts.ReportLimit),
		Ratios:    truncate(rat, d.opts.ReportLimit),
		Summary: Summary{
			InvoiceCount:          len(inv),
			SupplierCount:         len(sup),
			RatioCount:            len(rat),
			Total:                 len(inv) + len(sup) + len(rat),
			UniqueEntitiesFlagged: len(flagged),
		},
	}
	d.log.WithField("anomalies", r.Summary.Total).Info("anomaly scan complete")
	return r
}

func truncate[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
