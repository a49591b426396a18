package risk

import (
	"context"
	"fmt"
	"math"

	"github.com/agenthands/taxgraph/internal/core/graph"
	"github.com/agenthands/taxgraph/internal/core/model"
)

// Features is the fixed per-entity feature vector shared by risk scoring and
// external classifiers.
type Features struct {
	EntityID         string  `json:"gstin"`
	Importance       float64 `json:"pagerank_score"`
	InDegree         int     `json:"in_degree"`
	OutDegree        int     `json:"out_degree"`
	InvoicesIssued   int     `json:"total_invoices_issued"`
	InvoicesReceived int     `json:"total_invoices_received"`
	OutwardValue     float64 `json:"total_outward_value"`
	InwardValue      float64 `json:"total_inward_value"`
	AvgIssuedValue   float64 `json:"avg_invoice_value"`
	FilingCount      int     `json:"filing_count"`
	SalesDeclared    float64 `json:"total_sales_declared"`
	CreditClaimed    float64 `json:"total_itc_claimed"`
	CashTaxPaid      float64 `json:"total_tax_paid_cash"`
	ZeroCashPeriods  int     `json:"zero_cash_tax_months"`
	CreditToSales    float64 `json:"itc_to_sales_ratio"`
	KnownFraud       bool    `json:"is_known_fraud"`
	FraudType        string  `json:"fraud_type"`
}

// Degree is in-degree plus out-degree.
func (f Features) Degree() int { return f.InDegree + f.OutDegree }

type invoiceStats struct {
	issued, received int
	outValue, inVal  float64
}

// index holds everything feature extraction needs, built once per snapshot.
type index struct {
	candidates []string
	nodes      map[string]bool
	inDegree   map[string]int
	outDegree  map[string]int
	invoices   map[string]invoiceStats
	summaries  map[string]model.SummaryTotals
	labels     map[string]model.FraudLabel
	imp        graph.Importance
}

func buildIndex(ctx context.Context, g graph.Graph, ds *model.Dataset, imp graph.Importance) (*index, error) {
	nodes, err := g.Nodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("risk index: %w", err)
	}
	edges, err := g.Edges(ctx)
	if err != nil {
		return nil, fmt.Errorf("risk index: %w", err)
	}

	idx := &index{
		candidates: make([]string, 0, len(nodes)),
		nodes:      make(map[string]bool, len(nodes)),
		inDegree:   make(map[string]int),
		outDegree:  make(map[string]int),
		invoices:   make(map[string]invoiceStats),
		summaries:  map[string]model.SummaryTotals{},
		labels:     map[string]model.FraudLabel{},
		imp:        imp,
	}
	for _, n := range nodes {
		idx.candidates = append(idx.candidates, n.ID)
		idx.nodes[n.ID] = true
	}
	for _, e := range edges {
		idx.outDegree[e.From]++
		idx.inDegree[e.To]++
	}
	if ds != nil {
		for _, inv := range ds.Outward {
			s := idx.invoices[inv.SupplierID]
			s.issued++
			s.outValue += inv.Value
			idx.invoices[inv.SupplierID] = s

			r := idx.invoices[inv.ReceiverID]
			r.received++
			r.inVal += inv.Value
			idx.invoices[inv.ReceiverID] = r
		}
		idx.summaries = model.AggregateSummaries(ds.Summaries)
		idx.labels = ds.LabelIndex()
	}
	return idx, nil
}

func (idx *index) known(id string) bool {
	if idx.nodes[id] {
		return true
	}
	if _, ok := idx.invoices[id]; ok {
		return true
	}
	_, ok := idx.summaries[id]
	return ok
}

func (idx *index) features(id string) Features {
	f := Features{
		EntityID:   id,
		Importance: model.Round(idx.imp.Score(id), 6),
		InDegree:   idx.inDegree[id],
		OutDegree:  idx.outDegree[id],
		FraudType:  "None",
	}

	inv := idx.invoices[id]
	f.InvoicesIssued = inv.issued
	f.InvoicesReceived = inv.received
	f.OutwardValue = model.Round(inv.outValue, 2)
	f.InwardValue = model.Round(inv.inVal, 2)
	if inv.issued > 0 {
		f.AvgIssuedValue = model.Round(inv.outValue/float64(inv.issued), 2)
	}

	if t, ok := idx.summaries[id]; ok {
		f.FilingCount = t.Filings
		f.SalesDeclared = model.Round(t.SalesTotal, 2)
		f.CreditClaimed = model.Round(t.CreditClaimed, 2)
		f.CashTaxPaid = model.Round(t.CashTaxPaid, 2)
		f.ZeroCashPeriods = t.ZeroCashPeriods
		f.CreditToSales = model.Round(t.CreditClaimed/math.Max(t.SalesTotal, 1), 4)
	}

	if l, ok := idx.labels[id]; ok {
		f.KnownFraud = l.IsFraud
		if l.FraudType != "" {
			f.FraudType = l.FraudType
		}
	}
	return f
}
