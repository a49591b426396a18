package fraud

import (
	"github.com/agenthands/taxgraph/internal/core/community"
	"github.com/agenthands/taxgraph/internal/core/graph"
	"github.com/agenthands/taxgraph/internal/core/model"
)

// Check is the ranked output of one pattern check. Total counts findings
// before the result limit was applied.
type Check[T any] struct {
	Items   []T           `json:"items"`
	Total   int           `json:"total"`
	Outcome model.Outcome `json:"outcome"`
}

func skipped[T any](reason string) Check[T] {
	return Check[T]{Items: []T{}, Outcome: model.Skipped(reason)}
}

type CircularTrade struct {
	Chain          []string       `json:"chain"`
	ChainLength    int            `json:"chain_length"`
	CircularValue  float64        `json:"circular_value"`
	FormattedValue string         `json:"formatted_value"`
	InvoiceIDs     []string       `json:"invoice_ids"`
	Hops           []graph.Hop    `json:"edges"`
	Severity       model.Severity `json:"severity"`
}

type ShellCompany struct {
	EntityID        string         `json:"gstin"`
	Name            string         `json:"legal_name,omitempty"`
	Importance      float64        `json:"pagerank"`
	TotalVolume     float64        `json:"total_volume"`
	FormattedVolume string         `json:"formatted_volume"`
	InvoiceCount    int            `json:"invoice_count"`
	Severity        model.Severity `json:"severity"`
	Reason          string         `json:"reason"`
}

type ReciprocalTrade struct {
	PartyA        string         `json:"party_a"`
	PartyB        string         `json:"party_b"`
	AToBValue     float64        `json:"a_to_b_value"`
	BToAValue     float64        `json:"b_to_a_value"`
	CombinedValue float64        `json:"combined_value"`
	AToBInvoices  []string       `json:"a_to_b_invoices"`
	BToAInvoices  []string       `json:"b_to_a_invoices"`
	Severity      model.Severity `json:"severity"`
}

type RepeatedInvoices struct {
	SupplierID      string         `json:"supplier_gstin"`
	ReceiverID      string         `json:"receiver_gstin"`
	RepeatedCount   int            `json:"repeated_count"`
	RepeatedAmount  float64        `json:"repeated_amount"`
	FormattedAmount string         `json:"formatted_amount"`
	DistinctAmounts int            `json:"distinct_amounts"`
	TotalValue      float64        `json:"total_value"`
	InvoiceIDs      []string       `json:"invoice_ids"`
	Severity        model.Severity `json:"severity"`
	Reason          string         `json:"reason"`
}

type Summary struct {
	CircularCount         int  `json:"circular_count"`
	ShellCount            int  `json:"shell_count"`
	ReciprocalCount       int  `json:"reciprocal_count"`
	RepeatedCount         int  `json:"fake_count"`
	TotalPatterns         int  `json:"total_patterns"`
	UniqueEntitiesFlagged int  `json:"unique_entities_flagged"`
	Truncated             bool `json:"truncated"`
}

// Report is the combined view over all four checks.
type Report struct {
	Circular   Check[CircularTrade]    `json:"circular_trades"`
	Shell      Check[ShellCompany]     `json:"shell_companies"`
	Reciprocal Check[ReciprocalTrade]  `json:"reciprocal_trades"`
	Repeated   Check[RepeatedInvoices] `json:"fake_invoices"`
	Clusters   []community.Cluster     `json:"fraud_rings"`
	Summary    Summary                 `json:"summary"`
}

// FlaggedEntities returns the distinct entity ids named by any finding, in
// first-seen order.
func (r *Report) FlaggedEntities() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, c := range r.Circular.Items {
		for _, id := range c.Chain {
			add(id)
		}
	}
	for _, s := range r.Shell.Items {
		add(s.EntityID)
	}
	for _, p := range r.Reciprocal.Items {
		add(p.PartyA)
		add(p.PartyB)
	}
	for _, f := range r.Repeated.Items {
		add(f.SupplierID)
		add(f.ReceiverID)
	}
	return out
}

// links ties together the entities of each finding for ring clustering.
func (r *Report) links() []community.Link {
	var out []community.Link
	for _, c := range r.Circular.Items {
		for _, h := range c.Hops {
			out = append(out, community.Link{A: h.From, B: h.To})
		}
	}
	for _, p := range r.Reciprocal.Items {
		out = append(out, community.Link{A: p.PartyA, B: p.PartyB})
	}
	for _, f := range r.Repeated.Items {
		out = append(out, community.Link{A: f.SupplierID, B: f.ReceiverID})
	}
	return out
}
