package explain

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/taxgraph/internal/config"
	"github.com/agenthands/taxgraph/internal/core/common"
	"github.com/agenthands/taxgraph/internal/core/fraud"
	"github.com/agenthands/taxgraph/internal/core/model"
	"github.com/agenthands/taxgraph/internal/core/reconcile"
	"github.com/agenthands/taxgraph/internal/core/risk"
	"github.com/agenthands/taxgraph/internal/llm"
	"github.com/sirupsen/logrus"
)

// Explanation is the human-readable account of one finding. Detailed equals
// Summary unless an LLM rewrote it.
type Explanation struct {
	Subject  string         `json:"subject"`
	Kind     string         `json:"kind"`
	Severity model.Severity `json:"severity,omitempty"`
	Summary  string         `json:"summary"`
	Detailed string         `json:"detailed_explanation"`
	Actions  []string       `json:"recommended_actions,omitempty"`
	Factors  []string       `json:"key_factors,omitempty"`
	Enhanced bool           `json:"llm_enhanced"`
}

type Explainer struct {
	LLM     llm.LLMClient
	Prompts config.ExplainPrompts
	log     logrus.FieldLogger
}

// NewExplainer accepts a nil client, in which case explanations are the
// templates alone.
func NewExplainer(client llm.LLMClient, prompts config.ExplainPrompts, log logrus.FieldLogger) *Explainer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if prompts.Enhance == "" {
		prompts.Enhance = config.DefaultEnhancePrompt
	}
	return &Explainer{LLM: client, Prompts: prompts, log: log.WithField("component", "explain")}
}

func (e *Explainer) Mismatch(ctx context.Context, rec reconcile.Record) Explanation {
	base := mismatchText(rec)
	ex := Explanation{
		Subject:  rec.InvoiceID,
		Kind:     string(rec.Status),
		Severity: rec.Severity,
		Summary:  base,
		Actions:  actions(rec.Status),
	}
	ex.Detailed, ex.Enhanced = e.enhance(ctx, base,
		fmt.Sprintf("Mismatch type: %s, Severity: %s", rec.Status, rec.Severity))
	return ex
}

func (e *Explainer) Risk(ctx context.Context, r risk.Result) Explanation {
	factors := "No specific risk factors identified."
	if len(r.Factors) > 0 {
		factors = strings.Join(r.Factors, "; ")
	}
	base := fmt.Sprintf("Vendor %s has a risk score of %.2f (%s). Key risk factors: %s",
		r.EntityID, r.Score, r.Level, factors)
	ex := Explanation{
		Subject: r.EntityID,
		Kind:    "RISK_" + string(r.Level),
		Summary: base,
		Factors: r.Factors,
	}
	ex.Detailed, ex.Enhanced = e.enhance(ctx, base, fmt.Sprintf("Risk level: %s, Score: %.4f", r.Level, r.Score))
	return ex
}

func (e *Explainer) Circular(ctx context.Context, c fraud.CircularTrade) Explanation {
	base := fmt.Sprintf("A circular trading pattern was detected involving %d entities: %s. "+
		"Total circular value: %s. This pattern is commonly associated with fake invoice rings "+
		"used to inflate Input Tax Credit claims.",
		c.ChainLength, strings.Join(c.Chain, " → "), c.FormattedValue)
	ex := Explanation{
		Subject:  strings.Join(c.Chain, ","),
		Kind:     "CIRCULAR_TRADING",
		Severity: c.Severity,
		Summary:  base,
	}
	ex.Detailed, ex.Enhanced = e.enhance(ctx, base, "Pattern type: CIRCULAR_TRADING")
	return ex
}

func (e *Explainer) Shell(ctx context.Context, s fraud.ShellCompany) Explanation {
	base := fmt.Sprintf("Entity %s has abnormally low network importance (PageRank: %.6f) but "+
		"extremely high transaction volume (%s). This is a classic shell company pattern, a "+
		"front entity used to route fake invoices through the network.",
		s.EntityID, s.Importance, s.FormattedVolume)
	ex := Explanation{
		Subject:  s.EntityID,
		Kind:     "SHELL_COMPANY",
		Severity: s.Severity,
		Summary:  base,
	}
	ex.Detailed, ex.Enhanced = e.enhance(ctx, base, "Pattern type: SHELL_COMPANY")
	return ex
}

type enhanced struct {
	Summary string `json:"summary"`
}

// enhance asks the LLM to rewrite base. Any failure falls back to base.
func (e *Explainer) enhance(ctx context.Context, base, detail string) (string, bool) {
	if e.LLM == nil {
		return base, false
	}
	prompt := fmt.Sprintf(e.Prompts.Enhance, base, detail)
	if e.Prompts.System != "" {
		prompt = e.Prompts.System + "\n\n" + prompt
	}

	response, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		e.log.WithError(err).Warn("llm enhancement failed, using template")
		return base, false
	}
	if result, err := common.ParseJSON[enhanced](response); err == nil && result.Summary != "" {
		return result.Summary, true
	}
	if text := strings.TrimSpace(response); text != "" {
		return text, true
	}
	return base, false
}

func mismatchText(r reconcile.Record) string {
	switch r.Status {
	case reconcile.StatusMissingInChannelA:
		return fmt.Sprintf("Invoice %s (%s) appears in the buyer's inward return but is MISSING from "+
			"the seller's (%s) outward return. The seller either did not report this sale, filed late, "+
			"or the invoice may be fabricated. The buyer's ITC claim is at risk until the seller files.",
			r.InvoiceID, model.FormatCurrency(r.InwardValue), r.SupplierID)
	case reconcile.StatusMissingInChannelB:
		return fmt.Sprintf("Invoice %s (%s) was filed by the seller (%s) in the outward return but has "+
			"no corresponding entry in the buyer's (%s) inward return. The buyer has not received or "+
			"acknowledged this supply.",
			r.InvoiceID, model.FormatCurrency(r.OutwardValue), r.SupplierID, r.ReceiverID)
	case reconcile.StatusValueMismatch:
		return fmt.Sprintf("Invoice %s shows %s in the outward return but %s in the inward return. "+
			"The difference of %s may indicate data entry errors, amended invoices, or deliberate manipulation.",
			r.InvoiceID, model.FormatCurrency(r.OutwardValue), model.FormatCurrency(r.InwardValue),
			model.FormatCurrency(r.ValueDifference))
	case reconcile.StatusTaxMismatch:
		return fmt.Sprintf("Invoice %s has a tax amount discrepancy of %s between the outward and inward "+
			"returns. The tax declared by the seller does not match the ITC available to the buyer.",
			r.InvoiceID, model.FormatCurrency(r.TaxDifference))
	case reconcile.StatusFullyReconciled:
		return fmt.Sprintf("Invoice %s is fully reconciled across both returns.", r.InvoiceID)
	}
	return fmt.Sprintf("Mismatch detected: %s for invoice %s", r.Status, r.InvoiceID)
}

func actions(s reconcile.Status) []string {
	switch s {
	case reconcile.StatusMissingInChannelA:
		return []string{
			"Issue notice to seller to file amended outward return",
			"Suspend buyer's ITC claim until seller files",
			"Add seller to watchlist for late filing",
		}
	case reconcile.StatusMissingInChannelB:
		return []string{
			"Verify if buyer received the goods/services",
			"Check for potential phantom invoice creation",
			"Cross-check with e-way bill records",
		}
	case reconcile.StatusValueMismatch:
		return []string{
			"Request both parties to submit original invoices",
			"Check for credit/debit notes that may explain the difference",
			"Flag for manual audit if difference exceeds ₹1 lakh",
		}
	case reconcile.StatusTaxMismatch:
		return []string{
			"Verify HSN code classification for correct tax rate",
			"Check if partial ITC reversal is required",
			"Cross-reference with the annual return",
		}
	case reconcile.StatusFullyReconciled:
		return nil
	}
	return []string{"Refer to senior officer for manual review"}
}
