package tools

import (
	"context"
	"strings"

	"github.com/agenthands/taxgraph/internal/core/model"
	"github.com/agenthands/taxgraph/internal/core/reconcile"
	"github.com/mark3labs/mcp-go/mcp"
)

func ReconciliationSummarySpec() mcp.Tool {
	return mcp.NewTool("reconciliation-summary",
		mcp.WithDescription(`Returns the GSTR-1 vs GSTR-2B reconciliation summary for the loaded filings:
invoice counts per status (FULLY_RECONCILED, MISSING_IN_CHANNEL_A, MISSING_IN_CHANNEL_B,
VALUE_MISMATCH, TAX_MISMATCH), the number of receivers overclaiming ITC against GSTR-3B,
and the reconciliation rate in percent.

Use list-mismatches to drill into individual invoices.`),
		mcp.WithTitleAnnotation("GST Reconciliation Summary"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func ReconciliationSummaryHandler(deps *ToolDependencies) handlerFunc {
	log := deps.logger("reconciliation-summary")
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := deps.Analyzer.Reconcile(ctx)
		return jsonResult(log, res.Summary, err)
	}
}

type ListMismatchesInput struct {
	Status   string `json:"status,omitempty" jsonschema:"description=Optional status filter: MISSING_IN_CHANNEL_A, MISSING_IN_CHANNEL_B, VALUE_MISMATCH or TAX_MISMATCH"`
	Severity string `json:"severity,omitempty" jsonschema:"description=Optional severity filter: CRITICAL, WARNING or INFO"`
	Limit    int    `json:"limit,omitempty" jsonschema:"default=50,description=Maximum number of mismatches to return"`
}

func ListMismatchesSpec() mcp.Tool {
	return mcp.NewTool("list-mismatches",
		mcp.WithDescription(`Lists reconciliation mismatches, most severe first. Each entry names the invoice,
supplier and receiver GSTINs, the status, the values declared in each channel, the absolute
value difference and whether the receiver overclaims ITC.

Severity: missing in either channel is CRITICAL; value differences above 100,000 are CRITICAL,
above 10,000 WARNING, otherwise INFO.`),
		mcp.WithInputSchema[ListMismatchesInput](),
		mcp.WithTitleAnnotation("List Reconciliation Mismatches"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func ListMismatchesHandler(deps *ToolDependencies) handlerFunc {
	log := deps.logger("list-mismatches")
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ListMismatchesInput
		if err := request.BindArguments(&args); err != nil {
			log.WithError(err).Warn("error binding arguments")
			return mcp.NewToolResultError(err.Error()), nil
		}
		status := reconcile.Status(strings.ToUpper(strings.TrimSpace(args.Status)))
		severity := model.Severity(strings.ToUpper(strings.TrimSpace(args.Severity)))
		recs, err := deps.Analyzer.Mismatches(ctx, status, severity, orDefault(args.Limit, 50))
		return jsonResult(log, map[string]any{"mismatches": recs, "count": len(recs)}, err)
	}
}
