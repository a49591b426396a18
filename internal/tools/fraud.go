package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

type DetectFraudPatternsInput struct {
	Pattern string `json:"pattern,omitempty" jsonschema:"enum=all,enum=circular,enum=shell,enum=reciprocal,enum=repeated,default=all,description=Which fraud check to return"`
}

func DetectFraudPatternsSpec() mcp.Tool {
	return mcp.NewTool("detect-fraud-patterns",
		mcp.WithDescription(`Runs structural fraud checks over the invoice graph:

- circular: cycles of invoices returning to the originating GSTIN (circular trading), CRITICAL
- shell: low-PageRank entities with outward volume above 10,000,000 (shell companies), CRITICAL
- reciprocal: pairs invoicing each other in both directions (round-tripping), WARNING
- repeated: 3+ round-amount invoices above 500,000 between the same pair (fake invoices), WARNING

"all" also returns fraud rings: connected groups of entities linked by any finding.
Each check reports an outcome; "skipped" means it could not run and "truncated" means a cost
cap cut enumeration short.`),
		mcp.WithInputSchema[DetectFraudPatternsInput](),
		mcp.WithTitleAnnotation("Detect GST Fraud Patterns"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func DetectFraudPatternsHandler(deps *ToolDependencies) handlerFunc {
	log := deps.logger("detect-fraud-patterns")
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args DetectFraudPatternsInput
		if err := request.BindArguments(&args); err != nil {
			log.WithError(err).Warn("error binding arguments")
			return mcp.NewToolResultError(err.Error()), nil
		}
		report, err := deps.Analyzer.DetectPatterns(ctx)
		if err != nil {
			return jsonResult(log, nil, err)
		}
		switch strings.ToLower(strings.TrimSpace(args.Pattern)) {
		case "", "all":
			return jsonResult(log, report, nil)
		case "circular":
			return jsonResult(log, report.Circular, nil)
		case "shell":
			return jsonResult(log, report.Shell, nil)
		case "reciprocal":
			return jsonResult(log, report.Reciprocal, nil)
		case "repeated":
			return jsonResult(log, report.Repeated, nil)
		}
		return mcp.NewToolResultError(fmt.Sprintf("unknown pattern %q", args.Pattern)), nil
	}
}
