package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

type GetRiskScoreInput struct {
	GSTIN   string `json:"gstin" jsonschema:"required,description=15-character GSTIN of the taxpayer"`
	Explain bool   `json:"explain,omitempty" jsonschema:"description=Also return a written explanation of the score"`
}

func GetRiskScoreSpec() mcp.Tool {
	return mcp.NewTool("get-risk-score",
		mcp.WithDescription(`Scores one taxpayer between 0 and 1 and returns the risk level
(CRITICAL > 0.85, HIGH > 0.65, MEDIUM > 0.35, else LOW), the factors that contributed and the full
feature vector: PageRank, degrees, invoice counts and values, GSTR-3B totals, zero-cash periods,
ITC-to-sales ratio and any known fraud label.`),
		mcp.WithInputSchema[GetRiskScoreInput](),
		mcp.WithTitleAnnotation("Get Taxpayer Risk Score"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func GetRiskScoreHandler(deps *ToolDependencies) handlerFunc {
	log := deps.logger("get-risk-score")
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args GetRiskScoreInput
		if err := request.BindArguments(&args); err != nil {
			log.WithError(err).Warn("error binding arguments")
			return mcp.NewToolResultError(err.Error()), nil
		}
		id := strings.TrimSpace(args.GSTIN)
		if id == "" {
			return mcp.NewToolResultError("gstin parameter is required"), nil
		}
		if !args.Explain {
			r, err := deps.Analyzer.RiskScore(ctx, id)
			return jsonResult(log, r, err)
		}
		r, err := deps.Analyzer.RiskScore(ctx, id)
		if err != nil {
			return jsonResult(log, nil, err)
		}
		ex, err := deps.Analyzer.ExplainRisk(ctx, id)
		return jsonResult(log, map[string]any{"risk": r, "explanation": ex}, err)
	}
}

type GetRiskLeaderboardInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"default=10,description=Number of highest-risk taxpayers to return"`
}

func GetRiskLeaderboardSpec() mcp.Tool {
	return mcp.NewTool("get-risk-leaderboard",
		mcp.WithDescription(`Returns the highest-risk taxpayers, highest score first. Ties keep graph
order so repeated calls on the same data return the same ranking.`),
		mcp.WithInputSchema[GetRiskLeaderboardInput](),
		mcp.WithTitleAnnotation("Taxpayer Risk Leaderboard"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func GetRiskLeaderboardHandler(deps *ToolDependencies) handlerFunc {
	log := deps.logger("get-risk-leaderboard")
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args GetRiskLeaderboardInput
		if err := request.BindArguments(&args); err != nil {
			log.WithError(err).Warn("error binding arguments")
			return mcp.NewToolResultError(err.Error()), nil
		}
		board, err := deps.Analyzer.Leaderboard(ctx, orDefault(args.Limit, 10))
		return jsonResult(log, map[string]any{"leaderboard": board, "count": len(board)}, err)
	}
}

type SearchTaxpayersInput struct {
	Query string `json:"query" jsonschema:"required,description=Part of a GSTIN or legal name"`
	Limit int    `json:"limit,omitempty" jsonschema:"default=10,description=Maximum number of matches"`
}

func SearchTaxpayersSpec() mcp.Tool {
	return mcp.NewTool("search-taxpayers",
		mcp.WithDescription(`Finds registered taxpayers whose GSTIN or legal name contains the query,
case-insensitively. Use it to resolve a name to the GSTIN the other tools expect.`),
		mcp.WithInputSchema[SearchTaxpayersInput](),
		mcp.WithTitleAnnotation("Search Taxpayers"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func SearchTaxpayersHandler(deps *ToolDependencies) handlerFunc {
	log := deps.logger("search-taxpayers")
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args SearchTaxpayersInput
		if err := request.BindArguments(&args); err != nil {
			log.WithError(err).Warn("error binding arguments")
			return mcp.NewToolResultError(err.Error()), nil
		}
		found, err := deps.Analyzer.SearchEntities(ctx, args.Query, orDefault(args.Limit, 10))
		return jsonResult(log, map[string]any{"results": found, "count": len(found)}, err)
	}
}
