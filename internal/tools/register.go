package tools

import (
	"github.com/mark3labs/mcp-go/server"
)

// All returns every tool. They are all read-only.
func All(deps *ToolDependencies) []server.ServerTool {
	return []server.ServerTool{
		{Tool: ReconciliationSummarySpec(), Handler: ReconciliationSummaryHandler(deps)},
		{Tool: ListMismatchesSpec(), Handler: ListMismatchesHandler(deps)},
		{Tool: DetectFraudPatternsSpec(), Handler: DetectFraudPatternsHandler(deps)},
		{Tool: GetRiskScoreSpec(), Handler: GetRiskScoreHandler(deps)},
		{Tool: GetRiskLeaderboardSpec(), Handler: GetRiskLeaderboardHandler(deps)},
		{Tool: SearchTaxpayersSpec(), Handler: SearchTaxpayersHandler(deps)},
	}
}

// NewServer builds an MCP server exposing All(deps).
func NewServer(name, version string, deps *ToolDependencies) *server.MCPServer {
	s := server.NewMCPServer(name, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.AddTools(All(deps)...)
	return s
}
