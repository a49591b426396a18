package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/agenthands/taxgraph/internal/core/explain"
	"github.com/agenthands/taxgraph/internal/core/fraud"
	"github.com/agenthands/taxgraph/internal/core/model"
	"github.com/agenthands/taxgraph/internal/core/reconcile"
	"github.com/agenthands/taxgraph/internal/core/risk"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
)

// Analyzer is the part of core.Analyzer the tools read from.
type Analyzer interface {
	Reconcile(ctx context.Context) (reconcile.Result, error)
	Mismatches(ctx context.Context, status reconcile.Status, severity model.Severity, limit int) ([]reconcile.Record, error)
	DetectPatterns(ctx context.Context) (fraud.Report, error)
	RiskScore(ctx context.Context, id string) (risk.Result, error)
	ExplainRisk(ctx context.Context, id string) (explain.Explanation, error)
	Leaderboard(ctx context.Context, n int) ([]risk.Result, error)
	SearchEntities(ctx context.Context, q string, limit int) ([]model.Entity, error)
}

// ToolDependencies contains all dependencies needed by tools
type ToolDependencies struct {
	Analyzer Analyzer
	Log      logrus.FieldLogger
}

type handlerFunc = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func (d *ToolDependencies) logger(tool string) logrus.FieldLogger {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return log.WithField("tool", tool)
}

// jsonResult renders v, or turns err into a tool error the model can read.
func jsonResult(log logrus.FieldLogger, v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		if errors.Is(err, model.ErrNoSnapshot) {
			return mcp.NewToolResultError("no filing data is loaded yet; reload data before analysing"), nil
		}
		log.WithError(err).Warn("tool call failed")
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.WithError(err).Error("failed to encode tool result")
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
