package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/agenthands/taxgraph/internal/core/alerts"
	"github.com/agenthands/taxgraph/internal/core/model"
	"github.com/agenthands/taxgraph/internal/core/reconcile"
	"github.com/agenthands/taxgraph/internal/export"
	"github.com/gin-gonic/gin"
)

// fail maps analyzer errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, model.ErrNoSnapshot):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no data loaded, POST /api/v1/reload first"})
	case errors.Is(err, model.ErrUnknownEntity), errors.Is(err, model.ErrUnknownInvoice):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.log.WithError(err).WithField("op", op).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + op})
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func upper(c *gin.Context, key string) string {
	return strings.ToUpper(strings.TrimSpace(c.Query(key)))
}

func (s *Server) Stats(c *gin.Context) {
	view, err := s.Analyzer.Overview(c.Request.Context(), 0)
	if err != nil {
		s.fail(c, "load stats", err)
		return
	}
	stats, report, all := view.Stats, view.Patterns, view.Alerts
	critical := alerts.Filter(all, model.SeverityCritical, "", 0)
	rs := stats.Reconciliation

	c.JSON(http.StatusOK, gin.H{
		"snapshot":          stats,
		"total_invoices":    stats.Outward + stats.Inward,
		"total_mismatches":  rs.MissingInChannelA + rs.MissingInChannelB + rs.ValueMismatch + rs.TaxMismatch,
		"fraud_flags":       report.Summary.TotalPatterns,
		"reconciliation":    rs,
		"fraud_summary":     report.Summary,
		"alert_count":       len(all),
		"critical_alerts":   len(critical),
		"active_taxpayers":  stats.ActiveTaxpayers,
		"total_taxpayers":   stats.Taxpayers,
		"graph_nodes":       stats.Graph.Nodes,
		"graph_edges":       stats.Graph.Edges,
		"importance_status": stats.Importance,
	})
}

func (s *Server) Reconcile(c *gin.Context) {
	res, err := s.Analyzer.Reconcile(c.Request.Context())
	if err != nil {
		s.fail(c, "reconcile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": res.Summary, "mismatches": res.Mismatches, "outcome": res.Outcome})
}

func (s *Server) Mismatches(c *gin.Context) {
	recs, err := s.Analyzer.Mismatches(c.Request.Context(),
		reconcile.Status(upper(c, "status")), model.Severity(upper(c, "severity")), queryInt(c, "limit", 0))
	if err != nil {
		s.fail(c, "list mismatches", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mismatches": recs, "total": len(recs)})
}

func (s *Server) FraudPatterns(c *gin.Context) {
	report, err := s.Analyzer.DetectPatterns(c.Request.Context())
	if err != nil {
		s.fail(c, "detect patterns", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) FraudCheck(c *gin.Context) {
	report, err := s.Analyzer.DetectPatterns(c.Request.Context())
	if err != nil {
		s.fail(c, "detect patterns", err)
		return
	}
	switch c.Param("pattern") {
	case "circular":
		c.JSON(http.StatusOK, report.Circular)
	case "shell":
		c.JSON(http.StatusOK, report.Shell)
	case "reciprocal":
		c.JSON(http.StatusOK, report.Reciprocal)
	case "repeated", "fake-invoices":
		c.JSON(http.StatusOK, report.Repeated)
	case "rings":
		c.JSON(http.StatusOK, gin.H{"fraud_rings": report.Clusters})
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown pattern " + c.Param("pattern")})
	}
}

func (s *Server) RiskScore(c *gin.Context) {
	r, err := s.Analyzer.RiskScore(c.Request.Context(), c.Param("gstin"))
	if err != nil {
		s.fail(c, "score entity", err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) Leaderboard(c *gin.Context) {
	board, err := s.Analyzer.Leaderboard(c.Request.Context(), queryInt(c, "limit", 20))
	if err != nil {
		s.fail(c, "rank entities", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": board, "total": len(board)})
}

func (s *Server) Features(c *gin.Context) {
	f, err := s.Analyzer.Features(c.Request.Context(), c.Param("gstin"))
	if err != nil {
		s.fail(c, "extract features", err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) ExplainMismatch(c *gin.Context) {
	ex, err := s.Analyzer.ExplainMismatch(c.Request.Context(), c.Param("invoice_id"))
	if err != nil {
		s.fail(c, "explain mismatch", err)
		return
	}
	c.JSON(http.StatusOK, ex)
}

func (s *Server) ExplainRisk(c *gin.Context) {
	ex, err := s.Analyzer.ExplainRisk(c.Request.Context(), c.Param("gstin"))
	if err != nil {
		s.fail(c, "explain risk", err)
		return
	}
	c.JSON(http.StatusOK, ex)
}

func (s *Server) ExplainEntity(c *gin.Context) {
	exs, err := s.Analyzer.ExplainEntity(c.Request.Context(), c.Param("gstin"))
	if err != nil {
		s.fail(c, "explain entity", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"explanations": exs, "total": len(exs)})
}

func (s *Server) Alerts(c *gin.Context) {
	out, err := s.Analyzer.Alerts(c.Request.Context(),
		model.Severity(upper(c, "severity")), alerts.Type(upper(c, "type")), queryInt(c, "limit", 0))
	if err != nil {
		s.fail(c, "generate alerts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": out, "total": len(out)})
}

func (s *Server) Anomalies(c *gin.Context) {
	r, err := s.Analyzer.Anomalies(c.Request.Context())
	if err != nil {
		s.fail(c, "detect anomalies", err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) ReloadData(c *gin.Context) {
	stats, report, err := s.Reload(c.Request.Context())
	if err != nil {
		s.fail(c, "reload data", err)
		return
	}
	s.log.WithField("snapshot", stats.Snapshot).Info("data reloaded")
	c.JSON(http.StatusOK, gin.H{
		"status": "Data reloaded successfully",
		"nodes":  stats.Graph.Nodes,
		"edges":  stats.Graph.Edges,
		"stats":  stats,
		"ingest": report,
	})
}

func (s *Server) ExportReport(c *gin.Context) {
	view, err := s.Analyzer.Overview(c.Request.Context(), queryInt(c, "limit", 100))
	if err != nil {
		s.fail(c, "export report", err)
		return
	}

	c.Header("Content-Type", export.ContentType)
	c.Header("Content-Disposition", "attachment; filename=gst_audit_report.xlsx")
	c.Status(http.StatusOK)
	if err := export.Write(c.Writer, export.Input{
		Mismatches:  view.Mismatches,
		Patterns:    view.Patterns,
		Leaderboard: view.Leaderboard,
	}); err != nil {
		s.log.WithError(err).Error("failed to write workbook")
	}
}

func (s *Server) Search(c *gin.Context) {
	found, err := s.Analyzer.SearchEntities(c.Request.Context(), c.Param("query"), queryInt(c, "limit", 10))
	if err != nil {
		s.fail(c, "search", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": found, "count": len(found)})
}
