package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/agenthands/taxgraph/internal/cache"
	"github.com/agenthands/taxgraph/internal/config"
	"github.com/agenthands/taxgraph/internal/core"
	"github.com/agenthands/taxgraph/internal/driver"
	"github.com/agenthands/taxgraph/internal/ingest"
	"github.com/agenthands/taxgraph/internal/llm"
	"github.com/agenthands/taxgraph/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	Analyzer *core.Analyzer
	Loader   *ingest.Loader
	Metrics  *metrics.Collector
	DataDir  string

	cfg     *config.Config
	log     logrus.FieldLogger
	closers []func(context.Context) error
}

// NewServer wires the graph backend, LLM client and report cache named in
// cfg around a fresh Analyzer. No data is loaded yet.
func NewServer(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*Server, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{cfg: cfg, log: log.WithField("component", "server")}

	var store core.GraphStore = core.MemoryStore{}
	if cfg.Graph.Backend == "neo4j" {
		d, err := driver.NewNeo4jDriver(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, cfg.Neo4j.Database, log)
		if err != nil {
			return nil, fmt.Errorf("connect to neo4j: %w", err)
		}
		s.closers = append(s.closers, d.Close)
		if err := d.BuildIndices(ctx); err != nil {
			config.LogError(log, "server", "NewServer", cfg.Neo4j.URI, err)
		}
		snapshots := driver.NewSnapshotStore(d, log)
		// snapshots left behind by a previous process
		if err := snapshots.Prune(ctx, ""); err != nil {
			config.LogError(log, "server", "NewServer", nil, err)
		}
		store = snapshots
	}

	llmClient, err := llm.NewClient(ctx, cfg.LLM, log)
	if err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("init llm client: %w", err)
	}
	if c, ok := llmClient.(interface{ Close() error }); ok {
		s.closers = append(s.closers, func(context.Context) error { return c.Close() })
	}

	reportCache, err := cache.New(ctx, cfg.Redis, log)
	if err != nil {
		// the cache is an optimisation, run without it
		config.LogError(log, "server", "NewServer", cfg.Redis.Addr, err)
		reportCache, _ = cache.New(ctx, config.RedisConfig{}, log)
	}
	s.closers = append(s.closers, func(context.Context) error { return reportCache.Close() })

	a := core.NewAnalyzer(store, llmClient, cfg, log)
	a.Cache = reportCache
	s.Metrics = metrics.NewCollector()
	a.Metrics = s.Metrics
	s.Analyzer = a
	s.Loader = ingest.NewLoader(log)
	s.DataDir = cfg.Data.Dir
	return s, nil
}

// Reload reads DataDir and swaps the analyzer onto the new snapshot.
func (s *Server) Reload(ctx context.Context) (core.Stats, ingest.Report, error) {
	ds, report, err := s.Loader.LoadDir(ctx, s.DataDir)
	if err != nil {
		return core.Stats{}, report, err
	}
	stats, err := s.Analyzer.Load(ctx, ds)
	return stats, report, err
}

func (s *Server) Close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			s.log.WithError(err).Warn("close failed")
		}
	}
	s.closers = nil
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	if s.Metrics != nil {
		r.Use(s.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(s.Metrics.Handler()))
	}
	r.GET("/healthz", s.Health)

	v1 := r.Group("/api/v1")
	v1.GET("/stats", s.Stats)
	v1.POST("/reconcile", s.Reconcile)
	v1.GET("/mismatches", s.Mismatches)
	v1.GET("/fraud/patterns", s.FraudPatterns)
	v1.GET("/fraud/:pattern", s.FraudCheck)
	v1.GET("/risk/vendor/:gstin", s.RiskScore)
	v1.GET("/risk/leaderboard", s.Leaderboard)
	v1.GET("/features/:gstin", s.Features)
	v1.GET("/explain/mismatch/:invoice_id", s.ExplainMismatch)
	v1.GET("/explain/risk/:gstin", s.ExplainRisk)
	v1.GET("/explain/entity/:gstin", s.ExplainEntity)
	v1.GET("/alerts", s.Alerts)
	v1.GET("/anomalies", s.Anomalies)
	v1.POST("/reload", s.ReloadData)
	v1.GET("/export/report.xlsx", s.ExportReport)
	v1.GET("/search/:query", s.Search)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "loaded": s.Analyzer.Loaded()})
}
