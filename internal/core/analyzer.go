package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agenthands/taxgraph/internal/config"
	"github.com/agenthands/taxgraph/internal/core/alerts"
	"github.com/agenthands/taxgraph/internal/core/anomaly"
	"github.com/agenthands/taxgraph/internal/core/explain"
	"github.com/agenthands/taxgraph/internal/core/fraud"
	"github.com/agenthands/taxgraph/internal/core/graph"
	"github.com/agenthands/taxgraph/internal/core/model"
	"github.com/agenthands/taxgraph/internal/core/reconcile"
	"github.com/agenthands/taxgraph/internal/core/risk"
	"github.com/agenthands/taxgraph/internal/llm"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// snapshot is everything derived from one dataset. It is never mutated after
// Load publishes it, apart from the lazily filled reports guarded by mu.
type snapshot struct {
	id          string
	fingerprint string
	loadedAt    time.Time
	ds          *model.Dataset
	g           graph.Graph
	build       graph.BuildStats
	importance  graph.Importance
	recon       reconcile.Result
	risk        *risk.Engine

	mu        sync.Mutex
	patterns  *fraud.Report
	alerts    []alerts.Alert
	anomalies *anomaly.Report

	// refMu guards the reader count. A retired snapshot frees its graph when
	// the last reader lets go.
	refMu    sync.Mutex
	refs     int
	retired  bool
	released bool
}

// Analyzer serves reconciliation, fraud and risk queries over the most
// recently loaded dataset. Load swaps the whole snapshot at once, so readers
// see either the old or the new one.
type Analyzer struct {
	Store     GraphStore
	Explainer *explain.Explainer
	Anomaly   *anomaly.Detector
	Alerting  *alerts.Generator
	Metrics   Observer
	Cache     ReportCache

	cfg     *config.Config
	log     logrus.FieldLogger
	loadMu  sync.Mutex
	current atomic.Pointer[snapshot]
}

func NewAnalyzer(store GraphStore, llmClient llm.LLMClient, cfg *config.Config, log logrus.FieldLogger) *Analyzer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if store == nil {
		store = MemoryStore{}
	}
	return &Analyzer{
		Store:     store,
		Explainer: explain.NewExplainer(llmClient, cfg.Explain, log),
		Anomaly:   anomaly.NewDetector(cfg.Anomaly, log),
		Alerting:  alerts.NewGenerator(),
		Metrics:   nopObserver{},
		Cache:     nopCache{},
		cfg:       cfg,
		log:       log.WithField("component", "analyzer"),
	}
}

// Load builds a graph from ds, computes importance and reconciliation once,
// and publishes the result. The replaced graph is released once the readers
// still holding it are done.
func (a *Analyzer) Load(ctx context.Context, ds *model.Dataset) (Stats, error) {
	a.loadMu.Lock()
	defer a.loadMu.Unlock()
	start := time.Now()
	if ds == nil {
		ds = &model.Dataset{}
	}

	g, err := a.Store.NewGraph(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("new graph: %w", err)
	}
	s, err := a.derive(ctx, g, ds)
	if err != nil {
		if rerr := a.Store.Release(ctx, g); rerr != nil {
			a.log.WithError(rerr).Warn("failed to release partial graph")
		}
		return Stats{}, err
	}

	if old := a.current.Swap(s); old != nil {
		a.retire(ctx, old)
	}

	a.Metrics.ObserveGraph(s.build.Nodes, s.build.Edges)
	a.Metrics.ObserveDuration("load", time.Since(start))
	a.log.WithFields(logrus.Fields{
		"snapshot": s.id,
		"nodes":    s.build.Nodes,
		"edges":    s.build.Edges,
		"elapsed":  time.Since(start).String(),
	}).Info("snapshot loaded")
	return s.stats(), nil
}

func (a *Analyzer) derive(ctx context.Context, g graph.Graph, ds *model.Dataset) (*snapshot, error) {
	build, err := graph.Build(ctx, g, ds.Entities, ds.Outward)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	imp, err := g.Importance(ctx, a.cfg.Graph.Importance)
	if err != nil {
		a.log.WithError(err).Warn("importance unavailable, shell and risk signals degraded")
		imp = graph.Importance{Scores: map[string]float64{}, Outcome: model.Skipped(err.Error())}
	}
	if imp.Outcome.Truncated {
		a.Metrics.ObserveTruncation("importance")
	}

	recon := reconcile.NewEngine(a.cfg.Reconcile, a.log).Reconcile(ds.Outward, ds.Inward, ds.Summaries)

	engine, err := risk.NewEngine(ctx, g, ds, imp, a.cfg.Risk, a.log)
	if err != nil {
		return nil, fmt.Errorf("index risk features: %w", err)
	}

	id := uuid.NewString()
	if sg, ok := g.(interface{ Snapshot() string }); ok {
		id = sg.Snapshot()
	}
	return &snapshot{
		id:          id,
		fingerprint: fingerprint(ds),
		loadedAt:    time.Now().UTC(),
		ds:          ds,
		g:           g,
		build:       build,
		importance:  imp,
		recon:       recon,
		risk:        engine,
	}, nil
}

// fingerprint identifies dataset content, so cached reports survive restarts
// over unchanged filings.
func fingerprint(ds *model.Dataset) string {
	h := sha256.New()
	if err := json.NewEncoder(h).Encode(ds); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (a *Analyzer) snapshot() (*snapshot, error) {
	s := a.current.Load()
	if s == nil {
		return nil, model.ErrNoSnapshot
	}
	return s, nil
}

// acquire pins the current snapshot so its graph outlives a concurrent Load.
// The returned func must be called when the caller is done with the graph.
func (a *Analyzer) acquire() (*snapshot, func(), error) {
	for {
		s := a.current.Load()
		if s == nil {
			return nil, nil, model.ErrNoSnapshot
		}
		s.refMu.Lock()
		if s.retired {
			// Load swapped it out between the two steps; the new one is current.
			s.refMu.Unlock()
			continue
		}
		s.refs++
		s.refMu.Unlock()
		return s, func() { a.unpin(s) }, nil
	}
}

func (a *Analyzer) unpin(s *snapshot) {
	s.refMu.Lock()
	s.refs--
	free := s.retired && s.refs == 0 && !s.released
	if free {
		s.released = true
	}
	s.refMu.Unlock()
	if free {
		a.releaseGraph(context.Background(), s)
	}
}

func (a *Analyzer) retire(ctx context.Context, s *snapshot) {
	s.refMu.Lock()
	s.retired = true
	free := s.refs == 0 && !s.released
	if free {
		s.released = true
	}
	s.refMu.Unlock()
	if free {
		a.releaseGraph(ctx, s)
		return
	}
	a.log.WithField("snapshot", s.id).Debug("replaced snapshot still has readers, release deferred")
}

func (a *Analyzer) releaseGraph(ctx context.Context, s *snapshot) {
	if err := a.Store.Release(ctx, s.g); err != nil {
		a.log.WithError(err).WithField("snapshot", s.id).Warn("failed to release replaced graph")
	}
}

func (s *snapshot) isReleased() bool {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	return s.released
}

// Loaded reports whether any dataset has been loaded.
func (a *Analyzer) Loaded() bool { return a.current.Load() != nil }

func (a *Analyzer) Reconcile(_ context.Context) (reconcile.Result, error) {
	s, err := a.snapshot()
	if err != nil {
		return reconcile.Result{}, err
	}
	return s.recon, nil
}

// Mismatches filters the mismatch list. Empty status or severity match all.
func (a *Analyzer) Mismatches(_ context.Context, status reconcile.Status, severity model.Severity, limit int) ([]reconcile.Record, error) {
	s, err := a.snapshot()
	if err != nil {
		return nil, err
	}
	return s.recon.Filter(status, severity, limit), nil
}

// DetectPatterns runs the four fraud checks once per snapshot. A cached
// report for the same dataset and options is reused.
func (a *Analyzer) DetectPatterns(ctx context.Context) (fraud.Report, error) {
	s, done, err := a.acquire()
	if err != nil {
		return fraud.Report{}, err
	}
	defer done()
	return a.detectPatterns(ctx, s)
}

// detectPatterns expects s to be pinned by the caller.
func (a *Analyzer) detectPatterns(ctx context.Context, s *snapshot) (fraud.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.patterns != nil {
		return *s.patterns, nil
	}

	key := a.cacheKey(s, "fraud")
	var report fraud.Report
	hit, err := a.Cache.Get(ctx, key, &report)
	if err != nil {
		a.log.WithError(err).Warn("report cache read failed")
	}
	if !hit {
		start := time.Now()
		det := fraud.NewDetector(s.g, a.cfg.Fraud, a.log)
		report = det.DetectAll(ctx, fraud.Input{
			Importance:       s.importance,
			CircularEntities: s.ds.CircularEntities(),
		})
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		a.Metrics.ObserveDuration("detect_patterns", time.Since(start))
		a.observeReport(report)
		if s.isReleased() {
			a.log.WithField("snapshot", s.id).Warn("graph released during detection, report not cached")
		} else if err := a.Cache.Set(ctx, key, report); err != nil {
			a.log.WithError(err).Warn("report cache write failed")
		}
	}
	s.patterns = &report
	return report, nil
}

func (a *Analyzer) observeReport(r fraud.Report) {
	a.Metrics.ObserveFindings("circular", r.Circular.Total)
	a.Metrics.ObserveFindings("shell", r.Shell.Total)
	a.Metrics.ObserveFindings("reciprocal", r.Reciprocal.Total)
	a.Metrics.ObserveFindings("repeated_invoices", r.Repeated.Total)
	if r.Circular.Outcome.Truncated {
		a.Metrics.ObserveTruncation("circular")
	}
}

// cacheKey names a report by dataset content and by the options that shape
// it, so replicas running other thresholds never share entries.
func (a *Analyzer) cacheKey(s *snapshot, report string) string {
	return "taxgraph:" + s.fingerprint + ":" + a.optionsDigest() + ":" + report
}

func (a *Analyzer) optionsDigest() string {
	raw, err := json.Marshal(struct {
		Fraud      fraud.Options
		Importance graph.ImportanceOptions
	}{a.cfg.Fraud, a.cfg.Graph.Importance})
	if err != nil {
		return "default"
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:8]
}

func (a *Analyzer) RiskScore(_ context.Context, id string) (risk.Result, error) {
	s, err := a.snapshot()
	if err != nil {
		return risk.Result{}, err
	}
	return s.risk.Score(strings.TrimSpace(id))
}

func (a *Analyzer) Features(_ context.Context, id string) (risk.Features, error) {
	s, err := a.snapshot()
	if err != nil {
		return risk.Features{}, err
	}
	return s.risk.Features(strings.TrimSpace(id))
}

// AllFeatures exports every entity's feature vector, e.g. for an external
// classifier.
func (a *Analyzer) AllFeatures(_ context.Context) ([]risk.Features, error) {
	s, err := a.snapshot()
	if err != nil {
		return nil, err
	}
	return s.risk.AllFeatures(), nil
}

func (a *Analyzer) Leaderboard(_ context.Context, n int) ([]risk.Result, error) {
	s, err := a.snapshot()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	out := s.risk.Leaderboard(n)
	a.Metrics.ObserveDuration("leaderboard", time.Since(start))
	return out, nil
}

// Alerts are generated once per snapshot so ids stay stable between calls.
func (a *Analyzer) Alerts(ctx context.Context, severity model.Severity, typ alerts.Type, limit int) ([]alerts.Alert, error) {
	s, done, err := a.acquire()
	if err != nil {
		return nil, err
	}
	defer done()
	all, err := a.alerts(ctx, s)
	if err != nil {
		return nil, err
	}
	return alerts.Filter(all, severity, typ, limit), nil
}

func (a *Analyzer) alerts(ctx context.Context, s *snapshot) ([]alerts.Alert, error) {
	report, err := a.detectPatterns(ctx, s)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alerts == nil {
		s.alerts = a.Alerting.Generate(s.recon.Mismatches, report)
	}
	return s.alerts, nil
}

func (a *Analyzer) Anomalies(_ context.Context) (anomaly.Report, error) {
	s, err := a.snapshot()
	if err != nil {
		return anomaly.Report{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.anomalies == nil {
		start := time.Now()
		r := a.Anomaly.Report(s.ds)
		s.anomalies = &r
		a.Metrics.ObserveDuration("anomalies", time.Since(start))
	}
	return *s.anomalies, nil
}

func (a *Analyzer) ExplainMismatch(ctx context.Context, invoiceID string) (explain.Explanation, error) {
	s, err := a.snapshot()
	if err != nil {
		return explain.Explanation{}, err
	}
	rec, ok := s.recon.Find(strings.TrimSpace(invoiceID))
	if !ok {
		return explain.Explanation{}, fmt.Errorf("explain %s: %w", invoiceID, model.ErrUnknownInvoice)
	}
	return a.Explainer.Mismatch(ctx, rec), nil
}

func (a *Analyzer) ExplainRisk(ctx context.Context, id string) (explain.Explanation, error) {
	r, err := a.RiskScore(ctx, id)
	if err != nil {
		return explain.Explanation{}, err
	}
	return a.Explainer.Risk(ctx, r), nil
}

// ExplainEntity explains every fraud finding that names id: its shell
// signature and the circular rings it belongs to.
func (a *Analyzer) ExplainEntity(ctx context.Context, id string) ([]explain.Explanation, error) {
	s, done, err := a.acquire()
	if err != nil {
		return nil, err
	}
	defer done()
	report, err := a.detectPatterns(ctx, s)
	if err != nil {
		return nil, err
	}
	var out []explain.Explanation
	for _, sc := range report.Shell.Items {
		if sc.EntityID == id {
			out = append(out, a.Explainer.Shell(ctx, sc))
		}
	}
	for _, c := range report.Circular.Items {
		for _, member := range c.Chain {
			if member == id {
				out = append(out, a.Explainer.Circular(ctx, c))
				break
			}
		}
	}
	return out, nil
}

// Stats describes the loaded snapshot.
type Stats struct {
	Snapshot        string            `json:"snapshot"`
	Fingerprint     string            `json:"fingerprint"`
	LoadedAt        time.Time         `json:"loaded_at"`
	Taxpayers       int               `json:"total_taxpayers"`
	ActiveTaxpayers int               `json:"active_taxpayers"`
	Outward         int               `json:"total_gstr1"`
	Inward          int               `json:"total_gstr2b"`
	Summaries       int               `json:"total_gstr3b"`
	Labels          int               `json:"fraud_labels"`
	Graph           graph.BuildStats  `json:"graph"`
	Importance      model.Outcome     `json:"importance"`
	Reconciliation  reconcile.Summary `json:"reconciliation"`
}

func (s *snapshot) stats() Stats {
	active := 0
	for _, e := range s.ds.Entities {
		if e.Status == model.StatusActive {
			active++
		}
	}
	return Stats{
		Snapshot:        s.id,
		Fingerprint:     s.fingerprint,
		LoadedAt:        s.loadedAt,
		Taxpayers:       len(s.ds.Entities),
		ActiveTaxpayers: active,
		Outward:         len(s.ds.Outward),
		Inward:          len(s.ds.Inward),
		Summaries:       len(s.ds.Summaries),
		Labels:          len(s.ds.Labels),
		Graph:           s.build,
		Importance:      s.importance.Outcome,
		Reconciliation:  s.recon.Summary,
	}
}

func (a *Analyzer) Stats(_ context.Context) (Stats, error) {
	s, err := a.snapshot()
	if err != nil {
		return Stats{}, err
	}
	return s.stats(), nil
}

// Overview gathers the dashboard and export views from a single snapshot.
type Overview struct {
	Stats       Stats
	Mismatches  []reconcile.Record
	Patterns    fraud.Report
	Alerts      []alerts.Alert
	Leaderboard []risk.Result
}

// Overview reads every part from one snapshot, so a concurrent Load cannot
// mix two datasets into one response. top bounds the leaderboard.
func (a *Analyzer) Overview(ctx context.Context, top int) (Overview, error) {
	s, done, err := a.acquire()
	if err != nil {
		return Overview{}, err
	}
	defer done()
	report, err := a.detectPatterns(ctx, s)
	if err != nil {
		return Overview{}, err
	}
	all, err := a.alerts(ctx, s)
	if err != nil {
		return Overview{}, err
	}
	return Overview{
		Stats:       s.stats(),
		Mismatches:  s.recon.Mismatches,
		Patterns:    report,
		Alerts:      all,
		Leaderboard: s.risk.Leaderboard(top),
	}, nil
}

// SearchEntities matches q case-insensitively against ids and names of
// registered taxpayers.
func (a *Analyzer) SearchEntities(_ context.Context, q string, limit int) ([]model.Entity, error) {
	s, err := a.snapshot()
	if err != nil {
		return nil, err
	}
	q = strings.ToUpper(strings.TrimSpace(q))
	out := []model.Entity{}
	if q == "" {
		return out, nil
	}
	for _, e := range s.ds.Entities {
		if strings.Contains(strings.ToUpper(e.ID), q) || strings.Contains(strings.ToUpper(e.Name), q) {
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
