package risk

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/agenthands/taxgraph/internal/core/graph"
	"github.com/agenthands/taxgraph/internal/core/model"
	"github.com/sirupsen/logrus"
)

type Level string

const (
	LevelCritical Level = "CRITICAL"
	LevelHigh     Level = "HIGH"
	LevelMedium   Level = "MEDIUM"
	LevelLow      Level = "LOW"
)

// Options holds the scoring weights and thresholds.
type Options struct {
	KnownFraudScore float64 `toml:"known_fraud_score"`

	HighRatio       float64 `toml:"high_ratio"`
	HighRatioWeight float64 `toml:"high_ratio_weight"`
	MidRatio        float64 `toml:"mid_ratio"`
	MidRatioWeight  float64 `toml:"mid_ratio_weight"`

	ManyZeroCash       int     `toml:"many_zero_cash_periods"`
	ManyZeroCashWeight float64 `toml:"many_zero_cash_weight"`
	AnyZeroCashWeight  float64 `toml:"any_zero_cash_weight"`

	ShellMaxImportance float64 `toml:"shell_max_importance"`
	ShellMinVolume     float64 `toml:"shell_min_volume"`
	ShellWeight        float64 `toml:"shell_weight"`

	HighDegree       int     `toml:"high_degree"`
	HighDegreeWeight float64 `toml:"high_degree_weight"`

	LargeInvoice       float64 `toml:"large_invoice"`
	LargeInvoiceWeight float64 `toml:"large_invoice_weight"`

	CriticalAbove float64 `toml:"critical_above"`
	HighAbove     float64 `toml:"high_above"`
	MediumAbove   float64 `toml:"medium_above"`
}

func DefaultOptions() Options {
	return Options{
		KnownFraudScore:    0.95,
		HighRatio:          0.9,
		HighRatioWeight:    0.25,
		MidRatio:           0.5,
		MidRatioWeight:     0.10,
		ManyZeroCash:       3,
		ManyZeroCashWeight: 0.20,
		AnyZeroCashWeight:  0.10,
		ShellMaxImportance: 0.005,
		ShellMinVolume:     5_000_000,
		ShellWeight:        0.25,
		HighDegree:         20,
		HighDegreeWeight:   0.05,
		LargeInvoice:       1_000_000,
		LargeInvoiceWeight: 0.10,
		CriticalAbove:      0.85,
		HighAbove:          0.65,
		MediumAbove:        0.35,
	}
}

// Result is the risk assessment of one entity.
type Result struct {
	EntityID string   `json:"gstin"`
	Score    float64  `json:"risk_score"`
	Level    Level    `json:"risk_level"`
	Factors  []string `json:"key_factors"`
	Features Features `json:"features"`
}

// Score applies the additive heuristic. It depends only on f.
func (o Options) Score(f Features) Result {
	res := Result{EntityID: f.EntityID, Features: f, Factors: []string{}}

	if f.KnownFraud {
		res.Score = o.KnownFraudScore
		res.Factors = append(res.Factors, "Known fraud label: "+f.FraudType)
		res.Level = o.Level(res.Score)
		return res
	}

	score := 0.0
	switch {
	case f.CreditToSales > o.HighRatio:
		score += o.HighRatioWeight
		res.Factors = append(res.Factors, fmt.Sprintf("High ITC-to-sales ratio: %.2f", f.CreditToSales))
	case f.CreditToSales > o.MidRatio:
		score += o.MidRatioWeight
		res.Factors = append(res.Factors, fmt.Sprintf("Elevated ITC-to-sales ratio: %.2f", f.CreditToSales))
	}

	switch {
	case f.ZeroCashPeriods >= o.ManyZeroCash:
		score += o.ManyZeroCashWeight
		res.Factors = append(res.Factors, fmt.Sprintf("%d periods with zero cash tax paid", f.ZeroCashPeriods))
	case f.ZeroCashPeriods >= 1:
		score += o.AnyZeroCashWeight
		res.Factors = append(res.Factors, fmt.Sprintf("%d periods with zero cash tax paid", f.ZeroCashPeriods))
	}

	if f.Importance < o.ShellMaxImportance && f.OutwardValue > o.ShellMinVolume {
		score += o.ShellWeight
		res.Factors = append(res.Factors, "Low network importance but high transaction volume")
	}
	if f.Degree() > o.HighDegree {
		score += o.HighDegreeWeight
		res.Factors = append(res.Factors, fmt.Sprintf("High trading degree: %d", f.Degree()))
	}
	if f.InvoicesIssued > 0 && f.OutwardValue/float64(f.InvoicesIssued) > o.LargeInvoice {
		score += o.LargeInvoiceWeight
		res.Factors = append(res.Factors, "Large average invoice value")
	}

	res.Score = model.Round(math.Max(0, math.Min(score, 1)), 4)
	res.Level = o.Level(res.Score)
	return res
}

func (o Options) Level(score float64) Level {
	switch {
	case score > o.CriticalAbove:
		return LevelCritical
	case score > o.HighAbove:
		return LevelHigh
	case score > o.MediumAbove:
		return LevelMedium
	}
	return LevelLow
}

// Engine scores entities of one snapshot. It is read-only after NewEngine.
type Engine struct {
	opts Options
	idx  *index
	log  logrus.FieldLogger
}

// NewEngine indexes the graph and filings. imp is the importance computed
// for this graph build.
func NewEngine(ctx context.Context, g graph.Graph, ds *model.Dataset, imp graph.Importance, opts Options, log logrus.FieldLogger) (*Engine, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	idx, err := buildIndex(ctx, g, ds, imp)
	if err != nil {
		return nil, err
	}
	return &Engine{opts: opts, idx: idx, log: log.WithField("component", "risk")}, nil
}

func (e *Engine) Features(id string) (Features, error) {
	if !e.idx.known(id) {
		return Features{}, fmt.Errorf("features %s: %w", id, model.ErrUnknownEntity)
	}
	return e.idx.features(id), nil
}

func (e *Engine) Score(id string) (Result, error) {
	f, err := e.Features(id)
	if err != nil {
		return Result{}, err
	}
	return e.opts.Score(f), nil
}

// Leaderboard scores every graph entity and returns the top n, highest
// first. Ties keep graph order. n <= 0 returns everything.
func (e *Engine) Leaderboard(n int) []Result {
	results := make([]Result, 0, len(e.idx.candidates))
	for _, id := range e.idx.candidates {
		results = append(results, e.opts.Score(e.idx.features(id)))
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if n > 0 && len(results) > n {
		results = results[:n]
	}
	e.log.WithFields(logrus.Fields{"scored": len(e.idx.candidates), "returned": len(results)}).Debug("leaderboard computed")
	return results
}

// AllFeatures returns the feature vector of every graph entity in graph order.
func (e *Engine) AllFeatures() []Features {
	out := make([]Features, 0, len(e.idx.candidates))
	for _, id := range e.idx.candidates {
		out = append(out, e.idx.features(id))
	}
	return out
}
