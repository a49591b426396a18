package fraud

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/agenthands/taxgraph/internal/core/community"
	"github.com/agenthands/taxgraph/internal/core/graph"
	"github.com/agenthands/taxgraph/internal/core/model"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Cycles         graph.CycleOptions `toml:"cycles"`
	CycleLimit     int                `toml:"cycle_limit"`
	ShellMaxScore  float64            `toml:"shell_max_importance"`
	ShellMinVolume float64            `toml:"shell_min_volume"`
	RoundUnit      float64            `toml:"round_unit"`
	RoundMinValue  float64            `toml:"round_min_value"`
	RepeatMinCount int                `toml:"repeat_min_count"`
	RepeatMaxKinds int                `toml:"repeat_max_distinct"`
	ResultLimit    int                `toml:"result_limit"`
}

func DefaultOptions() Options {
	return Options{
		Cycles:         graph.DefaultCycleOptions(),
		CycleLimit:     50,
		ShellMaxScore:  0.01,
		ShellMinVolume: 10_000_000,
		RoundUnit:      100_000,
		RoundMinValue:  500_000,
		RepeatMinCount: 3,
		RepeatMaxKinds: 2,
		ResultLimit:    0,
	}
}

// Input carries the per-build values the checks share. Importance is
// computed once per graph build by the caller. CircularEntities, when
// non-empty, restricts surfaced cycles to those touching a known circular
// trader.
type Input struct {
	Importance       graph.Importance
	CircularEntities map[string]bool
}

// Detector runs the structural fraud checks over one read-only graph.
type Detector struct {
	g        graph.Graph
	opts     Options
	clusters community.Detector
	log      logrus.FieldLogger
}

func NewDetector(g graph.Graph, opts Options, log logrus.FieldLogger) *Detector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Detector{
		g:        g,
		opts:     opts,
		clusters: community.NewSimpleDetector(),
		log:      log.WithField("component", "fraud"),
	}
}

// DetectAll runs the four checks concurrently and combines them.
func (d *Detector) DetectAll(ctx context.Context, in Input) Report {
	var r Report
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		r.Circular = d.CircularTrading(ctx, in.CircularEntities)
		return nil
	})
	eg.Go(func() error {
		r.Shell = d.ShellCompanies(ctx, in.Importance)
		return nil
	})
	eg.Go(func() error {
		r.Reciprocal = d.ReciprocalTrading(ctx)
		return nil
	})
	eg.Go(func() error {
		r.Repeated = d.RepeatedInvoices(ctx)
		return nil
	})
	_ = eg.Wait()

	flagged := r.FlaggedEntities()
	r.Clusters = d.clusters.Detect(flagged, r.links())
	r.Summary = Summary{
		CircularCount:         r.Circular.Total,
		ShellCount:            r.Shell.Total,
		ReciprocalCount:       r.Reciprocal.Total,
		RepeatedCount:         r.Repeated.Total,
		TotalPatterns:         r.Circular.Total + r.Shell.Total + r.Reciprocal.Total + r.Repeated.Total,
		UniqueEntitiesFlagged: len(flagged),
		Truncated: r.Circular.Outcome.Truncated || r.Shell.Outcome.Truncated ||
			r.Reciprocal.Outcome.Truncated || r.Repeated.Outcome.Truncated,
	}
	d.log.WithFields(logrus.Fields{
		"circular":   r.Summary.CircularCount,
		"shell":      r.Summary.ShellCount,
		"reciprocal": r.Summary.ReciprocalCount,
		"repeated":   r.Summary.RepeatedCount,
		"flagged":    r.Summary.UniqueEntitiesFlagged,
		"rings":      len(r.Clusters),
	}).Info("fraud pattern detection complete")
	return r
}

// CircularTrading surfaces simple cycles of length >= 3 ordered by circular
// value. Enumeration and the surfaced list are both capped.
func (d *Detector) CircularTrading(ctx context.Context, circular map[string]bool) Check[CircularTrade] {
	set, err := d.g.SimpleCycles(ctx, d.opts.Cycles)
	if err != nil {
		return degraded[CircularTrade](d.log, "circular", err)
	}
	if !set.Outcome.Ran() {
		return skipped[CircularTrade](set.Outcome.Reason)
	}

	items := make([]CircularTrade, 0, len(set.Cycles))
	for _, c := range set.Cycles {
		if len(circular) > 0 && !touches(c.Nodes, circular) {
			continue
		}
		items = append(items, CircularTrade{
			Chain:          c.Nodes,
			ChainLength:    len(c.Nodes),
			CircularValue:  model.Round(c.Value, 2),
			FormattedValue: model.FormatCurrency(c.Value),
			InvoiceIDs:     c.InvoiceIDs(),
			Hops:           c.Hops,
			Severity:       model.SeverityCritical,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CircularValue > items[j].CircularValue
	})

	res := Check[CircularTrade]{Items: items, Total: len(items), Outcome: model.Computed()}
	res.Outcome.Truncated = set.Outcome.Truncated
	if d.opts.CycleLimit > 0 && len(items) > d.opts.CycleLimit {
		res.Items = items[:d.opts.CycleLimit]
		res.Outcome.Truncated = true
	}
	if res.Outcome.Truncated {
		d.log.WithFields(logrus.Fields{"examined": set.Examined, "surfaced": len(res.Items)}).
			Warn("cycle enumeration truncated")
	}
	return res
}

func touches(nodes []string, set map[string]bool) bool {
	for _, n := range nodes {
		if set[n] {
			return true
		}
	}
	return false
}

// ShellCompanies flags low-importance entities pushing high outward volume.
func (d *Detector) ShellCompanies(ctx context.Context, imp graph.Importance) Check[ShellCompany] {
	if !imp.Outcome.Ran() {
		return skipped[ShellCompany]("importance scores unavailable: " + imp.Outcome.Reason)
	}
	nodes, err := d.g.Nodes(ctx)
	if err != nil {
		return degraded[ShellCompany](d.log, "shell", err)
	}
	edges, err := d.g.Edges(ctx)
	if err != nil {
		return degraded[ShellCompany](d.log, "shell", err)
	}

	volume := make(map[string]float64)
	count := make(map[string]int)
	for _, e := range edges {
		volume[e.From] += e.Value
		count[e.From]++
	}

	items := make([]ShellCompany, 0)
	for _, n := range nodes {
		score := imp.Score(n.ID)
		v := volume[n.ID]
		if score >= d.opts.ShellMaxScore || v <= d.opts.ShellMinVolume {
			continue
		}
		items = append(items, ShellCompany{
			EntityID:        n.ID,
			Name:            n.Entity.Name,
			Importance:      model.Round(score, 6),
			TotalVolume:     model.Round(v, 2),
			FormattedVolume: model.FormatCurrency(v),
			InvoiceCount:    count[n.ID],
			Severity:        model.SeverityCritical,
			Reason:          "Low network importance but abnormally high transaction volume",
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].TotalVolume > items[j].TotalVolume
	})

	res := Check[ShellCompany]{Items: items, Total: len(items), Outcome: model.Computed()}
	res.Outcome.Truncated = imp.Outcome.Truncated
	return limit(res, d.opts.ResultLimit)
}

// ReciprocalTrading reports each unordered pair trading in both directions
// once, with the lexically smaller id as party A.
func (d *Detector) ReciprocalTrading(ctx context.Context) Check[ReciprocalTrade] {
	edges, err := d.g.Edges(ctx)
	if err != nil {
		return degraded[ReciprocalTrade](d.log, "reciprocal", err)
	}

	type flow struct {
		value    float64
		invoices []string
	}
	flows := make(map[[2]string]*flow)
	for _, e := range edges {
		if e.From == e.To {
			continue
		}
		key := [2]string{e.From, e.To}
		f, ok := flows[key]
		if !ok {
			f = &flow{}
			flows[key] = f
		}
		f.value += e.Value
		f.invoices = append(f.invoices, e.InvoiceID)
	}

	pairs := make([][2]string, 0)
	for key := range flows {
		if key[0] < key[1] && flows[[2]string{key[1], key[0]}] != nil {
			pairs = append(pairs, key)
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})

	items := make([]ReciprocalTrade, 0, len(pairs))
	for _, p := range pairs {
		ab, ba := flows[p], flows[[2]string{p[1], p[0]}]
		items = append(items, ReciprocalTrade{
			PartyA:        p[0],
			PartyB:        p[1],
			AToBValue:     model.Round(ab.value, 2),
			BToAValue:     model.Round(ba.value, 2),
			CombinedValue: model.Round(ab.value+ba.value, 2),
			AToBInvoices:  ab.invoices,
			BToAInvoices:  ba.invoices,
			Severity:      model.SeverityWarning,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CombinedValue > items[j].CombinedValue
	})
	return limit(Check[ReciprocalTrade]{Items: items, Total: len(items), Outcome: model.Computed()}, d.opts.ResultLimit)
}

// RepeatedInvoices flags supplier/receiver pairs billing the same round
// amounts over and over.
func (d *Detector) RepeatedInvoices(ctx context.Context) Check[RepeatedInvoices] {
	edges, err := d.g.Edges(ctx)
	if err != nil {
		return degraded[RepeatedInvoices](d.log, "repeated", err)
	}

	type group struct {
		key      [2]string
		amounts  map[float64]bool
		first    float64
		total    float64
		invoices []string
	}
	groups := make(map[[2]string]*group)
	var order []*group
	for _, e := range edges {
		if !d.isRoundAmount(e.Value) {
			continue
		}
		key := [2]string{e.From, e.To}
		g, ok := groups[key]
		if !ok {
			g = &group{key: key, amounts: make(map[float64]bool), first: e.Value}
			groups[key] = g
			order = append(order, g)
		}
		g.amounts[e.Value] = true
		g.total += e.Value
		g.invoices = append(g.invoices, e.InvoiceID)
	}

	items := make([]RepeatedInvoices, 0)
	for _, g := range order {
		n := len(g.invoices)
		if n < d.opts.RepeatMinCount || len(g.amounts) > d.opts.RepeatMaxKinds {
			continue
		}
		items = append(items, RepeatedInvoices{
			SupplierID:      g.key[0],
			ReceiverID:      g.key[1],
			RepeatedCount:   n,
			RepeatedAmount:  model.Round(g.first, 2),
			FormattedAmount: model.FormatCurrency(g.first),
			DistinctAmounts: len(g.amounts),
			TotalValue:      model.Round(g.total, 2),
			InvoiceIDs:      g.invoices,
			Severity:        model.SeverityWarning,
			Reason:          fmt.Sprintf("%d invoices with identical round amounts", n),
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].TotalValue > items[j].TotalValue
	})
	return limit(Check[RepeatedInvoices]{Items: items, Total: len(items), Outcome: model.Computed()}, d.opts.ResultLimit)
}

func (d *Detector) isRoundAmount(v float64) bool {
	if v <= d.opts.RoundMinValue || d.opts.RoundUnit <= 0 {
		return false
	}
	return math.Mod(v, d.opts.RoundUnit) == 0
}

func degraded[T any](log logrus.FieldLogger, check string, err error) Check[T] {
	log.WithError(err).WithField("check", check).Warn("pattern check skipped")
	return skipped[T](err.Error())
}

func limit[T any](c Check[T], n int) Check[T] {
	if n > 0 && len(c.Items) > n {
		c.Items = c.Items[:n]
		c.Outcome.Truncated = true
	}
	return c
}
