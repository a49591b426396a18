package driver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/agenthands/taxgraph/internal/core/graph"
	"github.com/agenthands/taxgraph/internal/core/model"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"
)

const (
	defaultBatchSize = 500
	// cycle walks need an upper bound in Cypher
	defaultMaxCycleLength = 8
)

// Neo4jGraph is a graph.Graph stored as (:Taxpayer)-[:INVOICE]->(:Taxpayer).
// Every node and relationship is tagged with the snapshot id so several
// builds can coexist while one replaces another.
type Neo4jGraph struct {
	driver    GraphDriver
	snapshot  string
	batchSize int
	log       logrus.FieldLogger

	mu       sync.Mutex
	seq      map[string]int
	edgeSeq  int
	nodeSeen int
}

func NewNeo4jGraph(d GraphDriver, snapshot string, log logrus.FieldLogger) *Neo4jGraph {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Neo4jGraph{
		driver:    d,
		snapshot:  snapshot,
		batchSize: defaultBatchSize,
		log:       log.WithFields(logrus.Fields{"component": "neo4j-graph", "snapshot": snapshot}),
		seq:       make(map[string]int),
	}
}

func (g *Neo4jGraph) Snapshot() string { return g.snapshot }

// nodeSeq assigns insertion order to ids the first time they are written.
func (g *Neo4jGraph) nodeSeq(id string) int {
	if s, ok := g.seq[id]; ok {
		return s
	}
	g.nodeSeen++
	g.seq[id] = g.nodeSeen
	return g.nodeSeen
}

func (g *Neo4jGraph) AddNode(ctx context.Context, n graph.Node) error {
	n.ID = strings.TrimSpace(n.ID)
	if n.ID == "" {
		return fmt.Errorf("add node: %w", graph.ErrInvalidEdge)
	}
	if !n.Registered {
		n.Entity = model.DefaultEntity(n.ID)
	}
	g.mu.Lock()
	row := g.nodeRow(n)
	g.mu.Unlock()
	return g.exec(ctx, SaveTaxpayersQuery, []map[string]any{row})
}

func (g *Neo4jGraph) AddEdge(ctx context.Context, e graph.Edge) error {
	e.From, e.To = strings.TrimSpace(e.From), strings.TrimSpace(e.To)
	if e.From == "" || e.To == "" {
		return fmt.Errorf("add edge %s: %w", e.InvoiceID, graph.ErrInvalidEdge)
	}
	g.mu.Lock()
	row := g.edgeRow(e)
	g.mu.Unlock()
	return g.exec(ctx, SaveInvoicesQuery, []map[string]any{row})
}

// BulkLoad writes nodes then edges in UNWIND batches.
func (g *Neo4jGraph) BulkLoad(ctx context.Context, nodes []graph.Node, edges []graph.Edge) error {
	g.mu.Lock()
	nodeRows := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		nodeRows = append(nodeRows, g.nodeRow(n))
	}
	edgeRows := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		edgeRows = append(edgeRows, g.edgeRow(e))
	}
	g.mu.Unlock()

	if err := g.execBatches(ctx, SaveTaxpayersQuery, nodeRows); err != nil {
		return fmt.Errorf("save taxpayers: %w", err)
	}
	if err := g.execBatches(ctx, SaveInvoicesQuery, edgeRows); err != nil {
		return fmt.Errorf("save invoices: %w", err)
	}
	g.log.WithFields(logrus.Fields{"nodes": len(nodes), "edges": len(edges)}).Info("snapshot written")
	return nil
}

func (g *Neo4jGraph) nodeRow(n graph.Node) map[string]any {
	return map[string]any{
		"gstin":       n.ID,
		"legal_name":  n.Entity.Name,
		"status":      string(n.Entity.Status),
		"trust_score": n.Entity.TrustScore,
		"state_code":  n.Entity.Jurisdiction,
		"registered":  n.Registered,
		"seq":         g.nodeSeq(n.ID),
	}
}

func (g *Neo4jGraph) edgeRow(e graph.Edge) map[string]any {
	g.edgeSeq++
	return map[string]any{
		"invoice_id":  e.InvoiceID,
		"from":        e.From,
		"to":          e.To,
		"total_value": e.Value,
		"tax_amount":  e.TaxAmount,
		"from_seq":    g.nodeSeq(e.From),
		"to_seq":      g.nodeSeq(e.To),
		"seq":         g.edgeSeq,
	}
}

func (g *Neo4jGraph) execBatches(ctx context.Context, query string, rows []map[string]any) error {
	for start := 0; start < len(rows); start += g.batchSize {
		end := min(start+g.batchSize, len(rows))
		if err := g.exec(ctx, query, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (g *Neo4jGraph) exec(ctx context.Context, query string, rows []map[string]any) error {
	def := model.DefaultEntity("")
	_, err := g.driver.ExecuteQuery(ctx, query, map[string]any{
		"rows":           rows,
		"snapshot":       g.snapshot,
		"default_name":   def.Name,
		"default_status": string(def.Status),
		"default_trust":  def.TrustScore,
	})
	return err
}

func (g *Neo4jGraph) query(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	if params == nil {
		params = map[string]any{}
	}
	params["snapshot"] = g.snapshot
	res, err := g.driver.ExecuteQuery(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

func (g *Neo4jGraph) Nodes(ctx context.Context) ([]graph.Node, error) {
	records, err := g.query(ctx, GetTaxpayersQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("list taxpayers: %w", err)
	}
	out := make([]graph.Node, 0, len(records))
	for _, r := range records {
		id := getString(r, "gstin")
		out = append(out, graph.Node{
			ID: id,
			Entity: model.Entity{
				ID:           id,
				Name:         getString(r, "legal_name"),
				Status:       model.EntityStatus(getString(r, "status")),
				TrustScore:   getFloat(r, "trust_score"),
				Jurisdiction: getString(r, "state_code"),
			},
			Registered: getBool(r, "registered"),
		})
	}
	return out, nil
}

func (g *Neo4jGraph) Edges(ctx context.Context) ([]graph.Edge, error) {
	return g.edges(ctx, GetInvoicesQuery, nil)
}

func (g *Neo4jGraph) OutEdges(ctx context.Context, id string) ([]graph.Edge, error) {
	return g.edges(ctx, GetOutInvoicesQuery, map[string]any{"gstin": id})
}

func (g *Neo4jGraph) InEdges(ctx context.Context, id string) ([]graph.Edge, error) {
	return g.edges(ctx, GetInInvoicesQuery, map[string]any{"gstin": id})
}

func (g *Neo4jGraph) edges(ctx context.Context, query string, params map[string]any) ([]graph.Edge, error) {
	records, err := g.query(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	out := make([]graph.Edge, 0, len(records))
	for _, r := range records {
		out = append(out, graph.Edge{
			InvoiceID: getString(r, "invoice_id"),
			From:      getString(r, "from"),
			To:        getString(r, "to"),
			Value:     getFloat(r, "total_value"),
			TaxAmount: getFloat(r, "tax_amount"),
		})
	}
	return out, nil
}

func (g *Neo4jGraph) HasNode(ctx context.Context, id string) (bool, error) {
	records, err := g.query(ctx, HasTaxpayerQuery, map[string]any{"gstin": id})
	if err != nil {
		return false, fmt.Errorf("has taxpayer: %w", err)
	}
	return len(records) > 0 && getInt(records[0], "cnt") > 0, nil
}

// Importance pulls the invoice list and ranks it in process, as not every
// server ships a PageRank procedure.
func (g *Neo4jGraph) Importance(ctx context.Context, opts graph.ImportanceOptions) (graph.Importance, error) {
	nodes, err := g.Nodes(ctx)
	if err != nil {
		return graph.Importance{}, err
	}
	edges, err := g.Edges(ctx)
	if err != nil {
		return graph.Importance{}, err
	}
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return graph.PageRank(ids, edges, opts), nil
}

// SimpleCycles runs a bounded path query and folds the chains into hops.
// Reaching the limit in distinct chains marks the result truncated.
func (g *Neo4jGraph) SimpleCycles(ctx context.Context, opts graph.CycleOptions) (graph.CycleSet, error) {
	minLen := max(opts.MinLength, 2)
	maxLen := opts.MaxLength
	if maxLen <= 0 {
		maxLen = defaultMaxCycleLength
	}
	limit := opts.ExamineLimit
	if limit <= 0 {
		limit = 5000
	}

	records, err := g.query(ctx, CyclesQuery(minLen, maxLen), map[string]any{"limit": limit})
	if err != nil {
		return graph.CycleSet{}, fmt.Errorf("find cycles: %w", err)
	}
	chains := make([][]string, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		chain := getStrings(r, "chain")
		key := strings.Join(chain, "\x00")
		if seen[key] {
			continue
		}
		seen[key] = true
		chains = append(chains, chain)
	}
	edges, err := g.Edges(ctx)
	if err != nil {
		return graph.CycleSet{}, err
	}

	set := graph.CyclesFromChains(chains, edges, opts)
	if len(chains) >= limit {
		set.Outcome.Truncated = true
	}
	if opts.MaxLength <= 0 {
		g.log.WithField("max_length", maxLen).Debug("cycle length capped for path query")
	}
	return set, nil
}
