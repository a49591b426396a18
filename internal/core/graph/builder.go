package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/taxgraph/internal/core/model"
)

// BuildStats describes one graph build.
type BuildStats struct {
	Nodes           int `json:"nodes"`
	Edges           int `json:"edges"`
	SkippedInvoices int `json:"skipped_invoices"`
	ImplicitNodes   int `json:"implicit_nodes"`
}

// BulkLoader is implemented by backends that ingest faster in batches.
// Nodes arrive first, registered ones only; edges create missing endpoints.
type BulkLoader interface {
	BulkLoad(ctx context.Context, nodes []Node, edges []Edge) error
}

// Build loads entities and outward invoices into g. Every invoice becomes one
// edge; invoices with an empty endpoint are skipped rather than failing the
// build. Endpoints missing from entities get default attributes.
func Build(ctx context.Context, g Graph, entities []model.Entity, invoices []model.OutwardInvoice) (BuildStats, error) {
	var stats BuildStats
	registered := make(map[string]bool, len(entities))
	nodes := make([]Node, 0, len(entities))
	for _, e := range entities {
		id := strings.TrimSpace(e.ID)
		if id == "" || registered[id] {
			continue
		}
		e.ID = id
		registered[id] = true
		nodes = append(nodes, Node{ID: id, Entity: e, Registered: true})
	}
	stats.Nodes = len(nodes)

	implicit := make(map[string]bool)
	edges := make([]Edge, 0, len(invoices))
	for _, inv := range invoices {
		from, to := strings.TrimSpace(inv.SupplierID), strings.TrimSpace(inv.ReceiverID)
		if from == "" || to == "" {
			stats.SkippedInvoices++
			continue
		}
		edges = append(edges, Edge{
			InvoiceID: inv.InvoiceID,
			From:      from,
			To:        to,
			Value:     inv.Value,
			TaxAmount: inv.TaxAmount,
		})
		for _, id := range [2]string{from, to} {
			if !registered[id] && !implicit[id] {
				implicit[id] = true
				stats.ImplicitNodes++
			}
		}
	}
	stats.Nodes += stats.ImplicitNodes
	stats.Edges = len(edges)

	if bl, ok := g.(BulkLoader); ok {
		if err := bl.BulkLoad(ctx, nodes, edges); err != nil {
			return stats, fmt.Errorf("build graph: %w", err)
		}
		return stats, nil
	}

	for _, n := range nodes {
		if err := g.AddNode(ctx, n); err != nil {
			return stats, fmt.Errorf("build graph: %w", err)
		}
	}
	for _, e := range edges {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := g.AddEdge(ctx, e); err != nil {
			return stats, fmt.Errorf("build graph: invoice %s: %w", e.InvoiceID, err)
		}
	}
	return stats, nil
}

// BuildMemory is Build over a fresh in-memory graph.
func BuildMemory(ctx context.Context, entities []model.Entity, invoices []model.OutwardInvoice) (*Memory, BuildStats, error) {
	m := NewMemory()
	stats, err := Build(ctx, m, entities, invoices)
	if err != nil {
		return nil, stats, err
	}
	return m, stats, nil
}
