package driver

import "fmt"

var IndexQueries = []string{
	"CREATE INDEX taxpayer_snapshot_gstin IF NOT EXISTS FOR (t:Taxpayer) ON (t.snapshot, t.gstin)",
	"CREATE INDEX invoice_snapshot IF NOT EXISTS FOR ()-[r:INVOICE]-() ON (r.snapshot)",
}

const (
	// A registered taxpayer replaces a placeholder; otherwise the first
	// write wins.
	SaveTaxpayersQuery = `
		UNWIND $rows AS row
		MERGE (t:Taxpayer {gstin: row.gstin, snapshot: $snapshot})
		WITH t, row
		WHERE t.seq IS NULL OR (row.registered AND NOT coalesce(t.registered, false))
		SET t.legal_name = row.legal_name,
			t.status = row.status,
			t.trust_score = row.trust_score,
			t.state_code = row.state_code,
			t.registered = row.registered,
			t.seq = coalesce(t.seq, row.seq)
	`

	// Endpoints that were never saved as taxpayers get default attributes.
	SaveInvoicesQuery = `
		UNWIND $rows AS row
		MERGE (a:Taxpayer {gstin: row.from, snapshot: $snapshot})
		ON CREATE SET a.legal_name = $default_name,
			a.status = $default_status,
			a.trust_score = $default_trust,
			a.registered = false,
			a.seq = row.from_seq
		MERGE (b:Taxpayer {gstin: row.to, snapshot: $snapshot})
		ON CREATE SET b.legal_name = $default_name,
			b.status = $default_status,
			b.trust_score = $default_trust,
			b.registered = false,
			b.seq = row.to_seq
		CREATE (a)-[:INVOICE {
			invoice_id: row.invoice_id,
			total_value: row.total_value,
			tax_amount: row.tax_amount,
			snapshot: $snapshot,
			seq: row.seq
		}]->(b)
	`

	GetTaxpayersQuery = `
		MATCH (t:Taxpayer {snapshot: $snapshot})
		RETURN t.gstin AS gstin, t.legal_name AS legal_name, t.status AS status,
			t.trust_score AS trust_score, t.state_code AS state_code, t.registered AS registered
		ORDER BY t.seq
	`

	HasTaxpayerQuery = `
		MATCH (t:Taxpayer {snapshot: $snapshot, gstin: $gstin})
		RETURN count(t) AS cnt
	`

	GetInvoicesQuery = `
		MATCH (a:Taxpayer {snapshot: $snapshot})-[r:INVOICE]->(b:Taxpayer)
		RETURN r.invoice_id AS invoice_id, a.gstin AS from, b.gstin AS to,
			r.total_value AS total_value, r.tax_amount AS tax_amount
		ORDER BY r.seq
	`

	GetOutInvoicesQuery = `
		MATCH (a:Taxpayer {snapshot: $snapshot, gstin: $gstin})-[r:INVOICE]->(b:Taxpayer)
		RETURN r.invoice_id AS invoice_id, a.gstin AS from, b.gstin AS to,
			r.total_value AS total_value, r.tax_amount AS tax_amount
		ORDER BY r.seq
	`

	GetInInvoicesQuery = `
		MATCH (a:Taxpayer)-[r:INVOICE]->(b:Taxpayer {snapshot: $snapshot, gstin: $gstin})
		RETURN r.invoice_id AS invoice_id, a.gstin AS from, b.gstin AS to,
			r.total_value AS total_value, r.tax_amount AS tax_amount
		ORDER BY r.seq
	`

	DeleteSnapshotQuery = `
		MATCH (t:Taxpayer {snapshot: $snapshot})
		DETACH DELETE t
	`

	DeleteOtherSnapshotsQuery = `
		MATCH (t:Taxpayer)
		WHERE t.snapshot IS NULL OR t.snapshot <> $snapshot
		DETACH DELETE t
	`
)

// CyclesQuery finds simple invoice cycles anchored at their smallest gstin so
// each cycle is returned in one rotation. Parallel invoices yield one path per
// combination, so chains are made distinct before the limit applies. Path
// bounds cannot be parameters.
func CyclesQuery(minLen, maxLen int) string {
	return fmt.Sprintf(`
		MATCH p = (a:Taxpayer {snapshot: $snapshot})-[:INVOICE*%d..%d]->(a)
		WHERE all(n IN nodes(p) WHERE n.gstin >= a.gstin)
			AND all(i IN range(0, length(p) - 1) WHERE NOT nodes(p)[i] IN nodes(p)[i + 1..length(p)])
		WITH DISTINCT [n IN nodes(p) | n.gstin] AS chain
		RETURN chain
		LIMIT $limit
	`, minLen, maxLen)
}
