package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    date TIMESTAMP NOT NULL,
    supplier_id TEXT NOT NULL,
    supplier_name TEXT NOT NULL,
    category TEXT,
    baseline_rate REAL NOT NULL,
    invoice_amount REAL NOT NULL,
    expected_delivery_date TIMESTAMP,
    actual_delivery_date TIMESTAMP,
    po_number TEXT,
    region TEXT,
    approved_by TEXT
);

CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date);
CREATE INDEX IF NOT EXISTS idx_transactions_supplier ON transactions(supplier_id);
`

const schemaRuns = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP NOT NULL,
    transaction_count INTEGER NOT NULL,
    skipped_count INTEGER NOT NULL,
    finding_count INTEGER NOT NULL,
    total_leakage_gbp REAL NOT NULL,
    summary TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_completed ON runs(completed_at);
`

const schemaScoredFindings = `
CREATE TABLE IF NOT EXISTS scored_findings (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    transaction_id TEXT NOT NULL,
    rule TEXT NOT NULL,
    detail TEXT NOT NULL,
    raw_magnitude REAL NOT NULL,
    date TIMESTAMP NOT NULL,
    supplier_id TEXT NOT NULL,
    supplier_name TEXT,
    category TEXT,
    leakage_gbp REAL NOT NULL,
    base_score REAL NOT NULL,
    financial_score REAL NOT NULL,
    composite_score REAL NOT NULL,
    severity TEXT NOT NULL,
    severity_rank INTEGER NOT NULL,
    action_required TEXT NOT NULL,
    position INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_findings_run ON scored_findings(run_id);
CREATE INDEX IF NOT EXISTS idx_findings_severity ON scored_findings(run_id, severity_rank);
CREATE INDEX IF NOT EXISTS idx_findings_rule ON scored_findings(run_id, rule);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaRuns,
		schemaScoredFindings,
	}
}
