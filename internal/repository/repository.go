// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a single transaction.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("%w: transaction id is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (
			id, date, supplier_id, supplier_name, category,
			baseline_rate, invoice_amount,
			expected_delivery_date, actual_delivery_date,
			po_number, region, approved_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var actual any
	if tx.ActualDelivery != nil {
		actual = tx.ActualDelivery.UTC()
	}

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tx.Date.UTC(), tx.SupplierID, tx.SupplierName, tx.Category,
		tx.BaselineRate, tx.InvoiceAmount,
		tx.ExpectedDelivery.UTC(), actual,
		tx.PONumber, tx.Region, tx.ApprovedBy,
	)
	return err
}

// SaveTransactions stores a batch of transactions in one database
// transaction, so a failed batch leaves no partial state behind.
func (r *SQLRepository) SaveTransactions(ctx context.Context, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	query := r.rebind(`
		INSERT INTO transactions (
			id, date, supplier_id, supplier_name, category,
			baseline_rate, invoice_amount,
			expected_delivery_date, actual_delivery_date,
			po_number, region, approved_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	stmt, err := dbTx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range txs {
		tx := &txs[i]
		var actual any
		if tx.ActualDelivery != nil {
			actual = tx.ActualDelivery.UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			tx.ID, tx.Date.UTC(), tx.SupplierID, tx.SupplierName, tx.Category,
			tx.BaselineRate, tx.InvoiceAmount,
			tx.ExpectedDelivery.UTC(), actual,
			tx.PONumber, tx.Region, tx.ApprovedBy,
		); err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", tx.ID, err)
		}
	}

	return dbTx.Commit()
}

// GetTransaction retrieves a transaction by ID.
func (r *SQLRepository) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	query := `
		SELECT id, date, supplier_id, supplier_name, category,
			   baseline_rate, invoice_amount,
			   expected_delivery_date, actual_delivery_date,
			   po_number, region, approved_by
		FROM transactions
		WHERE id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), txID)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// ListTransactions retrieves all transactions ordered by date then id.
func (r *SQLRepository) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	query := `
		SELECT id, date, supplier_id, supplier_name, category,
			   baseline_rate, invoice_amount,
			   expected_delivery_date, actual_delivery_date,
			   po_number, region, approved_by
		FROM transactions
		ORDER BY date, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}

	return transactions, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var actual sql.NullTime

	err := s.Scan(
		&tx.ID, &tx.Date, &tx.SupplierID, &tx.SupplierName, &tx.Category,
		&tx.BaselineRate, &tx.InvoiceAmount,
		&tx.ExpectedDelivery, &actual,
		&tx.PONumber, &tx.Region, &tx.ApprovedBy,
	)
	if err != nil {
		return nil, err
	}

	if actual.Valid {
		t := actual.Time
		tx.ActualDelivery = &t
	}
	return &tx, nil
}

// SaveRun stores a completed pipeline run.
func (r *SQLRepository) SaveRun(ctx context.Context, run *domain.Run) error {
	if run.ID == "" {
		return fmt.Errorf("%w: run id is required", domain.ErrInvalidInput)
	}

	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	query := `
		INSERT INTO runs (
			id, started_at, completed_at,
			transaction_count, skipped_count, finding_count,
			total_leakage_gbp, summary
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		run.ID, run.StartedAt.UTC(), run.CompletedAt.UTC(),
		run.TransactionCount, run.SkippedCount, run.FindingCount,
		run.TotalLeakageGBP, string(summary),
	)
	return err
}

// GetRun retrieves a run by ID.
func (r *SQLRepository) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	query := `
		SELECT id, started_at, completed_at,
			   transaction_count, skipped_count, finding_count,
			   total_leakage_gbp, summary
		FROM runs
		WHERE id = ?
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, r.rebind(query), runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return run, err
}

// LatestRun retrieves the most recently completed run.
func (r *SQLRepository) LatestRun(ctx context.Context) (*domain.Run, error) {
	query := `
		SELECT id, started_at, completed_at,
			   transaction_count, skipped_count, finding_count,
			   total_leakage_gbp, summary
		FROM runs
		ORDER BY completed_at DESC
		LIMIT 1
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return run, err
}

// ListRuns retrieves the most recent runs, newest first.
func (r *SQLRepository) ListRuns(ctx context.Context, limit int) ([]*domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, started_at, completed_at,
			   transaction_count, skipped_count, finding_count,
			   total_leakage_gbp, summary
		FROM runs
		ORDER BY completed_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(s scanner) (*domain.Run, error) {
	var run domain.Run
	var summary string

	err := s.Scan(
		&run.ID, &run.StartedAt, &run.CompletedAt,
		&run.TransactionCount, &run.SkippedCount, &run.FindingCount,
		&run.TotalLeakageGBP, &summary,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(summary), &run.Summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary for run %s: %w", run.ID, err)
	}
	return &run, nil
}

// SaveScoredFindings stores the scored findings of a run, preserving the
// triage ordering via the position column.
func (r *SQLRepository) SaveScoredFindings(ctx context.Context, runID string, findings []domain.ScoredFinding) error {
	if runID == "" {
		return fmt.Errorf("%w: runID is required", domain.ErrInvalidInput)
	}
	if len(findings) == 0 {
		return nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	query := r.rebind(`
		INSERT INTO scored_findings (
			id, run_id, transaction_id, rule, detail, raw_magnitude,
			date, supplier_id, supplier_name, category,
			leakage_gbp, base_score, financial_score, composite_score,
			severity, severity_rank, action_required, position
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	stmt, err := dbTx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range findings {
		f := &findings[i]
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), runID, f.TransactionID, string(f.Rule), f.Detail, f.RawMagnitude,
			f.Date.UTC(), f.SupplierID, f.SupplierName, f.Category,
			f.LeakageGBP, f.BaseScore, f.FinancialScore, f.CompositeScore,
			string(f.Severity), f.SeverityRank, f.ActionRequired, i,
		); err != nil {
			return fmt.Errorf("failed to save finding for transaction %s: %w", f.TransactionID, err)
		}
	}

	return dbTx.Commit()
}

// ListScoredFindings retrieves the scored findings of a run in their
// stored triage order.
func (r *SQLRepository) ListScoredFindings(ctx context.Context, runID string) ([]domain.ScoredFinding, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: runID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT transaction_id, rule, detail, raw_magnitude,
			   date, supplier_id, supplier_name, category,
			   leakage_gbp, base_score, financial_score, composite_score,
			   severity, severity_rank, action_required
		FROM scored_findings
		WHERE run_id = ?
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var findings []domain.ScoredFinding
	for rows.Next() {
		var f domain.ScoredFinding
		var rule, severity string

		if err := rows.Scan(
			&f.TransactionID, &rule, &f.Detail, &f.RawMagnitude,
			&f.Date, &f.SupplierID, &f.SupplierName, &f.Category,
			&f.LeakageGBP, &f.BaseScore, &f.FinancialScore, &f.CompositeScore,
			&severity, &f.SeverityRank, &f.ActionRequired,
		); err != nil {
			return nil, err
		}

		f.Rule = domain.Rule(rule)
		f.Severity = domain.Severity(severity)
		findings = append(findings, f)
	}

	return findings, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, ... for postgres.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
