package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, tx *Transaction) error
	SaveTransactions(ctx context.Context, txs []Transaction) error
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
	// ListTransactions returns all stored transactions ordered by
	// date then id, the canonical detection input ordering.
	ListTransactions(ctx context.Context) ([]Transaction, error)

	// Run operations
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	LatestRun(ctx context.Context) (*Run, error)

	// Scored finding operations
	SaveScoredFindings(ctx context.Context, runID string, findings []ScoredFinding) error
	ListScoredFindings(ctx context.Context, runID string) ([]ScoredFinding, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
