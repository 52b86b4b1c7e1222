package pipeline

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/alert"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fixtureTransactions yields one duplicate pair and one overcharge.
func fixtureTransactions() []domain.Transaction {
	mk := func(id string, date time.Time, amount float64) domain.Transaction {
		return domain.Transaction{
			ID:            id,
			Date:          date,
			SupplierID:    "SUP-001",
			SupplierName:  "Thameside Logistics",
			Category:      "Freight",
			BaselineRate:  amount,
			InvoiceAmount: amount,
		}
	}

	overcharged := domain.Transaction{
		ID:            "TXN-003",
		Date:          day(2025, 3, 12),
		SupplierID:    "SUP-002",
		SupplierName:  "Caledonia IT Services",
		Category:      "IT Services",
		BaselineRate:  2400,
		InvoiceAmount: 3100,
	}

	return []domain.Transaction{
		mk("TXN-001", day(2025, 3, 10), 1250),
		mk("TXN-002", day(2025, 3, 11), 1250),
		overcharged,
	}
}

func newTestPipeline(t *testing.T) (*Pipeline, domain.Repository, domain.Cache, *bus.ChannelBus) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "kestrel-pipeline-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	c := cache.NewLRUCache(100)
	t.Cleanup(func() { c.Close() })

	b := bus.NewChannelBus(100)
	t.Cleanup(func() { b.Close() })

	cfg := domain.DefaultConfig()
	router, err := alert.NewRouter(cfg.AlertRoutes, b)
	if err != nil {
		t.Fatalf("failed to create router: %v", err)
	}

	return New(cfg, repo, c, b, router), repo, c, b
}

func TestExecutePersistsRunAndFindings(t *testing.T) {
	pipe, repo, _, _ := newTestPipeline(t)
	ctx := context.Background()

	run, scored, err := pipe.Execute(ctx, fixtureTransactions())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// Duplicate pair fires twice, price variance once.
	if run.FindingCount != 3 {
		t.Errorf("expected 3 findings, got %d", run.FindingCount)
	}
	if run.TransactionCount != 3 || run.SkippedCount != 0 {
		t.Errorf("wrong counts: %d transactions, %d skipped", run.TransactionCount, run.SkippedCount)
	}
	if len(scored) != 3 {
		t.Fatalf("expected 3 scored findings, got %d", len(scored))
	}

	stored, err := repo.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if stored.FindingCount != run.FindingCount {
		t.Errorf("stored run differs: %d vs %d", stored.FindingCount, run.FindingCount)
	}

	findings, err := repo.ListScoredFindings(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListScoredFindings failed: %v", err)
	}
	if len(findings) != 3 {
		t.Fatalf("expected 3 stored findings, got %d", len(findings))
	}

	// Stored order is the triage order Execute returned.
	for i := range findings {
		if findings[i].TransactionID != scored[i].TransactionID {
			t.Errorf("position %d: stored %s, returned %s", i, findings[i].TransactionID, scored[i].TransactionID)
		}
	}
}

func TestExecuteReturnsTriageOrder(t *testing.T) {
	pipe, _, _, _ := newTestPipeline(t)

	_, scored, err := pipe.Execute(context.Background(), fixtureTransactions())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	for i := 1; i < len(scored); i++ {
		if scored[i-1].SeverityRank < scored[i].SeverityRank {
			t.Fatalf("not in severity order at %d", i)
		}
		if scored[i-1].SeverityRank == scored[i].SeverityRank &&
			scored[i-1].LeakageGBP < scored[i].LeakageGBP {
			t.Fatalf("not in leakage order at %d", i)
		}
	}
}

func TestExecuteCachesSummary(t *testing.T) {
	pipe, _, c, _ := newTestPipeline(t)
	ctx := context.Background()

	run, _, err := pipe.Execute(ctx, fixtureTransactions())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	byRun, err := c.GetSummary(ctx, domain.SummaryKey(run.ID))
	if err != nil || byRun == nil {
		t.Fatalf("run summary not cached: %v, %v", byRun, err)
	}
	latest, err := c.GetSummary(ctx, domain.SummaryKeyLatest)
	if err != nil || latest == nil {
		t.Fatalf("latest summary not cached: %v, %v", latest, err)
	}
	if latest.TotalFindings != run.FindingCount {
		t.Errorf("cached summary differs: %d vs %d", latest.TotalFindings, run.FindingCount)
	}
}

func TestExecutePublishesRunEventAndAlerts(t *testing.T) {
	pipe, _, _, b := newTestPipeline(t)
	ctx := context.Background()

	runEvents := make(chan *domain.Message, 10)
	alerts := make(chan *domain.Message, 10)

	if _, err := b.Subscribe(ctx, domain.TopicRunCompleted, func(ctx context.Context, msg *domain.Message) error {
		runEvents <- msg
		return nil
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if _, err := b.Subscribe(ctx, domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
		alerts <- msg
		return nil
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if _, _, err := pipe.Execute(ctx, fixtureTransactions()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	select {
	case <-runEvents:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for run-completed event")
	}

	// Both duplicate findings carry £1250 leakage: composite 77.5 is
	// below the Critical cutoff. The £340 price-variance excess scores
	// lower still, so the default critical-only route stays quiet for
	// this fixture.
	select {
	case msg := <-alerts:
		t.Fatalf("unexpected alert: %s", msg.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestExecuteSkipsMalformedRecords(t *testing.T) {
	pipe, _, _, _ := newTestPipeline(t)

	txs := append(fixtureTransactions(), domain.Transaction{
		ID: "", Date: day(2025, 3, 13), SupplierID: "SUP-001", InvoiceAmount: 10,
	})

	run, _, err := pipe.Execute(context.Background(), txs)
	if err != nil {
		t.Fatalf("lenient mode should not fail: %v", err)
	}
	if run.SkippedCount != 1 {
		t.Errorf("expected 1 skipped record, got %d", run.SkippedCount)
	}
	if run.TransactionCount != 3 {
		t.Errorf("expected 3 counted transactions, got %d", run.TransactionCount)
	}
}

func TestExecuteFromRepository(t *testing.T) {
	pipe, repo, _, _ := newTestPipeline(t)
	ctx := context.Background()

	if _, _, err := pipe.ExecuteFromRepository(ctx); err == nil {
		t.Fatal("expected error with no stored transactions")
	}

	if err := repo.SaveTransactions(ctx, fixtureTransactions()); err != nil {
		t.Fatalf("SaveTransactions failed: %v", err)
	}

	run, _, err := pipe.ExecuteFromRepository(ctx)
	if err != nil {
		t.Fatalf("ExecuteFromRepository failed: %v", err)
	}
	if run.FindingCount != 3 {
		t.Errorf("expected 3 findings, got %d", run.FindingCount)
	}
}

func TestExecuteWithoutCollaborators(t *testing.T) {
	pipe := New(domain.DefaultConfig(), nil, nil, nil, nil)

	run, scored, err := pipe.Execute(context.Background(), fixtureTransactions())
	if err != nil {
		t.Fatalf("pure-library mode failed: %v", err)
	}
	if run.FindingCount != 3 || len(scored) != 3 {
		t.Errorf("expected 3 findings, got %d", run.FindingCount)
	}
}
