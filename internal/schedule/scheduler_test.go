package schedule

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/pipeline"
	"github.com/opensource-finance/kestrel/internal/repository"
)

func newTestPipeline(t *testing.T) (*pipeline.Pipeline, domain.Repository) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "kestrel-sched-*.db")
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

	return pipeline.New(domain.DefaultConfig(), repo, nil, nil, nil), repo
}

func seedTransactions(t *testing.T, repo domain.Repository) {
	t.Helper()

	txs := []domain.Transaction{
		{
			ID: "TXN-001", Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			SupplierID: "SUP-001", SupplierName: "Thameside Logistics",
			BaselineRate: 1250, InvoiceAmount: 1250,
		},
		{
			ID: "TXN-002", Date: time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
			SupplierID: "SUP-001", SupplierName: "Thameside Logistics",
			BaselineRate: 1250, InvoiceAmount: 1250,
		},
	}
	if err := repo.SaveTransactions(context.Background(), txs); err != nil {
		t.Fatalf("SaveTransactions failed: %v", err)
	}
}

func waitForRun(t *testing.T, repo domain.Repository) *domain.Run {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		run, err := repo.LatestRun(context.Background())
		if err == nil {
			return run
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("timed out waiting for a scheduled run")
	return nil
}

func TestSchedulerRunOnStart(t *testing.T) {
	pipe, repo := newTestPipeline(t)
	seedTransactions(t, repo)

	s := New(domain.SchedulerConfig{Interval: time.Hour, RunOnStart: true}, pipe)
	s.Start(context.Background())
	defer s.Stop()

	run := waitForRun(t, repo)
	if run.FindingCount != 2 {
		t.Errorf("expected 2 findings from the duplicate pair, got %d", run.FindingCount)
	}
}

func TestSchedulerInterval(t *testing.T) {
	pipe, repo := newTestPipeline(t)
	seedTransactions(t, repo)

	s := New(domain.SchedulerConfig{Interval: 50 * time.Millisecond}, pipe)
	s.Start(context.Background())
	defer s.Stop()

	waitForRun(t, repo)

	// A second tick produces a second run.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		runs, err := repo.ListRuns(context.Background(), 10)
		if err == nil && len(runs) >= 2 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("timed out waiting for a second scheduled run")
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	pipe, _ := newTestPipeline(t)

	s := New(domain.SchedulerConfig{Interval: time.Hour}, pipe)
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}

func TestSchedulerStopBeforeStart(t *testing.T) {
	pipe, _ := newTestPipeline(t)
	s := New(domain.SchedulerConfig{Interval: time.Hour}, pipe)
	s.Stop()
}

func TestSchedulerContextCancellation(t *testing.T) {
	pipe, repo := newTestPipeline(t)
	seedTransactions(t, repo)

	ctx, cancel := context.WithCancel(context.Background())
	s := New(domain.SchedulerConfig{Interval: 50 * time.Millisecond}, pipe)
	s.Start(ctx)

	waitForRun(t, repo)
	cancel()

	// The loop exits on context cancellation; Stop then returns
	// immediately instead of hanging.
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after context cancellation")
	}
}
