// Package pipeline orchestrates a full detection run: detect, score,
// prioritise, summarise, persist, cache, and publish.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/alert"
	"github.com/opensource-finance/kestrel/internal/detect"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/score"
)

// summaryTTL is how long run summaries stay hot in the cache.
const summaryTTL = 24 * time.Hour

// Pipeline wires the detection engine to its collaborators. Repository,
// cache, bus, and alert router are all optional: a nil collaborator
// disables that stage, so the engine still works as a pure library.
type Pipeline struct {
	detection domain.DetectionConfig
	scoring   domain.ScoringConfig

	repo   domain.Repository
	cache  domain.Cache
	bus    domain.EventBus
	alerts *alert.Router
}

// New creates a pipeline from configuration and collaborators.
func New(cfg *domain.Config, repo domain.Repository, cache domain.Cache, bus domain.EventBus, alerts *alert.Router) *Pipeline {
	return &Pipeline{
		detection: cfg.Detection,
		scoring:   cfg.Scoring,
		repo:      repo,
		cache:     cache,
		bus:       bus,
		alerts:    alerts,
	}
}

// RunCompletedEvent is the payload published on the run-completed topic.
type RunCompletedEvent struct {
	RunID           string  `json:"runId"`
	FindingCount    int     `json:"findingCount"`
	TotalLeakageGBP float64 `json:"totalLeakageGbp"`
}

// Execute runs the engine over the given transactions and records the
// result. Returns the completed run and its findings in triage order.
func (p *Pipeline) Execute(ctx context.Context, transactions []domain.Transaction) (*domain.Run, []domain.ScoredFinding, error) {
	startedAt := time.Now().UTC()

	result, err := detect.Run(transactions, p.detection)
	if err != nil {
		return nil, nil, fmt.Errorf("detection failed: %w", err)
	}

	for _, skip := range result.Skipped {
		slog.Warn("skipped malformed transaction",
			"transaction_id", skip.TransactionID,
			"field", skip.Field,
			"reason", skip.Reason,
		)
	}

	scored, err := score.Score(result.Findings, p.scoring)
	if err != nil {
		return nil, nil, fmt.Errorf("scoring failed: %w", err)
	}
	score.SortByPriority(scored)

	summary := score.BuildSummary(scored, len(transactions)-len(result.Skipped))

	run := &domain.Run{
		ID:               uuid.New().String(),
		StartedAt:        startedAt,
		CompletedAt:      time.Now().UTC(),
		TransactionCount: len(transactions) - len(result.Skipped),
		SkippedCount:     len(result.Skipped),
		FindingCount:     len(scored),
		TotalLeakageGBP:  summary.TotalLeakageGBP,
		Summary:          summary,
	}

	if p.repo != nil {
		if err := p.repo.SaveRun(ctx, run); err != nil {
			return nil, nil, fmt.Errorf("failed to save run: %w", err)
		}
		if err := p.repo.SaveScoredFindings(ctx, run.ID, scored); err != nil {
			return nil, nil, fmt.Errorf("failed to save findings: %w", err)
		}
	}

	if p.cache != nil {
		if err := p.cache.SetSummary(ctx, domain.SummaryKey(run.ID), &summary, summaryTTL); err != nil {
			slog.Warn("failed to cache run summary", "run_id", run.ID, "error", err)
		}
		if err := p.cache.SetSummary(ctx, domain.SummaryKeyLatest, &summary, summaryTTL); err != nil {
			slog.Warn("failed to cache latest summary", "run_id", run.ID, "error", err)
		}
	}

	if p.bus != nil {
		p.publishCompleted(ctx, run)
	}

	alerted := 0
	if p.alerts != nil {
		alerted = p.alerts.Dispatch(ctx, run.ID, scored)
	}

	slog.Info("detection run completed",
		"run_id", run.ID,
		"transactions", run.TransactionCount,
		"skipped", run.SkippedCount,
		"findings", run.FindingCount,
		"total_leakage_gbp", run.TotalLeakageGBP,
		"alerts", alerted,
		"duration_ms", run.CompletedAt.Sub(run.StartedAt).Milliseconds(),
	)

	return run, scored, nil
}

// ExecuteFromRepository loads all stored transactions and runs the
// pipeline over them.
func (p *Pipeline) ExecuteFromRepository(ctx context.Context) (*domain.Run, []domain.ScoredFinding, error) {
	if p.repo == nil {
		return nil, nil, fmt.Errorf("no repository configured")
	}

	txs, err := p.repo.ListTransactions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	if len(txs) == 0 {
		return nil, nil, fmt.Errorf("no transactions to analyse: %w", domain.ErrNotFound)
	}

	return p.Execute(ctx, txs)
}

func (p *Pipeline) publishCompleted(ctx context.Context, run *domain.Run) {
	event := RunCompletedEvent{
		RunID:           run.ID,
		FindingCount:    run.FindingCount,
		TotalLeakageGBP: run.TotalLeakageGBP,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal run event", "run_id", run.ID, "error", err)
		return
	}

	if err := p.bus.Publish(ctx, domain.TopicRunCompleted, payload); err != nil {
		slog.Warn("failed to publish run event", "run_id", run.ID, "error", err)
	}
}
