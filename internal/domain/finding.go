package domain

import (
	"time"
)

// Rule identifies one of the detection rules. The rule set is closed:
// adding a rule means adding a constant here plus a branch in the
// detector and a base score in the scoring configuration.
type Rule string

const (
	RuleDuplicate     Rule = "duplicate"
	RulePriceVariance Rule = "price_variance"
	RuleSLABreach     Rule = "sla_breach"
	RuleVolumeSpike   Rule = "volume_spike"
)

// AllRules returns the closed rule set in canonical (output) order.
func AllRules() []Rule {
	return []Rule{RuleDuplicate, RulePriceVariance, RuleSLABreach, RuleVolumeSpike}
}

// Finding is a single (transaction, rule) detection result. Findings are
// created exclusively by the detector and are immutable afterwards.
type Finding struct {
	TransactionID string `json:"transactionId"`
	Rule          Rule   `json:"rule"`
	Detail        string `json:"detail"`

	// RawMagnitude is the rule-specific numeric basis for the leakage
	// estimate: invoice amount (duplicate), excess over the allowed
	// ceiling (price variance), penalty for days late (SLA breach), or
	// the daily transaction count (volume spike).
	RawMagnitude float64 `json:"rawMagnitude"`

	// Carried transaction context so downstream consumers never re-read
	// the raw transaction table.
	Date         time.Time `json:"date"`
	SupplierID   string    `json:"supplierId"`
	SupplierName string    `json:"supplierName"`
	Category     string    `json:"category"`
}

// Severity is the triage band assigned by the scorer.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// SeverityRank returns the ordinal of a severity band (1=Low .. 4=Critical).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}

// ScoredFinding is a Finding extended with a leakage estimate and
// severity classification. It is the terminal output of the engine.
type ScoredFinding struct {
	Finding

	LeakageGBP     float64  `json:"leakageGbp"`
	BaseScore      float64  `json:"baseScore"`      // 0-70, per rule
	FinancialScore float64  `json:"financialScore"` // 0-30, banded on leakage
	CompositeScore float64  `json:"compositeScore"` // base+financial, clamped to [0,100]
	Severity       Severity `json:"severity"`
	SeverityRank   int      `json:"severityRank"`
	ActionRequired string   `json:"actionRequired"`
}

// RuleSummary aggregates findings for one rule.
type RuleSummary struct {
	Count      int     `json:"count"`
	LeakageGBP float64 `json:"leakageGbp"`
}

// Summary holds the aggregates downstream collaborators (reporting,
// dashboards, alerting) consume alongside the scored findings.
type Summary struct {
	TotalTransactions int     `json:"totalTransactions"`
	TotalFindings     int     `json:"totalFindings"`
	FlaggedTxns       int     `json:"flaggedTransactions"`
	TotalLeakageGBP   float64 `json:"totalLeakageGbp"`

	BySeverity   map[Severity]int     `json:"bySeverity"`
	ByRule       map[Rule]RuleSummary `json:"byRule"`
	ByCategory   map[string]float64   `json:"byCategory"`
	TopSuppliers []SupplierLeakage    `json:"topSuppliers"`

	DateRangeStart time.Time `json:"dateRangeStart"`
	DateRangeEnd   time.Time `json:"dateRangeEnd"`
}

// SupplierLeakage is one row of the top-suppliers leaderboard.
type SupplierLeakage struct {
	SupplierName string  `json:"supplierName"`
	LeakageGBP   float64 `json:"leakageGbp"`
}

// Run records one complete pipeline execution.
type Run struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`

	TransactionCount int `json:"transactionCount"`
	SkippedCount     int `json:"skippedCount"`
	FindingCount     int `json:"findingCount"`

	TotalLeakageGBP float64 `json:"totalLeakageGbp"`
	Summary         Summary `json:"summary"`
}
