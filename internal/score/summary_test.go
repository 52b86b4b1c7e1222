package score

import (
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func scoredFixture() []domain.ScoredFinding {
	mk := func(id string, rule domain.Rule, magnitude float64, date time.Time, supplier, category string) domain.Finding {
		return domain.Finding{
			TransactionID: id,
			Rule:          rule,
			RawMagnitude:  magnitude,
			Date:          date,
			SupplierID:    "SUP-" + supplier,
			SupplierName:  supplier,
			Category:      category,
		}
	}

	findings := []domain.Finding{
		mk("TXN-001", domain.RuleDuplicate, 5000, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "Alpha", "Freight"),
		mk("TXN-002", domain.RuleDuplicate, 5000, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), "Alpha", "Freight"),
		mk("TXN-003", domain.RulePriceVariance, 300, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), "Beta", "Catering"),
		// Same transaction flagged by a second rule.
		mk("TXN-003", domain.RuleSLABreach, 450, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), "Beta", "Catering"),
		mk("TXN-004", domain.RuleVolumeSpike, 60, time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), "Gamma", "IT Services"),
	}

	scored, err := Score(findings, domain.DefaultScoring())
	if err != nil {
		panic(err)
	}
	return scored
}

func TestBuildSummaryAggregates(t *testing.T) {
	scored := scoredFixture()
	s := BuildSummary(scored, 500)

	if s.TotalTransactions != 500 {
		t.Errorf("expected 500 total transactions, got %d", s.TotalTransactions)
	}
	if s.TotalFindings != 5 {
		t.Errorf("expected 5 findings, got %d", s.TotalFindings)
	}
	// TXN-003 appears twice but counts once.
	if s.FlaggedTxns != 4 {
		t.Errorf("expected 4 flagged transactions, got %d", s.FlaggedTxns)
	}

	// 5000 + 5000 + 300 + 450, volume spike contributes nothing.
	if s.TotalLeakageGBP != 10750 {
		t.Errorf("expected total leakage 10750, got %.2f", s.TotalLeakageGBP)
	}

	if rs := s.ByRule[domain.RuleDuplicate]; rs.Count != 2 || rs.LeakageGBP != 10000 {
		t.Errorf("duplicate rule summary wrong: %+v", rs)
	}
	if rs := s.ByRule[domain.RuleVolumeSpike]; rs.Count != 1 || rs.LeakageGBP != 0 {
		t.Errorf("volume spike rule summary wrong: %+v", rs)
	}

	if s.ByCategory["Freight"] != 10000 {
		t.Errorf("expected Freight leakage 10000, got %.2f", s.ByCategory["Freight"])
	}
	if s.ByCategory["Catering"] != 750 {
		t.Errorf("expected Catering leakage 750, got %.2f", s.ByCategory["Catering"])
	}

	if !s.DateRangeStart.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("wrong range start: %s", s.DateRangeStart)
	}
	if !s.DateRangeEnd.Equal(time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("wrong range end: %s", s.DateRangeEnd)
	}
}

func TestBuildSummaryTopSuppliers(t *testing.T) {
	scored := scoredFixture()
	s := BuildSummary(scored, 500)

	if len(s.TopSuppliers) != 3 {
		t.Fatalf("expected 3 suppliers, got %d", len(s.TopSuppliers))
	}
	if s.TopSuppliers[0].SupplierName != "Alpha" || s.TopSuppliers[0].LeakageGBP != 10000 {
		t.Errorf("expected Alpha 10000 first, got %+v", s.TopSuppliers[0])
	}
	if s.TopSuppliers[1].SupplierName != "Beta" {
		t.Errorf("expected Beta second, got %s", s.TopSuppliers[1].SupplierName)
	}
	// Gamma's only finding is a volume spike with zero leakage but it
	// still appears on the board.
	if s.TopSuppliers[2].SupplierName != "Gamma" || s.TopSuppliers[2].LeakageGBP != 0 {
		t.Errorf("expected Gamma 0 third, got %+v", s.TopSuppliers[2])
	}
}

func TestBuildSummaryBySeverity(t *testing.T) {
	scored := scoredFixture()
	s := BuildSummary(scored, 500)

	total := 0
	for _, n := range s.BySeverity {
		total += n
	}
	if total != len(scored) {
		t.Errorf("severity counts sum to %d, want %d", total, len(scored))
	}
}

func TestBuildSummaryEmpty(t *testing.T) {
	s := BuildSummary(nil, 0)
	if s.TotalFindings != 0 || s.FlaggedTxns != 0 || s.TotalLeakageGBP != 0 {
		t.Errorf("empty summary not zeroed: %+v", s)
	}
	if len(s.TopSuppliers) != 0 {
		t.Errorf("expected empty leaderboard, got %d entries", len(s.TopSuppliers))
	}
}
