package score

import (
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// topSupplierCount limits the supplier leaderboard in the summary.
const topSupplierCount = 5

// BuildSummary aggregates scored findings into the headline figures
// downstream consumers (reporting, dashboards, alert payloads) need, so
// none of them has to re-derive anything from the raw transaction table.
func BuildSummary(scored []domain.ScoredFinding, totalTransactions int) domain.Summary {
	s := domain.Summary{
		TotalTransactions: totalTransactions,
		TotalFindings:     len(scored),
		BySeverity:        make(map[domain.Severity]int),
		ByRule:            make(map[domain.Rule]domain.RuleSummary),
		ByCategory:        make(map[string]float64),
	}

	flaggedTxns := make(map[string]bool)
	bySupplier := make(map[string]float64)

	for i := range scored {
		sf := &scored[i]
		flaggedTxns[sf.TransactionID] = true

		s.TotalLeakageGBP += sf.LeakageGBP
		s.BySeverity[sf.Severity]++

		rs := s.ByRule[sf.Rule]
		rs.Count++
		rs.LeakageGBP += sf.LeakageGBP
		s.ByRule[sf.Rule] = rs

		if sf.Category != "" {
			s.ByCategory[sf.Category] += sf.LeakageGBP
		}
		if sf.SupplierName != "" {
			bySupplier[sf.SupplierName] += sf.LeakageGBP
		}

		if s.DateRangeStart.IsZero() || sf.Date.Before(s.DateRangeStart) {
			s.DateRangeStart = sf.Date
		}
		if sf.Date.After(s.DateRangeEnd) {
			s.DateRangeEnd = sf.Date
		}
	}

	s.FlaggedTxns = len(flaggedTxns)
	s.TopSuppliers = topSuppliers(bySupplier, topSupplierCount)
	return s
}

func topSuppliers(leakage map[string]float64, n int) []domain.SupplierLeakage {
	ranked := make([]domain.SupplierLeakage, 0, len(leakage))
	for name, gbp := range leakage {
		ranked = append(ranked, domain.SupplierLeakage{SupplierName: name, LeakageGBP: gbp})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].LeakageGBP != ranked[j].LeakageGBP {
			return ranked[i].LeakageGBP > ranked[j].LeakageGBP
		}
		return ranked[i].SupplierName < ranked[j].SupplierName
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
