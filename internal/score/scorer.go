// Package score maps detection findings to leakage estimates and 0-100
// composite severity scores. Scoring is a pure function of
// (finding, configuration): no cross-finding state, no I/O.
package score

import (
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Score maps each finding to a ScoredFinding. Input order is preserved.
//
// A finding whose rule has no base score in the configuration fails the
// whole run with a *domain.ConfigurationError: an unscored rule would
// silently corrupt severity ranking.
func Score(findings []domain.Finding, cfg domain.ScoringConfig) ([]domain.ScoredFinding, error) {
	scored := make([]domain.ScoredFinding, 0, len(findings))
	for i := range findings {
		sf, err := scoreOne(&findings[i], cfg)
		if err != nil {
			return nil, err
		}
		scored = append(scored, sf)
	}
	return scored, nil
}

func scoreOne(f *domain.Finding, cfg domain.ScoringConfig) (domain.ScoredFinding, error) {
	base, ok := cfg.RuleBaseScores[f.Rule]
	if !ok {
		return domain.ScoredFinding{}, &domain.ConfigurationError{
			Rule:   f.Rule,
			Field:  "rule_base_scores",
			Reason: "no base score configured for rule",
		}
	}

	// Volume-spike findings are flagged for review priority only;
	// the daily count is not a currency figure.
	leakage := f.RawMagnitude
	if f.Rule == domain.RuleVolumeSpike {
		leakage = 0
	}

	financial := FinancialScore(leakage, cfg.FinancialBands)
	composite := clamp(base+financial, 0, 100)
	severity := ClassifySeverity(composite, cfg.SeverityCutoffs)

	action := cfg.Actions[severity]
	if action == "" {
		action = domain.DefaultScoring().Actions[severity]
	}

	return domain.ScoredFinding{
		Finding:        *f,
		LeakageGBP:     leakage,
		BaseScore:      base,
		FinancialScore: financial,
		CompositeScore: composite,
		Severity:       severity,
		SeverityRank:   domain.SeverityRank(severity),
		ActionRequired: action,
	}, nil
}

// FinancialScore computes the 0-30 financial-impact component from the
// leakage amount. Within each band the score scales linearly with the
// position of the amount in the band; amounts beyond the last band clamp
// to its upper score.
func FinancialScore(amountGBP float64, bands []domain.FinancialBand) float64 {
	if amountGBP <= 0 || len(bands) == 0 {
		return 0
	}
	for _, b := range bands {
		if amountGBP < b.HighGBP {
			pos := (amountGBP - b.LowGBP) / (b.HighGBP - b.LowGBP)
			return clamp(b.ScoreLow+pos*(b.ScoreHigh-b.ScoreLow), b.ScoreLow, b.ScoreHigh)
		}
	}
	return bands[len(bands)-1].ScoreHigh
}

// ClassifySeverity maps a composite score to its severity band. Cutoffs
// are inclusive lower bounds: a score of exactly the Critical cutoff is
// Critical.
func ClassifySeverity(composite float64, cuts domain.SeverityCutoffs) domain.Severity {
	switch {
	case composite >= cuts.Critical:
		return domain.SeverityCritical
	case composite >= cuts.High:
		return domain.SeverityHigh
	case composite >= cuts.Medium:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// SortByPriority orders scored findings for triage: severity rank
// descending, then leakage descending, then transaction id for
// determinism.
func SortByPriority(scored []domain.ScoredFinding) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].SeverityRank != scored[j].SeverityRank {
			return scored[i].SeverityRank > scored[j].SeverityRank
		}
		if scored[i].LeakageGBP != scored[j].LeakageGBP {
			return scored[i].LeakageGBP > scored[j].LeakageGBP
		}
		return scored[i].TransactionID < scored[j].TransactionID
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
