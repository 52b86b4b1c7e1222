// Package detect implements the anomaly detection rules for procurement
// transactions: duplicate invoices, price variance, SLA breaches, and
// daily volume spikes. The rules are independent; a transaction is
// eligible for all four regardless of which others fired on it.
package detect

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Result is the output of one detection pass.
type Result struct {
	// Findings is the complete set of (transaction, rule) flags,
	// ordered by rule, then transaction date, then transaction id.
	Findings []domain.Finding

	// Skipped lists the records rejected by validation in lenient
	// mode, for the caller to log.
	Skipped []*domain.ValidationError
}

// Run evaluates all four rules over the transaction set.
//
// The input slice is not mutated; evaluation operates on a validated,
// date-ordered copy. In strict mode the first malformed record aborts
// the run; in lenient mode (the default) malformed records are skipped
// and reported in Result.Skipped.
func Run(transactions []domain.Transaction, cfg domain.DetectionConfig) (*Result, error) {
	valid := make([]domain.Transaction, 0, len(transactions))
	var skipped []*domain.ValidationError

	for i := range transactions {
		if verr := validate(&transactions[i]); verr != nil {
			if cfg.StrictValidation {
				return nil, verr
			}
			skipped = append(skipped, verr)
			continue
		}
		valid = append(valid, transactions[i])
	}

	domain.SortTransactions(valid)

	var findings []domain.Finding
	findings = append(findings, detectDuplicates(valid, cfg)...)
	findings = append(findings, detectPriceVariance(valid, cfg)...)
	findings = append(findings, detectSLABreaches(valid, cfg)...)
	findings = append(findings, detectVolumeSpikes(valid, cfg)...)

	sortFindings(findings)

	return &Result{Findings: findings, Skipped: skipped}, nil
}

// validate checks the required fields of a transaction record.
func validate(tx *domain.Transaction) *domain.ValidationError {
	if tx.ID == "" {
		return &domain.ValidationError{TransactionID: tx.ID, Field: "id", Reason: "missing"}
	}
	if tx.SupplierID == "" {
		return &domain.ValidationError{TransactionID: tx.ID, Field: "supplier_id", Reason: "missing"}
	}
	if tx.Date.IsZero() {
		return &domain.ValidationError{TransactionID: tx.ID, Field: "date", Reason: "missing"}
	}
	if tx.InvoiceAmount < 0 {
		return &domain.ValidationError{TransactionID: tx.ID, Field: "invoice_amount", Reason: "negative"}
	}
	if tx.BaselineRate < 0 {
		return &domain.ValidationError{TransactionID: tx.ID, Field: "baseline_rate", Reason: "negative"}
	}
	return nil
}

// sortFindings orders findings by rule name, then transaction date,
// then transaction id, so output is byte-identical across runs
// regardless of internal map iteration order.
func sortFindings(findings []domain.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Rule != findings[j].Rule {
			return findings[i].Rule < findings[j].Rule
		}
		if !findings[i].Date.Equal(findings[j].Date) {
			return findings[i].Date.Before(findings[j].Date)
		}
		return findings[i].TransactionID < findings[j].TransactionID
	})
}

func newFinding(tx *domain.Transaction, rule domain.Rule, detail string, magnitude float64) domain.Finding {
	return domain.Finding{
		TransactionID: tx.ID,
		Rule:          rule,
		Detail:        detail,
		RawMagnitude:  magnitude,
		Date:          tx.Date,
		SupplierID:    tx.SupplierID,
		SupplierName:  tx.SupplierName,
		Category:      tx.Category,
	}
}

// detectDuplicates flags transactions that share a supplier and an
// invoice amount (within the configured tolerance, inclusive) inside the
// duplicate window. Every transaction participating in at least one
// duplicate pair is flagged exactly once, however many partners it has.
func detectDuplicates(txs []domain.Transaction, cfg domain.DetectionConfig) []domain.Finding {
	bySupplier := make(map[string][]int)
	for i := range txs {
		bySupplier[txs[i].SupplierID] = append(bySupplier[txs[i].SupplierID], i)
	}

	flagged := make(map[int]bool)
	for _, group := range bySupplier {
		// Group indices are in date order because txs is date-ordered.
		for a := 0; a < len(group); a++ {
			for b := a + 1; b < len(group); b++ {
				ta, tb := &txs[group[a]], &txs[group[b]]
				delta := domain.DaysBetween(ta.Date, tb.Date)
				if delta > cfg.DuplicateWindowDays {
					break
				}
				if math.Abs(ta.InvoiceAmount-tb.InvoiceAmount) <= cfg.DuplicateToleranceGBP {
					flagged[group[a]] = true
					flagged[group[b]] = true
				}
			}
		}
	}

	findings := make([]domain.Finding, 0, len(flagged))
	for i := range txs {
		if !flagged[i] {
			continue
		}
		tx := &txs[i]
		detail := fmt.Sprintf(
			"Duplicate of supplier %s invoice £%.2f within %dd window",
			tx.SupplierID, tx.InvoiceAmount, cfg.DuplicateWindowDays,
		)
		findings = append(findings, newFinding(tx, domain.RuleDuplicate, detail, tx.InvoiceAmount))
	}
	return findings
}

// detectPriceVariance flags invoices charged above the allowed ceiling
// (baseline x threshold). Zero-baseline rows are exempt: the ratio is
// undefined, not anomalous.
func detectPriceVariance(txs []domain.Transaction, cfg domain.DetectionConfig) []domain.Finding {
	var findings []domain.Finding
	for i := range txs {
		tx := &txs[i]
		if tx.BaselineRate == 0 {
			continue
		}
		ceiling := tx.BaselineRate * cfg.PriceVarianceThreshold
		if tx.InvoiceAmount <= ceiling {
			continue
		}
		pctOver := (tx.InvoiceAmount/tx.BaselineRate - 1) * 100
		detail := fmt.Sprintf(
			"Invoice £%.2f is %.1f%% above baseline £%.2f (threshold: %.0f%%)",
			tx.InvoiceAmount, pctOver, tx.BaselineRate, (cfg.PriceVarianceThreshold-1)*100,
		)
		findings = append(findings, newFinding(tx, domain.RulePriceVariance, detail, tx.InvoiceAmount-ceiling))
	}
	return findings
}

// detectSLABreaches flags deliveries recorded later than the expected
// date plus the grace period. Rows with no recorded delivery are not yet
// due for evaluation and never fire.
func detectSLABreaches(txs []domain.Transaction, cfg domain.DetectionConfig) []domain.Finding {
	var findings []domain.Finding
	for i := range txs {
		tx := &txs[i]
		if tx.ActualDelivery == nil || tx.ExpectedDelivery.IsZero() {
			continue
		}
		daysLate := domain.DaysBetween(tx.ExpectedDelivery, *tx.ActualDelivery) - cfg.SLAGraceDays
		if daysLate <= 0 {
			continue
		}
		detail := fmt.Sprintf(
			"Delivery %d days late: expected %s, actual %s",
			daysLate,
			tx.ExpectedDelivery.Format("2006-01-02"),
			tx.ActualDelivery.Format("2006-01-02"),
		)
		magnitude := float64(daysLate) * cfg.SLAPenaltyPerDayGBP
		findings = append(findings, newFinding(tx, domain.RuleSLABreach, detail, magnitude))
	}
	return findings
}

// detectVolumeSpikes flags every transaction on days whose count exceeds
// the rolling baseline (mean + sigma x sample std over the preceding
// window of calendar days, the day itself excluded). Days without a full
// window of prior days are skipped: there is no baseline to compare
// against at the start of the series.
func detectVolumeSpikes(txs []domain.Transaction, cfg domain.DetectionConfig) []domain.Finding {
	if len(txs) == 0 || cfg.VolumeRollingWindow <= 0 {
		return nil
	}

	counts := make(map[time.Time]int)
	for i := range txs {
		counts[domain.DateOnly(txs[i].Date)]++
	}

	first := domain.DateOnly(txs[0].Date)
	last := domain.DateOnly(txs[len(txs)-1].Date)

	type spikeStats struct {
		count int
		mean  float64
		std   float64
	}
	spikes := make(map[time.Time]spikeStats)

	// Single pass over the calendar span; days with no transactions
	// contribute a zero count to the window.
	window := newRollingStats(cfg.VolumeRollingWindow)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		count := counts[day]
		if window.full() {
			mean := window.mean()
			std := window.stddev()
			if float64(count) > mean+cfg.VolumeSpikeSigma*std {
				spikes[day] = spikeStats{count: count, mean: mean, std: std}
			}
		}
		window.push(float64(count))
	}

	var findings []domain.Finding
	for i := range txs {
		tx := &txs[i]
		st, ok := spikes[domain.DateOnly(tx.Date)]
		if !ok {
			continue
		}
		detail := fmt.Sprintf(
			"Date %s: %d transactions (baseline mean=%.1f, std=%.1f, threshold=%.1f)",
			domain.DateOnly(tx.Date).Format("2006-01-02"),
			st.count, st.mean, st.std, st.mean+cfg.VolumeSpikeSigma*st.std,
		)
		findings = append(findings, newFinding(tx, domain.RuleVolumeSpike, detail, float64(st.count)))
	}
	return findings
}
