package domain

import (
	"testing"
	"time"
)

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	b := time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)

	if got := DaysBetween(a, b); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
	if got := DaysBetween(b, a); got != -3 {
		t.Errorf("expected -3, got %d", got)
	}
	if got := DaysBetween(a, a); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}

	// Time-of-day is ignored: 23:59 to 00:01 the next day is one day.
	late := time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
	early := time.Date(2025, 3, 11, 0, 1, 0, 0, time.UTC)
	if got := DaysBetween(late, early); got != 1 {
		t.Errorf("expected 1 across midnight, got %d", got)
	}
}

func TestSortTransactions(t *testing.T) {
	txs := []Transaction{
		{ID: "TXN-B", Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{ID: "TXN-A", Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{ID: "TXN-C", Date: time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)},
	}

	SortTransactions(txs)

	want := []string{"TXN-C", "TXN-A", "TXN-B"}
	for i, id := range want {
		if txs[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, txs[i].ID, id)
		}
	}
}

func TestSeverityRank(t *testing.T) {
	ranks := map[Severity]int{
		SeverityCritical: 4,
		SeverityHigh:     3,
		SeverityMedium:   2,
		SeverityLow:      1,
	}
	for sev, want := range ranks {
		if got := SeverityRank(sev); got != want {
			t.Errorf("SeverityRank(%s) = %d, want %d", sev, got, want)
		}
	}
}
