// Package domain defines the core types and interfaces for Kestrel.
package domain

import (
	"sort"
	"time"
)

// Transaction is an immutable procurement transaction record.
// It is the unit of input for the detection engine.
type Transaction struct {
	// Core identifiers
	ID string `json:"id"`

	// Booking date of the transaction
	Date time.Time `json:"date"`

	// Supplier details
	SupplierID   string `json:"supplierId"`
	SupplierName string `json:"supplierName"`
	Category     string `json:"category"`

	// Financial details (GBP)
	BaselineRate  float64 `json:"baselineRate"`
	InvoiceAmount float64 `json:"invoiceAmount"`

	// Delivery SLA. ActualDelivery is nil when the delivery has not
	// been recorded yet; such rows are exempt from SLA evaluation.
	ExpectedDelivery time.Time  `json:"expectedDeliveryDate"`
	ActualDelivery   *time.Time `json:"actualDeliveryDate,omitempty"`

	// Procurement metadata
	PONumber   string `json:"poNumber,omitempty"`
	Region     string `json:"region,omitempty"`
	ApprovedBy string `json:"approvedBy,omitempty"`
}

// SortTransactions orders transactions by date, ties broken by ID.
// This is the canonical input ordering for a detection run.
func SortTransactions(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
}

// DateOnly truncates a timestamp to midnight UTC. Daily volume buckets
// and day-difference arithmetic operate on these values.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole number of calendar days from a to b.
// Negative when b precedes a.
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}
