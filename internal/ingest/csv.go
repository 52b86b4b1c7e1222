// Package ingest loads procurement transactions from CSV files.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const dateLayout = "2006-01-02"

// requiredColumns are the CSV header columns a transaction file must
// carry. po_number, region, and approved_by are optional.
var requiredColumns = []string{
	"transaction_id",
	"date",
	"supplier_id",
	"supplier_name",
	"category",
	"baseline_rate",
	"invoice_amount",
	"expected_delivery_date",
	"actual_delivery_date",
}

// LoadFile reads transactions from a CSV file on disk.
func LoadFile(path string) ([]domain.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	txs, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return txs, nil
}

// Load reads transactions from CSV data. The first row must be a
// header containing at least the required columns; unknown columns are
// ignored. Dates use the YYYY-MM-DD layout; an empty
// actual_delivery_date means the delivery is not yet recorded.
func Load(r io.Reader) ([]domain.Transaction, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file: %w", domain.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing required column %q: %w", name, domain.ErrInvalidInput)
		}
	}

	var txs []domain.Transaction
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		tx, err := parseRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		txs = append(txs, tx)
	}

	return txs, nil
}

func parseRecord(record []string, cols map[string]int) (domain.Transaction, error) {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return record[idx]
	}

	date, err := time.Parse(dateLayout, field("date"))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("invalid date %q: %w", field("date"), err)
	}

	baseline, err := strconv.ParseFloat(field("baseline_rate"), 64)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("invalid baseline_rate %q: %w", field("baseline_rate"), err)
	}

	amount, err := strconv.ParseFloat(field("invoice_amount"), 64)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("invalid invoice_amount %q: %w", field("invoice_amount"), err)
	}

	expected, err := time.Parse(dateLayout, field("expected_delivery_date"))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("invalid expected_delivery_date %q: %w", field("expected_delivery_date"), err)
	}

	var actual *time.Time
	if raw := field("actual_delivery_date"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("invalid actual_delivery_date %q: %w", raw, err)
		}
		actual = &t
	}

	return domain.Transaction{
		ID:               field("transaction_id"),
		Date:             date,
		SupplierID:       field("supplier_id"),
		SupplierName:     field("supplier_name"),
		Category:         field("category"),
		BaselineRate:     baseline,
		InvoiceAmount:    amount,
		ExpectedDelivery: expected,
		ActualDelivery:   actual,
		PONumber:         field("po_number"),
		Region:           field("region"),
		ApprovedBy:       field("approved_by"),
	}, nil
}
