// Synthetic procurement dataset generator for testing Kestrel.
//
// Usage:
//   go run cmd/gendata/main.go -days 90 -out transactions.csv -seed 42
//
// This tool:
//   1. Generates a baseline corpus of daily procurement transactions
//   2. Injects known anomalies: duplicates, overcharges, late deliveries,
//      and one volume-spike day
//   3. Writes the result as a CSV accepted by POST /transactions and the
//      KESTREL_IMPORT_CSV loader
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"
)

type supplier struct {
	id       string
	name     string
	category string
	baseline float64
	slaDays  int
}

var suppliers = []supplier{
	{"SUP-001", "Thameside Logistics", "Freight", 1250.00, 3},
	{"SUP-002", "Northgate Office Supplies", "Office Supplies", 85.50, 2},
	{"SUP-003", "Caledonia IT Services", "IT Services", 2400.00, 5},
	{"SUP-004", "Mersey Catering Co", "Catering", 320.00, 1},
	{"SUP-005", "Pennine Facilities", "Facilities", 780.00, 4},
	{"SUP-006", "Avon Print & Media", "Marketing", 450.00, 3},
	{"SUP-007", "Solent Engineering", "Maintenance", 1650.00, 7},
	{"SUP-008", "Tyne Valley Couriers", "Freight", 95.00, 1},
}

var regions = []string{"London", "Manchester", "Birmingham", "Leeds", "Bristol", "Edinburgh"}

var approvers = []string{"J.Harrison", "S.Patel", "M.Okonkwo", "L.Chen", "R.Fitzgerald"}

type row struct {
	id          string
	date        time.Time
	supplier    supplier
	invoice     float64
	expected    time.Time
	actual      time.Time
	hasDelivery bool
	poNumber    string
	region      string
	approvedBy  string
}

func main() {
	days := flag.Int("days", 90, "days of history to generate")
	out := flag.String("out", "transactions.csv", "output CSV path")
	seed := flag.Int64("seed", 42, "random seed for reproducibility")
	meanPerDay := flag.Float64("mean", 40, "mean transactions per weekday")
	dupRate := flag.Float64("dup-rate", 0.025, "proportion of rows duplicated")
	overchargeRate := flag.Float64("overcharge-rate", 0.03, "proportion of rows overcharged")
	breachRate := flag.Float64("breach-rate", 0.04, "proportion of rows with late delivery")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	rows := generateBase(rng, *days, *meanPerDay)
	rows = injectDuplicates(rng, rows, *dupRate)
	injectOvercharges(rng, rows, *overchargeRate)
	injectLateDeliveries(rng, rows, *breachRate)
	rows = injectSpikeDay(rng, rows, *days)

	if err := writeCSV(*out, rows); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %d transactions across %d days to %s\n", len(rows), *days, *out)
}

// generateBase creates the anomaly-free corpus. Daily volume follows a
// normal distribution around the weekday mean, with weekends at 30%.
// Invoice amounts vary ±8% around each supplier's baseline rate.
func generateBase(rng *rand.Rand, days int, meanPerDay float64) []*row {
	start := time.Now().UTC().AddDate(0, 0, -days)
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	var rows []*row
	txnIndex := 1
	poCounter := 10000

	for d := 0; d < days; d++ {
		date := start.AddDate(0, 0, d)

		dayMean := meanPerDay
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			dayMean = math.Max(5, meanPerDay*0.3)
		}

		count := int(rng.NormFloat64()*5 + dayMean)
		if count < 1 {
			count = 1
		}

		for i := 0; i < count; i++ {
			sup := suppliers[rng.Intn(len(suppliers))]

			invoice := sup.baseline * (1 + rng.NormFloat64()*0.08)
			invoice = math.Max(10, math.Round(invoice*100)/100)

			expected := date.AddDate(0, 0, sup.slaDays)
			// Normal delivery lands within a day of the SLA date
			actual := expected.AddDate(0, 0, rng.Intn(3)-1)

			poCounter++
			rows = append(rows, &row{
				id:          fmt.Sprintf("TXN-%06d", txnIndex),
				date:        date,
				supplier:    sup,
				invoice:     invoice,
				expected:    expected,
				actual:      actual,
				hasDelivery: true,
				poNumber:    fmt.Sprintf("PO-%d", poCounter),
				region:      regions[rng.Intn(len(regions))],
				approvedBy:  approvers[rng.Intn(len(approvers))],
			})
			txnIndex++
		}
	}

	return rows
}

// injectDuplicates clones rows one day apart with the same supplier and
// amount, simulating double-billing or AP processing errors.
func injectDuplicates(rng *rand.Rand, rows []*row, rate float64) []*row {
	n := int(float64(len(rows)) * rate)
	if n < 1 {
		n = 1
	}

	for i := 0; i < n; i++ {
		src := rows[rng.Intn(len(rows))]

		offset := 1
		if rng.Intn(2) == 0 {
			offset = -1
		}

		dupe := *src
		dupe.id = fmt.Sprintf("TXN-DUP-%06d", i+1)
		dupe.poNumber = fmt.Sprintf("PO-DUP-%d", i+1)
		dupe.date = src.date.AddDate(0, 0, offset)
		rows = append(rows, &dupe)
	}

	return rows
}

// injectOvercharges inflates invoices to 20-45% above baseline, well
// past a 15% variance threshold.
func injectOvercharges(rng *rand.Rand, rows []*row, rate float64) {
	n := int(float64(len(rows)) * rate)
	if n < 1 {
		n = 1
	}

	for i := 0; i < n; i++ {
		r := rows[rng.Intn(len(rows))]
		multiplier := 1.20 + rng.Float64()*0.25
		r.invoice = math.Round(r.supplier.baseline*multiplier*100) / 100
	}
}

// injectLateDeliveries pushes actual delivery 3-15 days past the SLA date.
func injectLateDeliveries(rng *rand.Rand, rows []*row, rate float64) {
	n := int(float64(len(rows)) * rate)
	if n < 1 {
		n = 1
	}

	for i := 0; i < n; i++ {
		r := rows[rng.Intn(len(rows))]
		delay := 3 + rng.Intn(13)
		r.actual = r.expected.AddDate(0, 0, delay)
	}
}

// injectSpikeDay triples the volume on one day in the back half of the
// history, late enough for the rolling baseline to be warmed up.
func injectSpikeDay(rng *rand.Rand, rows []*row, days int) []*row {
	if len(rows) == 0 || days < 30 {
		return rows
	}

	// Count per-day volume to size the spike
	byDay := make(map[time.Time][]*row)
	for _, r := range rows {
		byDay[r.date] = append(byDay[r.date], r)
	}

	spikeDate := rows[0].date.AddDate(0, 0, days/2+rng.Intn(days/4))
	existing := len(byDay[spikeDate])
	if existing == 0 {
		return rows
	}

	for i := 0; i < existing*2; i++ {
		src := byDay[spikeDate][rng.Intn(existing)]
		extra := *src
		extra.id = fmt.Sprintf("TXN-SPIKE-%06d", i+1)
		extra.poNumber = fmt.Sprintf("PO-SPIKE-%d", i+1)
		// Vary the amount so the clones do not read as duplicates
		extra.invoice = math.Round(src.supplier.baseline*(1+rng.NormFloat64()*0.05)*100) / 100
		rows = append(rows, &extra)
	}

	return rows
}

func writeCSV(path string, rows []*row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"transaction_id", "date", "supplier_id", "supplier_name", "category",
		"baseline_rate", "invoice_amount", "expected_delivery_date",
		"actual_delivery_date", "po_number", "region", "approved_by",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range rows {
		actual := ""
		if r.hasDelivery {
			actual = r.actual.Format("2006-01-02")
		}
		record := []string{
			r.id,
			r.date.Format("2006-01-02"),
			r.supplier.id,
			r.supplier.name,
			r.supplier.category,
			strconv.FormatFloat(r.supplier.baseline, 'f', 2, 64),
			strconv.FormatFloat(r.invoice, 'f', 2, 64),
			r.expected.Format("2006-01-02"),
			actual,
			r.poNumber,
			r.region,
			r.approvedBy,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	return w.Error()
}
