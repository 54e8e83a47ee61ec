package tabulate

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// csvHeader is the fixed column set of the exported table.
var csvHeader = []string{"name", "quantity", "unit_price", "total_price"}

// WriteCSV serializes the canonical table as UTF-8 CSV. Prices are written
// with two fixed decimals; an unobserved unit price becomes an empty
// field. Quantity keeps its shortest exact representation so weights like
// 0.5 survive a round trip.
func WriteCSV(items []Item) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	for _, item := range items {
		unit := ""
		if item.UnitPrice != nil {
			unit = strconv.FormatFloat(*item.UnitPrice, 'f', 2, 64)
		}
		record := []string{
			item.Name,
			strconv.FormatFloat(item.Quantity, 'f', -1, 64),
			unit,
			strconv.FormatFloat(item.TotalPrice, 'f', 2, 64),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("writing record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadCSV parses a table previously produced by WriteCSV back into items.
func ReadCSV(data []byte) ([]Item, error) {
	r := csv.NewReader(bytes.NewReader(data))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("missing header row")
	}

	items := make([]Item, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(csvHeader) {
			return nil, fmt.Errorf("row %d: expected %d fields, got %d", i+1, len(csvHeader), len(rec))
		}
		qty, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing quantity: %w", i+1, err)
		}
		total, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing total_price: %w", i+1, err)
		}
		item := Item{Name: rec[0], Quantity: qty, TotalPrice: total}
		if rec[2] != "" {
			unit, err := strconv.ParseFloat(rec[2], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: parsing unit_price: %w", i+1, err)
			}
			item.UnitPrice = &unit
		}
		items = append(items, item)
	}
	return items, nil
}
