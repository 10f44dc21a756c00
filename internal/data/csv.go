package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aegisdesk/aegis/pkg/types"
	"github.com/shopspring/decimal"
)

// csv column layout: timestamp,open,high,low,close,volume
const csvColumns = 6

// ReadBarsCSV parses bars from a CSV stream with a header row. Timestamps
// are RFC 3339. The returned bars are validated against the input contract.
func ReadBarsCSV(r io.Reader) ([]types.PriceBar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = csvColumns

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("csv has no data rows")
	}

	bars := make([]types.PriceBar, 0, len(records)-1)
	for i, rec := range records[1:] {
		ts, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad timestamp %q: %w", i+1, rec[0], err)
		}

		fields := make([]decimal.Decimal, csvColumns-1)
		for j, raw := range rec[1:] {
			fields[j], err = decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad value %q: %w", i+1, raw, err)
			}
		}

		bars = append(bars, types.PriceBar{
			Timestamp: ts,
			Open:      fields[0],
			High:      fields[1],
			Low:       fields[2],
			Close:     fields[3],
			Volume:    fields[4],
		})
	}

	if err := ValidateBars(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

// LoadCSV reads a bar series from a CSV file into the store.
func (s *Store) LoadCSV(symbol, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	bars, err := ReadBarsCSV(f)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return s.Put(symbol, bars)
}
