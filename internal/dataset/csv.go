package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"CryptoIngest/internal/model"
)

// Header is the column schema of both snapshot files.
var Header = []string{"date", "coin", "open", "high", "low", "close", "volume"}

// WriteCSV writes the header and one row per record, in order.
func WriteCSV(w io.Writer, records []model.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(Header))
	for i, r := range records {
		row[0] = r.Date.UTC().Format(model.DateLayout)
		row[1] = r.Coin
		row[2] = formatFloat(r.Open)
		row[3] = formatFloat(r.High)
		row[4] = formatFloat(r.Low)
		row[5] = formatFloat(r.Close)
		row[6] = formatFloat(r.Volume)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a snapshot written by WriteCSV.
func ReadCSV(r io.Reader) ([]model.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("missing header")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, col := range Header {
		if header[i] != col {
			return nil, fmt.Errorf("header column %d: want %q, got %q", i, col, header[i])
		}
	}

	var records []model.Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(row []string) (model.Record, error) {
	date, err := time.Parse(model.DateLayout, row[0])
	if err != nil {
		return model.Record{}, fmt.Errorf("parse date %q: %w", row[0], err)
	}
	var vals [5]float64
	for i := range vals {
		v, err := strconv.ParseFloat(row[i+2], 64)
		if err != nil {
			return model.Record{}, fmt.Errorf("parse %s %q: %w", Header[i+2], row[i+2], err)
		}
		vals[i] = v
	}
	return model.Record{
		Date:   date,
		Coin:   row[1],
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

// formatFloat uses the shortest decimal form that parses back to v.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
