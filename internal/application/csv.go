// Package application wires the Detector, FeatureCalculator and Scorer
// into the single-entry-point batch scan the CLI's scan command uses.
package application

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/chartscan/breakoutscan/internal/domain/breakout"
)

// LoadBarsCSV reads one symbol's OHLCV history from a CSV file with a
// header row: date,open,high,low,close,volume. Rows are sorted by date
// ascending before being returned, since the detector requires a strictly
// increasing date sequence.
func LoadBarsCSV(path string) ([]breakout.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("application: open bars csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("application: read bars csv header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var bars []breakout.Bar
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("application: read bars csv row: %w", err)
		}
		bar, err := parseRow(record, cols)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

type csvColumns struct {
	date, open, high, low, close, volume int
}

func columnIndex(header []string) (csvColumns, error) {
	idx := map[string]int{}
	for i, h := range header {
		idx[h] = i
	}
	cols := csvColumns{}
	for name, dst := range map[string]*int{
		"date": &cols.date, "open": &cols.open, "high": &cols.high,
		"low": &cols.low, "close": &cols.close, "volume": &cols.volume,
	} {
		pos, ok := idx[name]
		if !ok {
			return csvColumns{}, fmt.Errorf("application: bars csv missing required column %q", name)
		}
		*dst = pos
	}
	return cols, nil
}

func parseRow(record []string, cols csvColumns) (breakout.Bar, error) {
	date, err := time.Parse("2006-01-02", record[cols.date])
	if err != nil {
		return breakout.Bar{}, fmt.Errorf("application: parse bar date %q: %w", record[cols.date], err)
	}
	fields := make([]float64, 5)
	sources := []string{record[cols.open], record[cols.high], record[cols.low], record[cols.close], record[cols.volume]}
	for i, s := range sources {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return breakout.Bar{}, fmt.Errorf("application: parse bar field %q: %w", s, err)
		}
		fields[i] = v
	}
	return breakout.Bar{
		Date:   date,
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}, nil
}
