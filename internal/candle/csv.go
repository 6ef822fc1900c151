package candle

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
)

// csvColumns is the expected header of a candle CSV export:
// open_time_ms,open,high,low,close,volume
const csvColumns = 6

// LoadCSV reads base-resolution candles from a CSV file and validates them
// into a Series. Prices are parsed through decimal so exporter formatting
// quirks (trailing zeros, exponent notation) round-trip exactly.
func LoadCSV(path, exchange, symbol string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candle csv: %w", err)
	}
	defer f.Close()

	candles, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read candle csv %s: %w", path, err)
	}
	return NewSeries(exchange, symbol, candles)
}

// LoadAll loads one CSV per (exchange, symbol) ref from dir. Files are
// named <exchange>-<symbol>.csv. The returned map is keyed by series key.
func LoadAll(dir string, refs [][2]string) (map[string]*Series, error) {
	series := make(map[string]*Series, len(refs))
	for _, ref := range refs {
		exchange, symbol := ref[0], ref[1]
		path := filepath.Join(dir, exchange+"-"+symbol+".csv")
		s, err := LoadCSV(path, exchange, symbol)
		if err != nil {
			var ie *IntegrityError
			if errors.As(err, &ie) {
				observability.RecordIntegrityFailure(ie.Err.Error())
			}
			return nil, err
		}
		observability.RecordCandlesLoaded(s.Len())
		observability.RecordSeriesValidated()
		series[s.Key()] = s
	}
	return series, nil
}

// ReadCSV parses candle rows from r. The first row is skipped when it
// looks like a header.
func ReadCSV(r io.Reader) ([]domain.Candle, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = csvColumns

	var candles []domain.Candle
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		line++

		if line == 1 {
			if _, err := strconv.ParseInt(record[0], 10, 64); err != nil {
				continue // header row
			}
		}

		c, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func parseRow(record []string) (domain.Candle, error) {
	openTime, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parse open_time %q: %w", record[0], err)
	}

	fields := [5]float64{}
	names := [5]string{"open", "high", "low", "close", "volume"}
	for i, raw := range record[1:] {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("parse %s %q: %w", names[i], raw, err)
		}
		fields[i], _ = d.Float64()
	}

	return domain.Candle{
		OpenTime: openTime,
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
		Volume:   fields[4],
	}, nil
}
