package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ducminhle1904/strategy-evolver/pkg/types"
)

// CSVProvider implements DataProvider for CSV files
type CSVProvider struct {
	format CSVColumnMapping
	logger logrus.FieldLogger
}

// NewCSVProvider creates a new CSV data provider with default format
func NewCSVProvider(logger logrus.FieldLogger) *CSVProvider {
	return NewCSVProviderWithFormat(DefaultCSVFormat, logger)
}

// NewCSVProviderWithFormat creates a new CSV data provider with custom format
func NewCSVProviderWithFormat(format CSVColumnMapping, logger logrus.FieldLogger) *CSVProvider {
	if logger == nil {
		logger = logrus.New()
	}
	return &CSVProvider{
		format: format,
		logger: logger.WithField("component", "csv_provider"),
	}
}

// GetName returns the name of the data provider
func (p *CSVProvider) GetName() string {
	return "CSV Provider"
}

// LoadData loads historical data from a CSV file
func (p *CSVProvider) LoadData(source string) ([]types.OHLCV, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open market data %s: %w", source, err)
	}
	defer file.Close()

	return p.Read(file)
}

// Read parses candles from r. Malformed rows are skipped with a warning.
func (p *CSVProvider) Read(r io.Reader) ([]types.OHLCV, error) {
	format := p.format
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	lineNum := 0
	if format.HasHeader {
		if _, err := reader.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, fmt.Errorf("error reading CSV header: %w", err)
		}
		lineNum++
	}

	var data []types.OHLCV
	skipped := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV at line %d: %w", lineNum+1, err)
		}
		lineNum++

		candle, err := p.parseRecord(record)
		if err != nil {
			p.logger.WithField("line", lineNum).WithError(err).Warn("Skipping CSV row")
			skipped++
			continue
		}
		data = append(data, candle)
	}

	if skipped > 0 {
		p.logger.WithFields(logrus.Fields{
			"loaded":  len(data),
			"skipped": skipped,
		}).Info("Loaded market data with skipped rows")
	}
	return data, nil
}

func (p *CSVProvider) parseRecord(record []string) (types.OHLCV, error) {
	format := p.format
	if len(record) < format.MinColumns {
		return types.OHLCV{}, fmt.Errorf("insufficient columns (expected %d, got %d)", format.MinColumns, len(record))
	}

	timestamp, err := parseTimestamp(strings.TrimSpace(record[format.TimestampCol]), format.DateFormat)
	if err != nil {
		return types.OHLCV{}, err
	}

	var values [5]float64
	for i, col := range []int{format.OpenCol, format.HighCol, format.LowCol, format.CloseCol, format.VolumeCol} {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
		if err != nil {
			return types.OHLCV{}, fmt.Errorf("invalid number %q in column %d", record[col], col)
		}
		values[i] = v
	}

	candle := types.OHLCV{
		Timestamp: timestamp,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}
	if err := validateCandle(candle); err != nil {
		return types.OHLCV{}, err
	}
	return candle, nil
}

func parseTimestamp(raw, layout string) (time.Time, error) {
	if layout == "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid unix millisecond timestamp %q", raw)
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	ts, err := time.Parse(layout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", raw, err)
	}
	return ts, nil
}

func validateCandle(c types.OHLCV) error {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("prices must be positive")
	}
	if c.High < c.Low {
		return fmt.Errorf("high (%.4f) cannot be less than low (%.4f)", c.High, c.Low)
	}
	if c.High < c.Open || c.High < c.Close {
		return fmt.Errorf("high (%.4f) must be >= open (%.4f) and close (%.4f)", c.High, c.Open, c.Close)
	}
	if c.Low > c.Open || c.Low > c.Close {
		return fmt.Errorf("low (%.4f) must be <= open (%.4f) and close (%.4f)", c.Low, c.Open, c.Close)
	}
	if c.Volume < 0 {
		return fmt.Errorf("volume cannot be negative")
	}
	return nil
}

// ValidateData validates the integrity of loaded data
func (p *CSVProvider) ValidateData(data []types.OHLCV) error {
	if len(data) == 0 {
		return fmt.Errorf("no data provided")
	}

	for i, candle := range data {
		if err := validateCandle(candle); err != nil {
			return fmt.Errorf("invalid price data at index %d: %w", i, err)
		}
		if i > 0 && !candle.Timestamp.After(data[i-1].Timestamp) {
			return fmt.Errorf("invalid timestamp sequence at index %d: timestamps must be strictly increasing", i)
		}
	}
	return nil
}
