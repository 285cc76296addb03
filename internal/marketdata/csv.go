package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"equity-backtest-lab/internal/domain"
)

const csvDateLayout = "2006-01-02"

// ReadInstruments parses an instrument universe from CSV. The expected
// header is "code,name,market_cap"; market_cap may be empty.
func ReadInstruments(r io.Reader) ([]*domain.Instrument, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read instrument header: %w", err)
	}
	if err := checkHeader(header, "code", "name", "market_cap"); err != nil {
		return nil, err
	}

	var instruments []*domain.Instrument
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read instrument line %d: %w", line, err)
		}

		inst := &domain.Instrument{Code: strings.TrimSpace(record[0]), Name: strings.TrimSpace(record[1])}
		if inst.Code == "" {
			return nil, fmt.Errorf("instrument line %d: empty code", line)
		}
		if cap := strings.TrimSpace(record[2]); cap != "" {
			inst.MarketCap, err = strconv.ParseFloat(cap, 64)
			if err != nil {
				return nil, fmt.Errorf("instrument line %d: market_cap: %w", line, err)
			}
		}
		instruments = append(instruments, inst)
	}
	return instruments, nil
}

// ReadBars parses daily price bars from CSV. The expected header is
// "code,date,open,high,low,close,volume" with dates as YYYY-MM-DD.
func ReadBars(r io.Reader) ([]*domain.PriceBar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 7

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read bar header: %w", err)
	}
	if err := checkHeader(header, "code", "date", "open", "high", "low", "close", "volume"); err != nil {
		return nil, err
	}

	var bars []*domain.PriceBar
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read bar line %d: %w", line, err)
		}

		b := &domain.PriceBar{Code: strings.TrimSpace(record[0])}
		if b.Code == "" {
			return nil, fmt.Errorf("bar line %d: empty code", line)
		}

		b.Date, err = time.ParseInLocation(csvDateLayout, strings.TrimSpace(record[1]), time.UTC)
		if err != nil {
			return nil, fmt.Errorf("bar line %d: date: %w", line, err)
		}

		fields := []struct {
			name string
			dst  *float64
		}{
			{"open", &b.Open},
			{"high", &b.High},
			{"low", &b.Low},
			{"close", &b.Close},
			{"volume", &b.Volume},
		}
		for i, f := range fields {
			*f.dst, err = strconv.ParseFloat(strings.TrimSpace(record[i+2]), 64)
			if err != nil {
				return nil, fmt.Errorf("bar line %d: %s: %w", line, f.name, err)
			}
		}

		bars = append(bars, b)
	}
	return bars, nil
}

// LoadDir reads instruments.csv and bars.csv from dir.
func LoadDir(dir string) ([]*domain.Instrument, []*domain.PriceBar, error) {
	instFile, err := os.Open(filepath.Join(dir, "instruments.csv"))
	if err != nil {
		return nil, nil, fmt.Errorf("open instruments: %w", err)
	}
	defer instFile.Close()

	instruments, err := ReadInstruments(instFile)
	if err != nil {
		return nil, nil, err
	}

	barFile, err := os.Open(filepath.Join(dir, "bars.csv"))
	if err != nil {
		return nil, nil, fmt.Errorf("open bars: %w", err)
	}
	defer barFile.Close()

	bars, err := ReadBars(barFile)
	if err != nil {
		return nil, nil, err
	}

	return instruments, bars, nil
}

func checkHeader(got []string, want ...string) error {
	for i, name := range want {
		if strings.TrimSpace(strings.ToLower(got[i])) != name {
			return fmt.Errorf("unexpected csv header %q, want %q", strings.Join(got, ","), strings.Join(want, ","))
		}
	}
	return nil
}
