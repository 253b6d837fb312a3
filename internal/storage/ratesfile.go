package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fxstreaks/internal/streaks"
)

// ErrInvalidRates flags a rates file that cannot be imported.
var ErrInvalidRates = errors.New("storage: invalid rates file")

// ReadObservationsCSV parses a rates file with the columns currency_symbol,
// rate_date (YYYY-MM-DD) and exchange_rate. Column order is free; extra
// columns are ignored.
func ReadObservationsCSV(r io.Reader) ([]streaks.Observation, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrInvalidRates, err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range []string{"currency_symbol", "rate_date", "exchange_rate"} {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrInvalidRates, col)
		}
	}

	var obs []streaks.Observation
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidRates, line, err)
		}

		symbol := strings.TrimSpace(record[index["currency_symbol"]])
		if symbol == "" {
			return nil, fmt.Errorf("%w: line %d: empty currency_symbol", ErrInvalidRates, line)
		}
		date, err := time.Parse(time.DateOnly, strings.TrimSpace(record[index["rate_date"]]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidRates, line, err)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(record[index["exchange_rate"]]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidRates, line, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("%w: line %d: exchange_rate must be positive", ErrInvalidRates, line)
		}

		obs = append(obs, streaks.Observation{Instrument: symbol, Date: date, Rate: rate})
	}
	return obs, nil
}
