package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"fxstreaks/internal/streaks"
)

const (
	colSymbol         = "currency_symbol"
	colPosDays        = "avg_cons_pos_days"
	colPercChange     = "avg_cons_perc_change"
	colPosDaysRank    = "avg_cons_pos_days_rank"
	colPercChangeRank = "avg_cons_perc_change_rank"
	colPrevDayRank    = "prev_day_rank"
)

// Header is the column order of every report artifact.
var Header = []string{colSymbol, colPosDays, colPercChange, colPosDaysRank, colPercChangeRank, colPrevDayRank}

// ErrMalformed reports an artifact that cannot be parsed.
var ErrMalformed = errors.New("report: malformed artifact")

// Encode writes rows as CSV with the report header.
func Encode(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{
			row.Instrument,
			formatFloat(row.AvgConsPosDays),
			formatFloat(row.AvgConsPercChange),
			strconv.Itoa(row.AvgConsPosDaysRank),
			strconv.Itoa(row.AvgConsPercChangeRank),
			row.PrevDayRank.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// formatFloat renders v in plain decimal notation.
func formatFloat(v float64) string {
	return decimal.NewFromFloat(v).String()
}

// DecodePrior reads a previous report and keeps the percent change rank per
// instrument, which becomes today's prev_day_rank.
func DecodePrior(r io.Reader) (Prior, error) {
	records, index, err := readRecords(r, colSymbol, colPercChangeRank)
	if err != nil {
		return nil, err
	}

	prior := make(Prior, len(records))
	for line, record := range records {
		symbol := record[index[colSymbol]]
		if _, dup := prior[symbol]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate %s %q", ErrMalformed, line+2, colSymbol, symbol)
		}
		rank, err := parseRank(record[index[colPercChangeRank]])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line+2, err)
		}
		prior[symbol] = rank
	}
	return prior, nil
}

// Decode reads a full report artifact.
func Decode(r io.Reader) ([]Row, error) {
	records, index, err := readRecords(r, Header...)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(records))
	for line, record := range records {
		row, err := decodeRow(record, index)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeRow(record []string, index map[string]int) (Row, error) {
	posDays, err := decimal.NewFromString(record[index[colPosDays]])
	if err != nil {
		return Row{}, fmt.Errorf("%s: %w", colPosDays, err)
	}
	percChange, err := decimal.NewFromString(record[index[colPercChange]])
	if err != nil {
		return Row{}, fmt.Errorf("%s: %w", colPercChange, err)
	}
	posDaysRank, err := parseRank(record[index[colPosDaysRank]])
	if err != nil {
		return Row{}, fmt.Errorf("%s: %w", colPosDaysRank, err)
	}
	percChangeRank, err := parseRank(record[index[colPercChangeRank]])
	if err != nil {
		return Row{}, fmt.Errorf("%s: %w", colPercChangeRank, err)
	}

	row := Row{RankedMetric: streaks.RankedMetric{
		InstrumentMetric: streaks.InstrumentMetric{
			Instrument:        record[index[colSymbol]],
			AvgConsPosDays:    posDays.InexactFloat64(),
			AvgConsPercChange: percChange.InexactFloat64(),
		},
		AvgConsPosDaysRank:    posDaysRank,
		AvgConsPercChangeRank: percChangeRank,
	}}

	prev := strings.TrimSpace(record[index[colPrevDayRank]])
	if prev != "" && prev != NotAvailable {
		rank, err := parseRank(prev)
		if err != nil {
			return Row{}, fmt.Errorf("%s: %w", colPrevDayRank, err)
		}
		row.PrevDayRank = RankOf(rank)
	}
	return row, nil
}

// parseRank accepts integers written either as "3" or "3.0".
func parseRank(v string) (int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("rank %q is not an integer", v)
	}
	return int(d.IntPart()), nil
}

func readRecords(r io.Reader, required ...string) ([][]string, map[string]int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: missing header", ErrMalformed)
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, nil, fmt.Errorf("%w: missing column %s", ErrMalformed, name)
		}
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for line, record := range records {
		if len(record) != len(header) {
			return nil, nil, fmt.Errorf("%w: line %d has %d fields, want %d", ErrMalformed, line+2, len(record), len(header))
		}
	}
	return records, index, nil
}
