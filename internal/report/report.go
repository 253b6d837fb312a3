package report

import (
	"fmt"
	"path"
	"strconv"
	"time"

	"fxstreaks/internal/streaks"
)

// NotAvailable is rendered when an instrument has no rank on the previous day.
const NotAvailable = "N/A"

// DefaultPrefix is the key prefix under which daily reports live.
const DefaultPrefix = "reports"

// PrevRank is either a previous-day rank or the N/A sentinel.
type PrevRank struct {
	Rank  int
	Valid bool
}

// RankOf wraps a known previous-day rank.
func RankOf(rank int) PrevRank {
	return PrevRank{Rank: rank, Valid: true}
}

// String renders the rank or N/A.
func (p PrevRank) String() string {
	if !p.Valid {
		return NotAvailable
	}
	return strconv.Itoa(p.Rank)
}

// Row is one persisted line of the daily report.
type Row struct {
	streaks.RankedMetric
	PrevDayRank PrevRank
}

// Prior maps instrument to its rank in the previous report. A nil Prior means
// no previous report exists.
type Prior map[string]int

// MergeWithHistory left-joins today's rankings against the prior ranks. Every
// row of today is kept in order; instruments absent from prior get N/A.
func MergeWithHistory(today []streaks.RankedMetric, prior Prior) []Row {
	rows := make([]Row, len(today))
	for i, metric := range today {
		rows[i].RankedMetric = metric
		if rank, ok := prior[metric.Instrument]; ok {
			rows[i].PrevDayRank = RankOf(rank)
		}
	}
	return rows
}

// Key returns the artifact key of the report for date.
func Key(prefix string, date time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return path.Join(prefix, fmt.Sprintf("%s.csv", date.Format(time.DateOnly)))
}

// Previous returns the calendar day before date.
func Previous(date time.Time) time.Time {
	return date.AddDate(0, 0, -1)
}
