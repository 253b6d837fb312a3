package streaks

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTopN is the rank cutoff applied to avg_cons_perc_change_rank.
const DefaultTopN = 10

// MinStreakLen is the smallest run of up-days counted as a streak.
const MinStreakLen = 2

// RankPlaces is the number of decimal places both averages are rounded to
// before they are ranked. The SQL ranking query rounds to the same scale.
const RankPlaces = 10

var hundred = decimal.NewFromInt(100)

// Observation is a single exchange rate sample for one currency on one date.
type Observation struct {
	Instrument string
	Date       time.Time
	Rate       decimal.Decimal
}

// StreakRow annotates an observation with its lagged rate and streak group.
type StreakRow struct {
	Observation
	PrevRate    *decimal.Decimal
	IsUp        bool
	StreakGroup int
}

// StreakSummary describes one qualifying run of consecutive up-days.
type StreakSummary struct {
	Instrument  string
	StreakGroup int
	StreakLen   int
	PercChange  decimal.Decimal
}

// InstrumentMetric averages an instrument's qualifying streaks.
type InstrumentMetric struct {
	Instrument        string
	AvgConsPosDays    float64
	AvgConsPercChange float64
}

// RankedMetric carries both independently computed ranks.
type RankedMetric struct {
	InstrumentMetric
	AvgConsPosDaysRank    int
	AvgConsPercChangeRank int
}

// SortObservations orders observations by instrument, then date.
func SortObservations(obs []Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		if obs[i].Instrument != obs[j].Instrument {
			return obs[i].Instrument < obs[j].Instrument
		}
		return obs[i].Date.Before(obs[j].Date)
	})
}

// Classify walks observations that are already sorted by instrument and date,
// computing the one-step lag, the up flag and the running streak group.
// The group counter restarts per instrument and increments on every row that
// is not up, so the first row of each series always opens group 1.
func Classify(obs []Observation) []StreakRow {
	rows := make([]StreakRow, 0, len(obs))
	var (
		current string
		prev    *decimal.Decimal
		group   int
	)
	for i, o := range obs {
		if i == 0 || o.Instrument != current {
			current = o.Instrument
			prev = nil
			group = 0
		}

		row := StreakRow{Observation: o, PrevRate: prev}
		row.IsUp = prev != nil && o.Rate.GreaterThan(*prev)
		if !row.IsUp {
			group++
		}
		row.StreakGroup = group
		rows = append(rows, row)

		rate := o.Rate
		prev = &rate
	}
	return rows
}

type groupKey struct {
	instrument string
	group      int
}

// Summarize groups up-rows by instrument and streak group and keeps the groups
// with at least MinStreakLen members. Not-up rows never join a streak.
func Summarize(rows []StreakRow) []StreakSummary {
	type acc struct {
		count    int
		min, max decimal.Decimal
	}

	order := make([]groupKey, 0)
	groups := make(map[groupKey]*acc)
	for _, r := range rows {
		if !r.IsUp {
			continue
		}
		key := groupKey{instrument: r.Instrument, group: r.StreakGroup}
		a, ok := groups[key]
		if !ok {
			a = &acc{min: r.Rate, max: r.Rate}
			groups[key] = a
			order = append(order, key)
		}
		a.count++
		a.min = decimal.Min(a.min, r.Rate)
		a.max = decimal.Max(a.max, r.Rate)
	}

	summaries := make([]StreakSummary, 0, len(order))
	for _, key := range order {
		a := groups[key]
		if a.count < MinStreakLen {
			continue
		}
		summaries = append(summaries, StreakSummary{
			Instrument:  key.instrument,
			StreakGroup: key.group,
			StreakLen:   a.count,
			PercChange:  a.max.Div(a.min).Sub(decimal.NewFromInt(1)),
		})
	}
	return summaries
}

// Aggregate averages streak length and percent change per instrument.
// Percent change is scaled to percent and both averages are rounded to
// RankPlaces. Instruments without a qualifying streak do not appear.
func Aggregate(summaries []StreakSummary) []InstrumentMetric {
	type acc struct {
		n       int64
		lenSum  int64
		percSum decimal.Decimal
	}

	order := make([]string, 0)
	byInstrument := make(map[string]*acc)
	for _, s := range summaries {
		a, ok := byInstrument[s.Instrument]
		if !ok {
			a = &acc{}
			byInstrument[s.Instrument] = a
			order = append(order, s.Instrument)
		}
		a.n++
		a.lenSum += int64(s.StreakLen)
		a.percSum = a.percSum.Add(s.PercChange)
	}

	metrics := make([]InstrumentMetric, 0, len(order))
	for _, instrument := range order {
		a := byInstrument[instrument]
		n := decimal.NewFromInt(a.n)
		posDays := decimal.NewFromInt(a.lenSum).Div(n).Round(RankPlaces)
		percChange := a.percSum.Div(n).Mul(hundred).Round(RankPlaces)
		metrics = append(metrics, InstrumentMetric{
			Instrument:        instrument,
			AvgConsPosDays:    posDays.InexactFloat64(),
			AvgConsPercChange: percChange.InexactFloat64(),
		})
	}
	return metrics
}

// Rank assigns both descending ranks. Equal values share a rank and the next
// distinct value skips ahead by the size of the tie.
func Rank(metrics []InstrumentMetric) []RankedMetric {
	ranked := make([]RankedMetric, len(metrics))
	for i, m := range metrics {
		ranked[i].InstrumentMetric = m
	}

	posDays := rankDescending(len(ranked), func(i int) float64 { return ranked[i].AvgConsPosDays })
	percChange := rankDescending(len(ranked), func(i int) float64 { return ranked[i].AvgConsPercChange })
	for i := range ranked {
		ranked[i].AvgConsPosDaysRank = posDays[i]
		ranked[i].AvgConsPercChangeRank = percChange[i]
	}
	return ranked
}

func rankDescending(n int, value func(int) float64) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return value(idx[a]) > value(idx[b]) })

	ranks := make([]int, n)
	for pos, i := range idx {
		if pos > 0 && value(i) == value(idx[pos-1]) {
			ranks[i] = ranks[idx[pos-1]]
			continue
		}
		ranks[i] = pos + 1
	}
	return ranks
}

// ComputeRankings runs the full pipeline over an arbitrary ordered series and
// returns every instrument whose avg_cons_perc_change_rank is within topN.
// The cutoff is rank based: a tie at the boundary yields more than topN rows.
func ComputeRankings(obs []Observation, topN int) []RankedMetric {
	if topN <= 0 {
		topN = DefaultTopN
	}

	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	SortObservations(sorted)

	ranked := Rank(Aggregate(Summarize(Classify(sorted))))

	out := make([]RankedMetric, 0, len(ranked))
	for _, r := range ranked {
		if r.AvgConsPercChangeRank <= topN {
			out = append(out, r)
		}
	}
	SortRanked(out)
	return out
}

// SortRanked orders report rows by percent change rank, then instrument.
func SortRanked(rows []RankedMetric) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].AvgConsPercChangeRank != rows[j].AvgConsPercChangeRank {
			return rows[i].AvgConsPercChangeRank < rows[j].AvgConsPercChangeRank
		}
		return rows[i].Instrument < rows[j].Instrument
	})
}
