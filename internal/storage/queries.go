package storage

// rankingsPostgresSQL runs the whole streak ranking over NUMERIC rates. Both
// averages are rounded to streaks.RankPlaces before ranking and only the
// projected values are cast to float.
const rankingsPostgresSQL = `WITH ranked_rates AS (
    SELECT currency_symbol, rate_date, exchange_rate,
           LAG(exchange_rate) OVER (PARTITION BY currency_symbol ORDER BY rate_date) AS prev_rate
    FROM exchange_rates
    WHERE rate_date <= $1
),
diffs AS (
    SELECT currency_symbol, rate_date, exchange_rate,
           CASE WHEN exchange_rate > prev_rate THEN 1 ELSE 0 END AS is_up
    FROM ranked_rates
),
streaks AS (
    SELECT currency_symbol, rate_date, exchange_rate, is_up,
           SUM(CASE WHEN is_up = 0 THEN 1 ELSE 0 END)
               OVER (PARTITION BY currency_symbol ORDER BY rate_date) AS streak_group
    FROM diffs
),
grouped AS (
    SELECT currency_symbol, streak_group,
           COUNT(*) AS streak_len,
           MAX(exchange_rate) / MIN(exchange_rate) - 1 AS perc_change
    FROM streaks
    WHERE is_up = 1
    GROUP BY currency_symbol, streak_group
    HAVING COUNT(*) >= 2
),
agg_metrics AS (
    SELECT currency_symbol,
           ROUND(AVG(streak_len), 10) AS avg_cons_pos_days,
           ROUND(AVG(perc_change) * 100, 10) AS avg_cons_perc_change
    FROM grouped
    GROUP BY currency_symbol
),
ranked AS (
    SELECT currency_symbol, avg_cons_pos_days, avg_cons_perc_change,
           RANK() OVER (ORDER BY avg_cons_pos_days DESC) AS avg_cons_pos_days_rank,
           RANK() OVER (ORDER BY avg_cons_perc_change DESC) AS avg_cons_perc_change_rank
    FROM agg_metrics
)
SELECT currency_symbol,
       CAST(avg_cons_pos_days AS DOUBLE PRECISION) AS avg_cons_pos_days,
       CAST(avg_cons_perc_change AS DOUBLE PRECISION) AS avg_cons_perc_change,
       avg_cons_pos_days_rank,
       avg_cons_perc_change_rank
FROM ranked
WHERE avg_cons_perc_change_rank <= $2
ORDER BY avg_cons_perc_change_rank, currency_symbol;`

const (
	listObservationsPostgresSQL = `SELECT currency_symbol, rate_date, exchange_rate::text
    FROM exchange_rates
    WHERE rate_date <= $1
    ORDER BY currency_symbol, rate_date;`

	listObservationsSQLiteSQL = `SELECT currency_symbol, rate_date, exchange_rate
    FROM exchange_rates
    WHERE rate_date <= ?
    ORDER BY currency_symbol, rate_date;`

	upsertObservationPostgresSQL = `INSERT INTO exchange_rates (currency_symbol, rate_date, exchange_rate)
    VALUES ($1, $2, $3)
    ON CONFLICT (currency_symbol, rate_date) DO UPDATE
    SET exchange_rate = EXCLUDED.exchange_rate;`

	upsertObservationSQLiteSQL = `INSERT INTO exchange_rates (currency_symbol, rate_date, exchange_rate)
    VALUES (?, ?, ?)
    ON CONFLICT (currency_symbol, rate_date) DO UPDATE
    SET exchange_rate = excluded.exchange_rate;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)
