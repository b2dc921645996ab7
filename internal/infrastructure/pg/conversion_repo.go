package pg

import (
	"context"
	"fmt"

	"fxcore-service/internal/application"
	"fxcore-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

var _ application.ConversionStore = (*ConversionRepo)(nil)

// ConversionRepo is the append-only audit trail of priced conversions.
type ConversionRepo struct{ db *DB }

func NewConversionRepo(db *DB) *ConversionRepo { return &ConversionRepo{db: db} }

var timeframeInterval = map[string]string{
	"1h":  "1 hour",
	"24h": "24 hours",
	"7d":  "7 days",
	"30d": "30 days",
}

const insertConversionSQL = `
INSERT INTO fx_conversions (
    conversion_id, pair, from_currency, to_currency,
    original_amount, converted_amount, base_rate, rate_with_markup,
    markup_percent, markup_amount,
    profit_gross, profit_platform, profit_partner, profit_reserve, profit_currency,
    provider, user_id, phone_number, transaction_ref, origin, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
ON CONFLICT (conversion_id) DO NOTHING`

// InsertBatch writes one flush of the conversion logger in a single
// round trip. Replayed records are dropped by the conversion_id
// conflict clause, so a re-queued batch is safe to flush again.
func (r *ConversionRepo) InsertBatch(ctx context.Context, recs []domain.ConversionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, rec := range recs {
		b.Queue(insertConversionSQL,
			rec.ID, string(rec.Pair), string(rec.From), string(rec.To),
			rec.OriginalAmount, rec.ConvertedAmount, rec.BaseRate, rec.RateWithMarkup,
			rec.MarkupPercent, rec.MarkupAmount,
			rec.Profit.Gross, rec.Profit.Platform, rec.Profit.Partner, rec.Profit.Reserve, string(rec.Profit.Currency),
			rec.Provider, rec.Metadata.UserID, rec.Metadata.PhoneNumber, rec.Metadata.TransactionRef, rec.Metadata.Origin,
			rec.CreatedAt,
		)
	}
	br := r.db.Pool.SendBatch(ctx, b)
	defer br.Close()
	for range recs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert conversion batch: %w", err)
		}
	}
	return nil
}

// ProfitStats aggregates logged conversions per pair over the
// timeframe.
func (r *ConversionRepo) ProfitStats(ctx context.Context, timeframe string) (domain.ProfitStats, error) {
	interval, ok := timeframeInterval[timeframe]
	if !ok {
		return domain.ProfitStats{}, fmt.Errorf("%w: %s", application.ErrInvalidTimeframe, timeframe)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT pair,
		       COUNT(*),
		       SUM(original_amount),
		       SUM(converted_amount),
		       SUM(profit_gross),
		       AVG(markup_percent),
		       MIN(profit_currency)
		FROM fx_conversions
		WHERE created_at >= now() - $1::interval
		GROUP BY pair
		ORDER BY SUM(profit_gross) DESC`, interval)
	if err != nil {
		return domain.ProfitStats{}, fmt.Errorf("profit stats: %w", err)
	}
	defer rows.Close()

	stats := domain.ProfitStats{Timeframe: timeframe}
	for rows.Next() {
		var p domain.PairProfit
		var pair, currency string
		if err := rows.Scan(&pair, &p.Conversions, &p.VolumeFrom, &p.VolumeTo, &p.Profit, &p.AvgMarkupPct, &currency); err != nil {
			return domain.ProfitStats{}, fmt.Errorf("profit stats scan: %w", err)
		}
		p.Pair = domain.Pair(pair)
		p.ProfitCurrency = domain.Currency(currency)
		stats.ByPair = append(stats.ByPair, p)
		stats.TotalProfit += p.Profit
		stats.TotalConversions += p.Conversions
	}
	return stats, rows.Err()
}

const selectConversionSQL = `
SELECT conversion_id, pair, from_currency, to_currency,
       original_amount, converted_amount, base_rate, rate_with_markup,
       markup_percent, markup_amount,
       profit_gross, profit_platform, profit_partner, profit_reserve, profit_currency,
       provider, user_id, phone_number, transaction_ref, origin, created_at
FROM fx_conversions`

func (r *ConversionRepo) UserHistory(ctx context.Context, userID string, limit int) ([]domain.ConversionRecord, error) {
	rows, err := r.db.Pool.Query(ctx,
		selectConversionSQL+` WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("user history: %w", err)
	}
	defer rows.Close()

	var out []domain.ConversionRecord
	for rows.Next() {
		rec, err := scanConversion(rows)
		if err != nil {
			return nil, fmt.Errorf("user history scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteOlderThan enforces the audit retention window. Returns the
// number of rows removed.
func (r *ConversionRepo) DeleteOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM fx_conversions WHERE created_at < now() - make_interval(days => $1)`,
		retentionDays)
	if err != nil {
		return 0, fmt.Errorf("retention delete: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanConversion(row pgx.Row) (domain.ConversionRecord, error) {
	var rec domain.ConversionRecord
	var pair, from, to, currency string
	err := row.Scan(
		&rec.ID, &pair, &from, &to,
		&rec.OriginalAmount, &rec.ConvertedAmount, &rec.BaseRate, &rec.RateWithMarkup,
		&rec.MarkupPercent, &rec.MarkupAmount,
		&rec.Profit.Gross, &rec.Profit.Platform, &rec.Profit.Partner, &rec.Profit.Reserve, &currency,
		&rec.Provider, &rec.Metadata.UserID, &rec.Metadata.PhoneNumber, &rec.Metadata.TransactionRef, &rec.Metadata.Origin,
		&rec.CreatedAt,
	)
	if err != nil {
		return domain.ConversionRecord{}, err
	}
	rec.Pair = domain.Pair(pair)
	rec.From = domain.Currency(from)
	rec.To = domain.Currency(to)
	rec.Profit.Currency = domain.Currency(currency)
	return rec, nil
}
