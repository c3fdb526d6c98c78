package fx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/carvalue/internal/domain"
)

// RateRepository defines persistent storage for exchange rate records.
type RateRepository interface {
	SaveRate(ctx context.Context, date time.Time, rateType domain.RateType, usdRate decimal.Decimal) error
	GetRate(ctx context.Context, date time.Time, rateType domain.RateType) (domain.ExchangeRateRecord, error)
	GetLatestRate(ctx context.Context, rateType domain.RateType) (domain.ExchangeRateRecord, error)
}

// PgRateRepository implements RateRepository with PostgreSQL.
type PgRateRepository struct {
	pool *pgxpool.Pool
}

// NewPgRateRepository creates a new PostgreSQL exchange rate repository.
func NewPgRateRepository(pool *pgxpool.Pool) *PgRateRepository {
	return &PgRateRepository{pool: pool}
}

// SaveRate upserts the record for (date, rateType); a second save on the same date overwrites it.
func (r *PgRateRepository) SaveRate(ctx context.Context, date time.Time, rateType domain.RateType, usdRate decimal.Decimal) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exchange_rates (rate_date, rate_type, usd_rate, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (rate_date, rate_type) DO UPDATE SET usd_rate = $3, updated_at = NOW()`,
		domain.Day(date), string(rateType), usdRate)
	if err != nil {
		return fmt.Errorf("saving %s rate for %s: %w", rateType, date.Format(domain.DateLayout), err)
	}
	return nil
}

func (r *PgRateRepository) GetRate(ctx context.Context, date time.Time, rateType domain.RateType) (domain.ExchangeRateRecord, error) {
	rec, err := scanRate(r.pool.QueryRow(ctx,
		`SELECT rate_date, rate_type, usd_rate, updated_at FROM exchange_rates
		 WHERE rate_date = $1 AND rate_type = $2`,
		domain.Day(date), string(rateType)))
	if err != nil {
		return domain.ExchangeRateRecord{}, fmt.Errorf("getting %s rate for %s: %w", rateType, date.Format(domain.DateLayout), err)
	}
	return rec, nil
}

func (r *PgRateRepository) GetLatestRate(ctx context.Context, rateType domain.RateType) (domain.ExchangeRateRecord, error) {
	rec, err := scanRate(r.pool.QueryRow(ctx,
		`SELECT rate_date, rate_type, usd_rate, updated_at FROM exchange_rates
		 WHERE rate_type = $1
		 ORDER BY rate_date DESC
		 LIMIT 1`, string(rateType)))
	if err != nil {
		return domain.ExchangeRateRecord{}, fmt.Errorf("getting latest %s rate: %w", rateType, err)
	}
	return rec, nil
}

func scanRate(row pgx.Row) (domain.ExchangeRateRecord, error) {
	var rec domain.ExchangeRateRecord
	var rateType string
	if err := row.Scan(&rec.Date, &rateType, &rec.USDRate, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ExchangeRateRecord{}, domain.ErrNotFound
		}
		return domain.ExchangeRateRecord{}, err
	}
	rec.RateType = domain.RateType(rateType)
	rec.Date = domain.Day(rec.Date)
	return rec, nil
}
