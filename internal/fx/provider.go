package fx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/carvalue/internal/domain"
)

// RateSource fetches live sell rates from the external FX source.
type RateSource interface {
	FetchSellRate(ctx context.Context, rateType domain.RateType) (decimal.Decimal, error)
}

// Provider answers "what is the USD rate right now" and "what was it on date D".
// The latest daily rate is cached in memory; reads are safe for concurrent use.
type Provider struct {
	source RateSource
	repo   RateRepository
	now    func() time.Time

	mu     sync.RWMutex
	latest *domain.ExchangeRateRecord
}

// NewProvider creates a new rate Provider.
func NewProvider(source RateSource, repo RateRepository) *Provider {
	return &Provider{source: source, repo: repo, now: time.Now}
}

// CurrentRate fetches today's daily rate and stores it. When the FX source fails, the most recent
// stored daily rate is returned with Degraded set. The error is non-nil only if no rate is known at all.
func (p *Provider) CurrentRate(ctx context.Context) (domain.CurrentRate, error) {
	today := domain.Day(p.now())

	rate, fetchErr := p.source.FetchSellRate(ctx, domain.RateTypeDaily)
	if fetchErr == nil {
		if err := p.repo.SaveRate(ctx, today, domain.RateTypeDaily, rate); err != nil {
			slog.Warn("failed to store daily rate", "date", today.Format(domain.DateLayout), "error", err)
		}
		p.remember(domain.ExchangeRateRecord{Date: today, RateType: domain.RateTypeDaily, USDRate: rate, UpdatedAt: p.now()})
		return domain.CurrentRate{Rate: rate, AsOf: today}, nil
	}

	cached, err := p.lastKnown(ctx)
	if err != nil {
		return domain.CurrentRate{}, fmt.Errorf("%w: %w (no cached rate: %w)", domain.ErrRateFetchFailed, fetchErr, err)
	}

	slog.Warn("FX source unavailable, using cached rate",
		"rate", cached.USDRate.String(),
		"date", cached.Date.Format(domain.DateLayout),
		"error", fetchErr)
	return domain.CurrentRate{Rate: cached.USDRate, AsOf: cached.Date, Degraded: true}, nil
}

// CachedRate returns the most recent daily rate without contacting the FX source.
func (p *Provider) CachedRate(ctx context.Context) (domain.CurrentRate, error) {
	rec, err := p.lastKnown(ctx)
	if err != nil {
		return domain.CurrentRate{}, err
	}
	stale := !rec.Date.Equal(domain.Day(p.now()))
	return domain.CurrentRate{Rate: rec.USDRate, AsOf: rec.Date, Degraded: stale}, nil
}

// HistoricalRate returns the daily rate stored for date, or nil when there is none.
// It never substitutes another date's rate.
func (p *Provider) HistoricalRate(ctx context.Context, date time.Time) (*decimal.Decimal, error) {
	rec, err := p.repo.GetRate(ctx, date, domain.RateTypeDaily)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up rate for %s: %w", date.Format(domain.DateLayout), err)
	}
	return &rec.USDRate, nil
}

// Refresh updates today's daily rate and, best effort, the official rate.
// It implements worker.RateRefresher.
func (p *Provider) Refresh(ctx context.Context) error {
	current, err := p.CurrentRate(ctx)
	if err != nil {
		return err
	}
	if current.Degraded {
		return fmt.Errorf("%w: serving cached rate from %s", domain.ErrRateFetchFailed, current.AsOf.Format(domain.DateLayout))
	}

	official, err := p.source.FetchSellRate(ctx, domain.RateTypeOfficial)
	if err != nil {
		slog.Warn("official rate fetch failed", "error", err)
		return nil
	}
	if err := p.repo.SaveRate(ctx, domain.Day(p.now()), domain.RateTypeOfficial, official); err != nil {
		slog.Warn("failed to store official rate", "error", err)
	}
	return nil
}

func (p *Provider) lastKnown(ctx context.Context) (domain.ExchangeRateRecord, error) {
	p.mu.RLock()
	latest := p.latest
	p.mu.RUnlock()
	if latest != nil {
		return *latest, nil
	}

	rec, err := p.repo.GetLatestRate(ctx, domain.RateTypeDaily)
	if err != nil {
		return domain.ExchangeRateRecord{}, err
	}
	p.remember(rec)
	return rec, nil
}

func (p *Provider) remember(rec domain.ExchangeRateRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil || !rec.Date.Before(p.latest.Date) {
		p.latest = &rec
	}
}
