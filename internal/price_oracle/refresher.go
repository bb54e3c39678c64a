package price_oracle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lnwallet-ledger/internal/domain/price"
	"github.com/shopspring/decimal"
)

// Source quotes the BTC spot price in fiat units per BTC.
type Source interface {
	FetchSpot(ctx context.Context) (decimal.Decimal, error)
}

// SnapshotCache shares the snapshot between processes.
type SnapshotCache interface {
	Save(ctx context.Context, snapshot price.Snapshot) error
	Load(ctx context.Context) (price.Snapshot, error)
}

// Refresher pulls the spot price into the oracle. It runs as a scheduled job.
type Refresher struct {
	oracle *Oracle
	source Source
	cache  SnapshotCache
	now    func() time.Time
	logger *slog.Logger
}

func NewRefresher(logger *slog.Logger, oracle *Oracle, source Source, cache SnapshotCache) *Refresher {
	return &Refresher{
		oracle: oracle,
		source: source,
		cache:  cache,
		now:    time.Now,
		logger: logger.With("component", "price_refresher"),
	}
}

func (r *Refresher) Name() string {
	return "price-refresh"
}

// Run implements the scheduler job contract.
func (r *Refresher) Run(ctx context.Context) error {
	return r.Refresh(ctx)
}

// Refresh fetches a quote, stores it and writes it through to the cache. A
// cache failure is logged only: the in-memory price is already current.
func (r *Refresher) Refresh(ctx context.Context) error {
	quote, err := r.source.FetchSpot(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch spot price: %w", err)
	}

	snapshot, err := price.FromFiatPerBTC(quote, r.now().UTC())
	if err != nil {
		return fmt.Errorf("invalid spot price %s: %w", quote, err)
	}
	r.oracle.Store(snapshot)

	if err := r.cache.Save(ctx, snapshot); err != nil {
		r.logger.Warn("Failed to cache price snapshot", "error", err)
	}

	r.logger.Info("Refreshed spot price",
		"fiat_per_btc", quote.String(),
		"sats_per_unit", snapshot.SpotSatsPerUnit.StringFixed(4),
	)
	return nil
}

// Warm loads the cached snapshot so a process can convert amounts before its
// first refresh. Missing snapshots fall back to a live refresh.
func (r *Refresher) Warm(ctx context.Context) error {
	snapshot, err := r.cache.Load(ctx)
	if err == nil {
		r.oracle.Store(snapshot)
		r.logger.Info("Loaded cached price snapshot", "observed_at", snapshot.ObservedAt)
		return nil
	}

	r.logger.Info("No cached price snapshot, refreshing", "reason", err)
	return r.Refresh(ctx)
}
