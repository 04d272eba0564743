package db

import (
	"context"
	"time"

	"github.com/pollstake/pollstake/internal/db/model"
	"github.com/pollstake/pollstake/internal/observability/metrics"
)

type DbWithMetrics struct {
	db DbInterface
}

func NewDbWithMetrics(db DbInterface) *DbWithMetrics {
	return &DbWithMetrics{db: db}
}

func (d *DbWithMetrics) Ping(ctx context.Context) error {
	return d.db.Ping(ctx)
}

func (d *DbWithMetrics) SaveNewMarket(ctx context.Context, marketDoc *model.MarketDocument) error {
	return d.run("SaveNewMarket", func() error {
		return d.db.SaveNewMarket(ctx, marketDoc)
	})
}

func (d *DbWithMetrics) GetMarketByAddress(ctx context.Context, address string) (result *model.MarketDocument, err error) {
	//nolint:errcheck
	d.run("GetMarketByAddress", func() error {
		result, err = d.db.GetMarketByAddress(ctx, address)
		return err
	})
	return
}

func (d *DbWithMetrics) GetMarketCount(ctx context.Context) (result uint64, err error) {
	//nolint:errcheck
	d.run("GetMarketCount", func() error {
		result, err = d.db.GetMarketCount(ctx)
		return err
	})
	return
}

func (d *DbWithMetrics) CountActiveMarkets(ctx context.Context) (result uint64, err error) {
	//nolint:errcheck
	d.run("CountActiveMarkets", func() error {
		result, err = d.db.CountActiveMarkets(ctx)
		return err
	})
	return
}

func (d *DbWithMetrics) FindActiveMarkets(ctx context.Context, paginationToken string, limit int64) (result []*model.MarketDocument, nextToken string, err error) {
	//nolint:errcheck
	d.run("FindActiveMarkets", func() error {
		result, nextToken, err = d.db.FindActiveMarkets(ctx, paginationToken, limit)
		return err
	})
	return
}

func (d *DbWithMetrics) MarkMarketEnded(ctx context.Context, address string) error {
	return d.run("MarkMarketEnded", func() error {
		return d.db.MarkMarketEnded(ctx, address)
	})
}

func (d *DbWithMetrics) UpdateMarketResolved(ctx context.Context, address string, winningSide string) error {
	return d.run("UpdateMarketResolved", func() error {
		return d.db.UpdateMarketResolved(ctx, address, winningSide)
	})
}

func (d *DbWithMetrics) UpdateMarketTotalStaked(ctx context.Context, address string, totalStaked string) error {
	return d.run("UpdateMarketTotalStaked", func() error {
		return d.db.UpdateMarketTotalStaked(ctx, address, totalStaked)
	})
}

func (d *DbWithMetrics) FindEndedUnresolvedMarkets(ctx context.Context, now int64, limit int64) (result []*model.MarketDocument, err error) {
	//nolint:errcheck
	d.run("FindEndedUnresolvedMarkets", func() error {
		result, err = d.db.FindEndedUnresolvedMarkets(ctx, now, limit)
		return err
	})
	return
}

func (d *DbWithMetrics) UpsertOverallStats(ctx context.Context, marketCount uint64, pendingSagas uint64) error {
	return d.run("UpsertOverallStats", func() error {
		return d.db.UpsertOverallStats(ctx, marketCount, pendingSagas)
	})
}

func (d *DbWithMetrics) GetOverallStats(ctx context.Context) (result *model.OverallStatsDocument, err error) {
	//nolint:errcheck
	d.run("GetOverallStats", func() error {
		result, err = d.db.GetOverallStats(ctx)
		return err
	})
	return
}

// run is private method that executes passed lambda function and send metrics data with spent time, method name
// and an error if any. It returns the error from the lambda function for convenience
func (d *DbWithMetrics) run(method string, f func() error) error {
	startTime := time.Now()
	err := f()
	duration := time.Since(startTime)

	metrics.RecordDbLatency(duration, method, err != nil)
	return err
}
