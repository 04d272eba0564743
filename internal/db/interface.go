package db

import (
	"context"

	"github.com/pollstake/pollstake/internal/db/model"
)

type DbInterface interface {
	Ping(ctx context.Context) error

	SaveNewMarket(ctx context.Context, marketDoc *model.MarketDocument) error
	GetMarketByAddress(ctx context.Context, address string) (*model.MarketDocument, error)
	GetMarketCount(ctx context.Context) (uint64, error)
	CountActiveMarkets(ctx context.Context) (uint64, error)
	FindActiveMarkets(ctx context.Context, paginationToken string, limit int64) ([]*model.MarketDocument, string, error)
	MarkMarketEnded(ctx context.Context, address string) error
	UpdateMarketResolved(ctx context.Context, address string, winningSide string) error
	UpdateMarketTotalStaked(ctx context.Context, address string, totalStaked string) error
	FindEndedUnresolvedMarkets(ctx context.Context, now int64, limit int64) ([]*model.MarketDocument, error)

	UpsertOverallStats(ctx context.Context, marketCount uint64, pendingSagas uint64) error
	GetOverallStats(ctx context.Context) (*model.OverallStatsDocument, error)
}
