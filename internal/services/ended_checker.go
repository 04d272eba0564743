package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/pollstake/pollstake/internal/observability/metrics"
	"github.com/pollstake/pollstake/internal/utils/poller"
)

func (s *Service) StartEndedMarketChecker(ctx context.Context) {
	endedMarketPoller := poller.NewPoller(
		s.cfg.Poller.EndedMarketPollingInterval,
		metrics.RecordPollerDuration("ended_market_checker", s.checkEndedMarkets),
	)
	go endedMarketPoller.Start(ctx)
}

// checkEndedMarkets flips the index's active flag for markets whose end time
// has passed. The ledger never needs this; it is purely so the query API
// stops listing them before anyone resolves.
func (s *Service) checkEndedMarkets(ctx context.Context) error {
	now := s.host.Now().Now().Unix()

	endedMarkets, err := s.db.FindEndedUnresolvedMarkets(ctx, now, int64(s.cfg.Poller.EndedMarketsLimit))
	if err != nil {
		return fmt.Errorf("failed to find ended markets: %w", err)
	}

	for _, marketDoc := range endedMarkets {
		log.Ctx(ctx).Debug().
			Str("market", marketDoc.Address).
			Int64("end_time", marketDoc.EndTime).
			Msg("marking ended market inactive")

		if err := s.db.MarkMarketEnded(ctx, marketDoc.Address); err != nil {
			return fmt.Errorf("failed to mark market %s ended: %w", marketDoc.Address, err)
		}
	}

	if len(endedMarkets) > 0 {
		active, err := s.db.CountActiveMarkets(ctx)
		if err != nil {
			return fmt.Errorf("failed to count active markets: %w", err)
		}
		metrics.RecordActiveMarketsCount(int(active))
	}
	return nil
}
