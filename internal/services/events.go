package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/pollstake/pollstake/internal/controller"
	"github.com/pollstake/pollstake/internal/db"
	"github.com/pollstake/pollstake/internal/db/model"
	"github.com/pollstake/pollstake/internal/host"
	"github.com/pollstake/pollstake/internal/market"
	"github.com/pollstake/pollstake/internal/observability/metrics"
)

const (
	ActionPollCreated            = "poll_created"
	ActionResolvePoll            = "resolve_poll"
	ActionStake                  = "stake"
	ActionDistributeEpochRewards = "distribute_epoch_rewards"

	indexRetryAttempts uint          = 3
	indexRetryDelay    time.Duration = 300 * time.Millisecond
)

// Execute runs a call on the host and indexes every committed event. When a
// provisioning continuation fails, the steps that committed before it are
// still indexed and the host error is passed through.
func (s *Service) Execute(ctx context.Context, sender, contract host.Address, msg any, funds []host.Coin) ([]host.Event, error) {
	events, err := s.host.Execute(ctx, sender, contract, msg, funds)
	if err != nil && len(events) > 0 {
		metrics.IncSagaFailure()
	}
	if indexErr := s.IndexEvents(ctx, events); indexErr != nil {
		log.Ctx(ctx).Error().Err(indexErr).Msg("Failed to index committed events")
	}
	return events, err
}

// IndexEvents translates committed host events into query-index writes.
func (s *Service) IndexEvents(ctx context.Context, events []host.Event) error {
	for _, event := range events {
		if event.Type != host.EventTypeExecute {
			continue
		}
		action, ok := event.AttrValue(host.AttrKeyAction)
		if !ok {
			continue
		}

		var err error
		switch action {
		case ActionPollCreated:
			log.Ctx(ctx).Debug().Msg("Processing poll created event")
			err = s.processPollCreatedEvent(ctx, event)
		case ActionResolvePoll:
			log.Ctx(ctx).Debug().Msg("Processing poll resolved event")
			err = s.processResolvePollEvent(ctx, event)
		case ActionStake:
			log.Ctx(ctx).Debug().Msg("Processing stake event")
			err = s.processStakeEvent(ctx, event)
		case ActionDistributeEpochRewards:
			err = s.processDistributionEvent(event)
		}
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("action", action).Msg("Failed to process event")
			return err
		}
	}
	return nil
}

func (s *Service) processPollCreatedEvent(ctx context.Context, event host.Event) error {
	attrs, err := requireAttrs(event, "market", "creator", "question", "yes_token", "no_token", "end_time", "sequence")
	if err != nil {
		return err
	}

	endTime, err := time.Parse(time.RFC3339, attrs["end_time"])
	if err != nil {
		return fmt.Errorf("malformed end_time attribute: %w", err)
	}
	sequence, err := strconv.ParseUint(attrs["sequence"], 10, 64)
	if err != nil {
		return fmt.Errorf("malformed sequence attribute: %w", err)
	}

	avatar, _ := event.AttrValue("avatar")
	description, _ := event.AttrValue("description")

	marketDoc := &model.MarketDocument{
		Address:     attrs["market"],
		Sequence:    sequence,
		Creator:     attrs["creator"],
		Question:    attrs["question"],
		Avatar:      avatar,
		Description: description,
		YesToken:    attrs["yes_token"],
		NoToken:     attrs["no_token"],
		EndTime:     endTime.Unix(),
		Active:      true,
		TotalStaked: "0",
		CreatedAt:   s.host.Now().Now().Unix(),
	}

	err = s.withRetry(ctx, func() error {
		return s.db.SaveNewMarket(ctx, marketDoc)
	})
	if db.IsDuplicateKeyError(err) {
		log.Ctx(ctx).Warn().Str("market", marketDoc.Address).Msg("Market already indexed")
	} else if err != nil {
		return fmt.Errorf("failed to save new market: %w", err)
	}

	metrics.IncMarketCreated()
	return s.refreshStats(ctx)
}

func (s *Service) processResolvePollEvent(ctx context.Context, event host.Event) error {
	attrs, err := requireAttrs(event, host.AttrKeyContractAddress, "winning_side")
	if err != nil {
		return err
	}
	marketAddr := attrs[host.AttrKeyContractAddress]

	err = s.withRetry(ctx, func() error {
		return s.db.UpdateMarketResolved(ctx, marketAddr, attrs["winning_side"])
	})
	if db.IsNotFoundError(err) {
		log.Ctx(ctx).Warn().Str("market", marketAddr).Msg("Resolved market missing from index")
	} else if err != nil {
		return fmt.Errorf("failed to update resolved market: %w", err)
	}

	return s.refreshStats(ctx)
}

func (s *Service) processStakeEvent(ctx context.Context, event host.Event) error {
	attrs, err := requireAttrs(event, host.AttrKeyContractAddress, "side", "amount")
	if err != nil {
		return err
	}
	marketAddr := attrs[host.AttrKeyContractAddress]

	metrics.IncStake(attrs["side"])

	info, err := host.QueryHostAs[market.MarketInfoResponse](ctx, s.host, host.Address(marketAddr), market.QueryMsg{MarketInfo: &struct{}{}})
	if err != nil {
		return fmt.Errorf("failed to query market %s: %w", marketAddr, err)
	}

	err = s.withRetry(ctx, func() error {
		return s.db.UpdateMarketTotalStaked(ctx, marketAddr, info.TotalStaked.String())
	})
	if db.IsNotFoundError(err) {
		log.Ctx(ctx).Warn().Str("market", marketAddr).Msg("Staked market missing from index")
		return nil
	}
	return err
}

func (s *Service) processDistributionEvent(event host.Event) error {
	processed, ok := event.AttrValue("processed")
	if !ok {
		return fmt.Errorf("distribution event missing processed attribute")
	}
	n, err := strconv.Atoi(processed)
	if err != nil {
		return fmt.Errorf("malformed processed attribute: %w", err)
	}
	metrics.RecordDistributionBatch(n)
	return nil
}

// refreshStats re-derives the overall stats document from the factory.
func (s *Service) refreshStats(ctx context.Context) error {
	stats, err := host.QueryHostAs[controller.StatsResponse](ctx, s.host, s.controller, controller.QueryMsg{GetStats: &struct{}{}})
	if err != nil {
		return fmt.Errorf("failed to query factory stats: %w", err)
	}

	if err := s.withRetry(ctx, func() error {
		return s.db.UpsertOverallStats(ctx, stats.MarketCount, stats.PendingSagas)
	}); err != nil {
		return fmt.Errorf("failed to upsert overall stats: %w", err)
	}

	active, err := s.db.CountActiveMarkets(ctx)
	if err != nil {
		return fmt.Errorf("failed to count active markets: %w", err)
	}
	metrics.RecordActiveMarketsCount(int(active))
	return nil
}

func (s *Service) withRetry(ctx context.Context, f func() error) error {
	return retry.Do(f,
		retry.Context(ctx),
		retry.Attempts(indexRetryAttempts),
		retry.Delay(indexRetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// domain errors are terminal, only transient db failures retry
			return !db.IsDuplicateKeyError(err) && !db.IsNotFoundError(err)
		}),
	)
}

func requireAttrs(event host.Event, keys ...string) (map[string]string, error) {
	attrs := make(map[string]string, len(keys))
	for _, key := range keys {
		val, ok := event.AttrValue(key)
		if !ok {
			return nil, fmt.Errorf("event missing %s attribute", key)
		}
		attrs[key] = val
	}
	return attrs, nil
}
