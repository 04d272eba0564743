package config

import (
	"errors"
	"time"
)

type PollerConfig struct {
	EndedMarketPollingInterval time.Duration `mapstructure:"ended-market-polling-interval"`
	EndedMarketsLimit          uint64        `mapstructure:"ended-markets-limit"`
}

func (cfg *PollerConfig) Validate() error {
	if cfg.EndedMarketPollingInterval <= 0 {
		return errors.New("ended-market-polling-interval must be positive")
	}

	if cfg.EndedMarketsLimit <= 0 {
		return errors.New("ended-markets-limit must be positive")
	}

	return nil
}
