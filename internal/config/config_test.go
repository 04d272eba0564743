package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Chain: ChainConfig{
			Denom:          "upoll",
			AddressPrefix:  "poll",
			Owner:          "poll1owner",
			CreationFee:    100,
			ProtocolFeeBps: 250,
			RewardPool:     1_000_000,
			BlitzSink:      "poll1sink",
		},
		Db: DbConfig{
			Username: "test",
			Password: "test",
			Address:  "mongodb://localhost:27017",
			DbName:   "test",
		},
		Metrics: MetricsConfig{
			Host: "0.0.0.0",
			Port: 2112,
		},
		Poller: PollerConfig{
			EndedMarketPollingInterval: 30 * time.Second,
			EndedMarketsLimit:          100,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestChainConfig_Validate(t *testing.T) {
	t.Run("missing denom - should error", func(t *testing.T) {
		cfg := validConfig()
		cfg.Chain.Denom = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "denom is required")
	})

	t.Run("negative creation fee - should error", func(t *testing.T) {
		cfg := validConfig()
		cfg.Chain.CreationFee = -1
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "creation-fee must not be negative")
	})

	t.Run("protocol fee above cap - should error", func(t *testing.T) {
		cfg := validConfig()
		cfg.Chain.ProtocolFeeBps = maxProtocolFeeBps + 1
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "protocol-fee-bps must not exceed")
	})

	t.Run("zero reward pool - should error", func(t *testing.T) {
		cfg := validConfig()
		cfg.Chain.RewardPool = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reward-pool must be positive")
	})
}

func TestPollerConfig_Validate(t *testing.T) {
	t.Run("polling interval not set - should error", func(t *testing.T) {
		cfg := validConfig()
		cfg.Poller.EndedMarketPollingInterval = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ended-market-polling-interval must be positive")
	})

	t.Run("limit not set - should error", func(t *testing.T) {
		cfg := validConfig()
		cfg.Poller.EndedMarketsLimit = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ended-markets-limit must be positive")
	})
}

func TestPortValidation(t *testing.T) {
	t.Run("metrics port out of range - should error", func(t *testing.T) {
		cfg := validConfig()
		cfg.Metrics.Port = 80
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "metrics port must be between")
	})

	t.Run("server port out of range - should error", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Port = 70000
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server port must be between")
	})
}
