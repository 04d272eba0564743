package config

import (
	"errors"
	"fmt"
)

const maxProtocolFeeBps = 1000

// ChainConfig holds the parameters the factory is bootstrapped with.
type ChainConfig struct {
	Denom          string `mapstructure:"denom"`
	AddressPrefix  string `mapstructure:"address-prefix"`
	Owner          string `mapstructure:"owner"`
	CreationFee    int64  `mapstructure:"creation-fee"`
	ProtocolFeeBps uint64 `mapstructure:"protocol-fee-bps"`
	RewardPool     int64  `mapstructure:"reward-pool"`
	BlitzSink      string `mapstructure:"blitz-sink"`
}

func (cfg *ChainConfig) Validate() error {
	if cfg.Denom == "" {
		return errors.New("denom is required")
	}
	if cfg.AddressPrefix == "" {
		return errors.New("address-prefix is required")
	}
	if cfg.Owner == "" {
		return errors.New("owner address is required")
	}
	if cfg.CreationFee < 0 {
		return errors.New("creation-fee must not be negative")
	}
	if cfg.ProtocolFeeBps > maxProtocolFeeBps {
		return fmt.Errorf("protocol-fee-bps must not exceed %d", maxProtocolFeeBps)
	}
	if cfg.RewardPool <= 0 {
		return errors.New("reward-pool must be positive")
	}
	if cfg.BlitzSink == "" {
		return errors.New("blitz-sink address is required")
	}

	return nil
}
