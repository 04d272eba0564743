package market

import (
	"time"

	"cosmossdk.io/math"

	"github.com/pollstake/pollstake/internal/types"
)

// InstantiateMsg is sent by the controller at the end of the provisioning
// saga, once both outcome token addresses are known.
type InstantiateMsg struct {
	Controller      string   `json:"controller"`
	Creator         string   `json:"creator"`
	YesToken        string   `json:"yes_token"`
	NoToken         string   `json:"no_token"`
	DurationSeconds uint64   `json:"duration_seconds"`
	Denom           string   `json:"denom"`
	RewardPool      math.Int `json:"reward_pool"`
	BlitzSink       string   `json:"blitz_sink"`
}

type ExecuteMsg struct {
	Stake                  *StakeMsg                  `json:"stake,omitempty"`
	DistributeEpochRewards *DistributeEpochRewardsMsg `json:"distribute_epoch_rewards,omitempty"`
	WithdrawStake          *WithdrawStakeMsg          `json:"withdraw_stake,omitempty"`
	ResolvePoll            *ResolvePollMsg            `json:"resolve_poll,omitempty"`
}

type StakeMsg struct {
	Amount math.Int   `json:"amount"`
	Side   types.Side `json:"side"`
}

type DistributeEpochRewardsMsg struct {
	EpochIndex uint64 `json:"epoch_index"`
}

type WithdrawStakeMsg struct{}

type ResolvePollMsg struct {
	WinningSide types.Side `json:"winning_side"`
}

type QueryMsg struct {
	MarketInfo  *struct{}        `json:"market_info,omitempty"`
	EpochInfo   *EpochInfoQuery  `json:"epoch_info,omitempty"`
	UserStakes  *UserStakesQuery `json:"user_stakes,omitempty"`
	TotalStaked *struct{}        `json:"total_staked,omitempty"`
}

type EpochInfoQuery struct {
	EpochIndex uint64 `json:"epoch_index"`
}

type UserStakesQuery struct {
	User       string `json:"user"`
	EpochIndex uint64 `json:"epoch_index"`
}

type MarketInfoResponse struct {
	Controller  string      `json:"controller"`
	Creator     string      `json:"creator"`
	YesToken    string      `json:"yes_token"`
	NoToken     string      `json:"no_token"`
	EndTime     time.Time   `json:"end_time"`
	TotalStaked math.Int    `json:"total_staked"`
	Resolved    bool        `json:"resolved"`
	WinningSide *types.Side `json:"winning_side,omitempty"`
	Denom       string      `json:"denom"`
}

type EpochInfoResponse struct {
	Index              uint64    `json:"index"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	Distribution       math.Int  `json:"distribution"`
	TotalStaked        math.Int  `json:"total_staked"`
	Distributed        bool      `json:"distributed"`
	LastProcessedIndex uint64    `json:"last_processed_index"`
	StakerCount        uint64    `json:"staker_count"`
}

type StakeResponse struct {
	Amount    math.Int   `json:"amount"`
	Side      types.Side `json:"side"`
	Withdrawn bool       `json:"withdrawn"`
}

type UserStakesResponse struct {
	Stakes []StakeResponse `json:"stakes"`
}

type TotalStakedResponse struct {
	TotalYes math.Int `json:"total_yes"`
	TotalNo  math.Int `json:"total_no"`
	Denom    string   `json:"denom"`
}
