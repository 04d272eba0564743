package market

import (
	"time"

	"cosmossdk.io/math"

	"github.com/pollstake/pollstake/internal/ledger"
	"github.com/pollstake/pollstake/internal/types"
)

const (
	// NumEpochs slices the market lifetime into the fixed reward schedule.
	NumEpochs uint64 = 4
	// BatchSize bounds how many stakers one distribution call processes.
	BatchSize uint64 = 100
	// BlitzMultiplier of the losing token's supply is minted to the sink at
	// resolution, so post-resolution supply is 20x and each unit's claim
	// share drops to ~1/20.
	BlitzMultiplier int64 = 19

	MaxDuration = 30 * 24 * time.Hour
)

// Per-epoch distribution weights in basis points of the reward pool.
// They sum to 8000; the remaining 2000 bps are reserved outside this engine.
var epochDistributionBps = map[uint64]int64{
	1: 3657,
	2: 2743,
	3: 2058,
	4: 1542,
}

type marketConfig struct {
	Controller    string      `json:"controller"`
	Creator       string      `json:"creator"`
	YesToken      string      `json:"yes_token"`
	NoToken       string      `json:"no_token"`
	EndTime       time.Time   `json:"end_time"`
	EpochDuration int64       `json:"epoch_duration_seconds"`
	Denom         string      `json:"denom"`
	RewardPool    math.Int    `json:"reward_pool"`
	BlitzSink     string      `json:"blitz_sink"`
	TotalStaked   math.Int    `json:"total_staked"`
	Resolved      bool        `json:"resolved"`
	WinningSide   *types.Side `json:"winning_side,omitempty"`
}

type epochRecord struct {
	Index              uint64    `json:"index"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	Distribution       math.Int  `json:"distribution"`
	TotalStaked        math.Int  `json:"total_staked"`
	Distributed        bool      `json:"distributed"`
	LastProcessedIndex uint64    `json:"last_processed_index"`
}

type stakeRecord struct {
	Amount    math.Int   `json:"amount"`
	Side      types.Side `json:"side"`
	Withdrawn bool       `json:"withdrawn"`
}

var (
	configItem   = ledger.NewItem[marketConfig]("market_config")
	epochs       = ledger.NewMap[uint64, epochRecord]("epochs", ledger.U64Key)
	epochStakers = ledger.NewMap[uint64, []string]("epoch_stakers", ledger.U64Key)
	userStakes   = ledger.NewMap[string, []stakeRecord]("user_stakes", ledger.StringKey)
	totalYes     = ledger.NewItem[math.Int]("total_yes_staked")
	totalNo      = ledger.NewItem[math.Int]("total_no_staked")
)

func stakesKey(user string, epoch uint64) string {
	return ledger.PairKey(user, epoch)
}

// scheduleStart is when the 4-epoch reward schedule begins. Markets whose
// duration is not divisible by 4 open slightly before it; those early
// stakes clamp into epoch 1.
func (c marketConfig) scheduleStart() time.Time {
	return c.EndTime.Add(-time.Duration(int64(NumEpochs)*c.EpochDuration) * time.Second)
}

// epochAt derives the epoch index for a point in time purely from the
// clock, clamped to [1, NumEpochs]. Deriving instead of tracking a cursor
// keeps assignment idempotent and order-independent.
func (c marketConfig) epochAt(now time.Time) uint64 {
	elapsed := now.Unix() - c.scheduleStart().Unix()
	if elapsed < 0 || c.EpochDuration <= 0 {
		return 1
	}
	idx := uint64(elapsed/c.EpochDuration) + 1
	if idx > NumEpochs {
		return NumEpochs
	}
	return idx
}

// epochDistribution is the fixed amount handed out for one epoch:
// rewardPool x bps / 10000, truncated.
func epochDistribution(pool math.Int, index uint64) math.Int {
	bps, ok := epochDistributionBps[index]
	if !ok {
		return math.ZeroInt()
	}
	return pool.Mul(math.NewInt(bps)).Quo(math.NewInt(10000))
}
