// Package market implements the staking engine behind one prediction
// market: a fixed four-epoch reward schedule over the market's lifetime,
// batched reward distribution in outcome tokens, and principal withdrawal
// once the poll is resolved.
package market

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"cosmossdk.io/math"

	"github.com/pollstake/pollstake/internal/host"
	"github.com/pollstake/pollstake/internal/ledger"
	"github.com/pollstake/pollstake/internal/token"
	"github.com/pollstake/pollstake/internal/types"
)

type Market struct{}

func Factory() host.Component {
	return &Market{}
}

func (m *Market) Instantiate(deps host.Deps, env host.Env, info host.MessageInfo, raw json.RawMessage) (*host.Response, error) {
	var msg InstantiateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnknownMessage, err)
	}
	if msg.DurationSeconds == 0 || time.Duration(msg.DurationSeconds)*time.Second > MaxDuration {
		return nil, fmt.Errorf("%w: %d seconds", types.ErrInvalidDuration, msg.DurationSeconds)
	}
	if msg.RewardPool.IsNil() || msg.RewardPool.IsNegative() {
		return nil, fmt.Errorf("%w: reward pool must be non-negative", types.ErrPaymentMismatch)
	}

	cfg := marketConfig{
		Controller:    msg.Controller,
		Creator:       msg.Creator,
		YesToken:      msg.YesToken,
		NoToken:       msg.NoToken,
		EndTime:       env.BlockTime.Add(time.Duration(msg.DurationSeconds) * time.Second),
		EpochDuration: int64(msg.DurationSeconds / NumEpochs),
		Denom:         msg.Denom,
		RewardPool:    msg.RewardPool,
		BlitzSink:     msg.BlitzSink,
		TotalStaked:   math.ZeroInt(),
	}
	if err := configItem.Save(deps.Storage, cfg); err != nil {
		return nil, err
	}

	// All epoch records exist from the start so queries and distribution
	// never have to lazily materialize them.
	start := cfg.scheduleStart()
	epochDur := time.Duration(cfg.EpochDuration) * time.Second
	for i := uint64(1); i <= NumEpochs; i++ {
		rec := epochRecord{
			Index:        i,
			StartTime:    start.Add(time.Duration(i-1) * epochDur),
			EndTime:      start.Add(time.Duration(i) * epochDur),
			Distribution: epochDistribution(cfg.RewardPool, i),
			TotalStaked:  math.ZeroInt(),
		}
		if err := epochs.Save(deps.Storage, i, rec); err != nil {
			return nil, err
		}
	}
	if err := totalYes.Save(deps.Storage, math.ZeroInt()); err != nil {
		return nil, err
	}
	if err := totalNo.Save(deps.Storage, math.ZeroInt()); err != nil {
		return nil, err
	}

	return host.NewResponse().
		AddAttribute(host.AttrKeyAction, "instantiate_market").
		AddAttribute("end_time", cfg.EndTime.UTC().Format(time.RFC3339)), nil
}

func (m *Market) Execute(deps host.Deps, env host.Env, info host.MessageInfo, raw json.RawMessage) (*host.Response, error) {
	var msg ExecuteMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnknownMessage, err)
	}

	switch {
	case msg.Stake != nil:
		return m.executeStake(deps, env, info, msg.Stake)
	case msg.DistributeEpochRewards != nil:
		return m.executeDistribute(deps, env, msg.DistributeEpochRewards)
	case msg.WithdrawStake != nil:
		return m.executeWithdraw(deps, info)
	case msg.ResolvePoll != nil:
		return m.executeResolve(deps, env, info, msg.ResolvePoll)
	default:
		return nil, types.ErrUnknownMessage
	}
}

func (m *Market) executeStake(deps host.Deps, env host.Env, info host.MessageInfo, msg *StakeMsg) (*host.Response, error) {
	cfg, err := configItem.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	if cfg.Resolved || !env.BlockTime.Before(cfg.EndTime) {
		return nil, types.ErrMarketEnded
	}
	if !msg.Side.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidSide, msg.Side)
	}
	if msg.Amount.IsNil() || !msg.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: stake amount must be positive", types.ErrPaymentMismatch)
	}
	paid, ok := host.FindCoin(info.Funds, cfg.Denom)
	if !ok {
		return nil, fmt.Errorf("%w: expected %s", types.ErrNoPayment, cfg.Denom)
	}
	if !paid.Amount.Equal(msg.Amount) {
		return nil, fmt.Errorf("%w: declared %s, paid %s", types.ErrPaymentMismatch, msg.Amount, paid.Amount)
	}

	epoch := cfg.epochAt(env.BlockTime)
	rec, err := epochs.Load(deps.Storage, epoch)
	if err != nil {
		return nil, err
	}

	user := info.Sender.String()
	key := stakesKey(user, epoch)
	stakes, err := userStakes.MayLoad(deps.Storage, key)
	if err != nil {
		return nil, err
	}
	if len(stakes) == 0 {
		stakers, err := epochStakers.MayLoad(deps.Storage, epoch)
		if err != nil {
			return nil, err
		}
		stakers = append(stakers, user)
		if err := epochStakers.Save(deps.Storage, epoch, stakers); err != nil {
			return nil, err
		}
	}
	stakes = append(stakes, stakeRecord{Amount: msg.Amount, Side: msg.Side})
	if err := userStakes.Save(deps.Storage, key, stakes); err != nil {
		return nil, err
	}

	rec.TotalStaked = rec.TotalStaked.Add(msg.Amount)
	if err := epochs.Save(deps.Storage, epoch, rec); err != nil {
		return nil, err
	}
	cfg.TotalStaked = cfg.TotalStaked.Add(msg.Amount)
	if err := configItem.Save(deps.Storage, cfg); err != nil {
		return nil, err
	}
	if err := addSideTotal(deps.Storage, msg.Side, msg.Amount); err != nil {
		return nil, err
	}

	return host.NewResponse().
		AddAttribute(host.AttrKeyAction, "stake").
		AddAttribute("staker", user).
		AddAttribute("side", string(msg.Side)).
		AddAttribute("amount", msg.Amount.String()).
		AddAttribute("epoch", strconv.FormatUint(epoch, 10)), nil
}

// executeDistribute hands out one epoch's fixed reward in outcome tokens,
// pro rata to the coins staked in that epoch. Rewards are minted on the
// token matching each stake's side. At most BatchSize stakers are processed
// per call; callers repeat until the epoch is marked distributed.
func (m *Market) executeDistribute(deps host.Deps, env host.Env, msg *DistributeEpochRewardsMsg) (*host.Response, error) {
	cfg, err := configItem.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	if msg.EpochIndex < 1 || msg.EpochIndex > NumEpochs {
		return nil, fmt.Errorf("%w: epoch %d", types.ErrIndexOutOfBounds, msg.EpochIndex)
	}
	rec, err := epochs.Load(deps.Storage, msg.EpochIndex)
	if err != nil {
		return nil, err
	}
	if env.BlockTime.Before(rec.StartTime) {
		return nil, types.ErrEpochNotStarted
	}
	// the epoch is open through its end timestamp inclusive
	if !env.BlockTime.After(rec.EndTime) {
		return nil, types.ErrEpochNotEnded
	}
	if rec.Distributed {
		return nil, types.ErrAlreadyDistributed
	}

	stakers, err := epochStakers.MayLoad(deps.Storage, msg.EpochIndex)
	if err != nil {
		return nil, err
	}

	resp := host.NewResponse().
		AddAttribute(host.AttrKeyAction, "distribute_epoch_rewards").
		AddAttribute("epoch", strconv.FormatUint(msg.EpochIndex, 10))

	from := rec.LastProcessedIndex
	to := from + BatchSize
	if to > uint64(len(stakers)) {
		to = uint64(len(stakers))
	}

	for _, staker := range stakers[from:to] {
		stakes, err := userStakes.MayLoad(deps.Storage, stakesKey(staker, msg.EpochIndex))
		if err != nil {
			return nil, err
		}
		for _, s := range stakes {
			reward := rec.Distribution.Mul(s.Amount).Quo(rec.TotalStaked)
			if !reward.IsPositive() {
				continue
			}
			target := cfg.YesToken
			if s.Side == types.SideNo {
				target = cfg.NoToken
			}
			mint, err := host.NewExecMsg(host.Address(target), token.ExecuteMsg{
				Mint: &token.MintMsg{Recipient: staker, Amount: reward},
			})
			if err != nil {
				return nil, err
			}
			resp.AddMessage(mint)
		}
	}

	rec.LastProcessedIndex = to
	if to == uint64(len(stakers)) {
		rec.Distributed = true
	}
	if err := epochs.Save(deps.Storage, msg.EpochIndex, rec); err != nil {
		return nil, err
	}

	resp.AddAttribute("processed", strconv.FormatUint(to-from, 10)).
		AddAttribute("complete", strconv.FormatBool(rec.Distributed))
	return resp, nil
}

func (m *Market) executeWithdraw(deps host.Deps, info host.MessageInfo) (*host.Response, error) {
	cfg, err := configItem.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	if !cfg.Resolved {
		return nil, types.ErrMarketNotResolved
	}

	user := info.Sender.String()
	total := math.ZeroInt()
	for epoch := uint64(1); epoch <= NumEpochs; epoch++ {
		key := stakesKey(user, epoch)
		stakes, err := userStakes.MayLoad(deps.Storage, key)
		if err != nil {
			return nil, err
		}
		changed := false
		for i := range stakes {
			if stakes[i].Withdrawn {
				continue
			}
			total = total.Add(stakes[i].Amount)
			stakes[i].Withdrawn = true
			changed = true
		}
		if changed {
			if err := userStakes.Save(deps.Storage, key, stakes); err != nil {
				return nil, err
			}
		}
	}
	if total.IsZero() {
		return nil, types.ErrNothingToWithdraw
	}

	cfg.TotalStaked = cfg.TotalStaked.Sub(total)
	if err := configItem.Save(deps.Storage, cfg); err != nil {
		return nil, err
	}

	return host.NewResponse().
		AddAttribute(host.AttrKeyAction, "withdraw_stake").
		AddAttribute("staker", user).
		AddAttribute("amount", total.String()).
		AddMessage(host.NewBankSendMsg(info.Sender, host.NewCoin(cfg.Denom, total))), nil
}

// executeResolve records the winner and dilutes the losing token by minting
// BlitzMultiplier times its supply to the sink address.
func (m *Market) executeResolve(deps host.Deps, env host.Env, info host.MessageInfo, msg *ResolvePollMsg) (*host.Response, error) {
	cfg, err := configItem.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	if info.Sender.String() != cfg.Controller {
		return nil, types.ErrUnauthorized
	}
	if cfg.Resolved {
		return nil, types.ErrAlreadyResolved
	}
	if env.BlockTime.Before(cfg.EndTime) {
		return nil, types.ErrMarketStillActive
	}
	if !msg.WinningSide.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidSide, msg.WinningSide)
	}

	cfg.Resolved = true
	side := msg.WinningSide
	cfg.WinningSide = &side
	if err := configItem.Save(deps.Storage, cfg); err != nil {
		return nil, err
	}

	losing := cfg.NoToken
	if msg.WinningSide == types.SideNo {
		losing = cfg.YesToken
	}
	ti, err := host.QueryAs[token.TokenInfoResponse](deps.Querier, host.Address(losing), token.QueryMsg{TokenInfo: &struct{}{}})
	if err != nil {
		return nil, err
	}

	resp := host.NewResponse().
		AddAttribute(host.AttrKeyAction, "resolve_poll").
		AddAttribute("winning_side", string(msg.WinningSide))

	if ti.TotalSupply.IsPositive() {
		dilution := ti.TotalSupply.Mul(math.NewInt(BlitzMultiplier))
		mint, err := host.NewExecMsg(host.Address(losing), token.ExecuteMsg{
			Mint: &token.MintMsg{Recipient: cfg.BlitzSink, Amount: dilution},
		})
		if err != nil {
			return nil, err
		}
		resp.AddMessage(mint).AddAttribute("blitz_minted", dilution.String())
	}

	return resp, nil
}

func (m *Market) Query(deps host.Deps, env host.Env, raw json.RawMessage) ([]byte, error) {
	var msg QueryMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnknownMessage, err)
	}

	switch {
	case msg.MarketInfo != nil:
		cfg, err := configItem.Load(deps.Storage)
		if err != nil {
			return nil, err
		}
		return json.Marshal(MarketInfoResponse{
			Controller:  cfg.Controller,
			Creator:     cfg.Creator,
			YesToken:    cfg.YesToken,
			NoToken:     cfg.NoToken,
			EndTime:     cfg.EndTime,
			TotalStaked: cfg.TotalStaked,
			Resolved:    cfg.Resolved,
			WinningSide: cfg.WinningSide,
			Denom:       cfg.Denom,
		})
	case msg.EpochInfo != nil:
		rec, err := epochs.Load(deps.Storage, msg.EpochInfo.EpochIndex)
		if err != nil {
			return nil, err
		}
		stakers, err := epochStakers.MayLoad(deps.Storage, msg.EpochInfo.EpochIndex)
		if err != nil {
			return nil, err
		}
		return json.Marshal(EpochInfoResponse{
			Index:              rec.Index,
			StartTime:          rec.StartTime,
			EndTime:            rec.EndTime,
			Distribution:       rec.Distribution,
			TotalStaked:        rec.TotalStaked,
			Distributed:        rec.Distributed,
			LastProcessedIndex: rec.LastProcessedIndex,
			StakerCount:        uint64(len(stakers)),
		})
	case msg.UserStakes != nil:
		stakes, err := userStakes.MayLoad(deps.Storage, stakesKey(msg.UserStakes.User, msg.UserStakes.EpochIndex))
		if err != nil {
			return nil, err
		}
		out := UserStakesResponse{Stakes: make([]StakeResponse, 0, len(stakes))}
		for _, s := range stakes {
			out.Stakes = append(out.Stakes, StakeResponse{Amount: s.Amount, Side: s.Side, Withdrawn: s.Withdrawn})
		}
		return json.Marshal(out)
	case msg.TotalStaked != nil:
		cfg, err := configItem.Load(deps.Storage)
		if err != nil {
			return nil, err
		}
		yes, err := loadSideTotal(deps.Storage, totalYes)
		if err != nil {
			return nil, err
		}
		no, err := loadSideTotal(deps.Storage, totalNo)
		if err != nil {
			return nil, err
		}
		return json.Marshal(TotalStakedResponse{TotalYes: yes, TotalNo: no, Denom: cfg.Denom})
	default:
		return nil, types.ErrUnknownMessage
	}
}

func (m *Market) Reply(deps host.Deps, env host.Env, reply host.Reply) (*host.Response, error) {
	return nil, types.ErrUnknownContinuation
}

func addSideTotal(kv ledger.KV, side types.Side, amount math.Int) error {
	item := totalYes
	if side == types.SideNo {
		item = totalNo
	}
	cur, err := loadSideTotal(kv, item)
	if err != nil {
		return err
	}
	return item.Save(kv, cur.Add(amount))
}

func loadSideTotal(kv ledger.KV, item ledger.Item[math.Int]) (math.Int, error) {
	cur, err := item.Load(kv)
	if ledger.IsNotFoundError(err) {
		return math.ZeroInt(), nil
	}
	return cur, err
}
