// Package controller implements the market factory. Creating a poll is a
// three-step saga: instantiate the yes token, then the no token, then the
// market engine, each step committed in its own transaction and chained
// through host continuations. Only a fully provisioned market is registered;
// a saga that fails midway leaves its record and any components it already
// created behind (see DESIGN.md).
package controller

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/pollstake/pollstake/internal/host"
	"github.com/pollstake/pollstake/internal/ledger"
	"github.com/pollstake/pollstake/internal/market"
	"github.com/pollstake/pollstake/internal/token"
	"github.com/pollstake/pollstake/internal/types"
)

const tokenDecimals uint8 = 18

type Controller struct{}

func Factory() host.Component {
	return &Controller{}
}

func (c *Controller) Instantiate(deps host.Deps, env host.Env, info host.MessageInfo, raw json.RawMessage) (*host.Response, error) {
	var msg InstantiateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnknownMessage, err)
	}
	if msg.ProtocolFeeBps > MaxProtocolFeeBps {
		return nil, fmt.Errorf("%w: %d bps over cap %d", types.ErrFeeTooHigh, msg.ProtocolFeeBps, MaxProtocolFeeBps)
	}

	if err := configItem.Save(deps.Storage, controllerConfig{
		Owner:          msg.Owner,
		CreationFee:    msg.CreationFee,
		ProtocolFeeBps: msg.ProtocolFeeBps,
		MarketCodeID:   msg.MarketCodeID,
		TokenCodeID:    msg.TokenCodeID,
		Denom:          msg.Denom,
		RewardPool:     msg.RewardPool,
		BlitzSink:      msg.BlitzSink,
	}); err != nil {
		return nil, err
	}
	if err := marketCount.Save(deps.Storage, 0); err != nil {
		return nil, err
	}

	return host.NewResponse().
		AddAttribute(host.AttrKeyAction, "instantiate_controller").
		AddAttribute("owner", msg.Owner), nil
}

func (c *Controller) Execute(deps host.Deps, env host.Env, info host.MessageInfo, raw json.RawMessage) (*host.Response, error) {
	var msg ExecuteMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnknownMessage, err)
	}

	switch {
	case msg.CreatePoll != nil:
		return c.executeCreatePoll(deps, env, info, msg.CreatePoll)
	case msg.ResolveMarket != nil:
		return c.executeResolveMarket(deps, info, msg.ResolveMarket)
	case msg.UpdateMarketTemplate != nil:
		return c.executeAdmin(deps, info, func(cfg *controllerConfig) error {
			cfg.MarketCodeID = msg.UpdateMarketTemplate.CodeID
			return nil
		}, "update_market_template")
	case msg.UpdateTokenTemplate != nil:
		return c.executeAdmin(deps, info, func(cfg *controllerConfig) error {
			cfg.TokenCodeID = msg.UpdateTokenTemplate.CodeID
			return nil
		}, "update_token_template")
	case msg.SetCreationFee != nil:
		return c.executeAdmin(deps, info, func(cfg *controllerConfig) error {
			cfg.CreationFee = msg.SetCreationFee.Amount
			return nil
		}, "set_creation_fee")
	case msg.SetProtocolFee != nil:
		return c.executeAdmin(deps, info, func(cfg *controllerConfig) error {
			if msg.SetProtocolFee.Bps > MaxProtocolFeeBps {
				return fmt.Errorf("%w: %d bps over cap %d", types.ErrFeeTooHigh, msg.SetProtocolFee.Bps, MaxProtocolFeeBps)
			}
			cfg.ProtocolFeeBps = msg.SetProtocolFee.Bps
			return nil
		}, "set_protocol_fee")
	case msg.WithdrawFees != nil:
		return c.executeWithdrawFees(deps, env, info, msg.WithdrawFees)
	default:
		return nil, types.ErrUnknownMessage
	}
}

func (c *Controller) executeCreatePoll(deps host.Deps, env host.Env, info host.MessageInfo, msg *CreatePollMsg) (*host.Response, error) {
	cfg, err := configItem.Load(deps.Storage)
	if err != nil {
		return nil, err
	}

	if msg.Question == "" {
		return nil, types.ErrEmptyQuestion
	}
	if msg.YesTokenName == "" || msg.NoTokenName == "" {
		return nil, types.ErrEmptyTokenNames
	}
	if msg.YesTokenSymbol == "" || msg.NoTokenSymbol == "" {
		return nil, types.ErrEmptyTokenSymbols
	}
	dur := time.Duration(msg.DurationSeconds) * time.Second
	if dur < MinPollDuration || dur > MaxPollDuration {
		return nil, fmt.Errorf("%w: %d seconds", types.ErrInvalidDuration, msg.DurationSeconds)
	}
	if cfg.CreationFee.IsPositive() {
		paid, ok := host.FindCoin(info.Funds, cfg.Denom)
		if !ok {
			return nil, fmt.Errorf("%w: expected %s", types.ErrNoPayment, cfg.Denom)
		}
		if paid.Amount.LT(cfg.CreationFee) {
			return nil, fmt.Errorf("%w: creation fee is %s%s", types.ErrPaymentMismatch, cfg.CreationFee, cfg.Denom)
		}
	}

	sagaID := uuid.NewString()
	saga := provisioningState{
		ID:              sagaID,
		State:           types.SagaYesTokenPending,
		Creator:         info.Sender.String(),
		Question:        msg.Question,
		Avatar:          msg.Avatar,
		Description:     msg.Description,
		DurationSeconds: msg.DurationSeconds,
		YesTokenName:    msg.YesTokenName,
		YesTokenSymbol:  msg.YesTokenSymbol,
		NoTokenName:     msg.NoTokenName,
		NoTokenSymbol:   msg.NoTokenSymbol,
		StartedAt:       env.BlockTime,
	}
	if err := sagas.Save(deps.Storage, sagaID, saga); err != nil {
		return nil, err
	}

	create, err := host.NewInstantiateMsg(cfg.TokenCodeID, token.InstantiateMsg{
		Name:     msg.YesTokenName,
		Symbol:   msg.YesTokenSymbol,
		Decimals: tokenDecimals,
		Minter:   env.Contract.String(),
	}, "yes token "+msg.YesTokenSymbol, ReplyYesTokenCreated, []byte(sagaID))
	if err != nil {
		return nil, err
	}

	return host.NewResponse().
		AddAttribute(host.AttrKeyAction, "create_poll").
		AddAttribute("saga_id", sagaID).
		AddAttribute("creator", saga.Creator).
		AddMessage(create), nil
}

// executeResolveMarket relays a resolution to the market engine. Markets
// only accept ResolvePoll from their controller, so the factory owner is
// the sole path to settle a poll.
func (c *Controller) executeResolveMarket(deps host.Deps, info host.MessageInfo, msg *ResolveMarketMsg) (*host.Response, error) {
	cfg, err := configItem.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	if info.Sender.String() != cfg.Owner {
		return nil, types.ErrUnauthorized
	}
	if _, err := marketsByAddr.Load(deps.Storage, msg.Market); err != nil {
		return nil, fmt.Errorf("unknown market %s: %w", msg.Market, err)
	}

	resolve, err := host.NewExecMsg(host.Address(msg.Market), market.ExecuteMsg{
		ResolvePoll: &market.ResolvePollMsg{WinningSide: msg.WinningSide},
	})
	if err != nil {
		return nil, err
	}

	return host.NewResponse().
		AddAttribute(host.AttrKeyAction, "resolve_market").
		AddAttribute("market", msg.Market).
		AddAttribute("winning_side", string(msg.WinningSide)).
		AddMessage(resolve), nil
}

func (c *Controller) executeAdmin(deps host.Deps, info host.MessageInfo, mutate func(*controllerConfig) error, action string) (*host.Response, error) {
	cfg, err := configItem.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	if info.Sender.String() != cfg.Owner {
		return nil, types.ErrUnauthorized
	}
	if err := mutate(&cfg); err != nil {
		return nil, err
	}
	if err := configItem.Save(deps.Storage, cfg); err != nil {
		return nil, err
	}
	return host.NewResponse().AddAttribute(host.AttrKeyAction, action), nil
}

func (c *Controller) executeWithdrawFees(deps host.Deps, env host.Env, info host.MessageInfo, msg *WithdrawFeesMsg) (*host.Response, error) {
	cfg, err := configItem.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	if info.Sender.String() != cfg.Owner {
		return nil, types.ErrUnauthorized
	}

	bal, err := deps.Querier.BankBalance(env.Contract, cfg.Denom)
	if err != nil {
		return nil, err
	}
	if !bal.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: no accrued fees", types.ErrInsufficientBalance)
	}

	return host.NewResponse().
		AddAttribute(host.AttrKeyAction, "withdraw_fees").
		AddAttribute("recipient", msg.To).
		AddAttribute("amount", bal.Amount.String()).
		AddMessage(host.NewBankSendMsg(host.Address(msg.To), bal)), nil
}

// Reply advances the provisioning saga. The payload carries the saga id;
// the reply id tells us which step just committed.
func (c *Controller) Reply(deps host.Deps, env host.Env, reply host.Reply) (*host.Response, error) {
	sagaID := string(reply.Payload)
	saga, err := sagas.Load(deps.Storage, sagaID)
	if err != nil {
		return nil, fmt.Errorf("continuation for unknown saga %q: %w", sagaID, err)
	}

	addr, ok := reply.CreatedAddress()
	if !ok {
		return nil, types.ErrNoComponentAddress
	}

	switch reply.ID {
	case ReplyYesTokenCreated:
		return c.onYesTokenCreated(deps, env, saga, addr)
	case ReplyNoTokenCreated:
		return c.onNoTokenCreated(deps, env, saga, addr)
	case ReplyMarketCreated:
		return c.onMarketCreated(deps, env, saga, addr)
	default:
		return nil, fmt.Errorf("%w: reply id %d", types.ErrUnknownContinuation, reply.ID)
	}
}

func (c *Controller) onYesTokenCreated(deps host.Deps, env host.Env, saga provisioningState, addr host.Address) (*host.Response, error) {
	next, ok := saga.State.NextState()
	if !ok || saga.State != types.SagaYesTokenPending {
		return nil, fmt.Errorf("%w: saga %s in state %s", types.ErrUnknownContinuation, saga.ID, saga.State)
	}
	cfg, err := configItem.Load(deps.Storage)
	if err != nil {
		return nil, err
	}

	saga.YesToken = addr.String()
	saga.State = next
	if err := sagas.Save(deps.Storage, saga.ID, saga); err != nil {
		return nil, err
	}

	create, err := host.NewInstantiateMsg(cfg.TokenCodeID, token.InstantiateMsg{
		Name:     saga.NoTokenName,
		Symbol:   saga.NoTokenSymbol,
		Decimals: tokenDecimals,
		Minter:   env.Contract.String(),
	}, "no token "+saga.NoTokenSymbol, ReplyNoTokenCreated, []byte(saga.ID))
	if err != nil {
		return nil, err
	}

	return host.NewResponse().
		AddAttribute(host.AttrKeyAction, "yes_token_created").
		AddAttribute("saga_id", saga.ID).
		AddAttribute("token", addr.String()).
		AddMessage(create), nil
}

func (c *Controller) onNoTokenCreated(deps host.Deps, env host.Env, saga provisioningState, addr host.Address) (*host.Response, error) {
	next, ok := saga.State.NextState()
	if !ok || saga.State != types.SagaNoTokenPending {
		return nil, fmt.Errorf("%w: saga %s in state %s", types.ErrUnknownContinuation, saga.ID, saga.State)
	}
	cfg, err := configItem.Load(deps.Storage)
	if err != nil {
		return nil, err
	}

	saga.NoToken = addr.String()
	saga.State = next
	if err := sagas.Save(deps.Storage, saga.ID, saga); err != nil {
		return nil, err
	}

	create, err := host.NewInstantiateMsg(cfg.MarketCodeID, market.InstantiateMsg{
		Controller:      env.Contract.String(),
		Creator:         saga.Creator,
		YesToken:        saga.YesToken,
		NoToken:         saga.NoToken,
		DurationSeconds: saga.DurationSeconds,
		Denom:           cfg.Denom,
		RewardPool:      cfg.RewardPool,
		BlitzSink:       cfg.BlitzSink,
	}, "market "+saga.Question, ReplyMarketCreated, []byte(saga.ID))
	if err != nil {
		return nil, err
	}

	return host.NewResponse().
		AddAttribute(host.AttrKeyAction, "no_token_created").
		AddAttribute("saga_id", saga.ID).
		AddAttribute("token", addr.String()).
		AddMessage(create), nil
}

// onMarketCreated registers the fully provisioned market, hands mint rights
// on both outcome tokens to it, and closes the saga.
func (c *Controller) onMarketCreated(deps host.Deps, env host.Env, saga provisioningState, addr host.Address) (*host.Response, error) {
	if saga.State != types.SagaMarketPending {
		return nil, fmt.Errorf("%w: saga %s in state %s", types.ErrUnknownContinuation, saga.ID, saga.State)
	}

	count, err := loadMarketCount(deps.Storage)
	if err != nil {
		return nil, err
	}

	entry := MarketEntry{
		Sequence:    count,
		Address:     addr.String(),
		Creator:     saga.Creator,
		Question:    saga.Question,
		Avatar:      saga.Avatar,
		Description: saga.Description,
		YesToken:    saga.YesToken,
		NoToken:     saga.NoToken,
		CreatedAt:   saga.StartedAt,
		EndTime:     env.BlockTime.Add(time.Duration(saga.DurationSeconds) * time.Second),
	}
	if err := marketsBySeq.Save(deps.Storage, count, entry); err != nil {
		return nil, err
	}
	if err := marketsByAddr.Save(deps.Storage, entry.Address, count); err != nil {
		return nil, err
	}
	if err := marketCount.Save(deps.Storage, count+1); err != nil {
		return nil, err
	}
	sagas.Remove(deps.Storage, saga.ID)

	resp := host.NewResponse().
		AddAttribute(host.AttrKeyAction, "poll_created").
		AddAttribute("market", entry.Address).
		AddAttribute("creator", entry.Creator).
		AddAttribute("question", entry.Question).
		AddAttribute("avatar", entry.Avatar).
		AddAttribute("description", entry.Description).
		AddAttribute("yes_token", entry.YesToken).
		AddAttribute("no_token", entry.NoToken).
		AddAttribute("end_time", entry.EndTime.UTC().Format(time.RFC3339)).
		AddAttribute("sequence", strconv.FormatUint(entry.Sequence, 10))

	for _, tok := range []string{saga.YesToken, saga.NoToken} {
		handoff, err := host.NewExecMsg(host.Address(tok), token.ExecuteMsg{
			UpdateMinter: &token.UpdateMinterMsg{NewMinter: entry.Address},
		})
		if err != nil {
			return nil, err
		}
		resp.AddMessage(handoff)
	}
	return resp, nil
}

func (c *Controller) Query(deps host.Deps, env host.Env, raw json.RawMessage) ([]byte, error) {
	var msg QueryMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnknownMessage, err)
	}

	switch {
	case msg.GetConfig != nil:
		cfg, err := configItem.Load(deps.Storage)
		if err != nil {
			return nil, err
		}
		return json.Marshal(ConfigResponse(cfg))
	case msg.GetMarketCount != nil:
		count, err := loadMarketCount(deps.Storage)
		if err != nil {
			return nil, err
		}
		return json.Marshal(MarketCountResponse{Count: count})
	case msg.GetMarketAt != nil:
		count, err := loadMarketCount(deps.Storage)
		if err != nil {
			return nil, err
		}
		if msg.GetMarketAt.Index >= count {
			return nil, fmt.Errorf("%w: index %d, count %d", types.ErrIndexOutOfBounds, msg.GetMarketAt.Index, count)
		}
		entry, err := marketsBySeq.Load(deps.Storage, msg.GetMarketAt.Index)
		if err != nil {
			return nil, err
		}
		return json.Marshal(entry)
	case msg.IsKnownMarket != nil:
		return json.Marshal(KnownMarketResponse{
			Known: marketsByAddr.Has(deps.Storage, msg.IsKnownMarket.Address),
		})
	case msg.GetMarketDetail != nil:
		return c.queryMarketDetail(deps, msg.GetMarketDetail.Address)
	case msg.GetStats != nil:
		count, err := loadMarketCount(deps.Storage)
		if err != nil {
			return nil, err
		}
		return json.Marshal(StatsResponse{
			MarketCount:  count,
			PendingSagas: uint64(len(sagas.Keys(deps.Storage))),
		})
	case msg.ListActiveMarkets != nil:
		return c.queryActiveMarkets(deps, env, msg.ListActiveMarkets)
	default:
		return nil, types.ErrUnknownMessage
	}
}

func (c *Controller) queryMarketDetail(deps host.Deps, address string) ([]byte, error) {
	seq, err := marketsByAddr.Load(deps.Storage, address)
	if err != nil {
		return nil, fmt.Errorf("unknown market %s: %w", address, err)
	}
	entry, err := marketsBySeq.Load(deps.Storage, seq)
	if err != nil {
		return nil, err
	}
	mi, err := host.QueryAs[market.MarketInfoResponse](deps.Querier, host.Address(address), market.QueryMsg{MarketInfo: &struct{}{}})
	if err != nil {
		return nil, err
	}
	return json.Marshal(MarketDetailResponse{
		Entry:       entry,
		Resolved:    mi.Resolved,
		WinningSide: mi.WinningSide,
		TotalStaked: mi.TotalStaked,
	})
}

// queryActiveMarkets pages through the sequence index, keeping markets that
// are neither resolved nor past their end time. NextCursor is the sequence
// to resume from, unset on the last page.
func (c *Controller) queryActiveMarkets(deps host.Deps, env host.Env, q *ActiveMarketsQuery) ([]byte, error) {
	count, err := loadMarketCount(deps.Storage)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit == 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	var start uint64
	if q.Cursor != nil {
		start = *q.Cursor
	}

	out := ActiveMarketsResponse{Markets: []MarketEntry{}}
	for seq := start; seq < count; seq++ {
		if uint32(len(out.Markets)) == limit {
			next := seq
			out.NextCursor = &next
			break
		}
		entry, err := marketsBySeq.Load(deps.Storage, seq)
		if err != nil {
			return nil, err
		}
		if !env.BlockTime.Before(entry.EndTime) {
			continue
		}
		mi, err := host.QueryAs[market.MarketInfoResponse](deps.Querier, host.Address(entry.Address), market.QueryMsg{MarketInfo: &struct{}{}})
		if err != nil {
			return nil, err
		}
		if mi.Resolved {
			continue
		}
		out.Markets = append(out.Markets, entry)
	}
	return json.Marshal(out)
}

func loadMarketCount(kv ledger.KV) (uint64, error) {
	count, err := marketCount.Load(kv)
	if ledger.IsNotFoundError(err) {
		return 0, nil
	}
	return count, err
}
