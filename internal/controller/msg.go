package controller

import (
	"time"

	"cosmossdk.io/math"

	"github.com/pollstake/pollstake/internal/types"
)

// InstantiateMsg configures the factory.
type InstantiateMsg struct {
	Owner          string   `json:"owner"`
	CreationFee    math.Int `json:"creation_fee"`
	ProtocolFeeBps uint64   `json:"protocol_fee_bps"`
	MarketCodeID   uint64   `json:"market_code_id"`
	TokenCodeID    uint64   `json:"token_code_id"`
	Denom          string   `json:"denom"`
	RewardPool     math.Int `json:"reward_pool"`
	BlitzSink      string   `json:"blitz_sink"`
}

type ExecuteMsg struct {
	CreatePoll           *CreatePollMsg           `json:"create_poll,omitempty"`
	ResolveMarket        *ResolveMarketMsg        `json:"resolve_market,omitempty"`
	UpdateMarketTemplate *UpdateMarketTemplateMsg `json:"update_market_template,omitempty"`
	UpdateTokenTemplate  *UpdateTokenTemplateMsg  `json:"update_token_template,omitempty"`
	SetCreationFee       *SetCreationFeeMsg       `json:"set_creation_fee,omitempty"`
	SetProtocolFee       *SetProtocolFeeMsg       `json:"set_protocol_fee,omitempty"`
	WithdrawFees         *WithdrawFeesMsg         `json:"withdraw_fees,omitempty"`
}

// CreatePollMsg starts the provisioning saga for a new market.
type CreatePollMsg struct {
	Question        string `json:"question"`
	Avatar          string `json:"avatar"`
	Description     string `json:"description"`
	DurationSeconds uint64 `json:"duration_seconds"`
	YesTokenName    string `json:"yes_token_name"`
	YesTokenSymbol  string `json:"yes_token_symbol"`
	NoTokenName     string `json:"no_token_name"`
	NoTokenSymbol   string `json:"no_token_symbol"`
}

type ResolveMarketMsg struct {
	Market      string     `json:"market"`
	WinningSide types.Side `json:"winning_side"`
}

type UpdateMarketTemplateMsg struct {
	CodeID uint64 `json:"code_id"`
}

type UpdateTokenTemplateMsg struct {
	CodeID uint64 `json:"code_id"`
}

type SetCreationFeeMsg struct {
	Amount math.Int `json:"amount"`
}

type SetProtocolFeeMsg struct {
	Bps uint64 `json:"bps"`
}

type WithdrawFeesMsg struct {
	To string `json:"to"`
}

type QueryMsg struct {
	GetConfig         *struct{}           `json:"get_config,omitempty"`
	GetMarketCount    *struct{}           `json:"get_market_count,omitempty"`
	GetMarketAt       *MarketAtQuery      `json:"get_market_at,omitempty"`
	IsKnownMarket     *KnownMarketQuery   `json:"is_known_market,omitempty"`
	GetMarketDetail   *MarketDetailQuery  `json:"get_market_detail,omitempty"`
	GetStats          *struct{}           `json:"get_stats,omitempty"`
	ListActiveMarkets *ActiveMarketsQuery `json:"list_active_markets,omitempty"`
}

type MarketAtQuery struct {
	Index uint64 `json:"index"`
}

type KnownMarketQuery struct {
	Address string `json:"address"`
}

type MarketDetailQuery struct {
	Address string `json:"address"`
}

type ActiveMarketsQuery struct {
	Cursor *uint64 `json:"cursor,omitempty"`
	Limit  uint32  `json:"limit,omitempty"`
}

type ConfigResponse struct {
	Owner          string   `json:"owner"`
	CreationFee    math.Int `json:"creation_fee"`
	ProtocolFeeBps uint64   `json:"protocol_fee_bps"`
	MarketCodeID   uint64   `json:"market_code_id"`
	TokenCodeID    uint64   `json:"token_code_id"`
	Denom          string   `json:"denom"`
	RewardPool     math.Int `json:"reward_pool"`
	BlitzSink      string   `json:"blitz_sink"`
}

type MarketCountResponse struct {
	Count uint64 `json:"count"`
}

// MarketEntry is the immutable registry record written when a provisioning
// saga completes.
type MarketEntry struct {
	Sequence    uint64    `json:"sequence"`
	Address     string    `json:"address"`
	Creator     string    `json:"creator"`
	Question    string    `json:"question"`
	Avatar      string    `json:"avatar"`
	Description string    `json:"description"`
	YesToken    string    `json:"yes_token"`
	NoToken     string    `json:"no_token"`
	CreatedAt   time.Time `json:"created_at"`
	EndTime     time.Time `json:"end_time"`
}

type KnownMarketResponse struct {
	Known bool `json:"known"`
}

type MarketDetailResponse struct {
	Entry       MarketEntry `json:"entry"`
	Resolved    bool        `json:"resolved"`
	WinningSide *types.Side `json:"winning_side,omitempty"`
	TotalStaked math.Int    `json:"total_staked"`
}

type StatsResponse struct {
	MarketCount  uint64 `json:"market_count"`
	PendingSagas uint64 `json:"pending_sagas"`
}

type ActiveMarketsResponse struct {
	Markets    []MarketEntry `json:"markets"`
	NextCursor *uint64       `json:"next_cursor,omitempty"`
}
