package controller

import (
	"time"

	"cosmossdk.io/math"

	"github.com/pollstake/pollstake/internal/ledger"
	"github.com/pollstake/pollstake/internal/types"
)

const (
	// MaxProtocolFeeBps caps the configurable protocol fee at 10%.
	MaxProtocolFeeBps uint64 = 1000

	MinPollDuration = time.Minute
	MaxPollDuration = 30 * 24 * time.Hour

	// Continuation tags for the provisioning saga. Each reply carries the
	// saga id in its payload, so concurrent provisionings never collide.
	ReplyYesTokenCreated uint64 = 1
	ReplyNoTokenCreated  uint64 = 2
	ReplyMarketCreated   uint64 = 3

	defaultPageLimit uint32 = 10
	maxPageLimit     uint32 = 30
)

type controllerConfig struct {
	Owner          string   `json:"owner"`
	CreationFee    math.Int `json:"creation_fee"`
	ProtocolFeeBps uint64   `json:"protocol_fee_bps"`
	MarketCodeID   uint64   `json:"market_code_id"`
	TokenCodeID    uint64   `json:"token_code_id"`
	Denom          string   `json:"denom"`
	RewardPool     math.Int `json:"reward_pool"`
	BlitzSink      string   `json:"blitz_sink"`
}

// provisioningState tracks one in-flight saga. A failed continuation leaves
// the record behind together with whatever components it already created;
// completed sagas delete it.
type provisioningState struct {
	ID              string          `json:"id"`
	State           types.SagaState `json:"state"`
	Creator         string          `json:"creator"`
	Question        string          `json:"question"`
	Avatar          string          `json:"avatar"`
	Description     string          `json:"description"`
	DurationSeconds uint64          `json:"duration_seconds"`
	YesTokenName    string          `json:"yes_token_name"`
	YesTokenSymbol  string          `json:"yes_token_symbol"`
	NoTokenName     string          `json:"no_token_name"`
	NoTokenSymbol   string          `json:"no_token_symbol"`
	YesToken        string          `json:"yes_token,omitempty"`
	NoToken         string          `json:"no_token,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
}

var (
	configItem    = ledger.NewItem[controllerConfig]("controller_config")
	marketCount   = ledger.NewItem[uint64]("market_count")
	marketsBySeq  = ledger.NewMap[uint64, MarketEntry]("markets_by_seq", ledger.U64Key)
	marketsByAddr = ledger.NewMap[string, uint64]("markets_by_addr", ledger.StringKey)
	sagas         = ledger.NewMap[string, provisioningState]("provisioning", ledger.StringKey)
)
