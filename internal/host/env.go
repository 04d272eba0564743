package host

import (
	"encoding/json"
	"fmt"
	"time"

	"cosmossdk.io/math"

	"github.com/pollstake/pollstake/internal/ledger"
)

// Address identifies a component instance or an external account.
type Address string

func (a Address) String() string {
	return string(a)
}

// Coin is an amount in a named denomination.
type Coin struct {
	Denom  string   `json:"denom"`
	Amount math.Int `json:"amount"`
}

func NewCoin(denom string, amount math.Int) Coin {
	return Coin{Denom: denom, Amount: amount}
}

// FindCoin returns the coin with the given denom from funds, if present.
func FindCoin(funds []Coin, denom string) (Coin, bool) {
	for _, c := range funds {
		if c.Denom == denom {
			return c, true
		}
	}
	return Coin{}, false
}

// Env describes the transaction context a component handler runs in.
type Env struct {
	Contract  Address
	BlockTime time.Time
}

// MessageInfo carries the caller identity and any funds attached to the call.
type MessageInfo struct {
	Sender Address
	Funds  []Coin
}

type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is emitted by the host for every handled message. Committed events
// are returned to the external caller and drive the query index.
type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

// Well-known event types and attribute keys.
const (
	EventTypeExecute     = "execute"
	EventTypeInstantiate = "instantiate"

	AttrKeyContractAddress = "_contract_address"
	AttrKeyCodeID          = "code_id"
	AttrKeyAction          = "action"
)

// AttrValue returns the value of the first attribute with the given key.
func (e Event) AttrValue(key string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Response is what a component handler returns: follow-up messages executed
// within the same transaction, and attributes recorded on the event.
type Response struct {
	Messages   []Msg
	Attributes []Attribute
}

func NewResponse() *Response {
	return &Response{}
}

func (r *Response) AddAttribute(key, value string) *Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

func (r *Response) AddMessage(msg Msg) *Response {
	r.Messages = append(r.Messages, msg)
	return r
}

// Msg is the closed set of messages a component may emit. Exactly one
// variant is set.
type Msg struct {
	Exec        *ExecMsg        `json:"exec,omitempty"`
	Instantiate *InstantiateMsg `json:"instantiate,omitempty"`
	BankSend    *BankSendMsg    `json:"bank_send,omitempty"`
}

// ExecMsg calls another component within the same transaction.
type ExecMsg struct {
	Contract Address         `json:"contract"`
	Msg      json.RawMessage `json:"msg"`
	Funds    []Coin          `json:"funds,omitempty"`
}

// InstantiateMsg creates a new component from a stored code template.
// A non-zero ReplyID asks the host to deliver a Reply continuation to the
// emitter in a separate transaction once the creation has committed; the
// opaque Payload travels with it.
type InstantiateMsg struct {
	CodeID  uint64          `json:"code_id"`
	Msg     json.RawMessage `json:"msg"`
	Label   string          `json:"label"`
	Funds   []Coin          `json:"funds,omitempty"`
	ReplyID uint64          `json:"reply_id,omitempty"`
	Payload []byte          `json:"payload,omitempty"`
}

// BankSendMsg transfers native funds from the emitting component.
type BankSendMsg struct {
	ToAddress Address `json:"to_address"`
	Amount    Coin    `json:"amount"`
}

// NewExecMsg marshals msg and wraps it as an exec variant.
func NewExecMsg(contract Address, msg any, funds ...Coin) (Msg, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return Msg{}, fmt.Errorf("encode exec msg for %s: %w", contract, err)
	}
	return Msg{Exec: &ExecMsg{Contract: contract, Msg: raw, Funds: funds}}, nil
}

// NewInstantiateMsg marshals msg and wraps it as an instantiate variant.
func NewInstantiateMsg(codeID uint64, msg any, label string, replyID uint64, payload []byte) (Msg, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return Msg{}, fmt.Errorf("encode instantiate msg for code %d: %w", codeID, err)
	}
	return Msg{Instantiate: &InstantiateMsg{
		CodeID:  codeID,
		Msg:     raw,
		Label:   label,
		ReplyID: replyID,
		Payload: payload,
	}}, nil
}

func NewBankSendMsg(to Address, amount Coin) Msg {
	return Msg{BankSend: &BankSendMsg{ToAddress: to, Amount: amount}}
}

// Reply is the continuation delivered after an instantiate-with-reply has
// committed. Events cover the creation subtree; the created component's
// address is carried in the instantiate event.
type Reply struct {
	ID      uint64
	Payload []byte
	Events  []Event
}

// CreatedAddress extracts the created component address from the reply
// events, mirroring how creation results surface the new address.
func (r Reply) CreatedAddress() (Address, bool) {
	for _, e := range r.Events {
		if e.Type != EventTypeInstantiate {
			continue
		}
		if v, ok := e.AttrValue(AttrKeyContractAddress); ok {
			return Address(v), true
		}
	}
	return "", false
}

// Querier gives handlers read access to other components and bank balances
// within the current transaction view.
type Querier interface {
	Query(contract Address, msg any) ([]byte, error)
	BankBalance(addr Address, denom string) (Coin, error)
}

// Deps is what the host hands a component handler.
type Deps struct {
	Storage ledger.KV
	Querier Querier
}

// QueryAs runs a query against contract and decodes the result into T.
func QueryAs[T any](q Querier, contract Address, msg any) (T, error) {
	var out T
	raw, err := q.Query(contract, msg)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode query result from %s: %w", contract, err)
	}
	return out, nil
}

// Component is a state machine instance hosted behind an address.
// Handlers run inside a host transaction; returning an error reverts it.
type Component interface {
	Instantiate(deps Deps, env Env, info MessageInfo, msg json.RawMessage) (*Response, error)
	Execute(deps Deps, env Env, info MessageInfo, msg json.RawMessage) (*Response, error)
	Query(deps Deps, env Env, msg json.RawMessage) ([]byte, error)
	Reply(deps Deps, env Env, reply Reply) (*Response, error)
}
