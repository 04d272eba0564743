// Package token implements the outcome share token: a mintable, burnable
// fungible unit handed to stakers during reward distribution. Only the
// configured minter may mint; balances are owned here and mutated solely
// through the execute entry points.
package token

import (
	"encoding/json"
	"fmt"

	"cosmossdk.io/math"

	"github.com/pollstake/pollstake/internal/host"
	"github.com/pollstake/pollstake/internal/ledger"
	"github.com/pollstake/pollstake/internal/types"
)

type tokenInfo struct {
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	Decimals    uint8    `json:"decimals"`
	TotalSupply math.Int `json:"total_supply"`
	Minter      string   `json:"minter"`
}

var (
	infoItem = ledger.NewItem[tokenInfo]("token_info")
	balances = ledger.NewMap[string, math.Int]("balances", ledger.StringKey)
)

type Token struct{}

func Factory() host.Component {
	return &Token{}
}

func (t *Token) Instantiate(deps host.Deps, env host.Env, info host.MessageInfo, raw json.RawMessage) (*host.Response, error) {
	var msg InstantiateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnknownMessage, err)
	}
	if msg.Name == "" {
		return nil, types.ErrEmptyTokenNames
	}
	if msg.Symbol == "" {
		return nil, types.ErrEmptyTokenSymbols
	}

	if err := infoItem.Save(deps.Storage, tokenInfo{
		Name:        msg.Name,
		Symbol:      msg.Symbol,
		Decimals:    msg.Decimals,
		TotalSupply: math.ZeroInt(),
		Minter:      msg.Minter,
	}); err != nil {
		return nil, err
	}

	return host.NewResponse().
		AddAttribute(host.AttrKeyAction, "instantiate_token").
		AddAttribute("symbol", msg.Symbol), nil
}

func (t *Token) Execute(deps host.Deps, env host.Env, info host.MessageInfo, raw json.RawMessage) (*host.Response, error) {
	var msg ExecuteMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnknownMessage, err)
	}

	switch {
	case msg.Mint != nil:
		return t.executeMint(deps, info, msg.Mint)
	case msg.Burn != nil:
		return t.executeBurn(deps, info, msg.Burn)
	case msg.Transfer != nil:
		return t.executeTransfer(deps, info, msg.Transfer)
	case msg.UpdateMinter != nil:
		return t.executeUpdateMinter(deps, info, msg.UpdateMinter)
	default:
		return nil, types.ErrUnknownMessage
	}
}

func (t *Token) executeMint(deps host.Deps, info host.MessageInfo, msg *MintMsg) (*host.Response, error) {
	ti, err := infoItem.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	if info.Sender.String() != ti.Minter {
		return nil, types.ErrUnauthorized
	}
	if err := validateAmount(msg.Amount, "mint"); err != nil {
		return nil, err
	}

	if err := addBalance(deps.Storage, msg.Recipient, msg.Amount); err != nil {
		return nil, err
	}
	ti.TotalSupply = ti.TotalSupply.Add(msg.Amount)
	if err := infoItem.Save(deps.Storage, ti); err != nil {
		return nil, err
	}

	return host.NewResponse().
		AddAttribute(host.AttrKeyAction, "mint").
		AddAttribute("recipient", msg.Recipient).
		AddAttribute("amount", msg.Amount.String()), nil
}

func (t *Token) executeBurn(deps host.Deps, info host.MessageInfo, msg *BurnMsg) (*host.Response, error) {
	if err := validateAmount(msg.Amount, "burn"); err != nil {
		return nil, err
	}
	ti, err := infoItem.Load(deps.Storage)
	if err != nil {
		return nil, err
	}

	if err := subBalance(deps.Storage, info.Sender.String(), msg.Amount); err != nil {
		return nil, err
	}
	ti.TotalSupply = ti.TotalSupply.Sub(msg.Amount)
	if err := infoItem.Save(deps.Storage, ti); err != nil {
		return nil, err
	}

	return host.NewResponse().
		AddAttribute(host.AttrKeyAction, "burn").
		AddAttribute("amount", msg.Amount.String()), nil
}

func (t *Token) executeTransfer(deps host.Deps, info host.MessageInfo, msg *TransferMsg) (*host.Response, error) {
	if err := validateAmount(msg.Amount, "transfer"); err != nil {
		return nil, err
	}
	if err := subBalance(deps.Storage, info.Sender.String(), msg.Amount); err != nil {
		return nil, err
	}
	if err := addBalance(deps.Storage, msg.Recipient, msg.Amount); err != nil {
		return nil, err
	}

	return host.NewResponse().
		AddAttribute(host.AttrKeyAction, "transfer").
		AddAttribute("recipient", msg.Recipient).
		AddAttribute("amount", msg.Amount.String()), nil
}

func (t *Token) executeUpdateMinter(deps host.Deps, info host.MessageInfo, msg *UpdateMinterMsg) (*host.Response, error) {
	ti, err := infoItem.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	if info.Sender.String() != ti.Minter {
		return nil, types.ErrUnauthorized
	}

	ti.Minter = msg.NewMinter
	if err := infoItem.Save(deps.Storage, ti); err != nil {
		return nil, err
	}

	return host.NewResponse().
		AddAttribute(host.AttrKeyAction, "update_minter").
		AddAttribute("new_minter", msg.NewMinter), nil
}

func (t *Token) Query(deps host.Deps, env host.Env, raw json.RawMessage) ([]byte, error) {
	var msg QueryMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnknownMessage, err)
	}

	switch {
	case msg.Balance != nil:
		bal, err := balanceOf(deps.Storage, msg.Balance.Address)
		if err != nil {
			return nil, err
		}
		return json.Marshal(BalanceResponse{Balance: bal})
	case msg.TokenInfo != nil:
		ti, err := infoItem.Load(deps.Storage)
		if err != nil {
			return nil, err
		}
		return json.Marshal(TokenInfoResponse{
			Name:        ti.Name,
			Symbol:      ti.Symbol,
			Decimals:    ti.Decimals,
			TotalSupply: ti.TotalSupply,
		})
	default:
		return nil, types.ErrUnknownMessage
	}
}

func (t *Token) Reply(deps host.Deps, env host.Env, reply host.Reply) (*host.Response, error) {
	return nil, types.ErrUnknownContinuation
}

func balanceOf(kv ledger.KV, addr string) (math.Int, error) {
	bal, err := balances.Load(kv, addr)
	if ledger.IsNotFoundError(err) {
		return math.ZeroInt(), nil
	}
	return bal, err
}

func addBalance(kv ledger.KV, addr string, amount math.Int) error {
	bal, err := balanceOf(kv, addr)
	if err != nil {
		return err
	}
	return balances.Save(kv, addr, bal.Add(amount))
}

// validateAmount rejects absent and non-positive amounts before any balance
// is touched. A negative amount would otherwise pass the sufficiency check
// in subBalance and move value the wrong way.
func validateAmount(amount math.Int, op string) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: %s amount must be positive", types.ErrInvalidAmount, op)
	}
	return nil
}

func subBalance(kv ledger.KV, addr string, amount math.Int) error {
	bal, err := balanceOf(kv, addr)
	if err != nil {
		return err
	}
	if bal.LT(amount) {
		return fmt.Errorf("%w: %s holds %s", types.ErrInsufficientBalance, addr, bal)
	}
	return balances.Save(kv, addr, bal.Sub(amount))
}
