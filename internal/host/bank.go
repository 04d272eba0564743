package host

import (
	"fmt"

	"cosmossdk.io/math"

	"github.com/pollstake/pollstake/internal/ledger"
	"github.com/pollstake/pollstake/internal/types"
)

// bank tracks native balances per address inside the host key space, so
// balance mutations commit and revert with the enclosing transaction.
var bankBalances = ledger.NewMap[string, []Coin]("bank/balances", ledger.StringKey)

func bankBalanceOf(kv ledger.KV, addr Address, denom string) (Coin, error) {
	coins, err := bankBalances.MayLoad(kv, addr.String())
	if err != nil {
		return Coin{}, err
	}
	if c, ok := FindCoin(coins, denom); ok {
		return c, nil
	}
	return NewCoin(denom, math.ZeroInt()), nil
}

func bankAdd(kv ledger.KV, addr Address, amount Coin) error {
	coins, err := bankBalances.MayLoad(kv, addr.String())
	if err != nil {
		return err
	}
	found := false
	for i, c := range coins {
		if c.Denom == amount.Denom {
			coins[i].Amount = c.Amount.Add(amount.Amount)
			found = true
			break
		}
	}
	if !found {
		coins = append(coins, amount)
	}
	return bankBalances.Save(kv, addr.String(), coins)
}

func bankSub(kv ledger.KV, addr Address, amount Coin) error {
	coins, err := bankBalances.MayLoad(kv, addr.String())
	if err != nil {
		return err
	}
	for i, c := range coins {
		if c.Denom == amount.Denom {
			if c.Amount.LT(amount.Amount) {
				return fmt.Errorf("%w: %s has %s%s, needs %s%s",
					types.ErrInsufficientBalance, addr, c.Amount, c.Denom, amount.Amount, amount.Denom)
			}
			coins[i].Amount = c.Amount.Sub(amount.Amount)
			return bankBalances.Save(kv, addr.String(), coins)
		}
	}
	return fmt.Errorf("%w: %s has no %s", types.ErrInsufficientBalance, addr, amount.Denom)
}

func bankSend(kv ledger.KV, from, to Address, amount Coin) error {
	// every transfer is validated here, whether it came in as attached
	// funds or as a BankSendMsg; a negative amount would invert the flow
	if amount.Amount.IsNil() || amount.Amount.IsNegative() {
		return fmt.Errorf("%w: %s%s from %s", types.ErrInvalidAmount, amount.Amount, amount.Denom, from)
	}
	if amount.Amount.IsZero() {
		return nil
	}
	if err := bankSub(kv, from, amount); err != nil {
		return err
	}
	return bankAdd(kv, to, amount)
}

func bankSendAll(kv ledger.KV, from, to Address, funds []Coin) error {
	for _, c := range funds {
		if err := bankSend(kv, from, to, c); err != nil {
			return err
		}
	}
	return nil
}
