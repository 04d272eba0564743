package token

import "cosmossdk.io/math"

// InstantiateMsg configures a new outcome share token.
type InstantiateMsg struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Minter   string `json:"minter"`
}

// ExecuteMsg is the closed set of token operations. Exactly one variant
// is set; anything else is rejected at the boundary.
type ExecuteMsg struct {
	Mint         *MintMsg         `json:"mint,omitempty"`
	Burn         *BurnMsg         `json:"burn,omitempty"`
	Transfer     *TransferMsg     `json:"transfer,omitempty"`
	UpdateMinter *UpdateMinterMsg `json:"update_minter,omitempty"`
}

type MintMsg struct {
	Recipient string   `json:"recipient"`
	Amount    math.Int `json:"amount"`
}

type BurnMsg struct {
	Amount math.Int `json:"amount"`
}

type TransferMsg struct {
	Recipient string   `json:"recipient"`
	Amount    math.Int `json:"amount"`
}

// UpdateMinterMsg hands mint rights to a new address. The factory creates
// outcome tokens before their market exists, then reassigns the minter to
// the market once provisioning completes.
type UpdateMinterMsg struct {
	NewMinter string `json:"new_minter"`
}

type QueryMsg struct {
	Balance   *BalanceQuery `json:"balance,omitempty"`
	TokenInfo *struct{}     `json:"token_info,omitempty"`
}

type BalanceQuery struct {
	Address string `json:"address"`
}

type BalanceResponse struct {
	Balance math.Int `json:"balance"`
}

type TokenInfoResponse struct {
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	Decimals    uint8    `json:"decimals"`
	TotalSupply math.Int `json:"total_supply"`
}
