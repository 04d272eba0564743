package token_test

import (
	"context"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pollstake/pollstake/internal/host"
	"github.com/pollstake/pollstake/internal/token"
	"github.com/pollstake/pollstake/internal/types"
)

const minter = host.Address("minter")

func setupToken(t *testing.T) (context.Context, *host.Host, host.Address) {
	t.Helper()
	ctx := t.Context()

	h := host.New("poll", nil)
	code := h.StoreCode(token.Factory)
	addr, _, err := h.Instantiate(ctx, minter, code, token.InstantiateMsg{
		Name:     "Yes Share",
		Symbol:   "YES",
		Decimals: 18,
		Minter:   minter.String(),
	}, nil, "yes token")
	require.NoError(t, err)

	return ctx, h, addr
}

func balanceOf(t *testing.T, ctx context.Context, h *host.Host, tokenAddr host.Address, account string) math.Int {
	t.Helper()
	resp, err := host.QueryHostAs[token.BalanceResponse](ctx, h, tokenAddr, token.QueryMsg{
		Balance: &token.BalanceQuery{Address: account},
	})
	require.NoError(t, err)
	return resp.Balance
}

func TestInstantiateRejectsEmptyNames(t *testing.T) {
	ctx := t.Context()
	h := host.New("poll", nil)
	code := h.StoreCode(token.Factory)

	_, _, err := h.Instantiate(ctx, minter, code, token.InstantiateMsg{Symbol: "YES"}, nil, "broken")
	require.ErrorIs(t, err, types.ErrEmptyTokenNames)

	_, _, err = h.Instantiate(ctx, minter, code, token.InstantiateMsg{Name: "Yes Share"}, nil, "broken")
	require.ErrorIs(t, err, types.ErrEmptyTokenSymbols)
}

func TestMint(t *testing.T) {
	ctx, h, addr := setupToken(t)

	_, err := h.Execute(ctx, minter, addr, token.ExecuteMsg{
		Mint: &token.MintMsg{Recipient: "alice", Amount: math.NewInt(500)},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(500), balanceOf(t, ctx, h, addr, "alice").Int64())

	info, err := host.QueryHostAs[token.TokenInfoResponse](ctx, h, addr, token.QueryMsg{TokenInfo: &struct{}{}})
	require.NoError(t, err)
	assert.Equal(t, int64(500), info.TotalSupply.Int64())
	assert.Equal(t, "YES", info.Symbol)
}

func TestMintRequiresMinter(t *testing.T) {
	ctx, h, addr := setupToken(t)

	_, err := h.Execute(ctx, "mallory", addr, token.ExecuteMsg{
		Mint: &token.MintMsg{Recipient: "mallory", Amount: math.NewInt(1)},
	}, nil)
	require.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestTransferAndBurn(t *testing.T) {
	ctx, h, addr := setupToken(t)

	_, err := h.Execute(ctx, minter, addr, token.ExecuteMsg{
		Mint: &token.MintMsg{Recipient: "alice", Amount: math.NewInt(100)},
	}, nil)
	require.NoError(t, err)

	_, err = h.Execute(ctx, "alice", addr, token.ExecuteMsg{
		Transfer: &token.TransferMsg{Recipient: "bob", Amount: math.NewInt(30)},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(70), balanceOf(t, ctx, h, addr, "alice").Int64())
	assert.Equal(t, int64(30), balanceOf(t, ctx, h, addr, "bob").Int64())

	_, err = h.Execute(ctx, "bob", addr, token.ExecuteMsg{
		Burn: &token.BurnMsg{Amount: math.NewInt(30)},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balanceOf(t, ctx, h, addr, "bob").Int64())

	info, err := host.QueryHostAs[token.TokenInfoResponse](ctx, h, addr, token.QueryMsg{TokenInfo: &struct{}{}})
	require.NoError(t, err)
	assert.Equal(t, int64(70), info.TotalSupply.Int64())
}

func TestOverdrawRejected(t *testing.T) {
	ctx, h, addr := setupToken(t)

	_, err := h.Execute(ctx, "alice", addr, token.ExecuteMsg{
		Transfer: &token.TransferMsg{Recipient: "bob", Amount: math.NewInt(1)},
	}, nil)
	require.ErrorIs(t, err, types.ErrInsufficientBalance)

	_, err = h.Execute(ctx, "alice", addr, token.ExecuteMsg{
		Burn: &token.BurnMsg{Amount: math.NewInt(1)},
	}, nil)
	require.ErrorIs(t, err, types.ErrInsufficientBalance)
}

func TestUpdateMinter(t *testing.T) {
	ctx, h, addr := setupToken(t)

	_, err := h.Execute(ctx, "mallory", addr, token.ExecuteMsg{
		UpdateMinter: &token.UpdateMinterMsg{NewMinter: "mallory"},
	}, nil)
	require.ErrorIs(t, err, types.ErrUnauthorized)

	_, err = h.Execute(ctx, minter, addr, token.ExecuteMsg{
		UpdateMinter: &token.UpdateMinterMsg{NewMinter: "market"},
	}, nil)
	require.NoError(t, err)

	// old minter lost its rights
	_, err = h.Execute(ctx, minter, addr, token.ExecuteMsg{
		Mint: &token.MintMsg{Recipient: "alice", Amount: math.NewInt(1)},
	}, nil)
	require.ErrorIs(t, err, types.ErrUnauthorized)

	_, err = h.Execute(ctx, "market", addr, token.ExecuteMsg{
		Mint: &token.MintMsg{Recipient: "alice", Amount: math.NewInt(1)},
	}, nil)
	require.NoError(t, err)
}

func TestRejectsInvalidAmounts(t *testing.T) {
	ctx, h, addr := setupToken(t)

	_, err := h.Execute(ctx, minter, addr, token.ExecuteMsg{
		Mint: &token.MintMsg{Recipient: "alice", Amount: math.NewInt(100)},
	}, nil)
	require.NoError(t, err)

	// a negative burn must not credit the caller
	_, err = h.Execute(ctx, "alice", addr, token.ExecuteMsg{
		Burn: &token.BurnMsg{Amount: math.NewInt(-1000)},
	}, nil)
	require.ErrorIs(t, err, types.ErrInvalidAmount)
	assert.Equal(t, int64(100), balanceOf(t, ctx, h, addr, "alice").Int64())

	info, err := host.QueryHostAs[token.TokenInfoResponse](ctx, h, addr, token.QueryMsg{TokenInfo: &struct{}{}})
	require.NoError(t, err)
	assert.Equal(t, int64(100), info.TotalSupply.Int64())

	// omitted amounts decode to a nil Int and must error, not panic
	_, err = h.Execute(ctx, "alice", addr, token.ExecuteMsg{Burn: &token.BurnMsg{}}, nil)
	require.ErrorIs(t, err, types.ErrInvalidAmount)
	_, err = h.Execute(ctx, "alice", addr, token.ExecuteMsg{Transfer: &token.TransferMsg{Recipient: "bob"}}, nil)
	require.ErrorIs(t, err, types.ErrInvalidAmount)

	_, err = h.Execute(ctx, "alice", addr, token.ExecuteMsg{
		Transfer: &token.TransferMsg{Recipient: "bob", Amount: math.NewInt(-5)},
	}, nil)
	require.ErrorIs(t, err, types.ErrInvalidAmount)
	assert.Equal(t, int64(0), balanceOf(t, ctx, h, addr, "bob").Int64())

	_, err = h.Execute(ctx, minter, addr, token.ExecuteMsg{
		Mint: &token.MintMsg{Recipient: "alice", Amount: math.ZeroInt()},
	}, nil)
	require.ErrorIs(t, err, types.ErrInvalidAmount)
}
