package host_test

import (
	"encoding/json"
	"errors"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pollstake/pollstake/internal/host"
	"github.com/pollstake/pollstake/internal/ledger"
	"github.com/pollstake/pollstake/internal/types"
)

var errBoom = errors.New("boom")

// noopComponent is the embeddable default for test components.
type noopComponent struct{}

func (noopComponent) Instantiate(host.Deps, host.Env, host.MessageInfo, json.RawMessage) (*host.Response, error) {
	return nil, nil
}

func (noopComponent) Execute(host.Deps, host.Env, host.MessageInfo, json.RawMessage) (*host.Response, error) {
	return nil, nil
}

func (noopComponent) Query(host.Deps, host.Env, json.RawMessage) ([]byte, error) {
	return nil, errors.New("no queries")
}

func (noopComponent) Reply(host.Deps, host.Env, host.Reply) (*host.Response, error) {
	return nil, errors.New("no continuations")
}

var valueItem = ledger.NewItem[string]("value")

// kvComponent stores the executed message under a fixed key and can be told
// to fail after writing.
type kvComponent struct {
	noopComponent
}

type kvMsg struct {
	Value string `json:"value"`
	Fail  bool   `json:"fail"`
}

func (kvComponent) Execute(deps host.Deps, env host.Env, info host.MessageInfo, raw json.RawMessage) (*host.Response, error) {
	var msg kvMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	if err := valueItem.Save(deps.Storage, msg.Value); err != nil {
		return nil, err
	}
	if msg.Fail {
		return nil, errBoom
	}
	return host.NewResponse().AddAttribute("value", msg.Value), nil
}

func (kvComponent) Query(deps host.Deps, env host.Env, raw json.RawMessage) ([]byte, error) {
	v, err := valueItem.Load(deps.Storage)
	if ledger.IsNotFoundError(err) {
		return json.Marshal("")
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func coins(denom string, amount int64) []host.Coin {
	return []host.Coin{host.NewCoin(denom, math.NewInt(amount))}
}

func TestExecuteCommits(t *testing.T) {
	ctx := t.Context()
	h := host.New("test", nil)
	code := h.StoreCode(func() host.Component { return kvComponent{} })

	addr, _, err := h.Instantiate(ctx, "alice", code, struct{}{}, nil, "kv")
	require.NoError(t, err)

	events, err := h.Execute(ctx, "alice", addr, kvMsg{Value: "hello"}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, events)

	var stored string
	stored, err = host.QueryHostAs[string](ctx, h, addr, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, "hello", stored)
}

func TestExecuteFailureRevertsStorageAndFunds(t *testing.T) {
	ctx := t.Context()
	h := host.New("test", nil)
	code := h.StoreCode(func() host.Component { return kvComponent{} })

	addr, _, err := h.Instantiate(ctx, "alice", code, struct{}{}, nil, "kv")
	require.NoError(t, err)
	require.NoError(t, h.FundAccount("alice", host.NewCoin("upoll", math.NewInt(100))))

	_, err = h.Execute(ctx, "alice", addr, kvMsg{Value: "doomed", Fail: true}, coins("upoll", 40))
	require.ErrorIs(t, err, errBoom)

	stored, err := host.QueryHostAs[string](ctx, h, addr, struct{}{})
	require.NoError(t, err)
	assert.Empty(t, stored, "failed transaction must not leave writes behind")

	bal, err := h.BalanceOf("alice", "upoll")
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal.Amount.Int64(), "attached funds return on revert")
}

func TestExecuteMovesFunds(t *testing.T) {
	ctx := t.Context()
	h := host.New("test", nil)
	code := h.StoreCode(func() host.Component { return kvComponent{} })

	addr, _, err := h.Instantiate(ctx, "alice", code, struct{}{}, nil, "kv")
	require.NoError(t, err)
	require.NoError(t, h.FundAccount("alice", host.NewCoin("upoll", math.NewInt(100))))

	_, err = h.Execute(ctx, "alice", addr, kvMsg{Value: "paid"}, coins("upoll", 40))
	require.NoError(t, err)

	aliceBal, err := h.BalanceOf("alice", "upoll")
	require.NoError(t, err)
	assert.Equal(t, int64(60), aliceBal.Amount.Int64())

	contractBal, err := h.BalanceOf(addr, "upoll")
	require.NoError(t, err)
	assert.Equal(t, int64(40), contractBal.Amount.Int64())
}

func TestExecuteInsufficientFunds(t *testing.T) {
	ctx := t.Context()
	h := host.New("test", nil)
	code := h.StoreCode(func() host.Component { return kvComponent{} })

	addr, _, err := h.Instantiate(ctx, "alice", code, struct{}{}, nil, "kv")
	require.NoError(t, err)

	_, err = h.Execute(ctx, "alice", addr, kvMsg{Value: "broke"}, coins("upoll", 10))
	require.Error(t, err)
}

func TestInstantiateAddressFormat(t *testing.T) {
	ctx := t.Context()
	h := host.New("poll", nil)
	code := h.StoreCode(func() host.Component { return kvComponent{} })

	first, _, err := h.Instantiate(ctx, "alice", code, struct{}{}, nil, "a")
	require.NoError(t, err)
	second, _, err := h.Instantiate(ctx, "alice", code, struct{}{}, nil, "b")
	require.NoError(t, err)

	assert.Equal(t, host.Address("poll1000000000001"), first)
	assert.Equal(t, host.Address("poll1000000000002"), second)
}

// sagaComponent instantiates a child with a continuation. The reply handler
// records the created address, or fails when told to.
type sagaComponent struct {
	noopComponent
	childCode uint64
}

type sagaMsg struct {
	FailReply bool `json:"fail_reply"`
}

var (
	childItem     = ledger.NewItem[string]("child")
	startedItem   = ledger.NewItem[bool]("started")
	failReplyItem = ledger.NewItem[bool]("fail_reply")
)

func (c sagaComponent) Execute(deps host.Deps, env host.Env, info host.MessageInfo, raw json.RawMessage) (*host.Response, error) {
	var msg sagaMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	if err := startedItem.Save(deps.Storage, true); err != nil {
		return nil, err
	}
	if err := failReplyItem.Save(deps.Storage, msg.FailReply); err != nil {
		return nil, err
	}
	create, err := host.NewInstantiateMsg(c.childCode, struct{}{}, "child", 1, []byte("saga-1"))
	if err != nil {
		return nil, err
	}
	return host.NewResponse().AddMessage(create), nil
}

func (c sagaComponent) Reply(deps host.Deps, env host.Env, reply host.Reply) (*host.Response, error) {
	fail, err := failReplyItem.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	if fail {
		return nil, errBoom
	}
	if reply.ID != 1 || string(reply.Payload) != "saga-1" {
		return nil, errors.New("unexpected continuation")
	}
	addr, ok := reply.CreatedAddress()
	if !ok {
		return nil, errors.New("no created address")
	}
	if err := childItem.Save(deps.Storage, addr.String()); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c sagaComponent) Query(deps host.Deps, env host.Env, raw json.RawMessage) ([]byte, error) {
	started := startedItem.Has(deps.Storage)
	child, err := childItem.Load(deps.Storage)
	if err != nil && !ledger.IsNotFoundError(err) {
		return nil, err
	}
	return json.Marshal(map[string]any{"started": started, "child": child})
}

type sagaView struct {
	Started bool   `json:"started"`
	Child   string `json:"child"`
}

func TestContinuationDeliversReply(t *testing.T) {
	ctx := t.Context()
	h := host.New("test", nil)
	childCode := h.StoreCode(func() host.Component { return kvComponent{} })
	sagaCode := h.StoreCode(func() host.Component { return sagaComponent{childCode: childCode} })

	addr, _, err := h.Instantiate(ctx, "alice", sagaCode, struct{}{}, nil, "saga")
	require.NoError(t, err)

	_, err = h.Execute(ctx, "alice", addr, sagaMsg{}, nil)
	require.NoError(t, err)

	view, err := host.QueryHostAs[sagaView](ctx, h, addr, struct{}{})
	require.NoError(t, err)
	assert.True(t, view.Started)
	assert.Equal(t, "test1000000000002", view.Child)
}

func TestFailedContinuationKeepsEarlierSteps(t *testing.T) {
	ctx := t.Context()
	h := host.New("test", nil)
	childCode := h.StoreCode(func() host.Component { return kvComponent{} })
	sagaCode := h.StoreCode(func() host.Component { return sagaComponent{childCode: childCode} })

	addr, _, err := h.Instantiate(ctx, "alice", sagaCode, struct{}{}, nil, "saga")
	require.NoError(t, err)

	events, err := h.Execute(ctx, "alice", addr, sagaMsg{FailReply: true}, nil)
	require.ErrorIs(t, err, errBoom)
	require.NotEmpty(t, events, "events from committed steps are still returned")

	// first transaction committed: the call ran and the child exists
	view, err := host.QueryHostAs[sagaView](ctx, h, addr, struct{}{})
	require.NoError(t, err)
	assert.True(t, view.Started)
	assert.Empty(t, view.Child, "the failed continuation's write is reverted")

	// the orphaned child is fully usable
	child := host.Address("test1000000000002")
	_, err = h.Execute(ctx, "alice", child, kvMsg{Value: "orphan"}, nil)
	require.NoError(t, err)
}

func TestExecuteRejectsNegativeFunds(t *testing.T) {
	ctx := t.Context()
	h := host.New("test", nil)
	code := h.StoreCode(func() host.Component { return kvComponent{} })

	addr, _, err := h.Instantiate(ctx, "alice", code, struct{}{}, nil, "kv")
	require.NoError(t, err)
	require.NoError(t, h.FundAccount(addr, host.NewCoin("upoll", math.NewInt(1000))))
	require.NoError(t, h.FundAccount("mallory", host.NewCoin("upoll", math.NewInt(1))))

	// a negative attached coin would flow value from the contract to the sender
	_, err = h.Execute(ctx, "mallory", addr, kvMsg{Value: "drain"}, coins("upoll", -999))
	require.ErrorIs(t, err, types.ErrInvalidAmount)

	contractBal, err := h.BalanceOf(addr, "upoll")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), contractBal.Amount.Int64())

	malloryBal, err := h.BalanceOf("mallory", "upoll")
	require.NoError(t, err)
	assert.Equal(t, int64(1), malloryBal.Amount.Int64())
}
