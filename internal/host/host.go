package host

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pollstake/pollstake/internal/ledger"
)

// ComponentFactory builds a fresh component for one dispatched call.
// Components keep no state of their own; everything lives in the ledger.
type ComponentFactory func() Component

// Host is the execution environment. Every external Execute or Instantiate
// runs as one atomic transaction over the shared ledger; instantiations that
// request a continuation get their Reply delivered in a separate transaction
// after the triggering one has committed. Calls are strictly serialized.
type Host struct {
	mu         sync.Mutex
	clock      Clock
	store      *ledger.Store
	codes      map[uint64]ComponentFactory
	nextCodeID uint64
	addrPrefix string
}

var (
	instanceCodes = ledger.NewMap[string, uint64]("sys/instances", ledger.StringKey)
	addressSeq    = ledger.NewItem[uint64]("sys/address_seq")
)

func New(addrPrefix string, clock Clock) *Host {
	if clock == nil {
		clock = SystemClock()
	}
	return &Host{
		clock:      clock,
		store:      ledger.NewStore(),
		codes:      make(map[uint64]ComponentFactory),
		nextCodeID: 1,
		addrPrefix: addrPrefix,
	}
}

// StoreCode registers a component template and returns its code id.
func (h *Host) StoreCode(factory ComponentFactory) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextCodeID
	h.nextCodeID++
	h.codes[id] = factory
	return id
}

// FundAccount credits addr outside of any component call. Used at bootstrap
// and in tests; the credit commits immediately.
func (h *Host) FundAccount(addr Address, amount Coin) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	tx := h.store.Begin()
	if err := bankAdd(tx, addr, amount); err != nil {
		tx.Discard()
		return err
	}
	tx.Commit()
	return nil
}

// BalanceOf reads a committed bank balance.
func (h *Host) BalanceOf(addr Address, denom string) (Coin, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return bankBalanceOf(h.store, addr, denom)
}

// Now reports the host clock.
func (h *Host) Now() Clock {
	return h.clock
}

// Instantiate creates a component instance in its own transaction and
// returns its address with the committed events.
func (h *Host) Instantiate(ctx context.Context, sender Address, codeID uint64, msg any, funds []Coin, label string) (Address, []Event, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return "", nil, fmt.Errorf("encode instantiate msg: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	tx := h.store.Begin()
	st := &txState{host: h, tx: tx}
	addr, events, err := st.instantiate(sender, &InstantiateMsg{
		CodeID: codeID,
		Msg:    raw,
		Label:  label,
		Funds:  funds,
	})
	if err != nil {
		tx.Discard()
		return "", nil, err
	}
	tx.Commit()

	events, err = h.drainReplies(ctx, events, st.replies)
	return addr, events, err
}

// Execute dispatches a call to a component. The call and every message it
// emits run in one transaction; continuations queued by the call each run in
// their own follow-up transaction, firing in issue order. When a
// continuation fails, everything committed before it stays committed and the
// error is returned alongside the committed events.
func (h *Host) Execute(ctx context.Context, sender, contract Address, msg any, funds []Coin) ([]Event, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode execute msg: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	tx := h.store.Begin()
	st := &txState{host: h, tx: tx}
	events, err := st.execute(sender, contract, raw, funds)
	if err != nil {
		tx.Discard()
		return nil, err
	}
	tx.Commit()

	return h.drainReplies(ctx, events, st.replies)
}

// Query runs a read-only query against committed state.
func (h *Host) Query(ctx context.Context, contract Address, msg any) ([]byte, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode query msg: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.queryOn(h.store, contract, raw)
}

// QueryHostAs decodes a host query into T.
func QueryHostAs[T any](ctx context.Context, h *Host, contract Address, msg any) (T, error) {
	var out T
	raw, err := h.Query(ctx, contract, msg)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode query result from %s: %w", contract, err)
	}
	return out, nil
}

// drainReplies runs queued continuations FIFO, each in a fresh transaction.
func (h *Host) drainReplies(ctx context.Context, events []Event, queue []pendingReply) ([]Event, error) {
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return events, err
		}
		next := queue[0]
		queue = queue[1:]

		tx := h.store.Begin()
		st := &txState{host: h, tx: tx}
		evs, err := st.deliverReply(next)
		if err != nil {
			tx.Discard()
			log.Warn().
				Err(err).
				Uint64("reply_id", next.id).
				Stringer("target", next.target).
				Msg("continuation transaction reverted, earlier steps stay committed")
			return events, fmt.Errorf("continuation %d on %s: %w", next.id, next.target, err)
		}
		tx.Commit()
		events = append(events, evs...)
		queue = append(queue, st.replies...)
	}
	return events, nil
}

func (h *Host) queryOn(kv ledger.KV, contract Address, raw json.RawMessage) ([]byte, error) {
	comp, err := h.componentAt(kv, contract)
	if err != nil {
		return nil, err
	}
	deps := Deps{
		Storage: ledger.Prefixed(kv, storagePrefix(contract)),
		Querier: &kvQuerier{host: h, kv: kv},
	}
	env := Env{Contract: contract, BlockTime: h.clock.Now()}
	return comp.Query(deps, env, raw)
}

func (h *Host) componentAt(kv ledger.KV, addr Address) (Component, error) {
	codeID, err := instanceCodes.Load(kv, addr.String())
	if err != nil {
		return nil, fmt.Errorf("no component at %s: %w", addr, err)
	}
	factory, ok := h.codes[codeID]
	if !ok {
		return nil, fmt.Errorf("component %s references unknown code id %d", addr, codeID)
	}
	return factory(), nil
}

func storagePrefix(addr Address) string {
	return "contract/" + addr.String() + "/"
}

// pendingReply is a continuation scheduled by an instantiate-with-reply.
type pendingReply struct {
	target  Address
	id      uint64
	payload []byte
	events  []Event
}

// txState is the in-flight transaction: a ledger overlay plus the
// continuations queued while it ran.
type txState struct {
	host    *Host
	tx      *ledger.Tx
	replies []pendingReply
}

func (st *txState) execute(sender, contract Address, raw json.RawMessage, funds []Coin) ([]Event, error) {
	if err := bankSendAll(st.tx, sender, contract, funds); err != nil {
		return nil, err
	}

	comp, err := st.host.componentAt(st.tx, contract)
	if err != nil {
		return nil, err
	}

	deps := st.depsFor(contract)
	env := Env{Contract: contract, BlockTime: st.host.clock.Now()}
	info := MessageInfo{Sender: sender, Funds: funds}

	resp, err := comp.Execute(deps, env, info, raw)
	if err != nil {
		return nil, err
	}

	return st.handleResponse(contract, nil, resp)
}

func (st *txState) instantiate(sender Address, msg *InstantiateMsg) (Address, []Event, error) {
	factory, ok := st.host.codes[msg.CodeID]
	if !ok {
		return "", nil, fmt.Errorf("unknown code id %d", msg.CodeID)
	}

	seq, err := addressSeq.Load(st.tx)
	if err != nil && !ledger.IsNotFoundError(err) {
		return "", nil, err
	}
	seq++
	if err := addressSeq.Save(st.tx, seq); err != nil {
		return "", nil, err
	}
	addr := Address(fmt.Sprintf("%s1%012d", st.host.addrPrefix, seq))

	if err := instanceCodes.Save(st.tx, addr.String(), msg.CodeID); err != nil {
		return "", nil, err
	}
	if err := bankSendAll(st.tx, sender, addr, msg.Funds); err != nil {
		return "", nil, err
	}

	deps := st.depsFor(addr)
	env := Env{Contract: addr, BlockTime: st.host.clock.Now()}
	info := MessageInfo{Sender: sender, Funds: msg.Funds}

	resp, err := factory().Instantiate(deps, env, info, msg.Msg)
	if err != nil {
		return "", nil, err
	}

	created := Event{
		Type: EventTypeInstantiate,
		Attributes: []Attribute{
			{Key: AttrKeyContractAddress, Value: addr.String()},
			{Key: AttrKeyCodeID, Value: strconv.FormatUint(msg.CodeID, 10)},
		},
	}
	events, err := st.handleResponse(addr, []Event{created}, resp)
	if err != nil {
		return "", nil, err
	}
	return addr, events, nil
}

// handleResponse records the emitter's event and dispatches its follow-up
// messages depth-first within the current transaction.
func (st *txState) handleResponse(emitter Address, events []Event, resp *Response) ([]Event, error) {
	if resp == nil {
		resp = NewResponse()
	}

	attrs := make([]Attribute, 0, len(resp.Attributes)+1)
	attrs = append(attrs, Attribute{Key: AttrKeyContractAddress, Value: emitter.String()})
	attrs = append(attrs, resp.Attributes...)
	events = append(events, Event{Type: EventTypeExecute, Attributes: attrs})

	for _, msg := range resp.Messages {
		switch {
		case msg.Exec != nil:
			evs, err := st.execute(emitter, msg.Exec.Contract, msg.Exec.Msg, msg.Exec.Funds)
			if err != nil {
				return nil, err
			}
			events = append(events, evs...)
		case msg.Instantiate != nil:
			_, evs, err := st.instantiate(emitter, msg.Instantiate)
			if err != nil {
				return nil, err
			}
			events = append(events, evs...)
			if msg.Instantiate.ReplyID != 0 {
				st.replies = append(st.replies, pendingReply{
					target:  emitter,
					id:      msg.Instantiate.ReplyID,
					payload: msg.Instantiate.Payload,
					events:  evs,
				})
			}
		case msg.BankSend != nil:
			if err := bankSend(st.tx, emitter, msg.BankSend.ToAddress, msg.BankSend.Amount); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("message with no variant set from %s", emitter)
		}
	}

	return events, nil
}

func (st *txState) deliverReply(r pendingReply) ([]Event, error) {
	comp, err := st.host.componentAt(st.tx, r.target)
	if err != nil {
		return nil, err
	}

	deps := st.depsFor(r.target)
	env := Env{Contract: r.target, BlockTime: st.host.clock.Now()}
	reply := Reply{ID: r.id, Payload: r.payload, Events: r.events}

	resp, err := comp.Reply(deps, env, reply)
	if err != nil {
		return nil, err
	}
	return st.handleResponse(r.target, nil, resp)
}

func (st *txState) depsFor(addr Address) Deps {
	return Deps{
		Storage: ledger.Prefixed(st.tx, storagePrefix(addr)),
		Querier: &kvQuerier{host: st.host, kv: st.tx},
	}
}

// kvQuerier answers component queries against the current transaction view.
type kvQuerier struct {
	host *Host
	kv   ledger.KV
}

func (q *kvQuerier) Query(contract Address, msg any) ([]byte, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode query msg: %w", err)
	}
	return q.host.queryOn(q.kv, contract, raw)
}

func (q *kvQuerier) BankBalance(addr Address, denom string) (Coin, error) {
	return bankBalanceOf(q.kv, addr, denom)
}
