package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Item holds a single record of type T under a fixed key.
type Item[T any] struct {
	name string
}

func NewItem[T any](name string) Item[T] {
	return Item[T]{name: name}
}

// Load returns the record or a NotFoundError.
func (i Item[T]) Load(kv KV) (T, error) {
	var val T
	raw, ok := kv.Get(i.name)
	if !ok {
		return val, &NotFoundError{Namespace: i.name}
	}
	if err := json.Unmarshal(raw, &val); err != nil {
		return val, fmt.Errorf("decode %s: %w", i.name, err)
	}
	return val, nil
}

func (i Item[T]) Save(kv KV, val T) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", i.name, err)
	}
	kv.Set(i.name, raw)
	return nil
}

func (i Item[T]) Remove(kv KV) {
	kv.Delete(i.name)
}

func (i Item[T]) Has(kv KV) bool {
	_, ok := kv.Get(i.name)
	return ok
}

// KeyEncoder turns a typed key into its string form. Encodings must be
// prefix-free within a namespace so Keys iteration stays unambiguous.
type KeyEncoder[K any] func(K) string

func StringKey(k string) string {
	return k
}

// U64Key is fixed-width so lexicographic key order matches numeric order.
func U64Key(k uint64) string {
	return fmt.Sprintf("%020d", k)
}

// PairKey joins an identity with an index, e.g. (staker, epoch).
func PairKey(addr string, idx uint64) string {
	return addr + "/" + U64Key(idx)
}

// Map is a keyed collection of records of type V under a namespace.
type Map[K any, V any] struct {
	ns  string
	enc KeyEncoder[K]
}

func NewMap[K any, V any](ns string, enc KeyEncoder[K]) Map[K, V] {
	return Map[K, V]{ns: ns, enc: enc}
}

func (m Map[K, V]) key(k K) string {
	return m.ns + "/" + m.enc(k)
}

// Load returns the record under k or a NotFoundError.
func (m Map[K, V]) Load(kv KV, k K) (V, error) {
	var val V
	raw, ok := kv.Get(m.key(k))
	if !ok {
		return val, &NotFoundError{Namespace: m.ns, Key: m.enc(k)}
	}
	if err := json.Unmarshal(raw, &val); err != nil {
		return val, fmt.Errorf("decode %s: %w", m.key(k), err)
	}
	return val, nil
}

// MayLoad returns the record under k, or the zero value if absent.
func (m Map[K, V]) MayLoad(kv KV, k K) (V, error) {
	val, err := m.Load(kv, k)
	if IsNotFoundError(err) {
		var zero V
		return zero, nil
	}
	return val, err
}

func (m Map[K, V]) Save(kv KV, k K, val V) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.key(k), err)
	}
	kv.Set(m.key(k), raw)
	return nil
}

func (m Map[K, V]) Remove(kv KV, k K) {
	kv.Delete(m.key(k))
}

func (m Map[K, V]) Has(kv KV, k K) bool {
	_, ok := kv.Get(m.key(k))
	return ok
}

// Keys returns the sorted raw key strings present in the namespace.
func (m Map[K, V]) Keys(kv KV) []string {
	full := kv.Keys(m.ns + "/")
	keys := make([]string, len(full))
	for i, k := range full {
		keys[i] = strings.TrimPrefix(k, m.ns+"/")
	}
	return keys
}
