package ledger

import (
	"sort"
	"strings"
)

// KV is the view components read and write through. Keys are namespaced
// strings; values are opaque bytes.
type KV interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Delete(key string)
	// Keys returns the sorted keys under prefix.
	Keys(prefix string) []string
}

// Store is the committed key space shared by every component instance on a
// host. It is only ever mutated through a Tx commit; the host runs one
// transaction at a time, so there is no internal locking.
type Store struct {
	data map[string][]byte
}

func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(key string) ([]byte, bool) {
	v, ok := s.data[key]
	return v, ok
}

func (s *Store) Set(key string, value []byte) {
	s.data[key] = value
}

func (s *Store) Delete(key string) {
	delete(s.data, key)
}

func (s *Store) Keys(prefix string) []string {
	keys := make([]string, 0)
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Begin opens a transaction. Reads see staged writes; nothing reaches the
// store until Commit.
func (s *Store) Begin() *Tx {
	return &Tx{
		base:    s,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

// Tx is a write overlay over a Store. Commit applies every staged write
// atomically; Discard drops them all. A Tx must not be used after either.
type Tx struct {
	base    *Store
	writes  map[string][]byte
	deletes map[string]struct{}
}

func (tx *Tx) Get(key string) ([]byte, bool) {
	if _, ok := tx.deletes[key]; ok {
		return nil, false
	}
	if v, ok := tx.writes[key]; ok {
		return v, true
	}
	return tx.base.Get(key)
}

func (tx *Tx) Set(key string, value []byte) {
	delete(tx.deletes, key)
	tx.writes[key] = value
}

func (tx *Tx) Delete(key string) {
	delete(tx.writes, key)
	tx.deletes[key] = struct{}{}
}

func (tx *Tx) Keys(prefix string) []string {
	seen := make(map[string]struct{})
	for _, k := range tx.base.Keys(prefix) {
		if _, deleted := tx.deletes[k]; deleted {
			continue
		}
		seen[k] = struct{}{}
	}
	for k := range tx.writes {
		if strings.HasPrefix(k, prefix) {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (tx *Tx) Commit() {
	for k := range tx.deletes {
		tx.base.Delete(k)
	}
	for k, v := range tx.writes {
		tx.base.Set(k, v)
	}
	tx.Discard()
}

func (tx *Tx) Discard() {
	tx.writes = make(map[string][]byte)
	tx.deletes = make(map[string]struct{})
}

// Prefixed returns a KV view that scopes every operation under prefix.
// Each component instance gets its own prefixed view of the host store.
func Prefixed(kv KV, prefix string) KV {
	return &prefixedKV{kv: kv, prefix: prefix}
}

type prefixedKV struct {
	kv     KV
	prefix string
}

func (p *prefixedKV) Get(key string) ([]byte, bool) {
	return p.kv.Get(p.prefix + key)
}

func (p *prefixedKV) Set(key string, value []byte) {
	p.kv.Set(p.prefix+key, value)
}

func (p *prefixedKV) Delete(key string) {
	p.kv.Delete(p.prefix + key)
}

func (p *prefixedKV) Keys(prefix string) []string {
	full := p.kv.Keys(p.prefix + prefix)
	keys := make([]string, len(full))
	for i, k := range full {
		keys[i] = strings.TrimPrefix(k, p.prefix)
	}
	return keys
}
