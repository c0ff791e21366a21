package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

type docKey struct {
	collection string
	id         string
}

type memDoc struct {
	version uint64
	data    []byte
}

// MemoryStore keeps documents in process. Transactions stage their writes
// and, at commit, validate every document and query result they observed
// against the committed state; any difference aborts the attempt with
// ErrConflict so it can be retried.
type MemoryStore struct {
	mu    sync.RWMutex
	colls map[string]map[string]memDoc
	seq   uint64
	retry RetryConfig
}

func NewMemoryStore(retry RetryConfig) *MemoryStore {
	return &MemoryStore{
		colls: make(map[string]map[string]memDoc),
		retry: retry,
	}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	doc, ok := s.colls[collection][id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(doc.data, out)
}

func (s *MemoryStore) Query(ctx context.Context, collection string, filter Filter, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	want, err := normalizeFilter(filter)
	if err != nil {
		return err
	}

	s.mu.RLock()
	ids, docs, err := s.match(collection, want)
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	raw := make([][]byte, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, docs[id].data)
	}
	return decodeList(raw, out)
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: encode %s/%s: %w", collection, id, err)
	}
	s.mu.Lock()
	s.put(collection, id, data)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.colls[collection], id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) RunTransaction(ctx context.Context, fn TxFunc) error {
	return withRetry(ctx, s.retry, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := &memTx{
			s:      s,
			reads:  make(map[docKey]uint64),
			writes: make(map[docKey][]byte),
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return s.commit(tx)
	}, isConflict)
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// put must be called with mu held.
func (s *MemoryStore) put(collection, id string, data []byte) {
	c, ok := s.colls[collection]
	if !ok {
		c = make(map[string]memDoc)
		s.colls[collection] = c
	}
	s.seq++
	c[id] = memDoc{version: s.seq, data: data}
}

// match must be called with mu held. Returned ids are sorted.
func (s *MemoryStore) match(collection string, want map[string]any) ([]string, map[string]memDoc, error) {
	docs := s.colls[collection]
	ids := make([]string, 0)
	for id, doc := range docs {
		ok, err := matches(doc.data, want)
		if err != nil {
			return nil, nil, fmt.Errorf("docstore: decode %s/%s: %w", collection, id, err)
		}
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, docs, nil
}

func (s *MemoryStore) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, seen := range tx.reads {
		var current uint64
		if doc, ok := s.colls[k.collection][k.id]; ok {
			current = doc.version
		}
		if current != seen {
			return fmt.Errorf("%w: %s/%s changed", ErrConflict, k.collection, k.id)
		}
	}

	for _, q := range tx.queries {
		ids, docs, err := s.match(q.collection, q.filter)
		if err != nil {
			return err
		}
		if len(ids) != len(q.result) {
			return fmt.Errorf("%w: query on %s changed", ErrConflict, q.collection)
		}
		for _, id := range ids {
			if v, ok := q.result[id]; !ok || v != docs[id].version {
				return fmt.Errorf("%w: query on %s changed", ErrConflict, q.collection)
			}
		}
	}

	for k, data := range tx.writes {
		if data == nil {
			delete(s.colls[k.collection], k.id)
			continue
		}
		s.put(k.collection, k.id, data)
	}
	return nil
}

type memQuery struct {
	collection string
	filter     map[string]any
	result     map[string]uint64
}

type memTx struct {
	s       *MemoryStore
	reads   map[docKey]uint64
	queries []memQuery
	writes  map[docKey][]byte // nil value stages a delete
}

func (tx *memTx) Get(ctx context.Context, collection, id string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k := docKey{collection, id}
	if data, staged := tx.writes[k]; staged {
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, out)
	}

	tx.s.mu.RLock()
	doc, ok := tx.s.colls[collection][id]
	tx.s.mu.RUnlock()

	if _, seen := tx.reads[k]; !seen {
		tx.reads[k] = doc.version
	}
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(doc.data, out)
}

func (tx *memTx) Query(ctx context.Context, collection string, filter Filter, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	want, err := normalizeFilter(filter)
	if err != nil {
		return err
	}

	tx.s.mu.RLock()
	ids, docs, err := tx.s.match(collection, want)
	committed := make(map[string]memDoc, len(ids))
	for _, id := range ids {
		committed[id] = docs[id]
	}
	tx.s.mu.RUnlock()
	if err != nil {
		return err
	}

	q := memQuery{collection: collection, filter: want, result: make(map[string]uint64, len(ids))}
	for id, doc := range committed {
		q.result[id] = doc.version
	}
	tx.queries = append(tx.queries, q)

	// overlay staged writes of this transaction
	visible := make(map[string][]byte, len(committed))
	for id, doc := range committed {
		visible[id] = doc.data
	}
	for k, data := range tx.writes {
		if k.collection != collection {
			continue
		}
		delete(visible, k.id)
		if data == nil {
			continue
		}
		ok, err := matches(data, want)
		if err != nil {
			return err
		}
		if ok {
			visible[k.id] = data
		}
	}

	keys := make([]string, 0, len(visible))
	for id := range visible {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	raw := make([][]byte, 0, len(keys))
	for _, id := range keys {
		raw = append(raw, visible[id])
	}
	return decodeList(raw, out)
}

func (tx *memTx) Set(ctx context.Context, collection, id string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: encode %s/%s: %w", collection, id, err)
	}
	tx.writes[docKey{collection, id}] = data
	return nil
}

func (tx *memTx) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.writes[docKey{collection, id}] = nil
	return nil
}

// normalizeFilter round-trips filter values through JSON so they compare
// equal to decoded document fields (numbers become float64 and so on).
func normalizeFilter(filter Filter) (map[string]any, error) {
	if len(filter) == 0 {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode filter: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("docstore: decode filter: %w", err)
	}
	return out, nil
}

func matches(data []byte, want map[string]any) (bool, error) {
	if len(want) == 0 {
		return true, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, err
	}
	for field, v := range want {
		if !reflect.DeepEqual(doc[field], v) {
			return false, nil
		}
	}
	return true, nil
}

func decodeList(raw [][]byte, out any) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	buf.Write(bytes.Join(raw, []byte{','}))
	buf.WriteByte(']')
	return json.Unmarshal(buf.Bytes(), out)
}
