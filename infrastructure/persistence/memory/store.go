// Package memory provides an in-process KeyValueStore with the same condition, update,
// view and transaction semantics as the DynamoDB table. It backs local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"socialcore/application/ports"
	"socialcore/pkg/common"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Store is a single table held in memory.
type Store struct {
	mu    sync.RWMutex
	items map[ports.Key]ports.Item
}

// NewStore creates an empty table.
func NewStore() *Store {
	return &Store{items: make(map[ports.Key]ports.Item)}
}

var _ ports.KeyValueStore = (*Store)(nil)

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) Get(ctx context.Context, key ports.Key, _ ports.Consistency) (ports.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.items[key]), nil
}

func (s *Store) Put(ctx context.Context, item ports.Item, cond ports.Condition) error {
	key, err := itemKey(item)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := evaluate(s.items[key], cond)
	if err != nil {
		return err
	}
	if !ok {
		return ports.ErrConditionFailed
	}
	s.items[key] = clone(item)
	return nil
}

func (s *Store) Update(ctx context.Context, key ports.Key, upd ports.Update, cond ports.Condition) (ports.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.items[key]
	ok, err := evaluate(current, cond)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ports.ErrConditionFailed
	}
	next, err := applyUpdate(current, key, upd)
	if err != nil {
		return nil, err
	}
	s.items[key] = next
	return clone(next), nil
}

func (s *Store) Delete(ctx context.Context, key ports.Key, cond ports.Condition) (ports.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.items[key]
	ok, err := evaluate(current, cond)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ports.ErrConditionFailed
	}
	delete(s.items, key)
	return current, nil
}

func (s *Store) BatchGet(ctx context.Context, keys []ports.Key) ([]ports.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ports.Item
	for _, key := range keys {
		if item, ok := s.items[key]; ok {
			out = append(out, clone(item))
		}
	}
	return out, nil
}

func (s *Store) BatchPut(ctx context.Context, items []ports.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		key, err := itemKey(item)
		if err != nil {
			return err
		}
		s.items[key] = clone(item)
	}
	return nil
}

func (s *Store) BatchDelete(ctx context.Context, keys []ports.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.items, key)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q ports.Query) (ports.Page, error) {
	pkName, skName := ports.IndexKeyNames(q.Index)

	s.mu.RLock()
	var matches []ports.Item
	for _, item := range s.items {
		pk, ok := item[pkName].(*types.AttributeValueMemberS)
		if !ok || pk.Value != q.PartitionKey {
			continue
		}
		sk, ok := item[skName]
		if !ok {
			continue
		}
		match, err := matchSortKey(sk, q.SortKey)
		if err != nil {
			s.mu.RUnlock()
			return ports.Page{}, err
		}
		if match {
			matches = append(matches, clone(item))
		}
	}
	s.mu.RUnlock()

	less := func(a, b ports.Item) bool {
		if c, _, _ := compare(a[skName], b[skName]); c != 0 {
			return c < 0
		}
		return tableLess(a, b)
	}
	if q.Descending {
		asc := less
		less = func(a, b ports.Item) bool { return asc(b, a) }
	}
	return paginate(matches, less, keyNames(q.Index), q.Filter, q.Limit, q.Cursor)
}

func (s *Store) Scan(ctx context.Context, scan ports.Scan) (ports.Page, error) {
	s.mu.RLock()
	all := make([]ports.Item, 0, len(s.items))
	for _, item := range s.items {
		all = append(all, clone(item))
	}
	s.mu.RUnlock()

	return paginate(all, tableLess, keyNames(""), scan.Filter, scan.Limit, scan.Cursor)
}

func (s *Store) TransactWrite(ctx context.Context, ops []ports.WriteOp) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > ports.MaxTransactItems {
		return fmt.Errorf("transaction has %d items, limit is %d", len(ops), ports.MaxTransactItems)
	}

	keys := make([]ports.Key, len(ops))
	seen := make(map[ports.Key]bool, len(ops))
	for i, op := range ops {
		key := op.Key
		if op.Kind == ports.WritePut {
			k, err := itemKey(op.Item)
			if err != nil {
				return err
			}
			key = k
		}
		if seen[key] {
			return fmt.Errorf("transaction touches %s more than once", key)
		}
		seen[key] = true
		keys[i] = key
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reasons := make([]string, len(ops))
	failed := false
	for i, op := range ops {
		ok, err := evaluate(s.items[keys[i]], op.Condition)
		if err != nil {
			return err
		}
		reasons[i] = ports.ReasonNone
		if !ok {
			reasons[i] = ports.ReasonConditionalCheckFailed
			failed = true
		}
	}
	if failed {
		return &ports.TransactionCanceledError{Reasons: reasons}
	}

	staged := make([]ports.Item, len(ops))
	for i, op := range ops {
		if op.Kind == ports.WriteUpdate {
			next, err := applyUpdate(s.items[keys[i]], keys[i], op.Update)
			if err != nil {
				return err
			}
			staged[i] = next
		}
	}
	for i, op := range ops {
		switch op.Kind {
		case ports.WritePut:
			s.items[keys[i]] = clone(op.Item)
		case ports.WriteUpdate:
			s.items[keys[i]] = staged[i]
		case ports.WriteDelete:
			delete(s.items, keys[i])
		}
	}
	return nil
}

func itemKey(item ports.Item) (ports.Key, error) {
	key := item.Key()
	if key.PK == "" || key.SK == "" {
		return ports.Key{}, fmt.Errorf("item is missing %s/%s", ports.AttrPK, ports.AttrSK)
	}
	return key, nil
}

func tableLess(a, b ports.Item) bool {
	ka, kb := a.Key(), b.Key()
	if c := strings.Compare(ka.PK, kb.PK); c != 0 {
		return c < 0
	}
	return ka.SK < kb.SK
}

func keyNames(index string) []string {
	names := []string{ports.AttrPK, ports.AttrSK}
	if index != "" {
		pk, sk := ports.IndexKeyNames(index)
		names = append(names, pk, sk)
	}
	return names
}

// paginate orders items, resumes after the cursor position, evaluates up to limit
// items and then applies the filter, mirroring the store's limit-before-filter rule.
func paginate(items []ports.Item, less func(a, b ports.Item) bool, names []string,
	filter ports.Condition, limit int, cursor string) (ports.Page, error) {
	sort.Slice(items, func(i, j int) bool { return less(items[i], items[j]) })

	start := 0
	if cursor != "" {
		after, err := common.DecodeCursor(cursor)
		if err != nil {
			return ports.Page{}, err
		}
		start = sort.Search(len(items), func(i int) bool { return less(ports.Item(after), items[i]) })
	}

	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	page := ports.Page{}
	for _, item := range items[start:end] {
		ok, err := evaluate(item, filter)
		if err != nil {
			return ports.Page{}, err
		}
		if ok {
			page.Items = append(page.Items, item)
		}
	}

	if end < len(items) {
		last := items[end-1]
		lastKey := make(map[string]types.AttributeValue, len(names))
		for _, name := range names {
			lastKey[name] = last[name]
		}
		next, err := common.EncodeCursor(lastKey)
		if err != nil {
			return ports.Page{}, err
		}
		page.Cursor = next
	}
	return page, nil
}
