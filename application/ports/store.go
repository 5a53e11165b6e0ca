package ports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names shared by every item in the table.
const (
	AttrPK = "PK"
	AttrSK = "SK"
)

// Secondary index ("view") names. Each index projects GSInPK/GSInSK.
const (
	IndexGSI1 = "GSI1"
	IndexGSI2 = "GSI2"
	IndexGSI3 = "GSI3"
)

// MaxTransactItems is the store's limit on items in one atomic write.
const MaxTransactItems = 100

// ErrConditionFailed is returned by single-item writes whose condition did not hold.
var ErrConditionFailed = errors.New("conditional check failed")

// Key addresses a single item.
type Key struct {
	PK string
	SK string
}

func (k Key) String() string {
	return k.PK + "|" + k.SK
}

// Item is a stored item in the store's native attribute representation.
type Item map[string]types.AttributeValue

// Key returns the primary key of the item.
func (i Item) Key() Key {
	return Key{PK: stringAttr(i[AttrPK]), SK: stringAttr(i[AttrSK])}
}

func stringAttr(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

// AttributeValueOf converts a Go value to its stored representation.
func AttributeValueOf(v any) (types.AttributeValue, error) {
	if av, ok := v.(types.AttributeValue); ok {
		return av, nil
	}
	return attributevalue.Marshal(v)
}

// IndexKeyNames returns the partition and sort attribute names backing an index.
// The empty index name addresses the table itself.
func IndexKeyNames(index string) (string, string) {
	if index == "" {
		return AttrPK, AttrSK
	}
	return index + "PK", index + "SK"
}

// Consistency selects the read consistency of a Get.
type Consistency int

const (
	EventuallyConsistent Consistency = iota
	StronglyConsistent
)

// Condition is a precondition evaluated against the current item state.
type Condition interface {
	condition()
}

// AttributeExists holds when the attribute is present.
type AttributeExists struct{ Name string }

// AttributeNotExists holds when the attribute is absent.
type AttributeNotExists struct{ Name string }

// Operator is a comparison operator.
type Operator string

const (
	OpEqual          Operator = "="
	OpNotEqual       Operator = "<>"
	OpLessThan       Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpGreaterThan    Operator = ">"
	OpGreaterOrEqual Operator = ">="
)

// Compare holds when the attribute compares to Value with Op.
type Compare struct {
	Name  string
	Op    Operator
	Value any
}

// And holds when every member holds.
type And []Condition

// Or holds when at least one member holds.
type Or []Condition

func (AttributeExists) condition()    {}
func (AttributeNotExists) condition() {}
func (Compare) condition()            {}
func (And) condition()                {}
func (Or) condition()                 {}

// ItemExists requires the addressed item to exist.
func ItemExists() Condition { return AttributeExists{Name: AttrPK} }

// ItemNotExists requires the addressed item to be absent.
func ItemNotExists() Condition { return AttributeNotExists{Name: AttrPK} }

// Equal is shorthand for Compare{Name, OpEqual, Value}.
func Equal(name string, value any) Condition {
	return Compare{Name: name, Op: OpEqual, Value: value}
}

// Update describes an update applied to one item. Add applies atomic numeric deltas
// (absent attributes start at zero); Set overwrites; Remove deletes attributes.
type Update struct {
	Add    map[string]int
	Set    map[string]any
	Remove []string
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return len(u.Add) == 0 && len(u.Set) == 0 && len(u.Remove) == 0
}

// SortOp is a key condition on an index sort key.
type SortOp string

const (
	SortEqual          SortOp = "="
	SortBeginsWith     SortOp = "begins_with"
	SortBetween        SortOp = "between"
	SortLessThan       SortOp = "<"
	SortLessOrEqual    SortOp = "<="
	SortGreaterThan    SortOp = ">"
	SortGreaterOrEqual SortOp = ">="
)

// SortCondition restricts the sort key of a query.
type SortCondition struct {
	Op     SortOp
	Values []any
}

// BeginsWith restricts the sort key to a string prefix.
func BeginsWith(prefix string) *SortCondition {
	return &SortCondition{Op: SortBeginsWith, Values: []any{prefix}}
}

// Between restricts the sort key to the inclusive range [lo, hi].
func Between(lo, hi any) *SortCondition {
	return &SortCondition{Op: SortBetween, Values: []any{lo, hi}}
}

// SortCompare restricts the sort key with a comparison.
func SortCompare(op SortOp, value any) *SortCondition {
	return &SortCondition{Op: op, Values: []any{value}}
}

// Query reads one partition of the table or of an index view.
type Query struct {
	Index        string
	PartitionKey string
	SortKey      *SortCondition
	Filter       Condition
	Descending   bool
	Limit        int
	Cursor       string
	Consistent   bool
}

// Scan reads the whole table.
type Scan struct {
	Filter Condition
	Limit  int
	Cursor string
}

// Page is one page of a query or scan. Cursor is empty on the last page.
type Page struct {
	Items  []Item
	Cursor string
}

// WriteKind identifies the kind of a transactional write.
type WriteKind string

const (
	WritePut    WriteKind = "PUT"
	WriteUpdate WriteKind = "UPDATE"
	WriteDelete WriteKind = "DELETE"
	WriteCheck  WriteKind = "CONDITION_CHECK"
)

// WriteOp is one participant in a TransactWrite.
type WriteOp struct {
	Kind      WriteKind
	Item      Item
	Key       Key
	Update    Update
	Condition Condition
}

// PutOp builds a transactional put.
func PutOp(item Item, cond Condition) WriteOp {
	return WriteOp{Kind: WritePut, Item: item, Key: item.Key(), Condition: cond}
}

// UpdateOp builds a transactional update.
func UpdateOp(key Key, upd Update, cond Condition) WriteOp {
	return WriteOp{Kind: WriteUpdate, Key: key, Update: upd, Condition: cond}
}

// DeleteOp builds a transactional delete.
func DeleteOp(key Key, cond Condition) WriteOp {
	return WriteOp{Kind: WriteDelete, Key: key, Condition: cond}
}

// CheckOp builds a transactional condition check that writes nothing.
func CheckOp(key Key, cond Condition) WriteOp {
	return WriteOp{Kind: WriteCheck, Key: key, Condition: cond}
}

// Cancellation reason codes reported per transaction participant.
const (
	ReasonNone                   = "None"
	ReasonConditionalCheckFailed = "ConditionalCheckFailed"
)

// TransactionCanceledError reports a rejected TransactWrite. Reasons is parallel to the
// submitted operations.
type TransactionCanceledError struct {
	Reasons []string
}

func (e *TransactionCanceledError) Error() string {
	return fmt.Sprintf("transaction canceled: [%s]", strings.Join(e.Reasons, ", "))
}

// Failed reports whether the i-th participant failed.
func (e *TransactionCanceledError) Failed(i int) bool {
	return i < len(e.Reasons) && e.Reasons[i] != "" && e.Reasons[i] != ReasonNone
}

// FailedIndexes lists every failed participant.
func (e *TransactionCanceledError) FailedIndexes() []int {
	var out []int
	for i := range e.Reasons {
		if e.Failed(i) {
			out = append(out, i)
		}
	}
	return out
}

// KeyValueStore is the single logical table every aggregate lives in.
type KeyValueStore interface {
	// Get returns nil, nil when the item does not exist.
	Get(ctx context.Context, key Key, consistency Consistency) (Item, error)
	Put(ctx context.Context, item Item, cond Condition) error
	// Update creates the item if absent (unless cond forbids it) and returns it after the update.
	Update(ctx context.Context, key Key, upd Update, cond Condition) (Item, error)
	// Delete returns the item as it was before deletion, or nil.
	Delete(ctx context.Context, key Key, cond Condition) (Item, error)
	BatchGet(ctx context.Context, keys []Key) ([]Item, error)
	BatchPut(ctx context.Context, items []Item) error
	BatchDelete(ctx context.Context, keys []Key) error
	Query(ctx context.Context, q Query) (Page, error)
	Scan(ctx context.Context, s Scan) (Page, error)
	TransactWrite(ctx context.Context, ops []WriteOp) error
}

// QueryAll pages through a query until exhausted.
func QueryAll(ctx context.Context, store KeyValueStore, q Query) ([]Item, error) {
	var items []Item
	for {
		page, err := store.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if page.Cursor == "" {
			return items, nil
		}
		q.Cursor = page.Cursor
	}
}
