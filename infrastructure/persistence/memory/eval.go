package memory

import (
	"fmt"
	"strconv"
	"strings"

	"socialcore/application/ports"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// compare orders two attribute values of the same scalar type. ok is false when the
// values are not comparable; booleans and nulls only support equality.
func compare(a, b types.AttributeValue) (cmp int, ordered bool, ok bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, isS := b.(*types.AttributeValueMemberS)
		if !isS {
			return 0, false, false
		}
		return strings.Compare(av.Value, bv.Value), true, true
	case *types.AttributeValueMemberN:
		bv, isN := b.(*types.AttributeValueMemberN)
		if !isN {
			return 0, false, false
		}
		x, err1 := strconv.ParseFloat(av.Value, 64)
		y, err2 := strconv.ParseFloat(bv.Value, 64)
		if err1 != nil || err2 != nil {
			return 0, false, false
		}
		switch {
		case x < y:
			return -1, true, true
		case x > y:
			return 1, true, true
		}
		return 0, true, true
	case *types.AttributeValueMemberBOOL:
		bv, isBool := b.(*types.AttributeValueMemberBOOL)
		if !isBool {
			return 0, false, false
		}
		if av.Value == bv.Value {
			return 0, false, true
		}
		return 1, false, true
	case *types.AttributeValueMemberNULL:
		if _, isNull := b.(*types.AttributeValueMemberNULL); isNull {
			return 0, false, true
		}
	}
	return 0, false, false
}

func applyOperator(op ports.Operator, a, b types.AttributeValue) (bool, error) {
	cmp, ordered, ok := compare(a, b)
	if !ok {
		return false, nil
	}
	switch op {
	case ports.OpEqual:
		return cmp == 0, nil
	case ports.OpNotEqual:
		return cmp != 0, nil
	}
	if !ordered {
		return false, nil
	}
	switch op {
	case ports.OpLessThan:
		return cmp < 0, nil
	case ports.OpLessOrEqual:
		return cmp <= 0, nil
	case ports.OpGreaterThan:
		return cmp > 0, nil
	case ports.OpGreaterOrEqual:
		return cmp >= 0, nil
	}
	return false, fmt.Errorf("unsupported operator %q", op)
}

// evaluate checks a condition against the current item, which is nil when absent.
func evaluate(item ports.Item, cond ports.Condition) (bool, error) {
	switch c := cond.(type) {
	case nil:
		return true, nil
	case ports.AttributeExists:
		_, ok := item[c.Name]
		return ok, nil
	case ports.AttributeNotExists:
		_, ok := item[c.Name]
		return !ok, nil
	case ports.Compare:
		current, ok := item[c.Name]
		if !ok {
			return false, nil
		}
		want, err := ports.AttributeValueOf(c.Value)
		if err != nil {
			return false, err
		}
		return applyOperator(c.Op, current, want)
	case ports.And:
		for _, sub := range c {
			ok, err := evaluate(item, sub)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case ports.Or:
		for _, sub := range c {
			ok, err := evaluate(item, sub)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("unsupported condition %T", cond)
}

func matchSortKey(av types.AttributeValue, sc *ports.SortCondition) (bool, error) {
	if sc == nil {
		return true, nil
	}
	values := make([]types.AttributeValue, len(sc.Values))
	for i, v := range sc.Values {
		converted, err := ports.AttributeValueOf(v)
		if err != nil {
			return false, err
		}
		values[i] = converted
	}

	switch sc.Op {
	case ports.SortBeginsWith:
		s, ok := av.(*types.AttributeValueMemberS)
		prefix, pok := values[0].(*types.AttributeValueMemberS)
		return ok && pok && strings.HasPrefix(s.Value, prefix.Value), nil
	case ports.SortBetween:
		lo, err := applyOperator(ports.OpGreaterOrEqual, av, values[0])
		if err != nil || !lo {
			return false, err
		}
		return applyOperator(ports.OpLessOrEqual, av, values[1])
	default:
		return applyOperator(ports.Operator(sc.Op), av, values[0])
	}
}

// applyUpdate returns a copy of existing with the update applied. A nil existing item
// is created from key.
func applyUpdate(existing ports.Item, key ports.Key, upd ports.Update) (ports.Item, error) {
	next := clone(existing)
	if next == nil {
		next = ports.Item{
			ports.AttrPK: &types.AttributeValueMemberS{Value: key.PK},
			ports.AttrSK: &types.AttributeValueMemberS{Value: key.SK},
		}
	}

	for name, v := range upd.Set {
		av, err := ports.AttributeValueOf(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", name, err)
		}
		next[name] = av
	}
	for _, name := range upd.Remove {
		delete(next, name)
	}
	for name, delta := range upd.Add {
		current := 0.0
		if av, ok := next[name]; ok {
			n, isN := av.(*types.AttributeValueMemberN)
			if !isN {
				return nil, fmt.Errorf("cannot add to non-numeric attribute %s", name)
			}
			parsed, err := strconv.ParseFloat(n.Value, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed number in %s: %w", name, err)
			}
			current = parsed
		}
		next[name] = &types.AttributeValueMemberN{
			Value: strconv.FormatFloat(current+float64(delta), 'f', -1, 64),
		}
	}
	return next, nil
}

func clone(item ports.Item) ports.Item {
	if item == nil {
		return nil
	}
	out := make(ports.Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
