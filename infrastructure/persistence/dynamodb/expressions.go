package dynamodb

import (
	"fmt"

	"socialcore/application/ports"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
)

// expressionSpec collects the parts of a request expression. Only the parts that are
// set end up in the built expression.
type expressionSpec struct {
	condition ports.Condition
	filter    ports.Condition
	update    *ports.Update
	key       *expression.KeyConditionBuilder
}

func (s expressionSpec) build() (*expression.Expression, error) {
	builder := expression.NewBuilder()
	used := false

	if s.condition != nil {
		cb, err := conditionBuilder(s.condition)
		if err != nil {
			return nil, err
		}
		builder = builder.WithCondition(cb)
		used = true
	}
	if s.filter != nil {
		fb, err := conditionBuilder(s.filter)
		if err != nil {
			return nil, err
		}
		builder = builder.WithFilter(fb)
		used = true
	}
	if s.update != nil && !s.update.IsEmpty() {
		builder = builder.WithUpdate(updateBuilder(*s.update))
		used = true
	}
	if s.key != nil {
		builder = builder.WithKeyCondition(*s.key)
		used = true
	}
	if !used {
		return nil, nil
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}
	return &expr, nil
}

func conditionBuilder(cond ports.Condition) (expression.ConditionBuilder, error) {
	switch c := cond.(type) {
	case ports.AttributeExists:
		return expression.AttributeExists(expression.Name(c.Name)), nil
	case ports.AttributeNotExists:
		return expression.AttributeNotExists(expression.Name(c.Name)), nil
	case ports.Compare:
		name, value := expression.Name(c.Name), expression.Value(c.Value)
		switch c.Op {
		case ports.OpEqual:
			return name.Equal(value), nil
		case ports.OpNotEqual:
			return name.NotEqual(value), nil
		case ports.OpLessThan:
			return name.LessThan(value), nil
		case ports.OpLessOrEqual:
			return name.LessThanEqual(value), nil
		case ports.OpGreaterThan:
			return name.GreaterThan(value), nil
		case ports.OpGreaterOrEqual:
			return name.GreaterThanEqual(value), nil
		}
		return expression.ConditionBuilder{}, fmt.Errorf("unsupported operator %q", c.Op)
	case ports.And:
		return combine(c, expression.And)
	case ports.Or:
		return combine(c, expression.Or)
	}
	return expression.ConditionBuilder{}, fmt.Errorf("unsupported condition %T", cond)
}

func combine(conds []ports.Condition,
	join func(expression.ConditionBuilder, expression.ConditionBuilder, ...expression.ConditionBuilder) expression.ConditionBuilder,
) (expression.ConditionBuilder, error) {
	if len(conds) == 0 {
		return expression.ConditionBuilder{}, fmt.Errorf("empty condition group")
	}
	builders := make([]expression.ConditionBuilder, len(conds))
	for i, c := range conds {
		b, err := conditionBuilder(c)
		if err != nil {
			return expression.ConditionBuilder{}, err
		}
		builders[i] = b
	}
	if len(builders) == 1 {
		return builders[0], nil
	}
	return join(builders[0], builders[1], builders[2:]...), nil
}

func updateBuilder(upd ports.Update) expression.UpdateBuilder {
	var ub expression.UpdateBuilder
	for name, value := range upd.Set {
		ub = ub.Set(expression.Name(name), expression.Value(value))
	}
	for name, delta := range upd.Add {
		ub = ub.Add(expression.Name(name), expression.Value(delta))
	}
	for _, name := range upd.Remove {
		ub = ub.Remove(expression.Name(name))
	}
	return ub
}

func keyCondition(index, partition string, sc *ports.SortCondition) (expression.KeyConditionBuilder, error) {
	pkName, skName := ports.IndexKeyNames(index)
	kc := expression.Key(pkName).Equal(expression.Value(partition))
	if sc == nil {
		return kc, nil
	}

	sk := expression.Key(skName)
	var skc expression.KeyConditionBuilder
	switch sc.Op {
	case ports.SortEqual:
		skc = sk.Equal(expression.Value(sc.Values[0]))
	case ports.SortBeginsWith:
		prefix, ok := sc.Values[0].(string)
		if !ok {
			return kc, fmt.Errorf("begins_with needs a string prefix")
		}
		skc = sk.BeginsWith(prefix)
	case ports.SortBetween:
		skc = sk.Between(expression.Value(sc.Values[0]), expression.Value(sc.Values[1]))
	case ports.SortLessThan:
		skc = sk.LessThan(expression.Value(sc.Values[0]))
	case ports.SortLessOrEqual:
		skc = sk.LessThanEqual(expression.Value(sc.Values[0]))
	case ports.SortGreaterThan:
		skc = sk.GreaterThan(expression.Value(sc.Values[0]))
	case ports.SortGreaterOrEqual:
		skc = sk.GreaterThanEqual(expression.Value(sc.Values[0]))
	default:
		return kc, fmt.Errorf("unsupported sort key operator %q", sc.Op)
	}
	return kc.And(skc), nil
}
