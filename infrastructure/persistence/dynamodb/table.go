package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"socialcore/application/ports"
	"socialcore/pkg/common"
	"socialcore/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const (
	batchWriteSize   = 25
	batchGetSize     = 100
	maxBatchAttempts = 5
	baseBackoff      = 50 * time.Millisecond
)

// API is the subset of the DynamoDB client used by Table.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Table implements ports.KeyValueStore on a single DynamoDB table.
type Table struct {
	client    API
	tableName string
	logger    *zap.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer
}

// NewTable creates a new Table
func NewTable(client API, tableName string, logger *zap.Logger, metrics *observability.Metrics, tracer *observability.Tracer) *Table {
	return &Table{
		client:    client,
		tableName: tableName,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
	}
}

var _ ports.KeyValueStore = (*Table)(nil)

func (t *Table) observe(ctx context.Context, operation string, fn func(context.Context) error) error {
	err := t.tracer.TraceFunction(ctx, "dynamodb."+operation, fn)
	t.metrics.StoreOperation(operation, err)
	return err
}

func (t *Table) Get(ctx context.Context, key ports.Key, consistency ports.Consistency) (ports.Item, error) {
	var item ports.Item
	err := t.observe(ctx, "GetItem", func(ctx context.Context) error {
		out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(t.tableName),
			Key:            keyAttributes(key),
			ConsistentRead: aws.Bool(consistency == ports.StronglyConsistent),
		})
		if err != nil {
			return fmt.Errorf("failed to get item %s: %w", key, err)
		}
		if len(out.Item) > 0 {
			item = out.Item
		}
		return nil
	})
	return item, err
}

func (t *Table) Put(ctx context.Context, item ports.Item, cond ports.Condition) error {
	return t.observe(ctx, "PutItem", func(ctx context.Context) error {
		input := &dynamodb.PutItemInput{
			TableName: aws.String(t.tableName),
			Item:      item,
		}
		expr, err := expressionSpec{condition: cond}.build()
		if err != nil {
			return err
		}
		if expr != nil {
			input.ConditionExpression = expr.Condition()
			input.ExpressionAttributeNames = expr.Names()
			input.ExpressionAttributeValues = expr.Values()
		}
		_, err = t.client.PutItem(ctx, input)
		return translateError(err)
	})
}

func (t *Table) Update(ctx context.Context, key ports.Key, upd ports.Update, cond ports.Condition) (ports.Item, error) {
	var item ports.Item
	err := t.observe(ctx, "UpdateItem", func(ctx context.Context) error {
		input := &dynamodb.UpdateItemInput{
			TableName:    aws.String(t.tableName),
			Key:          keyAttributes(key),
			ReturnValues: types.ReturnValueAllNew,
		}
		expr, err := expressionSpec{condition: cond, update: &upd}.build()
		if err != nil {
			return err
		}
		if expr != nil {
			input.ConditionExpression = expr.Condition()
			input.UpdateExpression = expr.Update()
			input.ExpressionAttributeNames = expr.Names()
			input.ExpressionAttributeValues = expr.Values()
		}
		out, err := t.client.UpdateItem(ctx, input)
		if err != nil {
			return translateError(err)
		}
		item = out.Attributes
		return nil
	})
	return item, err
}

func (t *Table) Delete(ctx context.Context, key ports.Key, cond ports.Condition) (ports.Item, error) {
	var item ports.Item
	err := t.observe(ctx, "DeleteItem", func(ctx context.Context) error {
		input := &dynamodb.DeleteItemInput{
			TableName:    aws.String(t.tableName),
			Key:          keyAttributes(key),
			ReturnValues: types.ReturnValueAllOld,
		}
		expr, err := expressionSpec{condition: cond}.build()
		if err != nil {
			return err
		}
		if expr != nil {
			input.ConditionExpression = expr.Condition()
			input.ExpressionAttributeNames = expr.Names()
			input.ExpressionAttributeValues = expr.Values()
		}
		out, err := t.client.DeleteItem(ctx, input)
		if err != nil {
			return translateError(err)
		}
		if len(out.Attributes) > 0 {
			item = out.Attributes
		}
		return nil
	})
	return item, err
}

func (t *Table) BatchGet(ctx context.Context, keys []ports.Key) ([]ports.Item, error) {
	var items []ports.Item
	err := t.observe(ctx, "BatchGetItem", func(ctx context.Context) error {
		for start := 0; start < len(keys); start += batchGetSize {
			end := min(start+batchGetSize, len(keys))
			pending := make([]map[string]types.AttributeValue, 0, end-start)
			for _, key := range keys[start:end] {
				pending = append(pending, keyAttributes(key))
			}

			for attempt := 0; len(pending) > 0; attempt++ {
				if attempt > 0 {
					if err := t.backoff(ctx, attempt, "BatchGetItem", len(pending)); err != nil {
						return err
					}
				}
				out, err := t.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
					RequestItems: map[string]types.KeysAndAttributes{
						t.tableName: {Keys: pending},
					},
				})
				if err != nil {
					return fmt.Errorf("batch get failed: %w", err)
				}
				for _, item := range out.Responses[t.tableName] {
					items = append(items, item)
				}
				pending = out.UnprocessedKeys[t.tableName].Keys
			}
		}
		return nil
	})
	return items, err
}

func (t *Table) BatchPut(ctx context.Context, items []ports.Item) error {
	requests := make([]types.WriteRequest, len(items))
	for i, item := range items {
		requests[i] = types.WriteRequest{PutRequest: &types.PutRequest{Item: item}}
	}
	return t.observe(ctx, "BatchWriteItem", func(ctx context.Context) error {
		return t.batchWrite(ctx, requests)
	})
}

func (t *Table) BatchDelete(ctx context.Context, keys []ports.Key) error {
	requests := make([]types.WriteRequest, len(keys))
	for i, key := range keys {
		requests[i] = types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: keyAttributes(key)}}
	}
	return t.observe(ctx, "BatchWriteItem", func(ctx context.Context) error {
		return t.batchWrite(ctx, requests)
	})
}

func (t *Table) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	for start := 0; start < len(requests); start += batchWriteSize {
		end := min(start+batchWriteSize, len(requests))
		pending := requests[start:end]

		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt > 0 {
				if err := t.backoff(ctx, attempt, "BatchWriteItem", len(pending)); err != nil {
					return err
				}
			}
			out, err := t.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{t.tableName: pending},
			})
			if err != nil {
				return fmt.Errorf("batch write failed: %w", err)
			}
			pending = out.UnprocessedItems[t.tableName]
		}
	}
	return nil
}

func (t *Table) backoff(ctx context.Context, attempt int, operation string, pending int) error {
	if attempt >= maxBatchAttempts {
		return fmt.Errorf("%s left %d unprocessed requests after %d attempts", operation, pending, attempt)
	}
	t.logger.Debug("Retrying unprocessed batch requests",
		zap.String("operation", operation),
		zap.Int("pending", pending),
		zap.Int("attempt", attempt),
	)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(baseBackoff << (attempt - 1)):
		return nil
	}
}

func (t *Table) Query(ctx context.Context, q ports.Query) (ports.Page, error) {
	var page ports.Page
	err := t.observe(ctx, "Query", func(ctx context.Context) error {
		kc, err := keyCondition(q.Index, q.PartitionKey, q.SortKey)
		if err != nil {
			return err
		}
		expr, err := expressionSpec{key: &kc, filter: q.Filter}.build()
		if err != nil {
			return err
		}

		input := &dynamodb.QueryInput{
			TableName:                 aws.String(t.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ScanIndexForward:          aws.Bool(!q.Descending),
		}
		if q.Index != "" {
			input.IndexName = aws.String(q.Index)
		} else if q.Consistent {
			input.ConsistentRead = aws.Bool(true)
		}
		if q.Limit > 0 {
			input.Limit = aws.Int32(int32(q.Limit))
		}
		if input.ExclusiveStartKey, err = common.DecodeCursor(q.Cursor); err != nil {
			return err
		}

		out, err := t.client.Query(ctx, input)
		if err != nil {
			return fmt.Errorf("query on %q failed: %w", q.PartitionKey, err)
		}
		page, err = toPage(out.Items, out.LastEvaluatedKey)
		return err
	})
	return page, err
}

func (t *Table) Scan(ctx context.Context, s ports.Scan) (ports.Page, error) {
	var page ports.Page
	err := t.observe(ctx, "Scan", func(ctx context.Context) error {
		input := &dynamodb.ScanInput{TableName: aws.String(t.tableName)}
		expr, err := expressionSpec{filter: s.Filter}.build()
		if err != nil {
			return err
		}
		if expr != nil {
			input.FilterExpression = expr.Filter()
			input.ExpressionAttributeNames = expr.Names()
			input.ExpressionAttributeValues = expr.Values()
		}
		if s.Limit > 0 {
			input.Limit = aws.Int32(int32(s.Limit))
		}
		if input.ExclusiveStartKey, err = common.DecodeCursor(s.Cursor); err != nil {
			return err
		}

		out, err := t.client.Scan(ctx, input)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		page, err = toPage(out.Items, out.LastEvaluatedKey)
		return err
	})
	return page, err
}

func (t *Table) TransactWrite(ctx context.Context, ops []ports.WriteOp) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > ports.MaxTransactItems {
		return fmt.Errorf("transaction has %d items, limit is %d", len(ops), ports.MaxTransactItems)
	}

	items := make([]types.TransactWriteItem, len(ops))
	for i, op := range ops {
		item, err := t.transactItem(op)
		if err != nil {
			return fmt.Errorf("transaction item %d: %w", i, err)
		}
		items[i] = item
	}

	return t.observe(ctx, "TransactWriteItems", func(ctx context.Context) error {
		_, err := t.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items,
		})
		return translateError(err)
	})
}

func (t *Table) transactItem(op ports.WriteOp) (types.TransactWriteItem, error) {
	spec := expressionSpec{condition: op.Condition}
	if op.Kind == ports.WriteUpdate {
		spec.update = &op.Update
	}
	expr, err := spec.build()
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	var (
		condition *string
		names     map[string]string
		values    map[string]types.AttributeValue
	)
	if expr != nil {
		condition, names, values = expr.Condition(), expr.Names(), expr.Values()
	}

	switch op.Kind {
	case ports.WritePut:
		return types.TransactWriteItem{Put: &types.Put{
			TableName:                 aws.String(t.tableName),
			Item:                      op.Item,
			ConditionExpression:       condition,
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		}}, nil
	case ports.WriteUpdate:
		if op.Update.IsEmpty() {
			return types.TransactWriteItem{}, fmt.Errorf("update without changes")
		}
		return types.TransactWriteItem{Update: &types.Update{
			TableName:                 aws.String(t.tableName),
			Key:                       keyAttributes(op.Key),
			UpdateExpression:          expr.Update(),
			ConditionExpression:       condition,
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		}}, nil
	case ports.WriteDelete:
		return types.TransactWriteItem{Delete: &types.Delete{
			TableName:                 aws.String(t.tableName),
			Key:                       keyAttributes(op.Key),
			ConditionExpression:       condition,
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		}}, nil
	case ports.WriteCheck:
		if condition == nil {
			return types.TransactWriteItem{}, fmt.Errorf("condition check without a condition")
		}
		return types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
			TableName:                 aws.String(t.tableName),
			Key:                       keyAttributes(op.Key),
			ConditionExpression:       condition,
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		}}, nil
	}
	return types.TransactWriteItem{}, fmt.Errorf("unsupported write kind %q", op.Kind)
}

func keyAttributes(key ports.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		ports.AttrPK: &types.AttributeValueMemberS{Value: key.PK},
		ports.AttrSK: &types.AttributeValueMemberS{Value: key.SK},
	}
}

func toPage(items []map[string]types.AttributeValue, lastKey map[string]types.AttributeValue) (ports.Page, error) {
	page := ports.Page{Items: make([]ports.Item, len(items))}
	for i, item := range items {
		page.Items[i] = item
	}
	cursor, err := common.EncodeCursor(lastKey)
	if err != nil {
		return ports.Page{}, err
	}
	page.Cursor = cursor
	return page, nil
}

// translateError maps conditional failures onto the store's error contract.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ports.ErrConditionFailed
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		reasons := make([]string, len(tce.CancellationReasons))
		for i, reason := range tce.CancellationReasons {
			reasons[i] = aws.ToString(reason.Code)
		}
		return &ports.TransactionCanceledError{Reasons: reasons}
	}
	return err
}
