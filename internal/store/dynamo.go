package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

const (
	pkPrefix = "STORE#"

	// maxBatchWrite is the DynamoDB BatchWriteItem limit per call.
	maxBatchWrite = 25
)

// DynamoAPI is the subset of *dynamodb.Client used by DynamoBackend.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// dynamoItem is the single-table item layout: PK=STORE#<store>, SK=<key>.
type dynamoItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Value     []byte `dynamodbav:"value"`
	UpdatedAt int64  `dynamodbav:"updatedAt"`
}

// DynamoBackend stores every logical store in one DynamoDB table. Items are
// limited to 400 KB, so it is best used for settings with payloads on S3
// (see SplitBackend).
type DynamoBackend struct {
	client    DynamoAPI
	tableName string
}

var _ Backend = (*DynamoBackend)(nil)

// NewDynamoBackend creates a DynamoBackend for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoBackend(client DynamoAPI, tableName string) *DynamoBackend {
	return &DynamoBackend{client: client, tableName: tableName}
}

func storePK(store string) string {
	return pkPrefix + store
}

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func (d *DynamoBackend) Get(ctx context.Context, store, key string) ([]byte, bool, error) {
	if err := checkStore(store); err != nil {
		return nil, false, err
	}
	pk := storePK(store)
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &d.tableName,
		Key:       itemKey(pk, key),
	})
	if err != nil {
		return nil, false, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, key, err)
	}
	if result.Item == nil {
		return nil, false, nil
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, false, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, key, err)
	}
	return item.Value, true, nil
}

func (d *DynamoBackend) Set(ctx context.Context, store, key string, value []byte) error {
	if err := checkStore(store); err != nil {
		return err
	}
	pk := storePK(store)
	item, err := attributevalue.MarshalMap(dynamoItem{
		PK:        pk,
		SK:        key,
		Value:     value,
		UpdatedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &d.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, key, err)
	}
	return nil
}

func (d *DynamoBackend) Delete(ctx context.Context, store, key string) error {
	if err := checkStore(store); err != nil {
		return err
	}
	pk := storePK(store)
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &d.tableName,
		Key:       itemKey(pk, key),
	})
	if err != nil {
		return fmt.Errorf("DeleteItem PK=%s SK=%s: %w", pk, key, err)
	}
	return nil
}

func (d *DynamoBackend) GetAll(ctx context.Context, store string) (map[string][]byte, error) {
	if err := checkStore(store); err != nil {
		return nil, err
	}
	items, err := d.queryStore(ctx, store, false)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(items))
	for _, raw := range items {
		var item dynamoItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("unmarshal %s item: %w", store, err)
		}
		out[item.SK] = item.Value
	}
	return out, nil
}

func (d *DynamoBackend) Clear(ctx context.Context, store string) error {
	if err := checkStore(store); err != nil {
		return err
	}
	keys, err := d.queryStore(ctx, store, true)
	if err != nil {
		return err
	}
	return d.batchDeleteKeys(ctx, keys)
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (d *DynamoBackend) Close() error { return nil }

// queryStore returns every item in a store's partition. keysOnly projects
// just PK and SK, which is all Clear needs.
func (d *DynamoBackend) queryStore(ctx context.Context, store string, keysOnly bool) ([]map[string]types.AttributeValue, error) {
	pk := storePK(store)
	input := &dynamodb.QueryInput{
		TableName:              &d.tableName,
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
	}
	if keysOnly {
		input.ProjectionExpression = aws.String("PK, SK")
	}

	var all []map[string]types.AttributeValue
	for {
		result, err := d.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Query PK=%s: %w", pk, err)
		}
		all = append(all, result.Items...)
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return all, nil
}

// batchDeleteKeys deletes items in chunks of maxBatchWrite.
func (d *DynamoBackend) batchDeleteKeys(ctx context.Context, items []map[string]types.AttributeValue) error {
	for i := 0; i < len(items); i += maxBatchWrite {
		end := min(i+maxBatchWrite, len(items))

		requests := make([]types.WriteRequest, 0, end-i)
		for _, item := range items[i:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{
					"PK": item["PK"],
					"SK": item["SK"],
				}},
			})
		}

		result, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{d.tableName: requests},
		})
		if err != nil {
			return fmt.Errorf("BatchWriteItem delete (%d items): %w", len(requests), err)
		}
		if n := len(result.UnprocessedItems[d.tableName]); n > 0 {
			log.Warn().Int("unprocessed", n).Str("table", d.tableName).Msg("BatchWriteItem left items unprocessed")
		}
	}
	return nil
}
