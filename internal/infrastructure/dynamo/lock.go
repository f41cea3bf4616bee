// Package dynamo implements the cron lock backend on DynamoDB.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type putItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// LockBackend writes one item per lock, keyed by name. Times are Unix milliseconds;
// ttl (seconds) lets the table's TTL sweeper clear abandoned items.
type LockBackend struct {
	client putItemAPI
	table  string
}

func NewLockBackend(client putItemAPI, table string) *LockBackend {
	return &LockBackend{client: client, table: table}
}

func (b *LockBackend) TryAcquire(ctx context.Context, rec domain.LockRecord) (bool, error) {
	now := strconv.FormatInt(rec.AcquiredAt.UnixMilli(), 10)

	_, err := b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.table),
		Item: map[string]types.AttributeValue{
			"name":        &types.AttributeValueMemberS{Value: rec.Name},
			"owner":       &types.AttributeValueMemberS{Value: rec.Owner},
			"acquired_at": &types.AttributeValueMemberN{Value: now},
			"expires_at":  &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10)},
			"ttl":         &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.ExpiresAt.Unix(), 10)},
		},
		ConditionExpression:      aws.String("attribute_not_exists(#n) OR #e <= :now"),
		ExpressionAttributeNames: map[string]string{"#n": "name", "#e": "expires_at"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: now},
		},
	})

	var held *types.ConditionalCheckFailedException
	if errors.As(err, &held) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("put lock %s: %w", rec.Name, err)
	}
	return true, nil
}
