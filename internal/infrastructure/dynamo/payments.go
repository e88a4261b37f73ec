package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-form-verify/internal/domain"
)

// PaymentRepo stores payment records. PK: payment_id.
type PaymentRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewPaymentRepo(client *dynamodb.Client, tableName string) *PaymentRepo {
	return &PaymentRepo{client: client, tableName: tableName}
}

func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	return putNew(ctx, r.client, r.tableName, attrPaymentID, p)
}

// LinkIntent records the provider intent and pending submission on a payment that
// has no intent yet.
func (r *PaymentRepo) LinkIntent(ctx context.Context, paymentID, intentID, pendingSubmissionID string, now time.Time) error {
	in, err := linkIntentInput(r.tableName, paymentID, intentID, pendingSubmissionID, now)
	if err != nil {
		return err
	}
	if _, err := r.client.UpdateItem(ctx, in); err != nil {
		return writeErr("link payment intent", err)
	}
	return nil
}

func linkIntentInput(tableName, paymentID, intentID, pendingSubmissionID string, now time.Time) (*dynamodb.UpdateItemInput, error) {
	ue, err := buildUpdateExpr(map[string]interface{}{
		attrPaymentIntentID:     intentID,
		attrPendingSubmissionID: pendingSubmissionID,
		attrUpdatedAt:           now.UTC(),
	})
	if err != nil {
		return nil, err
	}
	ue.Names["#pk"] = attrPaymentID
	ue.Names["#pi"] = attrPaymentIntentID
	return &dynamodb.UpdateItemInput{
		TableName:                 aws.String(tableName),
		Key:                       strKey(attrPaymentID, paymentID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk) AND attribute_not_exists(#pi)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	}, nil
}

// putNew writes v as a new item, failing with domain.ErrConflict when keyAttr is taken.
func putNew(ctx context.Context, client *dynamodb.Client, tableName, keyAttr string, v interface{}) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal %s item: %w", tableName, err)
	}
	_, err = client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": keyAttr},
	})
	if err != nil {
		return writeErr("put "+tableName, err)
	}
	return nil
}
