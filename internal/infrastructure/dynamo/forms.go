package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-form-verify/internal/domain"
)

// FormRepo reads form documents. Forms are authored by another service.
type FormRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewFormRepo(client *dynamodb.Client, tableName string) *FormRepo {
	return &FormRepo{client: client, tableName: tableName}
}

func (r *FormRepo) Get(ctx context.Context, formID string) (*domain.Form, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(attrFormID, formID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("form not found: %w", domain.ErrNotFound)
	}
	var f domain.Form
	if err := attributevalue.UnmarshalMap(out.Item, &f); err != nil {
		return nil, fmt.Errorf("unmarshal form: %w", err)
	}
	return &f, nil
}
