package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-form-verify/internal/domain"
)

// TransactionRepo stores verification transactions. Per-field state lives in the
// fields list and every mutation is one conditional UpdateItem on a list index.
// PK: transaction_id. TTL: purge_at.
type TransactionRepo struct {
	client    *dynamodb.Client
	tableName string
	retention time.Duration
}

func NewTransactionRepo(client *dynamodb.Client, tableName string, retention time.Duration) *TransactionRepo {
	return &TransactionRepo{client: client, tableName: tableName, retention: retention}
}

type transactionItem struct {
	TransactionID string      `dynamodbav:"transaction_id"`
	FormID        string      `dynamodbav:"form_id"`
	CreatedAt     int64       `dynamodbav:"created_at"`
	ExpireAt      int64       `dynamodbav:"expire_at"`
	PurgeAt       int64       `dynamodbav:"purge_at"`
	Fields        []fieldItem `dynamodbav:"fields"`
}

type fieldItem struct {
	FieldID       string  `dynamodbav:"field_id"`
	FieldType     string  `dynamodbav:"field_type"`
	Answer        string  `dynamodbav:"answer"`
	HashedOtp     *string `dynamodbav:"hashed_otp,omitempty"`
	HashCreatedAt *int64  `dynamodbav:"hash_created_at,omitempty"`
	HashRetries   int     `dynamodbav:"hash_retries"`
	OtpRequests   int     `dynamodbav:"otp_requests"`
	SignedData    *string `dynamodbav:"signed_data,omitempty"`
}

func toItem(t *domain.VerificationTransaction, retention time.Duration) transactionItem {
	item := transactionItem{
		TransactionID: t.TransactionID,
		FormID:        t.FormID,
		CreatedAt:     t.CreatedAt.UnixMilli(),
		ExpireAt:      t.ExpireAt.UnixMilli(),
		PurgeAt:       t.ExpireAt.Add(retention).Unix(),
		Fields:        make([]fieldItem, len(t.Fields)),
	}
	for i, f := range t.Fields {
		fi := fieldItem{
			FieldID:     f.FieldID,
			FieldType:   f.FieldType,
			Answer:      f.Answer,
			HashedOtp:   f.HashedOtp,
			HashRetries: f.HashRetries,
			OtpRequests: f.OtpRequests,
			SignedData:  f.SignedData,
		}
		if f.HashCreatedAt != nil {
			ms := f.HashCreatedAt.UnixMilli()
			fi.HashCreatedAt = &ms
		}
		item.Fields[i] = fi
	}
	return item
}

func fromItem(item transactionItem) *domain.VerificationTransaction {
	t := &domain.VerificationTransaction{
		TransactionID: item.TransactionID,
		FormID:        item.FormID,
		CreatedAt:     time.UnixMilli(item.CreatedAt).UTC(),
		ExpireAt:      time.UnixMilli(item.ExpireAt).UTC(),
		Fields:        make([]domain.FieldVerification, len(item.Fields)),
	}
	for i, fi := range item.Fields {
		f := domain.FieldVerification{
			FieldID:     fi.FieldID,
			FieldType:   fi.FieldType,
			Answer:      fi.Answer,
			HashedOtp:   fi.HashedOtp,
			HashRetries: fi.HashRetries,
			OtpRequests: fi.OtpRequests,
			SignedData:  fi.SignedData,
		}
		if fi.HashCreatedAt != nil {
			ts := time.UnixMilli(*fi.HashCreatedAt).UTC()
			f.HashCreatedAt = &ts
		}
		t.Fields[i] = f
	}
	return t
}

func (r *TransactionRepo) Create(ctx context.Context, t *domain.VerificationTransaction) error {
	item, err := attributevalue.MarshalMap(toItem(t, r.retention))
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": attrTransactionID},
	})
	if err != nil {
		return writeErr("put transaction", err)
	}
	return nil
}

// Get reads the transaction with strong consistency so a re-read after a failed
// condition observes the write that caused it.
func (r *TransactionRepo) Get(ctx context.Context, transactionID string) (*domain.VerificationTransaction, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(attrTransactionID, transactionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("transaction not found: %w", domain.ErrNotFound)
	}
	var item transactionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	return fromItem(item), nil
}

func (r *TransactionRepo) RecordOtpIssued(ctx context.Context, transactionID string, issue domain.OtpIssue) error {
	return r.update(ctx, recordOtpIssuedInput(r.tableName, transactionID, issue), "record otp issued")
}

func (r *TransactionRepo) IncrementRetries(ctx context.Context, transactionID string, a domain.OtpAttempt) error {
	return r.update(ctx, incrementRetriesInput(r.tableName, transactionID, a), "increment retries")
}

func (r *TransactionRepo) ConsumeOtp(ctx context.Context, transactionID string, a domain.OtpAttempt) error {
	return r.update(ctx, consumeOtpInput(r.tableName, transactionID, a), "consume otp")
}

func (r *TransactionRepo) ResetField(ctx context.Context, transactionID string, reset domain.FieldReset) error {
	return r.update(ctx, resetFieldInput(r.tableName, transactionID, reset), "reset field")
}

func (r *TransactionRepo) update(ctx context.Context, in *dynamodb.UpdateItemInput, op string) error {
	if _, err := r.client.UpdateItem(ctx, in); err != nil {
		return writeErr(op, err)
	}
	return nil
}

// fieldExpr accumulates an update on one element of the fields list. Every update
// is conditioned on the transaction being live and the element holding fieldID.
type fieldExpr struct {
	path   string
	names  map[string]string
	values map[string]types.AttributeValue
	set    []string
	remove []string
	cond   []string
}

func newFieldExpr(index int, fieldID string, now time.Time) *fieldExpr {
	e := &fieldExpr{
		path: "#fl[" + strconv.Itoa(index) + "]",
		names: map[string]string{
			"#id":  attrTransactionID,
			"#exp": attrExpireAt,
			"#fl":  attrFields,
			"#fid": fieldFieldID,
		},
		values: map[string]types.AttributeValue{
			":fid": &types.AttributeValueMemberS{Value: fieldID},
			":now": numberAV(now.UnixMilli()),
		},
	}
	e.cond = append(e.cond, "attribute_exists(#id)", "#exp > :now", e.attr("#fid")+" = :fid")
	return e
}

// attr returns the document path of a per-field attribute placeholder.
func (e *fieldExpr) attr(name string) string { return e.path + "." + name }

func (e *fieldExpr) input(tableName, transactionID string) *dynamodb.UpdateItemInput {
	var expr string
	if len(e.set) > 0 {
		expr = "SET " + strings.Join(e.set, ", ")
	}
	if len(e.remove) > 0 {
		if expr != "" {
			expr += " "
		}
		expr += "REMOVE " + strings.Join(e.remove, ", ")
	}
	return &dynamodb.UpdateItemInput{
		TableName:                 aws.String(tableName),
		Key:                       strKey(attrTransactionID, transactionID),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String(strings.Join(e.cond, " AND ")),
		ExpressionAttributeNames:  e.names,
		ExpressionAttributeValues: e.values,
	}
}

func recordOtpIssuedInput(tableName, transactionID string, issue domain.OtpIssue) *dynamodb.UpdateItemInput {
	e := newFieldExpr(issue.Index, issue.FieldID, issue.Now)
	e.names["#ho"] = fieldHashedOtp
	e.names["#hca"] = fieldHashCreatedAt
	e.names["#hr"] = fieldHashRetries
	e.names["#or"] = fieldOtpRequests
	e.names["#ans"] = fieldAnswer
	e.names["#sd"] = fieldSignedData
	e.values[":ho"] = &types.AttributeValueMemberS{Value: issue.HashedOtp}
	e.values[":ans"] = &types.AttributeValueMemberS{Value: issue.Answer}
	e.values[":zero"] = numberAV(0)
	e.values[":one"] = numberAV(1)
	e.values[":max"] = numberAV(int64(issue.MaxRequests))
	e.values[":boundary"] = numberAV(issue.CooldownBoundary.UnixMilli())

	e.set = []string{
		e.attr("#ho") + " = :ho",
		e.attr("#hca") + " = :now",
		e.attr("#hr") + " = :zero",
		e.attr("#ans") + " = :ans",
		e.attr("#or") + " = " + e.attr("#or") + " + :one",
	}
	e.remove = []string{e.attr("#sd")}
	e.cond = append(e.cond,
		e.attr("#or")+" < :max",
		"(attribute_not_exists("+e.attr("#hca")+") OR "+e.attr("#hca")+" <= :boundary)",
	)
	return e.input(tableName, transactionID)
}

// attemptExpr conditions on the challenge still being the one the caller compared
// against and on retries remaining.
func attemptExpr(a domain.OtpAttempt) *fieldExpr {
	e := newFieldExpr(a.Index, a.FieldID, a.Now)
	e.names["#ho"] = fieldHashedOtp
	e.names["#hr"] = fieldHashRetries
	e.values[":ho"] = &types.AttributeValueMemberS{Value: a.HashedOtp}
	e.values[":max"] = numberAV(int64(a.MaxRetries))
	e.cond = append(e.cond, e.attr("#ho")+" = :ho", e.attr("#hr")+" < :max")
	return e
}

func incrementRetriesInput(tableName, transactionID string, a domain.OtpAttempt) *dynamodb.UpdateItemInput {
	e := attemptExpr(a)
	e.values[":one"] = numberAV(1)
	e.set = []string{e.attr("#hr") + " = " + e.attr("#hr") + " + :one"}
	return e.input(tableName, transactionID)
}

func consumeOtpInput(tableName, transactionID string, a domain.OtpAttempt) *dynamodb.UpdateItemInput {
	e := attemptExpr(a)
	e.names["#hca"] = fieldHashCreatedAt
	e.names["#sd"] = fieldSignedData
	e.values[":sd"] = &types.AttributeValueMemberS{Value: a.SignedData}
	e.set = []string{e.attr("#sd") + " = :sd"}
	e.remove = []string{e.attr("#ho"), e.attr("#hca")}
	return e.input(tableName, transactionID)
}

func resetFieldInput(tableName, transactionID string, reset domain.FieldReset) *dynamodb.UpdateItemInput {
	e := newFieldExpr(reset.Index, reset.FieldID, reset.Now)
	e.names["#ho"] = fieldHashedOtp
	e.names["#hca"] = fieldHashCreatedAt
	e.names["#hr"] = fieldHashRetries
	e.names["#sd"] = fieldSignedData
	e.values[":zero"] = numberAV(0)
	e.set = []string{e.attr("#hr") + " = :zero"}
	e.remove = []string{e.attr("#ho"), e.attr("#hca"), e.attr("#sd")}
	return e.input(tableName, transactionID)
}

func numberAV(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}
