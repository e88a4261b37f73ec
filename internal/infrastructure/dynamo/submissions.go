package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-form-verify/internal/domain"
)

// SubmissionRepo stores finalized submissions. PK: submission_id.
type SubmissionRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewSubmissionRepo(client *dynamodb.Client, tableName string) *SubmissionRepo {
	return &SubmissionRepo{client: client, tableName: tableName}
}

func (r *SubmissionRepo) Create(ctx context.Context, s *domain.Submission) error {
	return putNew(ctx, r.client, r.tableName, attrSubmissionID, s)
}

// PendingSubmissionRepo holds submissions awaiting payment. PK: submission_id.
// TTL: purge_at, so stale records whose payment never completed expire on their own.
type PendingSubmissionRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewPendingSubmissionRepo(client *dynamodb.Client, tableName string) *PendingSubmissionRepo {
	return &PendingSubmissionRepo{client: client, tableName: tableName}
}

func (r *PendingSubmissionRepo) Create(ctx context.Context, s *domain.PendingSubmission) error {
	return putNew(ctx, r.client, r.tableName, attrSubmissionID, s)
}
