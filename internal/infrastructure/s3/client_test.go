package s3infra

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockObjects struct{ mock.Mock }

func (m *mockObjects) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockObjects) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func TestUploadAttachment(t *testing.T) {
	objs := &mockObjects{}
	objs.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		body, _ := io.ReadAll(in.Body)
		return aws.ToString(in.Bucket) == "bucket" &&
			aws.ToString(in.Key) == "attachments/sub1/field1" &&
			string(body) == "ciphertext"
	})).Return(&s3.PutObjectOutput{}, nil)
	store := &Store{client: objs, bucket: "bucket"}

	key, err := store.UploadAttachment(context.Background(), "sub1", "field1",
		base64.StdEncoding.EncodeToString([]byte("ciphertext")))
	require.NoError(t, err)
	assert.Equal(t, "attachments/sub1/field1", key)
	objs.AssertExpectations(t)
}

func TestUploadAttachment_Errors(t *testing.T) {
	objs := &mockObjects{}
	store := &Store{client: objs, bucket: "bucket"}

	_, err := store.UploadAttachment(context.Background(), "sub1", "field1", "%%%")
	assert.Error(t, err)
	objs.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything)

	objs.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("denied"))
	_, err = store.UploadAttachment(context.Background(), "sub1", "field1", "YQ==")
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	objs := &mockObjects{}
	objs.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return aws.ToString(in.Key) == "attachments/sub1/field1"
	})).Return(&s3.DeleteObjectOutput{}, nil)
	store := &Store{client: objs, bucket: "bucket"}

	require.NoError(t, store.Delete(context.Background(), AttachmentKey("sub1", "field1")))
	objs.AssertExpectations(t)
}
