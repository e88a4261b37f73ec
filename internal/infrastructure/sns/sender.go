package sns

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-form-verify/internal/config"
	"github.com/go-form-verify/internal/domain"
)

type publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Sender sends OTP SMS messages via AWS SNS.
type Sender struct {
	client   publisher
	senderID string
}

func NewSender(cfg *config.Config) (*Sender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, err
	}
	return &Sender{client: sns.NewFromConfig(awsCfg), senderID: cfg.AppName}, nil
}

// SendSMS publishes a transactional SMS. A number SNS rejects as malformed is
// reported as domain.ErrInvalidNumber.
func (s *Sender) SendSMS(ctx context.Context, to, message string) error {
	in := &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		},
	}
	if s.senderID != "" {
		in.MessageAttributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType: aws.String("String"), StringValue: aws.String(s.senderID),
		}
	}
	_, err := s.client.Publish(ctx, in)
	if err == nil {
		return nil
	}
	var invalidParam *types.InvalidParameterException
	var invalidValue *types.InvalidParameterValueException
	if errors.As(err, &invalidParam) || errors.As(err, &invalidValue) {
		return fmt.Errorf("sns publish: %w: %w", domain.ErrInvalidNumber, err)
	}
	return fmt.Errorf("sns publish: %w", err)
}
