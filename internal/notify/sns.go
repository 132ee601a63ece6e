// internal/notify/sns.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"retention-engine/internal/common/logger"
	"retention-engine/internal/engine/bulk"
)

// SNSPublisher sends bulk run summaries to an SNS topic so downstream
// consumers (HR dashboards, audit pipelines) learn about completed
// treatment runs.
type SNSPublisher struct {
	client   *sns.Client
	topicARN string
	logger   logger.Logger
}

type runSummaryMessage struct {
	RunID        string            `json:"runId"`
	CompletedAt  time.Time         `json:"completedAt"`
	SuccessCount int               `json:"successCount"`
	FailureCount int               `json:"failureCount"`
	Cancelled    bool              `json:"cancelled"`
	FailedItems  []bulk.FailedItem `json:"failedItems,omitempty"`
}

// NewSNSPublisher resolves AWS credentials from the default chain.
func NewSNSPublisher(ctx context.Context, region, topicARN string, log logger.Logger) (*SNSPublisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SNSPublisher{
		client:   sns.NewFromConfig(cfg),
		topicARN: topicARN,
		logger:   log.WithFields(map[string]interface{}{"component": "sns_publisher"}),
	}, nil
}

// PublishRunSummary publishes a JSON summary of a finished bulk run.
func (p *SNSPublisher) PublishRunSummary(ctx context.Context, runID string, summary *bulk.Summary) error {
	msg := runSummaryMessage{
		RunID:        runID,
		CompletedAt:  time.Now().UTC(),
		SuccessCount: summary.SuccessCount,
		FailureCount: summary.FailureCount,
		Cancelled:    summary.Cancelled,
		FailedItems:  summary.FailedItems,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String("Treatment run completed"),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		p.logger.WithError(err).Error("Failed to publish run summary", nil)
		return fmt.Errorf("failed to publish run summary: %w", err)
	}

	p.logger.Info("Run summary published", map[string]interface{}{
		"run_id":  runID,
		"success": summary.SuccessCount,
		"failure": summary.FailureCount,
	})

	return nil
}
