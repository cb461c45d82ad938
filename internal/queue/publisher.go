// Package queue provides the SQS producer that hands optimization jobs to the
// optimizer worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"aquaplan/internal/config"
	"aquaplan/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// JobPublisher serializes OptimizationJobMessages onto the optimization queue.
type JobPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewJobPublisher reads the queue URL from awsCfg.
func NewJobPublisher(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *JobPublisher {
	return &JobPublisher{
		client:   client,
		queueURL: awsCfg.OptimizationQueueURL,
		logger:   logger,
	}
}

// Publish enqueues msg. The run id and pump count travel as message
// attributes so the worker can log before decoding the body.
func (p *JobPublisher) Publish(ctx context.Context, msg types.OptimizationJobMessage) error {
	if p.queueURL == "" {
		return types.NewAppError(types.ErrCodeFeatureNotConfigured, "optimization queue is not configured", nil)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal OptimizationJobMessage: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"run_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.RunID),
			},
			"pumps": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.Itoa(len(msg.Pumps))),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(types.ErrCodeInternalQueue,
			fmt.Sprintf("failed to send optimization job to %s", p.queueURL), err)
	}

	p.logger.InfoContext(ctx, "optimization job sent",
		"queue_url", p.queueURL,
		"run_id", msg.RunID,
		"trace_id", msg.TraceID,
		"seed", msg.Seed,
		"retry_count", msg.RetryCount,
	)
	return nil
}
