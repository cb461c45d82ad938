// Package worker consumes optimization jobs from SQS inside the optimizer
// Lambda. Each record is handled independently; records that should be
// retried are reported back as partial batch failures.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"aquaplan/internal/types"
)

// JobProcessor runs one decoded job. A nil error acknowledges the message.
type JobProcessor interface {
	ProcessJob(ctx context.Context, msg types.OptimizationJobMessage) error
}

// LagRecorder receives the time a message waited on the queue.
type LagRecorder interface {
	RecordQueueLag(ctx context.Context, lag time.Duration)
}

// Handler is the SQS event handler registered with lambda.Start.
type Handler struct {
	jobs   JobProcessor
	lag    LagRecorder
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler creates a Handler. lag may be nil.
func NewHandler(jobs JobProcessor, lag LagRecorder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{jobs: jobs, lag: lag, logger: logger, now: time.Now}
}

// Handle processes every record in the batch and returns the ids of those
// that failed so SQS redelivers only them.
func (h *Handler) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse

	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.ErrorContext(ctx, "failed to process optimization job",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}

	if n := len(resp.BatchItemFailures); n > 0 {
		h.logger.WarnContext(ctx, "batch finished with failures",
			"records", len(event.Records), "failed", n)
	}
	return resp, nil
}

func (h *Handler) processRecord(ctx context.Context, record events.SQSMessage) error {
	var msg types.OptimizationJobMessage
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		// A body that does not decode never will; ack it.
		h.logger.ErrorContext(ctx, "dropping undecodable job message",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		return nil
	}
	if msg.RunID == "" {
		h.logger.ErrorContext(ctx, "dropping job message without run_id", "message_id", record.MessageId)
		return nil
	}

	msg.RetryCount = receiveCount(record) - 1
	logger := h.logger.With(
		"message_id", record.MessageId,
		"run_id", msg.RunID,
		"trace_id", msg.TraceID,
		"retry_count", msg.RetryCount,
	)

	if h.lag != nil {
		if sent, ok := sentTime(record); ok {
			h.lag.RecordQueueLag(ctx, h.now().Sub(sent))
		}
	}

	logger.InfoContext(ctx, "processing optimization job")
	return h.jobs.ProcessJob(types.WithLogger(ctx, logger), msg)
}

// receiveCount reads ApproximateReceiveCount, defaulting to 1.
func receiveCount(record events.SQSMessage) int {
	n, err := strconv.Atoi(record.Attributes["ApproximateReceiveCount"])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// sentTime parses the SentTimestamp attribute (Unix milliseconds).
func sentTime(record events.SQSMessage) (time.Time, bool) {
	raw, ok := record.Attributes["SentTimestamp"]
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
