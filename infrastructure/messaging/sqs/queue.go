package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"watchtower-backend/application/ports"
)

// sendBatchMax is the SQS batch API limit.
const sendBatchMax = 10

// maxDelay is the SQS DelaySeconds ceiling.
const maxDelay = 900 * time.Second

// Queue implements the Queue interface on an SQS queue. Retry bookkeeping
// lives in the job payload, so messages are deleted on receipt rather than
// relying on visibility timeouts.
type Queue struct {
	client   *sqs.Client
	queueURL string
	logger   *zap.Logger
}

// NewQueue creates a new SQS-backed queue
func NewQueue(client *sqs.Client, queueURL string, logger *zap.Logger) *Queue {
	return &Queue{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// Enqueue submits jobs in batches of up to ten
func (q *Queue) Enqueue(ctx context.Context, jobs ...ports.Job) error {
	for start := 0; start < len(jobs); start += sendBatchMax {
		end := start + sendBatchMax
		if end > len(jobs) {
			end = len(jobs)
		}

		entries := make([]types.SendMessageBatchRequestEntry, 0, end-start)
		for _, job := range jobs[start:end] {
			body, err := json.Marshal(job)
			if err != nil {
				return fmt.Errorf("failed to marshal job: %w", err)
			}
			entries = append(entries, types.SendMessageBatchRequestEntry{
				Id:          aws.String(uuid.New().String()),
				MessageBody: aws.String(string(body)),
			})
		}

		out, err := q.client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
			QueueUrl: aws.String(q.queueURL),
			Entries:  entries,
		})
		if err != nil {
			return fmt.Errorf("failed to enqueue jobs: %w", err)
		}
		if len(out.Failed) > 0 {
			for _, failure := range out.Failed {
				q.logger.Error("job rejected by queue",
					zap.String("code", aws.ToString(failure.Code)),
					zap.String("message", aws.ToString(failure.Message)),
				)
			}
			return fmt.Errorf("queue rejected %d of %d jobs", len(out.Failed), len(entries))
		}
	}
	return nil
}

// EnqueueAfter submits one job with an SQS delivery delay. The message is
// accepted by SQS before this returns, so a retry scheduled from a Lambda
// invocation survives the environment freezing right after.
func (q *Queue) EnqueueAfter(ctx context.Context, job ports.Job, delay time.Duration) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if delay < 0 {
		delay = 0
	}
	if delay > maxDelay {
		delay = maxDelay
	}

	if _, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:     aws.String(q.queueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: int32((delay + time.Second - 1) / time.Second),
	}); err != nil {
		return fmt.Errorf("failed to enqueue delayed job: %w", err)
	}
	return nil
}

// Dequeue long-polls for up to max jobs. Messages are deleted as soon as
// they decode; a job that fails later re-enters through the retry path,
// not through redelivery.
func (q *Queue) Dequeue(ctx context.Context, max int) ([]ports.Job, error) {
	if max <= 0 || max > 10 {
		max = 10
	}

	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     20,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive jobs: %w", err)
	}

	jobs := make([]ports.Job, 0, len(out.Messages))
	for _, msg := range out.Messages {
		var job ports.Job
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &job); err != nil {
			q.logger.Warn("discarding malformed job message",
				zap.String("messageId", aws.ToString(msg.MessageId)),
				zap.Error(err),
			)
		} else {
			jobs = append(jobs, job)
		}

		if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(q.queueURL),
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			q.logger.Warn("failed to delete received message",
				zap.String("messageId", aws.ToString(msg.MessageId)),
				zap.Error(err),
			)
		}
	}
	return jobs, nil
}

// DeadLetterSink forwards exhausted jobs to a second SQS queue.
type DeadLetterSink struct {
	client   *sqs.Client
	queueURL string
	logger   *zap.Logger
}

// NewDeadLetterSink creates a new SQS-backed dead letter sink
func NewDeadLetterSink(client *sqs.Client, queueURL string, logger *zap.Logger) *DeadLetterSink {
	return &DeadLetterSink{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// deadLetterMessage is the body shape on the dead letter queue.
type deadLetterMessage struct {
	Job    ports.Job `json:"job"`
	Reason string    `json:"reason"`
}

// Drop forwards the failed job with its final error
func (s *DeadLetterSink) Drop(ctx context.Context, job ports.Job, reason string) error {
	body, err := json.Marshal(deadLetterMessage{Job: job, Reason: reason})
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	if _, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
	}); err != nil {
		return fmt.Errorf("failed to dead-letter job: %w", err)
	}
	return nil
}
