package main

import (
	"context"
	"encoding/json"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"watchtower-backend/application/ports"
	"watchtower-backend/infrastructure/config"
	"watchtower-backend/infrastructure/di"
)

// container holds the dependency injection container
var container *di.Container

// init runs during cold start
func init() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
}

// Handler consumes a batch of crawl jobs from SQS. Records that fail to
// decode are reported back so SQS redrives only those.
func Handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse

	for _, record := range event.Records {
		var job ports.Job
		if err := json.Unmarshal([]byte(record.Body), &job); err != nil {
			container.Logger.Error("undecodable job record",
				zap.String("message_id", record.MessageId),
				zap.Error(err),
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
			continue
		}

		err := container.Tracer.TraceFunction(ctx, "process_job", func(ctx context.Context) error {
			return container.Processor.Process(ctx, job)
		})
		if err != nil {
			// Process absorbs job-level failures itself. An error here
			// means infrastructure trouble, so let SQS retry the record.
			container.Logger.Error("job processing failed",
				zap.String("url", job.URL),
				zap.Error(err),
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
		}
	}

	if err := container.Metrics.Flush(ctx); err != nil {
		container.Logger.Warn("metrics flush failed", zap.Error(err))
	}

	return resp, nil
}

func main() {
	lambda.Start(Handler)
}
