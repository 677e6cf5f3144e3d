package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/rs/zerolog"
)

// QueueHandler consumes Service Bus messages that trigger sync jobs.
type QueueHandler struct {
	client    *azservicebus.Client
	receiver  *azservicebus.Receiver
	queueName string
	job       *SyncJob
	logger    zerolog.Logger
}

// QueueConfig holds configuration for the Service Bus handler.
type QueueConfig struct {
	// Namespace is the fully qualified namespace, e.g.
	// <name>.servicebus.windows.net.
	Namespace string

	// Queue is the queue carrying sync job messages.
	Queue string

	// Credential authenticates against the namespace.
	Credential azcore.TokenCredential

	// Job executes the syncs.
	Job *SyncJob

	// Logger for handler operations.
	Logger zerolog.Logger
}

// SyncMessage is a sync job trigger. An empty SubscriptionID means "sync
// all configured subscriptions".
type SyncMessage struct {
	JobType        string `json:"job_type"`
	SubscriptionID string `json:"subscription_id,omitempty"`
}

// NewQueueHandler creates a Service Bus queue handler.
func NewQueueHandler(cfg QueueConfig) (*QueueHandler, error) {
	client, err := azservicebus.NewClient(cfg.Namespace, cfg.Credential, nil)
	if err != nil {
		return nil, fmt.Errorf("creating service bus client: %w", err)
	}

	receiver, err := client.NewReceiverForQueue(cfg.Queue, nil)
	if err != nil {
		_ = client.Close(context.Background())
		return nil, fmt.Errorf("creating service bus receiver: %w", err)
	}

	return &QueueHandler{
		client:    client,
		receiver:  receiver,
		queueName: cfg.Queue,
		job:       cfg.Job,
		logger:    cfg.Logger,
	}, nil
}

// Start processes queue messages until the context is cancelled.
func (h *QueueHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("queue", h.queueName).
		Msg("starting service bus handler")

	for {
		messages, err := h.receiver.ReceiveMessages(ctx, 10, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("receiving messages: %w", err)
		}

		for _, msg := range messages {
			h.handleMessage(ctx, msg)
		}
	}
}

// Close shuts down the receiver and client.
func (h *QueueHandler) Close(ctx context.Context) error {
	if err := h.receiver.Close(ctx); err != nil {
		return err
	}
	return h.client.Close(ctx)
}

func (h *QueueHandler) handleMessage(ctx context.Context, msg *azservicebus.ReceivedMessage) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.MessageID).
		Logger()

	logger.Debug().Msg("received queue message")

	var syncMsg SyncMessage
	if err := json.Unmarshal(msg.Body, &syncMsg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		_ = h.receiver.AbandonMessage(ctx, msg, nil)
		return
	}

	var err error
	switch syncMsg.JobType {
	case "health_sync":
		err = h.handleHealthSync(ctx, syncMsg)
	default:
		logger.Warn().Str("job_type", syncMsg.JobType).Msg("unknown job type")
		// Complete unknown messages to prevent redelivery
		_ = h.receiver.CompleteMessage(ctx, msg, nil)
		return
	}

	if err != nil {
		logger.Error().Err(err).Msg("job failed")
		_ = h.receiver.AbandonMessage(ctx, msg, nil)
		return
	}

	logger.Info().
		Str("job_type", syncMsg.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")

	_ = h.receiver.CompleteMessage(ctx, msg, nil)
}

func (h *QueueHandler) handleHealthSync(ctx context.Context, msg SyncMessage) error {
	if msg.SubscriptionID != "" {
		result, err := h.job.RunOne(ctx, msg.SubscriptionID)
		if err != nil {
			return err
		}
		h.logger.Info().
			Str("subscription_id", msg.SubscriptionID).
			Int("events", result.EventCount).
			Msg("subscription sync completed")
		return nil
	}

	summary := h.job.Run(ctx)
	if summary.Failed > 0 && summary.Successful == 0 {
		return fmt.Errorf("all %d subscription syncs failed", summary.Failed)
	}
	return nil
}
