// Package jobs moves index and reconcile work through Valkey streams so the
// API can enqueue without blocking on the actual mutation.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/rostilos/CodeCrow-sub011/internal/branchindex"
)

const (
	IndexStream     = "codecrow:index"
	IndexGroup      = "codecrow-index-workers"
	ReconcileStream = "codecrow:reconcile"
	ReconcileGroup  = "codecrow-reconcile-workers"

	// Streams are trimmed on write so a stalled worker fleet cannot grow
	// them without bound.
	maxStreamLen = 10000

	// readRetryDelay paces retries after a failed stream read so a dead
	// connection does not spin the consumer loop.
	readRetryDelay = time.Second
)

// IndexJob asks a worker to bring one branch's index current, or to delete it
// when Action is "delete".
type IndexJob struct {
	ProjectID  uuid.UUID `json:"project_id"`
	BranchName string    `json:"branch_name"`
	Trigger    string    `json:"trigger"` // "webhook", "manual", "pr_target", "reconcile"
	Action     string    `json:"action,omitempty"`
}

// ReconcileJob asks a worker to sweep one project for stale branch indexes.
type ReconcileJob struct {
	ProjectID uuid.UUID `json:"project_id"`
}

// Producer enqueues jobs onto the Valkey streams.
type Producer struct {
	client valkey.Client
}

func NewProducer(client valkey.Client) *Producer {
	return &Producer{client: client}
}

var _ branchindex.PlanEnqueuer = (*Producer)(nil)

func (p *Producer) EnqueueIndex(ctx context.Context, job IndexJob) (string, error) {
	return p.enqueue(ctx, IndexStream, job)
}

func (p *Producer) EnqueueReconcile(ctx context.Context, job ReconcileJob) (string, error) {
	return p.enqueue(ctx, ReconcileStream, job)
}

// EnqueuePlan adapts a decided mutation plan into an index job. The worker
// re-decides against the registry at execution time, so the plan's commits
// are not carried over the wire.
func (p *Producer) EnqueuePlan(ctx context.Context, plan branchindex.Plan) error {
	job := IndexJob{
		ProjectID:  plan.ProjectID,
		BranchName: plan.BranchName,
		Trigger:    "pr_target",
	}
	if plan.Action == branchindex.ActionDelete {
		job.Action = "delete"
	}
	_, err := p.EnqueueIndex(ctx, job)
	return err
}

func (p *Producer) enqueue(ctx context.Context, stream string, msg interface{}) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	resp := p.client.Do(ctx, p.client.B().Xadd().
		Key(stream).Maxlen().Almost().Threshold(fmt.Sprintf("%d", maxStreamLen)).Id("*").
		FieldValue().FieldValue("data", string(data)).
		Build())
	if err := resp.Error(); err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}

	id, err := resp.ToString()
	if err != nil {
		return "", fmt.Errorf("parse xadd response: %w", err)
	}
	return id, nil
}

// Consumer reads jobs from one stream via a consumer group. The same consumer
// serves both streams; the payload type is fixed per instance by the handler
// the caller passes to Consume.
type Consumer struct {
	client     valkey.Client
	stream     string
	group      string
	consumerID string
	logger     *slog.Logger
}

func NewIndexConsumer(client valkey.Client, consumerID string, logger *slog.Logger) *Consumer {
	return &Consumer{client: client, stream: IndexStream, group: IndexGroup, consumerID: consumerID, logger: logger}
}

func NewReconcileConsumer(client valkey.Client, consumerID string, logger *slog.Logger) *Consumer {
	return &Consumer{client: client, stream: ReconcileStream, group: ReconcileGroup, consumerID: consumerID, logger: logger}
}

// EnsureGroup creates the consumer group if it doesn't exist.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	resp := c.client.Do(ctx, c.client.B().XgroupCreate().
		Key(c.stream).Group(c.group).Id("0").Mkstream().Build())
	if err := resp.Error(); err != nil {
		// BUSYGROUP means the group already exists, which is fine.
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			return fmt.Errorf("xgroup create %s: %w", c.stream, err)
		}
	}
	return nil
}

// Consume blocks until a message is available, processes it via handler, and
// ACKs. On startup it first drains any pending messages from a previous crash.
// A handler error leaves the message pending for redelivery.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, []byte) error) error {
	c.drainPending(ctx, handler)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		resp := c.client.Do(ctx, c.client.B().Xreadgroup().
			Group(c.group, c.consumerID).
			Count(1).Block(5000).
			Streams().Key(c.stream).Id(">").
			Build())

		if err := resp.Error(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if valkey.IsValkeyNil(err) {
				// Timeout is normal for BLOCK reads
				continue
			}
			c.logger.Warn("read stream",
				slog.String("stream", c.stream),
				slog.String("error", err.Error()))
			if err := sleepCtx(ctx, readRetryDelay); err != nil {
				return err
			}
			continue
		}

		results, err := resp.AsXRead()
		if err != nil {
			continue
		}

		for _, messages := range results {
			for _, msg := range messages {
				c.processMessage(ctx, msg, handler)
			}
		}
	}
}

// drainPending reads messages previously delivered to this consumer but not ACKed.
func (c *Consumer) drainPending(ctx context.Context, handler func(context.Context, []byte) error) {
	resp := c.client.Do(ctx, c.client.B().Xreadgroup().
		Group(c.group, c.consumerID).
		Count(10).
		Streams().Key(c.stream).Id("0").
		Build())

	if err := resp.Error(); err != nil {
		c.logger.Warn("drain pending failed",
			slog.String("stream", c.stream),
			slog.String("error", err.Error()))
		return
	}

	results, err := resp.AsXRead()
	if err != nil {
		return
	}

	for _, messages := range results {
		for _, msg := range messages {
			c.logger.Info("recovering pending message",
				slog.String("stream", c.stream),
				slog.String("id", msg.ID))
			c.processMessage(ctx, msg, handler)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg valkey.XRangeEntry, handler func(context.Context, []byte) error) {
	dataStr, ok := msg.FieldValues["data"]
	if !ok {
		c.logger.Warn("message missing data field", slog.String("id", msg.ID))
		c.ack(ctx, msg.ID)
		return
	}

	if err := handler(ctx, []byte(dataStr)); err != nil {
		c.logger.Error("handle message",
			slog.String("stream", c.stream),
			slog.String("id", msg.ID),
			slog.String("error", err.Error()))
	} else {
		c.ack(ctx, msg.ID)
	}
}

func (c *Consumer) ack(ctx context.Context, msgID string) {
	resp := c.client.Do(ctx, c.client.B().Xack().
		Key(c.stream).Group(c.group).Id(msgID).Build())
	if err := resp.Error(); err != nil {
		c.logger.Error("xack failed", slog.String("error", err.Error()), slog.String("id", msgID))
	}
}

// sleepCtx waits for d unless ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
