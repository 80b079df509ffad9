package temporal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brojonat/solfeat/service/processor"
	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

// BatchWorkflowIDPrefix prefixes the ID of every batch workflow run.
const BatchWorkflowIDPrefix = "solfeat-batch-"

// Client submits extraction batches to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return newClient(c, taskQueue, logger), nil
}

func newClient(c client.Client, taskQueue string, logger *slog.Logger) *Client {
	return &Client{client: c, taskQueue: taskQueue, logger: logger}
}

// BatchRun identifies a started batch workflow.
type BatchRun struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// StartBatch starts an ExtractBatchWorkflow for input and returns its IDs.
func (c *Client) StartBatch(ctx context.Context, input BatchInput) (*BatchRun, error) {
	options := client.StartWorkflowOptions{
		ID:                    BatchWorkflowIDPrefix + uuid.NewString(),
		TaskQueue:             c.taskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		Memo: map[string]interface{}{
			"entries":     len(input.Entries),
			"output_path": input.OutputPath,
			"created_by":  "solfeat",
		},
	}

	run, err := c.client.ExecuteWorkflow(ctx, options, ExtractBatchWorkflow, input)
	if err != nil {
		c.logger.Error("failed to start batch workflow", "workflow_id", options.ID, "error", err)
		return nil, fmt.Errorf("failed to start batch workflow: %w", err)
	}

	c.logger.Info("batch workflow started",
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
		"entries", len(input.Entries),
	)
	return &BatchRun{WorkflowID: run.GetID(), RunID: run.GetRunID()}, nil
}

// WaitBatch blocks until the batch run completes and returns its summary.
func (c *Client) WaitBatch(ctx context.Context, run *BatchRun) (*processor.Summary, error) {
	var summary processor.Summary
	if err := c.client.GetWorkflow(ctx, run.WorkflowID, run.RunID).Get(ctx, &summary); err != nil {
		return nil, fmt.Errorf("batch workflow %s failed: %w", run.WorkflowID, err)
	}
	return &summary, nil
}

// SDKClient returns the underlying Temporal SDK client for direct workflow operations.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
