package domain

import "context"

// WorkflowClient talks to the remote orchestration system that owns the
// workflow definitions.
type WorkflowClient interface {
	// FetchWorkflow returns the serialized workflow definition.
	FetchWorkflow(ctx context.Context, id string) ([]byte, error)
	// PushWorkflow replaces the workflow definition on the remote.
	PushWorkflow(ctx context.Context, id string, payload []byte) error
	// ListWorkflows returns summaries of all workflows on the remote.
	ListWorkflows(ctx context.Context) ([]WorkflowSummary, error)
}
