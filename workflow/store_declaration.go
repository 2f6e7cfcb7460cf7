package workflow

import (
	"context"
)

// WorkflowRunRepo 流程运行记录, 只做审计使用, 引擎不会从这里恢复流程
type WorkflowRunRepo interface {
	CreateWorkflowRun(ctx context.Context, run *WorkflowRunPo) (*WorkflowRunPo, error)
	UpdateWorkflowRun(ctx context.Context, param *UpdateWorkflowRunParams) error
	QueryWorkflowRun(ctx context.Context, param *QueryWorkflowRunParams) ([]*WorkflowRunPo, error)
	CountWorkflowRun(ctx context.Context, param *QueryWorkflowRunParams) (int64, error)
	CreateWorkflowRunEvent(ctx context.Context, event *WorkflowRunEventPo) (*WorkflowRunEventPo, error)
	QueryWorkflowRunEvent(ctx context.Context, param *QueryWorkflowRunEventParams) ([]*WorkflowRunEventPo, error)
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type RunEventType = string

const (
	RunEventStarted      RunEventType = "started"
	RunEventStateEntered RunEventType = "state_entered"
	RunEventActionFailed RunEventType = "action_failed"
	RunEventCompleted    RunEventType = "completed"
	RunEventCancelled    RunEventType = "canceled"
	RunEventDismissed    RunEventType = "dismissed"
	RunEventExited       RunEventType = "exited"
)
