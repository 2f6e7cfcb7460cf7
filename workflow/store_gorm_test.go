package workflow

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestRunRepo(t *testing.T) WorkflowRunRepo {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	// :memory: 每个连接是独立的库, 灯箱定时器在其他goroutine写入时也要落到同一个库
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, AutoMigrate(db))
	return NewWorkflowRunRepo(db)
}

func noLimit() *Pager {
	isNoLimit := true
	return &Pager{IsNoLimit: &isNoLimit}
}

func eventTypes(events []*WorkflowRunEventPo) []string {
	ret := make([]string, 0, len(events))
	for _, e := range events {
		ret = append(ret, e.EventType)
	}
	return ret
}

func TestWorkflowRunRepo(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRunRepo(t)

	t.Run("创建和查询运行记录", func(t *testing.T) {
		_, err := repo.CreateWorkflowRun(ctx, &WorkflowRunPo{RunID: "r1", WorkflowName: "w", Status: RunStatusRunning})
		require.NoError(t, err)
		_, err = repo.CreateWorkflowRun(ctx, &WorkflowRunPo{RunID: "r2", WorkflowName: "w", Status: RunStatusCompleted})
		require.NoError(t, err)

		name := "w"
		count, err := repo.CountWorkflowRun(ctx, &QueryWorkflowRunParams{WorkflowName: &name})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		runs, err := repo.QueryWorkflowRun(ctx, &QueryWorkflowRunParams{StatusIn: []string{RunStatusCompleted}, Page: noLimit()})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "r2", runs[0].RunID)

		isAsc := false
		runs, err = repo.QueryWorkflowRun(ctx, &QueryWorkflowRunParams{WorkflowName: &name, OrderbyIDAsc: &isAsc, Page: &Pager{Page: 1, Size: 1}})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "r2", runs[0].RunID)

		_, err = repo.QueryWorkflowRun(ctx, &QueryWorkflowRunParams{})
		assert.Error(t, err, "page 必须传")
	})

	t.Run("更新运行记录", func(t *testing.T) {
		status := RunStatusCancelled
		err := repo.UpdateWorkflowRun(ctx, &UpdateWorkflowRunParams{RunID: "r1", Fields: &UpdateWorkflowRunField{
			Status:     &status,
			RunContext: NewWorkflowContext(map[string]any{"a": 1}),
		}})
		require.NoError(t, err)
		runID := "r1"
		runs, err := repo.QueryWorkflowRun(ctx, &QueryWorkflowRunParams{RunID: &runID, Page: noLimit()})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, RunStatusCancelled, runs[0].Status)
		assert.JSONEq(t, `{"a":1}`, string(runs[0].RunContext))

		err = repo.UpdateWorkflowRun(ctx, &UpdateWorkflowRunParams{RunID: "r1"})
		assert.True(t, errors.Is(err, ErrWorkflowParamInvalid))
		err = repo.UpdateWorkflowRun(ctx, &UpdateWorkflowRunParams{RunID: "r1", Fields: &UpdateWorkflowRunField{}})
		assert.Error(t, err)
	})

	t.Run("事务回滚", func(t *testing.T) {
		rollback := errors.New("rollback")
		err := repo.Transaction(ctx, func(ctx context.Context) error {
			_, err := repo.CreateWorkflowRun(ctx, &WorkflowRunPo{RunID: "r3", WorkflowName: "tx"})
			require.NoError(t, err)
			return rollback
		})
		assert.Equal(t, rollback, err)
		name := "tx"
		count, err := repo.CountWorkflowRun(ctx, &QueryWorkflowRunParams{WorkflowName: &name})
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("查询事件需要runID", func(t *testing.T) {
		_, err := repo.QueryWorkflowRunEvent(ctx, &QueryWorkflowRunEventParams{Page: noLimit()})
		assert.True(t, errors.Is(err, ErrWorkflowParamInvalid))
	})
}

func TestControllerRecordsRunHistory(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRunRepo(t)
	boom := errors.New("boom")
	attempts := 0
	def := &WorkflowDefinition{
		Name:  "history",
		Start: "s1",
		States: map[string]WorkflowState{
			"s1": &FormState{
				Title:   Static("s1"),
				Fields:  Static([]*FormField{{Name: "x"}}),
				Actions: []*FormTransition{{Label: "next", Next: "s2"}},
			},
			"s2": &ConfirmState{
				Title: Static("s2"),
				Actions: []*Transition{{Label: "done", Exit: true, Action: func(ctx context.Context, wctx *WorkflowContext) error {
					attempts++
					if attempts == 1 {
						return boom
					}
					return nil
				}}},
			},
		},
	}
	store := newTestDialogStore()
	c, err := store.CreateWorkflow(def, WithLogger(discardLogger()), WithRunRepo(repo))
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))
	require.NoError(t, clickLabel(t, store, c.CurrentDialogID(), "next", map[string]any{"x": 1}))
	require.Error(t, clickLabel(t, store, c.CurrentDialogID(), "done", nil))
	require.NoError(t, clickLabel(t, store, c.CurrentDialogID(), "done", nil))

	runID := c.RunID()
	runs, err := repo.QueryWorkflowRun(ctx, &QueryWorkflowRunParams{RunID: &runID, Page: noLimit()})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "history", runs[0].WorkflowName)
	assert.Equal(t, RunStatusCompleted, runs[0].Status)
	assert.Empty(t, runs[0].CurrentState)
	runContext, err := NewWorkflowContextFromBytes(runs[0].RunContext)
	require.NoError(t, err)
	x, ok := runContext.GetInt64("x")
	assert.True(t, ok)
	assert.Equal(t, int64(1), x)

	events, err := repo.QueryWorkflowRunEvent(ctx, &QueryWorkflowRunEventParams{RunID: runID, Page: noLimit()})
	require.NoError(t, err)
	assert.Equal(t, []string{
		RunEventStarted,
		RunEventStateEntered,
		RunEventStateEntered,
		RunEventActionFailed,
		RunEventCompleted,
	}, eventTypes(events))
	assert.Equal(t, "s2", events[3].State)
	assert.Equal(t, "done", events[3].ActionLabel)
	assert.Equal(t, "boom", events[3].Reason)
}
