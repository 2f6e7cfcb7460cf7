package workflow

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type WorkflowRunPo struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RunID        string    `gorm:"column:run_id;uniqueIndex;size:64" json:"run_id"`
	WorkflowName string    `gorm:"column:workflow_name;index;size:128" json:"workflow_name"`
	Status       RunStatus `gorm:"column:status;size:32" json:"status"`
	CurrentState string    `gorm:"column:current_state;size:128" json:"current_state"`
	RunContext   []byte    `gorm:"column:run_context" json:"run_context"` // 结束时的上下文快照
	CreatedAt    int64     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    int64     `gorm:"column:updated_at" json:"updated_at"`
}

func (WorkflowRunPo) TableName() string {
	return "dialog_workflow_run"
}

type WorkflowRunEventPo struct {
	ID          int64        `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RunID       string       `gorm:"column:run_id;index;size:64" json:"run_id"`
	EventType   RunEventType `gorm:"column:event_type;size:32" json:"event_type"`
	State       string       `gorm:"column:state;size:128" json:"state"`
	ActionLabel string       `gorm:"column:action_label;size:128" json:"action_label"`
	Reason      string       `gorm:"column:reason" json:"reason"` // 失败原因
	CreatedAt   int64        `gorm:"column:created_at" json:"created_at"`
}

func (WorkflowRunEventPo) TableName() string {
	return "dialog_workflow_run_event"
}

type Pager struct {
	IsNoLimit *bool `json:"is_no_limit"`
	Page      int64 `json:"page"`
	Size      int64 `json:"size"`
}

type QueryWorkflowRunParams struct {
	RunID        *string  `json:"run_id"`
	WorkflowName *string  `json:"workflow_name"`
	StatusIn     []string `json:"status_in"`
	OrderbyIDAsc *bool    `json:"orderby_id_asc"`
	Page         *Pager   `json:"page"`
}

type QueryWorkflowRunEventParams struct {
	RunID        string   `json:"run_id" validate:"required"`
	EventTypeIn  []string `json:"event_type_in"`
	OrderbyIDAsc *bool    `json:"orderby_id_asc"`
	Page         *Pager   `json:"page"`
}

type UpdateWorkflowRunParams struct {
	RunID  string                  `json:"run_id" validate:"required"`
	Fields *UpdateWorkflowRunField `json:"fields" validate:"required"`
}

type UpdateWorkflowRunField struct {
	Status       *string          `json:"status"`
	CurrentState *string          `json:"current_state"`
	RunContext   *WorkflowContext `json:"run_context"`
}

type workflowRunRepo struct {
	db *gorm.DB
}

func NewWorkflowRunRepo(db *gorm.DB) WorkflowRunRepo {
	return &workflowRunRepo{db: db}
}

// AutoMigrate 创建运行记录相关的表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&WorkflowRunPo{}, &WorkflowRunEventPo{})
}

func (r *workflowRunRepo) CreateWorkflowRun(ctx context.Context, run *WorkflowRunPo) (*WorkflowRunPo, error) {
	if run == nil {
		return nil, errors.New("nil WorkflowRunPo")
	}
	run.CreatedAt = time.Now().Unix()
	run.UpdatedAt = run.CreatedAt
	if err := r.GetDBWithContext(ctx).Create(run).Error; err != nil {
		return nil, errors.WithMessagef(err, "CreateWorkflowRun failed, runID: %s", run.RunID)
	}
	return run, nil
}

func (r *workflowRunRepo) UpdateWorkflowRun(ctx context.Context, param *UpdateWorkflowRunParams) error {
	if err := validatorUtil.Struct(param); err != nil {
		return errors.Wrapf(ErrWorkflowParamInvalid, "UpdateWorkflowRun failed, err: %v", err)
	}
	updateFields := make(map[string]any)
	if param.Fields.Status != nil {
		updateFields["status"] = *param.Fields.Status
	}
	if param.Fields.CurrentState != nil {
		updateFields["current_state"] = *param.Fields.CurrentState
	}
	if param.Fields.RunContext != nil {
		jsonData, err := param.Fields.RunContext.ToBytes()
		if err != nil {
			return errors.WithMessage(err, "Marshal fields.RunContext failed")
		}
		updateFields["run_context"] = jsonData
	}
	if len(updateFields) == 0 {
		return errors.New("no fields to update")
	}
	updateFields["updated_at"] = time.Now().Unix()
	err := r.GetDBWithContext(ctx).Model(&WorkflowRunPo{}).
		Where("run_id = ?", param.RunID).
		Updates(updateFields).Error
	if err != nil {
		return errors.WithMessagef(err, "UpdateWorkflowRun failed, runID: %s", param.RunID)
	}
	return nil
}

func buildQueryWorkflowRunParams(db *gorm.DB, isCount bool, param *QueryWorkflowRunParams) (*gorm.DB, error) {
	if param == nil {
		return nil, errors.New("nil QueryWorkflowRunParams")
	}
	if param.RunID != nil {
		db = db.Where("run_id = ?", *param.RunID)
	}
	if param.WorkflowName != nil {
		db = db.Where("workflow_name = ?", *param.WorkflowName)
	}
	if len(param.StatusIn) != 0 {
		db = db.Where("status IN ?", param.StatusIn)
	}
	if isCount {
		return db, nil
	}
	if param.OrderbyIDAsc != nil && !*param.OrderbyIDAsc {
		db = db.Order("id desc")
	} else {
		db = db.Order("id asc")
	}
	return paginate(db, param.Page)
}

func paginate(db *gorm.DB, page *Pager) (*gorm.DB, error) {
	if page == nil {
		return nil, errors.New("page is nil")
	}
	if page.IsNoLimit != nil && *page.IsNoLimit {
		return db, nil
	}
	if page.Page == 0 {
		page.Page = 1
	}
	if page.Size == 0 {
		page.Size = 10
	}
	return db.Offset(int(page.Page-1) * int(page.Size)).Limit(int(page.Size)), nil
}

func (r *workflowRunRepo) QueryWorkflowRun(ctx context.Context, param *QueryWorkflowRunParams) ([]*WorkflowRunPo, error) {
	db, err := buildQueryWorkflowRunParams(r.GetDBWithContext(ctx).Model(&WorkflowRunPo{}), false, param)
	if err != nil {
		return nil, errors.WithMessage(err, "buildQueryWorkflowRunParams failed")
	}
	pos := make([]*WorkflowRunPo, 0)
	if err := db.Find(&pos).Error; err != nil {
		return nil, errors.WithMessage(err, "QueryWorkflowRun failed")
	}
	return pos, nil
}

func (r *workflowRunRepo) CountWorkflowRun(ctx context.Context, param *QueryWorkflowRunParams) (int64, error) {
	db, err := buildQueryWorkflowRunParams(r.GetDBWithContext(ctx).Model(&WorkflowRunPo{}), true, param)
	if err != nil {
		return 0, errors.WithMessage(err, "buildQueryWorkflowRunParams failed")
	}
	var count int64
	if err := db.Count(&count).Error; err != nil {
		return 0, errors.WithMessage(err, "CountWorkflowRun failed")
	}
	return count, nil
}

func (r *workflowRunRepo) CreateWorkflowRunEvent(ctx context.Context, event *WorkflowRunEventPo) (*WorkflowRunEventPo, error) {
	if event == nil {
		return nil, errors.New("nil WorkflowRunEventPo")
	}
	event.CreatedAt = time.Now().Unix()
	if err := r.GetDBWithContext(ctx).Create(event).Error; err != nil {
		return nil, errors.WithMessagef(err, "CreateWorkflowRunEvent failed, runID: %s", event.RunID)
	}
	return event, nil
}

func (r *workflowRunRepo) QueryWorkflowRunEvent(ctx context.Context, param *QueryWorkflowRunEventParams) ([]*WorkflowRunEventPo, error) {
	if err := validatorUtil.Struct(param); err != nil {
		return nil, errors.Wrapf(ErrWorkflowParamInvalid, "QueryWorkflowRunEvent failed, err: %v", err)
	}
	db := r.GetDBWithContext(ctx).Model(&WorkflowRunEventPo{}).Where("run_id = ?", param.RunID)
	if len(param.EventTypeIn) != 0 {
		db = db.Where("event_type IN ?", param.EventTypeIn)
	}
	if param.OrderbyIDAsc != nil && !*param.OrderbyIDAsc {
		db = db.Order("id desc")
	} else {
		db = db.Order("id asc")
	}
	db, err := paginate(db, param.Page)
	if err != nil {
		return nil, errors.WithMessage(err, "paginate failed")
	}
	pos := make([]*WorkflowRunEventPo, 0)
	if err := db.Find(&pos).Error; err != nil {
		return nil, errors.WithMessage(err, "QueryWorkflowRunEvent failed")
	}
	return pos, nil
}

type contextKey string

const (
	transactionContextKey contextKey = "transaction"
)

func (r *workflowRunRepo) GetDBWithContext(ctx context.Context) *gorm.DB {
	tx, ok := ctx.Value(transactionContextKey).(*gorm.DB)
	if !ok {
		return r.db.WithContext(ctx)
	}
	return tx
}

func (r *workflowRunRepo) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(transactionContextKey).(*gorm.DB); ok {
		return fn(ctx)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, transactionContextKey, tx))
	})
}
