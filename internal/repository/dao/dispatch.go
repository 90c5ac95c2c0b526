package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitee.com/flycash/notification-governance/internal/errs"
	"gitee.com/flycash/notification-governance/internal/pkg/dao"
	"github.com/ego-component/egorm"
	"gorm.io/gorm"
)

// DispatchRecord 发送记录表，只插入不更新
type DispatchRecord struct {
	DispatchID          string   `gorm:"primaryKey;type:CHAR(64);comment:'确定性计算的发送ID'"`
	IdempotencyKey      string   `gorm:"type:CHAR(64);NOT NULL;uniqueIndex:uk_idempotency_key;comment:'幂等键'"`
	TenantID            string   `gorm:"type:VARCHAR(64);NOT NULL;index:idx_tenant_ctime,priority:1;comment:'租户ID'"`
	Channel             string   `gorm:"type:ENUM('EMAIL','IM');NOT NULL;comment:'渠道'"`
	EventCode           string   `gorm:"type:VARCHAR(64);NOT NULL;comment:'事件编码'"`
	Correlation         dao.JSON `gorm:"type:JSON;comment:'关联键'"`
	CorrelationKey      string   `gorm:"type:CHAR(64);NOT NULL;comment:'关联键哈希'"`
	WindowBucket        string   `gorm:"type:VARCHAR(32);NOT NULL;comment:'幂等时间窗口'"`
	RecipientRole       string   `gorm:"type:VARCHAR(32);NOT NULL;comment:'接收者角色'"`
	RecipientBindingID  string   `gorm:"type:VARCHAR(64);NOT NULL;DEFAULT:'';comment:'IM 渠道的绑定ID'"`
	RecipientUserID     string   `gorm:"type:VARCHAR(128);NOT NULL;DEFAULT:'';comment:'接收者ID'"`
	RecipientEmail      string   `gorm:"type:VARCHAR(256);NOT NULL;DEFAULT:'';comment:'接收者邮箱'"`
	TemplateKey         string   `gorm:"type:VARCHAR(192);NOT NULL;comment:'模板键'"`
	ChannelTemplateID   string   `gorm:"type:VARCHAR(128);NOT NULL;DEFAULT:'';comment:'渠道侧模板ID'"`
	Language            string   `gorm:"type:VARCHAR(16);NOT NULL;comment:'语言'"`
	RenderedPayload     string   `gorm:"type:TEXT;NOT NULL;comment:'渲染结果，重试时使用'"`
	RenderedPayloadHash string   `gorm:"type:CHAR(64);NOT NULL;comment:'渲染结果哈希'"`
	RendererVersion     string   `gorm:"type:VARCHAR(32);NOT NULL;comment:'渲染器版本'"`
	ForceResend         bool     `gorm:"NOT NULL;DEFAULT:false"`
	RetryOfID           string   `gorm:"type:VARCHAR(64);NOT NULL;DEFAULT:'';comment:'重发时的原发送ID'"`
	ProviderStatus      string   `gorm:"type:ENUM('QUEUED','SENT','DELIVERED','FAILED');NOT NULL;DEFAULT:'QUEUED';comment:'创建时的快照，当前状态以状态事件为准'"`
	Ctime               int64    `gorm:"index:idx_tenant_ctime,priority:2"`
}

// TableName 重命名表
func (DispatchRecord) TableName() string {
	return "dispatch_records"
}

// DispatchStatusEvent 状态事件表，只追加
type DispatchStatusEvent struct {
	ID                int64    `gorm:"primaryKey;autoIncrement;comment:'自增ID，决定事件先后'"`
	StatusEventID     string   `gorm:"type:CHAR(64);NOT NULL;uniqueIndex:uk_status_event_id;comment:'确定性计算的事件ID'"`
	DispatchID        string   `gorm:"type:CHAR(64);NOT NULL;index:idx_dispatch_id;comment:'发送ID'"`
	EventType         string   `gorm:"type:VARCHAR(32);NOT NULL;comment:'事件类型'"`
	ProviderStatus    string   `gorm:"type:ENUM('QUEUED','SENT','DELIVERED','FAILED');NOT NULL;comment:'供应商状态'"`
	ProviderRequestID string   `gorm:"type:VARCHAR(128);NOT NULL;DEFAULT:'';comment:'供应商请求ID'"`
	ErrorCode         string   `gorm:"type:VARCHAR(64);NOT NULL;DEFAULT:'';comment:'错误码'"`
	RedactedResponse  dao.JSON `gorm:"type:JSON;comment:'脱敏后的供应商响应'"`
	Attempt           int      `gorm:"type:INT;NOT NULL;DEFAULT:0;comment:'第几次尝试'"`
	Ctime             int64
}

// TableName 重命名表
func (DispatchStatusEvent) TableName() string {
	return "dispatch_status_events"
}

// DispatchQuery 导出时的查询条件
type DispatchQuery struct {
	TenantID  string
	EventCode string
	Channel   string
	From, To  int64
	Offset    int
	Limit     int
}

type DispatchDAO interface {
	Insert(ctx context.Context, r DispatchRecord) error
	FindByID(ctx context.Context, dispatchID string) (DispatchRecord, error)
	FindByIdempotencyKey(ctx context.Context, key string) (DispatchRecord, error)
	List(ctx context.Context, q DispatchQuery) ([]DispatchRecord, error)

	// AppendStatusEvent 重复的事件ID视为已追加，返回 false
	AppendStatusEvent(ctx context.Context, e DispatchStatusEvent) (bool, error)
	LatestStatusEvent(ctx context.Context, dispatchID string) (DispatchStatusEvent, error)
	LatestStatusEvents(ctx context.Context, dispatchIDs []string) (map[string]DispatchStatusEvent, error)
	ListStatusEvents(ctx context.Context, dispatchID string) ([]DispatchStatusEvent, error)
}

type dispatchDAO struct {
	db *egorm.Component
}

func NewDispatchDAO(db *egorm.Component) DispatchDAO {
	return &dispatchDAO{db: db}
}

func (d *dispatchDAO) Insert(ctx context.Context, r DispatchRecord) error {
	if r.Ctime == 0 {
		r.Ctime = time.Now().UnixMilli()
	}
	err := d.db.WithContext(ctx).Create(&r).Error
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: idempotencyKey=%s", errs.ErrDuplicateKey, r.IdempotencyKey)
	}
	return err
}

func (d *dispatchDAO) FindByID(ctx context.Context, dispatchID string) (DispatchRecord, error) {
	return d.findOne(ctx, "dispatch_id = ?", dispatchID)
}

func (d *dispatchDAO) FindByIdempotencyKey(ctx context.Context, key string) (DispatchRecord, error) {
	return d.findOne(ctx, "idempotency_key = ?", key)
}

func (d *dispatchDAO) findOne(ctx context.Context, query string, arg string) (DispatchRecord, error) {
	var r DispatchRecord
	err := d.db.WithContext(ctx).Where(query, arg).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DispatchRecord{}, fmt.Errorf("%w: %s", errs.ErrNotFound, arg)
	}
	return r, err
}

func (d *dispatchDAO) List(ctx context.Context, q DispatchQuery) ([]DispatchRecord, error) {
	db := d.db.WithContext(ctx).Model(&DispatchRecord{}).Where("tenant_id = ?", q.TenantID)
	if q.EventCode != "" {
		db = db.Where("event_code = ?", q.EventCode)
	}
	if q.Channel != "" {
		db = db.Where("channel = ?", q.Channel)
	}
	if q.From > 0 {
		db = db.Where("ctime >= ?", q.From)
	}
	if q.To > 0 {
		db = db.Where("ctime < ?", q.To)
	}
	if q.Limit > 0 {
		db = db.Offset(q.Offset).Limit(q.Limit)
	}
	var res []DispatchRecord
	err := db.Order("ctime DESC").Order("dispatch_id ASC").Find(&res).Error
	return res, err
}

func (d *dispatchDAO) AppendStatusEvent(ctx context.Context, e DispatchStatusEvent) (bool, error) {
	if e.Ctime == 0 {
		e.Ctime = time.Now().UnixMilli()
	}
	err := d.db.WithContext(ctx).Create(&e).Error
	if isUniqueConstraintError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *dispatchDAO) LatestStatusEvent(ctx context.Context, dispatchID string) (DispatchStatusEvent, error) {
	var e DispatchStatusEvent
	err := d.db.WithContext(ctx).Where("dispatch_id = ?", dispatchID).Order("id DESC").First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DispatchStatusEvent{}, fmt.Errorf("%w: 没有状态事件 dispatchId=%s", errs.ErrNotFound, dispatchID)
	}
	return e, err
}

func (d *dispatchDAO) LatestStatusEvents(ctx context.Context, dispatchIDs []string) (map[string]DispatchStatusEvent, error) {
	res := make(map[string]DispatchStatusEvent, len(dispatchIDs))
	if len(dispatchIDs) == 0 {
		return res, nil
	}
	var events []DispatchStatusEvent
	err := d.db.WithContext(ctx).Where("dispatch_id IN ?", dispatchIDs).Order("id ASC").Find(&events).Error
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		res[e.DispatchID] = e
	}
	return res, nil
}

func (d *dispatchDAO) ListStatusEvents(ctx context.Context, dispatchID string) ([]DispatchStatusEvent, error) {
	var res []DispatchStatusEvent
	err := d.db.WithContext(ctx).Where("dispatch_id = ?", dispatchID).Order("id ASC").Find(&res).Error
	return res, err
}
