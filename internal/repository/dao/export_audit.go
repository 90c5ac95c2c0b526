package dao

import (
	"context"
	"time"

	"github.com/ego-component/egorm"
)

// ExportAuditEvent 导出审计表
type ExportAuditEvent struct {
	EventID       string `gorm:"primaryKey;type:VARCHAR(32);comment:'审计事件ID'"`
	ActorID       string `gorm:"type:VARCHAR(128);NOT NULL;index:idx_actor_route,priority:1;comment:'操作者'"`
	ActorRole     string `gorm:"type:VARCHAR(32);NOT NULL;comment:'操作者角色'"`
	Route         string `gorm:"type:VARCHAR(128);NOT NULL;index:idx_actor_route,priority:2;comment:'限流用的路由'"`
	RequestedAt   int64  `gorm:"NOT NULL;index:idx_requested_at;comment:'服务端时间，毫秒'"`
	Format        string `gorm:"type:VARCHAR(16);NOT NULL;comment:'导出格式'"`
	Scope         string `gorm:"type:VARCHAR(32);NOT NULL;comment:'导出范围'"`
	Outcome       string `gorm:"type:VARCHAR(32);NOT NULL;default:'COMPLETED';comment:'COMPLETED,DENIED_RATE_LIMITED'"`
	ManifestHash  string `gorm:"type:CHAR(64);NOT NULL;comment:'manifest.json 的 SHA-256'"`
	CanonicalHash string `gorm:"type:CHAR(64);NOT NULL;comment:'slice.json 的规范化哈希'"`
	Ctime         int64
}

// TableName 重命名表
func (ExportAuditEvent) TableName() string {
	return "export_audit_events"
}

type ExportAuditDAO interface {
	Insert(ctx context.Context, e ExportAuditEvent) error
	List(ctx context.Context, offset, limit int) ([]ExportAuditEvent, error)
}

type exportAuditDAO struct {
	db *egorm.Component
}

func NewExportAuditDAO(db *egorm.Component) ExportAuditDAO {
	return &exportAuditDAO{db: db}
}

func (d *exportAuditDAO) Insert(ctx context.Context, e ExportAuditEvent) error {
	e.Ctime = time.Now().UnixMilli()
	return d.db.WithContext(ctx).Create(&e).Error
}

func (d *exportAuditDAO) List(ctx context.Context, offset, limit int) ([]ExportAuditEvent, error) {
	var res []ExportAuditEvent
	err := d.db.WithContext(ctx).Order("requested_at DESC").Order("event_id ASC").
		Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}
