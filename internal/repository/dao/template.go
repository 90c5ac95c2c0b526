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
	"gorm.io/gorm/clause"
)

// TemplateEntry 模板注册表
type TemplateEntry struct {
	ID                      int64    `gorm:"primaryKey;autoIncrement;comment:'模板条目ID'"`
	Channel                 string   `gorm:"type:ENUM('EMAIL','IM');NOT NULL;uniqueIndex:uk_channel_event_lang,priority:1;comment:'渠道'"`
	EventCode               string   `gorm:"type:VARCHAR(64);NOT NULL;uniqueIndex:uk_channel_event_lang,priority:2;comment:'事件编码'"`
	Language                string   `gorm:"type:VARCHAR(16);NOT NULL;uniqueIndex:uk_channel_event_lang,priority:3;comment:'语言'"`
	SchemaVersion           int      `gorm:"type:INT;NOT NULL;comment:'模板结构版本'"`
	ChannelTemplateID       string   `gorm:"type:VARCHAR(128);NOT NULL;DEFAULT:'';comment:'渠道侧模板ID'"`
	RequiredPlaceholders    dao.JSON `gorm:"type:JSON;comment:'排序后的必填占位符'"`
	AllowedLinkPathPatterns dao.JSON `gorm:"type:JSON;comment:'允许的链接路径'"`
	Status                  string   `gorm:"type:ENUM('DRAFT','LOCKED','APPROVED','RETIRED');NOT NULL;DEFAULT:'DRAFT';comment:'模板状态'"`
	RenderTemplate          string   `gorm:"type:TEXT;NOT NULL;comment:'模板内容，占位符格式 {{name}}'"`
	ContractHash            string   `gorm:"type:CHAR(64);NOT NULL;comment:'契约哈希，任何字段变化都会改变'"`
	Ctime                   int64
	Utime                   int64
}

// TableName 重命名表
func (TemplateEntry) TableName() string {
	return "template_entries"
}

type TemplateEntryDAO interface {
	// Upsert 按 渠道+事件+语言 插入或覆盖
	Upsert(ctx context.Context, e TemplateEntry) error
	Find(ctx context.Context, channel, eventCode, language string) (TemplateEntry, error)
	ListByChannel(ctx context.Context, channel string) ([]TemplateEntry, error)
}

type templateEntryDAO struct {
	db *egorm.Component
}

func NewTemplateEntryDAO(db *egorm.Component) TemplateEntryDAO {
	return &templateEntryDAO{db: db}
}

func (d *templateEntryDAO) Upsert(ctx context.Context, e TemplateEntry) error {
	now := time.Now().UnixMilli()
	e.Ctime, e.Utime = now, now
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoUpdates: clause.AssignmentColumns([]string{
			"schema_version",
			"channel_template_id",
			"required_placeholders",
			"allowed_link_path_patterns",
			"status",
			"render_template",
			"contract_hash",
			"utime",
		}),
	}).Create(&e).Error
}

func (d *templateEntryDAO) Find(ctx context.Context, channel, eventCode, language string) (TemplateEntry, error) {
	var e TemplateEntry
	err := d.db.WithContext(ctx).
		Where("channel = ? AND event_code = ? AND language = ?", channel, eventCode, language).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return TemplateEntry{}, fmt.Errorf("%w: %s/%s/%s", errs.ErrNotFound, channel, eventCode, language)
	}
	return e, err
}

func (d *templateEntryDAO) ListByChannel(ctx context.Context, channel string) ([]TemplateEntry, error) {
	var res []TemplateEntry
	err := d.db.WithContext(ctx).Where("channel = ?", channel).
		Order("event_code ASC").Order("language ASC").
		Find(&res).Error
	return res, err
}
