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

// ChannelBinding 渠道绑定表
type ChannelBinding struct {
	BindingID                  string   `gorm:"primaryKey;type:CHAR(64);comment:'由实体与渠道应用确定性计算的绑定ID'"`
	TenantID                   string   `gorm:"type:VARCHAR(64);NOT NULL;uniqueIndex:uk_tenant_entity_app,priority:1;comment:'租户ID'"`
	EntityType                 string   `gorm:"type:VARCHAR(64);NOT NULL;uniqueIndex:uk_tenant_entity_app,priority:2;comment:'市场实体类型'"`
	EntityID                   string   `gorm:"type:VARCHAR(128);NOT NULL;uniqueIndex:uk_tenant_entity_app,priority:3;comment:'市场实体ID'"`
	ChannelAppID               string   `gorm:"type:VARCHAR(128);NOT NULL;uniqueIndex:uk_tenant_entity_app,priority:4;comment:'渠道应用ID'"`
	ChannelUserID              string   `gorm:"type:VARCHAR(128);NOT NULL;DEFAULT:'';comment:'渠道侧用户ID，验证通过前为空'"`
	Status                     string   `gorm:"type:ENUM('PENDING','VERIFIED','SUSPENDED','REVOKED');NOT NULL;comment:'绑定状态'"`
	VerificationTokenHash      string   `gorm:"type:VARCHAR(64);NOT NULL;DEFAULT:'';comment:'验证令牌的SHA-256，消费后清空'"`
	VerificationTokenExpiresAt int64    `gorm:"NOT NULL;DEFAULT:0;comment:'令牌过期时间，毫秒'"`
	Audit                      dao.JSON `gorm:"type:JSON;comment:'只追加的审计记录'"`
	Version                    int      `gorm:"type:INT;NOT NULL;DEFAULT:1;comment:'版本号，用于CAS操作'"`
	Ctime                      int64    `gorm:"index:idx_ctime"`
	Utime                      int64
}

// TableName 重命名表
func (ChannelBinding) TableName() string {
	return "channel_bindings"
}

// BindingQuery 导出时的查询条件
type BindingQuery struct {
	TenantID string
	From, To int64
	Offset   int
	Limit    int
}

type ChannelBindingDAO interface {
	Insert(ctx context.Context, b ChannelBinding) error
	FindByID(ctx context.Context, bindingID string) (ChannelBinding, error)
	// CompareAndUpdate 只有状态与版本都没变时才更新
	CompareAndUpdate(ctx context.Context, b ChannelBinding, prevStatus string, prevVersion int) error
	List(ctx context.Context, q BindingQuery) ([]ChannelBinding, error)
}

type channelBindingDAO struct {
	db *egorm.Component
}

func NewChannelBindingDAO(db *egorm.Component) ChannelBindingDAO {
	return &channelBindingDAO{db: db}
}

func (d *channelBindingDAO) Insert(ctx context.Context, b ChannelBinding) error {
	now := time.Now().UnixMilli()
	if b.Ctime == 0 {
		b.Ctime = now
	}
	b.Utime = now
	err := d.db.WithContext(ctx).Create(&b).Error
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: bindingId=%s", errs.ErrDuplicateKey, b.BindingID)
	}
	return err
}

func (d *channelBindingDAO) FindByID(ctx context.Context, bindingID string) (ChannelBinding, error) {
	var b ChannelBinding
	err := d.db.WithContext(ctx).Where("binding_id = ?", bindingID).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ChannelBinding{}, fmt.Errorf("%w: bindingId=%s", errs.ErrNotFound, bindingID)
	}
	return b, err
}

func (d *channelBindingDAO) CompareAndUpdate(ctx context.Context, b ChannelBinding, prevStatus string, prevVersion int) error {
	res := d.db.WithContext(ctx).Model(&ChannelBinding{}).
		Where("binding_id = ? AND status = ? AND version = ?", b.BindingID, prevStatus, prevVersion).
		Updates(map[string]any{
			"channel_user_id":               b.ChannelUserID,
			"status":                        b.Status,
			"verification_token_hash":       b.VerificationTokenHash,
			"verification_token_expires_at": b.VerificationTokenExpiresAt,
			"audit":                         b.Audit,
			"version":                       gorm.Expr("`version` + 1"),
			"utime":                         time.Now().UnixMilli(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: bindingId=%s", errs.ErrBindingConcurrentUpdate, b.BindingID)
	}
	return nil
}

func (d *channelBindingDAO) List(ctx context.Context, q BindingQuery) ([]ChannelBinding, error) {
	db := d.db.WithContext(ctx).Model(&ChannelBinding{}).Where("tenant_id = ?", q.TenantID)
	if q.From > 0 {
		db = db.Where("ctime >= ?", q.From)
	}
	if q.To > 0 {
		db = db.Where("ctime < ?", q.To)
	}
	if q.Limit > 0 {
		db = db.Offset(q.Offset).Limit(q.Limit)
	}
	var res []ChannelBinding
	err := db.Order("ctime DESC").Order("binding_id ASC").Find(&res).Error
	return res, err
}
