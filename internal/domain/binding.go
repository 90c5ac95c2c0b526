package domain

import (
	"slices"
	"time"
)

// BindingStatus 渠道绑定状态
type BindingStatus string

const (
	BindingStatusPending   BindingStatus = "PENDING"
	BindingStatusVerified  BindingStatus = "VERIFIED"
	BindingStatusSuspended BindingStatus = "SUSPENDED"
	BindingStatusRevoked   BindingStatus = "REVOKED"
)

func (s BindingStatus) String() string {
	return string(s)
}

// BindingAction 审计动作
type BindingAction string

const (
	BindingActionStarted       BindingAction = "BIND_STARTED"
	BindingActionTokenReissued BindingAction = "TOKEN_REISSUED"
	BindingActionRebindStarted BindingAction = "REBIND_STARTED"
	BindingActionVerified      BindingAction = "VERIFIED"
	BindingActionSuspended     BindingAction = "SUSPENDED"
	BindingActionRevoked       BindingAction = "REVOKED"
	BindingActionResumed       BindingAction = "RESUMED"
)

// BindingAuditEntry 只追加的审计记录
type BindingAuditEntry struct {
	ActorID string        `json:"actorId"`
	Role    Role          `json:"role"`
	Action  BindingAction `json:"action"`
	Reason  string        `json:"reason,omitempty"`
	At      time.Time     `json:"at"`
}

// ChannelBinding 一个市场身份与一个外部渠道账号之间的绑定
type ChannelBinding struct {
	BindingID     string
	TenantID      string
	EntityType    string
	EntityID      string
	ChannelAppID  string
	ChannelUserID string // 验证通过前为空
	Status        BindingStatus

	// 令牌只保存哈希，消费后清空
	VerificationTokenHash      string
	VerificationTokenExpiresAt time.Time

	Audit   []BindingAuditEntry
	Version int // 乐观锁
	Ctime   time.Time
	Utime   time.Time
}

// Dispatchable 只有 VERIFIED 状态可以接收消息
func (b ChannelBinding) Dispatchable() bool {
	return b.Status == BindingStatusVerified
}

// Writable 暂停或撤销的绑定不能再验证
func (b ChannelBinding) Writable() bool {
	return b.Status == BindingStatusPending || b.Status == BindingStatusVerified
}

func (b ChannelBinding) HasToken() bool {
	return b.VerificationTokenHash != ""
}

func (b *ChannelBinding) AppendAudit(entry BindingAuditEntry) {
	b.Audit = append(slices.Clone(b.Audit), entry)
}
