package domain

import (
	"fmt"
	"time"

	"gitee.com/flycash/notification-governance/internal/errs"
)

// ProviderStatus 供应商侧状态
type ProviderStatus string

const (
	ProviderStatusQueued    ProviderStatus = "QUEUED"
	ProviderStatusSent      ProviderStatus = "SENT"
	ProviderStatusDelivered ProviderStatus = "DELIVERED"
	ProviderStatusFailed    ProviderStatus = "FAILED"
)

func (s ProviderStatus) String() string {
	return string(s)
}

// StatusEventType 状态事件类型
type StatusEventType string

const (
	StatusEventDispatchCreated   StatusEventType = "DISPATCH_CREATED"
	StatusEventProviderSent      StatusEventType = "PROVIDER_SENT"
	StatusEventProviderDelivered StatusEventType = "PROVIDER_DELIVERED"
	StatusEventProviderFailed    StatusEventType = "PROVIDER_FAILED"
	StatusEventRetryRequested    StatusEventType = "RETRY_REQUESTED"
)

// Recipient 接收者
type Recipient struct {
	Role       Role
	UserID     string
	Email      string
	EntityType string // IM 渠道用于查找绑定
	EntityID   string
}

func (r Recipient) Validate(channel Channel) error {
	if !r.Role.IsValid() {
		return fmt.Errorf("%w: role = %q", errs.ErrInvalidParameter, r.Role)
	}
	if r.UserID == "" {
		return fmt.Errorf("%w: 接收者ID为空", errs.ErrInvalidParameter)
	}
	switch channel {
	case ChannelEmail:
		if r.Email == "" {
			return fmt.Errorf("%w: 邮件渠道需要接收者邮箱", errs.ErrInvalidParameter)
		}
	case ChannelIM:
		if r.EntityType == "" || r.EntityID == "" {
			return fmt.Errorf("%w: IM 渠道需要接收者实体类型和实体ID", errs.ErrInvalidParameter)
		}
	}
	return nil
}

// DispatchRecord 发送记录。创建后不再修改，状态变化只追加到状态事件
type DispatchRecord struct {
	DispatchID          string
	IdempotencyKey      string
	TenantID            string
	Channel             Channel
	EventCode           string
	Correlation         map[string]string
	CorrelationKey      string
	WindowBucket        string
	RecipientRole       Role
	RecipientBindingID  string
	RecipientUserID     string
	RecipientEmail      string
	TemplateKey         string
	ChannelTemplateID   string
	Language            string
	RenderedPayload     string
	RenderedPayloadHash string
	RendererVersion     string
	ForceResend         bool
	RetryOfID           string
	// ProviderStatus 读取时由最新的状态事件推导
	ProviderStatus ProviderStatus
	CreatedAt      time.Time
}

// DispatchStatusEvent 只追加的状态事件
type DispatchStatusEvent struct {
	StatusEventID     string
	DispatchID        string
	EventType         StatusEventType
	ProviderStatus    ProviderStatus
	ProviderRequestID string
	ErrorCode         string
	RedactedResponse  map[string]any
	Attempt           int
	CreatedAt         time.Time
}

// DispatchDetail 发送记录及其状态历史
type DispatchDetail struct {
	Record DispatchRecord
	Events []DispatchStatusEvent
}
