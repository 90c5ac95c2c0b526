package dispatch

import (
	"strconv"
	"strings"
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/pkg/hash"
)

const (
	DefaultWindowMinutes = 30

	idempotencyClass = "dispatch"
	dispatchClass    = "dispatch_record"
	statusEventClass = "dispatch_status_event"
)

// CorrelationKey 规范化关联映射后的哈希。必需的键即使缺失也以 null 参与计算
func CorrelationKey(requiredKeys []string, correlation map[string]string) string {
	normalized := make(map[string]any, len(correlation)+len(requiredKeys))
	for _, k := range requiredKeys {
		normalized[k] = nil
	}
	for k, v := range correlation {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if v = strings.TrimSpace(v); v == "" {
			normalized[k] = nil
			continue
		}
		normalized[k] = v
	}
	return hash.MustCanonicalHash(normalized)
}

// WindowBucket 把时间向下取整到固定窗口的起点。
// 窗口边界两侧的两次发送被视为不同的发送
func WindowBucket(now time.Time, windowMinutes int) string {
	if windowMinutes <= 0 {
		windowMinutes = DefaultWindowMinutes
	}
	return now.UTC().Truncate(time.Duration(windowMinutes) * time.Minute).Format(time.RFC3339)
}

// KeyInput 幂等键与发送记录ID的输入
type KeyInput struct {
	TenantID            string
	EventCode           string
	RecipientRef        string // IM 渠道为绑定ID，邮件渠道为用户ID
	CorrelationKey      string
	WindowBucket        string
	RetryOfID           string
	RenderedPayloadHash string
	ForceResend         bool
}

func (in KeyInput) fields() []string {
	return []string{in.EventCode, in.RecipientRef, in.CorrelationKey + ":" + in.WindowBucket, in.RetryOfID}
}

func (in KeyInput) contentHash() string {
	return hash.MustCanonicalHash(map[string]any{
		"renderedPayloadHash": in.RenderedPayloadHash,
		"forceResend":         in.ForceResend,
	})
}

// IdempotencyKey 同一窗口内逻辑相同的发送得到相同的键
func IdempotencyKey(in KeyInput) string {
	return hash.DeterministicID(idempotencyClass, in.TenantID, in.fields(), in.contentHash())
}

// DispatchID 与幂等键同源，并发的两个调用方会得到同一个ID
func DispatchID(in KeyInput) string {
	return hash.DeterministicID(dispatchClass, in.TenantID, in.fields(), in.contentHash())
}

// StatusEventID 重复追加同一个事件会得到同一个ID。
// attempt 区分多次重试中内容相同的事件
func StatusEventID(tenantID string, e domain.DispatchStatusEvent) string {
	fields := []string{
		e.DispatchID,
		string(e.EventType),
		e.ProviderStatus.String(),
		e.ProviderRequestID,
		e.ErrorCode,
		strconv.Itoa(e.Attempt),
	}
	return hash.DeterministicID(statusEventClass, tenantID, fields, hash.MustCanonicalHash(fields))
}
