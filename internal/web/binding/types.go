package binding

import (
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
)

type StartReq struct {
	EntityType   string `json:"entityType"`
	EntityID     string `json:"entityId"`
	ChannelAppID string `json:"channelAppId"`
}

type StartResp struct {
	Binding Binding `json:"binding"`
	// Token 明文只返回这一次
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

type VerifyReq struct {
	BindingID     string `json:"bindingId"`
	Token         string `json:"token"`
	ChannelUserID string `json:"channelUserId"`
}

type TransitionReq struct {
	Reason string `json:"reason"`
}

type AuditEntry struct {
	ActorID string `json:"actorId"`
	Role    string `json:"role"`
	Action  string `json:"action"`
	Reason  string `json:"reason,omitempty"`
	At      string `json:"at"`
}

// Binding 不包含令牌哈希
type Binding struct {
	BindingID     string       `json:"bindingId"`
	EntityType    string       `json:"entityType"`
	EntityID      string       `json:"entityId"`
	ChannelAppID  string       `json:"channelAppId"`
	ChannelUserID string       `json:"channelUserId,omitempty"`
	Status        string       `json:"status"`
	Audit         []AuditEntry `json:"audit"`
}

func newBinding(b domain.ChannelBinding) Binding {
	audit := make([]AuditEntry, 0, len(b.Audit))
	for _, a := range b.Audit {
		audit = append(audit, AuditEntry{
			ActorID: a.ActorID,
			Role:    a.Role.String(),
			Action:  string(a.Action),
			Reason:  a.Reason,
			At:      a.At.UTC().Format(time.RFC3339),
		})
	}
	return Binding{
		BindingID:     b.BindingID,
		EntityType:    b.EntityType,
		EntityID:      b.EntityID,
		ChannelAppID:  b.ChannelAppID,
		ChannelUserID: b.ChannelUserID,
		Status:        b.Status.String(),
		Audit:         audit,
	}
}
