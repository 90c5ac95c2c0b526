package dispatch

import "gitee.com/flycash/notification-governance/internal/domain"

const StatusEventTopic = "dispatch_status_events"

// StatusEvent 对外广播的发送状态变化，不包含收件地址与内容
type StatusEvent struct {
	StatusEventID     string `json:"statusEventId"`
	DispatchID        string `json:"dispatchId"`
	TenantID          string `json:"tenantId"`
	Channel           string `json:"channel"`
	EventCode         string `json:"eventCode"`
	EventType         string `json:"eventType"`
	ProviderStatus    string `json:"providerStatus"`
	ProviderRequestID string `json:"providerRequestId,omitempty"`
	ErrorCode         string `json:"errorCode,omitempty"`
	Attempt           int    `json:"attempt"`
	CreatedAt         int64  `json:"createdAt"`
}

func NewStatusEvent(record domain.DispatchRecord, e domain.DispatchStatusEvent) StatusEvent {
	return StatusEvent{
		StatusEventID:     e.StatusEventID,
		DispatchID:        e.DispatchID,
		TenantID:          record.TenantID,
		Channel:           record.Channel.String(),
		EventCode:         record.EventCode,
		EventType:         string(e.EventType),
		ProviderStatus:    e.ProviderStatus.String(),
		ProviderRequestID: e.ProviderRequestID,
		ErrorCode:         e.ErrorCode,
		Attempt:           e.Attempt,
		CreatedAt:         e.CreatedAt.UnixMilli(),
	}
}
