package dispatch

import (
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
)

type Recipient struct {
	Role       string `json:"role"`
	UserID     string `json:"userId"`
	Email      string `json:"email,omitempty"`
	EntityType string `json:"entityType,omitempty"`
	EntityID   string `json:"entityId,omitempty"`
}

type SendReq struct {
	Channel      string            `json:"channel"`
	EventCode    string            `json:"eventCode"`
	Recipient    Recipient         `json:"recipient"`
	EntityRefs   map[string]string `json:"entityRefs"`
	Correlation  map[string]string `json:"correlation"`
	Placeholders map[string]any    `json:"placeholders"`
	Language     string            `json:"language"`
	ForceResend  bool              `json:"forceResend"`
	RetryOfID    string            `json:"retryOfId"`
}

// Dispatch 不返回渲染后的正文，只返回哈希
type Dispatch struct {
	DispatchID          string            `json:"dispatchId"`
	Channel             string            `json:"channel"`
	EventCode           string            `json:"eventCode"`
	Correlation         map[string]string `json:"correlation"`
	RecipientRole       string            `json:"recipientRole"`
	RecipientBindingID  string            `json:"recipientBindingId,omitempty"`
	RecipientUserID     string            `json:"recipientUserId"`
	TemplateKey         string            `json:"templateKey"`
	RenderedPayloadHash string            `json:"renderedPayloadHash"`
	RendererVersion     string            `json:"rendererVersion"`
	ProviderStatus      string            `json:"providerStatus"`
	CreatedAt           string            `json:"createdAt"`
}

type StatusEvent struct {
	StatusEventID     string         `json:"statusEventId"`
	EventType         string         `json:"eventType"`
	ProviderStatus    string         `json:"providerStatus"`
	ProviderRequestID string         `json:"providerRequestId,omitempty"`
	ErrorCode         string         `json:"errorCode,omitempty"`
	RedactedResponse  map[string]any `json:"redactedResponse,omitempty"`
	Attempt           int            `json:"attempt"`
	CreatedAt         string         `json:"createdAt"`
}

type DetailResp struct {
	Dispatch Dispatch      `json:"dispatch"`
	Events   []StatusEvent `json:"events"`
}

func newDispatch(d domain.DispatchRecord) Dispatch {
	return Dispatch{
		DispatchID:          d.DispatchID,
		Channel:             d.Channel.String(),
		EventCode:           d.EventCode,
		Correlation:         d.Correlation,
		RecipientRole:       d.RecipientRole.String(),
		RecipientBindingID:  d.RecipientBindingID,
		RecipientUserID:     d.RecipientUserID,
		TemplateKey:         d.TemplateKey,
		RenderedPayloadHash: d.RenderedPayloadHash,
		RendererVersion:     d.RendererVersion,
		ProviderStatus:      d.ProviderStatus.String(),
		CreatedAt:           d.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func newStatusEvent(e domain.DispatchStatusEvent) StatusEvent {
	return StatusEvent{
		StatusEventID:     e.StatusEventID,
		EventType:         string(e.EventType),
		ProviderStatus:    e.ProviderStatus.String(),
		ProviderRequestID: e.ProviderRequestID,
		ErrorCode:         e.ErrorCode,
		RedactedResponse:  e.RedactedResponse,
		Attempt:           e.Attempt,
		CreatedAt:         e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
