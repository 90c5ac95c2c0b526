package export

import (
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
)

type ExportReq struct {
	Scope     string    `json:"scope"`
	EventCode string    `json:"eventCode"`
	Channel   string    `json:"channel"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Offset    int       `json:"offset"`
	Limit     int       `json:"limit"`
}

type AuditEvent struct {
	EventID       string `json:"eventId"`
	ActorID       string `json:"actorId"`
	ActorRole     string `json:"actorRole"`
	RequestedAt   string `json:"requestedAt"`
	Format        string `json:"format"`
	Scope         string `json:"scope"`
	Route         string `json:"route"`
	Outcome       string `json:"outcome"`
	ManifestHash  string `json:"manifestHash,omitempty"`
	CanonicalHash string `json:"canonicalHash,omitempty"`
}

func newAuditEvent(e domain.ExportAuditEvent) AuditEvent {
	return AuditEvent{
		EventID:       e.EventID,
		ActorID:       e.ActorID,
		ActorRole:     e.ActorRole.String(),
		RequestedAt:   e.RequestedAt.UTC().Format(time.RFC3339Nano),
		Format:        e.Format,
		Scope:         string(e.Scope),
		Route:         e.Route,
		Outcome:       string(e.Outcome),
		ManifestHash:  e.ManifestHash,
		CanonicalHash: e.CanonicalHash,
	}
}
