package template

import (
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
)

type UpsertReq struct {
	EventCode               string   `json:"eventCode"`
	Channel                 string   `json:"channel"`
	Language                string   `json:"language"`
	SchemaVersion           int      `json:"schemaVersion"`
	ChannelTemplateID       string   `json:"channelTemplateId"`
	RequiredPlaceholders    []string `json:"requiredPlaceholders"`
	AllowedLinkPathPatterns []string `json:"allowedLinkPathPatterns"`
	Status                  string   `json:"status"`
	RenderTemplate          string   `json:"renderTemplate"`
}

func (r UpsertReq) toDomain() domain.TemplateEntry {
	return domain.TemplateEntry{
		EventCode:               r.EventCode,
		Channel:                 domain.Channel(r.Channel),
		Language:                r.Language,
		SchemaVersion:           r.SchemaVersion,
		ChannelTemplateID:       r.ChannelTemplateID,
		RequiredPlaceholders:    r.RequiredPlaceholders,
		AllowedLinkPathPatterns: r.AllowedLinkPathPatterns,
		Status:                  domain.TemplateStatus(r.Status),
		RenderTemplate:          r.RenderTemplate,
	}
}

type Template struct {
	Key                     string   `json:"key"`
	EventCode               string   `json:"eventCode"`
	Channel                 string   `json:"channel"`
	Language                string   `json:"language"`
	SchemaVersion           int      `json:"schemaVersion"`
	ChannelTemplateID       string   `json:"channelTemplateId,omitempty"`
	RequiredPlaceholders    []string `json:"requiredPlaceholders"`
	AllowedLinkPathPatterns []string `json:"allowedLinkPathPatterns"`
	Status                  string   `json:"status"`
	RenderTemplate          string   `json:"renderTemplate"`
	ContractHash            string   `json:"contractHash"`
	UpdatedAt               string   `json:"updatedAt"`
}

func newTemplate(e domain.TemplateEntry) Template {
	return Template{
		Key:                     e.Key(),
		EventCode:               e.EventCode,
		Channel:                 e.Channel.String(),
		Language:                e.Language,
		SchemaVersion:           e.SchemaVersion,
		ChannelTemplateID:       e.ChannelTemplateID,
		RequiredPlaceholders:    e.RequiredPlaceholders,
		AllowedLinkPathPatterns: e.AllowedLinkPathPatterns,
		Status:                  e.Status.String(),
		RenderTemplate:          e.RenderTemplate,
		ContractHash:            e.ContractHash,
		UpdatedAt:               e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
