package domain

import (
	"fmt"
	"time"
)

// TemplateStatus 模板状态，APPROVED 与 RETIRED 只用于邮件渠道
type TemplateStatus string

const (
	TemplateStatusDraft    TemplateStatus = "DRAFT"
	TemplateStatusLocked   TemplateStatus = "LOCKED"
	TemplateStatusApproved TemplateStatus = "APPROVED"
	TemplateStatusRetired  TemplateStatus = "RETIRED"
)

func (s TemplateStatus) String() string {
	return string(s)
}

func (s TemplateStatus) IsValidFor(channel Channel) bool {
	switch s {
	case TemplateStatusDraft, TemplateStatusLocked:
		return true
	case TemplateStatusApproved, TemplateStatusRetired:
		return channel == ChannelEmail
	default:
		return false
	}
}

// UsableIn 生产环境只能使用 LOCKED/APPROVED，非生产环境额外允许 DRAFT
func (s TemplateStatus) UsableIn(production bool) bool {
	switch s {
	case TemplateStatusLocked, TemplateStatusApproved:
		return true
	case TemplateStatusDraft:
		return !production
	default:
		return false
	}
}

// TemplateEntry 模板注册表条目
type TemplateEntry struct {
	EventCode               string
	Channel                 Channel
	Language                string
	SchemaVersion           int
	ChannelTemplateID       string
	RequiredPlaceholders    []string // 排序后的集合
	AllowedLinkPathPatterns []string
	Status                  TemplateStatus
	RenderTemplate          string
	ContractHash            string
	UpdatedAt               time.Time
}

// Key 模板在注册表中的唯一键
func (e TemplateEntry) Key() string {
	return TemplateKey(e.Channel, e.EventCode, e.Language)
}

func TemplateKey(channel Channel, eventCode, language string) string {
	return fmt.Sprintf("%s:%s:%s", channel, eventCode, language)
}

// Rendered 渲染结果
type Rendered struct {
	Payload         string
	PayloadHash     string
	RendererVersion string
	TemplateKey     string
	SchemaVersion   int
	Language        string
	Placeholders    map[string]string
}
