package cache

import (
	"context"
	"errors"
	"fmt"

	"gitee.com/flycash/notification-governance/internal/domain"
)

const TemplatePrefix = "template"

var ErrKeyNotFound = errors.New("key not found")

// TemplateCache 模板条目缓存
type TemplateCache interface {
	Get(ctx context.Context, key string) (domain.TemplateEntry, error)
	Set(ctx context.Context, entry domain.TemplateEntry) error
	Del(ctx context.Context, key string) error
}

// TemplateKey 缓存键，参数为模板注册表的键
func TemplateKey(templateKey string) string {
	return fmt.Sprintf("%s:%s", TemplatePrefix, templateKey)
}
