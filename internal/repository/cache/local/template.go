package local

import (
	"context"
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/repository/cache"
	ca "github.com/patrickmn/go-cache"
)

var _ cache.TemplateCache = (*TemplateCache)(nil)

// TemplateCache 进程内模板缓存。模板在 Upsert 时主动失效，过期时间只是兜底
type TemplateCache struct {
	c          *ca.Cache
	expiration time.Duration
}

func NewTemplateCache(c *ca.Cache, expiration time.Duration) *TemplateCache {
	return &TemplateCache{c: c, expiration: expiration}
}

func (l *TemplateCache) Get(_ context.Context, key string) (domain.TemplateEntry, error) {
	v, ok := l.c.Get(cache.TemplateKey(key))
	if !ok {
		return domain.TemplateEntry{}, cache.ErrKeyNotFound
	}
	return v.(domain.TemplateEntry), nil
}

func (l *TemplateCache) Set(_ context.Context, entry domain.TemplateEntry) error {
	l.c.Set(cache.TemplateKey(entry.Key()), entry, l.expiration)
	return nil
}

func (l *TemplateCache) Del(_ context.Context, key string) error {
	l.c.Delete(cache.TemplateKey(key))
	return nil
}
