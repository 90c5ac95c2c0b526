package memrepo

import (
	"context"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/errs"
	"gitee.com/flycash/notification-governance/internal/repository"
)

var _ repository.TemplateRepository = (*TemplateRepository)(nil)

type TemplateRepository struct {
	mu   sync.RWMutex
	rows map[string]domain.TemplateEntry
	// FindCalls 记录 Find 的调用次数，用于验证缓存与合并请求
	FindCalls atomic.Int64
}

func NewTemplateRepository() *TemplateRepository {
	return &TemplateRepository{rows: make(map[string]domain.TemplateEntry)}
}

func (r *TemplateRepository) Upsert(_ context.Context, entry domain.TemplateEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[entry.Key()] = cloneTemplate(entry)
	return nil
}

func (r *TemplateRepository) Find(_ context.Context, channel domain.Channel, eventCode, language string) (domain.TemplateEntry, error) {
	r.FindCalls.Add(1)
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.rows[domain.TemplateKey(channel, eventCode, language)]
	if !ok {
		return domain.TemplateEntry{}, errs.ErrNotFound
	}
	return cloneTemplate(entry), nil
}

func (r *TemplateRepository) ListByChannel(_ context.Context, channel domain.Channel) ([]domain.TemplateEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []domain.TemplateEntry
	for _, e := range r.rows {
		if e.Channel == channel {
			res = append(res, cloneTemplate(e))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Key() < res[j].Key()
	})
	return res, nil
}

func cloneTemplate(e domain.TemplateEntry) domain.TemplateEntry {
	e.RequiredPlaceholders = slices.Clone(e.RequiredPlaceholders)
	e.AllowedLinkPathPatterns = slices.Clone(e.AllowedLinkPathPatterns)
	return e
}
