// Package memrepo 内存版仓库，遵守与数据库相同的唯一约束，供服务层测试使用
package memrepo

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/errs"
	"gitee.com/flycash/notification-governance/internal/repository"
)

var _ repository.ChannelBindingRepository = (*BindingRepository)(nil)

type BindingRepository struct {
	mu   sync.RWMutex
	rows map[string]domain.ChannelBinding
}

func NewBindingRepository() *BindingRepository {
	return &BindingRepository{rows: make(map[string]domain.ChannelBinding)}
}

func (r *BindingRepository) Create(_ context.Context, b domain.ChannelBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[b.BindingID]; ok {
		return fmt.Errorf("%w: bindingId=%s", errs.ErrDuplicateKey, b.BindingID)
	}
	for _, row := range r.rows {
		if row.TenantID == b.TenantID && row.EntityType == b.EntityType &&
			row.EntityID == b.EntityID && row.ChannelAppID == b.ChannelAppID {
			return fmt.Errorf("%w: entity=%s/%s", errs.ErrDuplicateKey, b.EntityType, b.EntityID)
		}
	}
	if b.Version == 0 {
		b.Version = 1
	}
	r.rows[b.BindingID] = clone(b)
	return nil
}

func (r *BindingRepository) FindByID(_ context.Context, bindingID string) (domain.ChannelBinding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.rows[bindingID]
	if !ok {
		return domain.ChannelBinding{}, errs.ErrNotFound
	}
	return clone(b), nil
}

func (r *BindingRepository) Update(_ context.Context, b domain.ChannelBinding, prevStatus domain.BindingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[b.BindingID]
	if !ok || cur.Status != prevStatus || cur.Version != b.Version {
		return errs.ErrBindingConcurrentUpdate
	}
	b.Version++
	b.Ctime = cur.Ctime
	r.rows[b.BindingID] = clone(b)
	return nil
}

func (r *BindingRepository) List(_ context.Context, tenantID string, filter domain.ExportFilter, page domain.Page) ([]domain.ChannelBinding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]domain.ChannelBinding, 0, len(r.rows))
	for _, b := range r.rows {
		if b.TenantID != tenantID || !inRange(b.Ctime, filter) {
			continue
		}
		res = append(res, clone(b))
	}
	slices.SortFunc(res, func(a, b domain.ChannelBinding) int {
		if c := b.Ctime.Compare(a.Ctime); c != 0 {
			return c
		}
		return cmp.Compare(a.BindingID, b.BindingID)
	})
	return paginate(res, page), nil
}

func clone(b domain.ChannelBinding) domain.ChannelBinding {
	b.Audit = slices.Clone(b.Audit)
	return b
}
