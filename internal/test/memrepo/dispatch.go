package memrepo

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/errs"
	"gitee.com/flycash/notification-governance/internal/repository"
)

var _ repository.DispatchRepository = (*DispatchRepository)(nil)

type DispatchRepository struct {
	mu      sync.RWMutex
	records map[string]domain.DispatchRecord
	byKey   map[string]string
	// 按追加顺序保存
	events   []domain.DispatchStatusEvent
	eventIDs map[string]struct{}
}

func NewDispatchRepository() *DispatchRepository {
	return &DispatchRepository{
		records:  make(map[string]domain.DispatchRecord),
		byKey:    make(map[string]string),
		eventIDs: make(map[string]struct{}),
	}
}

func (r *DispatchRepository) Create(_ context.Context, record domain.DispatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[record.DispatchID]; ok {
		return fmt.Errorf("%w: dispatchId=%s", errs.ErrDuplicateKey, record.DispatchID)
	}
	if _, ok := r.byKey[record.IdempotencyKey]; ok {
		return fmt.Errorf("%w: idempotencyKey=%s", errs.ErrDuplicateKey, record.IdempotencyKey)
	}
	record.ProviderStatus = domain.ProviderStatusQueued
	record.Correlation = maps.Clone(record.Correlation)
	r.records[record.DispatchID] = record
	r.byKey[record.IdempotencyKey] = record.DispatchID
	return nil
}

func (r *DispatchRepository) FindByID(_ context.Context, dispatchID string) (domain.DispatchRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[dispatchID]
	if !ok {
		return domain.DispatchRecord{}, errs.ErrNotFound
	}
	return r.withLatest(record), nil
}

func (r *DispatchRepository) FindByIdempotencyKey(ctx context.Context, key string) (domain.DispatchRecord, error) {
	r.mu.RLock()
	id, ok := r.byKey[key]
	r.mu.RUnlock()
	if !ok {
		return domain.DispatchRecord{}, errs.ErrNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *DispatchRepository) List(_ context.Context, tenantID string, filter domain.ExportFilter, page domain.Page) ([]domain.DispatchRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]domain.DispatchRecord, 0, len(r.records))
	for _, d := range r.records {
		if d.TenantID != tenantID || !inRange(d.CreatedAt, filter) {
			continue
		}
		if filter.EventCode != "" && d.EventCode != filter.EventCode {
			continue
		}
		if filter.Channel != "" && d.Channel != filter.Channel {
			continue
		}
		res = append(res, r.withLatest(d))
	}
	slices.SortFunc(res, func(a, b domain.DispatchRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.DispatchID, b.DispatchID)
	})
	return paginate(res, page), nil
}

func (r *DispatchRepository) AppendStatusEvent(_ context.Context, e domain.DispatchStatusEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.eventIDs[e.StatusEventID]; ok {
		return false, nil
	}
	r.eventIDs[e.StatusEventID] = struct{}{}
	e.RedactedResponse = maps.Clone(e.RedactedResponse)
	r.events = append(r.events, e)
	return true, nil
}

func (r *DispatchRepository) LatestStatus(_ context.Context, dispatchID string) (domain.DispatchStatusEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.latest(dispatchID)
	if !ok {
		return domain.DispatchStatusEvent{}, errs.ErrNotFound
	}
	return e, nil
}

func (r *DispatchRepository) ListStatusEvents(_ context.Context, dispatchID string) ([]domain.DispatchStatusEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []domain.DispatchStatusEvent
	for _, e := range r.events {
		if e.DispatchID == dispatchID {
			res = append(res, e)
		}
	}
	return res, nil
}

// EventCount 测试辅助：某条发送记录的状态事件数量
func (r *DispatchRepository) EventCount(dispatchID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.events {
		if e.DispatchID == dispatchID {
			n++
		}
	}
	return n
}

// RecordCount 测试辅助：发送记录总数
func (r *DispatchRepository) RecordCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func (r *DispatchRepository) withLatest(record domain.DispatchRecord) domain.DispatchRecord {
	record.Correlation = maps.Clone(record.Correlation)
	if e, ok := r.latest(record.DispatchID); ok {
		record.ProviderStatus = e.ProviderStatus
	}
	return record
}

func (r *DispatchRepository) latest(dispatchID string) (domain.DispatchStatusEvent, bool) {
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].DispatchID == dispatchID {
			return r.events[i], true
		}
	}
	return domain.DispatchStatusEvent{}, false
}
