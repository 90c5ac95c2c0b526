package memrepo

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/errs"
	"gitee.com/flycash/notification-governance/internal/repository"
)

var _ repository.ExportAuditRepository = (*ExportAuditRepository)(nil)

type ExportAuditRepository struct {
	mu     sync.RWMutex
	events []domain.ExportAuditEvent
}

func NewExportAuditRepository() *ExportAuditRepository {
	return &ExportAuditRepository{}
}

func (r *ExportAuditRepository) Create(_ context.Context, e domain.ExportAuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.events {
		if existing.EventID == e.EventID {
			return fmt.Errorf("%w: eventId=%s", errs.ErrDuplicateKey, e.EventID)
		}
	}
	r.events = append(r.events, e)
	return nil
}

// List 按请求时间倒序
func (r *ExportAuditRepository) List(_ context.Context, page domain.Page) ([]domain.ExportAuditEvent, error) {
	r.mu.RLock()
	res := slices.Clone(r.events)
	r.mu.RUnlock()
	slices.Reverse(res)
	return paginate(res, page), nil
}
