package repository

import (
	"context"
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
	pkgdao "gitee.com/flycash/notification-governance/internal/pkg/dao"
	"gitee.com/flycash/notification-governance/internal/repository/dao"
	"github.com/ecodeclub/ekit/slice"
)

// ChannelBindingRepository 渠道绑定仓库
type ChannelBindingRepository interface {
	// Create 主键冲突时返回 errs.ErrDuplicateKey
	Create(ctx context.Context, b domain.ChannelBinding) error
	// FindByID 不存在时返回 errs.ErrNotFound
	FindByID(ctx context.Context, bindingID string) (domain.ChannelBinding, error)
	// Update 以 prevStatus 与 b.Version 为条件更新，条件不满足时返回 errs.ErrBindingConcurrentUpdate
	Update(ctx context.Context, b domain.ChannelBinding, prevStatus domain.BindingStatus) error
	List(ctx context.Context, tenantID string, filter domain.ExportFilter, page domain.Page) ([]domain.ChannelBinding, error)
}

type channelBindingRepository struct {
	dao dao.ChannelBindingDAO
}

func NewChannelBindingRepository(d dao.ChannelBindingDAO) ChannelBindingRepository {
	return &channelBindingRepository{dao: d}
}

func (r *channelBindingRepository) Create(ctx context.Context, b domain.ChannelBinding) error {
	entity, err := r.toEntity(b)
	if err != nil {
		return err
	}
	return r.dao.Insert(ctx, entity)
}

func (r *channelBindingRepository) FindByID(ctx context.Context, bindingID string) (domain.ChannelBinding, error) {
	entity, err := r.dao.FindByID(ctx, bindingID)
	if err != nil {
		return domain.ChannelBinding{}, err
	}
	return r.toDomain(entity)
}

func (r *channelBindingRepository) Update(ctx context.Context, b domain.ChannelBinding, prevStatus domain.BindingStatus) error {
	entity, err := r.toEntity(b)
	if err != nil {
		return err
	}
	return r.dao.CompareAndUpdate(ctx, entity, prevStatus.String(), b.Version)
}

func (r *channelBindingRepository) List(ctx context.Context, tenantID string, filter domain.ExportFilter, page domain.Page) ([]domain.ChannelBinding, error) {
	entities, err := r.dao.List(ctx, dao.BindingQuery{
		TenantID: tenantID,
		From:     toMillis(filter.From),
		To:       toMillis(filter.To),
		Offset:   page.Offset,
		Limit:    page.Limit,
	})
	if err != nil {
		return nil, err
	}
	res := make([]domain.ChannelBinding, 0, len(entities))
	for _, e := range entities {
		b, err1 := r.toDomain(e)
		if err1 != nil {
			return nil, err1
		}
		res = append(res, b)
	}
	return res, nil
}

func (r *channelBindingRepository) toEntity(b domain.ChannelBinding) (dao.ChannelBinding, error) {
	audit, err := pkgdao.NewJSON(b.Audit)
	if err != nil {
		return dao.ChannelBinding{}, err
	}
	return dao.ChannelBinding{
		BindingID:                  b.BindingID,
		TenantID:                   b.TenantID,
		EntityType:                 b.EntityType,
		EntityID:                   b.EntityID,
		ChannelAppID:               b.ChannelAppID,
		ChannelUserID:              b.ChannelUserID,
		Status:                     b.Status.String(),
		VerificationTokenHash:      b.VerificationTokenHash,
		VerificationTokenExpiresAt: toMillis(b.VerificationTokenExpiresAt),
		Audit:                      audit,
		Version:                    b.Version,
		Ctime:                      toMillis(b.Ctime),
		Utime:                      toMillis(b.Utime),
	}, nil
}

func (r *channelBindingRepository) toDomain(e dao.ChannelBinding) (domain.ChannelBinding, error) {
	var audit []domain.BindingAuditEntry
	if err := e.Audit.Decode(&audit); err != nil {
		return domain.ChannelBinding{}, err
	}
	return domain.ChannelBinding{
		BindingID:                  e.BindingID,
		TenantID:                   e.TenantID,
		EntityType:                 e.EntityType,
		EntityID:                   e.EntityID,
		ChannelAppID:               e.ChannelAppID,
		ChannelUserID:              e.ChannelUserID,
		Status:                     domain.BindingStatus(e.Status),
		VerificationTokenHash:      e.VerificationTokenHash,
		VerificationTokenExpiresAt: fromMillis(e.VerificationTokenExpiresAt),
		Audit: slice.Map(audit, func(_ int, a domain.BindingAuditEntry) domain.BindingAuditEntry {
			a.At = a.At.UTC()
			return a
		}),
		Version: e.Version,
		Ctime:   fromMillis(e.Ctime),
		Utime:   fromMillis(e.Utime),
	}, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
