package repository

import (
	"context"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/repository/dao"
	"github.com/ecodeclub/ekit/slice"
)

type ExportAuditRepository interface {
	Create(ctx context.Context, e domain.ExportAuditEvent) error
	List(ctx context.Context, page domain.Page) ([]domain.ExportAuditEvent, error)
}

type exportAuditRepository struct {
	dao dao.ExportAuditDAO
}

func NewExportAuditRepository(d dao.ExportAuditDAO) ExportAuditRepository {
	return &exportAuditRepository{dao: d}
}

func (r *exportAuditRepository) Create(ctx context.Context, e domain.ExportAuditEvent) error {
	return r.dao.Insert(ctx, dao.ExportAuditEvent{
		EventID:       e.EventID,
		ActorID:       e.ActorID,
		ActorRole:     e.ActorRole.String(),
		Route:         e.Route,
		RequestedAt:   toMillis(e.RequestedAt),
		Format:        e.Format,
		Scope:         string(e.Scope),
		Outcome:       string(e.Outcome),
		ManifestHash:  e.ManifestHash,
		CanonicalHash: e.CanonicalHash,
	})
}

func (r *exportAuditRepository) List(ctx context.Context, page domain.Page) ([]domain.ExportAuditEvent, error) {
	entities, err := r.dao.List(ctx, page.Offset, page.Limit)
	if err != nil {
		return nil, err
	}
	return slice.Map(entities, func(_ int, e dao.ExportAuditEvent) domain.ExportAuditEvent {
		return domain.ExportAuditEvent{
			EventID:       e.EventID,
			ActorID:       e.ActorID,
			ActorRole:     domain.Role(e.ActorRole),
			RequestedAt:   fromMillis(e.RequestedAt),
			Format:        e.Format,
			Scope:         domain.ExportScope(e.Scope),
			Route:         e.Route,
			Outcome:       domain.ExportOutcome(e.Outcome),
			ManifestHash:  e.ManifestHash,
			CanonicalHash: e.CanonicalHash,
		}
	}), nil
}
