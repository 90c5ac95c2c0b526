package repository

import (
	"context"

	"gitee.com/flycash/notification-governance/internal/domain"
	pkgdao "gitee.com/flycash/notification-governance/internal/pkg/dao"
	"gitee.com/flycash/notification-governance/internal/repository/dao"
	"github.com/ecodeclub/ekit/slice"
)

// DispatchRepository 发送记录与状态事件仓库。
// 读取的发送记录 ProviderStatus 由最新状态事件推导
type DispatchRepository interface {
	// Create 幂等键冲突时返回 errs.ErrDuplicateKey
	Create(ctx context.Context, r domain.DispatchRecord) error
	FindByID(ctx context.Context, dispatchID string) (domain.DispatchRecord, error)
	FindByIdempotencyKey(ctx context.Context, key string) (domain.DispatchRecord, error)
	List(ctx context.Context, tenantID string, filter domain.ExportFilter, page domain.Page) ([]domain.DispatchRecord, error)

	// AppendStatusEvent 重复追加返回 false，不是错误
	AppendStatusEvent(ctx context.Context, e domain.DispatchStatusEvent) (bool, error)
	LatestStatus(ctx context.Context, dispatchID string) (domain.DispatchStatusEvent, error)
	ListStatusEvents(ctx context.Context, dispatchID string) ([]domain.DispatchStatusEvent, error)
}

type dispatchRepository struct {
	dao dao.DispatchDAO
}

func NewDispatchRepository(d dao.DispatchDAO) DispatchRepository {
	return &dispatchRepository{dao: d}
}

func (r *dispatchRepository) Create(ctx context.Context, record domain.DispatchRecord) error {
	entity, err := r.toEntity(record)
	if err != nil {
		return err
	}
	return r.dao.Insert(ctx, entity)
}

func (r *dispatchRepository) FindByID(ctx context.Context, dispatchID string) (domain.DispatchRecord, error) {
	entity, err := r.dao.FindByID(ctx, dispatchID)
	if err != nil {
		return domain.DispatchRecord{}, err
	}
	return r.withLatestStatus(ctx, entity)
}

func (r *dispatchRepository) FindByIdempotencyKey(ctx context.Context, key string) (domain.DispatchRecord, error) {
	entity, err := r.dao.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return domain.DispatchRecord{}, err
	}
	return r.withLatestStatus(ctx, entity)
}

func (r *dispatchRepository) withLatestStatus(ctx context.Context, entity dao.DispatchRecord) (domain.DispatchRecord, error) {
	record, err := r.toDomain(entity)
	if err != nil {
		return domain.DispatchRecord{}, err
	}
	latest, err := r.dao.LatestStatusEvents(ctx, []string{entity.DispatchID})
	if err != nil {
		return domain.DispatchRecord{}, err
	}
	if e, ok := latest[entity.DispatchID]; ok {
		record.ProviderStatus = domain.ProviderStatus(e.ProviderStatus)
	}
	return record, nil
}

func (r *dispatchRepository) List(ctx context.Context, tenantID string, filter domain.ExportFilter, page domain.Page) ([]domain.DispatchRecord, error) {
	entities, err := r.dao.List(ctx, dao.DispatchQuery{
		TenantID:  tenantID,
		EventCode: filter.EventCode,
		Channel:   filter.Channel.String(),
		From:      toMillis(filter.From),
		To:        toMillis(filter.To),
		Offset:    page.Offset,
		Limit:     page.Limit,
	})
	if err != nil {
		return nil, err
	}
	latest, err := r.dao.LatestStatusEvents(ctx, slice.Map(entities, func(_ int, e dao.DispatchRecord) string {
		return e.DispatchID
	}))
	if err != nil {
		return nil, err
	}
	res := make([]domain.DispatchRecord, 0, len(entities))
	for _, e := range entities {
		record, err1 := r.toDomain(e)
		if err1 != nil {
			return nil, err1
		}
		if evt, ok := latest[e.DispatchID]; ok {
			record.ProviderStatus = domain.ProviderStatus(evt.ProviderStatus)
		}
		res = append(res, record)
	}
	return res, nil
}

func (r *dispatchRepository) AppendStatusEvent(ctx context.Context, e domain.DispatchStatusEvent) (bool, error) {
	entity, err := r.toEventEntity(e)
	if err != nil {
		return false, err
	}
	return r.dao.AppendStatusEvent(ctx, entity)
}

func (r *dispatchRepository) LatestStatus(ctx context.Context, dispatchID string) (domain.DispatchStatusEvent, error) {
	entity, err := r.dao.LatestStatusEvent(ctx, dispatchID)
	if err != nil {
		return domain.DispatchStatusEvent{}, err
	}
	return r.toEventDomain(entity)
}

func (r *dispatchRepository) ListStatusEvents(ctx context.Context, dispatchID string) ([]domain.DispatchStatusEvent, error) {
	entities, err := r.dao.ListStatusEvents(ctx, dispatchID)
	if err != nil {
		return nil, err
	}
	res := make([]domain.DispatchStatusEvent, 0, len(entities))
	for _, e := range entities {
		evt, err1 := r.toEventDomain(e)
		if err1 != nil {
			return nil, err1
		}
		res = append(res, evt)
	}
	return res, nil
}

func (r *dispatchRepository) toEntity(d domain.DispatchRecord) (dao.DispatchRecord, error) {
	correlation, err := pkgdao.NewJSON(d.Correlation)
	if err != nil {
		return dao.DispatchRecord{}, err
	}
	return dao.DispatchRecord{
		DispatchID:          d.DispatchID,
		IdempotencyKey:      d.IdempotencyKey,
		TenantID:            d.TenantID,
		Channel:             d.Channel.String(),
		EventCode:           d.EventCode,
		Correlation:         correlation,
		CorrelationKey:      d.CorrelationKey,
		WindowBucket:        d.WindowBucket,
		RecipientRole:       d.RecipientRole.String(),
		RecipientBindingID:  d.RecipientBindingID,
		RecipientUserID:     d.RecipientUserID,
		RecipientEmail:      d.RecipientEmail,
		TemplateKey:         d.TemplateKey,
		ChannelTemplateID:   d.ChannelTemplateID,
		Language:            d.Language,
		RenderedPayload:     d.RenderedPayload,
		RenderedPayloadHash: d.RenderedPayloadHash,
		RendererVersion:     d.RendererVersion,
		ForceResend:         d.ForceResend,
		RetryOfID:           d.RetryOfID,
		ProviderStatus:      domain.ProviderStatusQueued.String(),
		Ctime:               toMillis(d.CreatedAt),
	}, nil
}

func (r *dispatchRepository) toDomain(e dao.DispatchRecord) (domain.DispatchRecord, error) {
	var correlation map[string]string
	if err := e.Correlation.Decode(&correlation); err != nil {
		return domain.DispatchRecord{}, err
	}
	return domain.DispatchRecord{
		DispatchID:          e.DispatchID,
		IdempotencyKey:      e.IdempotencyKey,
		TenantID:            e.TenantID,
		Channel:             domain.Channel(e.Channel),
		EventCode:           e.EventCode,
		Correlation:         correlation,
		CorrelationKey:      e.CorrelationKey,
		WindowBucket:        e.WindowBucket,
		RecipientRole:       domain.Role(e.RecipientRole),
		RecipientBindingID:  e.RecipientBindingID,
		RecipientUserID:     e.RecipientUserID,
		RecipientEmail:      e.RecipientEmail,
		TemplateKey:         e.TemplateKey,
		ChannelTemplateID:   e.ChannelTemplateID,
		Language:            e.Language,
		RenderedPayload:     e.RenderedPayload,
		RenderedPayloadHash: e.RenderedPayloadHash,
		RendererVersion:     e.RendererVersion,
		ForceResend:         e.ForceResend,
		RetryOfID:           e.RetryOfID,
		ProviderStatus:      domain.ProviderStatus(e.ProviderStatus),
		CreatedAt:           fromMillis(e.Ctime),
	}, nil
}

func (r *dispatchRepository) toEventEntity(e domain.DispatchStatusEvent) (dao.DispatchStatusEvent, error) {
	resp, err := pkgdao.NewJSON(e.RedactedResponse)
	if err != nil {
		return dao.DispatchStatusEvent{}, err
	}
	return dao.DispatchStatusEvent{
		StatusEventID:     e.StatusEventID,
		DispatchID:        e.DispatchID,
		EventType:         string(e.EventType),
		ProviderStatus:    e.ProviderStatus.String(),
		ProviderRequestID: e.ProviderRequestID,
		ErrorCode:         e.ErrorCode,
		RedactedResponse:  resp,
		Attempt:           e.Attempt,
		Ctime:             toMillis(e.CreatedAt),
	}, nil
}

func (r *dispatchRepository) toEventDomain(e dao.DispatchStatusEvent) (domain.DispatchStatusEvent, error) {
	var resp map[string]any
	if err := e.RedactedResponse.Decode(&resp); err != nil {
		return domain.DispatchStatusEvent{}, err
	}
	return domain.DispatchStatusEvent{
		StatusEventID:     e.StatusEventID,
		DispatchID:        e.DispatchID,
		EventType:         domain.StatusEventType(e.EventType),
		ProviderStatus:    domain.ProviderStatus(e.ProviderStatus),
		ProviderRequestID: e.ProviderRequestID,
		ErrorCode:         e.ErrorCode,
		RedactedResponse:  resp,
		Attempt:           e.Attempt,
		CreatedAt:         fromMillis(e.Ctime),
	}, nil
}
