package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/errs"
	dispatchevt "gitee.com/flycash/notification-governance/internal/event/dispatch"
	"gitee.com/flycash/notification-governance/internal/repository"
	"gitee.com/flycash/notification-governance/internal/service/binding"
	"gitee.com/flycash/notification-governance/internal/service/governance"
	"gitee.com/flycash/notification-governance/internal/service/provider"
	"gitee.com/flycash/notification-governance/internal/service/template"
	"github.com/gotomicro/ego/core/elog"
)

const DefaultLanguage = "en"

type Config struct {
	TenantID string
	// IMAppID IM 渠道绑定所属的渠道应用
	IMAppID         string
	WindowMinutes   int
	DefaultLanguage string
}

// SendRequest 一次发送请求
type SendRequest struct {
	Channel      domain.Channel
	EventCode    string
	Recipient    domain.Recipient
	EntityRefs   map[string]string
	Correlation  map[string]string
	Placeholders map[string]any
	Language     string
	Actor        domain.Actor
	ForceResend  bool
	RetryOfID    string
}

// Callback 供应商回调上报的最终状态
type Callback struct {
	DispatchID        string
	ProviderRequestID string
	ProviderStatus    domain.ProviderStatus
	ErrorCode         string
	Response          map[string]any
}

// Service 发送编排
type Service interface {
	// Send 治理检查、解析模板与绑定、渲染、幂等检查，然后调用供应商。
	// 供应商失败记录为 FAILED 状态事件，不返回 error
	Send(ctx context.Context, req SendRequest) (domain.DispatchRecord, error)
	// RetryFailed 只有最新状态为 FAILED 的发送记录可以重试，复用原记录
	RetryFailed(ctx context.Context, actor domain.Actor, dispatchID string) (domain.DispatchRecord, error)
	HandleProviderCallback(ctx context.Context, cb Callback) (domain.DispatchRecord, error)
	Get(ctx context.Context, dispatchID string) (domain.DispatchDetail, error)
}

type dispatchService struct {
	guard     *governance.Guard
	templates template.Registry
	renderer  *template.Renderer
	bindings  binding.Service
	repo      repository.DispatchRepository
	providers *provider.Dispatcher
	producer  dispatchevt.StatusEventProducer
	cfg       Config
	now       func() time.Time
	logger    *elog.Component
}

func NewService(
	guard *governance.Guard,
	templates template.Registry,
	renderer *template.Renderer,
	bindings binding.Service,
	repo repository.DispatchRepository,
	providers *provider.Dispatcher,
	producer dispatchevt.StatusEventProducer,
	cfg Config,
) Service {
	if cfg.WindowMinutes <= 0 {
		cfg.WindowMinutes = DefaultWindowMinutes
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = DefaultLanguage
	}
	return &dispatchService{
		guard:     guard,
		templates: templates,
		renderer:  renderer,
		bindings:  bindings,
		repo:      repo,
		providers: providers,
		producer:  producer,
		cfg:       cfg,
		now:       time.Now,
		logger:    elog.DefaultLogger.With(elog.String("component", "dispatch")),
	}
}

func (s *dispatchService) Send(ctx context.Context, req SendRequest) (domain.DispatchRecord, error) {
	// 监管方检查先于一切，包括参数校验与模板查找
	if err := governance.ForbidAutoSendToRegulator(req.Recipient.Role); err != nil {
		s.logger.Warn("拒绝向监管方自动发送",
			elog.String("eventCode", req.EventCode),
			elog.String("actor", req.Actor.ID),
			elog.String("violation", errs.Code(err)))
		return domain.DispatchRecord{}, err
	}
	if !req.Channel.IsValid() {
		return domain.DispatchRecord{}, fmt.Errorf("%w: channel=%q", errs.ErrInvalidParameter, req.Channel)
	}
	if err := req.Recipient.Validate(req.Channel); err != nil {
		return domain.DispatchRecord{}, err
	}
	if !s.providers.Enabled(req.Channel) {
		return domain.DispatchRecord{}, fmt.Errorf("%w: channel=%s", errs.ErrChannelDisabled, req.Channel)
	}

	// 1. 治理检查
	def, err := s.guard.Check(ctx, governance.CheckRequest{
		Channel:     req.Channel,
		EventCode:   req.EventCode,
		Recipient:   req.Recipient,
		Correlation: req.Correlation,
		EntityRefs:  req.EntityRefs,
		Actor:       req.Actor,
	})
	if err != nil {
		return domain.DispatchRecord{}, err
	}

	// 2. 模板
	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = s.cfg.DefaultLanguage
	}
	entry, err := s.templates.Resolve(ctx, req.Channel, req.EventCode, language)
	if err != nil {
		return domain.DispatchRecord{}, err
	}

	// 3. 需要绑定的渠道必须有 VERIFIED 的绑定
	recipientRef, address := req.Recipient.UserID, req.Recipient.Email
	var bindingID string
	if req.Channel.IdentityBound() {
		b, err1 := s.bindings.ResolveDispatchable(ctx, req.Recipient.EntityType, req.Recipient.EntityID, s.cfg.IMAppID)
		if err1 != nil {
			return domain.DispatchRecord{}, err1
		}
		bindingID, recipientRef, address = b.BindingID, b.BindingID, b.ChannelUserID
	}

	// 4. 渲染
	rendered, err := s.renderer.Render(entry, req.Placeholders)
	if err != nil {
		s.logger.Warn("渲染失败",
			elog.String("eventCode", req.EventCode),
			elog.String("templateKey", entry.Key()),
			elog.String("violation", errs.Code(err)))
		return domain.DispatchRecord{}, err
	}

	// 5 - 7. 幂等键
	now := s.now().UTC()
	in := KeyInput{
		TenantID:            s.cfg.TenantID,
		EventCode:           req.EventCode,
		RecipientRef:        recipientRef,
		CorrelationKey:      CorrelationKey(def.RequiredCorrelationKeys, req.Correlation),
		WindowBucket:        WindowBucket(now, s.cfg.WindowMinutes),
		RetryOfID:           req.RetryOfID,
		RenderedPayloadHash: rendered.PayloadHash,
		ForceResend:         req.ForceResend,
	}
	key := IdempotencyKey(in)

	// 8. 已经发送过的直接返回
	if !req.ForceResend {
		existing, err1 := s.repo.FindByIdempotencyKey(ctx, key)
		if err1 == nil {
			s.logger.Info("命中幂等键，跳过发送",
				elog.String("dispatchId", existing.DispatchID),
				elog.String("eventCode", req.EventCode))
			return existing, nil
		}
		if !errors.Is(err1, errs.ErrNotFound) {
			return domain.DispatchRecord{}, err1
		}
	}

	// 9. 插入，冲突说明并发的另一方已经创建
	record := domain.DispatchRecord{
		DispatchID:          DispatchID(in),
		IdempotencyKey:      key,
		TenantID:            s.cfg.TenantID,
		Channel:             req.Channel,
		EventCode:           req.EventCode,
		Correlation:         req.Correlation,
		CorrelationKey:      in.CorrelationKey,
		WindowBucket:        in.WindowBucket,
		RecipientRole:       req.Recipient.Role,
		RecipientBindingID:  bindingID,
		RecipientUserID:     req.Recipient.UserID,
		RecipientEmail:      req.Recipient.Email,
		TemplateKey:         rendered.TemplateKey,
		ChannelTemplateID:   entry.ChannelTemplateID,
		Language:            rendered.Language,
		RenderedPayload:     rendered.Payload,
		RenderedPayloadHash: rendered.PayloadHash,
		RendererVersion:     rendered.RendererVersion,
		ForceResend:         req.ForceResend,
		RetryOfID:           req.RetryOfID,
		ProviderStatus:      domain.ProviderStatusQueued,
		CreatedAt:           now,
	}
	err = s.repo.Create(ctx, record)
	if errors.Is(err, errs.ErrDuplicateKey) {
		return s.repo.FindByIdempotencyKey(ctx, key)
	}
	if err != nil {
		return domain.DispatchRecord{}, err
	}

	// 10. 记录创建，调用供应商，记录结果
	const attempt = 1
	if _, err = s.appendEvent(ctx, record, domain.DispatchStatusEvent{
		DispatchID:     record.DispatchID,
		EventType:      domain.StatusEventDispatchCreated,
		ProviderStatus: domain.ProviderStatusQueued,
		Attempt:        attempt,
	}); err != nil {
		return domain.DispatchRecord{}, err
	}
	return s.deliver(ctx, record, address, attempt)
}

// deliver 调用供应商并追加结果事件
func (s *dispatchService) deliver(ctx context.Context, record domain.DispatchRecord, address string, attempt int) (domain.DispatchRecord, error) {
	res, err := s.providers.Send(ctx, provider.SendRequest{
		Channel:    record.Channel,
		Address:    address,
		TemplateID: record.ChannelTemplateID,
		Payload:    record.RenderedPayload,
		DispatchID: record.DispatchID,
	})
	evt := domain.DispatchStatusEvent{
		DispatchID:        record.DispatchID,
		EventType:         domain.StatusEventProviderSent,
		ProviderStatus:    res.ProviderStatus,
		ProviderRequestID: res.ProviderRequestID,
		ErrorCode:         res.ErrorCode,
		RedactedResponse:  provider.Redact(res.RedactedResponse),
		Attempt:           attempt,
	}
	switch {
	case err != nil || res.ProviderStatus == domain.ProviderStatusFailed:
		evt.EventType = domain.StatusEventProviderFailed
		evt.ProviderStatus = domain.ProviderStatusFailed
		if evt.ErrorCode == "" {
			evt.ErrorCode = "PROVIDER_ERROR"
		}
		s.logger.Error("供应商发送失败",
			elog.String("dispatchId", record.DispatchID),
			elog.String("errorCode", evt.ErrorCode),
			elog.Any("response", evt.RedactedResponse),
			elog.Int("attempt", attempt))
	case res.ProviderStatus == domain.ProviderStatusDelivered:
		evt.EventType = domain.StatusEventProviderDelivered
	default:
		evt.ProviderStatus = domain.ProviderStatusSent
	}
	if _, err = s.appendEvent(ctx, record, evt); err != nil {
		return domain.DispatchRecord{}, err
	}
	record.ProviderStatus = evt.ProviderStatus
	return record, nil
}

func (s *dispatchService) RetryFailed(ctx context.Context, actor domain.Actor, dispatchID string) (domain.DispatchRecord, error) {
	if !actor.IsAdmin() {
		s.logger.Warn("非管理员尝试重试发送",
			elog.String("dispatchId", dispatchID),
			elog.String("actor", actor.ID),
			elog.String("violation", errs.Code(errs.ErrActorNotAuthorized)))
		return domain.DispatchRecord{}, fmt.Errorf("%w: role=%s", errs.ErrActorNotAuthorized, actor.Role)
	}
	record, err := s.find(ctx, dispatchID)
	if err != nil {
		return domain.DispatchRecord{}, err
	}
	events, err := s.repo.ListStatusEvents(ctx, dispatchID)
	if err != nil {
		return domain.DispatchRecord{}, err
	}
	// 任何一次送达之后都不能再重试，避免重复投递
	if len(events) == 0 || events[len(events)-1].ProviderStatus != domain.ProviderStatusFailed || everDelivered(events) {
		return domain.DispatchRecord{}, fmt.Errorf("%w: dispatchId=%s status=%s", errs.ErrDispatchNotRetryable, dispatchID, record.ProviderStatus)
	}

	address := record.RecipientEmail
	if record.Channel.IdentityBound() {
		b, err1 := s.bindings.Get(ctx, record.RecipientBindingID)
		if errors.Is(err1, errs.ErrBindingNotFound) {
			return domain.DispatchRecord{}, fmt.Errorf("%w: bindingId=%s", errs.ErrBindingMissing, record.RecipientBindingID)
		}
		if err1 != nil {
			return domain.DispatchRecord{}, err1
		}
		if !b.Dispatchable() {
			return domain.DispatchRecord{}, fmt.Errorf("%w: bindingId=%s status=%s", errs.ErrBindingNotVerified, b.BindingID, b.Status)
		}
		address = b.ChannelUserID
	}

	attempt := nextAttempt(events)
	inserted, err := s.appendEvent(ctx, record, domain.DispatchStatusEvent{
		DispatchID:     dispatchID,
		EventType:      domain.StatusEventRetryRequested,
		ProviderStatus: domain.ProviderStatusQueued,
		Attempt:        attempt,
	})
	if err != nil {
		return domain.DispatchRecord{}, err
	}
	if !inserted {
		// 并发的另一次重试已经开始
		return domain.DispatchRecord{}, fmt.Errorf("%w: dispatchId=%s 重试已在进行", errs.ErrDispatchNotRetryable, dispatchID)
	}
	s.logger.Info("重试发送", elog.String("dispatchId", dispatchID), elog.String("actor", actor.ID), elog.Int("attempt", attempt))
	return s.deliver(ctx, record, address, attempt)
}

func (s *dispatchService) HandleProviderCallback(ctx context.Context, cb Callback) (domain.DispatchRecord, error) {
	var eventType domain.StatusEventType
	switch cb.ProviderStatus {
	case domain.ProviderStatusDelivered:
		eventType = domain.StatusEventProviderDelivered
	case domain.ProviderStatusFailed:
		eventType = domain.StatusEventProviderFailed
	default:
		return domain.DispatchRecord{}, fmt.Errorf("%w: providerStatus=%q", errs.ErrInvalidCallback, cb.ProviderStatus)
	}
	record, err := s.find(ctx, cb.DispatchID)
	if err != nil {
		return domain.DispatchRecord{}, err
	}
	events, err := s.repo.ListStatusEvents(ctx, cb.DispatchID)
	if err != nil {
		return domain.DispatchRecord{}, err
	}
	attempt := currentAttempt(events)
	if eventType == domain.StatusEventProviderFailed && deliveredIn(events, attempt) {
		// 送达是终态，迟到的失败回调不能覆盖
		s.logger.Warn("忽略送达之后的失败回调",
			elog.String("dispatchId", cb.DispatchID),
			elog.String("providerRequestId", cb.ProviderRequestID),
			elog.Int("attempt", attempt))
		return s.repo.FindByID(ctx, cb.DispatchID)
	}
	inserted, err := s.appendEvent(ctx, record, domain.DispatchStatusEvent{
		DispatchID:        cb.DispatchID,
		EventType:         eventType,
		ProviderStatus:    cb.ProviderStatus,
		ProviderRequestID: cb.ProviderRequestID,
		ErrorCode:         cb.ErrorCode,
		RedactedResponse:  provider.Redact(cb.Response),
		Attempt:           attempt,
	})
	if err != nil {
		return domain.DispatchRecord{}, err
	}
	if !inserted {
		s.logger.Info("重复的供应商回调", elog.String("dispatchId", cb.DispatchID))
	}
	return s.repo.FindByID(ctx, cb.DispatchID)
}

func (s *dispatchService) Get(ctx context.Context, dispatchID string) (domain.DispatchDetail, error) {
	record, err := s.find(ctx, dispatchID)
	if err != nil {
		return domain.DispatchDetail{}, err
	}
	events, err := s.repo.ListStatusEvents(ctx, dispatchID)
	if err != nil {
		return domain.DispatchDetail{}, err
	}
	return domain.DispatchDetail{Record: record, Events: events}, nil
}

func (s *dispatchService) find(ctx context.Context, dispatchID string) (domain.DispatchRecord, error) {
	record, err := s.repo.FindByID(ctx, dispatchID)
	if errors.Is(err, errs.ErrNotFound) {
		return domain.DispatchRecord{}, fmt.Errorf("%w: dispatchId=%s", errs.ErrDispatchNotFound, dispatchID)
	}
	return record, err
}

// appendEvent 追加状态事件，成功插入后广播。重复追加返回 false
func (s *dispatchService) appendEvent(ctx context.Context, record domain.DispatchRecord, evt domain.DispatchStatusEvent) (bool, error) {
	evt.CreatedAt = s.now().UTC()
	evt.StatusEventID = StatusEventID(s.cfg.TenantID, evt)
	inserted, err := s.repo.AppendStatusEvent(ctx, evt)
	if err != nil || !inserted {
		return inserted, err
	}
	if err = s.producer.Produce(ctx, dispatchevt.NewStatusEvent(record, evt)); err != nil {
		s.logger.Warn("广播状态事件失败",
			elog.String("dispatchId", evt.DispatchID),
			elog.String("statusEventId", evt.StatusEventID),
			elog.FieldErr(err))
	}
	return true, nil
}

// currentAttempt 初次发送为 1，每次重试加一
func currentAttempt(events []domain.DispatchStatusEvent) int {
	attempt := 1
	for _, e := range events {
		if e.EventType == domain.StatusEventRetryRequested {
			attempt++
		}
	}
	return attempt
}

func nextAttempt(events []domain.DispatchStatusEvent) int {
	return currentAttempt(events) + 1
}

func deliveredIn(events []domain.DispatchStatusEvent, attempt int) bool {
	for _, e := range events {
		if e.Attempt == attempt && e.ProviderStatus == domain.ProviderStatusDelivered {
			return true
		}
	}
	return false
}

func everDelivered(events []domain.DispatchStatusEvent) bool {
	for _, e := range events {
		if e.ProviderStatus == domain.ProviderStatusDelivered {
			return true
		}
	}
	return false
}
