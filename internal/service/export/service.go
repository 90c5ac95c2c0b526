package export

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/errs"
	"gitee.com/flycash/notification-governance/internal/pkg/ratelimit"
	"gitee.com/flycash/notification-governance/internal/repository"
	"github.com/gotomicro/ego/core/elog"
	"github.com/sony/sonyflake"
)

const (
	RouteExport = "POST /api/v1/exports"
	FormatZip   = "zip"

	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

type Service interface {
	// Export 只允许监管方与管理员调用，按操作者与路由限流，完成与被限流的请求都写审计记录
	Export(ctx context.Context, actor domain.Actor, scope domain.ExportScope, filter domain.ExportFilter, page domain.Page) (Pack, error)
	ListAuditEvents(ctx context.Context, actor domain.Actor, page domain.Page) ([]domain.ExportAuditEvent, error)
	// PublicKey 未启用签名时返回 ErrSigningDisabled
	PublicKey() (PublicKeyInfo, error)
}

type exportService struct {
	builder     *Builder
	signer      *Signer
	limiter     ratelimit.Limiter
	audits      repository.ExportAuditRepository
	idGenerator *sonyflake.Sonyflake
	now         func() time.Time
	logger      *elog.Component
}

func NewService(builder *Builder, limiter ratelimit.Limiter,
	audits repository.ExportAuditRepository, idGenerator *sonyflake.Sonyflake,
) Service {
	return &exportService{
		builder:     builder,
		signer:      builder.signer,
		limiter:     limiter,
		audits:      audits,
		idGenerator: idGenerator,
		now:         time.Now,
		logger:      elog.DefaultLogger.With(elog.String("component", "export")),
	}
}

func (s *exportService) Export(ctx context.Context, actor domain.Actor, scope domain.ExportScope,
	filter domain.ExportFilter, page domain.Page,
) (Pack, error) {
	if actor.Role != domain.RoleRegulator && !actor.IsAdmin() {
		s.logger.Warn("无权导出",
			elog.String("actor", actor.ID),
			elog.String("role", actor.Role.String()),
			elog.String("violation", errs.Code(errs.ErrActorNotAuthorized)))
		return Pack{}, fmt.Errorf("%w: role=%s", errs.ErrActorNotAuthorized, actor.Role)
	}
	if !scope.IsValid() {
		return Pack{}, fmt.Errorf("%w: scope=%q", errs.ErrInvalidParameter, scope)
	}
	page, err := normalizePage(page)
	if err != nil {
		return Pack{}, err
	}

	decision, err := s.limiter.Limit(ctx, "export:"+actor.ID+":"+RouteExport)
	if err != nil {
		return Pack{}, fmt.Errorf("限流判断失败: %w", err)
	}
	requestedAt := s.now().UTC()
	if !decision.Allowed {
		s.logger.Warn("导出请求被限流",
			elog.String("actor", actor.ID),
			elog.Int("limit", decision.Limit),
			elog.Any("retryAfter", decision.RetryAfter))
		rle := &errs.RateLimitError{Limit: decision.Limit, Window: decision.Window, RetryAfter: decision.RetryAfter}
		// 请求已被拒绝，审计写入失败不改变响应
		if err = s.audit(ctx, actor, scope, requestedAt, domain.ExportOutcomeDeniedRateLimited, Pack{}); err != nil {
			s.logger.Error("写入限流审计失败", elog.String("actor", actor.ID), elog.FieldErr(err))
		}
		return Pack{}, rle
	}

	pack, err := s.builder.Build(ctx, Request{Scope: scope, Filter: filter, Page: page, GeneratedAt: requestedAt})
	if err != nil {
		return Pack{}, err
	}
	if err = s.audit(ctx, actor, scope, requestedAt, domain.ExportOutcomeCompleted, pack); err != nil {
		// 没有审计记录的导出不能交付
		return Pack{}, err
	}
	s.logger.Info("导出完成",
		elog.String("actor", actor.ID),
		elog.String("scope", string(scope)),
		elog.String("manifestHash", pack.ManifestSHA256))
	return pack, nil
}

func (s *exportService) audit(ctx context.Context, actor domain.Actor, scope domain.ExportScope,
	requestedAt time.Time, outcome domain.ExportOutcome, pack Pack,
) error {
	id, err := s.idGenerator.NextID()
	if err != nil {
		return fmt.Errorf("生成审计事件ID失败: %w", err)
	}
	err = s.audits.Create(ctx, domain.ExportAuditEvent{
		EventID:       strconv.FormatUint(id, 10),
		ActorID:       actor.ID,
		ActorRole:     actor.Role,
		RequestedAt:   requestedAt,
		Format:        FormatZip,
		Scope:         scope,
		Route:         RouteExport,
		Outcome:       outcome,
		ManifestHash:  pack.ManifestSHA256,
		CanonicalHash: pack.CanonicalHash,
	})
	if err != nil {
		return fmt.Errorf("写入导出审计失败: %w", err)
	}
	return nil
}

func (s *exportService) ListAuditEvents(ctx context.Context, actor domain.Actor, page domain.Page) ([]domain.ExportAuditEvent, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: role=%s", errs.ErrActorNotAuthorized, actor.Role)
	}
	page, err := normalizePage(page)
	if err != nil {
		return nil, err
	}
	return s.audits.List(ctx, page)
}

func (s *exportService) PublicKey() (PublicKeyInfo, error) {
	if s.signer == nil {
		return PublicKeyInfo{}, ErrSigningDisabled
	}
	return s.signer.PublicKey()
}

func normalizePage(page domain.Page) (domain.Page, error) {
	if page.Offset < 0 || page.Limit < 0 || page.Limit > MaxPageLimit {
		return domain.Page{}, fmt.Errorf("%w: offset=%d limit=%d", errs.ErrInvalidParameter, page.Offset, page.Limit)
	}
	if page.Limit == 0 {
		page.Limit = DefaultPageLimit
	}
	return page, nil
}
