package binding

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/errs"
	"gitee.com/flycash/notification-governance/internal/pkg/hash"
	"gitee.com/flycash/notification-governance/internal/repository"
	"github.com/gotomicro/ego/core/elog"
)

const (
	artifactClass = "channel_binding"
	tokenBytes    = 32

	DefaultTokenTTL = 15 * time.Minute
)

type Config struct {
	TenantID string
	TokenTTL time.Duration
}

// StartRequest 发起绑定
type StartRequest struct {
	EntityType   string
	EntityID     string
	ChannelAppID string
}

// StartResult 明文令牌只在这里返回一次
type StartResult struct {
	Binding   domain.ChannelBinding
	Token     string
	ExpiresAt time.Time
}

// VerifyRequest 渠道平台回传的验证请求
type VerifyRequest struct {
	BindingID     string
	Token         string
	ChannelUserID string
}

// Service 渠道绑定生命周期
type Service interface {
	// Start 同一实体与同一渠道应用重复发起是幂等的，总是签发新令牌
	Start(ctx context.Context, actor domain.Actor, req StartRequest) (StartResult, error)
	Verify(ctx context.Context, req VerifyRequest) (domain.ChannelBinding, error)
	Suspend(ctx context.Context, actor domain.Actor, bindingID, reason string) (domain.ChannelBinding, error)
	Revoke(ctx context.Context, actor domain.Actor, bindingID, reason string) (domain.ChannelBinding, error)
	// Resume 把暂停的绑定恢复为已验证
	Resume(ctx context.Context, actor domain.Actor, bindingID, reason string) (domain.ChannelBinding, error)
	Get(ctx context.Context, bindingID string) (domain.ChannelBinding, error)
	// ResolveDispatchable 只返回 VERIFIED 的绑定
	ResolveDispatchable(ctx context.Context, entityType, entityID, channelAppID string) (domain.ChannelBinding, error)
}

type bindingService struct {
	repo   repository.ChannelBindingRepository
	cfg    Config
	now    func() time.Time
	logger *elog.Component
}

func NewService(repo repository.ChannelBindingRepository, cfg Config) Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	return &bindingService{
		repo:   repo,
		cfg:    cfg,
		now:    time.Now,
		logger: elog.DefaultLogger.With(elog.String("component", "binding")),
	}
}

// BindingID 由租户、实体与渠道应用确定
func BindingID(tenantID, entityType, entityID, channelAppID string) string {
	contract := hash.MustCanonicalHash(map[string]string{
		"entityType":   entityType,
		"entityId":     entityID,
		"channelAppId": channelAppID,
	})
	return hash.DeterministicID(artifactClass, tenantID, []string{entityType, entityID, channelAppID}, contract)
}

func (s *bindingService) Start(ctx context.Context, actor domain.Actor, req StartRequest) (StartResult, error) {
	if strings.TrimSpace(req.EntityType) == "" || strings.TrimSpace(req.EntityID) == "" || strings.TrimSpace(req.ChannelAppID) == "" {
		return StartResult{}, fmt.Errorf("%w: entityType, entityId 与 channelAppId 均不能为空", errs.ErrInvalidParameter)
	}
	if !actor.Role.IsValid() || actor.ID == "" {
		return StartResult{}, fmt.Errorf("%w: 操作者非法", errs.ErrActorNotAuthorized)
	}
	// 只有身份本人或管理员可以发起绑定
	if !actor.IsAdmin() && !actor.Represents(req.EntityType, req.EntityID) {
		s.logger.Warn("操作者不代表该身份，拒绝发起绑定",
			elog.String("entity", req.EntityType+"/"+req.EntityID),
			elog.String("actor", actor.ID),
			elog.String("role", actor.Role.String()),
			elog.String("violation", errs.Code(errs.ErrActorNotAuthorized)))
		return StartResult{}, fmt.Errorf("%w: actor=%s entity=%s/%s", errs.ErrActorNotAuthorized, actor.ID, req.EntityType, req.EntityID)
	}
	id := BindingID(s.cfg.TenantID, req.EntityType, req.EntityID, req.ChannelAppID)

	existing, err := s.repo.FindByID(ctx, id)
	switch {
	case err == nil:
		return s.reissue(ctx, actor, existing)
	case !errors.Is(err, errs.ErrNotFound):
		return StartResult{}, err
	}

	token, tokenHash, err := newToken()
	if err != nil {
		return StartResult{}, err
	}
	now := s.now().UTC()
	b := domain.ChannelBinding{
		BindingID:                  id,
		TenantID:                   s.cfg.TenantID,
		EntityType:                 req.EntityType,
		EntityID:                   req.EntityID,
		ChannelAppID:               req.ChannelAppID,
		Status:                     domain.BindingStatusPending,
		VerificationTokenHash:      tokenHash,
		VerificationTokenExpiresAt: now.Add(s.cfg.TokenTTL),
		Version:                    1,
		Ctime:                      now,
		Utime:                      now,
	}
	b.AppendAudit(s.audit(actor, domain.BindingActionStarted, "", now))
	err = s.repo.Create(ctx, b)
	if errors.Is(err, errs.ErrDuplicateKey) {
		// 并发发起，另一方已经插入
		existing, err = s.repo.FindByID(ctx, id)
		if err != nil {
			return StartResult{}, err
		}
		return s.reissue(ctx, actor, existing)
	}
	if err != nil {
		return StartResult{}, err
	}
	s.logger.Info("发起渠道绑定", elog.String("bindingId", id), elog.String("actor", actor.ID))
	return StartResult{Binding: b, Token: token, ExpiresAt: b.VerificationTokenExpiresAt}, nil
}

// reissue 已存在的绑定重新签发令牌。VERIFIED 保持原状态与渠道账号，
// REVOKED 显式回到 PENDING 并清空渠道账号
func (s *bindingService) reissue(ctx context.Context, actor domain.Actor, b domain.ChannelBinding) (StartResult, error) {
	action := domain.BindingActionTokenReissued
	switch b.Status {
	case domain.BindingStatusPending, domain.BindingStatusVerified:
	case domain.BindingStatusRevoked:
		action = domain.BindingActionRebindStarted
	default:
		return StartResult{}, fmt.Errorf("%w: bindingId=%s status=%s", errs.ErrBindingNotWritable, b.BindingID, b.Status)
	}

	token, tokenHash, err := newToken()
	if err != nil {
		return StartResult{}, err
	}
	now := s.now().UTC()
	prev := b.Status
	if prev == domain.BindingStatusRevoked {
		b.Status = domain.BindingStatusPending
		b.ChannelUserID = ""
	}
	b.VerificationTokenHash = tokenHash
	b.VerificationTokenExpiresAt = now.Add(s.cfg.TokenTTL)
	b.AppendAudit(s.audit(actor, action, "", now))
	if err = s.save(ctx, &b, prev, now); err != nil {
		return StartResult{}, err
	}
	s.logger.Info("重新签发绑定令牌",
		elog.String("bindingId", b.BindingID),
		elog.String("action", string(action)),
		elog.String("actor", actor.ID))
	return StartResult{Binding: b, Token: token, ExpiresAt: b.VerificationTokenExpiresAt}, nil
}

func (s *bindingService) Verify(ctx context.Context, req VerifyRequest) (domain.ChannelBinding, error) {
	if strings.TrimSpace(req.ChannelUserID) == "" {
		return domain.ChannelBinding{}, fmt.Errorf("%w: channelUserId 不能为空", errs.ErrInvalidParameter)
	}
	b, err := s.find(ctx, req.BindingID)
	if err != nil {
		return domain.ChannelBinding{}, err
	}
	if !b.Writable() {
		return domain.ChannelBinding{}, fmt.Errorf("%w: bindingId=%s status=%s", errs.ErrBindingNotWritable, b.BindingID, b.Status)
	}
	// 令牌已被消费同样视为无效
	if !b.HasToken() || !tokenMatches(req.Token, b.VerificationTokenHash) {
		s.logger.Warn("绑定令牌不匹配", elog.String("bindingId", b.BindingID))
		return domain.ChannelBinding{}, fmt.Errorf("%w: bindingId=%s", errs.ErrBindingTokenInvalid, b.BindingID)
	}
	now := s.now().UTC()
	if !now.Before(b.VerificationTokenExpiresAt) {
		return domain.ChannelBinding{}, fmt.Errorf("%w: bindingId=%s", errs.ErrBindingTokenExpired, b.BindingID)
	}

	if b.ChannelUserID != "" && b.ChannelUserID != req.ChannelUserID {
		s.logger.Warn("验证请求试图替换已绑定的渠道账号",
			elog.String("bindingId", b.BindingID),
			elog.String("violation", errs.Code(errs.ErrBindingChannelUserConflict)))
		return domain.ChannelBinding{}, fmt.Errorf("%w: bindingId=%s", errs.ErrBindingChannelUserConflict, b.BindingID)
	}

	prev := b.Status
	b.Status = domain.BindingStatusVerified
	b.ChannelUserID = req.ChannelUserID
	b.VerificationTokenHash = ""
	b.VerificationTokenExpiresAt = time.Time{}
	b.AppendAudit(domain.BindingAuditEntry{
		ActorID: req.ChannelUserID,
		Action:  domain.BindingActionVerified,
		At:      now,
	})
	if err = s.save(ctx, &b, prev, now); err != nil {
		return domain.ChannelBinding{}, err
	}
	s.logger.Info("渠道绑定验证成功", elog.String("bindingId", b.BindingID))
	return b, nil
}

func (s *bindingService) Suspend(ctx context.Context, actor domain.Actor, bindingID, reason string) (domain.ChannelBinding, error) {
	return s.transition(ctx, actor, bindingID, reason, domain.BindingActionSuspended,
		func(b *domain.ChannelBinding) bool {
			if !b.Writable() {
				return false
			}
			b.Status = domain.BindingStatusSuspended
			return true
		})
}

func (s *bindingService) Revoke(ctx context.Context, actor domain.Actor, bindingID, reason string) (domain.ChannelBinding, error) {
	return s.transition(ctx, actor, bindingID, reason, domain.BindingActionRevoked,
		func(b *domain.ChannelBinding) bool {
			if b.Status == domain.BindingStatusRevoked {
				return false
			}
			b.Status = domain.BindingStatusRevoked
			b.VerificationTokenHash = ""
			b.VerificationTokenExpiresAt = time.Time{}
			return true
		})
}

func (s *bindingService) Resume(ctx context.Context, actor domain.Actor, bindingID, reason string) (domain.ChannelBinding, error) {
	return s.transition(ctx, actor, bindingID, reason, domain.BindingActionResumed,
		func(b *domain.ChannelBinding) bool {
			// 从未验证过的绑定不能直接恢复为已验证
			if b.Status != domain.BindingStatusSuspended || b.ChannelUserID == "" {
				return false
			}
			b.Status = domain.BindingStatusVerified
			return true
		})
}

// transition 管理员发起的状态变更
func (s *bindingService) transition(ctx context.Context, actor domain.Actor, bindingID, reason string,
	action domain.BindingAction, apply func(b *domain.ChannelBinding) bool,
) (domain.ChannelBinding, error) {
	if !actor.IsAdmin() {
		s.logger.Warn("非管理员尝试变更绑定状态",
			elog.String("bindingId", bindingID),
			elog.String("actor", actor.ID),
			elog.String("role", actor.Role.String()),
			elog.String("violation", errs.Code(errs.ErrActorNotAuthorized)))
		return domain.ChannelBinding{}, fmt.Errorf("%w: role=%s", errs.ErrActorNotAuthorized, actor.Role)
	}
	if strings.TrimSpace(reason) == "" {
		return domain.ChannelBinding{}, fmt.Errorf("%w: reason 不能为空", errs.ErrInvalidParameter)
	}
	b, err := s.find(ctx, bindingID)
	if err != nil {
		return domain.ChannelBinding{}, err
	}
	prev := b.Status
	if !apply(&b) {
		return domain.ChannelBinding{}, fmt.Errorf("%w: bindingId=%s status=%s action=%s",
			errs.ErrBindingInvalidState, bindingID, prev, action)
	}
	now := s.now().UTC()
	b.AppendAudit(s.audit(actor, action, reason, now))
	if err = s.save(ctx, &b, prev, now); err != nil {
		return domain.ChannelBinding{}, err
	}
	s.logger.Info("绑定状态变更",
		elog.String("bindingId", bindingID),
		elog.String("from", prev.String()),
		elog.String("to", b.Status.String()),
		elog.String("actor", actor.ID))
	return b, nil
}

func (s *bindingService) Get(ctx context.Context, bindingID string) (domain.ChannelBinding, error) {
	return s.find(ctx, bindingID)
}

func (s *bindingService) ResolveDispatchable(ctx context.Context, entityType, entityID, channelAppID string) (domain.ChannelBinding, error) {
	id := BindingID(s.cfg.TenantID, entityType, entityID, channelAppID)
	b, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return domain.ChannelBinding{}, fmt.Errorf("%w: entity=%s/%s", errs.ErrBindingMissing, entityType, entityID)
	}
	if err != nil {
		return domain.ChannelBinding{}, err
	}
	if !b.Dispatchable() {
		return domain.ChannelBinding{}, fmt.Errorf("%w: bindingId=%s status=%s", errs.ErrBindingNotVerified, b.BindingID, b.Status)
	}
	return b, nil
}

func (s *bindingService) find(ctx context.Context, bindingID string) (domain.ChannelBinding, error) {
	b, err := s.repo.FindByID(ctx, bindingID)
	if errors.Is(err, errs.ErrNotFound) {
		return domain.ChannelBinding{}, fmt.Errorf("%w: bindingId=%s", errs.ErrBindingNotFound, bindingID)
	}
	return b, err
}

// save 以读取时的状态和版本为条件写回，成功后版本号加一
func (s *bindingService) save(ctx context.Context, b *domain.ChannelBinding, prev domain.BindingStatus, now time.Time) error {
	b.Utime = now
	if err := s.repo.Update(ctx, *b, prev); err != nil {
		return err
	}
	b.Version++
	return nil
}

func (s *bindingService) audit(actor domain.Actor, action domain.BindingAction, reason string, at time.Time) domain.BindingAuditEntry {
	return domain.BindingAuditEntry{
		ActorID: actor.ID,
		Role:    actor.Role,
		Action:  action,
		Reason:  reason,
		At:      at,
	}
}

func newToken() (token, tokenHash string, err error) {
	buf := make([]byte, tokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("生成验证令牌失败: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(buf)
	return token, hash.SHA256Hex([]byte(token)), nil
}

func tokenMatches(presented, storedHash string) bool {
	got := hash.SHA256Hex([]byte(presented))
	return subtle.ConstantTimeCompare([]byte(got), []byte(storedHash)) == 1
}
