package governance

import (
	"context"
	"fmt"
	"strings"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/errs"
	"gitee.com/flycash/notification-governance/internal/service/taxonomy"
	"github.com/gotomicro/ego/core/elog"
)

// ForbidAutoSendToRegulator 监管方永远不是自动发送的目标，与事件表无关
func ForbidAutoSendToRegulator(role domain.Role) error {
	if role == domain.RoleRegulator {
		return errs.ErrRegulatorAutoSend
	}
	return nil
}

// RequireValidEventCode 事件编码必须已注册
func RequireValidEventCode(registry *taxonomy.Registry, channel domain.Channel, eventCode string) (domain.EventDefinition, error) {
	def, ok := registry.Lookup(channel, eventCode)
	if !ok {
		return domain.EventDefinition{}, fmt.Errorf("%w: channel=%s eventCode=%s", errs.ErrUnknownEventCode, channel, eventCode)
	}
	return def, nil
}

// RequirePermittedRecipient 接收者角色必须在事件允许的角色集合内
func RequirePermittedRecipient(def domain.EventDefinition, role domain.Role) error {
	if !def.AllowsRole(role) {
		return fmt.Errorf("%w: eventCode=%s role=%s", errs.ErrRecipientRoleNotAllowed, def.EventCode, role)
	}
	return nil
}

// RequireCorrelationContract 每个必需的关联键都必须存在且非空
func RequireCorrelationContract(def domain.EventDefinition, correlation map[string]string) error {
	for _, key := range def.RequiredCorrelationKeys {
		if strings.TrimSpace(correlation[key]) == "" {
			return fmt.Errorf("%w: eventCode=%s key=%s", errs.ErrMissingCorrelationKey, def.EventCode, key)
		}
	}
	return nil
}

// Guard 组合全部治理检查
type Guard struct {
	registry  *taxonomy.Registry
	resolvers map[domain.Role]ScopeResolver
	logger    *elog.Component
}

func NewGuard(registry *taxonomy.Registry, resolvers map[domain.Role]ScopeResolver) *Guard {
	return &Guard{
		registry:  registry,
		resolvers: resolvers,
		logger:    elog.DefaultLogger.With(elog.String("component", "governance")),
	}
}

// CheckRequest 治理检查的输入
type CheckRequest struct {
	Channel     domain.Channel
	EventCode   string
	Recipient   domain.Recipient
	Correlation map[string]string
	EntityRefs  map[string]string
	Actor       domain.Actor
}

// RequireRecipientScope 委托给对应角色的 ScopeResolver，校验的是实际投递的全部身份。
// 管理员始终在范围内；非管理员角色没有解析器视为违规
func (g *Guard) RequireRecipientScope(ctx context.Context, recipient domain.Recipient, entityRefs map[string]string) error {
	role := recipient.Role
	if role == domain.RoleAdmin {
		return nil
	}
	resolver, ok := g.resolvers[role]
	if !ok {
		return fmt.Errorf("%w: 角色 %s 没有范围解析器", errs.ErrRecipientScopeMismatch, role)
	}
	owner, err := resolver.IsOwner(ctx, role, recipient, entityRefs)
	if err != nil {
		return fmt.Errorf("范围解析失败: %w", err)
	}
	if !owner {
		return fmt.Errorf("%w: role=%s", errs.ErrRecipientScopeMismatch, role)
	}
	return nil
}

// Check 依次执行全部检查，监管方检查必须最先执行。
// 通过时返回事件定义
func (g *Guard) Check(ctx context.Context, req CheckRequest) (domain.EventDefinition, error) {
	def, err := g.check(ctx, req)
	if err != nil {
		g.logViolation(req, err)
		return domain.EventDefinition{}, err
	}
	return def, nil
}

func (g *Guard) check(ctx context.Context, req CheckRequest) (domain.EventDefinition, error) {
	if err := ForbidAutoSendToRegulator(req.Recipient.Role); err != nil {
		return domain.EventDefinition{}, err
	}
	def, err := RequireValidEventCode(g.registry, req.Channel, req.EventCode)
	if err != nil {
		return domain.EventDefinition{}, err
	}
	if err = RequirePermittedRecipient(def, req.Recipient.Role); err != nil {
		return domain.EventDefinition{}, err
	}
	if err = RequireCorrelationContract(def, req.Correlation); err != nil {
		return domain.EventDefinition{}, err
	}
	refs := mergeRefs(req.Correlation, req.EntityRefs)
	if err = g.RequireRecipientScope(ctx, req.Recipient, refs); err != nil {
		return domain.EventDefinition{}, err
	}
	return def, nil
}

func (g *Guard) logViolation(req CheckRequest, err error) {
	fields := []elog.Field{
		elog.String("channel", req.Channel.String()),
		elog.String("eventCode", req.EventCode),
		elog.String("recipientRole", req.Recipient.Role.String()),
		elog.String("actorId", req.Actor.ID),
		elog.String("actorRole", req.Actor.Role.String()),
		elog.String("violation", errs.Code(err)),
		elog.FieldErr(err),
	}
	// 解析器自身出错属于故障，不是违规
	if errs.Code(err) == "INTERNAL" {
		g.logger.Error("治理检查执行失败", fields...)
		return
	}
	g.logger.Warn("治理规则违规", fields...)
}

// 关联键同样可以作为范围判断的依据，显式传入的 entityRefs 优先
func mergeRefs(correlation, entityRefs map[string]string) map[string]string {
	res := make(map[string]string, len(correlation)+len(entityRefs))
	for k, v := range correlation {
		res[k] = v
	}
	for k, v := range entityRefs {
		res[k] = v
	}
	return res
}
