package governance

import (
	"context"
	"strings"

	"gitee.com/flycash/notification-governance/internal/domain"
)

// ScopeResolver 判断接收者是否确实是业务实体的归属方，由业务域提供。
// recipient 携带实际投递的身份（邮箱或 IM 绑定所属的实体），解析器需要一并校验
//
//go:generate mockgen -source=./scope.go -destination=./mocks/scope.mock.go -package=governancemocks ScopeResolver
type ScopeResolver interface {
	IsOwner(ctx context.Context, role domain.Role, recipient domain.Recipient, entityRefs map[string]string) (bool, error)
}

// ScopeResolverFunc 函数适配
type ScopeResolverFunc func(ctx context.Context, role domain.Role, recipient domain.Recipient, entityRefs map[string]string) (bool, error)

func (f ScopeResolverFunc) IsOwner(ctx context.Context, role domain.Role, recipient domain.Recipient, entityRefs map[string]string) (bool, error) {
	return f(ctx, role, recipient, entityRefs)
}

// RefMatchResolver 要求 entityRefs 中的引用与接收者的每个身份一致。
// 以 Prefix=buyer 为例：buyerId 对应用户ID，buyerEmail 对应邮箱，
// buyerEntityType/buyerEntityId 对应 IM 绑定所属的实体。
// 业务域没有提供解析器时作为默认实现
type RefMatchResolver struct {
	Prefix string
}

func (r RefMatchResolver) IsOwner(_ context.Context, _ domain.Role, recipient domain.Recipient, entityRefs map[string]string) (bool, error) {
	if !r.match(entityRefs, "Id", recipient.UserID) {
		return false, nil
	}
	if recipient.Email != "" &&
		!strings.EqualFold(strings.TrimSpace(entityRefs[r.Prefix+"Email"]), strings.TrimSpace(recipient.Email)) {
		return false, nil
	}
	if recipient.EntityType != "" || recipient.EntityID != "" {
		return r.match(entityRefs, "EntityType", recipient.EntityType) &&
			r.match(entityRefs, "EntityId", recipient.EntityID), nil
	}
	return true, nil
}

func (r RefMatchResolver) match(entityRefs map[string]string, suffix, want string) bool {
	v, ok := entityRefs[r.Prefix+suffix]
	return ok && v != "" && v == want
}

// DefaultResolvers 每个非管理员角色按 <role>Id 等引用匹配
func DefaultResolvers() map[domain.Role]ScopeResolver {
	return map[domain.Role]ScopeResolver{
		domain.RoleBuyer:          RefMatchResolver{Prefix: "buyer"},
		domain.RoleSupplier:       RefMatchResolver{Prefix: "supplier"},
		domain.RoleServicePartner: RefMatchResolver{Prefix: "servicePartner"},
	}
}
