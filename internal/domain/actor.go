package domain

// Role 市场参与方角色
type Role string

const (
	RoleBuyer          Role = "buyer"
	RoleSupplier       Role = "supplier"
	RoleServicePartner Role = "service_partner"
	RoleAdmin          Role = "admin"
	RoleRegulator      Role = "regulator"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) IsValid() bool {
	switch r {
	case RoleBuyer, RoleSupplier, RoleServicePartner, RoleAdmin, RoleRegulator:
		return true
	default:
		return false
	}
}

// Actor 已经过身份认证的操作者，由接入层解析后传入。
// EntityType/EntityID 是操作者所代表的市场身份，可以为空
type Actor struct {
	ID         string
	Role       Role
	EntityType string
	EntityID   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Represents 操作者是否代表该市场身份
func (a Actor) Represents(entityType, entityID string) bool {
	return a.EntityID != "" && a.EntityType == entityType && a.EntityID == entityID
}

// System 系统自身触发的操作者
func System() Actor {
	return Actor{ID: "system", Role: RoleAdmin}
}
