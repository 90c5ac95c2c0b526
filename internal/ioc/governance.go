package ioc

import (
	"gitee.com/flycash/notification-governance/internal/service/governance"
	"gitee.com/flycash/notification-governance/internal/service/taxonomy"
)

// InitGuard 业务域没有接入自己的解析器前，按 entityRefs 中的 <role>Id 判断归属
func InitGuard(tax *taxonomy.Registry) *governance.Guard {
	return governance.NewGuard(tax, governance.DefaultResolvers())
}
