package domain

import "slices"

// Classification 事件分类。IM 渠道与邮件渠道使用不同的分类集合
type Classification string

const (
	ClassificationOperational Classification = "OPERATIONAL"
	ClassificationCompliance  Classification = "COMPLIANCE"
	ClassificationFreight     Classification = "FREIGHT"
	ClassificationPayment     Classification = "PAYMENT"
	ClassificationAccount     Classification = "ACCOUNT"

	ClassificationInfo       Classification = "INFO"
	ClassificationAction     Classification = "ACTION"
	ClassificationLegal      Classification = "LEGAL"
	ClassificationRegulatory Classification = "REGULATORY"
)

// EventDefinition 事件定义，进程启动时加载，之后不可变
type EventDefinition struct {
	EventCode               string
	Channel                 Channel
	Classification          Classification
	AllowedRecipientRoles   []Role
	RequiredCorrelationKeys []string // 有序
	RequiredPlaceholders    []string
}

func (d EventDefinition) AllowsRole(role Role) bool {
	return slices.Contains(d.AllowedRecipientRoles, role)
}

// Clone 返回深拷贝，防止调用方修改注册表
func (d EventDefinition) Clone() EventDefinition {
	d.AllowedRecipientRoles = slices.Clone(d.AllowedRecipientRoles)
	d.RequiredCorrelationKeys = slices.Clone(d.RequiredCorrelationKeys)
	d.RequiredPlaceholders = slices.Clone(d.RequiredPlaceholders)
	return d
}
