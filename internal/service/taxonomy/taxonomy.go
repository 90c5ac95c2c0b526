package taxonomy

import (
	"sort"

	"gitee.com/flycash/notification-governance/internal/domain"
)

// 新增事件只需要在这里加一行数据

var imEvents = []domain.EventDefinition{
	{
		EventCode:               "ORDER_CREATED",
		Classification:          domain.ClassificationOperational,
		AllowedRecipientRoles:   []domain.Role{domain.RoleBuyer, domain.RoleSupplier, domain.RoleAdmin},
		RequiredCorrelationKeys: []string{"orderId"},
		RequiredPlaceholders:    []string{"orderId"},
	},
	{
		EventCode:               "ORDER_STATUS_CHANGED",
		Classification:          domain.ClassificationOperational,
		AllowedRecipientRoles:   []domain.Role{domain.RoleBuyer, domain.RoleSupplier},
		RequiredCorrelationKeys: []string{"orderId"},
		RequiredPlaceholders:    []string{"orderId", "status"},
	},
	{
		EventCode:               "COMPLIANCE_CASE_OPENED",
		Classification:          domain.ClassificationCompliance,
		AllowedRecipientRoles:   []domain.Role{domain.RoleSupplier, domain.RoleServicePartner, domain.RoleAdmin},
		RequiredCorrelationKeys: []string{"caseId"},
		RequiredPlaceholders:    []string{"caseId"},
	},
	{
		EventCode:               "SHIPMENT_DISPATCHED",
		Classification:          domain.ClassificationFreight,
		AllowedRecipientRoles:   []domain.Role{domain.RoleBuyer, domain.RoleSupplier, domain.RoleServicePartner},
		RequiredCorrelationKeys: []string{"orderId", "shipmentId"},
		RequiredPlaceholders:    []string{"eta", "shipmentId"},
	},
	{
		EventCode:               "PAYMENT_RECEIVED",
		Classification:          domain.ClassificationPayment,
		AllowedRecipientRoles:   []domain.Role{domain.RoleSupplier, domain.RoleAdmin},
		RequiredCorrelationKeys: []string{"orderId", "paymentId"},
		RequiredPlaceholders:    []string{"amount", "orderId"},
	},
	{
		EventCode:               "ACCOUNT_BINDING_CONFIRMED",
		Classification:          domain.ClassificationAccount,
		AllowedRecipientRoles:   []domain.Role{domain.RoleBuyer, domain.RoleSupplier, domain.RoleServicePartner, domain.RoleAdmin},
		RequiredCorrelationKeys: []string{},
		RequiredPlaceholders:    []string{"displayName"},
	},
}

var emailEvents = []domain.EventDefinition{
	{
		EventCode:               "ORDER_CREATED",
		Classification:          domain.ClassificationInfo,
		AllowedRecipientRoles:   []domain.Role{domain.RoleBuyer, domain.RoleSupplier},
		RequiredCorrelationKeys: []string{"orderId"},
		RequiredPlaceholders:    []string{"orderId", "orderUrl"},
	},
	{
		EventCode:               "RFQ_RESPONSE_REQUIRED",
		Classification:          domain.ClassificationAction,
		AllowedRecipientRoles:   []domain.Role{domain.RoleSupplier},
		RequiredCorrelationKeys: []string{"rfqId"},
		RequiredPlaceholders:    []string{"deadline", "rfqId", "rfqUrl"},
	},
	{
		EventCode:               "PAYMENT_FAILED",
		Classification:          domain.ClassificationAction,
		AllowedRecipientRoles:   []domain.Role{domain.RoleBuyer},
		RequiredCorrelationKeys: []string{"orderId", "paymentId"},
		RequiredPlaceholders:    []string{"amount", "orderId"},
	},
	{
		EventCode:               "TERMS_UPDATED",
		Classification:          domain.ClassificationLegal,
		AllowedRecipientRoles:   []domain.Role{domain.RoleBuyer, domain.RoleSupplier, domain.RoleServicePartner},
		RequiredCorrelationKeys: []string{},
		RequiredPlaceholders:    []string{"effectiveDate", "termsUrl"},
	},
	{
		EventCode:               "COMPLIANCE_DOCUMENT_REQUESTED",
		Classification:          domain.ClassificationRegulatory,
		AllowedRecipientRoles:   []domain.Role{domain.RoleSupplier, domain.RoleServicePartner},
		RequiredCorrelationKeys: []string{"caseId"},
		RequiredPlaceholders:    []string{"caseId", "documentList", "uploadUrl"},
	},
}

// Registry 静态事件注册表
type Registry struct {
	tables map[domain.Channel]map[string]domain.EventDefinition
}

// NewRegistry 使用内置的事件表
func NewRegistry() *Registry {
	return NewRegistryWith(map[domain.Channel][]domain.EventDefinition{
		domain.ChannelIM:    imEvents,
		domain.ChannelEmail: emailEvents,
	})
}

// NewRegistryWith 使用自定义的事件表，主要用于测试
func NewRegistryWith(defs map[domain.Channel][]domain.EventDefinition) *Registry {
	tables := make(map[domain.Channel]map[string]domain.EventDefinition, len(defs))
	for ch, list := range defs {
		table := make(map[string]domain.EventDefinition, len(list))
		for _, d := range list {
			d = d.Clone()
			d.Channel = ch
			table[d.EventCode] = d
		}
		tables[ch] = table
	}
	return &Registry{tables: tables}
}

// Lookup 返回的是副本
func (r *Registry) Lookup(channel domain.Channel, eventCode string) (domain.EventDefinition, bool) {
	d, ok := r.tables[channel][eventCode]
	if !ok {
		return domain.EventDefinition{}, false
	}
	return d.Clone(), true
}

// Codes 按字典序返回渠道下的全部事件编码
func (r *Registry) Codes(channel domain.Channel) []string {
	table := r.tables[channel]
	codes := make([]string, 0, len(table))
	for code := range table {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
