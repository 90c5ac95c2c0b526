package domain

import "time"

// ExportScope 导出范围
type ExportScope string

const (
	ExportScopeAll        ExportScope = "ALL"
	ExportScopeBindings   ExportScope = "BINDINGS"
	ExportScopeDispatches ExportScope = "DISPATCHES"
)

func (s ExportScope) IsValid() bool {
	return s == ExportScopeAll || s == ExportScopeBindings || s == ExportScopeDispatches
}

func (s ExportScope) IncludesBindings() bool {
	return s == ExportScopeAll || s == ExportScopeBindings
}

func (s ExportScope) IncludesDispatches() bool {
	return s == ExportScopeAll || s == ExportScopeDispatches
}

// ExportFilter 导出过滤条件，零值表示不过滤
type ExportFilter struct {
	EventCode string
	Channel   Channel
	From      time.Time
	To        time.Time
}

// Page 分页
type Page struct {
	Offset int
	Limit  int
}

// ExportOutcome 导出请求的结果
type ExportOutcome string

const (
	ExportOutcomeCompleted         ExportOutcome = "COMPLETED"
	ExportOutcomeDeniedRateLimited ExportOutcome = "DENIED_RATE_LIMITED"
)

// ExportAuditEvent 每次导出请求对应一条审计记录，被限流的请求没有哈希
type ExportAuditEvent struct {
	EventID       string
	ActorID       string
	ActorRole     Role
	RequestedAt   time.Time // 服务端时间
	Format        string
	Scope         ExportScope
	Route         string
	Outcome       ExportOutcome
	ManifestHash  string
	CanonicalHash string
}
