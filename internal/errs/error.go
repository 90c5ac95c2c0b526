package errs

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// 错误分类。具体错误都包裹了所属分类，调用方既可以判断具体错误，也可以只判断分类。
var (
	ErrInvalidParameter    = errors.New("参数错误")
	ErrGovernanceViolation = errors.New("治理规则违规")
	ErrTemplateContract    = errors.New("模板契约违规")
	ErrPolicyViolation     = errors.New("外发内容策略违规")
	ErrBindingState        = errors.New("渠道绑定状态错误")
	ErrDispatchState       = errors.New("发送记录状态错误")
	ErrRateLimited         = errors.New("请求过于频繁")
	ErrNotFound            = errors.New("记录不存在")
	ErrDuplicateKey        = errors.New("唯一索引冲突")
	ErrChannelDisabled     = errors.New("渠道未启用")
)

// 治理规则
var (
	ErrUnknownEventCode        = fmt.Errorf("%w: 未知事件编码", ErrGovernanceViolation)
	ErrRecipientRoleNotAllowed = fmt.Errorf("%w: 接收者角色不允许", ErrGovernanceViolation)
	ErrRegulatorAutoSend       = fmt.Errorf("%w: 禁止向监管方自动发送", ErrGovernanceViolation)
	ErrMissingCorrelationKey   = fmt.Errorf("%w: 缺少关联键", ErrGovernanceViolation)
	ErrRecipientScopeMismatch  = fmt.Errorf("%w: 接收者不在业务范围内", ErrGovernanceViolation)
	ErrActorNotAuthorized      = fmt.Errorf("%w: 操作者无权限", ErrGovernanceViolation)
)

// 模板契约
var (
	ErrPlaceholderMismatch  = fmt.Errorf("%w: 模板占位符与声明不一致", ErrTemplateContract)
	ErrMissingPlaceholder   = fmt.Errorf("%w: 缺少必填占位符的值", ErrTemplateContract)
	ErrUnknownPlaceholder   = fmt.Errorf("%w: 提供了未声明的占位符", ErrTemplateContract)
	ErrTemplateNotFound     = fmt.Errorf("%w: 模板不存在", ErrTemplateContract)
	ErrTemplateNotUsable    = fmt.Errorf("%w: 模板状态不可用", ErrTemplateContract)
	ErrInvalidTemplateEntry = fmt.Errorf("%w: 模板定义非法", ErrTemplateContract)
)

// 外发内容策略
var (
	ErrUnsupportedLanguage = fmt.Errorf("%w: 不支持的语言", ErrPolicyViolation)
	ErrPayloadTooLong      = fmt.Errorf("%w: 内容超长", ErrPolicyViolation)
	ErrForbiddenContent    = fmt.Errorf("%w: 内容包含敏感信息", ErrPolicyViolation)
	ErrDisallowedLink      = fmt.Errorf("%w: 链接不在白名单内", ErrPolicyViolation)
)

// 渠道绑定
var (
	ErrBindingNotFound         = fmt.Errorf("%w: 绑定不存在", ErrBindingState)
	ErrBindingNotWritable      = fmt.Errorf("%w: 绑定已暂停或已撤销", ErrBindingState)
	ErrBindingTokenInvalid     = fmt.Errorf("%w: 验证令牌无效", ErrBindingState)
	ErrBindingTokenExpired     = fmt.Errorf("%w: 验证令牌已过期", ErrBindingState)
	ErrBindingMissing          = fmt.Errorf("%w: 接收者没有渠道绑定", ErrBindingState)
	ErrBindingNotVerified      = fmt.Errorf("%w: 渠道绑定未验证", ErrBindingState)
	ErrBindingConcurrentUpdate = fmt.Errorf("%w: 绑定已被并发修改", ErrBindingState)
	ErrBindingInvalidState     = fmt.Errorf("%w: 当前状态不允许该操作", ErrBindingState)
	// 已绑定的渠道账号只能经由撤销再重新绑定来更换
	ErrBindingChannelUserConflict = fmt.Errorf("%w: 绑定已关联其他渠道账号", ErrBindingState)
)

// 发送记录
var (
	ErrDispatchNotFound     = fmt.Errorf("%w: 发送记录不存在", ErrDispatchState)
	ErrDispatchNotRetryable = fmt.Errorf("%w: 只有失败的发送记录可以重试", ErrDispatchState)
	ErrInvalidCallback      = fmt.Errorf("%w: 回调签名或内容非法", ErrDispatchState)
)

// RateLimitError 限流错误，带上限、窗口以及建议的重试间隔
type RateLimitError struct {
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: limit=%d window=%s retryAfter=%s", ErrRateLimited, e.Limit, e.Window, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

type codeEntry struct {
	err    error
	code   string
	status int
}

// 顺序很重要：先匹配具体错误，再匹配分类
var codeTable = []codeEntry{
	{ErrUnknownEventCode, "UNKNOWN_EVENT_CODE", http.StatusUnprocessableEntity},
	{ErrRecipientRoleNotAllowed, "RECIPIENT_ROLE_NOT_ALLOWED", http.StatusForbidden},
	{ErrRegulatorAutoSend, "REGULATOR_AUTO_SEND_FORBIDDEN", http.StatusForbidden},
	{ErrMissingCorrelationKey, "MISSING_CORRELATION_KEY", http.StatusUnprocessableEntity},
	{ErrRecipientScopeMismatch, "RECIPIENT_SCOPE_MISMATCH", http.StatusForbidden},
	{ErrActorNotAuthorized, "ACTOR_NOT_AUTHORIZED", http.StatusForbidden},

	{ErrPlaceholderMismatch, "PLACEHOLDER_MISMATCH", http.StatusUnprocessableEntity},
	{ErrMissingPlaceholder, "MISSING_PLACEHOLDER", http.StatusUnprocessableEntity},
	{ErrUnknownPlaceholder, "UNKNOWN_PLACEHOLDER", http.StatusUnprocessableEntity},
	{ErrTemplateNotFound, "TEMPLATE_NOT_FOUND", http.StatusNotFound},
	{ErrTemplateNotUsable, "TEMPLATE_NOT_USABLE", http.StatusConflict},
	{ErrInvalidTemplateEntry, "INVALID_TEMPLATE_ENTRY", http.StatusUnprocessableEntity},

	{ErrUnsupportedLanguage, "UNSUPPORTED_LANGUAGE", http.StatusUnprocessableEntity},
	{ErrPayloadTooLong, "PAYLOAD_TOO_LONG", http.StatusUnprocessableEntity},
	{ErrForbiddenContent, "FORBIDDEN_CONTENT", http.StatusUnprocessableEntity},
	{ErrDisallowedLink, "DISALLOWED_LINK", http.StatusUnprocessableEntity},

	{ErrBindingNotFound, "BINDING_NOT_FOUND", http.StatusNotFound},
	{ErrBindingNotWritable, "BINDING_NOT_WRITABLE", http.StatusConflict},
	{ErrBindingTokenInvalid, "BINDING_TOKEN_INVALID", http.StatusForbidden},
	{ErrBindingTokenExpired, "BINDING_TOKEN_EXPIRED", http.StatusGone},
	{ErrBindingMissing, "BINDING_MISSING", http.StatusNotFound},
	{ErrBindingNotVerified, "BINDING_NOT_VERIFIED", http.StatusConflict},
	{ErrBindingConcurrentUpdate, "BINDING_CONCURRENT_UPDATE", http.StatusConflict},
	{ErrBindingInvalidState, "BINDING_INVALID_STATE", http.StatusConflict},
	{ErrBindingChannelUserConflict, "BINDING_CHANNEL_USER_CONFLICT", http.StatusConflict},

	{ErrDispatchNotFound, "DISPATCH_NOT_FOUND", http.StatusNotFound},
	{ErrDispatchNotRetryable, "DISPATCH_NOT_RETRYABLE", http.StatusConflict},
	{ErrInvalidCallback, "INVALID_CALLBACK", http.StatusUnauthorized},

	{ErrGovernanceViolation, "GOVERNANCE_VIOLATION", http.StatusForbidden},
	{ErrTemplateContract, "TEMPLATE_CONTRACT_VIOLATION", http.StatusUnprocessableEntity},
	{ErrPolicyViolation, "POLICY_VIOLATION", http.StatusUnprocessableEntity},
	{ErrBindingState, "BINDING_STATE_ERROR", http.StatusConflict},
	{ErrDispatchState, "DISPATCH_STATE_ERROR", http.StatusConflict},
	{ErrRateLimited, "RATE_LIMITED", http.StatusTooManyRequests},
	{ErrChannelDisabled, "CHANNEL_DISABLED", http.StatusServiceUnavailable},
	{ErrInvalidParameter, "INVALID_PARAMETER", http.StatusBadRequest},
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound},
}

// Code 返回稳定的错误码，未知错误返回 INTERNAL
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, e := range codeTable {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "INTERNAL"
}

// HTTPStatus 错误到 HTTP 状态码的映射
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, e := range codeTable {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}
