package template

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/errs"
	"gitee.com/flycash/notification-governance/internal/pkg/hash"
	"github.com/hashicorp/go-multierror"
)

var (
	tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)
	// anyTokenPattern 匹配任意 {{...}}，不符合标识符语法的不会被替换
	anyTokenPattern = regexp.MustCompile(`\{\{[^{}]*\}\}`)
)

// ScanPlaceholders 返回模板正文中出现的占位符，去重并排序
func ScanPlaceholders(body string) []string {
	matches := tokenPattern.FindAllStringSubmatch(body, -1)
	res := make([]string, 0, len(matches))
	for _, m := range matches {
		res = append(res, m[1])
	}
	return normalizeSet(res)
}

// ValidateContract 正文中的占位符集合必须与声明的集合完全一致，
// 且每个 {{...}} 都必须是合法的标识符
func ValidateContract(body string, declared []string) error {
	found := ScanPlaceholders(body)
	want := normalizeSet(declared)
	var merr *multierror.Error
	for _, token := range anyTokenPattern.FindAllString(body, -1) {
		if !tokenPattern.MatchString(token) {
			merr = multierror.Append(merr, fmt.Errorf("%w: 非法占位符 %s", errs.ErrPlaceholderMismatch, token))
		}
	}
	for _, name := range want {
		if _, ok := slices.BinarySearch(found, name); !ok {
			merr = multierror.Append(merr, fmt.Errorf("%w: 正文缺少 {{%s}}", errs.ErrPlaceholderMismatch, name))
		}
	}
	for _, name := range found {
		if _, ok := slices.BinarySearch(want, name); !ok {
			merr = multierror.Append(merr, fmt.Errorf("%w: 正文包含未声明的 {{%s}}", errs.ErrPlaceholderMismatch, name))
		}
	}
	return merr.ErrorOrNil()
}

// ContractHash 覆盖条目的全部契约字段，任何修改都会改变哈希
func ContractHash(e domain.TemplateEntry) (string, error) {
	return hash.CanonicalHash(map[string]any{
		"eventCode":               e.EventCode,
		"channel":                 e.Channel.String(),
		"language":                e.Language,
		"schemaVersion":           e.SchemaVersion,
		"channelTemplateId":       e.ChannelTemplateID,
		"requiredPlaceholders":    normalizeSet(e.RequiredPlaceholders),
		"allowedLinkPathPatterns": normalizeSet(e.AllowedLinkPathPatterns),
		"status":                  e.Status.String(),
		"renderTemplate":          e.RenderTemplate,
	})
}

// normalizeSet 去掉首尾空白与空值，去重后排序
func normalizeSet(src []string) []string {
	res := make([]string, 0, len(src))
	for _, s := range src {
		s = strings.TrimSpace(s)
		if s != "" {
			res = append(res, s)
		}
	}
	slices.Sort(res)
	return slices.Compact(res)
}
