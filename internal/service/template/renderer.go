package template

import (
	"fmt"
	"slices"
	"strings"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/errs"
	"gitee.com/flycash/notification-governance/internal/pkg/hash"
	"github.com/hashicorp/go-multierror"
)

// RendererVersion 渲染逻辑的版本，随发送记录落库，便于按当时的逻辑审计
const RendererVersion = "governed-renderer/1"

type Renderer struct {
	policy *Policy
}

func NewRenderer(policy *Policy) *Renderer {
	return &Renderer{policy: policy}
}

// Render 校验占位符契约，替换占位符，再执行外发内容策略。
// 替换不做任何转义，需要转义的渠道由供应商适配器负责
func (r *Renderer) Render(entry domain.TemplateEntry, placeholders map[string]any) (domain.Rendered, error) {
	values := NormalizePlaceholders(placeholders)

	if err := ValidateContract(entry.RenderTemplate, entry.RequiredPlaceholders); err != nil {
		return domain.Rendered{}, err
	}
	required := normalizeSet(entry.RequiredPlaceholders)
	var merr *multierror.Error
	for _, k := range sortedKeys(values) {
		if _, ok := slices.BinarySearch(required, k); !ok {
			merr = multierror.Append(merr, fmt.Errorf("%w: %s", errs.ErrUnknownPlaceholder, k))
		}
	}
	for _, k := range required {
		if values[k] == "" {
			merr = multierror.Append(merr, fmt.Errorf("%w: %s", errs.ErrMissingPlaceholder, k))
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		return domain.Rendered{}, err
	}

	payload := tokenPattern.ReplaceAllStringFunc(entry.RenderTemplate, func(token string) string {
		return values[tokenPattern.FindStringSubmatch(token)[1]]
	})
	if err := r.policy.Validate(entry.Language, payload, entry.AllowedLinkPathPatterns); err != nil {
		return domain.Rendered{}, err
	}

	key := entry.Key()
	payloadHash, err := hash.CanonicalHash(map[string]any{
		"renderedPayload": payload,
		"language":        entry.Language,
		"templateKey":     key,
		"schemaVersion":   entry.SchemaVersion,
		"placeholders":    values,
	})
	if err != nil {
		return domain.Rendered{}, err
	}
	return domain.Rendered{
		Payload:         payload,
		PayloadHash:     payloadHash,
		RendererVersion: RendererVersion,
		TemplateKey:     key,
		SchemaVersion:   entry.SchemaVersion,
		Language:        entry.Language,
		Placeholders:    values,
	}, nil
}

// NormalizePlaceholders 键值去掉首尾空白，值统一转为字符串，丢弃空键
func NormalizePlaceholders(src map[string]any) map[string]string {
	res := make(map[string]string, len(src))
	for k, v := range src {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		res[k] = strings.TrimSpace(stringify(v))
	}
	return res
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
