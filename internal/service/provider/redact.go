package provider

import "strings"

// RedactedValue 敏感字段替换后的值
const RedactedValue = "[REDACTED]"

var sensitiveKeys = []string{"token", "secret", "signature"}

// Redact 返回脱敏后的副本，键名包含 token/secret/signature 的字段（不区分大小写）被替换
func Redact(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	res := make(map[string]any, len(src))
	for k, v := range src {
		if isSensitive(k) {
			res[k] = RedactedValue
			continue
		}
		res[k] = redactValue(v)
	}
	return res
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return Redact(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = redactValue(item)
		}
		return out
	default:
		return v
	}
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
