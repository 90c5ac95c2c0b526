package export

import (
	"strings"
	"unicode/utf8"

	"gitee.com/flycash/notification-governance/internal/pkg/hash"
)

const maskPrefix = "****"

// MaskID 标识符只输出哈希前缀，可以跨导出关联但不能反推原值
func MaskID(v string) string {
	if v == "" {
		return ""
	}
	return "sha256:" + hash.SHA256Hex([]byte(v))[:16]
}

// MaskTail 只保留最后四个字符
func MaskTail(v string) string {
	if v == "" {
		return ""
	}
	n := utf8.RuneCountInString(v)
	if n <= 4 {
		return maskPrefix
	}
	r := []rune(v)
	return maskPrefix + string(r[n-4:])
}

// MaskEmail 本地部分只保留首字符，域名保留
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return MaskTail(email)
	}
	first, _ := utf8.DecodeRuneInString(email)
	return string(first) + "***" + email[at:]
}
