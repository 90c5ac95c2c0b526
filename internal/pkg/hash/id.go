package hash

import (
	"strconv"
	"strings"
)

// DeterministicID 通用的确定性 ID 生成方式，binding/dispatch/status event/幂等键都用它。
// 每一段编码成 <len>:<value> 再用 | 连接，避免分隔符出现在值里导致的歧义。
func DeterministicID(artifactClass, tenantID string, primaryKeyFields []string, canonicalHash string) string {
	parts := make([]string, 0, len(primaryKeyFields)+3)
	parts = append(parts, lengthPrefix(artifactClass), lengthPrefix(tenantID))
	for _, f := range primaryKeyFields {
		parts = append(parts, lengthPrefix(f))
	}
	parts = append(parts, lengthPrefix(canonicalHash))
	return SHA256Hex([]byte(strings.Join(parts, "|")))
}

func lengthPrefix(v string) string {
	return strconv.Itoa(len(v)) + ":" + v
}
