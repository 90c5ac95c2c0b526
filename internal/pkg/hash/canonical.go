package hash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// StableStringify 生成规范化 JSON：每一层对象的键按字典序排列，数组保持原顺序，
// 字符串做 NFC 归一化且不转义 HTML 字符。所有内容寻址的哈希都必须走这里。
//
// 结构体会先经过 encoding/json 投影，所以字段名以 json tag 为准。
func StableStringify(v any) (string, error) {
	b, err := StableBytes(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// StableBytes 同 StableStringify，返回字节
func StableBytes(v any) ([]byte, error) {
	generic, err := toGeneric(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err = writeValue(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SHA256Hex 小写十六进制摘要
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CanonicalHash = SHA256Hex(StableStringify(v))
func CanonicalHash(v any) (string, error) {
	b, err := StableBytes(v)
	if err != nil {
		return "", fmt.Errorf("规范化序列化失败: %w", err)
	}
	return SHA256Hex(b), nil
}

// MustCanonicalHash 只用于输入完全由代码构造、不可能序列化失败的场景
func MustCanonicalHash(v any) string {
	h, err := CanonicalHash(v)
	if err != nil {
		panic(err)
	}
	return h
}

// toGeneric 把任意值转换成 nil/bool/json.Number/string/[]any/map[string]any 组成的树
func toGeneric(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	// 数字保持字面量，避免 float64 精度损失
	dec.UseNumber()
	var out any
	if err = dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(val.String())
	case string:
		return writeString(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeValue(buf, val[k]); err != nil {
				return fmt.Errorf("object[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("不支持的类型: %T", v)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	// Encoder 会追加换行
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}
