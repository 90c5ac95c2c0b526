package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedact(t *testing.T) {
	t.Parallel()
	src := map[string]any{
		"requestId":     "r-1",
		"accessToken":   "abc",
		"Client_Secret": "s",
		"SIGNATURE":     "sig",
		"nested": map[string]any{
			"refresh_token": "x",
			"ok":            true,
		},
		"items": []any{
			map[string]any{"apiSecretKey": "k", "code": 0},
			"plain",
		},
	}
	got := Redact(src)
	assert.Equal(t, map[string]any{
		"requestId":     "r-1",
		"accessToken":   "[REDACTED]",
		"Client_Secret": "[REDACTED]",
		"SIGNATURE":     "[REDACTED]",
		"nested": map[string]any{
			"refresh_token": "[REDACTED]",
			"ok":            true,
		},
		"items": []any{
			map[string]any{"apiSecretKey": "[REDACTED]", "code": 0},
			"plain",
		},
	}, got)
	// 原始数据不被修改
	assert.Equal(t, "abc", src["accessToken"])
	assert.Nil(t, Redact(nil))
}
