package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStableStringify(t *testing.T) {
	t.Parallel()

	type item struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	testCases := []struct {
		name  string
		input any
		want  string
	}{
		{name: "空对象", input: map[string]any{}, want: `{}`},
		{name: "键排序", input: map[string]any{"b": 1, "a": "x"}, want: `{"a":"x","b":1}`},
		{
			name:  "嵌套对象也排序，数组保持顺序",
			input: map[string]any{"z": []any{3, 1, 2}, "a": map[string]any{"y": 2, "x": 1}},
			want:  `{"a":{"x":1,"y":2},"z":[3,1,2]}`,
		},
		{name: "结构体按 json tag", input: item{Name: "n", Count: 2}, want: `{"count":2,"name":"n"}`},
		{name: "不转义 HTML", input: map[string]any{"u": "a<b>&c"}, want: `{"u":"a<b>&c"}`},
		{name: "null", input: map[string]any{"k": nil}, want: `{"k":null}`},
		{name: "NFC 归一化", input: "é", want: "\"é\""},
		{name: "大整数不丢精度", input: map[string]any{"n": int64(9007199254740993)}, want: `{"n":9007199254740993}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := StableStringify(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCanonicalHashOrderIndependent(t *testing.T) {
	t.Parallel()

	h1, err := CanonicalHash(map[string]any{"a": 1, "b": map[string]any{"x": 1, "y": 2}})
	require.NoError(t, err)
	h2, err := CanonicalHash(map[string]any{"b": map[string]any{"y": 2, "x": 1}, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	h3, err := CanonicalHash(map[string]any{"b": map[string]any{"y": 3, "x": 1}, "a": 1})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestSHA256Hex(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", SHA256Hex(nil))
}

func TestCanonicalHashUnsupported(t *testing.T) {
	t.Parallel()
	_, err := CanonicalHash(make(chan int))
	assert.Error(t, err)
}
