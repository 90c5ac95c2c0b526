package hash

import (
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicIDNoCollision(t *testing.T) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	testSize := 1000
	results := make(map[string]struct{}, testSize)
	for i := 0; i < testSize; i++ {
		entityID := strconv.FormatInt(r.Int63n(10000)+1, 10)
		key := generateRandomString(r, r.Intn(20)+10)
		id := DeterministicID("dispatch", "tenant", []string{entityID, key, strconv.Itoa(i)}, "h")
		if _, exists := results[id]; exists {
			t.Fatalf("哈希冲突: entityID=%s key=%s", entityID, key)
		}
		results[id] = struct{}{}
	}
	assert.Len(t, results, testSize)
}

func TestDeterministicIDStable(t *testing.T) {
	t.Parallel()

	id1 := DeterministicID("channel_binding", "t1", []string{"supplier", "S-1", "app"}, "abc")
	id2 := DeterministicID("channel_binding", "t1", []string{"supplier", "S-1", "app"}, "abc")
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64)

	// 任意一段变化都会改变 ID
	assert.NotEqual(t, id1, DeterministicID("channel_binding", "t2", []string{"supplier", "S-1", "app"}, "abc"))
	assert.NotEqual(t, id1, DeterministicID("channel_binding", "t1", []string{"supplier", "S-2", "app"}, "abc"))
	assert.NotEqual(t, id1, DeterministicID("channel_binding", "t1", []string{"supplier", "S-1", "app"}, "abd"))
}

func TestDeterministicIDDelimiterAmbiguity(t *testing.T) {
	t.Parallel()

	// 如果直接用 | 拼接，这两组输入会得到相同的原文
	a := DeterministicID("x", "t", []string{"a|b", "c"}, "h")
	b := DeterministicID("x", "t", []string{"a", "b|c"}, "h")
	assert.NotEqual(t, a, b)
}

func generateRandomString(r *rand.Rand, length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		result[i] = charset[r.Intn(len(charset))]
	}
	return string(result)
}
