package local

import (
	"testing"
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/repository/cache"
	ca "github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateCache(t *testing.T) {
	t.Parallel()

	c := NewTemplateCache(ca.New(time.Minute, time.Minute), time.Minute)
	entry := domain.TemplateEntry{Channel: domain.ChannelIM, EventCode: "ORDER_CREATED", Language: "en", ContractHash: "h"}

	_, err := c.Get(t.Context(), entry.Key())
	assert.ErrorIs(t, err, cache.ErrKeyNotFound)

	require.NoError(t, c.Set(t.Context(), entry))
	got, err := c.Get(t.Context(), entry.Key())
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	require.NoError(t, c.Del(t.Context(), entry.Key()))
	_, err = c.Get(t.Context(), entry.Key())
	assert.ErrorIs(t, err, cache.ErrKeyNotFound)
}
