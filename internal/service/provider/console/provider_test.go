package console

import (
	"strings"
	"testing"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/service/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderSend(t *testing.T) {
	t.Parallel()
	p := NewProvider()
	a, err := p.Send(t.Context(), provider.SendRequest{Channel: domain.ChannelEmail, DispatchID: "d1"})
	require.NoError(t, err)
	b, err := p.Send(t.Context(), provider.SendRequest{Channel: domain.ChannelEmail, DispatchID: "d1"})
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStatusSent, a.ProviderStatus)
	assert.True(t, strings.HasPrefix(a.ProviderRequestID, "console-"))
	assert.NotEqual(t, a.ProviderRequestID, b.ProviderRequestID)
}
