package tracing

import (
	"testing"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/service/provider"
	providermocks "gitee.com/flycash/notification-governance/internal/service/provider/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"
)

func TestProviderSend(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	mock := providermocks.NewMockProvider(ctrl)
	mock.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(provider.SendResult{ProviderRequestID: "r-1", ProviderStatus: domain.ProviderStatusSent}, nil)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	p := &Provider{provider: mock, tracer: tp.Tracer("test")}

	_, err := p.Send(t.Context(), provider.SendRequest{DispatchID: "d1", Channel: domain.ChannelIM, Address: "wx-secret-user"})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := spans[0].Attributes()
	assert.Contains(t, attrs, attribute.String("dispatch.id", "d1"))
	assert.Contains(t, attrs, attribute.String("provider.requestId", "r-1"))
	for _, kv := range attrs {
		assert.NotEqual(t, "wx-secret-user", kv.Value.AsString())
	}
}
