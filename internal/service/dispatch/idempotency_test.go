package dispatch

import (
	"testing"
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCorrelationKey(t *testing.T) {
	t.Parallel()
	required := []string{"orderId", "paymentId"}
	a := CorrelationKey(required, map[string]string{"orderId": "O-1", "paymentId": "P-1"})
	b := CorrelationKey(required, map[string]string{"paymentId": " P-1 ", "orderId": "O-1"})
	assert.Equal(t, a, b)

	// 缺失与空值都按 null 计算
	missing := CorrelationKey(required, map[string]string{"orderId": "O-1"})
	empty := CorrelationKey(required, map[string]string{"orderId": "O-1", "paymentId": "  "})
	assert.Equal(t, missing, empty)
	assert.NotEqual(t, a, missing)
}

func TestWindowBucket(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		now     time.Time
		minutes int
		want    string
	}{
		{
			name:    "窗口内",
			now:     time.Date(2025, 3, 1, 8, 29, 59, 0, time.UTC),
			minutes: 30,
			want:    "2025-03-01T08:00:00Z",
		},
		{
			name:    "窗口边界",
			now:     time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC),
			minutes: 30,
			want:    "2025-03-01T08:30:00Z",
		},
		{
			name:    "非UTC时区",
			now:     time.Date(2025, 3, 1, 16, 45, 0, 0, time.FixedZone("CST", 8*3600)),
			minutes: 60,
			want:    "2025-03-01T08:00:00Z",
		},
		{
			name:    "使用默认窗口",
			now:     time.Date(2025, 3, 1, 8, 45, 0, 0, time.UTC),
			minutes: 0,
			want:    "2025-03-01T08:30:00Z",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, WindowBucket(tc.now, tc.minutes))
		})
	}
}

func TestIdempotencyKey(t *testing.T) {
	t.Parallel()
	base := KeyInput{
		TenantID:            "t1",
		EventCode:           "ORDER_CREATED",
		RecipientRef:        "u-1",
		CorrelationKey:      "c",
		WindowBucket:        "2025-03-01T08:00:00Z",
		RenderedPayloadHash: "h",
	}
	key := IdempotencyKey(base)
	assert.Equal(t, key, IdempotencyKey(base))
	assert.NotEqual(t, key, DispatchID(base))

	mutations := map[string]func(in *KeyInput){
		"租户":   func(in *KeyInput) { in.TenantID = "t2" },
		"事件":   func(in *KeyInput) { in.EventCode = "PAYMENT_FAILED" },
		"接收者":  func(in *KeyInput) { in.RecipientRef = "u-2" },
		"关联键":  func(in *KeyInput) { in.CorrelationKey = "d" },
		"窗口":   func(in *KeyInput) { in.WindowBucket = "2025-03-01T08:30:00Z" },
		"重试来源": func(in *KeyInput) { in.RetryOfID = "x" },
		"内容":   func(in *KeyInput) { in.RenderedPayloadHash = "h2" },
		"强制重发": func(in *KeyInput) { in.ForceResend = true },
	}
	for name, mutate := range mutations {
		in := base
		mutate(&in)
		assert.NotEqual(t, key, IdempotencyKey(in), name)
	}
}

func TestStatusEventID(t *testing.T) {
	t.Parallel()
	e := domain.DispatchStatusEvent{
		DispatchID:     "d-1",
		EventType:      domain.StatusEventProviderFailed,
		ProviderStatus: domain.ProviderStatusFailed,
		ErrorCode:      "HTTP_500",
		Attempt:        1,
	}
	id := StatusEventID("t1", e)
	// 时间与响应不参与计算
	e.CreatedAt = time.Now()
	e.RedactedResponse = map[string]any{"msg": "x"}
	assert.Equal(t, id, StatusEventID("t1", e))

	e.Attempt = 2
	assert.NotEqual(t, id, StatusEventID("t1", e))
}
