package dispatch

import (
	"errors"
	"sync"
	"testing"
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/errs"
	dispatchevt "gitee.com/flycash/notification-governance/internal/event/dispatch"
	evtmocks "gitee.com/flycash/notification-governance/internal/event/mocks"
	"gitee.com/flycash/notification-governance/internal/service/binding"
	"gitee.com/flycash/notification-governance/internal/service/governance"
	"gitee.com/flycash/notification-governance/internal/service/provider"
	providermocks "gitee.com/flycash/notification-governance/internal/service/provider/mocks"
	"gitee.com/flycash/notification-governance/internal/service/taxonomy"
	"gitee.com/flycash/notification-governance/internal/service/template"
	"gitee.com/flycash/notification-governance/internal/test/memrepo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	admin = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	buyer = domain.Actor{ID: "buyer-1", Role: domain.RoleBuyer, EntityType: "company", EntityID: "C-1"}
)

type fixture struct {
	svc       *dispatchService
	repo      *memrepo.DispatchRepository
	templates *memrepo.TemplateRepository
	bindings  binding.Service
	email     *providermocks.MockProvider
	im        *providermocks.MockProvider
	now       time.Time
}

func newFixture(t *testing.T, producer dispatchevt.StatusEventProducer) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		repo:      memrepo.NewDispatchRepository(),
		templates: memrepo.NewTemplateRepository(),
		bindings:  binding.NewService(memrepo.NewBindingRepository(), binding.Config{TenantID: "t1"}),
		email:     providermocks.NewMockProvider(ctrl),
		im:        providermocks.NewMockProvider(ctrl),
		now:       time.Date(2025, 3, 1, 8, 5, 0, 0, time.UTC),
	}
	tax := taxonomy.NewRegistry()
	registry := template.NewRegistry(f.templates, tax, template.Config{Production: true})
	for _, e := range []domain.TemplateEntry{
		{
			EventCode:               "ORDER_CREATED",
			Channel:                 domain.ChannelEmail,
			Language:                "en",
			SchemaVersion:           1,
			ChannelTemplateID:       "tpl-order",
			RequiredPlaceholders:    []string{"orderId", "orderUrl"},
			AllowedLinkPathPatterns: []string{"/orders/*"},
			Status:                  domain.TemplateStatusApproved,
			RenderTemplate:          "Order {{orderId}} created: {{orderUrl}}",
		},
		{
			EventCode:            "ORDER_CREATED",
			Channel:              domain.ChannelIM,
			Language:             "en",
			SchemaVersion:        1,
			ChannelTemplateID:    "im-order",
			RequiredPlaceholders: []string{"orderId"},
			Status:               domain.TemplateStatusLocked,
			RenderTemplate:       "Order {{orderId}} created",
		},
	} {
		_, err := registry.Upsert(t.Context(), e)
		require.NoError(t, err)
	}
	renderer := template.NewRenderer(template.NewPolicy(template.PolicyConfig{
		Languages:        []string{"en"},
		MaxPayloadLength: 1000,
		AllowedHosts:     []string{"app.example.com"},
	}))
	if producer == nil {
		producer = dispatchevt.NopProducer{}
	}
	f.svc = NewService(
		governance.NewGuard(tax, governance.DefaultResolvers()),
		registry,
		renderer,
		f.bindings,
		f.repo,
		provider.NewDispatcher(map[domain.Channel]provider.Provider{
			domain.ChannelEmail: f.email,
			domain.ChannelIM:    f.im,
		}),
		producer,
		Config{TenantID: "t1", IMAppID: "app-1"},
	).(*dispatchService)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func emailRequest() SendRequest {
	return SendRequest{
		Channel:   domain.ChannelEmail,
		EventCode: "ORDER_CREATED",
		Recipient: domain.Recipient{Role: domain.RoleBuyer, UserID: "u-1", Email: "b@example.com"},
		EntityRefs: map[string]string{
			"buyerId":         "u-1",
			"buyerEmail":      "b@example.com",
			"buyerEntityType": "company",
			"buyerEntityId":   "C-1",
		},
		Correlation: map[string]string{"orderId": "ORD-1"},
		Placeholders: map[string]any{
			"orderId":  "ORD-1",
			"orderUrl": "https://app.example.com/orders/ORD-1",
		},
		Actor: domain.System(),
	}
}

func imRequest() SendRequest {
	req := emailRequest()
	req.Channel = domain.ChannelIM
	req.Recipient = domain.Recipient{Role: domain.RoleBuyer, UserID: "u-1", EntityType: "company", EntityID: "C-1"}
	req.Placeholders = map[string]any{"orderId": "ORD-1"}
	return req
}

func sent(id string) provider.SendResult {
	return provider.SendResult{ProviderRequestID: id, ProviderStatus: domain.ProviderStatusSent}
}

func eventTypes(events []domain.DispatchStatusEvent) []domain.StatusEventType {
	res := make([]domain.StatusEventType, 0, len(events))
	for _, e := range events {
		res = append(res, e.EventType)
	}
	return res
}

func TestSend(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.email.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, req provider.SendRequest) (provider.SendResult, error) {
			assert.Equal(t, "b@example.com", req.Address)
			assert.Equal(t, "tpl-order", req.TemplateID)
			assert.Equal(t, "Order ORD-1 created: https://app.example.com/orders/ORD-1", req.Payload)
			return sent("req-1"), nil
		})

	record, err := f.svc.Send(t.Context(), emailRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStatusSent, record.ProviderStatus)
	assert.Len(t, record.DispatchID, 64)
	assert.Equal(t, "2025-03-01T08:00:00Z", record.WindowBucket)
	assert.Equal(t, template.RendererVersion, record.RendererVersion)

	detail, err := f.svc.Get(t.Context(), record.DispatchID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStatusSent, detail.Record.ProviderStatus)
	assert.Equal(t, []domain.StatusEventType{
		domain.StatusEventDispatchCreated,
		domain.StatusEventProviderSent,
	}, eventTypes(detail.Events))
	assert.Equal(t, "req-1", detail.Events[1].ProviderRequestID)
}

func TestSendDeduplicates(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.email.EXPECT().Send(gomock.Any(), gomock.Any()).Return(sent("req-1"), nil).Times(1)

	first, err := f.svc.Send(t.Context(), emailRequest())
	require.NoError(t, err)
	// 同一窗口内，关联键的顺序与占位符的空白不影响指纹
	req := emailRequest()
	req.Placeholders["orderId"] = " ORD-1 "
	second, err := f.svc.Send(t.Context(), req)
	require.NoError(t, err)

	assert.Equal(t, first.DispatchID, second.DispatchID)
	assert.Equal(t, domain.ProviderStatusSent, second.ProviderStatus)
	assert.Equal(t, 1, f.repo.RecordCount())
	assert.Equal(t, 2, f.repo.EventCount(first.DispatchID))
}

func TestSendConcurrentDuplicates(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.email.EXPECT().Send(gomock.Any(), gomock.Any()).Return(sent("req-1"), nil).Times(1)

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record, err := f.svc.Send(t.Context(), emailRequest())
			assert.NoError(t, err)
			ids[i] = record.DispatchID
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, f.repo.RecordCount())
}

func TestSendNewWindow(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.email.EXPECT().Send(gomock.Any(), gomock.Any()).Return(sent("req-1"), nil).Times(2)

	first, err := f.svc.Send(t.Context(), emailRequest())
	require.NoError(t, err)
	f.now = f.now.Add(DefaultWindowMinutes * time.Minute)
	second, err := f.svc.Send(t.Context(), emailRequest())
	require.NoError(t, err)
	assert.NotEqual(t, first.DispatchID, second.DispatchID)
	assert.Equal(t, 2, f.repo.RecordCount())
}

func TestSendForceResend(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.email.EXPECT().Send(gomock.Any(), gomock.Any()).Return(sent("req-1"), nil).Times(2)

	first, err := f.svc.Send(t.Context(), emailRequest())
	require.NoError(t, err)
	req := emailRequest()
	req.ForceResend = true
	forced, err := f.svc.Send(t.Context(), req)
	require.NoError(t, err)
	assert.NotEqual(t, first.DispatchID, forced.DispatchID)

	// 同一窗口内再次强制重发，收敛到上一次强制重发的记录
	again, err := f.svc.Send(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, forced.DispatchID, again.DispatchID)
	assert.Equal(t, 2, f.repo.RecordCount())
}

func TestSendRejected(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(req *SendRequest)
		wantErr error
	}{
		{
			name: "监管方",
			mutate: func(req *SendRequest) {
				req.Recipient.Role = domain.RoleRegulator
				req.EventCode = "NOT_AN_EVENT"
			},
			wantErr: errs.ErrRegulatorAutoSend,
		},
		{
			name:    "未知事件",
			mutate:  func(req *SendRequest) { req.EventCode = "NOT_AN_EVENT" },
			wantErr: errs.ErrUnknownEventCode,
		},
		{
			name: "角色不允许",
			mutate: func(req *SendRequest) {
				req.Recipient.Role = domain.RoleServicePartner
				req.EntityRefs = map[string]string{"servicePartnerId": "u-1"}
			},
			wantErr: errs.ErrRecipientRoleNotAllowed,
		},
		{
			name:    "缺少关联键",
			mutate:  func(req *SendRequest) { req.Correlation = map[string]string{"orderId": " "} },
			wantErr: errs.ErrMissingCorrelationKey,
		},
		{
			name:    "不在业务范围内",
			mutate:  func(req *SendRequest) { req.EntityRefs = map[string]string{"buyerId": "u-2"} },
			wantErr: errs.ErrRecipientScopeMismatch,
		},
		{
			name:    "邮箱不属于接收者",
			mutate:  func(req *SendRequest) { req.Recipient.Email = "attacker@example.net" },
			wantErr: errs.ErrRecipientScopeMismatch,
		},
		{
			name:    "缺少占位符",
			mutate:  func(req *SendRequest) { delete(req.Placeholders, "orderUrl") },
			wantErr: errs.ErrMissingPlaceholder,
		},
		{
			name: "链接不在白名单",
			mutate: func(req *SendRequest) {
				req.Placeholders["orderUrl"] = "https://evil.example.net/orders/ORD-1"
			},
			wantErr: errs.ErrDisallowedLink,
		},
		{
			name:    "模板不存在",
			mutate:  func(req *SendRequest) { req.Language = "zh" },
			wantErr: errs.ErrTemplateNotFound,
		},
		{
			name:    "缺少邮箱",
			mutate:  func(req *SendRequest) { req.Recipient.Email = "" },
			wantErr: errs.ErrInvalidParameter,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, nil)
			req := emailRequest()
			tc.mutate(&req)
			_, err := f.svc.Send(t.Context(), req)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, 0, f.repo.RecordCount())
		})
	}
}

func TestSendRegulatorCheckedBeforeTemplate(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	before := f.templates.FindCalls.Load()
	req := emailRequest()
	req.Recipient.Role = domain.RoleRegulator
	_, err := f.svc.Send(t.Context(), req)
	assert.ErrorIs(t, err, errs.ErrRegulatorAutoSend)
	assert.Equal(t, before, f.templates.FindCalls.Load())
}

func TestSendProviderFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.email.EXPECT().Send(gomock.Any(), gomock.Any()).Return(provider.SendResult{
		ErrorCode:        "HTTP_503",
		RedactedResponse: map[string]any{"msg": "busy", "accessToken": "abc"},
	}, errors.New("timeout"))

	record, err := f.svc.Send(t.Context(), emailRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStatusFailed, record.ProviderStatus)

	detail, err := f.svc.Get(t.Context(), record.DispatchID)
	require.NoError(t, err)
	require.Len(t, detail.Events, 2)
	failed := detail.Events[1]
	assert.Equal(t, domain.StatusEventProviderFailed, failed.EventType)
	assert.Equal(t, "HTTP_503", failed.ErrorCode)
	assert.Equal(t, map[string]any{"msg": "busy", "accessToken": provider.RedactedValue}, failed.RedactedResponse)
}

func TestRetryFailed(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	gomock.InOrder(
		f.email.EXPECT().Send(gomock.Any(), gomock.Any()).Return(provider.SendResult{ErrorCode: "HTTP_500"}, errors.New("boom")),
		f.email.EXPECT().Send(gomock.Any(), gomock.Any()).Return(sent("req-2"), nil),
	)
	record, err := f.svc.Send(t.Context(), emailRequest())
	require.NoError(t, err)
	require.Equal(t, domain.ProviderStatusFailed, record.ProviderStatus)

	_, err = f.svc.RetryFailed(t.Context(), buyer, record.DispatchID)
	assert.ErrorIs(t, err, errs.ErrActorNotAuthorized)
	_, err = f.svc.RetryFailed(t.Context(), admin, "missing")
	assert.ErrorIs(t, err, errs.ErrDispatchNotFound)

	retried, err := f.svc.RetryFailed(t.Context(), admin, record.DispatchID)
	require.NoError(t, err)
	assert.Equal(t, record.DispatchID, retried.DispatchID)
	assert.Equal(t, domain.ProviderStatusSent, retried.ProviderStatus)
	assert.Equal(t, 1, f.repo.RecordCount())

	detail, err := f.svc.Get(t.Context(), record.DispatchID)
	require.NoError(t, err)
	assert.Equal(t, []domain.StatusEventType{
		domain.StatusEventDispatchCreated,
		domain.StatusEventProviderFailed,
		domain.StatusEventRetryRequested,
		domain.StatusEventProviderSent,
	}, eventTypes(detail.Events))
	assert.Equal(t, 2, detail.Events[3].Attempt)

	// 已经成功的不能再重试
	_, err = f.svc.RetryFailed(t.Context(), admin, record.DispatchID)
	assert.ErrorIs(t, err, errs.ErrDispatchNotRetryable)
}

func TestRetryFailedTwice(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.email.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(provider.SendResult{ErrorCode: "HTTP_500"}, errors.New("boom")).Times(3)

	record, err := f.svc.Send(t.Context(), emailRequest())
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		retried, err := f.svc.RetryFailed(t.Context(), admin, record.DispatchID)
		require.NoError(t, err)
		assert.Equal(t, domain.ProviderStatusFailed, retried.ProviderStatus)
	}
	// 每次重试的状态事件都单独保留
	assert.Equal(t, 6, f.repo.EventCount(record.DispatchID))
}

func TestSendIM(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	_, err := f.svc.Send(t.Context(), imRequest())
	assert.ErrorIs(t, err, errs.ErrBindingMissing)

	started, err := f.bindings.Start(t.Context(), buyer, binding.StartRequest{EntityType: "company", EntityID: "C-1", ChannelAppID: "app-1"})
	require.NoError(t, err)
	_, err = f.svc.Send(t.Context(), imRequest())
	assert.ErrorIs(t, err, errs.ErrBindingNotVerified)

	_, err = f.bindings.Verify(t.Context(), binding.VerifyRequest{
		BindingID:     started.Binding.BindingID,
		Token:         started.Token,
		ChannelUserID: "im-user-1",
	})
	require.NoError(t, err)
	f.im.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, req provider.SendRequest) (provider.SendResult, error) {
			assert.Equal(t, "im-user-1", req.Address)
			return provider.SendResult{ErrorCode: "RATE"}, errors.New("busy")
		})
	record, err := f.svc.Send(t.Context(), imRequest())
	require.NoError(t, err)
	assert.Equal(t, started.Binding.BindingID, record.RecipientBindingID)
	assert.Equal(t, domain.ProviderStatusFailed, record.ProviderStatus)

	// 绑定被暂停后不能重试
	_, err = f.bindings.Suspend(t.Context(), admin, started.Binding.BindingID, "abuse report")
	require.NoError(t, err)
	_, err = f.svc.RetryFailed(t.Context(), admin, record.DispatchID)
	assert.ErrorIs(t, err, errs.ErrBindingNotVerified)
}

func TestSendIMOtherEntityOutOfScope(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	// 其他公司已经有验证通过的绑定
	other, err := f.bindings.Start(t.Context(), admin, binding.StartRequest{EntityType: "company", EntityID: "S-OTHER", ChannelAppID: "app-1"})
	require.NoError(t, err)
	_, err = f.bindings.Verify(t.Context(), binding.VerifyRequest{
		BindingID:     other.Binding.BindingID,
		Token:         other.Token,
		ChannelUserID: "other-im",
	})
	require.NoError(t, err)

	req := imRequest()
	req.Recipient.EntityID = "S-OTHER"
	_, err = f.svc.Send(t.Context(), req)
	assert.ErrorIs(t, err, errs.ErrRecipientScopeMismatch)
	assert.Equal(t, 0, f.repo.RecordCount())
}

func TestHandleProviderCallback(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.email.EXPECT().Send(gomock.Any(), gomock.Any()).Return(sent("req-1"), nil)
	record, err := f.svc.Send(t.Context(), emailRequest())
	require.NoError(t, err)

	cb := Callback{
		DispatchID:        record.DispatchID,
		ProviderRequestID: "req-1",
		ProviderStatus:    domain.ProviderStatusDelivered,
		Response:          map[string]any{"signature": "xyz"},
	}
	delivered, err := f.svc.HandleProviderCallback(t.Context(), cb)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStatusDelivered, delivered.ProviderStatus)
	_, err = f.svc.HandleProviderCallback(t.Context(), cb)
	require.NoError(t, err)
	assert.Equal(t, 3, f.repo.EventCount(record.DispatchID))

	detail, err := f.svc.Get(t.Context(), record.DispatchID)
	require.NoError(t, err)
	assert.Equal(t, provider.RedactedValue, detail.Events[2].RedactedResponse["signature"])

	_, err = f.svc.HandleProviderCallback(t.Context(), Callback{DispatchID: record.DispatchID, ProviderStatus: domain.ProviderStatusSent})
	assert.ErrorIs(t, err, errs.ErrInvalidCallback)
	_, err = f.svc.HandleProviderCallback(t.Context(), Callback{DispatchID: "missing", ProviderStatus: domain.ProviderStatusFailed})
	assert.ErrorIs(t, err, errs.ErrDispatchNotFound)
}

func TestLateFailedCallbackAfterDelivered(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.email.EXPECT().Send(gomock.Any(), gomock.Any()).Return(sent("req-1"), nil).Times(1)
	record, err := f.svc.Send(t.Context(), emailRequest())
	require.NoError(t, err)

	_, err = f.svc.HandleProviderCallback(t.Context(), Callback{
		DispatchID: record.DispatchID, ProviderRequestID: "req-1", ProviderStatus: domain.ProviderStatusDelivered,
	})
	require.NoError(t, err)
	late, err := f.svc.HandleProviderCallback(t.Context(), Callback{
		DispatchID: record.DispatchID, ProviderRequestID: "req-1", ProviderStatus: domain.ProviderStatusFailed, ErrorCode: "BOUNCED",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStatusDelivered, late.ProviderStatus)
	assert.Equal(t, 3, f.repo.EventCount(record.DispatchID))

	_, err = f.svc.RetryFailed(t.Context(), admin, record.DispatchID)
	assert.ErrorIs(t, err, errs.ErrDispatchNotRetryable)
}

func TestRetryRefusedAfterAnyDelivery(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.email.EXPECT().Send(gomock.Any(), gomock.Any()).Return(provider.SendResult{
		ProviderRequestID: "req-1", ProviderStatus: domain.ProviderStatusDelivered,
	}, nil).Times(1)
	record, err := f.svc.Send(t.Context(), emailRequest())
	require.NoError(t, err)
	require.Equal(t, domain.ProviderStatusDelivered, record.ProviderStatus)

	// 送达后的失败事件直接写入存储，模拟历史数据
	_, err = f.repo.AppendStatusEvent(t.Context(), domain.DispatchStatusEvent{
		StatusEventID:  "late-failure",
		DispatchID:     record.DispatchID,
		EventType:      domain.StatusEventProviderFailed,
		ProviderStatus: domain.ProviderStatusFailed,
		Attempt:        1,
		CreatedAt:      f.now.Add(time.Minute),
	})
	require.NoError(t, err)
	_, err = f.svc.RetryFailed(t.Context(), admin, record.DispatchID)
	assert.ErrorIs(t, err, errs.ErrDispatchNotRetryable)
}

func TestSendPublishFailureIgnored(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	producer := evtmocks.NewMockStatusEventProducer(ctrl)
	var published []dispatchevt.StatusEvent
	producer.EXPECT().Produce(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, evt dispatchevt.StatusEvent) error {
			published = append(published, evt)
			return errors.New("broker down")
		}).Times(2)
	f := newFixture(t, producer)
	f.email.EXPECT().Send(gomock.Any(), gomock.Any()).Return(sent("req-1"), nil)

	record, err := f.svc.Send(t.Context(), emailRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStatusSent, record.ProviderStatus)
	require.Len(t, published, 2)
	assert.Equal(t, record.DispatchID, published[0].DispatchID)
}
