package template

import (
	"net/http"
	"testing"

	"gitee.com/flycash/notification-governance/internal/service/taxonomy"
	templatesvc "gitee.com/flycash/notification-governance/internal/service/template"
	"gitee.com/flycash/notification-governance/internal/test"
	"gitee.com/flycash/notification-governance/internal/test/memrepo"
	"gitee.com/flycash/notification-governance/internal/web/middleware/jwt"
	"github.com/ecodeclub/ekit/iox"
	jwtv4 "github.com/golang-jwt/jwt/v4"
	"github.com/gotomicro/ego/core/econf"
	"github.com/gotomicro/ego/server/egin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jwtKey = "template-handler-test"

func newServer() *egin.Component {
	registry := templatesvc.NewRegistry(memrepo.NewTemplateRepository(), taxonomy.NewRegistry(),
		templatesvc.Config{Production: false})
	econf.Set("server", map[string]any{"contextTimeout": "1s"})
	server := egin.Load("server").Build()
	private := server.Group("/api/v1")
	private.Use(jwt.NewBuilder(jwt.NewJwtAuth(jwtKey)).Build())
	NewHandler(registry).PrivateRoutes(private)
	return server
}

func do[T any](t *testing.T, server *egin.Component, method, path, role string, body any) *test.JSONResponseRecorder[T] {
	t.Helper()
	req, err := http.NewRequest(method, path, iox.NewJSONReader(body))
	require.NoError(t, err)
	req.Header.Set("content-type", "application/json")
	tk, err := jwt.NewJwtAuth(jwtKey).Encode(jwtv4.MapClaims{"sub": role + "-1", "role": role})
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tk)
	recorder := test.NewJSONResponseRecorder[T]()
	server.ServeHTTP(recorder, req)
	return recorder
}

func orderCreated() UpsertReq {
	return UpsertReq{
		EventCode:               "ORDER_CREATED",
		Channel:                 "EMAIL",
		Language:                "en",
		SchemaVersion:           1,
		ChannelTemplateID:       "tpl-order",
		RequiredPlaceholders:    []string{"orderUrl", "orderId"},
		AllowedLinkPathPatterns: []string{"/orders/*"},
		Status:                  "LOCKED",
		RenderTemplate:          "Order {{orderId}} created: {{orderUrl}}",
	}
}

func TestHandler_UpsertAndGet(t *testing.T) {
	server := newServer()

	upserted := do[Template](t, server, http.MethodPut, "/api/v1/templates", "admin", orderCreated())
	require.Equal(t, http.StatusOK, upserted.Code)
	tpl := upserted.MustScan().Data
	assert.Equal(t, "EMAIL:ORDER_CREATED:en", tpl.Key)
	assert.Equal(t, []string{"orderId", "orderUrl"}, tpl.RequiredPlaceholders)
	assert.Len(t, tpl.ContractHash, 64)

	got := do[Template](t, server, http.MethodGet, "/api/v1/templates/EMAIL/ORDER_CREATED/en", "admin", nil)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, tpl.ContractHash, got.MustScan().Data.ContractHash)

	listed := do[[]Template](t, server, http.MethodGet, "/api/v1/templates/EMAIL", "admin", nil)
	require.Equal(t, http.StatusOK, listed.Code)
	assert.Len(t, listed.MustScan().Data, 1)

	empty := do[[]Template](t, server, http.MethodGet, "/api/v1/templates/IM", "admin", nil)
	require.Equal(t, http.StatusOK, empty.Code)
	assert.Empty(t, empty.MustScan().Data)
}

func TestHandler_Rejected(t *testing.T) {
	server := newServer()
	mismatch := orderCreated()
	mismatch.RenderTemplate = "Order {{orderId}}"

	testCases := []struct {
		name     string
		method   string
		path     string
		role     string
		body     any
		wantHTTP int
		wantCode string
	}{
		{
			name:     "非管理员",
			method:   http.MethodPut,
			path:     "/api/v1/templates",
			role:     "buyer",
			body:     orderCreated(),
			wantHTTP: http.StatusForbidden,
			wantCode: "ACTOR_NOT_AUTHORIZED",
		},
		{
			name:     "占位符不一致",
			method:   http.MethodPut,
			path:     "/api/v1/templates",
			role:     "admin",
			body:     mismatch,
			wantHTTP: http.StatusUnprocessableEntity,
			wantCode: "PLACEHOLDER_MISMATCH",
		},
		{
			name:     "模板不存在",
			method:   http.MethodGet,
			path:     "/api/v1/templates/EMAIL/ORDER_CREATED/zh",
			role:     "admin",
			wantHTTP: http.StatusNotFound,
			wantCode: "TEMPLATE_NOT_FOUND",
		},
		{
			name:     "渠道非法",
			method:   http.MethodGet,
			path:     "/api/v1/templates/SMS",
			role:     "admin",
			wantHTTP: http.StatusBadRequest,
			wantCode: "INVALID_PARAMETER",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := do[any](t, server, tc.method, tc.path, tc.role, tc.body)
			assert.Equal(t, tc.wantHTTP, recorder.Code)
			assert.Equal(t, tc.wantCode, recorder.MustScan().Code)
		})
	}
}
