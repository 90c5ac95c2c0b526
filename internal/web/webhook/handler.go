package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/errs"
	dispatchsvc "gitee.com/flycash/notification-governance/internal/service/dispatch"
	"gitee.com/flycash/notification-governance/internal/web"
	"github.com/gin-gonic/gin"
	"github.com/gotomicro/ego/core/elog"
)

const (
	HeaderSignature = "X-Signature"
	// maxBodyBytes 回调体上限
	maxBodyBytes = 64 << 10
)

type CallbackReq struct {
	DispatchID        string         `json:"dispatchId"`
	ProviderRequestID string         `json:"providerRequestId"`
	Status            string         `json:"status"`
	ErrorCode         string         `json:"errorCode"`
	Response          map[string]any `json:"response"`
}

// Handler 接收供应商的投递回执。签名是请求体的 HMAC-SHA256 十六进制
type Handler struct {
	svc    dispatchsvc.Service
	secret []byte
	logger *elog.Component
}

func NewHandler(svc dispatchsvc.Service, secret string) *Handler {
	return &Handler{
		svc:    svc,
		secret: []byte(secret),
		logger: elog.DefaultLogger.With(elog.String("component", "webhook")),
	}
}

func (h *Handler) PublicRoutes(g *gin.RouterGroup) {
	g.POST("/webhooks/provider", h.Callback)
}

func (h *Handler) Callback(ctx *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxBodyBytes+1))
	if err != nil || len(body) > maxBodyBytes {
		web.Error(ctx, fmt.Errorf("%w: 回调体读取失败", errs.ErrInvalidParameter))
		return
	}
	if !h.verify(body, ctx.GetHeader(HeaderSignature)) {
		h.logger.Warn("回调签名校验失败", elog.String("ip", ctx.ClientIP()))
		web.Error(ctx, fmt.Errorf("%w: 签名不匹配", errs.ErrInvalidCallback))
		return
	}
	var req CallbackReq
	if err = json.Unmarshal(body, &req); err != nil {
		web.Error(ctx, fmt.Errorf("%w: %w", errs.ErrInvalidCallback, err))
		return
	}
	record, err := h.svc.HandleProviderCallback(ctx.Request.Context(), dispatchsvc.Callback{
		DispatchID:        req.DispatchID,
		ProviderRequestID: req.ProviderRequestID,
		ProviderStatus:    domain.ProviderStatus(req.Status),
		ErrorCode:         req.ErrorCode,
		Response:          req.Response,
	})
	if err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, map[string]string{
		"dispatchId":     record.DispatchID,
		"providerStatus": record.ProviderStatus.String(),
	})
}

// verify 未配置密钥时拒绝所有回调
func (h *Handler) verify(body []byte, signature string) bool {
	if len(h.secret) == 0 || signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(got, Sign(h.secret, body))
}

// Sign 计算回调签名
func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}
