package dispatch

import (
	"fmt"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/errs"
	dispatchsvc "gitee.com/flycash/notification-governance/internal/service/dispatch"
	"gitee.com/flycash/notification-governance/internal/web"
	"gitee.com/flycash/notification-governance/internal/web/middleware/jwt"
	"github.com/ecodeclub/ekit/slice"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc dispatchsvc.Service
}

func NewHandler(svc dispatchsvc.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) PrivateRoutes(g *gin.RouterGroup) {
	g.POST("/dispatches", h.Send)
	g.GET("/dispatches/:id", h.Get)
	g.POST("/dispatches/:id/retry", h.Retry)
}

func (h *Handler) Send(ctx *gin.Context) {
	actor, err := jwt.Actor(ctx)
	if err != nil {
		web.Error(ctx, fmt.Errorf("%w: %w", errs.ErrActorNotAuthorized, err))
		return
	}
	req, ok := web.Bind[SendReq](ctx)
	if !ok {
		return
	}
	record, err := h.svc.Send(ctx.Request.Context(), dispatchsvc.SendRequest{
		Channel:   domain.Channel(req.Channel),
		EventCode: req.EventCode,
		Recipient: domain.Recipient{
			Role:       domain.Role(req.Recipient.Role),
			UserID:     req.Recipient.UserID,
			Email:      req.Recipient.Email,
			EntityType: req.Recipient.EntityType,
			EntityID:   req.Recipient.EntityID,
		},
		EntityRefs:   req.EntityRefs,
		Correlation:  req.Correlation,
		Placeholders: req.Placeholders,
		Language:     req.Language,
		Actor:        actor,
		ForceResend:  req.ForceResend,
		RetryOfID:    req.RetryOfID,
	})
	if err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, newDispatch(record))
}

func (h *Handler) Get(ctx *gin.Context) {
	actor, err := jwt.Actor(ctx)
	if err != nil || !actor.IsAdmin() {
		web.Error(ctx, fmt.Errorf("%w: 只有管理员可以查看发送记录", errs.ErrActorNotAuthorized))
		return
	}
	detail, err := h.svc.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, DetailResp{
		Dispatch: newDispatch(detail.Record),
		Events: slice.Map(detail.Events, func(_ int, e domain.DispatchStatusEvent) StatusEvent {
			return newStatusEvent(e)
		}),
	})
}

func (h *Handler) Retry(ctx *gin.Context) {
	actor, err := jwt.Actor(ctx)
	if err != nil {
		web.Error(ctx, fmt.Errorf("%w: %w", errs.ErrActorNotAuthorized, err))
		return
	}
	record, err := h.svc.RetryFailed(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, newDispatch(record))
}
