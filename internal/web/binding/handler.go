package binding

import (
	"context"
	"fmt"
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/errs"
	bindingsvc "gitee.com/flycash/notification-governance/internal/service/binding"
	"gitee.com/flycash/notification-governance/internal/web"
	"gitee.com/flycash/notification-governance/internal/web/middleware/jwt"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc bindingsvc.Service
}

func NewHandler(svc bindingsvc.Service) *Handler {
	return &Handler{svc: svc}
}

// PublicRoutes 验证由渠道侧用户完成，不需要操作者身份
func (h *Handler) PublicRoutes(g *gin.RouterGroup) {
	g.POST("/bindings/verify", h.Verify)
}

func (h *Handler) PrivateRoutes(g *gin.RouterGroup) {
	g.POST("/bindings", h.Start)
	g.GET("/bindings/:id", h.Get)
	g.POST("/bindings/:id/suspend", h.transition(h.svc.Suspend))
	g.POST("/bindings/:id/revoke", h.transition(h.svc.Revoke))
	g.POST("/bindings/:id/resume", h.transition(h.svc.Resume))
}

func (h *Handler) Start(ctx *gin.Context) {
	actor, err := jwt.Actor(ctx)
	if err != nil {
		web.Error(ctx, fmt.Errorf("%w: %w", errs.ErrActorNotAuthorized, err))
		return
	}
	req, ok := web.Bind[StartReq](ctx)
	if !ok {
		return
	}
	res, err := h.svc.Start(ctx.Request.Context(), actor, bindingsvc.StartRequest{
		EntityType:   req.EntityType,
		EntityID:     req.EntityID,
		ChannelAppID: req.ChannelAppID,
	})
	if err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, StartResp{
		Binding:   newBinding(res.Binding),
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) Verify(ctx *gin.Context) {
	req, ok := web.Bind[VerifyReq](ctx)
	if !ok {
		return
	}
	b, err := h.svc.Verify(ctx.Request.Context(), bindingsvc.VerifyRequest{
		BindingID:     req.BindingID,
		Token:         req.Token,
		ChannelUserID: req.ChannelUserID,
	})
	if err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, newBinding(b))
}

func (h *Handler) Get(ctx *gin.Context) {
	actor, err := jwt.Actor(ctx)
	if err != nil || !actor.IsAdmin() {
		web.Error(ctx, fmt.Errorf("%w: 只有管理员可以查看绑定", errs.ErrActorNotAuthorized))
		return
	}
	b, err := h.svc.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, newBinding(b))
}

type transitionFunc func(ctx context.Context, actor domain.Actor, bindingID, reason string) (domain.ChannelBinding, error)

func (h *Handler) transition(fn transitionFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		actor, err := jwt.Actor(ctx)
		if err != nil {
			web.Error(ctx, fmt.Errorf("%w: %w", errs.ErrActorNotAuthorized, err))
			return
		}
		req, ok := web.Bind[TransitionReq](ctx)
		if !ok {
			return
		}
		b, err := fn(ctx.Request.Context(), actor, ctx.Param("id"), req.Reason)
		if err != nil {
			web.Error(ctx, err)
			return
		}
		web.OK(ctx, newBinding(b))
	}
}
