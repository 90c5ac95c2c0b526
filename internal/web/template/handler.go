package template

import (
	"fmt"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/errs"
	templatesvc "gitee.com/flycash/notification-governance/internal/service/template"
	"gitee.com/flycash/notification-governance/internal/web"
	"gitee.com/flycash/notification-governance/internal/web/middleware/jwt"
	"github.com/ecodeclub/ekit/slice"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	registry templatesvc.Registry
}

func NewHandler(registry templatesvc.Registry) *Handler {
	return &Handler{registry: registry}
}

// PrivateRoutes 模板管理只对管理员开放
func (h *Handler) PrivateRoutes(g *gin.RouterGroup) {
	g.PUT("/templates", h.admin(h.Upsert))
	g.GET("/templates/:channel", h.admin(h.List))
	g.GET("/templates/:channel/:eventCode/:language", h.admin(h.Get))
}

func (h *Handler) admin(next gin.HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		actor, err := jwt.Actor(ctx)
		if err != nil || !actor.IsAdmin() {
			web.Error(ctx, fmt.Errorf("%w: 只有管理员可以管理模板", errs.ErrActorNotAuthorized))
			return
		}
		next(ctx)
	}
}

func (h *Handler) Upsert(ctx *gin.Context) {
	req, ok := web.Bind[UpsertReq](ctx)
	if !ok {
		return
	}
	entry, err := h.registry.Upsert(ctx.Request.Context(), req.toDomain())
	if err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, newTemplate(entry))
}

func (h *Handler) Get(ctx *gin.Context) {
	entry, err := h.registry.Resolve(ctx.Request.Context(),
		domain.Channel(ctx.Param("channel")), ctx.Param("eventCode"), ctx.Param("language"))
	if err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, newTemplate(entry))
}

func (h *Handler) List(ctx *gin.Context) {
	channel := domain.Channel(ctx.Param("channel"))
	if !channel.IsValid() {
		web.Error(ctx, fmt.Errorf("%w: channel = %q", errs.ErrInvalidParameter, channel))
		return
	}
	entries, err := h.registry.List(ctx.Request.Context(), channel)
	if err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, slice.Map(entries, func(_ int, e domain.TemplateEntry) Template {
		return newTemplate(e)
	}))
}
