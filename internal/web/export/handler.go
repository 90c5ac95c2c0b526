package export

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/errs"
	exportsvc "gitee.com/flycash/notification-governance/internal/service/export"
	"gitee.com/flycash/notification-governance/internal/web"
	"gitee.com/flycash/notification-governance/internal/web/middleware/jwt"
	"github.com/ecodeclub/ekit/slice"
	"github.com/gin-gonic/gin"
)

const (
	HeaderManifestSHA256 = "X-Manifest-SHA256"
	HeaderCanonicalHash  = "X-Canonical-Hash"
	HeaderSignature      = "X-Manifest-Signature"
)

type Handler struct {
	svc exportsvc.Service
}

func NewHandler(svc exportsvc.Service) *Handler {
	return &Handler{svc: svc}
}

// PublicRoutes 公钥用于离线验签，不需要身份
func (h *Handler) PublicRoutes(g *gin.RouterGroup) {
	g.GET("/exports/public-key", h.PublicKey)
}

func (h *Handler) PrivateRoutes(g *gin.RouterGroup) {
	g.POST("/exports", h.Export)
	g.GET("/exports/audit-events", h.ListAuditEvents)
}

func (h *Handler) Export(ctx *gin.Context) {
	actor, err := jwt.Actor(ctx)
	if err != nil {
		web.Error(ctx, fmt.Errorf("%w: %w", errs.ErrActorNotAuthorized, err))
		return
	}
	req, ok := web.Bind[ExportReq](ctx)
	if !ok {
		return
	}
	filter := domain.ExportFilter{
		EventCode: req.EventCode,
		Channel:   domain.Channel(req.Channel),
		From:      req.From,
		To:        req.To,
	}
	if filter.Channel != "" && !filter.Channel.IsValid() {
		web.Error(ctx, fmt.Errorf("%w: channel = %q", errs.ErrInvalidParameter, req.Channel))
		return
	}
	pack, err := h.svc.Export(ctx.Request.Context(), actor, domain.ExportScope(req.Scope), filter,
		domain.Page{Offset: req.Offset, Limit: req.Limit})
	if err != nil {
		web.Error(ctx, err)
		return
	}
	ctx.Header(HeaderManifestSHA256, pack.ManifestSHA256)
	ctx.Header(HeaderCanonicalHash, pack.CanonicalHash)
	if pack.Signature != "" {
		ctx.Header(HeaderSignature, pack.Signature)
	}
	ctx.Header("Content-Disposition", `attachment; filename="audit-export-`+pack.ManifestSHA256[:12]+`.zip"`)
	ctx.Header("Content-Length", strconv.Itoa(len(pack.Zip)))
	ctx.Data(http.StatusOK, "application/zip", pack.Zip)
}

func (h *Handler) ListAuditEvents(ctx *gin.Context) {
	actor, err := jwt.Actor(ctx)
	if err != nil {
		web.Error(ctx, fmt.Errorf("%w: %w", errs.ErrActorNotAuthorized, err))
		return
	}
	offset, err1 := strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	limit, err2 := strconv.Atoi(ctx.DefaultQuery("limit", "0"))
	if err = errors.Join(err1, err2); err != nil {
		web.Error(ctx, fmt.Errorf("%w: %w", errs.ErrInvalidParameter, err))
		return
	}
	events, err := h.svc.ListAuditEvents(ctx.Request.Context(), actor, domain.Page{Offset: offset, Limit: limit})
	if err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, slice.Map(events, func(_ int, e domain.ExportAuditEvent) AuditEvent {
		return newAuditEvent(e)
	}))
}

func (h *Handler) PublicKey(ctx *gin.Context) {
	info, err := h.svc.PublicKey()
	if errors.Is(err, exportsvc.ErrSigningDisabled) {
		web.Error(ctx, fmt.Errorf("%w: %w", errs.ErrNotFound, err))
		return
	}
	if err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, info)
}
