package jwt

import (
	"context"
	"errors"
	"net/http"

	"gitee.com/flycash/notification-governance/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gotomicro/ego/core/elog"
)

const actorKey = "actor"

var ErrActorNotFound = errors.New("请求中没有操作者")

// Builder 从 Authorization 头解析操作者，sub 为操作者ID，role 为角色，
// entityType/entityId 为操作者代表的市场身份
type Builder struct {
	auth   *JwtAuth
	logger *elog.Component
}

func NewBuilder(auth *JwtAuth) *Builder {
	return &Builder{
		auth:   auth,
		logger: elog.DefaultLogger,
	}
}

func (b *Builder) Build() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if header == "" {
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		claims, err := b.auth.Decode(header)
		if err != nil {
			b.logger.Warn("令牌校验失败", elog.String("path", ctx.FullPath()), elog.FieldErr(err))
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		sub, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)
		entityType, _ := claims["entityType"].(string)
		entityID, _ := claims["entityId"].(string)
		actor := domain.Actor{ID: sub, Role: domain.Role(role), EntityType: entityType, EntityID: entityID}
		if actor.ID == "" || !actor.Role.IsValid() {
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		ctx.Set(actorKey, actor)
		ctx.Request = ctx.Request.WithContext(WithActor(ctx.Request.Context(), actor))
		ctx.Next()
	}
}

type actorCtxKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, error) {
	actor, ok := ctx.Value(actorCtxKey{}).(domain.Actor)
	if !ok {
		return domain.Actor{}, ErrActorNotFound
	}
	return actor, nil
}

// Actor 从 gin 上下文读取中间件解析出的操作者
func Actor(ctx *gin.Context) (domain.Actor, error) {
	v, ok := ctx.Get(actorKey)
	if !ok {
		return domain.Actor{}, ErrActorNotFound
	}
	actor, ok := v.(domain.Actor)
	if !ok {
		return domain.Actor{}, ErrActorNotFound
	}
	return actor, nil
}
