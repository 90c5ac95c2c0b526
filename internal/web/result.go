package web

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"gitee.com/flycash/notification-governance/internal/errs"
	"github.com/gin-gonic/gin"
	"github.com/gotomicro/ego/core/elog"
)

const CodeOK = "OK"

// Result 统一的响应结构，Code 为稳定的错误码
type Result struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func OK(ctx *gin.Context, data any) {
	ctx.JSON(http.StatusOK, Result{Code: CodeOK, Data: data})
}

// Error 按错误分类映射状态码。内部错误不向调用方暴露细节
func Error(ctx *gin.Context, err error) {
	status := errs.HTTPStatus(err)
	code := errs.Code(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && code == "INTERNAL" {
		elog.DefaultLogger.Error("请求处理失败",
			elog.String("path", ctx.FullPath()),
			elog.FieldErr(err))
		msg = "系统错误"
	}
	var rle *errs.RateLimitError
	if errors.As(err, &rle) {
		ctx.Header("Retry-After", strconv.Itoa(int(math.Ceil(rle.RetryAfter.Seconds()))))
		ctx.JSON(status, Result{Code: code, Msg: msg, Data: map[string]any{
			"limit":             rle.Limit,
			"windowSeconds":     int(rle.Window.Seconds()),
			"retryAfterSeconds": int(math.Ceil(rle.RetryAfter.Seconds())),
		}})
		return
	}
	ctx.JSON(status, Result{Code: code, Msg: msg})
}

// Bind 解析 JSON 请求体，失败时直接写出参数错误
func Bind[Req any](ctx *gin.Context) (Req, bool) {
	var req Req
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, fmt.Errorf("%w: %w", errs.ErrInvalidParameter, err))
		return req, false
	}
	return req, true
}
