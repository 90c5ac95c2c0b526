package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Builder struct {
	apiDurationHistogram *prometheus.HistogramVec
}

// New reg 为 nil 时使用默认的 Registerer
func New(reg prometheus.Registerer) *Builder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_handling_seconds",
			Help:    "Histogram of response latency (seconds) of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	if err := reg.Register(histogram); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(err)
		}
		histogram = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	return &Builder{apiDurationHistogram: histogram}
}

func (b *Builder) Build() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		startTime := time.Now()
		ctx.Next()

		// 未匹配的路由不按原始路径打点，避免标签爆炸
		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		b.apiDurationHistogram.WithLabelValues(
			ctx.Request.Method,
			route,
			strconv.Itoa(ctx.Writer.Status()),
		).Observe(time.Since(startTime).Seconds())
	}
}
