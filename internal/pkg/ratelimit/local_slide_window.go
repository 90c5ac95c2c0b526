package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

var _ Limiter = (*LocalSlidingWindowLimiter)(nil)

// LocalSlidingWindowLimiter 进程内的滑动窗口限流器，单实例部署或测试时使用。
// 每个键的窗口保存在 go-cache 中，空闲超过一个窗口后自动清理
type LocalSlidingWindowLimiter struct {
	interval time.Duration
	rate     int
	windows  *cache.Cache
	mu       sync.Mutex
	now      func() time.Time
}

type window struct {
	hits []time.Time
}

func NewLocalSlidingWindowLimiter(interval time.Duration, rate int) *LocalSlidingWindowLimiter {
	return &LocalSlidingWindowLimiter{
		interval: interval,
		rate:     rate,
		windows:  cache.New(interval, 2*interval),
		now:      time.Now,
	}
}

func (l *LocalSlidingWindowLimiter) Limit(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := &window{}
	if v, ok := l.windows.Get(key); ok {
		w = v.(*window)
	}

	start := now.Add(-l.interval)
	kept := w.hits[:0]
	for _, h := range w.hits {
		if h.After(start) {
			kept = append(kept, h)
		}
	}
	w.hits = kept

	d := Decision{Limit: l.rate, Window: l.interval}
	if len(w.hits) >= l.rate {
		d.RetryAfter = max(w.hits[0].Add(l.interval).Sub(now), 0)
		l.windows.Set(key, w, l.interval)
		return d, nil
	}
	w.hits = append(w.hits, now)
	l.windows.Set(key, w, l.interval)
	d.Allowed = true
	d.Remaining = l.rate - len(w.hits)
	return d, nil
}
