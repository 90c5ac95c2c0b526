// Copyright 2023 ecodeclub
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retry

import (
	"fmt"
	"time"

	"github.com/ecodeclub/ekit/retry"
)

const (
	TypeFixed       = "fixed"
	TypeExponential = "exponential"
)

type Config struct {
	Type               string                    `json:"type" yaml:"type"` // 重试策略
	FixedInterval      *FixedIntervalConfig      `json:"fixedInterval" yaml:"fixedInterval"`
	ExponentialBackoff *ExponentialBackoffConfig `json:"exponentialBackoff" yaml:"exponentialBackoff"`
}

type ExponentialBackoffConfig struct {
	// 初始重试间隔 单位ms
	InitialInterval int `json:"initialInterval" yaml:"initialInterval"`
	// 最大重试间隔 单位ms
	MaxInterval int `json:"maxInterval" yaml:"maxInterval"`
	// 最大重试次数
	MaxRetries int32 `json:"maxRetries" yaml:"maxRetries"`
}

type FixedIntervalConfig struct {
	MaxRetries int32 `json:"maxRetries" yaml:"maxRetries"`
	Interval   int   `json:"interval" yaml:"interval"`
}

// DefaultConfig 供应商调用默认的重试策略：首次失败后最多再试 2 次，总共 3 次，间隔封顶 2 秒
func DefaultConfig() Config {
	const (
		initialInterval = 200
		maxInterval     = 2000
		maxRetries      = 2
	)
	return Config{
		Type: TypeExponential,
		ExponentialBackoff: &ExponentialBackoffConfig{
			InitialInterval: initialInterval,
			MaxInterval:     maxInterval,
			MaxRetries:      maxRetries,
		},
	}
}

// NewRetry 每次调用都返回新的策略实例，策略本身有状态，不能在请求之间共享
func NewRetry(cfg Config) (retry.Strategy, error) {
	// 根据 config 中的字段来检测
	switch cfg.Type {
	case TypeFixed:
		if cfg.FixedInterval == nil {
			return nil, fmt.Errorf("缺少 fixedInterval 配置")
		}
		return retry.NewFixedIntervalRetryStrategy(msToDuration(cfg.FixedInterval.Interval), cfg.FixedInterval.MaxRetries)
	case TypeExponential:
		if cfg.ExponentialBackoff == nil {
			return nil, fmt.Errorf("缺少 exponentialBackoff 配置")
		}
		return retry.NewExponentialBackoffRetryStrategy(msToDuration(cfg.ExponentialBackoff.InitialInterval), msToDuration(cfg.ExponentialBackoff.MaxInterval), cfg.ExponentialBackoff.MaxRetries)
	default:
		return nil, fmt.Errorf("unknown retry type: %s", cfg.Type)
	}
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
