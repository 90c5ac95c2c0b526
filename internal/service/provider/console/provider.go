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

package console

import (
	"context"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/service/provider"
	"github.com/gofrs/uuid"
	"github.com/gotomicro/ego/core/elog"
)

// Provider 开发模式下只输出到日志，不真正发送
type Provider struct {
	logger *elog.Component
}

func NewProvider() *Provider {
	return &Provider{
		logger: elog.DefaultLogger,
	}
}

func (p *Provider) Send(_ context.Context, req provider.SendRequest) (provider.SendResult, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return provider.SendResult{}, err
	}
	p.logger.Info("发送通知",
		elog.String("channel", req.Channel.String()),
		elog.String("dispatchId", req.DispatchID),
		elog.String("templateId", req.TemplateID),
		elog.Int("payloadLength", len(req.Payload)))
	return provider.SendResult{
		ProviderRequestID: "console-" + id.String(),
		ProviderStatus:    domain.ProviderStatusSent,
		RedactedResponse:  map[string]any{"mode": "dev"},
	}, nil
}
