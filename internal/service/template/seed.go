package template

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gitee.com/flycash/notification-governance/internal/domain"
	"github.com/gotomicro/ego/core/elog"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v2"
)

type seedFile struct {
	Templates []seedEntry `yaml:"templates"`
}

type seedEntry struct {
	EventCode               string   `yaml:"eventCode"`
	Channel                 string   `yaml:"channel"`
	Language                string   `yaml:"language"`
	SchemaVersion           int      `yaml:"schemaVersion"`
	ChannelTemplateID       string   `yaml:"channelTemplateId"`
	RequiredPlaceholders    []string `yaml:"requiredPlaceholders"`
	AllowedLinkPathPatterns []string `yaml:"allowedLinkPathPatterns"`
	Status                  string   `yaml:"status"`
	RenderTemplate          string   `yaml:"renderTemplate"`
}

// LoadSeeds 从 YAML 加载模板。全部条目校验通过后才写入，返回写入的数量
func (r *registry) LoadSeeds(ctx context.Context, src io.Reader) (int, error) {
	var file seedFile
	if err := yaml.NewDecoder(src).Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("解析模板种子文件失败: %w", err)
	}

	entries := make([]domain.TemplateEntry, 0, len(file.Templates))
	var merr *multierror.Error
	for i, s := range file.Templates {
		entry, err := r.prepare(domain.TemplateEntry{
			EventCode:               s.EventCode,
			Channel:                 domain.Channel(s.Channel),
			Language:                s.Language,
			SchemaVersion:           s.SchemaVersion,
			ChannelTemplateID:       s.ChannelTemplateID,
			RequiredPlaceholders:    s.RequiredPlaceholders,
			AllowedLinkPathPatterns: s.AllowedLinkPathPatterns,
			Status:                  domain.TemplateStatus(s.Status),
			RenderTemplate:          s.RenderTemplate,
		})
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("templates[%d] %s/%s: %w", i, s.Channel, s.EventCode, err))
			continue
		}
		entries = append(entries, entry)
	}
	if err := merr.ErrorOrNil(); err != nil {
		return 0, err
	}
	for _, e := range entries {
		if err := r.repo.Upsert(ctx, e); err != nil {
			return 0, err
		}
	}
	r.logger.Info("模板种子加载完成", elog.Int("count", len(entries)))
	return len(entries), nil
}
