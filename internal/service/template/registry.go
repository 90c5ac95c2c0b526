package template

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/errs"
	"gitee.com/flycash/notification-governance/internal/repository"
	"gitee.com/flycash/notification-governance/internal/service/taxonomy"
	"github.com/gotomicro/ego/core/elog"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/singleflight"
)

type Config struct {
	// Production 生产环境只能使用 LOCKED/APPROVED 模板
	Production bool
}

// Registry 模板注册表
type Registry interface {
	// Upsert 校验契约并重算 ContractHash 后保存
	Upsert(ctx context.Context, entry domain.TemplateEntry) (domain.TemplateEntry, error)
	// Resolve 返回当前环境可用的模板
	Resolve(ctx context.Context, channel domain.Channel, eventCode, language string) (domain.TemplateEntry, error)
	List(ctx context.Context, channel domain.Channel) ([]domain.TemplateEntry, error)
	// LoadSeeds 从 YAML 种子文件批量加载，任一条目非法则全部不写入
	LoadSeeds(ctx context.Context, src io.Reader) (int, error)
}

type registry struct {
	repo     repository.TemplateRepository
	taxonomy *taxonomy.Registry
	cfg      Config
	group    singleflight.Group
	now      func() time.Time
	logger   *elog.Component
}

func NewRegistry(repo repository.TemplateRepository, tax *taxonomy.Registry, cfg Config) Registry {
	return &registry{
		repo:     repo,
		taxonomy: tax,
		cfg:      cfg,
		now:      time.Now,
		logger:   elog.DefaultLogger.With(elog.String("component", "template")),
	}
}

func (r *registry) Upsert(ctx context.Context, entry domain.TemplateEntry) (domain.TemplateEntry, error) {
	entry, err := r.prepare(entry)
	if err != nil {
		return domain.TemplateEntry{}, err
	}
	if err = r.repo.Upsert(ctx, entry); err != nil {
		return domain.TemplateEntry{}, err
	}
	r.logger.Info("模板已保存",
		elog.String("templateKey", entry.Key()),
		elog.String("status", entry.Status.String()),
		elog.String("contractHash", entry.ContractHash))
	return entry, nil
}

// prepare 规范化并校验条目，不落库
func (r *registry) prepare(entry domain.TemplateEntry) (domain.TemplateEntry, error) {
	entry.EventCode = strings.TrimSpace(entry.EventCode)
	entry.Language = strings.TrimSpace(entry.Language)
	entry.ChannelTemplateID = strings.TrimSpace(entry.ChannelTemplateID)
	entry.RequiredPlaceholders = normalizeSet(entry.RequiredPlaceholders)
	entry.AllowedLinkPathPatterns = normalizeSet(entry.AllowedLinkPathPatterns)

	if !entry.Channel.IsValid() {
		return domain.TemplateEntry{}, fmt.Errorf("%w: channel=%q", errs.ErrInvalidTemplateEntry, entry.Channel)
	}
	if entry.Language == "" || entry.SchemaVersion <= 0 || entry.RenderTemplate == "" {
		return domain.TemplateEntry{}, fmt.Errorf("%w: language, schemaVersion 与 renderTemplate 必填", errs.ErrInvalidTemplateEntry)
	}
	if !entry.Status.IsValidFor(entry.Channel) {
		return domain.TemplateEntry{}, fmt.Errorf("%w: channel=%s status=%s", errs.ErrInvalidTemplateEntry, entry.Channel, entry.Status)
	}
	def, ok := r.taxonomy.Lookup(entry.Channel, entry.EventCode)
	if !ok {
		return domain.TemplateEntry{}, fmt.Errorf("%w: channel=%s eventCode=%s", errs.ErrUnknownEventCode, entry.Channel, entry.EventCode)
	}

	var merr *multierror.Error
	if err := ValidateContract(entry.RenderTemplate, entry.RequiredPlaceholders); err != nil {
		merr = multierror.Append(merr, err)
	}
	for _, name := range def.RequiredPlaceholders {
		if !slices.Contains(entry.RequiredPlaceholders, name) {
			merr = multierror.Append(merr, fmt.Errorf("%w: 事件 %s 要求占位符 %s", errs.ErrPlaceholderMismatch, def.EventCode, name))
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		r.logger.Warn("模板契约校验失败", elog.String("templateKey", entry.Key()), elog.FieldErr(err))
		return domain.TemplateEntry{}, err
	}

	contractHash, err := ContractHash(entry)
	if err != nil {
		return domain.TemplateEntry{}, err
	}
	entry.ContractHash = contractHash
	entry.UpdatedAt = r.now().UTC()
	return entry, nil
}

func (r *registry) Resolve(ctx context.Context, channel domain.Channel, eventCode, language string) (domain.TemplateEntry, error) {
	key := domain.TemplateKey(channel, eventCode, language)
	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.repo.Find(ctx, channel, eventCode, language)
	})
	if errors.Is(err, errs.ErrNotFound) {
		return domain.TemplateEntry{}, fmt.Errorf("%w: %s", errs.ErrTemplateNotFound, key)
	}
	if err != nil {
		return domain.TemplateEntry{}, err
	}
	entry := v.(domain.TemplateEntry)
	if !entry.Status.UsableIn(r.cfg.Production) {
		return domain.TemplateEntry{}, fmt.Errorf("%w: %s status=%s", errs.ErrTemplateNotUsable, key, entry.Status)
	}
	// 存储中的条目被绕过注册表修改过
	want, err := ContractHash(entry)
	if err != nil {
		return domain.TemplateEntry{}, err
	}
	if want != entry.ContractHash {
		r.logger.Error("模板契约哈希不一致", elog.String("templateKey", key))
		return domain.TemplateEntry{}, fmt.Errorf("%w: %s 契约哈希不一致", errs.ErrInvalidTemplateEntry, key)
	}
	return entry, nil
}

func (r *registry) List(ctx context.Context, channel domain.Channel) ([]domain.TemplateEntry, error) {
	if !channel.IsValid() {
		return nil, fmt.Errorf("%w: channel=%q", errs.ErrInvalidParameter, channel)
	}
	return r.repo.ListByChannel(ctx, channel)
}
