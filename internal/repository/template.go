package repository

import (
	"context"
	"errors"

	"gitee.com/flycash/notification-governance/internal/domain"
	pkgdao "gitee.com/flycash/notification-governance/internal/pkg/dao"
	"gitee.com/flycash/notification-governance/internal/repository/cache"
	"gitee.com/flycash/notification-governance/internal/repository/dao"
	"github.com/gotomicro/ego/core/elog"
)

// TemplateRepository 模板注册表仓库，读走缓存
type TemplateRepository interface {
	Upsert(ctx context.Context, entry domain.TemplateEntry) error
	// Find 不存在时返回 errs.ErrNotFound
	Find(ctx context.Context, channel domain.Channel, eventCode, language string) (domain.TemplateEntry, error)
	ListByChannel(ctx context.Context, channel domain.Channel) ([]domain.TemplateEntry, error)
}

type templateRepository struct {
	dao    dao.TemplateEntryDAO
	cache  cache.TemplateCache
	logger *elog.Component
}

func NewTemplateRepository(d dao.TemplateEntryDAO, c cache.TemplateCache) TemplateRepository {
	return &templateRepository{
		dao:    d,
		cache:  c,
		logger: elog.DefaultLogger,
	}
}

func (r *templateRepository) Upsert(ctx context.Context, entry domain.TemplateEntry) error {
	entity, err := r.toEntity(entry)
	if err != nil {
		return err
	}
	if err = r.dao.Upsert(ctx, entity); err != nil {
		return err
	}
	if err = r.cache.Del(ctx, entry.Key()); err != nil {
		r.logger.Warn("删除模板缓存失败", elog.String("key", entry.Key()), elog.FieldErr(err))
	}
	return nil
}

func (r *templateRepository) Find(ctx context.Context, channel domain.Channel, eventCode, language string) (domain.TemplateEntry, error) {
	key := domain.TemplateKey(channel, eventCode, language)
	entry, err := r.cache.Get(ctx, key)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, cache.ErrKeyNotFound) {
		r.logger.Warn("读取模板缓存失败", elog.String("key", key), elog.FieldErr(err))
	}

	entity, err := r.dao.Find(ctx, channel.String(), eventCode, language)
	if err != nil {
		return domain.TemplateEntry{}, err
	}
	entry, err = r.toDomain(entity)
	if err != nil {
		return domain.TemplateEntry{}, err
	}
	if err = r.cache.Set(ctx, entry); err != nil {
		r.logger.Warn("写入模板缓存失败", elog.String("key", key), elog.FieldErr(err))
	}
	return entry, nil
}

func (r *templateRepository) ListByChannel(ctx context.Context, channel domain.Channel) ([]domain.TemplateEntry, error) {
	entities, err := r.dao.ListByChannel(ctx, channel.String())
	if err != nil {
		return nil, err
	}
	res := make([]domain.TemplateEntry, 0, len(entities))
	for _, e := range entities {
		entry, err1 := r.toDomain(e)
		if err1 != nil {
			return nil, err1
		}
		res = append(res, entry)
	}
	return res, nil
}

func (r *templateRepository) toEntity(e domain.TemplateEntry) (dao.TemplateEntry, error) {
	placeholders, err := pkgdao.NewJSON(e.RequiredPlaceholders)
	if err != nil {
		return dao.TemplateEntry{}, err
	}
	patterns, err := pkgdao.NewJSON(e.AllowedLinkPathPatterns)
	if err != nil {
		return dao.TemplateEntry{}, err
	}
	return dao.TemplateEntry{
		Channel:                 e.Channel.String(),
		EventCode:               e.EventCode,
		Language:                e.Language,
		SchemaVersion:           e.SchemaVersion,
		ChannelTemplateID:       e.ChannelTemplateID,
		RequiredPlaceholders:    placeholders,
		AllowedLinkPathPatterns: patterns,
		Status:                  e.Status.String(),
		RenderTemplate:          e.RenderTemplate,
		ContractHash:            e.ContractHash,
	}, nil
}

func (r *templateRepository) toDomain(e dao.TemplateEntry) (domain.TemplateEntry, error) {
	res := domain.TemplateEntry{
		EventCode:         e.EventCode,
		Channel:           domain.Channel(e.Channel),
		Language:          e.Language,
		SchemaVersion:     e.SchemaVersion,
		ChannelTemplateID: e.ChannelTemplateID,
		Status:            domain.TemplateStatus(e.Status),
		RenderTemplate:    e.RenderTemplate,
		ContractHash:      e.ContractHash,
		UpdatedAt:         fromMillis(e.Utime),
	}
	if err := e.RequiredPlaceholders.Decode(&res.RequiredPlaceholders); err != nil {
		return domain.TemplateEntry{}, err
	}
	if err := e.AllowedLinkPathPatterns.Decode(&res.AllowedLinkPathPatterns); err != nil {
		return domain.TemplateEntry{}, err
	}
	return res, nil
}
