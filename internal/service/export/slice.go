package export

import (
	"cmp"
	"context"
	"slices"
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/repository"
	"github.com/ecodeclub/ekit/slice"
	"golang.org/x/sync/errgroup"
)

// 毫秒精度，固定 UTC
const timeLayout = "2006-01-02T15:04:05.000Z"

// 加载状态历史时的并发上限
const eventLoadConcurrency = 8

// Slice 导出的数据切片，所有标识符都已脱敏
type Slice struct {
	Scope      string        `json:"scope"`
	Filter     SliceFilter   `json:"filter"`
	Page       SlicePage     `json:"page"`
	Bindings   []BindingRow  `json:"bindings"`
	Dispatches []DispatchRow `json:"dispatches"`
}

type SliceFilter struct {
	EventCode string `json:"eventCode,omitempty"`
	Channel   string `json:"channel,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
}

type SlicePage struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

type BindingRow struct {
	BindingID     string            `json:"bindingId"`
	EntityType    string            `json:"entityType"`
	EntityID      string            `json:"entityId"`
	ChannelAppID  string            `json:"channelAppId"`
	ChannelUserID string            `json:"channelUserId"`
	Status        string            `json:"status"`
	Audit         []BindingAuditRow `json:"audit"`
	CreatedAt     string            `json:"createdAt"`
	UpdatedAt     string            `json:"updatedAt"`

	createdAt time.Time
}

// BindingAuditRow 不输出原因，原因是自由文本
type BindingAuditRow struct {
	Actor  string `json:"actor"`
	Role   string `json:"role"`
	Action string `json:"action"`
	At     string `json:"at"`
}

type DispatchRow struct {
	DispatchID          string            `json:"dispatchId"`
	Channel             string            `json:"channel"`
	EventCode           string            `json:"eventCode"`
	Correlation         map[string]string `json:"correlation"`
	RecipientRole       string            `json:"recipientRole"`
	RecipientBindingID  string            `json:"recipientBindingId,omitempty"`
	RecipientUserID     string            `json:"recipientUserId"`
	RecipientEmail      string            `json:"recipientEmail,omitempty"`
	TemplateKey         string            `json:"templateKey"`
	RenderedPayloadHash string            `json:"renderedPayloadHash"`
	RendererVersion     string            `json:"rendererVersion"`
	ForceResend         bool              `json:"forceResend"`
	RetryOfID           string            `json:"retryOfId,omitempty"`
	ProviderStatus      string            `json:"providerStatus"`
	StatusEvents        []StatusEventRow  `json:"statusEvents"`
	CreatedAt           string            `json:"createdAt"`

	createdAt time.Time
}

// StatusEventRow 不输出供应商响应
type StatusEventRow struct {
	EventType         string `json:"eventType"`
	ProviderStatus    string `json:"providerStatus"`
	ProviderRequestID string `json:"providerRequestId,omitempty"`
	ErrorCode         string `json:"errorCode,omitempty"`
	Attempt           int    `json:"attempt"`
	At                string `json:"at"`
}

// extractor 从存储中拉取并脱敏
type extractor struct {
	tenantID   string
	bindings   repository.ChannelBindingRepository
	dispatches repository.DispatchRepository
}

func (e *extractor) extract(ctx context.Context, req Request) (Slice, error) {
	res := Slice{
		Scope:      string(req.Scope),
		Filter:     sliceFilter(req.Filter),
		Page:       SlicePage{Offset: req.Page.Offset, Limit: req.Page.Limit},
		Bindings:   []BindingRow{},
		Dispatches: []DispatchRow{},
	}
	var eg errgroup.Group
	if req.Scope.IncludesBindings() {
		eg.Go(func() error {
			rows, err := e.extractBindings(ctx, req)
			res.Bindings = rows
			return err
		})
	}
	if req.Scope.IncludesDispatches() {
		eg.Go(func() error {
			rows, err := e.extractDispatches(ctx, req)
			res.Dispatches = rows
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return Slice{}, err
	}
	return res, nil
}

func (e *extractor) extractBindings(ctx context.Context, req Request) ([]BindingRow, error) {
	list, err := e.bindings.List(ctx, e.tenantID, req.Filter, req.Page)
	if err != nil {
		return nil, err
	}
	rows := slice.Map(list, func(_ int, b domain.ChannelBinding) BindingRow {
		return BindingRow{
			BindingID:     MaskID(b.BindingID),
			EntityType:    b.EntityType,
			EntityID:      MaskID(b.EntityID),
			ChannelAppID:  MaskTail(b.ChannelAppID),
			ChannelUserID: MaskID(b.ChannelUserID),
			Status:        b.Status.String(),
			Audit: slice.Map(b.Audit, func(_ int, a domain.BindingAuditEntry) BindingAuditRow {
				return BindingAuditRow{
					Actor:  MaskID(a.ActorID),
					Role:   a.Role.String(),
					Action: string(a.Action),
					At:     formatTime(a.At),
				}
			}),
			CreatedAt: formatTime(b.Ctime),
			UpdatedAt: formatTime(b.Utime),
			createdAt: b.Ctime,
		}
	})
	slices.SortFunc(rows, func(a, b BindingRow) int {
		return newestFirst(a.createdAt, b.createdAt, a.BindingID, b.BindingID)
	})
	return rows, nil
}

func (e *extractor) extractDispatches(ctx context.Context, req Request) ([]DispatchRow, error) {
	list, err := e.dispatches.List(ctx, e.tenantID, req.Filter, req.Page)
	if err != nil {
		return nil, err
	}
	events := make([][]domain.DispatchStatusEvent, len(list))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(eventLoadConcurrency)
	for i := range list {
		eg.Go(func() error {
			var err1 error
			events[i], err1 = e.dispatches.ListStatusEvents(egCtx, list[i].DispatchID)
			return err1
		})
	}
	if err = eg.Wait(); err != nil {
		return nil, err
	}

	rows := slice.Map(list, func(i int, d domain.DispatchRecord) DispatchRow {
		correlation := make(map[string]string, len(d.Correlation))
		for k, v := range d.Correlation {
			correlation[k] = MaskID(v)
		}
		return DispatchRow{
			DispatchID:          MaskID(d.DispatchID),
			Channel:             d.Channel.String(),
			EventCode:           d.EventCode,
			Correlation:         correlation,
			RecipientRole:       d.RecipientRole.String(),
			RecipientBindingID:  MaskID(d.RecipientBindingID),
			RecipientUserID:     MaskID(d.RecipientUserID),
			RecipientEmail:      MaskEmail(d.RecipientEmail),
			TemplateKey:         d.TemplateKey,
			RenderedPayloadHash: d.RenderedPayloadHash,
			RendererVersion:     d.RendererVersion,
			ForceResend:         d.ForceResend,
			RetryOfID:           MaskID(d.RetryOfID),
			ProviderStatus:      d.ProviderStatus.String(),
			StatusEvents: slice.Map(events[i], func(_ int, evt domain.DispatchStatusEvent) StatusEventRow {
				return StatusEventRow{
					EventType:         string(evt.EventType),
					ProviderStatus:    evt.ProviderStatus.String(),
					ProviderRequestID: MaskTail(evt.ProviderRequestID),
					ErrorCode:         evt.ErrorCode,
					Attempt:           evt.Attempt,
					At:                formatTime(evt.CreatedAt),
				}
			}),
			CreatedAt: formatTime(d.CreatedAt),
			createdAt: d.CreatedAt,
		}
	})
	slices.SortFunc(rows, func(a, b DispatchRow) int {
		return newestFirst(a.createdAt, b.createdAt, a.DispatchID, b.DispatchID)
	})
	return rows, nil
}

// newestFirst 时间倒序，时间相同按ID升序
func newestFirst(ta, tb time.Time, ida, idb string) int {
	if c := tb.Compare(ta); c != 0 {
		return c
	}
	return cmp.Compare(ida, idb)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func sliceFilter(f domain.ExportFilter) SliceFilter {
	return SliceFilter{
		EventCode: f.EventCode,
		Channel:   f.Channel.String(),
		From:      formatTime(f.From),
		To:        formatTime(f.To),
	}
}
