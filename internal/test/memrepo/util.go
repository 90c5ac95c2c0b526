package memrepo

import (
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
)

func inRange(t time.Time, filter domain.ExportFilter) bool {
	if !filter.From.IsZero() && t.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && !t.Before(filter.To) {
		return false
	}
	return true
}

func paginate[T any](src []T, page domain.Page) []T {
	if page.Offset >= len(src) {
		return []T{}
	}
	src = src[page.Offset:]
	if page.Limit > 0 && page.Limit < len(src) {
		src = src[:page.Limit]
	}
	return src
}
