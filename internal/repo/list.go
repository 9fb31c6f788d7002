package repo

import (
	"context"

	"github.com/pharmadata/pharmadata-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Scope narrows or orders a paginated query.
type Scope func(*gorm.DB) *gorm.DB

// Page bundles one page of rows with its pagination envelope.
type Page[T any] struct {
	Items    []T
	Envelope pagination.Envelope
}

// ListPage is the one paginated query every list endpoint shares: count the
// rows matching the scopes, then fetch the requested offset/limit window.
func ListPage[T any](ctx context.Context, db *gorm.DB, params pagination.Params, scopes ...Scope) (Page[T], error) {
	params = params.Normalize()

	var model T
	query := db.WithContext(ctx).Model(&model)
	for _, s := range scopes {
		query = s(query)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return Page[T]{}, err
	}

	var items []T
	err := query.Session(&gorm.Session{}).
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&items).Error
	if err != nil {
		return Page[T]{}, err
	}

	return Page[T]{Items: items, Envelope: pagination.BuildEnvelope(params, total)}, nil
}
