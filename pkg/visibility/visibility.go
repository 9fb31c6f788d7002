package visibility

import (
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
)

// ProductVisibilityInput drives the shared visibility checks for
// consumer-facing catalog queries.
type ProductVisibilityInput struct {
	Product *models.Product
	// IncludeUnpublished is set for admin reads, which see drafts.
	IncludeUnpublished bool
}

// EnsureProductVisible enforces canonical rules so unpublished sheets never
// leak through public queries. Unpublished products answer NotFound rather
// than Forbidden so their existence stays hidden.
func EnsureProductVisible(input ProductVisibilityInput) error {
	if input.Product == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if input.Product.Published {
		return nil
	}
	if input.IncludeUnpublished {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}
