package checkout

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
)

// MaxItemsPerOrder bounds how many product sheets one checkout may bundle.
const MaxItemsPerOrder = 50

// SelectionViolationDetail exposes the data returned to callers when a
// selection validation fails.
type SelectionViolationDetail struct {
	ProductID uuid.UUID `json:"product_id"`
	Reason    string    `json:"reason"`
}

// ValidateSelection ensures the product list for a one-time order is
// non-empty, within the order cap, and free of duplicates and zero IDs.
func ValidateSelection(productIDs []uuid.UUID) error {
	if len(productIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidArgument, "at least one product is required")
	}
	if len(productIDs) > MaxItemsPerOrder {
		return pkgerrors.New(pkgerrors.CodeInvalidArgument, fmt.Sprintf("at most %d products per order", MaxItemsPerOrder))
	}

	var violations []SelectionViolationDetail
	seen := make(map[uuid.UUID]bool, len(productIDs))
	for _, id := range productIDs {
		if id == uuid.Nil {
			violations = append(violations, SelectionViolationDetail{ProductID: id, Reason: "product id is empty"})
			continue
		}
		if seen[id] {
			violations = append(violations, SelectionViolationDetail{ProductID: id, Reason: "duplicate product"})
			continue
		}
		seen[id] = true
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeInvalidArgument, fmt.Sprintf("invalid selection for %d item(s)", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}

// MissingProductsDetail reports IDs requested but absent from the catalog.
type MissingProductsDetail struct {
	ProductIDs []uuid.UUID `json:"product_ids"`
}

// EnsureAllFound compares the requested IDs against the products actually
// loaded and fails when any are missing or unpublished.
func EnsureAllFound(requested []uuid.UUID, found map[uuid.UUID]bool) error {
	var missing []uuid.UUID
	for _, id := range requested {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%d product(s) not found", len(missing))).WithDetails(MissingProductsDetail{
		ProductIDs: missing,
	})
}
