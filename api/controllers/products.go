package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pharmadata/pharmadata-backend/api/middleware"
	"github.com/pharmadata/pharmadata-backend/api/responses"
	"github.com/pharmadata/pharmadata-backend/api/validators"
	"github.com/pharmadata/pharmadata-backend/internal/products"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
)

type createProductRequest struct {
	CIP              string   `json:"cip" validate:"required,len=13"`
	Name             string   `json:"name" validate:"required,max=300"`
	Laboratory       string   `json:"laboratory" validate:"required,max=200"`
	Categories       []string `json:"categories" validate:"max=20"`
	ActiveSubstances []string `json:"active_substances" validate:"max=20"`
	Description      *string  `json:"description"`
	Dosage           *string  `json:"dosage"`
	PackSize         *string  `json:"pack_size"`
	PriceCents       *int64   `json:"price_cents"`
	Reimbursement    *string  `json:"reimbursement"`
	Published        bool     `json:"published"`
}

type updateProductRequest struct {
	Name             *string  `json:"name"`
	Laboratory       *string  `json:"laboratory"`
	Categories       []string `json:"categories"`
	ActiveSubstances []string `json:"active_substances"`
	Description      *string  `json:"description"`
	Dosage           *string  `json:"dosage"`
	PackSize         *string  `json:"pack_size"`
	PriceCents       *int64   `json:"price_cents"`
	Reimbursement    *string  `json:"reimbursement"`
}

type publishProductRequest struct {
	Published bool `json:"published"`
}

// ProductCreate adds a catalog row. Admin only.
func ProductCreate(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createProductRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Create(r.Context(), products.CreateInput{
			CIP:              req.CIP,
			Name:             req.Name,
			Laboratory:       req.Laboratory,
			Categories:       req.Categories,
			ActiveSubstances: req.ActiveSubstances,
			Description:      req.Description,
			Dosage:           req.Dosage,
			PackSize:         req.PackSize,
			PriceCents:       req.PriceCents,
			Reimbursement:    req.Reimbursement,
			Published:        req.Published,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// ProductUpdate applies a partial update. Admin only.
func ProductUpdate(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateProductRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Update(r.Context(), id, products.UpdateInput{
			Name:             req.Name,
			Laboratory:       req.Laboratory,
			Categories:       req.Categories,
			ActiveSubstances: req.ActiveSubstances,
			Description:      req.Description,
			Dosage:           req.Dosage,
			PackSize:         req.PackSize,
			PriceCents:       req.PriceCents,
			Reimbursement:    req.Reimbursement,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// ProductPublish toggles catalog visibility. Admin only.
func ProductPublish(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req publishProductRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.SetPublished(r.Context(), id, req.Published)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// ProductDelete removes a catalog row. Admin only.
func ProductDelete(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// ProductGet loads one product. Admins see unpublished rows.
func ProductGet(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Get(r.Context(), id, middleware.IsAdmin(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// ProductSearch lists the catalog. Non-admin callers only see published rows.
func ProductSearch(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Search(r.Context(), products.SearchParams{
			Term:          strings.TrimSpace(r.URL.Query().Get("q")),
			Laboratory:    strings.TrimSpace(r.URL.Query().Get("laboratory")),
			Category:      strings.TrimSpace(r.URL.Query().Get("category")),
			PublishedOnly: !middleware.IsAdmin(r.Context()),
			Page:          params.Page,
			Limit:         params.Limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PublicProductByCIP is the metered lookup behind the public API.
func PublicProductByCIP(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cip := strings.TrimSpace(chi.URLParam(r, "cip"))
		if cip == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeInvalidArgument, "cip is required"))
			return
		}
		product, err := svc.GetByCIP(r.Context(), cip, false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		middleware.SetMeteredProduct(r.Context(), product.ID)
		responses.WriteSuccess(w, product)
	}
}

// PublicProductSearch is the metered catalog search behind the public API.
// Only published rows are visible regardless of the caller's role.
func PublicProductSearch(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Search(r.Context(), products.SearchParams{
			Term:          strings.TrimSpace(r.URL.Query().Get("q")),
			Laboratory:    strings.TrimSpace(r.URL.Query().Get("laboratory")),
			Category:      strings.TrimSpace(r.URL.Query().Get("category")),
			PublishedOnly: true,
			Page:          params.Page,
			Limit:         params.Limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PublicSitemapSlugs lists every published slug for sitemap generation.
func PublicSitemapSlugs(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slugs, err := svc.SitemapSlugs(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"slugs": slugs})
	}
}
