package products

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/pharmadata/pharmadata-backend/internal/repo"
	"github.com/pharmadata/pharmadata-backend/pkg/db"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
	"github.com/pharmadata/pharmadata-backend/pkg/pagination"
	"github.com/pharmadata/pharmadata-backend/pkg/visibility"
)

var (
	cipPattern     = regexp.MustCompile(`^\d{13}$`)
	slugSanitizeRe = regexp.MustCompile(`[^a-z0-9]+`)
)

type productsRepository interface {
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByCIP(ctx context.Context, cip string) (*models.Product, error)
	FindBySlug(ctx context.Context, slug string) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	ListPublishedSlugs(ctx context.Context) ([]string, error)
	Search(ctx context.Context, query SearchQuery, params pagination.Params) (repo.Page[models.Product], error)
}

// CreateInput holds the fields an admin provides for a new product sheet.
type CreateInput struct {
	CIP              string
	Name             string
	Laboratory       string
	Categories       []string
	ActiveSubstances []string
	Description      *string
	Dosage           *string
	PackSize         *string
	PriceCents       *int64
	Reimbursement    *string
	Published        bool
}

// UpdateInput carries partial product updates; nil fields stay untouched.
type UpdateInput struct {
	Name             *string
	Laboratory       *string
	Categories       []string
	ActiveSubstances []string
	Description      *string
	Dosage           *string
	PackSize         *string
	PriceCents       *int64
	Reimbursement    *string
}

// SearchParams configures a catalog listing.
type SearchParams struct {
	Term          string
	Laboratory    string
	Category      string
	PublishedOnly bool
	Page          int
	Limit         int
}

// SearchResult is one page of catalog rows with its envelope.
type SearchResult struct {
	Items      []models.Product    `json:"items"`
	Pagination pagination.Envelope `json:"pagination"`
}

// Service exposes catalog administration and public lookups.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error)
	SetPublished(ctx context.Context, id uuid.UUID, published bool) (*models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID, includeUnpublished bool) (*models.Product, error)
	GetByCIP(ctx context.Context, cip string, includeUnpublished bool) (*models.Product, error)
	GetBySlug(ctx context.Context, slug string, includeUnpublished bool) (*models.Product, error)
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)
	SitemapSlugs(ctx context.Context) ([]string, error)
}

type service struct {
	repo productsRepository
}

// NewService wires catalog dependencies.
func NewService(repo productsRepository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "products repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Product, error) {
	cip := strings.TrimSpace(input.CIP)
	if !cipPattern.MatchString(cip) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "cip must be 13 digits")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "name is required")
	}
	laboratory := strings.TrimSpace(input.Laboratory)
	if laboratory == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "laboratory is required")
	}
	if input.PriceCents != nil && *input.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "price must be non-negative")
	}

	product := &models.Product{
		ID:               uuid.New(),
		CIP:              cip,
		Name:             name,
		Slug:             Slugify(name, cip),
		Laboratory:       laboratory,
		Categories:       pq.StringArray(normalizeList(input.Categories)),
		ActiveSubstances: pq.StringArray(normalizeList(input.ActiveSubstances)),
		Description:      input.Description,
		Dosage:           input.Dosage,
		PackSize:         input.PackSize,
		PriceCents:       input.PriceCents,
		Reimbursement:    input.Reimbursement,
		Published:        input.Published,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product with this cip already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return product, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "name cannot be blank")
		}
		product.Name = name
		product.Slug = Slugify(name, product.CIP)
	}
	if input.Laboratory != nil {
		lab := strings.TrimSpace(*input.Laboratory)
		if lab == "" {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "laboratory cannot be blank")
		}
		product.Laboratory = lab
	}
	if input.Categories != nil {
		product.Categories = pq.StringArray(normalizeList(input.Categories))
	}
	if input.ActiveSubstances != nil {
		product.ActiveSubstances = pq.StringArray(normalizeList(input.ActiveSubstances))
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.Dosage != nil {
		product.Dosage = input.Dosage
	}
	if input.PackSize != nil {
		product.PackSize = input.PackSize
	}
	if input.PriceCents != nil {
		if *input.PriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "price must be non-negative")
		}
		product.PriceCents = input.PriceCents
	}
	if input.Reimbursement != nil {
		product.Reimbursement = input.Reimbursement
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return product, nil
}

func (s *service) SetPublished(ctx context.Context, id uuid.UUID, published bool) (*models.Product, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.Published == published {
		return product, nil
	}
	product.Published = published
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return product, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, includeUnpublished bool) (*models.Product, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := visibility.EnsureProductVisible(visibility.ProductVisibilityInput{
		Product:            product,
		IncludeUnpublished: includeUnpublished,
	}); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *service) GetByCIP(ctx context.Context, cip string, includeUnpublished bool) (*models.Product, error) {
	cip = strings.TrimSpace(cip)
	if !cipPattern.MatchString(cip) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "cip must be 13 digits")
	}
	product, err := s.repo.FindByCIP(ctx, cip)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup product")
	}
	if err := visibility.EnsureProductVisible(visibility.ProductVisibilityInput{
		Product:            product,
		IncludeUnpublished: includeUnpublished,
	}); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *service) GetBySlug(ctx context.Context, slug string, includeUnpublished bool) (*models.Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "slug is required")
	}
	product, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup product")
	}
	if err := visibility.EnsureProductVisible(visibility.ProductVisibilityInput{
		Product:            product,
		IncludeUnpublished: includeUnpublished,
	}); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *service) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	page, err := s.repo.Search(ctx, SearchQuery{
		Term:          params.Term,
		Laboratory:    params.Laboratory,
		Category:      params.Category,
		PublishedOnly: params.PublishedOnly,
	}, pagination.Params{Page: params.Page, Limit: params.Limit})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search products")
	}
	return &SearchResult{Items: page.Items, Pagination: page.Envelope}, nil
}

func (s *service) SitemapSlugs(ctx context.Context) ([]string, error) {
	slugs, err := s.repo.ListPublishedSlugs(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list slugs")
	}
	return slugs, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "product id required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup product")
	}
	return product, nil
}

// Slugify derives the canonical slug for a product sheet. The CIP suffix
// keeps slugs unique when two products share a name.
func Slugify(name, cip string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	lowered = slugSanitizeRe.ReplaceAllString(lowered, "-")
	lowered = strings.Trim(lowered, "-")
	if lowered == "" {
		return cip
	}
	return fmt.Sprintf("%s-%s", lowered, cip)
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		out = append(out, trimmed)
	}
	return out
}
