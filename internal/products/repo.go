package products

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pharmadata/pharmadata-backend/internal/repo"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/pagination"
)

// Repository handles product catalog persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to product operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new product row.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// Update persists the full product row.
func (r *Repository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(product).Error
}

// Delete removes a product row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id).Error
}

// FindByID loads a product by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByCIP loads a product by its CIP13 code.
func (r *Repository) FindByCIP(ctx context.Context, cip string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("cip = ?", cip).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindBySlug loads a product by its URL slug.
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads the subset of products whose IDs are in the given set.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPublishedSlugs returns every published slug for sitemap generation.
func (r *Repository) ListPublishedSlugs(ctx context.Context) ([]string, error) {
	var slugs []string
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("published = ?", true).
		Order("slug ASC").
		Pluck("slug", &slugs).Error
	if err != nil {
		return nil, err
	}
	return slugs, nil
}

// SearchQuery narrows a catalog listing.
type SearchQuery struct {
	Term          string
	Laboratory    string
	Category      string
	PublishedOnly bool
}

// Search returns one page of catalog rows matching the query.
func (r *Repository) Search(ctx context.Context, query SearchQuery, params pagination.Params) (repo.Page[models.Product], error) {
	scopes := []repo.Scope{
		func(q *gorm.DB) *gorm.DB { return q.Order("name ASC") },
	}
	if query.PublishedOnly {
		scopes = append(scopes, func(q *gorm.DB) *gorm.DB {
			return q.Where("published = ?", true)
		})
	}
	if term := strings.TrimSpace(query.Term); term != "" {
		pattern := "%" + strings.ToLower(term) + "%"
		scopes = append(scopes, func(q *gorm.DB) *gorm.DB {
			return q.Where("LOWER(name) LIKE ? OR cip LIKE ?", pattern, "%"+term+"%")
		})
	}
	if lab := strings.TrimSpace(query.Laboratory); lab != "" {
		scopes = append(scopes, func(q *gorm.DB) *gorm.DB {
			return q.Where("laboratory = ?", lab)
		})
	}
	if cat := strings.TrimSpace(query.Category); cat != "" {
		scopes = append(scopes, func(q *gorm.DB) *gorm.DB {
			return q.Where("? = ANY(categories)", cat)
		})
	}
	return repo.ListPage[models.Product](ctx, r.db, params, scopes...)
}
