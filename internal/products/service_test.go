package products

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/pharmadata/pharmadata-backend/internal/repo"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
	"github.com/pharmadata/pharmadata-backend/pkg/pagination"
)

type fakeProductsRepo struct {
	createFn     func(ctx context.Context, product *models.Product) error
	updateFn     func(ctx context.Context, product *models.Product) error
	deleteFn     func(ctx context.Context, id uuid.UUID) error
	findByIDFn   func(ctx context.Context, id uuid.UUID) (*models.Product, error)
	findByCIPFn  func(ctx context.Context, cip string) (*models.Product, error)
	findBySlugFn func(ctx context.Context, slug string) (*models.Product, error)
	findByIDsFn  func(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	listSlugsFn  func(ctx context.Context) ([]string, error)
	searchFn     func(ctx context.Context, query SearchQuery, params pagination.Params) (repo.Page[models.Product], error)
}

func (f *fakeProductsRepo) Create(ctx context.Context, product *models.Product) error {
	return f.createFn(ctx, product)
}

func (f *fakeProductsRepo) Update(ctx context.Context, product *models.Product) error {
	return f.updateFn(ctx, product)
}

func (f *fakeProductsRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return f.deleteFn(ctx, id)
}

func (f *fakeProductsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return f.findByIDFn(ctx, id)
}

func (f *fakeProductsRepo) FindByCIP(ctx context.Context, cip string) (*models.Product, error) {
	return f.findByCIPFn(ctx, cip)
}

func (f *fakeProductsRepo) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return f.findBySlugFn(ctx, slug)
}

func (f *fakeProductsRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	return f.findByIDsFn(ctx, ids)
}

func (f *fakeProductsRepo) ListPublishedSlugs(ctx context.Context) ([]string, error) {
	return f.listSlugsFn(ctx)
}

func (f *fakeProductsRepo) Search(ctx context.Context, query SearchQuery, params pagination.Params) (repo.Page[models.Product], error) {
	return f.searchFn(ctx, query, params)
}

func mustService(t *testing.T, repo productsRepository) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCreate_Validation(t *testing.T) {
	svc := mustService(t, &fakeProductsRepo{})

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"short cip", CreateInput{CIP: "340093595", Name: "Doliprane", Laboratory: "Sanofi"}},
		{"non-numeric cip", CreateInput{CIP: "34009359558ab", Name: "Doliprane", Laboratory: "Sanofi"}},
		{"blank name", CreateInput{CIP: "3400935955838", Name: "   ", Laboratory: "Sanofi"}},
		{"blank laboratory", CreateInput{CIP: "3400935955838", Name: "Doliprane", Laboratory: ""}},
		{
			"negative price",
			CreateInput{CIP: "3400935955838", Name: "Doliprane", Laboratory: "Sanofi", PriceCents: ptrInt64(-1)},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.input)
			if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeInvalidArgument {
				t.Fatalf("expected invalid argument, got %v", err)
			}
		})
	}
}

func TestCreate_BuildsSlugAndNormalizes(t *testing.T) {
	var created *models.Product
	svc := mustService(t, &fakeProductsRepo{
		createFn: func(_ context.Context, product *models.Product) error {
			created = product
			return nil
		},
	})

	product, err := svc.Create(context.Background(), CreateInput{
		CIP:        " 3400935955838 ",
		Name:       "Doliprane 1000mg",
		Laboratory: "Sanofi",
		Categories: []string{"Antalgique", " Antalgique ", "", "Antipyrétique"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created == nil {
		t.Fatal("expected repository create call")
	}
	if product.Slug != "doliprane-1000mg-3400935955838" {
		t.Fatalf("unexpected slug %q", product.Slug)
	}
	if product.CIP != "3400935955838" {
		t.Fatalf("expected trimmed cip, got %q", product.CIP)
	}
	if len(product.Categories) != 2 {
		t.Fatalf("expected deduplicated categories, got %v", product.Categories)
	}
	if product.ID == uuid.Nil {
		t.Fatal("expected generated id")
	}
}

func TestCreate_DuplicateCIP(t *testing.T) {
	svc := mustService(t, &fakeProductsRepo{
		createFn: func(context.Context, *models.Product) error {
			return &pq.Error{Code: "23505"}
		},
	})

	_, err := svc.Create(context.Background(), CreateInput{
		CIP:        "3400935955838",
		Name:       "Doliprane",
		Laboratory: "Sanofi",
	})
	if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdate_RenameReslugs(t *testing.T) {
	existing := &models.Product{
		ID:         uuid.New(),
		CIP:        "3400935955838",
		Name:       "Doliprane",
		Slug:       "doliprane-3400935955838",
		Laboratory: "Sanofi",
		Published:  true,
	}
	svc := mustService(t, &fakeProductsRepo{
		findByIDFn: func(context.Context, uuid.UUID) (*models.Product, error) {
			return existing, nil
		},
		updateFn: func(context.Context, *models.Product) error { return nil },
	})

	name := "Doliprane 500mg"
	updated, err := svc.Update(context.Background(), existing.ID, UpdateInput{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Slug != "doliprane-500mg-3400935955838" {
		t.Fatalf("expected reslugged product, got %q", updated.Slug)
	}
}

func TestSetPublished_NoOpWhenUnchanged(t *testing.T) {
	updates := 0
	svc := mustService(t, &fakeProductsRepo{
		findByIDFn: func(context.Context, uuid.UUID) (*models.Product, error) {
			return &models.Product{ID: uuid.New(), Published: true}, nil
		},
		updateFn: func(context.Context, *models.Product) error {
			updates++
			return nil
		},
	})

	if _, err := svc.SetPublished(context.Background(), uuid.New(), true); err != nil {
		t.Fatalf("set published: %v", err)
	}
	if updates != 0 {
		t.Fatalf("expected no update for unchanged flag, got %d", updates)
	}

	if _, err := svc.SetPublished(context.Background(), uuid.New(), false); err != nil {
		t.Fatalf("set published: %v", err)
	}
	if updates != 1 {
		t.Fatalf("expected one update, got %d", updates)
	}
}

func TestGetByCIP_Visibility(t *testing.T) {
	unpublished := &models.Product{ID: uuid.New(), CIP: "3400935955838", Published: false}
	svc := mustService(t, &fakeProductsRepo{
		findByCIPFn: func(context.Context, string) (*models.Product, error) {
			return unpublished, nil
		},
	})

	if _, err := svc.GetByCIP(context.Background(), "3400935955838", false); err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unpublished product, got %v", err)
	}

	product, err := svc.GetByCIP(context.Background(), "3400935955838", true)
	if err != nil {
		t.Fatalf("admin lookup: %v", err)
	}
	if product.ID != unpublished.ID {
		t.Fatal("expected unpublished product for admin lookup")
	}
}

func TestGetByCIP_RejectsMalformed(t *testing.T) {
	svc := mustService(t, &fakeProductsRepo{})
	if _, err := svc.GetByCIP(context.Background(), "abc", false); err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestGet_MissingProduct(t *testing.T) {
	svc := mustService(t, &fakeProductsRepo{
		findByIDFn: func(context.Context, uuid.UUID) (*models.Product, error) {
			return nil, gorm.ErrRecordNotFound
		},
	})
	if _, err := svc.Get(context.Background(), uuid.New(), true); err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSearch_PassesFilters(t *testing.T) {
	var gotQuery SearchQuery
	svc := mustService(t, &fakeProductsRepo{
		searchFn: func(_ context.Context, query SearchQuery, params pagination.Params) (repo.Page[models.Product], error) {
			gotQuery = query
			return repo.Page[models.Product]{
				Items:    []models.Product{{Name: "Doliprane"}},
				Envelope: pagination.BuildEnvelope(params, 1),
			}, nil
		},
	})

	result, err := svc.Search(context.Background(), SearchParams{
		Term:          "doli",
		Laboratory:    "Sanofi",
		PublishedOnly: true,
		Page:          1,
		Limit:         20,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(result.Items))
	}
	if gotQuery.Term != "doli" || gotQuery.Laboratory != "Sanofi" || !gotQuery.PublishedOnly {
		t.Fatalf("unexpected repo query %+v", gotQuery)
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		cip  string
		want string
	}{
		{"Doliprane 1000mg", "3400935955838", "doliprane-1000mg-3400935955838"},
		{"  Efferalgan -- Vitamine C  ", "3400930001234", "efferalgan-vitamine-c-3400930001234"},
		{"!!!", "3400930001234", "3400930001234"},
		{strings.ToUpper("spasfon"), "3400930009876", "spasfon-3400930009876"},
	}
	for _, tc := range cases {
		if got := Slugify(tc.name, tc.cip); got != tc.want {
			t.Fatalf("Slugify(%q, %q) = %q, want %q", tc.name, tc.cip, got, tc.want)
		}
	}
}

func ptrInt64(v int64) *int64 { return &v }
