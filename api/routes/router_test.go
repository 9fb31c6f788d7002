package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pharmadata/pharmadata-backend/internal/products"
	"github.com/pharmadata/pharmadata-backend/internal/usage"
	pkgauth "github.com/pharmadata/pharmadata-backend/pkg/auth"
	"github.com/pharmadata/pharmadata-backend/pkg/config"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
)

type stubAccountsService struct {
	ensureFn func(ctx context.Context, claims *pkgauth.IdentityClaims) (*models.Account, error)
}

func (s *stubAccountsService) EnsureFromIdentity(ctx context.Context, claims *pkgauth.IdentityClaims) (*models.Account, error) {
	if s.ensureFn != nil {
		return s.ensureFn(ctx, claims)
	}
	return &models.Account{ID: claims.AccountID, Email: claims.Email, Role: claims.Role}, nil
}

func (s *stubAccountsService) Get(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	return &models.Account{ID: accountID, Role: enums.AccountRoleUser}, nil
}

func (s *stubAccountsService) UpdateDisplayName(ctx context.Context, accountID uuid.UUID, displayName string) (*models.Account, error) {
	return &models.Account{ID: accountID, DisplayName: &displayName}, nil
}

type stubProductsService struct {
	createFn   func(ctx context.Context, input products.CreateInput) (*models.Product, error)
	getByCIPFn func(ctx context.Context, cip string, includeUnpublished bool) (*models.Product, error)
}

func (s *stubProductsService) Create(ctx context.Context, input products.CreateInput) (*models.Product, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return &models.Product{ID: uuid.New(), CIP: input.CIP, Name: input.Name}, nil
}

func (s *stubProductsService) Update(ctx context.Context, id uuid.UUID, input products.UpdateInput) (*models.Product, error) {
	return &models.Product{ID: id}, nil
}

func (s *stubProductsService) SetPublished(ctx context.Context, id uuid.UUID, published bool) (*models.Product, error) {
	return &models.Product{ID: id, Published: published}, nil
}

func (s *stubProductsService) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (s *stubProductsService) Get(ctx context.Context, id uuid.UUID, includeUnpublished bool) (*models.Product, error) {
	return &models.Product{ID: id, Published: true}, nil
}

func (s *stubProductsService) GetByCIP(ctx context.Context, cip string, includeUnpublished bool) (*models.Product, error) {
	if s.getByCIPFn != nil {
		return s.getByCIPFn(ctx, cip, includeUnpublished)
	}
	return &models.Product{ID: uuid.New(), CIP: cip, Published: true}, nil
}

func (s *stubProductsService) GetBySlug(ctx context.Context, slug string, includeUnpublished bool) (*models.Product, error) {
	return &models.Product{ID: uuid.New(), Slug: slug, Published: true}, nil
}

func (s *stubProductsService) Search(ctx context.Context, params products.SearchParams) (*products.SearchResult, error) {
	return &products.SearchResult{}, nil
}

func (s *stubProductsService) SitemapSlugs(ctx context.Context) ([]string, error) {
	return []string{"doliprane-1000-mg"}, nil
}

type stubTokensService struct {
	validateFn func(ctx context.Context, value string) (*models.AccessToken, error)
}

func (s *stubTokensService) Issue(ctx context.Context, accountID uuid.UUID) (*models.AccessToken, error) {
	return &models.AccessToken{ID: uuid.New(), AccountID: accountID, Token: "pd_testtoken"}, nil
}

func (s *stubTokensService) Revoke(ctx context.Context, accountID uuid.UUID) error {
	return nil
}

func (s *stubTokensService) Validate(ctx context.Context, value string) (*models.AccessToken, error) {
	if s.validateFn != nil {
		return s.validateFn(ctx, value)
	}
	return &models.AccessToken{ID: uuid.New(), AccountID: uuid.New(), Token: value}, nil
}

func (s *stubTokensService) History(ctx context.Context, accountID uuid.UUID) ([]models.AccessToken, error) {
	return nil, nil
}

type stubUsageService struct {
	remaining int64
	recorded  []usage.RecordInput
}

func (s *stubUsageService) Record(ctx context.Context, input usage.RecordInput) (*usage.RecordResult, error) {
	s.recorded = append(s.recorded, input)
	return &usage.RecordResult{Metered: true, EventID: uuid.New()}, nil
}

func (s *stubUsageService) GetRemaining(ctx context.Context, accountID uuid.UUID) (*usage.Remaining, error) {
	return &usage.Remaining{Remaining: s.remaining}, nil
}

func (s *stubUsageService) GetSummary(ctx context.Context, accountID uuid.UUID) (*usage.Summary, error) {
	return &usage.Summary{}, nil
}

func (s *stubUsageService) GetLatencyPercentiles(ctx context.Context, accountID uuid.UUID) (*usage.LatencyPercentiles, error) {
	return &usage.LatencyPercentiles{}, nil
}

func (s *stubUsageService) GetDailySeries(ctx context.Context, accountID uuid.UUID, days int) ([]usage.DailyPoint, error) {
	return nil, nil
}

func (s *stubUsageService) GetEndpointStats(ctx context.Context, accountID uuid.UUID, days int) ([]usage.EndpointStat, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "pharmadata-identity"},
		RateLimit: config.RateLimitConfig{
			PublicWindow:  time.Hour,
			PublicIPLimit: 20,
		},
	}
}

type routerFixture struct {
	accounts *stubAccountsService
	products *stubProductsService
	tokens   *stubTokensService
	usage    *stubUsageService
	cfg      *config.Config
}

func newTestRouter(t *testing.T) (http.Handler, *routerFixture) {
	t.Helper()
	f := &routerFixture{
		accounts: &stubAccountsService{},
		products: &stubProductsService{},
		tokens:   &stubTokensService{},
		usage:    &stubUsageService{remaining: 10},
		cfg:      testConfig(),
	}
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	handler := NewRouter(Deps{
		Config:   f.cfg,
		Logger:   logg,
		Accounts: f.accounts,
		Products: f.products,
		Tokens:   f.tokens,
		Usage:    f.usage,
	})
	return handler, f
}

func buildIdentityToken(t *testing.T, cfg *config.Config, role enums.AccountRole) string {
	t.Helper()
	token, err := pkgauth.MintIdentityToken(cfg.JWT, time.Now(), pkgauth.IdentityClaims{
		AccountID:     uuid.New(),
		Email:         "pharmacist@example.fr",
		EmailVerified: true,
		Role:          role,
	}, time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("X-PharmaData-Env"); got != "test" {
		t.Fatalf("expected env header test got %q", got)
	}
}

func TestIdentityGroupRejectsMissingJWT(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/me", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestIdentityGroupAcceptsValidJWT(t *testing.T) {
	router, f := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/me", nil)
	req.Header.Set("Authorization", "Bearer "+buildIdentityToken(t, f.cfg, enums.AccountRoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with token got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestProductWritesRequireAdminRole(t *testing.T) {
	router, f := newTestRouter(t)
	body := `{"cip":"3400930000001","name":"Doliprane","laboratory":"Sanofi"}`

	asUser := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(body))
	asUser.Header.Set("Content-Type", "application/json")
	asUser.Header.Set("Authorization", "Bearer "+buildIdentityToken(t, f.cfg, enums.AccountRoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, asUser)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin got %d", resp.Code)
	}

	asAdmin := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(body))
	asAdmin.Header.Set("Content-Type", "application/json")
	asAdmin.Header.Set("Authorization", "Bearer "+buildIdentityToken(t, f.cfg, enums.AccountRoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, asAdmin)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestPublicLookupRequiresAPIToken(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/public/v1/products/cip/3400930000001", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without api token got %d", resp.Code)
	}
}

func TestPublicLookupRecordsUsage(t *testing.T) {
	router, f := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/public/v1/products/cip/3400930000001", nil)
	req.Header.Set("Authorization", "Bearer pd_livetoken")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(f.usage.recorded) != 1 {
		t.Fatalf("expected one usage record got %d", len(f.usage.recorded))
	}
	record := f.usage.recorded[0]
	if record.ProductID == nil {
		t.Fatal("expected record tagged with the product id")
	}
	if !record.Success {
		t.Fatal("expected a successful call record")
	}
}

func TestPublicLookupQuotaExhausted(t *testing.T) {
	router, f := newTestRouter(t)
	f.usage.remaining = 0
	req := httptest.NewRequest(http.MethodGet, "/public/v1/products/cip/3400930000001", nil)
	req.Header.Set("Authorization", "Bearer pd_livetoken")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on exhausted quota got %d", resp.Code)
	}
	if len(f.usage.recorded) != 0 {
		t.Fatalf("expected no usage record got %d", len(f.usage.recorded))
	}
}

func TestPublicRemainingIsNotMetered(t *testing.T) {
	router, f := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/public/v1/usage/remaining", nil)
	req.Header.Set("Authorization", "Bearer pd_livetoken")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(f.usage.recorded) != 0 {
		t.Fatalf("quota check must not consume quota, got %d records", len(f.usage.recorded))
	}
}

func TestPublicSearchIsMetered(t *testing.T) {
	router, f := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/public/v1/products?q=doliprane", nil)
	req.Header.Set("Authorization", "Bearer pd_livetoken")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(f.usage.recorded) != 1 {
		t.Fatalf("expected one usage record got %d", len(f.usage.recorded))
	}
	if f.usage.recorded[0].ProductID != nil {
		t.Fatal("search records must not be tagged with a product id")
	}
}

func TestSitemapIsOpen(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/public/v1/sitemap/slugs", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "doliprane-1000-mg") {
		t.Fatalf("expected slug in body got %s", resp.Body.String())
	}
}
