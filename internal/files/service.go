package files

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/pharmadata/pharmadata-backend/internal/repo"
	"github.com/pharmadata/pharmadata-backend/pkg/config"
	"github.com/pharmadata/pharmadata-backend/pkg/db"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
	"github.com/pharmadata/pharmadata-backend/pkg/pagination"
)

type purchasesRepository interface {
	FindPurchaseBySession(ctx context.Context, sessionID uuid.UUID) (*models.Purchase, error)
	SetFileObjects(ctx context.Context, purchaseID uuid.UUID, objects []string, generatedAt time.Time) error
	ListPurchasesByAccount(ctx context.Context, accountID uuid.UUID, params pagination.Params) (repo.Page[models.Purchase], error)
}

type sessionsRepository interface {
	FindSessionByID(ctx context.Context, id uuid.UUID) (*models.PaymentSession, error)
}

type productsRepository interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type objectStore interface {
	DefaultBucket() string
	UploadObject(ctx context.Context, bucket, object, contentType string, data []byte) error
	SignedReadURL(bucket, object string, expires time.Duration) (string, error)
}

// ServiceParams groups dependencies for the file generation service.
type ServiceParams struct {
	PurchasesRepo purchasesRepository
	SessionsRepo  sessionsRepository
	ProductsRepo  productsRepository
	Store         objectStore
	Config        config.GCSConfig
}

// Service generates purchased product sheets, stores them in GCS and hands
// out short-lived download links.
type Service struct {
	purchases purchasesRepository
	sessions  sessionsRepository
	products  productsRepository
	store     objectStore
	cfg       config.GCSConfig
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.PurchasesRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "purchases repository required")
	}
	if params.SessionsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sessions repository required")
	}
	if params.ProductsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "products repository required")
	}
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "object store required")
	}
	return &Service{
		purchases: params.PurchasesRepo,
		sessions:  params.SessionsRepo,
		products:  params.ProductsRepo,
		store:     params.Store,
		cfg:       params.Config,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Download is one generated file with a fresh signed URL.
type Download struct {
	FileName  string    `json:"file_name"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GenerateResult describes the files produced for one purchase.
type GenerateResult struct {
	PurchaseID uuid.UUID        `json:"purchase_id"`
	Format     enums.FileFormat `json:"format"`
	Files      []Download       `json:"files"`
}

// PurchaseEntry is one row of the purchase history with fresh links.
type PurchaseEntry struct {
	Purchase models.Purchase `json:"purchase"`
	Files    []Download      `json:"files"`
}

// HistoryResult is one page of an account's purchases.
type HistoryResult struct {
	Items      []PurchaseEntry     `json:"items"`
	Pagination pagination.Envelope `json:"pagination"`
}

// Generate renders the purchased sheets and returns signed download URLs.
// Repeat calls after a successful generation reuse the stored objects and
// only mint fresh links.
func (s *Service) Generate(ctx context.Context, accountID, sessionID uuid.UUID, format enums.FileFormat) (*GenerateResult, error) {
	if accountID == uuid.Nil || sessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id and session id are required")
	}
	if format != "" && !format.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "invalid file format")
	}

	session, err := s.sessions.FindSessionByID(ctx, sessionID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment session")
	}
	if session.AccountID != accountID {
		return nil, pkgerrors.New(pkgerrors.CodePermissionDenied, "payment session belongs to another account")
	}
	if session.Status != enums.PaymentSessionStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeFailedPrecondition, "payment session is not completed").
			WithDetails(map[string]any{"status": session.Status})
	}

	purchase, err := s.purchases.FindPurchaseBySession(ctx, sessionID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found for session")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchase")
	}
	if format != "" && format != purchase.Format {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "format does not match the purchased one").
			WithDetails(map[string]any{"purchased_format": purchase.Format})
	}

	objects := []string(purchase.FileObjects)
	if purchase.GeneratedAt == nil || len(objects) == 0 {
		objects, err = s.generateObjects(ctx, purchase)
		if err != nil {
			return nil, err
		}
		if err := s.purchases.SetFileObjects(ctx, purchase.ID, objects, s.now()); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record generated files")
		}
	}

	downloads, err := s.signAll(objects)
	if err != nil {
		return nil, err
	}
	return &GenerateResult{
		PurchaseID: purchase.ID,
		Format:     purchase.Format,
		Files:      downloads,
	}, nil
}

// History returns one page of the account's purchases with fresh links.
// Purchases whose files were never generated are listed without downloads.
func (s *Service) History(ctx context.Context, accountID uuid.UUID, params pagination.Params) (*HistoryResult, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id is required")
	}

	page, err := s.purchases.ListPurchasesByAccount(ctx, accountID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list purchases")
	}

	entries := make([]PurchaseEntry, 0, len(page.Items))
	for _, purchase := range page.Items {
		downloads, err := s.signAll([]string(purchase.FileObjects))
		if err != nil {
			return nil, err
		}
		entries = append(entries, PurchaseEntry{Purchase: purchase, Files: downloads})
	}
	return &HistoryResult{Items: entries, Pagination: page.Envelope}, nil
}

func (s *Service) generateObjects(ctx context.Context, purchase *models.Purchase) ([]string, error) {
	ids := make([]uuid.UUID, len(purchase.ProductIDs))
	copy(ids, purchase.ProductIDs)
	found, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchased products")
	}
	if len(found) != len(ids) {
		return nil, pkgerrors.New(pkgerrors.CodeFailedPrecondition, "some purchased products no longer exist")
	}

	products := make([]*models.Product, len(found))
	for i := range found {
		products[i] = &found[i]
	}

	bucket := s.store.DefaultBucket()
	prefix := fmt.Sprintf("purchases/%s", purchase.ID)

	if purchase.Format == enums.FileFormatZIP {
		data, err := buildArchive(products)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build archive")
		}
		object := prefix + "/fiches-produit.zip"
		if err := s.store.UploadObject(ctx, bucket, object, purchase.Format.ContentType(), data); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload archive")
		}
		return []string{object}, nil
	}

	var (
		objects []string
		errs    error
	)
	for _, product := range products {
		var data []byte
		var err error
		switch purchase.Format {
		case enums.FileFormatPDF:
			data, err = renderProductPDF(product)
		case enums.FileFormatJSON:
			data, err = renderProductJSON(product)
		default:
			err = fmt.Errorf("unsupported format %q", purchase.Format)
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("render %s: %w", product.Slug, err))
			continue
		}

		object := fmt.Sprintf("%s/%s.%s", prefix, product.Slug, purchase.Format)
		if err := s.store.UploadObject(ctx, bucket, object, purchase.Format.ContentType(), data); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("upload %s: %w", object, err))
			continue
		}
		objects = append(objects, object)
	}
	if errs != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, errs, "generate purchase files")
	}
	return objects, nil
}

func (s *Service) signAll(objects []string) ([]Download, error) {
	if len(objects) == 0 {
		return nil, nil
	}
	bucket := s.store.DefaultBucket()
	expiresAt := s.now().Add(s.cfg.DownloadURLExpiry)

	downloads := make([]Download, 0, len(objects))
	for _, object := range objects {
		url, err := s.store.SignedReadURL(bucket, object, s.cfg.DownloadURLExpiry)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign download url")
		}
		downloads = append(downloads, Download{
			FileName:  objectFileName(object),
			URL:       url,
			ExpiresAt: expiresAt,
		})
	}
	return downloads, nil
}

func objectFileName(object string) string {
	for i := len(object) - 1; i >= 0; i-- {
		if object[i] == '/' {
			return object[i+1:]
		}
	}
	return object
}
