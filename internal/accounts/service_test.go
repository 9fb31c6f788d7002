package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pharmadata/pharmadata-backend/pkg/auth"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
)

type fakeAccountsRepo struct {
	createFn func(ctx context.Context, account *models.Account) error
	findFn   func(ctx context.Context, id uuid.UUID) (*models.Account, error)
	updateFn func(ctx context.Context, account *models.Account) error
}

func (f *fakeAccountsRepo) Create(ctx context.Context, account *models.Account) error {
	if f.createFn != nil {
		return f.createFn(ctx, account)
	}
	return nil
}

func (f *fakeAccountsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	if f.findFn != nil {
		return f.findFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAccountsRepo) Update(ctx context.Context, account *models.Account) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, account)
	}
	return nil
}

func TestEnsureFromIdentity_CreatesAccount(t *testing.T) {
	accountID := uuid.New()
	var created *models.Account
	repo := &fakeAccountsRepo{
		createFn: func(ctx context.Context, account *models.Account) error {
			created = account
			return nil
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	account, err := svc.EnsureFromIdentity(context.Background(), &auth.IdentityClaims{
		AccountID:     accountID,
		Email:         "  User@Example.COM ",
		EmailVerified: true,
		Role:          enums.AccountRoleUser,
	})
	if err != nil {
		t.Fatalf("EnsureFromIdentity: %v", err)
	}
	if created == nil {
		t.Fatal("expected create call")
	}
	if account.Email != "user@example.com" {
		t.Fatalf("email not normalized: %q", account.Email)
	}
	if account.ID != accountID {
		t.Fatalf("account id = %s", account.ID)
	}
}

func TestEnsureFromIdentity_ExistingAccountSyncsEmail(t *testing.T) {
	accountID := uuid.New()
	existing := &models.Account{ID: accountID, Email: "old@example.com"}
	var updated bool
	repo := &fakeAccountsRepo{
		findFn: func(ctx context.Context, id uuid.UUID) (*models.Account, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, account *models.Account) error {
			updated = true
			return nil
		},
	}
	svc, _ := NewService(repo)

	account, err := svc.EnsureFromIdentity(context.Background(), &auth.IdentityClaims{
		AccountID: accountID,
		Email:     "new@example.com",
	})
	if err != nil {
		t.Fatalf("EnsureFromIdentity: %v", err)
	}
	if !updated {
		t.Fatal("expected update when email changed")
	}
	if account.Email != "new@example.com" {
		t.Fatalf("email = %q", account.Email)
	}
}

func TestEnsureFromIdentity_MissingIdentity(t *testing.T) {
	svc, _ := NewService(&fakeAccountsRepo{})

	_, err := svc.EnsureFromIdentity(context.Background(), nil)
	if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := NewService(&fakeAccountsRepo{})

	_, err := svc.Get(context.Background(), uuid.New())
	if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateDisplayName(t *testing.T) {
	accountID := uuid.New()
	repo := &fakeAccountsRepo{
		findFn: func(ctx context.Context, id uuid.UUID) (*models.Account, error) {
			return &models.Account{ID: accountID}, nil
		},
	}
	svc, _ := NewService(repo)

	account, err := svc.UpdateDisplayName(context.Background(), accountID, "  Pharmacie Centrale  ")
	if err != nil {
		t.Fatalf("UpdateDisplayName: %v", err)
	}
	if account.DisplayName == nil || *account.DisplayName != "Pharmacie Centrale" {
		t.Fatalf("display name = %v", account.DisplayName)
	}

	if _, err := svc.UpdateDisplayName(context.Background(), accountID, "   "); err == nil {
		t.Fatal("expected error for blank name")
	}
}

func TestUpdateDisplayName_RepoError(t *testing.T) {
	repo := &fakeAccountsRepo{
		findFn: func(ctx context.Context, id uuid.UUID) (*models.Account, error) {
			return nil, errors.New("boom")
		},
	}
	svc, _ := NewService(repo)

	_, err := svc.UpdateDisplayName(context.Background(), uuid.New(), "Name")
	if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
