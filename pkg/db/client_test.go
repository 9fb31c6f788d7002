package db

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	t.Cleanup(func() {
		conn.Exec("DELETE FROM test_models")
	})
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	client := NewFromConn(newTestDB(t))

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := client.DB().Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := client.DB().Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to keep 1 record, got %d", count)
	}
}

func TestWithTxRetry_RetriesSerializationFailures(t *testing.T) {
	client := NewFromConn(newTestDB(t))

	attempts := 0
	err := client.WithTxRetry(context.Background(), func(tx *gorm.DB) error {
		attempts++
		if attempts < 3 {
			return errors.New("ERROR: could not serialize access due to concurrent update (SQLSTATE 40001)")
		}
		return tx.Create(&testModel{Name: "eventually"}).Error
	})
	if err != nil {
		t.Fatalf("WithTxRetry should succeed after retries: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithTxRetry_GivesUpAfterBudget(t *testing.T) {
	client := NewFromConn(newTestDB(t))

	attempts := 0
	err := client.WithTxRetry(context.Background(), func(tx *gorm.DB) error {
		attempts++
		return errors.New("deadlock detected")
	})
	if err == nil {
		t.Fatal("expected retry budget exhaustion to surface the error")
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
}

func TestWithTxRetry_DoesNotRetryDomainErrors(t *testing.T) {
	client := NewFromConn(newTestDB(t))

	attempts := 0
	err := client.WithTxRetry(context.Background(), func(tx *gorm.DB) error {
		attempts++
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error to propagate")
	}
	if attempts != 1 {
		t.Fatalf("non-retryable error should run once, got %d attempts", attempts)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil) {
		t.Fatal("nil error is not a violation")
	}
	if !IsUniqueViolation(&pq.Error{Code: "23505"}) {
		t.Fatal("expected pq unique-violation code to match")
	}
	if IsUniqueViolation(&pq.Error{Code: "40001"}) {
		t.Fatal("serialization failure is not a unique violation")
	}
	msgErr := errors.New(`duplicate key value violates unique constraint "idx_access_tokens_token"`)
	if !IsUniqueViolation(msgErr) {
		t.Fatal("expected postgres duplicate message to match")
	}
	sqliteErr := errors.New("UNIQUE constraint failed: product_views.account_id, product_views.product_id")
	if !IsUniqueViolation(sqliteErr) {
		t.Fatal("expected sqlite duplicate message to match")
	}
}
