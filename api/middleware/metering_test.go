package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/pharmadata/pharmadata-backend/internal/usage"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
)

type stubRecorder struct {
	remaining int64
	recorded  []usage.RecordInput
}

func (s *stubRecorder) Record(ctx context.Context, input usage.RecordInput) (*usage.RecordResult, error) {
	s.recorded = append(s.recorded, input)
	return &usage.RecordResult{Metered: true, EventID: uuid.New()}, nil
}

func (s *stubRecorder) GetRemaining(ctx context.Context, accountID uuid.UUID) (*usage.Remaining, error) {
	return &usage.Remaining{Remaining: s.remaining}, nil
}

func authedRequest(t *testing.T) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/public/v1/products/cip/3400930000001", nil)
	account := &models.Account{ID: uuid.New()}
	token := &models.AccessToken{ID: uuid.New(), AccountID: account.ID}
	ctx := WithAccount(WithToken(req.Context(), token), account)
	return req.WithContext(ctx)
}

func TestMeteringRequiresTokenContext(t *testing.T) {
	recorder := &stubRecorder{remaining: 5}
	handler := Metering(recorder, testLogger())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if len(recorder.recorded) != 0 {
		t.Fatalf("expected no record got %d", len(recorder.recorded))
	}
}

func TestMeteringRecordsAfterResponse(t *testing.T) {
	recorder := &stubRecorder{remaining: 5}
	productID := uuid.New()
	handler := Metering(recorder, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetMeteredProduct(r.Context(), productID)
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(t))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if len(recorder.recorded) != 1 {
		t.Fatalf("expected one record got %d", len(recorder.recorded))
	}
	record := recorder.recorded[0]
	if record.ProductID == nil || *record.ProductID != productID {
		t.Fatalf("expected record tagged with product %s got %v", productID, record.ProductID)
	}
	if !record.Success {
		t.Fatal("expected success record")
	}
	if record.Endpoint != "/public/v1/products/cip/3400930000001" {
		t.Fatalf("unexpected endpoint %q", record.Endpoint)
	}
}

func TestMeteringMarksFailedCalls(t *testing.T) {
	recorder := &stubRecorder{remaining: 5}
	handler := Metering(recorder, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(t))
	if len(recorder.recorded) != 1 {
		t.Fatalf("expected one record got %d", len(recorder.recorded))
	}
	if recorder.recorded[0].Success {
		t.Fatal("expected failure record for 404")
	}
	if recorder.recorded[0].ProductID != nil {
		t.Fatal("expected no product tag on a miss")
	}
}

func TestMeteringBlocksExhaustedQuota(t *testing.T) {
	recorder := &stubRecorder{remaining: 0}
	handler := Metering(recorder, testLogger())(okHandler())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(t))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
	if len(recorder.recorded) != 0 {
		t.Fatalf("expected no record got %d", len(recorder.recorded))
	}
}
