package gcs

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return &Client{
		httpClient:    &http.Client{Transport: rt},
		defaultBucket: "pharmadata-files",
		tokenSource: &tokenSource{
			fetch: func(context.Context) (string, time.Time, error) {
				return "test-token", time.Now().Add(time.Hour), nil
			},
		},
		serviceAccount: &serviceAccountInfo{
			clientEmail: "files@pharmadata.iam.gserviceaccount.com",
			privateKey:  key,
		},
	}
}

func TestSignedURL_VerifiesWithPublicKey(t *testing.T) {
	client := newTestClient(t, nil)

	signed, err := client.SignedURL("pharmadata-files", "exports/report.pdf", "application/pdf", time.Hour)
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}

	parsed, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parsing signed url: %v", err)
	}
	if parsed.Host != "storage.googleapis.com" {
		t.Fatalf("unexpected host %q", parsed.Host)
	}
	if parsed.Path != "/pharmadata-files/exports/report.pdf" {
		t.Fatalf("unexpected path %q", parsed.Path)
	}

	query := parsed.Query()
	if got := query.Get("GoogleAccessId"); got != "files@pharmadata.iam.gserviceaccount.com" {
		t.Fatalf("unexpected GoogleAccessId %q", got)
	}

	expires, err := strconv.ParseInt(query.Get("Expires"), 10, 64)
	if err != nil {
		t.Fatalf("parsing Expires: %v", err)
	}
	if expires <= time.Now().Unix() {
		t.Fatal("expiry is not in the future")
	}

	signature, err := base64.StdEncoding.DecodeString(query.Get("Signature"))
	if err != nil {
		t.Fatalf("decoding signature: %v", err)
	}

	stringToSign := "PUT\n\napplication/pdf\n" + query.Get("Expires") + "\n/pharmadata-files/exports/report.pdf"
	hash := sha256.Sum256([]byte(stringToSign))
	pub := &client.serviceAccount.privateKey.PublicKey
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, hash[:], signature); err != nil {
		t.Fatalf("signature does not verify: %v", err)
	}
}

func TestSignedReadURL_VerifiesWithPublicKey(t *testing.T) {
	client := newTestClient(t, nil)

	signed, err := client.SignedReadURL("", "exports/bundle.zip", 24*time.Hour)
	if err != nil {
		t.Fatalf("SignedReadURL: %v", err)
	}

	parsed, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parsing signed url: %v", err)
	}
	if parsed.Path != "/pharmadata-files/exports/bundle.zip" {
		t.Fatalf("default bucket not applied, path %q", parsed.Path)
	}

	query := parsed.Query()
	signature, err := base64.StdEncoding.DecodeString(query.Get("Signature"))
	if err != nil {
		t.Fatalf("decoding signature: %v", err)
	}

	stringToSign := "GET\n\n\n" + query.Get("Expires") + "\n/pharmadata-files/exports/bundle.zip"
	hash := sha256.Sum256([]byte(stringToSign))
	pub := &client.serviceAccount.privateKey.PublicKey
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, hash[:], signature); err != nil {
		t.Fatalf("signature does not verify: %v", err)
	}
}

func TestSignedURL_Validation(t *testing.T) {
	client := newTestClient(t, nil)

	tests := []struct {
		name        string
		bucket      string
		object      string
		contentType string
		expires     time.Duration
	}{
		{"missing object", "pharmadata-files", "", "application/pdf", time.Hour},
		{"missing content type", "pharmadata-files", "a.pdf", "", time.Hour},
		{"zero expiry", "pharmadata-files", "a.pdf", "application/pdf", 0},
		{"negative expiry", "pharmadata-files", "a.pdf", "application/pdf", -time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := client.SignedURL(tt.bucket, tt.object, tt.contentType, tt.expires); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestSignedURL_RequiresServiceAccount(t *testing.T) {
	client := newTestClient(t, nil)
	client.serviceAccount = nil

	if _, err := client.SignedURL("pharmadata-files", "a.pdf", "application/pdf", time.Hour); err == nil {
		t.Fatal("expected error without service account credentials")
	}
}

func TestUploadObject(t *testing.T) {
	var gotURL, gotAuth, gotContentType, gotBody string
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		gotAuth = req.Header.Get("Authorization")
		gotContentType = req.Header.Get("Content-Type")
		body := new(strings.Builder)
		if req.Body != nil {
			buf := make([]byte, 64)
			for {
				n, err := req.Body.Read(buf)
				body.Write(buf[:n])
				if err != nil {
					break
				}
			}
		}
		gotBody = body.String()
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	})

	err := client.UploadObject(context.Background(), "", "exports/data.json", "application/json", []byte(`{"ok":true}`))
	if err != nil {
		t.Fatalf("UploadObject: %v", err)
	}

	wantURL := "https://storage.googleapis.com/upload/storage/v1/b/pharmadata-files/o?uploadType=media&name=exports%2Fdata.json"
	if gotURL != wantURL {
		t.Fatalf("url = %q, want %q", gotURL, wantURL)
	}
	if gotAuth != "Bearer test-token" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Fatalf("content type = %q", gotContentType)
	}
	if gotBody != `{"ok":true}` {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestUploadObject_ServerError(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusForbidden,
			Status:     "403 Forbidden",
			Body:       http.NoBody,
		}, nil
	})

	err := client.UploadObject(context.Background(), "", "exports/data.json", "application/json", nil)
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestDeleteObject_ToleratesMissing(t *testing.T) {
	for _, status := range []int{http.StatusNoContent, http.StatusNotFound} {
		client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
			if req.Method != http.MethodDelete {
				t.Fatalf("method = %q", req.Method)
			}
			return &http.Response{StatusCode: status, Body: http.NoBody}, nil
		})
		if err := client.DeleteObject(context.Background(), "", "exports/old.pdf"); err != nil {
			t.Fatalf("DeleteObject with status %d: %v", status, err)
		}
	}
}

func TestTokenSource_CachesUntilNearExpiry(t *testing.T) {
	calls := 0
	ts := &tokenSource{
		fetch: func(context.Context) (string, time.Time, error) {
			calls++
			return "tok", time.Now().Add(time.Hour), nil
		},
	}

	for i := 0; i < 5; i++ {
		if _, err := ts.Token(context.Background()); err != nil {
			t.Fatalf("Token: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("fetch called %d times, want 1", calls)
	}
}
