package pos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go-pos-sync/internal/features/credential"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testCreds() *credential.DecryptedCredentials {
	return &credential.DecryptedCredentials{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		LocationGUID: "loc-guid",
	}
}

func newTestFetcher(baseURL, authURL string) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL:    baseURL,
		authURL:    authURL,
		pageSize:   100,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		retry: RetryPolicy{
			MaxRetries:    3,
			InitialDelay:  time.Millisecond,
			MaxDelay:      5 * time.Millisecond,
			BackoffFactor: 2,
		},
		logger: zap.NewNop(),
	}
}

func TestAuthenticateSuccess(t *testing.T) {
	var gotGrantType, gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotGrantType = r.PostFormValue("grant_type")
		gotUser, gotPass, _ = r.BasicAuth()
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	fetcher := newTestFetcher("", srv.URL)

	token, err := fetcher.Authenticate(context.Background(), testCreds())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
	assert.Equal(t, "client_credentials", gotGrantType)
	assert.Equal(t, "client-id", gotUser)
	assert.Equal(t, "client-secret", gotPass)
}

func TestAuthenticateRejectionIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_client"}`)
	}))
	defer srv.Close()

	fetcher := newTestFetcher("", srv.URL)

	_, err := fetcher.Authenticate(context.Background(), testCreds())

	var authErr *UpstreamAuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Contains(t, authErr.Body, "invalid_client")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "auth rejections are terminal, never retried")
}

func TestAuthenticateEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"token_type":"Bearer"}`)
	}))
	defer srv.Close()

	fetcher := newTestFetcher("", srv.URL)

	_, err := fetcher.Authenticate(context.Background(), testCreds())
	var authErr *UpstreamAuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestFetchPageSendsWindowAndPagination(t *testing.T) {
	window := FetchWindow{
		Start: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/locations/loc-guid/transactions", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.Equal(t, "2026-07-01T00:00:00Z", q.Get("start_date"))
		assert.Equal(t, "2026-08-01T00:00:00Z", q.Get("end_date"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "100", q.Get("page_size"))

		json.NewEncoder(w).Encode(map[string]any{
			"transactions": []map[string]any{
				{"transaction_id": "t1", "total_amount": 10.5, "closed_at": "2026-07-02T12:00:00Z"},
			},
			"total_count": 150,
			"total_pages": 2,
			"has_more":    false,
		})
	}))
	defer srv.Close()

	fetcher := newTestFetcher(srv.URL, "")

	page, err := fetcher.FetchPage(context.Background(), "tok-123", "loc-guid", window, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, page.PageNumber)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "t1", page.Records[0].TransactionID)
	require.NotNil(t, page.TotalCount)
	assert.Equal(t, 150, *page.TotalCount)
	require.NotNil(t, page.TotalPages)
	assert.Equal(t, 2, *page.TotalPages)
	assert.True(t, page.Done())
}

func TestFetchPageRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"transactions":[],"has_more":false}`)
	}))
	defer srv.Close()

	fetcher := newTestFetcher(srv.URL, "")

	page, err := fetcher.FetchPage(context.Background(), "tok", "loc-guid", FetchWindow{}, 1)
	require.NoError(t, err)
	assert.True(t, page.Done())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "two 502s then success")
}

func TestFetchPageExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	fetcher := newTestFetcher(srv.URL, "")

	_, err := fetcher.FetchPage(context.Background(), "tok", "loc-guid", FetchWindow{}, 1)

	var transient *TransientNetworkError
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchPageAuthErrorPropagatesImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	fetcher := newTestFetcher(srv.URL, "")

	_, err := fetcher.FetchPage(context.Background(), "expired-tok", "loc-guid", FetchWindow{}, 1)

	var authErr *UpstreamAuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "expired token is not a transient failure")
}

func TestFetchPageTransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	fetcher := newTestFetcher(srv.URL, "")

	_, err := fetcher.FetchPage(context.Background(), "tok", "loc-guid", FetchWindow{}, 1)

	var transient *TransientNetworkError
	assert.ErrorAs(t, err, &transient)
}

func TestFetchPageUnexpectedStatusIsTerminal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	fetcher := newTestFetcher(srv.URL, "")

	_, err := fetcher.FetchPage(context.Background(), "tok", "missing-loc", FetchWindow{}, 1)
	require.Error(t, err)

	var transient *TransientNetworkError
	assert.False(t, errors.As(err, &transient), "a 404 is not retryable")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
