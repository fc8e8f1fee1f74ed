package pos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go-pos-sync/internal/config"
	"go-pos-sync/internal/features/credential"

	"go.uber.org/zap"
)

// Fetcher authenticates to the POS provider and retrieves paginated
// transaction batches for a date window.
type Fetcher interface {
	Authenticate(ctx context.Context, creds *credential.DecryptedCredentials) (string, error)
	FetchPage(ctx context.Context, accessToken, locationGUID string, window FetchWindow, page int) (*Page, error)
}

type HTTPFetcher struct {
	baseURL    string
	authURL    string
	pageSize   int
	httpClient *http.Client
	retry      RetryPolicy
	logger     *zap.Logger
}

func NewFetcher(cfg *config.Config, logger *zap.Logger) Fetcher {
	return &HTTPFetcher{
		baseURL:  strings.TrimRight(cfg.POSBaseURL, "/"),
		authURL:  cfg.POSAuthURL,
		pageSize: cfg.POSPageSize,
		httpClient: &http.Client{
			Timeout: cfg.POSHTTPTimeout,
		},
		retry:  DefaultRetryPolicy(),
		logger: logger,
	}
}

// Authenticate performs an OAuth client-credentials exchange. Any non-2xx
// response is an UpstreamAuthError and is never retried.
func (f *HTTPFetcher) Authenticate(ctx context.Context, creds *credential.DecryptedCredentials) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(creds.ClientID, creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", &TransientNetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamAuthError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", &UpstreamAuthError{StatusCode: resp.StatusCode, Body: "empty access_token"}
	}

	return token.AccessToken, nil
}

// FetchPage retrieves one page of transactions. Transport failures and 5xx
// responses are retried with backoff; 4xx responses propagate immediately.
func (f *HTTPFetcher) FetchPage(ctx context.Context, accessToken, locationGUID string, window FetchWindow, page int) (*Page, error) {
	var lastErr error
	for attempt := 1; attempt <= f.retry.MaxRetries; attempt++ {
		result, err := f.fetchPageOnce(ctx, accessToken, locationGUID, window, page)
		if err == nil {
			return result, nil
		}

		var transient *TransientNetworkError
		if !errors.As(err, &transient) {
			return nil, err
		}
		lastErr = err

		delay := f.retry.NextDelay(attempt)
		f.logger.Warn("transient POS fetch error, retrying",
			zap.Int("page", page),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

func (f *HTTPFetcher) fetchPageOnce(ctx context.Context, accessToken, locationGUID string, window FetchWindow, page int) (*Page, error) {
	endpoint := fmt.Sprintf("%s/v1/locations/%s/transactions", f.baseURL, url.PathEscape(locationGUID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	q := req.URL.Query()
	q.Set("start_date", window.Start.UTC().Format(time.RFC3339))
	q.Set("end_date", window.End.UTC().Format(time.RFC3339))
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(f.pageSize))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &TransientNetworkError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamAuthError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	case resp.StatusCode >= 500:
		return nil, &TransientNetworkError{Err: fmt.Errorf("provider returned HTTP %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected provider response HTTP %d", resp.StatusCode)
	}

	var result Page
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &TransientNetworkError{Err: fmt.Errorf("failed to decode page %d: %w", page, err)}
	}
	result.PageNumber = page

	return &result, nil
}
