package pos

import "time"

// ProviderTransaction is the raw record shape returned by the POS provider.
// Monetary and timestamp fields are pointers so missing values survive decode
// and can be counted as per-record failures downstream.
type ProviderTransaction struct {
	TransactionID string   `json:"transaction_id"`
	LocationID    string   `json:"location_id"`
	TotalAmount   *float64 `json:"total_amount"`
	Currency      string   `json:"currency"`
	ClosedAt      string   `json:"closed_at"` // RFC3339, provider-local offset
	ItemCount     int      `json:"item_count"`
	PaymentType   string   `json:"payment_type"`
	TipAmount     float64  `json:"tip_amount"`
}

// Page is one fetched batch. TotalCount and TotalPages are nil when the
// provider omits totals, in which case percent-complete degrades to
// page-count estimation.
type Page struct {
	Records    []ProviderTransaction `json:"transactions"`
	PageNumber int                   `json:"page"`
	TotalCount *int                  `json:"total_count"`
	TotalPages *int                  `json:"total_pages"`
	HasMore    bool                  `json:"has_more"`
}

// Done reports whether this was the last page.
func (p *Page) Done() bool {
	return !p.HasMore
}

// FetchWindow is the inclusive date range requested from the provider.
type FetchWindow struct {
	Start time.Time
	End   time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
