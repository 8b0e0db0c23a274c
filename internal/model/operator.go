package model

// RateLimitConfig is the token bucket applied to one operator.
type RateLimitConfig struct {
	QPS   float64 `json:"qps"`
	Burst int     `json:"burst"`
}

// Operator is an API client of the registry: a deployment pipeline, a fund
// admin UI, or a read-only indexer.
type Operator struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	APIKey   string          `json:"api_key"`
	ReadOnly bool            `json:"read_only"`
	Rate     RateLimitConfig `json:"rate_limit"`
}
