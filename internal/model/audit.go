package model

import (
	"time"
)

// AuditLog is one recorded API call.
type AuditLog struct {
	ID          string `json:"id"` // request id (UUID)
	OperatorID  string `json:"operator_id"`
	FundAddress string `json:"fund_address,omitempty"`
	Method      string `json:"method"`
	Path        string `json:"path"`
	IP          string `json:"ip"`
	UserAgent   string `json:"user_agent"`

	RequestBody   string `json:"request_body"` // redacted
	RequestHeader string `json:"request_header"`

	StatusCode   int    `json:"status_code"`
	ResponseBody string `json:"response_body"`
	LatencyMs    int64  `json:"latency_ms"`

	// Business context added by handlers (revision, signer, validation failures).
	Context map[string]interface{} `json:"context"`

	CreatedAt time.Time `json:"created_at"`
}
