package model

// QuoteRequest asks for the fee a fund would charge. Amounts are decimal text.
type QuoteRequest struct {
	Kind       string `json:"kind" binding:"required,oneof=deposit withdraw performance management"`
	Amount     string `json:"amount" binding:"required"`
	Base       string `json:"base,omitempty"`        // principal, for performance quotes
	PeriodDays int    `json:"period_days,omitempty"` // for management quotes
}

type QuoteResponse struct {
	FundAddress string `json:"fund_address"`
	Kind        string `json:"kind"`
	Amount      string `json:"amount"`
	Rate        string `json:"rate"`
	Hurdle      string `json:"hurdle,omitempty"`
	Fee         string `json:"fee"`
	Net         string `json:"net"`
}

// FeeScheduleResponse exposes the parsed fee schedule as normalized fractions.
type FeeScheduleResponse struct {
	FundAddress   string  `json:"fund_address"`
	Unit          string  `json:"unit"`
	Deposit       *string `json:"deposit,omitempty"`
	Withdraw      *string `json:"withdraw,omitempty"`
	Performance   *string `json:"performance,omitempty"`
	Management    *string `json:"management,omitempty"`
	HurdleRateBps *string `json:"hurdle_rate_bps,omitempty"`
}

type DigestResponse struct {
	FundAddress  string `json:"fund_address"`
	Revision     int64  `json:"revision"`
	SettingsHash string `json:"settings_hash"`
	Digest       string `json:"digest"`
	ChainID      int64  `json:"chain_id"`
}

type DepositEligibility struct {
	FundAddress string `json:"fund_address"`
	Address     string `json:"address"`
	Whitelisted bool   `json:"whitelisted"`
	Allowed     bool   `json:"allowed"`
}

type ManagerCheck struct {
	FundAddress string `json:"fund_address"`
	Address     string `json:"address"`
	IsManager   bool   `json:"is_manager"`
}

// ValidationReport is the body of a dry-run validation.
type ValidationReport struct {
	Valid  bool        `json:"valid"`
	Errors interface{} `json:"errors,omitempty"`
}
