package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// JSON keys of the recognized fund settings fields. KeyPerformaceHurdleRateBps
// keeps the spelling of the upstream IGovernableFundStorage interface.
const (
	KeyBaseToken                = "baseToken"
	KeyFundAddress              = "fundAddress"
	KeyFundName                 = "fundName"
	KeyFundSymbol               = "fundSymbol"
	KeyDepositFee               = "depositFee"
	KeyWithdrawFee              = "withdrawFee"
	KeyPerformanceFee           = "performanceFee"
	KeyManagementFee            = "managementFee"
	KeyPerformaceHurdleRateBps  = "performaceHurdleRateBps"
	KeySafe                     = "safe"
	KeyIsExternalGovTokenInUse  = "isExternalGovTokenInUse"
	KeyIsWhitelistedDeposits    = "isWhitelistedDeposits"
	KeyAllowedDepositAddrs      = "allowedDepositAddrs"
	KeyAllowedManagers          = "allowedManagers"
	KeyGovernanceToken          = "governanceToken"
	KeyGovernor                 = "governor"
	KeyPerformanceHurdleRateBps = "performanceHurdleRateBps" // corrected alias, read-only
)

// FundSettings is the configuration of one fund instance. The named fields are
// the recognized minimum shape; every other key a producer sends is carried
// untouched in Extra.
type FundSettings struct {
	BaseToken   string
	FundAddress string
	FundName    string
	FundSymbol  string

	// Fees and the hurdle rate stay as text; parse them with a decimal type.
	DepositFee              Optional[string]
	WithdrawFee             Optional[string]
	PerformanceFee          Optional[string]
	ManagementFee           Optional[string]
	PerformaceHurdleRateBps Optional[string]

	Safe                    Optional[string]
	IsExternalGovTokenInUse Optional[bool]
	IsWhitelistedDeposits   Optional[bool]
	AllowedDepositAddrs     Optional[[]string]
	AllowedManagers         Optional[[]string]
	GovernanceToken         Optional[string]
	Governor                Optional[string]

	Extra map[string]json.RawMessage
}

type settingsField struct {
	key      string
	required bool
	slot     func(fs *FundSettings) any
}

var settingsFields = []settingsField{
	{KeyBaseToken, true, func(fs *FundSettings) any { return &fs.BaseToken }},
	{KeyFundAddress, true, func(fs *FundSettings) any { return &fs.FundAddress }},
	{KeyFundName, true, func(fs *FundSettings) any { return &fs.FundName }},
	{KeyFundSymbol, true, func(fs *FundSettings) any { return &fs.FundSymbol }},
	{KeyDepositFee, false, func(fs *FundSettings) any { return &fs.DepositFee }},
	{KeyWithdrawFee, false, func(fs *FundSettings) any { return &fs.WithdrawFee }},
	{KeyPerformanceFee, false, func(fs *FundSettings) any { return &fs.PerformanceFee }},
	{KeyManagementFee, false, func(fs *FundSettings) any { return &fs.ManagementFee }},
	{KeyPerformaceHurdleRateBps, false, func(fs *FundSettings) any { return &fs.PerformaceHurdleRateBps }},
	{KeySafe, false, func(fs *FundSettings) any { return &fs.Safe }},
	{KeyIsExternalGovTokenInUse, false, func(fs *FundSettings) any { return &fs.IsExternalGovTokenInUse }},
	{KeyIsWhitelistedDeposits, false, func(fs *FundSettings) any { return &fs.IsWhitelistedDeposits }},
	{KeyAllowedDepositAddrs, false, func(fs *FundSettings) any { return &fs.AllowedDepositAddrs }},
	{KeyAllowedManagers, false, func(fs *FundSettings) any { return &fs.AllowedManagers }},
	{KeyGovernanceToken, false, func(fs *FundSettings) any { return &fs.GovernanceToken }},
	{KeyGovernor, false, func(fs *FundSettings) any { return &fs.Governor }},
}

var recognized = func() map[string]bool {
	m := make(map[string]bool, len(settingsFields))
	for _, f := range settingsFields {
		m[f.key] = true
	}
	return m
}()

// RecognizedField reports whether key is one of the named settings fields.
// Matching is exact and case-sensitive.
func RecognizedField(key string) bool {
	return recognized[key]
}

func RecognizedFields() []string {
	out := make([]string, 0, len(settingsFields))
	for _, f := range settingsFields {
		out = append(out, f.key)
	}
	return out
}

func RequiredFields() []string {
	out := make([]string, 0, 4)
	for _, f := range settingsFields {
		if f.required {
			out = append(out, f.key)
		}
	}
	return out
}

// MarshalJSON writes the canonical form: compact, keys sorted, required fields
// always present, optional fields only when set, extras after filtering out any
// key that collides with a recognized one.
func (fs FundSettings) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(settingsFields)+len(fs.Extra))
	for key, val := range fs.Extra {
		if RecognizedField(key) {
			continue
		}
		out[key] = val
	}
	for _, f := range settingsFields {
		slot := f.slot(&fs)
		if opt, ok := slot.(interface{ IsZero() bool }); ok && opt.IsZero() {
			continue
		}
		raw, err := json.Marshal(slot)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.key, err)
		}
		out[f.key] = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes recognized keys by exact name into their typed slots and
// keeps every other key verbatim in Extra.
func (fs *FundSettings) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var decoded FundSettings
	for _, f := range settingsFields {
		val, ok := raw[f.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(val, f.slot(&decoded)); err != nil {
			return &FieldDecodeError{Field: f.key, Err: err}
		}
		delete(raw, f.key)
	}
	if len(raw) > 0 {
		decoded.Extra = raw
	}
	*fs = decoded
	return nil
}

// FieldDecodeError reports a recognized key whose JSON type does not match.
type FieldDecodeError struct {
	Field string
	Err   error
}

func (e *FieldDecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Field, e.Err)
}

func (e *FieldDecodeError) Unwrap() error {
	return e.Err
}

// ExtraKeys returns the unrecognized keys in sorted order.
func (fs FundSettings) ExtraKeys() []string {
	keys := make([]string, 0, len(fs.Extra))
	for k := range fs.Extra {
		if !RecognizedField(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// HurdleRateBps prefers the upstream key and falls back to a corrected
// performanceHurdleRateBps extra when a producer sent only that.
func (fs FundSettings) HurdleRateBps() Optional[string] {
	if fs.PerformaceHurdleRateBps.Set {
		return fs.PerformaceHurdleRateBps
	}
	raw, ok := fs.Extra[KeyPerformanceHurdleRateBps]
	if !ok {
		return None[string]()
	}
	var v Optional[string]
	if err := json.Unmarshal(raw, &v); err != nil {
		return None[string]()
	}
	return v
}

// Key is the storage key of the fund: its address, trimmed and lower-cased.
func (fs FundSettings) Key() string {
	return AddressKey(fs.FundAddress)
}

// Equal compares two records structurally through their canonical encoding.
func (fs FundSettings) Equal(other FundSettings) bool {
	a, err := json.Marshal(fs)
	if err != nil {
		return false
	}
	b, err := json.Marshal(other)
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

func AddressKey(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
