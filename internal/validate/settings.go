package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/GoPolymarket/fundgate/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ExpectObject is reported when the candidate itself is not a JSON object.
const ExpectObject Expect = "object"

var fieldExpect = map[string]Expect{
	model.KeyBaseToken:               ExpectAddress,
	model.KeyFundAddress:             ExpectAddress,
	model.KeyFundName:                ExpectText,
	model.KeyFundSymbol:              ExpectText,
	model.KeyDepositFee:              ExpectDecimal,
	model.KeyWithdrawFee:             ExpectDecimal,
	model.KeyPerformanceFee:          ExpectDecimal,
	model.KeyManagementFee:           ExpectDecimal,
	model.KeyPerformaceHurdleRateBps: ExpectDecimal,
	model.KeySafe:                    ExpectAddress,
	model.KeyIsExternalGovTokenInUse: ExpectBoolean,
	model.KeyIsWhitelistedDeposits:   ExpectBoolean,
	model.KeyAllowedDepositAddrs:     ExpectAddressList,
	model.KeyAllowedManagers:         ExpectAddressList,
	model.KeyGovernanceToken:         ExpectAddress,
	model.KeyGovernor:                ExpectAddress,
}

// ExpectedType returns the semantic type of a recognized field.
func ExpectedType(field string) (Expect, bool) {
	e, ok := fieldExpect[field]
	return e, ok
}

// Settings checks a typed record. Unrecognized extra fields never fail.
func Settings(fs model.FundSettings) error {
	v := New()
	v.settings(fs, nil)
	return v.Err()
}

// JSON decodes a candidate document and validates it in one pass. JSON type
// mismatches on recognized keys are reported alongside the semantic checks of
// the remaining fields. The decoded record is returned even when invalid.
func JSON(data []byte) (model.FundSettings, error) {
	v := New()
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		v.Malformed("$", ExpectObject, "fund settings must be a JSON object", nil)
		return model.FundSettings{}, v.Err()
	}

	skip := make(map[string]bool)
	for _, key := range model.RecognizedFields() {
		val, ok := raw[key]
		if !ok {
			continue
		}
		expect, _ := ExpectedType(key)
		if !v.checkJSONType(key, expect, val) {
			skip[key] = true
			delete(raw, key)
		}
	}

	clean, err := json.Marshal(raw)
	if err != nil {
		v.Malformed("$", ExpectObject, "fund settings could not be re-encoded", nil)
		return model.FundSettings{}, v.Err()
	}
	var fs model.FundSettings
	if err := json.Unmarshal(clean, &fs); err != nil {
		v.Malformed("$", ExpectObject, err.Error(), nil)
		return model.FundSettings{}, v.Err()
	}
	v.settings(fs, skip)
	return fs, v.Err()
}

func (v *Validator) settings(fs model.FundSettings, skip map[string]bool) {
	check := func(field string, fn func()) {
		if !skip[field] {
			fn()
		}
	}
	check(model.KeyBaseToken, func() { v.requiredAddress(model.KeyBaseToken, fs.BaseToken) })
	check(model.KeyFundAddress, func() { v.requiredAddress(model.KeyFundAddress, fs.FundAddress) })
	check(model.KeyFundName, func() { v.requiredText(model.KeyFundName, fs.FundName) })
	check(model.KeyFundSymbol, func() { v.requiredText(model.KeyFundSymbol, fs.FundSymbol) })

	for _, f := range []struct {
		key string
		val model.Optional[string]
	}{
		{model.KeyDepositFee, fs.DepositFee},
		{model.KeyWithdrawFee, fs.WithdrawFee},
		{model.KeyPerformanceFee, fs.PerformanceFee},
		{model.KeyManagementFee, fs.ManagementFee},
		{model.KeyPerformaceHurdleRateBps, fs.PerformaceHurdleRateBps},
	} {
		if f.val.Set && !skip[f.key] {
			v.decimalText(f.key, f.val.Value)
		}
	}

	for _, f := range []struct {
		key string
		val model.Optional[string]
	}{
		{model.KeySafe, fs.Safe},
		{model.KeyGovernanceToken, fs.GovernanceToken},
		{model.KeyGovernor, fs.Governor},
	} {
		if f.val.Set && !skip[f.key] {
			v.address(f.key, f.val.Value)
		}
	}

	for _, f := range []struct {
		key string
		val model.Optional[[]string]
	}{
		{model.KeyAllowedDepositAddrs, fs.AllowedDepositAddrs},
		{model.KeyAllowedManagers, fs.AllowedManagers},
	} {
		if !f.val.Set || skip[f.key] {
			continue
		}
		for i, addr := range f.val.Value {
			v.address(fmt.Sprintf("%s[%d]", f.key, i), addr)
		}
	}
}

func (v *Validator) requiredText(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Missing(field, ExpectText)
	}
}

func (v *Validator) requiredAddress(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Missing(field, ExpectAddress)
		return
	}
	if !v.address(field, value) {
		return
	}
	if common.HexToAddress(value) == (common.Address{}) {
		v.Malformed(field, ExpectAddress, "must not be the zero address", value)
	}
}

func (v *Validator) address(field, value string) bool {
	if msg := AddressProblem(value); msg != "" {
		v.Malformed(field, ExpectAddress, msg, value)
		return false
	}
	return true
}

func (v *Validator) decimalText(field, value string) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		v.Malformed(field, ExpectDecimal, "not a decimal number", value)
		return
	}
	if d.IsNegative() {
		v.Malformed(field, ExpectDecimal, "must not be negative", value)
	}
}

// AddressProblem returns "" for a well-formed 0x-prefixed 20-byte hex address.
// Mixed-case input must carry a valid EIP-55 checksum.
func AddressProblem(value string) string {
	if !strings.HasPrefix(value, "0x") {
		return "address must start with 0x"
	}
	if !common.IsHexAddress(value) {
		return "not a 20-byte hex address"
	}
	body := value[2:]
	mixed := strings.ToLower(body) != body && strings.ToUpper(body) != body
	if mixed && common.HexToAddress(value).Hex() != value {
		return "invalid EIP-55 checksum"
	}
	return ""
}

// checkJSONType reports a recognized key whose JSON value has the wrong type.
// null is accepted everywhere and decodes as "not provided".
func (v *Validator) checkJSONType(key string, expected Expect, val json.RawMessage) bool {
	trimmed := bytes.TrimSpace(val)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	switch expected {
	case ExpectAddress, ExpectText, ExpectDecimal:
		if trimmed[0] != '"' {
			v.Malformed(key, expected, "expected a JSON string", string(trimmed))
			return false
		}
	case ExpectBoolean:
		if !bytes.Equal(trimmed, []byte("true")) && !bytes.Equal(trimmed, []byte("false")) {
			v.Malformed(key, expected, "expected a JSON boolean", string(trimmed))
			return false
		}
	case ExpectAddressList:
		var items []json.RawMessage
		if trimmed[0] != '[' || json.Unmarshal(trimmed, &items) != nil {
			v.Malformed(key, expected, "expected a JSON array of strings", string(trimmed))
			return false
		}
		bad := make(map[int]bool)
		for i, item := range items {
			if it := bytes.TrimSpace(item); len(it) == 0 || it[0] != '"' {
				bad[i] = true
			}
		}
		if len(bad) == 0 {
			return true
		}
		// The key is dropped from the semantic pass, so check the string
		// elements here to keep the report complete.
		for i, item := range items {
			field := fmt.Sprintf("%s[%d]", key, i)
			if bad[i] {
				v.Malformed(field, ExpectAddress, "expected a JSON string", string(bytes.TrimSpace(item)))
				continue
			}
			var addr string
			if err := json.Unmarshal(item, &addr); err == nil {
				v.address(field, addr)
			}
		}
		return false
	}
	return true
}
