package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/GoPolymarket/fundgate/internal/model"
	"github.com/GoPolymarket/fundgate/internal/pkg/metrics"
	"github.com/ethereum/go-ethereum/common"
)

const (
	CheckOK       = "ok"
	CheckMismatch = "mismatch"
	CheckNoCode   = "no_code"
	CheckError    = "error"
)

const fieldBaseTokenDecimals = model.KeyBaseToken + ".decimals"

var erc20ABI = mustParseABI(`[
{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`)

// ChainCheck is the outcome of one on-chain cross-check of a settings field.
type ChainCheck struct {
	Field  string `json:"field"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// ChainInspector compares a fund's declared settings with what is deployed.
type ChainInspector struct {
	chain *ChainClient
}

func NewChainInspector(chain *ChainClient) *ChainInspector {
	return &ChainInspector{chain: chain}
}

func (i *ChainInspector) Configured() bool {
	return i != nil && i.chain.Configured()
}

func (i *ChainInspector) Inspect(ctx context.Context, fs model.FundSettings) ([]ChainCheck, error) {
	if !i.Configured() {
		return nil, ErrRPCNotConfigured
	}
	checks := make([]ChainCheck, 0, 8)

	fundCheck := i.checkCode(ctx, model.KeyFundAddress, fs.FundAddress)
	checks = append(checks, fundCheck)

	baseCheck := i.checkCode(ctx, model.KeyBaseToken, fs.BaseToken)
	checks = append(checks, baseCheck)

	for _, opt := range []struct {
		field string
		value model.Optional[string]
	}{
		{model.KeySafe, fs.Safe},
		{model.KeyGovernor, fs.Governor},
		{model.KeyGovernanceToken, fs.GovernanceToken},
	} {
		if v, ok := opt.value.Get(); ok && strings.TrimSpace(v) != "" {
			checks = append(checks, i.checkCode(ctx, opt.field, v))
		}
	}

	if fundCheck.Status == CheckOK {
		checks = append(checks,
			i.checkText(ctx, model.KeyFundName, fs.FundAddress, "name", fs.FundName),
			i.checkText(ctx, model.KeyFundSymbol, fs.FundAddress, "symbol", fs.FundSymbol),
		)
	}
	if baseCheck.Status == CheckOK {
		checks = append(checks, i.checkDecimals(ctx, fs.BaseToken))
	}

	for _, c := range checks {
		metrics.ChainChecks.WithLabelValues(c.Field, c.Status).Inc()
	}
	return checks, nil
}

func (i *ChainInspector) checkCode(ctx context.Context, field, addr string) ChainCheck {
	if !common.IsHexAddress(addr) {
		return ChainCheck{Field: field, Status: CheckError, Detail: "not a hex address"}
	}
	code, err := i.chain.CodeAt(ctx, common.HexToAddress(addr))
	if err != nil {
		return ChainCheck{Field: field, Status: CheckError, Detail: err.Error()}
	}
	if len(code) == 0 {
		return ChainCheck{Field: field, Status: CheckNoCode, Detail: "no contract deployed at " + addr}
	}
	return ChainCheck{Field: field, Status: CheckOK}
}

func (i *ChainInspector) checkText(ctx context.Context, field, contract, method, want string) ChainCheck {
	got, err := i.callString(ctx, contract, method)
	if err != nil {
		return ChainCheck{Field: field, Status: CheckError, Detail: err.Error()}
	}
	if got != want {
		return ChainCheck{Field: field, Status: CheckMismatch, Detail: fmt.Sprintf("%s() returned %q, settings declare %q", method, got, want)}
	}
	return ChainCheck{Field: field, Status: CheckOK}
}

func (i *ChainInspector) checkDecimals(ctx context.Context, token string) ChainCheck {
	data, err := erc20ABI.Pack("decimals")
	if err != nil {
		return ChainCheck{Field: fieldBaseTokenDecimals, Status: CheckError, Detail: err.Error()}
	}
	out, err := i.chain.Call(ctx, common.HexToAddress(token), data)
	if err != nil {
		return ChainCheck{Field: fieldBaseTokenDecimals, Status: CheckError, Detail: err.Error()}
	}
	values, err := erc20ABI.Unpack("decimals", out)
	if err != nil || len(values) != 1 {
		return ChainCheck{Field: fieldBaseTokenDecimals, Status: CheckMismatch, Detail: "decimals() is not readable"}
	}
	return ChainCheck{Field: fieldBaseTokenDecimals, Status: CheckOK, Detail: fmt.Sprintf("decimals=%v", values[0])}
}

func (i *ChainInspector) callString(ctx context.Context, contract, method string) (string, error) {
	data, err := erc20ABI.Pack(method)
	if err != nil {
		return "", err
	}
	out, err := i.chain.Call(ctx, common.HexToAddress(contract), data)
	if err != nil {
		return "", err
	}
	values, err := erc20ABI.Unpack(method, out)
	if err != nil {
		return "", fmt.Errorf("decode %s(): %w", method, err)
	}
	s, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("%s() did not return a string", method)
	}
	return s, nil
}
