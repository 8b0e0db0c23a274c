package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GoPolymarket/fundgate/internal/model"
	"github.com/shopspring/decimal"
)

const (
	FeeUnitFraction = "fraction"
	FeeUnitPercent  = "percent"
	FeeUnitBps      = "bps"
)

const (
	QuoteDeposit     = "deposit"
	QuoteWithdraw    = "withdraw"
	QuotePerformance = "performance"
	QuoteManagement  = "management"
)

var (
	ErrUnknownFeeUnit   = errors.New("unknown fee unit")
	ErrUnknownQuoteKind = errors.New("unknown quote kind")
	ErrNegativeAmount   = errors.New("amount must not be negative")
	ErrInvalidAmount    = errors.New("amount must be a decimal number")
)

var (
	bpsDenominator = decimal.NewFromInt(10000)
	daysPerYear    = decimal.NewFromInt(365)
)

// FeeSchedule holds a fund's fees as fractions (0.015 is 1.5%). A nil rate
// means the fund does not declare that fee.
type FeeSchedule struct {
	Unit        string
	Deposit     *decimal.Decimal
	Withdraw    *decimal.Decimal
	Performance *decimal.Decimal
	Management  *decimal.Decimal
	HurdleBps   *decimal.Decimal
}

// FeeQuote is the result of applying one fee to an amount.
type FeeQuote struct {
	Kind   string
	Amount decimal.Decimal
	Rate   decimal.Decimal
	Hurdle *decimal.Decimal
	Fee    decimal.Decimal
	Net    decimal.Decimal
}

func NormalizeFeeUnit(unit string) (string, error) {
	switch u := strings.ToLower(strings.TrimSpace(unit)); u {
	case "", FeeUnitFraction:
		return FeeUnitFraction, nil
	case FeeUnitPercent, FeeUnitBps:
		return u, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFeeUnit, unit)
	}
}

// ParseFeeSchedule reads the fee fields of fs, interpreting them in unit.
func ParseFeeSchedule(fs model.FundSettings, unit string) (*FeeSchedule, error) {
	unit, err := NormalizeFeeUnit(unit)
	if err != nil {
		return nil, err
	}
	sched := &FeeSchedule{Unit: unit}
	for _, f := range []struct {
		key  string
		raw  model.Optional[string]
		dest **decimal.Decimal
	}{
		{model.KeyDepositFee, fs.DepositFee, &sched.Deposit},
		{model.KeyWithdrawFee, fs.WithdrawFee, &sched.Withdraw},
		{model.KeyPerformanceFee, fs.PerformanceFee, &sched.Performance},
		{model.KeyManagementFee, fs.ManagementFee, &sched.Management},
	} {
		d, err := parseRate(f.key, f.raw, unit)
		if err != nil {
			return nil, err
		}
		*f.dest = d
	}

	if raw, ok := fs.HurdleRateBps().Get(); ok && strings.TrimSpace(raw) != "" {
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", model.KeyPerformaceHurdleRateBps, err)
		}
		sched.HurdleBps = &d
	}
	return sched, nil
}

func parseRate(key string, raw model.Optional[string], unit string) (*decimal.Decimal, error) {
	text, ok := raw.Get()
	if !ok || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	switch unit {
	case FeeUnitPercent:
		d = d.Div(decimal.NewFromInt(100))
	case FeeUnitBps:
		d = d.Div(bpsDenominator)
	}
	return &d, nil
}

// Quote applies the fee of the given kind. For performance quotes amount is
// the gain and base the principal the hurdle applies to; for management
// quotes amount is assets under management over periodDays.
func (s *FeeSchedule) Quote(kind string, amount, base decimal.Decimal, periodDays int) (*FeeQuote, error) {
	if amount.IsNegative() || base.IsNegative() || periodDays < 0 {
		return nil, ErrNegativeAmount
	}
	q := &FeeQuote{Kind: kind, Amount: amount}

	var rate *decimal.Decimal
	switch kind {
	case QuoteDeposit:
		rate = s.Deposit
	case QuoteWithdraw:
		rate = s.Withdraw
	case QuotePerformance:
		rate = s.Performance
	case QuoteManagement:
		rate = s.Management
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuoteKind, kind)
	}
	if rate != nil {
		q.Rate = *rate
	}

	switch kind {
	case QuoteDeposit, QuoteWithdraw:
		q.Fee = amount.Mul(q.Rate)
	case QuotePerformance:
		hurdle := decimal.Zero
		if s.HurdleBps != nil {
			hurdle = base.Mul(*s.HurdleBps).Div(bpsDenominator)
		}
		q.Hurdle = &hurdle
		if amount.GreaterThan(hurdle) {
			q.Fee = amount.Sub(hurdle).Mul(q.Rate)
		}
	case QuoteManagement:
		q.Fee = amount.Mul(q.Rate).Mul(decimal.NewFromInt(int64(periodDays))).Div(daysPerYear)
	}
	q.Net = amount.Sub(q.Fee)
	return q, nil
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func (s *FeeSchedule) Response(fundAddress string) model.FeeScheduleResponse {
	return model.FeeScheduleResponse{
		FundAddress:   fundAddress,
		Unit:          s.Unit,
		Deposit:       decimalString(s.Deposit),
		Withdraw:      decimalString(s.Withdraw),
		Performance:   decimalString(s.Performance),
		Management:    decimalString(s.Management),
		HurdleRateBps: decimalString(s.HurdleBps),
	}
}

func (q *FeeQuote) Response(fundAddress string) model.QuoteResponse {
	resp := model.QuoteResponse{
		FundAddress: fundAddress,
		Kind:        q.Kind,
		Amount:      q.Amount.String(),
		Rate:        q.Rate.String(),
		Fee:         q.Fee.String(),
		Net:         q.Net.String(),
	}
	if q.Hurdle != nil {
		resp.Hurdle = q.Hurdle.String()
	}
	return resp
}
