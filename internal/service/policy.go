package service

import (
	"strings"

	"github.com/GoPolymarket/fundgate/internal/model"
	"github.com/ethereum/go-ethereum/common"
)

// CanDeposit reports whether addr may deposit into the fund. The allow-list
// only binds when isWhitelistedDeposits is true.
func CanDeposit(fs model.FundSettings, addr string) bool {
	if !fs.IsWhitelistedDeposits.OrElse(false) {
		return true
	}
	list, _ := fs.AllowedDepositAddrs.Get()
	return containsAddress(list, addr)
}

func IsManager(fs model.FundSettings, addr string) bool {
	list, _ := fs.AllowedManagers.Get()
	return containsAddress(list, addr)
}

// IsGovernor reports whether addr is the declared governor.
func IsGovernor(fs model.FundSettings, addr string) bool {
	gov, ok := fs.Governor.Get()
	if !ok {
		return false
	}
	return sameAddress(gov, addr)
}

func containsAddress(list []string, addr string) bool {
	for _, candidate := range list {
		if sameAddress(candidate, addr) {
			return true
		}
	}
	return false
}

func sameAddress(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if !common.IsHexAddress(a) || !common.IsHexAddress(b) {
		return false
	}
	return common.HexToAddress(a) == common.HexToAddress(b)
}
