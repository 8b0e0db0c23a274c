package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/GoPolymarket/fundgate/internal/model"
	"github.com/GoPolymarket/fundgate/internal/pkg/logger"
	"github.com/GoPolymarket/fundgate/internal/pkg/metrics"
	"github.com/GoPolymarket/fundgate/internal/signer"
	"github.com/ethereum/go-ethereum/common"
)

// Submission carries who is writing a fund record and, when signatures are
// required, the EIP-712 signature over the update.
type Submission struct {
	OperatorID string
	Signer     string
	Signature  string
}

type SafeVerifier interface {
	Verify(ctx context.Context, contractAddr string, digest common.Hash, signature string) (bool, error)
}

// Authorizer checks that a settings write is signed by an authority of the
// governing record: a listed manager, the governor, or the fund Safe.
type Authorizer struct {
	domain   *signer.Domain
	safe     SafeVerifier
	required bool
}

func NewAuthorizer(domain *signer.Domain, safe SafeVerifier, required bool) *Authorizer {
	return &Authorizer{domain: domain, safe: safe, required: required}
}

func (a *Authorizer) Required() bool {
	return a != nil && a.required
}

func (a *Authorizer) ChainID() int64 {
	return a.domain.ChainID.Int64()
}

func (a *Authorizer) Digest(fs model.FundSettings, revision int64) (*signer.Update, common.Hash, error) {
	update, err := signer.NewUpdate(fs, revision)
	if err != nil {
		return nil, common.Hash{}, err
	}
	return update, a.domain.Digest(update), nil
}

// Authorize returns the checksummed address that authorized the write of
// target at revision. governing is the record whose authorities may sign.
// When signatures are not required it returns an empty address.
func (a *Authorizer) Authorize(ctx context.Context, governing, target model.FundSettings, revision int64, sub Submission) (string, error) {
	if !a.Required() {
		return "", nil
	}
	if strings.TrimSpace(sub.Signature) == "" {
		metrics.SignatureChecks.WithLabelValues("none", "missing").Inc()
		return "", model.ErrSignatureRequired
	}
	_, digest, err := a.Digest(target, revision)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrSignatureInvalid, err)
	}

	// An EOA signature recovers to a manager or the governor.
	if recovered, err := signer.Recover(digest, sub.Signature); err == nil {
		addr := recovered.Hex()
		claimed := strings.TrimSpace(sub.Signer)
		if claimed == "" || sameAddress(claimed, addr) {
			if IsManager(governing, addr) || IsGovernor(governing, addr) {
				metrics.SignatureChecks.WithLabelValues("ecdsa", "ok").Inc()
				return addr, nil
			}
		}
	}

	// Otherwise the fund Safe may accept it as a contract signature.
	if safeAddr, ok := governing.Safe.Get(); ok && common.IsHexAddress(safeAddr) && a.safe != nil {
		claimed := strings.TrimSpace(sub.Signer)
		if claimed == "" || sameAddress(claimed, safeAddr) {
			valid, err := a.safe.Verify(ctx, safeAddr, digest, sub.Signature)
			if err != nil {
				logger.Warn("eip1271 verification failed", "safe", safeAddr, "error", err)
				metrics.SignatureChecks.WithLabelValues("eip1271", "error").Inc()
			} else if valid {
				metrics.SignatureChecks.WithLabelValues("eip1271", "ok").Inc()
				return common.HexToAddress(safeAddr).Hex(), nil
			}
		}
	}

	metrics.SignatureChecks.WithLabelValues("any", "rejected").Inc()
	return "", model.ErrSignatureInvalid
}
