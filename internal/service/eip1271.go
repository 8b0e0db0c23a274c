package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const eip1271MagicValue = "0x1626ba7e"

var eip1271ABI = mustParseABI(`[{"constant":true,"inputs":[{"name":"_hash","type":"bytes32"},{"name":"_signature","type":"bytes"}],"name":"isValidSignature","outputs":[{"name":"magicValue","type":"bytes4"}],"payable":false,"stateMutability":"view","type":"function"}]`)

// EIP1271Verifier asks a contract wallet (the fund Safe) whether it accepts a
// signature over a digest. Answers are cached for cacheTTL.
type EIP1271Verifier struct {
	chain    *ChainClient
	mu       sync.Mutex
	cacheTTL time.Duration
	cache    map[string]cacheEntry
}

type cacheEntry struct {
	valid   bool
	expires time.Time
}

func NewEIP1271Verifier(chain *ChainClient, ttl time.Duration) *EIP1271Verifier {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &EIP1271Verifier{
		chain:    chain,
		cacheTTL: ttl,
		cache:    make(map[string]cacheEntry),
	}
}

func (v *EIP1271Verifier) Verify(ctx context.Context, contractAddr string, digest common.Hash, signature string) (bool, error) {
	if !v.chain.Configured() {
		return false, ErrRPCNotConfigured
	}
	if !common.IsHexAddress(contractAddr) {
		return false, fmt.Errorf("invalid contract address")
	}
	sigBytes, err := hexutil.Decode(signature)
	if err != nil {
		return false, fmt.Errorf("invalid signature encoding")
	}
	cacheKey := v.cacheKey(contractAddr, digest, signature)
	if hit, ok := v.cacheGet(cacheKey); ok {
		return hit, nil
	}

	data, err := eip1271ABI.Pack("isValidSignature", [32]byte(digest), sigBytes)
	if err != nil {
		return false, fmt.Errorf("failed to pack call data")
	}
	output, err := v.chain.Call(ctx, common.HexToAddress(contractAddr), data)
	if err != nil {
		return false, err
	}
	if len(output) < 4 {
		v.cacheSet(cacheKey, false)
		return false, nil
	}
	valid := strings.EqualFold(hexutil.Encode(output[:4]), eip1271MagicValue)
	v.cacheSet(cacheKey, valid)
	return valid, nil
}

func (v *EIP1271Verifier) cacheKey(contractAddr string, digest common.Hash, signature string) string {
	return strings.ToLower(contractAddr) + ":" + digest.Hex() + ":" + strings.ToLower(signature)
}

func (v *EIP1271Verifier) cacheGet(key string) (bool, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	entry, ok := v.cache[key]
	if !ok {
		return false, false
	}
	if time.Now().After(entry.expires) {
		delete(v.cache, key)
		return false, false
	}
	return entry.valid, true
}

func (v *EIP1271Verifier) cacheSet(key string, valid bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cache[key] = cacheEntry{
		valid:   valid,
		expires: time.Now().Add(v.cacheTTL),
	}
}

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}
