package signer

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/GoPolymarket/fundgate/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// Constants for EIP-712
const (
	EIP712DomainName    = "Fundgate Settings Registry"
	EIP712DomainVersion = "1"
)

var (
	// "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"
	EIP712DomainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

	// "FundSettingsUpdate(address fund,bytes32 settingsHash,uint256 revision)"
	UpdateTypeHash = crypto.Keccak256Hash([]byte("FundSettingsUpdate(address fund,bytes32 settingsHash,uint256 revision)"))
)

// Update is the struct a fund authority signs to publish a settings revision.
type Update struct {
	Fund         common.Address
	SettingsHash common.Hash
	Revision     *big.Int
}

// SettingsHash is keccak256 over the canonical JSON encoding of fs.
func SettingsHash(fs model.FundSettings) (common.Hash, error) {
	data, err := json.Marshal(fs)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode settings: %w", err)
	}
	return crypto.Keccak256Hash(data), nil
}

func NewUpdate(fs model.FundSettings, revision int64) (*Update, error) {
	if !common.IsHexAddress(fs.FundAddress) {
		return nil, fmt.Errorf("invalid fund address")
	}
	hash, err := SettingsHash(fs)
	if err != nil {
		return nil, err
	}
	return &Update{
		Fund:         common.HexToAddress(fs.FundAddress),
		SettingsHash: hash,
		Revision:     big.NewInt(revision),
	}, nil
}

// Domain holds the precomputed domain separator for one chain and registry.
type Domain struct {
	ChainID           *big.Int
	VerifyingContract common.Address
	separator         common.Hash
}

func NewDomain(chainID int64, verifyingContract string) (*Domain, error) {
	if verifyingContract == "" {
		verifyingContract = common.Address{}.Hex()
	}
	if !common.IsHexAddress(verifyingContract) {
		return nil, fmt.Errorf("invalid verifying contract address")
	}
	d := &Domain{
		ChainID:           big.NewInt(chainID),
		VerifyingContract: common.HexToAddress(verifyingContract),
	}

	// All fields are 32 bytes
	data := make([]byte, 32*5)
	copy(data[0:32], EIP712DomainTypeHash.Bytes())
	copy(data[32:64], crypto.Keccak256([]byte(EIP712DomainName)))
	copy(data[64:96], crypto.Keccak256([]byte(EIP712DomainVersion)))
	copy(data[96:128], math.U256Bytes(new(big.Int).Set(d.ChainID)))
	copy(data[128+12:160], d.VerifyingContract.Bytes())
	d.separator = crypto.Keccak256Hash(data)
	return d, nil
}

func (d *Domain) Separator() common.Hash {
	return d.separator
}

// Digest is keccak256("\x19\x01" || domainSeparator || hashStruct(update)).
func (d *Domain) Digest(u *Update) common.Hash {
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, d.separator.Bytes(), hashUpdate(u))
}

func hashUpdate(u *Update) []byte {
	data := make([]byte, 32*4)
	copy(data[0:32], UpdateTypeHash.Bytes())
	copy(data[32+12:64], u.Fund.Bytes())
	copy(data[64:96], u.SettingsHash.Bytes())
	if u.Revision != nil {
		copy(data[96:128], math.U256Bytes(new(big.Int).Set(u.Revision)))
	}
	return crypto.Keccak256(data)
}
