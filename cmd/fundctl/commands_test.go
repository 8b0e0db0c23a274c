package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/GoPolymarket/fundgate/internal/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

const validDoc = `{
  "baseToken": "0x2791bca1f2de4661ed88a30c99a7a9449aa84174",
  "fundAddress": "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
  "fundName": "Alpha Yield",
  "fundSymbol": "AYF",
  "depositFee": "0.01"
}`

var testArgs = domainArgs{revision: 3, chainID: 137, registry: "0x00000000000000000000000000000000000000aa"}

func writeDoc(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fund.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func exitCode(err error) int {
	if coder, ok := err.(cli.ExitCoder); ok {
		return coder.ExitCode()
	}
	return -1
}

func TestRunValidate(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runValidate(&out, writeDoc(t, validDoc)))
	assert.JSONEq(t, `{"valid":true}`, out.String())

	out.Reset()
	err := runValidate(&out, writeDoc(t, `{"fundName":"x"}`))
	assert.Equal(t, 1, exitCode(err))
	var report struct {
		Valid  bool              `json:"valid"`
		Errors []json.RawMessage `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.False(t, report.Valid)
	assert.NotEmpty(t, report.Errors)

	assert.Equal(t, 2, exitCode(runValidate(&out, "")))
	assert.Error(t, runValidate(&out, filepath.Join(t.TempDir(), "missing.json")))
}

func TestRunDigestMatchesSigner(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runDigest(&out, writeDoc(t, validDoc), testArgs))

	var got digestOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, int64(3), got.Revision)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", got.FundAddress)
	assert.Empty(t, got.Signature)

	err := runDigest(&out, writeDoc(t, validDoc), domainArgs{revision: 0, chainID: 137, registry: testArgs.registry})
	assert.Equal(t, 2, exitCode(err))
}

func TestRunSignRecovers(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	var out bytes.Buffer
	require.NoError(t, runSign(&out, writeDoc(t, validDoc), hexutil.Encode(crypto.FromECDSA(key)), testArgs))

	var got digestOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, want.Hex(), got.Signer)

	recovered, err := signer.Recover(common.HexToHash(got.Digest), got.Signature)
	require.NoError(t, err)
	assert.Equal(t, want, recovered)

	assert.Equal(t, 2, exitCode(runSign(&out, writeDoc(t, validDoc), "", testArgs)))
	assert.Equal(t, 1, exitCode(runSign(&out, writeDoc(t, `{}`), hexutil.Encode(crypto.FromECDSA(key)), testArgs)))
}
