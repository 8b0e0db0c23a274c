package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/GoPolymarket/fundgate/internal/model"
	"github.com/GoPolymarket/fundgate/internal/signer"
	"github.com/GoPolymarket/fundgate/internal/validate"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testFund     = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	testBase     = "0x2791bca1f2de4661ed88a30c99a7a9449aa84174"
	testSafe     = "0x00000000000000000000000000000000000000a5"
	testRegistry = "0x00000000000000000000000000000000000000aa"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ChangeEvent
}

func (p *recordingPublisher) Publish(evt model.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type mapCache struct {
	mu          sync.Mutex
	recs        map[string]*model.FundRecord
	invalidated []string
}

func newMapCache() *mapCache {
	return &mapCache{recs: make(map[string]*model.FundRecord)}
}

func (c *mapCache) Get(ctx context.Context, addr string) (*model.FundRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.recs[model.AddressKey(addr)]
	return rec.Clone(), ok
}

func (c *mapCache) Set(ctx context.Context, rec *model.FundRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs[rec.Key()] = rec.Clone()
}

func (c *mapCache) Invalidate(ctx context.Context, addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.recs, model.AddressKey(addr))
	c.invalidated = append(c.invalidated, model.AddressKey(addr))
}

type stubSafe struct {
	valid bool
	calls int
}

func (s *stubSafe) Verify(ctx context.Context, contractAddr string, digest common.Hash, signature string) (bool, error) {
	s.calls++
	return s.valid, nil
}

func testDomain(t *testing.T) *signer.Domain {
	t.Helper()
	d, err := signer.NewDomain(137, testRegistry)
	require.NoError(t, err)
	return d
}

func newKeySigner(t *testing.T, domain *signer.Domain) *signer.Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s, err := signer.NewSigner(hexutil.Encode(crypto.FromECDSA(key)), domain)
	require.NoError(t, err)
	return s
}

func baseSettings(managers ...string) model.FundSettings {
	fs := model.FundSettings{
		BaseToken:   testBase,
		FundAddress: testFund,
		FundName:    "Alpha Yield",
		FundSymbol:  "AYF",
		DepositFee:  model.Some("0.01"),
	}
	if len(managers) > 0 {
		fs.AllowedManagers = model.Some(managers)
	}
	return fs
}

func rawSettings(t *testing.T, fs model.FundSettings) []byte {
	t.Helper()
	raw, err := json.Marshal(fs)
	require.NoError(t, err)
	return raw
}

func sign(t *testing.T, s *signer.Signer, fs model.FundSettings, revision int64) string {
	t.Helper()
	update, err := signer.NewUpdate(fs, revision)
	require.NoError(t, err)
	sig, err := s.SignUpdate(update)
	require.NoError(t, err)
	return sig
}

func newTestService(t *testing.T, required bool, safe SafeVerifier) (*FundService, *mapCache, *recordingPublisher) {
	t.Helper()
	cache := newMapCache()
	pub := &recordingPublisher{}
	auth := NewAuthorizer(testDomain(t), safe, required)
	svc := NewFundService(NewMemoryFundStore(), cache, auth, pub, "fraction")
	return svc, cache, pub
}

func TestFundService_CreateAndGet(t *testing.T) {
	svc, cache, pub := newTestService(t, false, nil)
	ctx := context.Background()

	rec, err := svc.Create(ctx, rawSettings(t, baseSettings()), Submission{OperatorID: "op-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Revision)
	assert.Equal(t, "op-1", rec.UpdatedBy)
	assert.Empty(t, rec.Signer)

	// Lookups are case-insensitive on the address.
	got, err := svc.Get(ctx, "0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED")
	require.NoError(t, err)
	assert.True(t, got.Settings.Equal(rec.Settings))
	assert.Contains(t, cache.recs, model.AddressKey(testFund))
	assert.Equal(t, []string{model.EventCreated}, pub.types())

	_, err = svc.Create(ctx, rawSettings(t, baseSettings()), Submission{})
	assert.ErrorIs(t, err, model.ErrFundExists)
}

func TestFundService_CreateRejectsInvalidSettings(t *testing.T) {
	svc, _, pub := newTestService(t, false, nil)
	fs := baseSettings()
	fs.FundName = ""
	fs.ManagementFee = model.Some("abc")

	_, err := svc.Create(context.Background(), rawSettings(t, fs), Submission{})
	var vErr *validate.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.ElementsMatch(t, []string{model.KeyFundName, model.KeyManagementFee}, vErr.Fields())

	_, err = svc.Get(context.Background(), testFund)
	assert.ErrorIs(t, err, model.ErrFundNotFound)
	assert.Empty(t, pub.types())
}

func TestFundService_GetRejectsBadAddress(t *testing.T) {
	svc, _, _ := newTestService(t, false, nil)
	_, err := svc.Get(context.Background(), "fund-1")
	assert.ErrorIs(t, err, model.ErrInvalidAddress)

	// Forty hex digits without the 0x prefix are not an address.
	_, err = svc.Get(context.Background(), "5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	assert.ErrorIs(t, err, model.ErrInvalidAddress)
	assert.ErrorIs(t, svc.Delete(context.Background(), "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"), model.ErrInvalidAddress)

	// A mixed-case address with a broken checksum is rejected too.
	_, err = svc.Get(context.Background(), "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD")
	assert.ErrorIs(t, err, model.ErrInvalidAddress)
}

func TestFundService_ReplaceBumpsRevision(t *testing.T) {
	svc, _, pub := newTestService(t, false, nil)
	ctx := context.Background()
	created, err := svc.Create(ctx, rawSettings(t, baseSettings()), Submission{})
	require.NoError(t, err)

	next := baseSettings()
	next.FundName = "Alpha Yield II"
	updated, err := svc.Replace(ctx, testFund, rawSettings(t, next), Submission{OperatorID: "op-2"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Revision)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "Alpha Yield II", updated.Settings.FundName)
	assert.Equal(t, []string{model.EventCreated, model.EventUpdated}, pub.types())

	got, err := svc.Get(ctx, testFund)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Revision)
}

func TestFundService_ReplaceErrors(t *testing.T) {
	svc, _, _ := newTestService(t, false, nil)
	ctx := context.Background()

	_, err := svc.Replace(ctx, testFund, rawSettings(t, baseSettings()), Submission{})
	assert.ErrorIs(t, err, model.ErrFundNotFound)

	_, err = svc.Create(ctx, rawSettings(t, baseSettings()), Submission{})
	require.NoError(t, err)
	_, err = svc.Replace(ctx, "0x1111111111111111111111111111111111111111", rawSettings(t, baseSettings()), Submission{})
	assert.ErrorIs(t, err, model.ErrAddressMismatch)
}

func TestFundService_DeleteInvalidatesCache(t *testing.T) {
	svc, cache, pub := newTestService(t, false, nil)
	ctx := context.Background()
	_, err := svc.Create(ctx, rawSettings(t, baseSettings()), Submission{})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, testFund))
	assert.Equal(t, []string{model.AddressKey(testFund)}, cache.invalidated)
	assert.Equal(t, []string{model.EventCreated, model.EventDeleted}, pub.types())

	_, err = svc.Get(ctx, testFund)
	assert.ErrorIs(t, err, model.ErrFundNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, testFund), model.ErrFundNotFound)
}

func TestFundService_SignedWrites(t *testing.T) {
	domain := testDomain(t)
	manager := newKeySigner(t, domain)
	stranger := newKeySigner(t, domain)
	svc, _, _ := newTestService(t, true, nil)
	ctx := context.Background()

	fs := baseSettings(manager.Address().Hex())
	raw := rawSettings(t, fs)

	_, err := svc.Create(ctx, raw, Submission{})
	assert.ErrorIs(t, err, model.ErrSignatureRequired)

	_, err = svc.Create(ctx, raw, Submission{Signature: sign(t, stranger, fs, 1)})
	assert.ErrorIs(t, err, model.ErrSignatureInvalid)

	// The signature must cover revision 1.
	_, err = svc.Create(ctx, raw, Submission{Signature: sign(t, manager, fs, 2)})
	assert.ErrorIs(t, err, model.ErrSignatureInvalid)

	rec, err := svc.Create(ctx, raw, Submission{Signer: manager.Address().Hex(), Signature: sign(t, manager, fs, 1)})
	require.NoError(t, err)
	assert.Equal(t, manager.Address().Hex(), rec.Signer)

	// A replace is governed by the stored record, so a stranger cannot add
	// themselves as manager.
	takeover := baseSettings(stranger.Address().Hex())
	_, err = svc.Replace(ctx, testFund, rawSettings(t, takeover), Submission{Signature: sign(t, stranger, takeover, 2)})
	assert.ErrorIs(t, err, model.ErrSignatureInvalid)

	handover := baseSettings(stranger.Address().Hex())
	rec, err = svc.Replace(ctx, testFund, rawSettings(t, handover), Submission{Signature: sign(t, manager, handover, 2)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Revision)
	assert.Equal(t, manager.Address().Hex(), rec.Signer)
}

func TestFundService_GovernorMaySign(t *testing.T) {
	domain := testDomain(t)
	governor := newKeySigner(t, domain)
	svc, _, _ := newTestService(t, true, nil)

	fs := baseSettings()
	fs.Governor = model.Some(governor.Address().Hex())
	rec, err := svc.Create(context.Background(), rawSettings(t, fs), Submission{Signature: sign(t, governor, fs, 1)})
	require.NoError(t, err)
	assert.Equal(t, governor.Address().Hex(), rec.Signer)
}

func TestFundService_SafeSignature(t *testing.T) {
	domain := testDomain(t)
	owner := newKeySigner(t, domain)
	safe := &stubSafe{valid: true}
	svc, _, _ := newTestService(t, true, safe)

	fs := baseSettings()
	fs.Safe = model.Some(testSafe)
	rec, err := svc.Create(context.Background(), rawSettings(t, fs), Submission{
		Signer:    testSafe,
		Signature: sign(t, owner, fs, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testSafe).Hex(), rec.Signer)
	assert.Equal(t, 1, safe.calls)

	safe.valid = false
	next := fs
	next.FundSymbol = "AYF2"
	_, err = svc.Replace(context.Background(), testFund, rawSettings(t, next), Submission{Signature: sign(t, owner, next, 2)})
	assert.ErrorIs(t, err, model.ErrSignatureInvalid)
}

func TestFundService_UpdateDigest(t *testing.T) {
	svc, _, _ := newTestService(t, false, nil)
	ctx := context.Background()
	fs := baseSettings()
	raw := rawSettings(t, fs)

	first, err := svc.UpdateDigest(ctx, testFund, raw, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Revision)
	assert.Equal(t, int64(137), first.ChainID)

	update, err := signer.NewUpdate(fs, 1)
	require.NoError(t, err)
	assert.Equal(t, testDomain(t).Digest(update).Hex(), first.Digest)
	assert.Equal(t, update.SettingsHash.Hex(), first.SettingsHash)

	_, err = svc.Create(ctx, raw, Submission{})
	require.NoError(t, err)
	next, err := svc.UpdateDigest(ctx, testFund, raw, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.Revision)
	assert.NotEqual(t, first.Digest, next.Digest)

	pinned, err := svc.UpdateDigest(ctx, testFund, raw, 1)
	require.NoError(t, err)
	assert.Equal(t, first.Digest, pinned.Digest)
}

func TestFundService_Consumers(t *testing.T) {
	svc, _, _ := newTestService(t, false, nil)
	ctx := context.Background()
	depositor := "0x3333333333333333333333333333333333333333"
	fs := baseSettings("0x1111111111111111111111111111111111111111")
	fs.IsWhitelistedDeposits = model.Some(true)
	fs.AllowedDepositAddrs = model.Some([]string{depositor})
	_, err := svc.Create(ctx, rawSettings(t, fs), Submission{})
	require.NoError(t, err)

	elig, err := svc.DepositEligibility(ctx, testFund, depositor)
	require.NoError(t, err)
	assert.True(t, elig.Whitelisted)
	assert.True(t, elig.Allowed)

	elig, err = svc.DepositEligibility(ctx, testFund, "0x4444444444444444444444444444444444444444")
	require.NoError(t, err)
	assert.False(t, elig.Allowed)

	mc, err := svc.ManagerCheck(ctx, testFund, "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.True(t, mc.IsManager)

	q, err := svc.Quote(ctx, testFund, model.QuoteRequest{Kind: QuoteDeposit, Amount: "1000"})
	require.NoError(t, err)
	assert.Equal(t, "10", q.Fee.String())
	assert.Equal(t, "990", q.Net.String())

	_, err = svc.Quote(ctx, testFund, model.QuoteRequest{Kind: QuoteDeposit, Amount: "lots"})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMemoryFundStore_OptimisticUpdate(t *testing.T) {
	store := NewMemoryFundStore()
	ctx := context.Background()
	rec := &model.FundRecord{Settings: baseSettings(), Revision: 1, UpdatedAt: time.Now()}
	require.NoError(t, store.Create(ctx, rec))

	next := rec.Clone()
	next.Revision = 2
	require.NoError(t, store.Update(ctx, next, 1))
	assert.ErrorIs(t, store.Update(ctx, next, 1), model.ErrRevisionConflict)

	// Stored records are isolated from caller mutation.
	next.Settings.FundName = "mutated"
	got, err := store.Get(ctx, testFund)
	require.NoError(t, err)
	assert.Equal(t, "Alpha Yield", got.Settings.FundName)
}

func TestMemoryFundStore_ListOrderAndPaging(t *testing.T) {
	store := NewMemoryFundStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	addrs := []string{
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
		"0x3333333333333333333333333333333333333333",
	}
	for i, addr := range addrs {
		fs := baseSettings()
		fs.FundAddress = addr
		require.NoError(t, store.Create(ctx, &model.FundRecord{Settings: fs, Revision: 1, UpdatedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	all, err := store.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, addrs[2], all[0].Settings.FundAddress)
	assert.Equal(t, addrs[0], all[2].Settings.FundAddress)

	page, err := store.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, addrs[1], page[0].Settings.FundAddress)

	empty, err := store.List(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)

	large, err := store.List(ctx, 1000, 0)
	require.NoError(t, err)
	assert.Len(t, large, 3)
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, 100, 0},
		{-1, -3, 100, 0},
		{50, 10, 50, 10},
		{500, 0, 500, 0},
		{501, 0, 500, 0},
		{10000, 2, 500, 2},
	}
	for _, tt := range tests {
		limit, offset := clampPage(tt.limit, tt.offset)
		assert.Equal(t, tt.wantLimit, limit, "limit %d", tt.limit)
		assert.Equal(t, tt.wantOffset, offset, "offset %d", tt.offset)
	}
}
