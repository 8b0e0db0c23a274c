package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/GoPolymarket/fundgate/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testFund = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	testBase = "0x2791bca1f2de4661ed88a30c99a7a9449aa84174"
)

var fundRowColumns = []string{"fund_address", "fund_name", "fund_symbol", "base_token", "document", "revision", "created_at", "updated_at", "updated_by", "signer"}

func testRecord() *model.FundRecord {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &model.FundRecord{
		Settings: model.FundSettings{
			BaseToken:   testBase,
			FundAddress: testFund,
			FundName:    "Alpha Yield",
			FundSymbol:  "AYF",
			DepositFee:  model.Some("0.015000000000000001"),
			Extra:       map[string]json.RawMessage{"strategy": json.RawMessage(`"delta-neutral"`)},
		},
		Revision:  3,
		CreatedAt: now,
		UpdatedAt: now,
		UpdatedBy: "op-1",
	}
}

func newMockFundRepo(t *testing.T) (*PostgresFundRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS fund_settings").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ALTER TABLE fund_settings ADD COLUMN IF NOT EXISTS updated_by").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ALTER TABLE fund_settings ADD COLUMN IF NOT EXISTS signer").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_fund_settings_updated").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPostgresFundRepo(sqlx.NewDb(db, "pgx"))
	return repo, mock
}

func recordRow(t *testing.T, rec *model.FundRecord) *sqlmock.Rows {
	t.Helper()
	doc, err := json.Marshal(rec.Settings)
	require.NoError(t, err)
	return sqlmock.NewRows(fundRowColumns).AddRow(
		rec.Key(), rec.Settings.FundName, rec.Settings.FundSymbol, rec.Settings.BaseToken,
		doc, rec.Revision, rec.CreatedAt, rec.UpdatedAt, rec.UpdatedBy, nil,
	)
}

func TestPostgresFundRepo_Get(t *testing.T) {
	repo, mock := newMockFundRepo(t)
	want := testRecord()

	mock.ExpectQuery(`SELECT .+ FROM fund_settings WHERE fund_address = \$1`).
		WithArgs(model.AddressKey(testFund)).
		WillReturnRows(recordRow(t, want))

	got, err := repo.Get(context.Background(), testFund)
	require.NoError(t, err)
	assert.True(t, want.Settings.Equal(got.Settings))
	assert.Equal(t, int64(3), got.Revision)
	assert.Equal(t, "op-1", got.UpdatedBy)
	assert.Empty(t, got.Signer)
	assert.Equal(t, []string{"strategy"}, got.Settings.ExtraKeys())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFundRepo_GetNotFound(t *testing.T) {
	repo, mock := newMockFundRepo(t)
	mock.ExpectQuery(`FROM fund_settings WHERE fund_address = \$1`).
		WillReturnRows(sqlmock.NewRows(fundRowColumns))

	_, err := repo.Get(context.Background(), testFund)
	assert.ErrorIs(t, err, model.ErrFundNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFundRepo_CreateConflict(t *testing.T) {
	repo, mock := newMockFundRepo(t)
	mock.ExpectExec("INSERT INTO fund_settings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO fund_settings").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Create(context.Background(), testRecord()))
	assert.ErrorIs(t, repo.Create(context.Background(), testRecord()), model.ErrFundExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFundRepo_UpdateChecksRevision(t *testing.T) {
	repo, mock := newMockFundRepo(t)
	rec := testRecord()
	rec.Revision = 4
	key := model.AddressKey(testFund)
	anyArg := sqlmock.AnyArg()

	mock.ExpectExec(`UPDATE fund_settings .+ WHERE fund_address = \$1 AND revision = \$10`).
		WithArgs(key, anyArg, anyArg, anyArg, anyArg, int64(4), anyArg, anyArg, anyArg, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), rec, 3))

	mock.ExpectExec("UPDATE fund_settings").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(key).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	assert.ErrorIs(t, repo.Update(context.Background(), rec, 3), model.ErrRevisionConflict)

	mock.ExpectExec("UPDATE fund_settings").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(key).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	assert.ErrorIs(t, repo.Update(context.Background(), rec, 3), model.ErrFundNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFundRepo_ListAndDelete(t *testing.T) {
	repo, mock := newMockFundRepo(t)
	rec := testRecord()

	mock.ExpectQuery(`FROM fund_settings ORDER BY updated_at DESC, fund_address LIMIT \$1 OFFSET \$2`).
		WithArgs(100, 0).
		WillReturnRows(recordRow(t, rec))
	list, err := repo.List(context.Background(), 0, -5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rec.Key(), list[0].Key())

	mock.ExpectQuery(`FROM fund_settings ORDER BY updated_at DESC, fund_address LIMIT \$1 OFFSET \$2`).
		WithArgs(500, 0).
		WillReturnRows(recordRow(t, rec))
	_, err = repo.List(context.Background(), 1000, 0)
	require.NoError(t, err)

	mock.ExpectExec(`DELETE FROM fund_settings WHERE fund_address = \$1`).
		WithArgs(model.AddressKey(testFund)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), testFund), model.ErrFundNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAuditRepo_ListFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_logs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_audit_logs_operator").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_audit_logs_fund").WillReturnResult(sqlmock.NewResult(0, 0))
	repo := NewPostgresAuditRepo(sqlx.NewDb(db, "pgx"))

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM audit_logs WHERE operator_id = \$1 AND fund_address = \$2 ORDER BY created_at DESC LIMIT \$3`).
		WithArgs("op-1", model.AddressKey(testFund), 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "operator_id", "fund_address", "method", "path", "ip", "user_agent",
			"request_body", "request_header", "status_code", "response_body", "latency_ms", "context", "created_at",
		}).AddRow("req-1", "op-1", model.AddressKey(testFund), "PUT", "/v1/funds/x", "127.0.0.1", "test",
			"{}", "{}", 200, "{}", int64(4), []byte(`{"revision":2}`), now))

	logs, err := repo.List(context.Background(), "op-1", testFund, 50, nil, nil)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "req-1", logs[0].ID)
	assert.Equal(t, float64(2), logs[0].Context["revision"])

	mock.ExpectExec(`DELETE FROM audit_logs WHERE created_at < \$1`).WillReturnResult(sqlmock.NewResult(0, 3))
	require.NoError(t, repo.Cleanup(context.Background(), 24*time.Hour))
	require.NoError(t, repo.Cleanup(context.Background(), 0))

	require.NoError(t, mock.ExpectationsWereMet())
}
