package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/GoPolymarket/fundgate/internal/model"
	"github.com/GoPolymarket/fundgate/internal/service"
	"github.com/jmoiron/sqlx"
)

var _ service.FundStore = (*PostgresFundRepo)(nil)

type PostgresFundRepo struct {
	db *sqlx.DB
}

func NewPostgresFundRepo(db *sqlx.DB) *PostgresFundRepo {
	repo := &PostgresFundRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

// fundRow keeps the full settings document as JSONB next to the columns
// operators filter on.
type fundRow struct {
	FundAddress string         `db:"fund_address"`
	FundName    string         `db:"fund_name"`
	FundSymbol  string         `db:"fund_symbol"`
	BaseToken   string         `db:"base_token"`
	Document    []byte         `db:"document"`
	Revision    int64          `db:"revision"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
	UpdatedBy   sql.NullString `db:"updated_by"`
	Signer      sql.NullString `db:"signer"`
}

const fundColumns = `fund_address, fund_name, fund_symbol, base_token, document, revision, created_at, updated_at, updated_by, signer`

func (r *PostgresFundRepo) toDomain(row *fundRow) (*model.FundRecord, error) {
	rec := &model.FundRecord{
		Revision:  row.Revision,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		UpdatedBy: row.UpdatedBy.String,
		Signer:    row.Signer.String,
	}
	if err := json.Unmarshal(row.Document, &rec.Settings); err != nil {
		return nil, fmt.Errorf("decode settings for %s: %w", row.FundAddress, err)
	}
	return rec, nil
}

func toRow(rec *model.FundRecord) (*fundRow, error) {
	doc, err := json.Marshal(rec.Settings)
	if err != nil {
		return nil, err
	}
	return &fundRow{
		FundAddress: rec.Key(),
		FundName:    rec.Settings.FundName,
		FundSymbol:  rec.Settings.FundSymbol,
		BaseToken:   model.AddressKey(rec.Settings.BaseToken),
		Document:    doc,
		Revision:    rec.Revision,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		UpdatedBy:   sql.NullString{String: rec.UpdatedBy, Valid: rec.UpdatedBy != ""},
		Signer:      sql.NullString{String: rec.Signer, Valid: rec.Signer != ""},
	}, nil
}

func (r *PostgresFundRepo) Get(ctx context.Context, fundAddress string) (*model.FundRecord, error) {
	var row fundRow
	query := `SELECT ` + fundColumns + ` FROM fund_settings WHERE fund_address = $1 LIMIT 1`
	if err := r.db.GetContext(ctx, &row, query, model.AddressKey(fundAddress)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrFundNotFound
		}
		return nil, err
	}
	return r.toDomain(&row)
}

func (r *PostgresFundRepo) List(ctx context.Context, limit, offset int) ([]*model.FundRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + fundColumns + ` FROM fund_settings ORDER BY updated_at DESC, fund_address LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryxContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*model.FundRecord, 0, limit)
	for rows.Next() {
		var row fundRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		rec, err := r.toDomain(&row)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

func (r *PostgresFundRepo) Create(ctx context.Context, rec *model.FundRecord) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO fund_settings (`+fundColumns+`)
		VALUES (:fund_address, :fund_name, :fund_symbol, :base_token, :document, :revision, :created_at, :updated_at, :updated_by, :signer)
		ON CONFLICT (fund_address) DO NOTHING
	`, row)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrFundExists
	}
	return nil
}

// Update writes rec only when the stored revision still equals expectedRevision.
func (r *PostgresFundRepo) Update(ctx context.Context, rec *model.FundRecord, expectedRevision int64) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE fund_settings
		SET fund_name = $2, fund_symbol = $3, base_token = $4, document = $5, revision = $6,
		    updated_at = $7, updated_by = $8, signer = $9
		WHERE fund_address = $1 AND revision = $10
	`, row.FundAddress, row.FundName, row.FundSymbol, row.BaseToken, row.Document, row.Revision,
		row.UpdatedAt, row.UpdatedBy, row.Signer, expectedRevision)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return err
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM fund_settings WHERE fund_address = $1)`, row.FundAddress); err != nil {
		return err
	}
	if !exists {
		return model.ErrFundNotFound
	}
	return model.ErrRevisionConflict
}

func (r *PostgresFundRepo) Delete(ctx context.Context, fundAddress string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fund_settings WHERE fund_address = $1`, model.AddressKey(fundAddress))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrFundNotFound
	}
	return nil
}

func (r *PostgresFundRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS fund_settings (
			fund_address TEXT PRIMARY KEY,
			fund_name TEXT NOT NULL,
			fund_symbol TEXT NOT NULL,
			base_token TEXT NOT NULL,
			document JSONB NOT NULL,
			revision BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, `ALTER TABLE fund_settings ADD COLUMN IF NOT EXISTS updated_by TEXT`)
	_, _ = r.db.ExecContext(ctx, `ALTER TABLE fund_settings ADD COLUMN IF NOT EXISTS signer TEXT`)
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_fund_settings_updated ON fund_settings(updated_at DESC)`)
	return nil
}
