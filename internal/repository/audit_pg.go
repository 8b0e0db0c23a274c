package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/GoPolymarket/fundgate/internal/model"
	"github.com/jmoiron/sqlx"
)

type PostgresAuditRepo struct {
	db *sqlx.DB
}

func NewPostgresAuditRepo(db *sqlx.DB) *PostgresAuditRepo {
	repo := &PostgresAuditRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

type auditRow struct {
	ID            string    `db:"id"`
	OperatorID    string    `db:"operator_id"`
	FundAddress   string    `db:"fund_address"`
	Method        string    `db:"method"`
	Path          string    `db:"path"`
	IP            string    `db:"ip"`
	UserAgent     string    `db:"user_agent"`
	RequestBody   string    `db:"request_body"`
	RequestHeader string    `db:"request_header"`
	StatusCode    int       `db:"status_code"`
	ResponseBody  string    `db:"response_body"`
	LatencyMs     int64     `db:"latency_ms"`
	Context       []byte    `db:"context"`
	CreatedAt     time.Time `db:"created_at"`
}

const auditColumns = `id, operator_id, fund_address, method, path, ip, user_agent, request_body, request_header, status_code, response_body, latency_ms, context, created_at`

func (r *PostgresAuditRepo) Insert(ctx context.Context, entry *model.AuditLog) error {
	if entry == nil {
		return nil
	}
	contextJSON, err := json.Marshal(entry.Context)
	if err != nil {
		return fmt.Errorf("encode audit context: %w", err)
	}
	row := auditRow{
		ID: entry.ID, OperatorID: entry.OperatorID, FundAddress: model.AddressKey(entry.FundAddress),
		Method: entry.Method, Path: entry.Path, IP: entry.IP, UserAgent: entry.UserAgent,
		RequestBody: entry.RequestBody, RequestHeader: entry.RequestHeader,
		StatusCode: entry.StatusCode, ResponseBody: entry.ResponseBody,
		LatencyMs: entry.LatencyMs, Context: contextJSON, CreatedAt: entry.CreatedAt,
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO audit_logs (`+auditColumns+`)
		VALUES (:id, :operator_id, :fund_address, :method, :path, :ip, :user_agent,
		        :request_body, :request_header, :status_code, :response_body, :latency_ms, :context, :created_at)
		ON CONFLICT (id) DO NOTHING
	`, row)
	return err
}

// List returns entries newest first. Empty filters match everything.
func (r *PostgresAuditRepo) List(ctx context.Context, operatorID, fundAddress string, limit int, from, to *time.Time) ([]*model.AuditLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var where []string
	var args []interface{}
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if operatorID != "" {
		add("operator_id = $%d", operatorID)
	}
	if fundAddress != "" {
		add("fund_address = $%d", model.AddressKey(fundAddress))
	}
	if from != nil {
		add("created_at >= $%d", *from)
	}
	if to != nil {
		add("created_at <= $%d", *to)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	var rows []auditRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]*model.AuditLog, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (row *auditRow) toDomain() *model.AuditLog {
	entry := &model.AuditLog{
		ID:            row.ID,
		OperatorID:    row.OperatorID,
		FundAddress:   row.FundAddress,
		Method:        row.Method,
		Path:          row.Path,
		IP:            row.IP,
		UserAgent:     row.UserAgent,
		RequestBody:   row.RequestBody,
		RequestHeader: row.RequestHeader,
		StatusCode:    row.StatusCode,
		ResponseBody:  row.ResponseBody,
		LatencyMs:     row.LatencyMs,
		CreatedAt:     row.CreatedAt,
	}
	if len(row.Context) == 0 || json.Unmarshal(row.Context, &entry.Context) != nil || entry.Context == nil {
		entry.Context = map[string]interface{}{}
	}
	return entry
}

func (r *PostgresAuditRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			operator_id TEXT NOT NULL DEFAULT '',
			fund_address TEXT NOT NULL DEFAULT '',
			method TEXT,
			path TEXT,
			ip TEXT,
			user_agent TEXT,
			request_body TEXT,
			request_header TEXT,
			status_code INTEGER,
			response_body TEXT,
			latency_ms BIGINT,
			context JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_audit_logs_operator ON audit_logs(operator_id, created_at DESC)`)
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_audit_logs_fund ON audit_logs(fund_address, created_at DESC)`)
	return nil
}

// Cleanup deletes entries older than the retention window. Zero keeps everything.
func (r *PostgresAuditRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, time.Now().UTC().Add(-olderThan))
	return err
}
