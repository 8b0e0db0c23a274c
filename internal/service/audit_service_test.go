package service

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/GoPolymarket/fundgate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingAuditRepo struct {
	inserted int
}

func (r *failingAuditRepo) Insert(ctx context.Context, entry *model.AuditLog) error {
	r.inserted++
	return nil
}

func (r *failingAuditRepo) List(ctx context.Context, operatorID, fundAddress string, limit int, from, to *time.Time) ([]*model.AuditLog, error) {
	return nil, errors.New("db down")
}

func TestAuditService_WritesFileAndFiltersBuffer(t *testing.T) {
	dir := t.TempDir()
	repo := &failingAuditRepo{}
	svc, err := NewAuditService(dir, repo)
	require.NoError(t, err)

	now := time.Now().UTC()
	svc.Log(&model.AuditLog{ID: "r1", OperatorID: "op-a", FundAddress: testFund, CreatedAt: now.Add(-time.Hour)})
	svc.Log(&model.AuditLog{ID: "r2", OperatorID: "op-b", CreatedAt: now})
	svc.Log(&model.AuditLog{ID: "r3", OperatorID: "op-a", CreatedAt: now})

	// The repo fails, so listing falls back to memory, newest first.
	logs, err := svc.List(context.Background(), "op-a", "", 10, nil, nil)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "r3", logs[0].ID)

	logs, err = svc.List(context.Background(), "", "0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED", 10, nil, nil)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "r1", logs[0].ID)

	from := now.Add(-time.Minute)
	logs, err = svc.List(context.Background(), "", "", 10, &from, nil)
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	svc.Close()
	svc.Close()
	svc.Log(&model.AuditLog{ID: "after-close"})
	assert.Equal(t, 3, repo.inserted)

	files, err := filepath.Glob(filepath.Join(dir, "audit-*.jsonl"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()
	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	assert.Equal(t, 3, lines)
}

func TestAuditBuffer_Wraps(t *testing.T) {
	buf := newAuditBuffer(2)
	for _, id := range []string{"a", "b", "c"} {
		buf.Add(&model.AuditLog{ID: id})
	}
	logs := buf.List("", "", 0, nil, nil)
	require.Len(t, logs, 2)
	assert.Equal(t, "c", logs[0].ID)
	assert.Equal(t, "b", logs[1].ID)
}

func TestDailyFile_RotatesOnDateChange(t *testing.T) {
	dir := t.TempDir()
	d := &dailyFile{dir: dir}
	day1 := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	require.NoError(t, d.rotate(day1))
	require.NoError(t, d.enc.Encode(&model.AuditLog{ID: "a"}))
	require.NoError(t, d.rotate(day1.Add(time.Minute)))
	require.NoError(t, d.enc.Encode(&model.AuditLog{ID: "b"}))
	d.close()

	for _, name := range []string{"audit-2026-03-01.jsonl", "audit-2026-03-02.jsonl"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Contains(t, string(data), `"id"`)
	}
}
