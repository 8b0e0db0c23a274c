package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/GoPolymarket/fundgate/internal/model"
	"github.com/GoPolymarket/fundgate/internal/pkg/logger"
)

// AuditService writes audit entries asynchronously to a JSONL file and, when
// configured, to a database. Recent entries stay in memory for listing.
type AuditService struct {
	logChan chan *model.AuditLog
	file    *dailyFile
	buffer  *auditBuffer
	repo    AuditRepo
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

type AuditRepo interface {
	Insert(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, operatorID, fundAddress string, limit int, from, to *time.Time) ([]*model.AuditLog, error)
}

func NewAuditService(logDir string, repo AuditRepo) (*AuditService, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}
	file := &dailyFile{dir: logDir}
	if err := file.rotate(time.Now()); err != nil {
		return nil, err
	}

	svc := &AuditService{
		logChan: make(chan *model.AuditLog, 1000),
		file:    file,
		buffer:  newAuditBuffer(1000),
		repo:    repo,
		done:    make(chan struct{}),
	}
	go svc.processLogs()
	return svc, nil
}

func (s *AuditService) Log(entry *model.AuditLog) {
	if entry == nil {
		return
	}
	s.buffer.Add(entry)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.logChan <- entry:
	default:
		// Never block the request path on a full queue.
		logger.Warn("audit log queue full, dropping entry", "request_id", entry.ID)
	}
}

// List reads from the database when present and falls back to the in-memory
// buffer, newest first.
func (s *AuditService) List(ctx context.Context, operatorID, fundAddress string, limit int, from, to *time.Time) ([]*model.AuditLog, error) {
	if s.repo != nil {
		records, err := s.repo.List(ctx, operatorID, fundAddress, limit, from, to)
		if err == nil {
			return records, nil
		}
		logger.LogError(ctx, err, "audit list from db failed, using memory buffer")
	}
	return s.buffer.List(operatorID, fundAddress, limit, from, to), nil
}

func (s *AuditService) processLogs() {
	defer close(s.done)
	for entry := range s.logChan {
		if s.repo != nil {
			if err := s.repo.Insert(context.Background(), entry); err != nil {
				logger.Error("failed to write audit log to db", "error", err, "request_id", entry.ID)
			}
		}
		if err := s.file.write(entry); err != nil {
			logger.Error("failed to write audit log", "error", err, "request_id", entry.ID)
		}
	}
}

// Close drains queued entries and closes the file.
func (s *AuditService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.logChan)
	s.mu.Unlock()

	<-s.done
	s.file.close()
}

// dailyFile appends JSON lines to audit-YYYY-MM-DD.jsonl and moves to a new
// file when the UTC date changes. Only the processLogs goroutine writes.
type dailyFile struct {
	dir string
	day string
	f   *os.File
	enc *json.Encoder
}

func (d *dailyFile) rotate(now time.Time) error {
	day := now.UTC().Format("2006-01-02")
	if d.f != nil && day == d.day {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(d.dir, "audit-"+day+".jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	d.close()
	d.f, d.day, d.enc = f, day, json.NewEncoder(f)
	return nil
}

func (d *dailyFile) write(entry *model.AuditLog) error {
	if err := d.rotate(time.Now()); err != nil {
		return err
	}
	return d.enc.Encode(entry)
}

func (d *dailyFile) close() {
	if d.f != nil {
		_ = d.f.Close()
		d.f = nil
	}
}

type auditBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.AuditLog
	nextIndex int
}

func newAuditBuffer(maxSize int) *auditBuffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &auditBuffer{
		maxSize: maxSize,
		records: make([]*model.AuditLog, 0, maxSize),
	}
}

func (b *auditBuffer) Add(entry *model.AuditLog) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, entry)
		b.nextIndex = len(b.records) % b.maxSize
		return
	}
	b.records[b.nextIndex] = entry
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

func (b *auditBuffer) List(operatorID, fundAddress string, limit int, from, to *time.Time) []*model.AuditLog {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	fundKey := model.AddressKey(fundAddress)
	results := make([]*model.AuditLog, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		entry := b.records[idx]
		if entry == nil {
			continue
		}
		if operatorID != "" && entry.OperatorID != operatorID {
			continue
		}
		if fundKey != "" && model.AddressKey(entry.FundAddress) != fundKey {
			continue
		}
		if from != nil && entry.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && entry.CreatedAt.After(*to) {
			continue
		}
		results = append(results, entry)
		if len(results) >= limit {
			break
		}
	}
	return results
}
