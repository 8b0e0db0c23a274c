package service

import (
	"context"
	"sort"
	"sync"

	"github.com/GoPolymarket/fundgate/internal/model"
)

// FundStore persists fund records keyed by lower-cased fund address.
type FundStore interface {
	Get(ctx context.Context, fundAddress string) (*model.FundRecord, error)
	List(ctx context.Context, limit, offset int) ([]*model.FundRecord, error)
	Create(ctx context.Context, rec *model.FundRecord) error
	// Update replaces the record only if the stored revision equals expectedRevision.
	Update(ctx context.Context, rec *model.FundRecord, expectedRevision int64) error
	Delete(ctx context.Context, fundAddress string) error
}

// FundCache is an optional read-through cache in front of a FundStore.
type FundCache interface {
	Get(ctx context.Context, fundAddress string) (*model.FundRecord, bool)
	Set(ctx context.Context, rec *model.FundRecord)
	Invalidate(ctx context.Context, fundAddress string)
}

// MemoryFundStore is the in-process FundStore used when no database is configured.
type MemoryFundStore struct {
	mu    sync.RWMutex
	funds map[string]*model.FundRecord
}

func NewMemoryFundStore() *MemoryFundStore {
	return &MemoryFundStore{funds: make(map[string]*model.FundRecord)}
}

func (s *MemoryFundStore) Get(ctx context.Context, fundAddress string) (*model.FundRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.funds[model.AddressKey(fundAddress)]
	if !ok {
		return nil, model.ErrFundNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryFundStore) List(ctx context.Context, limit, offset int) ([]*model.FundRecord, error) {
	limit, offset = clampPage(limit, offset)
	s.mu.RLock()
	all := make([]*model.FundRecord, 0, len(s.funds))
	for _, rec := range s.funds {
		all = append(all, rec)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].Key() < all[j].Key()
		}
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})
	if offset >= len(all) {
		return []*model.FundRecord{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]*model.FundRecord, 0, end-offset)
	for _, rec := range all[offset:end] {
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (s *MemoryFundStore) Create(ctx context.Context, rec *model.FundRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rec.Key()
	if _, ok := s.funds[key]; ok {
		return model.ErrFundExists
	}
	s.funds[key] = rec.Clone()
	return nil
}

func (s *MemoryFundStore) Update(ctx context.Context, rec *model.FundRecord, expectedRevision int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rec.Key()
	current, ok := s.funds[key]
	if !ok {
		return model.ErrFundNotFound
	}
	if current.Revision != expectedRevision {
		return model.ErrRevisionConflict
	}
	s.funds[key] = rec.Clone()
	return nil
}

func (s *MemoryFundStore) Delete(ctx context.Context, fundAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.AddressKey(fundAddress)
	if _, ok := s.funds[key]; !ok {
		return model.ErrFundNotFound
	}
	delete(s.funds, key)
	return nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
