package store

import (
	"context"
	"sort"
	"sync"

	"github.com/universe-mcp/harvester/pkg/model"
)

// MemoryStore is an in-memory Store used in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[model.Category]map[string]*model.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[model.Category]map[string]*model.Record),
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, rec *model.Record) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if rec.ID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.records[rec.Category]
	if !ok {
		byID = make(map[string]*model.Record)
		s.records[rec.Category] = byID
	}
	cp := *rec
	byID[rec.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, category model.Category, id string) (*model.Record, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.records[category][id]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) List(ctx context.Context, category model.Category) ([]*model.Record, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*model.Record
	for _, rec := range s.records[category] {
		cp := *rec
		records = append(records, &cp)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (s *MemoryStore) Count(ctx context.Context, category model.Category) (int, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[category]), nil
}

func (s *MemoryStore) Close() error { return nil }
