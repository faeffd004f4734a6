package match

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/lifelink/lifelink/pkg/pagination"
)

type pairKey struct {
	donorID     uuid.UUID
	recipientID uuid.UUID
}

// matchRepoMem is a thread-safe, in-memory implementation of MatchRepository.
// It backs the memory storage driver and the package tests.
type matchRepoMem struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Match
	pairs map[pairKey]uuid.UUID
	// ordered IDs for deterministic pagination
	order []uuid.UUID
}

func NewRepoMem() MatchRepository {
	return &matchRepoMem{
		items: make(map[uuid.UUID]*Match),
		pairs: make(map[pairKey]uuid.UUID),
	}
}

func (r *matchRepoMem) Insert(_ context.Context, m *Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey{m.DonorID, m.RecipientID}
	if _, ok := r.pairs[key]; ok {
		return ErrAlreadyMatched
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	cp := *m
	r.items[cp.ID] = &cp
	r.pairs[key] = cp.ID
	r.order = append(r.order, cp.ID)
	return nil
}

func (r *matchRepoMem) GetByID(_ context.Context, id uuid.UUID) (*Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *matchRepoMem) GetByPair(_ context.Context, donorID, recipientID uuid.UUID) (*Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.pairs[pairKey{donorID, recipientID}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r.items[id]
	return &cp, nil
}

func (r *matchRepoMem) Update(_ context.Context, m *Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[m.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Status = m.Status
	stored.LastUpdated = m.LastUpdated
	return nil
}

func (r *matchRepoMem) Search(_ context.Context, params SearchParams, limit, offset int) ([]*Match, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var filtered []*Match
	for _, id := range r.order {
		m := r.items[id]
		if m == nil || !matchesParams(m, params) {
			continue
		}
		cp := *m
		filtered = append(filtered, &cp)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Priority != filtered[j].Priority {
			return filtered[i].Priority > filtered[j].Priority
		}
		return filtered[i].MatchScore > filtered[j].MatchScore
	})
	page, total := pagination.Slice(filtered, pagination.Params{Limit: limit, Offset: offset})
	return page, total, nil
}

func matchesParams(m *Match, params SearchParams) bool {
	if params.BloodType != "" && m.BloodType != params.BloodType {
		return false
	}
	if params.Organ != "" && m.Organ != params.Organ {
		return false
	}
	if params.Status != "" && m.Status != params.Status {
		return false
	}
	if params.MinUrgency > 0 && m.Urgency < params.MinUrgency {
		return false
	}
	if params.ParticipantID != uuid.Nil &&
		m.DonorID != params.ParticipantID && m.RecipientID != params.ParticipantID {
		return false
	}
	return true
}

func (r *matchRepoMem) CountByStatus(_ context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int)
	for _, m := range r.items {
		counts[m.Status]++
	}
	return counts, nil
}

func (r *matchRepoMem) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[uuid.UUID]*Match)
	r.pairs = make(map[pairKey]uuid.UUID)
	r.order = nil
	return nil
}
