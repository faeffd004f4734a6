package recipient

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lifelink/lifelink/pkg/pagination"
)

// recipientRepoMem is a thread-safe, in-memory implementation of
// RecipientRepository.
type recipientRepoMem struct {
	mu       sync.RWMutex
	items    map[uuid.UUID]*Recipient
	external map[string]uuid.UUID
	// ordered IDs for deterministic pagination
	order []uuid.UUID
}

func NewRepoMem() RecipientRepository {
	return &recipientRepoMem{
		items:    make(map[uuid.UUID]*Recipient),
		external: make(map[string]uuid.UUID),
	}
}

func (r *recipientRepoMem) Create(_ context.Context, rec *Recipient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ExternalID != "" {
		if _, ok := r.external[rec.ExternalID]; ok {
			return ErrDuplicate
		}
	}
	rec.ID = uuid.New()
	cp := *rec
	r.items[cp.ID] = &cp
	if cp.ExternalID != "" {
		r.external[cp.ExternalID] = cp.ID
	}
	r.order = append(r.order, cp.ID)
	return nil
}

func (r *recipientRepoMem) GetByID(_ context.Context, id uuid.UUID) (*Recipient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *recipientRepoMem) GetByExternalID(_ context.Context, externalID string) (*Recipient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.external[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r.items[id]
	return &cp, nil
}

func (r *recipientRepoMem) Update(_ context.Context, rec *Recipient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[rec.ID]; !ok {
		return ErrNotFound
	}
	cp := *rec
	r.items[cp.ID] = &cp
	return nil
}

func (r *recipientRepoMem) ListActive(_ context.Context) ([]*Recipient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []*Recipient
	for _, id := range r.order {
		if rec := r.items[id]; rec != nil && rec.IsActive {
			cp := *rec
			items = append(items, &cp)
		}
	}
	return items, nil
}

func (r *recipientRepoMem) Search(_ context.Context, params SearchParams, limit, offset int) ([]*Recipient, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var filtered []*Recipient
	for _, id := range r.order {
		rec := r.items[id]
		if rec == nil || !recipientMatches(rec, params) {
			continue
		}
		cp := *rec
		filtered = append(filtered, &cp)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Priority != filtered[j].Priority {
			return filtered[i].Priority > filtered[j].Priority
		}
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})
	page, total := pagination.Slice(filtered, pagination.Params{Limit: limit, Offset: offset})
	return page, total, nil
}

func recipientMatches(rec *Recipient, params SearchParams) bool {
	if params.BloodType != "" && rec.BloodType != params.BloodType {
		return false
	}
	if params.Organ != "" && rec.Organ != params.Organ {
		return false
	}
	if params.Location != "" &&
		!strings.Contains(strings.ToLower(rec.Location), strings.ToLower(strings.TrimSpace(params.Location))) {
		return false
	}
	if params.MinUrgency > 0 && rec.Urgency < params.MinUrgency {
		return false
	}
	if params.Active != nil && rec.IsActive != *params.Active {
		return false
	}
	return true
}
