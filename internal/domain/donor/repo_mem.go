package donor

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lifelink/lifelink/pkg/pagination"
)

// donorRepoMem is a thread-safe, in-memory implementation of DonorRepository.
type donorRepoMem struct {
	mu       sync.RWMutex
	items    map[uuid.UUID]*Donor
	external map[string]uuid.UUID
	// ordered IDs for deterministic pagination
	order []uuid.UUID
}

func NewRepoMem() DonorRepository {
	return &donorRepoMem{
		items:    make(map[uuid.UUID]*Donor),
		external: make(map[string]uuid.UUID),
	}
}

func cloneDonor(d *Donor) *Donor {
	cp := *d
	cp.Organs = append([]string(nil), d.Organs...)
	return &cp
}

func (r *donorRepoMem) Create(_ context.Context, d *Donor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ExternalID != "" {
		if _, ok := r.external[d.ExternalID]; ok {
			return ErrDuplicate
		}
	}
	d.ID = uuid.New()
	cp := cloneDonor(d)
	r.items[cp.ID] = cp
	if cp.ExternalID != "" {
		r.external[cp.ExternalID] = cp.ID
	}
	r.order = append(r.order, cp.ID)
	return nil
}

func (r *donorRepoMem) GetByID(_ context.Context, id uuid.UUID) (*Donor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDonor(d), nil
}

func (r *donorRepoMem) GetByExternalID(_ context.Context, externalID string) (*Donor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.external[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDonor(r.items[id]), nil
}

func (r *donorRepoMem) Update(_ context.Context, d *Donor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[d.ID]; !ok {
		return ErrNotFound
	}
	r.items[d.ID] = cloneDonor(d)
	return nil
}

func (r *donorRepoMem) ListEligible(_ context.Context) ([]*Donor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []*Donor
	for _, id := range r.order {
		if d := r.items[id]; d != nil && d.Eligible() {
			items = append(items, cloneDonor(d))
		}
	}
	return items, nil
}

func (r *donorRepoMem) Search(_ context.Context, params SearchParams, limit, offset int) ([]*Donor, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var filtered []*Donor
	for _, id := range r.order {
		d := r.items[id]
		if d == nil || !donorMatches(d, params) {
			continue
		}
		filtered = append(filtered, cloneDonor(d))
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

func donorMatches(d *Donor, params SearchParams) bool {
	if params.BloodType != "" && d.BloodType != params.BloodType {
		return false
	}
	if params.Organ != "" && !d.HasOrgan(params.Organ) {
		return false
	}
	if params.Location != "" &&
		!strings.Contains(strings.ToLower(d.Location), strings.ToLower(strings.TrimSpace(params.Location))) {
		return false
	}
	if params.Active != nil && d.IsActive != *params.Active {
		return false
	}
	if params.Verified != nil && d.IsVerified != *params.Verified {
		return false
	}
	return true
}
