package donor

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Common errors returned by donor repositories.
var (
	ErrNotFound  = errors.New("donor not found")
	ErrDuplicate = errors.New("donor already registered for external id")
)

// SearchParams filters donor listings. Zero values mean "any".
type SearchParams struct {
	BloodType string
	Organ     string
	Location  string // case-insensitive substring
	Active    *bool
	Verified  *bool
}

type DonorRepository interface {
	Create(ctx context.Context, d *Donor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Donor, error)
	GetByExternalID(ctx context.Context, externalID string) (*Donor, error)
	Update(ctx context.Context, d *Donor) error
	// ListEligible returns every active, verified donor, for match scans.
	ListEligible(ctx context.Context) ([]*Donor, error)
	// Search returns a priority-ranked page and the pre-pagination total.
	Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Donor, int, error)
}
