package recipient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Common errors returned by recipient repositories.
var (
	ErrNotFound  = errors.New("recipient not found")
	ErrDuplicate = errors.New("recipient already registered for external id")
)

// SearchParams filters recipient listings. Zero values mean "any".
type SearchParams struct {
	BloodType  string
	Organ      string
	Location   string // case-insensitive substring
	MinUrgency int
	Active     *bool
}

type RecipientRepository interface {
	Create(ctx context.Context, r *Recipient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Recipient, error)
	GetByExternalID(ctx context.Context, externalID string) (*Recipient, error)
	Update(ctx context.Context, r *Recipient) error
	// ListActive returns every active recipient, for match scans.
	ListActive(ctx context.Context) ([]*Recipient, error)
	// Search returns a priority-ranked page and the pre-pagination total.
	Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Recipient, int, error)
}
