package match

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Storage-level errors shared by every MatchRepository implementation.
var (
	// ErrAlreadyMatched is returned by Insert when a match already exists
	// for the (donor, recipient) pair.
	ErrAlreadyMatched = errors.New("match already exists for pair")
	// ErrNotFound is returned when no match has the requested id or pair.
	ErrNotFound = errors.New("match not found")
)

// SearchParams are the optional listing filters. Zero values mean "any".
type SearchParams struct {
	BloodType     string
	Organ         string
	Status        string
	MinUrgency    int
	ParticipantID uuid.UUID // matches either side of the pair
}

type MatchRepository interface {
	// Insert stores a new match. It must be atomic with respect to the
	// pair-uniqueness check and return ErrAlreadyMatched on conflict.
	Insert(ctx context.Context, m *Match) error
	GetByID(ctx context.Context, id uuid.UUID) (*Match, error)
	GetByPair(ctx context.Context, donorID, recipientID uuid.UUID) (*Match, error)
	Update(ctx context.Context, m *Match) error
	// Search returns matches ordered by priority descending, ties broken
	// by match score descending, plus the pre-pagination total.
	Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Match, int, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
	Clear(ctx context.Context) error
}
