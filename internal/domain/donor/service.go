package donor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lifelink/lifelink/internal/domain/match"
)

// ErrValidation marks a rejected registration payload.
var ErrValidation = errors.New("validation failed")

var validBloodTypes = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

// MatchNotifier is implemented by the matching engine. Registration and
// verification events fan out through it to discover new matches.
type MatchNotifier interface {
	DonorRegistered(ctx context.Context, d *Donor) ([]*match.Match, error)
}

type Service struct {
	donors   DonorRepository
	notifier MatchNotifier
}

func NewService(donors DonorRepository) *Service {
	return &Service{donors: donors}
}

// SetMatchNotifier attaches the engine notified on registration events.
func (s *Service) SetMatchNotifier(n MatchNotifier) {
	s.notifier = n
}

// Register validates and persists a new donor, then scans the recipient
// pool for matches. A failed scan leaves the donor registered; a later
// refresh reconciles the match set.
func (s *Service) Register(ctx context.Context, d *Donor) ([]*match.Match, error) {
	if strings.TrimSpace(d.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if d.BloodType == "" {
		return nil, fmt.Errorf("%w: bloodType is required", ErrValidation)
	}
	if !validBloodTypes[d.BloodType] {
		return nil, fmt.Errorf("%w: invalid bloodType %q", ErrValidation, d.BloodType)
	}
	if len(d.Organs) == 0 {
		return nil, fmt.Errorf("%w: at least one organ is required", ErrValidation)
	}
	for _, o := range d.Organs {
		if strings.TrimSpace(o) == "" {
			return nil, fmt.Errorf("%w: organs must not contain blank entries", ErrValidation)
		}
	}
	if d.ExternalID != "" {
		if _, err := s.donors.GetByExternalID(ctx, d.ExternalID); err == nil {
			return nil, ErrDuplicate
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	now := time.Now().UTC()
	d.IsActive = true
	d.IsVerified = false
	d.Priority = CalculatePriority(d)
	d.CreatedAt = now
	d.UpdatedAt = now
	if err := s.donors.Create(ctx, d); err != nil {
		return nil, err
	}
	return s.fanOut(ctx, d)
}

// Verify flips the donor to verified and runs the match scan, since the
// donor only now becomes eligible for pairing.
func (s *Service) Verify(ctx context.Context, id uuid.UUID) (*Donor, []*match.Match, error) {
	d, err := s.donors.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if d.IsVerified {
		return d, []*match.Match{}, nil
	}
	d.IsVerified = true
	d.UpdatedAt = time.Now().UTC()
	if err := s.donors.Update(ctx, d); err != nil {
		return nil, nil, err
	}
	matches, err := s.fanOut(ctx, d)
	return d, matches, err
}

// Deactivate withdraws the donor from matching. Existing matches are kept;
// they are only dropped by a full refresh.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (*Donor, error) {
	d, err := s.donors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.IsActive {
		return d, nil
	}
	d.IsActive = false
	d.UpdatedAt = time.Now().UTC()
	if err := s.donors.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Donor, error) {
	return s.donors.GetByID(ctx, id)
}

func (s *Service) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Donor, int, error) {
	return s.donors.Search(ctx, params, limit, offset)
}

func (s *Service) fanOut(ctx context.Context, d *Donor) ([]*match.Match, error) {
	if s.notifier == nil {
		return []*match.Match{}, nil
	}
	matches, err := s.notifier.DonorRegistered(ctx, d)
	if matches == nil {
		matches = []*match.Match{}
	}
	return matches, err
}
