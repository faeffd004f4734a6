package recipient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lifelink/lifelink/internal/domain/donor"
	"github.com/lifelink/lifelink/internal/domain/match"
)

// ErrValidation marks a rejected registration payload.
var ErrValidation = errors.New("validation failed")

var validBloodTypes = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

// MatchNotifier is implemented by the matching engine. Registration events
// fan out through it to discover new matches.
type MatchNotifier interface {
	RecipientRegistered(ctx context.Context, r *Recipient) ([]*match.Match, error)
}

// RankedDonor pairs an eligible donor with its display-mode score for the
// interactive search view.
type RankedDonor struct {
	Donor *donor.Donor `json:"donor"`
	Score int          `json:"score"`
}

// DonorRanker serves the ranked-donor view for a recipient.
type DonorRanker interface {
	RankDonors(ctx context.Context, r *Recipient) ([]RankedDonor, error)
}

type Service struct {
	recipients RecipientRepository
	notifier   MatchNotifier
	ranker     DonorRanker
}

func NewService(recipients RecipientRepository) *Service {
	return &Service{recipients: recipients}
}

// SetMatchNotifier attaches the engine notified on registration events.
func (s *Service) SetMatchNotifier(n MatchNotifier) {
	s.notifier = n
}

// SetDonorRanker attaches the engine serving ranked-donor views.
func (s *Service) SetDonorRanker(r DonorRanker) {
	s.ranker = r
}

// Register validates and persists a new recipient, then scans the eligible
// donor pool for matches. A failed scan leaves the recipient registered; a
// later refresh reconciles the match set.
func (s *Service) Register(ctx context.Context, r *Recipient) ([]*match.Match, error) {
	if strings.TrimSpace(r.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if r.BloodType == "" {
		return nil, fmt.Errorf("%w: bloodType is required", ErrValidation)
	}
	if !validBloodTypes[r.BloodType] {
		return nil, fmt.Errorf("%w: invalid bloodType %q", ErrValidation, r.BloodType)
	}
	if strings.TrimSpace(r.Organ) == "" {
		return nil, fmt.Errorf("%w: organ is required", ErrValidation)
	}
	if r.Urgency < 1 || r.Urgency > 5 {
		return nil, fmt.Errorf("%w: urgency must be between 1 and 5", ErrValidation)
	}
	if r.ExternalID != "" {
		if _, err := s.recipients.GetByExternalID(ctx, r.ExternalID); err == nil {
			return nil, ErrDuplicate
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	now := time.Now().UTC()
	if r.WaitingSince.IsZero() {
		r.WaitingSince = now
	}
	r.IsActive = true
	r.Priority = CalculatePriority(r, now)
	r.CreatedAt = now
	r.UpdatedAt = now
	if err := s.recipients.Create(ctx, r); err != nil {
		return nil, err
	}
	if s.notifier == nil {
		return []*match.Match{}, nil
	}
	matches, err := s.notifier.RecipientRegistered(ctx, r)
	if matches == nil {
		matches = []*match.Match{}
	}
	return matches, err
}

// Deactivate withdraws the recipient from matching. Existing matches are
// kept; they are only dropped by a full refresh.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (*Recipient, error) {
	r, err := s.recipients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.IsActive {
		return r, nil
	}
	r.IsActive = false
	r.UpdatedAt = time.Now().UTC()
	if err := s.recipients.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Recipient, error) {
	return s.recipients.GetByID(ctx, id)
}

func (s *Service) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Recipient, int, error) {
	return s.recipients.Search(ctx, params, limit, offset)
}

// RankedDonors lists the donors eligible for the recipient, ranked by the
// display scoring mode.
func (s *Service) RankedDonors(ctx context.Context, id uuid.UUID) ([]RankedDonor, error) {
	r, err := s.recipients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.ranker == nil {
		return nil, fmt.Errorf("no donor ranker attached")
	}
	return s.ranker.RankDonors(ctx, r)
}
