package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Common errors returned by the match service.
var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Rebuilder recomputes the full match set from the current registry state.
// Implemented by the matching engine.
type Rebuilder interface {
	RefreshAll(ctx context.Context) (int, error)
}

// TransplantRecorder tracks completed transplants for operational metrics.
type TransplantRecorder interface {
	TransplantCompleted()
	TransplantsCompleted() int64
}

type Service struct {
	matches   MatchRepository
	rebuilder Rebuilder
	recorder  TransplantRecorder
}

func NewService(matches MatchRepository) *Service {
	return &Service{matches: matches}
}

// SetRebuilder attaches the engine used by Refresh.
func (s *Service) SetRebuilder(r Rebuilder) {
	s.rebuilder = r
}

// SetTransplantRecorder attaches an optional transplant counter.
func (s *Service) SetTransplantRecorder(tr TransplantRecorder) {
	s.recorder = tr
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Match, error) {
	return s.matches.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, params SearchParams, limit, offset int) ([]*Match, int, error) {
	return s.matches.Search(ctx, params, limit, offset)
}

// UpdateStatus advances a match through its lifecycle. Only
// pending->approved, pending->cancelled and approved->completed are
// permitted.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus string) (*Match, error) {
	if !ValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, newStatus)
	}
	m, err := s.matches.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(m.Status, newStatus) {
		return nil, fmt.Errorf("%w from %s to %s", ErrInvalidTransition, m.Status, newStatus)
	}
	m.Status = newStatus
	m.LastUpdated = time.Now().UTC()
	if err := s.matches.Update(ctx, m); err != nil {
		return nil, err
	}
	if newStatus == StatusCompleted && s.recorder != nil {
		s.recorder.TransplantCompleted()
	}
	return m, nil
}

// Refresh drops all matches and rebuilds them from the active registry.
// It returns the number of matches created.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	if s.rebuilder == nil {
		return 0, fmt.Errorf("no match engine attached")
	}
	return s.rebuilder.RefreshAll(ctx)
}

// Stats summarises the match table for dashboards.
type Stats struct {
	Total                int            `json:"total"`
	ByStatus             map[string]int `json:"byStatus"`
	TransplantsCompleted int64          `json:"transplantsCompleted"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.matches.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	st := &Stats{Total: total, ByStatus: counts}
	if s.recorder != nil {
		st.TransplantsCompleted = s.recorder.TransplantsCompleted()
	}
	return st, nil
}
