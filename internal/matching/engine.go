// Package matching implements the donor/recipient compatibility engine: the
// blood-type and organ gating rules, the two match scoring schedules, and
// the orchestrator that reacts to registration events by scanning the
// opposite pool and persisting newly discovered matches.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lifelink/lifelink/internal/domain/donor"
	"github.com/lifelink/lifelink/internal/domain/match"
	"github.com/lifelink/lifelink/internal/domain/recipient"
)

// Engine discovers matches in response to registration events and rebuilds
// the match set on demand. Registration scans run under a shared read lock;
// RefreshAll takes the write lock so a clear-and-rebuild never interleaves
// with concurrent scans. Pair-level duplicate prevention is the match
// repository's atomic insert, not the engine's.
type Engine struct {
	mu         sync.RWMutex
	donors     donor.DonorRepository
	recipients recipient.RecipientRepository
	matches    match.MatchRepository
	log        zerolog.Logger
}

// The engine is the single implementation behind the registration fan-out,
// the ranked-donor view and the administrative refresh.
var (
	_ donor.MatchNotifier     = (*Engine)(nil)
	_ recipient.MatchNotifier = (*Engine)(nil)
	_ recipient.DonorRanker   = (*Engine)(nil)
	_ match.Rebuilder         = (*Engine)(nil)
)

func NewEngine(
	donors donor.DonorRepository,
	recipients recipient.RecipientRepository,
	matches match.MatchRepository,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		donors:     donors,
		recipients: recipients,
		matches:    matches,
		log:        log,
	}
}

// DonorRegistered scans the active recipient pool for the given donor and
// inserts a pending match for every compatible pair that does not already
// have one. A donor that is not both active and verified produces no
// matches, so the outcome never depends on which side registered first.
// Pairs created before an insert failure are kept and returned with the
// error; a later refresh reconciles the remainder.
func (e *Engine) DonorRegistered(ctx context.Context, d *donor.Donor) ([]*match.Match, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !d.Eligible() {
		return nil, nil
	}
	pool, err := e.recipients.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}

	var created []*match.Match
	now := time.Now().UTC()
	for _, r := range pool {
		m, err := e.tryPair(ctx, d, r, now)
		if err != nil {
			return created, err
		}
		if m != nil {
			created = append(created, m)
		}
	}
	e.log.Info().
		Str("donor_id", d.ID.String()).
		Int("candidates", len(pool)).
		Int("created", len(created)).
		Msg("donor match scan")
	return created, nil
}

// RecipientRegistered is the mirror of DonorRegistered: it scans the
// eligible (active and verified) donor pool for the given recipient.
func (e *Engine) RecipientRegistered(ctx context.Context, r *recipient.Recipient) ([]*match.Match, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !r.IsActive {
		return nil, nil
	}
	pool, err := e.donors.ListEligible(ctx)
	if err != nil {
		return nil, fmt.Errorf("list donors: %w", err)
	}

	var created []*match.Match
	now := time.Now().UTC()
	for _, d := range pool {
		m, err := e.tryPair(ctx, d, r, now)
		if err != nil {
			return created, err
		}
		if m != nil {
			created = append(created, m)
		}
	}
	e.log.Info().
		Str("recipient_id", r.ID.String()).
		Int("candidates", len(pool)).
		Int("created", len(created)).
		Msg("recipient match scan")
	return created, nil
}

// RefreshAll drops the entire match set and rebuilds it by scanning every
// eligible donor against every active recipient. It holds the engine write
// lock for the duration, so registration scans wait rather than interleave
// with the rebuild. Returns the number of matches created.
func (e *Engine) RefreshAll(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.matches.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clear matches: %w", err)
	}
	donors, err := e.donors.ListEligible(ctx)
	if err != nil {
		return 0, fmt.Errorf("list donors: %w", err)
	}
	pool, err := e.recipients.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list recipients: %w", err)
	}

	total := 0
	now := time.Now().UTC()
	for _, d := range donors {
		for _, r := range pool {
			m, err := e.tryPair(ctx, d, r, now)
			if err != nil {
				return total, err
			}
			if m != nil {
				total++
			}
		}
	}
	e.log.Info().
		Int("donors", len(donors)).
		Int("recipients", len(pool)).
		Int("matches", total).
		Msg("match set rebuilt")
	return total, nil
}

// RankDonors lists the donors a recipient could receive from, ordered by the
// display scoring schedule, ties broken by donor priority. Nothing is
// persisted; the view is recomputed on every call.
func (e *Engine) RankDonors(ctx context.Context, r *recipient.Recipient) ([]recipient.RankedDonor, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pool, err := e.donors.ListEligible(ctx)
	if err != nil {
		return nil, fmt.Errorf("list donors: %w", err)
	}

	weights := DisplayWeights()
	var ranked []recipient.RankedDonor
	for _, d := range pool {
		if !IsBloodCompatible(d.BloodType, r.BloodType) || !HasOrgan(d.Organs, r.Organ) {
			continue
		}
		ranked = append(ranked, recipient.RankedDonor{Donor: d, Score: weights.Score(d, r)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Donor.Priority > ranked[j].Donor.Priority
	})
	return ranked, nil
}

// tryPair inserts a pending match for the pair when the gating rules pass.
// It returns (nil, nil) when the pair is incompatible or already matched;
// the repository's insert-if-absent keeps the pair unique under concurrent
// scans.
func (e *Engine) tryPair(ctx context.Context, d *donor.Donor, r *recipient.Recipient, now time.Time) (*match.Match, error) {
	if !IsBloodCompatible(d.BloodType, r.BloodType) || !HasOrgan(d.Organs, r.Organ) {
		return nil, nil
	}

	score, compat := Evaluate(d, r)
	m := &match.Match{
		DonorID:       d.ID,
		RecipientID:   r.ID,
		Organ:         r.Organ,
		BloodType:     r.BloodType,
		Urgency:       r.Urgency,
		MatchScore:    score,
		Compatibility: compat,
		Priority:      r.Priority + score,
		Status:        match.StatusPending,
		CreatedAt:     now,
		LastUpdated:   now,
	}
	if err := e.matches.Insert(ctx, m); err != nil {
		if errors.Is(err, match.ErrAlreadyMatched) {
			return nil, nil
		}
		e.log.Warn().Err(err).
			Str("donor_id", d.ID.String()).
			Str("recipient_id", r.ID.String()).
			Msg("match insert failed")
		return nil, fmt.Errorf("insert match: %w", err)
	}
	return m, nil
}
