package matching

import (
	"strings"

	"github.com/lifelink/lifelink/internal/domain/donor"
	"github.com/lifelink/lifelink/internal/domain/match"
	"github.com/lifelink/lifelink/internal/domain/recipient"
)

// ScoreWeights parameterises the blood-type points of the match score. Two
// schedules are in use: the registry schedule feeds persisted match records,
// the display schedule ranks donors in the interactive search view.
type ScoreWeights struct {
	BloodExact      int
	BloodCompatible int
	// Cap bounds the final score; zero means unbounded.
	Cap int
}

// RegistryWeights is the additive schedule used when creating match records.
// Its scores fall in [0,100].
func RegistryWeights() ScoreWeights {
	return ScoreWeights{BloodExact: 40, BloodCompatible: 30, Cap: 100}
}

// DisplayWeights is the steeper, uncapped schedule used by the ranked-donor
// view, where blood-type affinity dominates the ordering.
func DisplayWeights() ScoreWeights {
	return ScoreWeights{BloodExact: 100, BloodCompatible: 80}
}

// Score computes the registry match score for a donor/recipient pair.
func Score(d *donor.Donor, r *recipient.Recipient) int {
	return RegistryWeights().Score(d, r)
}

// Score computes the weighted compatibility score for a pair. Blood-type
// incompatibility and a missing organ each zero the score outright; the
// location, age and urgency components only refine pairs that already
// qualify.
func (w ScoreWeights) Score(d *donor.Donor, r *recipient.Recipient) int {
	var score int
	switch {
	case d.BloodType == r.BloodType:
		score += w.BloodExact
	case IsBloodCompatible(d.BloodType, r.BloodType):
		score += w.BloodCompatible
	default:
		return 0
	}

	if !HasOrgan(d.Organs, r.Organ) {
		return 0
	}
	score += 30

	score += locationPoints(d.Location, r.Location)
	score += agePoints(d.Age, r.Age)
	score += r.Urgency

	if w.Cap > 0 && score > w.Cap {
		score = w.Cap
	}
	return score
}

// Evaluate computes the registry score for a pair together with the
// four-factor snapshot stored on the match record. The snapshot reflects the
// pair at creation time and is never re-evaluated.
func Evaluate(d *donor.Donor, r *recipient.Recipient) (int, match.Compatibility) {
	compat := match.Compatibility{
		BloodType: IsBloodCompatible(d.BloodType, r.BloodType),
		Organ:     HasOrgan(d.Organs, r.Organ),
		Location:  locationPoints(d.Location, r.Location) > 0,
		Age:       agePoints(d.Age, r.Age) > 0,
	}
	return Score(d, r), compat
}

// locationPoints awards 15 for an exact location match and 8 when only the
// region token after the first comma matches, case-insensitively.
func locationPoints(donorLoc, recipientLoc string) int {
	if donorLoc == recipientLoc {
		return 15
	}
	dr, rr := regionToken(donorLoc), regionToken(recipientLoc)
	if dr != "" && strings.EqualFold(dr, rr) {
		return 8
	}
	return 0
}

// regionToken extracts the trimmed region portion of a "City, Region"
// location, or "" when there is no comma.
func regionToken(location string) string {
	_, region, ok := strings.Cut(location, ",")
	if !ok {
		return ""
	}
	return strings.TrimSpace(region)
}

// agePoints awards 10 when donor and recipient are within ten years of each
// other and 5 within twenty. An unknown age on either side earns nothing.
func agePoints(donorAge, recipientAge int) int {
	if donorAge <= 0 || recipientAge <= 0 {
		return 0
	}
	diff := donorAge - recipientAge
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff <= 10:
		return 10
	case diff <= 20:
		return 5
	}
	return 0
}
