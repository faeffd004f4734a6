package matching

import (
	"testing"

	"github.com/lifelink/lifelink/internal/domain/donor"
	"github.com/lifelink/lifelink/internal/domain/recipient"
)

func scoringDonor() *donor.Donor {
	return &donor.Donor{
		BloodType: "O+",
		Organs:    []string{"Kidney"},
		Age:       35,
		Location:  "New York, NY",
	}
}

func scoringRecipient() *recipient.Recipient {
	return &recipient.Recipient{
		BloodType: "O+",
		Organ:     "Kidney",
		Age:       40,
		Location:  "New York, NY",
		Urgency:   5,
	}
}

func TestScore_ExactMatch(t *testing.T) {
	// blood 40 + organ 30 + location 15 + age 10 + urgency 5
	if got := Score(scoringDonor(), scoringRecipient()); got != 100 {
		t.Errorf("expected 100, got %d", got)
	}
}

func TestScore_CompatibleBlood(t *testing.T) {
	d := scoringDonor()
	d.BloodType = "O-"
	// blood 30 + organ 30 + location 15 + age 10 + urgency 5
	if got := Score(d, scoringRecipient()); got != 90 {
		t.Errorf("expected 90, got %d", got)
	}
}

func TestScore_IncompatibleBloodZero(t *testing.T) {
	d := scoringDonor()
	d.BloodType = "AB+"
	if got := Score(d, scoringRecipient()); got != 0 {
		t.Errorf("expected 0 for incompatible blood, got %d", got)
	}
}

func TestScore_MissingOrganZero(t *testing.T) {
	d := scoringDonor()
	d.Organs = []string{"Liver"}
	if got := Score(d, scoringRecipient()); got != 0 {
		t.Errorf("expected 0 when organ is not offered, got %d", got)
	}
}

func TestScore_RegionMatch(t *testing.T) {
	d := scoringDonor()
	d.Location = "Buffalo, NY"
	// blood 40 + organ 30 + region 8 + age 10 + urgency 5
	if got := Score(d, scoringRecipient()); got != 93 {
		t.Errorf("expected 93, got %d", got)
	}
}

func TestScore_RegionCaseInsensitive(t *testing.T) {
	d := scoringDonor()
	d.Location = "Buffalo, ny"
	if got := Score(d, scoringRecipient()); got != 93 {
		t.Errorf("expected 93, got %d", got)
	}
}

func TestScore_NoLocationPoints(t *testing.T) {
	d := scoringDonor()
	d.Location = "Austin, TX"
	// blood 40 + organ 30 + age 10 + urgency 5
	if got := Score(d, scoringRecipient()); got != 85 {
		t.Errorf("expected 85, got %d", got)
	}
}

func TestScore_CommalessLocationsEarnNoRegionPoints(t *testing.T) {
	d := scoringDonor()
	d.Location = "Springfield"
	r := scoringRecipient()
	r.Location = "Shelbyville"
	if got := Score(d, r); got != 85 {
		t.Errorf("expected 85, got %d", got)
	}
}

func TestScore_AgeBands(t *testing.T) {
	cases := []struct {
		name               string
		donorAge, recipAge int
		want               int
	}{
		{"same age", 40, 40, 100},
		{"ten years apart", 30, 40, 100},
		{"eleven years apart", 29, 40, 95},
		{"twenty years apart", 20, 40, 95},
		{"twenty-one years apart", 19, 40, 90},
		{"unknown donor age", 0, 40, 90},
		{"unknown recipient age", 40, 0, 90},
	}
	for _, tc := range cases {
		d := scoringDonor()
		d.Age = tc.donorAge
		r := scoringRecipient()
		r.Age = tc.recipAge
		if got := Score(d, r); got != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestScore_UrgencyAddsRawPoints(t *testing.T) {
	r := scoringRecipient()
	r.Urgency = 1
	if got := Score(scoringDonor(), r); got != 96 {
		t.Errorf("expected 96, got %d", got)
	}
}

func TestScore_Bounded(t *testing.T) {
	locations := []string{"New York, NY", "Buffalo, NY", "Austin, TX", ""}
	ages := []int{0, 16, 35, 60, 88}
	for _, db := range bloodTypes {
		for _, rb := range bloodTypes {
			for _, loc := range locations {
				for _, age := range ages {
					d := &donor.Donor{BloodType: db, Organs: []string{"Kidney"}, Age: age, Location: loc}
					r := &recipient.Recipient{BloodType: rb, Organ: "Kidney", Age: 40, Location: "New York, NY", Urgency: 5}
					got := Score(d, r)
					if got < 0 || got > 100 {
						t.Fatalf("score out of range for %s->%s loc=%q age=%d: %d", db, rb, loc, age, got)
					}
				}
			}
		}
	}
}

func TestDisplayWeights_Schedule(t *testing.T) {
	w := DisplayWeights()
	// blood 100 + organ 30 + location 15 + age 10 + urgency 5, uncapped
	if got := w.Score(scoringDonor(), scoringRecipient()); got != 160 {
		t.Errorf("expected 160, got %d", got)
	}
	d := scoringDonor()
	d.BloodType = "O-"
	if got := w.Score(d, scoringRecipient()); got != 140 {
		t.Errorf("expected 140 for compatible blood, got %d", got)
	}
	d.BloodType = "AB-"
	if got := w.Score(d, scoringRecipient()); got != 0 {
		t.Errorf("expected 0 for incompatible blood, got %d", got)
	}
}

func TestEvaluate_Snapshot(t *testing.T) {
	score, compat := Evaluate(scoringDonor(), scoringRecipient())
	if score != 100 {
		t.Errorf("expected score 100, got %d", score)
	}
	if !compat.BloodType || !compat.Organ || !compat.Location || !compat.Age {
		t.Errorf("expected all factors true, got %+v", compat)
	}
}

func TestEvaluate_PartialSnapshot(t *testing.T) {
	d := scoringDonor()
	d.Location = "Austin, TX"
	d.Age = 0
	_, compat := Evaluate(d, scoringRecipient())
	if !compat.BloodType || !compat.Organ {
		t.Errorf("expected blood and organ true, got %+v", compat)
	}
	if compat.Location {
		t.Error("expected location factor false for different regions")
	}
	if compat.Age {
		t.Error("expected age factor false for unknown age")
	}
}

func TestEvaluate_IncompatiblePair(t *testing.T) {
	d := scoringDonor()
	d.BloodType = "A+"
	r := scoringRecipient()
	r.BloodType = "B+"
	score, compat := Evaluate(d, r)
	if score != 0 {
		t.Errorf("expected score 0, got %d", score)
	}
	if compat.BloodType {
		t.Error("expected blood factor false")
	}
	if !compat.Organ {
		t.Error("expected organ factor true")
	}
}
