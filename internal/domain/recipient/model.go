package recipient

import (
	"time"

	"github.com/google/uuid"
)

// Recipient maps to the recipients table. A recipient requests a single
// organ with an urgency level between 1 (low) and 5 (emergency).
type Recipient struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ExternalID     string    `db:"external_id" json:"externalId,omitempty"`
	Name           string    `db:"name" json:"name"`
	BloodType      string    `db:"blood_type" json:"bloodType"`
	Organ          string    `db:"organ" json:"organ"`
	Age            int       `db:"age" json:"age"`
	Location       string    `db:"location" json:"location"`
	MedicalHistory string    `db:"medical_history" json:"medicalHistory,omitempty"`
	Urgency        int       `db:"urgency" json:"urgency"`
	WaitingSince   time.Time `db:"waiting_since" json:"waitingSince"`
	IsActive       bool      `db:"is_active" json:"isActive"`
	Priority       int       `db:"priority" json:"priority"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// CalculatePriority derives the recipient's intrinsic ranking value at the
// given point in time. Base 100, plus urgency weight, an age band and one
// point per full month waited. Capped at 300. A non-positive age counts as
// the worst band.
func CalculatePriority(r *Recipient, now time.Time) int {
	p := 100 + r.Urgency*30
	switch {
	case r.Age <= 0:
	case r.Age <= 18:
		p += 25
	case r.Age <= 35:
		p += 15
	case r.Age <= 50:
		p += 10
	}
	if !r.WaitingSince.IsZero() && now.After(r.WaitingSince) {
		p += int(now.Sub(r.WaitingSince).Hours() / 24 / 30)
	}
	if p > 300 {
		p = 300
	}
	return p
}
