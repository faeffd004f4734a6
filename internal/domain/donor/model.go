package donor

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Donor maps to the donors table. A donor offers one or more organs and
// becomes eligible for matching once active and verified.
type Donor struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ExternalID     string    `db:"external_id" json:"externalId,omitempty"`
	Name           string    `db:"name" json:"name"`
	BloodType      string    `db:"blood_type" json:"bloodType"`
	Organs         []string  `db:"organs" json:"organs"`
	Age            int       `db:"age" json:"age"`
	Location       string    `db:"location" json:"location"`
	MedicalHistory string    `db:"medical_history" json:"medicalHistory,omitempty"`
	IsActive       bool      `db:"is_active" json:"isActive"`
	IsVerified     bool      `db:"is_verified" json:"isVerified"`
	Priority       int       `db:"priority" json:"priority"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// Eligible reports whether the donor participates in match discovery.
func (d *Donor) Eligible() bool {
	return d.IsActive && d.IsVerified
}

// HasOrgan reports whether organ is among the donor's offered organs.
func (d *Donor) HasOrgan(organ string) bool {
	for _, o := range d.Organs {
		if o == organ {
			return true
		}
	}
	return false
}

// CalculatePriority derives the donor's intrinsic ranking value. Base 100,
// plus an age band, 5 points per offered organ, and 15 points for a clean
// medical history. Capped at 200. A non-positive age counts as the worst
// band.
func CalculatePriority(d *Donor) int {
	p := 100
	switch {
	case d.Age <= 0:
	case d.Age <= 30:
		p += 20
	case d.Age <= 45:
		p += 10
	case d.Age <= 60:
		p += 5
	}
	p += len(d.Organs) * 5
	if d.MedicalHistory == "" || strings.Contains(strings.ToLower(d.MedicalHistory), "healthy") {
		p += 15
	}
	if p > 200 {
		p = 200
	}
	return p
}
