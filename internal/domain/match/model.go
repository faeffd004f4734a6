package match

import (
	"time"

	"github.com/google/uuid"
)

// Match statuses. A match starts pending and is advanced by a coordinator;
// completed and cancelled are terminal.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var validStatuses = map[string]bool{
	StatusPending: true, StatusApproved: true,
	StatusCompleted: true, StatusCancelled: true,
}

// allowedTransitions lists the legal status moves.
var allowedTransitions = map[string]map[string]bool{
	StatusPending:  {StatusApproved: true, StatusCancelled: true},
	StatusApproved: {StatusCompleted: true},
}

// ValidStatus reports whether s is a known match status.
func ValidStatus(s string) bool { return validStatuses[s] }

// CanTransition reports whether a match may move from one status to another.
func CanTransition(from, to string) bool { return allowedTransitions[from][to] }

// Compatibility records which factors held for the pair when the match was
// created. It is a snapshot for display and audit, never re-evaluated.
type Compatibility struct {
	BloodType bool `db:"compat_blood" json:"bloodType"`
	Organ     bool `db:"compat_organ" json:"organ"`
	Location  bool `db:"compat_location" json:"location"`
	Age       bool `db:"compat_age" json:"age"`
}

// Match maps to the matches table. Organ, blood type and urgency are
// denormalized copies of the recipient's values at creation time so listings
// can filter without a join; they are not re-synced if the recipient changes.
type Match struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	DonorID       uuid.UUID     `db:"donor_id" json:"donorId"`
	RecipientID   uuid.UUID     `db:"recipient_id" json:"recipientId"`
	Organ         string        `db:"organ" json:"organ"`
	BloodType     string        `db:"blood_type" json:"bloodType"`
	Urgency       int           `db:"urgency" json:"urgency"`
	MatchScore    int           `db:"match_score" json:"matchScore"`
	Compatibility Compatibility `json:"compatibility"`
	Priority      int           `db:"priority" json:"priority"`
	Status        string        `db:"status" json:"status"`
	CreatedAt     time.Time     `db:"created_at" json:"createdAt"`
	LastUpdated   time.Time     `db:"last_updated" json:"lastUpdated"`
}
