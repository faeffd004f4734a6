package recipient

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func seedRecipient(urgency, priority int) *Recipient {
	return &Recipient{
		ExternalID: uuid.New().String(),
		Name:       "Test Recipient",
		BloodType:  "A+",
		Organ:      "Kidney",
		Age:        30,
		Location:   "Boston, MA",
		Urgency:    urgency,
		IsActive:   true,
		Priority:   priority,
	}
}

func TestRepoMem_RejectsDuplicateExternalID(t *testing.T) {
	repo := NewRepoMem()
	first := seedRecipient(3, 190)
	if err := repo.Create(nil, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dup := seedRecipient(2, 160)
	dup.ExternalID = first.ExternalID
	if err := repo.Create(nil, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestRepoMem_GetByExternalID(t *testing.T) {
	repo := NewRepoMem()
	rec := seedRecipient(3, 190)
	repo.Create(nil, rec)

	got, err := repo.GetByExternalID(nil, rec.ExternalID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("expected id %s, got %s", rec.ID, got.ID)
	}

	if _, err := repo.GetByExternalID(nil, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepoMem_ListActiveSkipsInactive(t *testing.T) {
	repo := NewRepoMem()
	repo.Create(nil, seedRecipient(3, 190))
	inactive := seedRecipient(4, 220)
	inactive.IsActive = false
	repo.Create(nil, inactive)

	active, err := repo.ListActive(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("expected 1 active recipient, got %d", len(active))
	}
}

func TestRepoMem_SearchMinUrgency(t *testing.T) {
	repo := NewRepoMem()
	repo.Create(nil, seedRecipient(2, 160))
	repo.Create(nil, seedRecipient(4, 220))
	repo.Create(nil, seedRecipient(5, 250))

	if _, total, _ := repo.Search(nil, SearchParams{MinUrgency: 4}, 10, 0); total != 2 {
		t.Errorf("expected 2 recipients at urgency >= 4, got %d", total)
	}
}

func TestRepoMem_SearchOrdersByPriority(t *testing.T) {
	repo := NewRepoMem()
	repo.Create(nil, seedRecipient(2, 160))
	repo.Create(nil, seedRecipient(5, 250))
	repo.Create(nil, seedRecipient(3, 190))

	items, _, err := repo.Search(nil, SearchParams{}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items[0].Priority != 250 || items[2].Priority != 160 {
		t.Errorf("expected priority-descending order, got %d..%d", items[0].Priority, items[2].Priority)
	}
}

func TestRepoMem_UpdateUnknownID(t *testing.T) {
	repo := NewRepoMem()
	ghost := seedRecipient(3, 190)
	ghost.ID = uuid.New()
	if err := repo.Update(nil, ghost); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
