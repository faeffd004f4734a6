package match

import "testing"

func TestValidStatus(t *testing.T) {
	for _, s := range []string{StatusPending, StatusApproved, StatusCompleted, StatusCancelled} {
		if !ValidStatus(s) {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if ValidStatus("rejected") {
		t.Error("expected rejected to be invalid")
	}
	if ValidStatus("") {
		t.Error("expected empty status to be invalid")
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusCancelled, true},
		{StatusApproved, StatusCompleted, true},
		{StatusPending, StatusCompleted, false},
		{StatusApproved, StatusPending, false},
		{StatusApproved, StatusCancelled, false},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusApproved, false},
		{StatusCancelled, StatusApproved, false},
		{StatusPending, StatusPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
