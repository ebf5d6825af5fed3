package reconcile

import (
	"testing"
	"time"
)

func TestSettlementWindow(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		wantFrom time.Time
		wantTo   time.Time
	}{
		{
			name:     "monday rolls back over the weekend to friday",
			now:      time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC), // Monday
			wantFrom: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),   // Friday
			wantTo:   time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "tuesday settles monday",
			now:      time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
			wantFrom: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "wednesday settles tuesday",
			now:      time.Date(2024, 3, 6, 23, 59, 0, 0, time.UTC),
			wantFrom: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "saturday settles friday",
			now:      time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC),
			wantFrom: time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := SettlementWindow(tt.now)
			if !from.Equal(tt.wantFrom) {
				t.Errorf("from: expected %v, got %v", tt.wantFrom, from)
			}
			if !to.Equal(tt.wantTo) {
				t.Errorf("to: expected %v, got %v", tt.wantTo, to)
			}
		})
	}
}

func TestSettlementWindow_KeepsLocation(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	from, to := SettlementWindow(time.Date(2024, 3, 4, 10, 0, 0, 0, loc))
	if from.Location() != loc || to.Location() != loc {
		t.Error("Expected window boundaries in the caller's location")
	}
}
