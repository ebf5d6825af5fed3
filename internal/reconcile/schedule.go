package reconcile

import "time"

// SettlementWindow resolves the automatic settlement period for a run
// started at now, mirroring the banking settlement calendar: a Monday run
// rolls back over the whole weekend (Friday through Sunday), a Tuesday run
// settles Monday, and every other day settles the previous day.
// The returned bounds are half-open [from, to) midnights in now's location.
func SettlementWindow(now time.Time) (time.Time, time.Time) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if now.Weekday() == time.Monday {
		return midnight.AddDate(0, 0, -3), midnight
	}
	return midnight.AddDate(0, 0, -1), midnight
}
