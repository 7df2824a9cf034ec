package services

import "time"

// DefaultSyncFrequencyHours applies when an account's frequency is unset,
// zero or negative.
const DefaultSyncFrequencyHours = 24

// NeedsSync reports whether an account is due for a sync at the given
// instant. An account that has never synced is always due. Pure function;
// used by status reporting and suitable for an external scheduler.
func NeedsSync(lastSync *time.Time, frequencyHours int, now time.Time) bool {
	if lastSync == nil {
		return true
	}
	if frequencyHours <= 0 {
		frequencyHours = DefaultSyncFrequencyHours
	}
	due := lastSync.Add(time.Duration(frequencyHours) * time.Hour)
	return !now.Before(due)
}
