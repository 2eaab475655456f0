package catalogue

import "time"

const day = 24 * time.Hour

// MaxReleaseDelayDays upper bound of a release delay, about 2700 years.
// Larger persisted delays are evaluated as this bound and stay locked.
const MaxReleaseDelayDays = 1000000

// ModuleReleaseAt the moment the time delay of m expires, a negative delay counts as zero
func ModuleReleaseAt(m *Module) time.Time {
	delay := m.ReleaseDelayDays
	if delay < 0 {
		delay = 0
	}
	if delay > MaxReleaseDelayDays {
		delay = MaxReleaseDelayDays
	}
	// UTC days are exactly 86400s
	return time.UnixMilli(m.CreatedAt).UTC().AddDate(0, 0, delay)
}

// IsModuleLocked explicit lock OR release time not reached yet
func IsModuleLocked(m *Module, now time.Time) bool {
	return m.Locked || now.Before(ModuleReleaseAt(m))
}

// IsLessonLocked explicit lock OR its module is locked
func IsLessonLocked(m *Module, l *Lesson, now time.Time) bool {
	return l.Locked || IsModuleLocked(m, now)
}

// FilterByLockState keep the modules whose effective lock equals *locked,
// every module when locked is nil. Order is preserved.
func FilterByLockState(modules []*Module, locked *bool, now time.Time) []*Module {
	result := make([]*Module, 0, len(modules))
	for _, m := range modules {
		if locked == nil || IsModuleLocked(m, now) == *locked {
			result = append(result, m)
		}
	}
	return result
}
