package timeutil

import "time"

// EAT is East Africa Time (UTC+3), the library's local zone.
var EAT *time.Location

func init() {
	var err error
	EAT, err = time.LoadLocation("Africa/Nairobi")
	if err != nil {
		// Fallback: create fixed zone if Africa/Nairobi not available
		EAT = time.FixedZone("EAT", 3*60*60)
	}
}

// Now returns the current time in EAT
func Now() time.Time {
	return time.Now().In(EAT)
}

// ToEAT converts any time to EAT
func ToEAT(t time.Time) time.Time {
	return t.In(EAT)
}

// Format formats a time in EAT using the given layout
func Format(t time.Time, layout string) string {
	return t.In(EAT).Format(layout)
}

// Common layouts
const (
	DateLayout    = "2006-01-02"
	DisplayLayout = "02 Jan 2006, 03:04 PM"
)
