package core

import (
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// JDThreshold separates Julian Dates from Modified Julian Dates. Epochs
// strictly greater than it are treated as JD.
const JDThreshold = 2400000.5

// ToMJD returns epoch as a Modified Julian Date. Values above JDThreshold are
// assumed to be Julian Dates; anything else is returned unchanged.
func ToMJD(epoch float64) float64 {
	if epoch > JDThreshold {
		return epoch - JDThreshold
	}
	return epoch
}

// CalendarToJD converts an instant to a Julian Date. go-satellite resolves
// whole seconds; the fractional second is added here.
func CalendarToJD(t time.Time) float64 {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	return jd + float64(t.Nanosecond())/float64(24*time.Hour)
}
