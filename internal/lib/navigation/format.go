package navigation

import (
	"fmt"
	"math"
	"time"
)

// MilesPerMeter converts meters to statute miles
const MilesPerMeter = 0.000621371

// ETALayout is the default clock layout for arrival times
const ETALayout = "3:04 PM"

// FormatDistance renders a distance as "N meters" below 1km, otherwise "N.N km"
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%d meters", int(meters))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// FormatMinutes renders a duration in seconds as whole minutes, e.g. "8 min"
func FormatMinutes(seconds float64) string {
	if math.IsInf(seconds, 0) || math.IsNaN(seconds) {
		return "-- min"
	}
	return fmt.Sprintf("%d min", int(seconds)/60)
}

// FormatMiles renders the remaining distance in miles with the arrival time, e.g. "0.5 mi · 3:04 PM"
func FormatMiles(meters float64, eta time.Time, layout string) string {
	if layout == "" {
		layout = ETALayout
	}

	etaText := "--"
	if !eta.IsZero() {
		etaText = eta.Format(layout)
	}

	return fmt.Sprintf("%.1f mi · %s", meters*MilesPerMeter, etaText)
}
