// Package daylight computes sunrise, sunset, and day length with the NOAA
// low-precision solar position approximation. Everything here is pure: the
// same inputs always give bit-identical results.
package daylight

import (
	"fmt"
	"math"
	"time"
)

const (
	minutesPerDay = 1440
	// Apparent sunrise: refraction plus the sun's semi-diameter.
	horizonDegrees = -0.833
)

// Result is the daylight for one date at one coordinate. Sunrise and Sunset
// are local "HH:MM:SS" strings and empty when the sun does not cross the
// horizon that day.
type Result struct {
	Sunrise         string
	Sunset          string
	DaylightMinutes int
	PolarNight      bool
	MidnightSun     bool
}

// HasTimes reports whether the sun rises and sets on the day.
func (r Result) HasTimes() bool {
	return !r.PolarNight && !r.MidnightSun
}

// Calculate returns daylight for the calendar date of date (its year, month,
// and day; the time of day and location are ignored). utcOffsetMinutes shifts
// sunrise and sunset into local time and has no effect on DaylightMinutes.
func Calculate(lat, lon float64, date time.Time, utcOffsetMinutes int) Result {
	n := float64(julianDayNumber(date.Date()) - 2451545)
	jCentury := n / 36525

	obliquity := 23.439 - 0.0000004*n
	meanLongitude := math.Mod(280.460+0.9856474*n, 360)
	meanAnomaly := math.Mod(357.528+0.9856003*n, 360)
	eclipticLongitude := meanLongitude +
		1.915*math.Sin(radians(meanAnomaly)) +
		0.020*math.Sin(radians(2*meanAnomaly))
	declination := degrees(math.Asin(math.Sin(radians(obliquity)) * math.Sin(radians(eclipticLongitude))))

	cosHourAngle := (math.Sin(radians(horizonDegrees)) -
		math.Sin(radians(lat))*math.Sin(radians(declination))) /
		(math.Cos(radians(lat)) * math.Cos(radians(declination)))

	switch {
	case cosHourAngle > 1:
		return Result{PolarNight: true}
	case cosHourAngle < -1:
		return Result{DaylightMinutes: minutesPerDay, MidnightSun: true}
	}

	hourAngle := degrees(math.Acos(cosHourAngle))
	solarNoonUTC := 720 - 4*lon - 60*jCentury
	sunriseUTC := solarNoonUTC - 4*hourAngle
	sunsetUTC := solarNoonUTC + 4*hourAngle

	// A day right at the polar boundary can round to 0 or 1440 without
	// being flagged; keep it strictly inside.
	minutes := int(math.Round(sunsetUTC - sunriseUTC))
	minutes = min(max(minutes, 1), minutesPerDay-1)

	offset := float64(utcOffsetMinutes)
	return Result{
		Sunrise:         clock(sunriseUTC + offset),
		Sunset:          clock(sunsetUTC + offset),
		DaylightMinutes: minutes,
	}
}

// julianDayNumber is the integer Julian day number of a Gregorian date.
func julianDayNumber(year int, month time.Month, day int) int {
	a := (14 - int(month)) / 12
	y := year + 4800 - a
	m := int(month) + 12*a - 3
	return day + (153*m+2)/5 + 365*y + floorDiv(y, 4) - floorDiv(y, 100) + floorDiv(y, 400) - 32045
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// clock formats minutes past local midnight, wrapped into one day, as HH:MM:00.
func clock(minutes float64) string {
	m := math.Mod(minutes, minutesPerDay)
	if m < 0 {
		m += minutesPerDay
	}
	h := int(m) / 60
	return fmt.Sprintf("%02d:%02d:00", h, int(m)%60)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
