// Command daylight prints sunrise, sunset, and daylight length for a
// coordinate over a range of days.
//
// Usage:
//
//	go run ./cmd/daylight -lat 69.68 -lon 18.92 -from 2025-06-01 -days 7 -offset 120
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/couchcryptid/risk-signal-etl/internal/calendar"
	"github.com/couchcryptid/risk-signal-etl/internal/daylight"
)

func main() {
	lat := flag.Float64("lat", 0, "latitude in decimal degrees, north positive")
	lon := flag.Float64("lon", 0, "longitude in decimal degrees, east positive")
	from := flag.String("from", time.Now().UTC().Format(time.DateOnly), "first day, YYYY-MM-DD")
	days := flag.Int("days", 1, "number of days to print")
	offset := flag.Int("offset", 60, "UTC offset in minutes for sunrise and sunset")
	flag.Parse()

	if err := run(os.Stdout, *lat, *lon, *from, *days, *offset); err != nil {
		fmt.Fprintln(os.Stderr, "daylight:", err)
		os.Exit(2)
	}
}

func run(w io.Writer, lat, lon float64, from string, days, offset int) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v out of range", lon)
	}
	if days < 1 || days > 366 {
		return fmt.Errorf("days must be between 1 and 366, got %d", days)
	}
	start, err := time.Parse(time.DateOnly, from)
	if err != nil {
		return fmt.Errorf("invalid -from %q: %w", from, err)
	}

	for _, day := range calendar.Days(start, start.AddDate(0, 0, days-1)) {
		r := daylight.Calculate(lat, lon, day, offset)
		sunrise, sunset := r.Sunrise, r.Sunset
		switch {
		case r.MidnightSun:
			sunrise, sunset = "midnight sun", ""
		case r.PolarNight:
			sunrise, sunset = "polar night", ""
		}
		if _, err := fmt.Fprintf(w, "%s  %-12s %-8s %4d min\n", day.Format(time.DateOnly), sunrise, sunset, r.DaylightMinutes); err != nil {
			return err
		}
	}
	return nil
}
