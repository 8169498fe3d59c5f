package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_PolarDays(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, run(&buf, 69.68, 18.92, "2025-06-20", 2, 120))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "2025-06-20"))
	assert.True(t, strings.HasPrefix(lines[1], "2025-06-21"))
	for _, l := range lines {
		assert.Contains(t, l, "midnight sun")
		assert.Contains(t, l, "1440 min")
	}

	buf.Reset()
	require.NoError(t, run(&buf, 69.68, 18.92, "2025-12-21", 1, 60))
	assert.Contains(t, buf.String(), "polar night")
	assert.Contains(t, buf.String(), "   0 min")
}

func TestRun_PrintsTimes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, run(&buf, 59.91, 10.75, "2025-03-20", 1, 60))
	assert.Regexp(t, `^2025-03-20  \d{2}:\d{2}:00\s+\d{2}:\d{2}:00\s+\d+ min\n$`, buf.String())
}

func TestRun_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		from     string
		days     int
	}{
		{"latitude", 91, 0, "2025-01-01", 1},
		{"longitude", 0, -181, "2025-01-01", 1},
		{"zero days", 0, 0, "2025-01-01", 0},
		{"date", 0, 0, "01.01.2025", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, run(&bytes.Buffer{}, tt.lat, tt.lon, tt.from, tt.days, 0))
		})
	}
}
