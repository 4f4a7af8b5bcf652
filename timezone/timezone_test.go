package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUTCFromZonedRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		tz   string
		c    Components
	}{
		{"santiago summer", "America/Santiago", Components{2025, time.October, 20, 9, 0, 0}},
		{"santiago winter", "America/Santiago", Components{2025, time.June, 14, 18, 45, 0}},
		{"tokyo", "Asia/Tokyo", Components{2024, time.March, 15, 14, 30, 0}},
		{"madrid late evening", "Europe/Madrid", Components{2025, time.July, 1, 23, 59, 0}},
		{"utc midnight", "UTC", Components{2025, time.January, 1, 0, 0, 0}},
		{"kolkata half hour offset", "Asia/Kolkata", Components{2025, time.February, 28, 6, 15, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instant, err := UTCFromZoned(tt.c.Year, tt.c.Month, tt.c.Day, tt.c.Hour, tt.c.Minute, tt.tz)
			require.NoError(t, err)

			got, err := ZonedComponents(instant, tt.tz)
			require.NoError(t, err)
			assert.Equal(t, tt.c, got)
		})
	}
}

func TestUTCFromZonedKnownOffsets(t *testing.T) {
	// Santiago в октябре 2025 живет по летнему времени (UTC-3).
	got, err := UTCFromZoned(2025, time.October, 20, 9, 0, "America/Santiago")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.October, 20, 12, 0, 0, 0, time.UTC), got)

	got, err = UTCFromZoned(2024, time.March, 15, 14, 30, "Asia/Tokyo")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 15, 5, 30, 0, 0, time.UTC), got)
}

func TestCombineDateAndTimeIgnoresTimeOfDay(t *testing.T) {
	zones := []string{"America/Santiago", "Asia/Tokyo", "Pacific/Auckland", "UTC"}
	for _, tz := range zones {
		t.Run(tz, func(t *testing.T) {
			lateDay := time.Date(2025, time.October, 20, 23, 59, 0, 0, time.UTC)
			midnight := time.Date(2025, time.October, 20, 0, 0, 0, 0, time.UTC)

			a, err := CombineDateAndTime(lateDay, "09:00", tz)
			require.NoError(t, err)
			b, err := CombineDateAndTime(midnight, "09:00", tz)
			require.NoError(t, err)
			assert.True(t, a.Equal(b), "%s != %s", a, b)

			local, err := ZonedComponents(a, tz)
			require.NoError(t, err)
			assert.Equal(t, 20, local.Day)
			assert.Equal(t, 9, local.Hour)
			assert.Equal(t, 0, local.Minute)
		})
	}
}

func TestCombineDateAndTimeUsesUTCDateOfDay(t *testing.T) {
	// Момент, который в Сантьяго еще 19 октября, но в UTC уже 20-е.
	day := time.Date(2025, time.October, 20, 1, 0, 0, 0, time.UTC)
	got, err := CombineDateAndTime(day, "14:30", "America/Santiago")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.October, 20, 17, 30, 0, 0, time.UTC), got)
}

func TestCombineDateAndTimeErrors(t *testing.T) {
	day := time.Date(2025, time.October, 20, 0, 0, 0, 0, time.UTC)

	_, err := CombineDateAndTime(day, "10:00", "Mars/Olympus_Mons")
	assert.ErrorIs(t, err, ErrUnknownZone)

	_, err = CombineDateAndTime(day, "25:00", "UTC")
	assert.ErrorIs(t, err, ErrInvalidPlannedTime)

	_, err = CombineDateAndTime(day, "10:00", "")
	assert.ErrorIs(t, err, ErrUnknownZone)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{"09:00", 9, 0, false},
		{"9:05", 9, 5, false},
		{"23:59", 23, 59, false},
		{" 14:30 ", 14, 30, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"12:5", 0, 0, true},
		{"1230", 0, 0, true},
		{"ab:cd", 0, 0, true},
		{"", 0, 0, true},
		{":30", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, m, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPlannedTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hour, h)
			assert.Equal(t, tt.minute, m)
		})
	}
}

func TestFormatForDisplay(t *testing.T) {
	instant := time.Date(2025, time.October, 20, 12, 0, 0, 0, time.UTC)

	s, err := FormatForDisplay(instant, "America/Santiago", true)
	require.NoError(t, err)
	assert.Equal(t, "20/10/2025 09:00", s)

	s, err = FormatForDisplay(instant, "America/Santiago", false)
	require.NoError(t, err)
	assert.Equal(t, "20/10/2025", s)

	_, err = FormatForDisplay(instant, "Nowhere/Land", true)
	assert.ErrorIs(t, err, ErrUnknownZone)
}
