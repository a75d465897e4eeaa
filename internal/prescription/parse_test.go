package prescription

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		status ParseStatus
		want   time.Time
	}{
		{
			name:   "canonical header",
			text:   "Prescribed on: 2024-06-15 at 09:30\nSymptoms: cough",
			status: StatusFound,
			want:   time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			name:   "header not on first line",
			text:   "Amended by front desk\nPrescribed on: 2023-01-05 at 18:00",
			status: StatusFound,
			want:   time.Date(2023, 1, 5, 18, 0, 0, 0, time.UTC),
		},
		{
			name:   "legacy freeform entry",
			text:   "Paracetamol 500mg twice a day for 3 days. Steam inhalation.",
			status: StatusNotFound,
		},
		{name: "empty", text: "", status: StatusNotFound},
		{name: "single digit month", text: "Prescribed on: 2024-6-15 at 09:30", status: StatusMalformed},
		{name: "two digit year", text: "Prescribed on: 24-06-15 at 09:30", status: StatusMalformed},
		{name: "twelve hour clock", text: "Prescribed on: 2024-06-15 at 9:30 PM", status: StatusMalformed},
		{name: "impossible month", text: "Prescribed on: 2024-13-01 at 09:30", status: StatusMalformed},
		{name: "impossible hour", text: "Prescribed on: 2024-06-15 at 24:10", status: StatusMalformed},
		{name: "missing time", text: "Prescribed on: 2024-06-15", status: StatusMalformed},
		{name: "locale date", text: "Prescribed on: 6/15/2024, 9:30:00 AM", status: StatusMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, status := ParseTimestamp(tt.text, nil)
			assert.Equal(t, tt.status, status)
			if tt.status == StatusFound {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			} else {
				assert.True(t, got.IsZero())
			}
		})
	}
}

func TestParseTimestampUsesLocation(t *testing.T) {
	loc := time.FixedZone("clinic", -5*3600)
	got, status := ParseTimestamp("Prescribed on: 2024-06-15 at 09:30", loc)
	assert.Equal(t, StatusFound, status)
	assert.Equal(t, time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC), got.UTC())
}

func TestParseTimestampWithOffset(t *testing.T) {
	got, status := ParseTimestamp("Prescribed on: 2024-11-03 at 01:30 -0500\nSymptoms: cough", time.UTC)
	assert.Equal(t, StatusFound, status)
	assert.Equal(t, time.Date(2024, 11, 3, 6, 30, 0, 0, time.UTC), got)
}

func TestHeaderRoundTripAcrossFallBack(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	firstPass := time.Date(2024, 11, 3, 5, 30, 20, 0, time.UTC).In(loc)
	secondPass := firstPass.Add(time.Hour)
	require.Equal(t, firstPass.Format("15:04"), secondPass.Format("15:04"))

	assert.Equal(t, "Prescribed on: 2024-11-03 at 01:30 -0400", Header(firstPass))
	assert.Equal(t, "Prescribed on: 2024-11-03 at 01:30 -0500", Header(secondPass))

	for _, at := range []time.Time{firstPass, secondPass, firstPass.Add(-2 * time.Hour), secondPass.Add(2 * time.Hour)} {
		got, status := ParseTimestamp(Header(at), loc)
		require.Equal(t, StatusFound, status, Header(at))
		assert.True(t, at.Truncate(time.Minute).Equal(got), "header %q parsed to %s", Header(at), got)
	}

	unambiguous := time.Date(2024, 11, 3, 9, 15, 0, 0, loc)
	assert.Equal(t, "Prescribed on: 2024-11-03 at 09:15", Header(unambiguous))
}

func TestParseStatusString(t *testing.T) {
	assert.Equal(t, "found", StatusFound.String())
	assert.Equal(t, "malformed", StatusMalformed.String())
	assert.Equal(t, "not_found", StatusNotFound.String())
}
