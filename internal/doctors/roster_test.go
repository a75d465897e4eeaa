package doctors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchQuery(t *testing.T) {
	roster := DefaultRoster()
	tests := []struct {
		query  string
		wantID string
		ok     bool
	}{
		{"Rao", "doc2", true},
		{"Doctor Rao", "doc2", true},
		{"dr. vikram rao", "doc2", true},
		{"DR MEHTA", "doc1", true},
		{"  Priya  Desai ", "doc3", true},
		{"Dr. Alisha Mehta, the GP", "doc1", true},
		{"Peterson", "", false},
		{"Ra", "", false},
		{"Dr.", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			d, ok := roster.MatchQuery(tt.query)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.wantID, d.ID)
		})
	}
}

func TestMatchQueryFirstRosterEntryWins(t *testing.T) {
	roster := NewRoster([]Doctor{
		{ID: "a", Name: "Dr. Priya Desai"},
		{ID: "b", Name: "Dr. Priya Singh"},
	})
	d, ok := roster.MatchQuery("priya")
	require.True(t, ok)
	assert.Equal(t, "a", d.ID)
}

func TestByEmailIsExact(t *testing.T) {
	roster := DefaultRoster()

	d, err := roster.ByEmail(" vikram.rao@medisync.now ")
	require.NoError(t, err)
	assert.Equal(t, "doc2", d.ID)

	_, err = roster.ByEmail("VIKRAM.RAO@medisync.now")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = roster.ByEmail("rao")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = roster.ByEmail("")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestByID(t *testing.T) {
	roster := DefaultRoster()
	d, err := roster.ByID("doc3")
	require.NoError(t, err)
	assert.Equal(t, "Pediatrician", d.Specialty)

	_, err = roster.ByID("doc9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAllReturnsCopy(t *testing.T) {
	roster := DefaultRoster()
	all := roster.All()
	all[0].Name = "changed"
	assert.Equal(t, "Dr. Alisha Mehta", roster.All()[0].Name)
}
