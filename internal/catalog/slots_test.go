package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeslotsAreWellFormed(t *testing.T) {
	require.NotEmpty(t, Timeslots)

	seen := make(map[string]bool)
	for _, s := range Timeslots {
		start, err := time.Parse("15:04", s.Start)
		require.NoError(t, err, "start %q", s.Start)
		end, err := time.Parse("15:04", s.End)
		require.NoError(t, err, "end %q", s.End)

		assert.Equal(t, time.Hour, end.Sub(start), "slots are one hour long")
		assert.Equal(t, s.Start+" - "+s.End, s.Label)

		assert.False(t, seen[s.Start], "duplicate start %q", s.Start)
		seen[s.Start] = true
	}

	// The schedule skips the lunch hour.
	assert.False(t, seen["12:00"])
}

func TestFind(t *testing.T) {
	s, ok := Find("09:00", "10:00")
	require.True(t, ok)
	assert.Equal(t, "09:00 - 10:00", s.Label)

	_, ok = Find("09:00", "11:00")
	assert.False(t, ok)

	_, ok = Find("12:00", "13:00")
	assert.False(t, ok)
}

func TestIndex(t *testing.T) {
	assert.Equal(t, 0, Index("07:00"))
	assert.Equal(t, 2, Index("09:00"))
	assert.Equal(t, len(Timeslots)-1, Index("19:00"))
	assert.Equal(t, -1, Index("12:00"))
}

func TestAmenityCatalogOrder(t *testing.T) {
	// Enrichment takes prefixes of this list; the order is load-bearing.
	assert.Equal(t, []string{"ac", "parking", "shower", "lockers", "mat"}, Amenities)
	assert.Len(t, StudioImages, 4)
}
