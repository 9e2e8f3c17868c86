package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedClock(t *testing.T) {
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	c := NewFixed(base)

	assert.Equal(t, base, c.Now())
	assert.Equal(t, "2024-01-01", c.Today())

	c.Advance(25 * time.Hour)
	assert.Equal(t, "2024-01-02", c.Today())

	c.Set(base)
	assert.Equal(t, base, c.Now())
}

func TestSystemClockZone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	c := New(loc)
	assert.Equal(t, loc, c.Now().Location())

	// Today reflects the pinned zone, not the host zone.
	assert.Equal(t, c.Now().Format(DateLayout), c.Today())
}

func TestNewNilLocationFallsBackToUTC(t *testing.T) {
	c := New(nil)
	assert.Equal(t, time.UTC, c.Now().Location())
}
