package clock_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/twostep/pkg/clock"
	"github.com/stretchr/testify/require"
)

func TestFakeClock(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.Fake(start)
	require.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	require.Equal(t, start.Add(90*time.Second), c.Now())

	c.Set(start)
	require.Equal(t, start, c.Now())
}

func TestRealClockIsUTC(t *testing.T) {
	require.Equal(t, time.UTC, clock.Real().Now().Location())
}
