package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSystemNowIsUTC(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC()
	now := New().Now()
	require.Equal(t, time.UTC, now.Location())
	require.False(t, now.Before(before.Add(-time.Second)))
}

func TestFixedNow(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	require.Equal(t, ts, Fixed(ts).Now())
}
