package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanStateAdvancesByTwentyUntilLatched(t *testing.T) {
	var s scanState
	s.start()

	running, progress := s.poll()
	require.True(t, running)
	require.Equal(t, 20, progress)

	for i := 0; i < 3; i++ {
		running, progress = s.poll()
	}
	require.True(t, running)
	require.Equal(t, 80, progress)

	running, progress = s.poll()
	require.False(t, running)
	require.Equal(t, 100, progress)

	// Once latched, further polls stay at 100 without a running scan.
	running, progress = s.poll()
	require.False(t, running)
	require.Equal(t, 100, progress)
}

func TestScanStateAbortResetsProgress(t *testing.T) {
	var s scanState
	s.start()
	s.poll()
	s.poll()
	s.abort()

	running, progress := s.poll()
	require.False(t, running)
	require.Equal(t, 0, progress)
}
