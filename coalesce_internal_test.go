package coalesce

import (
	"math"
	"testing"

	"github.com/romshark/coalesce/clock"

	"github.com/stretchr/testify/require"
)

type stubProvider struct{ now clock.Tick }

func (p *stubProvider) Now() clock.Tick                  { return p.now }
func (p *stubProvider) AfterFunc(Duration, func()) Timer { return stubTimer{} }

type stubTimer struct{}

func (stubTimer) Stop() bool          { return true }
func (stubTimer) Reset(Duration) bool { return true }

func TestNextIDWraparound(t *testing.T) {
	s := NewWith(&stubProvider{now: 1}, nil, Config{})

	first, err := s.Add(Hour, func() {})
	require.NoError(t, err)
	require.Equal(t, ID(1), first)

	s.lastID = math.MaxUint32 - 1
	last, err := s.Add(Hour, func() {})
	require.NoError(t, err)
	require.Equal(t, ID(math.MaxUint32), last)

	// Skips zero and the still pending first timer
	wrapped, err := s.Add(Hour, func() {})
	require.NoError(t, err)
	require.Equal(t, ID(2), wrapped)

	// Reused once the original is gone
	require.True(t, s.Remove(first))
	s.lastID = math.MaxUint32
	reused, err := s.Add(Hour, func() {})
	require.NoError(t, err)
	require.Equal(t, ID(1), reused)
}

func TestClampDelay(t *testing.T) {
	require.Equal(t, Duration(0), clampDelay(0))
	require.Equal(t, Hour, clampDelay(Hour))
	require.Equal(t, MaxDelay, clampDelay(MaxDelay))
	require.Equal(t, MaxDelay, clampDelay(MaxDelay+1))
}

func TestIDString(t *testing.T) {
	require.Equal(t, "0000002a", ID(42).String())
	require.Equal(t, "ffffffff", ID(math.MaxUint32).String())
}
