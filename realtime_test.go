package coalesce_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/romshark/coalesce"

	"github.com/stretchr/testify/require"
)

func TestScheduleAutoExec(t *testing.T) {
	s := coalesce.New()
	fired := make(chan string, 3)
	record := func(name string) func() {
		return func() { fired <- name }
	}

	_, err := s.Add(100*time.Millisecond, record("A"))
	require.NoError(t, err)
	_, err = s.Add(50*time.Millisecond, record("B"))
	require.NoError(t, err)
	_, err = s.Add(200*time.Millisecond, record("C"))
	require.NoError(t, err)

	var order []string
	for len(order) < 3 {
		select {
		case name := <-fired:
			order = append(order, name)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, fired so far: %v", order)
		}
	}
	require.Equal(t, []string{"B", "A", "C"}, order)
	require.Zero(t, s.Len())

	_, armed := s.Armed()
	require.False(t, armed)
}

func TestResetDelayAutoExec(t *testing.T) {
	s := coalesce.New()
	var invoked atomic.Int32
	done := make(chan struct{})

	id, err := s.Add(50*time.Millisecond, func() {
		invoked.Add(1)
		close(done)
	})
	require.NoError(t, err)
	require.NoError(t, s.ResetDelay(id, 400*time.Millisecond))

	time.Sleep(250 * time.Millisecond)
	require.Zero(t, invoked.Load())
	require.Equal(t, 1, s.Len())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	require.Equal(t, int32(1), invoked.Load())
}

func TestRemoveAutoExec(t *testing.T) {
	s := coalesce.New()
	var invoked atomic.Int32

	id, err := s.Add(20*time.Millisecond, func() { invoked.Add(1) })
	require.NoError(t, err)
	require.True(t, s.Remove(id))

	time.Sleep(100 * time.Millisecond)
	require.Zero(t, invoked.Load())
}

func TestConcurrentAdd(t *testing.T) {
	s := coalesce.New()
	const n = 200
	var invoked atomic.Int32
	ids := make(chan coalesce.ID, n)
	done := make(chan struct{})

	for i := 0; i < n; i++ {
		go func() {
			id, err := s.Add(10*time.Millisecond, func() {
				if invoked.Add(1) == n {
					close(done)
				}
			})
			if err != nil {
				panic(err)
			}
			ids <- id
		}()
	}

	seen := make(map[coalesce.ID]struct{}, n)
	for i := 0; i < n; i++ {
		id := <-ids
		require.NotZero(t, id)
		require.NotContains(t, seen, id)
		seen[id] = struct{}{}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out, invoked %d of %d", invoked.Load(), n)
	}
}

func TestDefault(t *testing.T) {
	require.Same(t, coalesce.Default(), coalesce.Default())

	id, err := coalesce.Add(coalesce.Hour, func() {
		panic("this should not be invoked")
	})
	require.NoError(t, err)
	require.NotZero(t, id)
	require.Equal(t, 1, coalesce.Len())

	require.NoError(t, coalesce.ResetDelay(id, 2*coalesce.Hour))
	require.ErrorIs(t, coalesce.ResetDelay(id, -1), coalesce.ErrInvalidDelay)

	require.True(t, coalesce.Remove(id))
	require.False(t, coalesce.Remove(id))
	require.Zero(t, coalesce.Len())

	_, err = coalesce.Add(-time.Second, func() {})
	require.ErrorIs(t, err, coalesce.ErrInvalidDelay)
}
