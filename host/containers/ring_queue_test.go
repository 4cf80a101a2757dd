package containers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingQueueEnqueueDequeue(t *testing.T) {
	rq := NewRingQueue[int](3)
	require.True(t, rq.IsEmpty())

	require.NoError(t, rq.Enqueue(1))
	require.NoError(t, rq.Enqueue(2))
	require.NoError(t, rq.Enqueue(3))
	require.True(t, rq.IsFull())
	require.ErrorIs(t, rq.Enqueue(4), ErrQueueFull)

	v, err := rq.Dequeue()
	require.NoError(t, err)
	require.Equal(t, 1, v)

	v, err = rq.Peek()
	require.NoError(t, err)
	require.Equal(t, 2, v)
	require.Equal(t, 2, rq.Len())
}

func TestRingQueueForceEnqueueEvictsOldest(t *testing.T) {
	rq := NewRingQueue[string](2)
	rq.ForceEnqueue("a")
	rq.ForceEnqueue("b")
	rq.ForceEnqueue("c")

	require.Equal(t, []string{"b", "c"}, rq.Items())
}

func TestRingQueueEmptyDequeue(t *testing.T) {
	rq := NewRingQueue[int](1)
	_, err := rq.Dequeue()
	require.ErrorIs(t, err, ErrQueueEmpty)
	_, err = rq.Peek()
	require.ErrorIs(t, err, ErrQueueEmpty)
}
