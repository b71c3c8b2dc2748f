package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobQueue_FIFO(t *testing.T) {
	q := newJobQueue()
	for _, id := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(job{event: Event{ID: id}}))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		j, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, j.event.ID)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestJobQueue_SignalCoalesces(t *testing.T) {
	q := newJobQueue()
	q.Enqueue(job{})
	q.Enqueue(job{})

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce into one")
	default:
	}
}

func TestJobQueue_Close(t *testing.T) {
	q := newJobQueue()
	q.Enqueue(job{event: Event{ID: "a"}})
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(job{}))
	assert.False(t, q.Drained(), "closed but not empty")

	_, ok := q.TryDequeue()
	require.True(t, ok)
	assert.True(t, q.Drained())

	<-q.Wait()
	_, open := <-q.Wait()
	assert.False(t, open)
}
