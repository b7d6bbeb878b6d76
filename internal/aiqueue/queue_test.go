package aiqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPoll = 5 * time.Millisecond

func TestImmediateAdmissionWhenIdle(t *testing.T) {
	q := New(testPoll)
	ticket := q.Enqueue()

	err := q.Wait(context.Background(), ticket, nil)
	require.NoError(t, err)
	assert.True(t, q.Processing())
	assert.Equal(t, 0, q.Len())

	q.Release()
	assert.False(t, q.Processing())
}

func TestSingleConcurrency(t *testing.T) {
	q := New(testPoll)

	first := q.Enqueue()
	require.NoError(t, q.Wait(context.Background(), first, nil))

	second := q.Enqueue()
	admitted := make(chan error, 1)
	go func() {
		admitted <- q.Wait(context.Background(), second, nil)
	}()

	// While the slot is held, the head ticket stays queued.
	select {
	case <-admitted:
		t.Fatal("second ticket admitted while the slot is held")
	case <-time.After(10 * testPoll):
	}

	q.Release()
	select {
	case err := <-admitted:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second ticket never admitted after release")
	}
	assert.True(t, q.Processing())
	q.Release()
}

func TestFIFOOrder(t *testing.T) {
	q := New(testPoll)

	const n = 5
	tickets := make([]*Ticket, n)
	for i := range tickets {
		tickets[i] = q.Enqueue()
	}

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i, ticket := range tickets {
		wg.Add(1)
		go func(idx int, tk *Ticket) {
			defer wg.Done()
			assert.NoError(t, q.Wait(context.Background(), tk, nil))
			mu.Lock()
			order = append(order, idx)
			mu.Unlock()
			q.Release()
		}(i, ticket)
	}
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order, "tickets admitted in enqueue order")
	assert.Equal(t, 0, q.Len())
}

func TestPositionReportedWhileWaiting(t *testing.T) {
	q := New(testPoll)

	holder := q.Enqueue()
	require.NoError(t, q.Wait(context.Background(), holder, nil))

	// Two more behind the held slot: the second of them sits at position 1.
	_ = q.Enqueue()
	waiter := q.Enqueue()

	positions := make(chan int, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = q.Wait(ctx, waiter, func(position int) {
		select {
		case positions <- position:
		default:
		}
	})

	select {
	case pos := <-positions:
		assert.Equal(t, 1, pos)
	default:
		t.Fatal("waiter never observed its queue position")
	}
	q.Release()
}

func TestAbandonOnContextCancel(t *testing.T) {
	q := New(testPoll)

	holder := q.Enqueue()
	require.NoError(t, q.Wait(context.Background(), holder, nil))

	leaver := q.Enqueue()
	stayer := q.Enqueue()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- q.Wait(ctx, leaver, nil)
	}()
	time.Sleep(3 * testPoll)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, q.Len(), "abandoned ticket leaves the queue")

	// The remaining ticket inherits the head slot once released.
	q.Release()
	require.NoError(t, q.Wait(context.Background(), stayer, nil))
	q.Release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	q := New(testPoll)

	ticket := q.Enqueue()
	require.NoError(t, q.Wait(context.Background(), ticket, nil))

	q.Release()
	q.Release()
	assert.False(t, q.Processing())

	next := q.Enqueue()
	require.NoError(t, q.Wait(context.Background(), next, nil))
	q.Release()
}

func TestTicketIDsAreUnique(t *testing.T) {
	q := New(testPoll)
	a := q.Enqueue()
	b := q.Enqueue()
	assert.NotEqual(t, a.ID(), b.ID())
}
