// Package aiqueue serializes access to the single-concurrency inference
// backend. Requests wait in a strict FIFO and are admitted one at a time;
// everyone still waiting can observe their live queue position.
package aiqueue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultPollInterval = 500 * time.Millisecond

// Ticket represents one pending chat request. It carries no payload; the
// request body is only touched after admission.
type Ticket struct {
	id string
}

func (t *Ticket) ID() string {
	return t.id
}

// Queue is the admission gate. At most one ticket is admitted at any
// instant; the rest poll their position until it is their turn.
type Queue struct {
	waiting []*Ticket
	busy    bool
	poll    time.Duration
	mu      sync.Mutex
}

func New(pollInterval time.Duration) *Queue {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Queue{poll: pollInterval}
}

// Enqueue appends a fresh ticket to the tail of the FIFO.
func (q *Queue) Enqueue() *Ticket {
	t := &Ticket{id: uuid.New().String()}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.waiting = append(q.waiting, t)
	return t
}

// Abandon removes a ticket that will never be served (caller went away).
// Unknown tickets are ignored.
func (q *Queue) Abandon(t *Ticket) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, w := range q.waiting {
		if w == t {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			return
		}
	}
}

// Release frees the admission slot so the next ticket can proceed. Callers
// must invoke it on every exit path of an admitted request.
func (q *Queue) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.busy = false
}

// Processing reports whether a request currently holds the admission slot.
func (q *Queue) Processing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

// Len returns the number of tickets still waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// poll returns (position, admitted). Position 0 with the slot free admits
// the ticket: the check and the pop are one critical section, so two head
// tickets can never both win.
func (q *Queue) pollTicket(t *Ticket) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pos := -1
	for i, w := range q.waiting {
		if w == t {
			pos = i
			break
		}
	}
	if pos != 0 {
		return pos, false
	}
	if q.busy {
		// Previous holder has not released yet; stay at the head.
		return 0, false
	}
	q.waiting = q.waiting[1:]
	q.busy = true
	return 0, true
}

// Wait blocks until the ticket is admitted or ctx is cancelled. Each time a
// position > 0 is observed, onPosition is invoked (if non-nil). On
// cancellation the ticket is abandoned and ctx.Err() returned; the queue
// simply never polls it again.
func (q *Queue) Wait(ctx context.Context, t *Ticket, onPosition func(position int)) error {
	ticker := time.NewTicker(q.poll)
	defer ticker.Stop()

	for {
		pos, admitted := q.pollTicket(t)
		if admitted {
			return nil
		}
		if pos > 0 && onPosition != nil {
			onPosition(pos)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			q.Abandon(t)
			return ctx.Err()
		}
	}
}
