package chathub

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

type task func()

// roomQueue runs the tasks of one room strictly one after another. It has no
// goroutine while idle; the first push after an idle period starts a drainer.
type roomQueue struct {
	mu      sync.Mutex
	pending []task
	running bool
	retired bool
}

// roomPipelines owns one roomQueue per active room. Different rooms drain in
// parallel; there is no lock shared by tasks of different rooms.
type roomPipelines struct {
	log    *slog.Logger
	mu     sync.Mutex
	queues map[uint]*roomQueue

	// busy counts live drainers. busyMu is a leaf lock; work may be
	// submitted while wait is blocked.
	busyMu sync.Mutex
	busy   int
	idle   *sync.Cond
}

func newRoomPipelines(log *slog.Logger) *roomPipelines {
	p := &roomPipelines{log: log, queues: make(map[uint]*roomQueue)}
	p.idle = sync.NewCond(&p.busyMu)
	return p
}

// submit appends t to the room's queue.
func (p *roomPipelines) submit(roomID uint, t task) {
	p.submitBounded(roomID, 0, t)
}

// submitBounded appends t unless the room already has limit or more tasks
// waiting. A limit of 0 means unbounded. It reports whether t was queued.
func (p *roomPipelines) submitBounded(roomID uint, limit int, t task) bool {
	for {
		q := p.queue(roomID)

		q.mu.Lock()
		if q.retired {
			// Lost a race with retire; the next lookup creates a fresh queue.
			q.mu.Unlock()
			continue
		}
		if limit > 0 && len(q.pending) >= limit {
			q.mu.Unlock()
			return false
		}
		q.pending = append(q.pending, t)
		if !q.running {
			q.running = true
			p.busyMu.Lock()
			p.busy++
			p.busyMu.Unlock()
			go p.drain(roomID, q)
		}
		q.mu.Unlock()
		return true
	}
}

func (p *roomPipelines) queue(roomID uint) *roomQueue {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.queues[roomID]
	if !ok {
		q = &roomQueue{}
		p.queues[roomID] = q
	}
	return q
}

func (p *roomPipelines) drain(roomID uint, q *roomQueue) {
	defer p.done()

	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			p.retire(roomID, q)
			return
		}
		t := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		p.run(roomID, t)
	}
}

// run executes one task; a panicking task must not stall the room.
func (p *roomPipelines) run(roomID uint, t task) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error("Recovered from panic in room pipeline",
				"room_id", roomID, "panic", rec, "stack", string(debug.Stack()))
		}
	}()
	t()
}

// retire forgets an idle queue. Lock order is pipelines then queue, matching
// queue() followed by the push in submitBounded.
func (p *roomPipelines) retire(roomID uint, q *roomQueue) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running || len(q.pending) > 0 || q.retired {
		return
	}
	q.retired = true
	if p.queues[roomID] == q {
		delete(p.queues, roomID)
	}
}

// backlog returns the number of waiting tasks for roomID.
func (p *roomPipelines) backlog(roomID uint) int {
	p.mu.Lock()
	q, ok := p.queues[roomID]
	p.mu.Unlock()
	if !ok {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (p *roomPipelines) active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queues)
}

func (p *roomPipelines) done() {
	p.busyMu.Lock()
	defer p.busyMu.Unlock()
	p.busy--
	if p.busy == 0 {
		p.idle.Broadcast()
	}
}

// wait blocks until no drainer is running.
func (p *roomPipelines) wait() {
	p.busyMu.Lock()
	defer p.busyMu.Unlock()
	for p.busy > 0 {
		p.idle.Wait()
	}
}
