// this file deals with the ordered queue and the active slot
package radio

import "time"

// queueState holds pending, active and recent history. It is not safe for
// concurrent use; Radio serialises every access behind its mutex.
type queueState struct {
	pending    []Request
	active     *Request
	history    []Request // most recent first
	historyCap int
}

func newQueueState(historyCap int) *queueState {
	if historyCap <= 0 {
		historyCap = 20
	}
	return &queueState{
		pending:    make([]Request, 0),
		history:    make([]Request, 0),
		historyCap: historyCap,
	}
}

// insertIndex is the end of the donation band for donations and the end of
// the queue for everything else.
func (q *queueState) insertIndex(req *Request) int {
	if !req.IsDonation() {
		return len(q.pending)
	}
	for i := range q.pending {
		if !q.pending[i].IsDonation() {
			return i
		}
	}
	return len(q.pending)
}

// insert places req in its priority band and returns the 0-based position.
func (q *queueState) insert(req Request) int {
	idx := q.insertIndex(&req)
	q.pending = append(q.pending, Request{})
	copy(q.pending[idx+1:], q.pending[idx:])
	q.pending[idx] = req
	return idx
}

func (q *queueState) indexOf(id string) int {
	for i := range q.pending {
		if q.pending[i].ID == id {
			return i
		}
	}
	return -1
}

// remove deletes id from pending. Removing an absent id is a no-op.
func (q *queueState) remove(id string) (Request, bool) {
	idx := q.indexOf(id)
	if idx < 0 {
		return Request{}, false
	}
	removed := q.pending[idx]
	q.pending = append(q.pending[:idx], q.pending[idx+1:]...)
	return removed, true
}

// contains reports whether id is pending or active.
func (q *queueState) contains(id string) bool {
	if q.active != nil && q.active.ID == id {
		return true
	}
	return q.indexOf(id) >= 0
}

func (q *queueState) hasPendingFrom(login, name string) bool {
	for i := range q.pending {
		if q.pending[i].RequestedBy(login, name) {
			return true
		}
	}
	return false
}

// promoteNext pops the head of pending into the active slot. It returns the
// promoted request or nil when the slot was occupied or the queue empty.
func (q *queueState) promoteNext(now time.Time) *Request {
	if q.active != nil || len(q.pending) == 0 {
		return nil
	}
	next := q.pending[0]
	q.pending = q.pending[1:]
	started := now
	next.StartedAt = &started
	q.active = &next
	return q.active
}

// archive moves the active request into history with the given status and
// clears the slot. It returns nil when the slot was empty.
func (q *queueState) archive(status Status, now time.Time) *Request {
	if q.active == nil {
		return nil
	}
	finished := *q.active
	at := now
	finished.Status = status
	finished.FinishedAt = &at
	q.active = nil
	q.pushHistory(finished)
	return &finished
}

func (q *queueState) pushHistory(req Request) {
	q.history = append([]Request{req}, q.history...)
	if len(q.history) > q.historyCap {
		q.history = q.history[:q.historyCap]
	}
}

func (q *queueState) historyIndexOf(id string) int {
	for i := range q.history {
		if q.history[i].ID == id {
			return i
		}
	}
	return -1
}

func (q *queueState) pendingSnapshot() []Request {
	out := make([]Request, len(q.pending))
	copy(out, q.pending)
	return out
}

func (q *queueState) activeSnapshot() *Request {
	if q.active == nil {
		return nil
	}
	a := *q.active
	return &a
}

func (q *queueState) historySnapshot() []Request {
	out := make([]Request, len(q.history))
	copy(out, q.history)
	return out
}
