package sandbox

import (
	"sort"
	"time"
)

type pendingTimer struct {
	id       int64
	seq      int64
	due      time.Time
	interval time.Duration
	repeat   bool
	fire     func()
}

// timerQueue is only touched from the realm goroutine.
type timerQueue struct {
	nextID  int64
	nextSeq int64
	pending []*pendingTimer
}

func (q *timerQueue) add(delay time.Duration, repeat bool, fire func()) int64 {
	if delay < 0 {
		delay = 0
	}
	q.nextID++
	t := &pendingTimer{id: q.nextID, interval: delay, repeat: repeat, fire: fire}
	q.schedule(t, time.Now().Add(delay))
	return t.id
}

func (q *timerQueue) schedule(t *pendingTimer, due time.Time) {
	q.nextSeq++
	t.seq = q.nextSeq
	t.due = due
	q.pending = append(q.pending, t)
	sort.SliceStable(q.pending, func(i, j int) bool {
		a, b := q.pending[i], q.pending[j]
		if !a.due.Equal(b.due) {
			return a.due.Before(b.due)
		}
		return a.seq < b.seq
	})
}

func (q *timerQueue) cancel(id int64) {
	for i, t := range q.pending {
		if t.id == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// next pops the earliest timer and returns when it is due. Repeating timers
// are rescheduled before they fire so a callback may clear its own interval.
func (q *timerQueue) next() (time.Time, func(), bool) {
	if len(q.pending) == 0 {
		return time.Time{}, nil, false
	}
	t := q.pending[0]
	q.pending = q.pending[1:]
	due := t.due
	if t.repeat {
		interval := t.interval
		if interval < time.Millisecond {
			interval = time.Millisecond
		}
		q.schedule(t, due.Add(interval))
	}
	return due, t.fire, true
}
