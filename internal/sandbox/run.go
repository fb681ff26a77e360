package sandbox

import (
	"fmt"
	"sync"
	"time"

	"hyperlearn/internal/domain"
	"hyperlearn/internal/metrics"
)

type subscription struct {
	onLine    func(domain.RunLine)
	next      int
	cancelled bool
}

type delivery struct {
	sub   *subscription
	lines []domain.RunLine
}

// run holds the captured log of one execution and fans it out to
// subscribers from a single dispatcher goroutine, so each subscriber sees
// lines in capture order and callbacks never run under mu.
type run struct {
	handle   Handle
	started  time.Time
	maxLines int
	metrics  metrics.Recorder

	mu        sync.Mutex
	cond      *sync.Cond
	exec      Execution
	lines     []domain.RunLine
	subs      []*subscription
	truncated bool
	finished  bool
	disposed  bool
	done      chan struct{}
	closeDone sync.Once
}

func newRun(h Handle, maxLines int, rec metrics.Recorder) *run {
	r := &run{
		handle:   h,
		started:  time.Now(),
		maxLines: maxLines,
		metrics:  rec,
		done:     make(chan struct{}),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

func (r *run) emit(kind domain.LineKind, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed || r.finished || r.truncated {
		return
	}
	if r.maxLines > 0 && len(r.lines) >= r.maxLines {
		r.truncated = true
		kind = domain.LineFault
		text = fmt.Sprintf("output truncated after %d lines", r.maxLines)
	}
	r.lines = append(r.lines, domain.RunLine{Seq: len(r.lines) + 1, Kind: kind, Text: text})
	r.metrics.RecordLine(string(kind))
	r.cond.Broadcast()
}

// attach binds the execution; it reports false when the run was disposed
// while the document was loading.
func (r *run) attach(exec Execution) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return false
	}
	r.exec = exec
	return true
}

func (r *run) execution() Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exec
}

// finish marks the execution complete; it reports false if the run had
// already been disposed or finished.
func (r *run) finish() bool {
	r.mu.Lock()
	if r.disposed || r.finished {
		r.mu.Unlock()
		return false
	}
	r.finished = true
	r.mu.Unlock()
	r.closeDone.Do(func() { close(r.done) })
	return true
}

// dispose tears the run down; it reports whether this call did it.
func (r *run) dispose() bool {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return false
	}
	r.disposed = true
	exec := r.exec
	r.cond.Broadcast()
	r.mu.Unlock()

	if exec != nil {
		exec.Dispose()
	}
	r.closeDone.Do(func() { close(r.done) })
	return true
}

func (r *run) isDisposed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposed
}

func (r *run) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}

func (r *run) snapshot() []domain.RunLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.RunLine(nil), r.lines...)
}

func (r *run) subscribe(onLine func(domain.RunLine)) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return nil, ErrRunDisposed
	}
	sub := &subscription{onLine: onLine}
	r.subs = append(r.subs, sub)
	r.cond.Broadcast()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			sub.cancelled = true
			for i, s := range r.subs {
				if s == sub {
					r.subs = append(r.subs[:i], r.subs[i+1:]...)
					break
				}
			}
		})
	}, nil
}

func (r *run) pendingLocked() []delivery {
	var out []delivery
	for _, sub := range r.subs {
		if sub.next < len(r.lines) {
			out = append(out, delivery{sub: sub, lines: r.lines[sub.next:]})
			sub.next = len(r.lines)
		}
	}
	return out
}

func (r *run) deliverable(sub *subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.disposed && !sub.cancelled
}

// dispatch runs until the run is disposed. A finished run keeps its
// dispatcher so late subscribers still get the captured log replayed.
func (r *run) dispatch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		batch := r.pendingLocked()
		for !r.disposed && len(batch) == 0 {
			r.cond.Wait()
			batch = r.pendingLocked()
		}
		if r.disposed {
			return
		}

		r.mu.Unlock()
		for _, d := range batch {
			for _, line := range d.lines {
				if !r.deliverable(d.sub) {
					break
				}
				d.sub.onLine(line)
			}
		}
		r.mu.Lock()
	}
}
