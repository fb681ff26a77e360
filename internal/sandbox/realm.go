package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/sirupsen/logrus"
	"go.starlark.net/starlark"

	"hyperlearn/internal/domain"
)

// realm owns every interpreter state of one execution. Scripts and timer
// callbacks run on the realm goroutine only; Dispose may arrive from any
// goroutine and reaches the interpreters through mu.
type realm struct {
	doc    *document
	emit   Emit
	limits Limits
	logger *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	stopErr error
	vm      *goja.Runtime
	thread  *starlark.Thread

	js      *jsRealm
	globals starlark.StringDict
	timers  timerQueue
}

func newRealm(ctx context.Context, doc *document, emit Emit, limits Limits, logger *logrus.Logger) *realm {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &realm{
		doc:     doc,
		emit:    emit,
		limits:  limits,
		logger:  logger.WithField("component", "realm"),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		globals: starlark.StringDict{},
	}
}

func (r *realm) Done() <-chan struct{} { return r.done }

func (r *realm) Document() string { return r.doc.render() }

func (r *realm) Dispose() { r.stop(errDisposed) }

// stop interrupts whichever interpreter is running. The first reason wins.
func (r *realm) stop(reason error) {
	r.mu.Lock()
	if r.stopErr == nil {
		r.stopErr = reason
		if r.vm != nil {
			r.vm.Interrupt(reason)
		}
		if r.thread != nil {
			r.thread.Cancel(reason.Error())
		}
	}
	r.mu.Unlock()
	r.cancel()
}

func (r *realm) stopped() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopErr
}

func (r *realm) run() {
	defer close(r.done)
	defer r.cancel()
	defer func() {
		if p := recover(); p != nil {
			r.logger.WithField("panic", p).Error("realm crashed")
			r.emit(domain.LineFault, fmt.Sprintf("Uncaught InternalError: %v", p))
		}
	}()

	if r.limits.Timeout > 0 {
		t := time.AfterFunc(r.limits.Timeout, func() { r.stop(errTimedOut) })
		defer t.Stop()
	}

	for _, s := range r.doc.scripts {
		if r.stopped() != nil {
			break
		}
		if s.external != "" {
			r.emit(domain.LineFault, fmt.Sprintf("Uncaught NetworkError: external script %q is not loaded", s.external))
			continue
		}
		switch s.lang {
		case langStarlark:
			r.execStarlark(s)
		default:
			r.execJavaScript(s)
		}
	}

	r.drainTimers()

	if r.stopped() == errTimedOut {
		r.emit(domain.LineFault, errTimedOut.Error())
	}
}

// attachVM registers a goja runtime so stop can interrupt it, honouring a
// stop that arrived before the runtime existed.
func (r *realm) attachVM(vm *goja.Runtime) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vm = vm
	if r.stopErr != nil {
		vm.Interrupt(r.stopErr)
	}
}

func (r *realm) attachThread(thread *starlark.Thread) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.thread = thread
	if r.stopErr != nil {
		thread.Cancel(r.stopErr.Error())
	}
}

// drainTimers fires pending timers in due order until none remain or the
// realm is stopped.
func (r *realm) drainTimers() {
	for {
		due, fire, ok := r.timers.next()
		if !ok {
			return
		}
		if wait := time.Until(due); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-r.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		if r.stopped() != nil {
			return
		}
		fire()
	}
}
