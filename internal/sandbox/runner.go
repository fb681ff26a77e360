package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"hyperlearn/internal/domain"
	"hyperlearn/internal/metrics"
)

var (
	ErrUnknownHandle = errors.New("unknown run handle")
	ErrRunDisposed   = errors.New("run has been disposed")
)

// Handle identifies one run.
type Handle string

// Sanitizer cleans rendered markup before it leaves the runner.
type Sanitizer interface {
	Sanitize(markup string) string
}

// Runner executes learner documents one at a time. Starting a run disposes
// the previous one, and lines of a run reach only that run's subscribers.
type Runner interface {
	Run(ctx context.Context, document string) (Handle, error)
	Subscribe(h Handle, onLine func(domain.RunLine)) (cancel func(), err error)
	Dispose(h Handle) error
	Lines(h Handle) ([]domain.RunLine, error)
	Wait(ctx context.Context, h Handle) error
	Preview(h Handle) (string, error)
	Current() (Handle, bool)
	Close()
}

type Config struct {
	MaxLines int
	// Retain is how many finished handles are still told apart from never
	// issued ones. Older handles report ErrUnknownHandle.
	Retain    int
	Logger    *logrus.Logger
	Metrics   metrics.Recorder
	Sanitizer Sanitizer
}

const defaultRetain = 256

type runner struct {
	cfg    Config
	engine Engine

	mu      sync.Mutex
	current *run
	retired map[Handle]struct{}
	order   []Handle
}

func NewRunner(engine Engine, cfg Config) Runner {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.Retain <= 0 {
		cfg.Retain = defaultRetain
	}
	return &runner{
		cfg:     cfg,
		engine:  engine,
		retired: make(map[Handle]struct{}),
	}
}

func (rn *runner) Run(ctx context.Context, document string) (Handle, error) {
	r := newRun(Handle(uuid.NewString()), rn.cfg.MaxLines, rn.cfg.Metrics)
	logger := rn.cfg.Logger.WithField("run", r.handle)

	rn.mu.Lock()
	prev := rn.current
	rn.current = r
	if prev != nil {
		rn.retireLocked(prev.handle)
	}
	rn.mu.Unlock()

	if prev != nil && prev.dispose() {
		rn.cfg.Metrics.RecordRunSuperseded()
		rn.cfg.Logger.WithField("run", prev.handle).Debug("run superseded")
	}

	go r.dispatch()
	rn.cfg.Metrics.RecordRunStarted()

	exec, err := rn.engine.Load(ctx, document, r.emit)
	if err != nil {
		logger.WithError(err).Warn("load document failed")
		r.emit(domain.LineFault, fmt.Sprintf("Uncaught Error: %v", err))
		r.finish()
		return r.handle, nil
	}
	if !r.attach(exec) {
		exec.Dispose()
		return r.handle, nil
	}

	go func() {
		<-exec.Done()
		if r.finish() {
			rn.cfg.Metrics.RecordRunFinished(time.Since(r.started))
			logger.WithField("lines", r.count()).Debug("run finished")
		}
	}()
	logger.Debug("run started")
	return r.handle, nil
}

// retireLocked remembers h as disposed, forgetting the oldest handles past
// the retain limit.
func (rn *runner) retireLocked(h Handle) {
	rn.retired[h] = struct{}{}
	rn.order = append(rn.order, h)
	for len(rn.order) > rn.cfg.Retain {
		delete(rn.retired, rn.order[0])
		rn.order = rn.order[1:]
	}
}

// lookup returns the live run for h, or an error telling a disposed handle
// apart from one this runner never issued.
func (rn *runner) lookup(h Handle) (*run, error) {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	if rn.current != nil && rn.current.handle == h {
		return rn.current, nil
	}
	if _, ok := rn.retired[h]; ok {
		return nil, ErrRunDisposed
	}
	return nil, ErrUnknownHandle
}

func (rn *runner) Subscribe(h Handle, onLine func(domain.RunLine)) (func(), error) {
	if onLine == nil {
		return nil, errors.New("subscribe: nil callback")
	}
	r, err := rn.lookup(h)
	if err != nil {
		return nil, err
	}
	return r.subscribe(onLine)
}

func (rn *runner) Dispose(h Handle) error {
	rn.mu.Lock()
	var r *run
	switch {
	case rn.current != nil && rn.current.handle == h:
		r = rn.current
		rn.current = nil
		rn.retireLocked(h)
	default:
		if _, ok := rn.retired[h]; !ok {
			rn.mu.Unlock()
			return ErrUnknownHandle
		}
	}
	rn.mu.Unlock()

	if r != nil && r.dispose() {
		rn.cfg.Logger.WithField("run", h).Debug("run disposed")
	}
	return nil
}

func (rn *runner) Lines(h Handle) ([]domain.RunLine, error) {
	r, err := rn.lookup(h)
	if err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}

func (rn *runner) Wait(ctx context.Context, h Handle) error {
	r, err := rn.lookup(h)
	if err != nil {
		return err
	}
	select {
	case <-r.done:
		if r.isDisposed() {
			return ErrRunDisposed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rn *runner) Preview(h Handle) (string, error) {
	r, err := rn.lookup(h)
	if err != nil {
		return "", err
	}
	exec := r.execution()
	if exec == nil {
		return "", nil
	}
	markup := exec.Document()
	if rn.cfg.Sanitizer != nil {
		markup = rn.cfg.Sanitizer.Sanitize(markup)
	}
	return markup, nil
}

func (rn *runner) Current() (Handle, bool) {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	if rn.current == nil {
		return "", false
	}
	return rn.current.handle, true
}

func (rn *runner) Close() {
	if h, ok := rn.Current(); ok {
		_ = rn.Dispose(h)
	}
}
