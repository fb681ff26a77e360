// Package editor holds the learner's working copy of a tutorial's code and
// notifies listeners when it changes.
package editor

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"hyperlearn/internal/domain"
)

var ErrNoTutorial = errors.New("no tutorial selected")

// Reason tells listeners what produced a change.
type Reason string

const (
	ReasonSelect Reason = "select"
	ReasonEdit   Reason = "edit"
	ReasonReset  Reason = "reset"
)

// Change is delivered to subscribers after the text settles.
type Change struct {
	TutorialID string
	Text       string
	Reason     Reason
}

type Config struct {
	// Debounce delays notifications for SetText until edits pause. Zero
	// notifies synchronously on every edit.
	Debounce time.Duration
	Logger   *logrus.Logger
}

type Editor struct {
	cfg Config

	mu       sync.Mutex
	tutorial *domain.Tutorial
	text     string
	subs     map[int]func(Change)
	nextSub  int
	pending  *time.Timer
	gen      uint64
}

func New(cfg Config) *Editor {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Editor{cfg: cfg, subs: make(map[int]func(Change))}
}

// Select makes t the working tutorial and seeds the text from its starter
// code. Listeners are notified immediately.
func (e *Editor) Select(t domain.Tutorial) {
	e.mu.Lock()
	e.tutorial = &t
	e.text = t.StarterCode
	change, listeners := e.flushLocked(ReasonSelect)
	e.mu.Unlock()

	e.cfg.Logger.WithField("tutorial", t.ID).Debug("tutorial selected")
	notify(listeners, change)
}

// Reset discards edits and restores the selected tutorial's starter code.
func (e *Editor) Reset() error {
	e.mu.Lock()
	if e.tutorial == nil {
		e.mu.Unlock()
		return ErrNoTutorial
	}
	e.text = e.tutorial.StarterCode
	change, listeners := e.flushLocked(ReasonReset)
	e.mu.Unlock()

	notify(listeners, change)
	return nil
}

func (e *Editor) SetText(text string) {
	e.mu.Lock()
	if text == e.text {
		e.mu.Unlock()
		return
	}
	e.text = text

	if e.cfg.Debounce <= 0 {
		change, listeners := e.flushLocked(ReasonEdit)
		e.mu.Unlock()
		notify(listeners, change)
		return
	}

	e.gen++
	gen := e.gen
	if e.pending != nil {
		e.pending.Stop()
	}
	e.pending = time.AfterFunc(e.cfg.Debounce, func() { e.fire(gen) })
	e.mu.Unlock()
}

func (e *Editor) fire(gen uint64) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	change, listeners := e.flushLocked(ReasonEdit)
	e.mu.Unlock()
	notify(listeners, change)
}

// flushLocked cancels any pending notification and captures what to send.
func (e *Editor) flushLocked(reason Reason) (Change, []func(Change)) {
	e.gen++
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
	change := Change{Text: e.text, Reason: reason}
	if e.tutorial != nil {
		change.TutorialID = e.tutorial.ID
	}
	listeners := make([]func(Change), 0, len(e.subs))
	for id := 0; id < e.nextSub; id++ {
		if fn, ok := e.subs[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	return change, listeners
}

func notify(listeners []func(Change), change Change) {
	for _, fn := range listeners {
		fn(change)
	}
}

func (e *Editor) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text
}

func (e *Editor) Tutorial() (domain.Tutorial, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tutorial == nil {
		return domain.Tutorial{}, false
	}
	return *e.tutorial, true
}

// Subscribe registers fn for change notifications in registration order.
func (e *Editor) Subscribe(fn func(Change)) (cancel func()) {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// Close drops a pending notification.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
}
