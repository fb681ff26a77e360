package sandbox

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"hyperlearn/internal/domain"
)

var (
	errTimedOut = errors.New("execution timed out")
	errDisposed = errors.New("execution disposed")
)

// Emit receives one captured output line from an execution.
type Emit func(kind domain.LineKind, text string)

// Engine turns a document into a running execution. The emit callback is
// bound at load time, before any script of the document runs.
type Engine interface {
	Load(ctx context.Context, document string, emit Emit) (Execution, error)
}

// Execution is one isolated realm evaluating one document.
type Execution interface {
	// Done is closed once every script and pending timer has finished or the
	// execution was disposed.
	Done() <-chan struct{}
	// Document renders the realm's current markup.
	Document() string
	// Dispose interrupts the realm. Safe to call more than once.
	Dispose()
}

// Limits bound a single execution. Zero values mean unlimited.
type Limits struct {
	Timeout       time.Duration
	StarlarkSteps uint64
}

// RealmEngine evaluates documents in fresh in-process interpreter realms:
// goja for JavaScript and Starlark for text/x-starlark scripts.
type RealmEngine struct {
	limits Limits
	logger *logrus.Logger
}

func NewRealmEngine(limits Limits, logger *logrus.Logger) *RealmEngine {
	if logger == nil {
		logger = logrus.New()
	}
	return &RealmEngine{limits: limits, logger: logger}
}

func (e *RealmEngine) Load(ctx context.Context, document string, emit Emit) (Execution, error) {
	doc, err := parseDocument(document)
	if err != nil {
		return nil, err
	}
	r := newRealm(ctx, doc, emit, e.limits, e.logger)
	go r.run()
	return r, nil
}
