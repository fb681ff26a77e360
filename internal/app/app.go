// Package app composes the services, the sandbox runner and the editor into
// the surface the host shells talk to. Everything past sign-in requires a
// current session.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"hyperlearn/internal/domain"
	"hyperlearn/internal/editor"
	"hyperlearn/internal/sandbox"
	"hyperlearn/internal/service"
)

var ErrNotSignedIn = errors.New("not signed in")

type App struct {
	logger      *logrus.Logger
	credentials service.CredentialStore
	sessions    service.SessionManager
	content     service.ContentRepository
	runner      sandbox.Runner
	editor      *editor.Editor
	autorun     bool

	stopAutorun func()
	closers     []func() error
}

type Deps struct {
	Credentials service.CredentialStore
	Sessions    service.SessionManager
	Content     service.ContentRepository
	Runner      sandbox.Runner
	Editor      *editor.Editor
	// Autorun re-runs the editor text whenever a tutorial is selected or
	// reset, and after edits settle.
	Autorun bool
	Logger  *logrus.Logger
}

func New(d Deps) *App {
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	a := &App{
		logger:      d.Logger,
		credentials: d.Credentials,
		sessions:    d.Sessions,
		content:     d.Content,
		runner:      d.Runner,
		editor:      d.Editor,
		autorun:     d.Autorun,
	}
	if a.autorun {
		a.stopAutorun = a.editor.Subscribe(a.onEdit)
	}
	return a
}

func (a *App) onEdit(change editor.Change) {
	if change.Reason != editor.ReasonEdit {
		return
	}
	ctx := context.Background()
	if err := a.requireSession(ctx); err != nil {
		a.logger.WithError(err).Debug("autorun skipped")
		return
	}
	h, err := a.runner.Run(ctx, change.Text)
	if err != nil {
		a.logger.WithError(err).Warn("autorun failed")
		return
	}
	a.logger.WithFields(logrus.Fields{"run": h, "tutorial": change.TutorialID}).Debug("autorun started")
}

// SignUp registers a new account and signs it in.
func (a *App) SignUp(ctx context.Context, identity, secret, displayName string) (*domain.Account, *domain.Session, error) {
	account, err := a.credentials.Register(ctx, identity, secret, displayName)
	if err != nil {
		return nil, nil, err
	}
	session, err := a.sessions.Open(ctx, account.Identity)
	if err != nil {
		return nil, nil, fmt.Errorf("open session: %w", err)
	}
	return account, session, nil
}

func (a *App) SignIn(ctx context.Context, identity, secret string) (*domain.Account, *domain.Session, error) {
	account, err := a.credentials.Authenticate(ctx, strings.TrimSpace(identity), secret)
	if err != nil {
		return nil, nil, err
	}
	session, err := a.sessions.Open(ctx, account.Identity)
	if err != nil {
		return nil, nil, fmt.Errorf("open session: %w", err)
	}
	a.logger.WithField("identity", account.Identity).Info("signed in")
	return account, session, nil
}

// SignOut closes the session, drops a pending edit and tears down the live
// run.
func (a *App) SignOut(ctx context.Context) error {
	if err := a.sessions.Close(ctx); err != nil {
		return err
	}
	a.editor.Close()
	a.runner.Close()
	return nil
}

// CurrentUser returns the signed-in account or ErrNotSignedIn.
func (a *App) CurrentUser(ctx context.Context) (*domain.Account, error) {
	session, err := a.sessions.Current(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNotSignedIn
	}
	return a.accountFor(ctx, session)
}

// Authorize resolves a bearer token to the signed-in account.
func (a *App) Authorize(ctx context.Context, token string) (*domain.Account, error) {
	session, err := a.sessions.Validate(ctx, token)
	switch {
	case errors.Is(err, service.ErrNoSession), errors.Is(err, service.ErrInvalidToken):
		return nil, ErrNotSignedIn
	case err != nil:
		return nil, err
	}
	return a.accountFor(ctx, session)
}

func (a *App) accountFor(ctx context.Context, session *domain.Session) (*domain.Account, error) {
	account, err := a.credentials.Lookup(ctx, session.Identity)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrNotSignedIn
	}
	return account, nil
}

func (a *App) requireSession(ctx context.Context) error {
	_, err := a.CurrentUser(ctx)
	return err
}

func (a *App) UpdateDisplayName(ctx context.Context, name string) (*domain.Account, error) {
	account, err := a.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return a.credentials.UpdateDisplayName(ctx, account.Identity, name)
}

func (a *App) Tutorials(ctx context.Context, filter string) ([]domain.Tutorial, error) {
	if err := a.requireSession(ctx); err != nil {
		return nil, err
	}
	return a.content.ListTutorials(ctx, filter)
}

func (a *App) Tutorial(ctx context.Context, id string) (*domain.Tutorial, error) {
	if err := a.requireSession(ctx); err != nil {
		return nil, err
	}
	return a.content.GetTutorial(ctx, id)
}

// SelectTutorial loads the tutorial's starter code into the editor. With
// autorun enabled the starter code is run and its handle returned.
func (a *App) SelectTutorial(ctx context.Context, id string) (*domain.Tutorial, sandbox.Handle, error) {
	tutorial, err := a.Tutorial(ctx, id)
	if err != nil {
		return nil, "", err
	}
	a.editor.Select(*tutorial)
	if !a.autorun {
		return tutorial, "", nil
	}
	h, err := a.runner.Run(ctx, tutorial.StarterCode)
	if err != nil {
		return nil, "", err
	}
	return tutorial, h, nil
}

// ResetCode restores the starter code, re-running it under autorun.
func (a *App) ResetCode(ctx context.Context) (sandbox.Handle, error) {
	if err := a.requireSession(ctx); err != nil {
		return "", err
	}
	if err := a.editor.Reset(); err != nil {
		return "", err
	}
	if !a.autorun {
		return "", nil
	}
	return a.runner.Run(ctx, a.editor.Text())
}

// Autorun reports whether edits start runs on their own.
func (a *App) Autorun() bool { return a.autorun }

// OnCodeChange registers fn for editor changes. Listeners run after the
// autorun listener, so under autorun the run for an edit is already current.
func (a *App) OnCodeChange(ctx context.Context, fn func(editor.Change)) (cancel func(), err error) {
	if err := a.requireSession(ctx); err != nil {
		return nil, err
	}
	return a.editor.Subscribe(fn), nil
}

func (a *App) EditCode(ctx context.Context, text string) error {
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	a.editor.SetText(text)
	return nil
}

func (a *App) Code(ctx context.Context) (string, error) {
	if err := a.requireSession(ctx); err != nil {
		return "", err
	}
	return a.editor.Text(), nil
}

// WatchFile mirrors an external file into the editor until ctx is done.
func (a *App) WatchFile(ctx context.Context, path string) error {
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	return a.editor.WatchFile(ctx, path)
}

// Run executes a document, superseding the live run.
func (a *App) Run(ctx context.Context, document string) (sandbox.Handle, error) {
	if err := a.requireSession(ctx); err != nil {
		return "", err
	}
	return a.runner.Run(ctx, document)
}

// RunCode executes the editor's current text.
func (a *App) RunCode(ctx context.Context) (sandbox.Handle, error) {
	if err := a.requireSession(ctx); err != nil {
		return "", err
	}
	return a.runner.Run(ctx, a.editor.Text())
}

// Runs exposes the runner for streaming, previews and disposal.
func (a *App) Runs(ctx context.Context) (sandbox.Runner, error) {
	if err := a.requireSession(ctx); err != nil {
		return nil, err
	}
	return a.runner, nil
}

func (a *App) Progress(ctx context.Context, tutorialID string) (domain.Progress, error) {
	if err := a.requireSession(ctx); err != nil {
		return nil, err
	}
	return a.content.GetProgress(ctx, tutorialID)
}

func (a *App) UpdateProgress(ctx context.Context, tutorialID string, partial domain.Progress) (domain.Progress, error) {
	if err := a.requireSession(ctx); err != nil {
		return nil, err
	}
	return a.content.UpdateProgress(ctx, tutorialID, partial)
}

// SaveNotes stores free-form notes for a tutorial alongside its other progress fields.
func (a *App) SaveNotes(ctx context.Context, tutorialID, notes string) (domain.Progress, error) {
	if _, err := a.Tutorial(ctx, tutorialID); err != nil {
		return nil, err
	}
	return a.content.UpdateProgress(ctx, tutorialID, domain.Progress{domain.ProgressNotesField: notes})
}

func (a *App) ImportCatalog(ctx context.Context, tutorials []domain.Tutorial) error {
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	return a.content.ReplaceCatalog(ctx, tutorials)
}

// Close stops the editor and runner, then releases storage.
func (a *App) Close() error {
	if a.stopAutorun != nil {
		a.stopAutorun()
	}
	a.editor.Close()
	a.runner.Close()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
