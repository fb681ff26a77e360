package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperlearn/internal/config"
	"hyperlearn/internal/domain"
	"hyperlearn/internal/sandbox"
	"hyperlearn/internal/service"
)

func testConfig(driver string) config.Config {
	var cfg config.Config
	cfg.Storage.Driver = driver
	cfg.Storage.Namespace = "hyperlearn_"
	cfg.Auth.Hash = "sha256"
	cfg.Runner.Timeout = 5 * time.Second
	cfg.Runner.MaxLines = 100
	cfg.Editor.Autorun = true
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	logger, _ := test.NewNullLogger()
	a, err := Bootstrap(context.Background(), cfg, logger, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func waitLines(t *testing.T, a *App, h sandbox.Handle) []domain.RunLine {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	runs, err := a.Runs(ctx)
	require.NoError(t, err)
	require.NoError(t, runs.Wait(ctx, h))
	lines, err := runs.Lines(h)
	require.NoError(t, err)
	return lines
}

func TestOperationsRequireSession(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testConfig("memory"))

	_, err := a.CurrentUser(ctx)
	assert.ErrorIs(t, err, ErrNotSignedIn)
	_, err = a.Tutorials(ctx, "")
	assert.ErrorIs(t, err, ErrNotSignedIn)
	_, _, err = a.SelectTutorial(ctx, "js-hello")
	assert.ErrorIs(t, err, ErrNotSignedIn)
	_, err = a.Run(ctx, "<script></script>")
	assert.ErrorIs(t, err, ErrNotSignedIn)
	_, err = a.Runs(ctx)
	assert.ErrorIs(t, err, ErrNotSignedIn)
	_, err = a.Progress(ctx, "js-hello")
	assert.ErrorIs(t, err, ErrNotSignedIn)
	assert.ErrorIs(t, a.EditCode(ctx, "x"), ErrNotSignedIn)
}

func TestSignUpSignInSignOut(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testConfig("memory"))

	account, session, err := a.SignUp(ctx, "ada@example.com", "pw", "")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", account.DisplayName)
	assert.Empty(t, account.CredentialHash)
	assert.Equal(t, "ada@example.com", session.Identity)

	current, err := a.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", current.Identity)

	tutorials, err := a.Tutorials(ctx, "")
	require.NoError(t, err)
	assert.Len(t, tutorials, 3)

	require.NoError(t, a.SignOut(ctx))
	_, err = a.CurrentUser(ctx)
	assert.ErrorIs(t, err, ErrNotSignedIn)

	_, _, err = a.SignIn(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, service.ErrInvalidCredential)
	_, _, err = a.SignIn(ctx, "nobody@example.com", "pw")
	assert.ErrorIs(t, err, service.ErrUnknownIdentity)

	_, session, err = a.SignIn(ctx, "ada@example.com", "pw")
	require.NoError(t, err)

	authorized, err := a.Authorize(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", authorized.Identity)
	_, err = a.Authorize(ctx, "forged")
	assert.ErrorIs(t, err, ErrNotSignedIn)

	renamed, err := a.UpdateDisplayName(ctx, "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Ada", renamed.DisplayName)
}

func TestSelectTutorialAutoruns(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testConfig("memory"))
	_, _, err := a.SignUp(ctx, "ada@example.com", "pw", "Ada")
	require.NoError(t, err)

	tutorial, h, err := a.SelectTutorial(ctx, "js-hello")
	require.NoError(t, err)
	require.NotEmpty(t, h)
	waitLines(t, a, h)

	code, err := a.Code(ctx)
	require.NoError(t, err)
	assert.Equal(t, tutorial.StarterCode, code)

	runs, err := a.Runs(ctx)
	require.NoError(t, err)
	preview, err := runs.Preview(h)
	require.NoError(t, err)
	assert.Contains(t, preview, `<div id="app">undefined</div>`)

	require.NoError(t, a.EditCode(ctx, `<script>function f(){return 2}; console.log(f()); console.log("ok")</script>`))
	edited, ok := runs.Current()
	require.True(t, ok)
	assert.NotEqual(t, h, edited, "an edit supersedes the previous run")

	lines := waitLines(t, a, edited)
	require.Len(t, lines, 2)
	assert.Equal(t, "2", lines[0].Text)
	assert.Equal(t, "ok", lines[1].Text)

	reset, err := a.ResetCode(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, edited, reset)
	code, err = a.Code(ctx)
	require.NoError(t, err)
	assert.Equal(t, tutorial.StarterCode, code)
}

func TestExplicitRunWithoutAutorun(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig("memory")
	cfg.Editor.Autorun = false
	a := newTestApp(t, cfg)
	_, _, err := a.SignUp(ctx, "ada@example.com", "pw", "")
	require.NoError(t, err)

	_, h, err := a.SelectTutorial(ctx, "react-counter")
	require.NoError(t, err)
	assert.Empty(t, h)

	require.NoError(t, a.EditCode(ctx, `<script>console.log("manual")</script>`))
	runs, err := a.Runs(ctx)
	require.NoError(t, err)
	_, ok := runs.Current()
	assert.False(t, ok)

	h, err = a.RunCode(ctx)
	require.NoError(t, err)
	lines := waitLines(t, a, h)
	require.Len(t, lines, 1)
	assert.Equal(t, "manual", lines[0].Text)
}

func TestNotesAndProgress(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testConfig("memory"))
	_, _, err := a.SignUp(ctx, "ada@example.com", "pw", "")
	require.NoError(t, err)

	progress, err := a.SaveNotes(ctx, "css-card", "remember blur()")
	require.NoError(t, err)
	assert.Equal(t, domain.Progress{"notes": "remember blur()"}, progress)

	progress, err = a.UpdateProgress(ctx, "css-card", domain.Progress{"done": true})
	require.NoError(t, err)
	assert.Equal(t, domain.Progress{"notes": "remember blur()", "done": true}, progress)

	stored, err := a.Progress(ctx, "css-card")
	require.NoError(t, err)
	assert.Equal(t, progress, stored)

	_, err = a.SaveNotes(ctx, "missing", "x")
	assert.ErrorIs(t, err, service.ErrTutorialNotFound)
}

func TestSQLiteStatePersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig("sqlite")
	cfg.Database.Path = filepath.Join(t.TempDir(), "hyperlearn.db")

	logger, _ := test.NewNullLogger()
	first, err := Bootstrap(ctx, cfg, logger, nil)
	require.NoError(t, err)
	_, _, err = first.SignUp(ctx, "ada@example.com", "pw", "")
	require.NoError(t, err)
	require.NoError(t, first.ImportCatalog(ctx, []domain.Tutorial{{ID: "custom", Title: "Custom"}}))
	require.NoError(t, first.Close())

	second, err := Bootstrap(ctx, cfg, logger, nil)
	require.NoError(t, err)
	defer second.Close()

	current, err := second.CurrentUser(ctx)
	require.NoError(t, err, "the session survives a restart")
	assert.Equal(t, "ada@example.com", current.Identity)

	tutorials, err := second.Tutorials(ctx, "")
	require.NoError(t, err)
	require.Len(t, tutorials, 1, "an existing catalog is not reseeded")
	assert.Equal(t, "custom", tutorials[0].ID)
}

func TestBootstrapRejectsUnknownHash(t *testing.T) {
	cfg := testConfig("memory")
	cfg.Auth.Hash = "md5"
	logger, _ := test.NewNullLogger()

	_, err := Bootstrap(context.Background(), cfg, logger, nil)
	assert.Error(t, err)
}

func TestSignOutStopsAutorun(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig("memory")
	cfg.Editor.Debounce = 50 * time.Millisecond
	a := newTestApp(t, cfg)
	_, _, err := a.SignUp(ctx, "ada@example.com", "pw", "")
	require.NoError(t, err)

	require.NoError(t, a.EditCode(ctx, `<script>console.log("after sign out")</script>`))
	require.NoError(t, a.SignOut(ctx))

	time.Sleep(200 * time.Millisecond)
	_, ok := a.runner.Current()
	assert.False(t, ok, "a pending edit must not run once signed out")

	a.editor.SetText(`<script>console.log("saved from disk")</script>`)
	time.Sleep(200 * time.Millisecond)
	_, ok = a.runner.Current()
	assert.False(t, ok, "edits without a session must not run")
}

func TestEventsLoggedOnce(t *testing.T) {
	ctx := context.Background()
	logger, hook := test.NewNullLogger()
	a, err := Bootstrap(ctx, testConfig("memory"), logger, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	_, _, err = a.SignUp(ctx, "ada@example.com", "pw", "")
	require.NoError(t, err)
	require.NoError(t, a.ImportCatalog(ctx, []domain.Tutorial{{ID: "only", Title: "Only"}}))

	count := func(msg string) int {
		n := 0
		for _, e := range hook.AllEntries() {
			if e.Message == msg {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 1, count("catalog initialized"))
	assert.Equal(t, 1, count("account registered"))
	assert.Equal(t, 1, count("catalog replaced"))
	assert.Zero(t, count("catalog seeded"))
}
