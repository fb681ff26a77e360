package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"hyperlearn/internal/domain"
	"hyperlearn/internal/repository"
)

// SessionManager tracks the single signed-in identity of the process.
type SessionManager interface {
	Open(ctx context.Context, identity string) (*domain.Session, error)
	Current(ctx context.Context) (*domain.Session, error)
	Validate(ctx context.Context, token string) (*domain.Session, error)
	Close(ctx context.Context) error
}

type sessionManager struct {
	records *repository.Records
	opts    options
	mu      sync.Mutex
}

func NewSessionManager(store repository.KeyValueStore, opts ...Option) SessionManager {
	o := buildOptions(opts)
	return &sessionManager{
		records: repository.NewRecords(store, o.logger),
		opts:    o,
	}
}

func (m *sessionManager) Open(ctx context.Context, identity string) (*domain.Session, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	issuedAt := m.opts.now()
	session := &domain.Session{
		Identity: identity,
		Token:    m.opts.digest(identity + strconv.FormatInt(issuedAt.UnixNano(), 10)),
		IssuedAt: issuedAt.UTC(),
	}
	if err := m.records.Save(ctx, repository.KeySession, session); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	m.opts.logger.WithField("identity", identity).Info("session opened")
	return session, nil
}

func (m *sessionManager) Current(ctx context.Context) (*domain.Session, error) {
	var session domain.Session
	found, err := m.records.Load(ctx, repository.KeySession, &session, nil)
	if err != nil {
		return nil, err
	}
	if !found || session.Identity == "" || session.Token == "" {
		return nil, nil
	}
	return &session, nil
}

func (m *sessionManager) Validate(ctx context.Context, token string) (*domain.Session, error) {
	session, err := m.Current(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoSession
	}
	if subtle.ConstantTimeCompare([]byte(session.Token), []byte(token)) != 1 {
		return nil, ErrInvalidToken
	}
	return session, nil
}

func (m *sessionManager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records.Remove(ctx, repository.KeySession)
}
