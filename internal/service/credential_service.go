package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"hyperlearn/internal/domain"
	"hyperlearn/internal/repository"
)

// CredentialStore maps identities to hashed credentials.
type CredentialStore interface {
	Register(ctx context.Context, identity, secret, displayName string) (*domain.Account, error)
	Authenticate(ctx context.Context, identity, secret string) (*domain.Account, error)
	Lookup(ctx context.Context, identity string) (*domain.Account, error)
	UpdateDisplayName(ctx context.Context, identity, displayName string) (*domain.Account, error)
}

type credentialStore struct {
	records *repository.Records
	opts    options
	// guards read-modify-write of the accounts record
	mu sync.Mutex
}

func NewCredentialStore(store repository.KeyValueStore, opts ...Option) CredentialStore {
	o := buildOptions(opts)
	return &credentialStore{
		records: repository.NewRecords(store, o.logger),
		opts:    o,
	}
}

func (s *credentialStore) loadAccounts(ctx context.Context) (map[string]domain.Account, error) {
	accounts := map[string]domain.Account{}
	if _, err := s.records.Load(ctx, repository.KeyAccounts, &accounts, func() {
		accounts = map[string]domain.Account{}
	}); err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = map[string]domain.Account{}
	}
	return accounts, nil
}

func (s *credentialStore) Register(ctx context.Context, identity, secret, displayName string) (*domain.Account, error) {
	identity = strings.TrimSpace(identity)
	displayName = strings.TrimSpace(displayName)
	if identity == "" || secret == "" {
		return nil, ErrInvalidInput
	}
	if displayName == "" {
		displayName = identity
	}

	hash, err := s.opts.hasher.Hash(secret)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if _, exists := accounts[identity]; exists {
		return nil, ErrDuplicateIdentity
	}

	account := domain.Account{
		Identity:       identity,
		DisplayName:    displayName,
		CredentialHash: hash,
		CreatedAt:      s.opts.now().UTC(),
	}
	accounts[identity] = account
	if err := s.records.Save(ctx, repository.KeyAccounts, accounts); err != nil {
		return nil, fmt.Errorf("persist account: %w", err)
	}

	s.opts.logger.WithField("identity", identity).Info("account registered")
	return sanitizeAccount(&account), nil
}

func (s *credentialStore) Authenticate(ctx context.Context, identity, secret string) (*domain.Account, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, ErrUnknownIdentity
	}

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}
	account, ok := accounts[identity]
	if !ok {
		s.opts.metrics.RecordAuthFailure("unknown_identity")
		return nil, ErrUnknownIdentity
	}
	if !s.opts.hasher.Verify(account.CredentialHash, secret) {
		s.opts.metrics.RecordAuthFailure("invalid_credential")
		return nil, ErrInvalidCredential
	}
	return sanitizeAccount(&account), nil
}

func (s *credentialStore) Lookup(ctx context.Context, identity string) (*domain.Account, error) {
	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}
	account, ok := accounts[strings.TrimSpace(identity)]
	if !ok {
		return nil, nil
	}
	return sanitizeAccount(&account), nil
}

func (s *credentialStore) UpdateDisplayName(ctx context.Context, identity, displayName string) (*domain.Account, error) {
	identity = strings.TrimSpace(identity)
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = identity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}
	account, ok := accounts[identity]
	if !ok {
		return nil, ErrUnknownIdentity
	}
	account.DisplayName = displayName
	accounts[identity] = account
	if err := s.records.Save(ctx, repository.KeyAccounts, accounts); err != nil {
		return nil, fmt.Errorf("persist account: %w", err)
	}
	return sanitizeAccount(&account), nil
}

func sanitizeAccount(account *domain.Account) *domain.Account {
	if account == nil {
		return nil
	}
	return &domain.Account{
		Identity:    account.Identity,
		DisplayName: account.DisplayName,
		CreatedAt:   account.CreatedAt,
	}
}
