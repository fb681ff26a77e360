package service

import "errors"

var (
	// ErrDuplicateIdentity is returned when registering an identity that already exists.
	ErrDuplicateIdentity = errors.New("user already exists")
	// ErrUnknownIdentity indicates no account is registered for the identity.
	ErrUnknownIdentity = errors.New("no user with that identity")
	// ErrInvalidCredential indicates the secret does not match the stored credential.
	ErrInvalidCredential = errors.New("incorrect password")
	// ErrInvalidInput covers missing identity or secret.
	ErrInvalidInput = errors.New("identity and password required")
	// ErrNoSession is returned when a token is validated with nobody signed in.
	ErrNoSession = errors.New("no active session")
	// ErrInvalidToken is returned for a token that is not the active session's.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrTutorialNotFound is returned for unknown tutorial ids.
	ErrTutorialNotFound = errors.New("tutorial not found")
	// ErrInvalidCatalog rejects catalogs with empty or duplicate ids.
	ErrInvalidCatalog = errors.New("invalid catalog")
)
