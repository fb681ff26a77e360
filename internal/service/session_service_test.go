package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperlearn/internal/digest"
	"hyperlearn/internal/repository"
	"hyperlearn/internal/repository/memory"
)

func TestSessionOpenCurrentClose(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2026, 10, 16, 9, 30, 0, 123456789, time.UTC)
	sessions := NewSessionManager(memory.NewStore(), WithClock(func() time.Time { return ts }))

	current, err := sessions.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	opened, err := sessions.Open(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", opened.Identity)
	assert.Equal(t, digest.SHA256Hex("ada@example.com1792143000123456789"), opened.Token)

	current, err = sessions.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, opened.Token, current.Token)

	require.NoError(t, sessions.Close(ctx))
	current, err = sessions.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	require.NoError(t, sessions.Close(ctx), "closing without a session is a no-op")
}

func TestSessionExclusivity(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessionManager(memory.NewStore())

	a, err := sessions.Open(ctx, "a@example.com")
	require.NoError(t, err)
	b, err := sessions.Open(ctx, "b@example.com")
	require.NoError(t, err)

	current, err := sessions.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "b@example.com", current.Identity)
	assert.Equal(t, b.Token, current.Token)

	_, err = sessions.Validate(ctx, a.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	validated, err := sessions.Validate(ctx, b.Token)
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", validated.Identity)
}

func TestSessionTokensDifferAcrossOpens(t *testing.T) {
	ctx := context.Background()
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sessions := NewSessionManager(memory.NewStore(), WithClock(func() time.Time {
		tick = tick.Add(time.Nanosecond)
		return tick
	}))

	first, err := sessions.Open(ctx, "ada@example.com")
	require.NoError(t, err)
	second, err := sessions.Open(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)
}

func TestCorruptSessionIsAbsent(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewStore()
	require.NoError(t, kv.Set(ctx, repository.KeySession, "not-json"))
	sessions := NewSessionManager(kv)

	current, err := sessions.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	_, err = sessions.Validate(ctx, "anything")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSessionOpenRequiresIdentity(t *testing.T) {
	_, err := NewSessionManager(memory.NewStore()).Open(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
