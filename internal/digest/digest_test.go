package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSHA256Hex(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", SHA256Hex(""))
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", SHA256Hex("hello"))
	assert.Len(t, SHA256Hex("anything at all"), 64)
}

func TestDigestHasher(t *testing.T) {
	h := NewDigestHasher(nil)

	first, err := h.Hash("s3cret")
	require.NoError(t, err)
	second, err := h.Hash("s3cret")
	require.NoError(t, err)

	assert.Equal(t, first, second, "same secret must give the same hash")
	assert.NotEqual(t, "s3cret", first)
	assert.True(t, h.Verify(first, "s3cret"))
	assert.False(t, h.Verify(first, "S3cret"))
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	first, err := h.Hash("s3cret")
	require.NoError(t, err)
	second, err := h.Hash("s3cret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "bcrypt hashes are salted")
	assert.True(t, h.Verify(first, "s3cret"))
	assert.True(t, h.Verify(second, "s3cret"))
	assert.False(t, h.Verify(first, "wrong"))

	t.Run("accepts legacy digests", func(t *testing.T) {
		assert.True(t, h.Verify(SHA256Hex("old"), "old"))
		assert.False(t, h.Verify(SHA256Hex("old"), "new"))
	})
}

func TestForScheme(t *testing.T) {
	h, err := ForScheme("", 0)
	require.NoError(t, err)
	assert.IsType(t, &digestHasher{}, h)

	h, err = ForScheme("BCRYPT", 4)
	require.NoError(t, err)
	assert.IsType(t, &bcryptHasher{}, h)

	_, err = ForScheme("md5", 0)
	require.ErrorIs(t, err, ErrUnknownScheme)
}
