package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	hasher := NewBcryptHasher()

	hashed, err := hasher.Hash("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hashed)

	cost, err := bcrypt.Cost([]byte(hashed))
	require.NoError(t, err)
	assert.Equal(t, PasswordCost, cost)

	ok, err := hasher.Verify("s3cret-pass", hashed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify("other-pass", hashed)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBcryptHasher_SaltsEachHash(t *testing.T) {
	hasher := NewBcryptHasher()

	first, err := hasher.Hash("same-password")
	require.NoError(t, err)
	second, err := hasher.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestBcryptHasher_MalformedHash(t *testing.T) {
	hasher := NewBcryptHasher()

	ok, err := hasher.Verify("whatever", "not-a-bcrypt-hash")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrComparison)
}

func TestBcryptHasher_TooLong(t *testing.T) {
	hasher := NewBcryptHasher()

	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}
	_, err := hasher.Hash(string(long))
	assert.ErrorIs(t, err, ErrHashing)
}
