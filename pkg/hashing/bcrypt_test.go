package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcrypt_HashAndCompare(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost)

	hashed, err := h.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hashed)

	assert.NoError(t, h.Compare(hashed, "s3cret"))
	assert.ErrorIs(t, h.Compare(hashed, "wrong"), bcrypt.ErrMismatchedHashAndPassword)

	again, err := h.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, hashed, again)
}

func TestBcrypt_RejectsEmpty(t *testing.T) {
	_, err := NewBcrypt(0).Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}
