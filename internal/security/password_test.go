package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Cheap parameters keep the hashing tests fast.
var testParams = Argon2Params{
	Time:    1,
	Memory:  8 * 1024,
	Threads: 1,
	KeyLen:  32,
	SaltLen: 16,
}

func TestHashAndVerify(t *testing.T) {
	hash, err := HashPasswordWithParams("hunter2hunter2", testParams)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(hash), "$argon2id$v=19$"))

	ok, err := VerifyPassword("hunter2hunter2", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("not the password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashIsSalted(t *testing.T) {
	first, err := HashPasswordWithParams("same password", testParams)
	require.NoError(t, err)
	second, err := HashPasswordWithParams("same password", testParams)
	require.NoError(t, err)

	assert.NotEqual(t, string(first), string(second))
}

func TestVerifyMalformedHash(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte(""),
		[]byte("plaintext"),
		[]byte("$bcrypt$whatever"),
		[]byte("$argon2id$v=19$t=1,m=8192,p=1$only-four-parts"),
	}
	for _, hash := range cases {
		_, err := VerifyPassword("anything", hash)
		assert.Error(t, err, "hash %q should not parse", hash)
	}
}

func TestVerifyHonorsEmbeddedParams(t *testing.T) {
	strong := Argon2Params{Time: 2, Memory: 16 * 1024, Threads: 2, KeyLen: 32, SaltLen: 16}
	hash, err := HashPasswordWithParams("swordfish!", strong)
	require.NoError(t, err)

	// Verification reads the cost parameters out of the hash itself, so a
	// service-wide parameter bump never invalidates old credentials.
	ok, err := VerifyPassword("swordfish!", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}
