package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	req := require.New(t)

	// Given: A hashed password
	hash, err := HashPassword("Curr3nt!Passw0rd")
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	// Then: The original verifies, anything else does not
	ok, err := ComparePassword("Curr3nt!Passw0rd", hash)
	req.NoError(err)
	req.True(ok)

	ok, err = ComparePassword("wrong-password", hash)
	req.NoError(err)
	req.False(ok)
}

func TestHashPassword_UniqueSaltPerCall(t *testing.T) {
	req := require.New(t)

	// Two hashes of the same password must differ, otherwise the salt
	// is not doing its job.
	first, err := HashPassword("Curr3nt!Passw0rd")
	req.NoError(err)
	second, err := HashPassword("Curr3nt!Passw0rd")
	req.NoError(err)
	req.NotEqual(first, second)
}

func TestComparePassword_MalformedHash(t *testing.T) {
	req := require.New(t)

	_, err := ComparePassword("whatever", "not-an-argon2-hash")
	req.Error(err)
}
