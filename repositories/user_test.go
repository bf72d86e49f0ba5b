package repositories

import (
	"testing"

	db "github.com/mama165/sdk-go/database"
	"github.com/stretchr/testify/require"

	"team-chat/errors"
)

func newTestUserRepository(t *testing.T) IUserRepository {
	t.Helper()
	_, _, badgerDB, blugeWriter, err := db.SetupBenchmark(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupDB(badgerDB, blugeWriter) })
	return NewUserRepository(badgerDB)
}

func TestUserRepository_CreateAndLookup(t *testing.T) {
	req := require.New(t)
	repo := newTestUserRepository(t)

	// When: Registering a new account
	id, err := repo.CreateUser("alice@corp.example", "Alice", "hashed-secret")
	req.NoError(err)
	req.NotEmpty(id)

	// Then: The account resolves by email with the default role
	user, err := repo.GetUserByEmail("alice@corp.example")
	req.NoError(err)
	req.Equal(id, user.ID)
	req.Equal("Alice", user.Name)
	req.Equal("hashed-secret", user.PasswordHash)
	req.Equal([]string{"user"}, user.Roles)
}

func TestUserRepository_DuplicateEmailRejected(t *testing.T) {
	req := require.New(t)
	repo := newTestUserRepository(t)

	_, err := repo.CreateUser("alice@corp.example", "Alice", "hash-one")
	req.NoError(err)

	_, err = repo.CreateUser("alice@corp.example", "Other Alice", "hash-two")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestUserRepository_UnknownEmailIsInvalidCredentials(t *testing.T) {
	req := require.New(t)
	repo := newTestUserRepository(t)

	// Lookup failures surface as invalid credentials so login cannot be
	// used to probe which emails exist.
	_, err := repo.GetUserByEmail("nobody@corp.example")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}
