package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	t.Run("creates active user with valid input", func(t *testing.T) {
		user, err := NewUser("testuser", "Password123", RoleOperator)

		require.NoError(t, err)
		assert.NotNil(t, user)
		assert.Equal(t, "testuser", user.Username)
		assert.NotEmpty(t, user.PasswordHash)
		assert.NotEqual(t, "Password123", user.PasswordHash)
		assert.Equal(t, RoleOperator, user.Role)
		assert.Equal(t, UserStatusActive, user.Status)
	})

	t.Run("normalizes username to lowercase", func(t *testing.T) {
		user, err := NewUser("TestUser", "Password123", RoleAdmin)

		require.NoError(t, err)
		assert.Equal(t, "testuser", user.Username)
	})

	t.Run("trims username whitespace", func(t *testing.T) {
		user, err := NewUser("  testuser  ", "Password123", RoleAdmin)

		require.NoError(t, err)
		assert.Equal(t, "testuser", user.Username)
	})

	t.Run("fails with empty username", func(t *testing.T) {
		_, err := NewUser("", "Password123", RoleAdmin)
		assert.Error(t, err)
	})

	t.Run("fails with short username", func(t *testing.T) {
		_, err := NewUser("ab", "Password123", RoleAdmin)
		assert.Error(t, err)
	})

	t.Run("fails with invalid username characters", func(t *testing.T) {
		_, err := NewUser("user name", "Password123", RoleAdmin)
		assert.Error(t, err)
	})

	t.Run("fails with short password", func(t *testing.T) {
		_, err := NewUser("testuser", "short", RoleAdmin)
		assert.Error(t, err)
	})

	t.Run("fails with unknown role", func(t *testing.T) {
		_, err := NewUser("testuser", "Password123", Role("superuser"))
		assert.Error(t, err)
	})
}

func TestUserPassword(t *testing.T) {
	t.Run("verifies correct password", func(t *testing.T) {
		user, err := NewUser("testuser", "Password123", RoleOperator)
		require.NoError(t, err)

		assert.True(t, user.VerifyPassword("Password123"))
		assert.False(t, user.VerifyPassword("WrongPassword"))
	})

	t.Run("changes password with correct old password", func(t *testing.T) {
		user, err := NewUser("testuser", "Password123", RoleOperator)
		require.NoError(t, err)

		err = user.ChangePassword("Password123", "NewPassword456")

		require.NoError(t, err)
		assert.True(t, user.VerifyPassword("NewPassword456"))
		assert.False(t, user.VerifyPassword("Password123"))
	})

	t.Run("rejects change with wrong old password", func(t *testing.T) {
		user, err := NewUser("testuser", "Password123", RoleOperator)
		require.NoError(t, err)

		err = user.ChangePassword("Wrong", "NewPassword456")

		assert.Error(t, err)
		assert.True(t, user.VerifyPassword("Password123"))
	})

	t.Run("admin reset skips old password check", func(t *testing.T) {
		user, err := NewUser("testuser", "Password123", RoleOperator)
		require.NoError(t, err)

		require.NoError(t, user.SetPassword("ResetPassword789"))
		assert.True(t, user.VerifyPassword("ResetPassword789"))
	})
}

func TestUserLockout(t *testing.T) {
	t.Run("locks after max failed attempts", func(t *testing.T) {
		user, err := NewUser("testuser", "Password123", RoleOperator)
		require.NoError(t, err)

		assert.False(t, user.RecordLoginFailure(3, time.Hour))
		assert.False(t, user.RecordLoginFailure(3, time.Hour))
		assert.True(t, user.RecordLoginFailure(3, time.Hour))

		assert.Equal(t, UserStatusLocked, user.Status)
		assert.True(t, user.IsLocked())
		assert.False(t, user.CanLogin())
	})

	t.Run("expired lock no longer blocks login", func(t *testing.T) {
		user, err := NewUser("testuser", "Password123", RoleOperator)
		require.NoError(t, err)

		user.RecordLoginFailure(1, time.Millisecond)
		time.Sleep(5 * time.Millisecond)

		assert.False(t, user.IsLocked())
		assert.True(t, user.CanLogin())
	})

	t.Run("successful login resets failed attempts", func(t *testing.T) {
		user, err := NewUser("testuser", "Password123", RoleOperator)
		require.NoError(t, err)

		user.RecordLoginFailure(5, time.Hour)
		user.RecordLoginSuccess("192.168.1.10")

		assert.Equal(t, 0, user.FailedAttempts)
		assert.Equal(t, "192.168.1.10", user.LastLoginIP)
		assert.NotNil(t, user.LastLoginAt)
	})

	t.Run("activate clears lock state", func(t *testing.T) {
		user, err := NewUser("testuser", "Password123", RoleOperator)
		require.NoError(t, err)

		user.RecordLoginFailure(1, time.Hour)
		require.NoError(t, user.Activate())

		assert.Equal(t, UserStatusActive, user.Status)
		assert.Equal(t, 0, user.FailedAttempts)
		assert.Nil(t, user.LockedUntil)
	})
}

func TestUserLifecycle(t *testing.T) {
	t.Run("deactivated user cannot login", func(t *testing.T) {
		user, err := NewUser("testuser", "Password123", RoleOperator)
		require.NoError(t, err)

		require.NoError(t, user.Deactivate())

		assert.False(t, user.CanLogin())
		assert.Error(t, user.Deactivate())
	})

	t.Run("role change bumps version", func(t *testing.T) {
		user, err := NewUser("testuser", "Password123", RoleOperator)
		require.NoError(t, err)
		before := user.Version

		require.NoError(t, user.SetRole(RoleAdmin))

		assert.True(t, user.IsAdmin())
		assert.Equal(t, before+1, user.Version)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		user, err := NewUser("testuser", "Password123", RoleOperator)
		require.NoError(t, err)

		assert.Error(t, user.SetRole(Role("root")))
	})

	t.Run("display name falls back to username", func(t *testing.T) {
		user, err := NewUser("testuser", "Password123", RoleOperator)
		require.NoError(t, err)

		assert.Equal(t, "testuser", user.GetDisplayNameOrUsername())

		require.NoError(t, user.SetDisplayName("Test Operator"))
		assert.Equal(t, "Test Operator", user.GetDisplayNameOrUsername())
	})
}
