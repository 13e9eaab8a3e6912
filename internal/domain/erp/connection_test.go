package erp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnection(t *testing.T) *Connection {
	t.Helper()
	c, err := NewConnection("production", "https://erp.example.com", "key", "secret")
	require.NoError(t, err)
	return c
}

func TestNewConnection(t *testing.T) {
	t.Run("Valid connection", func(t *testing.T) {
		c, err := NewConnection("production", "https://erp.example.com", "key", "secret")

		require.NoError(t, err)
		assert.Equal(t, "production", c.Name)
		assert.Equal(t, "https://erp.example.com", c.BaseURL)
		assert.True(t, c.IsActive)
		assert.False(t, c.IsDefault)
		assert.Equal(t, 1, c.Version)
	})

	t.Run("Empty name", func(t *testing.T) {
		_, err := NewConnection("", "https://erp.example.com", "key", "secret")
		assert.Error(t, err)
	})

	t.Run("Relative base URL", func(t *testing.T) {
		_, err := NewConnection("c", "erp.example.com/api", "key", "secret")
		assert.Error(t, err)
	})

	t.Run("Non-http scheme", func(t *testing.T) {
		_, err := NewConnection("c", "ftp://erp.example.com", "key", "secret")
		assert.Error(t, err)
	})

	t.Run("Missing credentials", func(t *testing.T) {
		_, err := NewConnection("c", "https://erp.example.com", "", "secret")
		assert.Error(t, err)

		_, err = NewConnection("c", "https://erp.example.com", "key", "")
		assert.Error(t, err)
	})
}

func TestConnectionUpdateCredentials(t *testing.T) {
	t.Run("Rotation bumps version", func(t *testing.T) {
		c := newTestConnection(t)

		err := c.UpdateCredentials("new-key", "new-secret")

		require.NoError(t, err)
		assert.Equal(t, "new-key", c.APIKey)
		assert.Equal(t, "new-secret", c.APISecret)
		assert.Equal(t, 2, c.Version)
	})

	t.Run("Empty credentials rejected", func(t *testing.T) {
		c := newTestConnection(t)

		err := c.UpdateCredentials("", "")

		assert.Error(t, err)
		assert.Equal(t, "key", c.APIKey)
	})
}

func TestConnectionUpdateBaseURL(t *testing.T) {
	t.Run("Valid URL", func(t *testing.T) {
		c := newTestConnection(t)

		err := c.UpdateBaseURL("http://staging.example.com:8000")

		require.NoError(t, err)
		assert.Equal(t, "http://staging.example.com:8000", c.BaseURL)
		assert.Equal(t, 2, c.Version)
	})

	t.Run("Invalid URL keeps previous value", func(t *testing.T) {
		c := newTestConnection(t)

		err := c.UpdateBaseURL("not a url")

		assert.Error(t, err)
		assert.Equal(t, "https://erp.example.com", c.BaseURL)
	})
}

func TestConnectionDefaultFlag(t *testing.T) {
	c := newTestConnection(t)

	c.MarkDefault()
	assert.True(t, c.IsDefault)
	assert.Equal(t, 2, c.Version)

	c.ClearDefault()
	assert.False(t, c.IsDefault)
	assert.Equal(t, 3, c.Version)
}

func TestConnectionDeactivate(t *testing.T) {
	t.Run("Deactivates active connection", func(t *testing.T) {
		c := newTestConnection(t)

		require.NoError(t, c.Deactivate())
		assert.False(t, c.IsActive)
	})

	t.Run("Second deactivation fails", func(t *testing.T) {
		c := newTestConnection(t)
		require.NoError(t, c.Deactivate())

		assert.Error(t, c.Deactivate())
	})
}
