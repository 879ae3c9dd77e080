package repository

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRedis(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mr := miniredis.RunT(t)

		client, err := InitRedis(mr.Addr(), "", 0)
		require.NoError(t, err)
		defer client.Close()
		assert.True(t, client.Options().ContextTimeoutEnabled)
	})

	t.Run("URL Form", func(t *testing.T) {
		mr := miniredis.RunT(t)

		client, err := InitRedis("redis://"+mr.Addr()+"/0", "", 0)
		require.NoError(t, err)
		defer client.Close()
		assert.True(t, client.Options().ContextTimeoutEnabled)
	})

	t.Run("Connection Refused", func(t *testing.T) {
		// Try to connect to non-existent redis
		client, err := InitRedis("localhost:1", "", 0)
		assert.Error(t, err)
		assert.Nil(t, client)
	})
}
