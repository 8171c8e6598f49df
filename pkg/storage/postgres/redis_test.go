package postgres

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name   string
		config RedisConfig
	}{
		{"addr", RedisConfig{Addr: mr.Addr(), PoolSize: 4}},
		{"url", RedisConfig{URL: "redis://" + mr.Addr() + "/0", MaxRetries: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewRedisClient(tt.config)
			require.NoError(t, err)
			defer client.Close()

			assert.NoError(t, client.Ping(context.Background()))
			assert.NotNil(t, client.GetClient())
			assert.NotNil(t, client.GetPoolStats())
		})
	}
}

func TestNewRedisClient_Errors(t *testing.T) {
	t.Run("invalid URL", func(t *testing.T) {
		_, err := NewRedisClient(RedisConfig{URL: "not-a-url://"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid redis URL")
	})

	t.Run("connection failure", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		addr := mr.Addr()
		mr.Close()

		_, err = NewRedisClient(RedisConfig{Addr: addr})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to redis")
	})
}

func TestRedisConfig_Options(t *testing.T) {
	opts, err := RedisConfig{URL: "redis://:secret@localhost:6380/3", Password: "override", DB: 5}.options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opts.Addr)
	assert.Equal(t, "override", opts.Password)
	assert.Equal(t, 5, opts.DB)
}
