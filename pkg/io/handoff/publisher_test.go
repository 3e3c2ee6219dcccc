package handoff

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAppendsInOrder(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rc.Close()

	p := New(rc, "")
	assert.Equal(t, DefaultKey, p.Key())

	first := Ready{ID: uuid.New(), Path: "a.wav", SampleRate: 16000, Duration: 2520 * time.Millisecond}
	second := Ready{ID: uuid.New(), Path: "b.wav", SampleRate: 16000, Duration: 3 * time.Second}
	require.NoError(t, p.Publish(context.Background(), first))
	require.NoError(t, p.Publish(context.Background(), second))

	items, err := mr.List(DefaultKey)
	require.NoError(t, err)
	require.Len(t, items, 2)

	var got Ready
	require.NoError(t, json.Unmarshal([]byte(items[0]), &got))
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "a.wav", got.Path)
	assert.Equal(t, 2520*time.Millisecond, got.Duration)
}

func TestPublishFailures(t *testing.T) {
	err := New(nil, "k").Publish(context.Background(), Ready{})
	assert.ErrorIs(t, err, ErrNoClient)

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: 0})
	defer rc.Close()
	mr.Close()
	assert.Error(t, New(rc, "k").Publish(context.Background(), Ready{}))
}
