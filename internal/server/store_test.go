package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Beto18v/AdoptaFacil-sub000/internal/decoder"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/pipeline"
)

func TestStoreSweepEvictsIdleSessions(t *testing.T) {
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }

	store := NewStore(func() *pipeline.Session {
		return pipeline.NewSession(decoder.New(), &stubSubmitter{}, pipeline.WithClock(now))
	}, 30*time.Minute, nil)
	store.now = now

	idle := store.Create()
	clock = clock.Add(20 * time.Minute)
	active := store.Create()

	clock = clock.Add(15 * time.Minute)
	assert.Equal(t, 1, store.Sweep())

	_, ok := store.Get(idle.ID())
	assert.False(t, ok)
	_, ok = store.Get(active.ID())
	assert.True(t, ok)
	assert.Equal(t, 1, store.Len())
}

func TestStoreDelete(t *testing.T) {
	store := NewStore(func() *pipeline.Session {
		return pipeline.NewSession(decoder.New(), &stubSubmitter{})
	}, 0, nil)

	sess := store.Create()
	require.NoError(t, sess.Load(context.Background(), "a.csv", []byte(csvFile)))

	assert.True(t, store.Delete(sess.ID()))
	assert.False(t, store.Delete(sess.ID()))
	assert.Equal(t, pipeline.StateUpload, sess.State())

	// A zero TTL never expires anything.
	store.Create()
	assert.Equal(t, 0, store.Sweep())
}

func TestJanitorStopsWithContext(t *testing.T) {
	store := NewStore(func() *pipeline.Session {
		return pipeline.NewSession(decoder.New(), &stubSubmitter{})
	}, time.Nanosecond, nil)
	store.Create()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.RunJanitor(ctx, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
