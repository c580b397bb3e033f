package api

import (
	"testing"
	"time"

	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/namecache"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/resolver"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestStore(t *testing.T, ttl time.Duration) *SessionStore {
	t.Helper()
	cache := namecache.New(zerolog.Nop())
	dispatcher := resolver.NewDispatcher(cache, &mapSource{}, resolver.Config{}, zerolog.Nop())
	store := NewSessionStore(cache, dispatcher, ttl, zerolog.Nop())
	t.Cleanup(func() {
		store.Stop()
		dispatcher.Close()
	})
	return store
}

func TestSessionStoreReusesEngines(t *testing.T) {
	store := newTestStore(t, 0)

	first, release := store.Acquire("a")
	release()
	again, release := store.Acquire("a")
	release()
	other, release := store.Acquire("b")
	release()

	assert.Same(t, first, again)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, []string{"a", "b"}, store.IDs())
}

func TestSessionStoreCleanup(t *testing.T) {
	store := newTestStore(t, time.Hour)

	now := time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	_, release := store.Acquire("idle")
	release()
	now = now.Add(45 * time.Minute)
	_, release = store.Acquire("active")
	release()

	now = now.Add(30 * time.Minute)
	store.cleanup()
	assert.Equal(t, []string{"active"}, store.IDs())

	now = now.Add(2 * time.Hour)
	store.cleanup()
	assert.Zero(t, store.Len())
}

func TestSessionStoreStop(t *testing.T) {
	store := newTestStore(t, time.Minute)
	_, release := store.Acquire("a")
	release()

	store.Stop()
	store.Stop()
	assert.Zero(t, store.Len())
}

func TestSessionStoreKeepsSessionsInUse(t *testing.T) {
	store := newTestStore(t, time.Hour)

	now := time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	e, release := store.Acquire("busy")
	now = now.Add(2 * time.Hour)
	store.cleanup()
	assert.Equal(t, []string{"busy"}, store.IDs(), "held sessions are not expired")

	release()
	release()
	now = now.Add(30 * time.Minute)
	store.cleanup()
	assert.Equal(t, []string{"busy"}, store.IDs(), "release counts as activity")

	again, release := store.Acquire("busy")
	release()
	assert.Same(t, e, again)

	now = now.Add(2 * time.Hour)
	store.cleanup()
	assert.Zero(t, store.Len())
}

func TestSessionStoreTinyTTL(t *testing.T) {
	assert.NotPanics(t, func() {
		store := newTestStore(t, time.Nanosecond)
		_, release := store.Acquire("a")
		release()
	})
}
