// sessions.go
package api

import (
	"sync"
	"time"

	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/engine"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/namecache"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/resolver"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"
)

// MinCleanupInterval is the shortest interval between two cleanup runs
const MinCleanupInterval = time.Second

type session struct {
	engine   *engine.Engine
	lastSeen time.Time
	active   int // requests holding the engine
}

// SessionStore keeps one engine per browser session. All engines share the
// process-wide name cache and dispatcher; idle sessions are dropped by a
// cleanup routine.
type SessionStore struct {
	cache      *namecache.Cache
	dispatcher *resolver.Dispatcher
	ttl        time.Duration
	log        zerolog.Logger

	mutex    sync.Mutex
	sessions map[string]*session
	stopChan chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

func NewSessionStore(cache *namecache.Cache, dispatcher *resolver.Dispatcher, ttl time.Duration, log zerolog.Logger) *SessionStore {
	store := &SessionStore{
		cache:      cache,
		dispatcher: dispatcher,
		ttl:        ttl,
		log:        log.With().Str("component", "session_store").Logger(),
		sessions:   make(map[string]*session),
		stopChan:   make(chan struct{}),
		now:        time.Now,
	}

	if ttl > 0 {
		interval := ttl / 2
		if interval < MinCleanupInterval {
			interval = MinCleanupInterval
		}
		go store.startCleanupRoutine(interval)
		store.log.Info().
			Dur("interval", interval).
			Dur("ttl", ttl).
			Msg("Started session cleanup routine")
	}
	return store
}

// Acquire returns the engine of a session, creating it on first use. The
// session is not expired until release is called.
func (s *SessionStore) Acquire(id string) (e *engine.Engine, release func()) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{
			engine: engine.New(s.cache, s.dispatcher,
				engine.WithLogger(s.log.With().Str("session", id).Logger())),
		}
		s.sessions[id] = sess
		s.log.Debug().Str("session", id).Msg("Created session")
	}
	sess.lastSeen = s.now()
	sess.active++

	var once sync.Once
	return sess.engine, func() {
		once.Do(func() {
			s.mutex.Lock()
			sess.active--
			sess.lastSeen = s.now()
			s.mutex.Unlock()
		})
	}
}

func (s *SessionStore) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.sessions)
}

// IDs returns the active session ids, sorted
func (s *SessionStore) IDs() []string {
	s.mutex.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mutex.Unlock()

	slices.Sort(ids)
	return ids
}

func (s *SessionStore) startCleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopChan:
			s.log.Info().Msg("Stopping session cleanup routine")
			return
		}
	}
}

func (s *SessionStore) cleanup() {
	var expired []*session

	s.mutex.Lock()
	now := s.now()
	total := len(s.sessions)
	for id, sess := range s.sessions {
		if sess.active == 0 && now.Sub(sess.lastSeen) > s.ttl {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mutex.Unlock()

	for _, sess := range expired {
		sess.engine.Close()
	}

	s.log.Debug().
		Int("total_sessions", total).
		Int("expired_removed", len(expired)).
		Int("remaining_sessions", total-len(expired)).
		Msg("Completed session cleanup")
}

// Stop ends the cleanup routine and closes every session
func (s *SessionStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)

		s.mutex.Lock()
		for id, sess := range s.sessions {
			sess.engine.Close()
			delete(s.sessions, id)
		}
		s.mutex.Unlock()

		s.log.Info().Msg("Sessions cleared and stopped")
	})
}
