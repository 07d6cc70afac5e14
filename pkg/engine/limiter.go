package engine

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

type slot struct {
	sem   *semaphore.Weighted
	users int
}

// Limiter bounds concurrent runs per workflow. Acquisition never waits: a full workflow is
// reported to the caller immediately.
type Limiter struct {
	mu    sync.Mutex
	slots map[string]*slot
}

func NewLimiter() *Limiter {
	return &Limiter{slots: make(map[string]*slot)}
}

// TryAcquire takes a slot for key when fewer than limit runs hold one. A limit of zero or
// less means unlimited. A changed limit applies once every current holder has released.
// The returned release is idempotent.
func (l *Limiter) TryAcquire(key string, limit int) (release func(), ok bool) {
	if limit <= 0 {
		return func() {}, true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	s, exists := l.slots[key]
	if !exists {
		s = &slot{sem: semaphore.NewWeighted(int64(limit))}
		l.slots[key] = s
	}

	if !s.sem.TryAcquire(1) {
		return nil, false
	}

	s.users++

	var once sync.Once

	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()

			s.sem.Release(1)
			s.users--

			if s.users == 0 {
				delete(l.slots, key)
			}
		})
	}, true
}

// InUse reports how many runs currently hold a slot for key.
func (l *Limiter) InUse(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s, ok := l.slots[key]; ok {
		return s.users
	}

	return 0
}
