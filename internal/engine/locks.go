package engine

import "sync"

// storyLocks hands out one mutex per story ID. Session-boundary decisions
// and the extraction/compaction pipeline take this lock so concurrent
// requests against one story cannot race each other. Locks are never
// reclaimed; the per-story footprint is one mutex.
type storyLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newStoryLocks() *storyLocks {
	return &storyLocks{m: make(map[string]*sync.Mutex)}
}

// lock acquires the story's mutex and returns its unlock func.
func (l *storyLocks) lock(storyID string) func() {
	l.mu.Lock()
	m, ok := l.m[storyID]
	if !ok {
		m = &sync.Mutex{}
		l.m[storyID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
