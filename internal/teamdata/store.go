package teamdata

import (
	"sync"

	"github.com/rickgao/pairamid-live/internal/model"
)

// PresenceListener is called when the initial-data flag changes.
type PresenceListener func(present bool)

// Store holds the current snapshot. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	snap     model.Snapshot
	present  bool
	listener PresenceListener
}

// NewStore creates an empty Store. listener may be nil.
func NewStore(listener PresenceListener) *Store {
	return &Store{listener: listener}
}

// Snapshot returns a copy of the current snapshot and whether the initial
// data has been loaded.
func (s *Store) Snapshot() (model.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone(), s.present
}

// Present reports whether the initial data has been loaded.
func (s *Store) Present() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.present
}

// Replace swaps in a full snapshot and marks the data present.
func (s *Store) Replace(snap model.Snapshot) {
	s.update(func(cur *model.Snapshot) { *cur = snap.Clone() }, true)
}

// ApplyTeam replaces the team record.
func (s *Store) ApplyTeam(team model.Team, at int64) {
	s.update(func(cur *model.Snapshot) {
		cur.Team = team
		cur.UpdatedAt = at
		cur.Source = "channel"
	}, false)
}

// ApplyPairs replaces the pair list with a copy of pairs.
func (s *Store) ApplyPairs(pairs []model.Pair, at int64) {
	s.update(func(cur *model.Snapshot) {
		cur.Pairs = model.ClonePairs(pairs)
		cur.UpdatedAt = at
		cur.Source = "channel"
	}, false)
}

// ApplyUsers replaces the user list with a copy of users.
func (s *Store) ApplyUsers(users []model.User, at int64) {
	s.update(func(cur *model.Snapshot) {
		cur.Users = model.CloneUsers(users)
		cur.UpdatedAt = at
		cur.Source = "channel"
	}, false)
}

// Reset clears the snapshot and marks the data absent.
func (s *Store) Reset() {
	s.mu.Lock()
	s.snap = model.Snapshot{}
	changed := s.present
	s.present = false
	s.mu.Unlock()

	if changed && s.listener != nil {
		s.listener(false)
	}
}

// update applies fn under the lock. The listener runs after the lock is
// released so it may call back into the Store.
func (s *Store) update(fn func(*model.Snapshot), markPresent bool) {
	s.mu.Lock()
	fn(&s.snap)
	changed := markPresent && !s.present
	if markPresent {
		s.present = true
	}
	s.mu.Unlock()

	if changed && s.listener != nil {
		s.listener(true)
	}
}
