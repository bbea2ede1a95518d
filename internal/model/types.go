package model

import (
	"slices"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Team Types
// -----------------------------------------------------------------------------

// Team is a Pairamid team.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Role groups users inside a team (e.g., "Engineering").
type Role struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// User is a team member.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Initials  string `json:"initials"`
	Role      *Role  `json:"role,omitempty"`
}

// Pair is one pairing slot for the day. Info is the free-form note
// ("OUT_OF_OFFICE", "UNPAIRED", or a task name).
type Pair struct {
	ID    string `json:"id"`
	Info  string `json:"info"`
	Users []User `json:"users"`
}

// Snapshot is the team pairing state the live view serves.
type Snapshot struct {
	Team      Team   `json:"team"`
	Pairs     []Pair `json:"pairs"`
	Users     []User `json:"users"`
	UpdatedAt int64  `json:"updated_at"` // µs since epoch
	Source    string `json:"source"`     // "rest" or "channel"
}

// Clone returns a deep copy safe to hand to readers.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Pairs = ClonePairs(s.Pairs)
	out.Users = CloneUsers(s.Users)
	return out
}

// ClonePairs deep-copies pairs, including each pair's users.
func ClonePairs(pairs []Pair) []Pair {
	if pairs == nil {
		return nil
	}
	out := make([]Pair, len(pairs))
	for i, p := range pairs {
		p.Users = CloneUsers(p.Users)
		out[i] = p
	}
	return out
}

// CloneUsers deep-copies users, including their roles.
func CloneUsers(users []User) []User {
	if users == nil {
		return nil
	}
	out := slices.Clone(users)
	for i := range out {
		if out[i].Role != nil {
			r := *out[i].Role
			out[i].Role = &r
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Journal Types
// -----------------------------------------------------------------------------

// LifecycleRecord is one journaled lifecycle event.
type LifecycleRecord struct {
	ID         uuid.UUID // Row ID
	Generation uuid.UUID // Application generation that produced the event
	InstanceID string    // config instance.id
	TeamID     string    // Team the view was attached to
	Event      string    // lifecycle event type
	FromState  string    // State before the event
	ToState    string    // State after the event
	LossKind   string    // lost-cleanly / lost-with-error, empty otherwise
	Attempt    int       // Poll attempt, 0 when not applicable
	TS         int64     // Event time (µs since epoch)
}
