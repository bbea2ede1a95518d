package model

import (
	"testing"

	"github.com/google/uuid"
)

func TestSnapshotClone(t *testing.T) {
	role := &Role{ID: "r1", Name: "Engineering"}
	orig := Snapshot{
		Team:  Team{ID: "t1", Name: "Blue"},
		Users: []User{{ID: "u1", Initials: "AB", Role: role}},
		Pairs: []Pair{{ID: "p1", Info: "UNPAIRED", Users: []User{{ID: "u1", Role: role}}}},
	}

	clone := orig.Clone()
	clone.Users[0].Initials = "ZZ"
	clone.Users[0].Role.Name = "Design"
	clone.Pairs[0].Users[0].ID = "u9"
	clone.Pairs[0].Info = "task"

	if orig.Users[0].Initials != "AB" {
		t.Errorf("Users[0].Initials = %q, want %q", orig.Users[0].Initials, "AB")
	}
	if role.Name != "Engineering" {
		t.Errorf("Role.Name = %q, want %q", role.Name, "Engineering")
	}
	if orig.Pairs[0].Users[0].ID != "u1" {
		t.Errorf("Pairs[0].Users[0].ID = %q, want %q", orig.Pairs[0].Users[0].ID, "u1")
	}
	if orig.Pairs[0].Info != "UNPAIRED" {
		t.Errorf("Pairs[0].Info = %q, want %q", orig.Pairs[0].Info, "UNPAIRED")
	}
}

func TestSnapshotCloneNil(t *testing.T) {
	clone := Snapshot{}.Clone()
	if clone.Users != nil || clone.Pairs != nil {
		t.Errorf("Clone() of empty snapshot = %+v, want nil slices", clone)
	}
}

func TestLifecycleRecord(t *testing.T) {
	r := LifecycleRecord{
		ID:         uuid.New(),
		Generation: uuid.New(),
		Event:      "lost",
		FromState:  "connected",
		ToState:    "lost",
		LossKind:   "lost-with-error",
		TS:         1705321845000000,
	}

	if r.ID == uuid.Nil || r.ID == r.Generation {
		t.Errorf("expected distinct non-nil ids, got %v and %v", r.ID, r.Generation)
	}
	if r.TS != 1705321845000000 {
		t.Errorf("TS = %d, want %d", r.TS, 1705321845000000)
	}
}
