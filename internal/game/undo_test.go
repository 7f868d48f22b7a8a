package game

import "testing"

// TestUndoLastRemovesNewest verifies undo order and endpoint counts
func TestUndoLastRemovesNewest(t *testing.T) {
	s := NewStore(4)
	c := addAt(s, Carbon, 0, 0)
	h1 := addAt(s, Hydrogen, 10, 0)
	h2 := addAt(s, Hydrogen, 20, 0)
	var u UndoHistory

	b1 := mustBond(t, s, c, h1)
	u.Record(b1)
	b2 := mustBond(t, s, c, h2)
	u.Record(b2)

	removed, ok := u.UndoLast(s)
	if !ok || removed.ID != b2 {
		t.Fatalf("Expected B2 removed, got %+v (%v)", removed, ok)
	}
	if s.Bond(b2) != nil || s.Bond(b1) == nil {
		t.Error("wrong bond removed")
	}
	if s.Atom(c).CurrentBonds != 1 || s.Atom(h2).CurrentBonds != 0 {
		t.Errorf("endpoint counts not decremented: C=%d H2=%d",
			s.Atom(c).CurrentBonds, s.Atom(h2).CurrentBonds)
	}
	mustValid(t, s)
}

// TestUndoSkipsConsumedBonds verifies stale entries are discarded silently
func TestUndoSkipsConsumedBonds(t *testing.T) {
	s := NewStore(4)
	o := addAt(s, Oxygen, 0, 0)
	h1 := addAt(s, Hydrogen, 10, 0)
	h2 := addAt(s, Hydrogen, 20, 0)
	var u UndoHistory

	b1 := mustBond(t, s, o, h1)
	u.Record(b1)
	b2 := mustBond(t, s, o, h2)
	u.Record(b2)

	if _, ok := u.UndoLast(s); !ok {
		t.Fatal("first undo should remove B2")
	}

	// B1 is consumed by a molecule before the second undo.
	s.RemoveAtoms([]AtomID{o, h1})
	before := s.Atom(h2).CurrentBonds

	if _, ok := u.UndoLast(s); ok {
		t.Error("undo with only stale entries should be a no-op")
	}
	if u.Len() != 0 {
		t.Errorf("stale entries should be discarded, %d left", u.Len())
	}
	if s.Atom(h2).CurrentBonds != before || s.AtomCount() != 1 {
		t.Error("no-op undo altered atoms")
	}

	// Exhausted history stays a no-op.
	if _, ok := u.UndoLast(s); ok {
		t.Error("empty history should be a no-op")
	}
	mustValid(t, s)
}
